package shadow

import (
	_ "embed"
	"encoding/binary"
	"math"
	"unsafe"
)

// GPUCascadeDataSource is the canonical WGSL definition of the CascadeData struct.
// Matches GPUCascadeData layout exactly (96 bytes, uniform aligned).
//
//go:embed assets/cascade_data.wgsl
var GPUCascadeDataSource string

// GPUCascadeData is the GPU-aligned representation of one cascade as read by the shadow depth
// pass and the lighting resolve pass.
// Matches the WGSL CascadeData struct layout exactly (see GPUCascadeDataSource).
//
// Layout:
//
//	mat4x4<f32> view_proj      (64 bytes, offset 0)
//	f32         resolution     ( 4 bytes, offset 64)
//	f32         texel_size     ( 4 bytes, offset 68)
//	f32         depth_bias     ( 4 bytes, offset 72)
//	f32         normal_bias    ( 4 bytes, offset 76)
//	i32         pcf_radius     ( 4 bytes, offset 80)
//	padding                    (12 bytes, offset 84)
type GPUCascadeData struct {
	ViewProj   [16]float32 // world to cascade light clip space
	Resolution float32     // side length of the cascade's region of the shadow array, in texels
	TexelSize  float32     // 1 / side length of the whole shadow array layer
	DepthBias  float32     // compare-depth bias in clip depth units
	NormalBias float32     // world-space normal offset applied before projection
	PCFRadius  int32       // kernel radius, (2r+1)^2 taps
	_pad       [3]uint32
}

// NewGPUCascadeData converts a Cascade for upload.
//
// Parameters:
//   - c: the cascade
//   - layerResolution: side length of the shadow array layers, the largest cascade resolution
//
// Returns:
//   - GPUCascadeData: the GPU representation
func NewGPUCascadeData(c Cascade, layerResolution int) GPUCascadeData {
	return GPUCascadeData{
		ViewProj:   c.ViewProj,
		Resolution: float32(c.Resolution),
		TexelSize:  1 / float32(layerResolution),
		DepthBias:  c.DepthBias,
		NormalBias: c.NormalBias,
		PCFRadius:  int32(c.PCFRadius),
	}
}

// Size returns the size of the GPUCascadeData struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (96)
func (g *GPUCascadeData) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPUCascadeData struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 96-byte buffer ready for GPU upload
func (g *GPUCascadeData) Marshal() []byte {
	buf := make([]byte, 96)
	for i := 0; i < 16; i++ {
		binary.LittleEndian.PutUint32(buf[i*4:(i+1)*4], math.Float32bits(g.ViewProj[i]))
	}
	binary.LittleEndian.PutUint32(buf[64:68], math.Float32bits(g.Resolution))
	binary.LittleEndian.PutUint32(buf[68:72], math.Float32bits(g.TexelSize))
	binary.LittleEndian.PutUint32(buf[72:76], math.Float32bits(g.DepthBias))
	binary.LittleEndian.PutUint32(buf[76:80], math.Float32bits(g.NormalBias))
	binary.LittleEndian.PutUint32(buf[80:84], uint32(g.PCFRadius))
	return buf
}

// MarshalCascades serializes a cascade set as the WGSL array<CascadeData, N> bound by the shadow
// and lighting passes.
//
// Parameters:
//   - cascades: the cascades in index order
//   - layerResolution: side length of the shadow array layers
//
// Returns:
//   - []byte: len(cascades) * 96 bytes
func MarshalCascades(cascades []Cascade, layerResolution int) []byte {
	buf := make([]byte, 0, len(cascades)*96)
	for _, c := range cascades {
		data := NewGPUCascadeData(c, layerResolution)
		buf = append(buf, data.Marshal()...)
	}
	return buf
}
