package camera

import (
	_ "embed"
	"encoding/binary"
	"math"
	"unsafe"
)

// GPUCameraUniformSource is the canonical WGSL definition of the CameraUniform struct.
// Matches GPUCameraUniform layout exactly (352 bytes, uniform aligned).
//
//go:embed assets/camera_uniform.wgsl
var GPUCameraUniformSource string

// GPUCameraUniform is the GPU-aligned representation of the per-frame camera uniform buffer,
// shared by the G-buffer pass (view_proj) and the lighting resolve pass (inverse matrices).
// Matches the WGSL CameraUniform struct layout exactly (see GPUCameraUniformSource).
type GPUCameraUniform struct {
	View     [16]float32 // offset   0
	Proj     [16]float32 // offset  64
	ViewProj [16]float32 // offset 128
	InvView  [16]float32 // offset 192
	InvProj  [16]float32 // offset 256
	Position [3]float32  // offset 320: world-space eye position
	Near     float32     // offset 332
	Viewport [2]float32  // offset 336: render target size in pixels
	Far      float32     // offset 344
	_pad     float32     // offset 348: padding to 352 bytes
}

// NewGPUCameraUniform snapshots a camera for upload.
//
// Parameters:
//   - c: the camera
//   - width, height: render target size in pixels
//
// Returns:
//   - GPUCameraUniform: the uniform
func NewGPUCameraUniform(c Camera, width, height uint32) GPUCameraUniform {
	return GPUCameraUniform{
		View:     c.ViewMatrix(),
		Proj:     c.ProjectionMatrix(),
		ViewProj: c.ViewProjectionMatrix(),
		InvView:  c.InverseViewMatrix(),
		InvProj:  c.InverseProjectionMatrix(),
		Position: c.Position(),
		Near:     c.Near(),
		Viewport: [2]float32{float32(width), float32(height)},
		Far:      c.Far(),
	}
}

// Size returns the size of the GPUCameraUniform struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (352)
func (g *GPUCameraUniform) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPUCameraUniform struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: the serialized byte buffer
func (g *GPUCameraUniform) Marshal() []byte {
	buf := make([]byte, g.Size())
	for m, mat := range [][16]float32{g.View, g.Proj, g.ViewProj, g.InvView, g.InvProj} {
		for i := range 16 {
			binary.LittleEndian.PutUint32(buf[m*64+i*4:], math.Float32bits(mat[i]))
		}
	}
	for i := range 3 {
		binary.LittleEndian.PutUint32(buf[320+i*4:], math.Float32bits(g.Position[i]))
	}
	binary.LittleEndian.PutUint32(buf[332:], math.Float32bits(g.Near))
	binary.LittleEndian.PutUint32(buf[336:], math.Float32bits(g.Viewport[0]))
	binary.LittleEndian.PutUint32(buf[340:], math.Float32bits(g.Viewport[1]))
	binary.LittleEndian.PutUint32(buf[344:], math.Float32bits(g.Far))
	binary.LittleEndian.PutUint32(buf[348:], 0) // _pad
	return buf
}
