package material

import (
	_ "embed"
	"encoding/binary"
	"math"
	"unsafe"
)

// DrawConstantsStride is the distance between two draws' constants in the per-draw arena. It is
// the minimum uniform dynamic offset alignment guaranteed by WebGPU.
const DrawConstantsStride = 256

// GPUDrawConstantsSource is the canonical WGSL definition of the DrawConstants struct.
// Matches GPUDrawConstants layout exactly (64 bytes, uniform aligned).
//
//go:embed assets/draw_constants.wgsl
var GPUDrawConstantsSource string

// GPUDrawConstants is the per-draw constant block bound at a dynamic offset. It carries the
// draw's compact instance index, the cascade being rendered (shadow pass only) and the constant
// fallback of every material channel that is not texture backed.
type GPUDrawConstants struct {
	InstanceIndex uint32     // offset  0
	CascadeIndex  uint32     // offset  4
	_pad          [2]uint32  // offset  8
	BaseColor     [4]float32 // offset 16
	Normal        [4]float32 // offset 32
	ORM           [4]float32 // offset 48
}

// NewGPUDrawConstants builds the constants of one G-buffer draw. Texture-backed channels are left
// zero; the variant pipeline never reads them.
//
// Parameters:
//   - m: the draw's material
//   - instanceIndex: the compact index into the instance store
//
// Returns:
//   - GPUDrawConstants: the constant block
func NewGPUDrawConstants(m Material, instanceIndex uint32) GPUDrawConstants {
	dc := GPUDrawConstants{InstanceIndex: instanceIndex}
	slots := [3]*[4]float32{&dc.BaseColor, &dc.Normal, &dc.ORM}
	for _, ch := range Channels() {
		if b := Resolve(m, ch); b.Constant != nil {
			*slots[ch] = b.Constant.Value
		}
	}
	return dc
}

// Size returns the size of the GPUDrawConstants struct in bytes.
//
// Returns:
//   - int: the size of the struct in bytes (64)
func (g *GPUDrawConstants) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPUDrawConstants struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 64-byte buffer ready for GPU upload
func (g *GPUDrawConstants) Marshal() []byte {
	buf := make([]byte, g.Size())
	g.MarshalInto(buf)
	return buf
}

// MarshalInto serializes into buf, which must hold at least 64 bytes.
func (g *GPUDrawConstants) MarshalInto(buf []byte) {
	binary.LittleEndian.PutUint32(buf[0:4], g.InstanceIndex)
	binary.LittleEndian.PutUint32(buf[4:8], g.CascadeIndex)
	binary.LittleEndian.PutUint32(buf[8:12], 0)
	binary.LittleEndian.PutUint32(buf[12:16], 0)
	for i, v := range [3][4]float32{g.BaseColor, g.Normal, g.ORM} {
		off := 16 + i*16
		for j := range 4 {
			binary.LittleEndian.PutUint32(buf[off+j*4:], math.Float32bits(v[j]))
		}
	}
}
