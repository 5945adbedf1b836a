package instance

import (
	_ "embed"
	"encoding/binary"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// GPUInstanceDataSize is the byte size and array stride of GPUInstanceData.
const GPUInstanceDataSize = 112

// GPUInstanceDataSource is the canonical WGSL definition of the InstanceData struct.
// Matches GPUInstanceData layout exactly (112 bytes, storage aligned).
//
//go:embed assets/instance_data.wgsl
var GPUInstanceDataSource string

// GPUInstanceData is one element of the instance storage buffer.
//
// Layout:
//
//	mat4x4<f32> model    (64 bytes, offset 0)
//	mat3x3<f32> normal   (48 bytes, offset 64; each column is a vec3 padded to 16 bytes)
type GPUInstanceData struct {
	Model  mgl32.Mat4
	Normal mgl32.Mat3
}

// Size returns the size of the GPU representation in bytes. The Go struct is smaller because
// mat3x3 columns are padded on the GPU.
//
// Returns:
//   - int: the struct size in bytes (112)
func (g *GPUInstanceData) Size() int {
	return GPUInstanceDataSize
}

// Marshal serializes the GPUInstanceData struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 112-byte buffer ready for GPU upload
func (g *GPUInstanceData) Marshal() []byte {
	buf := make([]byte, GPUInstanceDataSize)
	g.MarshalInto(buf)
	return buf
}

// MarshalInto serializes into buf, which must hold at least 112 bytes.
func (g *GPUInstanceData) MarshalInto(buf []byte) {
	for i := 0; i < 16; i++ {
		binary.LittleEndian.PutUint32(buf[i*4:(i+1)*4], math.Float32bits(g.Model[i]))
	}
	for col := 0; col < 3; col++ {
		off := 64 + col*16
		for row := 0; row < 3; row++ {
			binary.LittleEndian.PutUint32(buf[off+row*4:], math.Float32bits(g.Normal[col*3+row]))
		}
		binary.LittleEndian.PutUint32(buf[off+12:], 0) // column padding
	}
}
