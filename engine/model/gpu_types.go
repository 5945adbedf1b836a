package model

import (
	_ "embed"
	"encoding/binary"
	"math"
	"unsafe"

	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/gpu"
)

// GPUVertexSource is the canonical WGSL definition of the VertexInput struct shared by the
// G-buffer and shadow pipelines. Matches GPUVertex layout exactly (48 bytes).
//
//go:embed assets/vertex.wgsl
var GPUVertexSource string

// GPUVertex is the GPU-aligned representation of a single mesh vertex.
// Matches the WGSL VertexInput struct layout exactly (see GPUVertexSource).
type GPUVertex struct {
	Position [3]float32 // offset  0: model-space position
	Normal   [3]float32 // offset 12: model-space normal
	TexCoord [2]float32 // offset 24: UV texture coordinate
	Tangent  [4]float32 // offset 32: tangent (xyz) + handedness (w) for normal mapping
}

// Size returns the size of the GPUVertex struct in bytes.
//
// Returns:
//   - int: the size of the struct in bytes (48)
func (g *GPUVertex) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPUVertex struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 48-byte buffer ready for GPU upload
func (g *GPUVertex) Marshal() []byte {
	buf := make([]byte, g.Size())
	fields := [12]float32{
		g.Position[0], g.Position[1], g.Position[2],
		g.Normal[0], g.Normal[1], g.Normal[2],
		g.TexCoord[0], g.TexCoord[1],
		g.Tangent[0], g.Tangent[1], g.Tangent[2], g.Tangent[3],
	}
	for i, f := range fields {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// VertexLayout returns the vertex buffer layout matching GPUVertex and the WGSL VertexInput locations.
//
// Returns:
//   - gpu.VertexLayout: the interleaved layout
func VertexLayout() gpu.VertexLayout {
	return gpu.VertexLayout{
		Stride: 48,
		Attributes: []gpu.VertexAttribute{
			{Format: gpu.VertexFormatFloat32x3, Offset: 0, Location: 0},
			{Format: gpu.VertexFormatFloat32x3, Offset: 12, Location: 1},
			{Format: gpu.VertexFormatFloat32x2, Offset: 24, Location: 2},
			{Format: gpu.VertexFormatFloat32x4, Offset: 32, Location: 3},
		},
	}
}

// ComputeBoundingRadius calculates the bounding sphere radius of a vertex set as the maximum
// distance from the model origin.
//
// Parameters:
//   - vertices: the vertex data to compute the bounding radius from
//
// Returns:
//   - float32: the maximum distance from the origin
func ComputeBoundingRadius(vertices []GPUVertex) float32 {
	var maxDistSq float32
	for _, v := range vertices {
		p := v.Position
		distSq := p[0]*p[0] + p[1]*p[1] + p[2]*p[2]
		if distSq > maxDistSq {
			maxDistSq = distSq
		}
	}
	return float32(math.Sqrt(float64(maxDistSq)))
}
