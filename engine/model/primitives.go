package model

import (
	"github.com/go-gl/mathgl/mgl32"
)

// face is one quad of a primitive: a normal and the in-plane axis pointing "up" in texture space.
type face struct {
	normal mgl32.Vec3
	up     mgl32.Vec3
}

var cubeFaces = []face{
	{normal: mgl32.Vec3{1, 0, 0}, up: mgl32.Vec3{0, 1, 0}},
	{normal: mgl32.Vec3{-1, 0, 0}, up: mgl32.Vec3{0, 1, 0}},
	{normal: mgl32.Vec3{0, 1, 0}, up: mgl32.Vec3{0, 0, -1}},
	{normal: mgl32.Vec3{0, -1, 0}, up: mgl32.Vec3{0, 0, 1}},
	{normal: mgl32.Vec3{0, 0, 1}, up: mgl32.Vec3{0, 1, 0}},
	{normal: mgl32.Vec3{0, 0, -1}, up: mgl32.Vec3{0, 1, 0}},
}

// appendQuad appends a counter-clockwise (seen from the normal side) quad of half size h whose
// center lies at center.
func appendQuad(vertices []GPUVertex, indices []uint32, center mgl32.Vec3, f face, h float32) ([]GPUVertex, []uint32) {
	right := f.up.Cross(f.normal)
	base := uint32(len(vertices))
	corners := [4][2]float32{{-1, -1}, {1, -1}, {1, 1}, {-1, 1}}
	for _, c := range corners {
		p := center.Add(right.Mul(c[0] * h)).Add(f.up.Mul(c[1] * h))
		vertices = append(vertices, GPUVertex{
			Position: p,
			Normal:   f.normal,
			TexCoord: [2]float32{(c[0] + 1) / 2, (1 - c[1]) / 2},
			Tangent:  [4]float32{right[0], right[1], right[2], 1},
		})
	}
	indices = append(indices, base, base+1, base+2, base, base+2, base+3)
	return vertices, indices
}

// NewPlane builds a size x size ground plane in the XZ plane facing +Y.
//
// Parameters:
//   - size: edge length
//   - options: additional model options
//
// Returns:
//   - Model: the plane model
func NewPlane(size float32, options ...ModelBuilderOption) Model {
	vertices, indices := appendQuad(nil, nil, mgl32.Vec3{}, cubeFaces[2], size/2)
	return NewModel(append([]ModelBuilderOption{WithName("plane"), WithGeometry(vertices, indices)}, options...)...)
}

// NewCube builds an axis-aligned cube centred on the origin with flat per-face normals.
//
// Parameters:
//   - size: edge length
//   - options: additional model options
//
// Returns:
//   - Model: the cube model
func NewCube(size float32, options ...ModelBuilderOption) Model {
	var vertices []GPUVertex
	var indices []uint32
	h := size / 2
	for _, f := range cubeFaces {
		vertices, indices = appendQuad(vertices, indices, f.normal.Mul(h), f, h)
	}
	return NewModel(append([]ModelBuilderOption{WithName("cube"), WithGeometry(vertices, indices)}, options...)...)
}
