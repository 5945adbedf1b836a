package model

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCubeWindingMatchesNormals(t *testing.T) {
	c := NewCube(2)
	require.Len(t, c.Vertices(), 24)
	require.Equal(t, 36, c.IndexCount())
	assert.InDelta(t, math.Sqrt(3), c.BoundingRadius(), 1e-5)

	v := c.Vertices()
	idx := c.Indices()
	for i := 0; i < len(idx); i += 3 {
		a, b, d := mgl32.Vec3(v[idx[i]].Position), mgl32.Vec3(v[idx[i+1]].Position), mgl32.Vec3(v[idx[i+2]].Position)
		geo := b.Sub(a).Cross(d.Sub(a)).Normalize()
		n := mgl32.Vec3(v[idx[i]].Normal)
		assert.InDelta(t, 1, geo.Dot(n), 1e-5, "triangle %d", i/3)
		// faces are offset along their normal
		assert.InDelta(t, 1, a.Dot(n), 1e-5)
	}
}

func TestPlaneFacesUp(t *testing.T) {
	p := NewPlane(10)
	assert.Equal(t, "plane", p.Name())
	for _, v := range p.Vertices() {
		assert.Equal(t, [3]float32{0, 1, 0}, v.Normal)
		assert.Equal(t, float32(0), v.Position[1])
		assert.InDelta(t, 5, math.Abs(float64(v.Position[0])), 1e-6)
	}
	assert.Equal(t, "plane", p.Name())
	assert.NotNil(t, p.Material())
}

func TestVertexAndIndexData(t *testing.T) {
	p := NewPlane(2)
	vd := p.VertexData()
	require.Len(t, vd, 4*48)
	assert.Equal(t, VertexLayout().Stride, uint64(48))

	first := p.Vertices()[0]
	assert.Equal(t, 48, first.Size())
	assert.Equal(t, first.TexCoord[1], math.Float32frombits(binary.LittleEndian.Uint32(vd[28:])))
	assert.Equal(t, first.Tangent[3], math.Float32frombits(binary.LittleEndian.Uint32(vd[44:])))

	id := p.IndexData()
	require.Len(t, id, 6*4)
	assert.Equal(t, uint32(2), binary.LittleEndian.Uint32(id[8:]))
}
