package shadow

import (
	"math/rand/v2"
	"testing"

	"github.com/Carmen-Shannon/oxy-deferred/common"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShadowFactorOutOfBoundsIsUnshadowed(t *testing.T) {
	// every texel occludes, so any in-bounds sample would be fully shadowed
	m := NewDepthImage(16)
	m.Clear(0)

	cases := []struct {
		name  string
		uv    mgl32.Vec2
		depth float32
	}{
		{"u below zero", mgl32.Vec2{-0.0001, 0.5}, 0.5},
		{"u above one", mgl32.Vec2{1.0001, 0.5}, 0.5},
		{"v below zero", mgl32.Vec2{0.5, -0.0001}, 0.5},
		{"v above one", mgl32.Vec2{0.5, 1.0001}, 0.5},
		{"depth below zero", mgl32.Vec2{0.5, 0.5}, -0.0001},
		{"depth above one", mgl32.Vec2{0.5, 0.5}, 1.0001},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, float32(0), ShadowFactor(m, tc.uv, tc.depth, 0, 2))
		})
	}
}

func TestShadowFactorClosedBoundaryIsSampled(t *testing.T) {
	m := NewDepthImage(16)
	m.Clear(0)

	for _, uv := range []mgl32.Vec2{{0, 0}, {1, 1}, {0, 1}, {1, 0}} {
		assert.Equal(t, float32(1), ShadowFactor(m, uv, 0.5, 0, 1), "uv %v", uv)
	}
	// compare depth 1 against a cleared map: nothing is closer than the far plane
	clear := NewDepthImage(16)
	assert.Equal(t, float32(0), ShadowFactor(clear, mgl32.Vec2{0.5, 0.5}, 1, 0.001, 1))
	assert.Equal(t, float32(0), ShadowFactor(clear, mgl32.Vec2{0.5, 0.5}, 0, 0, 1))
}

func TestShadowFactorRangeForEveryKernel(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	m := NewDepthImage(32)
	for y := range 32 {
		for x := range 32 {
			m.Set(x, y, rng.Float32())
		}
	}

	for radius := 0; radius <= 8; radius++ {
		for range 200 {
			uv := mgl32.Vec2{rng.Float32(), rng.Float32()}
			s := ShadowFactor(m, uv, rng.Float32(), 0.001, radius)
			require.GreaterOrEqual(t, s, float32(0))
			require.LessOrEqual(t, s, float32(1))
		}
	}
}

func TestShadowFactorPartialKernel(t *testing.T) {
	// left half of the map occludes at depth 0.2
	m := NewDepthImage(8)
	for y := range 8 {
		for x := range 4 {
			m.Set(x, y, 0.2)
		}
	}
	// centered on texel (4, 4): a 3x3 kernel covers columns 3..5, one of which occludes
	uv := mgl32.Vec2{4.5 / 8, 4.5 / 8}
	assert.InDelta(t, 1.0/3.0, ShadowFactor(m, uv, 0.5, 0, 1), 1e-6)
	assert.Equal(t, float32(0), ShadowFactor(m, uv, 0.5, 0, 0))
	// the occluder is behind the sample
	assert.Equal(t, float32(0), ShadowFactor(m, uv, 0.1, 0, 1))
}

func TestShadowFactorBiasPreventsSelfShadowing(t *testing.T) {
	m := NewDepthImage(8)
	m.Clear(0.5)
	uv := mgl32.Vec2{0.5, 0.5}
	assert.Equal(t, float32(1), ShadowFactor(m, uv, 0.5, 0, 1))
	assert.Equal(t, float32(0), ShadowFactor(m, uv, 0.5, 0.001, 1))
}

func TestRasterizeTriangle(t *testing.T) {
	// light looking straight down at the XZ plane covering [-10, 10]
	view := mgl32.LookAtV(mgl32.Vec3{0, 20, 0}, mgl32.Vec3{0, 0, 0}, mgl32.Vec3{1, 0, 0})
	proj := common.Ortho(-10, 10, -10, 10, 0, 40)
	vp := proj.Mul4(view)

	m := NewDepthImage(64)
	a := mgl32.Vec3{-5, 2, -5}
	b := mgl32.Vec3{5, 2, -5}
	c := mgl32.Vec3{5, 2, 5}
	d := mgl32.Vec3{-5, 2, 5}
	m.RasterizeTriangle(vp, a, b, c)
	m.RasterizeTriangle(vp, a, c, d)

	center := common.Project(vp, mgl32.Vec3{0, 2, 0})
	u, v := NDCToUV(center.X(), center.Y())
	x, y := int(u*64), int(v*64)
	assert.InDelta(t, 18.0/40.0, m.Depth(x, y), 1e-4)
	assert.Equal(t, float32(1), m.Depth(0, 0))

	// a closer triangle wins the depth test, a farther one does not
	m.RasterizeTriangle(vp, mgl32.Vec3{-1, 6, -1}, mgl32.Vec3{1, 6, -1}, mgl32.Vec3{0, 6, 1})
	m.RasterizeTriangle(vp, mgl32.Vec3{-1, 0, -1}, mgl32.Vec3{1, 0, -1}, mgl32.Vec3{0, 0, 1})
	assert.InDelta(t, 14.0/40.0, m.Depth(x, y), 1e-4)
}
