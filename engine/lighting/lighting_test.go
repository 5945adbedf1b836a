package lighting

import (
	"context"
	"testing"

	"github.com/Carmen-Shannon/oxy-deferred/common"
	"github.com/Carmen-Shannon/oxy-deferred/config"
	"github.com/Carmen-Shannon/oxy-deferred/engine/light"
	"github.com/Carmen-Shannon/oxy-deferred/engine/shadow"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const viewportSize = 64

var sun = light.Params{
	Direction:        mgl32.Vec3{0, -1, 0},
	Color:            mgl32.Vec3{1, 1, 1},
	Intensity:        1,
	AmbientColor:     mgl32.Vec3{1, 1, 1},
	AmbientIntensity: 0.1,
}

type testCamera struct {
	view, proj mgl32.Mat4
}

func newTestCamera() testCamera {
	return testCamera{
		view: mgl32.LookAtV(mgl32.Vec3{0, 10, 10}, mgl32.Vec3{}, mgl32.Vec3{0, 1, 0}),
		proj: common.Perspective(mgl32.DegToRad(60), 1, 0.1, 100),
	}
}

func (c testCamera) viewProj() mgl32.Mat4 {
	return c.proj.Mul4(c.view)
}

// groundHit intersects the ray through a pixel center with the y = 0 plane and returns the hit and
// its G-buffer depth.
func (c testCamera) groundHit(x, y int) (mgl32.Vec3, float32) {
	uv := mgl32.Vec2{(float32(x) + 0.5) / viewportSize, (float32(y) + 0.5) / viewportSize}
	near := ReconstructWorldPosition(c.view.Inv(), c.proj.Inv(), uv, 0)
	far := ReconstructWorldPosition(c.view.Inv(), c.proj.Inv(), uv, 1)
	t := near.Y() / (near.Y() - far.Y())
	hit := near.Add(far.Sub(near).Mul(t))
	return hit, common.Project(c.viewProj(), hit).Z()
}

// pixelOf returns the pixel containing the projection of a world point.
func (c testCamera) pixelOf(p mgl32.Vec3) (int, int) {
	ndc := common.Project(c.viewProj(), p)
	u, v := shadow.NDCToUV(ndc.X(), ndc.Y())
	return int(u * viewportSize), int(v * viewportSize)
}

// newScene fits cascades to the camera and rasterizes the ground and a 2x2 roof at y = 2 into
// every cascade.
func newScene(t *testing.T, cam testCamera) *Scene {
	t.Helper()
	cfg := config.Default()
	cfg.Cascades.Resolutions = []int{256, 256, 256, 256}
	calc, err := shadow.NewCalculator(shadow.WithConfig(cfg))
	require.NoError(t, err)
	cascades, err := calc.Compute(shadow.CameraView{View: cam.view, Projection: cam.proj, Near: 0.1, Far: 100}, sun.Direction)
	require.NoError(t, err)

	quads := [][4]mgl32.Vec3{
		{{-50, 0, -50}, {50, 0, -50}, {50, 0, 50}, {-50, 0, 50}},
		{{-1, 2, -1}, {1, 2, -1}, {1, 2, 1}, {-1, 2, 1}},
	}
	maps := make([]shadow.DepthMap, len(cascades))
	for i, c := range cascades {
		img := shadow.NewDepthImage(c.Resolution)
		for _, q := range quads {
			img.RasterizeTriangle(c.ViewProj, q[0], q[1], q[2])
			img.RasterizeTriangle(c.ViewProj, q[0], q[2], q[3])
		}
		maps[i] = img
	}
	return &Scene{
		View:       cam.view,
		InvView:    cam.view.Inv(),
		InvProj:    cam.proj.Inv(),
		Light:      sun,
		Cascades:   cascades,
		ShadowMaps: maps,
		FadeStart:  cfg.Shadow.GrazingFadeStart,
		FadeEnd:    cfg.Shadow.GrazingFadeEnd,
	}
}

func TestReconstructWorldPositionRoundTrip(t *testing.T) {
	cam := newTestCamera()
	for _, p := range []mgl32.Vec3{{0, 0, 0}, {3, 1, -4}, {-2, 0.5, 6}} {
		ndc := common.Project(cam.viewProj(), p)
		u, v := shadow.NDCToUV(ndc.X(), ndc.Y())
		got := ReconstructWorldPosition(cam.view.Inv(), cam.proj.Inv(), mgl32.Vec2{u, v}, ndc.Z())
		assert.InDelta(t, 0, got.Sub(p).Len(), 1e-3, "point %v", p)
	}
}

func TestViewDepthIsPositiveInFront(t *testing.T) {
	view := mgl32.LookAtV(mgl32.Vec3{0, 0, 5}, mgl32.Vec3{}, mgl32.Vec3{0, 1, 0})
	assert.InDelta(t, 5, ViewDepth(view, mgl32.Vec3{}), 1e-5)
	assert.InDelta(t, 7, ViewDepth(view, mgl32.Vec3{1, 1, -2}), 1e-5)
}

func TestShadeLitLambert(t *testing.T) {
	p := sun
	p.AmbientIntensity = 0
	p.Color = mgl32.Vec3{1, 0.5, 0.25}
	p.Intensity = 2
	p.Direction = mgl32.Vec3{0, -1, -1}.Normalize()

	albedo := mgl32.Vec3{0.5, 0.5, 1}
	got := Shade(albedo, mgl32.Vec3{0, 1, 0}, 0, p)
	nDotL := float32(1 / 1.4142135)
	assert.InDelta(t, 0.5*1*2*nDotL, got.X(), 1e-5)
	assert.InDelta(t, 0.5*0.5*2*nDotL, got.Y(), 1e-5)
	assert.InDelta(t, 1*0.25*2*nDotL, got.Z(), 1e-5)
}

func TestShadeShadowedLeavesAmbient(t *testing.T) {
	albedo := mgl32.Vec3{0.8, 0.6, 0.4}
	got := Shade(albedo, mgl32.Vec3{0, 1, 0}, 1, sun)
	assert.InDelta(t, 0, got.Sub(albedo.Mul(0.1)).Len(), 1e-6)

	backFacing := Shade(albedo, mgl32.Vec3{0, -1, 0}, 0, sun)
	assert.InDelta(t, 0, backFacing.Sub(albedo.Mul(0.1)).Len(), 1e-6)
}

func TestGrazingFade(t *testing.T) {
	assert.Equal(t, float32(0), GrazingFade(0, 0, 0.15))
	assert.Equal(t, float32(1), GrazingFade(0.5, 0, 0.15))
	mid := GrazingFade(0.075, 0, 0.15)
	assert.InDelta(t, 0.5, mid, 1e-5)
}

func TestShadowFactorOutsideCascadeIsLit(t *testing.T) {
	c := shadow.Cascade{
		ViewProj:   common.Ortho(-1, 1, -1, 1, 0, 10),
		Resolution: 16,
		PCFRadius:  1,
	}
	m := shadow.NewDepthImage(16)
	m.Clear(0)
	assert.Equal(t, float32(0), ShadowFactor(c, m, mgl32.Vec3{5, 0, -1}, mgl32.Vec3{0, 0, 1}))
	assert.Equal(t, float32(1), ShadowFactor(c, m, mgl32.Vec3{0, 0, -1}, mgl32.Vec3{0, 0, 1}))
}

func TestResolvePixelShadowsGroundUnderOccluder(t *testing.T) {
	cam := newTestCamera()
	s := newScene(t, cam)
	albedo := mgl32.Vec3{0.5, 0.5, 0.5}
	up := mgl32.Vec3{0, 1, 0}

	g := NewGBuffer(viewportSize, viewportSize)
	sx, sy := cam.pixelOf(mgl32.Vec3{})
	hit, depth := cam.groundHit(sx, sy)
	require.Less(t, hit.Len(), float32(0.5))
	g.Set(sx, sy, albedo, up, depth)

	lx, ly := cam.pixelOf(mgl32.Vec3{5, 0, 0})
	_, depth = cam.groundHit(lx, ly)
	g.Set(lx, ly, albedo, up, depth)

	shadowed, ok := ResolvePixel(s, g, sx, sy)
	require.True(t, ok)
	assert.InDelta(t, 0.05, shadowed.X(), 1e-4, "only ambient reaches the ground below the roof")
	assert.Equal(t, float32(1), shadowed.W())

	lit, ok := ResolvePixel(s, g, lx, ly)
	require.True(t, ok)
	assert.InDelta(t, 0.55, lit.X(), 1e-3, "open ground receives full diffuse without acne")

	_, ok = ResolvePixel(s, g, 0, 0)
	assert.False(t, ok, "cleared pixels are discarded")
}

func TestResolveFillsDiscardedPixelsWithClearColor(t *testing.T) {
	cam := newTestCamera()
	s := newScene(t, cam)
	g := NewGBuffer(viewportSize, viewportSize)
	x, y := cam.pixelOf(mgl32.Vec3{5, 0, 0})
	_, depth := cam.groundHit(x, y)
	g.Set(x, y, mgl32.Vec3{1, 1, 1}, mgl32.Vec3{0, 1, 0}, depth)

	clear := mgl32.Vec4{0.1, 0.2, 0.3, 1}
	img, err := Resolve(context.Background(), s, g, clear)
	require.NoError(t, err)
	require.Len(t, img, viewportSize*viewportSize)
	assert.Equal(t, clear, img[0])
	assert.InDelta(t, 1.1, img[y*viewportSize+x].X(), 1e-3)

	s.ShadowMaps = s.ShadowMaps[:1]
	_, err = Resolve(context.Background(), s, g, clear)
	assert.Error(t, err)
}

func TestResolvePixelBeyondLastSplitIsLit(t *testing.T) {
	cam := testCamera{
		view: mgl32.LookAtV(mgl32.Vec3{0, 10, 0}, mgl32.Vec3{0, 10, -1}, mgl32.Vec3{0, 1, 0}),
		proj: common.Perspective(mgl32.DegToRad(60), 1, 0.1, 300),
	}
	cfg := config.Default()
	cfg.Cascades.Resolutions = []int{256, 256, 256, 256}
	calc, err := shadow.NewCalculator(shadow.WithConfig(cfg))
	require.NoError(t, err)
	cascades, err := calc.Compute(shadow.CameraView{View: cam.view, Projection: cam.proj, Near: 0.1, Far: 300}, sun.Direction)
	require.NoError(t, err)
	last := cascades[len(cascades)-1].SplitFar
	require.InDelta(t, cfg.Cascades.ShadowDistance, last, 1e-3)

	// every cascade is fully occluded
	maps := make([]shadow.DepthMap, len(cascades))
	for i, c := range cascades {
		img := shadow.NewDepthImage(c.Resolution)
		img.Clear(0)
		maps[i] = img
	}
	s := &Scene{
		View:       cam.view,
		InvView:    cam.view.Inv(),
		InvProj:    cam.proj.Inv(),
		Light:      sun,
		Cascades:   cascades,
		ShadowMaps: maps,
		FadeStart:  cfg.Shadow.GrazingFadeStart,
		FadeEnd:    cfg.Shadow.GrazingFadeEnd,
	}

	up := mgl32.Vec3{0, 1, 0}
	shade := func(viewDepth float32) (mgl32.Vec4, float32) {
		g := NewGBuffer(viewportSize, viewportSize)
		depth := common.Project(cam.viewProj(), mgl32.Vec3{0, 10, -viewDepth}).Z()
		g.Set(viewportSize/2, viewportSize/2, mgl32.Vec3{1, 1, 1}, up, depth)
		c, ok := ResolvePixel(s, g, viewportSize/2, viewportSize/2)
		require.True(t, ok)
		world := ReconstructWorldPosition(s.InvView, s.InvProj, mgl32.Vec2{0.5, 0.5}, depth)
		return c, ViewDepth(s.View, world)
	}

	inside, d := shade(50)
	require.Less(t, d, last)
	assert.InDelta(t, 0.1, inside.X(), 1e-3, "occluded inside the last cascade")

	for _, viewDepth := range []float32{last + 0.5, 110, 125, 250} {
		c, d := shade(viewDepth)
		require.GreaterOrEqual(t, d, last)
		assert.InDelta(t, 1.1, c.X(), 1e-3, "view depth %v is past the last split", viewDepth)
	}
}
