package shadow

import (
	"github.com/Carmen-Shannon/oxy-deferred/common"
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// DepthMap is a square single-cascade depth image addressed in texels.
type DepthMap interface {
	// Resolution returns the side length in texels.
	Resolution() int
	// Depth returns the stored clip-space depth at texel (x, y). Both coordinates are in range.
	Depth(x, y int) float32
}

// ShadowFactor performs the percentage-closer filter of the lighting resolve shader on the host.
// A tap is lit when the biased compare depth is less than the stored depth. The result is the
// fraction of unlit taps: 0 is fully lit, 1 is fully shadowed.
//
// Samples whose UV or compare depth fall outside [0, 1] are unshadowed and return exactly 0.
//
// Parameters:
//   - m: the cascade's depth map
//   - uv: shadow-map coordinate, origin top-left
//   - compareDepth: the sample's light clip-space depth
//   - bias: subtracted from compareDepth before comparison
//   - radius: kernel radius; the kernel is (2*radius+1) texels square
//
// Returns:
//   - float32: the shadow factor in [0, 1]
func ShadowFactor(m DepthMap, uv mgl32.Vec2, compareDepth, bias float32, radius int) float32 {
	if !InShadowBounds(uv, compareDepth) {
		return 0
	}
	res := m.Resolution()
	cx := common.Clamp(int(math32.Floor(uv.X()*float32(res))), 0, res-1)
	cy := common.Clamp(int(math32.Floor(uv.Y()*float32(res))), 0, res-1)
	ref := compareDepth - bias

	var lit, taps int
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			x := common.Clamp(cx+dx, 0, res-1)
			y := common.Clamp(cy+dy, 0, res-1)
			if ref < m.Depth(x, y) {
				lit++
			}
			taps++
		}
	}
	return 1 - float32(lit)/float32(taps)
}

// InShadowBounds reports whether a light-space sample lies inside the closed unit cube.
func InShadowBounds(uv mgl32.Vec2, depth float32) bool {
	return uv.X() >= 0 && uv.X() <= 1 &&
		uv.Y() >= 0 && uv.Y() <= 1 &&
		depth >= 0 && depth <= 1
}

// DepthImage is an in-memory DepthMap, cleared to the far plane.
type DepthImage struct {
	res    int
	depths []float32
}

var _ DepthMap = &DepthImage{}

// NewDepthImage allocates a resolution x resolution depth image cleared to 1.
//
// Parameters:
//   - resolution: side length in texels
//
// Returns:
//   - *DepthImage: the cleared image
func NewDepthImage(resolution int) *DepthImage {
	d := &DepthImage{res: resolution, depths: make([]float32, resolution*resolution)}
	d.Clear(1)
	return d
}

func (d *DepthImage) Resolution() int {
	return d.res
}

func (d *DepthImage) Depth(x, y int) float32 {
	return d.depths[y*d.res+x]
}

// Set stores depth at texel (x, y).
func (d *DepthImage) Set(x, y int, depth float32) {
	d.depths[y*d.res+x] = depth
}

// Clear fills every texel with depth.
func (d *DepthImage) Clear(depth float32) {
	for i := range d.depths {
		d.depths[i] = depth
	}
}

// RasterizeTriangle renders a world-space triangle through a cascade transform with a less-than
// depth test, the way the shadow depth pass fills a cascade layer. Texel centers are sampled and
// both windings are drawn.
//
// Parameters:
//   - viewProj: the cascade's light view-projection
//   - a, b, c: triangle vertices in world space
func (d *DepthImage) RasterizeTriangle(viewProj mgl32.Mat4, a, b, c mgl32.Vec3) {
	toTexel := func(p mgl32.Vec3) mgl32.Vec3 {
		ndc := common.Project(viewProj, p)
		u, v := NDCToUV(ndc.X(), ndc.Y())
		return mgl32.Vec3{u * float32(d.res), v * float32(d.res), ndc.Z()}
	}
	p0, p1, p2 := toTexel(a), toTexel(b), toTexel(c)

	area := edge(p0, p1, p2)
	if math32.Abs(area) < 1e-12 {
		return
	}
	minX := common.Clamp(int(math32.Floor(min(p0.X(), p1.X(), p2.X()))), 0, d.res-1)
	maxX := common.Clamp(int(math32.Ceil(max(p0.X(), p1.X(), p2.X()))), 0, d.res-1)
	minY := common.Clamp(int(math32.Floor(min(p0.Y(), p1.Y(), p2.Y()))), 0, d.res-1)
	maxY := common.Clamp(int(math32.Ceil(max(p0.Y(), p1.Y(), p2.Y()))), 0, d.res-1)

	for y := minY; y <= maxY; y++ {
		for x := minX; x <= maxX; x++ {
			p := mgl32.Vec3{float32(x) + 0.5, float32(y) + 0.5, 0}
			w0 := edge(p1, p2, p) / area
			w1 := edge(p2, p0, p) / area
			w2 := edge(p0, p1, p) / area
			if w0 < 0 || w1 < 0 || w2 < 0 {
				continue
			}
			z := w0*p0.Z() + w1*p1.Z() + w2*p2.Z()
			if z < 0 || z > 1 {
				continue
			}
			if z < d.Depth(x, y) {
				d.Set(x, y, z)
			}
		}
	}
}

func edge(a, b, p mgl32.Vec3) float32 {
	return (b.X()-a.X())*(p.Y()-a.Y()) - (b.Y()-a.Y())*(p.X()-a.X())
}

// NDCToUV maps light clip-space x, y to shadow-map UV with the origin at the top-left texel,
// matching WebGPU framebuffer orientation.
func NDCToUV(x, y float32) (float32, float32) {
	return x*0.5 + 0.5, 0.5 - y*0.5
}
