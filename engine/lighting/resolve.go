package lighting

import (
	"context"
	"fmt"
	"runtime"

	"github.com/Carmen-Shannon/oxy-deferred/engine/light"
	"github.com/Carmen-Shannon/oxy-deferred/engine/shadow"
	"github.com/go-gl/mathgl/mgl32"
	"golang.org/x/sync/errgroup"
)

// GBuffer is a host copy of the G-buffer, row-major with the origin at the top-left pixel.
type GBuffer struct {
	Width  int
	Height int
	Albedo []mgl32.Vec3
	Normal []mgl32.Vec3
	Depth  []float32
}

// NewGBuffer allocates a G-buffer with every depth cleared to FarSentinel.
func NewGBuffer(width, height int) *GBuffer {
	g := &GBuffer{
		Width:  width,
		Height: height,
		Albedo: make([]mgl32.Vec3, width*height),
		Normal: make([]mgl32.Vec3, width*height),
		Depth:  make([]float32, width*height),
	}
	for i := range g.Depth {
		g.Depth[i] = FarSentinel
	}
	return g
}

// Set writes one G-buffer sample.
func (g *GBuffer) Set(x, y int, albedo, normal mgl32.Vec3, depth float32) {
	i := y*g.Width + x
	g.Albedo[i], g.Normal[i], g.Depth[i] = albedo, normal, depth
}

// Scene is the per-frame state the resolve reads besides the G-buffer.
type Scene struct {
	View    mgl32.Mat4
	InvView mgl32.Mat4
	InvProj mgl32.Mat4
	Light   light.Params
	// Cascades are ordered by SplitFar; ShadowMaps holds one depth map per cascade.
	Cascades   []shadow.Cascade
	ShadowMaps []shadow.DepthMap
	FadeStart  float32
	FadeEnd    float32
}

func (s *Scene) splits() []float32 {
	splits := make([]float32, len(s.Cascades))
	for i, c := range s.Cascades {
		splits[i] = c.SplitFar
	}
	return splits
}

// ResolvePixel shades one G-buffer pixel.
//
// Parameters:
//   - s: the frame state
//   - g: the G-buffer
//   - x, y: the pixel
//
// Returns:
//   - mgl32.Vec4: the output color with alpha 1
//   - bool: false when the pixel holds no geometry and is discarded
func ResolvePixel(s *Scene, g *GBuffer, x, y int) (mgl32.Vec4, bool) {
	return resolvePixel(s, s.splits(), g, x, y)
}

func resolvePixel(s *Scene, splits []float32, g *GBuffer, x, y int) (mgl32.Vec4, bool) {
	i := y*g.Width + x
	depth := g.Depth[i]
	if depth >= FarSentinel {
		return mgl32.Vec4{}, false
	}
	n := g.Normal[i].Normalize()
	uv := mgl32.Vec2{(float32(x) + 0.5) / float32(g.Width), (float32(y) + 0.5) / float32(g.Height)}
	world := ReconstructWorldPosition(s.InvView, s.InvProj, uv, depth)

	var shadowFactor float32
	l := s.Light.Direction.Normalize().Mul(-1)
	viewDepth := ViewDepth(s.View, world)
	if nDotL := n.Dot(l); nDotL > 0 && len(s.Cascades) > 0 && viewDepth < splits[len(splits)-1] {
		ci := shadow.SelectCascade(viewDepth, splits)
		shadowFactor = ShadowFactor(s.Cascades[ci], s.ShadowMaps[ci], world, n) * GrazingFade(nDotL, s.FadeStart, s.FadeEnd)
	}
	return Shade(g.Albedo[i], n, shadowFactor, s.Light).Vec4(1), true
}

// Resolve shades a whole G-buffer, spreading rows across the available CPUs. Discarded pixels keep
// the clear color.
//
// Parameters:
//   - ctx: cancels the resolve between rows
//   - s: the frame state
//   - g: the G-buffer
//   - clear: the color of discarded pixels
//
// Returns:
//   - []mgl32.Vec4: the image, row-major
//   - error: a mismatch between cascades and shadow maps, or the context error
func Resolve(ctx context.Context, s *Scene, g *GBuffer, clear mgl32.Vec4) ([]mgl32.Vec4, error) {
	if len(s.Cascades) != len(s.ShadowMaps) {
		return nil, fmt.Errorf("lighting: %d cascades with %d shadow maps", len(s.Cascades), len(s.ShadowMaps))
	}
	splits := s.splits()
	out := make([]mgl32.Vec4, g.Width*g.Height)

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(runtime.GOMAXPROCS(0))
	for y := range g.Height {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			for x := range g.Width {
				c, ok := resolvePixel(s, splits, g, x, y)
				if !ok {
					c = clear
				}
				out[y*g.Width+x] = c
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, fmt.Errorf("lighting: resolve: %w", err)
	}
	return out, nil
}
