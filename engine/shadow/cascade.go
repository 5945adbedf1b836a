// Package shadow computes cascaded shadow map partitions for a single directional light and
// mirrors the shadow-map filtering performed by the lighting resolve shader.
package shadow

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-deferred/common"
	"github.com/Carmen-Shannon/oxy-deferred/config"
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

var (
	// ErrZeroLightDirection is returned when the light direction has no length or is not finite.
	ErrZeroLightDirection = errors.New("shadow: light direction is zero or not finite")
	// ErrDegenerateCascade is returned instead of a cascade whose matrix would contain NaN or Inf.
	ErrDegenerateCascade = errors.New("shadow: degenerate cascade matrix")
	// ErrInvalidCascadeCount is returned by NewCalculator for counts outside [3, config.MaxCascades].
	ErrInvalidCascadeCount = errors.New("shadow: invalid cascade count")
	// ErrInvalidDepthRange is returned when the camera's near and far planes cannot be split.
	ErrInvalidDepthRange = errors.New("shadow: invalid camera depth range")
)

// alternateUpThreshold is the |dir.y| above which +X replaces +Y as the light's up reference.
const alternateUpThreshold = 0.99

// CameraView is the camera state the cascades are fitted to.
type CameraView struct {
	View       mgl32.Mat4
	Projection mgl32.Mat4
	Near       float32
	Far        float32
}

// Cascade is one partition of the camera frustum together with the light-space transform that
// covers it. Cascades are always produced in order of strictly increasing SplitFar.
type Cascade struct {
	Index int
	// ViewProj maps world space into the cascade's light clip space (x, y in [-1, 1], z in [0, 1]).
	ViewProj mgl32.Mat4
	// SplitNear and SplitFar bound the cascade in camera view depth.
	SplitNear float32
	SplitFar  float32
	// Resolution is the side length in texels of the square region this cascade renders into.
	Resolution int
	// HalfExtent is half the side of the orthographic volume in world units.
	HalfExtent float32
	// TexelWorldSize is the world-space footprint of one shadow-map texel.
	TexelWorldSize float32
	// DepthBias is subtracted from the compare depth, in light clip-space depth units. It is the
	// configured world-space bias scaled by the cascade projection's depth term |proj[2][2]|, so
	// cascades with deeper volumes get a proportionally smaller clip-space bias.
	DepthBias float32
	// NormalBias is the world-space distance a sample is pushed along its normal before projection.
	NormalBias float32
	PCFRadius  int
}

// Calculator derives cascade split depths and light-space matrices from a camera and a
// directional light.
type Calculator interface {
	// Count returns the number of cascades produced per frame.
	//
	// Returns:
	//   - int: the cascade count
	Count() int

	// Splits computes the far split depth of every cascade using the practical split scheme, a
	// lambda-weighted blend of logarithmic and uniform distributions. The last split is exactly the
	// far plane after the shadow distance cap is applied.
	//
	// Parameters:
	//   - near: camera near plane distance, must be positive
	//   - far: camera far plane distance, must exceed near
	//
	// Returns:
	//   - []float32: Count() strictly increasing view depths, or nil when near/far are invalid
	Splits(near, far float32) []float32

	// Compute fits one orthographic light volume to each camera-frustum slice.
	//
	// Parameters:
	//   - view: the camera matrices and depth range
	//   - lightDir: the direction light travels, need not be normalized
	//
	// Returns:
	//   - []Cascade: Count() cascades ordered by SplitFar
	//   - error: ErrZeroLightDirection, ErrInvalidDepthRange or ErrDegenerateCascade
	Compute(view CameraView, lightDir mgl32.Vec3) ([]Cascade, error)
}

type calculatorImpl struct {
	count           int
	lambda          float32
	shadowDistance  float32
	resolutions     []int
	pcfRadius       []int
	fitMode         config.FitMode
	casterMargin    float32
	depthBias       float32
	normalBiasScale float32
}

var _ Calculator = &calculatorImpl{}

// NewCalculator creates a Calculator. Without options it uses the cascade and shadow sections of
// config.Default.
//
// Parameters:
//   - opts: builder options
//
// Returns:
//   - Calculator: the calculator
//   - error: ErrInvalidCascadeCount, or a description of an invalid option
func NewCalculator(opts ...CalculatorBuilderOption) (Calculator, error) {
	c := &calculatorImpl{}
	WithConfig(config.Default())(c)
	for _, opt := range opts {
		opt(c)
	}

	if c.count < 3 || c.count > config.MaxCascades {
		return nil, fmt.Errorf("%w: %d", ErrInvalidCascadeCount, c.count)
	}
	if len(c.resolutions) < c.count {
		return nil, fmt.Errorf("shadow: %d resolutions for %d cascades", len(c.resolutions), c.count)
	}
	if len(c.pcfRadius) < c.count {
		return nil, fmt.Errorf("shadow: %d pcf radii for %d cascades", len(c.pcfRadius), c.count)
	}
	if c.lambda < 0 || c.lambda > 1 {
		return nil, fmt.Errorf("shadow: lambda %g outside [0, 1]", c.lambda)
	}
	for i := range c.count {
		if c.resolutions[i] <= 0 {
			return nil, fmt.Errorf("shadow: cascade %d resolution %d", i, c.resolutions[i])
		}
	}
	if c.fitMode != config.FitSphere && c.fitMode != config.FitAABB {
		return nil, fmt.Errorf("shadow: unknown fit mode %q", c.fitMode)
	}
	return c, nil
}

func (c *calculatorImpl) Count() int {
	return c.count
}

func (c *calculatorImpl) Splits(near, far float32) []float32 {
	if !(near > 0) || !(far > near) || math32.IsInf(far, 0) {
		return nil
	}
	if c.shadowDistance > near && c.shadowDistance < far {
		far = c.shadowDistance
	}

	n := float32(c.count)
	splits := make([]float32, c.count)
	for i := 1; i <= c.count; i++ {
		p := float32(i) / n
		logSplit := near * math32.Pow(far/near, p)
		uniSplit := near + (far-near)*p
		splits[i-1] = c.lambda*logSplit + (1-c.lambda)*uniSplit
	}
	splits[c.count-1] = far
	return splits
}

func (c *calculatorImpl) Compute(view CameraView, lightDir mgl32.Vec3) ([]Cascade, error) {
	if !common.IsFiniteVec3(lightDir) || lightDir.Len() < 1e-6 {
		return nil, ErrZeroLightDirection
	}
	dir := lightDir.Normalize()

	splits := c.Splits(view.Near, view.Far)
	if splits == nil {
		return nil, fmt.Errorf("%w: near %g, far %g", ErrInvalidDepthRange, view.Near, view.Far)
	}

	invView := view.View.Inv()
	invProj := view.Projection.Inv()
	if view.View.Det() == 0 || view.Projection.Det() == 0 {
		return nil, fmt.Errorf("%w: camera matrices are singular", ErrDegenerateCascade)
	}

	frustum := common.ViewSpaceCorners(invProj)
	frustumNear := -frustum[0].Z()
	frustumFar := -frustum[4].Z()

	up := mgl32.Vec3{0, 1, 0}
	if math32.Abs(dir.Y()) > alternateUpThreshold {
		up = mgl32.Vec3{1, 0, 0}
	}

	cascades := make([]Cascade, c.count)
	splitNear := view.Near
	for i := range c.count {
		slice := frustum.Slice(frustumNear, frustumFar, splitNear, splits[i]).Transform(invView)
		res := c.resolutions[i]

		var lightView, lightProj mgl32.Mat4
		var halfExtent float32
		switch c.fitMode {
		case config.FitAABB:
			lightView, lightProj, halfExtent = c.fitAABB(slice, dir, up)
		default:
			lightView, lightProj, halfExtent = c.fitSphere(slice, dir, up)
		}
		vp := common.SnapToTexel(lightProj.Mul4(lightView), res)
		if !common.IsFinite(vp) || !(halfExtent > 0) {
			return nil, fmt.Errorf("%w: cascade %d", ErrDegenerateCascade, i)
		}

		texelWorldSize := 2 * halfExtent / float32(res)
		cascades[i] = Cascade{
			Index:          i,
			ViewProj:       vp,
			SplitNear:      splitNear,
			SplitFar:       splits[i],
			Resolution:     res,
			HalfExtent:     halfExtent,
			TexelWorldSize: texelWorldSize,
			DepthBias:      c.depthBias * math32.Abs(lightProj[10]),
			NormalBias:     texelWorldSize * c.normalBiasScale,
			PCFRadius:      c.pcfRadius[i],
		}
		splitNear = splits[i]
	}
	return cascades, nil
}

// fitSphere wraps the slice in a bounding sphere whose radius is rounded up to 1/16 of a world
// unit. The resulting volume is independent of camera orientation.
func (c *calculatorImpl) fitSphere(slice common.FrustumCorners, dir, up mgl32.Vec3) (mgl32.Mat4, mgl32.Mat4, float32) {
	center, radius := slice.BoundingSphere()
	radius = common.CeilTo(radius, 16)

	eye := center.Sub(dir.Mul(radius + c.casterMargin))
	lightView := mgl32.LookAtV(eye, center, up)
	proj := common.Ortho(-radius, radius, -radius, radius, 0, 2*radius+c.casterMargin)
	return lightView, proj, radius
}

// fitAABB fits the tightest light-space box around the slice, extended toward the light by the
// caster margin so occluders outside the camera frustum still reach the map.
func (c *calculatorImpl) fitAABB(slice common.FrustumCorners, dir, up mgl32.Vec3) (mgl32.Mat4, mgl32.Mat4, float32) {
	center, _ := slice.BoundingSphere()
	lightView := mgl32.LookAtV(center.Sub(dir), center, up)
	lo, hi := slice.Transform(lightView).Bounds()

	// the light looks down -Z, so the nearest corner has the largest z
	proj := common.Ortho(lo.X(), hi.X(), lo.Y(), hi.Y(), -hi.Z()-c.casterMargin, -lo.Z())
	halfExtent := math32.Max(hi.X()-lo.X(), hi.Y()-lo.Y()) / 2
	return lightView, proj, halfExtent
}

// SelectCascade returns the first cascade whose far split exceeds viewDepth. Depths at or beyond
// the last split select the last cascade; the resolve treats them as unshadowed.
//
// Parameters:
//   - viewDepth: positive distance of the sample in front of the camera
//   - splits: far split depths in increasing order
//
// Returns:
//   - int: the selected cascade index
func SelectCascade(viewDepth float32, splits []float32) int {
	for i, s := range splits {
		if viewDepth < s {
			return i
		}
	}
	return len(splits) - 1
}
