package shadow

import (
	"slices"

	"github.com/Carmen-Shannon/oxy-deferred/config"
)

// CalculatorBuilderOption is a function that configures a Calculator during construction.
type CalculatorBuilderOption func(*calculatorImpl)

// WithConfig copies every cascade and shadow setting from a configuration.
//
// Parameters:
//   - cfg: the configuration to copy
//
// Returns:
//   - CalculatorBuilderOption: a function that applies the configuration to a calculatorImpl
func WithConfig(cfg config.Config) CalculatorBuilderOption {
	return func(c *calculatorImpl) {
		c.count = cfg.Cascades.Count
		c.lambda = cfg.Cascades.Lambda
		c.shadowDistance = cfg.Cascades.ShadowDistance
		c.resolutions = slices.Clone(cfg.Cascades.Resolutions)
		c.fitMode = cfg.Cascades.FitMode
		c.casterMargin = cfg.Cascades.CasterMargin
		c.depthBias = cfg.Shadow.DepthBias
		c.normalBiasScale = cfg.Shadow.NormalBiasScale
		c.pcfRadius = slices.Clone(cfg.Shadow.PCFRadius)
	}
}

// WithCascadeCount sets the number of cascades (3 or 4).
//
// Parameters:
//   - count: the cascade count
//
// Returns:
//   - CalculatorBuilderOption: a function that applies the count to a calculatorImpl
func WithCascadeCount(count int) CalculatorBuilderOption {
	return func(c *calculatorImpl) {
		c.count = count
	}
}

// WithLambda sets the practical split blend: 0 is uniform, 1 is logarithmic.
//
// Parameters:
//   - lambda: the blend factor in [0, 1]
//
// Returns:
//   - CalculatorBuilderOption: a function that applies the blend factor to a calculatorImpl
func WithLambda(lambda float32) CalculatorBuilderOption {
	return func(c *calculatorImpl) {
		c.lambda = lambda
	}
}

// WithShadowDistance caps the far plane used for splitting. Zero uses the camera far plane.
//
// Parameters:
//   - distance: the maximum shadowed view depth
//
// Returns:
//   - CalculatorBuilderOption: a function that applies the cap to a calculatorImpl
func WithShadowDistance(distance float32) CalculatorBuilderOption {
	return func(c *calculatorImpl) {
		c.shadowDistance = distance
	}
}

// WithResolutions sets the per-cascade shadow map resolution.
//
// Parameters:
//   - resolutions: one side length in texels per cascade
//
// Returns:
//   - CalculatorBuilderOption: a function that applies the resolutions to a calculatorImpl
func WithResolutions(resolutions ...int) CalculatorBuilderOption {
	return func(c *calculatorImpl) {
		c.resolutions = slices.Clone(resolutions)
	}
}

// WithPCFRadius sets the per-cascade PCF kernel radius.
//
// Parameters:
//   - radii: one radius per cascade, producing (2r+1)x(2r+1) kernels
//
// Returns:
//   - CalculatorBuilderOption: a function that applies the radii to a calculatorImpl
func WithPCFRadius(radii ...int) CalculatorBuilderOption {
	return func(c *calculatorImpl) {
		c.pcfRadius = slices.Clone(radii)
	}
}

// WithFitMode selects bounding-sphere or light-space AABB fitting.
//
// Parameters:
//   - mode: config.FitSphere or config.FitAABB
//
// Returns:
//   - CalculatorBuilderOption: a function that applies the fit mode to a calculatorImpl
func WithFitMode(mode config.FitMode) CalculatorBuilderOption {
	return func(c *calculatorImpl) {
		c.fitMode = mode
	}
}

// WithCasterMargin extends every light volume toward the light by margin world units.
func WithCasterMargin(margin float32) CalculatorBuilderOption {
	return func(c *calculatorImpl) {
		c.casterMargin = margin
	}
}

// WithDepthBias sets the world-space depth bias that is converted to clip depth per cascade.
func WithDepthBias(bias float32) CalculatorBuilderOption {
	return func(c *calculatorImpl) {
		c.depthBias = bias
	}
}

// WithNormalBiasScale sets the multiplier applied to the texel world size to get the normal offset.
func WithNormalBiasScale(scale float32) CalculatorBuilderOption {
	return func(c *calculatorImpl) {
		c.normalBiasScale = scale
	}
}
