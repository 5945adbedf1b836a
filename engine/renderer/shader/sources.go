package shader

import (
	_ "embed"

	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/material"
)

// Compile-time constants substituted into the pass shaders.
const (
	ConstantCascadeCount = "CASCADE_COUNT"
	ConstantMaxPCFRadius = "MAX_PCF_RADIUS"
)

// Shader family keys. G-buffer variants append the material capability.
const (
	KeyGBuffer  = "gbuffer"
	KeyShadow   = "shadow"
	KeyLighting = "lighting"
)

// GBufferSource is the annotated G-buffer pass shader.
//
//go:embed assets/gbuffer.wgsl
var GBufferSource string

// ShadowSource is the annotated depth-only cascade shader.
//
//go:embed assets/shadow.wgsl
var ShadowSource string

// LightingSource is the annotated lighting resolve shader.
//
//go:embed assets/lighting.wgsl
var LightingSource string

// NewGBufferShader builds the G-buffer variant for a material capability. Only the channels the
// capability textures are sampled; the rest read the per-draw constants.
//
// Parameters:
//   - c: the material capability
//
// Returns:
//   - Shader: the variant, keyed by c.PipelineKey(KeyGBuffer)
//   - error: if pre-processing fails
func NewGBufferShader(c material.Capability) (Shader, error) {
	return NewShader(c.PipelineKey(KeyGBuffer), GBufferSource, WithDefines(c.Defines()))
}

// NewShadowShader builds the depth-only cascade shader for cascadeCount cascades.
func NewShadowShader(cascadeCount int) (Shader, error) {
	return NewShader(KeyShadow, ShadowSource,
		WithEntryPoints(DefaultVertexEntryPoint, ""),
		WithPreProcessorOptions(WithIntConstant(ConstantCascadeCount, cascadeCount)),
	)
}

// NewLightingShader builds the resolve shader.
//
// Parameters:
//   - cascadeCount: length of the cascade array
//   - maxPCFRadius: upper bound on any cascade's kernel radius
//
// Returns:
//   - Shader: the resolve shader
//   - error: if pre-processing fails
func NewLightingShader(cascadeCount, maxPCFRadius int) (Shader, error) {
	return NewShader(KeyLighting, LightingSource,
		WithPreProcessorOptions(
			WithIntConstant(ConstantCascadeCount, cascadeCount),
			WithIntConstant(ConstantMaxPCFRadius, maxPCFRadius),
		),
	)
}
