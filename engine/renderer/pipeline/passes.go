package pipeline

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-deferred/config"
	"github.com/Carmen-Shannon/oxy-deferred/engine/model"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/material"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/shader"
)

// G-buffer and shadow target formats.
const (
	NormalFormat = gpu.TextureFormatRGBA16Float
	ORMFormat    = gpu.TextureFormatRGBA8Unorm
	DepthFormat  = gpu.TextureFormatDepth32Float
)

// AlbedoFormat returns the albedo target format. Albedo is linear; the HDR option widens it to
// half floats for inputs above 1.
func AlbedoFormat(hdr bool) gpu.TextureFormat {
	if hdr {
		return gpu.TextureFormatRGBA16Float
	}
	return gpu.TextureFormatRGBA8Unorm
}

// GBufferColorFormats returns the G-buffer color formats in fragment output order: albedo,
// normal, ORM.
func GBufferColorFormats(hdr bool) []gpu.TextureFormat {
	return []gpu.TextureFormat{AlbedoFormat(hdr), NormalFormat, ORMFormat}
}

// NewGBufferPipeline builds the G-buffer pipeline for one material capability.
//
// Parameters:
//   - c: the material capability selecting the shader variant
//   - hdrAlbedo: whether the albedo target is RGBA16Float
//
// Returns:
//   - Pipeline: the pipeline keyed by c.PipelineKey("gbuffer")
//   - error: if the shader variant cannot be built
func NewGBufferPipeline(c material.Capability, hdrAlbedo bool) (Pipeline, error) {
	s, err := shader.NewGBufferShader(c)
	if err != nil {
		return nil, err
	}
	return NewPipeline(s.Key(), s,
		WithVertexLayout(model.VertexLayout()),
		WithColorTargets(GBufferColorFormats(hdrAlbedo)...),
		WithDepthFormat(DepthFormat),
		WithCullMode(gpu.CullModeBack),
	), nil
}

// NewShadowPipeline builds the single depth-only pipeline shared by every cascade. Back faces are
// not culled so single-sided planar casters still cast.
//
// Parameters:
//   - cfg: supplies the cascade count and the rasterizer bias
//
// Returns:
//   - Pipeline: the "shadow" pipeline
//   - error: if the shader cannot be built
func NewShadowPipeline(cfg config.Config) (Pipeline, error) {
	s, err := shader.NewShadowShader(cfg.Cascades.Count)
	if err != nil {
		return nil, err
	}
	return NewPipeline(s.Key(), s,
		WithVertexLayout(model.VertexLayout()),
		WithDepthFormat(DepthFormat),
		WithDepthBias(cfg.Shadow.RasterDepthBias, cfg.Shadow.RasterSlopeScale),
	), nil
}

// NewLightingPipeline builds the full-screen resolve pipeline writing to the surface.
//
// Parameters:
//   - cfg: supplies the cascade count
//   - surfaceFormat: the presentation format
//
// Returns:
//   - Pipeline: the "lighting" pipeline
//   - error: if the shader cannot be built
func NewLightingPipeline(cfg config.Config, surfaceFormat gpu.TextureFormat) (Pipeline, error) {
	s, err := shader.NewLightingShader(cfg.Cascades.Count, config.MaxPCFRadius)
	if err != nil {
		return nil, err
	}
	return NewPipeline(s.Key(), s,
		WithColorTargets(surfaceFormat),
		WithDepthWriteEnabled(false),
		WithDepthCompare(gpu.CompareFunctionAlways),
	), nil
}

// NewPassPipelines builds every pipeline the deferred frame uses: the eight G-buffer variants, the
// shadow pipeline and the lighting pipeline.
//
// Parameters:
//   - cfg: the renderer configuration
//   - surfaceFormat: the presentation format
//
// Returns:
//   - []Pipeline: the pipelines, G-buffer variants first
//   - error: the first shader that fails to build
func NewPassPipelines(cfg config.Config, surfaceFormat gpu.TextureFormat) ([]Pipeline, error) {
	var out []Pipeline
	for _, c := range material.AllCapabilities() {
		p, err := NewGBufferPipeline(c, cfg.Renderer.HDRAlbedo)
		if err != nil {
			return nil, fmt.Errorf("pipeline: gbuffer %s: %w", c, err)
		}
		out = append(out, p)
	}
	shadow, err := NewShadowPipeline(cfg)
	if err != nil {
		return nil, fmt.Errorf("pipeline: shadow: %w", err)
	}
	lighting, err := NewLightingPipeline(cfg, surfaceFormat)
	if err != nil {
		return nil, fmt.Errorf("pipeline: lighting: %w", err)
	}
	return append(out, shadow, lighting), nil
}
