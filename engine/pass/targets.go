package pass

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-deferred/common"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/pipeline"
)

// GBufferTargets are the G-buffer attachments of one frame slot. Depth is cleared to 1 and keeps
// that far sentinel where nothing was drawn.
type GBufferTargets struct {
	Width  uint32
	Height uint32

	Albedo gpu.Texture
	Normal gpu.Texture
	ORM    gpu.Texture
	Depth  gpu.Texture

	AlbedoView gpu.TextureView
	NormalView gpu.TextureView
	ORMView    gpu.TextureView
	DepthView  gpu.TextureView
}

// NewGBufferTargets creates the four G-buffer attachments. On failure nothing is left allocated.
//
// Parameters:
//   - b: the backend
//   - width, height: the render target size in pixels
//   - hdrAlbedo: store albedo as RGBA16Float
//
// Returns:
//   - *GBufferTargets: the targets
//   - error: the first creation failure
func NewGBufferTargets(b renderer.RendererBackend, width, height int, hdrAlbedo bool) (*GBufferTargets, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("pass: gbuffer size %dx%d", width, height)
	}
	t := &GBufferTargets{Width: uint32(width), Height: uint32(height)}
	targets := []struct {
		label  string
		format gpu.TextureFormat
		tex    *gpu.Texture
		view   *gpu.TextureView
	}{
		{"gbuffer albedo", pipeline.AlbedoFormat(hdrAlbedo), &t.Albedo, &t.AlbedoView},
		{"gbuffer normal", pipeline.NormalFormat, &t.Normal, &t.NormalView},
		{"gbuffer orm", pipeline.ORMFormat, &t.ORM, &t.ORMView},
		{"gbuffer depth", pipeline.DepthFormat, &t.Depth, &t.DepthView},
	}
	for _, target := range targets {
		tex, err := b.CreateTexture(gpu.TextureDesc{
			Label:  target.label,
			Width:  t.Width,
			Height: t.Height,
			Layers: 1,
			Format: target.format,
			Usage:  gpu.TextureUsageRenderAttachment | gpu.TextureUsageTextureBinding,
		})
		if err != nil {
			b.Release(t.Handles()...)
			return nil, fmt.Errorf("pass: %s: %w", target.label, err)
		}
		*target.tex = tex
		view, err := b.CreateTextureView(tex, -1)
		if err != nil {
			b.Release(t.Handles()...)
			return nil, fmt.Errorf("pass: %s view: %w", target.label, err)
		}
		*target.view = view
	}
	return t, nil
}

// Handles returns every allocated object, views before their textures.
func (t *GBufferTargets) Handles() []gpu.Handle {
	var out []gpu.Handle
	for _, h := range []gpu.Handle{
		gpu.Handle(t.AlbedoView), gpu.Handle(t.NormalView), gpu.Handle(t.ORMView), gpu.Handle(t.DepthView),
		gpu.Handle(t.Albedo), gpu.Handle(t.Normal), gpu.Handle(t.ORM), gpu.Handle(t.Depth),
	} {
		if h != 0 {
			out = append(out, h)
		}
	}
	return out
}

// ShadowTargets is one frame slot's shadow-map array: one Depth32Float layer per cascade, each
// layer Resolution texels square. Cascades with a lower resolution use the top-left region of
// their layer.
type ShadowTargets struct {
	Resolution int
	Texture    gpu.Texture
	// ArrayView spans every layer and is what the lighting resolve samples.
	ArrayView gpu.TextureView
	// LayerViews[i] is the depth attachment of cascade i.
	LayerViews []gpu.TextureView
}

// NewShadowTargets creates the shadow-map array and its views.
//
// Parameters:
//   - b: the backend
//   - cascades: the number of layers
//   - resolution: side length of every layer, the largest cascade resolution
//
// Returns:
//   - *ShadowTargets: the targets
//   - error: the first creation failure
func NewShadowTargets(b renderer.RendererBackend, cascades, resolution int) (*ShadowTargets, error) {
	tex, err := b.CreateTexture(gpu.TextureDesc{
		Label:  "shadow maps",
		Width:  uint32(resolution),
		Height: uint32(resolution),
		Layers: uint32(cascades),
		Format: pipeline.DepthFormat,
		Usage:  gpu.TextureUsageRenderAttachment | gpu.TextureUsageTextureBinding,
	})
	if err != nil {
		return nil, fmt.Errorf("pass: shadow maps: %w", err)
	}
	t := &ShadowTargets{Resolution: resolution, Texture: tex}
	if t.ArrayView, err = b.CreateTextureView(tex, -1); err != nil {
		b.Release(t.Handles()...)
		return nil, fmt.Errorf("pass: shadow map array view: %w", err)
	}
	for i := range cascades {
		view, err := b.CreateTextureView(tex, i)
		if err != nil {
			b.Release(t.Handles()...)
			return nil, fmt.Errorf("pass: shadow map layer %d view: %w", i, err)
		}
		t.LayerViews = append(t.LayerViews, view)
	}
	return t, nil
}

// Handles returns every allocated object, views before the texture.
func (t *ShadowTargets) Handles() []gpu.Handle {
	var out []gpu.Handle
	for _, v := range t.LayerViews {
		out = append(out, gpu.Handle(v))
	}
	if t.ArrayView != 0 {
		out = append(out, gpu.Handle(t.ArrayView))
	}
	return append(out, gpu.Handle(t.Texture))
}

// ShadowSampler describes the comparison sampler of the resolve: nearest taps compared with Less,
// clamped at the layer edge.
func ShadowSampler() common.SamplerStagingData {
	return common.SamplerStagingData{
		AddressModeU:  gpu.AddressModeClampToEdge,
		AddressModeV:  gpu.AddressModeClampToEdge,
		AddressModeW:  gpu.AddressModeClampToEdge,
		MagFilter:     gpu.FilterModeNearest,
		MinFilter:     gpu.FilterModeNearest,
		Compare:       gpu.CompareFunctionLess,
		MaxAnisotropy: 1,
	}
}
