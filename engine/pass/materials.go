package pass

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/material"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/shader"
)

// UploadMaterial resolves the G-buffer variant of a material and, when the variant samples
// textures, uploads them and creates the material's group 2 bind group. Constant-only materials
// need no GPU objects and return a nil provider.
//
// Parameters:
//   - r: the renderer with the G-buffer variants registered
//   - m: the material
//
// Returns:
//   - bind_group_provider.BindGroupProvider: owns the material's textures, sampler and bind group
//   - error: a missing variant pipeline or an upload failure
func UploadMaterial(r renderer.Renderer, m material.Material) (bind_group_provider.BindGroupProvider, error) {
	key := m.Capability().PipelineKey(shader.KeyGBuffer)
	pl := r.Pipeline(key)
	if pl == nil {
		return nil, fmt.Errorf("pass: material %s: pipeline %s is not registered", m.Name(), key)
	}
	m.SetPipelineKey(key)
	if !m.Capability().HasTextures() {
		return nil, nil
	}

	provider := bind_group_provider.NewBindGroupProvider("material "+m.ID().String(), pl.Shader().Layout(int(groupMaterial)))
	for _, ch := range material.Channels() {
		b := material.Resolve(m, ch)
		if !b.IsTexture() {
			continue
		}
		staging := m.Texture(ch)
		if staging == nil {
			r.ReleaseProvider(provider)
			return nil, fmt.Errorf("pass: material %s %s: no texture data", m.Name(), ch)
		}
		view, err := r.InitTextureView(provider, b.Texture.Binding, *staging)
		if err != nil {
			r.ReleaseProvider(provider)
			return nil, fmt.Errorf("pass: material %s %s: %w", m.Name(), ch, err)
		}
		m.SetTextureView(ch, view)
	}
	if err := r.InitSampler(provider, material.SamplerBinding, m.Sampler()); err != nil {
		r.ReleaseProvider(provider)
		return nil, fmt.Errorf("pass: material %s: %w", m.Name(), err)
	}
	if err := r.InitBindGroup(provider, nil); err != nil {
		r.ReleaseProvider(provider)
		return nil, fmt.Errorf("pass: material %s: %w", m.Name(), err)
	}
	m.SetBindGroup(provider.BindGroup())
	return provider, nil
}
