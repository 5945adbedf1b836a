package bind_group_provider

import "github.com/Carmen-Shannon/oxy-deferred/engine/renderer/gpu"

// BindGroupProviderOption is a functional option used to configure a BindGroupProvider during construction.
type BindGroupProviderOption func(*bindGroupProvider)

// WithBuffer binds a shared buffer at a binding index. The provider does not own it.
//
// Parameters:
//   - binding: the binding index for this buffer
//   - buf: the buffer to associate with this binding
//   - size: the bound size in bytes; 0 binds the whole buffer
//
// Returns:
//   - BindGroupProviderOption: a function that sets the buffer for the specified binding
func WithBuffer(binding uint32, buf gpu.Buffer, size uint64) BindGroupProviderOption {
	return func(p *bindGroupProvider) {
		p.buffers[binding] = buf
		p.bufferSizes[binding] = size
	}
}

// WithTextureView binds a shared texture view at a binding index.
//
// Parameters:
//   - binding: the binding index for this view
//   - tv: the texture view
//
// Returns:
//   - BindGroupProviderOption: a function that sets the view for the specified binding
func WithTextureView(binding uint32, tv gpu.TextureView) BindGroupProviderOption {
	return func(p *bindGroupProvider) {
		p.textureViews[binding] = tv
	}
}

// WithSampler binds a shared sampler at a binding index.
func WithSampler(binding uint32, s gpu.Sampler) BindGroupProviderOption {
	return func(p *bindGroupProvider) {
		p.samplers[binding] = s
	}
}
