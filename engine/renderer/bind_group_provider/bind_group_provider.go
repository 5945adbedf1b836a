// Package bind_group_provider gathers the resources of one bind group against its layout until the
// renderer turns them into a GPU bind group.
package bind_group_provider

import (
	"fmt"
	"slices"
	"sync"

	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/gpu"
)

// bindGroupProvider is the unexported implementation of BindGroupProvider.
type bindGroupProvider struct {
	mu *sync.Mutex

	// label is a debug label added for convenience.
	label string
	// layout is the layout the bind group is created against, usually taken from a Shader.
	layout gpu.BindGroupLayout

	// bindGroup is the created bind group, zero until the Renderer initializes the provider.
	bindGroup gpu.BindGroup
	// buffers holds the bound buffers keyed by binding index.
	buffers map[uint32]gpu.Buffer
	// bufferSizes holds the bound range of each buffer; 0 binds the whole buffer.
	bufferSizes map[uint32]uint64
	// textureViews holds the bound texture views keyed by binding index.
	textureViews map[uint32]gpu.TextureView
	// samplers holds the bound samplers keyed by binding index.
	samplers map[uint32]gpu.Sampler
	// owned lists the objects created on behalf of this provider. Shared resources set by the
	// caller are not owned and survive Release.
	owned []gpu.Handle
}

// BindGroupProvider describes the resources of one bind group. Frame data (camera, cascades,
// instances), per-draw constants, G-buffer reads and material textures each get a provider.
//
// Usage pattern:
//  1. Create a provider from the shader's layout for the group
//  2. Set shared resources (SetBuffer, SetTextureView, SetSampler)
//  3. Renderer.InitBindGroup creates the missing buffers and the bind group
//  4. Renderer.WriteBuffers updates buffer contents through BufferWrite values
//  5. Passes bind BindGroup() during recording
type BindGroupProvider interface {
	// Label returns the debug label for this provider.
	//
	// Returns:
	//   - string: the debug label
	Label() string

	// Layout returns the layout the bind group is created against.
	//
	// Returns:
	//   - gpu.BindGroupLayout: the layout
	Layout() gpu.BindGroupLayout

	// BindGroup returns the created bind group, or zero if it has not been initialized.
	//
	// Returns:
	//   - gpu.BindGroup: the bind group or zero
	BindGroup() gpu.BindGroup

	// SetBindGroup records the created bind group.
	//
	// Parameters:
	//   - bg: the bind group handle
	SetBindGroup(bg gpu.BindGroup)

	// Buffer returns the buffer bound at a binding, or zero if none is set.
	//
	// Parameters:
	//   - binding: the binding index
	//
	// Returns:
	//   - gpu.Buffer: the buffer or zero
	Buffer(binding uint32) gpu.Buffer

	// SetBuffer binds a buffer range starting at offset 0.
	//
	// Parameters:
	//   - binding: the binding index
	//   - buf: the buffer
	//   - size: the bound size in bytes; 0 binds the whole buffer
	SetBuffer(binding uint32, buf gpu.Buffer, size uint64)

	// TextureView returns the texture view bound at a binding, or zero if none is set.
	TextureView(binding uint32) gpu.TextureView

	// SetTextureView binds a texture view.
	SetTextureView(binding uint32, tv gpu.TextureView)

	// Sampler returns the sampler bound at a binding, or zero if none is set.
	Sampler(binding uint32) gpu.Sampler

	// SetSampler binds a sampler.
	SetSampler(binding uint32, s gpu.Sampler)

	// Own records a handle created for this provider so Release returns it.
	Own(h gpu.Handle)

	// Entries builds the bind group entries in layout order.
	//
	// Returns:
	//   - []gpu.BindGroupEntry: one entry per layout binding
	//   - error: an error naming the first binding without a resource of the right kind
	Entries() ([]gpu.BindGroupEntry, error)

	// Release returns the owned objects and the bind group, and forgets them. The caller passes
	// the result to the backend.
	//
	// Returns:
	//   - []gpu.Handle: the handles to destroy
	Release() []gpu.Handle
}

var _ BindGroupProvider = &bindGroupProvider{}

// NewBindGroupProvider creates a provider for one bind group layout.
//
// Parameters:
//   - label: debug label used for the created objects
//   - layout: the bind group layout
//   - options: builder options presetting resources
//
// Returns:
//   - BindGroupProvider: the provider
func NewBindGroupProvider(label string, layout gpu.BindGroupLayout, options ...BindGroupProviderOption) BindGroupProvider {
	p := &bindGroupProvider{
		mu:           &sync.Mutex{},
		label:        label,
		layout:       layout,
		buffers:      make(map[uint32]gpu.Buffer),
		bufferSizes:  make(map[uint32]uint64),
		textureViews: make(map[uint32]gpu.TextureView),
		samplers:     make(map[uint32]gpu.Sampler),
	}
	for _, opt := range options {
		opt(p)
	}
	return p
}

func (p *bindGroupProvider) Label() string {
	return p.label
}

func (p *bindGroupProvider) Layout() gpu.BindGroupLayout {
	return p.layout
}

func (p *bindGroupProvider) BindGroup() gpu.BindGroup {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.bindGroup
}

func (p *bindGroupProvider) SetBindGroup(bg gpu.BindGroup) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.bindGroup = bg
}

func (p *bindGroupProvider) Buffer(binding uint32) gpu.Buffer {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buffers[binding]
}

func (p *bindGroupProvider) SetBuffer(binding uint32, buf gpu.Buffer, size uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.buffers[binding] = buf
	p.bufferSizes[binding] = size
}

func (p *bindGroupProvider) TextureView(binding uint32) gpu.TextureView {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.textureViews[binding]
}

func (p *bindGroupProvider) SetTextureView(binding uint32, tv gpu.TextureView) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.textureViews[binding] = tv
}

func (p *bindGroupProvider) Sampler(binding uint32) gpu.Sampler {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.samplers[binding]
}

func (p *bindGroupProvider) SetSampler(binding uint32, s gpu.Sampler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.samplers[binding] = s
}

func (p *bindGroupProvider) Own(h gpu.Handle) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.owned = append(p.owned, h)
}

func (p *bindGroupProvider) Entries() ([]gpu.BindGroupEntry, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	entries := make([]gpu.BindGroupEntry, 0, len(p.layout.Entries))
	for _, le := range p.layout.Entries {
		e := gpu.BindGroupEntry{Binding: le.Binding}
		switch le.Kind {
		case gpu.BindingKindUniform, gpu.BindingKindUniformDynamic, gpu.BindingKindStorageRead:
			e.Buffer = p.buffers[le.Binding]
			e.Size = p.bufferSizes[le.Binding]
			if e.Buffer == 0 {
				return nil, fmt.Errorf("bind group %s: binding %d has no buffer", p.label, le.Binding)
			}
		case gpu.BindingKindSampler, gpu.BindingKindSamplerComparison:
			e.Sampler = p.samplers[le.Binding]
			if e.Sampler == 0 {
				return nil, fmt.Errorf("bind group %s: binding %d has no sampler", p.label, le.Binding)
			}
		default:
			e.TextureView = p.textureViews[le.Binding]
			if e.TextureView == 0 {
				return nil, fmt.Errorf("bind group %s: binding %d has no texture view", p.label, le.Binding)
			}
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func (p *bindGroupProvider) Release() []gpu.Handle {
	p.mu.Lock()
	defer p.mu.Unlock()

	handles := slices.Clone(p.owned)
	if p.bindGroup != 0 {
		handles = append(handles, gpu.Handle(p.bindGroup))
	}
	owned := make(map[gpu.Handle]bool, len(p.owned))
	for _, h := range p.owned {
		owned[h] = true
	}
	for b, buf := range p.buffers {
		if owned[gpu.Handle(buf)] {
			delete(p.buffers, b)
			delete(p.bufferSizes, b)
		}
	}
	for b, tv := range p.textureViews {
		if owned[gpu.Handle(tv)] {
			delete(p.textureViews, b)
		}
	}
	for b, s := range p.samplers {
		if owned[gpu.Handle(s)] {
			delete(p.samplers, b)
		}
	}
	p.owned = nil
	p.bindGroup = 0
	return handles
}
