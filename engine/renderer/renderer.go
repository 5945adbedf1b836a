package renderer

import (
	"errors"
	"fmt"
	"maps"
	"sync"

	"github.com/Carmen-Shannon/oxy-deferred/common"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/pipeline"
	"github.com/cogentcore/webgpu/wgpu"
	"go.uber.org/zap"
)

// SurfaceSource is the window a WebGPU backend presents to.
type SurfaceSource interface {
	SurfaceDescriptor() *wgpu.SurfaceDescriptor
	Width() int
	Height() int
}

// renderer is the implementation of the Renderer interface.
type renderer struct {
	RendererBackend

	mu *sync.Mutex

	pipelineCache map[string]pipeline.Pipeline
	logger        *zap.Logger

	// Pre-creation config collected from builder options
	forceFallbackAdapter bool
	presentMode          PresentMode
}

// Renderer defines the interface for the rendering system.
//
// The Renderer is the backend plus a cache of compiled pipelines keyed by pipeline key, and helpers
// that turn BindGroupProviders into GPU bind groups. Passes record through the embedded backend's
// encoders.
type Renderer interface {
	RendererBackend

	// Pipeline retrieves the cached Pipeline associated with the given key.
	// If the Pipeline does not exist, this will return nil.
	//
	// Parameters:
	//   - key: the unique identifier for the Pipeline to retrieve
	//
	// Returns:
	//   - pipeline.Pipeline: the Pipeline associated with the key, or nil if not found
	Pipeline(key string) pipeline.Pipeline

	// Pipelines retrieves a copy of the pipeline cache.
	//
	// Returns:
	//   - map[string]pipeline.Pipeline: a map of pipeline keys to their corresponding Pipeline objects
	Pipelines() map[string]pipeline.Pipeline

	// RegisterPipelines compiles one or more pipelines via the backend, stores the handle on each
	// and caches them by PipelineKey. Pipelines whose keys are already registered are skipped to
	// avoid duplicate GPU resource creation.
	//
	// Parameters:
	//   - pipelines: the Pipelines to register
	//
	// Returns:
	//   - error: an error if pipeline creation fails
	RegisterPipelines(pipelines ...pipeline.Pipeline) error

	// ReleasePipelines destroys every cached pipeline and empties the cache.
	ReleasePipelines()

	// Resize configures the underlying backend to handle a new surface size.
	// This should be called when re-sizing the window or when the surface size should change.
	//
	// Parameters:
	//   - width: the new width of the surface in pixels
	//   - height: the new height of the surface in pixels
	//
	// Returns:
	//   - error: the surface configuration error
	Resize(width, height int) error

	// InitMeshBuffers creates GPU vertex and index buffers from raw byte data.
	//
	// Parameters:
	//   - vertexData: the raw vertex data bytes to upload to the GPU
	//   - indexData: the raw uint32 index bytes to upload to the GPU
	//   - indexCount: the number of indices, used for draw calls
	//
	// Returns:
	//   - gpu.Mesh: the uploaded geometry
	//   - error: an error if buffer creation fails
	InitMeshBuffers(vertexData, indexData []byte, indexCount int) (gpu.Mesh, error)

	// InitBindGroup creates a buffer for every buffer binding the provider has not been given, then
	// creates the bind group. Textures and samplers must be set (or initialized via InitTextureView
	// and InitSampler) first.
	//
	// Parameters:
	//   - provider: the BindGroupProvider to store the created bind group on
	//   - bufferSizes: sizes of created buffers keyed by binding, overriding MinBindingSize (nil safe)
	//
	// Returns:
	//   - error: an error if buffer or bind group creation fails
	InitBindGroup(provider bind_group_provider.BindGroupProvider, bufferSizes map[uint32]uint64) error

	// InitTextureView creates a GPU texture from staging data and stores the resulting texture view
	// on the given BindGroupProvider at the specified binding index.
	//
	// Parameters:
	//   - provider: the BindGroupProvider to store the created texture view on
	//   - binding: the binding index for this texture
	//   - stagingData: the pixel data and dimensions for the texture
	//
	// Returns:
	//   - gpu.TextureView: the created view
	//   - error: an error if texture creation fails
	InitTextureView(provider bind_group_provider.BindGroupProvider, binding uint32, stagingData common.TextureStagingData) (gpu.TextureView, error)

	// InitSampler creates a GPU sampler from staging data and stores it on the given BindGroupProvider
	// at the specified binding index.
	//
	// Parameters:
	//   - provider: the BindGroupProvider to store the created sampler on
	//   - binding: the binding index for this sampler
	//   - samplerStagingData: the sampler configuration
	//
	// Returns:
	//   - error: an error if sampler creation fails
	InitSampler(provider bind_group_provider.BindGroupProvider, binding uint32, samplerStagingData common.SamplerStagingData) error

	// WriteBuffers writes all staged buffer writes to the GPU queue.
	// Each BufferWrite targets a specific buffer on a BindGroupProvider at a given binding and offset.
	//
	// Parameters:
	//   - writes: a slice of BufferWrite structs describing the data to write
	//
	// Returns:
	//   - error: the joined errors of failed writes
	WriteBuffers(writes []bind_group_provider.BufferWrite) error

	// ReleaseProvider destroys the objects owned by a provider and its bind group.
	ReleaseProvider(provider bind_group_provider.BindGroupProvider)
}

var _ Renderer = &renderer{}

// NewRenderer creates a Renderer with the selected backend presenting to the given surface, and
// configures the surface for its current size.
//
// Parameters:
//   - backendType: the GPU backend to create
//   - surface: the window providing the surface descriptor and size
//   - options: builder options
//
// Returns:
//   - Renderer: the renderer
//   - error: an error if the backend cannot be created or the surface cannot be configured
func NewRenderer(backendType RendererBackendType, surface SurfaceSource, options ...RendererBuilderOption) (Renderer, error) {
	r := newRenderer(options...)

	switch backendType {
	case BackendTypeWGPU:
		backend, err := newWGPURendererBackend(surface.SurfaceDescriptor(), r.forceFallbackAdapter, r.logger)
		if err != nil {
			return nil, err
		}
		r.RendererBackend = backend
	default:
		return nil, fmt.Errorf("renderer: unknown backend type %d", backendType)
	}

	r.SetPresentMode(r.presentMode)
	if err := r.Resize(surface.Width(), surface.Height()); err != nil {
		r.Close()
		return nil, err
	}
	return r, nil
}

// NewRendererWithBackend wraps an existing backend, such as the recording backend used in tests.
// The surface is not configured.
//
// Parameters:
//   - backend: the backend to drive
//   - options: builder options; backend creation options are ignored
//
// Returns:
//   - Renderer: the renderer
func NewRendererWithBackend(backend RendererBackend, options ...RendererBuilderOption) Renderer {
	r := newRenderer(options...)
	r.RendererBackend = backend
	r.SetPresentMode(r.presentMode)
	return r
}

func newRenderer(options ...RendererBuilderOption) *renderer {
	r := &renderer{
		mu:            &sync.Mutex{},
		pipelineCache: make(map[string]pipeline.Pipeline),
		logger:        zap.NewNop(),
	}
	for _, opt := range options {
		opt(r)
	}
	return r
}

func (r *renderer) Resize(width, height int) error {
	if err := r.ConfigureSurface(width, height); err != nil {
		return fmt.Errorf("renderer: resize to %dx%d: %w", width, height, err)
	}
	r.logger.Debug("surface configured", zap.Int("width", width), zap.Int("height", height))
	return nil
}

func (r *renderer) Pipeline(key string) pipeline.Pipeline {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pipelineCache[key]
}

func (r *renderer) Pipelines() map[string]pipeline.Pipeline {
	r.mu.Lock()
	defer r.mu.Unlock()
	return maps.Clone(r.pipelineCache)
}

func (r *renderer) RegisterPipelines(pipelines ...pipeline.Pipeline) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, p := range pipelines {
		key := p.PipelineKey()
		if _, exists := r.pipelineCache[key]; exists {
			continue
		}
		h, err := r.CreateRenderPipeline(p)
		if err != nil {
			return fmt.Errorf("renderer: failed to register pipeline %s: %w", key, err)
		}
		p.SetHandle(h)
		r.pipelineCache[key] = p
		r.logger.Debug("pipeline registered", zap.String("key", key))
	}
	return nil
}

func (r *renderer) ReleasePipelines() {
	r.mu.Lock()
	defer r.mu.Unlock()

	handles := make([]gpu.Handle, 0, len(r.pipelineCache))
	for _, p := range r.pipelineCache {
		handles = append(handles, gpu.Handle(p.Handle()))
		p.SetHandle(0)
	}
	r.Release(handles...)
	r.pipelineCache = make(map[string]pipeline.Pipeline)
}

func (r *renderer) InitMeshBuffers(vertexData, indexData []byte, indexCount int) (gpu.Mesh, error) {
	vb, err := r.CreateBuffer(gpu.BufferDesc{
		Label: "Vertex Buffer",
		Size:  common.AlignUp(uint64(len(vertexData)), 4),
		Usage: gpu.BufferUsageVertex | gpu.BufferUsageCopyDst,
	})
	if err != nil {
		return gpu.Mesh{}, fmt.Errorf("renderer: failed to create vertex buffer: %w", err)
	}
	ib, err := r.CreateBuffer(gpu.BufferDesc{
		Label: "Index Buffer",
		Size:  common.AlignUp(uint64(len(indexData)), 4),
		Usage: gpu.BufferUsageIndex | gpu.BufferUsageCopyDst,
	})
	if err != nil {
		r.Release(gpu.Handle(vb))
		return gpu.Mesh{}, fmt.Errorf("renderer: failed to create index buffer: %w", err)
	}
	if err := errors.Join(r.WriteBuffer(vb, 0, vertexData), r.WriteBuffer(ib, 0, indexData)); err != nil {
		r.Release(gpu.Handle(vb), gpu.Handle(ib))
		return gpu.Mesh{}, fmt.Errorf("renderer: failed to upload mesh: %w", err)
	}
	return gpu.Mesh{VertexBuffer: vb, IndexBuffer: ib, IndexCount: uint32(indexCount)}, nil
}

func (r *renderer) InitBindGroup(provider bind_group_provider.BindGroupProvider, bufferSizes map[uint32]uint64) error {
	layout := provider.Layout()
	for _, le := range layout.Entries {
		if !le.Kind.IsBuffer() || provider.Buffer(le.Binding) != 0 {
			continue
		}
		size := le.MinBindingSize
		if s, ok := bufferSizes[le.Binding]; ok {
			size = s
		}
		if size == 0 {
			return fmt.Errorf("renderer: bind group %s: binding %d has no size", provider.Label(), le.Binding)
		}
		usage := gpu.BufferUsageUniform | gpu.BufferUsageCopyDst
		if le.Kind == gpu.BindingKindStorageRead {
			usage = gpu.BufferUsageStorage | gpu.BufferUsageCopyDst
		}
		buf, err := r.CreateBuffer(gpu.BufferDesc{
			Label: fmt.Sprintf("%s binding %d", provider.Label(), le.Binding),
			Size:  common.AlignUp(size, 16),
			Usage: usage,
		})
		if err != nil {
			return fmt.Errorf("renderer: bind group %s: %w", provider.Label(), err)
		}
		provider.Own(gpu.Handle(buf))
		// a dynamic binding exposes one element of the buffer per draw
		var bound uint64
		if le.Kind == gpu.BindingKindUniformDynamic {
			bound = le.MinBindingSize
		}
		provider.SetBuffer(le.Binding, buf, bound)
	}

	entries, err := provider.Entries()
	if err != nil {
		return fmt.Errorf("renderer: %w", err)
	}
	bg, err := r.CreateBindGroup(provider.Label(), layout, entries)
	if err != nil {
		return fmt.Errorf("renderer: failed to create bind group %s: %w", provider.Label(), err)
	}
	provider.SetBindGroup(bg)
	return nil
}

func (r *renderer) InitTextureView(provider bind_group_provider.BindGroupProvider, binding uint32, stagingData common.TextureStagingData) (gpu.TextureView, error) {
	format := stagingData.Format
	if format == gpu.TextureFormatUndefined {
		format = gpu.TextureFormatRGBA8UnormSrgb
	}
	tex, err := r.CreateTexture(gpu.TextureDesc{
		Label:  fmt.Sprintf("%s texture %d", provider.Label(), binding),
		Width:  stagingData.Width,
		Height: stagingData.Height,
		Layers: 1,
		Format: format,
		Usage:  gpu.TextureUsageTextureBinding | gpu.TextureUsageCopyDst,
	})
	if err != nil {
		return 0, fmt.Errorf("renderer: failed to create texture: %w", err)
	}
	provider.Own(gpu.Handle(tex))
	stagingData.Format = format
	if err := r.WriteTexture(tex, stagingData); err != nil {
		return 0, fmt.Errorf("renderer: failed to upload texture: %w", err)
	}
	view, err := r.CreateTextureView(tex, -1)
	if err != nil {
		return 0, fmt.Errorf("renderer: failed to create texture view: %w", err)
	}
	provider.Own(gpu.Handle(view))
	provider.SetTextureView(binding, view)
	return view, nil
}

func (r *renderer) InitSampler(provider bind_group_provider.BindGroupProvider, binding uint32, samplerStagingData common.SamplerStagingData) error {
	s, err := r.CreateSampler(samplerStagingData)
	if err != nil {
		return fmt.Errorf("renderer: failed to create sampler: %w", err)
	}
	provider.Own(gpu.Handle(s))
	provider.SetSampler(binding, s)
	return nil
}

func (r *renderer) WriteBuffers(writes []bind_group_provider.BufferWrite) error {
	var errs []error
	for _, w := range writes {
		buf := w.Provider.Buffer(w.Binding)
		if buf == 0 {
			errs = append(errs, fmt.Errorf("renderer: bind group %s: binding %d has no buffer", w.Provider.Label(), w.Binding))
			continue
		}
		if err := r.WriteBuffer(buf, w.Offset, w.Data); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (r *renderer) ReleaseProvider(provider bind_group_provider.BindGroupProvider) {
	r.Release(provider.Release()...)
}
