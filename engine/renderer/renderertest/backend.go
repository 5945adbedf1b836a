// Package renderertest provides an in-memory renderer backend that records every resource and
// command, for testing passes and frame orchestration without a GPU.
package renderertest

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/Carmen-Shannon/oxy-deferred/common"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/pipeline"
)

// BufferRecord is a created buffer and its current contents.
type BufferRecord struct {
	Desc gpu.BufferDesc
	Data []byte
}

// TextureRecord is a created texture and the pixels last written to it.
type TextureRecord struct {
	Desc   gpu.TextureDesc
	Pixels []byte
}

// ViewRecord is a created texture view. Layer is -1 for a whole-texture view; Texture is zero for
// the surface view.
type ViewRecord struct {
	Texture gpu.Texture
	Layer   int
}

// BindGroupRecord is a created bind group.
type BindGroupRecord struct {
	Label   string
	Layout  gpu.BindGroupLayout
	Entries []gpu.BindGroupEntry
}

// Backend is a recording renderer.RendererBackend. It is safe for concurrent use.
type Backend struct {
	mu *sync.Mutex

	surfaceFormat gpu.TextureFormat
	width, height int
	presentMode   renderer.PresentMode

	nextHandle gpu.Handle
	buffers    map[gpu.Buffer]*BufferRecord
	textures   map[gpu.Texture]*TextureRecord
	views      map[gpu.TextureView]ViewRecord
	samplers   map[gpu.Sampler]common.SamplerStagingData
	bindGroups map[gpu.BindGroup]BindGroupRecord
	pipelines  map[gpu.Pipeline]pipeline.Pipeline

	encoders    []*Encoder
	submissions []*Submission
	released    []gpu.Handle

	manualCompletion bool
	deviceLost       bool
	acquireFailures  int
	createFailure    int
	surfaceView      gpu.TextureView
	presents         int
	configures       int
}

var _ renderer.RendererBackend = &Backend{}

// New creates a recording backend. Submissions complete immediately unless WithManualCompletion
// is given.
func New(opts ...Option) *Backend {
	b := &Backend{
		mu:            &sync.Mutex{},
		surfaceFormat: gpu.TextureFormatBGRA8UnormSrgb,
		buffers:       make(map[gpu.Buffer]*BufferRecord),
		textures:      make(map[gpu.Texture]*TextureRecord),
		views:         make(map[gpu.TextureView]ViewRecord),
		samplers:      make(map[gpu.Sampler]common.SamplerStagingData),
		bindGroups:    make(map[gpu.BindGroup]BindGroupRecord),
		pipelines:     make(map[gpu.Pipeline]pipeline.Pipeline),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Backend) handle() gpu.Handle {
	b.nextHandle++
	return b.nextHandle
}

// checkCreate counts down a failure armed by FailCreate. b.mu must be held.
func (b *Backend) checkCreate(label string) error {
	if b.deviceLost {
		return renderer.ErrDeviceLost
	}
	if b.createFailure == 0 {
		return nil
	}
	b.createFailure--
	if b.createFailure == 0 {
		return fmt.Errorf("renderertest: allocation of %s failed", label)
	}
	return nil
}

func (b *Backend) SurfaceFormat() gpu.TextureFormat {
	return b.surfaceFormat
}

func (b *Backend) ConfigureSurface(width, height int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.deviceLost {
		return renderer.ErrDeviceLost
	}
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: surface size %dx%d", renderer.ErrSurfaceLost, width, height)
	}
	b.width, b.height = width, height
	b.configures++
	return nil
}

func (b *Backend) SetPresentMode(mode renderer.PresentMode) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.presentMode = mode
}

func (b *Backend) CreateBuffer(desc gpu.BufferDesc) (gpu.Buffer, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.checkCreate(desc.Label); err != nil {
		return 0, err
	}
	if desc.Size == 0 {
		return 0, fmt.Errorf("renderertest: buffer %s has zero size", desc.Label)
	}
	h := gpu.Buffer(b.handle())
	b.buffers[h] = &BufferRecord{Desc: desc, Data: make([]byte, desc.Size)}
	return h, nil
}

func (b *Backend) WriteBuffer(buf gpu.Buffer, offset uint64, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.deviceLost {
		return renderer.ErrDeviceLost
	}
	rec, ok := b.buffers[buf]
	if !ok {
		return fmt.Errorf("renderertest: unknown buffer %d", buf)
	}
	if offset+uint64(len(data)) > uint64(len(rec.Data)) {
		return fmt.Errorf("renderertest: write of %d bytes at %d overflows buffer %s of %d bytes", len(data), offset, rec.Desc.Label, len(rec.Data))
	}
	copy(rec.Data[offset:], data)
	return nil
}

func (b *Backend) CreateTexture(desc gpu.TextureDesc) (gpu.Texture, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.checkCreate(desc.Label); err != nil {
		return 0, err
	}
	if desc.Width == 0 || desc.Height == 0 {
		return 0, fmt.Errorf("renderertest: texture %s has zero size", desc.Label)
	}
	desc.Layers = max(desc.Layers, 1)
	h := gpu.Texture(b.handle())
	b.textures[h] = &TextureRecord{Desc: desc}
	return h, nil
}

func (b *Backend) WriteTexture(tex gpu.Texture, data common.TextureStagingData) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	rec, ok := b.textures[tex]
	if !ok {
		return fmt.Errorf("renderertest: unknown texture %d", tex)
	}
	if want := int(data.Width * data.Height * rec.Desc.Format.BytesPerTexel()); len(data.Pixels) != want {
		return fmt.Errorf("renderertest: texture %s expects %d bytes, got %d", rec.Desc.Label, want, len(data.Pixels))
	}
	rec.Pixels = slices.Clone(data.Pixels)
	return nil
}

func (b *Backend) CreateTextureView(tex gpu.Texture, layer int) (gpu.TextureView, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.deviceLost {
		return 0, renderer.ErrDeviceLost
	}
	rec, ok := b.textures[tex]
	if !ok {
		return 0, fmt.Errorf("renderertest: unknown texture %d", tex)
	}
	if layer >= int(rec.Desc.Layers) {
		return 0, fmt.Errorf("renderertest: layer %d out of range for %s", layer, rec.Desc.Label)
	}
	h := gpu.TextureView(b.handle())
	b.views[h] = ViewRecord{Texture: tex, Layer: max(layer, -1)}
	return h, nil
}

func (b *Backend) CreateSampler(desc common.SamplerStagingData) (gpu.Sampler, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.deviceLost {
		return 0, renderer.ErrDeviceLost
	}
	h := gpu.Sampler(b.handle())
	b.samplers[h] = desc
	return h, nil
}

func (b *Backend) CreateBindGroup(label string, layout gpu.BindGroupLayout, entries []gpu.BindGroupEntry) (gpu.BindGroup, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.deviceLost {
		return 0, renderer.ErrDeviceLost
	}
	if len(entries) != len(layout.Entries) {
		return 0, fmt.Errorf("renderertest: bind group %s has %d entries, layout has %d", label, len(entries), len(layout.Entries))
	}
	for _, le := range layout.Entries {
		i := slices.IndexFunc(entries, func(e gpu.BindGroupEntry) bool { return e.Binding == le.Binding })
		if i < 0 {
			return 0, fmt.Errorf("renderertest: bind group %s misses binding %d", label, le.Binding)
		}
		if err := b.checkEntry(le, entries[i]); err != nil {
			return 0, fmt.Errorf("renderertest: bind group %s: %w", label, err)
		}
	}
	h := gpu.BindGroup(b.handle())
	b.bindGroups[h] = BindGroupRecord{Label: label, Layout: layout, Entries: slices.Clone(entries)}
	return h, nil
}

// checkEntry verifies an entry binds a live resource of the kind its layout entry declares.
func (b *Backend) checkEntry(le gpu.LayoutEntry, e gpu.BindGroupEntry) error {
	switch le.Kind {
	case gpu.BindingKindUniform, gpu.BindingKindUniformDynamic, gpu.BindingKindStorageRead:
		rec, ok := b.buffers[e.Buffer]
		if !ok {
			return fmt.Errorf("binding %d: unknown buffer %d", le.Binding, e.Buffer)
		}
		size := e.Size
		if size == 0 {
			size = rec.Desc.Size
		}
		if size < le.MinBindingSize {
			return fmt.Errorf("binding %d: %d bytes bound, %d required", le.Binding, size, le.MinBindingSize)
		}
	case gpu.BindingKindSampler, gpu.BindingKindSamplerComparison:
		s, ok := b.samplers[e.Sampler]
		if !ok {
			return fmt.Errorf("binding %d: unknown sampler %d", le.Binding, e.Sampler)
		}
		if comparison := s.Compare != gpu.CompareFunctionUndefined; comparison != (le.Kind == gpu.BindingKindSamplerComparison) {
			return fmt.Errorf("binding %d: sampler comparison mismatch", le.Binding)
		}
	default:
		v, ok := b.views[e.TextureView]
		if !ok {
			return fmt.Errorf("binding %d: unknown texture view %d", le.Binding, e.TextureView)
		}
		tex := b.textures[v.Texture]
		if tex == nil {
			return fmt.Errorf("binding %d: view %d has no texture", le.Binding, e.TextureView)
		}
		isDepth := tex.Desc.Format.IsDepth()
		wantDepth := le.Kind == gpu.BindingKindDepthTexture || le.Kind == gpu.BindingKindDepthTextureArray
		if isDepth != wantDepth {
			return fmt.Errorf("binding %d: texture %s format does not match", le.Binding, tex.Desc.Label)
		}
		isArray := v.Layer < 0 && tex.Desc.Layers > 1
		if isArray != (le.Kind == gpu.BindingKindDepthTextureArray) {
			return fmt.Errorf("binding %d: view dimension does not match", le.Binding)
		}
	}
	return nil
}

func (b *Backend) CreateRenderPipeline(p pipeline.Pipeline) (gpu.Pipeline, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.deviceLost {
		return 0, renderer.ErrDeviceLost
	}
	if p.Shader() == nil {
		return 0, fmt.Errorf("renderertest: pipeline %s has no shader", p.PipelineKey())
	}
	h := gpu.Pipeline(b.handle())
	b.pipelines[h] = p
	return h, nil
}

func (b *Backend) BeginEncoder(label string) (renderer.Encoder, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.deviceLost {
		return nil, renderer.ErrDeviceLost
	}
	e := &Encoder{backend: b, label: label}
	b.encoders = append(b.encoders, e)
	return e, nil
}

func (b *Backend) Submit(encoders ...renderer.Encoder) (renderer.Submission, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.deviceLost {
		return nil, renderer.ErrDeviceLost
	}
	sub := &Submission{done: make(chan struct{})}
	for _, e := range encoders {
		enc, ok := e.(*Encoder)
		if !ok || enc.backend != b {
			return nil, fmt.Errorf("renderertest: foreign encoder %s", e.Label())
		}
		if enc.submitted {
			return nil, fmt.Errorf("renderertest: encoder %s submitted twice", enc.label)
		}
		if enc.discarded {
			return nil, fmt.Errorf("renderertest: encoder %s was discarded", enc.label)
		}
		if enc.open != nil {
			return nil, fmt.Errorf("renderertest: encoder %s has an open pass", enc.label)
		}
		enc.submitted = true
		sub.Encoders = append(sub.Encoders, enc)
	}
	b.submissions = append(b.submissions, sub)
	if !b.manualCompletion {
		sub.complete()
	}
	return sub, nil
}

func (b *Backend) AcquireSurfaceView() (gpu.TextureView, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.deviceLost {
		return 0, renderer.ErrDeviceLost
	}
	if b.acquireFailures > 0 {
		b.acquireFailures--
		return 0, fmt.Errorf("%w: surface outdated", renderer.ErrSurfaceLost)
	}
	if b.surfaceView == 0 {
		b.surfaceView = gpu.TextureView(b.handle())
		b.views[b.surfaceView] = ViewRecord{Layer: -1}
	}
	return b.surfaceView, nil
}

func (b *Backend) Present() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.surfaceView == 0 {
		return fmt.Errorf("%w: no acquired surface image", renderer.ErrSurfaceLost)
	}
	delete(b.views, b.surfaceView)
	b.surfaceView = 0
	b.presents++
	return nil
}

func (b *Backend) Release(handles ...gpu.Handle) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, h := range handles {
		if h == 0 {
			continue
		}
		b.released = append(b.released, h)
		delete(b.buffers, gpu.Buffer(h))
		delete(b.textures, gpu.Texture(h))
		delete(b.views, gpu.TextureView(h))
		delete(b.samplers, gpu.Sampler(h))
		delete(b.bindGroups, gpu.BindGroup(h))
		delete(b.pipelines, gpu.Pipeline(h))
	}
}

func (b *Backend) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.deviceLost = true
	for _, s := range b.submissions {
		s.complete()
	}
}

// Submission is a recorded submission.
type Submission struct {
	Encoders []*Encoder

	once sync.Once
	done chan struct{}
}

var _ renderer.Submission = &Submission{}

func (s *Submission) complete() {
	s.once.Do(func() { close(s.done) })
}

func (s *Submission) Done() <-chan struct{} {
	return s.done
}

func (s *Submission) Wait(ctx context.Context) error {
	return renderer.WaitSubmission(ctx, s)
}

// Completed reports whether the submission has signalled completion.
func (s *Submission) Completed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// Labels returns the labels of the submitted encoders in order.
func (s *Submission) Labels() []string {
	labels := make([]string, len(s.Encoders))
	for i, e := range s.Encoders {
		labels[i] = e.label
	}
	return labels
}
