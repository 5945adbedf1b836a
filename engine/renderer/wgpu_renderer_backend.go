package renderer

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/Carmen-Shannon/oxy-deferred/common"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/pipeline"
	"github.com/cogentcore/webgpu/wgpu"
	"go.uber.org/zap"
)

type wgpuBuffer struct {
	buf  *wgpu.Buffer
	size uint64
}

type wgpuTexture struct {
	tex  *wgpu.Texture
	desc gpu.TextureDesc
}

type wgpuRendererBackendImpl struct {
	mu     *sync.Mutex
	logger *zap.Logger

	device *wgpu.Device
	queue  *wgpu.Queue

	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	surface  *wgpu.Surface

	surfaceFormat wgpu.TextureFormat
	presentMode   wgpu.PresentMode

	// every object lives in exactly one of these maps under a handle unique across all of them
	nextHandle gpu.Handle
	buffers    map[gpu.Buffer]wgpuBuffer
	textures   map[gpu.Texture]wgpuTexture
	views      map[gpu.TextureView]*wgpu.TextureView
	samplers   map[gpu.Sampler]*wgpu.Sampler
	bindGroups map[gpu.BindGroup]*wgpu.BindGroup
	pipelines  map[gpu.Pipeline]*wgpu.RenderPipeline

	// layouts caches bind group layouts by their entries so pipelines and bind groups share them
	layouts map[string]*wgpu.BindGroupLayout

	// Frame state between AcquireSurfaceView and Present
	frameSurface *wgpu.Texture
	frameView    gpu.TextureView

	lost atomic.Bool
}

var _ RendererBackend = &wgpuRendererBackendImpl{}

func newWGPURendererBackend(surfaceDescriptor *wgpu.SurfaceDescriptor, forceFallbackAdapter bool, logger *zap.Logger) (*wgpuRendererBackendImpl, error) {
	runtime.LockOSThread()
	b := &wgpuRendererBackendImpl{
		mu:          &sync.Mutex{},
		logger:      logger,
		instance:    wgpu.CreateInstance(nil),
		presentMode: wgpu.PresentModeFifo,
		buffers:     make(map[gpu.Buffer]wgpuBuffer),
		textures:    make(map[gpu.Texture]wgpuTexture),
		views:       make(map[gpu.TextureView]*wgpu.TextureView),
		samplers:    make(map[gpu.Sampler]*wgpu.Sampler),
		bindGroups:  make(map[gpu.BindGroup]*wgpu.BindGroup),
		pipelines:   make(map[gpu.Pipeline]*wgpu.RenderPipeline),
		layouts:     make(map[string]*wgpu.BindGroupLayout),
	}
	b.surface = b.instance.CreateSurface(surfaceDescriptor)

	a, err := b.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: forceFallbackAdapter,
		CompatibleSurface:    b.surface,
	})
	if err != nil {
		return nil, fmt.Errorf("renderer: failed to request adapter: %w", err)
	}
	b.adapter = a

	d, err := a.RequestDevice(&wgpu.DeviceDescriptor{
		Label: "Main Device",
		RequiredLimits: &wgpu.RequiredLimits{
			Limits: wgpu.DefaultLimits(),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("renderer: failed to request device: %w", err)
	}
	b.device = d
	b.queue = d.GetQueue()

	b.surfaceFormat = wgpu.TextureFormatBGRA8UnormSrgb
	for _, f := range b.surface.GetCapabilities(b.adapter).Formats {
		if _, ok := fromWGPUTextureFormat(f); ok {
			b.surfaceFormat = f
			break
		}
	}
	return b, nil
}

// register stores an object under a fresh handle. The caller holds mu.
func (b *wgpuRendererBackendImpl) register() gpu.Handle {
	b.nextHandle++
	return b.nextHandle
}

func (b *wgpuRendererBackendImpl) checkDevice() error {
	if b.lost.Load() {
		return ErrDeviceLost
	}
	return nil
}

// markLost records a fatal device error and wraps it with ErrDeviceLost.
func (b *wgpuRendererBackendImpl) markLost(op string, err error) error {
	if !b.lost.Swap(true) {
		b.logger.Error("gpu device lost", zap.String("op", op), zap.Error(err))
	}
	return fmt.Errorf("%w: %s: %w", ErrDeviceLost, op, err)
}

func (b *wgpuRendererBackendImpl) SurfaceFormat() gpu.TextureFormat {
	f, _ := fromWGPUTextureFormat(b.surfaceFormat)
	return f
}

func (b *wgpuRendererBackendImpl) ConfigureSurface(width, height int) error {
	if err := b.checkDevice(); err != nil {
		return err
	}
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: surface size %dx%d", ErrSurfaceLost, width, height)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	capabilities := b.surface.GetCapabilities(b.adapter)
	b.surface.Configure(b.adapter, b.device, &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      b.surfaceFormat,
		Width:       uint32(width),
		Height:      uint32(height),
		PresentMode: b.presentMode,
		AlphaMode:   capabilities.AlphaModes[0],
	})
	return nil
}

func (b *wgpuRendererBackendImpl) SetPresentMode(mode PresentMode) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch mode {
	case PresentModeUncapped:
		b.presentMode = wgpu.PresentModeImmediate
	default:
		b.presentMode = wgpu.PresentModeFifo
	}
}

func (b *wgpuRendererBackendImpl) CreateBuffer(desc gpu.BufferDesc) (gpu.Buffer, error) {
	if err := b.checkDevice(); err != nil {
		return 0, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	buf, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label:            desc.Label,
		Size:             desc.Size,
		Usage:            toWGPUBufferUsage(desc.Usage),
		MappedAtCreation: false,
	})
	if err != nil {
		return 0, fmt.Errorf("renderer: failed to create buffer %s: %w", desc.Label, err)
	}
	h := gpu.Buffer(b.register())
	b.buffers[h] = wgpuBuffer{buf: buf, size: desc.Size}
	return h, nil
}

func (b *wgpuRendererBackendImpl) WriteBuffer(buf gpu.Buffer, offset uint64, data []byte) error {
	if err := b.checkDevice(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	wb, ok := b.buffers[buf]
	if !ok {
		return fmt.Errorf("renderer: unknown buffer %d", buf)
	}
	if offset+uint64(len(data)) > wb.size || offset%4 != 0 || len(data)%4 != 0 {
		return fmt.Errorf("renderer: write of %d bytes at %d does not fit buffer %d of %d bytes", len(data), offset, buf, wb.size)
	}
	b.queue.WriteBuffer(wb.buf, offset, data)
	return nil
}

func (b *wgpuRendererBackendImpl) CreateTexture(desc gpu.TextureDesc) (gpu.Texture, error) {
	if err := b.checkDevice(); err != nil {
		return 0, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	desc.Layers = max(desc.Layers, 1)
	tex, err := b.device.CreateTexture(&wgpu.TextureDescriptor{
		Label:     desc.Label,
		Usage:     toWGPUTextureUsage(desc.Usage),
		Dimension: wgpu.TextureDimension2D,
		Size: wgpu.Extent3D{
			Width:              desc.Width,
			Height:             desc.Height,
			DepthOrArrayLayers: desc.Layers,
		},
		Format:        toWGPUTextureFormat(desc.Format),
		MipLevelCount: 1,
		SampleCount:   1,
	})
	if err != nil {
		return 0, fmt.Errorf("renderer: failed to create texture %s: %w", desc.Label, err)
	}
	h := gpu.Texture(b.register())
	b.textures[h] = wgpuTexture{tex: tex, desc: desc}
	return h, nil
}

func (b *wgpuRendererBackendImpl) WriteTexture(tex gpu.Texture, data common.TextureStagingData) error {
	if err := b.checkDevice(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.textures[tex]
	if !ok {
		return fmt.Errorf("renderer: unknown texture %d", tex)
	}
	bytesPerRow := data.Width * t.desc.Format.BytesPerTexel()
	if data.Width != t.desc.Width || data.Height != t.desc.Height || uint32(len(data.Pixels)) != bytesPerRow*data.Height {
		return fmt.Errorf("renderer: %dx%d pixels (%d bytes) do not match texture %s", data.Width, data.Height, len(data.Pixels), t.desc.Label)
	}

	b.queue.WriteTexture(
		&wgpu.ImageCopyTexture{
			Texture:  t.tex,
			MipLevel: 0,
			Origin:   wgpu.Origin3D{},
			Aspect:   wgpu.TextureAspectAll,
		},
		data.Pixels,
		&wgpu.TextureDataLayout{
			Offset:       0,
			BytesPerRow:  bytesPerRow,
			RowsPerImage: data.Height,
		},
		&wgpu.Extent3D{
			Width:              data.Width,
			Height:             data.Height,
			DepthOrArrayLayers: 1,
		},
	)
	return nil
}

func (b *wgpuRendererBackendImpl) CreateTextureView(tex gpu.Texture, layer int) (gpu.TextureView, error) {
	if err := b.checkDevice(); err != nil {
		return 0, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.textures[tex]
	if !ok {
		return 0, fmt.Errorf("renderer: unknown texture %d", tex)
	}
	if layer >= int(t.desc.Layers) {
		return 0, fmt.Errorf("renderer: layer %d out of range for texture %s with %d layers", layer, t.desc.Label, t.desc.Layers)
	}

	desc := &wgpu.TextureViewDescriptor{
		Label:           t.desc.Label + " View",
		Format:          toWGPUTextureFormat(t.desc.Format),
		Dimension:       wgpu.TextureViewDimension2D,
		BaseMipLevel:    0,
		MipLevelCount:   1,
		BaseArrayLayer:  0,
		ArrayLayerCount: 1,
		Aspect:          wgpu.TextureAspectAll,
	}
	switch {
	case layer >= 0:
		desc.Label = fmt.Sprintf("%s Layer %d", t.desc.Label, layer)
		desc.BaseArrayLayer = uint32(layer)
	case t.desc.Layers > 1:
		desc.Dimension = wgpu.TextureViewDimension2DArray
		desc.ArrayLayerCount = t.desc.Layers
	}

	view, err := t.tex.CreateView(desc)
	if err != nil {
		return 0, fmt.Errorf("renderer: failed to create view of %s: %w", t.desc.Label, err)
	}
	h := gpu.TextureView(b.register())
	b.views[h] = view
	return h, nil
}

func (b *wgpuRendererBackendImpl) CreateSampler(desc common.SamplerStagingData) (gpu.Sampler, error) {
	if err := b.checkDevice(); err != nil {
		return 0, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	s, err := b.device.CreateSampler(&wgpu.SamplerDescriptor{
		Label:         "Sampler",
		AddressModeU:  toWGPUAddressMode(common.Coalesce(desc.AddressModeU, gpu.AddressModeClampToEdge)),
		AddressModeV:  toWGPUAddressMode(common.Coalesce(desc.AddressModeV, gpu.AddressModeClampToEdge)),
		AddressModeW:  toWGPUAddressMode(common.Coalesce(desc.AddressModeW, gpu.AddressModeClampToEdge)),
		MagFilter:     toWGPUFilterMode(common.Coalesce(desc.MagFilter, gpu.FilterModeLinear)),
		MinFilter:     toWGPUFilterMode(common.Coalesce(desc.MinFilter, gpu.FilterModeLinear)),
		MipmapFilter:  wgpu.MipmapFilterModeNearest,
		LodMinClamp:   desc.LodMinClamp,
		LodMaxClamp:   common.Coalesce(desc.LodMaxClamp, 32),
		Compare:       toWGPUCompareFunction(desc.Compare),
		MaxAnisotropy: common.Coalesce(desc.MaxAnisotropy, 1),
	})
	if err != nil {
		return 0, fmt.Errorf("renderer: failed to create sampler: %w", err)
	}
	h := gpu.Sampler(b.register())
	b.samplers[h] = s
	return h, nil
}

// bindGroupLayout returns the cached layout for the given entries, creating it on first use. The
// caller holds mu.
func (b *wgpuRendererBackendImpl) bindGroupLayout(layout gpu.BindGroupLayout) (*wgpu.BindGroupLayout, error) {
	key := fmt.Sprint(layout.Entries)
	if l, ok := b.layouts[key]; ok {
		return l, nil
	}
	entries := make([]wgpu.BindGroupLayoutEntry, len(layout.Entries))
	for i, le := range layout.Entries {
		entries[i] = toWGPULayoutEntry(le)
	}
	l, err := b.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label:   layout.Label,
		Entries: entries,
	})
	if err != nil {
		return nil, fmt.Errorf("renderer: failed to create bind group layout %s: %w", layout.Label, err)
	}
	b.layouts[key] = l
	return l, nil
}

func (b *wgpuRendererBackendImpl) CreateBindGroup(label string, layout gpu.BindGroupLayout, entries []gpu.BindGroupEntry) (gpu.BindGroup, error) {
	if err := b.checkDevice(); err != nil {
		return 0, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	l, err := b.bindGroupLayout(layout)
	if err != nil {
		return 0, err
	}
	if len(entries) != len(layout.Entries) {
		return 0, fmt.Errorf("renderer: bind group %s has %d entries, layout has %d", label, len(entries), len(layout.Entries))
	}

	wgpuEntries := make([]wgpu.BindGroupEntry, len(entries))
	for i, e := range entries {
		we := wgpu.BindGroupEntry{Binding: e.Binding}
		switch {
		case e.Buffer != 0:
			wb, ok := b.buffers[e.Buffer]
			if !ok {
				return 0, fmt.Errorf("renderer: bind group %s: unknown buffer %d", label, e.Buffer)
			}
			we.Buffer = wb.buf
			we.Offset = e.Offset
			we.Size = e.Size
			if we.Size == 0 {
				we.Size = wgpu.WholeSize
			}
		case e.TextureView != 0:
			view, ok := b.views[e.TextureView]
			if !ok {
				return 0, fmt.Errorf("renderer: bind group %s: unknown texture view %d", label, e.TextureView)
			}
			we.TextureView = view
		case e.Sampler != 0:
			s, ok := b.samplers[e.Sampler]
			if !ok {
				return 0, fmt.Errorf("renderer: bind group %s: unknown sampler %d", label, e.Sampler)
			}
			we.Sampler = s
		default:
			return 0, fmt.Errorf("renderer: bind group %s: binding %d has no resource", label, e.Binding)
		}
		wgpuEntries[i] = we
	}

	bindGroup, err := b.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   label + " Bind Group",
		Layout:  l,
		Entries: wgpuEntries,
	})
	if err != nil {
		return 0, fmt.Errorf("renderer: failed to create bind group %s: %w", label, err)
	}
	h := gpu.BindGroup(b.register())
	b.bindGroups[h] = bindGroup
	return h, nil
}

func (b *wgpuRendererBackendImpl) CreateRenderPipeline(p pipeline.Pipeline) (gpu.Pipeline, error) {
	if err := b.checkDevice(); err != nil {
		return 0, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	s := p.Shader()
	module, err := b.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label: s.Key(),
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
			Code: s.Source(),
		},
	})
	if err != nil {
		return 0, fmt.Errorf("renderer: failed to create shader module %s: %w", s.Key(), err)
	}
	defer module.Release()

	layouts := s.Layouts()
	bindGroupLayouts := make([]*wgpu.BindGroupLayout, len(layouts))
	for g, layout := range layouts {
		bindGroupLayouts[g], err = b.bindGroupLayout(layout)
		if err != nil {
			return 0, err
		}
	}
	pipelineLayout, err := b.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            p.PipelineKey(),
		BindGroupLayouts: bindGroupLayouts,
	})
	if err != nil {
		return 0, fmt.Errorf("renderer: failed to create pipeline layout %s: %w", p.PipelineKey(), err)
	}
	defer pipelineLayout.Release()

	var vertexBuffers []wgpu.VertexBufferLayout
	if vl := p.VertexLayout(); vl != nil {
		vertexBuffers = []wgpu.VertexBufferLayout{toWGPUVertexLayout(*vl)}
	}

	var fragment *wgpu.FragmentState
	if s.FragmentEntryPoint() != "" {
		targets := make([]wgpu.ColorTargetState, len(p.ColorFormats()))
		for i, f := range p.ColorFormats() {
			targets[i] = wgpu.ColorTargetState{
				Format:    toWGPUTextureFormat(f),
				WriteMask: wgpu.ColorWriteMaskAll,
			}
		}
		fragment = &wgpu.FragmentState{
			Module:     module,
			EntryPoint: s.FragmentEntryPoint(),
			Targets:    targets,
		}
	}

	var depthStencil *wgpu.DepthStencilState
	if p.DepthFormat() != gpu.TextureFormatUndefined {
		depthStencil = &wgpu.DepthStencilState{
			Format:              toWGPUTextureFormat(p.DepthFormat()),
			DepthWriteEnabled:   p.DepthWriteEnabled(),
			DepthCompare:        toWGPUCompareFunction(p.DepthCompare()),
			DepthBias:           p.DepthBias(),
			DepthBiasSlopeScale: p.DepthBiasSlopeScale(),
			StencilFront: wgpu.StencilFaceState{
				Compare: wgpu.CompareFunctionAlways,
			},
			StencilBack: wgpu.StencilFaceState{
				Compare: wgpu.CompareFunctionAlways,
			},
		}
	}

	created, err := b.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  p.PipelineKey() + " Pipeline",
		Layout: pipelineLayout,
		Vertex: wgpu.VertexState{
			Module:     module,
			EntryPoint: s.VertexEntryPoint(),
			Buffers:    vertexBuffers,
		},
		Fragment: fragment,
		Primitive: wgpu.PrimitiveState{
			Topology:  wgpu.PrimitiveTopologyTriangleList,
			FrontFace: wgpu.FrontFaceCCW,
			CullMode:  toWGPUCullMode(p.CullMode()),
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
		DepthStencil: depthStencil,
	})
	if err != nil {
		return 0, fmt.Errorf("renderer: failed to create render pipeline %s: %w", p.PipelineKey(), err)
	}
	h := gpu.Pipeline(b.register())
	b.pipelines[h] = created
	return h, nil
}

func (b *wgpuRendererBackendImpl) BeginEncoder(label string) (Encoder, error) {
	if err := b.checkDevice(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	encoder, err := b.device.CreateCommandEncoder(&wgpu.CommandEncoderDescriptor{Label: label})
	if err != nil {
		return nil, b.markLost("create command encoder", err)
	}
	return &wgpuEncoder{backend: b, label: label, encoder: encoder}, nil
}

func (b *wgpuRendererBackendImpl) Submit(encoders ...Encoder) (Submission, error) {
	if err := b.checkDevice(); err != nil {
		return nil, err
	}

	commandBuffers := make([]*wgpu.CommandBuffer, 0, len(encoders))
	release := func() {
		for _, cb := range commandBuffers {
			cb.Release()
		}
		for _, e := range encoders {
			if we, ok := e.(*wgpuEncoder); ok && we.encoder != nil {
				we.encoder.Release()
				we.encoder = nil
			}
		}
	}
	defer release()

	for _, e := range encoders {
		we, ok := e.(*wgpuEncoder)
		if !ok || we.backend != b {
			return nil, fmt.Errorf("renderer: encoder %s was not created by this backend", e.Label())
		}
		if we.encoder == nil {
			return nil, fmt.Errorf("renderer: encoder %s was already submitted or discarded", we.label)
		}
		if we.open != nil {
			return nil, fmt.Errorf("renderer: encoder %s has an open render pass", we.label)
		}
		cb, err := we.encoder.Finish(nil)
		if err != nil {
			return nil, b.markLost("finish "+we.label, err)
		}
		commandBuffers = append(commandBuffers, cb)
	}

	b.mu.Lock()
	b.queue.Submit(commandBuffers...)
	b.mu.Unlock()

	sub := &wgpuSubmission{done: make(chan struct{})}
	go func() {
		// Poll with wait blocks until the queue has drained, which includes this submission.
		b.device.Poll(true, nil)
		close(sub.done)
	}()
	return sub, nil
}

func (b *wgpuRendererBackendImpl) AcquireSurfaceView() (gpu.TextureView, error) {
	if err := b.checkDevice(); err != nil {
		return 0, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.frameSurface != nil {
		return b.frameView, nil
	}
	surfaceTexture, err := b.surface.GetCurrentTexture()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrSurfaceLost, err)
	}
	view, err := surfaceTexture.CreateView(nil)
	if err != nil {
		surfaceTexture.Release()
		return 0, fmt.Errorf("%w: %w", ErrSurfaceLost, err)
	}
	b.frameSurface = surfaceTexture
	b.frameView = gpu.TextureView(b.register())
	b.views[b.frameView] = view
	return b.frameView, nil
}

func (b *wgpuRendererBackendImpl) Present() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.frameSurface == nil {
		return fmt.Errorf("%w: no acquired surface image", ErrSurfaceLost)
	}
	b.surface.Present()

	if view, ok := b.views[b.frameView]; ok {
		view.Release()
		delete(b.views, b.frameView)
	}
	b.frameSurface.Release()
	b.frameSurface = nil
	b.frameView = 0
	return nil
}

func (b *wgpuRendererBackendImpl) Release(handles ...gpu.Handle) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, h := range handles {
		if wb, ok := b.buffers[gpu.Buffer(h)]; ok {
			wb.buf.Release()
			delete(b.buffers, gpu.Buffer(h))
		} else if t, ok := b.textures[gpu.Texture(h)]; ok {
			t.tex.Release()
			delete(b.textures, gpu.Texture(h))
		} else if v, ok := b.views[gpu.TextureView(h)]; ok {
			v.Release()
			delete(b.views, gpu.TextureView(h))
		} else if s, ok := b.samplers[gpu.Sampler(h)]; ok {
			s.Release()
			delete(b.samplers, gpu.Sampler(h))
		} else if bg, ok := b.bindGroups[gpu.BindGroup(h)]; ok {
			bg.Release()
			delete(b.bindGroups, gpu.BindGroup(h))
		} else if p, ok := b.pipelines[gpu.Pipeline(h)]; ok {
			p.Release()
			delete(b.pipelines, gpu.Pipeline(h))
		}
	}
}

func (b *wgpuRendererBackendImpl) Close() {
	b.lost.Store(true)

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, bg := range b.bindGroups {
		bg.Release()
	}
	for _, p := range b.pipelines {
		p.Release()
	}
	for _, l := range b.layouts {
		l.Release()
	}
	for _, v := range b.views {
		v.Release()
	}
	for _, s := range b.samplers {
		s.Release()
	}
	for _, t := range b.textures {
		t.tex.Release()
	}
	for _, wb := range b.buffers {
		wb.buf.Release()
	}
	clear(b.bindGroups)
	clear(b.pipelines)
	clear(b.layouts)
	clear(b.views)
	clear(b.samplers)
	clear(b.textures)
	clear(b.buffers)

	if b.frameSurface != nil {
		b.frameSurface.Release()
		b.frameSurface = nil
	}
	b.queue.Release()
	b.device.Release()
	b.adapter.Release()
	b.surface.Release()
	b.instance.Release()
}

// wgpuSubmission completes when the queue has drained past the submission.
type wgpuSubmission struct {
	done chan struct{}
}

func (s *wgpuSubmission) Done() <-chan struct{} {
	return s.done
}

func (s *wgpuSubmission) Wait(ctx context.Context) error {
	return WaitSubmission(ctx, s)
}

var errPassEnded = errors.New("renderer: render pass already ended")
