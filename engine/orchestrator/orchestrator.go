// Package orchestrator sequences the deferred frame. Each frame is prepared on the host into one of
// a fixed set of frame slots, its G-buffer and shadow cascades are encoded concurrently and
// submitted, and the lighting resolve is submitted and presented once the surface is acquired.
// A slot is reused only after the GPU has signalled completion of the last submission reading it.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-deferred/config"
	"github.com/Carmen-Shannon/oxy-deferred/engine/camera"
	"github.com/Carmen-Shannon/oxy-deferred/engine/instance"
	"github.com/Carmen-Shannon/oxy-deferred/engine/light"
	"github.com/Carmen-Shannon/oxy-deferred/engine/model"
	"github.com/Carmen-Shannon/oxy-deferred/engine/pass"
	"github.com/Carmen-Shannon/oxy-deferred/engine/profiler"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/material"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-deferred/engine/shadow"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

var (
	// ErrClosed is returned by every operation after Close.
	ErrClosed = errors.New("orchestrator: closed")
	// ErrMinimized is returned by RenderFrame while the surface has zero size. No work is done.
	ErrMinimized = errors.New("orchestrator: surface is minimized")
)

// Draw is one mesh drawn with one material and model matrix.
type Draw struct {
	Mesh      gpu.Mesh
	Material  material.Material
	Transform mgl32.Mat4
}

// FrameInput is the scene state of one frame. The camera and light are snapshotted when the frame
// starts; later changes do not affect it.
type FrameInput struct {
	Camera camera.Camera
	Light  light.DirectionalLight
	Draws  []Draw
}

// Stats are counters since New.
type Stats struct {
	FramesSubmitted uint64
	FramesAborted   uint64
	// InFlight is the number of frame slots owned by submitted, unfinished frames.
	InFlight int
	// LastSplits are the cascade split depths of the last frame that computed cascades.
	LastSplits []float32
}

// Orchestrator drives the G-buffer, shadow cascade and lighting passes for each frame and owns the
// per-frame GPU resources, registered materials and meshes.
type Orchestrator interface {
	// RegisterMaterial uploads a material's textures and creates its bind group for its G-buffer
	// variant. Registering a material twice does nothing.
	//
	// Parameters:
	//   - m: the material
	//
	// Returns:
	//   - error: ErrClosed, a missing variant pipeline or an upload failure
	RegisterMaterial(m material.Material) error

	// RegisterMesh uploads a model's geometry and stores the mesh on the model.
	//
	// Parameters:
	//   - m: the model
	//
	// Returns:
	//   - gpu.Mesh: the uploaded mesh
	//   - error: ErrClosed or an upload failure
	RegisterMesh(m model.Model) (gpu.Mesh, error)

	// RenderFrame renders and presents one frame. It blocks only while every frame slot is owned
	// by an in-flight frame.
	//
	// Parameters:
	//   - ctx: bounds the wait for a free frame slot
	//   - in: the scene state
	//
	// Returns:
	//   - error: ErrClosed, ErrMinimized, the context error, a preparation or recording error, or
	//     a wrapped renderer.ErrDeviceLost / renderer.ErrSurfaceLost after in-flight frames drained
	RenderFrame(ctx context.Context, in FrameInput) error

	// Resize waits for in-flight frames, reconfigures the surface and rebuilds the G-buffer of
	// every frame slot. Calling it with the current size recovers from an outdated surface. A zero
	// size suspends rendering until the next non-zero Resize.
	//
	// Parameters:
	//   - ctx: bounds the drain
	//   - width, height: the new surface size in pixels
	//
	// Returns:
	//   - error: ErrClosed, the context error or a surface or allocation failure
	Resize(ctx context.Context, width, height int) error

	// Reconfigure waits for in-flight frames, then rebuilds the pass pipelines, the cascade
	// calculator and every frame slot for a new configuration. The configuration is validated and
	// the pipelines built before anything is released, so an invalid configuration leaves the
	// orchestrator unchanged. When the new frame slots cannot be allocated the previous
	// configuration is reinstalled; if that fails as well RenderFrame reports the missing frame
	// resources until a later Reconfigure succeeds.
	//
	// Parameters:
	//   - ctx: bounds the drain
	//   - cfg: the new configuration
	//
	// Returns:
	//   - error: ErrClosed, a validation error, the context error or a rebuild failure
	Reconfigure(ctx context.Context, cfg config.Config) error

	// Drain waits until no frame is in flight.
	//
	// Parameters:
	//   - ctx: bounds the wait
	//
	// Returns:
	//   - error: the context error
	Drain(ctx context.Context) error

	// Close drains and releases every GPU object the orchestrator created. The renderer itself is
	// left open for its owner to close.
	//
	// Parameters:
	//   - ctx: bounds the drain
	//
	// Returns:
	//   - error: the context error when frames are still in flight; their resources are then
	//     released once the GPU has finished them
	Close(ctx context.Context) error

	// Stats returns a snapshot of the frame counters.
	//
	// Returns:
	//   - Stats: the counters
	Stats() Stats
}

// frameSlot is the host and GPU state of one frame in flight.
type frameSlot struct {
	index     int
	resources *pass.FrameResources
	store     instance.Store
}

type orchestrator struct {
	// frameMu serializes frame recording with resize, reconfigure and close
	frameMu *sync.Mutex
	// mu guards the free list and stats, which retirement goroutines touch
	mu *sync.Mutex

	r        renderer.Renderer
	cfg      config.Config
	width    int
	height   int
	logger   *zap.Logger
	pool     worker.DynamicWorkerPool
	ownsPool bool
	profiler *profiler.Profiler
	calc     shadow.Calculator

	sem   *semaphore.Weighted
	slots []*frameSlot
	free  []*frameSlot

	gbuffer  pass.Pass
	shadow   pass.Pass
	lighting pass.Pass

	materials map[uuid.UUID]bind_group_provider.BindGroupProvider
	meshes    []gpu.Mesh

	closed bool
	frame  uint64
	stats  Stats
}

var _ Orchestrator = &orchestrator{}

// newWorkerPool creates the pool of an orchestrator built without WithWorkerPool.
var newWorkerPool = func() worker.DynamicWorkerPool {
	return worker.NewDynamicWorkerPool(max(runtime.NumCPU()-1, 1), 256, 1*time.Second)
}

// New creates an Orchestrator rendering through r. It registers the pass pipelines for cfg and
// allocates cfg.Renderer.FramesInFlight frame slots. The renderer's surface must already be
// configured for width x height.
//
// Parameters:
//   - r: the renderer
//   - cfg: the configuration, validated here
//   - width, height: the surface size in pixels
//   - opts: builder options
//
// Returns:
//   - Orchestrator: the orchestrator
//   - error: a validation, pipeline or allocation error
func New(r renderer.Renderer, cfg config.Config, width, height int, opts ...OrchestratorBuilderOption) (Orchestrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := &orchestrator{
		frameMu:   &sync.Mutex{},
		mu:        &sync.Mutex{},
		r:         r,
		width:     width,
		height:    height,
		logger:    zap.NewNop(),
		materials: make(map[uuid.UUID]bind_group_provider.BindGroupProvider),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.pool == nil {
		o.pool = newWorkerPool()
		o.ownsPool = true
	}
	passOpts := []pass.PassBuilderOption{pass.WithLogger(o.logger)}
	o.gbuffer = pass.NewGBufferPass(r, passOpts...)
	o.shadow = pass.NewShadowPass(r, passOpts...)
	o.lighting = pass.NewLightingPass(r, passOpts...)

	pipelines, err := pipeline.NewPassPipelines(cfg, r.SurfaceFormat())
	if err != nil {
		return nil, fmt.Errorf("orchestrator: %w", err)
	}
	if err := o.apply(cfg, pipelines); err != nil {
		r.ReleasePipelines()
		o.stopPool()
		return nil, err
	}
	o.logger.Info("orchestrator ready",
		zap.Int("frames_in_flight", cfg.Renderer.FramesInFlight),
		zap.Int("cascades", cfg.Cascades.Count),
		zap.Int("width", width),
		zap.Int("height", height),
	)
	return o, nil
}

// apply installs a configuration: present mode, pipelines, calculator and frame slots. No frame
// may be in flight and no slots may be allocated. On failure the orchestrator keeps no slots and
// its previous cfg and calc; registered pipelines are left to the caller.
func (o *orchestrator) apply(cfg config.Config, pipelines []pipeline.Pipeline) error {
	mode, err := renderer.ParsePresentMode(cfg.Renderer.PresentMode)
	if err != nil {
		return err
	}
	calc, err := shadow.NewCalculator(shadow.WithConfig(cfg))
	if err != nil {
		return fmt.Errorf("orchestrator: %w", err)
	}
	o.r.SetPresentMode(mode)
	if err := o.r.RegisterPipelines(pipelines...); err != nil {
		return fmt.Errorf("orchestrator: %w", err)
	}

	w, h := max(o.width, 1), max(o.height, 1)
	slots := make([]*frameSlot, 0, cfg.Renderer.FramesInFlight)
	for i := range cfg.Renderer.FramesInFlight {
		res, err := pass.NewFrameResources(o.r, cfg, w, h, i)
		if err != nil {
			for _, s := range slots {
				s.resources.Release(o.r)
				s.store.Close()
			}
			return fmt.Errorf("orchestrator: %w", err)
		}
		slots = append(slots, &frameSlot{
			index:     i,
			resources: res,
			store: instance.NewStore(cfg.Renderer.MaxInstances,
				instance.WithWorkerPool(o.pool),
				instance.WithLogger(o.logger),
			),
		})
	}
	o.cfg = cfg
	o.calc = calc
	o.slots = slots
	o.free = append([]*frameSlot(nil), slots...)
	o.sem = semaphore.NewWeighted(int64(len(slots)))
	return nil
}

func (o *orchestrator) releaseSlots() {
	for _, s := range o.slots {
		s.resources.Release(o.r)
		s.store.Close()
	}
	o.slots = nil
	o.free = nil
}

// stopPool stops the worker pool when New created it.
func (o *orchestrator) stopPool() {
	if o.ownsPool {
		o.pool.Stop()
		o.ownsPool = false
	}
}

func (o *orchestrator) RegisterMaterial(m material.Material) error {
	o.frameMu.Lock()
	defer o.frameMu.Unlock()
	if o.closed {
		return ErrClosed
	}
	if _, ok := o.materials[m.ID()]; ok {
		return nil
	}
	provider, err := pass.UploadMaterial(o.r, m)
	if err != nil {
		return fmt.Errorf("orchestrator: %w", err)
	}
	o.materials[m.ID()] = provider
	o.logger.Debug("material registered", zap.String("name", m.Name()), zap.String("variant", m.PipelineKey()))
	return nil
}

func (o *orchestrator) RegisterMesh(m model.Model) (gpu.Mesh, error) {
	o.frameMu.Lock()
	defer o.frameMu.Unlock()
	if o.closed {
		return gpu.Mesh{}, ErrClosed
	}
	mesh, err := o.r.InitMeshBuffers(m.VertexData(), m.IndexData(), m.IndexCount())
	if err != nil {
		return gpu.Mesh{}, fmt.Errorf("orchestrator: mesh %s: %w", m.Name(), err)
	}
	m.SetMesh(mesh)
	o.meshes = append(o.meshes, mesh)
	return mesh, nil
}

func (o *orchestrator) RenderFrame(ctx context.Context, in FrameInput) error {
	o.frameMu.Lock()
	defer o.frameMu.Unlock()
	if o.closed {
		return ErrClosed
	}
	if o.width <= 0 || o.height <= 0 {
		return ErrMinimized
	}
	if len(o.slots) == 0 {
		return errors.New("orchestrator: no frame resources, the last reconfigure failed")
	}
	if in.Camera == nil || in.Light == nil {
		return errors.New("orchestrator: frame input needs a camera and a light")
	}
	if err := o.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("orchestrator: waiting for a frame slot: %w", err)
	}
	s := o.takeSlot()
	o.frame++
	frame := o.frame

	sub, err := o.renderSlot(ctx, s, in)
	if sub == nil {
		// nothing reads the slot on the GPU, so it is free again at once
		o.putSlot(s, o.sem)
	} else {
		o.retire(s, sub)
	}

	o.mu.Lock()
	if err != nil {
		o.stats.FramesAborted++
	} else {
		o.stats.FramesSubmitted++
	}
	o.mu.Unlock()

	if err == nil {
		if o.profiler != nil {
			o.profiler.Tick()
		}
		return nil
	}
	err = fmt.Errorf("orchestrator: frame %d: %w", frame, err)
	if errors.Is(err, renderer.ErrDeviceLost) || errors.Is(err, renderer.ErrSurfaceLost) {
		o.logger.Warn("frame aborted by device or surface loss, draining", zap.Uint64("frame", frame), zap.Error(err))
		if drainErr := o.drain(ctx); drainErr != nil {
			err = errors.Join(err, drainErr)
		}
	}
	return err
}

// renderSlot prepares, records and submits one frame into s. It returns the last submission that
// reads the slot, or nil when the failure happened before anything was submitted.
func (o *orchestrator) renderSlot(ctx context.Context, s *frameSlot, in FrameInput) (renderer.Submission, error) {
	f := pass.NewFrame(in.Camera, in.Light, o.width, o.height)
	cascades, err := o.calc.Compute(f.CameraView(), f.Light.Direction)
	if err != nil {
		return nil, err
	}
	splits := make([]float32, len(cascades))
	for i, c := range cascades {
		splits[i] = c.SplitFar
	}
	o.mu.Lock()
	o.stats.LastSplits = splits
	o.mu.Unlock()

	s.store.Reset()
	fc := &pass.FrameContext{
		Frame:      f,
		Cascades:   cascades,
		Resources:  s.resources,
		ClearColor: o.cfg.Renderer.ClearColor,
		Draws:      make([]pass.DrawItem, 0, len(in.Draws)),
	}
	for _, d := range in.Draws {
		idx, err := s.store.Append(d.Transform)
		if err != nil {
			return nil, err
		}
		fc.Draws = append(fc.Draws, pass.DrawItem{Mesh: d.Mesh, Material: d.Material, Instance: idx})
	}
	if err := s.store.Seal(); err != nil {
		return nil, err
	}
	if err := fc.PackDrawConstants(); err != nil {
		return nil, err
	}
	if err := s.resources.Write(o.r, fc, s.store); err != nil {
		return nil, err
	}

	// every encoder begun here is discarded on return; Discard does nothing once submitted
	var begun []renderer.Encoder
	defer func() {
		for _, e := range begun {
			e.Discard()
		}
	}()
	gbufferEnc, err := o.r.BeginEncoder(o.gbuffer.Name())
	if err != nil {
		return nil, err
	}
	begun = append(begun, gbufferEnc)
	shadowEnc, err := o.r.BeginEncoder(o.shadow.Name())
	if err != nil {
		return nil, err
	}
	begun = append(begun, shadowEnc)
	var g errgroup.Group
	g.Go(func() error { return o.gbuffer.Record(gbufferEnc, fc) })
	g.Go(func() error { return o.shadow.Record(shadowEnc, fc) })
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sub, err := o.r.Submit(gbufferEnc, shadowEnc)
	if err != nil {
		return nil, err
	}

	view, err := o.r.AcquireSurfaceView()
	if err != nil {
		return sub, err
	}
	fc.SurfaceView = view
	lightingEnc, err := o.r.BeginEncoder(o.lighting.Name())
	if err != nil {
		return sub, err
	}
	begun = append(begun, lightingEnc)
	if err := o.lighting.Record(lightingEnc, fc); err != nil {
		return sub, err
	}
	lightingSub, err := o.r.Submit(lightingEnc)
	if err != nil {
		return sub, err
	}
	// the queue executes in order, so the lighting submission finishing implies the first did
	if err := o.r.Present(); err != nil {
		return lightingSub, err
	}
	return lightingSub, nil
}

func (o *orchestrator) takeSlot() *frameSlot {
	o.mu.Lock()
	defer o.mu.Unlock()
	// oldest free slot first, so consecutive frames rotate through the slots
	s := o.free[0]
	o.free = o.free[1:]
	o.stats.InFlight++
	return s
}

func (o *orchestrator) putSlot(s *frameSlot, sem *semaphore.Weighted) {
	o.mu.Lock()
	o.free = append(o.free, s)
	o.stats.InFlight--
	o.mu.Unlock()
	sem.Release(1)
}

// retire returns s to the free list once sub completes.
func (o *orchestrator) retire(s *frameSlot, sub renderer.Submission) {
	sem := o.sem
	go func() {
		<-sub.Done()
		o.putSlot(s, sem)
		o.logger.Debug("frame slot retired", zap.Int("slot", s.index))
	}()
}

func (o *orchestrator) Drain(ctx context.Context) error {
	o.frameMu.Lock()
	defer o.frameMu.Unlock()
	return o.drain(ctx)
}

// drain waits until every slot is free by taking the whole semaphore.
func (o *orchestrator) drain(ctx context.Context) error {
	n := int64(len(o.slots))
	if n == 0 {
		return nil
	}
	if err := o.sem.Acquire(ctx, n); err != nil {
		return fmt.Errorf("orchestrator: drain: %w", err)
	}
	o.sem.Release(n)
	return nil
}

func (o *orchestrator) Resize(ctx context.Context, width, height int) error {
	o.frameMu.Lock()
	defer o.frameMu.Unlock()
	if o.closed {
		return ErrClosed
	}
	if err := o.drain(ctx); err != nil {
		return err
	}
	o.width, o.height = width, height
	if width <= 0 || height <= 0 {
		o.logger.Info("surface minimized, rendering suspended")
		return nil
	}
	if err := o.r.Resize(width, height); err != nil {
		return fmt.Errorf("orchestrator: resize: %w", err)
	}
	for _, s := range o.slots {
		if err := s.resources.Resize(o.r, width, height); err != nil {
			return fmt.Errorf("orchestrator: %w", err)
		}
	}
	o.logger.Info("resized", zap.Int("width", width), zap.Int("height", height))
	return nil
}

func (o *orchestrator) Reconfigure(ctx context.Context, cfg config.Config) error {
	o.frameMu.Lock()
	defer o.frameMu.Unlock()
	if o.closed {
		return ErrClosed
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	pipelines, err := pipeline.NewPassPipelines(cfg, o.r.SurfaceFormat())
	if err != nil {
		return fmt.Errorf("orchestrator: %w", err)
	}
	if err := o.drain(ctx); err != nil {
		return err
	}

	old := o.cfg
	o.releaseSlots()
	o.r.ReleasePipelines()
	if err := o.apply(cfg, pipelines); err != nil {
		if restoreErr := o.restore(old); restoreErr != nil {
			return errors.Join(err, restoreErr)
		}
		return err
	}
	// material bind groups survive: variant keys and the material layout do not depend on cfg
	o.logger.Info("reconfigured",
		zap.Int("frames_in_flight", cfg.Renderer.FramesInFlight),
		zap.Int("cascades", cfg.Cascades.Count),
	)
	return nil
}

// restore reinstalls old after apply failed for a new configuration.
func (o *orchestrator) restore(old config.Config) error {
	o.r.ReleasePipelines()
	pipelines, err := pipeline.NewPassPipelines(old, o.r.SurfaceFormat())
	if err == nil {
		err = o.apply(old, pipelines)
	}
	if err != nil {
		o.r.ReleasePipelines()
		o.logger.Error("previous configuration could not be restored, rendering stopped", zap.Error(err))
		return fmt.Errorf("orchestrator: restoring previous configuration: %w", err)
	}
	o.logger.Warn("reconfigure failed, previous configuration restored")
	return nil
}

func (o *orchestrator) Close(ctx context.Context) error {
	o.frameMu.Lock()
	defer o.frameMu.Unlock()
	if o.closed {
		return nil
	}
	o.closed = true
	if err := o.drain(ctx); err != nil {
		// the GPU may still read the in-flight slots, so everything is released after they retire
		sem, n := o.sem, int64(len(o.slots))
		o.logger.Warn("closing with frames in flight, release deferred", zap.Error(err))
		go func() {
			_ = sem.Acquire(context.Background(), n)
			o.frameMu.Lock()
			defer o.frameMu.Unlock()
			o.release()
		}()
		return err
	}
	o.release()
	return nil
}

// release frees every GPU object the orchestrator created. No frame may be in flight.
func (o *orchestrator) release() {
	o.releaseSlots()
	for id, p := range o.materials {
		if p != nil {
			o.r.ReleaseProvider(p)
		}
		delete(o.materials, id)
	}
	for _, m := range o.meshes {
		o.r.Release(gpu.Handle(m.VertexBuffer), gpu.Handle(m.IndexBuffer))
	}
	o.meshes = nil
	o.r.ReleasePipelines()
	o.stopPool()
	o.logger.Info("orchestrator closed", zap.Uint64("frames", o.frame))
}

func (o *orchestrator) Stats() Stats {
	o.mu.Lock()
	defer o.mu.Unlock()
	s := o.stats
	s.LastSplits = append([]float32(nil), o.stats.LastSplits...)
	return s
}
