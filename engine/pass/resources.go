package pass

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-deferred/config"
	"github.com/Carmen-Shannon/oxy-deferred/engine/instance"
	"github.com/Carmen-Shannon/oxy-deferred/engine/light"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/material"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-deferred/engine/shadow"
)

// Bindings of the shared frame buffers within the lighting and G-buffer frame groups.
const (
	bindingCamera    uint32 = 0
	bindingLighting  uint32 = 1
	bindingCascades  uint32 = 2
	bindingInstances uint32 = 1
	bindingDraw      uint32 = 0

	shadowBindingCascades  uint32 = 0
	shadowBindingInstances uint32 = 1
)

// FrameResources are the GPU objects of one frame slot: uniform, instance and draw-constant
// buffers, the G-buffer and shadow targets and the bind groups every pass binds. A slot is only
// written while no submission that reads it is in flight.
type FrameResources struct {
	slot        int
	cascades    int
	hdrAlbedo   bool
	fadeStart   float32
	fadeEnd     float32
	maxInstance int

	GBuffer *GBufferTargets
	Shadow  *ShadowTargets
	Arena   *DrawArena
	sampler gpu.Sampler

	// lightingFrame owns the camera, lighting and cascade buffers; gbufferFrame owns the instance
	// buffer; shadowFrame shares both.
	lightingFrame  bind_group_provider.BindGroupProvider
	lightingInputs bind_group_provider.BindGroupProvider
	gbufferFrame   bind_group_provider.BindGroupProvider
	shadowFrame    bind_group_provider.BindGroupProvider
	draw           bind_group_provider.BindGroupProvider
}

// NewFrameResources allocates one frame slot. The pass pipelines must already be registered on r,
// since the bind group layouts come from their shaders.
//
// Parameters:
//   - r: the renderer
//   - cfg: capacities, cascade layout and fade thresholds
//   - width, height: the render target size in pixels
//   - slot: the slot index, used in labels
//
// Returns:
//   - *FrameResources: the slot
//   - error: a missing pipeline or the first allocation failure
func NewFrameResources(r renderer.Renderer, cfg config.Config, width, height, slot int) (*FrameResources, error) {
	layouts, err := passLayouts(r)
	if err != nil {
		return nil, err
	}
	f := &FrameResources{
		slot:        slot,
		cascades:    cfg.Cascades.Count,
		hdrAlbedo:   cfg.Renderer.HDRAlbedo,
		fadeStart:   cfg.Shadow.GrazingFadeStart,
		fadeEnd:     cfg.Shadow.GrazingFadeEnd,
		maxInstance: cfg.Renderer.MaxInstances,
		Arena:       NewDrawArena(cfg.Renderer.MaxDraws * (1 + cfg.Cascades.Count)),
	}
	if err := f.init(r, layouts, width, height, cfg.Cascades.MaxResolution()); err != nil {
		f.Release(r)
		return nil, fmt.Errorf("pass: frame slot %d: %w", slot, err)
	}
	return f, nil
}

type passLayoutSet struct {
	lightingFrame, lightingInputs gpu.BindGroupLayout
	gbufferFrame, shadowFrame     gpu.BindGroupLayout
	draw                          gpu.BindGroupLayout
}

func passLayouts(r renderer.Renderer) (passLayoutSet, error) {
	gbufferKey := material.Capability(0).PipelineKey(shader.KeyGBuffer)
	var missing []error
	lookup := func(key string) shader.Shader {
		p := r.Pipeline(key)
		if p == nil {
			missing = append(missing, fmt.Errorf("pass: pipeline %s is not registered", key))
			return nil
		}
		return p.Shader()
	}
	gb, sh, li := lookup(gbufferKey), lookup(shader.KeyShadow), lookup(shader.KeyLighting)
	if len(missing) > 0 {
		return passLayoutSet{}, errors.Join(missing...)
	}
	return passLayoutSet{
		lightingFrame:  li.Layout(0),
		lightingInputs: li.Layout(1),
		gbufferFrame:   gb.Layout(0),
		shadowFrame:    sh.Layout(0),
		draw:           gb.Layout(1),
	}, nil
}

func (f *FrameResources) label(name string) string {
	return fmt.Sprintf("slot %d %s", f.slot, name)
}

func (f *FrameResources) init(r renderer.Renderer, l passLayoutSet, width, height, shadowResolution int) error {
	f.lightingFrame = bind_group_provider.NewBindGroupProvider(f.label("lighting frame"), l.lightingFrame)
	if err := r.InitBindGroup(f.lightingFrame, nil); err != nil {
		return err
	}

	f.gbufferFrame = bind_group_provider.NewBindGroupProvider(f.label("gbuffer frame"), l.gbufferFrame,
		bind_group_provider.WithBuffer(bindingCamera, f.lightingFrame.Buffer(bindingCamera), 0),
	)
	instanceBytes := uint64(f.maxInstance * instance.GPUInstanceDataSize)
	if err := r.InitBindGroup(f.gbufferFrame, map[uint32]uint64{bindingInstances: instanceBytes}); err != nil {
		return err
	}

	f.shadowFrame = bind_group_provider.NewBindGroupProvider(f.label("shadow frame"), l.shadowFrame,
		bind_group_provider.WithBuffer(shadowBindingCascades, f.lightingFrame.Buffer(bindingCascades), 0),
		bind_group_provider.WithBuffer(shadowBindingInstances, f.gbufferFrame.Buffer(bindingInstances), 0),
	)
	if err := r.InitBindGroup(f.shadowFrame, nil); err != nil {
		return err
	}

	f.draw = bind_group_provider.NewBindGroupProvider(f.label("draw constants"), l.draw)
	drawBytes := uint64(f.Arena.Capacity() * material.DrawConstantsStride)
	if err := r.InitBindGroup(f.draw, map[uint32]uint64{bindingDraw: drawBytes}); err != nil {
		return err
	}

	var err error
	if f.Shadow, err = NewShadowTargets(r, f.cascades, shadowResolution); err != nil {
		return err
	}
	if f.sampler, err = r.CreateSampler(ShadowSampler()); err != nil {
		return fmt.Errorf("shadow sampler: %w", err)
	}
	f.lightingInputs = bind_group_provider.NewBindGroupProvider(f.label("lighting inputs"), l.lightingInputs)
	return f.initGBuffer(r, width, height)
}

// initGBuffer creates the G-buffer and the lighting input bind group that samples it.
func (f *FrameResources) initGBuffer(r renderer.Renderer, width, height int) error {
	var err error
	if f.GBuffer, err = NewGBufferTargets(r, width, height, f.hdrAlbedo); err != nil {
		return err
	}
	f.lightingInputs.SetTextureView(0, f.GBuffer.AlbedoView)
	f.lightingInputs.SetTextureView(1, f.GBuffer.NormalView)
	f.lightingInputs.SetTextureView(2, f.GBuffer.DepthView)
	f.lightingInputs.SetTextureView(3, f.Shadow.ArrayView)
	f.lightingInputs.SetSampler(4, f.sampler)
	return r.InitBindGroup(f.lightingInputs, nil)
}

// Resize replaces the G-buffer targets. The caller guarantees no submission using this slot is
// in flight.
//
// Parameters:
//   - r: the renderer that created the slot
//   - width, height: the new render target size in pixels
//
// Returns:
//   - error: the allocation failure; the slot then has no G-buffer and must be released
func (f *FrameResources) Resize(r renderer.Renderer, width, height int) error {
	r.ReleaseProvider(f.lightingInputs)
	if f.GBuffer != nil {
		r.Release(f.GBuffer.Handles()...)
		f.GBuffer = nil
	}
	if err := f.initGBuffer(r, width, height); err != nil {
		return fmt.Errorf("pass: frame slot %d: resize: %w", f.slot, err)
	}
	return nil
}

// Release destroys every object of the slot.
func (f *FrameResources) Release(r renderer.Renderer) {
	for _, p := range []bind_group_provider.BindGroupProvider{f.lightingInputs, f.draw, f.shadowFrame, f.gbufferFrame, f.lightingFrame} {
		if p != nil {
			r.ReleaseProvider(p)
		}
	}
	if f.GBuffer != nil {
		r.Release(f.GBuffer.Handles()...)
		f.GBuffer = nil
	}
	if f.Shadow != nil {
		r.Release(f.Shadow.Handles()...)
		f.Shadow = nil
	}
	if f.sampler != 0 {
		r.Release(gpu.Handle(f.sampler))
		f.sampler = 0
	}
}

// Slot returns the slot index.
func (f *FrameResources) Slot() int {
	return f.slot
}

// Write uploads a prepared frame: camera, lighting and cascade uniforms, the sealed instance data
// and the packed draw constants. The writes are queued ahead of any later submission.
//
// Parameters:
//   - r: the renderer
//   - fc: a frame context whose draw constants have been packed
//   - instances: the sealed instance store of the slot
//
// Returns:
//   - error: the joined write failures
func (f *FrameResources) Write(r renderer.Renderer, fc *FrameContext, instances instance.Store) error {
	if len(fc.Cascades) != f.cascades {
		return fmt.Errorf("pass: frame slot %d: %d cascades, resources hold %d", f.slot, len(fc.Cascades), f.cascades)
	}
	if !instances.Sealed() {
		return fmt.Errorf("pass: frame slot %d: instance store is not sealed", f.slot)
	}
	if instances.Len() > f.maxInstance {
		return fmt.Errorf("pass: frame slot %d: %d instances exceed %d", f.slot, instances.Len(), f.maxInstance)
	}
	splits := make([]float32, len(fc.Cascades))
	for i, c := range fc.Cascades {
		splits[i] = c.SplitFar
	}
	cam := fc.Frame.CameraUniform()
	lighting := light.NewGPULightingUniform(fc.Frame.Light, splits, f.fadeStart, f.fadeEnd)

	writes := []bind_group_provider.BufferWrite{
		{Provider: f.lightingFrame, Binding: bindingCamera, Data: cam.Marshal()},
		{Provider: f.lightingFrame, Binding: bindingLighting, Data: lighting.Marshal()},
		{Provider: f.lightingFrame, Binding: bindingCascades, Data: shadow.MarshalCascades(fc.Cascades, f.Shadow.Resolution)},
	}
	if data := instances.Bytes(); len(data) > 0 {
		writes = append(writes, bind_group_provider.BufferWrite{Provider: f.gbufferFrame, Binding: bindingInstances, Data: data})
	}
	if data := f.Arena.Bytes(); len(data) > 0 {
		writes = append(writes, bind_group_provider.BufferWrite{Provider: f.draw, Binding: bindingDraw, Data: data})
	}
	if err := r.WriteBuffers(writes); err != nil {
		return fmt.Errorf("pass: frame slot %d: %w", f.slot, err)
	}
	return nil
}
