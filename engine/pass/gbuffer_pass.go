package pass

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/material"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/shader"
	"go.uber.org/zap"
)

// Bind group indices of the G-buffer and shadow shaders.
const (
	groupFrame    uint32 = 0
	groupDraw     uint32 = 1
	groupMaterial uint32 = 2
)

// gBufferPassImpl is the implementation of the G-buffer Pass.
type gBufferPassImpl struct {
	passOptions
	pipelines PipelineSource
}

var _ Pass = &gBufferPassImpl{}

// NewGBufferPass creates the pass that rasterizes every draw into the albedo, normal, ORM and depth
// attachments. No lighting happens here.
//
// Parameters:
//   - pipelines: where the G-buffer variant pipelines are registered
//   - opts: builder options
//
// Returns:
//   - Pass: the G-buffer pass
func NewGBufferPass(pipelines PipelineSource, opts ...PassBuilderOption) Pass {
	return &gBufferPassImpl{passOptions: newPassOptions(opts), pipelines: pipelines}
}

func (p *gBufferPassImpl) Name() string {
	return "gbuffer"
}

// variantKey returns the pipeline key a material draws with.
func variantKey(m material.Material) string {
	if key := m.PipelineKey(); key != "" {
		return key
	}
	return m.Capability().PipelineKey(shader.KeyGBuffer)
}

func (p *gBufferPassImpl) Record(enc renderer.Encoder, fc *FrameContext) error {
	if err := fc.packed(); err != nil {
		return err
	}
	t := fc.Resources.GBuffer
	rp, err := enc.BeginRenderPass(gpu.RenderPassDesc{
		Label: "gbuffer",
		Color: []gpu.ColorAttachment{
			{View: t.AlbedoView, Load: gpu.LoadOpClear},
			{View: t.NormalView, Load: gpu.LoadOpClear},
			{View: t.ORMView, Load: gpu.LoadOpClear},
		},
		Depth: &gpu.DepthAttachment{View: t.DepthView, Load: gpu.LoadOpClear, ClearValue: 1, Store: true},
	})
	if err != nil {
		return fmt.Errorf("pass: gbuffer: %w", err)
	}
	return endPass(rp, p.Name(), p.draw(rp, fc))
}

func (p *gBufferPassImpl) draw(rp renderer.RenderPass, fc *FrameContext) error {
	// draws are grouped by variant so each pipeline is bound once
	order := make([]int, len(fc.Draws))
	keys := make([]string, len(fc.Draws))
	for i, d := range fc.Draws {
		order[i] = i
		keys[i] = variantKey(d.Material)
	}
	slices.SortStableFunc(order, func(a, b int) int { return cmp.Compare(keys[a], keys[b]) })

	rp.SetBindGroup(groupFrame, fc.Resources.gbufferFrame.BindGroup())
	var bound string
	for _, i := range order {
		d := fc.Draws[i]
		if d.Mesh.IndexCount == 0 {
			continue
		}
		if keys[i] != bound {
			pl := p.pipelines.Pipeline(keys[i])
			if pl == nil {
				return fmt.Errorf("no pipeline registered for variant %s", keys[i])
			}
			rp.SetPipeline(pl.Handle())
			bound = keys[i]
		}
		rp.SetBindGroup(groupDraw, fc.Resources.draw.BindGroup(), fc.gbufferOffsets[i])
		if d.Material.Capability().HasTextures() {
			bg := d.Material.BindGroup()
			if bg == 0 {
				return fmt.Errorf("material %s (%s) is not registered", d.Material.Name(), d.Material.ID())
			}
			rp.SetBindGroup(groupMaterial, bg)
		}
		rp.SetVertexBuffer(0, d.Mesh.VertexBuffer)
		rp.SetIndexBuffer(d.Mesh.IndexBuffer)
		rp.DrawIndexed(d.Mesh.IndexCount, 1)
	}
	p.logger.Debug("gbuffer recorded", zap.Int("draws", len(fc.Draws)))
	return nil
}
