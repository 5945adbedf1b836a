package pass

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/shader"
	"go.uber.org/zap"
)

// shadowPassImpl is the implementation of the shadow cascade Pass.
type shadowPassImpl struct {
	passOptions
	pipelines PipelineSource
}

var _ Pass = &shadowPassImpl{}

// NewShadowPass creates the pass that renders scene depth from the light into every cascade layer.
// All cascades share one depth-only pipeline; material state is never bound.
//
// Parameters:
//   - pipelines: where the shadow pipeline is registered
//   - opts: builder options
//
// Returns:
//   - Pass: the shadow cascade pass
func NewShadowPass(pipelines PipelineSource, opts ...PassBuilderOption) Pass {
	return &shadowPassImpl{passOptions: newPassOptions(opts), pipelines: pipelines}
}

func (p *shadowPassImpl) Name() string {
	return "shadow"
}

func (p *shadowPassImpl) Record(enc renderer.Encoder, fc *FrameContext) error {
	if err := fc.packed(); err != nil {
		return err
	}
	pl := p.pipelines.Pipeline(shader.KeyShadow)
	if pl == nil {
		return errors.New("pass: shadow: pipeline is not registered")
	}
	targets := fc.Resources.Shadow
	if len(targets.LayerViews) < len(fc.Cascades) {
		return fmt.Errorf("pass: shadow: %d cascades, %d layers", len(fc.Cascades), len(targets.LayerViews))
	}

	for ci, c := range fc.Cascades {
		name := fmt.Sprintf("shadow cascade %d", ci)
		rp, err := enc.BeginRenderPass(gpu.RenderPassDesc{
			Label: name,
			Depth: &gpu.DepthAttachment{View: targets.LayerViews[ci], Load: gpu.LoadOpClear, ClearValue: 1, Store: true},
		})
		if err != nil {
			return fmt.Errorf("pass: %s: %w", name, err)
		}
		res := float32(min(c.Resolution, targets.Resolution))
		rp.SetViewport(gpu.Viewport{Width: res, Height: res})
		rp.SetPipeline(pl.Handle())
		rp.SetBindGroup(groupFrame, fc.Resources.shadowFrame.BindGroup())
		for i, d := range fc.Draws {
			if d.Mesh.IndexCount == 0 {
				continue
			}
			rp.SetBindGroup(groupDraw, fc.Resources.draw.BindGroup(), fc.shadowOffsets[ci][i])
			rp.SetVertexBuffer(0, d.Mesh.VertexBuffer)
			rp.SetIndexBuffer(d.Mesh.IndexBuffer)
			rp.DrawIndexed(d.Mesh.IndexCount, 1)
		}
		if err := endPass(rp, name, nil); err != nil {
			return err
		}
	}
	p.logger.Debug("shadow cascades recorded", zap.Int("cascades", len(fc.Cascades)), zap.Int("draws", len(fc.Draws)))
	return nil
}
