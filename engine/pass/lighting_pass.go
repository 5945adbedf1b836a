package pass

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/shader"
)

// Bind group indices of the lighting shader.
const (
	groupLightingFrame  uint32 = 0
	groupLightingInputs uint32 = 1
)

// lightingPassImpl is the implementation of the lighting resolve Pass.
type lightingPassImpl struct {
	passOptions
	pipelines PipelineSource
}

var _ Pass = &lightingPassImpl{}

// NewLightingPass creates the full-screen resolve that shades the G-buffer with the directional
// light, the cascaded shadow maps and the ambient term into the surface image. Pixels without
// geometry are discarded and keep the clear color.
//
// Parameters:
//   - pipelines: where the lighting pipeline is registered
//   - opts: builder options
//
// Returns:
//   - Pass: the lighting resolve pass
func NewLightingPass(pipelines PipelineSource, opts ...PassBuilderOption) Pass {
	return &lightingPassImpl{passOptions: newPassOptions(opts), pipelines: pipelines}
}

func (p *lightingPassImpl) Name() string {
	return "lighting"
}

func (p *lightingPassImpl) Record(enc renderer.Encoder, fc *FrameContext) error {
	if fc.Resources == nil {
		return errors.New("pass: lighting: frame context has no resources")
	}
	if fc.SurfaceView == 0 {
		return errors.New("pass: lighting: no surface image acquired")
	}
	pl := p.pipelines.Pipeline(shader.KeyLighting)
	if pl == nil {
		return errors.New("pass: lighting: pipeline is not registered")
	}
	rp, err := enc.BeginRenderPass(gpu.RenderPassDesc{
		Label: "lighting",
		Color: []gpu.ColorAttachment{{View: fc.SurfaceView, Load: gpu.LoadOpClear, ClearValue: fc.ClearColor}},
	})
	if err != nil {
		return fmt.Errorf("pass: lighting: %w", err)
	}
	rp.SetPipeline(pl.Handle())
	rp.SetBindGroup(groupLightingFrame, fc.Resources.lightingFrame.BindGroup())
	rp.SetBindGroup(groupLightingInputs, fc.Resources.lightingInputs.BindGroup())
	rp.Draw(3, 1)
	return endPass(rp, p.Name(), nil)
}
