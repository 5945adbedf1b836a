package pass

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/material"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-deferred/engine/shadow"
	"go.uber.org/zap"
)

// Pass records one stage of the deferred frame.
type Pass interface {
	// Name returns the pass label used for encoders and logs.
	Name() string

	// Record encodes the pass. It may run concurrently with other passes recording into other
	// encoders; it only reads the frame context.
	//
	// Parameters:
	//   - enc: the encoder to record into, owned by the caller
	//   - fc: the prepared frame
	//
	// Returns:
	//   - error: a missing pipeline, an unregistered material or a recording error
	Record(enc renderer.Encoder, fc *FrameContext) error
}

// PipelineSource looks up registered pipelines by key. renderer.Renderer satisfies it.
type PipelineSource interface {
	Pipeline(key string) pipeline.Pipeline
}

// FrameContext is everything the passes of one frame read: the frame snapshot, the draw list, the
// cascades and the slot resources. PackDrawConstants must run before any pass records.
type FrameContext struct {
	Frame     Frame
	Draws     []DrawItem
	Cascades  []shadow.Cascade
	Resources *FrameResources
	// SurfaceView is the acquired surface image the lighting pass writes. It is set after the
	// G-buffer and shadow passes are submitted.
	SurfaceView gpu.TextureView
	ClearColor  [4]float64

	gbufferOffsets []uint32
	shadowOffsets  [][]uint32
}

// PackDrawConstants fills the slot's draw arena with one block per G-buffer draw and one block per
// draw and cascade, and records their dynamic offsets.
//
// Returns:
//   - error: ErrArenaFull when the draw list is too long
func (fc *FrameContext) PackDrawConstants() error {
	arena := fc.Resources.Arena
	arena.Reset()
	fc.gbufferOffsets = make([]uint32, len(fc.Draws))
	fc.shadowOffsets = make([][]uint32, len(fc.Cascades))

	for i, d := range fc.Draws {
		off, err := arena.Push(material.NewGPUDrawConstants(d.Material, d.Instance))
		if err != nil {
			return err
		}
		fc.gbufferOffsets[i] = off
	}
	for c := range fc.Cascades {
		fc.shadowOffsets[c] = make([]uint32, len(fc.Draws))
		for i, d := range fc.Draws {
			off, err := arena.Push(material.GPUDrawConstants{InstanceIndex: d.Instance, CascadeIndex: uint32(c)})
			if err != nil {
				return err
			}
			fc.shadowOffsets[c][i] = off
		}
	}
	return nil
}

func (fc *FrameContext) packed() error {
	if fc.Resources == nil {
		return errors.New("pass: frame context has no resources")
	}
	if len(fc.gbufferOffsets) != len(fc.Draws) || len(fc.shadowOffsets) != len(fc.Cascades) {
		return errors.New("pass: draw constants are not packed")
	}
	return nil
}

// passOptions holds the settings shared by every pass.
type passOptions struct {
	logger *zap.Logger
}

func newPassOptions(opts []PassBuilderOption) passOptions {
	o := passOptions{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// endPass ends a render pass and joins its recording error with err.
func endPass(rp renderer.RenderPass, name string, err error) error {
	if endErr := rp.End(); endErr != nil {
		err = errors.Join(err, endErr)
	}
	if err != nil {
		return fmt.Errorf("pass: %s: %w", name, err)
	}
	return nil
}
