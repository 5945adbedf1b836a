package renderertest

import (
	"errors"
	"fmt"
	"slices"

	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/gpu"
)

// Op names a recorded render pass command.
type Op string

const (
	OpSetPipeline     Op = "set_pipeline"
	OpSetBindGroup    Op = "set_bind_group"
	OpSetVertexBuffer Op = "set_vertex_buffer"
	OpSetIndexBuffer  Op = "set_index_buffer"
	OpSetViewport     Op = "set_viewport"
	OpDrawIndexed     Op = "draw_indexed"
	OpDraw            Op = "draw"
)

// Command is one recorded render pass command. Only the fields of its Op are set.
type Command struct {
	Op        Op
	Pipeline  gpu.Pipeline
	Group     uint32
	BindGroup gpu.BindGroup
	Offsets   []uint32
	Buffer    gpu.Buffer
	Viewport  gpu.Viewport
	Count     uint32
	Instances uint32
}

// Pass is a recorded render pass.
type Pass struct {
	Desc     gpu.RenderPassDesc
	Commands []Command
	Ended    bool
}

// Draws returns the pass's draw commands.
func (p *Pass) Draws() []Command {
	var out []Command
	for _, c := range p.Commands {
		if c.Op == OpDraw || c.Op == OpDrawIndexed {
			out = append(out, c)
		}
	}
	return out
}

// Encoder is a recording renderer.Encoder.
type Encoder struct {
	backend   *Backend
	label     string
	passes    []*Pass
	open      *renderPass
	submitted bool
	discarded bool
}

var _ renderer.Encoder = &Encoder{}

func (e *Encoder) Label() string {
	return e.label
}

// Passes returns the recorded passes in order.
func (e *Encoder) Passes() []*Pass {
	return e.passes
}

// Submitted reports whether the encoder went through Submit.
func (e *Encoder) Submitted() bool {
	e.backend.mu.Lock()
	defer e.backend.mu.Unlock()
	return e.submitted
}

// Discarded reports whether Discard released the encoder before it was submitted.
func (e *Encoder) Discarded() bool {
	e.backend.mu.Lock()
	defer e.backend.mu.Unlock()
	return e.discarded
}

func (e *Encoder) Discard() {
	e.backend.mu.Lock()
	defer e.backend.mu.Unlock()
	if e.submitted || e.discarded {
		return
	}
	if e.open != nil {
		e.open.pass.Ended = true
		e.open = nil
	}
	e.discarded = true
}

func (e *Encoder) BeginRenderPass(desc gpu.RenderPassDesc) (renderer.RenderPass, error) {
	if e.submitted {
		return nil, fmt.Errorf("renderertest: encoder %s already submitted", e.label)
	}
	if e.discarded {
		return nil, fmt.Errorf("renderertest: encoder %s was discarded", e.label)
	}
	if e.open != nil {
		return nil, fmt.Errorf("renderertest: encoder %s has an open pass", e.label)
	}
	b := e.backend
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.deviceLost {
		return nil, renderer.ErrDeviceLost
	}
	views := make([]gpu.TextureView, 0, len(desc.Color)+1)
	for _, c := range desc.Color {
		views = append(views, c.View)
	}
	if desc.Depth != nil {
		views = append(views, desc.Depth.View)
	}
	for _, v := range views {
		if _, ok := b.views[v]; !ok {
			return nil, fmt.Errorf("renderertest: pass %s uses unknown view %d", desc.Label, v)
		}
	}
	desc.Color = slices.Clone(desc.Color)
	pass := &Pass{Desc: desc}
	e.passes = append(e.passes, pass)
	e.open = &renderPass{encoder: e, pass: pass}
	return e.open, nil
}

// renderPass validates commands against the backend's live objects as they are recorded.
type renderPass struct {
	encoder  *Encoder
	pass     *Pass
	pipeline gpu.Pipeline
	err      error
}

func (p *renderPass) record(c Command, check func(b *Backend) error) {
	if p.pass.Ended {
		p.fail(errors.New("command after End"))
		return
	}
	b := p.encoder.backend
	b.mu.Lock()
	err := check(b)
	b.mu.Unlock()
	if err != nil {
		p.fail(err)
		return
	}
	p.pass.Commands = append(p.pass.Commands, c)
}

func (p *renderPass) fail(err error) {
	if p.err == nil {
		p.err = fmt.Errorf("renderertest: pass %s: %w", p.pass.Desc.Label, err)
	}
}

func (p *renderPass) SetPipeline(h gpu.Pipeline) {
	p.record(Command{Op: OpSetPipeline, Pipeline: h}, func(b *Backend) error {
		if _, ok := b.pipelines[h]; !ok {
			return fmt.Errorf("unknown pipeline %d", h)
		}
		p.pipeline = h
		return nil
	})
}

func (p *renderPass) SetBindGroup(group uint32, bg gpu.BindGroup, dynamicOffsets ...uint32) {
	c := Command{Op: OpSetBindGroup, Group: group, BindGroup: bg, Offsets: slices.Clone(dynamicOffsets)}
	p.record(c, func(b *Backend) error {
		rec, ok := b.bindGroups[bg]
		if !ok {
			return fmt.Errorf("unknown bind group %d at group %d", bg, group)
		}
		dynamic := 0
		for _, le := range rec.Layout.Entries {
			if le.Kind == gpu.BindingKindUniformDynamic {
				dynamic++
			}
		}
		if dynamic != len(dynamicOffsets) {
			return fmt.Errorf("group %d needs %d dynamic offsets, got %d", group, dynamic, len(dynamicOffsets))
		}
		for _, off := range dynamicOffsets {
			if off%renderer.DynamicOffsetAlignment != 0 {
				return fmt.Errorf("dynamic offset %d is not aligned", off)
			}
		}
		return nil
	})
}

func (p *renderPass) SetVertexBuffer(slot uint32, buf gpu.Buffer) {
	p.record(Command{Op: OpSetVertexBuffer, Group: slot, Buffer: buf}, func(b *Backend) error {
		if rec, ok := b.buffers[buf]; !ok || rec.Desc.Usage&gpu.BufferUsageVertex == 0 {
			return fmt.Errorf("buffer %d is not a vertex buffer", buf)
		}
		return nil
	})
}

func (p *renderPass) SetIndexBuffer(buf gpu.Buffer) {
	p.record(Command{Op: OpSetIndexBuffer, Buffer: buf}, func(b *Backend) error {
		if rec, ok := b.buffers[buf]; !ok || rec.Desc.Usage&gpu.BufferUsageIndex == 0 {
			return fmt.Errorf("buffer %d is not an index buffer", buf)
		}
		return nil
	})
}

func (p *renderPass) SetViewport(v gpu.Viewport) {
	p.record(Command{Op: OpSetViewport, Viewport: v}, func(*Backend) error {
		if v.Width <= 0 || v.Height <= 0 {
			return fmt.Errorf("empty viewport %v", v)
		}
		return nil
	})
}

func (p *renderPass) DrawIndexed(indexCount, instanceCount uint32) {
	p.record(Command{Op: OpDrawIndexed, Count: indexCount, Instances: instanceCount}, p.checkDraw)
}

func (p *renderPass) Draw(vertexCount, instanceCount uint32) {
	p.record(Command{Op: OpDraw, Count: vertexCount, Instances: instanceCount}, p.checkDraw)
}

func (p *renderPass) checkDraw(*Backend) error {
	if p.pipeline == 0 {
		return errors.New("draw without a pipeline")
	}
	return nil
}

func (p *renderPass) End() error {
	if p.pass.Ended {
		return errors.New("renderertest: pass ended twice")
	}
	p.pass.Ended = true
	p.encoder.open = nil
	return p.err
}
