package renderer

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/gpu"
	"github.com/cogentcore/webgpu/wgpu"
)

type wgpuEncoder struct {
	backend *wgpuRendererBackendImpl
	label   string
	encoder *wgpu.CommandEncoder
	open    *wgpuRenderPass
}

var _ Encoder = &wgpuEncoder{}

func (e *wgpuEncoder) Label() string {
	return e.label
}

func (e *wgpuEncoder) BeginRenderPass(desc gpu.RenderPassDesc) (RenderPass, error) {
	if e.encoder == nil {
		return nil, fmt.Errorf("renderer: encoder %s was already submitted or discarded", e.label)
	}
	if e.open != nil {
		return nil, fmt.Errorf("renderer: encoder %s: render pass %s is still open", e.label, e.open.label)
	}

	b := e.backend
	b.mu.Lock()
	passDesc := &wgpu.RenderPassDescriptor{Label: desc.Label}
	for _, c := range desc.Color {
		view, ok := b.views[c.View]
		if !ok {
			b.mu.Unlock()
			return nil, fmt.Errorf("renderer: render pass %s: unknown color view %d", desc.Label, c.View)
		}
		passDesc.ColorAttachments = append(passDesc.ColorAttachments, wgpu.RenderPassColorAttachment{
			View:    view,
			LoadOp:  toWGPULoadOp(c.Load),
			StoreOp: wgpu.StoreOpStore,
			ClearValue: wgpu.Color{
				R: c.ClearValue[0], G: c.ClearValue[1], B: c.ClearValue[2], A: c.ClearValue[3],
			},
		})
	}
	if d := desc.Depth; d != nil {
		view, ok := b.views[d.View]
		if !ok {
			b.mu.Unlock()
			return nil, fmt.Errorf("renderer: render pass %s: unknown depth view %d", desc.Label, d.View)
		}
		storeOp := wgpu.StoreOpDiscard
		if d.Store {
			storeOp = wgpu.StoreOpStore
		}
		passDesc.DepthStencilAttachment = &wgpu.RenderPassDepthStencilAttachment{
			View:            view,
			DepthLoadOp:     toWGPULoadOp(d.Load),
			DepthStoreOp:    storeOp,
			DepthClearValue: d.ClearValue,
		}
	}
	b.mu.Unlock()

	e.open = &wgpuRenderPass{
		encoder: e,
		label:   desc.Label,
		pass:    e.encoder.BeginRenderPass(passDesc),
	}
	return e.open, nil
}

func (e *wgpuEncoder) Discard() {
	if e.encoder == nil {
		return
	}
	if e.open != nil {
		_ = e.open.End()
	}
	e.encoder.Release()
	e.encoder = nil
}

// wgpuRenderPass resolves handles as commands are recorded and keeps the first failure for End.
type wgpuRenderPass struct {
	encoder *wgpuEncoder
	label   string
	pass    *wgpu.RenderPassEncoder
	err     error
}

var _ RenderPass = &wgpuRenderPass{}

func (p *wgpuRenderPass) fail(format string, args ...any) {
	if p.err == nil {
		p.err = fmt.Errorf("renderer: render pass %s: "+format, append([]any{p.label}, args...)...)
	}
}

func (p *wgpuRenderPass) SetPipeline(h gpu.Pipeline) {
	if p.pass == nil {
		p.fail("%w", errPassEnded)
		return
	}
	b := p.encoder.backend
	b.mu.Lock()
	rp, ok := b.pipelines[h]
	b.mu.Unlock()
	if !ok {
		p.fail("unknown pipeline %d", h)
		return
	}
	p.pass.SetPipeline(rp)
}

func (p *wgpuRenderPass) SetBindGroup(group uint32, h gpu.BindGroup, dynamicOffsets ...uint32) {
	if p.pass == nil {
		p.fail("%w", errPassEnded)
		return
	}
	for _, off := range dynamicOffsets {
		if off%DynamicOffsetAlignment != 0 {
			p.fail("dynamic offset %d is not %d-byte aligned", off, DynamicOffsetAlignment)
			return
		}
	}
	b := p.encoder.backend
	b.mu.Lock()
	bg, ok := b.bindGroups[h]
	b.mu.Unlock()
	if !ok {
		p.fail("unknown bind group %d at group %d", h, group)
		return
	}
	p.pass.SetBindGroup(group, bg, dynamicOffsets)
}

func (p *wgpuRenderPass) SetVertexBuffer(slot uint32, h gpu.Buffer) {
	if p.pass == nil {
		p.fail("%w", errPassEnded)
		return
	}
	b := p.encoder.backend
	b.mu.Lock()
	wb, ok := b.buffers[h]
	b.mu.Unlock()
	if !ok {
		p.fail("unknown vertex buffer %d", h)
		return
	}
	p.pass.SetVertexBuffer(slot, wb.buf, 0, wgpu.WholeSize)
}

func (p *wgpuRenderPass) SetIndexBuffer(h gpu.Buffer) {
	if p.pass == nil {
		p.fail("%w", errPassEnded)
		return
	}
	b := p.encoder.backend
	b.mu.Lock()
	wb, ok := b.buffers[h]
	b.mu.Unlock()
	if !ok {
		p.fail("unknown index buffer %d", h)
		return
	}
	p.pass.SetIndexBuffer(wb.buf, wgpu.IndexFormatUint32, 0, wgpu.WholeSize)
}

func (p *wgpuRenderPass) SetViewport(v gpu.Viewport) {
	if p.pass == nil {
		p.fail("%w", errPassEnded)
		return
	}
	p.pass.SetViewport(v.X, v.Y, v.Width, v.Height, 0, 1)
}

func (p *wgpuRenderPass) DrawIndexed(indexCount, instanceCount uint32) {
	if p.pass == nil {
		p.fail("%w", errPassEnded)
		return
	}
	p.pass.DrawIndexed(indexCount, instanceCount, 0, 0, 0)
}

func (p *wgpuRenderPass) Draw(vertexCount, instanceCount uint32) {
	if p.pass == nil {
		p.fail("%w", errPassEnded)
		return
	}
	p.pass.Draw(vertexCount, instanceCount, 0, 0)
}

func (p *wgpuRenderPass) End() error {
	if p.pass == nil {
		return errPassEnded
	}
	p.pass.End()
	p.pass.Release()
	p.pass = nil
	if p.encoder.open == p {
		p.encoder.open = nil
	}
	return p.err
}
