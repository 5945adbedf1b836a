package renderer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Carmen-Shannon/oxy-deferred/common"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/pipeline"
)

var (
	// ErrDeviceLost is returned once the GPU device is gone. Every later call fails with it.
	ErrDeviceLost = errors.New("renderer: device lost")
	// ErrSurfaceLost is returned when the surface cannot produce a frame (outdated, resized or minimized).
	ErrSurfaceLost = errors.New("renderer: surface lost")
)

// DynamicOffsetAlignment is the byte alignment required of dynamic uniform offsets.
const DynamicOffsetAlignment = 256

// RendererBackendType identifies the GPU backend implementation used by the Renderer.
type RendererBackendType int

const (
	// BackendTypeWGPU selects the WebGPU-based rendering backend.
	BackendTypeWGPU RendererBackendType = iota
)

// PresentMode controls how rendered frames are presented to the display surface.
type PresentMode int

const (
	// PresentModeVSync waits for the next vertical blank before presenting, capping frame rate
	// to the monitor's refresh rate. Eliminates tearing.
	PresentModeVSync PresentMode = iota

	// PresentModeUncapped presents frames immediately without waiting for vertical blank.
	// May cause screen tearing but provides the lowest latency.
	PresentModeUncapped
)

// ParsePresentMode maps the configuration spelling ("vsync" or "uncapped") to a PresentMode.
//
// Parameters:
//   - s: the configured mode, case-insensitive
//
// Returns:
//   - PresentMode: the parsed mode
//   - error: an error for any other value
func ParsePresentMode(s string) (PresentMode, error) {
	switch strings.ToLower(s) {
	case "vsync", "":
		return PresentModeVSync, nil
	case "uncapped":
		return PresentModeUncapped, nil
	default:
		return PresentModeVSync, fmt.Errorf("renderer: unknown present mode %q", s)
	}
}

func (m PresentMode) String() string {
	if m == PresentModeUncapped {
		return "uncapped"
	}
	return "vsync"
}

// Submission tracks one queue submission. Done is closed once the GPU has finished every command
// buffer of the submission, or once the device is lost.
type Submission interface {
	// Done returns a channel closed on completion.
	Done() <-chan struct{}

	// Wait blocks until completion or until ctx is cancelled.
	//
	// Parameters:
	//   - ctx: bounds the wait
	//
	// Returns:
	//   - error: ctx.Err() when cancelled first, nil on completion
	Wait(ctx context.Context) error
}

// WaitSubmission is the Wait implementation shared by backends.
func WaitSubmission(ctx context.Context, s Submission) error {
	select {
	case <-s.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Encoder records render passes into a command buffer. An encoder is used by one goroutine at a
// time; distinct encoders may be recorded concurrently.
type Encoder interface {
	// Label returns the debug label given to BeginEncoder.
	Label() string

	// BeginRenderPass starts a render pass. The previous pass of this encoder must have ended.
	//
	// Parameters:
	//   - desc: the attachments of the pass
	//
	// Returns:
	//   - RenderPass: the pass being recorded
	//   - error: an error if an attachment is unknown or a pass is still open
	BeginRenderPass(desc gpu.RenderPassDesc) (RenderPass, error)

	// Discard abandons an encoder that will not be submitted, ending any open pass and freeing
	// its commands. It does nothing after Submit or a previous Discard.
	Discard()
}

// RenderPass records the commands of one render pass. Recording errors are deferred and reported
// by End.
type RenderPass interface {
	// SetPipeline binds a registered pipeline.
	SetPipeline(p gpu.Pipeline)

	// SetBindGroup binds bg at the given group index. dynamicOffsets supplies one offset per
	// dynamic binding of the group, each a multiple of DynamicOffsetAlignment.
	SetBindGroup(group uint32, bg gpu.BindGroup, dynamicOffsets ...uint32)

	// SetVertexBuffer binds a whole vertex buffer to a slot.
	SetVertexBuffer(slot uint32, buf gpu.Buffer)

	// SetIndexBuffer binds a whole uint32 index buffer.
	SetIndexBuffer(buf gpu.Buffer)

	// SetViewport restricts rasterization to a rectangle of the attachments with depth range [0, 1].
	SetViewport(v gpu.Viewport)

	// DrawIndexed draws indexCount indices of the bound index buffer.
	DrawIndexed(indexCount, instanceCount uint32)

	// Draw draws vertexCount vertices without an index buffer.
	Draw(vertexCount, instanceCount uint32)

	// End closes the pass.
	//
	// Returns:
	//   - error: the first recording error of the pass
	End() error
}

// RendererBackend is the GPU API used by the Renderer. Every object it creates is addressed by a
// gpu handle that is unique across resource kinds, so any handle can be passed to Release.
type RendererBackend interface {
	// SurfaceFormat returns the texel format of the presentation surface.
	SurfaceFormat() gpu.TextureFormat

	// ConfigureSurface (re)configures the presentation surface for a new size.
	//
	// Parameters:
	//   - width, height: the surface size in pixels
	//
	// Returns:
	//   - error: ErrSurfaceLost for a zero size, or a backend error
	ConfigureSurface(width, height int) error

	// SetPresentMode selects the present mode used by the next ConfigureSurface.
	SetPresentMode(mode PresentMode)

	// CreateBuffer allocates a zeroed GPU buffer.
	//
	// Parameters:
	//   - desc: label, size and usage
	//
	// Returns:
	//   - gpu.Buffer: the buffer handle
	//   - error: an error if allocation fails
	CreateBuffer(desc gpu.BufferDesc) (gpu.Buffer, error)

	// WriteBuffer schedules a queue write. Writes are ordered before the next Submit.
	//
	// Parameters:
	//   - buf: the destination buffer
	//   - offset: byte offset into buf
	//   - data: the bytes to write
	//
	// Returns:
	//   - error: an error if buf is unknown or the write is out of range
	WriteBuffer(buf gpu.Buffer, offset uint64, data []byte) error

	// CreateTexture allocates a 2D texture, or a 2D array when desc.Layers > 1.
	CreateTexture(desc gpu.TextureDesc) (gpu.Texture, error)

	// WriteTexture uploads tightly packed pixels into layer 0 of a texture.
	WriteTexture(tex gpu.Texture, data common.TextureStagingData) error

	// CreateTextureView creates a view onto a texture.
	//
	// Parameters:
	//   - tex: the texture
	//   - layer: a single array layer viewed as a 2D texture, or -1 for the whole texture
	//     (a 2D array view when the texture has more than one layer)
	//
	// Returns:
	//   - gpu.TextureView: the view handle
	//   - error: an error if tex is unknown or the layer is out of range
	CreateTextureView(tex gpu.Texture, layer int) (gpu.TextureView, error)

	// CreateSampler creates a sampler. A Compare function other than Undefined yields a
	// comparison sampler.
	CreateSampler(desc common.SamplerStagingData) (gpu.Sampler, error)

	// CreateBindGroup creates a bind group against a layout. Entries are matched to layout entries
	// by binding index.
	//
	// Parameters:
	//   - label: a debug label
	//   - layout: the layout the bind group must satisfy
	//   - entries: one entry per layout binding
	//
	// Returns:
	//   - gpu.BindGroup: the bind group handle
	//   - error: an error if an entry is missing or has the wrong resource kind
	CreateBindGroup(label string, layout gpu.BindGroupLayout, entries []gpu.BindGroupEntry) (gpu.BindGroup, error)

	// CreateRenderPipeline compiles a pipeline description.
	CreateRenderPipeline(p pipeline.Pipeline) (gpu.Pipeline, error)

	// BeginEncoder starts a command encoder.
	BeginEncoder(label string) (Encoder, error)

	// Submit finishes the encoders and submits their command buffers in order as one submission.
	// The encoders cannot be used afterwards.
	//
	// Returns:
	//   - Submission: completion tracking for the submission
	//   - error: ErrDeviceLost, or an error if an encoder still has an open pass
	Submit(encoders ...Encoder) (Submission, error)

	// AcquireSurfaceView returns a view of the next surface image. It stays valid until Present.
	//
	// Returns:
	//   - gpu.TextureView: the surface view
	//   - error: ErrSurfaceLost when no image can be acquired
	AcquireSurfaceView() (gpu.TextureView, error)

	// Present shows the acquired surface image and releases its view.
	Present() error

	// Release destroys the objects behind the given handles. Unknown handles are ignored.
	Release(handles ...gpu.Handle)

	// Close releases every object and the device.
	Close()
}
