package renderertest

import (
	"slices"

	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/pipeline"
)

// Option configures a Backend.
type Option func(*Backend)

// WithManualCompletion keeps submissions pending until Complete or CompleteAll is called.
func WithManualCompletion() Option {
	return func(b *Backend) {
		b.manualCompletion = true
	}
}

// WithSurfaceFormat sets the reported surface format.
func WithSurfaceFormat(f gpu.TextureFormat) Option {
	return func(b *Backend) {
		b.surfaceFormat = f
	}
}

// FailCreate makes the n-th CreateBuffer or CreateTexture call from now fail once.
func (b *Backend) FailCreate(n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.createFailure = n
}

// Encoders returns every encoder begun so far, in order.
func (b *Backend) Encoders() []*Encoder {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.encoders)
}

// Submissions returns the recorded submissions in order.
func (b *Backend) Submissions() []*Submission {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.submissions)
}

// Complete signals completion of the i-th submission.
func (b *Backend) Complete(i int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.submissions[i].complete()
}

// CompleteAll signals completion of every submission so far.
func (b *Backend) CompleteAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, s := range b.submissions {
		s.complete()
	}
}

// LoseDevice makes every later call fail with renderer.ErrDeviceLost. Pending submissions
// complete, as a real device signals them on loss.
func (b *Backend) LoseDevice() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.deviceLost = true
	for _, s := range b.submissions {
		s.complete()
	}
}

// FailAcquire makes the next n AcquireSurfaceView calls fail with renderer.ErrSurfaceLost.
func (b *Backend) FailAcquire(n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.acquireFailures = n
}

// Buffer returns a copy of a live buffer's record, or nil.
func (b *Backend) Buffer(h gpu.Buffer) *BufferRecord {
	b.mu.Lock()
	defer b.mu.Unlock()
	rec, ok := b.buffers[h]
	if !ok {
		return nil
	}
	return &BufferRecord{Desc: rec.Desc, Data: slices.Clone(rec.Data)}
}

// Texture returns a live texture's record, or nil.
func (b *Backend) Texture(h gpu.Texture) *TextureRecord {
	b.mu.Lock()
	defer b.mu.Unlock()
	rec, ok := b.textures[h]
	if !ok {
		return nil
	}
	return &TextureRecord{Desc: rec.Desc, Pixels: slices.Clone(rec.Pixels)}
}

// View returns a live view's record.
func (b *Backend) View(h gpu.TextureView) (ViewRecord, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.views[h]
	return v, ok
}

// BindGroup returns a live bind group's record.
func (b *Backend) BindGroup(h gpu.BindGroup) (BindGroupRecord, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	rec, ok := b.bindGroups[h]
	return rec, ok
}

// Pipeline returns the description registered under a pipeline handle, or nil.
func (b *Backend) Pipeline(h gpu.Pipeline) pipeline.Pipeline {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pipelines[h]
}

// Released returns every handle passed to Release, in order.
func (b *Backend) Released() []gpu.Handle {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.released)
}

// LiveObjects returns the number of objects that have not been released.
func (b *Backend) LiveObjects() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.buffers) + len(b.textures) + len(b.views) + len(b.samplers) + len(b.bindGroups) + len(b.pipelines)
}

// SurfaceSize returns the last configured surface size.
func (b *Backend) SurfaceSize() (int, int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.width, b.height
}

// Configures returns the number of successful ConfigureSurface calls.
func (b *Backend) Configures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.configures
}

// PresentMode returns the last present mode set.
func (b *Backend) PresentMode() renderer.PresentMode {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.presentMode
}

// Presents returns the number of presented frames.
func (b *Backend) Presents() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.presents
}
