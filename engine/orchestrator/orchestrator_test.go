package orchestrator

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-deferred/common"
	"github.com/Carmen-Shannon/oxy-deferred/config"
	"github.com/Carmen-Shannon/oxy-deferred/engine/camera"
	"github.com/Carmen-Shannon/oxy-deferred/engine/light"
	"github.com/Carmen-Shannon/oxy-deferred/engine/model"
	"github.com/Carmen-Shannon/oxy-deferred/engine/profiler"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/material"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/renderertest"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testWidth, testHeight = 320, 240

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Cascades.Resolutions = []int{256, 256, 128, 128}
	cfg.Renderer.MaxDraws = 16
	cfg.Renderer.MaxInstances = 16
	return cfg
}

type fixture struct {
	backend *renderertest.Backend
	r       renderer.Renderer
	o       Orchestrator
	cube    gpu.Mesh
	input   FrameInput
}

func newFixture(t *testing.T, cfg config.Config, opts ...renderertest.Option) *fixture {
	t.Helper()
	backend := renderertest.New(opts...)
	r := renderer.NewRendererWithBackend(backend)
	require.NoError(t, r.Resize(testWidth, testHeight))
	o, err := New(r, cfg, testWidth, testHeight)
	require.NoError(t, err)

	cube, err := o.RegisterMesh(model.NewCube(1))
	require.NoError(t, err)
	plain := material.NewMaterial(material.WithName("plain"))
	require.NoError(t, o.RegisterMaterial(plain))

	return &fixture{
		backend: backend,
		r:       r,
		o:       o,
		cube:    cube,
		input: FrameInput{
			Camera: camera.NewCamera(camera.WithAspect(float32(testWidth)/testHeight), camera.WithLookAt(mgl32.Vec3{0, 6, 12}, mgl32.Vec3{})),
			Light:  light.NewDirectionalLight(light.WithDirection(-0.4, -1, -0.3)),
			Draws: []Draw{
				{Mesh: cube, Material: plain, Transform: mgl32.Ident4()},
				{Mesh: cube, Material: plain, Transform: mgl32.Translate3D(2, 0, 0)},
			},
		},
	}
}

func shortContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Cascades.Count = 7
	_, err := New(renderer.NewRendererWithBackend(renderertest.New()), cfg, testWidth, testHeight)
	assert.Error(t, err)
}

func TestRenderFrameSubmitsPassesInOrder(t *testing.T) {
	f := newFixture(t, testConfig())
	require.NoError(t, f.o.RenderFrame(shortContext(t), f.input))

	subs := f.backend.Submissions()
	require.Len(t, subs, 2)
	assert.Equal(t, []string{"gbuffer", "shadow"}, subs[0].Labels())
	assert.Equal(t, []string{"lighting"}, subs[1].Labels())
	assert.Equal(t, 1, f.backend.Presents())

	gbuffer := subs[0].Encoders[0].Passes()
	require.Len(t, gbuffer, 1)
	assert.Len(t, gbuffer[0].Draws(), 2)
	assert.Len(t, subs[0].Encoders[1].Passes(), 4, "one pass per cascade")

	stats := f.o.Stats()
	assert.Equal(t, uint64(1), stats.FramesSubmitted)
	assert.Zero(t, stats.FramesAborted)
	require.Len(t, stats.LastSplits, 4)
	assert.InDelta(t, 100, stats.LastSplits[3], 1e-3)
}

func TestRenderFrameBoundsFramesInFlight(t *testing.T) {
	f := newFixture(t, testConfig(), renderertest.WithManualCompletion())
	ctx := shortContext(t)

	require.NoError(t, f.o.RenderFrame(ctx, f.input))
	require.NoError(t, f.o.RenderFrame(ctx, f.input))
	assert.Equal(t, 2, f.o.Stats().InFlight)

	blocked, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := f.o.RenderFrame(blocked, f.input)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Len(t, f.backend.Submissions(), 4, "the blocked frame submitted nothing")

	// completing the first frame's lighting submission frees its slot
	f.backend.Complete(1)
	require.NoError(t, f.o.RenderFrame(ctx, f.input))
	assert.Len(t, f.backend.Submissions(), 6)

	drainCtx, drainCancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer drainCancel()
	assert.Error(t, f.o.Drain(drainCtx))

	f.backend.CompleteAll()
	require.NoError(t, f.o.Drain(ctx))
	assert.Zero(t, f.o.Stats().InFlight)
}

func TestSlotsAlternateBetweenFrames(t *testing.T) {
	f := newFixture(t, testConfig())
	ctx := shortContext(t)
	require.NoError(t, f.o.RenderFrame(ctx, f.input))
	require.NoError(t, f.o.Drain(ctx))
	require.NoError(t, f.o.RenderFrame(ctx, f.input))

	subs := f.backend.Submissions()
	require.Len(t, subs, 4)
	first := subs[0].Encoders[0].Passes()[0].Desc.Color[0].View
	second := subs[2].Encoders[0].Passes()[0].Desc.Color[0].View
	assert.NotEqual(t, first, second, "consecutive frames write different G-buffers")
}

func TestSurfaceLossAbortsAndRecovers(t *testing.T) {
	f := newFixture(t, testConfig())
	ctx := shortContext(t)

	f.backend.FailAcquire(1)
	err := f.o.RenderFrame(ctx, f.input)
	require.ErrorIs(t, err, renderer.ErrSurfaceLost)
	assert.Equal(t, uint64(1), f.o.Stats().FramesAborted)
	assert.Zero(t, f.backend.Presents())
	assert.Zero(t, f.o.Stats().InFlight, "the slot is retired after the drain")

	require.NoError(t, f.o.RenderFrame(ctx, f.input))
	assert.Equal(t, 1, f.backend.Presents())
}

func TestDeviceLossIsReported(t *testing.T) {
	f := newFixture(t, testConfig())
	f.backend.LoseDevice()
	err := f.o.RenderFrame(shortContext(t), f.input)
	assert.ErrorIs(t, err, renderer.ErrDeviceLost)
	assert.Equal(t, uint64(1), f.o.Stats().FramesAborted)
}

func TestRecordingErrorReleasesSlotImmediately(t *testing.T) {
	f := newFixture(t, testConfig(), renderertest.WithManualCompletion())
	ctx := shortContext(t)

	textured := material.NewMaterial(material.WithTexture(material.ChannelBaseColor, common.SolidTexture(1, 1, [4]byte{255, 255, 255, 255})))
	bad := f.input
	bad.Draws = []Draw{{Mesh: f.cube, Material: textured, Transform: mgl32.Ident4()}}
	for range 3 {
		err := f.o.RenderFrame(ctx, bad)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not registered")
	}
	assert.Empty(t, f.backend.Submissions())
	assert.Zero(t, f.o.Stats().InFlight)

	require.NoError(t, f.o.RegisterMaterial(textured))
	require.NoError(t, f.o.RenderFrame(ctx, bad))

	var materialBinds int
	for _, c := range f.backend.Submissions()[0].Encoders[0].Passes()[0].Commands {
		if c.Op == renderertest.OpSetBindGroup && c.Group == 2 {
			materialBinds++
			assert.Equal(t, textured.BindGroup(), c.BindGroup)
		}
	}
	assert.Equal(t, 1, materialBinds)
}

func TestTooManyDrawsAbortsFrame(t *testing.T) {
	f := newFixture(t, testConfig())
	in := f.input
	in.Draws = nil
	for i := range 17 {
		in.Draws = append(in.Draws, Draw{Mesh: f.cube, Material: f.input.Draws[0].Material, Transform: mgl32.Translate3D(float32(i), 0, 0)})
	}
	assert.Error(t, f.o.RenderFrame(shortContext(t), in))
	assert.Empty(t, f.backend.Submissions())
}

func TestResizeRebuildsGBuffer(t *testing.T) {
	f := newFixture(t, testConfig())
	ctx := shortContext(t)

	require.NoError(t, f.o.Resize(ctx, 640, 480))
	w, h := f.backend.SurfaceSize()
	assert.Equal(t, [2]int{640, 480}, [2]int{w, h})

	require.NoError(t, f.o.RenderFrame(ctx, f.input))
	albedo := f.backend.Submissions()[0].Encoders[0].Passes()[0].Desc.Color[0].View
	view, ok := f.backend.View(albedo)
	require.True(t, ok)
	tex := f.backend.Texture(view.Texture)
	require.NotNil(t, tex)
	assert.Equal(t, uint32(640), tex.Desc.Width)
	assert.Equal(t, uint32(480), tex.Desc.Height)
}

func TestMinimizedSurfaceSuspendsRendering(t *testing.T) {
	f := newFixture(t, testConfig())
	ctx := shortContext(t)

	require.NoError(t, f.o.Resize(ctx, 0, 0))
	assert.ErrorIs(t, f.o.RenderFrame(ctx, f.input), ErrMinimized)
	assert.Empty(t, f.backend.Submissions())

	require.NoError(t, f.o.Resize(ctx, testWidth, testHeight))
	assert.NoError(t, f.o.RenderFrame(ctx, f.input))
}

func TestReconfigureChangesCascadeCount(t *testing.T) {
	f := newFixture(t, testConfig())
	ctx := shortContext(t)

	cfg := testConfig()
	cfg.Cascades.Count = 3
	cfg.Renderer.FramesInFlight = 1
	require.NoError(t, f.o.Reconfigure(ctx, cfg))

	require.NoError(t, f.o.RenderFrame(ctx, f.input))
	subs := f.backend.Submissions()
	require.Len(t, subs, 2)
	assert.Len(t, subs[0].Encoders[1].Passes(), 3)
	assert.Len(t, f.o.Stats().LastSplits, 3)

	bad := cfg
	bad.Cascades.Lambda = 2
	assert.Error(t, f.o.Reconfigure(ctx, bad))
	require.NoError(t, f.o.RenderFrame(ctx, f.input), "a rejected configuration leaves the old one in place")
}

func TestProfilerTicksPerSubmittedFrame(t *testing.T) {
	backend := renderertest.New()
	r := renderer.NewRendererWithBackend(backend)
	now := time.Unix(0, 0)
	p := profiler.NewProfiler(profiler.WithMemStats(false), profiler.WithInterval(time.Hour), profiler.WithClock(func() time.Time {
		now = now.Add(time.Minute)
		return now
	}))
	o, err := New(r, testConfig(), testWidth, testHeight, WithProfiler(p))
	require.NoError(t, err)

	in := FrameInput{Camera: camera.NewCamera(), Light: light.NewDirectionalLight()}
	for range 60 {
		require.NoError(t, o.RenderFrame(shortContext(t), in))
	}
	assert.Equal(t, 60, p.Last().Frames)
}

func TestCloseReleasesEverything(t *testing.T) {
	f := newFixture(t, testConfig())
	ctx := shortContext(t)
	textured := material.NewMaterial(material.WithTexture(material.ChannelORM, common.SolidTexture(1, 1, [4]byte{255, 128, 0, 255})))
	require.NoError(t, f.o.RegisterMaterial(textured))
	require.NoError(t, f.o.RenderFrame(ctx, f.input))

	require.NoError(t, f.o.Close(ctx))
	assert.Zero(t, f.backend.LiveObjects())
	assert.ErrorIs(t, f.o.RenderFrame(ctx, f.input), ErrClosed)
	assert.ErrorIs(t, f.o.RegisterMaterial(textured), ErrClosed)
	_, err := f.o.RegisterMesh(model.NewPlane(1))
	assert.ErrorIs(t, err, ErrClosed)
	assert.NoError(t, f.o.Close(ctx))
}

func TestCloseWithFramesInFlightDefersRelease(t *testing.T) {
	f := newFixture(t, testConfig(), renderertest.WithManualCompletion())
	ctx := shortContext(t)
	require.NoError(t, f.o.RenderFrame(ctx, f.input))
	live := f.backend.LiveObjects()
	released := len(f.backend.Released())

	expired, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, f.o.Close(expired), context.DeadlineExceeded)
	assert.ErrorIs(t, f.o.RenderFrame(ctx, f.input), ErrClosed)
	assert.Equal(t, live, f.backend.LiveObjects(), "the pending frame still reads its slot")
	assert.Len(t, f.backend.Released(), released)
	assert.Positive(t, f.backend.LiveObjects())

	f.backend.CompleteAll()
	assert.Eventually(t, func() bool { return f.backend.LiveObjects() == 0 }, time.Second, 5*time.Millisecond)
	assert.NoError(t, f.o.Close(ctx))
}

func TestAbortedFrameDiscardsUnsubmittedEncoders(t *testing.T) {
	f := newFixture(t, testConfig())
	ctx := shortContext(t)

	textured := material.NewMaterial(material.WithTexture(material.ChannelBaseColor, common.SolidTexture(1, 1, [4]byte{255, 255, 255, 255})))
	bad := f.input
	bad.Draws = []Draw{{Mesh: f.cube, Material: textured, Transform: mgl32.Ident4()}}
	require.Error(t, f.o.RenderFrame(ctx, bad))

	aborted := f.backend.Encoders()
	require.Len(t, aborted, 2)
	for _, e := range aborted {
		assert.True(t, e.Discarded(), e.Label())
		assert.False(t, e.Submitted(), e.Label())
	}

	require.NoError(t, f.o.RenderFrame(ctx, f.input))
	submitted := f.backend.Encoders()[len(aborted):]
	require.Len(t, submitted, 3)
	for _, e := range submitted {
		assert.True(t, e.Submitted(), e.Label())
		assert.False(t, e.Discarded(), e.Label())
	}
}

func TestReconfigureAllocationFailureRestoresPreviousConfiguration(t *testing.T) {
	f := newFixture(t, testConfig())
	ctx := shortContext(t)

	cfg := testConfig()
	cfg.Cascades.Count = 3
	f.backend.FailCreate(1)
	require.Error(t, f.o.Reconfigure(ctx, cfg))

	require.NoError(t, f.o.RenderFrame(ctx, f.input))
	subs := f.backend.Submissions()
	require.Len(t, subs, 2)
	assert.Len(t, subs[0].Encoders[1].Passes(), 4, "the previous cascade count is back")
	assert.Len(t, f.o.Stats().LastSplits, 4)

	require.NoError(t, f.o.Close(ctx))
	assert.Zero(t, f.backend.LiveObjects())
}

type stopCountingPool struct {
	worker.DynamicWorkerPool
	stops atomic.Int32
}

func (p *stopCountingPool) Stop() {
	p.stops.Add(1)
	p.DynamicWorkerPool.Stop()
}

func TestCloseStopsOnlyOwnedWorkerPool(t *testing.T) {
	ctx := shortContext(t)
	in := FrameInput{Camera: camera.NewCamera(), Light: light.NewDirectionalLight()}

	shared := &stopCountingPool{DynamicWorkerPool: worker.NewDynamicWorkerPool(2, 16, time.Second)}
	defer shared.DynamicWorkerPool.Stop()
	o, err := New(renderer.NewRendererWithBackend(renderertest.New()), testConfig(), testWidth, testHeight, WithWorkerPool(shared))
	require.NoError(t, err)
	require.NoError(t, o.RenderFrame(ctx, in))
	require.NoError(t, o.Close(ctx))
	assert.Zero(t, shared.stops.Load(), "an injected pool belongs to the caller")

	var owned *stopCountingPool
	restore := newWorkerPool
	newWorkerPool = func() worker.DynamicWorkerPool {
		owned = &stopCountingPool{DynamicWorkerPool: restore()}
		return owned
	}
	t.Cleanup(func() { newWorkerPool = restore })

	o, err = New(renderer.NewRendererWithBackend(renderertest.New()), testConfig(), testWidth, testHeight)
	require.NoError(t, err)
	require.NotNil(t, owned)
	require.NoError(t, o.RenderFrame(ctx, in))
	require.NoError(t, o.Close(ctx))
	assert.Equal(t, int32(1), owned.stops.Load())
}
