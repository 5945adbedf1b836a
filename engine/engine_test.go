package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-deferred/config"
	"github.com/Carmen-Shannon/oxy-deferred/engine/camera"
	"github.com/Carmen-Shannon/oxy-deferred/engine/light"
	"github.com/Carmen-Shannon/oxy-deferred/engine/orchestrator"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/renderertest"
	"github.com/Carmen-Shannon/oxy-deferred/engine/window"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeWindow runs a message loop without a platform window.
type fakeWindow struct {
	mu       sync.Mutex
	width    int
	height   int
	closed   atomic.Bool
	onUpdate func()
	onResize func(width, height int)
}

var _ window.Window = &fakeWindow{}

func (w *fakeWindow) SetUpdateCallback(cb func())                  { w.onUpdate = cb }
func (w *fakeWindow) SetResizeCallback(cb func(width, height int)) { w.onResize = cb }
func (w *fakeWindow) SetScrollCallback(func(delta float32))        {}
func (w *fakeWindow) SetDragCallback(func(dx, dy float32))         {}
func (w *fakeWindow) SetKeyDownCallback(func(keyCode uint32))      {}
func (w *fakeWindow) SurfaceDescriptor() *wgpu.SurfaceDescriptor   { return nil }
func (w *fakeWindow) IsRunning() bool                              { return !w.closed.Load() }
func (w *fakeWindow) RequestClose()                                { w.closed.Store(true) }
func (w *fakeWindow) Close() error                                 { w.closed.Store(true); return nil }

func (w *fakeWindow) Width() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.width
}

func (w *fakeWindow) Height() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.height
}

func (w *fakeWindow) ProcessMessages() {
	for w.IsRunning() {
		if w.onUpdate != nil {
			w.onUpdate()
		}
		time.Sleep(time.Millisecond)
	}
}

// resize simulates a framebuffer resize event.
func (w *fakeWindow) resize(width, height int) {
	w.mu.Lock()
	w.width, w.height = width, height
	w.mu.Unlock()
	w.onResize(width, height)
}

type fixture struct {
	backend *renderertest.Backend
	win     *fakeWindow
	orch    orchestrator.Orchestrator
	frames  atomic.Int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := config.Default()
	cfg.Cascades.Resolutions = []int{128, 128, 64, 64}
	cfg.Renderer.MaxDraws = 4
	cfg.Renderer.MaxInstances = 4

	backend := renderertest.New()
	r := renderer.NewRendererWithBackend(backend)
	o, err := orchestrator.New(r, cfg, 160, 120)
	require.NoError(t, err)
	t.Cleanup(func() { _ = o.Close(context.Background()) })
	return &fixture{backend: backend, win: &fakeWindow{width: 160, height: 120}, orch: o}
}

func (f *fixture) source(float32) orchestrator.FrameInput {
	f.frames.Add(1)
	return orchestrator.FrameInput{Camera: camera.NewCamera(), Light: light.NewDirectionalLight()}
}

func TestNewEngineRequiresWindowAndOrchestrator(t *testing.T) {
	_, err := NewEngine()
	assert.Error(t, err)
	_, err = NewEngine(WithWindow(&fakeWindow{}))
	assert.Error(t, err)
}

func TestRunRendersUntilQuit(t *testing.T) {
	f := newFixture(t)
	e, err := NewEngine(WithWindow(f.win), WithOrchestrator(f.orch), WithTickRate(1000))
	require.NoError(t, err)
	e.SetFrameSource(f.source)
	var ticks atomic.Int64
	e.SetTickCallback(func(float32) { ticks.Add(1) })

	done := make(chan error, 1)
	go func() { done <- e.Run(context.Background()) }()

	require.Eventually(t, func() bool { return f.frames.Load() >= 5 && ticks.Load() >= 2 }, 5*time.Second, time.Millisecond)
	e.Quit()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after Quit")
	}
	assert.True(t, f.win.closed.Load())
	assert.GreaterOrEqual(t, f.backend.Presents(), 5)
}

func TestRunStopsOnContextCancel(t *testing.T) {
	f := newFixture(t)
	e, err := NewEngine(WithWindow(f.win), WithOrchestrator(f.orch))
	require.NoError(t, err)
	e.SetFrameSource(f.source)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()
	require.Eventually(t, func() bool { return f.frames.Load() > 0 }, 5*time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestResizeAndReconfigureApplyBetweenFrames(t *testing.T) {
	f := newFixture(t)
	updates := make(chan config.Config, 1)
	e, err := NewEngine(WithWindow(f.win), WithOrchestrator(f.orch), WithConfigUpdates(updates))
	require.NoError(t, err)
	e.SetFrameSource(f.source)
	var resized atomic.Value
	e.SetResizeCallback(func(w, h int) { resized.Store([2]int{w, h}) })

	done := make(chan error, 1)
	go func() { done <- e.Run(context.Background()) }()
	require.Eventually(t, func() bool { return f.frames.Load() > 0 }, 5*time.Second, time.Millisecond)

	f.win.resize(320, 200)
	require.Eventually(t, func() bool {
		w, h := f.backend.SurfaceSize()
		return w == 320 && h == 200 && resized.Load() == [2]int{320, 200}
	}, 5*time.Second, time.Millisecond)

	cfg := config.Default()
	cfg.Cascades.Count = 3
	cfg.Cascades.Resolutions = []int{128, 128, 64}
	cfg.Shadow.PCFRadius = []int{1, 1, 1}
	cfg.Renderer.MaxDraws = 4
	cfg.Renderer.MaxInstances = 4
	updates <- cfg
	require.Eventually(t, func() bool { return len(f.orch.Stats().LastSplits) == 3 }, 5*time.Second, time.Millisecond)

	e.Quit()
	require.NoError(t, <-done)
}

func TestDeviceLossStopsRun(t *testing.T) {
	f := newFixture(t)
	e, err := NewEngine(WithWindow(f.win), WithOrchestrator(f.orch))
	require.NoError(t, err)
	e.SetFrameSource(f.source)

	done := make(chan error, 1)
	go func() { done <- e.Run(context.Background()) }()
	require.Eventually(t, func() bool { return f.frames.Load() > 0 }, 5*time.Second, time.Millisecond)
	f.backend.LoseDevice()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, renderer.ErrDeviceLost)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop on device loss")
	}
}

func TestFrameIntervals(t *testing.T) {
	assert.Equal(t, time.Second/60, tickInterval(0))
	assert.Equal(t, 10*time.Millisecond, tickInterval(100))
	assert.Zero(t, frameInterval(-1))
	assert.Equal(t, 20*time.Millisecond, frameInterval(50))
}
