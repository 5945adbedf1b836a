// Package engine runs the application loop around an Orchestrator: the window's message loop on
// the calling thread, a fixed-rate tick goroutine for simulation and a render goroutine that
// builds each frame's input and renders it. Window resizes and configuration reloads are applied
// by the render goroutine between frames.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-deferred/config"
	"github.com/Carmen-Shannon/oxy-deferred/engine/orchestrator"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer"
	"github.com/Carmen-Shannon/oxy-deferred/engine/window"
	"go.uber.org/zap"
)

// minimizedPoll is how long the render goroutine sleeps while the window is minimized.
const minimizedPoll = 10 * time.Millisecond

type size struct {
	width, height int
}

// engine is the implementation of the Engine interface.
type engine struct {
	mu *sync.Mutex

	tickRateChannel chan time.Duration
	resizeChannel   chan size
	configChannel   <-chan config.Config

	running bool
	wg      sync.WaitGroup

	quitChannel chan struct{}
	quitOnce    sync.Once

	window       window.Window
	orchestrator orchestrator.Orchestrator
	logger       *zap.Logger

	engineTickRate   time.Duration
	renderFrameLimit time.Duration // minimum frame duration; 0 = uncapped

	tickCallback   func(deltaTime float32)
	frameSource    func(deltaTime float32) orchestrator.FrameInput
	resizeCallback func(width, height int)

	err error
}

// Engine drives an Orchestrator from a window's event loop.
type Engine interface {
	// Window returns the window the engine runs.
	//
	// Returns:
	//   - window.Window: the window
	Window() window.Window

	// Orchestrator returns the orchestrator frames are rendered with.
	//
	// Returns:
	//   - orchestrator.Orchestrator: the orchestrator
	Orchestrator() orchestrator.Orchestrator

	// SetTickRate changes the simulation tick rate, also while running.
	//
	// Parameters:
	//   - fps: ticks per second; non-positive values select 60
	SetTickRate(fps float64)

	// SetTickCallback sets the function called on every simulation tick. It runs on the tick
	// goroutine, concurrently with the frame source.
	//
	// Parameters:
	//   - callback: receives the seconds since the previous tick
	SetTickCallback(callback func(deltaTime float32))

	// SetFrameSource sets the function that produces each frame's scene state. It runs on the
	// render goroutine. Without a frame source nothing is rendered.
	//
	// Parameters:
	//   - source: receives the seconds since the previous frame
	SetFrameSource(source func(deltaTime float32) orchestrator.FrameInput)

	// SetResizeCallback sets the function called on the render goroutine after the orchestrator
	// has been resized, for example to update a camera's aspect ratio.
	//
	// Parameters:
	//   - callback: receives the new framebuffer size in pixels
	SetResizeCallback(callback func(width, height int))

	// SetRenderFrameLimit caps the frame rate.
	//
	// Parameters:
	//   - fps: frames per second; non-positive values remove the cap
	SetRenderFrameLimit(fps float64)

	// Run starts the tick and render goroutines and runs the window message loop on the calling
	// thread until the window closes, Quit is called, ctx is cancelled or the device is lost.
	//
	// Parameters:
	//   - ctx: cancels the loop
	//
	// Returns:
	//   - error: the device loss that stopped the loop, or nil
	Run(ctx context.Context) error

	// Quit stops the loop. Safe to call from any goroutine.
	Quit()
}

// NewEngine creates an Engine. WithWindow and WithOrchestrator are required.
//
// Parameters:
//   - options: functional options to configure the engine
//
// Returns:
//   - Engine: the engine
//   - error: a missing window or orchestrator
func NewEngine(options ...EngineBuilderOption) (Engine, error) {
	e := &engine{
		mu:              &sync.Mutex{},
		tickRateChannel: make(chan time.Duration, 1),
		resizeChannel:   make(chan size, 1),
		quitChannel:     make(chan struct{}),
		logger:          zap.NewNop(),
		engineTickRate:  time.Second / 60,
	}
	for _, opt := range options {
		opt(e)
	}
	if e.window == nil {
		return nil, errors.New("engine: no window")
	}
	if e.orchestrator == nil {
		return nil, errors.New("engine: no orchestrator")
	}

	e.window.SetResizeCallback(func(width, height int) {
		// only the latest size matters
		select {
		case <-e.resizeChannel:
		default:
		}
		e.resizeChannel <- size{width, height}
	})
	return e, nil
}

func (e *engine) Window() window.Window {
	return e.window
}

func (e *engine) Orchestrator() orchestrator.Orchestrator {
	return e.orchestrator
}

func (e *engine) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	e.mu.Lock()
	e.running = true
	e.mu.Unlock()

	e.window.SetUpdateCallback(func() {
		select {
		case <-e.quitChannel:
			e.window.RequestClose()
		case <-ctx.Done():
			e.window.RequestClose()
		default:
		}
	})

	e.wg.Add(2)
	go e.handleEngine()
	go e.handleRender(ctx)

	e.window.ProcessMessages()
	e.signalQuit()
	e.wg.Wait()

	e.mu.Lock()
	defer e.mu.Unlock()
	e.running = false
	return e.err
}

func (e *engine) Quit() {
	e.signalQuit()
}

func (e *engine) signalQuit() {
	e.quitOnce.Do(func() {
		close(e.quitChannel)
	})
}

func (e *engine) fail(err error) {
	e.mu.Lock()
	if e.err == nil {
		e.err = err
	}
	e.mu.Unlock()
	e.signalQuit()
}

// handleEngine runs the tick loop.
func (e *engine) handleEngine() {
	defer e.wg.Done()

	e.mu.Lock()
	ticker := time.NewTicker(e.engineTickRate)
	e.mu.Unlock()
	defer ticker.Stop()

	lastTick := time.Now()
	for {
		select {
		case <-e.quitChannel:
			return
		case <-ticker.C:
			now := time.Now()
			dt := float32(now.Sub(lastTick).Seconds())
			lastTick = now

			if cb := e.tick(); cb != nil {
				cb(dt)
			}
		case newRate := <-e.tickRateChannel:
			ticker.Reset(newRate)
		}
	}
}

func (e *engine) tick() func(float32) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tickCallback
}

// handleRender runs the frame loop. Pending resizes and configurations are applied before the
// next frame.
func (e *engine) handleRender(ctx context.Context) {
	defer e.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			e.fail(fmt.Errorf("engine: render goroutine panicked: %v", r))
		}
	}()

	lastRender := time.Now()
	for {
		select {
		case <-e.quitChannel:
			return
		case <-ctx.Done():
			e.signalQuit()
			return
		case s := <-e.resizeChannel:
			e.applyResize(ctx, s)
		case cfg, ok := <-e.configChannel:
			if !ok {
				e.configChannel = nil
				continue
			}
			if err := e.orchestrator.Reconfigure(ctx, cfg); err != nil {
				e.logger.Error("configuration rejected", zap.Error(err))
				continue
			}
			e.logger.Info("configuration applied")
		default:
			now := time.Now()
			dt := float32(now.Sub(lastRender).Seconds())
			lastRender = now

			e.renderFrame(ctx, dt)

			if limit := e.frameLimit(); limit > 0 {
				if remaining := limit - time.Since(now); remaining > 0 {
					time.Sleep(remaining)
				}
			}
		}
	}
}

func (e *engine) renderFrame(ctx context.Context, dt float32) {
	e.mu.Lock()
	source := e.frameSource
	e.mu.Unlock()
	if source == nil {
		time.Sleep(minimizedPoll)
		return
	}

	err := e.orchestrator.RenderFrame(ctx, source(dt))
	switch {
	case err == nil:
	case errors.Is(err, orchestrator.ErrMinimized):
		time.Sleep(minimizedPoll)
	case errors.Is(err, renderer.ErrDeviceLost):
		e.logger.Error("device lost", zap.Error(err))
		e.fail(err)
	case errors.Is(err, renderer.ErrSurfaceLost):
		e.logger.Warn("surface lost, reconfiguring", zap.Error(err))
		e.applyResize(ctx, size{e.window.Width(), e.window.Height()})
	case errors.Is(err, context.Canceled):
	default:
		e.logger.Error("frame dropped", zap.Error(err))
	}
}

func (e *engine) applyResize(ctx context.Context, s size) {
	if err := e.orchestrator.Resize(ctx, s.width, s.height); err != nil {
		if errors.Is(err, renderer.ErrDeviceLost) {
			e.fail(err)
			return
		}
		e.logger.Error("resize failed", zap.Int("width", s.width), zap.Int("height", s.height), zap.Error(err))
		return
	}
	e.mu.Lock()
	cb := e.resizeCallback
	e.mu.Unlock()
	if cb != nil && s.width > 0 && s.height > 0 {
		cb(s.width, s.height)
	}
}

func (e *engine) frameLimit() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.renderFrameLimit
}

func (e *engine) SetTickRate(fps float64) {
	newRate := tickInterval(fps)

	e.mu.Lock()
	running := e.running
	e.engineTickRate = newRate
	e.mu.Unlock()

	if running {
		select {
		case e.tickRateChannel <- newRate:
		default:
			select {
			case <-e.tickRateChannel:
			default:
			}
			e.tickRateChannel <- newRate
		}
	}
}

func (e *engine) SetTickCallback(callback func(deltaTime float32)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tickCallback = callback
}

func (e *engine) SetFrameSource(source func(deltaTime float32) orchestrator.FrameInput) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.frameSource = source
}

func (e *engine) SetResizeCallback(callback func(width, height int)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.resizeCallback = callback
}

func (e *engine) SetRenderFrameLimit(fps float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.renderFrameLimit = frameInterval(fps)
}

func tickInterval(fps float64) time.Duration {
	if fps <= 0 {
		fps = 60
	}
	return time.Duration(float64(time.Second) / fps)
}

func frameInterval(fps float64) time.Duration {
	if fps <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / fps)
}
