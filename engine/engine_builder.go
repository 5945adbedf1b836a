package engine

import (
	"github.com/Carmen-Shannon/oxy-deferred/config"
	"github.com/Carmen-Shannon/oxy-deferred/engine/orchestrator"
	"github.com/Carmen-Shannon/oxy-deferred/engine/window"
	"go.uber.org/zap"
)

// EngineBuilderOption is a functional option for configuring an engine.
type EngineBuilderOption func(*engine)

// WithTickRate sets the simulation tick rate.
//
// Parameters:
//   - fps: ticks per second; non-positive values select 60
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithTickRate(fps float64) EngineBuilderOption {
	return func(e *engine) {
		e.engineTickRate = tickInterval(fps)
	}
}

// WithWindow sets the window whose message loop Run drives.
func WithWindow(w window.Window) EngineBuilderOption {
	return func(e *engine) {
		e.window = w
	}
}

// WithOrchestrator sets the orchestrator frames are rendered with.
func WithOrchestrator(o orchestrator.Orchestrator) EngineBuilderOption {
	return func(e *engine) {
		e.orchestrator = o
	}
}

// WithRenderFrameLimit caps the frame rate.
//
// Parameters:
//   - fps: frames per second; non-positive values remove the cap
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithRenderFrameLimit(fps float64) EngineBuilderOption {
	return func(e *engine) {
		e.renderFrameLimit = frameInterval(fps)
	}
}

// WithConfigUpdates applies every configuration received on updates through
// Orchestrator.Reconfigure between frames. config.Watcher.Configs is the usual source.
func WithConfigUpdates(updates <-chan config.Config) EngineBuilderOption {
	return func(e *engine) {
		e.configChannel = updates
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) EngineBuilderOption {
	return func(e *engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}
