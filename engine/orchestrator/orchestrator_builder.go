package orchestrator

import (
	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-deferred/engine/profiler"
	"go.uber.org/zap"
)

// OrchestratorBuilderOption is a function that configures an Orchestrator during construction.
type OrchestratorBuilderOption func(*orchestrator)

// WithLogger sets the logger used by the orchestrator, its passes and instance stores.
func WithLogger(logger *zap.Logger) OrchestratorBuilderOption {
	return func(o *orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithWorkerPool shares a worker pool with the instance stores of every frame slot. The caller
// keeps ownership and stops it. Without it a pool sized to the CPU count is created and Close
// stops it.
//
// Parameters:
//   - pool: the pool
//
// Returns:
//   - OrchestratorBuilderOption: a function that applies the pool to an orchestrator
func WithWorkerPool(pool worker.DynamicWorkerPool) OrchestratorBuilderOption {
	return func(o *orchestrator) {
		o.pool = pool
	}
}

// WithProfiler ticks p after every submitted frame.
func WithProfiler(p *profiler.Profiler) OrchestratorBuilderOption {
	return func(o *orchestrator) {
		o.profiler = p
	}
}
