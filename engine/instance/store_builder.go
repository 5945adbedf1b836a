package instance

import (
	"github.com/Carmen-Shannon/automation/tools/worker"
	"go.uber.org/zap"
)

// StoreBuilderOption is a function that configures a Store during construction.
type StoreBuilderOption func(*storeImpl)

// WithWorkerPool shares an existing pool instead of creating a private one. Stores of different
// frame slots can share one pool because their Seal calls never overlap.
//
// Parameters:
//   - pool: the pool used by Seal for large batches
//
// Returns:
//   - StoreBuilderOption: a function that applies the pool to a storeImpl
func WithWorkerPool(pool worker.DynamicWorkerPool) StoreBuilderOption {
	return func(s *storeImpl) {
		s.pool = pool
	}
}

// WithParallelThreshold sets the instance count above which Seal uses the worker pool.
//
// Parameters:
//   - n: the threshold; 0 always uses the pool
//
// Returns:
//   - StoreBuilderOption: a function that applies the threshold to a storeImpl
func WithParallelThreshold(n int) StoreBuilderOption {
	return func(s *storeImpl) {
		s.parallelThreshold = n
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *zap.Logger) StoreBuilderOption {
	return func(s *storeImpl) {
		if logger != nil {
			s.logger = logger
		}
	}
}
