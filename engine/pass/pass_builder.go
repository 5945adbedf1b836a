package pass

import "go.uber.org/zap"

// PassBuilderOption is a function that configures a pass during construction.
type PassBuilderOption func(*passOptions)

// WithLogger sets the logger used for per-frame diagnostics.
//
// Parameters:
//   - logger: the logger
//
// Returns:
//   - PassBuilderOption: a function that applies the logger to a pass
func WithLogger(logger *zap.Logger) PassBuilderOption {
	return func(o *passOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}
