package loader

import (
	"github.com/Carmen-Shannon/oxy-deferred/engine/model"
	"go.uber.org/zap"
)

// LoaderBuilderOption is a functional option for configuring a Loader via NewLoader.
type LoaderBuilderOption func(*loader)

// WithLogger sets the logger load events are reported to.
func WithLogger(logger *zap.Logger) LoaderBuilderOption {
	return func(l *loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithMaxTextureSize is an option builder that caps the size of decoded textures. Larger images
// are downscaled on load.
//
// Parameters:
//   - size: the largest allowed texture side in texels; 0 keeps the source size
//
// Returns:
//   - LoaderBuilderOption: a function that applies the size option to a loader
func WithMaxTextureSize(size uint32) LoaderBuilderOption {
	return func(l *loader) {
		l.maxTextureSize = size
	}
}

// WithModels is an option builder that pre-populates the model cache.
//
// Parameters:
//   - key: the cache key
//   - models: the models returned for key
//
// Returns:
//   - LoaderBuilderOption: a function that applies the models option to a loader
func WithModels(key string, models []model.Model) LoaderBuilderOption {
	return func(l *loader) {
		l.modelCache[key] = models
	}
}
