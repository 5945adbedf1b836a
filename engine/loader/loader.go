// Package loader imports static glTF 2.0 and GLB assets as models for the G-buffer pass. Every
// triangle primitive becomes one model.Model with its node transforms baked in, and glTF
// metallic-roughness materials map onto the three material channels.
package loader

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-deferred/engine/model"
	"go.uber.org/zap"
)

// LoaderBackendType identifies the model file format backend to use.
type LoaderBackendType int

const (
	// BackendTypeGLTF selects the glTF/GLB loader backend.
	BackendTypeGLTF LoaderBackendType = iota
)

// loader is the implementation of the Loader interface.
type loader struct {
	mu sync.RWMutex

	logger         *zap.Logger
	maxTextureSize uint32

	modelCache map[string][]model.Model

	backend loaderBackend
}

// Loader defines the public-facing interface for loading and caching models. Loaded models are
// CPU-side: their meshes and materials still have to be registered with the orchestrator.
type Loader interface {
	// Load imports a model file and caches the result by path. If the file is already cached,
	// the cached models are returned.
	//
	// Parameters:
	//   - path: the file path to the .gltf or .glb file
	//
	// Returns:
	//   - []model.Model: one model per triangle primitive
	//   - error: error if loading fails
	Load(path string) ([]model.Model, error)

	// LoadReader imports a model from a reader stream and caches it by the given name.
	//
	// Parameters:
	//   - name: the cache key for the loaded models
	//   - r: the reader providing model data
	//   - isGLB: true if the reader provides GLB binary data
	//
	// Returns:
	//   - []model.Model: one model per triangle primitive
	//   - error: error if loading fails
	LoadReader(name string, r io.Reader, isGLB bool) ([]model.Model, error)

	// Get retrieves cached models by name. Returns nil if not found.
	//
	// Parameters:
	//   - name: the cache key to look up
	//
	// Returns:
	//   - []model.Model: the cached models or nil
	Get(name string) []model.Model

	// Models returns a copy of the model cache.
	//
	// Returns:
	//   - map[string][]model.Model: all cached models keyed by name
	Models() map[string][]model.Model
}

var _ Loader = &loader{}

// NewLoader creates a new Loader instance with the specified backend type and options applied.
//
// Parameters:
//   - backendType: the type of loader backend to use (e.g., BackendTypeGLTF)
//   - options: a variadic list of LoaderBuilderOption functions to configure the Loader
//
// Returns:
//   - Loader: a new instance of Loader configured with the provided backend and options
func NewLoader(backendType LoaderBackendType, options ...LoaderBuilderOption) Loader {
	l := &loader{
		logger:     zap.NewNop(),
		modelCache: make(map[string][]model.Model),
	}
	for _, option := range options {
		option(l)
	}

	switch backendType {
	case BackendTypeGLTF:
		l.backend = newGLTFLoaderBackend(l.maxTextureSize)
	}
	return l
}

func (l *loader) Load(path string) ([]model.Model, error) {
	if cached := l.Get(path); cached != nil {
		return cached, nil
	}

	if err := checkExtension(path); err != nil {
		return nil, err
	}

	start := time.Now()
	imported, err := l.backend.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loader: failed to load %s: %w", path, err)
	}
	return l.store(path, imported, start), nil
}

func (l *loader) LoadReader(name string, r io.Reader, isGLB bool) ([]model.Model, error) {
	if cached := l.Get(name); cached != nil {
		return cached, nil
	}

	start := time.Now()
	imported, err := l.backend.LoadReader(r, isGLB)
	if err != nil {
		return nil, fmt.Errorf("loader: failed to load from reader %q: %w", name, err)
	}
	return l.store(name, imported, start), nil
}

func (l *loader) Get(name string) []model.Model {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.modelCache[name]
}

func (l *loader) Models() map[string][]model.Model {
	l.mu.RLock()
	defer l.mu.RUnlock()

	result := make(map[string][]model.Model, len(l.modelCache))
	for k, v := range l.modelCache {
		result[k] = v
	}
	return result
}

// store converts and caches an import. A concurrent load of the same key keeps the first result.
func (l *loader) store(key string, imported *importedModel, start time.Time) []model.Model {
	models := imported.toModels()

	l.mu.Lock()
	defer l.mu.Unlock()
	if cached, ok := l.modelCache[key]; ok {
		return cached
	}
	l.modelCache[key] = models

	l.logger.Info("model loaded",
		zap.String("key", key),
		zap.String("name", imported.Name),
		zap.Int("meshes", len(imported.Meshes)),
		zap.Int("materials", len(imported.Materials)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return models
}

// checkExtension rejects files the glTF backend cannot read.
func checkExtension(path string) error {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".gltf", ".glb":
		return nil
	default:
		return fmt.Errorf("loader: unsupported model format %q", ext)
	}
}
