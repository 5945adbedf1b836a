package loader

import (
	"io"
)

// gltfLoaderBackend is the loaderBackend for .gltf and .glb files. Every load runs a fresh
// importer, so concurrent loads share no parser state.
type gltfLoaderBackend struct {
	maxTextureSize uint32
}

var _ loaderBackend = &gltfLoaderBackend{}

// newGLTFLoaderBackend creates a new glTF loader backend.
//
// Parameters:
//   - maxTextureSize: the largest texture side kept; 0 keeps the source size
//
// Returns:
//   - loaderBackend: the loader backend for glTF/GLB files
func newGLTFLoaderBackend(maxTextureSize uint32) loaderBackend {
	return &gltfLoaderBackend{maxTextureSize: maxTextureSize}
}

func (b *gltfLoaderBackend) Load(path string) (*importedModel, error) {
	return newGLTFImporter(b.maxTextureSize).Import(path)
}

func (b *gltfLoaderBackend) LoadReader(r io.Reader, isGLB bool) (*importedModel, error) {
	return newGLTFImporter(b.maxTextureSize).ImportReader(r, isGLB)
}
