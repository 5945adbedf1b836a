package loader

import (
	"fmt"
	"io"

	"github.com/Carmen-Shannon/oxy-deferred/common"
	"github.com/Carmen-Shannon/oxy-deferred/engine/model"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/material"
)

// loaderBackend defines the generic interface for loading models from files or streams.
// Concrete implementations (e.g., gltfLoaderBackend) handle format-specific details.
type loaderBackend interface {
	// Load imports the meshes and materials of the file at path.
	//
	// Parameters:
	//   - path: the file path to load
	//
	// Returns:
	//   - *importedModel: the imported model data
	//   - error: error if loading fails
	Load(path string) (*importedModel, error)

	// LoadReader imports a model from a reader stream.
	//
	// Parameters:
	//   - r: the reader providing model data
	//   - isGLB: true if the reader provides GLB binary data, false for text-based formats
	//
	// Returns:
	//   - *importedModel: the imported model data
	//   - error: error if loading fails
	LoadReader(r io.Reader, isGLB bool) (*importedModel, error)
}

// importedModel is the CPU-side result of an import, before conversion to models.
type importedModel struct {
	Name      string
	Meshes    []importedMesh
	Materials []*importedMaterial
}

// importedMesh is one triangle-list primitive in model space.
type importedMesh struct {
	Name     string
	Vertices []model.GPUVertex
	Indices  []uint32
	// MaterialIndex indexes importedModel.Materials; -1 selects the default material.
	MaterialIndex int
}

// importedMaterial holds a material's constants and decoded channel textures.
type importedMaterial struct {
	Name      string
	BaseColor [4]float32
	Occlusion float32
	Roughness float32
	Metallic  float32
	// Textures is indexed by material.Channel.
	Textures [3]*common.TextureStagingData
	// Sampler is the sampler of the first texture that declares one.
	Sampler *common.SamplerStagingData
}

func (m *importedMaterial) setTexture(ch material.Channel, tex *decodedTexture) {
	m.Textures[ch] = &tex.staging
	if m.Sampler == nil && tex.sampler != nil {
		m.Sampler = tex.sampler
	}
}

// materialHandle builds a material once and shares it between every primitive that uses it.
type materialHandle struct {
	imported *importedMaterial
	built    material.Material
}

func (h *materialHandle) material(modelName string) material.Material {
	if h.built != nil {
		return h.built
	}
	if h.imported == nil {
		h.built = material.NewMaterial(material.WithName(modelName + "/default"))
		return h.built
	}

	name := h.imported.Name
	if name == "" {
		name = fmt.Sprintf("%s/material", modelName)
	}
	opts := []material.MaterialBuilderOption{
		material.WithName(name),
		material.WithBaseColor(h.imported.BaseColor),
		material.WithORM(h.imported.Occlusion, h.imported.Roughness, h.imported.Metallic),
	}
	for _, ch := range material.Channels() {
		if tex := h.imported.Textures[ch]; tex != nil {
			opts = append(opts, material.WithTexture(ch, *tex))
		}
	}
	if h.imported.Sampler != nil {
		opts = append(opts, material.WithSampler(*h.imported.Sampler))
	}
	h.built = material.NewMaterial(opts...)
	return h.built
}
