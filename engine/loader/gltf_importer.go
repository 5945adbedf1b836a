package loader

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/Carmen-Shannon/oxy-deferred/common"
	"github.com/Carmen-Shannon/oxy-deferred/engine/model"
	"github.com/go-gl/mathgl/mgl32"
)

// gltfImporterImpl is the implementation of the gltfImporter interface.
type gltfImporterImpl struct {
	maxTextureSize uint32
}

// gltfImporter defines the interface for orchestrating a full glTF/GLB import.
// It combines the parser and the extractors to produce an importedModel.
type gltfImporter interface {
	// Import loads a glTF/GLB file and extracts its meshes and materials.
	//
	// Parameters:
	//   - path: the file path to the glTF or GLB file
	//
	// Returns:
	//   - *importedModel: the imported model
	//   - error: error if import fails
	Import(path string) (*importedModel, error)

	// ImportReader loads a glTF document from a reader. External buffers and images are
	// resolved against the working directory.
	//
	// Parameters:
	//   - r: the reader providing glTF/GLB data
	//   - isGLB: true if the reader provides GLB binary data, false for glTF JSON
	//
	// Returns:
	//   - *importedModel: the imported model
	//   - error: error if import fails
	ImportReader(r io.Reader, isGLB bool) (*importedModel, error)
}

var _ gltfImporter = &gltfImporterImpl{}

// newGLTFImporter creates a new glTF importer.
//
// Parameters:
//   - maxTextureSize: the largest texture side kept; 0 keeps the source size
//
// Returns:
//   - gltfImporter: the importer
func newGLTFImporter(maxTextureSize uint32) gltfImporter {
	return &gltfImporterImpl{maxTextureSize: maxTextureSize}
}

func (imp *gltfImporterImpl) Import(path string) (*importedModel, error) {
	parser := newGLTFParser()
	if err := parser.Parse(path); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return imp.importFromParser(parser, path)
}

func (imp *gltfImporterImpl) ImportReader(r io.Reader, isGLB bool) (*importedModel, error) {
	parser := newGLTFParser()
	if err := parser.ParseReader(r, isGLB); err != nil {
		return nil, fmt.Errorf("failed to parse from reader: %w", err)
	}
	return imp.importFromParser(parser, "")
}

// importFromParser extracts meshes and materials from a parser that has already loaded a document.
//
// Parameters:
//   - parser: the glTF parser that has already loaded a document
//   - fallbackPath: optional file path used as a fallback for model naming
func (imp *gltfImporterImpl) importFromParser(parser gltfParser, fallbackPath string) (*importedModel, error) {
	doc := parser.Document()
	if doc == nil {
		return nil, fmt.Errorf("no document after parsing")
	}

	meshExtractor := newGLTFMeshExtractor(parser)
	materialExtractor := newGLTFMaterialExtractor(parser, imp.maxTextureSize)

	meshes, err := imp.sceneMeshes(doc, meshExtractor)
	if err != nil {
		return nil, fmt.Errorf("mesh extraction failed: %w", err)
	}

	var materials []*importedMaterial
	if len(doc.Materials) > 0 {
		materials, err = materialExtractor.ExtractAllMaterials()
		if err != nil {
			return nil, fmt.Errorf("material extraction failed: %w", err)
		}
	}
	for _, m := range meshes {
		if m.MaterialIndex >= len(materials) {
			return nil, fmt.Errorf("mesh %q references material %d of %d", m.Name, m.MaterialIndex, len(materials))
		}
	}

	return &importedModel{
		Name:      gltfExtractModelName(doc, fallbackPath),
		Meshes:    meshes,
		Materials: materials,
	}, nil
}

// sceneMeshes instantiates every mesh referenced by the default scene with its node's world
// transform baked into the vertices. Documents without scenes yield every mesh untransformed.
func (imp *gltfImporterImpl) sceneMeshes(doc *gltfDocument, extractor gltfMeshExtractor) ([]importedMesh, error) {
	if len(doc.Scenes) == 0 {
		return extractor.ExtractAllMeshes()
	}
	scene := 0
	if doc.Scene != nil {
		scene = *doc.Scene
	}
	if scene < 0 || scene >= len(doc.Scenes) {
		return nil, fmt.Errorf("scene index %d out of range", scene)
	}

	var out []importedMesh
	var visit func(node int, parent mgl32.Mat4, depth int) error
	visit = func(node int, parent mgl32.Mat4, depth int) error {
		if node < 0 || node >= len(doc.Nodes) {
			return fmt.Errorf("node index %d out of range", node)
		}
		if depth > len(doc.Nodes) {
			return fmt.Errorf("node %d: cyclic hierarchy", node)
		}
		n := &doc.Nodes[node]
		world := parent.Mul4(gltfNodeMatrix(n))
		if n.Mesh != nil {
			meshes, err := extractor.ExtractMesh(*n.Mesh)
			if err != nil {
				return err
			}
			for _, m := range meshes {
				transformMesh(&m, world)
				if n.Name != "" {
					m.Name = n.Name + "/" + m.Name
				}
				out = append(out, m)
			}
		}
		for _, child := range n.Children {
			if err := visit(child, world, depth+1); err != nil {
				return err
			}
		}
		return nil
	}
	for _, root := range doc.Scenes[scene].Nodes {
		if err := visit(root, mgl32.Ident4(), 0); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// gltfNodeMatrix returns the node's local transform: its matrix, or T * R * S.
func gltfNodeMatrix(n *gltfNode) mgl32.Mat4 {
	if n.Matrix != nil {
		return mgl32.Mat4(*n.Matrix)
	}
	m := mgl32.Ident4()
	if n.Translation != nil {
		m = mgl32.Translate3D(n.Translation[0], n.Translation[1], n.Translation[2])
	}
	if n.Rotation != nil {
		q := mgl32.Quat{W: n.Rotation[3], V: mgl32.Vec3{n.Rotation[0], n.Rotation[1], n.Rotation[2]}}
		m = m.Mul4(q.Normalize().Mat4())
	}
	if n.Scale != nil {
		m = m.Mul4(mgl32.Scale3D(n.Scale[0], n.Scale[1], n.Scale[2]))
	}
	return m
}

// transformMesh bakes world into the mesh's positions, normals and tangents. Mirroring transforms
// flip the triangle winding so front faces stay counter-clockwise.
func transformMesh(m *importedMesh, world mgl32.Mat4) {
	if world == mgl32.Ident4() {
		return
	}
	normalMatrix, ok := common.NormalMatrix(world)
	if !ok {
		normalMatrix = world.Mat3()
	}
	linear := world.Mat3()
	for i := range m.Vertices {
		v := &m.Vertices[i]
		v.Position = world.Mul4x1(mgl32.Vec3(v.Position).Vec4(1)).Vec3()
		if n := normalMatrix.Mul3x1(v.Normal); n.Len() > 0 {
			v.Normal = n.Normalize()
		}
		if t := linear.Mul3x1(mgl32.Vec3{v.Tangent[0], v.Tangent[1], v.Tangent[2]}); t.Len() > 0 {
			v.Tangent = t.Normalize().Vec4(v.Tangent[3])
		}
	}
	if linear.Det() < 0 {
		for i := 0; i+2 < len(m.Indices); i += 3 {
			m.Indices[i+1], m.Indices[i+2] = m.Indices[i+2], m.Indices[i+1]
		}
	}
}

// gltfExtractModelName derives a model name from the default scene or a file path fallback.
func gltfExtractModelName(doc *gltfDocument, fallbackPath string) string {
	if doc.Scene != nil && *doc.Scene >= 0 && *doc.Scene < len(doc.Scenes) {
		if name := doc.Scenes[*doc.Scene].Name; name != "" {
			return name
		}
	}
	if fallbackPath != "" {
		return strings.TrimSuffix(filepath.Base(fallbackPath), filepath.Ext(fallbackPath))
	}
	return "unnamed_model"
}

// toModels converts the imported meshes into drawable models. Primitives without a material share
// one default material.
func (im *importedModel) toModels() []model.Model {
	materials := make([]*materialHandle, len(im.Materials))
	for i, m := range im.Materials {
		materials[i] = &materialHandle{imported: m}
	}
	fallback := &materialHandle{}

	models := make([]model.Model, 0, len(im.Meshes))
	for _, mesh := range im.Meshes {
		h := fallback
		if mesh.MaterialIndex >= 0 {
			h = materials[mesh.MaterialIndex]
		}
		models = append(models, model.NewModel(
			model.WithName(im.Name+"/"+mesh.Name),
			model.WithGeometry(mesh.Vertices, mesh.Indices),
			model.WithMaterial(h.material(im.Name)),
		))
	}
	return models
}
