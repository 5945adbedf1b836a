package loader

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-deferred/engine/model"
	"github.com/go-gl/mathgl/mgl32"
)

// gltfMeshExtractorImpl is the implementation of the gltfMeshExtractor interface.
type gltfMeshExtractorImpl struct {
	parser gltfParser
}

// gltfMeshExtractor defines the interface for extracting mesh data from a parsed glTF document.
// It converts raw glTF accessor data into G-buffer vertices.
type gltfMeshExtractor interface {
	// ExtractMesh extracts a single mesh by index.
	// Returns one importedMesh per primitive (glTF meshes can have multiple primitives).
	//
	// Parameters:
	//   - meshIndex: the index of the mesh to extract
	//
	// Returns:
	//   - []importedMesh: one importedMesh per primitive
	//   - error: error if extraction fails
	ExtractMesh(meshIndex int) ([]importedMesh, error)

	// ExtractAllMeshes extracts all meshes from the document.
	// Returns a flattened slice with one importedMesh per primitive across all meshes.
	//
	// Returns:
	//   - []importedMesh: all meshes (flattened, one per primitive)
	//   - error: error if extraction fails
	ExtractAllMeshes() ([]importedMesh, error)
}

var _ gltfMeshExtractor = &gltfMeshExtractorImpl{}

// newGLTFMeshExtractor creates a new mesh extractor for a parsed document.
//
// Parameters:
//   - parser: the parser containing a loaded document
//
// Returns:
//   - gltfMeshExtractor: the mesh extractor
func newGLTFMeshExtractor(parser gltfParser) gltfMeshExtractor {
	return &gltfMeshExtractorImpl{parser: parser}
}

func (e *gltfMeshExtractorImpl) ExtractMesh(meshIndex int) ([]importedMesh, error) {
	doc := e.parser.Document()
	if doc == nil {
		return nil, fmt.Errorf("no document loaded")
	}
	if meshIndex < 0 || meshIndex >= len(doc.Meshes) {
		return nil, fmt.Errorf("mesh index %d out of range", meshIndex)
	}

	mesh := &doc.Meshes[meshIndex]
	base := mesh.Name
	if base == "" {
		base = fmt.Sprintf("mesh_%d", meshIndex)
	}

	result := make([]importedMesh, 0, len(mesh.Primitives))
	for i := range mesh.Primitives {
		name := base
		if i > 0 {
			name = fmt.Sprintf("%s_prim%d", base, i)
		}
		imported, err := e.extractPrimitive(&mesh.Primitives[i], name)
		if err != nil {
			return nil, fmt.Errorf("mesh %d primitive %d: %w", meshIndex, i, err)
		}
		result = append(result, imported)
	}
	return result, nil
}

func (e *gltfMeshExtractorImpl) ExtractAllMeshes() ([]importedMesh, error) {
	doc := e.parser.Document()
	if doc == nil {
		return nil, fmt.Errorf("no document loaded")
	}

	var all []importedMesh
	for i := range doc.Meshes {
		meshes, err := e.ExtractMesh(i)
		if err != nil {
			return nil, err
		}
		all = append(all, meshes...)
	}
	return all, nil
}

// extractPrimitive converts a triangle-list primitive into G-buffer vertices. Missing normals are
// generated from the faces, then missing tangents from the UVs.
func (e *gltfMeshExtractorImpl) extractPrimitive(prim *gltfPrimitive, name string) (importedMesh, error) {
	if prim.Mode != nil && *prim.Mode != gltfPrimitiveModeTriangles {
		return importedMesh{}, fmt.Errorf("unsupported primitive mode %d, only triangles are drawn", *prim.Mode)
	}
	posAccessor, ok := prim.Attributes["POSITION"]
	if !ok {
		return importedMesh{}, fmt.Errorf("primitive has no POSITION attribute")
	}
	positions, err := e.parser.ReadVec3Accessor(posAccessor)
	if err != nil {
		return importedMesh{}, fmt.Errorf("POSITION: %w", err)
	}

	vertices := make([]model.GPUVertex, len(positions))
	for i, pos := range positions {
		vertices[i].Position = pos
	}

	hasNormals, err := readAttribute(prim, "NORMAL", e.parser.ReadVec3Accessor, vertices,
		func(v *model.GPUVertex, n [3]float32) { v.Normal = n })
	if err != nil {
		return importedMesh{}, err
	}
	if _, err := readAttribute(prim, "TEXCOORD_0", e.parser.ReadVec2Accessor, vertices,
		func(v *model.GPUVertex, uv [2]float32) { v.TexCoord = uv }); err != nil {
		return importedMesh{}, err
	}
	hasTangents, err := readAttribute(prim, "TANGENT", e.parser.ReadVec4Accessor, vertices,
		func(v *model.GPUVertex, t [4]float32) { v.Tangent = t })
	if err != nil {
		return importedMesh{}, err
	}

	indices, err := e.primitiveIndices(prim, len(vertices))
	if err != nil {
		return importedMesh{}, err
	}
	if len(indices)%3 != 0 {
		return importedMesh{}, fmt.Errorf("%d indices do not form whole triangles", len(indices))
	}

	if !hasNormals {
		generateNormals(vertices, indices)
	}
	if !hasTangents {
		generateTangents(vertices, indices)
	}

	materialIndex := -1
	if prim.Material != nil {
		materialIndex = *prim.Material
	}
	return importedMesh{
		Name:          name,
		Vertices:      vertices,
		Indices:       indices,
		MaterialIndex: materialIndex,
	}, nil
}

// primitiveIndices reads the index accessor, or returns 0..vertexCount-1 for non-indexed geometry.
func (e *gltfMeshExtractorImpl) primitiveIndices(prim *gltfPrimitive, vertexCount int) ([]uint32, error) {
	if prim.Indices == nil {
		indices := make([]uint32, vertexCount)
		for i := range indices {
			indices[i] = uint32(i)
		}
		return indices, nil
	}

	indices, err := e.parser.ReadIndicesAccessor(*prim.Indices)
	if err != nil {
		return nil, fmt.Errorf("indices: %w", err)
	}
	for _, idx := range indices {
		if int(idx) >= vertexCount {
			return nil, fmt.Errorf("index %d out of range for %d vertices", idx, vertexCount)
		}
	}
	return indices, nil
}

// readAttribute reads an optional vertex attribute and stores it with set. An attribute whose
// count differs from the vertex count is an error.
func readAttribute[T any](
	prim *gltfPrimitive,
	semantic string,
	read func(int) ([]T, error),
	vertices []model.GPUVertex,
	set func(*model.GPUVertex, T),
) (bool, error) {
	accessor, ok := prim.Attributes[semantic]
	if !ok {
		return false, nil
	}
	values, err := read(accessor)
	if err != nil {
		return false, fmt.Errorf("%s: %w", semantic, err)
	}
	if len(values) != len(vertices) {
		return false, fmt.Errorf("%s has %d elements for %d vertices", semantic, len(values), len(vertices))
	}
	for i := range vertices {
		set(&vertices[i], values[i])
	}
	return true, nil
}

// generateNormals writes smooth vertex normals for primitives without a NORMAL attribute. Face
// normals are accumulated unnormalized, so larger triangles weigh more.
//
// Parameters:
//   - vertices: the vertices to write normals into
//   - indices: the triangle list
func generateNormals(vertices []model.GPUVertex, indices []uint32) {
	accum := make([]mgl32.Vec3, len(vertices))
	for i := 0; i+2 < len(indices); i += 3 {
		tri := [3]uint32{indices[i], indices[i+1], indices[i+2]}
		p0 := mgl32.Vec3(vertices[tri[0]].Position)
		p1 := mgl32.Vec3(vertices[tri[1]].Position)
		p2 := mgl32.Vec3(vertices[tri[2]].Position)
		face := p1.Sub(p0).Cross(p2.Sub(p0))
		for _, idx := range tri {
			accum[idx] = accum[idx].Add(face)
		}
	}

	for i, n := range accum {
		if n.Len() < 1e-6 {
			vertices[i].Normal = [3]float32{0, 1, 0}
			continue
		}
		vertices[i].Normal = n.Normalize()
	}
}

// generateTangents writes per-vertex tangents from the UV gradients of each triangle, Gram-Schmidt
// orthonormalized against the vertex normal. W holds the bitangent handedness.
//
// Parameters:
//   - vertices: the vertices to write tangents into; normals must already be set
//   - indices: the triangle list
func generateTangents(vertices []model.GPUVertex, indices []uint32) {
	tangents := make([]mgl32.Vec3, len(vertices))
	bitangents := make([]mgl32.Vec3, len(vertices))

	for i := 0; i+2 < len(indices); i += 3 {
		tri := [3]uint32{indices[i], indices[i+1], indices[i+2]}
		v0, v1, v2 := vertices[tri[0]], vertices[tri[1]], vertices[tri[2]]

		edge1 := mgl32.Vec3(v1.Position).Sub(v0.Position)
		edge2 := mgl32.Vec3(v2.Position).Sub(v0.Position)
		duv1 := mgl32.Vec2(v1.TexCoord).Sub(v0.TexCoord)
		duv2 := mgl32.Vec2(v2.TexCoord).Sub(v0.TexCoord)

		det := duv1.X()*duv2.Y() - duv1.Y()*duv2.X()
		if det == 0 {
			continue
		}
		r := 1 / det
		t := edge1.Mul(duv2.Y()).Sub(edge2.Mul(duv1.Y())).Mul(r)
		b := edge2.Mul(duv1.X()).Sub(edge1.Mul(duv2.X())).Mul(r)
		for _, idx := range tri {
			tangents[idx] = tangents[idx].Add(t)
			bitangents[idx] = bitangents[idx].Add(b)
		}
	}

	for i := range vertices {
		n := mgl32.Vec3(vertices[i].Normal)
		ortho := tangents[i].Sub(n.Mul(n.Dot(tangents[i])))
		if ortho.Len() < 1e-6 {
			vertices[i].Tangent = [4]float32{1, 0, 0, 1}
			continue
		}
		ortho = ortho.Normalize()
		w := float32(1)
		if n.Cross(ortho).Dot(bitangents[i]) < 0 {
			w = -1
		}
		vertices[i].Tangent = ortho.Vec4(w)
	}
}
