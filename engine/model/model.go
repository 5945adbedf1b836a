// Package model holds CPU-side mesh data and the GPU mesh it is uploaded to.
package model

import (
	"sync"

	"github.com/Carmen-Shannon/oxy-deferred/common"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/material"
)

// model is the implementation of the Model interface.
type model struct {
	mu *sync.Mutex

	name           string
	vertices       []GPUVertex
	indices        []uint32
	material       material.Material
	boundingRadius float32
	mesh           gpu.Mesh
}

// Model defines the interface for a drawable mesh. Geometry and material are fixed at
// construction; the GPU mesh handle is set once the geometry has been uploaded.
type Model interface {
	// Name retrieves the model identifier.
	//
	// Returns:
	//   - string: the model name
	Name() string

	// Vertices returns the model-space vertices.
	Vertices() []GPUVertex

	// Indices returns the triangle list indices.
	Indices() []uint32

	// VertexData returns the marshaled vertex buffer contents.
	//
	// Returns:
	//   - []byte: len(Vertices()) * 48 bytes
	VertexData() []byte

	// IndexData returns the marshaled uint32 index buffer contents.
	//
	// Returns:
	//   - []byte: the index data
	IndexData() []byte

	// IndexCount returns the number of indices in the model's mesh.
	//
	// Returns:
	//   - int: the index count
	IndexCount() int

	// BoundingRadius returns the maximum vertex distance from the model origin.
	//
	// Returns:
	//   - float32: the bounding radius
	BoundingRadius() float32

	// Material returns the material the model draws with.
	//
	// Returns:
	//   - material.Material: the material
	Material() material.Material

	// Mesh returns the uploaded GPU mesh. The zero Mesh means not yet uploaded.
	//
	// Returns:
	//   - gpu.Mesh: the mesh handles
	Mesh() gpu.Mesh

	// SetMesh records the uploaded GPU mesh.
	//
	// Parameters:
	//   - mesh: the mesh handles
	SetMesh(mesh gpu.Mesh)
}

var _ Model = &model{}

// NewModel creates a new Model instance with the specified options applied. A model without a
// material draws with a default constant-only material.
//
// Parameters:
//   - options: a variadic list of ModelBuilderOption functions to configure the Model
//
// Returns:
//   - Model: a new instance of Model configured with the provided options
func NewModel(options ...ModelBuilderOption) Model {
	m := &model{mu: &sync.Mutex{}}
	for _, opt := range options {
		opt(m)
	}
	if m.material == nil {
		m.material = material.NewMaterial(material.WithName(m.name))
	}
	m.boundingRadius = ComputeBoundingRadius(m.vertices)
	return m
}

func (m *model) Name() string {
	return m.name
}

func (m *model) Vertices() []GPUVertex {
	return m.vertices
}

func (m *model) Indices() []uint32 {
	return m.indices
}

func (m *model) VertexData() []byte {
	data := make([]byte, 0, len(m.vertices)*48)
	for i := range m.vertices {
		data = append(data, m.vertices[i].Marshal()...)
	}
	return data
}

func (m *model) IndexData() []byte {
	return common.SliceToBytes(m.indices)
}

func (m *model) IndexCount() int {
	return len(m.indices)
}

func (m *model) BoundingRadius() float32 {
	return m.boundingRadius
}

func (m *model) Material() material.Material {
	return m.material
}

func (m *model) Mesh() gpu.Mesh {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mesh
}

func (m *model) SetMesh(mesh gpu.Mesh) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mesh = mesh
}
