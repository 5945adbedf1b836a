package pipeline

import (
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/shader"
)

// pipeline is the implementation of the Pipeline interface.
// It holds the backend-neutral description of a render pipeline and, once registered, the handle
// the backend issued for it.
type pipeline struct {
	// pipelineKey is the unique identifier for this pipeline, used for caching and lookups
	pipelineKey string

	shader shader.Shader

	// vertexLayout is nil for pipelines that generate their vertices (the full-screen triangle)
	vertexLayout *gpu.VertexLayout
	colorFormats []gpu.TextureFormat
	depthFormat  gpu.TextureFormat

	// The following properties configure rasterization and the depth test and can be set with
	// the builder options.

	depthWriteEnabled   bool
	depthCompare        gpu.CompareFunction
	depthBias           int32
	depthBiasSlopeScale float32
	cullMode            gpu.CullMode

	handle gpu.Pipeline
}

// Pipeline describes one render pipeline: its shader variant, vertex input, attachment formats and
// fixed-function state. The description carries no GPU objects; a backend turns it into a handle
// when the pipeline is registered.
type Pipeline interface {
	// PipelineKey returns the unique key associated with this pipeline, used for caching and lookups.
	//
	// Returns:
	//   - string: the unique key for this pipeline
	PipelineKey() string

	// Shader returns the shader variant the pipeline runs.
	//
	// Returns:
	//   - shader.Shader: the processed shader
	Shader() shader.Shader

	// VertexLayout returns the interleaved vertex buffer layout, or nil when the pipeline draws
	// without a vertex buffer.
	//
	// Returns:
	//   - *gpu.VertexLayout: the layout bound at vertex buffer slot 0
	VertexLayout() *gpu.VertexLayout

	// ColorFormats returns the formats of the color attachments in location order. A depth-only
	// pipeline has none.
	//
	// Returns:
	//   - []gpu.TextureFormat: one format per color target
	ColorFormats() []gpu.TextureFormat

	// DepthFormat returns the depth attachment format, or TextureFormatUndefined without depth.
	//
	// Returns:
	//   - gpu.TextureFormat: the depth format
	DepthFormat() gpu.TextureFormat

	// DepthWriteEnabled returns whether depth writing is enabled for this pipeline.
	//
	// Returns:
	//   - bool: true if depth writing is enabled, false otherwise
	DepthWriteEnabled() bool

	// DepthCompare returns the depth test function.
	//
	// Returns:
	//   - gpu.CompareFunction: the depth comparison
	DepthCompare() gpu.CompareFunction

	// DepthBias returns the constant rasterizer depth bias configured for this pipeline.
	//
	// Returns:
	//   - int32: the depth bias value for this pipeline
	DepthBias() int32

	// DepthBiasSlopeScale returns the depth bias slope scale configured for this pipeline.
	//
	// Returns:
	//   - float32: the depth bias slope scale for this pipeline
	DepthBiasSlopeScale() float32

	// CullMode returns the cull mode configured for this pipeline.
	//
	// Returns:
	//   - gpu.CullMode: the cull mode for this pipeline
	CullMode() gpu.CullMode

	// Handle returns the backend handle, zero until the pipeline has been registered.
	//
	// Returns:
	//   - gpu.Pipeline: the handle
	Handle() gpu.Pipeline

	// SetHandle records the backend handle.
	//
	// Parameters:
	//   - h: the handle issued by the backend
	SetHandle(h gpu.Pipeline)
}

var _ Pipeline = &pipeline{}

// NewPipeline is the entry point to create a new Pipeline. The defaults describe a depth-tested
// pipeline with depth writes, a Less comparison and no culling.
//
// Parameters:
//   - pipelineKey: the unique key for this pipeline
//   - s: the shader variant
//   - opts: a variadic list of PipelineBuilderOption functions to configure the pipeline
//
// Returns:
//   - Pipeline: a new Pipeline instance with the specified configuration
func NewPipeline(pipelineKey string, s shader.Shader, opts ...PipelineBuilderOption) Pipeline {
	p := &pipeline{
		pipelineKey:       pipelineKey,
		shader:            s,
		depthWriteEnabled: true,
		depthCompare:      gpu.CompareFunctionLess,
		cullMode:          gpu.CullModeNone,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *pipeline) PipelineKey() string {
	return p.pipelineKey
}

func (p *pipeline) Shader() shader.Shader {
	return p.shader
}

func (p *pipeline) VertexLayout() *gpu.VertexLayout {
	return p.vertexLayout
}

func (p *pipeline) ColorFormats() []gpu.TextureFormat {
	return p.colorFormats
}

func (p *pipeline) DepthFormat() gpu.TextureFormat {
	return p.depthFormat
}

func (p *pipeline) DepthWriteEnabled() bool {
	return p.depthWriteEnabled
}

func (p *pipeline) DepthCompare() gpu.CompareFunction {
	return p.depthCompare
}

func (p *pipeline) DepthBias() int32 {
	return p.depthBias
}

func (p *pipeline) DepthBiasSlopeScale() float32 {
	return p.depthBiasSlopeScale
}

func (p *pipeline) CullMode() gpu.CullMode {
	return p.cullMode
}

func (p *pipeline) Handle() gpu.Pipeline {
	return p.handle
}

func (p *pipeline) SetHandle(h gpu.Pipeline) {
	p.handle = h
}
