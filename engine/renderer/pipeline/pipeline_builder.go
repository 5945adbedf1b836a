package pipeline

import "github.com/Carmen-Shannon/oxy-deferred/engine/renderer/gpu"

// PipelineBuilderOption is a functional option used to configure a Pipeline during construction.
type PipelineBuilderOption func(*pipeline)

// WithVertexLayout sets the vertex buffer layout for slot 0.
//
// Parameters:
//   - layout: the interleaved vertex layout
//
// Returns:
//   - PipelineBuilderOption: a function that sets the vertex layout for this pipeline
func WithVertexLayout(layout gpu.VertexLayout) PipelineBuilderOption {
	return func(p *pipeline) {
		p.vertexLayout = &layout
	}
}

// WithColorTargets sets the color attachment formats in location order.
//
// Parameters:
//   - formats: one format per fragment output location
//
// Returns:
//   - PipelineBuilderOption: a function that sets the color targets for this pipeline
func WithColorTargets(formats ...gpu.TextureFormat) PipelineBuilderOption {
	return func(p *pipeline) {
		p.colorFormats = formats
	}
}

// WithDepthFormat enables a depth attachment of the given format.
//
// Parameters:
//   - format: the depth format
//
// Returns:
//   - PipelineBuilderOption: a function that sets the depth format for this pipeline
func WithDepthFormat(format gpu.TextureFormat) PipelineBuilderOption {
	return func(p *pipeline) {
		p.depthFormat = format
	}
}

// WithDepthWriteEnabled sets whether depth writing is enabled for this pipeline.
//
// Parameters:
//   - enabled: a boolean indicating whether depth writing should be enabled
//
// Returns:
//   - PipelineBuilderOption: a function that sets the depth write enabled state for this pipeline
func WithDepthWriteEnabled(enabled bool) PipelineBuilderOption {
	return func(p *pipeline) {
		p.depthWriteEnabled = enabled
	}
}

// WithDepthCompare sets the depth test function.
func WithDepthCompare(compare gpu.CompareFunction) PipelineBuilderOption {
	return func(p *pipeline) {
		p.depthCompare = compare
	}
}

// WithDepthBias sets the rasterizer depth bias for this pipeline.
//
// Parameters:
//   - bias: the constant depth bias in depth-format units
//   - slopeScale: the bias applied per unit of depth slope
//
// Returns:
//   - PipelineBuilderOption: a function that sets the depth bias for this pipeline
func WithDepthBias(bias int32, slopeScale float32) PipelineBuilderOption {
	return func(p *pipeline) {
		p.depthBias = bias
		p.depthBiasSlopeScale = slopeScale
	}
}

// WithCullMode sets the face culling mode for this pipeline.
//
// Parameters:
//   - mode: the cull mode to use
//
// Returns:
//   - PipelineBuilderOption: a function that sets the cull mode for this pipeline
func WithCullMode(mode gpu.CullMode) PipelineBuilderOption {
	return func(p *pipeline) {
		p.cullMode = mode
	}
}
