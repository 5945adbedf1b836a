package shader

import "maps"

// ShaderBuilderOption is a function that configures a Shader during construction.
type ShaderBuilderOption func(*shader)

// WithDefines sets the variant flags evaluated by //@oxy:if blocks.
//
// Parameters:
//   - defines: flag name to enabled
//
// Returns:
//   - ShaderBuilderOption: a function that applies the flags to a shader
func WithDefines(defines map[string]bool) ShaderBuilderOption {
	return func(s *shader) {
		maps.Copy(s.defines, defines)
	}
}

// WithPreProcessorOptions forwards options, usually compile-time constants, to the pre-processor.
//
// Parameters:
//   - opts: pre-processor options
//
// Returns:
//   - ShaderBuilderOption: a function that applies the options to a shader
func WithPreProcessorOptions(opts ...PreProcessorBuilderOption) ShaderBuilderOption {
	return func(s *shader) {
		s.ppOptions = append(s.ppOptions, opts...)
	}
}

// WithEntryPoints overrides the entry point names. An empty fragment entry marks a depth-only program.
func WithEntryPoints(vertex, fragment string) ShaderBuilderOption {
	return func(s *shader) {
		s.vertexEntry = vertex
		s.fragmentEntry = fragment
	}
}
