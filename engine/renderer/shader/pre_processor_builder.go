package shader

import "strconv"

// PreProcessorBuilderOption is a function that configures a PreProcessor during construction.
type PreProcessorBuilderOption func(*preProcessor)

// WithConstant registers a ${NAME} substitution.
//
// Parameters:
//   - name: the constant name
//   - value: the WGSL text substituted for it
//
// Returns:
//   - PreProcessorBuilderOption: a function that applies the constant to a preProcessor
func WithConstant(name, value string) PreProcessorBuilderOption {
	return func(p *preProcessor) {
		p.constants[name] = value
	}
}

// WithIntConstant registers an integer ${NAME} substitution.
func WithIntConstant(name string, value int) PreProcessorBuilderOption {
	return WithConstant(name, strconv.Itoa(value))
}
