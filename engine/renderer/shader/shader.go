package shader

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/gpu"
)

// Default entry point names used by every pass shader.
const (
	DefaultVertexEntryPoint   = "vs_main"
	DefaultFragmentEntryPoint = "fs_main"
)

// shader is the implementation of the Shader interface.
// It holds the pre-processed source of one variant and the bind group layouts it declares.
type shader struct {
	key           string
	source        string
	vertexEntry   string
	fragmentEntry string
	defines       map[string]bool
	ppOptions     []PreProcessorBuilderOption
	layouts       []gpu.BindGroupLayout
	declarations  []Annotation
}

// Shader is one pre-processed WGSL program variant. It exposes the shader's unique key, the final
// WGSL source, its entry points and the bind group layouts derived from its @oxy:group
// declarations, which the backend uses to build the pipeline layout.
type Shader interface {
	// Key retrieves the unique identifier for this shader, used for caching and lookups.
	//
	// Returns:
	//   - string: the shader's unique key
	Key() string

	// Source retrieves the pre-processed WGSL source code.
	//
	// Returns:
	//   - string: the WGSL source code of the shader
	Source() string

	// VertexEntryPoint returns the vertex stage entry point name.
	//
	// Returns:
	//   - string: the entry point name (e.g. "vs_main")
	VertexEntryPoint() string

	// FragmentEntryPoint returns the fragment stage entry point name, or "" for a depth-only
	// program without a fragment stage.
	//
	// Returns:
	//   - string: the entry point name
	FragmentEntryPoint() string

	// Layouts returns the bind group layouts indexed by group.
	//
	// Returns:
	//   - []gpu.BindGroupLayout: one layout per group index
	Layouts() []gpu.BindGroupLayout

	// Layout returns the layout of a single group, or an empty layout when the group is not declared.
	//
	// Parameters:
	//   - group: the bind group index
	//
	// Returns:
	//   - gpu.BindGroupLayout: the layout
	Layout(group int) gpu.BindGroupLayout

	// Declarations returns the group annotations of the variant in source order.
	//
	// Returns:
	//   - []Annotation: the declarations kept after variant selection
	Declarations() []Annotation
}

var _ Shader = &shader{}

// NewShader pre-processes source into a Shader variant.
//
// Parameters:
//   - key: a unique identifier for the shader, used for caching and lookups
//   - source: the raw annotated WGSL source
//   - opts: builder options selecting defines, constants and entry points
//
// Returns:
//   - Shader: the processed shader
//   - error: if pre-processing fails or two declarations collide
func NewShader(key, source string, opts ...ShaderBuilderOption) (Shader, error) {
	s := &shader{
		key:           key,
		vertexEntry:   DefaultVertexEntryPoint,
		fragmentEntry: DefaultFragmentEntryPoint,
		defines:       map[string]bool{},
	}
	for _, opt := range opts {
		opt(s)
	}

	pp := NewPreProcessor(s.ppOptions...)
	processed, err := pp.Process(source, s.defines)
	if err != nil {
		return nil, fmt.Errorf("shader: failed to pre-process %s: %w", key, err)
	}
	layouts, err := pp.Layouts()
	if err != nil {
		return nil, fmt.Errorf("shader: %s: %w", key, err)
	}
	s.source = processed
	s.layouts = layouts
	s.declarations = append([]Annotation(nil), pp.Declarations()...)
	return s, nil
}

func (s *shader) Key() string {
	return s.key
}

func (s *shader) Source() string {
	return s.source
}

func (s *shader) VertexEntryPoint() string {
	return s.vertexEntry
}

func (s *shader) FragmentEntryPoint() string {
	return s.fragmentEntry
}

func (s *shader) Layouts() []gpu.BindGroupLayout {
	return s.layouts
}

func (s *shader) Layout(group int) gpu.BindGroupLayout {
	if group < 0 || group >= len(s.layouts) {
		return gpu.BindGroupLayout{Label: fmt.Sprintf("group%d", group)}
	}
	return s.layouts[group]
}

func (s *shader) Declarations() []Annotation {
	return s.declarations
}
