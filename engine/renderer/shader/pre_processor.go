// pre_processor.go implements the Oxy WGSL shader pre-processor. It scans shader
// source code for @oxy: annotations, replaces them with generated WGSL declarations
// or injected struct source, keeps or drops //@oxy:if blocks according to the variant's
// flags, substitutes ${NAME} compile-time constants and collects the declarations from
// which the host-side bind group layouts are built.
package shader

import (
	"fmt"
	"maps"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/Carmen-Shannon/oxy-deferred/engine/camera"
	"github.com/Carmen-Shannon/oxy-deferred/engine/instance"
	"github.com/Carmen-Shannon/oxy-deferred/engine/light"
	"github.com/Carmen-Shannon/oxy-deferred/engine/model"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/material"
	"github.com/Carmen-Shannon/oxy-deferred/engine/shadow"
)

// constantPattern matches a ${NAME} compile-time constant reference.
var constantPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// registryEntry pairs a WGSL struct source string (embedded from a .wgsl asset file)
// with the resolved WGSL type name used in generated @group/@binding declarations.
type registryEntry struct {
	// Source is the raw WGSL struct definition text injected by @oxy:include.
	Source string

	// Type is the WGSL type name emitted in @oxy:group declarations (e.g. "CameraUniform").
	Type string

	// Size is the byte size of one element, the minimum binding size of a buffer holding it.
	Size int
}

// preProcessor is the implementation of the PreProcessor interface.
type preProcessor struct {
	// structRegistry maps struct type argument keys to their embedded WGSL source and type name.
	structRegistry map[AnnotationArg]registryEntry

	// constants holds the ${NAME} substitutions.
	constants map[string]string

	// declarations accumulates group annotations during a Process call.
	// Reset at the start of each Process invocation.
	declarations []Annotation
}

// PreProcessor processes raw WGSL shader source code containing @oxy: annotations.
type PreProcessor interface {
	// Process pre-processes WGSL source for one variant. Lines inside an //@oxy:if block whose
	// flag is not set in defines are dropped (the //@oxy:else branch is kept instead), constants
	// are substituted, @oxy:include annotations are replaced with embedded struct source and
	// @oxy:group annotations with generated @group/@binding declarations.
	//
	// The declarations list is reset at the start of each call and can be retrieved
	// via Declarations() after Process returns.
	//
	// Parameters:
	//   - source: the raw WGSL shader source code containing annotations to be processed
	//   - defines: the variant's flags; a missing flag counts as unset
	//
	// Returns:
	//   - string: the processed WGSL shader source code with annotations replaced
	//   - error: an error if any annotation is malformed, a block is unbalanced or a constant is unknown
	Process(source string, defines map[string]bool) (string, error)

	// Declarations returns the group annotations collected during the most recent call to
	// Process, in source order. Declarations inside dropped blocks are not included.
	//
	// Returns:
	//   - []Annotation: the declarations collected during the last Process call
	Declarations() []Annotation

	// Layouts builds the bind group layouts described by the last Process call's declarations.
	// The result is indexed by group; groups without declarations are empty.
	//
	// Returns:
	//   - []gpu.BindGroupLayout: one layout per group index
	//   - error: if two declarations share a group and binding
	Layouts() ([]gpu.BindGroupLayout, error)
}

var _ PreProcessor = &preProcessor{}

// NewPreProcessor creates a new PreProcessor with all registered struct types pre-populated.
// The struct registry maps annotation argument keys to the embedded WGSL source of the
// engine's GPU types.
//
// Parameters:
//   - options: builder options, typically the compile-time constants
//
// Returns:
//   - PreProcessor: a ready-to-use pre-processor instance
func NewPreProcessor(options ...PreProcessorBuilderOption) PreProcessor {
	p := &preProcessor{
		structRegistry: map[AnnotationArg]registryEntry{
			AnnotationArgCamera:          {Source: camera.GPUCameraUniformSource, Type: "CameraUniform", Size: (&camera.GPUCameraUniform{}).Size()},
			annotationArgVertex:          {Source: model.GPUVertexSource, Type: "VertexInput", Size: (&model.GPUVertex{}).Size()},
			AnnotationArgInstanceData:    {Source: instance.GPUInstanceDataSource, Type: "InstanceData", Size: instance.GPUInstanceDataSize},
			AnnotationArgDrawConstants:   {Source: material.GPUDrawConstantsSource, Type: "DrawConstants", Size: (&material.GPUDrawConstants{}).Size()},
			AnnotationArgCascadeData:     {Source: shadow.GPUCascadeDataSource, Type: "CascadeData", Size: (&shadow.GPUCascadeData{}).Size()},
			AnnotationArgLightingUniform: {Source: light.GPULightingUniformSource, Type: "LightingUniform", Size: (&light.GPULightingUniform{}).Size()},
		},
		constants: make(map[string]string),
	}
	for _, opt := range options {
		opt(p)
	}
	return p
}

// block is one open //@oxy:if block.
type block struct {
	cond   bool
	parent bool
	inElse bool
	line   int
}

func (b block) active() bool {
	return b.parent && b.cond != b.inElse
}

func (p *preProcessor) Process(source string, defines map[string]bool) (string, error) {
	p.declarations = p.declarations[:0]

	lines := strings.Split(source, "\n")
	out := make([]string, 0, len(lines))
	var stack []block
	active := func() bool {
		return len(stack) == 0 || stack[len(stack)-1].active()
	}

	for i, line := range lines {
		lineNum := i + 1
		if !active() && !isControlLine(line) {
			continue
		}
		line, err := p.substitute(line, lineNum)
		if err != nil {
			return "", err
		}
		a, err := parseAnnotation(line, lineNum)
		if err != nil {
			return "", err
		}
		if a == nil {
			out = append(out, line)
			continue
		}

		// handle annotation based on its type and arguments
		switch a.Type {
		case annotationTypeIf:
			stack = append(stack, block{cond: defines[string(a.Args[0])], parent: active(), line: lineNum})
		case annotationTypeElse:
			if len(stack) == 0 || stack[len(stack)-1].inElse {
				return "", fmt.Errorf("line %d: @oxy else without matching if", lineNum)
			}
			stack[len(stack)-1].inElse = true
		case annotationTypeEndIf:
			if len(stack) == 0 {
				return "", fmt.Errorf("line %d: @oxy endif without matching if", lineNum)
			}
			stack = stack[:len(stack)-1]
		case annotationTypeInclude:
			entry, ok := p.structRegistry[a.Args[0]]
			if !ok {
				return "", fmt.Errorf("line %d: unknown @oxy:include argument %q", lineNum, a.Args[0])
			}
			out = append(out, entry.Source)
		case AnnotationTypeBindingGroup:
			space := addressSpaces[a.Args[0]]
			wgslType := space.wgslType
			if space.takesType() {
				elem, length, _ := splitArrayType(string(a.Args[2]))
				wgslType = p.structRegistry[AnnotationArg(elem)].Type
				switch {
				case length != "":
					wgslType = fmt.Sprintf("array<%s, %s>", wgslType, length)
				case strings.HasPrefix(string(a.Args[2]), "array<"):
					wgslType = fmt.Sprintf("array<%s>", wgslType)
				}
			}
			out = append(out, fmt.Sprintf("@group(%d) @binding(%d) %s %s: %s;", *a.Group, *a.Binding, space.decl, a.Args[1], wgslType))
			p.declarations = append(p.declarations, *a)
		default:
			return "", fmt.Errorf("line %d: unknown annotation type %q", lineNum, a.Type)
		}
	}
	if len(stack) > 0 {
		return "", fmt.Errorf("line %d: @oxy if is never closed", stack[len(stack)-1].line)
	}
	return strings.Join(out, "\n"), nil
}

// substitute replaces every ${NAME} in line with its constant.
func (p *preProcessor) substitute(line string, lineNum int) (string, error) {
	var missing string
	line = constantPattern.ReplaceAllStringFunc(line, func(m string) string {
		name := constantPattern.FindStringSubmatch(m)[1]
		v, ok := p.constants[name]
		if !ok && missing == "" {
			missing = name
		}
		return v
	})
	if missing != "" {
		return "", fmt.Errorf("line %d: unknown constant %q", lineNum, missing)
	}
	return line, nil
}

// isControlLine reports whether line is an if, else or endif annotation. Control lines are
// tracked even inside dropped blocks so nesting stays balanced.
func isControlLine(line string) bool {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "//") {
		return false
	}
	_, after, ok := strings.Cut(trimmed, annotationPrefix)
	if !ok {
		return false
	}
	fields := strings.Fields(after)
	if len(fields) == 0 {
		return false
	}
	switch AnnotationType(fields[0]) {
	case annotationTypeIf, annotationTypeElse, annotationTypeEndIf:
		return true
	}
	return false
}

func (p *preProcessor) Declarations() []Annotation {
	return p.declarations
}

func (p *preProcessor) Layouts() ([]gpu.BindGroupLayout, error) {
	byGroup := map[int]map[uint32]gpu.LayoutEntry{}
	for _, d := range p.declarations {
		entries := byGroup[*d.Group]
		if entries == nil {
			entries = map[uint32]gpu.LayoutEntry{}
			byGroup[*d.Group] = entries
		}
		binding := uint32(*d.Binding)
		if _, dup := entries[binding]; dup {
			return nil, fmt.Errorf("line %d: group %d binding %d declared twice", d.Line, *d.Group, binding)
		}
		space := addressSpaces[d.Args[0]]
		entries[binding] = gpu.LayoutEntry{
			Binding:        binding,
			Kind:           space.kind,
			Visibility:     space.visibility(),
			MinBindingSize: p.minBindingSize(d),
		}
	}
	if len(byGroup) == 0 {
		return nil, nil
	}

	layouts := make([]gpu.BindGroupLayout, slices.Max(slices.Collect(maps.Keys(byGroup)))+1)
	for g := range layouts {
		layouts[g].Label = fmt.Sprintf("group%d", g)
		for _, b := range slices.Sorted(maps.Keys(byGroup[g])) {
			layouts[g].Entries = append(layouts[g].Entries, byGroup[g][b])
		}
	}
	return layouts, nil
}

// minBindingSize returns the byte size a buffer declaration needs: one struct, a fixed array of
// them, or a single element of a runtime-sized array. Non-buffer declarations need none.
func (p *preProcessor) minBindingSize(d Annotation) uint64 {
	if len(d.Args) < 3 {
		return 0
	}
	elem, length, _ := splitArrayType(string(d.Args[2]))
	size := uint64(p.structRegistry[AnnotationArg(elem)].Size)
	if n, err := strconv.Atoi(length); err == nil {
		size *= uint64(n)
	}
	return size
}
