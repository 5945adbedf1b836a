// annotations.go defines the annotation types, argument constants, and parser for the
// Oxy WGSL shader pre-processor. Annotations are single-line WGSL comments prefixed
// with @oxy: that drive struct injection, bind group declaration and variant selection.
// The parsed results are stored as Annotation values; group annotations are turned into
// the host-side bind group layouts so the layouts and the WGSL can never disagree.
package shader

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/gpu"
)

// annotationPrefix is the marker that identifies an Oxy annotation within a WGSL comment line.
// Every annotation must appear on a line beginning with "//" followed by this prefix.
const annotationPrefix = "@oxy:"

// AnnotationType identifies the kind of annotation parsed from a WGSL comment line.
type AnnotationType string

const (
	// annotationTypeInclude injects the WGSL source of a registered struct definition
	// into the shader at the annotation site.
	//
	// Syntax: //@oxy:include <struct_type>
	//
	// Example: //@oxy:include camera
	annotationTypeInclude AnnotationType = "include"

	// AnnotationTypeBindingGroup generates a WGSL @group/@binding variable declaration
	// and appends an Annotation to the PreProcessor's declarations list. Buffer address
	// spaces take a struct type; texture and sampler spaces take none.
	//
	// Syntax: //@oxy:group <group> <binding> <address_space> <var_name> [<type>]
	//
	// Examples:
	//   //@oxy:group 0 0 uniform camera camera
	//   //@oxy:group 1 2 depth_texture_array shadow_maps
	AnnotationTypeBindingGroup AnnotationType = "group"

	// annotationTypeIf starts a block that is kept only when the named flag is set.
	//
	// Syntax: //@oxy:if <FLAG>
	annotationTypeIf AnnotationType = "if"

	// annotationTypeElse flips the innermost open if block.
	annotationTypeElse AnnotationType = "else"

	// annotationTypeEndIf closes the innermost open if block.
	annotationTypeEndIf AnnotationType = "endif"
)

// Annotation represents a single parsed @oxy: annotation from a WGSL shader source line.
type Annotation struct {
	// Type identifies which annotation was parsed.
	Type AnnotationType

	// Args holds the annotation's arguments. The contents depend on Type:
	//   - include: [0] = struct type key (e.g. "camera")
	//   - group:   [0] = address space, [1] = var name, [2] = WGSL type key (buffer spaces only)
	//   - if:      [0] = flag name
	Args []AnnotationArg

	// Line is the 1-based line number in the original WGSL source where this annotation
	// was found. Used for error reporting.
	Line int

	// Group is the @group index for group annotations. Nil otherwise.
	Group *int

	// Binding is the @binding index for group annotations. Nil otherwise.
	Binding *int
}

// AnnotationArg is a typed string constant used as an argument in annotations.
type AnnotationArg string

// ── Struct type arguments ──────────────────────────────────────────────────────
// These identify registered WGSL struct types. Each maps to a Go GPU type with an
// embedded .wgsl asset file.

const (
	// AnnotationArgCamera identifies the CameraUniform struct.
	// Source: engine/camera/assets/camera_uniform.wgsl
	AnnotationArgCamera AnnotationArg = "camera"

	// annotationArgVertex identifies the VertexInput struct.
	// Source: engine/model/assets/vertex.wgsl
	annotationArgVertex AnnotationArg = "vertex"

	// AnnotationArgInstanceData identifies the InstanceData struct (model + normal matrix).
	// Source: engine/instance/assets/instance_data.wgsl
	AnnotationArgInstanceData AnnotationArg = "instance_data"

	// AnnotationArgDrawConstants identifies the per-draw DrawConstants struct.
	// Source: engine/renderer/material/assets/draw_constants.wgsl
	AnnotationArgDrawConstants AnnotationArg = "draw_constants"

	// AnnotationArgCascadeData identifies the CascadeData struct.
	// Source: engine/shadow/assets/cascade_data.wgsl
	AnnotationArgCascadeData AnnotationArg = "cascade_data"

	// AnnotationArgLightingUniform identifies the LightingUniform struct.
	// Source: engine/light/assets/lighting_uniform.wgsl
	AnnotationArgLightingUniform AnnotationArg = "lighting_uniform"
)

// ── Address space arguments ────────────────────────────────────────────────────

const (
	annotationArgUniform           AnnotationArg = "uniform"
	annotationArgUniformDynamic    AnnotationArg = "uniform_dynamic"
	annotationArgStorageRead       AnnotationArg = "storage_read"
	annotationArgTexture           AnnotationArg = "texture"
	annotationArgDepthTexture      AnnotationArg = "depth_texture"
	annotationArgDepthTextureArray AnnotationArg = "depth_texture_array"
	annotationArgSampler           AnnotationArg = "sampler"
	annotationArgSamplerComparison AnnotationArg = "sampler_comparison"
)

// validStructTypes lists all AnnotationArg values that are accepted as struct type
// arguments in @oxy:include and @oxy:group annotations. Each entry must have a
// corresponding registryEntry in the PreProcessor's structRegistry.
var validStructTypes = []AnnotationArg{
	AnnotationArgCamera,
	annotationArgVertex,
	AnnotationArgInstanceData,
	AnnotationArgDrawConstants,
	AnnotationArgCascadeData,
	AnnotationArgLightingUniform,
}

// addressSpace describes how one @oxy:group address space is declared in WGSL and bound on the host.
type addressSpace struct {
	// decl is the WGSL text between the attributes and the variable name.
	decl string
	// wgslType is the fixed WGSL type for spaces that do not take a struct argument.
	wgslType string
	kind     gpu.BindingKind
}

// takesType reports whether the address space needs a struct type argument.
func (a addressSpace) takesType() bool {
	return a.wgslType == ""
}

// visibility returns the stages that see a binding. Buffers are shared by both stages; textures
// and samplers are only sampled by fragment shaders.
func (a addressSpace) visibility() gpu.ShaderStage {
	if a.kind.IsBuffer() {
		return gpu.ShaderStageVertex | gpu.ShaderStageFragment
	}
	return gpu.ShaderStageFragment
}

// addressSpaces maps every valid address space argument to its declaration.
var addressSpaces = map[AnnotationArg]addressSpace{
	annotationArgUniform:           {decl: "var<uniform>", kind: gpu.BindingKindUniform},
	annotationArgUniformDynamic:    {decl: "var<uniform>", kind: gpu.BindingKindUniformDynamic},
	annotationArgStorageRead:       {decl: "var<storage, read>", kind: gpu.BindingKindStorageRead},
	annotationArgTexture:           {decl: "var", wgslType: "texture_2d<f32>", kind: gpu.BindingKindTexture},
	annotationArgDepthTexture:      {decl: "var", wgslType: "texture_depth_2d", kind: gpu.BindingKindDepthTexture},
	annotationArgDepthTextureArray: {decl: "var", wgslType: "texture_depth_2d_array", kind: gpu.BindingKindDepthTextureArray},
	annotationArgSampler:           {decl: "var", wgslType: "sampler", kind: gpu.BindingKindSampler},
	annotationArgSamplerComparison: {decl: "var", wgslType: "sampler_comparison", kind: gpu.BindingKindSamplerComparison},
}

// parseAnnotation attempts to parse a single line of WGSL source as an @oxy: annotation.
// Returns nil with no error for lines that do not contain the annotation prefix. Returns
// a populated Annotation for valid annotations, or an error describing the problem for
// malformed annotations with correct prefix but invalid syntax or unknown arguments.
//
// Parameters:
//   - line: the raw WGSL source line to parse
//   - lineNum: the 1-based line number for error reporting
//
// Returns:
//   - *Annotation: the parsed annotation, or nil if the line is not an annotation
//   - error: a descriptive error if the annotation is malformed
func parseAnnotation(line string, lineNum int) (*Annotation, error) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "//") {
		return nil, nil
	}
	_, after, ok := strings.Cut(trimmed, annotationPrefix)
	if !ok {
		return nil, nil
	}

	args := strings.Fields(after)
	if len(args) == 0 {
		return nil, fmt.Errorf("line %d: empty @oxy annotation", lineNum)
	}

	switch AnnotationType(args[0]) {
	case annotationTypeInclude:
		if len(args) != 2 {
			return nil, fmt.Errorf("line %d: @oxy include annotation requires exactly one argument", lineNum)
		}
		if !slices.Contains(validStructTypes, AnnotationArg(args[1])) {
			return nil, fmt.Errorf("line %d: unknown struct type %q in @oxy include annotation", lineNum, args[1])
		}
		return &Annotation{Type: annotationTypeInclude, Args: []AnnotationArg{AnnotationArg(args[1])}, Line: lineNum}, nil
	case AnnotationTypeBindingGroup:
		if len(args) < 5 || len(args) > 6 {
			return nil, fmt.Errorf("line %d: @oxy group annotation requires group, binding, address space, name and an optional type", lineNum)
		}
		groupInt, err := strconv.Atoi(args[1])
		if err != nil || groupInt < 0 {
			return nil, fmt.Errorf("line %d: invalid group number %q in @oxy group annotation", lineNum, args[1])
		}
		bindingInt, err := strconv.Atoi(args[2])
		if err != nil || bindingInt < 0 {
			return nil, fmt.Errorf("line %d: invalid binding number %q in @oxy group annotation", lineNum, args[2])
		}
		space, ok := addressSpaces[AnnotationArg(args[3])]
		if !ok {
			return nil, fmt.Errorf("line %d: unknown address space %q in @oxy group annotation", lineNum, args[3])
		}
		a := &Annotation{
			Type:    AnnotationTypeBindingGroup,
			Args:    []AnnotationArg{AnnotationArg(args[3]), AnnotationArg(args[4])},
			Line:    lineNum,
			Group:   &groupInt,
			Binding: &bindingInt,
		}
		if !space.takesType() {
			if len(args) == 6 {
				return nil, fmt.Errorf("line %d: address space %q does not take a type", lineNum, args[3])
			}
			return a, nil
		}
		if len(args) != 6 {
			return nil, fmt.Errorf("line %d: address space %q requires a struct type", lineNum, args[3])
		}
		typeArg := args[5]
		elem, _, err := splitArrayType(typeArg)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}
		if !slices.Contains(validStructTypes, AnnotationArg(elem)) {
			return nil, fmt.Errorf("line %d: unknown struct type %q in @oxy group annotation", lineNum, elem)
		}
		a.Args = append(a.Args, AnnotationArg(typeArg))
		return a, nil
	case annotationTypeIf:
		if len(args) != 2 {
			return nil, fmt.Errorf("line %d: @oxy if annotation requires exactly one flag", lineNum)
		}
		return &Annotation{Type: annotationTypeIf, Args: []AnnotationArg{AnnotationArg(args[1])}, Line: lineNum}, nil
	case annotationTypeElse, annotationTypeEndIf:
		if len(args) != 1 {
			return nil, fmt.Errorf("line %d: @oxy %s annotation takes no arguments", lineNum, args[0])
		}
		return &Annotation{Type: AnnotationType(args[0]), Line: lineNum}, nil
	default:
		return nil, fmt.Errorf("line %d: unknown @oxy annotation type %q", lineNum, args[0])
	}
}

// splitArrayType splits a group type argument into its element type and optional fixed length.
// "camera" yields ("camera", ""), "array<cascade_data>" yields ("cascade_data", "") and
// "array<cascade_data,4>" yields ("cascade_data", "4").
func splitArrayType(typeArg string) (elem, length string, err error) {
	inner, ok := strings.CutPrefix(typeArg, "array<")
	if !ok {
		return typeArg, "", nil
	}
	inner, ok = strings.CutSuffix(inner, ">")
	if !ok {
		return "", "", fmt.Errorf("unterminated array type %q", typeArg)
	}
	elem, length, _ = strings.Cut(inner, ",")
	if length != "" {
		if n, err := strconv.Atoi(length); err != nil || n <= 0 {
			return "", "", fmt.Errorf("invalid array length %q", length)
		}
	}
	return elem, length, nil
}
