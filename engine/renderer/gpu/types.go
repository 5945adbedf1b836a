// Package gpu defines the backend-neutral resource handles, enums and descriptors exchanged between
// the render passes and a renderer backend. Handles are opaque; only the backend that issued a handle
// can resolve it to a GPU object.
package gpu

// Handle is an opaque identifier issued by a backend. The zero handle is never valid.
type Handle uint32

type (
	// Buffer identifies a GPU buffer.
	Buffer Handle
	// Texture identifies a GPU texture.
	Texture Handle
	// TextureView identifies a view onto a texture (whole texture or a single array layer).
	TextureView Handle
	// Sampler identifies a sampler or comparison sampler.
	Sampler Handle
	// BindGroup identifies a bind group created against a layout.
	BindGroup Handle
	// Pipeline identifies a compiled render pipeline.
	Pipeline Handle
)

// TextureFormat enumerates the texel formats used by the deferred pipeline.
type TextureFormat int

const (
	TextureFormatUndefined TextureFormat = iota
	TextureFormatRGBA8Unorm
	TextureFormatRGBA8UnormSrgb
	TextureFormatBGRA8Unorm
	TextureFormatBGRA8UnormSrgb
	TextureFormatRGBA16Float
	TextureFormatDepth32Float
)

// BytesPerTexel returns the size of one texel, or 0 for Undefined.
func (f TextureFormat) BytesPerTexel() uint32 {
	switch f {
	case TextureFormatRGBA8Unorm, TextureFormatRGBA8UnormSrgb, TextureFormatBGRA8Unorm, TextureFormatBGRA8UnormSrgb, TextureFormatDepth32Float:
		return 4
	case TextureFormatRGBA16Float:
		return 8
	default:
		return 0
	}
}

// IsDepth reports whether f is a depth format.
func (f TextureFormat) IsDepth() bool {
	return f == TextureFormatDepth32Float
}

// TextureUsage is a bitmask of the ways a texture may be used.
type TextureUsage uint32

const (
	TextureUsageCopyDst TextureUsage = 1 << iota
	TextureUsageTextureBinding
	TextureUsageRenderAttachment
)

// BufferUsage is a bitmask of the ways a buffer may be used.
type BufferUsage uint32

const (
	BufferUsageCopyDst BufferUsage = 1 << iota
	BufferUsageVertex
	BufferUsageIndex
	BufferUsageUniform
	BufferUsageStorage
)

// AddressMode controls sampling outside [0, 1].
type AddressMode int

const (
	AddressModeUndefined AddressMode = iota
	AddressModeClampToEdge
	AddressModeRepeat
	AddressModeMirrorRepeat
)

// FilterMode controls texel filtering.
type FilterMode int

const (
	FilterModeUndefined FilterMode = iota
	FilterModeNearest
	FilterModeLinear
)

// CompareFunction is used by depth tests and comparison samplers.
type CompareFunction int

const (
	CompareFunctionUndefined CompareFunction = iota
	CompareFunctionLess
	CompareFunctionLessEqual
	CompareFunctionAlways
)

// CullMode selects which faces are discarded during rasterization.
type CullMode int

const (
	CullModeNone CullMode = iota
	CullModeFront
	CullModeBack
)

// LoadOp controls how an attachment is initialised at the start of a pass.
type LoadOp int

const (
	LoadOpClear LoadOp = iota
	LoadOpLoad
)

// ShaderStage is a bitmask of the stages that can see a binding.
type ShaderStage uint32

const (
	ShaderStageVertex ShaderStage = 1 << iota
	ShaderStageFragment
)

// BindingKind is the resource type of a bind group layout entry.
type BindingKind int

const (
	BindingKindUniform BindingKind = iota
	// BindingKindUniformDynamic is a uniform buffer bound with a per-draw dynamic offset.
	BindingKindUniformDynamic
	BindingKindStorageRead
	// BindingKindTexture is a filterable float texture_2d.
	BindingKindTexture
	// BindingKindDepthTexture is a texture_depth_2d.
	BindingKindDepthTexture
	// BindingKindDepthTextureArray is a texture_depth_2d_array.
	BindingKindDepthTextureArray
	BindingKindSampler
	BindingKindSamplerComparison
)

// IsBuffer reports whether the kind binds a buffer.
func (k BindingKind) IsBuffer() bool {
	return k == BindingKindUniform || k == BindingKindUniformDynamic || k == BindingKindStorageRead
}

// LayoutEntry describes one binding of a bind group layout.
type LayoutEntry struct {
	Binding    uint32
	Kind       BindingKind
	Visibility ShaderStage
	// MinBindingSize is the size of the bound struct for buffer bindings (0 = unchecked).
	MinBindingSize uint64
}

// BindGroupLayout is an ordered list of layout entries for one @group index.
type BindGroupLayout struct {
	Label   string
	Entries []LayoutEntry
}

// BindGroupEntry binds one resource. Exactly one of Buffer, TextureView or Sampler is set.
type BindGroupEntry struct {
	Binding     uint32
	Buffer      Buffer
	Offset      uint64
	Size        uint64
	TextureView TextureView
	Sampler     Sampler
}

// BufferDesc describes a buffer to create.
type BufferDesc struct {
	Label string
	Size  uint64
	Usage BufferUsage
}

// TextureDesc describes a 2D texture, or a 2D array when Layers > 1.
type TextureDesc struct {
	Label  string
	Width  uint32
	Height uint32
	Layers uint32
	Format TextureFormat
	Usage  TextureUsage
}

// ColorAttachment is one color target of a render pass.
type ColorAttachment struct {
	View       TextureView
	Load       LoadOp
	ClearValue [4]float64
}

// DepthAttachment is the depth target of a render pass.
type DepthAttachment struct {
	View       TextureView
	Load       LoadOp
	ClearValue float32
	// Store keeps the depth contents after the pass. Shadow maps and the G-buffer depth must store.
	Store bool
}

// RenderPassDesc describes the attachments of a render pass.
type RenderPassDesc struct {
	Label string
	Color []ColorAttachment
	Depth *DepthAttachment
}

// Viewport is a rectangle of the render target in pixels.
type Viewport struct {
	X, Y, Width, Height float32
}

// VertexFormat is the type of a vertex attribute.
type VertexFormat int

const (
	VertexFormatFloat32x2 VertexFormat = iota
	VertexFormatFloat32x3
	VertexFormatFloat32x4
)

// VertexAttribute describes one attribute of an interleaved vertex.
type VertexAttribute struct {
	Format   VertexFormat
	Offset   uint64
	Location uint32
}

// VertexLayout describes one interleaved vertex buffer.
type VertexLayout struct {
	Stride     uint64
	Attributes []VertexAttribute
}

// Mesh references uploaded geometry. Indices are uint32.
type Mesh struct {
	VertexBuffer Buffer
	IndexBuffer  Buffer
	IndexCount   uint32
}
