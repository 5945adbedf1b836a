package loader

// The subset of the glTF 2.0 JSON schema the loader reads: static meshes, the node hierarchy of
// the default scene, and metallic-roughness materials. Skins, animations, morph targets and
// cameras are not decoded.
// Reference: https://registry.khronos.org/glTF/specs/2.0/glTF-2.0.html

type gltfDocument struct {
	Asset              gltfAsset        `json:"asset"`
	ExtensionsRequired []string         `json:"extensionsRequired,omitempty"`
	Scene              *int             `json:"scene,omitempty"`
	Scenes             []gltfScene      `json:"scenes,omitempty"`
	Nodes              []gltfNode       `json:"nodes,omitempty"`
	Meshes             []gltfMesh       `json:"meshes,omitempty"`
	Accessors          []gltfAccessor   `json:"accessors,omitempty"`
	BufferViews        []gltfBufferView `json:"bufferViews,omitempty"`
	Buffers            []gltfBuffer     `json:"buffers,omitempty"`
	Materials          []gltfMaterial   `json:"materials,omitempty"`
	Textures           []gltfTexture    `json:"textures,omitempty"`
	Images             []gltfImage      `json:"images,omitempty"`
	Samplers           []gltfSampler    `json:"samplers,omitempty"`
}

type gltfAsset struct {
	Version string `json:"version"`
}

type gltfScene struct {
	Name  string `json:"name,omitempty"`
	Nodes []int  `json:"nodes,omitempty"`
}

// gltfNode carries either Matrix or the TRS triple. Matrix is column-major, matching mgl32.Mat4.
type gltfNode struct {
	Name        string       `json:"name,omitempty"`
	Children    []int        `json:"children,omitempty"`
	Mesh        *int         `json:"mesh,omitempty"`
	Matrix      *[16]float32 `json:"matrix,omitempty"`
	Translation *[3]float32  `json:"translation,omitempty"`
	Rotation    *[4]float32  `json:"rotation,omitempty"` // x, y, z, w
	Scale       *[3]float32  `json:"scale,omitempty"`
}

type gltfMesh struct {
	Name       string          `json:"name,omitempty"`
	Primitives []gltfPrimitive `json:"primitives"`
}

// gltfPrimitive maps attribute semantics (POSITION, NORMAL, TANGENT, TEXCOORD_0) to accessors.
type gltfPrimitive struct {
	Attributes map[string]int `json:"attributes"`
	Indices    *int           `json:"indices,omitempty"`
	Material   *int           `json:"material,omitempty"`
	Mode       *int           `json:"mode,omitempty"`
}

// gltfPrimitiveModeTriangles is the only topology the G-buffer pipelines draw.
const gltfPrimitiveModeTriangles = 4

// gltfAccessor is a typed view into a buffer view. An accessor without a buffer view reads as
// zeros, optionally patched by its sparse block.
type gltfAccessor struct {
	BufferView    *int                `json:"bufferView,omitempty"`
	ByteOffset    int                 `json:"byteOffset,omitempty"`
	ComponentType int                 `json:"componentType"`
	Normalized    bool                `json:"normalized,omitempty"`
	Count         int                 `json:"count"`
	Type          string              `json:"type"`
	Sparse        *gltfAccessorSparse `json:"sparse,omitempty"`
}

type gltfAccessorSparse struct {
	Count   int `json:"count"`
	Indices struct {
		BufferView    int `json:"bufferView"`
		ByteOffset    int `json:"byteOffset,omitempty"`
		ComponentType int `json:"componentType"`
	} `json:"indices"`
	Values struct {
		BufferView int `json:"bufferView"`
		ByteOffset int `json:"byteOffset,omitempty"`
	} `json:"values"`
}

const (
	gltfComponentTypeByte          = 5120
	gltfComponentTypeUnsignedByte  = 5121
	gltfComponentTypeShort         = 5122
	gltfComponentTypeUnsignedShort = 5123
	gltfComponentTypeUnsignedInt   = 5125
	gltfComponentTypeFloat         = 5126
)

const (
	gltfAccessorTypeScalar = "SCALAR"
	gltfAccessorTypeVec2   = "VEC2"
	gltfAccessorTypeVec3   = "VEC3"
	gltfAccessorTypeVec4   = "VEC4"
)

// gltfComponentCounts is the number of components per element for each accessor type.
var gltfComponentCounts = map[string]int{
	gltfAccessorTypeScalar: 1,
	gltfAccessorTypeVec2:   2,
	gltfAccessorTypeVec3:   3,
	gltfAccessorTypeVec4:   4,
	"MAT2":                 4,
	"MAT3":                 9,
	"MAT4":                 16,
}

// gltfComponentSizes is the byte size of each component type.
var gltfComponentSizes = map[int]int{
	gltfComponentTypeByte:          1,
	gltfComponentTypeUnsignedByte:  1,
	gltfComponentTypeShort:         2,
	gltfComponentTypeUnsignedShort: 2,
	gltfComponentTypeUnsignedInt:   4,
	gltfComponentTypeFloat:         4,
}

type gltfBufferView struct {
	Buffer     int  `json:"buffer"`
	ByteOffset int  `json:"byteOffset,omitempty"`
	ByteLength int  `json:"byteLength"`
	ByteStride *int `json:"byteStride,omitempty"`
}

// gltfBuffer is filled in by the parser: Data holds the resolved bytes of URI or the GLB BIN chunk.
type gltfBuffer struct {
	URI        string `json:"uri,omitempty"`
	ByteLength int    `json:"byteLength"`
	Data       []byte `json:"-"`
}

type gltfMaterial struct {
	Name                 string                    `json:"name,omitempty"`
	PbrMetallicRoughness *gltfPbrMetallicRoughness `json:"pbrMetallicRoughness,omitempty"`
	NormalTexture        *gltfNormalTextureInfo    `json:"normalTexture,omitempty"`
	OcclusionTexture     *gltfOcclusionTextureInfo `json:"occlusionTexture,omitempty"`
}

// gltfPbrMetallicRoughness factors default to white, metallic 1 and roughness 1 when absent.
// The metallic-roughness texture stores roughness in green and metallic in blue.
type gltfPbrMetallicRoughness struct {
	BaseColorFactor          *[4]float32      `json:"baseColorFactor,omitempty"`
	BaseColorTexture         *gltfTextureInfo `json:"baseColorTexture,omitempty"`
	MetallicFactor           *float32         `json:"metallicFactor,omitempty"`
	RoughnessFactor          *float32         `json:"roughnessFactor,omitempty"`
	MetallicRoughnessTexture *gltfTextureInfo `json:"metallicRoughnessTexture,omitempty"`
}

type gltfTextureInfo struct {
	Index    int `json:"index"`
	TexCoord int `json:"texCoord,omitempty"`
}

type gltfNormalTextureInfo struct {
	gltfTextureInfo
	Scale *float32 `json:"scale,omitempty"`
}

// gltfOcclusionTextureInfo reads occlusion from the red channel.
type gltfOcclusionTextureInfo struct {
	gltfTextureInfo
	Strength *float32 `json:"strength,omitempty"`
}

type gltfTexture struct {
	Sampler *int `json:"sampler,omitempty"`
	Source  *int `json:"source,omitempty"`
}

// gltfImage is sourced from exactly one of URI or BufferView.
type gltfImage struct {
	Name       string `json:"name,omitempty"`
	URI        string `json:"uri,omitempty"`
	MimeType   string `json:"mimeType,omitempty"`
	BufferView *int   `json:"bufferView,omitempty"`
}

type gltfSampler struct {
	MagFilter *int `json:"magFilter,omitempty"`
	MinFilter *int `json:"minFilter,omitempty"`
	WrapS     *int `json:"wrapS,omitempty"`
	WrapT     *int `json:"wrapT,omitempty"`
}

const (
	gltfFilterNearest              = 9728
	gltfFilterLinear               = 9729
	gltfFilterNearestMipmapNearest = 9984
	gltfFilterLinearMipmapNearest  = 9985
	gltfFilterNearestMipmapLinear  = 9986
	gltfFilterLinearMipmapLinear   = 9987
)

const (
	gltfWrapClampToEdge    = 33071
	gltfWrapMirroredRepeat = 33648
	gltfWrapRepeat         = 10497
)

// GLB container layout: a 12-byte header followed by 8-byte-headed chunks, JSON first.
type gltfGLBHeader struct {
	Magic   uint32
	Version uint32
	Length  uint32
}

type gltfGLBChunkHeader struct {
	ChunkLength uint32
	ChunkType   uint32
}

const (
	gltfGLBMagic     = 0x46546C67 // "glTF"
	gltfGLBVersion   = 2
	gltfGLBChunkJSON = 0x4E4F534A // "JSON"
	gltfGLBChunkBIN  = 0x004E4942 // "BIN\0"
)
