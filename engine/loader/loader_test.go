package loader

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"math"
	"strings"
	"testing"

	"github.com/Carmen-Shannon/oxy-deferred/common"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/material"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

// docBuilder assembles a glTF document and its single binary buffer.
type docBuilder struct {
	doc gltfDocument
	bin []byte
}

func newDocBuilder() *docBuilder {
	return &docBuilder{doc: gltfDocument{Asset: gltfAsset{Version: "2.0"}}}
}

// view appends data to the buffer, 4-byte aligned, and returns its buffer view index.
func (b *docBuilder) view(data []byte) int {
	for len(b.bin)%4 != 0 {
		b.bin = append(b.bin, 0)
	}
	b.doc.BufferViews = append(b.doc.BufferViews, gltfBufferView{ByteOffset: len(b.bin), ByteLength: len(data)})
	b.bin = append(b.bin, data...)
	return len(b.doc.BufferViews) - 1
}

func (b *docBuilder) floats(accessorType string, values ...float32) int {
	var buf bytes.Buffer
	_ = binary.Write(&buf, binary.LittleEndian, values)
	bv := b.view(buf.Bytes())
	count := len(values) / gltfComponentCounts[accessorType]
	b.doc.Accessors = append(b.doc.Accessors, gltfAccessor{BufferView: ptr(bv), ComponentType: gltfComponentTypeFloat, Count: count, Type: accessorType})
	return len(b.doc.Accessors) - 1
}

func (b *docBuilder) indices(values ...uint16) int {
	var buf bytes.Buffer
	_ = binary.Write(&buf, binary.LittleEndian, values)
	bv := b.view(buf.Bytes())
	b.doc.Accessors = append(b.doc.Accessors, gltfAccessor{BufferView: ptr(bv), ComponentType: gltfComponentTypeUnsignedShort, Count: len(values), Type: gltfAccessorTypeScalar})
	return len(b.doc.Accessors) - 1
}

// triangle adds a mesh with one XY-plane triangle facing +Z and returns its mesh index.
func (b *docBuilder) triangle(mat *int, uvs bool) int {
	attrs := map[string]int{
		"POSITION": b.floats(gltfAccessorTypeVec3, 0, 0, 0, 1, 0, 0, 0, 1, 0),
	}
	if uvs {
		attrs["TEXCOORD_0"] = b.floats(gltfAccessorTypeVec2, 0, 0, 1, 0, 0, 1)
	}
	b.doc.Meshes = append(b.doc.Meshes, gltfMesh{
		Name:       "tri",
		Primitives: []gltfPrimitive{{Attributes: attrs, Indices: ptr(b.indices(0, 1, 2)), Material: mat}},
	})
	return len(b.doc.Meshes) - 1
}

// image embeds a PNG in the buffer and returns its texture index.
func (b *docBuilder) image(t *testing.T, img image.Image) int {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	bv := b.view(buf.Bytes())
	b.doc.Images = append(b.doc.Images, gltfImage{MimeType: "image/png", BufferView: ptr(bv)})
	b.doc.Textures = append(b.doc.Textures, gltfTexture{Source: ptr(len(b.doc.Images) - 1)})
	return len(b.doc.Textures) - 1
}

func (b *docBuilder) node(n gltfNode) {
	b.doc.Nodes = append(b.doc.Nodes, n)
	if len(b.doc.Scenes) == 0 {
		b.doc.Scenes = []gltfScene{{Name: "test_scene"}}
		b.doc.Scene = ptr(0)
	}
	b.doc.Scenes[0].Nodes = append(b.doc.Scenes[0].Nodes, len(b.doc.Nodes)-1)
}

// gltf encodes the document as JSON with the buffer inlined as a data URI.
func (b *docBuilder) gltf(t *testing.T) []byte {
	t.Helper()
	b.doc.Buffers = []gltfBuffer{{
		URI:        "data:application/octet-stream;base64," + base64.StdEncoding.EncodeToString(b.bin),
		ByteLength: len(b.bin),
	}}
	data, err := json.Marshal(b.doc)
	require.NoError(t, err)
	return data
}

// glb encodes the document as a binary container with the buffer in the BIN chunk.
func (b *docBuilder) glb(t *testing.T) []byte {
	t.Helper()
	for len(b.bin)%4 != 0 {
		b.bin = append(b.bin, 0)
	}
	b.doc.Buffers = []gltfBuffer{{ByteLength: len(b.bin)}}
	js, err := json.Marshal(b.doc)
	require.NoError(t, err)
	for len(js)%4 != 0 {
		js = append(js, ' ')
	}

	var out bytes.Buffer
	total := 12 + 8 + len(js) + 8 + len(b.bin)
	_ = binary.Write(&out, binary.LittleEndian, gltfGLBHeader{Magic: gltfGLBMagic, Version: gltfGLBVersion, Length: uint32(total)})
	_ = binary.Write(&out, binary.LittleEndian, gltfGLBChunkHeader{ChunkLength: uint32(len(js)), ChunkType: gltfGLBChunkJSON})
	out.Write(js)
	_ = binary.Write(&out, binary.LittleEndian, gltfGLBChunkHeader{ChunkLength: uint32(len(b.bin)), ChunkType: gltfGLBChunkBIN})
	out.Write(b.bin)
	return out.Bytes()
}

func solid(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func TestLoadReaderConstantMaterialAndNodeTransform(t *testing.T) {
	b := newDocBuilder()
	b.doc.Materials = []gltfMaterial{{
		Name: "red",
		PbrMetallicRoughness: &gltfPbrMetallicRoughness{
			BaseColorFactor: &[4]float32{1, 0, 0, 1},
			MetallicFactor:  ptr[float32](0),
			RoughnessFactor: ptr[float32](0.5),
		},
	}}
	mesh := b.triangle(ptr(0), false)
	b.node(gltfNode{Name: "lifted", Mesh: ptr(mesh), Translation: &[3]float32{0, 2, 0}})

	l := NewLoader(BackendTypeGLTF)
	models, err := l.LoadReader("tri", bytes.NewReader(b.gltf(t)), false)
	require.NoError(t, err)
	require.Len(t, models, 1)

	m := models[0]
	assert.Equal(t, "test_scene/lifted/tri", m.Name())
	assert.Equal(t, []uint32{0, 1, 2}, m.Indices())
	v := m.Vertices()
	require.Len(t, v, 3)
	assert.InDeltaSlice(t, []float32{1, 2, 0}, v[1].Position[:], 1e-6)
	for _, vert := range v {
		assert.InDeltaSlice(t, []float32{0, 0, 1}, vert.Normal[:], 1e-6, "generated normal")
	}

	mat := m.Material()
	assert.Equal(t, "red", mat.Name())
	assert.Zero(t, mat.Capability())
	assert.Equal(t, [4]float32{1, 0, 0, 1}, mat.Constant(material.ChannelBaseColor))
	assert.Equal(t, [4]float32{1, 0.5, 0, 0}, mat.Constant(material.ChannelORM))
}

func TestLoadReaderGLBTexturedMaterial(t *testing.T) {
	b := newDocBuilder()
	albedo := b.image(t, solid(4, 2, color.NRGBA{R: 200, G: 100, B: 50, A: 255}))
	mr := b.image(t, solid(4, 2, color.NRGBA{R: 0, G: 128, B: 255, A: 255}))
	b.doc.Samplers = []gltfSampler{{MagFilter: ptr(gltfFilterNearest), WrapS: ptr(gltfWrapClampToEdge), WrapT: ptr(gltfWrapMirroredRepeat)}}
	b.doc.Textures[albedo].Sampler = ptr(0)
	b.doc.Materials = []gltfMaterial{{
		Name: "textured",
		PbrMetallicRoughness: &gltfPbrMetallicRoughness{
			BaseColorTexture:         &gltfTextureInfo{Index: albedo},
			MetallicRoughnessTexture: &gltfTextureInfo{Index: mr},
			MetallicFactor:           ptr[float32](0.5),
		},
	}}
	mesh := b.triangle(ptr(0), true)
	b.node(gltfNode{Mesh: ptr(mesh)})

	l := NewLoader(BackendTypeGLTF)
	models, err := l.LoadReader("glb", bytes.NewReader(b.glb(t)), true)
	require.NoError(t, err)
	require.Len(t, models, 1)

	mat := models[0].Material()
	c := mat.Capability()
	assert.True(t, c.Has(material.ChannelBaseColor.Capability()))
	assert.True(t, c.Has(material.ChannelORM.Capability()))
	assert.False(t, c.Has(material.ChannelNormal.Capability()))

	albedoTex := mat.Texture(material.ChannelBaseColor)
	require.NotNil(t, albedoTex)
	assert.Equal(t, uint32(4), albedoTex.Width)
	assert.Equal(t, uint32(2), albedoTex.Height)
	assert.Equal(t, []byte{200, 100, 50, 255}, albedoTex.Pixels[:4])
	assert.Equal(t, gpu.TextureFormatRGBA8UnormSrgb, albedoTex.Format)

	orm := mat.Texture(material.ChannelORM)
	require.NotNil(t, orm)
	assert.Equal(t, gpu.TextureFormatRGBA8Unorm, orm.Format)
	// no occlusion map: unoccluded; roughness factor 1; metallic 255 * 0.5
	assert.Equal(t, []byte{255, 128, 128, 255}, orm.Pixels[:4])

	s := mat.Sampler()
	assert.Equal(t, gpu.FilterModeNearest, s.MagFilter)
	assert.Equal(t, gpu.AddressModeClampToEdge, s.AddressModeU)
	assert.Equal(t, gpu.AddressModeMirrorRepeat, s.AddressModeV)

	// UVs present, so tangents follow +U
	for _, v := range models[0].Vertices() {
		assert.InDeltaSlice(t, []float32{1, 0, 0, 1}, v.Tangent[:], 1e-6)
	}
}

func TestSharedMaterialIsBuiltOnce(t *testing.T) {
	b := newDocBuilder()
	b.doc.Materials = []gltfMaterial{{Name: "shared"}}
	mesh := b.triangle(ptr(0), false)
	b.node(gltfNode{Mesh: ptr(mesh)})
	b.node(gltfNode{Mesh: ptr(mesh), Translation: &[3]float32{5, 0, 0}})
	plain := b.triangle(nil, false)
	b.node(gltfNode{Mesh: ptr(plain)})

	models, err := NewLoader(BackendTypeGLTF).LoadReader("shared", bytes.NewReader(b.gltf(t)), false)
	require.NoError(t, err)
	require.Len(t, models, 3)
	assert.Same(t, models[0].Material(), models[1].Material())
	assert.NotSame(t, models[0].Material(), models[2].Material())
	assert.Equal(t, "test_scene/default", models[2].Material().Name())
}

func TestMirroredNodeFlipsWinding(t *testing.T) {
	b := newDocBuilder()
	mesh := b.triangle(nil, false)
	b.node(gltfNode{Mesh: ptr(mesh), Scale: &[3]float32{-1, 1, 1}})

	models, err := NewLoader(BackendTypeGLTF).LoadReader("mirror", bytes.NewReader(b.gltf(t)), false)
	require.NoError(t, err)
	require.Len(t, models, 1)
	assert.Equal(t, []uint32{0, 2, 1}, models[0].Indices())
	assert.InDeltaSlice(t, []float32{-1, 0, 0}, models[0].Vertices()[1].Position[:], 1e-6)
}

func TestDocumentWithoutScenesLoadsEveryMesh(t *testing.T) {
	b := newDocBuilder()
	b.triangle(nil, false)
	b.triangle(nil, false)

	models, err := NewLoader(BackendTypeGLTF).LoadReader("flat", bytes.NewReader(b.gltf(t)), false)
	require.NoError(t, err)
	assert.Len(t, models, 2)
}

func TestLoadReaderCachesByName(t *testing.T) {
	b := newDocBuilder()
	b.triangle(nil, false)

	l := NewLoader(BackendTypeGLTF)
	first, err := l.LoadReader("cached", bytes.NewReader(b.gltf(t)), false)
	require.NoError(t, err)

	again, err := l.LoadReader("cached", strings.NewReader("not gltf"), false)
	require.NoError(t, err)
	assert.Same(t, first[0], again[0])
	assert.Len(t, l.Models(), 1)
	assert.Nil(t, l.Get("missing"))
}

func TestLoadErrors(t *testing.T) {
	l := NewLoader(BackendTypeGLTF)

	_, err := l.Load("model.obj")
	assert.ErrorContains(t, err, "unsupported model format")

	_, err = l.LoadReader("version", strings.NewReader(`{"asset":{"version":"1.0"}}`), false)
	assert.ErrorIs(t, err, errInvalidGLTFVersion)

	_, err = l.LoadReader("magic", bytes.NewReader(make([]byte, 20)), true)
	assert.ErrorIs(t, err, errInvalidGLBMagic)

	b := newDocBuilder()
	b.triangle(nil, false)
	b.doc.Meshes[0].Primitives[0].Indices = ptr(b.indices(0, 1, 7))
	_, err = l.LoadReader("range", bytes.NewReader(b.gltf(t)), false)
	assert.ErrorContains(t, err, "out of range")

	b = newDocBuilder()
	b.triangle(ptr(3), false)
	_, err = l.LoadReader("material", bytes.NewReader(b.gltf(t)), false)
	assert.ErrorContains(t, err, "references material 3")
}

func TestAccessorsNormalizedAndSparse(t *testing.T) {
	b := newDocBuilder()
	uvView := b.view([]byte{0, 255, 255, 0, 51, 102})
	b.doc.Accessors = append(b.doc.Accessors, gltfAccessor{
		BufferView: ptr(uvView), ComponentType: gltfComponentTypeUnsignedByte, Normalized: true,
		Count: 3, Type: gltfAccessorTypeVec2,
	})
	uvs := len(b.doc.Accessors) - 1

	var values bytes.Buffer
	_ = binary.Write(&values, binary.LittleEndian, []float32{1, 2, 3})
	sp := &gltfAccessorSparse{Count: 1}
	sp.Indices.BufferView = b.view([]byte{2})
	sp.Indices.ComponentType = gltfComponentTypeUnsignedByte
	sp.Values.BufferView = b.view(values.Bytes())
	b.doc.Accessors = append(b.doc.Accessors, gltfAccessor{
		ComponentType: gltfComponentTypeFloat, Count: 3, Type: gltfAccessorTypeVec3, Sparse: sp,
	})
	positions := len(b.doc.Accessors) - 1

	p := newGLTFParser()
	require.NoError(t, p.ParseReader(bytes.NewReader(b.gltf(t)), false))

	uv, err := p.ReadVec2Accessor(uvs)
	require.NoError(t, err)
	assert.Equal(t, [][2]float32{{0, 1}, {1, 0}, {0.2, 0.4}}, uv)

	pos, err := p.ReadVec3Accessor(positions)
	require.NoError(t, err)
	assert.Equal(t, [][3]float32{{0, 0, 0}, {0, 0, 0}, {1, 2, 3}}, pos)

	_, err = p.ReadVec4Accessor(positions)
	assert.ErrorContains(t, err, "want VEC4")
	_, err = p.ReadIndicesAccessor(uvs)
	assert.Error(t, err)
}

func TestRequiredExtensionsAreRejected(t *testing.T) {
	b := newDocBuilder()
	b.triangle(nil, false)
	b.doc.ExtensionsRequired = []string{"KHR_draco_mesh_compression"}

	_, err := NewLoader(BackendTypeGLTF).LoadReader("draco", bytes.NewReader(b.glb(t)), true)
	assert.ErrorIs(t, err, errUnsupportedExtension)
	assert.ErrorContains(t, err, "KHR_draco_mesh_compression")
}

func TestDecodeTextureDownscales(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, solid(64, 32, color.NRGBA{R: 10, G: 20, B: 30, A: 255})))

	tex, err := decodeTexture(buf.Bytes(), gpu.TextureFormatRGBA8Unorm, 16)
	require.NoError(t, err)
	assert.Equal(t, uint32(16), tex.Width)
	assert.Equal(t, uint32(8), tex.Height)
	assert.Len(t, tex.Pixels, 16*8*4)
	assert.Equal(t, []byte{10, 20, 30, 255}, tex.Pixels[:4])

	full, err := decodeTexture(buf.Bytes(), gpu.TextureFormatRGBA8Unorm, 0)
	require.NoError(t, err)
	assert.Equal(t, uint32(64), full.Width)

	_, err = decodeTexture([]byte("nope"), gpu.TextureFormatRGBA8Unorm, 0)
	assert.Error(t, err)
}

func TestBuildORM(t *testing.T) {
	assert.Nil(t, buildORM(nil, nil, 1, 1))

	occ := &decodedTexture{staging: solidStaging(2, 2, [4]byte{64, 0, 0, 255})}
	orm := buildORM(occ, nil, 0.5, 0)
	require.NotNil(t, orm)
	assert.Equal(t, []byte{64, 128, 0, 255}, orm.staging.Pixels[:4])

	mr := &decodedTexture{staging: solidStaging(2, 2, [4]byte{0, 255, 255, 255})}
	small := &decodedTexture{staging: solidStaging(1, 1, [4]byte{0, 0, 0, 255})}
	orm = buildORM(small, mr, 1, 1)
	assert.Equal(t, []byte{255, 255, 255, 255}, orm.staging.Pixels[:4], "mismatched occlusion map is ignored")
}

func TestSRGBScaling(t *testing.T) {
	px := []byte{255, 255, 255, 255}
	scaleSRGB(px, [4]float32{1, 1, 1, 1})
	assert.Equal(t, []byte{255, 255, 255, 255}, px)

	scaleSRGB(px, [4]float32{0.5, 0, 1, 0.5})
	// linear 0.5 encodes to sRGB 188
	assert.Equal(t, []byte{188, 0, 255, 128}, px)

	for _, c := range []float32{0, 0.002, 0.2, 0.73, 1} {
		assert.InDelta(t, c, srgbToLinear(linearToSRGB(c)), 1e-5)
	}
	assert.Equal(t, byte(255), toByte(float32(math.Inf(1))))
}

func solidStaging(w, h uint32, px [4]byte) common.TextureStagingData {
	s := common.TextureStagingData{Width: w, Height: h, Format: gpu.TextureFormatRGBA8Unorm}
	for range w * h {
		s.Pixels = append(s.Pixels, px[:]...)
	}
	return s
}
