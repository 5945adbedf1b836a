package material

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/Carmen-Shannon/oxy-deferred/common"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/gpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCapabilityDerivedFromTextures(t *testing.T) {
	tex := common.SolidTexture(2, 2, [4]byte{255, 0, 0, 255})
	m := NewMaterial(WithTexture(ChannelBaseColor, tex), WithTexture(ChannelORM, tex))
	assert.Equal(t, HasColorTexture|HasORMTexture, m.Capability())
	assert.Nil(t, m.Texture(ChannelNormal))
	assert.NotNil(t, m.Texture(ChannelORM))

	assert.Equal(t, Capability(0), NewMaterial().Capability())
	assert.NotEqual(t, NewMaterial().ID(), NewMaterial().ID())
}

func TestResolveReturnsExactlyOneSource(t *testing.T) {
	tex := common.SolidTexture(1, 1, [4]byte{0, 0, 255, 255})
	for _, c := range AllCapabilities() {
		var opts []MaterialBuilderOption
		for _, ch := range Channels() {
			if c.Has(ch.Capability()) {
				opts = append(opts, WithTexture(ch, tex))
			}
		}
		m := NewMaterial(opts...)
		require.Equal(t, c, m.Capability())
		for _, ch := range Channels() {
			b := Resolve(m, ch)
			assert.True(t, (b.Texture == nil) != (b.Constant == nil), "%s/%s", c, ch)
			assert.Equal(t, c.Has(ch.Capability()), b.IsTexture(), "%s/%s", c, ch)
		}
	}
}

func TestResolveConstantIsConfiguredValue(t *testing.T) {
	m := NewMaterial(
		WithBaseColor([4]float32{0.2, 0.4, 0.6, 1}),
		WithNormal([3]float32{0, 1, 0}),
		WithORM(0.5, 0.25, 1),
	)
	assert.Equal(t, [4]float32{0.2, 0.4, 0.6, 1}, Resolve(m, ChannelBaseColor).Constant.Value)
	assert.Equal(t, [4]float32{0, 1, 0, 0}, Resolve(m, ChannelNormal).Constant.Value)
	assert.Equal(t, [4]float32{0.5, 0.25, 1, 0}, Resolve(m, ChannelORM).Constant.Value)

	d := NewMaterial()
	assert.Equal(t, DefaultBaseColor, Resolve(d, ChannelBaseColor).Constant.Value)
	assert.Equal(t, DefaultNormal, Resolve(d, ChannelNormal).Constant.Value)
	assert.Equal(t, DefaultORM, Resolve(d, ChannelORM).Constant.Value)
}

func TestResolveTextureCarriesViewAndBinding(t *testing.T) {
	m := NewMaterial(WithTexture(ChannelNormal, common.SolidTexture(1, 1, [4]byte{128, 128, 255, 255})))
	b := Resolve(m, ChannelNormal)
	require.True(t, b.IsTexture())
	assert.Equal(t, gpu.TextureView(0), b.Texture.Texture)
	assert.Equal(t, NormalTextureBinding, b.Texture.Binding)

	m.SetTextureView(ChannelNormal, 42)
	assert.Equal(t, gpu.TextureView(42), Resolve(m, ChannelNormal).Texture.Texture)
}

func TestCapabilityKeysAndDefines(t *testing.T) {
	keys := map[string]bool{}
	for _, c := range AllCapabilities() {
		keys[c.PipelineKey("gbuffer")] = true
	}
	assert.Len(t, keys, 8)
	assert.Equal(t, "gbuffer_const", Capability(0).PipelineKey("gbuffer"))
	assert.Equal(t, "gbuffer_color_orm", (HasColorTexture | HasORMTexture).PipelineKey("gbuffer"))

	defs := HasNormalTexture.Defines()
	assert.Equal(t, map[string]bool{
		DefineColorTexture:  false,
		DefineNormalTexture: true,
		DefineORMTexture:    false,
		DefineTextures:      true,
	}, defs)
}

func TestLayoutEntries(t *testing.T) {
	assert.Nil(t, Capability(0).LayoutEntries())
	entries := (HasColorTexture | HasORMTexture).LayoutEntries()
	require.Len(t, entries, 3)
	assert.Equal(t, gpu.BindingKindSampler, entries[0].Kind)
	assert.Equal(t, ColorTextureBinding, entries[1].Binding)
	assert.Equal(t, ORMTextureBinding, entries[2].Binding)
}

func TestDrawConstantsLayout(t *testing.T) {
	m := NewMaterial(
		WithBaseColor([4]float32{0.25, 0.5, 0.75, 1}),
		WithTexture(ChannelNormal, common.SolidTexture(1, 1, [4]byte{128, 128, 255, 255})),
	)
	dc := NewGPUDrawConstants(m, 7)
	dc.CascadeIndex = 2
	assert.Equal(t, 64, dc.Size())
	assert.Zero(t, dc.Normal, "texture-backed channel carries no constant")

	buf := dc.Marshal()
	require.Len(t, buf, 64)
	assert.Equal(t, uint32(7), binary.LittleEndian.Uint32(buf[0:]))
	assert.Equal(t, uint32(2), binary.LittleEndian.Uint32(buf[4:]))
	f := func(off int) float32 { return math.Float32frombits(binary.LittleEndian.Uint32(buf[off:])) }
	assert.Equal(t, float32(0.75), f(24))
	assert.Equal(t, float32(1), f(48))
	assert.Equal(t, float32(1), f(52))
	assert.Equal(t, float32(0), f(56))
}
