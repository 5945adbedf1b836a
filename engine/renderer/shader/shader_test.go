package shader

import (
	"strings"
	"testing"

	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/material"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGBufferVariantsSampleOnlyBoundChannels(t *testing.T) {
	sampled := map[material.Capability]string{
		material.HasColorTexture:  "textureSample(base_color_texture",
		material.HasNormalTexture: "textureSample(normal_texture",
		material.HasORMTexture:    "textureSample(orm_texture",
	}
	constant := map[material.Capability]string{
		material.HasColorTexture:  "draw.base_color",
		material.HasNormalTexture: "draw.normal.xyz",
		material.HasORMTexture:    "draw.orm.xyz",
	}

	for _, c := range material.AllCapabilities() {
		s, err := NewGBufferShader(c)
		require.NoError(t, err, c.String())
		assert.Equal(t, c.PipelineKey(KeyGBuffer), s.Key())

		for flag, call := range sampled {
			assert.Equal(t, c.Has(flag), strings.Contains(s.Source(), call), "%s: %s", c, call)
			assert.Equal(t, !c.Has(flag), strings.Contains(s.Source(), constant[flag]), "%s: %s", c, constant[flag])
		}
		assert.Equal(t, c.HasTextures(), strings.Contains(s.Source(), "var material_sampler: sampler;"), c.String())
	}
}

func TestGBufferMaterialGroupMatchesCapability(t *testing.T) {
	for _, c := range material.AllCapabilities() {
		s, err := NewGBufferShader(c)
		require.NoError(t, err)
		assert.Equal(t, c.LayoutEntries(), s.Layout(2).Entries, c.String())
	}
}

func TestGBufferFrameGroups(t *testing.T) {
	s, err := NewGBufferShader(0)
	require.NoError(t, err)
	require.Len(t, s.Layouts(), 2)

	kinds := func(l gpu.BindGroupLayout) []gpu.BindingKind {
		var out []gpu.BindingKind
		for _, e := range l.Entries {
			out = append(out, e.Kind)
		}
		return out
	}
	assert.Equal(t, []gpu.BindingKind{gpu.BindingKindUniform, gpu.BindingKindStorageRead}, kinds(s.Layout(0)))
	assert.Equal(t, []gpu.BindingKind{gpu.BindingKindUniformDynamic}, kinds(s.Layout(1)))
	assert.Equal(t, DefaultFragmentEntryPoint, s.FragmentEntryPoint())
}

func TestShadowShaderIsDepthOnly(t *testing.T) {
	s, err := NewShadowShader(4)
	require.NoError(t, err)
	assert.Equal(t, "", s.FragmentEntryPoint())
	assert.Equal(t, DefaultVertexEntryPoint, s.VertexEntryPoint())
	assert.NotContains(t, s.Source(), "@fragment")
	assert.NotContains(t, s.Source(), "texture")
	assert.Contains(t, s.Source(), "var<uniform> cascades: array<CascadeData, 4>;")
	assert.Equal(t, uint64(4*96), s.Layout(0).Entries[0].MinBindingSize)
}

func TestLightingShaderBindings(t *testing.T) {
	s, err := NewLightingShader(3, 8)
	require.NoError(t, err)
	assert.Contains(t, s.Source(), "const MAX_PCF_RADIUS: i32 = 8;")
	assert.Contains(t, s.Source(), "array<CascadeData, 3>")
	assert.Contains(t, s.Source(), "textureSampleCompareLevel(shadow_maps, shadow_sampler")

	group1 := s.Layout(1).Entries
	require.Len(t, group1, 5)
	assert.Equal(t, gpu.BindingKindDepthTexture, group1[2].Kind)
	assert.Equal(t, gpu.BindingKindDepthTextureArray, group1[3].Kind)
	assert.Equal(t, gpu.BindingKindSamplerComparison, group1[4].Kind)
}

func TestLayoutOutOfRange(t *testing.T) {
	s, err := NewShadowShader(3)
	require.NoError(t, err)
	assert.Empty(t, s.Layout(5).Entries)
	assert.Equal(t, "group5", s.Layout(5).Label)
}

func TestNewShaderWrapsPreProcessorErrors(t *testing.T) {
	_, err := NewShader("broken", "//@oxy:if A\n")
	assert.ErrorContains(t, err, "broken")

	_, err = NewShader("shadow", ShadowSource)
	assert.ErrorContains(t, err, ConstantCascadeCount)
}

func TestCompileSPIRV(t *testing.T) {
	var shaders []Shader
	for _, c := range material.AllCapabilities() {
		s, err := NewGBufferShader(c)
		require.NoError(t, err)
		shaders = append(shaders, s)
	}
	s, err := NewShadowShader(4)
	require.NoError(t, err)
	shaders = append(shaders, s)
	s, err = NewLightingShader(4, 8)
	require.NoError(t, err)
	shaders = append(shaders, s)

	for _, s := range shaders {
		t.Run(s.Key(), func(t *testing.T) {
			spirv, err := CompileSPIRV(s)
			if err != nil {
				// naga does not lower every WGSL construct yet
				t.Skipf("naga: %v", err)
			}
			assert.Zero(t, len(spirv)%4)
		})
	}
}
