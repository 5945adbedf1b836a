package bind_group_provider

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/gpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testLayout = gpu.BindGroupLayout{
	Label: "group0",
	Entries: []gpu.LayoutEntry{
		{Binding: 0, Kind: gpu.BindingKindUniform},
		{Binding: 1, Kind: gpu.BindingKindDepthTextureArray},
		{Binding: 2, Kind: gpu.BindingKindSamplerComparison},
	},
}

func TestEntriesFollowLayoutOrder(t *testing.T) {
	p := NewBindGroupProvider("test", testLayout, WithSampler(2, 9), WithTextureView(1, 8))
	p.SetBuffer(0, 7, 64)

	entries, err := p.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, gpu.BindGroupEntry{Binding: 0, Buffer: 7, Size: 64}, entries[0])
	assert.Equal(t, gpu.TextureView(8), entries[1].TextureView)
	assert.Equal(t, gpu.Sampler(9), entries[2].Sampler)
}

func TestEntriesReportMissingResource(t *testing.T) {
	p := NewBindGroupProvider("test", testLayout, WithBuffer(0, 7, 0), WithTextureView(1, 8))
	_, err := p.Entries()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "binding 2 has no sampler")
}

func TestReleaseReturnsOnlyOwnedHandles(t *testing.T) {
	p := NewBindGroupProvider("test", testLayout, WithTextureView(1, 8), WithSampler(2, 9))
	p.SetBuffer(0, 7, 0)
	p.Own(gpu.Handle(7))
	p.SetBindGroup(11)

	handles := p.Release()
	assert.ElementsMatch(t, []gpu.Handle{7, 11}, handles)
	assert.Zero(t, p.Buffer(0))
	assert.Zero(t, p.BindGroup())
	assert.Equal(t, gpu.TextureView(8), p.TextureView(1), "shared views survive")
	assert.Empty(t, p.Release())
}
