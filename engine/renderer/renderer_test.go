package renderer_test

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-deferred/common"
	"github.com/Carmen-Shannon/oxy-deferred/config"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/renderertest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePresentMode(t *testing.T) {
	for in, want := range map[string]renderer.PresentMode{
		"":         renderer.PresentModeVSync,
		"vsync":    renderer.PresentModeVSync,
		"Uncapped": renderer.PresentModeUncapped,
	} {
		got, err := renderer.ParsePresentMode(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := renderer.ParsePresentMode("mailbox")
	assert.Error(t, err)
}

func TestRegisterPipelinesSkipsKnownKeys(t *testing.T) {
	backend := renderertest.New()
	r := renderer.NewRendererWithBackend(backend, renderer.WithPresentMode(renderer.PresentModeUncapped))
	assert.Equal(t, renderer.PresentModeUncapped, backend.PresentMode())

	p, err := pipeline.NewLightingPipeline(config.Default(), backend.SurfaceFormat())
	require.NoError(t, err)
	require.NoError(t, r.RegisterPipelines(p))
	first := p.Handle()
	require.NotZero(t, first)
	assert.Same(t, p, backend.Pipeline(first))

	again, err := pipeline.NewLightingPipeline(config.Default(), backend.SurfaceFormat())
	require.NoError(t, err)
	require.NoError(t, r.RegisterPipelines(again))
	assert.Zero(t, again.Handle(), "a duplicate key is not compiled")
	assert.Same(t, p, r.Pipeline(p.PipelineKey()))

	r.ReleasePipelines()
	assert.Empty(t, r.Pipelines())
	assert.Zero(t, p.Handle())
	assert.Contains(t, backend.Released(), gpu.Handle(first))
}

func TestInitBindGroupCreatesMissingBuffers(t *testing.T) {
	backend := renderertest.New()
	r := renderer.NewRendererWithBackend(backend)

	layout := gpu.BindGroupLayout{Entries: []gpu.LayoutEntry{
		{Binding: 0, Kind: gpu.BindingKindUniform, MinBindingSize: 80},
		{Binding: 1, Kind: gpu.BindingKindUniformDynamic, MinBindingSize: 32},
		{Binding: 2, Kind: gpu.BindingKindStorageRead, MinBindingSize: 112},
	}}
	p := bind_group_provider.NewBindGroupProvider("draw", layout)
	require.NoError(t, r.InitBindGroup(p, map[uint32]uint64{1: 4 * 256, 2: 10 * 112}))

	uniform := backend.Buffer(p.Buffer(0))
	require.NotNil(t, uniform)
	assert.Equal(t, uint64(80), uniform.Desc.Size)
	assert.NotZero(t, uniform.Desc.Usage&gpu.BufferUsageUniform)

	dynamic := backend.Buffer(p.Buffer(1))
	require.NotNil(t, dynamic)
	assert.Equal(t, uint64(1024), dynamic.Desc.Size)

	storage := backend.Buffer(p.Buffer(2))
	require.NotNil(t, storage)
	assert.Equal(t, common.AlignUp(uint64(1120), 16), storage.Desc.Size)
	assert.NotZero(t, storage.Desc.Usage&gpu.BufferUsageStorage)

	rec, ok := backend.BindGroup(p.BindGroup())
	require.True(t, ok)
	require.Len(t, rec.Entries, 3)
	assert.Equal(t, uint64(32), rec.Entries[1].Size, "a dynamic binding exposes one element")
	assert.Zero(t, rec.Entries[0].Size)

	before := backend.LiveObjects()
	r.ReleaseProvider(p)
	assert.Equal(t, before-4, backend.LiveObjects())
}

func TestInitTextureViewAndSampler(t *testing.T) {
	backend := renderertest.New()
	r := renderer.NewRendererWithBackend(backend)

	layout := gpu.BindGroupLayout{Entries: []gpu.LayoutEntry{
		{Binding: 0, Kind: gpu.BindingKindSampler},
		{Binding: 1, Kind: gpu.BindingKindTexture},
	}}
	p := bind_group_provider.NewBindGroupProvider("material", layout)
	view, err := r.InitTextureView(p, 1, common.SolidTexture(1, 1, [4]byte{255, 0, 0, 255}))
	require.NoError(t, err)
	require.NoError(t, r.InitSampler(p, 0, common.SamplerStagingData{}))
	require.NoError(t, r.InitBindGroup(p, nil))

	v, ok := backend.View(view)
	require.True(t, ok)
	tex := backend.Texture(v.Texture)
	require.NotNil(t, tex)
	assert.Equal(t, gpu.TextureFormatRGBA8Unorm, tex.Desc.Format)
	assert.Equal(t, []byte{255, 0, 0, 255}, tex.Pixels)
}

func TestWriteBuffersJoinsErrors(t *testing.T) {
	backend := renderertest.New()
	r := renderer.NewRendererWithBackend(backend)

	layout := gpu.BindGroupLayout{Entries: []gpu.LayoutEntry{
		{Binding: 0, Kind: gpu.BindingKindUniform, MinBindingSize: 16},
	}}
	p := bind_group_provider.NewBindGroupProvider("frame", layout)
	empty := bind_group_provider.NewBindGroupProvider("empty", layout)
	require.NoError(t, r.InitBindGroup(p, nil))

	err := r.WriteBuffers([]bind_group_provider.BufferWrite{
		{Provider: p, Binding: 0, Offset: 4, Data: []byte{1, 2, 3, 4}},
		{Provider: p, Binding: 0, Offset: 8, Data: make([]byte, 16)},
		{Provider: empty, Binding: 0, Data: []byte{1}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "overflows")
	assert.Contains(t, err.Error(), "binding 0 has no buffer")
	assert.Equal(t, []byte{1, 2, 3, 4}, backend.Buffer(p.Buffer(0)).Data[4:8])
}

func TestInitMeshBuffersUploadsGeometry(t *testing.T) {
	backend := renderertest.New()
	r := renderer.NewRendererWithBackend(backend)

	mesh, err := r.InitMeshBuffers(make([]byte, 96), []byte{0, 0, 0, 0, 1, 0, 0, 0}, 2)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), mesh.IndexCount)
	assert.Equal(t, uint64(96), backend.Buffer(mesh.VertexBuffer).Desc.Size)
	assert.Equal(t, byte(1), backend.Buffer(mesh.IndexBuffer).Data[4])
}

func TestDeviceLossFailsLaterCalls(t *testing.T) {
	backend := renderertest.New(renderertest.WithManualCompletion())
	r := renderer.NewRendererWithBackend(backend)

	enc, err := r.BeginEncoder("frame")
	require.NoError(t, err)
	sub, err := r.Submit(enc)
	require.NoError(t, err)
	select {
	case <-sub.Done():
		t.Fatal("submission completed before the device signalled it")
	default:
	}

	backend.LoseDevice()
	<-sub.Done()
	_, err = r.BeginEncoder("next")
	assert.ErrorIs(t, err, renderer.ErrDeviceLost)
	assert.ErrorIs(t, r.Resize(10, 10), renderer.ErrDeviceLost)
}
