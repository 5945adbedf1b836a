package renderer

import (
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/gpu"
	"github.com/cogentcore/webgpu/wgpu"
)

// wgpuTextureFormats maps the backend-neutral formats to WebGPU formats.
var wgpuTextureFormats = map[gpu.TextureFormat]wgpu.TextureFormat{
	gpu.TextureFormatRGBA8Unorm:     wgpu.TextureFormatRGBA8Unorm,
	gpu.TextureFormatRGBA8UnormSrgb: wgpu.TextureFormatRGBA8UnormSrgb,
	gpu.TextureFormatBGRA8Unorm:     wgpu.TextureFormatBGRA8Unorm,
	gpu.TextureFormatBGRA8UnormSrgb: wgpu.TextureFormatBGRA8UnormSrgb,
	gpu.TextureFormatRGBA16Float:    wgpu.TextureFormatRGBA16Float,
	gpu.TextureFormatDepth32Float:   wgpu.TextureFormatDepth32Float,
}

func toWGPUTextureFormat(f gpu.TextureFormat) wgpu.TextureFormat {
	if wf, ok := wgpuTextureFormats[f]; ok {
		return wf
	}
	return wgpu.TextureFormatUndefined
}

func fromWGPUTextureFormat(wf wgpu.TextureFormat) (gpu.TextureFormat, bool) {
	for f, candidate := range wgpuTextureFormats {
		if candidate == wf {
			return f, true
		}
	}
	return gpu.TextureFormatUndefined, false
}

func toWGPUBufferUsage(u gpu.BufferUsage) wgpu.BufferUsage {
	var out wgpu.BufferUsage
	if u&gpu.BufferUsageCopyDst != 0 {
		out |= wgpu.BufferUsageCopyDst
	}
	if u&gpu.BufferUsageVertex != 0 {
		out |= wgpu.BufferUsageVertex
	}
	if u&gpu.BufferUsageIndex != 0 {
		out |= wgpu.BufferUsageIndex
	}
	if u&gpu.BufferUsageUniform != 0 {
		out |= wgpu.BufferUsageUniform
	}
	if u&gpu.BufferUsageStorage != 0 {
		out |= wgpu.BufferUsageStorage
	}
	return out
}

func toWGPUTextureUsage(u gpu.TextureUsage) wgpu.TextureUsage {
	var out wgpu.TextureUsage
	if u&gpu.TextureUsageCopyDst != 0 {
		out |= wgpu.TextureUsageCopyDst
	}
	if u&gpu.TextureUsageTextureBinding != 0 {
		out |= wgpu.TextureUsageTextureBinding
	}
	if u&gpu.TextureUsageRenderAttachment != 0 {
		out |= wgpu.TextureUsageRenderAttachment
	}
	return out
}

func toWGPUShaderStage(s gpu.ShaderStage) wgpu.ShaderStage {
	out := wgpu.ShaderStageNone
	if s&gpu.ShaderStageVertex != 0 {
		out |= wgpu.ShaderStageVertex
	}
	if s&gpu.ShaderStageFragment != 0 {
		out |= wgpu.ShaderStageFragment
	}
	return out
}

func toWGPUAddressMode(m gpu.AddressMode) wgpu.AddressMode {
	switch m {
	case gpu.AddressModeRepeat:
		return wgpu.AddressModeRepeat
	case gpu.AddressModeMirrorRepeat:
		return wgpu.AddressModeMirrorRepeat
	default:
		return wgpu.AddressModeClampToEdge
	}
}

func toWGPUFilterMode(m gpu.FilterMode) wgpu.FilterMode {
	if m == gpu.FilterModeNearest {
		return wgpu.FilterModeNearest
	}
	return wgpu.FilterModeLinear
}

func toWGPUCompareFunction(c gpu.CompareFunction) wgpu.CompareFunction {
	switch c {
	case gpu.CompareFunctionLess:
		return wgpu.CompareFunctionLess
	case gpu.CompareFunctionLessEqual:
		return wgpu.CompareFunctionLessEqual
	case gpu.CompareFunctionAlways:
		return wgpu.CompareFunctionAlways
	default:
		return wgpu.CompareFunctionUndefined
	}
}

func toWGPUCullMode(m gpu.CullMode) wgpu.CullMode {
	switch m {
	case gpu.CullModeFront:
		return wgpu.CullModeFront
	case gpu.CullModeBack:
		return wgpu.CullModeBack
	default:
		return wgpu.CullModeNone
	}
}

func toWGPULoadOp(op gpu.LoadOp) wgpu.LoadOp {
	if op == gpu.LoadOpLoad {
		return wgpu.LoadOpLoad
	}
	return wgpu.LoadOpClear
}

func toWGPUVertexLayout(l gpu.VertexLayout) wgpu.VertexBufferLayout {
	attrs := make([]wgpu.VertexAttribute, len(l.Attributes))
	for i, a := range l.Attributes {
		format := wgpu.VertexFormatFloat32x4
		switch a.Format {
		case gpu.VertexFormatFloat32x2:
			format = wgpu.VertexFormatFloat32x2
		case gpu.VertexFormatFloat32x3:
			format = wgpu.VertexFormatFloat32x3
		}
		attrs[i] = wgpu.VertexAttribute{
			Format:         format,
			Offset:         a.Offset,
			ShaderLocation: a.Location,
		}
	}
	return wgpu.VertexBufferLayout{
		ArrayStride: l.Stride,
		StepMode:    wgpu.VertexStepModeVertex,
		Attributes:  attrs,
	}
}

// toWGPULayoutEntry derives the WebGPU layout entry of a declared binding. Depth textures are
// declared with the depth sample type so they pair with comparison samplers.
func toWGPULayoutEntry(le gpu.LayoutEntry) wgpu.BindGroupLayoutEntry {
	entry := wgpu.BindGroupLayoutEntry{
		Binding:    le.Binding,
		Visibility: toWGPUShaderStage(le.Visibility),
	}
	switch le.Kind {
	case gpu.BindingKindUniform:
		entry.Buffer.Type = wgpu.BufferBindingTypeUniform
		entry.Buffer.MinBindingSize = le.MinBindingSize
	case gpu.BindingKindUniformDynamic:
		entry.Buffer.Type = wgpu.BufferBindingTypeUniform
		entry.Buffer.HasDynamicOffset = true
		entry.Buffer.MinBindingSize = le.MinBindingSize
	case gpu.BindingKindStorageRead:
		entry.Buffer.Type = wgpu.BufferBindingTypeReadOnlyStorage
		entry.Buffer.MinBindingSize = le.MinBindingSize
	case gpu.BindingKindTexture:
		entry.Texture.SampleType = wgpu.TextureSampleTypeFloat
		entry.Texture.ViewDimension = wgpu.TextureViewDimension2D
	case gpu.BindingKindDepthTexture:
		entry.Texture.SampleType = wgpu.TextureSampleTypeDepth
		entry.Texture.ViewDimension = wgpu.TextureViewDimension2D
	case gpu.BindingKindDepthTextureArray:
		entry.Texture.SampleType = wgpu.TextureSampleTypeDepth
		entry.Texture.ViewDimension = wgpu.TextureViewDimension2DArray
	case gpu.BindingKindSampler:
		entry.Sampler.Type = wgpu.SamplerBindingTypeFiltering
	case gpu.BindingKindSamplerComparison:
		entry.Sampler.Type = wgpu.SamplerBindingTypeComparison
	}
	return entry
}
