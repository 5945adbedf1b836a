package material

import (
	"strings"

	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/gpu"
)

// Capability is a bitmask of the material channels that are backed by a texture. A channel whose
// bit is clear is supplied as a constant through the per-draw constant block. Each combination
// compiles to its own pipeline variant, so a shader never declares a texture it will not be given.
type Capability uint32

const (
	HasColorTexture Capability = 1 << iota
	HasNormalTexture
	HasORMTexture
)

// capabilityCount is the number of distinct pipeline variants.
const capabilityCount = 1 << 3

// Bind group 2 binding numbers. They stay fixed across variants; a variant only declares the
// bindings its capability needs.
const (
	SamplerBinding       uint32 = 0
	ColorTextureBinding  uint32 = 1
	NormalTextureBinding uint32 = 2
	ORMTextureBinding    uint32 = 3
)

// Pre-processor flags emitted by Capability.Defines.
const (
	DefineColorTexture  = "HAS_COLOR_TEXTURE"
	DefineNormalTexture = "HAS_NORMAL_TEXTURE"
	DefineORMTexture    = "HAS_ORM_TEXTURE"
	// DefineTextures is set when any channel is textured and gates the material sampler.
	DefineTextures = "HAS_TEXTURES"
)

// AllCapabilities enumerates every capability combination in ascending order.
//
// Returns:
//   - []Capability: the 8 pipeline variants
func AllCapabilities() []Capability {
	caps := make([]Capability, capabilityCount)
	for i := range caps {
		caps[i] = Capability(i)
	}
	return caps
}

// Has reports whether every bit of flag is set.
func (c Capability) Has(flag Capability) bool {
	return c&flag == flag
}

// HasTextures reports whether the variant binds a material texture group at all.
func (c Capability) HasTextures() bool {
	return c&(HasColorTexture|HasNormalTexture|HasORMTexture) != 0
}

// Defines returns the pre-processor flag set for this variant. Every flag is present with its
// value, so an unset flag selects the //@oxy:else branch.
//
// Returns:
//   - map[string]bool: flag name to enabled
func (c Capability) Defines() map[string]bool {
	return map[string]bool{
		DefineColorTexture:  c.Has(HasColorTexture),
		DefineNormalTexture: c.Has(HasNormalTexture),
		DefineORMTexture:    c.Has(HasORMTexture),
		DefineTextures:      c.HasTextures(),
	}
}

// PipelineKey names the pipeline variant for this capability, e.g. "gbuffer_color_normal".
//
// Parameters:
//   - prefix: the pipeline family
//
// Returns:
//   - string: the variant key
func (c Capability) PipelineKey(prefix string) string {
	return prefix + "_" + c.String()
}

// LayoutEntries returns the bind group 2 layout for this variant, or nil when nothing is sampled.
//
// Returns:
//   - []gpu.LayoutEntry: sampler followed by the bound channel textures
func (c Capability) LayoutEntries() []gpu.LayoutEntry {
	if !c.HasTextures() {
		return nil
	}
	entries := []gpu.LayoutEntry{{Binding: SamplerBinding, Kind: gpu.BindingKindSampler, Visibility: gpu.ShaderStageFragment}}
	for _, ch := range Channels() {
		if c.Has(ch.Capability()) {
			entries = append(entries, gpu.LayoutEntry{Binding: ch.Binding(), Kind: gpu.BindingKindTexture, Visibility: gpu.ShaderStageFragment})
		}
	}
	return entries
}

func (c Capability) String() string {
	if !c.HasTextures() {
		return "const"
	}
	var parts []string
	for _, ch := range Channels() {
		if c.Has(ch.Capability()) {
			parts = append(parts, ch.String())
		}
	}
	return strings.Join(parts, "_")
}

// Channel is one of the three material inputs written to the G-buffer.
type Channel int

const (
	ChannelBaseColor Channel = iota
	ChannelNormal
	// ChannelORM packs occlusion, roughness and metallic into r, g and b.
	ChannelORM
)

// Channels lists every channel in binding order.
func Channels() []Channel {
	return []Channel{ChannelBaseColor, ChannelNormal, ChannelORM}
}

// Capability returns the bit that marks the channel as texture backed.
func (ch Channel) Capability() Capability {
	return Capability(1) << ch
}

// Binding returns the channel texture's binding number in bind group 2.
func (ch Channel) Binding() uint32 {
	return ColorTextureBinding + uint32(ch)
}

func (ch Channel) String() string {
	switch ch {
	case ChannelBaseColor:
		return "color"
	case ChannelNormal:
		return "normal"
	case ChannelORM:
		return "orm"
	default:
		return "unknown"
	}
}

// TextureBinding is a channel served by a sampled texture.
type TextureBinding struct {
	// Texture is the uploaded view. It is zero until the material has been registered.
	Texture gpu.TextureView
	// Binding is the binding number within the material bind group.
	Binding uint32
}

// ConstantValue is a channel served by a constant in the per-draw constant block.
type ConstantValue struct {
	Value [4]float32
}

// Binding is the resolved source of one channel. Exactly one field is non-nil.
type Binding struct {
	Texture  *TextureBinding
	Constant *ConstantValue
}

// IsTexture reports whether the channel is sampled.
func (b Binding) IsTexture() bool {
	return b.Texture != nil
}

// Resolve decides how a channel of a material is supplied to the G-buffer pass. The answer only
// depends on the material's capability, which is fixed when the material is built.
//
// Parameters:
//   - m: the material
//   - ch: the channel
//
// Returns:
//   - Binding: a texture binding when the capability bit is set, otherwise the channel constant
func Resolve(m Material, ch Channel) Binding {
	if m.Capability().Has(ch.Capability()) {
		return Binding{Texture: &TextureBinding{Texture: m.TextureView(ch), Binding: ch.Binding()}}
	}
	return Binding{Constant: &ConstantValue{Value: m.Constant(ch)}}
}
