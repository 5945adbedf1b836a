package material

import (
	"github.com/Carmen-Shannon/oxy-deferred/common"
)

// MaterialBuilderOption is a function that configures a material instance during construction.
type MaterialBuilderOption func(*material)

// WithName is an option builder that sets the name of the material.
//
// Parameters:
//   - name: the identifier for the material
//
// Returns:
//   - MaterialBuilderOption: a function that applies the name option to a material
func WithName(name string) MaterialBuilderOption {
	return func(m *material) {
		m.name = name
	}
}

// WithBaseColor is an option builder that sets the constant albedo used when no color texture is bound.
//
// Parameters:
//   - color: the base color as RGBA float32 values
//
// Returns:
//   - MaterialBuilderOption: a function that applies the base color option to a material
func WithBaseColor(color [4]float32) MaterialBuilderOption {
	return func(m *material) {
		m.constants[ChannelBaseColor] = color
	}
}

// WithNormal is an option builder that sets the constant tangent-space normal used when no normal map is bound.
//
// Parameters:
//   - normal: the tangent-space normal
//
// Returns:
//   - MaterialBuilderOption: a function that applies the normal option to a material
func WithNormal(normal [3]float32) MaterialBuilderOption {
	return func(m *material) {
		m.constants[ChannelNormal] = [4]float32{normal[0], normal[1], normal[2], 0}
	}
}

// WithORM is an option builder that sets the constant occlusion, roughness and metallic factors
// used when no ORM texture is bound.
//
// Parameters:
//   - occlusion: ambient occlusion (1 = unoccluded)
//   - roughness: the roughness factor (0.0 = smooth, 1.0 = rough)
//   - metallic: the metallic factor (0.0 = dielectric, 1.0 = metal)
//
// Returns:
//   - MaterialBuilderOption: a function that applies the ORM option to a material
func WithORM(occlusion, roughness, metallic float32) MaterialBuilderOption {
	return func(m *material) {
		m.constants[ChannelORM] = [4]float32{occlusion, roughness, metallic, 0}
	}
}

// WithTexture is an option builder that backs a channel with a texture. The constant of that
// channel is ignored from then on.
//
// Parameters:
//   - ch: the channel
//   - tex: the staged pixels
//
// Returns:
//   - MaterialBuilderOption: a function that applies the texture option to a material
func WithTexture(ch Channel, tex common.TextureStagingData) MaterialBuilderOption {
	return func(m *material) {
		m.textures[ch] = &tex
	}
}

// WithSampler is an option builder that overrides the channel texture sampler.
func WithSampler(s common.SamplerStagingData) MaterialBuilderOption {
	return func(m *material) {
		m.sampler = s
	}
}
