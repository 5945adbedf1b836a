// package common contains common types that are used throughout this engine. They are not interface-wrapped structs, just plain structs that express
// commonly used data-types.
package common

import (
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/gpu"
)

// TextureStagingData holds pixel data for a texture binding pending GPU upload.
// Materials stage their channel textures in this form until the orchestrator uploads them.
type TextureStagingData struct {
	// Pixels is the byte slice representing the actual pixel data for the texture, tightly packed rows of Format texels.
	Pixels []byte
	// Width is the width of the texture in pixels.
	Width uint32
	// Height is the height of the texture in pixels.
	Height uint32
	// Format is the texel format. The zero value uploads as RGBA8UnormSrgb.
	Format gpu.TextureFormat
}

// SamplerStagingData holds the configuration for a sampler binding pending GPU creation.
type SamplerStagingData struct {
	// AddressModeU, AddressModeV, AddressModeW specify the addressing mode for texture coordinates outside the [0, 1] range in each dimension (U, V, W).
	AddressModeU, AddressModeV, AddressModeW gpu.AddressMode
	// MagFilter and MinFilter specify the filtering mode for magnification and minification.
	MagFilter, MinFilter gpu.FilterMode
	// LodMinClamp and LodMaxClamp specify the minimum and maximum level of detail (LOD) for mipmapping.
	LodMinClamp, LodMaxClamp float32
	// Compare specifies the comparison function for comparison samplers, used in shadow mapping.
	Compare gpu.CompareFunction
	// MaxAnisotropy specifies the maximum anisotropy level for anisotropic filtering.
	MaxAnisotropy uint16
}

// SolidTexture builds a width x height RGBA8 texture filled with one color.
//
// Parameters:
//   - width, height: texture size in pixels
//   - rgba: the fill color, each channel in [0, 255]
//
// Returns:
//   - TextureStagingData: staged pixels ready for upload
func SolidTexture(width, height uint32, rgba [4]byte) TextureStagingData {
	pixels := make([]byte, int(width*height)*4)
	for i := 0; i < len(pixels); i += 4 {
		copy(pixels[i:i+4], rgba[:])
	}
	return TextureStagingData{Pixels: pixels, Width: width, Height: height, Format: gpu.TextureFormatRGBA8Unorm}
}
