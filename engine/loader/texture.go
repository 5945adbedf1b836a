package loader

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"

	"github.com/Carmen-Shannon/oxy-deferred/common"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/gpu"
	"github.com/chewxy/math32"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// decodedTexture is a glTF texture decoded to tightly packed RGBA8 texels.
type decodedTexture struct {
	index   int
	staging common.TextureStagingData
	sampler *common.SamplerStagingData
}

// decodeTexture decodes a PNG, JPEG or WebP image into RGBA8 texels. Images whose larger side
// exceeds maxSize are downscaled with Catmull-Rom filtering, preserving the aspect ratio.
//
// Parameters:
//   - data: the encoded image
//   - format: the texel format the pixels are uploaded as
//   - maxSize: the largest allowed side; 0 disables downscaling
//
// Returns:
//   - common.TextureStagingData: the staged pixels
//   - error: an unknown or corrupt image
func decodeTexture(data []byte, format gpu.TextureFormat, maxSize uint32) (common.TextureStagingData, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return common.TextureStagingData{}, fmt.Errorf("decode: %w", err)
	}

	src := img.Bounds()
	width, height := src.Dx(), src.Dy()
	if width == 0 || height == 0 {
		return common.TextureStagingData{}, fmt.Errorf("decode: empty image")
	}

	if largest := max(width, height); maxSize > 0 && largest > int(maxSize) {
		width = max(1, width*int(maxSize)/largest)
		height = max(1, height*int(maxSize)/largest)
	}

	dst := image.NewNRGBA(image.Rect(0, 0, width, height))
	if width == src.Dx() && height == src.Dy() {
		draw.Draw(dst, dst.Bounds(), img, src.Min, draw.Src)
	} else {
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, src, draw.Src, nil)
	}

	return common.TextureStagingData{
		Pixels: dst.Pix,
		Width:  uint32(width),
		Height: uint32(height),
		Format: format,
	}, nil
}

// scaleSRGB multiplies sRGB-encoded RGBA8 texels by a linear color factor in place.
func scaleSRGB(pixels []byte, factor [4]float32) {
	if factor == [4]float32{1, 1, 1, 1} {
		return
	}
	for i := 0; i+3 < len(pixels); i += 4 {
		for c := range 3 {
			linear := srgbToLinear(float32(pixels[i+c])/255) * factor[c]
			pixels[i+c] = toByte(linearToSRGB(linear))
		}
		pixels[i+3] = toByte(float32(pixels[i+3]) / 255 * factor[3])
	}
}

// buildORM packs occlusion into red, roughness into green and metallic into blue. Green and blue
// come from the glTF metallic-roughness texture scaled by the factors, or from the factors alone
// when the material has only an occlusion map. An occlusion map whose size differs from the
// metallic-roughness texture is ignored.
//
// Parameters:
//   - occlusion: the occlusion map, possibly the same texture as metallicRoughness
//   - metallicRoughness: the glTF metallic-roughness texture
//   - roughness, metallic: the material factors
//
// Returns:
//   - *decodedTexture: the packed texture, or nil when neither map is present
func buildORM(occlusion, metallicRoughness *decodedTexture, roughness, metallic float32) *decodedTexture {
	base := metallicRoughness
	if base == nil {
		base = occlusion
	}
	if base == nil {
		return nil
	}
	if occlusion != nil && (occlusion.staging.Width != base.staging.Width || occlusion.staging.Height != base.staging.Height) {
		occlusion = nil
	}

	pixels := make([]byte, len(base.staging.Pixels))
	for i := 0; i+3 < len(pixels); i += 4 {
		o, r, m := byte(255), toByte(roughness), toByte(metallic)
		if occlusion != nil {
			o = occlusion.staging.Pixels[i]
		}
		if metallicRoughness != nil {
			r = toByte(float32(metallicRoughness.staging.Pixels[i+1]) / 255 * roughness)
			m = toByte(float32(metallicRoughness.staging.Pixels[i+2]) / 255 * metallic)
		}
		pixels[i], pixels[i+1], pixels[i+2], pixels[i+3] = o, r, m, 255
	}

	return &decodedTexture{
		index: base.index,
		staging: common.TextureStagingData{
			Pixels: pixels,
			Width:  base.staging.Width,
			Height: base.staging.Height,
			Format: gpu.TextureFormatRGBA8Unorm,
		},
		sampler: base.sampler,
	}
}

func srgbToLinear(c float32) float32 {
	if c <= 0.04045 {
		return c / 12.92
	}
	return math32.Pow((c+0.055)/1.055, 2.4)
}

func linearToSRGB(c float32) float32 {
	if c <= 0.0031308 {
		return c * 12.92
	}
	return 1.055*math32.Pow(c, 1/2.4) - 0.055
}

// toByte maps [0, 1] to [0, 255] with rounding, clamping out-of-range values.
func toByte(v float32) byte {
	return byte(math32.Round(common.Clamp(v, 0, 1) * 255))
}
