package loader

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Carmen-Shannon/oxy-deferred/common"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/material"
	"golang.org/x/sync/errgroup"
)

// gltfMaterialExtractorImpl is the implementation of the gltfMaterialExtractor interface.
type gltfMaterialExtractorImpl struct {
	parser         gltfParser
	maxTextureSize uint32
}

// gltfMaterialExtractor defines the interface for extracting material and texture data
// from a parsed glTF document.
type gltfMaterialExtractor interface {
	// ExtractMaterial extracts a single material by index and decodes its textures.
	//
	// Parameters:
	//   - materialIndex: the index of the material in the document
	//
	// Returns:
	//   - *importedMaterial: the material with decoded channel textures
	//   - error: error if extraction or decoding fails
	ExtractMaterial(materialIndex int) (*importedMaterial, error)

	// ExtractAllMaterials extracts every material, decoding textures concurrently.
	//
	// Returns:
	//   - []*importedMaterial: the materials in document order
	//   - error: the first extraction error
	ExtractAllMaterials() ([]*importedMaterial, error)
}

var _ gltfMaterialExtractor = &gltfMaterialExtractorImpl{}

// newGLTFMaterialExtractor creates a new material extractor for a parsed document.
//
// Parameters:
//   - parser: the parser containing a loaded document
//   - maxTextureSize: textures with a larger side are downscaled; 0 keeps the source size
//
// Returns:
//   - gltfMaterialExtractor: the material extractor
func newGLTFMaterialExtractor(parser gltfParser, maxTextureSize uint32) gltfMaterialExtractor {
	return &gltfMaterialExtractorImpl{parser: parser, maxTextureSize: maxTextureSize}
}

func (e *gltfMaterialExtractorImpl) ExtractMaterial(materialIndex int) (*importedMaterial, error) {
	doc := e.parser.Document()
	if doc == nil {
		return nil, fmt.Errorf("no document loaded")
	}
	if materialIndex < 0 || materialIndex >= len(doc.Materials) {
		return nil, fmt.Errorf("material index %d out of range", materialIndex)
	}

	mat := &doc.Materials[materialIndex]

	// glTF defaults: white, fully metallic, fully rough, unoccluded
	result := &importedMaterial{
		Name:      mat.Name,
		BaseColor: [4]float32{1, 1, 1, 1},
		Occlusion: 1,
		Roughness: 1,
		Metallic:  1,
	}

	var metallicRoughness, occlusion *decodedTexture
	pbr := mat.PbrMetallicRoughness
	if pbr != nil {
		if pbr.BaseColorFactor != nil {
			result.BaseColor = *pbr.BaseColorFactor
		}
		if pbr.MetallicFactor != nil {
			result.Metallic = *pbr.MetallicFactor
		}
		if pbr.RoughnessFactor != nil {
			result.Roughness = *pbr.RoughnessFactor
		}

		if pbr.BaseColorTexture != nil {
			tex, err := e.loadTexture(pbr.BaseColorTexture.Index, gpu.TextureFormatRGBA8UnormSrgb)
			if err != nil {
				return nil, fmt.Errorf("material %q: base color texture: %w", mat.Name, err)
			}
			if tex != nil {
				scaleSRGB(tex.staging.Pixels, result.BaseColor)
				result.setTexture(material.ChannelBaseColor, tex)
			}
		}

		if pbr.MetallicRoughnessTexture != nil {
			tex, err := e.loadTexture(pbr.MetallicRoughnessTexture.Index, gpu.TextureFormatRGBA8Unorm)
			if err != nil {
				return nil, fmt.Errorf("material %q: metallic-roughness texture: %w", mat.Name, err)
			}
			metallicRoughness = tex
		}
	}

	if mat.NormalTexture != nil {
		tex, err := e.loadTexture(mat.NormalTexture.Index, gpu.TextureFormatRGBA8Unorm)
		if err != nil {
			return nil, fmt.Errorf("material %q: normal texture: %w", mat.Name, err)
		}
		if tex != nil {
			result.setTexture(material.ChannelNormal, tex)
		}
	}

	if mat.OcclusionTexture != nil {
		if pbr != nil && pbr.MetallicRoughnessTexture != nil && pbr.MetallicRoughnessTexture.Index == mat.OcclusionTexture.Index {
			// packed ORM: red already holds occlusion
			occlusion = metallicRoughness
		} else {
			tex, err := e.loadTexture(mat.OcclusionTexture.Index, gpu.TextureFormatRGBA8Unorm)
			if err != nil {
				return nil, fmt.Errorf("material %q: occlusion texture: %w", mat.Name, err)
			}
			occlusion = tex
		}
	}

	if orm := buildORM(occlusion, metallicRoughness, result.Roughness, result.Metallic); orm != nil {
		result.setTexture(material.ChannelORM, orm)
	}
	return result, nil
}

func (e *gltfMaterialExtractorImpl) ExtractAllMaterials() ([]*importedMaterial, error) {
	doc := e.parser.Document()
	if doc == nil {
		return nil, fmt.Errorf("no document loaded")
	}

	materials := make([]*importedMaterial, len(doc.Materials))
	var g errgroup.Group
	for i := range doc.Materials {
		g.Go(func() error {
			mat, err := e.ExtractMaterial(i)
			if err != nil {
				return fmt.Errorf("material %d: %w", i, err)
			}
			materials[i] = mat
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return materials, nil
}

// loadTexture resolves a glTF texture index to decoded pixels in the given format. A texture with
// no image source yields nil.
func (e *gltfMaterialExtractorImpl) loadTexture(textureIndex int, format gpu.TextureFormat) (*decodedTexture, error) {
	doc := e.parser.Document()
	if textureIndex < 0 || textureIndex >= len(doc.Textures) {
		return nil, fmt.Errorf("texture index %d out of range", textureIndex)
	}

	tex := &doc.Textures[textureIndex]
	if tex.Source == nil {
		return nil, nil
	}

	var sampler *common.SamplerStagingData
	if tex.Sampler != nil {
		samplerIdx := *tex.Sampler
		if samplerIdx >= 0 && samplerIdx < len(doc.Samplers) {
			sampler = gltfSamplerToStagingData(&doc.Samplers[samplerIdx])
		}
	}

	imageIndex := *tex.Source
	if imageIndex < 0 || imageIndex >= len(doc.Images) {
		return nil, fmt.Errorf("image index %d out of range", imageIndex)
	}
	data, err := e.readImage(&doc.Images[imageIndex])
	if err != nil {
		return nil, err
	}

	staging, err := decodeTexture(data, format, e.maxTextureSize)
	if err != nil {
		return nil, fmt.Errorf("image %d: %w", imageIndex, err)
	}
	return &decodedTexture{index: textureIndex, staging: staging, sampler: sampler}, nil
}

// readImage returns the encoded bytes of an image stored in a buffer view, a data URI or an
// external file next to the document.
func (e *gltfMaterialExtractorImpl) readImage(img *gltfImage) ([]byte, error) {
	switch {
	case img.BufferView != nil:
		data, err := e.parser.BufferView(*img.BufferView)
		if err != nil {
			return nil, fmt.Errorf("failed to read image buffer view: %w", err)
		}
		return data, nil
	case strings.HasPrefix(img.URI, "data:"):
		data, _, err := gltfDecodeDataURI(img.URI)
		if err != nil {
			return nil, fmt.Errorf("failed to decode image data URI: %w", err)
		}
		return data, nil
	case img.URI != "":
		data, err := os.ReadFile(filepath.Join(e.parser.BaseDir(), img.URI))
		if err != nil {
			return nil, fmt.Errorf("failed to read image %q: %w", img.URI, err)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("image %q has no source", img.Name)
	}
}

// gltfDecodeDataURI decodes a base64 data URI into raw bytes and extracts the MIME type.
func gltfDecodeDataURI(uri string) ([]byte, string, error) {
	// Format: data:[<mediatype>][;base64],<data>
	if !strings.HasPrefix(uri, "data:") {
		return nil, "", fmt.Errorf("not a data URI")
	}

	header, encoded, ok := strings.Cut(uri[len("data:"):], ",")
	if !ok {
		return nil, "", fmt.Errorf("malformed data URI: no comma found")
	}
	mimeType, isBase64 := strings.CutSuffix(header, ";base64")
	if !isBase64 {
		return nil, "", fmt.Errorf("unsupported data URI encoding: %s", header)
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode base64: %w", err)
	}
	return data, mimeType, nil
}

// gltfSamplerToStagingData converts a glTF sampler definition into engine-ready SamplerStagingData.
// Any unset fields in the glTF sampler fall back to the glTF defaults (linear filtering, repeat wrapping).
// Reference: https://registry.khronos.org/glTF/specs/2.0/glTF-2.0.html#reference-sampler
//
// Parameters:
//   - s: the glTF sampler to convert
//
// Returns:
//   - *common.SamplerStagingData: the converted sampler staging data
func gltfSamplerToStagingData(s *gltfSampler) *common.SamplerStagingData {
	result := &common.SamplerStagingData{
		AddressModeU:  gpu.AddressModeRepeat,
		AddressModeV:  gpu.AddressModeRepeat,
		AddressModeW:  gpu.AddressModeRepeat,
		MagFilter:     gpu.FilterModeLinear,
		MinFilter:     gpu.FilterModeLinear,
		LodMaxClamp:   32,
		MaxAnisotropy: 1,
	}

	if s.MagFilter != nil && *s.MagFilter == gltfFilterNearest {
		result.MagFilter = gpu.FilterModeNearest
	}
	if s.MinFilter != nil {
		switch *s.MinFilter {
		case gltfFilterNearest, gltfFilterNearestMipmapNearest, gltfFilterNearestMipmapLinear:
			result.MinFilter = gpu.FilterModeNearest
		case gltfFilterLinear, gltfFilterLinearMipmapNearest, gltfFilterLinearMipmapLinear:
			result.MinFilter = gpu.FilterModeLinear
		}
	}
	if s.WrapS != nil {
		result.AddressModeU = gltfWrapToAddressMode(*s.WrapS)
	}
	if s.WrapT != nil {
		result.AddressModeV = gltfWrapToAddressMode(*s.WrapT)
	}
	return result
}

// gltfWrapToAddressMode converts a glTF wrap mode constant to an AddressMode.
//
// Parameters:
//   - wrap: the glTF wrap mode constant
//
// Returns:
//   - gpu.AddressMode: the corresponding address mode
func gltfWrapToAddressMode(wrap int) gpu.AddressMode {
	switch wrap {
	case gltfWrapClampToEdge:
		return gpu.AddressModeClampToEdge
	case gltfWrapMirroredRepeat:
		return gpu.AddressModeMirrorRepeat
	default:
		return gpu.AddressModeRepeat
	}
}
