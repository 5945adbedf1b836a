package light

import (
	_ "embed"
	"encoding/binary"
	"math"
	"unsafe"
)

// GPULightingUniformSource is the canonical WGSL definition of the LightingUniform struct.
// Matches GPULightingUniform layout exactly (80 bytes, uniform aligned).
//
//go:embed assets/lighting_uniform.wgsl
var GPULightingUniformSource string

// GPULightingUniform is the GPU-aligned uniform consumed by the lighting resolve pass.
// Matches the WGSL LightingUniform struct layout exactly (see GPULightingUniformSource).
//
// Layout:
//
//	vec3<f32> direction          (12 bytes, offset 0)
//	f32       intensity          ( 4 bytes, offset 12)
//	vec3<f32> color              (12 bytes, offset 16)
//	f32       ambient_intensity  ( 4 bytes, offset 28)
//	vec3<f32> ambient            (12 bytes, offset 32)
//	u32       cascade_count      ( 4 bytes, offset 44)
//	vec4<f32> splits             (16 bytes, offset 48)
//	f32       fade_start         ( 4 bytes, offset 64)
//	f32       fade_end           ( 4 bytes, offset 68)
//	f32       far_sentinel       ( 4 bytes, offset 72)
//	padding                      ( 4 bytes, offset 76)
type GPULightingUniform struct {
	Direction        [3]float32 // direction light travels, normalized
	Intensity        float32
	Color            [3]float32
	AmbientIntensity float32
	Ambient          [3]float32
	CascadeCount     uint32
	Splits           [4]float32 // far split view depths; unused entries repeat the last split
	FadeStart        float32    // N.L at which the grazing fade begins
	FadeEnd          float32    // N.L at which shadows reach full strength
	FarSentinel      float32    // G-buffer depth marking empty pixels
	_pad             float32
}

// NewGPULightingUniform packs a light snapshot and the frame's cascade splits.
//
// Parameters:
//   - p: the light snapshot
//   - splits: far split depths, at most 4
//   - fadeStart, fadeEnd: grazing fade thresholds on N.L
//
// Returns:
//   - GPULightingUniform: the uniform, with a far sentinel of 1
func NewGPULightingUniform(p Params, splits []float32, fadeStart, fadeEnd float32) GPULightingUniform {
	u := GPULightingUniform{
		Direction:        p.Direction,
		Intensity:        p.Intensity,
		Color:            p.Color,
		AmbientIntensity: p.AmbientIntensity,
		Ambient:          p.AmbientColor,
		CascadeCount:     uint32(min(len(splits), 4)),
		FadeStart:        fadeStart,
		FadeEnd:          fadeEnd,
		FarSentinel:      1.0,
	}
	for i := range u.Splits {
		switch {
		case i < len(splits):
			u.Splits[i] = splits[i]
		case len(splits) > 0:
			u.Splits[i] = splits[len(splits)-1]
		}
	}
	return u
}

// Size returns the size of the GPULightingUniform struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (80)
func (u *GPULightingUniform) Size() int {
	return int(unsafe.Sizeof(*u))
}

// Marshal serializes the GPULightingUniform struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 80-byte buffer ready for GPU upload
func (u *GPULightingUniform) Marshal() []byte {
	buf := make([]byte, 80)
	putVec3 := func(off int, v [3]float32) {
		binary.LittleEndian.PutUint32(buf[off:off+4], math.Float32bits(v[0]))
		binary.LittleEndian.PutUint32(buf[off+4:off+8], math.Float32bits(v[1]))
		binary.LittleEndian.PutUint32(buf[off+8:off+12], math.Float32bits(v[2]))
	}
	putVec3(0, u.Direction)
	binary.LittleEndian.PutUint32(buf[12:16], math.Float32bits(u.Intensity))
	putVec3(16, u.Color)
	binary.LittleEndian.PutUint32(buf[28:32], math.Float32bits(u.AmbientIntensity))
	putVec3(32, u.Ambient)
	binary.LittleEndian.PutUint32(buf[44:48], u.CascadeCount)
	for i := 0; i < 4; i++ {
		binary.LittleEndian.PutUint32(buf[48+i*4:52+i*4], math.Float32bits(u.Splits[i]))
	}
	binary.LittleEndian.PutUint32(buf[64:68], math.Float32bits(u.FadeStart))
	binary.LittleEndian.PutUint32(buf[68:72], math.Float32bits(u.FadeEnd))
	binary.LittleEndian.PutUint32(buf[72:76], math.Float32bits(u.FarSentinel))
	binary.LittleEndian.PutUint32(buf[76:80], 0) // padding
	return buf
}
