package light

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDirectionalLightDefaults(t *testing.T) {
	l := NewDirectionalLight()
	assert.Equal(t, mgl32.Vec3{0, -1, 0}, l.Direction())
	assert.Equal(t, float32(1), l.Intensity())
}

func TestDirectionIsNormalized(t *testing.T) {
	l := NewDirectionalLight(WithDirection(0, -4, 3))
	assert.InDelta(t, 1, l.Direction().Len(), 1e-6)
	assert.InDelta(t, -0.8, l.Direction().Y(), 1e-6)

	l.SetDirection(0, 0, 0)
	assert.Equal(t, mgl32.Vec3{}, l.Direction())
}

func TestParamsSnapshot(t *testing.T) {
	l := NewDirectionalLight(WithColor(1, 0.9, 0.8), WithIntensity(3), WithAmbient(0.2, 0.3, 0.4, 0.5))
	p := l.Params()
	l.SetIntensity(7)

	assert.Equal(t, float32(3), p.Intensity)
	assert.Equal(t, mgl32.Vec3{1, 0.9, 0.8}, p.Color)
	assert.Equal(t, mgl32.Vec3{0.2, 0.3, 0.4}, p.AmbientColor)
	assert.Equal(t, float32(0.5), p.AmbientIntensity)
	assert.Equal(t, float32(7), l.Intensity())
}

func TestGPULightingUniformLayout(t *testing.T) {
	l := NewDirectionalLight(WithDirection(0, -1, 0), WithIntensity(2))
	u := NewGPULightingUniform(l.Params(), []float32{5, 20, 100}, 0, 0.15)
	assert.Equal(t, 80, u.Size())
	assert.Equal(t, uint32(3), u.CascadeCount)
	assert.Equal(t, [4]float32{5, 20, 100, 100}, u.Splits)

	buf := u.Marshal()
	require.Len(t, buf, 80)
	f := func(off int) float32 { return math.Float32frombits(binary.LittleEndian.Uint32(buf[off:])) }
	assert.Equal(t, float32(-1), f(4))
	assert.Equal(t, float32(2), f(12))
	assert.Equal(t, uint32(3), binary.LittleEndian.Uint32(buf[44:]))
	assert.Equal(t, float32(20), f(52))
	assert.Equal(t, float32(0.15), f(68))
	assert.Equal(t, float32(1), f(72))
}
