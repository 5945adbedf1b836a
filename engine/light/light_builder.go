package light

import (
	"github.com/go-gl/mathgl/mgl32"
)

// LightBuilderOption is a function that configures a DirectionalLight instance during construction.
type LightBuilderOption func(*lightImpl)

// WithDirection is an option builder that sets the direction light travels.
// The direction is normalized before storing.
//
// Parameters:
//   - x: the x direction component
//   - y: the y direction component
//   - z: the z direction component
//
// Returns:
//   - LightBuilderOption: a function that applies the direction option to a lightImpl
func WithDirection(x, y, z float32) LightBuilderOption {
	return func(l *lightImpl) {
		l.direction = normalize3(x, y, z)
	}
}

// WithColor is an option builder that sets the RGB color of the light.
//
// Parameters:
//   - r: the red color component
//   - g: the green color component
//   - b: the blue color component
//
// Returns:
//   - LightBuilderOption: a function that applies the color option to a lightImpl
func WithColor(r, g, b float32) LightBuilderOption {
	return func(l *lightImpl) {
		l.color = mgl32.Vec3{r, g, b}
	}
}

// WithIntensity is an option builder that sets the scalar intensity multiplier.
//
// Parameters:
//   - intensity: the intensity value
//
// Returns:
//   - LightBuilderOption: a function that applies the intensity option to a lightImpl
func WithIntensity(intensity float32) LightBuilderOption {
	return func(l *lightImpl) {
		l.intensity = intensity
	}
}

// WithAmbient is an option builder that sets the ambient color and intensity.
//
// Parameters:
//   - r, g, b: the ambient color components
//   - intensity: the ambient intensity
//
// Returns:
//   - LightBuilderOption: a function that applies the ambient option to a lightImpl
func WithAmbient(r, g, b, intensity float32) LightBuilderOption {
	return func(l *lightImpl) {
		l.ambientColor = mgl32.Vec3{r, g, b}
		l.ambientIntensity = intensity
	}
}

// normalize3 normalizes a 3-component vector. Returns a zero vector if the input
// has zero length.
func normalize3(x, y, z float32) mgl32.Vec3 {
	v := mgl32.Vec3{x, y, z}
	if v.Len() == 0 {
		return mgl32.Vec3{}
	}
	return v.Normalize()
}
