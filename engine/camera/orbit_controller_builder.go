package camera

import "github.com/go-gl/mathgl/mgl32"

// OrbitControllerOption is a function that configures an OrbitController during construction.
type OrbitControllerOption func(*orbitControllerImpl)

// WithRadius sets the initial distance from the target.
//
// Parameters:
//   - radius: distance in world units
//
// Returns:
//   - OrbitControllerOption: a function that sets the orbit radius
func WithRadius(radius float32) OrbitControllerOption {
	return func(oc *orbitControllerImpl) {
		oc.radius = radius
	}
}

// WithAngles sets the initial azimuth and elevation.
//
// Parameters:
//   - azimuth: horizontal angle in radians
//   - elevation: vertical angle in radians
//
// Returns:
//   - OrbitControllerOption: a function that sets the orbit angles
func WithAngles(azimuth, elevation float32) OrbitControllerOption {
	return func(oc *orbitControllerImpl) {
		oc.azimuth = azimuth
		oc.elevation = elevation
	}
}

// WithTarget sets the initial pivot point.
//
// Parameters:
//   - target: world-space coordinates
//
// Returns:
//   - OrbitControllerOption: a function that sets the target
func WithTarget(target mgl32.Vec3) OrbitControllerOption {
	return func(oc *orbitControllerImpl) {
		oc.target = target
	}
}

// WithRadiusBounds sets the zoom limits.
//
// Parameters:
//   - min: minimum distance from target
//   - max: maximum distance from target
//
// Returns:
//   - OrbitControllerOption: a function that sets the radius bounds
func WithRadiusBounds(min, max float32) OrbitControllerOption {
	return func(oc *orbitControllerImpl) {
		oc.minRadius = min
		oc.maxRadius = max
	}
}

// WithElevationBounds sets the vertical angle limits in radians.
func WithElevationBounds(min, max float32) OrbitControllerOption {
	return func(oc *orbitControllerImpl) {
		oc.minElevation = min
		oc.maxElevation = max
	}
}

// WithZoomSpeed sets the multiplier applied to Zoom deltas.
func WithZoomSpeed(speed float32) OrbitControllerOption {
	return func(oc *orbitControllerImpl) {
		oc.zoomSpeed = speed
	}
}
