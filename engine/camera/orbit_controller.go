package camera

import (
	"math"
	"sync"

	"github.com/Carmen-Shannon/oxy-deferred/common"
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// OrbitController owns the camera's positional state as spherical coordinates (radius, azimuth,
// elevation) around a target point. The camera reads Position and Target from it each frame.
type OrbitController interface {
	// Position returns the camera's world-space position.
	//
	// Returns:
	//   - mgl32.Vec3: world-space camera position
	Position() mgl32.Vec3

	// Target returns the look-at point.
	//
	// Returns:
	//   - mgl32.Vec3: world-space target position
	Target() mgl32.Vec3

	// SetTarget sets the pivot point and recomputes the position from spherical coordinates.
	//
	// Parameters:
	//   - target: world-space coordinates
	SetTarget(target mgl32.Vec3)

	// Orbit rotates around the target. Elevation is clamped to the configured bounds.
	//
	// Parameters:
	//   - dAzimuth: change of horizontal angle in radians
	//   - dElevation: change of vertical angle in radians
	Orbit(dAzimuth, dElevation float32)

	// Zoom moves toward the target by delta * zoom speed, clamped to the radius bounds.
	// Positive delta zooms in.
	//
	// Parameters:
	//   - delta: zoom amount
	Zoom(delta float32)

	// Radius returns the current distance from the target.
	//
	// Returns:
	//   - float32: current orbit radius
	Radius() float32

	// Angles returns the current azimuth and elevation in radians.
	Angles() (azimuth, elevation float32)
}

// orbitControllerImpl is the implementation of OrbitController.
type orbitControllerImpl struct {
	mu *sync.Mutex

	position mgl32.Vec3
	target   mgl32.Vec3

	radius    float32
	azimuth   float32 // horizontal angle around Y
	elevation float32 // vertical angle from the horizontal plane

	minRadius    float32
	maxRadius    float32
	minElevation float32
	maxElevation float32

	zoomSpeed float32
}

var _ OrbitController = &orbitControllerImpl{}

// NewOrbitController creates an orbit controller looking at the origin from 30 units away,
// 30 degrees above the horizon.
//
// Parameters:
//   - options: functional options to configure the controller
//
// Returns:
//   - OrbitController: the newly created controller
func NewOrbitController(options ...OrbitControllerOption) OrbitController {
	oc := &orbitControllerImpl{
		mu:           &sync.Mutex{},
		radius:       30.0,
		elevation:    float32(math.Pi / 6),
		minRadius:    1.0,
		maxRadius:    500.0,
		minElevation: -float32(math.Pi/2 - 0.05),
		maxElevation: float32(math.Pi/2 - 0.05),
		zoomSpeed:    1.0,
	}
	for _, option := range options {
		option(oc)
	}
	oc.radius = common.Clamp(oc.radius, oc.minRadius, oc.maxRadius)
	oc.elevation = common.Clamp(oc.elevation, oc.minElevation, oc.maxElevation)
	oc.updatePosition()
	return oc
}

// updatePosition recomputes the camera position from spherical coordinates.
// Caller must hold the mutex.
func (oc *orbitControllerImpl) updatePosition() {
	cosElev, sinElev := math32.Cos(oc.elevation), math32.Sin(oc.elevation)
	cosAzim, sinAzim := math32.Cos(oc.azimuth), math32.Sin(oc.azimuth)
	oc.position = oc.target.Add(mgl32.Vec3{
		oc.radius * cosElev * sinAzim,
		oc.radius * sinElev,
		oc.radius * cosElev * cosAzim,
	})
}

func (oc *orbitControllerImpl) Position() mgl32.Vec3 {
	oc.mu.Lock()
	defer oc.mu.Unlock()
	return oc.position
}

func (oc *orbitControllerImpl) Target() mgl32.Vec3 {
	oc.mu.Lock()
	defer oc.mu.Unlock()
	return oc.target
}

func (oc *orbitControllerImpl) SetTarget(target mgl32.Vec3) {
	oc.mu.Lock()
	defer oc.mu.Unlock()
	oc.target = target
	oc.updatePosition()
}

func (oc *orbitControllerImpl) Orbit(dAzimuth, dElevation float32) {
	oc.mu.Lock()
	defer oc.mu.Unlock()
	oc.azimuth += dAzimuth
	oc.elevation = common.Clamp(oc.elevation+dElevation, oc.minElevation, oc.maxElevation)
	oc.updatePosition()
}

func (oc *orbitControllerImpl) Zoom(delta float32) {
	oc.mu.Lock()
	defer oc.mu.Unlock()
	oc.radius = common.Clamp(oc.radius-delta*oc.zoomSpeed, oc.minRadius, oc.maxRadius)
	oc.updatePosition()
}

func (oc *orbitControllerImpl) Radius() float32 {
	oc.mu.Lock()
	defer oc.mu.Unlock()
	return oc.radius
}

func (oc *orbitControllerImpl) Angles() (float32, float32) {
	oc.mu.Lock()
	defer oc.mu.Unlock()
	return oc.azimuth, oc.elevation
}
