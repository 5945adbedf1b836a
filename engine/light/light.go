package light

import (
	"sync"

	"github.com/go-gl/mathgl/mgl32"
)

// Params is an immutable snapshot of a directional light, taken once per frame and handed
// read-only to every render pass.
type Params struct {
	// Direction is the normalized direction light travels, from the light toward the scene.
	// Shading uses L = -Direction.
	Direction        mgl32.Vec3
	Color            mgl32.Vec3
	Intensity        float32
	AmbientColor     mgl32.Vec3
	AmbientIntensity float32
}

// lightImpl is the implementation of the DirectionalLight interface.
type lightImpl struct {
	mu *sync.Mutex

	direction        mgl32.Vec3
	color            mgl32.Vec3
	intensity        float32
	ambientColor     mgl32.Vec3
	ambientIntensity float32
}

// DirectionalLight defines the interface for the single shadow-casting sun light of a scene.
//
// The light has no position and no attenuation. Its ambient term is applied to every lit pixel
// regardless of shadowing. The light is safe for concurrent use: the application may update it
// while the renderer snapshots it with Params.
type DirectionalLight interface {
	// Direction returns the normalized direction light travels.
	//
	// Returns:
	//   - mgl32.Vec3: the direction, from the light toward the scene
	Direction() mgl32.Vec3

	// Color returns the RGB color of the light.
	//
	// Returns:
	//   - mgl32.Vec3: color as (r, g, b)
	Color() mgl32.Vec3

	// Intensity returns the scalar intensity multiplier for the light.
	//
	// Returns:
	//   - float32: the intensity value
	Intensity() float32

	// Ambient returns the ambient color and its intensity.
	//
	// Returns:
	//   - mgl32.Vec3: ambient color as (r, g, b)
	//   - float32: ambient intensity
	Ambient() (mgl32.Vec3, float32)

	// Params returns a consistent snapshot of every light property.
	//
	// Returns:
	//   - Params: the snapshot
	Params() Params

	// SetDirection sets the direction light travels. The vector is normalized; a zero vector is
	// stored as zero and rejected later by cascade computation.
	//
	// Parameters:
	//   - x, y, z: direction components
	SetDirection(x, y, z float32)

	// SetColor sets the RGB color of the light.
	//
	// Parameters:
	//   - r, g, b: color components
	SetColor(r, g, b float32)

	// SetIntensity sets the scalar intensity multiplier.
	//
	// Parameters:
	//   - intensity: the intensity value
	SetIntensity(intensity float32)

	// SetAmbient sets the ambient color and intensity.
	//
	// Parameters:
	//   - r, g, b: ambient color components
	//   - intensity: ambient intensity
	SetAmbient(r, g, b, intensity float32)
}

var _ DirectionalLight = &lightImpl{}

// NewDirectionalLight creates a DirectionalLight pointing straight down with white light of
// intensity 1 and a dim ambient term.
//
// Parameters:
//   - opts: variadic list of LightBuilderOption functions to configure the light
//
// Returns:
//   - DirectionalLight: a new DirectionalLight instance
func NewDirectionalLight(opts ...LightBuilderOption) DirectionalLight {
	l := &lightImpl{
		mu:               &sync.Mutex{},
		direction:        mgl32.Vec3{0, -1, 0},
		color:            mgl32.Vec3{1, 1, 1},
		intensity:        1.0,
		ambientColor:     mgl32.Vec3{1, 1, 1},
		ambientIntensity: 0.1,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *lightImpl) Direction() mgl32.Vec3 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.direction
}

func (l *lightImpl) Color() mgl32.Vec3 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.color
}

func (l *lightImpl) Intensity() float32 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.intensity
}

func (l *lightImpl) Ambient() (mgl32.Vec3, float32) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ambientColor, l.ambientIntensity
}

func (l *lightImpl) Params() Params {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Params{
		Direction:        l.direction,
		Color:            l.color,
		Intensity:        l.intensity,
		AmbientColor:     l.ambientColor,
		AmbientIntensity: l.ambientIntensity,
	}
}

func (l *lightImpl) SetDirection(x, y, z float32) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.direction = normalize3(x, y, z)
}

func (l *lightImpl) SetColor(r, g, b float32) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.color = mgl32.Vec3{r, g, b}
}

func (l *lightImpl) SetIntensity(intensity float32) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.intensity = intensity
}

func (l *lightImpl) SetAmbient(r, g, b, intensity float32) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ambientColor = mgl32.Vec3{r, g, b}
	l.ambientIntensity = intensity
}
