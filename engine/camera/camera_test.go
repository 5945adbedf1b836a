package camera

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/Carmen-Shannon/oxy-deferred/common"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCameraLookAtMatrices(t *testing.T) {
	c := NewCamera(
		WithAspect(16.0/9.0),
		WithNear(0.5),
		WithFar(50),
		WithLookAt(mgl32.Vec3{0, 5, 10}, mgl32.Vec3{0, 0, 0}),
	)

	// the target lies straight ahead, on the view axis
	target := common.Project(c.ViewMatrix(), mgl32.Vec3{0, 0, 0})
	assert.InDelta(t, 0, target.X(), 1e-5)
	assert.InDelta(t, 0, target.Y(), 1e-5)
	assert.Less(t, target.Z(), float32(0))

	id := c.ViewMatrix().Mul4(c.InverseViewMatrix())
	assert.True(t, id.ApproxEqualThreshold(mgl32.Ident4(), 1e-5))
	id = c.ProjectionMatrix().Mul4(c.InverseProjectionMatrix())
	assert.True(t, id.ApproxEqualThreshold(mgl32.Ident4(), 1e-4))
}

func TestProjectionDepthRange(t *testing.T) {
	c := NewCamera(WithNear(0.5), WithFar(50), WithLookAt(mgl32.Vec3{}, mgl32.Vec3{0, 0, -1}))
	near := common.Project(c.ViewProjectionMatrix(), mgl32.Vec3{0, 0, -0.5})
	far := common.Project(c.ViewProjectionMatrix(), mgl32.Vec3{0, 0, -50})
	assert.InDelta(t, 0, near.Z(), 1e-5)
	assert.InDelta(t, 1, far.Z(), 1e-5)
}

func TestCameraFollowsController(t *testing.T) {
	ctrl := NewOrbitController(WithRadius(10), WithAngles(0, 0), WithTarget(mgl32.Vec3{1, 2, 3}))
	c := NewCamera(WithController(ctrl))
	assert.InDelta(t, 0, c.Position().Sub(mgl32.Vec3{1, 2, 13}).Len(), 1e-5)

	ctrl.Orbit(float32(math.Pi/2), 0)
	assert.InDelta(t, 13, c.Position().Z(), 1e-5, "camera only moves on Update")
	c.Update()
	assert.InDelta(t, 0, c.Position().Sub(mgl32.Vec3{11, 2, 3}).Len(), 1e-4)
}

func TestOrbitControllerClamps(t *testing.T) {
	ctrl := NewOrbitController(WithRadius(10), WithRadiusBounds(2, 20), WithElevationBounds(-1, 1), WithZoomSpeed(5))
	ctrl.Zoom(10)
	assert.Equal(t, float32(2), ctrl.Radius())
	ctrl.Zoom(-100)
	assert.Equal(t, float32(20), ctrl.Radius())

	ctrl.Orbit(0, 5)
	_, elev := ctrl.Angles()
	assert.Equal(t, float32(1), elev)
	assert.InDelta(t, 20, ctrl.Position().Sub(ctrl.Target()).Len(), 1e-4)
}

func TestGPUCameraUniformLayout(t *testing.T) {
	c := NewCamera(WithNear(0.25), WithFar(80), WithLookAt(mgl32.Vec3{1, 2, 3}, mgl32.Vec3{}))
	u := NewGPUCameraUniform(c, 1280, 720)
	assert.Equal(t, 352, u.Size())

	buf := u.Marshal()
	require.Len(t, buf, 352)
	f := func(off int) float32 { return math.Float32frombits(binary.LittleEndian.Uint32(buf[off:])) }
	assert.Equal(t, u.InvProj[10], f(256+40))
	assert.Equal(t, float32(2), f(324))
	assert.Equal(t, float32(0.25), f(332))
	assert.Equal(t, float32(720), f(340))
	assert.Equal(t, float32(80), f(344))
}
