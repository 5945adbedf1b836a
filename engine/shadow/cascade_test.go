package shadow

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-deferred/common"
	"github.com/Carmen-Shannon/oxy-deferred/config"
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testView(eye mgl32.Vec3) CameraView {
	return CameraView{
		View:       mgl32.LookAtV(eye, mgl32.Vec3{0, 0, 0}, mgl32.Vec3{0, 1, 0}),
		Projection: common.Perspective(mgl32.DegToRad(60), 16.0/9.0, 0.1, 200),
		Near:       0.1,
		Far:        200,
	}
}

func TestSplitsStrictlyIncreasingAndCoverRange(t *testing.T) {
	for _, lambda := range []float32{0, 0.5, 0.9, 1} {
		for _, count := range []int{3, 4} {
			calc, err := NewCalculator(WithCascadeCount(count), WithLambda(lambda), WithShadowDistance(0))
			require.NoError(t, err)

			splits := calc.Splits(0.1, 200)
			require.Len(t, splits, count)
			assert.Greater(t, splits[0], float32(0.1))
			for i := 1; i < len(splits); i++ {
				assert.Greater(t, splits[i], splits[i-1], "lambda %g count %d split %d", lambda, count, i)
			}
			assert.Equal(t, float32(200), splits[count-1])
		}
	}
}

func TestSplitsApplyShadowDistanceCap(t *testing.T) {
	calc, err := NewCalculator()
	require.NoError(t, err)

	splits := calc.Splits(0.1, 1000)
	assert.Equal(t, float32(100), splits[len(splits)-1])

	// a cap beyond the far plane has no effect
	splits = calc.Splits(0.1, 50)
	assert.Equal(t, float32(50), splits[len(splits)-1])
}

func TestSplitsRejectInvalidRange(t *testing.T) {
	calc, err := NewCalculator()
	require.NoError(t, err)
	assert.Nil(t, calc.Splits(0, 100))
	assert.Nil(t, calc.Splits(10, 10))
	assert.Nil(t, calc.Splits(10, 5))
	assert.Nil(t, calc.Splits(math32.NaN(), 5))
}

func TestSelectCascadeExactlyOne(t *testing.T) {
	calc, err := NewCalculator(WithShadowDistance(0))
	require.NoError(t, err)
	near, far := float32(0.1), float32(200)
	splits := calc.Splits(near, far)

	for d := near; d <= far; d += 0.05 {
		idx := SelectCascade(d, splits)
		require.GreaterOrEqual(t, idx, 0)
		require.Less(t, idx, len(splits))

		lower := near
		if idx > 0 {
			lower = splits[idx-1]
		}
		assert.GreaterOrEqual(t, d, lower, "depth %g selected cascade %d", d, idx)
		if idx < len(splits)-1 {
			assert.Less(t, d, splits[idx], "depth %g selected cascade %d", d, idx)
		}
	}
}

func TestSelectCascadeBoundaries(t *testing.T) {
	splits := []float32{5, 15, 40, 100}
	assert.Equal(t, 0, SelectCascade(0, splits))
	assert.Equal(t, 0, SelectCascade(4.999, splits))
	assert.Equal(t, 1, SelectCascade(5, splits))
	assert.Equal(t, 3, SelectCascade(99.9, splits))
	assert.Equal(t, 3, SelectCascade(100, splits))
	assert.Equal(t, 3, SelectCascade(1e6, splits))
}

func TestNewCalculatorRejectsInvalidCount(t *testing.T) {
	for _, n := range []int{0, 2, 5} {
		_, err := NewCalculator(WithCascadeCount(n))
		assert.ErrorIs(t, err, ErrInvalidCascadeCount)
	}
	_, err := NewCalculator(WithResolutions(1024, 1024))
	assert.Error(t, err)
	_, err = NewCalculator(WithFitMode("box"))
	assert.Error(t, err)
}

func TestComputeRejectsZeroLightDirection(t *testing.T) {
	calc, err := NewCalculator()
	require.NoError(t, err)

	_, err = calc.Compute(testView(mgl32.Vec3{0, 10, 20}), mgl32.Vec3{})
	assert.ErrorIs(t, err, ErrZeroLightDirection)
	_, err = calc.Compute(testView(mgl32.Vec3{0, 10, 20}), mgl32.Vec3{math32.NaN(), -1, 0})
	assert.ErrorIs(t, err, ErrZeroLightDirection)
}

func TestComputeRejectsInvalidDepthRange(t *testing.T) {
	calc, err := NewCalculator()
	require.NoError(t, err)
	view := testView(mgl32.Vec3{0, 10, 20})
	view.Near = 0
	_, err = calc.Compute(view, mgl32.Vec3{0, -1, 0})
	assert.ErrorIs(t, err, ErrInvalidDepthRange)
}

func TestComputeStableForVerticalLight(t *testing.T) {
	calc, err := NewCalculator()
	require.NoError(t, err)

	for _, dir := range []mgl32.Vec3{{0, -1, 0}, {0, 1, 0}, {0.001, -1, 0}, {0, -1, 0.05}} {
		cascades, err := calc.Compute(testView(mgl32.Vec3{0, 10, 20}), dir)
		require.NoError(t, err, "dir %v", dir)
		for _, c := range cascades {
			assert.True(t, common.IsFinite(c.ViewProj), "dir %v cascade %d", dir, c.Index)
		}
	}
}

func TestComputeCascadeProperties(t *testing.T) {
	cfg := config.Default()
	for _, mode := range []config.FitMode{config.FitSphere, config.FitAABB} {
		t.Run(string(mode), func(t *testing.T) {
			calc, err := NewCalculator(WithConfig(cfg), WithFitMode(mode))
			require.NoError(t, err)

			view := testView(mgl32.Vec3{3, 12, 25})
			cascades, err := calc.Compute(view, mgl32.Vec3{0.4, -1, 0.3})
			require.NoError(t, err)
			require.Len(t, cascades, cfg.Cascades.Count)

			prevFar := view.Near
			for i, c := range cascades {
				assert.Equal(t, i, c.Index)
				assert.Equal(t, prevFar, c.SplitNear)
				assert.Greater(t, c.SplitFar, c.SplitNear)
				assert.Equal(t, cfg.Cascades.Resolutions[i], c.Resolution)
				assert.Equal(t, cfg.Shadow.PCFRadius[i], c.PCFRadius)
				assert.InDelta(t, 2*c.HalfExtent/float32(c.Resolution), c.TexelWorldSize, 1e-6)
				assert.InDelta(t, c.TexelWorldSize*cfg.Shadow.NormalBiasScale, c.NormalBias, 1e-6)
				assert.Greater(t, c.DepthBias, float32(0))
				prevFar = c.SplitFar
			}
		})
	}
}

func TestComputeCoversFrustumSlices(t *testing.T) {
	for _, mode := range []config.FitMode{config.FitSphere, config.FitAABB} {
		t.Run(string(mode), func(t *testing.T) {
			calc, err := NewCalculator(WithFitMode(mode))
			require.NoError(t, err)

			view := testView(mgl32.Vec3{-4, 8, 18})
			cascades, err := calc.Compute(view, mgl32.Vec3{-0.3, -1, -0.6})
			require.NoError(t, err)

			invView := view.View.Inv()
			frustum := common.ViewSpaceCorners(view.Projection.Inv())
			nearDepth, farDepth := -frustum[0].Z(), -frustum[4].Z()
			for _, c := range cascades {
				slack := 2.0 / float32(c.Resolution)
				slice := frustum.Slice(nearDepth, farDepth, c.SplitNear, c.SplitFar).Transform(invView)
				for _, p := range slice {
					ndc := common.Project(c.ViewProj, p)
					assert.InDelta(t, 0, ndc.X(), float64(1+slack), "cascade %d corner %v", c.Index, p)
					assert.InDelta(t, 0, ndc.Y(), float64(1+slack), "cascade %d corner %v", c.Index, p)
					assert.GreaterOrEqual(t, ndc.Z(), float32(-1e-4))
					assert.LessOrEqual(t, ndc.Z(), float32(1+1e-4))
				}
			}
		})
	}
}

func TestComputeSnapsOriginToTexelGrid(t *testing.T) {
	calc, err := NewCalculator()
	require.NoError(t, err)

	for _, eye := range []mgl32.Vec3{{0, 10, 20}, {0.013, 10, 20.007}, {5.5, 9.2, 18.1}} {
		cascades, err := calc.Compute(testView(eye), mgl32.Vec3{0.2, -1, 0.1})
		require.NoError(t, err)
		for _, c := range cascades {
			origin := c.ViewProj.Mul4x1(mgl32.Vec4{0, 0, 0, 1})
			half := float32(c.Resolution) / 2
			x := origin.X() * half
			y := origin.Y() * half
			assert.InDelta(t, math32.Round(x), x, 1e-2, "cascade %d", c.Index)
			assert.InDelta(t, math32.Round(y), y, 1e-2, "cascade %d", c.Index)
		}
	}
}

func TestSphereFitExtentIgnoresCameraRotation(t *testing.T) {
	calc, err := NewCalculator()
	require.NoError(t, err)

	eye := mgl32.Vec3{0, 5, 0}
	var extents [][]float32
	for _, target := range []mgl32.Vec3{{0, 5, -10}, {10, 5, 0}, {-7, 2, 7}} {
		view := testView(eye)
		view.View = mgl32.LookAtV(eye, target, mgl32.Vec3{0, 1, 0})
		cascades, err := calc.Compute(view, mgl32.Vec3{0.3, -1, 0.2})
		require.NoError(t, err)
		var e []float32
		for _, c := range cascades {
			e = append(e, c.HalfExtent)
		}
		extents = append(extents, e)
	}
	// radii are rounded up to 1/16, so rotation can move an extent by at most one step
	for i := range extents[0] {
		assert.InDelta(t, extents[0][i], extents[1][i], 1.0/16+1e-4)
		assert.InDelta(t, extents[0][i], extents[2][i], 1.0/16+1e-4)
	}
}

func TestMarshalCascades(t *testing.T) {
	calc, err := NewCalculator()
	require.NoError(t, err)
	cascades, err := calc.Compute(testView(mgl32.Vec3{0, 10, 20}), mgl32.Vec3{0, -1, -1})
	require.NoError(t, err)

	var probe GPUCascadeData
	assert.Equal(t, 96, probe.Size())

	buf := MarshalCascades(cascades, 2048)
	require.Len(t, buf, 96*len(cascades))
	data := NewGPUCascadeData(cascades[2], 2048)
	assert.Equal(t, data.Marshal(), buf[2*96:3*96])
	assert.Equal(t, float32(1024), data.Resolution)
	assert.InDelta(t, 1.0/2048.0, data.TexelSize, 1e-9)
}
