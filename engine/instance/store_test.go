package instance

import (
	"encoding/binary"
	"math"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-deferred/common"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendReturnsStableIndices(t *testing.T) {
	s := NewStore(4)
	for i := range 3 {
		idx, err := s.Append(mgl32.Translate3D(float32(i), 0, 0))
		require.NoError(t, err)
		assert.Equal(t, uint32(i), idx)
	}
	assert.Equal(t, 3, s.Len())
	assert.Equal(t, float32(2), s.Model(2)[12])
}

func TestAppendErrors(t *testing.T) {
	s := NewStore(1)
	_, err := s.Append(mgl32.Ident4())
	require.NoError(t, err)

	_, err = s.Append(mgl32.Ident4())
	assert.ErrorIs(t, err, ErrStoreFull)

	require.NoError(t, s.Seal())
	_, err = s.Append(mgl32.Ident4())
	assert.ErrorIs(t, err, ErrStoreSealed)
}

func TestBytesOnlyAfterSeal(t *testing.T) {
	s := NewStore(2)
	_, err := s.Append(mgl32.Ident4())
	require.NoError(t, err)
	assert.Nil(t, s.Bytes())
	assert.False(t, s.Sealed())

	require.NoError(t, s.Seal())
	assert.True(t, s.Sealed())
	assert.Len(t, s.Bytes(), GPUInstanceDataSize)
	require.NoError(t, s.Seal(), "sealing twice is a no-op")
}

func TestNormalMatrixUnderNonUniformScale(t *testing.T) {
	s := NewStore(2)
	_, err := s.Append(mgl32.Scale3D(2, 1, 1))
	require.NoError(t, err)
	_, err = s.Append(mgl32.Scale3D(1, 0, 1))
	require.NoError(t, err)
	require.NoError(t, s.Seal())

	// a 45 degree surface in the xy plane stays perpendicular after the x stretch
	n := s.NormalMatrix(0).Mul3x1(mgl32.Vec3{1, 1, 0}).Normalize()
	tangent := mgl32.Scale3D(2, 1, 1).Mul4x1(mgl32.Vec4{1, -1, 0, 0}).Vec3()
	assert.InDelta(t, 0, n.Dot(tangent), 1e-6)

	// singular scale falls back to the upper 3x3
	assert.Equal(t, mgl32.Scale3D(1, 0, 1).Mat3(), s.NormalMatrix(1))
}

func TestSealUsesPoolForLargeBatches(t *testing.T) {
	pool := worker.NewDynamicWorkerPool(4, 16, time.Second)
	s := NewStore(3000, WithWorkerPool(pool), WithParallelThreshold(0))
	for i := range 3000 {
		_, err := s.Append(mgl32.Translate3D(float32(i), 0, 0).Mul4(mgl32.Scale3D(1, 2, 4)))
		require.NoError(t, err)
	}
	require.NoError(t, s.Seal())

	buf := s.Bytes()
	require.Len(t, buf, 3000*GPUInstanceDataSize)
	for _, i := range []int{0, 511, 512, 1999, 2999} {
		rec := buf[i*GPUInstanceDataSize:]
		tx := math.Float32frombits(binary.LittleEndian.Uint32(rec[48:]))
		assert.Equal(t, float32(i), tx, "instance %d", i)
		want, _ := common.NormalMatrix(s.Model(uint32(i)))
		assert.Equal(t, want, s.NormalMatrix(uint32(i)))
	}
}

func TestSealRejectsNonFiniteTransform(t *testing.T) {
	for _, threshold := range []int{DefaultParallelThreshold, 0} {
		s := NewStore(600, WithParallelThreshold(threshold))
		defer s.Close()
		for range 599 {
			_, err := s.Append(mgl32.Ident4())
			require.NoError(t, err)
		}
		bad := mgl32.Ident4()
		bad[5] = float32(math.NaN())
		_, err := s.Append(bad)
		require.NoError(t, err)

		err = s.Seal()
		require.ErrorIs(t, err, ErrNonFiniteTransform)
		assert.Contains(t, err.Error(), "index 599")
		assert.False(t, s.Sealed())
		assert.Nil(t, s.Bytes())
	}
}

type stopCountingPool struct {
	worker.DynamicWorkerPool
	stops atomic.Int32
}

func (p *stopCountingPool) Stop() {
	p.stops.Add(1)
	p.DynamicWorkerPool.Stop()
}

func TestCloseStopsOnlyPrivatePool(t *testing.T) {
	shared := &stopCountingPool{DynamicWorkerPool: worker.NewDynamicWorkerPool(2, 16, time.Second)}
	defer shared.DynamicWorkerPool.Stop()
	s := NewStore(4, WithWorkerPool(shared), WithParallelThreshold(0))
	_, err := s.Append(mgl32.Ident4())
	require.NoError(t, err)
	require.NoError(t, s.Seal())
	s.Close()
	assert.Zero(t, shared.stops.Load(), "an injected pool belongs to the caller")

	var private []*stopCountingPool
	restore := newWorkerPool
	newWorkerPool = func() worker.DynamicWorkerPool {
		p := &stopCountingPool{DynamicWorkerPool: restore()}
		private = append(private, p)
		return p
	}
	t.Cleanup(func() { newWorkerPool = restore })

	small := NewStore(4)
	_, err = small.Append(mgl32.Ident4())
	require.NoError(t, err)
	require.NoError(t, small.Seal())
	assert.Empty(t, private, "batches under the threshold never start a pool")
	small.Close()

	big := NewStore(4, WithParallelThreshold(0))
	_, err = big.Append(mgl32.Ident4())
	require.NoError(t, err)
	require.NoError(t, big.Seal())
	big.Reset()
	_, err = big.Append(mgl32.Ident4())
	require.NoError(t, err)
	require.NoError(t, big.Seal())
	require.Len(t, private, 1, "the private pool is reused across frames")

	big.Close()
	assert.Equal(t, int32(1), private[0].stops.Load())
	big.Close()
	assert.Equal(t, int32(1), private[0].stops.Load(), "Close is idempotent")
}

func TestResetStartsNextFrame(t *testing.T) {
	s := NewStore(2)
	_, err := s.Append(mgl32.Ident4())
	require.NoError(t, err)
	require.NoError(t, s.Seal())

	s.Reset()
	assert.False(t, s.Sealed())
	assert.Equal(t, 0, s.Len())
	idx, err := s.Append(mgl32.Ident4())
	require.NoError(t, err)
	assert.Equal(t, uint32(0), idx)
}

func TestGPUInstanceDataLayout(t *testing.T) {
	d := GPUInstanceData{
		Model:  mgl32.Translate3D(1, 2, 3),
		Normal: mgl32.Mat3{1, 2, 3, 4, 5, 6, 7, 8, 9},
	}
	assert.Equal(t, 112, d.Size())
	buf := d.Marshal()
	require.Len(t, buf, 112)
	f := func(off int) float32 { return math.Float32frombits(binary.LittleEndian.Uint32(buf[off:])) }
	assert.Equal(t, float32(3), f(56))
	assert.Equal(t, float32(1), f(64))
	assert.Equal(t, float32(0), f(76))
	assert.Equal(t, float32(4), f(80))
	assert.Equal(t, float32(9), f(104))
}
