// Package instance holds the per-frame instance transform store. Draws address their transform
// through a compact index carried in per-draw constant data, so every draw in a frame shares one
// storage-buffer binding.
package instance

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-deferred/common"
	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"
)

var (
	// ErrStoreSealed is returned by Append once the frame's contents have been sealed.
	ErrStoreSealed = errors.New("instance: store is sealed")
	// ErrStoreFull is returned by Append when the store is at capacity.
	ErrStoreFull = errors.New("instance: store is full")
	// ErrNonFiniteTransform is returned by Seal when a model matrix contains NaN or Inf.
	ErrNonFiniteTransform = errors.New("instance: model matrix is not finite")
)

// DefaultParallelThreshold is the instance count above which Seal spreads work over the pool.
const DefaultParallelThreshold = 1024

// sealChunk is the number of instances handled by one pool task.
const sealChunk = 512

// newWorkerPool creates the private pool of a store built without WithWorkerPool.
var newWorkerPool = func() worker.DynamicWorkerPool {
	return worker.NewDynamicWorkerPool(max(runtime.NumCPU()-1, 1), 256, 1*time.Second)
}

// Store is a per-frame append-only buffer of model matrices.
//
// Between Reset and the next Reset an instance's index never changes. Seal freezes the contents
// and derives normal matrices; Bytes is only available after Seal, so a reader can never observe
// a partially written frame.
type Store interface {
	// Capacity returns the maximum number of instances per frame.
	//
	// Returns:
	//   - int: the capacity
	Capacity() int

	// Len returns the number of instances appended since the last Reset.
	//
	// Returns:
	//   - int: the instance count
	Len() int

	// Append adds a model matrix and returns its compact index.
	//
	// Parameters:
	//   - model: the instance's model matrix
	//
	// Returns:
	//   - uint32: the compact index, stable until Reset
	//   - error: ErrStoreSealed or ErrStoreFull
	Append(model mgl32.Mat4) (uint32, error)

	// Seal freezes the store and computes every normal matrix. Sealing an already sealed store
	// does nothing.
	//
	// Returns:
	//   - error: ErrNonFiniteTransform naming the first bad index; the store stays unsealed
	Seal() error

	// Sealed reports whether Seal has been called since the last Reset.
	//
	// Returns:
	//   - bool: true when sealed
	Sealed() bool

	// Model returns the model matrix at index i. i must be below Len.
	//
	// Parameters:
	//   - i: compact index
	//
	// Returns:
	//   - mgl32.Mat4: the model matrix
	Model(i uint32) mgl32.Mat4

	// NormalMatrix returns the normal matrix at index i, available after Seal.
	//
	// Parameters:
	//   - i: compact index
	//
	// Returns:
	//   - mgl32.Mat3: inverse-transpose of the upper 3x3, or the upper 3x3 when singular
	NormalMatrix(i uint32) mgl32.Mat3

	// Bytes returns the marshaled GPUInstanceData array. It returns nil before Seal.
	//
	// Returns:
	//   - []byte: Len() * 112 bytes
	Bytes() []byte

	// Reset empties the store for the next frame using it.
	Reset()

	// Close stops the worker pool the store created for itself. A pool given through
	// WithWorkerPool keeps running.
	Close()
}

type storeImpl struct {
	mu *sync.Mutex

	capacity          int
	parallelThreshold int
	pool              worker.DynamicWorkerPool
	ownsPool          bool
	logger            *zap.Logger

	models  []mgl32.Mat4
	normals []mgl32.Mat3
	bytes   []byte
	sealed  bool
}

var _ Store = &storeImpl{}

// NewStore creates a Store with room for capacity instances. Without WithWorkerPool a private
// pool sized to the CPU count is created the first time Seal needs one, and Close stops it.
//
// Parameters:
//   - capacity: maximum instances per frame
//   - opts: builder options
//
// Returns:
//   - Store: the store
func NewStore(capacity int, opts ...StoreBuilderOption) Store {
	s := &storeImpl{
		mu:                &sync.Mutex{},
		capacity:          capacity,
		parallelThreshold: DefaultParallelThreshold,
		logger:            zap.NewNop(),
		models:            make([]mgl32.Mat4, 0, capacity),
		normals:           make([]mgl32.Mat3, 0, capacity),
		bytes:             make([]byte, 0, capacity*GPUInstanceDataSize),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *storeImpl) Capacity() int {
	return s.capacity
}

func (s *storeImpl) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.models)
}

func (s *storeImpl) Append(model mgl32.Mat4) (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sealed {
		return 0, ErrStoreSealed
	}
	if len(s.models) >= s.capacity {
		return 0, fmt.Errorf("%w: capacity %d", ErrStoreFull, s.capacity)
	}
	s.models = append(s.models, model)
	return uint32(len(s.models) - 1), nil
}

func (s *storeImpl) Seal() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sealed {
		return nil
	}

	n := len(s.models)
	s.normals = s.normals[:n]
	s.bytes = s.bytes[:n*GPUInstanceDataSize]

	if n <= s.parallelThreshold {
		if bad := s.sealRange(0, n); bad >= 0 {
			return fmt.Errorf("%w: index %d", ErrNonFiniteTransform, bad)
		}
		s.sealed = true
		return nil
	}

	if s.pool == nil {
		s.pool = newWorkerPool()
		s.ownsPool = true
	}
	// Workers are reused across frames; the WaitGroup is the per-frame barrier.
	var wg sync.WaitGroup
	chunks := (n + sealChunk - 1) / sealChunk
	firstBad := make([]int, chunks)
	for id := range chunks {
		start := id * sealChunk
		end := min(start+sealChunk, n)
		wg.Add(1)
		s.pool.SubmitTask(worker.Task{
			ID: id,
			Do: func() (any, error) {
				defer wg.Done()
				firstBad[id] = s.sealRange(start, end)
				return nil, nil
			},
		})
	}
	wg.Wait()
	for _, bad := range firstBad {
		if bad >= 0 {
			return fmt.Errorf("%w: index %d", ErrNonFiniteTransform, bad)
		}
	}
	s.logger.Debug("instance store sealed", zap.Int("instances", n), zap.Int("tasks", chunks))
	s.sealed = true
	return nil
}

// sealRange derives normal matrices and marshals instances [start, end), returning the first
// index whose model matrix is not finite or -1. Ranges never overlap, so concurrent calls write
// disjoint slice regions.
func (s *storeImpl) sealRange(start, end int) int {
	bad := -1
	for i := start; i < end; i++ {
		if bad < 0 && !common.IsFinite(s.models[i]) {
			bad = i
		}
		normal, _ := common.NormalMatrix(s.models[i])
		s.normals[i] = normal
		data := GPUInstanceData{Model: s.models[i], Normal: normal}
		data.MarshalInto(s.bytes[i*GPUInstanceDataSize : (i+1)*GPUInstanceDataSize])
	}
	return bad
}

func (s *storeImpl) Sealed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sealed
}

func (s *storeImpl) Model(i uint32) mgl32.Mat4 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.models[i]
}

func (s *storeImpl) NormalMatrix(i uint32) mgl32.Mat3 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.normals[i]
}

func (s *storeImpl) Bytes() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.sealed {
		return nil
	}
	return s.bytes
}

func (s *storeImpl) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.models = s.models[:0]
	s.normals = s.normals[:0]
	s.bytes = s.bytes[:0]
	s.sealed = false
}

func (s *storeImpl) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ownsPool {
		s.pool.Stop()
		s.pool = nil
		s.ownsPool = false
	}
}
