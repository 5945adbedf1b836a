package pass

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/material"
)

// ErrArenaFull is returned when a frame needs more per-draw constant blocks than the arena holds.
var ErrArenaFull = errors.New("pass: draw constant arena is full")

// DrawArena packs per-draw constant blocks at material.DrawConstantsStride so each can be bound
// with a dynamic offset. One arena backs one frame slot's draw buffer.
type DrawArena struct {
	buf      []byte
	capacity int
	n        int
}

// NewDrawArena allocates room for capacity constant blocks.
func NewDrawArena(capacity int) *DrawArena {
	return &DrawArena{buf: make([]byte, capacity*material.DrawConstantsStride), capacity: capacity}
}

// Push appends a constant block.
//
// Parameters:
//   - dc: the block
//
// Returns:
//   - uint32: the block's byte offset, a multiple of the stride
//   - error: ErrArenaFull at capacity
func (a *DrawArena) Push(dc material.GPUDrawConstants) (uint32, error) {
	if a.n == a.capacity {
		return 0, fmt.Errorf("%w: %d blocks", ErrArenaFull, a.capacity)
	}
	off := a.n * material.DrawConstantsStride
	dc.MarshalInto(a.buf[off : off+material.DrawConstantsStride])
	a.n++
	return uint32(off), nil
}

// Bytes returns the packed blocks.
func (a *DrawArena) Bytes() []byte {
	return a.buf[:a.n*material.DrawConstantsStride]
}

// Len returns the number of packed blocks.
func (a *DrawArena) Len() int {
	return a.n
}

// Capacity returns the maximum number of blocks.
func (a *DrawArena) Capacity() int {
	return a.capacity
}

// Reset empties the arena for the next frame of its slot.
func (a *DrawArena) Reset() {
	a.n = 0
}
