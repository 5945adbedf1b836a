package profiler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestTickReportsEachInterval(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	clock := &fakeClock{t: time.Unix(100, 0)}
	p := NewProfiler(WithLogger(zap.New(core)), WithClock(clock.now), WithInterval(time.Second), WithMemStats(false))

	for range 9 {
		clock.advance(100 * time.Millisecond)
		_, done := p.Tick()
		require.False(t, done)
	}
	clock.advance(100 * time.Millisecond)
	s, done := p.Tick()
	require.True(t, done)
	assert.Equal(t, 10, s.Frames)
	assert.InDelta(t, 10.0, s.FPS, 1e-9)
	assert.Equal(t, 100*time.Millisecond, s.MaxFrame)
	assert.Equal(t, s, p.Last())

	entries := logs.FilterMessage("frame stats").All()
	require.Len(t, entries, 1)
	assert.Equal(t, int64(10), entries[0].ContextMap()["frames"])
}

func TestTickTracksSlowestFrame(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	p := NewProfiler(WithClock(clock.now), WithInterval(time.Second), WithMemStats(false))

	clock.advance(10 * time.Millisecond)
	p.Tick()
	clock.advance(700 * time.Millisecond)
	p.Tick()
	clock.advance(400 * time.Millisecond)
	s, done := p.Tick()
	require.True(t, done)
	assert.Equal(t, 700*time.Millisecond, s.MaxFrame)

	// the next interval starts fresh
	clock.advance(time.Second)
	s, done = p.Tick()
	require.True(t, done)
	assert.Equal(t, 1, s.Frames)
	assert.Equal(t, time.Second, s.MaxFrame)
}

func TestTickSamplesMemory(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	p := NewProfiler(WithClock(clock.now), WithInterval(time.Millisecond))
	clock.advance(time.Second)
	s, done := p.Tick()
	require.True(t, done)
	assert.Positive(t, s.HeapMB)
	assert.Positive(t, s.SysMB)
}
