// Package profiler samples frame rate, frame latency and Go heap statistics and reports them
// through a zap logger at a fixed interval.
package profiler

import (
	"runtime"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Snapshot is one reporting interval.
type Snapshot struct {
	Frames      int
	FPS         float64
	MaxFrame    time.Duration
	HeapMB      float64
	AllocRateMB float64
	SysMB       float64
	GCCount     uint32
	LastPause   time.Duration
	MaxPause    time.Duration
}

// Profiler tracks frame timing and memory statistics for performance monitoring.
// It is safe for concurrent use.
type Profiler struct {
	mu *sync.Mutex

	logger         *zap.Logger
	now            func() time.Time
	updateInterval time.Duration
	readMemStats   bool

	frameCount     int
	maxFrame       time.Duration
	lastTime       time.Time
	lastFrame      time.Time
	memStats       runtime.MemStats
	lastGCCount    uint32
	lastTotalAlloc uint64
	last           Snapshot
}

// NewProfiler creates a new Profiler. The update interval defaults to 1 second and output is
// discarded unless WithLogger is given.
//
// Parameters:
//   - opts: builder options
//
// Returns:
//   - *Profiler: the newly created profiler instance
func NewProfiler(opts ...ProfilerBuilderOption) *Profiler {
	p := &Profiler{
		mu:             &sync.Mutex{},
		logger:         zap.NewNop(),
		now:            time.Now,
		updateInterval: time.Second,
		readMemStats:   true,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.lastTime = p.now()
	p.lastFrame = p.lastTime
	return p
}

// Tick should be called once per completed frame.
// When the update interval has elapsed it logs FPS, the slowest frame, heap usage, allocation
// rate and GC pauses, and starts a new interval.
//
// Returns:
//   - Snapshot: the finished interval, zero when none finished
//   - bool: true if an interval finished this tick
func (p *Profiler) Tick() (Snapshot, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	currentTime := p.now()
	p.frameCount++
	p.maxFrame = max(p.maxFrame, currentTime.Sub(p.lastFrame))
	p.lastFrame = currentTime

	elapsed := currentTime.Sub(p.lastTime)
	if elapsed < p.updateInterval {
		return Snapshot{}, false
	}

	s := Snapshot{
		Frames:   p.frameCount,
		FPS:      float64(p.frameCount) / elapsed.Seconds(),
		MaxFrame: p.maxFrame,
	}
	if p.readMemStats {
		p.sampleMemory(&s, elapsed)
	}

	p.logger.Info("frame stats",
		zap.Int("frames", s.Frames),
		zap.Float64("fps", s.FPS),
		zap.Duration("max_frame", s.MaxFrame),
		zap.Float64("heap_mb", s.HeapMB),
		zap.Float64("alloc_rate_mb", s.AllocRateMB),
		zap.Uint32("gc", s.GCCount),
		zap.Duration("gc_last_pause", s.LastPause),
		zap.Duration("gc_max_pause", s.MaxPause),
		zap.Float64("sys_mb", s.SysMB),
	)

	p.frameCount = 0
	p.maxFrame = 0
	p.lastTime = currentTime
	p.last = s
	return s, true
}

func (p *Profiler) sampleMemory(s *Snapshot, elapsed time.Duration) {
	runtime.ReadMemStats(&p.memStats)
	s.HeapMB = float64(p.memStats.Alloc) / 1024 / 1024
	s.SysMB = float64(p.memStats.Sys) / 1024 / 1024
	s.AllocRateMB = float64(p.memStats.TotalAlloc-p.lastTotalAlloc) / 1024 / 1024 / elapsed.Seconds()

	// PauseNs is a circular buffer of the last 256 GC pauses
	gcCount := p.memStats.NumGC
	s.GCCount = gcCount
	if gcCount > 0 {
		s.LastPause = time.Duration(p.memStats.PauseNs[(gcCount-1)%256])
		start := p.lastGCCount
		if gcCount-start > 256 {
			start = gcCount - 256
		}
		for i := start; i < gcCount; i++ {
			s.MaxPause = max(s.MaxPause, time.Duration(p.memStats.PauseNs[i%256]))
		}
	}
	p.lastGCCount = gcCount
	p.lastTotalAlloc = p.memStats.TotalAlloc
}

// Last returns the most recently finished interval.
func (p *Profiler) Last() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}
