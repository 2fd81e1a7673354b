package cascade

import (
	"sync"
	"time"
)

// SchedulerMetrics tracks the statistics `finish(arg)` reports at
// verbosity tier 2 (§4.6 "Finish": "prints simulation time, wall time, and
// average virtual frequency"), plus open-loop batch sizing diagnostics.
// Trimmed down from the teacher's metrics.go: that file's P-Square latency
// percentile estimator (psquare.go) has no analogue here — Cascade has no
// per-task latency distribution to estimate, only a running tick/time
// counter — so this keeps the teacher's mutex-guarded snapshot-on-read
// shape without porting the percentile machinery.
type SchedulerMetrics struct {
	mu sync.Mutex

	startWall   time.Time
	ticks       uint64
	openLoopRuns uint64
	openLoopIters uint64
}

// NewSchedulerMetrics creates a metrics collector starting "now".
func NewSchedulerMetrics() *SchedulerMetrics {
	return &SchedulerMetrics{startWall: time.Now()}
}

// RecordTick increments the logical tick counter (§4.6 main loop, "Increment
// logical time").
func (m *SchedulerMetrics) RecordTick() {
	m.mu.Lock()
	m.ticks++
	m.mu.Unlock()
}

// RecordOpenLoopBatch records one open-loop call's completed iteration
// count, for average-frequency reporting.
func (m *SchedulerMetrics) RecordOpenLoopBatch(iters int) {
	m.mu.Lock()
	m.openLoopRuns++
	m.openLoopIters += uint64(iters)
	m.ticks += uint64(iters)
	m.mu.Unlock()
}

// MetricsSnapshot is a point-in-time read of SchedulerMetrics.
type MetricsSnapshot struct {
	Ticks          uint64
	WallTime       time.Duration
	AverageVirtualFrequencyHz float64
}

// Snapshot returns the current statistics, computing average virtual
// frequency as ticks / wall-clock-seconds-elapsed.
func (m *SchedulerMetrics) Snapshot() MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	wall := time.Since(m.startWall)
	freq := 0.0
	if secs := wall.Seconds(); secs > 0 {
		freq = float64(m.ticks) / secs
	}
	return MetricsSnapshot{Ticks: m.ticks, WallTime: wall, AverageVirtualFrequencyHz: freq}
}
