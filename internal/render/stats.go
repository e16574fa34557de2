package render

import (
	"sort"
	"sync"
	"time"
)

type sample struct {
	at         time.Time
	durationMs int64
}

// LatencySnapshot aggregates the render latencies still inside the window.
type LatencySnapshot struct {
	Count int     `json:"count"`
	MinMs int64   `json:"min_ms"`
	MaxMs int64   `json:"max_ms"`
	AvgMs float64 `json:"avg_ms"`
	P50Ms float64 `json:"p50_ms"`
	P95Ms float64 `json:"p95_ms"`
	P99Ms float64 `json:"p99_ms"`
}

// StatsSnapshot holds one LatencySnapshot per operation plus failure
// counts since start.
type StatsSnapshot struct {
	WindowSeconds int64                      `json:"window_seconds"`
	Operations    map[string]LatencySnapshot `json:"operations"`
	Failures      map[string]int64           `json:"failures"`
}

// Stats keeps render latencies per operation within a rolling window.
type Stats struct {
	mu       sync.Mutex
	samples  map[string][]sample
	failures map[string]int64
	maxAge   time.Duration
	now      func() time.Time
}

// NewStats returns Stats keeping samples for maxAge, one hour when
// maxAge is not positive.
func NewStats(maxAge time.Duration) *Stats {
	if maxAge <= 0 {
		maxAge = time.Hour
	}
	return &Stats{
		samples:  make(map[string][]sample),
		failures: make(map[string]int64),
		maxAge:   maxAge,
		now:      time.Now,
	}
}

// Record adds one successful render of op.
func (s *Stats) Record(op string, d time.Duration) {
	ms := d.Milliseconds()
	if ms < 0 {
		ms = 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	s.pruneLocked(op, now)
	s.samples[op] = append(s.samples[op], sample{at: now, durationMs: ms})
}

// Fail counts one failed render of op.
func (s *Stats) Fail(op string) {
	s.mu.Lock()
	s.failures[op]++
	s.mu.Unlock()
}

// Snapshot aggregates every operation.
func (s *Stats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	out := StatsSnapshot{
		WindowSeconds: int64(s.maxAge / time.Second),
		Operations:    make(map[string]LatencySnapshot, len(s.samples)),
		Failures:      make(map[string]int64, len(s.failures)),
	}
	for op := range s.samples {
		s.pruneLocked(op, now)
		out.Operations[op] = aggregate(s.samples[op])
	}
	for op, n := range s.failures {
		out.Failures[op] = n
	}
	return out
}

func (s *Stats) pruneLocked(op string, now time.Time) {
	cutoff := now.Add(-s.maxAge)
	kept := s.samples[op][:0]
	for _, sm := range s.samples[op] {
		if !sm.at.Before(cutoff) {
			kept = append(kept, sm)
		}
	}
	s.samples[op] = kept
}

func aggregate(samples []sample) LatencySnapshot {
	if len(samples) == 0 {
		return LatencySnapshot{}
	}
	values := make([]int64, 0, len(samples))
	var sum int64
	for _, sm := range samples {
		values = append(values, sm.durationMs)
		sum += sm.durationMs
	}
	sort.Slice(values, func(i, j int) bool { return values[i] < values[j] })
	return LatencySnapshot{
		Count: len(values),
		MinMs: values[0],
		MaxMs: values[len(values)-1],
		AvgMs: float64(sum) / float64(len(values)),
		P50Ms: percentile(values, 50),
		P95Ms: percentile(values, 95),
		P99Ms: percentile(values, 99),
	}
}

// percentile interpolates linearly between the closest ranks.
func percentile(sorted []int64, pct float64) float64 {
	switch {
	case len(sorted) == 0:
		return 0
	case pct <= 0:
		return float64(sorted[0])
	case pct >= 100:
		return float64(sorted[len(sorted)-1])
	}
	index := float64(len(sorted)-1) * pct / 100
	lower := int(index)
	if lower+1 >= len(sorted) {
		return float64(sorted[lower])
	}
	lo, hi := float64(sorted[lower]), float64(sorted[lower+1])
	return lo + (hi-lo)*(index-float64(lower))
}
