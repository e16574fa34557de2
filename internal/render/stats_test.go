package render

import (
	"testing"
	"time"
)

func TestStats_SnapshotPercentiles(t *testing.T) {
	stats := NewStats(time.Hour)
	for _, ms := range []int64{100, 200, 300, 400, 500} {
		stats.Record(OpDocx, time.Duration(ms)*time.Millisecond)
	}

	snap := stats.Snapshot().Operations[OpDocx]
	want := LatencySnapshot{Count: 5, MinMs: 100, MaxMs: 500, AvgMs: 300, P50Ms: 300, P95Ms: 480, P99Ms: 496}
	if snap != want {
		t.Fatalf("snapshot = %+v, want %+v", snap, want)
	}
}

func TestStats_PrunesExpiredSamples(t *testing.T) {
	now := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)
	stats := NewStats(time.Minute)
	stats.now = func() time.Time { return now }

	stats.Record(OpPDFForm, 100*time.Millisecond)
	now = now.Add(2 * time.Minute)
	if got := stats.Snapshot().Operations[OpPDFForm].Count; got != 0 {
		t.Fatalf("count after window = %d, want 0", got)
	}

	stats.Record(OpPDFForm, 200*time.Millisecond)
	snap := stats.Snapshot().Operations[OpPDFForm]
	if snap.Count != 1 || snap.MinMs != 200 || snap.MaxMs != 200 {
		t.Fatalf("snapshot = %+v", snap)
	}
}

func TestStats_FailuresAndNegativeDurations(t *testing.T) {
	stats := NewStats(0)
	stats.Record(OpValidate, -5*time.Millisecond)
	stats.Fail(OpDocx)
	stats.Fail(OpDocx)

	snap := stats.Snapshot()
	if snap.WindowSeconds != 3600 {
		t.Errorf("WindowSeconds = %d", snap.WindowSeconds)
	}
	if got := snap.Operations[OpValidate]; got.Count != 1 || got.MinMs != 0 {
		t.Errorf("validate = %+v, want one clamped sample", got)
	}
	if snap.Failures[OpDocx] != 2 {
		t.Errorf("failures = %v", snap.Failures)
	}
}
