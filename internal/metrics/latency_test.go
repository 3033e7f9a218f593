package metrics

import (
	"testing"
	"time"
)

func TestCalculateLatencySummaryEmpty(t *testing.T) {
	summary := CalculateLatencySummary(nil)
	if summary.Count != 0 || summary.AvgLatency() != 0 {
		t.Fatalf("expected a zero-value summary for no samples, got %+v", summary)
	}
}

func TestCalculateLatencySummaryBasic(t *testing.T) {
	samples := []time.Duration{
		10 * time.Millisecond,
		20 * time.Millisecond,
		30 * time.Millisecond,
		40 * time.Millisecond,
		50 * time.Millisecond,
	}
	summary := CalculateLatencySummary(samples)
	if summary.Count != 5 {
		t.Fatalf("got count %d", summary.Count)
	}
	if summary.Min != 10*time.Millisecond || summary.Max != 50*time.Millisecond {
		t.Fatalf("got min=%v max=%v", summary.Min, summary.Max)
	}
	if summary.P50 != 30*time.Millisecond {
		t.Fatalf("got p50=%v want 30ms", summary.P50)
	}
	if summary.AvgLatency() != 30*time.Millisecond {
		t.Fatalf("got avg=%v want 30ms", summary.AvgLatency())
	}
}

func TestRecorderObserveAndSnapshot(t *testing.T) {
	r := NewRecorder(2)
	r.Observe(10 * time.Millisecond)
	r.Observe(20 * time.Millisecond)
	r.Observe(30 * time.Millisecond) // evicts the oldest sample (cap=2)
	r.RecordHit()
	r.RecordHit()
	r.RecordMiss()
	r.RecordFault()

	snap := r.Snapshot()
	if snap.CacheHits != 2 || snap.CacheMisses != 1 || snap.CacheFaults != 1 {
		t.Fatalf("unexpected counters: %+v", snap)
	}
	if snap.Latency.Count != 2 {
		t.Fatalf("expected the bounded recorder to retain only 2 samples, got %d", snap.Latency.Count)
	}
}
