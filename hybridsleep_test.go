package vsyncengine

import "testing"

func TestHybridSleeper_SleepAtMost_SkipsBelowOverrun(t *testing.T) {
	h := NewHybridSleeper(NewTimeSource(), true)
	if h.SleepAtMost(1) {
		t.Fatal("expected SleepAtMost to skip a budget below the expected overrun")
	}
}

func TestHybridSleeper_AccurateSleepUntil_PastDeadline(t *testing.T) {
	h := NewHybridSleeper(NewTimeSource(), true)
	var stats BenchStats
	past := h.ts.Now() - Tick(h.ts.TicksPerSec())
	h.AccurateSleepUntil(past, &stats)
	if stats.Samples != 1 {
		t.Fatalf("expected one sample recorded, got %d", stats.Samples)
	}
	if stats.UnderrunCount != 1 {
		t.Fatalf("expected a past deadline to count as an underrun, got %d", stats.UnderrunCount)
	}
}

func TestHybridSleeper_AccurateSleepUntil_NearFuture(t *testing.T) {
	h := NewHybridSleeper(NewTimeSource(), true)
	var stats BenchStats
	deadline := h.ts.Now() + Tick(2_000_000) // 2ms
	h.AccurateSleepUntil(deadline, &stats)
	if stats.Samples != 1 {
		t.Fatalf("expected one sample recorded, got %d", stats.Samples)
	}
	if stats.UnderrunCount != 0 {
		t.Fatal("expected AccurateSleepUntil to reach the deadline, not stop short")
	}
	if h.ts.Now().Before(deadline) {
		t.Fatal("expected now to have reached or passed the deadline")
	}
}

func TestBenchStats_RecordNilReceiver(t *testing.T) {
	var stats *BenchStats
	// Must not panic: AccurateSleepUntil is called with a nil *BenchStats
	// from any caller that doesn't care about sleep-accuracy diagnostics.
	stats.record(5, false)
}
