package vsyncengine

import "testing"

func TestTickDelta_Signed(t *testing.T) {
	if got := TickDelta(10, 3); got != 7 {
		t.Fatalf("expected 7, got %d", got)
	}
	if got := TickDelta(3, 10); got != -7 {
		t.Fatalf("expected -7, got %d", got)
	}
}

func TestTick_Before(t *testing.T) {
	if !Tick(3).Before(Tick(10)) {
		t.Fatal("expected 3 before 10")
	}
	if Tick(10).Before(Tick(3)) {
		t.Fatal("expected 10 not before 3")
	}
}

type stubTimeSource struct {
	ticksPerSec int64
}

func (s stubTimeSource) Now() Tick          { return 0 }
func (s stubTimeSource) TicksPerSec() int64 { return s.ticksPerSec }

func TestSecondsToTicks_RoundTrip(t *testing.T) {
	ts := stubTimeSource{ticksPerSec: 1_000_000_000}
	got := SecondsToTicks(ts, 0.5)
	if got != 500_000_000 {
		t.Fatalf("expected 500000000 ticks, got %d", got)
	}
	back := TicksToSeconds(ts, got)
	if back != 0.5 {
		t.Fatalf("expected 0.5 seconds back, got %v", back)
	}
}

func TestNewTimeSource_NonNil(t *testing.T) {
	if NewTimeSource() == nil {
		t.Fatal("expected a platform default TimeSource")
	}
}
