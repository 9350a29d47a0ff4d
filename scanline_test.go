package vsyncengine

import (
	"math"
	"testing"
	"time"
)

func testGeometry() ScanoutGeometry {
	return NewScanoutGeometry(525, 480, 20)
}

func TestScanline_Fallback_FirstTwoSamples(t *testing.T) {
	s := NewScanlineState(testGeometry(), testTicksPerSec, 60.0)
	s.Feed(0, 0, false)
	if s.Estimate.Period() == 0 {
		t.Fatal("expected the first sample to publish a fallback estimate")
	}
	first := s.Estimate.Period()
	if math.Abs(float64(first)-float64(testTicksPerSec)/60.0) > 1 {
		t.Fatalf("expected fallback period near nominal 1/60s, got %d", first)
	}
}

func TestScanline_PerfectSamples_ConvergesToPeriod(t *testing.T) {
	s := NewScanlineState(testGeometry(), testTicksPerSec, 60.0)
	const period = Tick(16_666_667)
	const totalScanlines = 525

	ts := Tick(0)
	for frame := 0; frame < 30; frame++ {
		for line := 0; line < totalScanlines; line += 20 {
			lineTime := ts + Tick(float64(line)*float64(period)/float64(totalScanlines))
			s.Feed(lineTime, uint32(line), line >= 480)
		}
		ts += period
	}

	got := s.Estimate.Period()
	if math.Abs(float64(got-period)) > float64(period)/20 {
		t.Fatalf("expected regression period within 5%% of %d, got %d", period, got)
	}
}

func TestScanline_RingEviction_BoundsMemory(t *testing.T) {
	s := NewScanlineState(testGeometry(), testTicksPerSec, 60.0)
	const period = Tick(16_666_667)
	ts := Tick(0)
	for i := 0; i < scanlineRingSize*3; i++ {
		s.Feed(ts, uint32(i%525), false)
		ts += period / 10
	}
	if s.elements > scanlineRingSize {
		t.Fatalf("expected ring to stay bounded at %d, got %d elements", scanlineRingSize, s.elements)
	}
}

// TestScanline_HighTickOffset_ConvergesExactly feeds samples starting from
// an absolute tick value close to the uint64 wraparound boundary, so the
// running sums (tick*tick, tick*unwrapped-scanline) individually overflow
// and wrap mod 2^64 many times over the course of the test. The regression
// must still converge to the same precision as it would starting from
// tick 0, since only the modular-exact combination the slope needs
// (n*sumTU - sumT*sumU, and the matching denominator) is ever read back.
func TestScanline_HighTickOffset_ConvergesExactly(t *testing.T) {
	s := NewScanlineState(testGeometry(), testTicksPerSec, 60.0)
	const period = Tick(16_666_667)
	const totalScanlines = 525

	// A negative Tick casts to a uint64 close to the top of its range, so
	// every sum touched below wraps mod 2^64 from the very first sample.
	ts := Tick(-int64(200 * time.Millisecond))
	for frame := 0; frame < 30; frame++ {
		for line := 0; line < totalScanlines; line += 20 {
			lineTime := ts + Tick(float64(line)*float64(period)/float64(totalScanlines))
			s.Feed(lineTime, uint32(line), line >= 480)
		}
		ts += period
	}

	got := s.Estimate.Period()
	if math.Abs(float64(got-period)) > float64(period)/20 {
		t.Fatalf("expected regression period within 5%% of %d near the wraparound boundary, got %d", period, got)
	}
}

func TestScanline_RunningSums_WrapWithoutLosingPrecision(t *testing.T) {
	s := NewScanlineState(testGeometry(), testTicksPerSec, 60.0)
	const period = Tick(16_666_667)
	const totalScanlines = 525

	// Start a few periods before zero, so the uint64 cast of ts begins near
	// the very top of the uint64 range and then crosses the wraparound
	// boundary partway through the run - exercising the subtract-on-evict
	// path on entries taken from both sides of the wrap, not just
	// add-on-insert.
	ts := -Tick(6 * period)
	for frame := 0; frame < scanlineRingSize*4; frame++ {
		for line := 0; line < totalScanlines; line += 60 {
			lineTime := ts + Tick(float64(line)*float64(period)/float64(totalScanlines))
			s.Feed(lineTime, uint32(line), line >= 480)
		}
		ts += period
	}

	got := s.Estimate.Period()
	if math.Abs(float64(got-period)) > float64(period)/20 {
		t.Fatalf("expected regression period within 5%% of %d after wrapping the running sums, got %d", period, got)
	}
}

func TestScanoutGeometry_RefineNudgesTowardObserved(t *testing.T) {
	g := NewScanoutGeometry(525, 480, 10)
	for i := 0; i < 20; i++ {
		g.Refine(20, false)
	}
	if g.SyncToFirstActive != 20 {
		t.Fatalf("expected SyncToFirstActive to converge to 20, got %d", g.SyncToFirstActive)
	}
}

func TestScanoutGeometry_RefineIgnoresVBlankSamples(t *testing.T) {
	g := NewScanoutGeometry(525, 480, 10)
	g.Refine(400, true)
	if g.SyncToFirstActive != 10 {
		t.Fatalf("expected a vblank-flagged sample to be ignored, got %d", g.SyncToFirstActive)
	}
}
