package scripted

import (
	"testing"
	"time"
)

func TestLoad_FrameAndOutageAndScanline(t *testing.T) {
	script := `
		for i = 1, 3 do frame(16666667) end
		outage()
		scanline(16666667, 240, false)
	`
	timeline, err := Load(script)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(timeline) != 5 {
		t.Fatalf("expected 5 events, got %d", len(timeline))
	}
	for i := 0; i < 3; i++ {
		if timeline[i].PeriodNanos != 16_666_667 || timeline[i].Outage {
			t.Fatalf("event %d: expected a plain frame event, got %+v", i, timeline[i])
		}
	}
	if !timeline[3].Outage {
		t.Fatal("expected event 3 to be an outage")
	}
	last := timeline[4]
	if last.Scanline != 240 || last.InVBlank {
		t.Fatalf("expected scanline event with line 240 outside vblank, got %+v", last)
	}
}

func TestLoad_InvalidScript_ReturnsError(t *testing.T) {
	if _, err := Load("this is not lua("); err == nil {
		t.Fatal("expected an error for a malformed script")
	}
}

func TestSource_WaitForVblank_AdvancesClock(t *testing.T) {
	timeline, err := Load("frame(1000000) frame(2000000)")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	start := time.Unix(0, 0)
	s := NewSource(timeline, start)

	if err := s.WaitForVblank(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !s.Now().Equal(start.Add(time.Millisecond)) {
		t.Fatalf("expected clock to advance by 1ms, got %v", s.Now())
	}
	if s.Remaining() != 1 {
		t.Fatalf("expected 1 event remaining, got %d", s.Remaining())
	}
}

func TestSource_WaitForVblank_OutageReturnsError(t *testing.T) {
	timeline, err := Load("outage()")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	s := NewSource(timeline, time.Unix(0, 0))
	if err := s.WaitForVblank(); err == nil {
		t.Fatal("expected an error on an outage event")
	}
}

func TestSource_WaitForVblank_ExhaustedTimeline(t *testing.T) {
	s := NewSource(nil, time.Unix(0, 0))
	if err := s.WaitForVblank(); err == nil {
		t.Fatal("expected an error when the timeline is exhausted")
	}
}

func TestSource_GetScanline_ReportsLastEvent(t *testing.T) {
	timeline, err := Load("scanline(16666667, 100, true)")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	s := NewSource(timeline, time.Unix(0, 0))
	line, inVBlank := s.GetScanline()
	if line != 0 || !inVBlank {
		t.Fatalf("expected zero-value scanline before any wait, got (%d, %v)", line, inVBlank)
	}

	_ = s.WaitForVblank()
	line, inVBlank = s.GetScanline()
	if line != 100 || !inVBlank {
		t.Fatalf("expected (100, true) after replaying the event, got (%d, %v)", line, inVBlank)
	}
}
