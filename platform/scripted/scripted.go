// Package scripted provides a fake vblank/scanline source driven by a
// small Lua script, for property tests that need to describe a jitter or
// outage profile ("sleep 10 periods after frame 200") without hand-rolling
// a bespoke mini-language. Scripts call back into a handful of host
// functions; the Go side interprets those calls as a timeline of frame
// periods to synthesize.
package scripted

import (
	"fmt"
	"time"

	lua "github.com/yuin/gopher-lua"
)

// Event is one synthesized frame: the simulated clock advances by
// PeriodNanos, and if Outage is true the frame is skipped entirely (as if
// the wait call had failed, or the vblank never fired).
type Event struct {
	PeriodNanos int64
	Outage      bool
	Scanline    uint32
	InVBlank    bool
}

// Timeline is a pre-computed sequence of Events produced by running a
// script once. A scripted Source replays it deterministically, which is
// what lets property tests reproduce a failure exactly.
type Timeline []Event

// Load runs a Lua script that builds a Timeline by calling the host
// functions `frame(period_ns)`, `outage()`, and `scanline(period_ns, line,
// in_vblank)`. Each call appends one Event.
//
// Example script:
//
//	for i = 1, 200 do frame(16666667) end
//	outage()
//	outage()
//	for i = 1, 50 do frame(16666667) end
func Load(script string) (Timeline, error) {
	L := lua.NewState()
	defer L.Close()

	var timeline Timeline

	L.SetGlobal("frame", L.NewFunction(func(L *lua.LState) int {
		period := int64(L.CheckNumber(1))
		timeline = append(timeline, Event{PeriodNanos: period})
		return 0
	}))
	L.SetGlobal("outage", L.NewFunction(func(L *lua.LState) int {
		timeline = append(timeline, Event{Outage: true})
		return 0
	}))
	L.SetGlobal("scanline", L.NewFunction(func(L *lua.LState) int {
		period := int64(L.CheckNumber(1))
		line := uint32(L.CheckNumber(2))
		inVBlank := L.CheckBool(3)
		timeline = append(timeline, Event{PeriodNanos: period, Scanline: line, InVBlank: inVBlank})
		return 0
	}))

	if err := L.DoString(script); err != nil {
		return nil, fmt.Errorf("scripted: lua script failed: %w", err)
	}
	return timeline, nil
}

// Source replays a Timeline as a VblankWaiter and ScanlineSource. WaitForVblank
// advances an internal virtual clock by the next event's period rather than
// sleeping in real time, so a 200-frame script runs in microseconds.
type Source struct {
	timeline Timeline
	pos      int
	clock    time.Time
}

// NewSource builds a replayable source starting at the given virtual time.
func NewSource(timeline Timeline, start time.Time) *Source {
	return &Source{timeline: timeline, clock: start}
}

// WaitForVblank advances to the next scripted event. Returns an error for
// an outage event, matching how a real platform reports a missed vblank.
func (s *Source) WaitForVblank() error {
	if s.pos >= len(s.timeline) {
		return fmt.Errorf("scripted: timeline exhausted")
	}
	ev := s.timeline[s.pos]
	s.pos++
	s.clock = s.clock.Add(time.Duration(ev.PeriodNanos))
	if ev.Outage {
		return fmt.Errorf("scripted: outage at event %d", s.pos-1)
	}
	return nil
}

// GetScanline reports the most recently replayed event's scanline fields.
func (s *Source) GetScanline() (uint32, bool) {
	if s.pos == 0 || s.pos > len(s.timeline) {
		return 0, true
	}
	ev := s.timeline[s.pos-1]
	return ev.Scanline, ev.InVBlank
}

// Now returns the current virtual clock, advanced by each WaitForVblank
// call - lets a test feed the same timeline into a TimeSource-shaped stub.
func (s *Source) Now() time.Time {
	return s.clock
}

// Remaining reports how many scripted events have not yet been replayed.
func (s *Source) Remaining() int {
	return len(s.timeline) - s.pos
}
