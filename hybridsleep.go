// hybridsleep.go - hybrid sleep primitive (coarse kernel sleep + spin)

/*
Two operations:

  - SleepAtMost yields to the OS for at most ticks-expectedOverrun ticks.
  - AccurateSleepUntil combines that coarse sleep with a tight spin loop
    until now() >= deadline.

Sleeps here are never cancellable - there is no context.Context parameter.
A context-based API would invite callers to assume a cancelled sleep
shortens wake latency, which it cannot: the point of this primitive is
deterministic wake time, not interruptibility.
*/

package vsyncengine

import (
	"runtime"
	"time"
)

// expectedOverrunHighRes and expectedOverrunCoarse calibrate how much
// slack SleepAtMost reserves for the OS scheduler to actually wake the
// goroutine, depending on whether the platform's timer resolution has
// been raised.
const (
	expectedOverrunHighRes = 500 * time.Microsecond
	expectedOverrunCoarse  = 1 * time.Millisecond
)

// spinYieldEvery bounds how many spin-loop iterations run between calls to
// runtime.Gosched. Go exposes no PAUSE/YIELD CPU intrinsic, so the spin
// loop below yields the P periodically instead - frequently enough that a
// GOMAXPROCS=1 build still makes progress on other goroutines, rarely
// enough that the overhead doesn't blow the 50us accuracy budget.
const spinYieldEvery = 256

// HybridSleeper implements the hybrid sleep primitive against a TimeSource.
type HybridSleeper struct {
	ts                TimeSource
	expectedOverrun   Tick
	highResResolution bool
}

// NewHybridSleeper builds a sleeper calibrated against ts. highRes should
// reflect whether RaiseTimerResolution succeeded.
func NewHybridSleeper(ts TimeSource, highRes bool) *HybridSleeper {
	overrun := expectedOverrunCoarse
	if highRes {
		overrun = expectedOverrunHighRes
	}
	return &HybridSleeper{
		ts:                ts,
		expectedOverrun:   SecondsToTicks(ts, overrun.Seconds()),
		highResResolution: highRes,
	}
}

// RaiseTimerResolution requests the platform's finest coarse-sleep
// granularity. Call once around the render loop's startup; failure
// degrades accuracy but is not fatal.
func RaiseTimerResolution() bool {
	return raiseTimerResolution()
}

// RestoreTimerResolution undoes RaiseTimerResolution. Call on clean
// shutdown; a minimized/backgrounded process may never reach this call,
// which is acceptable.
func RestoreTimerResolution() {
	restoreTimerResolution()
}

// SleepAtMost yields to the OS for at most ticks-expectedOverrun ticks.
// Returns false and does nothing if ticks <= expectedOverrun.
func (h *HybridSleeper) SleepAtMost(ticks Tick) bool {
	budget := ticks - h.expectedOverrun
	if budget <= 0 {
		return false
	}
	d := time.Duration(TicksToSeconds(h.ts, budget) * float64(time.Second))
	if d <= 0 {
		return false
	}
	time.Sleep(d)
	return true
}

// BenchStats accumulates AccurateSleepUntil overrun samples. Zero value is
// ready to use; updates are atomic-free because only benchmark builds are
// expected to read it concurrently with writes from a single render
// thread.
type BenchStats struct {
	Samples       int
	TotalOverrun  Tick
	WorstOverrun  Tick
	UnderrunCount int
}

func (b *BenchStats) record(overrun Tick, wasUnderrun bool) {
	if b == nil {
		return
	}
	b.Samples++
	b.TotalOverrun += overrun
	if overrun > b.WorstOverrun {
		b.WorstOverrun = overrun
	}
	if wasUnderrun {
		b.UnderrunCount++
	}
}

// AccurateSleepUntil blocks until h.ts.Now() >= deadline, combining a
// coarse OS sleep with a spin loop for the remainder. If deadline is
// already in the past it returns immediately. stats may be nil; pass a
// live *BenchStats only from benchmark builds.
func (h *HybridSleeper) AccurateSleepUntil(deadline Tick, stats *BenchStats) {
	now := h.ts.Now()
	if !now.Before(deadline) {
		stats.record(now-deadline, true)
		return
	}

	remaining := deadline - now
	h.SleepAtMost(remaining)

	spins := 0
	for {
		now = h.ts.Now()
		if !now.Before(deadline) {
			break
		}
		spins++
		if spins%spinYieldEvery == 0 {
			runtime.Gosched()
		}
	}
	stats.record(now-deadline, false)
}
