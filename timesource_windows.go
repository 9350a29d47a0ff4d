//go:build windows

package vsyncengine

import (
	"sync"

	"golang.org/x/sys/windows"
)

// win32TimeSource wraps QueryPerformanceCounter/QueryPerformanceFrequency,
// the only monotonic counter Windows guarantees is free of TSC drift
// across cores.
type win32TimeSource struct {
	freq int64
}

func init() {
	var freq int64
	if err := windows.QueryPerformanceFrequency(&freq); err != nil || freq <= 0 {
		freq = 10_000_000 // 100ns resolution fallback, matches FILETIME units
	}
	defaultTimeSource = &win32TimeSource{freq: freq}
}

func (w *win32TimeSource) Now() Tick {
	var c int64
	windows.QueryPerformanceCounter(&c)
	return Tick(c)
}

func (w *win32TimeSource) TicksPerSec() int64 {
	return w.freq
}

var (
	winmm             = windows.NewLazySystemDLL("winmm.dll")
	procTimeBeginPer  = winmm.NewProc("timeBeginPeriod")
	procTimeEndPeriod = winmm.NewProc("timeEndPeriod")

	timerResOnce  sync.Mutex
	timerResRaised bool
)

// raiseTimerResolution requests 1ms coarse-sleep granularity from the
// scheduler via winmm's timeBeginPeriod. Windows' default ~15.6ms quantum
// is far too coarse for the hybrid sleep's coarse phase to land within the
// spin window reliably.
func raiseTimerResolution() bool {
	timerResOnce.Lock()
	defer timerResOnce.Unlock()
	if timerResRaised {
		return true
	}
	r, _, _ := procTimeBeginPer.Call(1)
	if r != 0 { // TIMERR_NOERROR == 0
		return false
	}
	timerResRaised = true
	return true
}

func restoreTimerResolution() {
	timerResOnce.Lock()
	defer timerResOnce.Unlock()
	if !timerResRaised {
		return
	}
	procTimeEndPeriod.Call(1)
	timerResRaised = false
}
