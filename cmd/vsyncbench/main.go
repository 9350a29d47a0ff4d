// vsyncbench - headless benchmark for the frame scheduler and hybrid
// sleep primitive, driven by a scripted vblank profile instead of a real
// display. Arrow keys nudge the tearline fraction live, the way a
// windowed demo's debug console would, without needing a window.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/term"

	vse "github.com/intuitionamiga/vsyncengine"
	"github.com/intuitionamiga/vsyncengine/platform/scripted"
)

func main() {
	mode := flag.String("mode", "heartbeat", "estimator under test: heartbeat, scanline")
	frames := flag.Int("frames", 600, "frames to simulate when -profile is not given")
	profilePath := flag.String("profile", "", "path to a Lua vblank-profile script (see platform/scripted)")
	tearline := flag.Float64("tearline", 0.92, "initial tearline fraction")
	monitorHz := flag.Float64("hz", 60.0, "nominal monitor refresh rate")
	debug := flag.Bool("debug", false, "log a scheduler snapshot once per second")
	flag.Parse()

	script := *profilePath
	var scriptSrc string
	if script == "" {
		scriptSrc = fmt.Sprintf("for i = 1, %d do frame(%d) end", *frames, int64(time.Second/time.Duration(*monitorHz)))
	} else {
		data, err := os.ReadFile(script)
		if err != nil {
			log.Fatalf("vsyncbench: reading profile: %v", err)
		}
		scriptSrc = string(data)
	}

	timeline, err := scripted.Load(scriptSrc)
	if err != nil {
		log.Fatalf("vsyncbench: %v", err)
	}

	ts := vse.NewTimeSource()
	highRes := vse.RaiseTimerResolution()
	defer vse.RestoreTimerResolution()
	sleeper := vse.NewHybridSleeper(ts, highRes)

	geometry := vse.NewScanoutGeometry(525, 480, 20)
	cfg := vse.SchedulerConfig{
		TicksPerSec:         ts.TicksPerSec(),
		TearlineFraction:    *tearline,
		RenderOverrunBuffer: 0.001,
		GpuSwapDelay:        0.0015,
	}

	var estimate *vse.VblankEstimate
	switch strings.ToLower(*mode) {
	case "scanline":
		cfg.SyncMode = vse.SyncInRenderThread
		state := vse.NewScanlineState(geometry, ts.TicksPerSec(), *monitorHz)
		estimate = &state.Estimate
	default:
		cfg.SyncMode = vse.SyncSeparateHeartbeat
		pivot := vse.NewPivotHullState()
		estimate = &pivot.Estimate
		go replayHeartbeat(timeline, ts, pivot)
	}

	scheduler := vse.NewFrameScheduler(cfg, geometry)

	restoreTerm, keys := startKeyWatcher()
	defer restoreTerm()

	stats := &vse.BenchStats{}
	var timing vse.FrameTiming
	deadline := time.Now().Add(time.Duration(len(timeline)) * time.Second / time.Duration(*monitorHz) * 2)
	lastDebug := time.Now()

	for time.Now().Before(deadline) {
		select {
		case k := <-keys:
			nudgeTearline(scheduler, &cfg, k)
		default:
		}

		now := ts.Now()
		decision := scheduler.Schedule(now, estimate, timing)
		if decision.ShouldWait {
			sleeper.AccurateSleepUntil(decision.TargetSwap, stats)
		}
		if estimate.Period() == 0 {
			time.Sleep(time.Millisecond)
		}
		if *debug && time.Since(lastDebug) >= time.Second {
			log.Println(scheduler.DebugSnapshot(estimate, timing))
			lastDebug = time.Now()
		}
	}

	report(ts, stats)
}

// replayHeartbeat feeds a scripted timeline into the pivot-hull estimator
// in real time, matching what a live heartbeat thread would do against an
// actual platform vblank wait.
func replayHeartbeat(timeline scripted.Timeline, ts vse.TimeSource, pivot *vse.PivotHullState) {
	for _, ev := range timeline {
		time.Sleep(time.Duration(ev.PeriodNanos))
		if ev.Outage {
			// A missed vblank: the real heartbeat thread would see
			// WaitForVblank return an error here and restart the
			// estimator; this replay just skips the sample instead of
			// calling PivotHullState's unexported reset directly.
			continue
		}
		pivot.Feed(ts.Now())
	}
}

// startKeyWatcher puts stdin into raw mode (when it is a terminal) and
// streams arrow-key bytes on the returned channel. The returned func
// restores the terminal; safe to call even if raw mode was never entered.
func startKeyWatcher() (func(), <-chan byte) {
	out := make(chan byte, 16)
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return func() {}, out
	}
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return func() {}, out
	}
	restore := func() { term.Restore(fd, oldState) }

	go func() {
		r := bufio.NewReader(os.Stdin)
		for {
			b, err := r.ReadByte()
			if err != nil {
				return
			}
			out <- b
		}
	}()
	return restore, out
}

// nudgeTearline interprets a raw-mode arrow-key escape sequence
// (ESC [ A = up, ESC [ B = down) as a tearline fraction adjustment.
var escState atomic.Int32

func nudgeTearline(scheduler *vse.FrameScheduler, cfg *vse.SchedulerConfig, b byte) {
	switch escState.Load() {
	case 0:
		if b == 0x1b {
			escState.Store(1)
		}
		return
	case 1:
		if b == '[' {
			escState.Store(2)
		} else {
			escState.Store(0)
		}
		return
	case 2:
		escState.Store(0)
		switch b {
		case 'A': // up
			cfg.TearlineFraction += 0.01
		case 'B': // down
			cfg.TearlineFraction -= 0.01
		default:
			return
		}
		if cfg.TearlineFraction < 0 {
			cfg.TearlineFraction = 0
		}
		if cfg.TearlineFraction > 1 {
			cfg.TearlineFraction = 1
		}
		scheduler.SetTearlineFraction(cfg.TearlineFraction)
	}
}

func report(ts vse.TimeSource, stats *vse.BenchStats) {
	toDuration := func(t vse.Tick) time.Duration {
		return time.Duration(vse.TicksToSeconds(ts, t) * float64(time.Second))
	}
	fmt.Printf("samples:       %d\n", stats.Samples)
	fmt.Printf("underruns:     %d\n", stats.UnderrunCount)
	fmt.Printf("worst overrun: %v\n", toDuration(stats.WorstOverrun))
	if stats.Samples > 0 {
		avg := vse.Tick(int64(stats.TotalOverrun) / int64(stats.Samples))
		fmt.Printf("mean overrun:  %v\n", toDuration(avg))
	}
}
