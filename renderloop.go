// renderloop.go - the render thread's per-frame loop

package vsyncengine

// RenderHooks is supplied by a platform backend. PollEvents returns true
// when the windowing layer has signalled the process should exit - the
// only way this loop terminates.
type RenderHooks interface {
	PollEvents() (shouldClose bool)
	RenderFrame()
	SwapBuffers()
}

// RenderLoop is the render thread: it owns the GPU query ring, the
// scanline estimator (when active), the scheduler, and the hybrid
// sleeper, and drives them through a fixed state machine - POLL,
// READ_ESTIMATE, CHECK_GATES, SCHEDULE, RENDER, an optional
// WAIT_UNTIL_SWAP, SWAP, EMIT_END, back to the top.
type RenderLoop struct {
	ts        TimeSource
	sleeper   *HybridSleeper
	scheduler *FrameScheduler
	ring      *GpuQueryRing
	estimate  *VblankEstimate

	scanline    *ScanlineState  // nil in separate-heartbeat mode
	scanlineSrc ScanlineSource  // nil in separate-heartbeat mode
	hooks       RenderHooks
	stats       *BenchStats // non-nil only in benchmark builds
}

// NewRenderLoop wires together a loop already owning its estimate. Pass a
// non-nil scanline/scanlineSrc pair only when the scheduler's SyncMode is
// SyncInRenderThread; otherwise a separate heartbeat thread feeds
// estimate directly via PivotHullState.
func NewRenderLoop(ts TimeSource, sleeper *HybridSleeper, scheduler *FrameScheduler, ring *GpuQueryRing, estimate *VblankEstimate, scanline *ScanlineState, scanlineSrc ScanlineSource, hooks RenderHooks, stats *BenchStats) *RenderLoop {
	return &RenderLoop{
		ts:          ts,
		sleeper:     sleeper,
		scheduler:   scheduler,
		ring:        ring,
		estimate:    estimate,
		scanline:    scanline,
		scanlineSrc: scanlineSrc,
		hooks:       hooks,
		stats:       stats,
	}
}

// Run blocks until the windowing layer signals exit.
func (r *RenderLoop) Run() {
	for {
		if r.hooks.PollEvents() {
			return
		}

		r.ring.DrainAvailable()

		if r.scanline != nil && r.scanlineSrc != nil {
			line, inVBlank := r.scanlineSrc.GetScanline()
			r.scanline.Feed(r.ts.Now(), line, inVBlank)
		}

		now := r.ts.Now()
		timing := r.ring.Timing()
		decision := r.scheduler.Schedule(now, r.estimate, timing)

		if decision.MeasureGpu {
			r.ring.Send(KindRender)
		}

		r.hooks.RenderFrame()

		if decision.ShouldWait && now.Before(decision.TargetSwap) {
			r.sleeper.AccurateSleepUntil(decision.TargetSwap, r.stats)
		}

		r.hooks.SwapBuffers()

		if decision.MeasureGpu {
			r.ring.Send(EndOfFrameKind(decision.ShouldWait))
		}
	}
}
