// scheduler.go - frame scheduler decision tree

package vsyncengine

import (
	"fmt"
	"math"
)

// SyncMode selects how the scheduler is fed its vblank estimate. It is a
// launch-time choice, not something that changes mid-run.
type SyncMode int

const (
	// SyncNone never waits for vblank: every frame is spam-swapped.
	SyncNone SyncMode = iota
	// SyncDoubleBuffer relies on the windowing layer's own vsync'd swap.
	SyncDoubleBuffer
	// SyncSeparateHeartbeat uses the pivot-hull estimator, fed by a
	// dedicated heartbeat thread blocking on the platform's vblank wait.
	SyncSeparateHeartbeat
	// SyncInRenderThread uses the scanline estimator, sampled
	// in-line by the render thread itself.
	SyncInRenderThread
)

func (m SyncMode) String() string {
	switch m {
	case SyncNone:
		return "none"
	case SyncDoubleBuffer:
		return "double_buffer"
	case SyncSeparateHeartbeat:
		return "separate_heartbeat"
	case SyncInRenderThread:
		return "sync_in_render_thread"
	default:
		return "unknown"
	}
}

// SchedulerConfig is the Frame Scheduler's launch-time tuning. Unlike the
// estimators, nothing here is recomputed from observed data - these are
// the knobs a platform adapter or a user-facing tearline slider sets.
type SchedulerConfig struct {
	SyncMode SyncMode

	// TicksPerSec mirrors the active TimeSource's frequency.
	TicksPerSec int64

	// TearlineFraction is the user-chosen point in the frame, expressed as
	// a fraction of total_scanlines past the vblank pulse, at which an
	// intentional mid-scan tear is allowed to land.
	TearlineFraction float64

	// RenderOverrunBuffer is added to frame_time_smoothed when computing
	// render_duration, covering variance the smoothing filter hasn't
	// caught up to yet.
	RenderOverrunBuffer float64

	// GpuSwapDelay is the fixed GPU-side latency between a swap being
	// submitted and it landing on screen, folded into both render_duration
	// and target_swap.
	GpuSwapDelay float64
}

// SchedulerDecision is what Schedule produces for the upcoming frame.
type SchedulerDecision struct {
	TargetRenderStart Tick
	TargetSwap        Tick
	ShouldWait        bool // wait-and-tear gate: sleep until TargetSwap before swapping
	MeasureGpu        bool // GPU-measurement gate: emit start/end timestamps this frame
	UsableEstimate    bool // false when the sanity gate rejected (phase, period)
}

// FrameScheduler implements the scheduling decision tree against a
// VblankEstimate published by either estimator. Render-thread-only.
type FrameScheduler struct {
	cfg  SchedulerConfig
	geom ScanoutGeometry

	lastTarget     Tick
	lastFrameStart Tick
	haveLastTarget bool
}

// NewFrameScheduler builds a scheduler over the given geometry.
func NewFrameScheduler(cfg SchedulerConfig, geom ScanoutGeometry) *FrameScheduler {
	return &FrameScheduler{cfg: cfg, geom: geom}
}

// SetTearlineFraction updates the user-chosen tearline point live, e.g.
// from a debug console or a slider bound to a running render loop.
// Render-thread-only, like the rest of FrameScheduler.
func (f *FrameScheduler) SetTearlineFraction(fraction float64) {
	f.cfg.TearlineFraction = fraction
}

// Schedule computes (target_render_start, target_swap) for the upcoming
// frame, given the current time, the published vblank estimate, and the
// render thread's currently smoothed GPU timing.
func (f *FrameScheduler) Schedule(now Tick, estimate *VblankEstimate, timing FrameTiming) SchedulerDecision {
	phase := estimate.Phase()
	period := estimate.Period()
	ticksPerSec := float64(f.cfg.TicksPerSec)

	if !f.sane(now, phase, period, ticksPerSec) {
		f.lastFrameStart = now
		f.lastTarget = now
		f.haveLastTarget = true
		return SchedulerDecision{
			TargetRenderStart: now,
			TargetSwap:        now,
			MeasureGpu:        true,
			UsableEstimate:    false,
		}
	}

	periodSeconds := float64(period) / ticksPerSec
	sinceLastStart := float64(TickDelta(now, f.lastFrameStart)) / ticksPerSec

	measureGpu := timing.FrameTimeSingle < periodSeconds ||
		timing.FrameTimeSmoothed < periodSeconds ||
		sinceLastStart < periodSeconds
	waitAndTear := measureGpu && timing.FrameTimeSmoothed < periodSeconds &&
		f.cfg.SyncMode != SyncNone

	renderDuration := timing.FrameTimeSmoothed + f.cfg.RenderOverrunBuffer + f.cfg.GpuSwapDelay
	offsetForLate := f.geom.OffsetForLateImage()
	tearlineAfterSync := f.cfg.TearlineFraction + offsetForLate

	rel := float64(TickDelta(now, phase))
	periodF := float64(period)
	k := math.Ceil((rel+renderDuration*ticksPerSec)/periodF - tearlineAfterSync)

	target := phase + Tick((tearlineAfterSync+k)*periodF)

	for f.haveLastTarget && float64(TickDelta(target, f.lastTarget)) < periodF/2 {
		k++
		target = phase + Tick((tearlineAfterSync+k)*periodF)
	}

	targetSwap := target - Tick((f.cfg.GpuSwapDelay+timing.SwapTime)*ticksPerSec)
	targetRenderStart := target - Tick(renderDuration*ticksPerSec)

	f.lastTarget = target
	f.haveLastTarget = true
	f.lastFrameStart = now

	return SchedulerDecision{
		TargetRenderStart: targetRenderStart,
		TargetSwap:        targetSwap,
		ShouldWait:        waitAndTear,
		MeasureGpu:        measureGpu,
		UsableEstimate:    true,
	}
}

// sane is the sanity gate: an estimate whose period is longer than a second,
// or whose phase is more than ten seconds from now, is treated as unusable.
func (f *FrameScheduler) sane(now, phase, period Tick, ticksPerSec float64) bool {
	if float64(period) > ticksPerSec {
		return false
	}
	if math.Abs(float64(TickDelta(now, phase))) > 10*ticksPerSec {
		return false
	}
	return true
}

// DebugSnapshot renders the scheduler's current state as a one-line,
// human-readable string: the active sync mode, phase, period, the most
// recently measured render/swap cost and the tearline fraction. Meant for
// an on-screen debug overlay, never parsed.
func (f *FrameScheduler) DebugSnapshot(estimate *VblankEstimate, timing FrameTiming) string {
	return fmt.Sprintf(
		"mode=%v phase=%d period=%d render=%.2fms swap=%.2fms tearline=%.2f",
		f.cfg.SyncMode, estimate.Phase(), estimate.Period(),
		timing.RenderTime*1000, timing.SwapTime*1000, f.cfg.TearlineFraction,
	)
}

// EndOfFrameKind selects the GPU end-timestamp Kind: SWAP when the
// render thread actually waited before swapping (isolating swap cost),
// BOTH otherwise (render and swap measured together, split later by the
// timing ring's proportional rule).
func EndOfFrameKind(waited bool) Kind {
	if waited {
		return KindSwap
	}
	return KindBoth
}
