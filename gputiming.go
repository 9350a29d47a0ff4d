// gputiming.go - GPU timing ring and the frame-cost smoothing filter

/*
gputiming.go: a bounded ring of GPU timestamp query "slots" is fed by
Send and drained by DrainAvailable; draining updates RenderTime,
SwapTime and the smoothed frame cost used by the scheduler.

This is the 128-entry, eager-creation, swap-capable variant: queries are
allocated once up front and reused for the process lifetime, and a caller
that never needs a separate swap measurement can simply always emit
KindBoth instead.
*/

package vsyncengine

import "math"

// Kind identifies what a GPU timestamp pair measured.
type Kind int

const (
	KindRender Kind = iota
	KindSwap
	KindBoth
	KindInput
)

const (
	gpuRingSize = 128

	// smoothingHz is the exponential filter's time constant.
	smoothingHz = 5.0
	// smoothingFloorSeconds is the additive constant that keeps tiny render
	// times from being weighted to (near) zero.
	smoothingFloorSeconds = 0.004
	// discardGateFrames is how many consecutive good frames must elapse
	// before a single outlier sample is allowed to be discarded outright
	// rather than clamped.
	discardGateFrames = 64
	// discardRatio: a sample must exceed 2x the current smoothed value to
	// qualify as an outlier worth discarding.
	discardRatio = 2.0
	// frameTimeSingleFloor guards the BOTH renormalisation's division
	// against a zero FrameTimeSingle on the very first frame.
	frameTimeSingleFloor = 1e-6
)

// FrameTiming is the process-global GPU-measured timing state.
// Render-thread-only: no locking, documenting it as a single-writer
// field set instead of guarding every field with a mutex it doesn't need.
type FrameTiming struct {
	RenderTime           float64 // seconds
	SwapTime             float64 // seconds
	FrameTimeSingle      float64 // RenderTime + SwapTime
	FrameTimeSmoothed    float64 // exponentially filtered frame cost
	FramesSinceDiscarded int
}

// ringSlot is one entry of the GPU query ring.
type ringSlot struct {
	kind      Kind
	frameSlot int64 // logical frame-time slot this query belongs to, diagnostic only
	start     uint64
	haveStart bool
}

// GpuQueryRing is a bounded circular queue of GPU timestamp query
// handles. Handles are the ring's own slot indices - created once and
// reused forever, never allocated or freed on the steady-state path.
type GpuQueryRing struct {
	src GPUTimestampSource

	slots [gpuRingSize]ringSlot
	head  int64 // next slot to emit
	tail  int64 // oldest unretrieved slot

	frameTimeSlot int64 // logical frame-time slot counter (diagnostic)

	monitorHz float64
	timing    FrameTiming
}

// NewGpuQueryRing builds a ring over src, sized to absorb several frames
// of outstanding GPU query latency at monitorHz without stalling.
func NewGpuQueryRing(src GPUTimestampSource, monitorHz float64) *GpuQueryRing {
	return &GpuQueryRing{src: src, monitorHz: monitorHz}
}

// Send issues a GPU timestamp query for kind at the ring's head slot and
// advances head. For any kind other than KindInput, it also advances the
// logical frame-time slot and flushes the GPU command stream so the
// timestamp can't be silently deferred past the next vblank.
func (r *GpuQueryRing) Send(kind Kind) {
	idx := int(r.head % gpuRingSize)
	r.slots[idx] = ringSlot{kind: kind, frameSlot: r.frameTimeSlot}
	r.src.QueryTimestamp(idx)
	r.head++

	if kind != KindInput {
		r.frameTimeSlot++
		r.src.Flush()
	}
}

// DrainAvailable retrieves every ready query starting at tail, stopping at
// the first not-ready query. A false return from QueryResultAvailable is
// the only failure mode the interface exposes, and is treated as "not
// ready yet".
//
// Even ring positions record a start timestamp; odd positions record the
// matching end and trigger an update keyed by the slot's Kind. This
// assumes Send is always called start,end,start,end,... in lockstep,
// which the render thread's per-frame protocol guarantees.
func (r *GpuQueryRing) DrainAvailable() {
	for r.head-r.tail > 0 {
		idx := int(r.tail % gpuRingSize)
		if !r.src.QueryResultAvailable(idx) {
			return
		}
		ts := r.src.QueryResult(idx)

		if idx%2 == 0 {
			r.slots[idx].start = ts
			r.slots[idx].haveStart = true
		} else {
			startIdx := idx - 1
			if startIdx < 0 {
				startIdx = gpuRingSize - 1
			}
			start := r.slots[startIdx].start
			if r.slots[startIdx].haveStart && ts >= start {
				newTime := float64(ts-start) / 1e9
				r.apply(r.slots[idx].kind, newTime)
			}
		}
		r.tail++
	}
}

// apply implements the per-kind update rule and feeds the smoothing
// filter below.
func (r *GpuQueryRing) apply(kind Kind, newTime float64) {
	t := &r.timing
	switch kind {
	case KindRender:
		t.RenderTime = newTime
		t.FrameTimeSingle = t.RenderTime + t.SwapTime
	case KindSwap:
		t.SwapTime = newTime
		t.FrameTimeSingle = t.RenderTime + t.SwapTime
	case KindBoth:
		denom := t.FrameTimeSingle
		if denom < frameTimeSingleFloor {
			denom = frameTimeSingleFloor
		}
		ratio := newTime / denom
		t.RenderTime *= ratio
		t.SwapTime *= ratio
		t.FrameTimeSingle = newTime
	case KindInput:
		return
	}
	r.smooth(newTime)
}

// smooth applies the nonlinear filter to FrameTimeSmoothed, gated by a
// hard cap and an outlier-discard rule.
func (r *GpuQueryRing) smooth(sample float64) {
	t := &r.timing
	cap := 2.0 / r.monitorHz

	if sample > cap && t.FramesSinceDiscarded >= discardGateFrames && sample > discardRatio*t.FrameTimeSmoothed {
		t.FramesSinceDiscarded = 0
		return
	}

	if sample > cap {
		sample = cap
	}
	t.FramesSinceDiscarded++

	decay := math.Exp(-(sample + smoothingFloorSeconds) * smoothingHz)
	t.FrameTimeSmoothed = t.FrameTimeSmoothed*decay + sample*(1-decay)
}

// Timing returns a snapshot of the current smoothed timing state.
// Render-thread-only, like the rest of GpuQueryRing.
func (r *GpuQueryRing) Timing() FrameTiming {
	return r.timing
}
