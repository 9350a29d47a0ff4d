// vblankestimate.go - the published (phase, period) pair

package vsyncengine

import "sync/atomic"

// VblankEstimate is the only state shared between the render thread and
// the heartbeat thread: two relaxed atomics, phase and period, in ticks.
// Both the pivot-hull estimator and the scanline estimator
// publish into the same shape, so the scheduler never needs to know
// which one is feeding it.
type VblankEstimate struct {
	phase  atomic.Int64
	period atomic.Int64
}

// Publish stores phase before period, matching the estimators' update
// order. The two stores are separate atomics, so a reader that loads phase
// then period (as FrameScheduler.Schedule does) while a Publish is in
// flight can pair an old phase with a new period or a new phase with an
// old period.
func (v *VblankEstimate) Publish(phase, period Tick) {
	v.phase.Store(int64(phase))
	v.period.Store(int64(period))
}

// Phase returns the last published vblank phase.
func (v *VblankEstimate) Phase() Tick {
	return Tick(v.phase.Load())
}

// Period returns the last published vblank period.
func (v *VblankEstimate) Period() Tick {
	return Tick(v.period.Load())
}
