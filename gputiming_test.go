package vsyncengine

import "testing"

// fakeGPUSource is a deterministic stand-in for a real timestamp query
// device: QueryTimestamp records the handle's logical time and every
// query is immediately available.
type fakeGPUSource struct {
	clock uint64
	stamp map[int]uint64
}

func newFakeGPUSource() *fakeGPUSource {
	return &fakeGPUSource{stamp: make(map[int]uint64)}
}

func (f *fakeGPUSource) QueryTimestamp(handle int) {
	f.stamp[handle] = f.clock
}
func (f *fakeGPUSource) QueryResultAvailable(handle int) bool {
	_, ok := f.stamp[handle]
	return ok
}
func (f *fakeGPUSource) QueryResult(handle int) uint64 {
	v := f.stamp[handle]
	delete(f.stamp, handle)
	return v
}
func (f *fakeGPUSource) Flush() {}

func (f *fakeGPUSource) advance(ns uint64) { f.clock += ns }

func TestGpuQueryRing_RenderThenSwap_UpdatesTiming(t *testing.T) {
	src := newFakeGPUSource()
	r := NewGpuQueryRing(src, 60.0)

	r.Send(KindRender)
	src.advance(2_000_000) // 2ms render
	r.Send(KindRender)
	r.DrainAvailable()

	if r.Timing().RenderTime <= 0 {
		t.Fatalf("expected a positive render time, got %v", r.Timing().RenderTime)
	}
}

func TestGpuQueryRing_Both_RenormalisesProportionally(t *testing.T) {
	src := newFakeGPUSource()
	r := NewGpuQueryRing(src, 60.0)

	r.Send(KindRender)
	src.advance(4_000_000)
	r.Send(KindRender)
	r.DrainAvailable()
	renderTime := r.Timing().RenderTime

	r.Send(KindBoth)
	src.advance(8_000_000)
	r.Send(KindBoth)
	r.DrainAvailable()

	timing := r.Timing()
	if timing.FrameTimeSingle != 0.008 {
		t.Fatalf("expected FrameTimeSingle to take the new combined measurement, got %v", timing.FrameTimeSingle)
	}
	if timing.RenderTime <= renderTime {
		t.Fatal("expected RenderTime to scale up proportionally with the new combined measurement")
	}
}

func TestGpuQueryRing_Smooth_DiscardsOutlierAfterGate(t *testing.T) {
	src := newFakeGPUSource()
	r := NewGpuQueryRing(src, 60.0)

	for i := 0; i < discardGateFrames+5; i++ {
		r.Send(KindBoth)
		src.advance(10_000_000) // steady 10ms frames
		r.Send(KindBoth)
		r.DrainAvailable()
	}
	steady := r.Timing().FrameTimeSmoothed

	r.Send(KindBoth)
	src.advance(50_000_000) // one wild 50ms outlier, > 2x steady and above the 2/60s cap
	r.Send(KindBoth)
	r.DrainAvailable()

	if r.Timing().FrameTimeSmoothed != steady {
		t.Fatalf("expected the outlier to be discarded, smoothed moved from %v to %v", steady, r.Timing().FrameTimeSmoothed)
	}
}

func TestGpuQueryRing_DrainAvailable_WaitsForMatchingEnd(t *testing.T) {
	src := newFakeGPUSource()
	r := NewGpuQueryRing(src, 60.0)

	r.Send(KindRender) // start only, no matching end queried yet
	r.DrainAvailable()

	if r.Timing().RenderTime != 0 {
		t.Fatal("expected no timing update before the matching end timestamp lands")
	}
	if !r.slots[0].haveStart {
		t.Fatal("expected the start slot to record its timestamp")
	}
}
