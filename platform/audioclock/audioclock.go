// Package audioclock provides an optional debug-only cross-check heartbeat
// driven by oto's audio callback. The callback fires on its own dedicated
// OS thread at a fixed sample rate, giving a phase source that is
// completely independent of the video path - useful for spotting when the
// pivot-hull or scanline estimate has drifted, but never fed into the
// scheduler's own two atomics.
package audioclock

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/ebitengine/oto/v3"

	vse "github.com/intuitionamiga/vsyncengine"
)

// Clock drives an oto.Player with silence and records the wall-clock time
// of each Read callback, exposing it as its own VblankEstimate. It is
// never a substitute for the GPU- or scanline-driven estimate - it exists
// purely so a debug overlay can plot "what does an unrelated hardware
// clock think the period is" next to the real estimate.
type Clock struct {
	ctx    *oto.Context
	player *oto.Player

	mu         sync.Mutex
	lastTick   time.Time
	sampleRate int

	estimate vse.VblankEstimate
	ticks    atomic.Int64
}

// New starts a silent oto playback stream at sampleRate and begins
// recording Read callback timing into the returned Clock.
func New(sampleRate int) (*Clock, error) {
	op := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: 1,
		Format:       oto.FormatFloat32LE,
		BufferSize:   4,
	}
	ctx, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, err
	}
	<-ready

	c := &Clock{ctx: ctx, sampleRate: sampleRate}
	c.player = ctx.NewPlayer(c)
	c.player.Play()
	return c, nil
}

// Read implements io.Reader for oto.Player: it emits silence and, on every
// callback, timestamps the call and republishes the cross-check estimate.
func (c *Clock) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = 0
	}

	now := time.Now()
	c.mu.Lock()
	prev := c.lastTick
	c.lastTick = now
	c.mu.Unlock()

	c.ticks.Add(1)
	if !prev.IsZero() {
		period := vse.Tick(now.Sub(prev))
		phase := vse.Tick(now.UnixNano())
		c.estimate.Publish(phase, period)
	}
	return len(p), nil
}

// Estimate returns the cross-check (phase, period) pair. Read only by a
// debug overlay; the scheduler and estimators never see this value.
func (c *Clock) Estimate() *vse.VblankEstimate {
	return &c.estimate
}

// Ticks reports how many audio callbacks have fired, useful for a debug
// overlay to show the cross-check clock is actually running.
func (c *Clock) Ticks() int64 {
	return c.ticks.Load()
}

// Close stops playback and releases the oto context.
func (c *Clock) Close() {
	if c.player != nil {
		c.player.Close()
	}
}
