// Package ebitenadapter implements the engine's VblankWaiter,
// ScanlineSource and RefreshRateSource contracts on top of an
// Ebiten-backed VideoOutput. The windowed demo that uses it lives in
// cmd/vsyncdemo.
package ebitenadapter

import (
	"sync/atomic"
	"time"

	vse "github.com/intuitionamiga/vsyncengine"
)

// Adapter wraps a started Ebiten VideoOutput, turning its per-Draw
// vsync signal into the two platform contracts the estimators need.
// Ebiten does not expose raster position, so GetScanline is a time-based
// estimate: the fraction of the last observed frame period elapsed since
// the most recent vblank, projected onto the display's scanline count.
type Adapter struct {
	output   vse.VideoOutput
	geometry vse.ScanoutGeometry

	lastVblank  atomic.Int64 // unix nanos
	periodNanos atomic.Int64
}

// New wires an adapter around an already-constructed Ebiten output.
// geometry supplies the scanline counts used by GetScanline's estimate.
func New(output vse.VideoOutput, geometry vse.ScanoutGeometry) *Adapter {
	a := &Adapter{output: output, geometry: geometry}
	hz := output.GetRefreshRate()
	if hz <= 0 {
		hz = 60
	}
	a.periodNanos.Store(int64(time.Second) / int64(hz))
	return a
}

// WaitForVblank blocks until the Ebiten backend signals its next Draw,
// recording the wakeup time so GetScanline has a reference point.
func (a *Adapter) WaitForVblank() error {
	prev := a.lastVblank.Load()
	if err := a.output.WaitForVSync(); err != nil {
		return err
	}
	wake := time.Now()
	if prev != 0 {
		a.periodNanos.Store(wake.UnixNano() - prev)
	}
	a.lastVblank.Store(wake.UnixNano())
	return nil
}

// GetScanline estimates the current raster position from elapsed time
// since the last vblank. It is always imprecise relative to a true
// scanline counter - callers relying on it (the scanline estimator) are
// the intended consumer of that imprecision, not a correctness hazard.
func (a *Adapter) GetScanline() (line uint32, inVBlank bool) {
	period := a.periodNanos.Load()
	if period <= 0 {
		return 0, true
	}
	elapsed := time.Now().UnixNano() - a.lastVblank.Load()
	if elapsed < 0 {
		elapsed = 0
	}
	frac := float64(elapsed) / float64(period)
	if frac > 1 {
		frac -= float64(int64(frac))
	}
	total := a.geometry.TotalScanlines
	if total <= 0 {
		total = 525
	}
	scan := int(frac * float64(total))
	if scan >= a.geometry.ActiveScanlines {
		return uint32(scan), true
	}
	return uint32(scan), false
}

// GetRefreshRateHz reports the display's nominal refresh rate.
func (a *Adapter) GetRefreshRateHz() int {
	return a.output.GetRefreshRate()
}
