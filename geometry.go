// geometry.go - ScanoutGeometry, the static per-display raster layout

package vsyncengine

// ScanoutGeometry describes the raster layout of the primary display,
// supplied by the platform adapter once at startup.
type ScanoutGeometry struct {
	TotalScanlines  int // rows per full raster cycle, including blanking
	ActiveScanlines int // rows actually displayed
	PorchScanlines  int // TotalScanlines - ActiveScanlines

	// SyncToFirstActive is the number of scanlines between the vsync pulse
	// and the first displayed line. On platforms that cannot report this
	// precisely up front it starts as a best guess and is refined by
	// Refine as scanline samples arrive.
	SyncToFirstActive int

	refineStep int // bounds how far a single observation may move the guess
}

// NewScanoutGeometry validates and normalises platform-reported geometry.
func NewScanoutGeometry(total, active, syncToFirstActive int) ScanoutGeometry {
	g := ScanoutGeometry{
		TotalScanlines:    total,
		ActiveScanlines:   active,
		PorchScanlines:    total - active,
		SyncToFirstActive: syncToFirstActive,
		refineStep:        1,
	}
	return g
}

// Refine nudges SyncToFirstActive toward observedScanline whenever the
// sample is not in vertical blank. It does not single out the first active
// line after a blank: every non-vblank observation passed in moves the
// value, so it tracks whatever scanlines the caller supplies. A single read
// can only move the stored value by refineStep, so one mis-report can't
// swing the geometry wildly - only a consistent run of observations
// relocates it.
func (g *ScanoutGeometry) Refine(observedScanline uint32, inVBlank bool) {
	if inVBlank {
		return
	}
	observed := int(observedScanline)
	if observed == g.SyncToFirstActive {
		return
	}
	if observed > g.SyncToFirstActive {
		g.SyncToFirstActive += g.refineStep
	} else {
		g.SyncToFirstActive -= g.refineStep
	}
}

// OffsetForLateImage returns the fraction of a frame period by which a
// late-arriving image is offset from the vblank pulse:
// (SyncToFirstActive - PorchScanlines) / TotalScanlines.
func (g ScanoutGeometry) OffsetForLateImage() float64 {
	if g.TotalScanlines == 0 {
		return 0
	}
	return float64(g.SyncToFirstActive-g.PorchScanlines) / float64(g.TotalScanlines)
}
