// schedlog.go - optional diagnostics for estimator restarts and vblank-wait failures
//
// Most of this codebase logs with bare fmt.Printf/fmt.Errorf throughout
// (see video_backend_ebiten.go's WaitForVSync, video_compositor.go's
// Composite error paths) rather than reaching for a structured logging
// library, so this module stays on the standard log package too. None of
// this is part of correctness: every call site here is best-effort and
// none of it sits on the per-frame hot path unless explicitly enabled.

package vsyncengine

import (
	"log"
	"sync/atomic"
)

var diagnosticsEnabled atomic.Bool

// EnableDiagnostics turns on estimator-restart and vblank-wait-failure
// logging.
// Off by default so production renderers never pay a log call on the hot
// path.
func EnableDiagnostics(on bool) {
	diagnosticsEnabled.Store(on)
}

func logRestart(fault *EstimatorFault) {
	if !diagnosticsEnabled.Load() {
		return
	}
	log.Printf("vsyncengine: %v", fault)
}

func logf(format string, args ...any) {
	if !diagnosticsEnabled.Load() {
		return
	}
	log.Printf("vsyncengine: "+format, args...)
}
