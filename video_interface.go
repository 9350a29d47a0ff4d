// video_interface.go - Video chip interface for Intuition Engine

/*
 ██▓ ███▄    █ ▄▄▄█████▓ █    ██  ██▓▄▄▄█████▓ ██▓ ▒█████   ███▄    █    ▓█████  ███▄    █   ▄████  ██▓ ███▄    █ ▓█████
▓██▒ ██ ▀█   █ ▓  ██▒ ▓▒ ██  ▓██▒▓██▒▓  ██▒ ▓▒▓██▒▒██▒  ██▒ ██ ▀█   █    ▓█   ▀  ██ ▀█   █  ██▒ ▀█▒▓██▒ ██ ▀█   █ ▓█   ▀
▒██▒▓██  ▀█ ██▒▒ ▓██░ ▒░▓██  ▒██░▒██▒▒ ▓██░ ▒░▒██▒▒██░  ██▒▓██  ▀█ ██▒   ▒███   ▓██  ▀█ ██▒▒██░▄▄▄░▒██▒▓██  ▀█ ██▒▒███
░██░▓██▒  ▐▌██▒░ ▓██▓ ░ ▓▓█  ░██░░██░░ ▓██▓ ░ ░██░▒██   ██░▓██▒  ▐▌██▒   ▒▓█  ▄ ▓██▒  ▐▌██▒░▓█  ██▓░██░▓██▒  ▐▌██▒▒▓█  ▄
░██░▒██░   ▓██░  ▒██▒ ░ ▒▒█████▓ ░██░  ▒██▒ ░ ░██░░ ████▓▒░▒██░   ▓██░   ░▒████▒▒██░   ▓██░░▒▓███▀▒░██░▒██░   ▓██░░▒████▒
░▓  ░ ▒░   ▒ ▒   ▒ ░░   ░▒▓▒ ▒ ▒ ░▓    ▒ ░░   ░▓  ░ ▒░▒░▒░ ░ ▒░   ▒ ▒    ░░ ▒░ ░░ ▒░   ▒ ▒  ░▒   ▒ ░▓  ░ ▒░   ▒ ▒ ░░ ▒░ ░
 ▒ ░░ ░░   ░ ▒░    ░    ░░▒░ ░ ░  ▒ ░    ░     ▒ ░  ░ ▒ ▒░ ░ ░░   ░ ▒░    ░ ░  ░░ ░░   ░ ▒░  ░   ░  ▒ ░░ ░░   ░ ▒░ ░ ░  ░
 ▒ ░   ░   ░ ░   ░       ░░░ ░ ░  ▒ ░  ░       ▒ ░░ ░ ░ ▒     ░   ░ ░       ░      ░   ░ ░ ░ ░   ░  ▒ ░   ░   ░ ░    ░
 ░           ░             ░      ░            ░      ░ ░           ░       ░  ░         ░       ░  ░           ░    ░  ░

(c) 2024 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/IntuitionEngine
License: GPLv3 or later
*/

package vsyncengine

import (
	"fmt"
	"time"
)

// VideoError provides detailed error context for video operations
type VideoError struct {
	Operation string // What operation was being attempted
	Details   string // Additional error context
	Err       error  // Underlying error if any
}

func (e *VideoError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("video %s failed: %s: %v", e.Operation, e.Details, e.Err)
	}
	return fmt.Sprintf("video %s failed: %s", e.Operation, e.Details)
}

// FrameSnapshot encapsulates the data needed to represent a complete frame
type FrameSnapshot struct {
	Buffer    []byte   // Raw frame buffer data
	Palette   []uint32 // Color palette if applicable
	Width     int      // Frame width in pixels
	Height    int      // Frame height in pixels
	Format    PixelFormat
	Timestamp time.Time // When the snapshot was taken
}

// DisplayConfig contains hardware-independent configuration
type DisplayConfig struct {
	Width       int
	Height      int
	Scale       int // Integer scaling factor for output
	RefreshRate int // Target refresh rate in Hz
	PixelFormat PixelFormat
	VSync       bool // Whether to sync frame updates to display refresh
	Fullscreen  bool
}

func ClampScale(s int) int {
	if s < 1 {
		return 1
	}
	if s > 4 {
		return 4
	}
	return s
}

// VideoOutput defines the minimal interface that backends must implement
type VideoOutput interface {
	// Lifecycle management
	Start() error
	Stop() error
	Close() error
	IsStarted() bool

	// Core display operations - kept minimal
	SetDisplayConfig(config DisplayConfig) error
	GetDisplayConfig() DisplayConfig
	UpdateFrame(buffer []byte) error // Takes raw RGBA pixels only

	// Timing and synchronization
	WaitForVSync() error
	GetFrameCount() uint64
	GetRefreshRate() int
}

type PixelFormat int

const (
	PixelFormatRGBA PixelFormat = iota
	PixelFormatRGB565
	PixelFormatPaletted
)

// VideoSource represents a video device that can provide frames to the compositor.
type VideoSource interface {
	GetFrame() []byte          // Returns current rendered frame (nil if disabled)
	IsEnabled() bool           // Whether this source is active
	GetLayer() int             // Z-order for compositing (higher = on top)
	GetDimensions() (w, h int) // Returns the frame dimensions
	SignalVSync()              // Called by compositor after frame sent
}

// KeyboardInput is implemented by video outputs that can forward keyboard bytes.
type KeyboardInput interface {
	SetKeyHandler(func(byte))
}

// ScanlineAware is implemented by video sources that support per-scanline rendering.
// This enables copper-style raster effects where register changes take effect
// at specific scanline positions.
type ScanlineAware interface {
	// StartFrame prepares for per-scanline rendering
	StartFrame()
	// ProcessScanline advances internal state to the given scanline,
	// rendering it with whatever register/raster state is current
	ProcessScanline(y int)
	// FinishFrame completes the frame and returns the rendered result
	FinishFrame() []byte
}

// CompositorManageable is implemented by video sources with independent render
// goroutines. The compositor sets the flag during scanline-aware rendering to
// prevent the render goroutine from racing with the compositor's scanline path.
//
// Protocol: compositor calls SetCompositorManaged(true), then WaitRenderIdle()
// to ensure any in-flight render tick has finished before scanline rendering.
type CompositorManageable interface {
	SetCompositorManaged(managed bool)
	WaitRenderIdle()
}

// HardResettable is implemented by video outputs that support F10 hard reset.
type HardResettable interface {
	SetHardResetHandler(func())
}

// Optional interfaces for enhanced functionality
type PaletteCapable interface {
	UpdatePalette(colors []uint32) error
	GetPalette() []uint32
	SetPaletteEntry(index int, color uint32) error
}

type TextureCapable interface {
	CreateTexture(width, height int, format PixelFormat) (int, error)
	UpdateTexture(id int, data []byte) error
	DeleteTexture(id int) error
	GetTextureCount() int
}

type SpriteCapable interface {
	UpdateSprites(data []byte) error
	EnableSprites(enable bool)
	GetSpriteCount() int
	SetSpritePosition(index int, x, y int) error
}

// Predefined video backend types
const (
	VIDEO_BACKEND_EBITEN = iota // Pure Go Ebiten backend
)

// NewVideoOutput creates a new video output instance using the specified backend
func NewVideoOutput(backend int) (VideoOutput, error) {
	switch backend {
	case VIDEO_BACKEND_EBITEN:
		return NewEbitenOutput()
	}
	return nil, &VideoError{
		Operation: "backend creation",
		Details:   fmt.Sprintf("unknown backend type: %d", backend),
	}
}

// ---------------------------------------------------------------------------
// External platform interfaces. These are consumed, never implemented, by
// the core estimators and scheduler; platform/ adapters supply them.
// ---------------------------------------------------------------------------

// VblankWaiter blocks until the next vertical blank. Driven by the
// heartbeat thread when the pivot-hull estimator is in use.
type VblankWaiter interface {
	WaitForVblank() error
}

// ScanlineSource reports the raster line currently being scanned out.
// Polled once per render frame when the scanline estimator is in use.
type ScanlineSource interface {
	GetScanline() (line uint32, inVBlank bool)
}

// RefreshRateSource reports the display's nominal refresh rate, read once
// at startup.
type RefreshRateSource interface {
	GetRefreshRateHz() int
}

// GPUTimestampSource is the GPU-side wall clock the timing ring
// queries. Handles are opaque integers owned by the ring; the adapter
// only needs to remember which query slot maps to which underlying
// GPU object.
type GPUTimestampSource interface {
	// QueryTimestamp issues a GPU timestamp query at the given handle.
	QueryTimestamp(handle int)
	// QueryResultAvailable reports whether the query's result has been
	// retrieved by the driver yet.
	QueryResultAvailable(handle int) bool
	// QueryResult returns the GPU-side wall clock in nanoseconds. Only
	// valid after QueryResultAvailable reports true.
	QueryResult(handle int) uint64
	// Flush forces submission of queued GPU commands so a timestamp query
	// cannot be silently deferred to the next vblank.
	Flush()
}
