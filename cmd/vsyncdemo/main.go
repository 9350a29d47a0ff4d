// vsyncdemo - windowed demonstration of the tear-free frame scheduler
//
// Renders a scrolling checkerboard test pattern with a visible tearline
// marker and drives it through the full render-thread/heartbeat pipeline:
// an Ebiten-backed VideoOutput, one of the two vblank estimators, the
// frame scheduler, and (when a Vulkan device is available) real GPU
// timestamp queries.
package main

import (
	"flag"
	"fmt"
	"image"
	"image/color"
	"log"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"golang.design/x/clipboard"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	vse "github.com/intuitionamiga/vsyncengine"
	"github.com/intuitionamiga/vsyncengine/platform/audioclock"
	"github.com/intuitionamiga/vsyncengine/platform/ebitenadapter"
	"github.com/intuitionamiga/vsyncengine/platform/vkquery"
)

func main() {
	mode := flag.String("mode", "heartbeat", "sync mode: none, doublebuffer, heartbeat, scanline")
	tearline := flag.Float64("tearline", 0.92, "tearline fraction, 0..1 past the vblank pulse")
	width := flag.Int("width", 640, "frame width")
	height := flag.Int("height", 480, "frame height")
	scale := flag.Int("scale", 1, "integer window scale")
	fullscreen := flag.Bool("fullscreen", false, "start fullscreen")
	monitorHz := flag.Float64("hz", 60.0, "nominal monitor refresh rate")
	debug := flag.Bool("debug", false, "enable estimator-restart and vblank-wait-failure logging")
	useAudioClock := flag.Bool("audioclock", false, "cross-check the vblank estimate against an independent audio-callback clock")
	flag.Parse()

	vse.EnableDiagnostics(*debug)

	output, err := vse.NewVideoOutput(vse.VIDEO_BACKEND_EBITEN)
	if err != nil {
		log.Fatalf("vsyncdemo: creating video output: %v", err)
	}

	if err := output.SetDisplayConfig(vse.DisplayConfig{
		Width:       *width,
		Height:      *height,
		Scale:       vse.ClampScale(*scale),
		RefreshRate: int(*monitorHz),
		PixelFormat: vse.PixelFormatRGBA,
		VSync:       true,
		Fullscreen:  *fullscreen,
	}); err != nil {
		log.Fatalf("vsyncdemo: applying display config: %v", err)
	}

	compositor := vse.NewVideoCompositor(output)
	pattern := newTestPattern(*width, *height, *tearline)
	compositor.RegisterSource(pattern)

	if err := output.Start(); err != nil {
		log.Fatalf("vsyncdemo: starting video output: %v", err)
	}
	if err := compositor.Start(); err != nil {
		log.Fatalf("vsyncdemo: starting compositor: %v", err)
	}

	// Active-line/porch split for a typical progressive-scan display.
	// ScanoutGeometry is a value: the scheduler and the scanline estimator
	// each keep their own copy, and the estimator's Refine calls adjust
	// only its copy, so the scheduler schedules against this
	// SyncToFirstActive value as given.
	geometry := vse.NewScanoutGeometry(525, *height, 20)
	adapter := ebitenadapter.New(output, geometry)

	ts := vse.NewTimeSource()
	highRes := vse.RaiseTimerResolution()
	defer vse.RestoreTimerResolution()
	sleeper := vse.NewHybridSleeper(ts, highRes)

	gpuSrc, gpuErr := vkquery.New()
	var timestampSource vse.GPUTimestampSource
	if gpuErr != nil {
		log.Printf("vsyncdemo: no Vulkan timestamp queries available (%v), falling back to CPU clock timing", gpuErr)
		timestampSource = newCPUClockSource(ts)
	} else {
		timestampSource = gpuSrc
	}
	ring := vse.NewGpuQueryRing(timestampSource, *monitorHz)

	syncMode, err := parseSyncMode(*mode)
	if err != nil {
		log.Fatalf("vsyncdemo: %v", err)
	}

	cfg := vse.SchedulerConfig{
		SyncMode:            syncMode,
		TicksPerSec:         ts.TicksPerSec(),
		TearlineFraction:    *tearline,
		RenderOverrunBuffer: 0.001,
		GpuSwapDelay:        0.0015,
	}
	scheduler := vse.NewFrameScheduler(cfg, geometry)

	var estimate *vse.VblankEstimate
	var scanlineState *vse.ScanlineState
	var scanlineSrc vse.ScanlineSource
	var closing atomic.Bool

	switch syncMode {
	case vse.SyncSeparateHeartbeat:
		pivot := vse.NewPivotHullState()
		estimate = &pivot.Estimate
		heartbeat := vse.NewHeartbeatLoop(adapter, ts, pivot, closing.Load)
		go heartbeat.Run()
	default:
		// SyncInRenderThread, plus SyncNone/SyncDoubleBuffer free-running:
		// the scanline estimator still publishes an estimate so the
		// tearline marker has something to draw against even in the modes
		// that don't gate a wait on it.
		scanlineState = vse.NewScanlineState(geometry, ts.TicksPerSec(), *monitorHz)
		estimate = &scanlineState.Estimate
		scanlineSrc = adapter
	}

	var audioRef *audioclock.Clock
	if *useAudioClock {
		audioRef, err = audioclock.New(48000)
		if err != nil {
			log.Printf("vsyncdemo: audio cross-check clock unavailable: %v", err)
			audioRef = nil
		} else {
			defer audioRef.Close()
		}
	}

	console := newDebugConsole(scheduler, estimate, ring, audioRef)
	output.(vse.KeyboardInput).SetKeyHandler(console.handleByte)

	hooks := &demoHooks{
		output:     output,
		compositor: compositor,
		pattern:    pattern,
		closing:    &closing,
	}

	loop := vse.NewRenderLoop(ts, sleeper, scheduler, ring, estimate, scanlineState, scanlineSrc, hooks, nil)
	loop.Run()
}

// parseSyncMode maps the -mode flag to a vse.SyncMode.
func parseSyncMode(s string) (vse.SyncMode, error) {
	switch strings.ToLower(s) {
	case "none":
		return vse.SyncNone, nil
	case "doublebuffer", "double-buffer":
		return vse.SyncDoubleBuffer, nil
	case "heartbeat", "pivothull", "pivot-hull":
		return vse.SyncSeparateHeartbeat, nil
	case "scanline":
		return vse.SyncInRenderThread, nil
	default:
		return 0, fmt.Errorf("unknown -mode %q (want none, doublebuffer, heartbeat, scanline)", s)
	}
}

// demoHooks implements vse.RenderHooks over the compositor and video
// output: each frame composites the test pattern and hands the result to
// the output's own Ebiten-driven swap.
type demoHooks struct {
	output     vse.VideoOutput
	compositor *vse.VideoCompositor
	pattern    *testPattern
	closing    *atomic.Bool
}

func (h *demoHooks) PollEvents() bool {
	return h.closing.Load() || !h.output.IsStarted()
}

func (h *demoHooks) RenderFrame() {
	h.pattern.advance()
	h.compositor.Composite()
}

func (h *demoHooks) SwapBuffers() {
	if err := h.output.WaitForVSync(); err != nil {
		log.Printf("vsyncdemo: vsync wait: %v", err)
	}
}

// --- CPU-clock GPU timestamp fallback -----------------------------------

// cpuClockSource implements vse.GPUTimestampSource without a GPU, for
// machines with no Vulkan timestamp-query support. Every query resolves
// synchronously against the same monotonic clock the scheduler itself
// uses, so it measures wall-clock render/swap cost rather than actual GPU
// execution time - a reasonable stand-in for a demo, not a substitute for
// vkquery.Source on a real timing-sensitive deployment.
type cpuClockSource struct {
	ts vse.TimeSource
	mu sync.Mutex
	at map[int]uint64
}

func newCPUClockSource(ts vse.TimeSource) *cpuClockSource {
	return &cpuClockSource{ts: ts, at: make(map[int]uint64)}
}

func (c *cpuClockSource) QueryTimestamp(handle int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.at[handle] = uint64(vse.TicksToSeconds(c.ts, c.ts.Now()) * 1e9)
}

func (c *cpuClockSource) QueryResultAvailable(handle int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.at[handle]
	return ok
}

func (c *cpuClockSource) QueryResult(handle int) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	v := c.at[handle]
	delete(c.at, handle)
	return v
}

func (c *cpuClockSource) Flush() {}

// --- test pattern source -----------------------------------------------

// testPattern is a scrolling checkerboard with a frame counter and a
// horizontal tearline marker, driven through the scanline-aware path so
// the marker can be positioned against a specific raster line.
type testPattern struct {
	mu        sync.Mutex
	width     int
	height    int
	tearline  atomic.Uint64 // fraction 0..1 in fixed-point billionths, see floatBits
	frame     uint64
	buf       []byte
	scanlineY int
}

func newTestPattern(width, height int, tearline float64) *testPattern {
	p := &testPattern{width: width, height: height, buf: make([]byte, width*height*4)}
	p.tearline.Store(floatBits(tearline))
	return p
}

func (p *testPattern) advance() {
	p.mu.Lock()
	p.frame++
	p.mu.Unlock()
}

func (p *testPattern) GetFrame() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]byte, len(p.buf))
	copy(out, p.buf)
	return out
}

func (p *testPattern) IsEnabled() bool           { return true }
func (p *testPattern) GetLayer() int             { return 0 }
func (p *testPattern) GetDimensions() (int, int) { return p.width, p.height }
func (p *testPattern) SignalVSync()              {}

// StartFrame resets the per-scanline cursor for a new FinishFrame pass.
func (p *testPattern) StartFrame() {
	p.mu.Lock()
	p.scanlineY = 0
	p.mu.Unlock()
}

// ProcessScanline renders one row of the checkerboard, highlighting the
// row nearest the current tearline fraction.
func (p *testPattern) ProcessScanline(y int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if y < 0 || y >= p.height {
		return
	}
	tearRow := int(floatFromBits(p.tearline.Load()) * float64(p.height))
	row := y * p.width * 4
	scroll := int(p.frame) % 32
	for x := 0; x < p.width; x++ {
		off := row + x*4
		cell := ((x+scroll)/16 + y/16) % 2
		var r, g, b byte
		if cell == 0 {
			r, g, b = 40, 40, 60
		} else {
			r, g, b = 90, 90, 140
		}
		if y == tearRow {
			r, g, b = 255, 64, 64
		}
		p.buf[off] = r
		p.buf[off+1] = g
		p.buf[off+2] = b
		p.buf[off+3] = 255
	}
	p.scanlineY = y
}

// FinishFrame overlays the frame counter and returns the rendered result.
func (p *testPattern) FinishFrame() []byte {
	p.mu.Lock()
	frame := p.frame
	out := make([]byte, len(p.buf))
	copy(out, p.buf)
	p.mu.Unlock()
	drawText(out, p.width, p.height, 8, 16, fmt.Sprintf("frame %d", frame))
	return out
}

// drawText blits s using the standard 7x13 bitmap font directly into an
// RGBA buffer, avoiding any dependency on the windowing layer for text.
func drawText(buf []byte, width, height, x, y int, s string) {
	img := &rgbaView{buf: buf, width: width, height: height}
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.RGBA{255, 255, 255, 255}),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}

// rgbaView is a minimal draw.Image over a raw RGBA byte slice, letting
// font.Drawer blit glyphs without a full image.RGBA copy.
type rgbaView struct {
	buf    []byte
	width  int
	height int
}

func (v *rgbaView) ColorModel() color.Model { return color.RGBAModel }
func (v *rgbaView) Bounds() image.Rectangle { return image.Rect(0, 0, v.width, v.height) }
func (v *rgbaView) At(x, y int) color.Color {
	if x < 0 || y < 0 || x >= v.width || y >= v.height {
		return color.RGBA{}
	}
	off := (y*v.width + x) * 4
	return color.RGBA{v.buf[off], v.buf[off+1], v.buf[off+2], v.buf[off+3]}
}
func (v *rgbaView) Set(x, y int, c color.Color) {
	if x < 0 || y < 0 || x >= v.width || y >= v.height {
		return
	}
	r, g, b, a := c.RGBA()
	off := (y*v.width + x) * 4
	v.buf[off] = byte(r >> 8)
	v.buf[off+1] = byte(g >> 8)
	v.buf[off+2] = byte(b >> 8)
	v.buf[off+3] = byte(a >> 8)
}

func floatBits(f float64) uint64     { return uint64(int64(f * 1e9)) }
func floatFromBits(b uint64) float64 { return float64(int64(b)) / 1e9 }

// --- debug console --------------------------------------------------

// debugConsole lets a paste of "tearline <fraction>" live-adjust the
// scheduler's tearline point, via the same keyboard byte stream the
// Ebiten backend already forwards for terminal-style input.
type debugConsole struct {
	scheduler *vse.FrameScheduler
	estimate  *vse.VblankEstimate
	ring      *vse.GpuQueryRing
	audio     *audioclock.Clock // nil unless -audioclock was passed
	line      []byte
	available bool
}

func newDebugConsole(scheduler *vse.FrameScheduler, estimate *vse.VblankEstimate, ring *vse.GpuQueryRing, audio *audioclock.Clock) *debugConsole {
	c := &debugConsole{scheduler: scheduler, estimate: estimate, ring: ring, audio: audio}
	if err := clipboard.Init(); err == nil {
		c.available = true
	}
	return c
}

// handleByte accumulates keystrokes into a line buffer; Ctrl-V (0x16)
// pulls the system clipboard in instead, so a pasted command doesn't have
// to be typed one byte at a time.
func (c *debugConsole) handleByte(b byte) {
	switch {
	case b == 0x16 && c.available: // Ctrl-V
		pasted := clipboard.Read(clipboard.FmtText)
		c.line = append(c.line, pasted...)
	case b == '\r' || b == '\n':
		c.execute(string(c.line))
		c.line = c.line[:0]
	case b == 0x08: // backspace
		if len(c.line) > 0 {
			c.line = c.line[:len(c.line)-1]
		}
	default:
		c.line = append(c.line, b)
	}
}

func (c *debugConsole) execute(cmd string) {
	fields := strings.Fields(cmd)
	if len(fields) == 1 && fields[0] == "debug" {
		fmt.Println(c.scheduler.DebugSnapshot(c.estimate, c.ring.Timing()))
		if c.audio != nil {
			fmt.Printf("audio cross-check: period=%dns ticks=%d\n", c.audio.Estimate().Period(), c.audio.Ticks())
		}
		return
	}
	if len(fields) == 1 && fields[0] == "audio" {
		if c.audio == nil {
			fmt.Println("audio cross-check clock not running, start with -audioclock")
			return
		}
		fmt.Printf("audio cross-check: period=%dns ticks=%d\n", c.audio.Estimate().Period(), c.audio.Ticks())
		return
	}
	if len(fields) != 2 || fields[0] != "tearline" {
		return
	}
	f, err := strconv.ParseFloat(fields[1], 64)
	if err != nil || f < 0 || f > 1 {
		return
	}
	c.scheduler.SetTearlineFraction(f)
}
