// Package printer implements the report sequencer that reproduces a fixed
// 1-bit raster on a host drawing canvas through a virtual gamepad.
//
// The host polls the pad at a fixed cadence and registers at most one input
// per canvas sample, dropping or coalescing reports in between. The
// sequencer therefore emits every logical command once and replays it
// verbatim for a configured number of polls (the echo) before computing the
// next one. On top of that it walks a boustrophedon sweep over the canvas,
// two rows at a time, pressing the confirm button whenever the cursor lands
// on a set pixel.
//
// The sequencer is a pure state machine: one Tick per poll, no I/O, no
// clocks, total for every reachable state. Callers own the cadence.
package printer

import (
	"time"

	"inkpad/device/pokkenpad"
)

// Host canvas dimensions. Rasters are scaled to this size before printing.
const (
	CanvasWidth  = 320
	CanvasHeight = 120
)

// One sweep serpentines across two adjacent rows: 639 single-cell moves,
// then a turnaround of two downward steps separated by pause ticks so the
// host's move acceleration never triggers. The counter wraps at 643.
const (
	sweepLen        = 643
	sweepTurnFirst  = 639
	sweepTurnSecond = 641
	sweepRows       = 2
	sweepCount      = CanvasHeight / sweepRows
)

// Refresh-alignment window: one extra replay of the last report per 25
// polls, injected at poll 13 of the window. Aligns 24 polls of commands
// (192 ms) to six frames of a 30 fps canvas (200 ms).
const (
	alignWindow   = 25
	alignInjectAt = 13
)

// Button schedule inside the sync phases, offsets from phase start.
const (
	shoulderAt1 = 500 * time.Millisecond
	shoulderAt2 = 1000 * time.Millisecond
	confirmAt1  = 1500 * time.Millisecond
	confirmAt2  = 2000 * time.Millisecond
	clearAt1    = 1500 * time.Millisecond
	clearAt2    = 3000 * time.Millisecond
)

// Image is the read-only raster to reproduce. Pixel reports whether (x, y)
// is set; out-of-range coordinates report false.
type Image interface {
	Pixel(x, y int) bool
}

// Phase is the sequencer's state tag.
type Phase uint8

const (
	// PhaseSyncController dismisses the host's pairing prompt.
	PhaseSyncController Phase = iota
	// PhaseSyncPosition homes the cursor and clears the canvas.
	PhaseSyncPosition
	// PhaseDraw runs the sweep.
	PhaseDraw
	// PhaseDone is terminal; only neutral reports follow.
	PhaseDone
)

func (p Phase) String() string {
	switch p {
	case PhaseSyncController:
		return "sync-controller"
	case PhaseSyncPosition:
		return "sync-position"
	case PhaseDraw:
		return "draw"
	case PhaseDone:
		return "done"
	}
	return "unknown"
}

// Printer holds the entire sequencer state. Not safe for concurrent use;
// wrap it in a Driver when multiple goroutines poll.
type Printer struct {
	cfg Config
	img Image

	phase     Phase
	phaseTick int // logical ticks inside the current sync phase
	cmd       int // sweep counter, wraps at sweepLen
	sweeps    int // completed two-row sweeps
	cursor    Cursor

	echoes int
	last   pokkenpad.Report

	polls        uint64 // Tick invocations, including echoes and injections
	reports      int    // position inside the alignment window
	pendingStops int
	balance      int8 // secondary-axis sign of the next analog jump

	abortPending bool // abort seen since the last computed command

	inked int
}

// New builds a sequencer for img. A nil img prints nothing (the sweep still
// runs, no pixel is ever inked). The zero Config selects reference timing.
func New(img Image, cfg Config) *Printer {
	return &Printer{
		cfg:     cfg.withDefaults(),
		img:     img,
		phase:   PhaseSyncController,
		last:    pokkenpad.Neutral(),
		balance: 1,
	}
}

// Config returns the normalized configuration in effect.
func (p *Printer) Config() Config {
	return p.cfg
}

// Reset returns the sequencer to the controller pairing phase, as if freshly
// built. The cumulative poll count survives; everything else starts over.
func (p *Printer) Reset() {
	p.phase = PhaseSyncController
	p.phaseTick = 0
	p.resetSweep()
	p.echoes = 0
	p.last = pokkenpad.Neutral()
	p.reports = 0
	p.inked = 0
	p.abortPending = false
}

// Phase returns the current state tag.
func (p *Printer) Phase() Phase {
	return p.phase
}

func (p *Printer) ticks(d time.Duration) int {
	return p.cfg.Ticks(d)
}

// Tick produces exactly one report. abort is the sampled level of the
// operator's abort line; it is latched across echo and injection polls and
// acted on by the next computed command, during PhaseDraw only.
func (p *Printer) Tick(abort bool) pokkenpad.Report {
	p.polls++
	p.abortPending = p.abortPending || abort

	if p.phase == PhaseDone {
		return pokkenpad.Neutral()
	}

	if p.cfg.FrameAlign {
		p.reports++
		if p.reports == alignInjectAt {
			return p.last
		}
		if p.reports == alignWindow {
			p.reports = 0
		}
	}

	if p.echoes > 0 {
		p.echoes--
		return p.last
	}

	abort = p.abortPending
	p.abortPending = false

	r := pokkenpad.Neutral()
	switch p.phase {
	case PhaseSyncController:
		p.syncController(&r)
	case PhaseSyncPosition:
		p.syncPosition(&r)
	case PhaseDraw:
		p.draw(&r, abort)
	}

	p.last = r
	if p.phase == PhaseDone {
		p.echoes = 0
	} else {
		p.echoes = p.cfg.Echoes
	}
	return r
}

// syncController holds the pad still while pressing L+R and then confirm at
// the offsets the host's pairing dialog expects.
func (p *Printer) syncController(r *pokkenpad.Report) {
	switch p.phaseTick {
	case p.ticks(shoulderAt1), p.ticks(shoulderAt2):
		r.Buttons |= pokkenpad.ButtonL | pokkenpad.ButtonR
	case p.ticks(confirmAt1), p.ticks(confirmAt2):
		r.Buttons |= pokkenpad.ButtonA
	}
	p.phaseTick++
	if p.phaseTick > p.ticks(p.cfg.ControllerSync) {
		p.phaseTick = 0
		p.cursor = Cursor{}
		p.phase = PhaseSyncPosition
	}
}

// syncPosition drags the cursor to the top-left corner by holding both
// stick axes at minimum, clicking the stick twice to clear the canvas.
func (p *Printer) syncPosition(r *pokkenpad.Report) {
	r.LX = pokkenpad.StickMin
	r.LY = pokkenpad.StickMin
	switch p.phaseTick {
	case p.ticks(clearAt1), p.ticks(clearAt2):
		r.Buttons |= pokkenpad.ButtonLClick
	}
	p.phaseTick++
	if p.phaseTick > p.ticks(p.cfg.PositionSync) {
		p.phaseTick = 0
		p.resetSweep()
		p.phase = PhaseDraw
	}
}

func (p *Printer) resetSweep() {
	p.cmd = 0
	p.sweeps = 0
	p.cursor = Cursor{}
	p.pendingStops = 0
	p.balance = 1
}

// draw emits one sweep step: hat direction from the sweep counter, cursor
// update, ink check at the new position.
//
// Move landings while heading right (mirrored heading left), numbered by
// sweep counter:
//
//	   3  4 ... 635  638
//	1  2  5 ... 636  637      639 relands on 637,
//	                 641      pauses at 640/642
//
// Odd counts step horizontally, even counts alternate down/up, and the
// turnaround at 639..642 drops two rows with a pause after each step so two
// same-direction moves never run back to back. Every cell of both rows is
// landed on except the sweep's first home cell.
func (p *Printer) draw(r *pokkenpad.Report, abort bool) {
	if abort {
		p.phaseTick = 0
		p.resetSweep()
		p.phase = PhaseSyncPosition
		return
	}

	if p.cmd == sweepLen {
		p.cmd = 0
		p.sweeps++
	}
	if p.sweeps == sweepCount {
		p.phase = PhaseDone
		return
	}

	switch {
	case p.cmd == sweepTurnFirst || p.cmd == sweepTurnSecond:
		r.Hat = pokkenpad.HatDown
	case p.cmd == sweepTurnFirst+1 || p.cmd == sweepTurnSecond+1:
		r.Hat = pokkenpad.HatCenter
	case p.cmd%2 == 1:
		if p.sweepRight() {
			r.Hat = pokkenpad.HatRight
		} else {
			r.Hat = pokkenpad.HatLeft
		}
	case p.cmd%4 == 0:
		r.Hat = pokkenpad.HatDown
	default:
		r.Hat = pokkenpad.HatUp
	}
	p.cmd++

	if p.cfg.SkipBlanks {
		p.skipBlanks(r)
	}

	p.cursor.move(r.Hat)
	if p.img != nil && p.img.Pixel(p.cursor.X, p.cursor.Y) {
		r.Buttons |= pokkenpad.ButtonA
		p.inked++
	}
}

// sweepRight reports the horizontal direction of the current row pair:
// rows 0..1 head right, 2..3 left, and so on.
func (p *Printer) sweepRight() bool {
	return p.cursor.Y%4 < 2
}
