package printer

import "inkpad/device/pokkenpad"

// Blank-skip geometry. A jump advances the cursor 4 cells in one tick,
// consuming the 8 sweep counts those cells would have taken (any aligned
// 8-count body window holds 4 horizontal moves plus vertically cancelling
// 2 down + 2 up), and commits only after seeing a 5-cell white window on
// both pair rows. No jump starts past counter 631, which keeps the window
// on the canvas and the turnaround unperturbed.
const (
	skipJump    = 4
	skipWindow  = 4 // lookahead offsets 0..skipWindow from the cursor
	skipAdvance = 7 // counter advance on top of the step already counted
	skipGuard   = 631
)

// skipBlanks replaces the just-computed single step with an analog jump
// when the sweep ahead is blank. The jump deflects the primary axis fully
// and the secondary axis by one; the secondary sign alternates between
// jumps so no vertical bias accumulates (both axes must leave center for
// the host to register a move at all). The next tick becomes a forced
// pause: counter handed back, sticks centered, hat suppressed. Only exact
// tick-to-sample timing keeps the modeled cursor and the host cursor
// together across jumps; with anything less they silently diverge.
func (p *Printer) skipBlanks(r *pokkenpad.Report) {
	if p.pendingStops > 0 {
		p.pendingStops--
		p.cmd--
		r.Hat = pokkenpad.HatCenter
		return
	}
	if p.cmd > skipGuard || p.img == nil {
		return
	}

	xdir := 1
	if !p.sweepRight() {
		xdir = -1
	}
	ydir := 1
	if p.cursor.Y%2 == 1 {
		ydir = -1
	}
	for i := 0; i <= skipWindow; i++ {
		x := p.cursor.X + i*xdir
		if p.img.Pixel(x, p.cursor.Y) || p.img.Pixel(x, p.cursor.Y+ydir) {
			return
		}
	}

	r.Hat = pokkenpad.HatCenter
	if xdir > 0 {
		r.LX = pokkenpad.StickMax
	} else {
		r.LX = pokkenpad.StickMin
	}
	r.LY = uint8(int(pokkenpad.StickCenter) + int(p.balance))
	p.balance = -p.balance
	p.cmd += skipAdvance
	p.cursor.X += skipJump * xdir
	p.pendingStops = 1
}
