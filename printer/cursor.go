package printer

import "inkpad/device/pokkenpad"

// Cursor is the modeled dot position on the remote canvas. It advances one
// cell per cardinal hat direction; diagonal moves are never produced by the
// sweep because they would ink two cells at once.
type Cursor struct {
	X int
	Y int
}

// move applies one hat step, clamped to the canvas. The sweep never tries
// to leave the canvas except on the very last turnaround.
func (c *Cursor) move(hat uint8) {
	switch hat {
	case pokkenpad.HatRight:
		if c.X < CanvasWidth-1 {
			c.X++
		}
	case pokkenpad.HatLeft:
		if c.X > 0 {
			c.X--
		}
	case pokkenpad.HatUp:
		if c.Y > 0 {
			c.Y--
		}
	case pokkenpad.HatDown:
		if c.Y < CanvasHeight-1 {
			c.Y++
		}
	}
}
