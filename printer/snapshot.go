package printer

// Snapshot is a read-only view of sequencer progress.
type Snapshot struct {
	Phase     Phase
	Cursor    Cursor
	PhaseTick int // logical ticks into the current sync phase
	Sweep     int // completed two-row sweeps
	Command   int // position inside the current sweep
	Echoes    int
	Polls     uint64 // Tick invocations so far
	Inked     int    // confirm presses issued while drawing
}

// Snapshot captures the current progress. Callers serialize with Tick; the
// Driver does this for its users.
func (p *Printer) Snapshot() Snapshot {
	return Snapshot{
		Phase:     p.phase,
		Cursor:    p.cursor,
		PhaseTick: p.phaseTick,
		Sweep:     p.sweeps,
		Command:   p.cmd,
		Echoes:    p.echoes,
		Polls:     p.polls,
		Inked:     p.inked,
	}
}

// Progress is the traversed fraction of the raster, 0..1. The sync phases
// count as zero.
func (s Snapshot) Progress() float64 {
	switch s.Phase {
	case PhaseDone:
		return 1
	case PhaseDraw:
		f := (float64(s.Sweep) + float64(s.Command)/float64(sweepLen)) / float64(sweepCount)
		if f > 1 {
			f = 1
		}
		return f
	}
	return 0
}
