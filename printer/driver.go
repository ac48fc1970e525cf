package printer

import (
	"log/slog"
	"sync"

	"inkpad/device/pokkenpad"
)

// Driver serializes a Printer between concurrent poll sources and samples
// the abort line once per tick. It implements pokkenpad.ReportSource, so a
// pad polled by any transport drives the sequencer directly.
type Driver struct {
	mu     sync.Mutex
	p      *Printer
	abort  func() bool
	logger *slog.Logger
	phase  Phase
}

// NewDriver wraps p. abort may be nil when no abort input is wired; logger
// may be nil.
func NewDriver(p *Printer, abort func() bool, logger *slog.Logger) *Driver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Driver{p: p, abort: abort, logger: logger, phase: p.Phase()}
}

// NextReport runs one sequencer tick and logs phase transitions.
func (d *Driver) NextReport() pokkenpad.Report {
	d.mu.Lock()
	defer d.mu.Unlock()

	level := false
	if d.abort != nil {
		level = d.abort()
	}
	r := d.p.Tick(level)
	if ph := d.p.Phase(); ph != d.phase {
		d.logger.Info("phase transition", "from", d.phase.String(), "to", ph.String())
		d.phase = ph
	}
	return r
}

// Snapshot returns progress without advancing the sequencer.
func (d *Driver) Snapshot() Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.p.Snapshot()
}

// Reset restarts the sequencer from the controller pairing phase.
func (d *Driver) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.p.Reset()
	d.logger.Info("sequencer reset", "from", d.phase.String())
	d.phase = d.p.Phase()
}
