// Package abortline models the operator's abort input: a level-sensitive
// line the sequencer samples once per tick. Watchers hold the line while a
// physical key is down; one-shot sources (the control API) trigger it for a
// single sample.
package abortline

import "sync/atomic"

// Line is the shared abort line. Safe for concurrent use from any number of
// watchers and one sampler.
type Line struct {
	held    atomic.Int32
	trigger atomic.Bool
}

// Hold raises the line until a matching Release.
func (l *Line) Hold() {
	l.held.Add(1)
}

// Release undoes one Hold.
func (l *Line) Release() {
	l.held.Add(-1)
}

// Trigger raises the line for exactly one Sample.
func (l *Line) Trigger() {
	l.trigger.Store(true)
}

// Sample reads the line level, consuming a pending trigger.
func (l *Line) Sample() bool {
	if l.held.Load() > 0 {
		return true
	}
	return l.trigger.Swap(false)
}
