package log

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// RawLogger receives every byte crossing a wire connection, in both
// directions. The usb/ip server feeds it whole reads and writes, so one
// call is one TCP chunk, not one protocol message.
type RawLogger interface {
	// Log records one chunk. in marks bytes arriving from the attached
	// host, !in bytes sent back to it.
	Log(in bool, data []byte)
}

// NewRaw returns a RawLogger dumping hex lines to w. A nil w yields a
// logger that discards everything.
func NewRaw(w io.Writer) RawLogger {
	return &rawDumper{w: w}
}

// rawDumper serializes concurrent connections onto a single sink.
type rawDumper struct {
	mu sync.Mutex
	w  io.Writer
}

func (d *rawDumper) Log(in bool, data []byte) {
	if d.w == nil || len(data) == 0 {
		return
	}

	dir := "host<-"
	if in {
		dir = "host->"
	}
	stamp := time.Now().Format(time.DateTime)

	d.mu.Lock()
	defer d.mu.Unlock()
	fmt.Fprintf(d.w, "%s %s %4d  % x\n", stamp, dir, len(data), data)
}
