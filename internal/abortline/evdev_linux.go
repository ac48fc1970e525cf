//go:build linux

package abortline

import (
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"

	"golang.org/x/sys/unix"
)

const evKey = 0x01

// WatchEvdev reads a Linux evdev device and holds the line while the key
// with the given event code is down. This is the closest software stand-in
// for a physical abort switch: level-sensitive, independent of terminal
// focus. Blocks until ctx is done or the device read fails.
func WatchEvdev(ctx context.Context, line *Line, devicePath string, keyCode uint16, logger *slog.Logger) error {
	fd, err := unix.Open(devicePath, unix.O_RDONLY, 0)
	if err != nil {
		return fmt.Errorf("open %s: %w", devicePath, err)
	}
	defer unix.Close(fd)

	logger.Info("abort switch armed", "device", devicePath, "code", keyCode)

	go func() {
		<-ctx.Done()
		// Unblocks the read below.
		_ = unix.Close(fd)
	}()

	held := false
	defer func() {
		if held {
			line.Release()
		}
	}()

	var p eventParser
	buf := make([]byte, 24*16)
	for {
		n, err := unix.Read(fd, buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read %s: %w", devicePath, err)
		}
		p.feed(buf[:n], func(etype, code uint16, value int32) {
			if etype != evKey || code != keyCode {
				return
			}
			switch {
			case value > 0 && !held: // press or autorepeat
				held = true
				line.Hold()
				logger.Info("abort switch down")
			case value == 0 && held:
				held = false
				line.Release()
				logger.Info("abort switch up")
			}
		})
	}
}

// eventParser splits a byte stream into input_event records. The kernel
// struct is 24 bytes with a 64-bit timeval and 16 with a 32-bit one; the
// size is inferred from the first reads.
type eventParser struct {
	buf []byte
	sz  int
}

func (p *eventParser) feed(chunk []byte, cb func(etype, code uint16, value int32)) {
	p.buf = append(p.buf, chunk...)
	if p.sz == 0 {
		switch {
		case len(p.buf) >= 48 && len(p.buf)%24 == 0:
			p.sz = 24
		case len(p.buf) >= 32 && len(p.buf)%16 == 0:
			p.sz = 16
		case len(p.buf) >= 24:
			p.sz = 24
		}
	}
	for p.sz != 0 && len(p.buf) >= p.sz {
		ev := p.buf[:p.sz]
		p.buf = p.buf[p.sz:]
		var etype, code uint16
		var value int32
		if p.sz == 24 {
			etype = binary.LittleEndian.Uint16(ev[16:18])
			code = binary.LittleEndian.Uint16(ev[18:20])
			value = int32(binary.LittleEndian.Uint32(ev[20:24]))
		} else {
			etype = binary.LittleEndian.Uint16(ev[8:10])
			code = binary.LittleEndian.Uint16(ev[10:12])
			value = int32(binary.LittleEndian.Uint32(ev[12:16]))
		}
		cb(etype, code, value)
	}
}
