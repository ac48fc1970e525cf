// Package uart feeds reports to a hardware USB bridge over a serial line.
// Unlike the USB/IP transport, where vhci-hcd's interrupt polling clocks the
// sequencer, a serial bridge cannot poll us; the feeder self-clocks with a
// ticker at the configured poll interval so downstream timing assumptions
// (echo cadence, blank-skip stop ticks) still hold.
package uart

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"go.bug.st/serial"

	"inkpad/device/pokkenpad"
)

// frameMarker opens every frame on the wire.
const frameMarker = 0xa5

// frameLen is marker + report + CRC.
const frameLen = 2 + pokkenpad.InputReportLen

// Config selects the serial port and pacing of the feeder.
type Config struct {
	Port         string        `name:"uart" help:"Serial port feeding a UART USB bridge (e.g. /dev/ttyUSB0)." placeholder:"PORT"`
	BaudRate     int           `name:"uart-baud" help:"Serial baud rate of the UART bridge." default:"115200"`
	PollInterval time.Duration `kong:"-"`
}

// Feeder writes framed reports to a serial port at a fixed cadence.
type Feeder struct {
	config Config
	source pokkenpad.ReportSource
	logger *slog.Logger
}

// New builds a feeder pulling reports from source.
func New(config Config, source pokkenpad.ReportSource, logger *slog.Logger) *Feeder {
	if config.PollInterval < 8*time.Millisecond {
		config.PollInterval = 8 * time.Millisecond
	}
	return &Feeder{
		config: config,
		source: source,
		logger: logger.With("server", "uart"),
	}
}

// Run opens the port and streams frames until ctx is cancelled or the port
// fails.
func (f *Feeder) Run(ctx context.Context) error {
	mode := &serial.Mode{
		BaudRate: f.config.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(f.config.Port, mode)
	if err != nil {
		return fmt.Errorf("open serial port %s: %w", f.config.Port, err)
	}
	defer port.Close()

	f.logger.Info("UART feeder started",
		"port", f.config.Port,
		"baud", f.config.BaudRate,
		"interval", f.config.PollInterval)

	err = f.feed(ctx, port)
	if err != nil {
		return fmt.Errorf("uart feed: %w", err)
	}
	f.logger.Info("UART feeder stopped")
	return nil
}

// feed is the ticker loop, split out so tests can drive it against any
// writer.
func (f *Feeder) feed(ctx context.Context, w io.Writer) error {
	ticker := time.NewTicker(f.config.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			frame := EncodeFrame(f.source.NextReport())
			if _, err := w.Write(frame); err != nil {
				return err
			}
		}
	}
}

// EncodeFrame wraps one report as marker, report bytes, CRC-8 over the
// report bytes.
func EncodeFrame(r pokkenpad.Report) []byte {
	frame := make([]byte, 0, frameLen)
	frame = append(frame, frameMarker)
	frame = append(frame, r.Bytes()...)
	frame = append(frame, crc8(frame[1:]))
	return frame
}

// DecodeFrame parses one frame, checking marker and CRC. The bridge firmware
// uses the same framing in the other direction for diagnostics.
func DecodeFrame(frame []byte) (pokkenpad.Report, error) {
	var r pokkenpad.Report
	if len(frame) != frameLen {
		return r, fmt.Errorf("uart: frame length %d, want %d", len(frame), frameLen)
	}
	if frame[0] != frameMarker {
		return r, fmt.Errorf("uart: bad frame marker 0x%02x", frame[0])
	}
	if crc := crc8(frame[1 : frameLen-1]); crc != frame[frameLen-1] {
		return r, fmt.Errorf("uart: CRC mismatch: got 0x%02x, want 0x%02x", frame[frameLen-1], crc)
	}
	if err := r.UnmarshalBinary(frame[1 : frameLen-1]); err != nil {
		return r, err
	}
	return r, nil
}

// crc8 is the Dallas/Maxim CRC-8 (poly 0x31 reflected as 0x8c), the variant
// common UART bridge firmwares ship with.
func crc8(data []byte) uint8 {
	var crc uint8
	for _, b := range data {
		crc ^= b
		for i := 0; i < 8; i++ {
			if crc&0x01 != 0 {
				crc = crc>>1 ^ 0x8c
			} else {
				crc >>= 1
			}
		}
	}
	return crc
}
