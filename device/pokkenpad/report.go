package pokkenpad

import (
	"encoding/binary"
	"fmt"
)

// Report is the pad's 8-byte input report: 16 button bits (little-endian),
// the hat switch, four 8-bit stick axes, one vendor byte.
type Report struct {
	Buttons uint16
	Hat     uint8
	LX      uint8
	LY      uint8
	RX      uint8
	RY      uint8
	Vendor  uint8
}

// Neutral returns a report with no buttons, hat at the null state and both
// sticks centered.
func Neutral() Report {
	return Report{
		Hat: HatCenter,
		LX:  StickCenter,
		LY:  StickCenter,
		RX:  StickCenter,
		RY:  StickCenter,
	}
}

// Bytes returns the wire form of the report.
func (r Report) Bytes() []byte {
	b := make([]byte, InputReportLen)
	binary.LittleEndian.PutUint16(b[0:2], r.Buttons)
	b[2] = r.Hat
	b[3] = r.LX
	b[4] = r.LY
	b[5] = r.RX
	b[6] = r.RY
	b[7] = r.Vendor
	return b
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (r Report) MarshalBinary() ([]byte, error) {
	return r.Bytes(), nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (r *Report) UnmarshalBinary(data []byte) error {
	if len(data) < InputReportLen {
		return fmt.Errorf("pokkenpad: report too short: %d bytes", len(data))
	}
	r.Buttons = binary.LittleEndian.Uint16(data[0:2])
	r.Hat = data[2]
	r.LX = data[3]
	r.LY = data[4]
	r.RX = data[5]
	r.RY = data[6]
	r.Vendor = data[7]
	return nil
}
