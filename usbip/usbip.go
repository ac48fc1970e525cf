// Package usbip implements the wire format of the USB/IP protocol
// (drivers/usb/usbip in the Linux tree, protocol version 0x0111): the
// management ops used to list and import devices and the URB stream that
// carries transfers once a device is attached. All integers are big-endian.
package usbip

import (
	"encoding/binary"
	"io"
)

const (
	Version = 0x0111

	// Management ops
	OpReqDevlist = 0x8005
	OpRepDevlist = 0x0005
	OpReqImport  = 0x8003
	OpRepImport  = 0x0003

	// URB stream commands
	CmdSubmitCode = 0x00000001
	CmdUnlinkCode = 0x00000002
	RetSubmitCode = 0x00000003
	RetUnlinkCode = 0x00000004

	// usbip_header_basic.direction
	DirOut = 0x00000000
	DirIn  = 0x00000001
)

// writeBE writes each field in big-endian order; fixed-size arrays are
// emitted verbatim.
func writeBE(w io.Writer, fields ...any) error {
	for _, f := range fields {
		if err := binary.Write(w, binary.BigEndian, f); err != nil {
			return err
		}
	}
	return nil
}

// MgmtHeader is the 8-byte header that opens every management exchange.
type MgmtHeader struct {
	Version uint16
	Command uint16
	Status  uint32
}

func (h *MgmtHeader) Write(w io.Writer) error {
	return writeBE(w, h.Version, h.Command, h.Status)
}

// ReadMgmtHeader consumes and parses the 8-byte management header.
func ReadMgmtHeader(r io.Reader) (MgmtHeader, error) {
	var buf [8]byte
	if err := ReadExactly(r, buf[:]); err != nil {
		return MgmtHeader{}, err
	}
	return MgmtHeader{
		Version: binary.BigEndian.Uint16(buf[0:2]),
		Command: binary.BigEndian.Uint16(buf[2:4]),
		Status:  binary.BigEndian.Uint32(buf[4:8]),
	}, nil
}

// ExportMeta is the bus identity of one exported device: the sysfs-style
// path and bus id strings are fixed-size, NUL-padded.
type ExportMeta struct {
	SysPath [256]byte
	BusID   [32]byte
	BusNum  uint32
	DevNum  uint32
}

func putPadded(dst []byte, s string) {
	n := copy(dst, s)
	for i := n; i < len(dst); i++ {
		dst[i] = 0
	}
}

func (m *ExportMeta) SetSysPath(s string) { putPadded(m.SysPath[:], s) }
func (m *ExportMeta) SetBusID(s string)   { putPadded(m.BusID[:], s) }

// Devid is the busnum/devnum pair as it appears in usbip_header_basic.devid.
func (m *ExportMeta) Devid() uint32 { return m.BusNum<<16 | m.DevNum }

// ExportedDevice is one device entry in devlist/import replies. The layout
// follows the kernel documentation; the interface triplets are only present
// in devlist replies.
type ExportedDevice struct {
	ExportMeta
	Speed uint32

	IDVendor            uint16
	IDProduct           uint16
	BcdDevice           uint16
	BDeviceClass        uint8
	BDeviceSubClass     uint8
	BDeviceProtocol     uint8
	BConfigurationValue uint8
	BNumConfigurations  uint8
	BNumInterfaces      uint8

	Interfaces []InterfaceTriplet
}

// InterfaceTriplet is the class/subclass/protocol triple listed per
// interface in devlist replies (padded to 4 bytes on the wire).
type InterfaceTriplet struct {
	Class    uint8
	SubClass uint8
	Protocol uint8
}

func (d *ExportedDevice) writeCommon(w io.Writer) error {
	return writeBE(w,
		d.SysPath, d.BusID,
		d.BusNum, d.DevNum, d.Speed,
		d.IDVendor, d.IDProduct, d.BcdDevice,
		d.BDeviceClass, d.BDeviceSubClass, d.BDeviceProtocol,
		d.BConfigurationValue, d.BNumConfigurations, d.BNumInterfaces,
	)
}

// WriteDevlist writes the OP_REP_DEVLIST entry including interface triplets.
func (d *ExportedDevice) WriteDevlist(w io.Writer) error {
	if err := d.writeCommon(w); err != nil {
		return err
	}
	for _, t := range d.Interfaces {
		if err := writeBE(w, t.Class, t.SubClass, t.Protocol, uint8(0)); err != nil {
			return err
		}
	}
	return nil
}

// WriteImport writes the OP_REP_IMPORT entry, which ends at bNumInterfaces.
func (d *ExportedDevice) WriteImport(w io.Writer) error {
	return d.writeCommon(w)
}

// HeaderBasic opens every URB stream packet (20 bytes).
type HeaderBasic struct {
	Command uint32
	Seqnum  uint32
	Devid   uint32
	Dir     uint32
	Ep      uint32
}

// ReadHeaderBasic consumes the 20-byte basic header from the URB stream.
func ReadHeaderBasic(r io.Reader) (HeaderBasic, error) {
	var buf [20]byte
	if err := ReadExactly(r, buf[:]); err != nil {
		return HeaderBasic{}, err
	}
	return HeaderBasic{
		Command: binary.BigEndian.Uint32(buf[0:4]),
		Seqnum:  binary.BigEndian.Uint32(buf[4:8]),
		Devid:   binary.BigEndian.Uint32(buf[8:12]),
		Dir:     binary.BigEndian.Uint32(buf[12:16]),
		Ep:      binary.BigEndian.Uint32(buf[16:20]),
	}, nil
}

// CmdSubmit is a transfer request; 48 bytes of header before any OUT payload.
type CmdSubmit struct {
	Basic             HeaderBasic
	TransferFlags     uint32
	TransferBufferLen uint32
	StartFrame        uint32
	NumberOfPackets   uint32
	Interval          uint32
	Setup             [8]byte
}

// ReadBody consumes the 28 bytes that follow the basic header.
func (c *CmdSubmit) ReadBody(r io.Reader) error {
	var buf [28]byte
	if err := ReadExactly(r, buf[:]); err != nil {
		return err
	}
	c.TransferFlags = binary.BigEndian.Uint32(buf[0:4])
	c.TransferBufferLen = binary.BigEndian.Uint32(buf[4:8])
	c.StartFrame = binary.BigEndian.Uint32(buf[8:12])
	c.NumberOfPackets = binary.BigEndian.Uint32(buf[12:16])
	c.Interval = binary.BigEndian.Uint32(buf[16:20])
	copy(c.Setup[:], buf[20:28])
	return nil
}

func (c *CmdSubmit) Write(w io.Writer) error {
	return writeBE(w,
		c.Basic.Command, c.Basic.Seqnum, c.Basic.Devid, c.Basic.Dir, c.Basic.Ep,
		c.TransferFlags, c.TransferBufferLen, c.StartFrame, c.NumberOfPackets,
		c.Interval, c.Setup,
	)
}

// RetSubmit answers a CmdSubmit; 48 bytes of header before any IN payload.
type RetSubmit struct {
	Basic           HeaderBasic
	Status          int32
	ActualLength    uint32
	StartFrame      uint32
	NumberOfPackets uint32
	ErrorCount      uint32
	Padding         [8]byte
}

func (r *RetSubmit) Write(w io.Writer) error {
	return writeBE(w,
		r.Basic.Command, r.Basic.Seqnum, r.Basic.Devid, r.Basic.Dir, r.Basic.Ep,
		r.Status, r.ActualLength, r.StartFrame, r.NumberOfPackets,
		r.ErrorCount, r.Padding,
	)
}

// CmdUnlink cancels a pending submit by sequence number.
type CmdUnlink struct {
	Basic        HeaderBasic
	UnlinkSeqnum uint32
	Padding      [24]byte
}

// ReadBody consumes the 28 bytes that follow the basic header.
func (c *CmdUnlink) ReadBody(r io.Reader) error {
	var buf [28]byte
	if err := ReadExactly(r, buf[:]); err != nil {
		return err
	}
	c.UnlinkSeqnum = binary.BigEndian.Uint32(buf[0:4])
	copy(c.Padding[:], buf[4:28])
	return nil
}

func (c *CmdUnlink) Write(w io.Writer) error {
	return writeBE(w,
		c.Basic.Command, c.Basic.Seqnum, c.Basic.Devid, c.Basic.Dir, c.Basic.Ep,
		c.UnlinkSeqnum, c.Padding,
	)
}

// RetUnlink answers a CmdUnlink.
type RetUnlink struct {
	Basic   HeaderBasic
	Status  int32
	Padding [24]byte
}

func (r *RetUnlink) Write(w io.Writer) error {
	return writeBE(w,
		r.Basic.Command, r.Basic.Seqnum, r.Basic.Devid, r.Basic.Dir, r.Basic.Ep,
		r.Status, r.Padding,
	)
}

// ReadExactly fills buf completely or returns the read error.
func ReadExactly(r io.Reader, buf []byte) error {
	n := 0
	for n < len(buf) {
		m, err := r.Read(buf[n:])
		if err != nil {
			return err
		}
		n += m
	}
	return nil
}
