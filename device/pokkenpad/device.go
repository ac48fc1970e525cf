// Package pokkenpad emulates the HORI Pokkén Tournament DX Pro Pad, the
// wired HID gamepad consoles accept without pairing. Input reports are
// pulled from a ReportSource once per host poll, so whoever drives the
// source is clocked by the host's interrupt cadence.
package pokkenpad

import (
	"sync"
	"sync/atomic"

	"inkpad/usb"
	"inkpad/usbip"
)

// ReportSource supplies the next input report. NextReport is called exactly
// once per interrupt IN poll and must not block.
type ReportSource interface {
	NextReport() Report
}

// Pad is the virtual pad. Implements usb.Device.
type Pad struct {
	polls      uint64
	mu         sync.Mutex
	source     ReportSource
	descriptor usb.Descriptor
}

// New returns a pad with no report source; it reports neutral until
// SetSource is called.
func New() *Pad {
	return &Pad{descriptor: defaultDescriptor}
}

// SetSource installs the report source (thread-safe).
func (p *Pad) SetSource(src ReportSource) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.source = src
}

// Polls returns how many interrupt IN polls the host has issued.
func (p *Pad) Polls() uint64 {
	return atomic.LoadUint64(&p.polls)
}

// HandleTransfer implements the interrupt endpoints. The pad's OUT endpoint
// exists only because the real hardware has one; host output reports are
// read and dropped.
func (p *Pad) HandleTransfer(ep uint32, dir uint32, out []byte) []byte {
	if dir == usbip.DirIn && ep == 1 {
		atomic.AddUint64(&p.polls, 1)

		p.mu.Lock()
		src := p.source
		p.mu.Unlock()
		if src == nil {
			return Neutral().Bytes()
		}
		return src.NextReport().Bytes()
	}
	return nil
}

func (p *Pad) GetDescriptor() *usb.Descriptor {
	return &p.descriptor
}

// reportDescriptor is the pad's HID report descriptor (86 bytes): 16
// buttons, a 4-bit hat with null state, four 8-bit axes, one vendor input
// byte and an 8-byte vendor output report.
var reportDescriptor = []byte{
	0x05, 0x01, // Usage Page (Generic Desktop)
	0x09, 0x05, // Usage (Game Pad)
	0xa1, 0x01, // Collection (Application)
	0x15, 0x00, //   Logical Minimum (0)
	0x25, 0x01, //   Logical Maximum (1)
	0x35, 0x00, //   Physical Minimum (0)
	0x45, 0x01, //   Physical Maximum (1)
	0x75, 0x01, //   Report Size (1)
	0x95, 0x10, //   Report Count (16)
	0x05, 0x09, //   Usage Page (Button)
	0x19, 0x01, //   Usage Minimum (1)
	0x29, 0x10, //   Usage Maximum (16)
	0x81, 0x02, //   Input (Data,Var,Abs)
	0x05, 0x01, //   Usage Page (Generic Desktop)
	0x25, 0x07, //   Logical Maximum (7)
	0x46, 0x3b, 0x01, // Physical Maximum (315)
	0x75, 0x04, //   Report Size (4)
	0x95, 0x01, //   Report Count (1)
	0x65, 0x14, //   Unit (Degrees)
	0x09, 0x39, //   Usage (Hat Switch)
	0x81, 0x42, //   Input (Data,Var,Abs,Null)
	0x65, 0x00, //   Unit (None)
	0x95, 0x01, //   Report Count (1)
	0x81, 0x01, //   Input (Const)
	0x26, 0xff, 0x00, // Logical Maximum (255)
	0x46, 0xff, 0x00, // Physical Maximum (255)
	0x09, 0x30, //   Usage (X)
	0x09, 0x31, //   Usage (Y)
	0x09, 0x32, //   Usage (Z)
	0x09, 0x35, //   Usage (Rz)
	0x75, 0x08, //   Report Size (8)
	0x95, 0x04, //   Report Count (4)
	0x81, 0x02, //   Input (Data,Var,Abs)
	0x06, 0x00, 0xff, // Usage Page (Vendor)
	0x09, 0x20, //   Usage (0x20)
	0x95, 0x01, //   Report Count (1)
	0x81, 0x02, //   Input (Data,Var,Abs)
	0x0a, 0x21, 0x26, // Usage (0x2621)
	0x95, 0x08, //   Report Count (8)
	0x91, 0x02, //   Output (Data,Var,Abs)
	0xc0, // End Collection
}

// Static descriptor set matching the real pad's enumeration.
var defaultDescriptor = usb.Descriptor{
	Device: usb.DeviceDescriptor{
		BcdUSB:             0x0200,
		BDeviceClass:       0x00,
		BDeviceSubClass:    0x00,
		BDeviceProtocol:    0x00,
		BMaxPacketSize0:    0x40,
		IDVendor:           VendorID,
		IDProduct:          ProductID,
		BcdDevice:          0x0572,
		IManufacturer:      0x01,
		IProduct:           0x02,
		ISerialNumber:      0x00,
		BNumConfigurations: 0x01,
		Speed:              usb.SpeedFull,
	},
	Config: usb.ConfigHeader{
		BConfigurationValue: 0x01,
		IConfiguration:      0x00,
		BMAttributes:        0x80, // bus powered
		BMaxPower:           0xfa, // 500 mA
	},
	Interfaces: []usb.InterfaceConfig{
		{
			Descriptor: usb.InterfaceDescriptor{
				BInterfaceNumber:   0x00,
				BAlternateSetting:  0x00,
				BNumEndpoints:      0x02,
				BInterfaceClass:    0x03, // HID
				BInterfaceSubClass: 0x00,
				BInterfaceProtocol: 0x00,
				IInterface:         0x00,
			},
			HID: &usb.HIDDescriptor{
				BcdHID:            0x0111,
				BCountryCode:      0x00,
				BNumDescriptors:   0x01,
				ClassDescType:     usb.ReportDescType,
				WDescriptorLength: uint16(len(reportDescriptor)),
			},
			HIDReport: reportDescriptor,
			Endpoints: []usb.EndpointDescriptor{
				{BEndpointAddress: 0x81, BMAttributes: 0x03, WMaxPacketSize: 0x0040, BInterval: 0x05},
				{BEndpointAddress: 0x02, BMAttributes: 0x03, WMaxPacketSize: 0x0040, BInterval: 0x05},
			},
		},
	},
	Strings: map[uint8]string{
		1: "HORI CO.,LTD.",
		2: "POKKEN CONTROLLER",
	},
}
