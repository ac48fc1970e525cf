// Package usb models the static descriptor set of a virtual USB device and
// the transfer interface a device implementation has to provide.
package usb

import (
	"bytes"
	"encoding/binary"
)

// Standard descriptor type codes.
const (
	DeviceDescType    = 0x01
	ConfigDescType    = 0x02
	StringDescType    = 0x03
	InterfaceDescType = 0x04
	EndpointDescType  = 0x05
	HIDDescType       = 0x21
	ReportDescType    = 0x22
)

// Fixed descriptor lengths from the USB spec.
const (
	DeviceDescLen    = 18
	ConfigDescLen    = 9
	InterfaceDescLen = 9
	EndpointDescLen  = 7
	HIDDescLen       = 9
)

// Bus speeds as reported in device lists.
const (
	SpeedLow   = 1
	SpeedFull  = 2
	SpeedHigh  = 3
	SpeedSuper = 4
)

// Descriptor holds every static descriptor of one device: the device
// descriptor, one configuration worth of interfaces, and string descriptors
// indexed by their descriptor index.
type Descriptor struct {
	Device     DeviceDescriptor
	Config     ConfigHeader
	Interfaces []InterfaceConfig
	Strings    map[uint8]string
}

// InterfaceConfig is one interface with its class descriptors and endpoints,
// emitted in configuration-descriptor order.
type InterfaceConfig struct {
	Descriptor InterfaceDescriptor
	HID        *HIDDescriptor // optional class descriptor, follows the interface
	HIDReport  []byte         // report descriptor served on GET_DESCRIPTOR(Report)
	Extra      []byte         // raw class/vendor bytes appended verbatim
	Endpoints  []EndpointDescriptor
}

// DeviceDescriptor is the standard 18-byte device descriptor.
// BLength/BDescriptorType are implied.
type DeviceDescriptor struct {
	BcdUSB             uint16
	BDeviceClass       uint8
	BDeviceSubClass    uint8
	BDeviceProtocol    uint8
	BMaxPacketSize0    uint8
	IDVendor           uint16
	IDProduct          uint16
	BcdDevice          uint16
	IManufacturer      uint8
	IProduct           uint8
	ISerialNumber      uint8
	BNumConfigurations uint8
	Speed              uint32
}

// Bytes returns the 18-byte wire form of the device descriptor.
func (d DeviceDescriptor) Bytes() []byte {
	var b bytes.Buffer
	b.WriteByte(DeviceDescLen)
	b.WriteByte(DeviceDescType)
	_ = binary.Write(&b, binary.LittleEndian, d.BcdUSB)
	b.WriteByte(d.BDeviceClass)
	b.WriteByte(d.BDeviceSubClass)
	b.WriteByte(d.BDeviceProtocol)
	b.WriteByte(d.BMaxPacketSize0)
	_ = binary.Write(&b, binary.LittleEndian, d.IDVendor)
	_ = binary.Write(&b, binary.LittleEndian, d.IDProduct)
	_ = binary.Write(&b, binary.LittleEndian, d.BcdDevice)
	b.WriteByte(d.IManufacturer)
	b.WriteByte(d.IProduct)
	b.WriteByte(d.ISerialNumber)
	b.WriteByte(d.BNumConfigurations)
	return b.Bytes()
}

// ConfigHeader is the 9-byte configuration descriptor header.
// WTotalLength is filled in by ConfigBytes.
type ConfigHeader struct {
	WTotalLength        uint16
	BNumInterfaces      uint8
	BConfigurationValue uint8
	IConfiguration      uint8
	BMAttributes        uint8
	BMaxPower           uint8
}

func (h ConfigHeader) write(b *bytes.Buffer) {
	b.WriteByte(ConfigDescLen)
	b.WriteByte(ConfigDescType)
	_ = binary.Write(b, binary.LittleEndian, h.WTotalLength)
	b.WriteByte(h.BNumInterfaces)
	b.WriteByte(h.BConfigurationValue)
	b.WriteByte(h.IConfiguration)
	b.WriteByte(h.BMAttributes)
	b.WriteByte(h.BMaxPower)
}

// InterfaceDescriptor is the 9-byte interface descriptor.
type InterfaceDescriptor struct {
	BInterfaceNumber   uint8
	BAlternateSetting  uint8
	BNumEndpoints      uint8
	BInterfaceClass    uint8
	BInterfaceSubClass uint8
	BInterfaceProtocol uint8
	IInterface         uint8
}

func (i InterfaceDescriptor) write(b *bytes.Buffer) {
	b.WriteByte(InterfaceDescLen)
	b.WriteByte(InterfaceDescType)
	b.WriteByte(i.BInterfaceNumber)
	b.WriteByte(i.BAlternateSetting)
	b.WriteByte(i.BNumEndpoints)
	b.WriteByte(i.BInterfaceClass)
	b.WriteByte(i.BInterfaceSubClass)
	b.WriteByte(i.BInterfaceProtocol)
	b.WriteByte(i.IInterface)
}

// EndpointDescriptor is the 7-byte endpoint descriptor.
type EndpointDescriptor struct {
	BEndpointAddress uint8
	BMAttributes     uint8
	WMaxPacketSize   uint16
	BInterval        uint8
}

func (e EndpointDescriptor) write(b *bytes.Buffer) {
	b.WriteByte(EndpointDescLen)
	b.WriteByte(EndpointDescType)
	b.WriteByte(e.BEndpointAddress)
	b.WriteByte(e.BMAttributes)
	_ = binary.Write(b, binary.LittleEndian, e.WMaxPacketSize)
	b.WriteByte(e.BInterval)
}

// HIDDescriptor is the 9-byte HID class descriptor announcing one
// subordinate report descriptor.
type HIDDescriptor struct {
	BcdHID            uint16
	BCountryCode      uint8
	BNumDescriptors   uint8
	ClassDescType     uint8 // ReportDescType
	WDescriptorLength uint16
}

func (h HIDDescriptor) write(b *bytes.Buffer) {
	b.WriteByte(HIDDescLen)
	b.WriteByte(HIDDescType)
	_ = binary.Write(b, binary.LittleEndian, h.BcdHID)
	b.WriteByte(h.BCountryCode)
	b.WriteByte(h.BNumDescriptors)
	b.WriteByte(h.ClassDescType)
	_ = binary.Write(b, binary.LittleEndian, h.WDescriptorLength)
}

// Bytes returns the wire form of the HID class descriptor alone, as served
// on GET_DESCRIPTOR(HID).
func (h HIDDescriptor) Bytes() []byte {
	var b bytes.Buffer
	h.write(&b)
	return b.Bytes()
}

// ConfigBytes assembles the full configuration descriptor: header, then per
// interface the interface descriptor, HID class descriptor, extra class
// bytes, and endpoints. WTotalLength and BNumInterfaces are patched to the
// assembled result.
func (d Descriptor) ConfigBytes() []byte {
	var b bytes.Buffer
	hdr := d.Config
	hdr.BNumInterfaces = uint8(len(d.Interfaces))
	hdr.write(&b)
	for _, ic := range d.Interfaces {
		ic.Descriptor.write(&b)
		if ic.HID != nil {
			ic.HID.write(&b)
		}
		if len(ic.Extra) > 0 {
			b.Write(ic.Extra)
		}
		for _, ep := range ic.Endpoints {
			ep.write(&b)
		}
	}
	out := b.Bytes()
	binary.LittleEndian.PutUint16(out[2:4], uint16(len(out)))
	return out
}

// EncodeStringDescriptor converts a UTF-8 string to a USB string descriptor:
//
//	Byte 0: bLength (total descriptor length)
//	Byte 1: bDescriptorType (0x03)
//	Bytes 2+: UTF-16LE code units
func EncodeStringDescriptor(s string) []byte {
	runes := []rune(s)
	buf := make([]byte, 2+len(runes)*2)
	buf[0] = uint8(len(buf))
	buf[1] = StringDescType
	for i, r := range runes {
		buf[2+i*2] = uint8(r)
		buf[2+i*2+1] = uint8(r >> 8)
	}
	return buf
}
