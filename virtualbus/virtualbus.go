// Package virtualbus tracks the devices exported by one virtual USB bus and
// assigns their bus addresses and export metadata.
package virtualbus

import (
	"context"
	"fmt"
	"sync"

	"inkpad/usb"
	"inkpad/usbip"
)

// Synthetic sysfs root for exported device paths. USB/IP clients only echo
// the path back, it has no meaning beyond being stable and unique.
const sysPathBase = "/sys/devices/platform/vhci_hcd.0/usb"

// Bus is a virtual USB bus. Device numbers are assigned in attach order,
// starting at 1. All methods are safe for concurrent use.
type Bus struct {
	mu      sync.Mutex
	num     uint32
	nextDev uint32
	devices []busDevice
}

type busDevice struct {
	dev    usb.Device
	meta   usbip.ExportMeta
	ctx    context.Context
	cancel context.CancelFunc
}

// Export is one attached device together with its export metadata.
type Export struct {
	Dev  usb.Device
	Meta usbip.ExportMeta
}

// New creates a bus with the given bus number (must be >= 1).
func New(num uint32) *Bus {
	if num == 0 {
		num = 1
	}
	return &Bus{num: num, nextDev: 1}
}

// Num returns the bus number.
func (b *Bus) Num() uint32 {
	return b.num
}

// Add attaches a device and returns its export metadata. The device's
// lifecycle context (see Context) stays live until the device is removed or
// the bus is closed.
func (b *Bus) Add(dev usb.Device) (usbip.ExportMeta, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, d := range b.devices {
		if d.dev == dev {
			return usbip.ExportMeta{}, fmt.Errorf("device already attached to bus %d", b.num)
		}
	}

	devNum := b.nextDev
	b.nextDev++

	busID := fmt.Sprintf("%d-%d", b.num, devNum)
	var meta usbip.ExportMeta
	meta.SetSysPath(fmt.Sprintf("%s%d/%s", sysPathBase, b.num, busID))
	meta.SetBusID(busID)
	meta.BusNum = b.num
	meta.DevNum = devNum

	ctx, cancel := context.WithCancel(context.Background())
	b.devices = append(b.devices, busDevice{dev: dev, meta: meta, ctx: ctx, cancel: cancel})
	return meta, nil
}

// Exports returns a snapshot of all attached devices with their metadata.
func (b *Bus) Exports() []Export {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Export, 0, len(b.devices))
	for _, d := range b.devices {
		out = append(out, Export{Dev: d.dev, Meta: d.meta})
	}
	return out
}

// Find resolves an import request's bus id string (e.g. "1-1").
func (b *Bus) Find(busID string) (Export, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, d := range b.devices {
		if busIDString(d.meta) == busID {
			return Export{Dev: d.dev, Meta: d.meta}, true
		}
	}
	return Export{}, false
}

func busIDString(m usbip.ExportMeta) string {
	for i, c := range m.BusID {
		if c == 0 {
			return string(m.BusID[:i])
		}
	}
	return string(m.BusID[:])
}

// Context returns the lifecycle context of a device, or nil if the device is
// not attached. The context is cancelled on Remove or Close; URB streams
// watch it to stop serving a detached device.
func (b *Bus) Context(dev usb.Device) context.Context {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, d := range b.devices {
		if d.dev == dev {
			return d.ctx
		}
	}
	return nil
}

// Remove detaches a device and cancels its lifecycle context.
func (b *Bus) Remove(dev usb.Device) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, d := range b.devices {
		if d.dev == dev {
			d.cancel()
			b.devices = append(b.devices[:i], b.devices[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("device not attached to bus %d", b.num)
}

// Close cancels every device context and empties the bus.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, d := range b.devices {
		d.cancel()
	}
	b.devices = nil
}
