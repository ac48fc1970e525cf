//go:build !linux

package usb

import (
	"context"
	"errors"
	"log/slog"

	"inkpad/usbip"
)

// AttachLocalhost requires a vhci-hcd host, which only exists on Linux.
func AttachLocalhost(_ context.Context, _ *usbip.ExportMeta, _ uint16, _ *slog.Logger) error {
	return errors.New("auto-attach is only supported on linux")
}

// CheckAttachPrerequisites always fails off Linux.
func CheckAttachPrerequisites(logger *slog.Logger) bool {
	logger.Warn("auto-attach is only supported on linux")
	return false
}
