//go:build linux

package usb

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strconv"

	"inkpad/usbip"
)

// AttachLocalhost runs the usbip client against our own server so the pad
// shows up on the local vhci-hcd without a manual attach step.
func AttachLocalhost(ctx context.Context, meta *usbip.ExportMeta, port uint16, logger *slog.Logger) error {
	logger.Info("auto-attaching localhost client", "busnum", meta.BusNum, "devnum", meta.DevNum)

	cmd := exec.CommandContext(
		ctx,
		"usbip",
		"--tcp-port", strconv.FormatUint(uint64(port), 10),
		"attach",
		"-r", "localhost",
		"-b", fmt.Sprintf("%d-%d", meta.BusNum, meta.DevNum),
	)
	output, err := cmd.CombinedOutput()
	if err != nil {
		logger.Error("failed to attach device",
			"error", err,
			"port", port,
			"output", string(output))
		return err
	}
	logger.Debug("usbip attach output", "output", string(output))
	return nil
}

// CheckAttachPrerequisites reports whether the usbip tool and the vhci-hcd
// kernel module are available, logging hints for anything missing.
func CheckAttachPrerequisites(logger *slog.Logger) bool {
	ok := true

	if _, err := exec.LookPath("usbip"); err != nil {
		logger.Warn("usbip tool not found in PATH, auto-attach needs it")
		logger.Info("install it with e.g. 'apt install linux-tools-generic' or 'pacman -S usbip'")
		ok = false
	} else {
		logger.Debug("usbip tool found in PATH")
	}

	data, err := os.ReadFile("/proc/modules")
	if err != nil {
		logger.Debug("could not read /proc/modules", "error", err)
		// try anyway
	} else if !bytes.Contains(data, []byte("vhci_hcd")) {
		logger.Warn("vhci-hcd kernel module is not loaded, run 'sudo modprobe vhci-hcd'")
		ok = false
	} else {
		logger.Debug("vhci-hcd kernel module is loaded")
	}

	return ok
}
