//go:build !linux

package abortline

import (
	"context"
	"errors"
	"log/slog"
)

// WatchEvdev is only available on Linux.
func WatchEvdev(_ context.Context, _ *Line, devicePath string, _ uint16, _ *slog.Logger) error {
	return errors.New("evdev abort switch requires linux: " + devicePath)
}
