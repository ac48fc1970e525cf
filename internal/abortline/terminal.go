package abortline

import (
	"context"
	"log/slog"
	"os"

	"golang.org/x/term"
)

// WatchTerminal puts stdin into raw mode and triggers the line whenever key
// is typed. Raw mode cannot see key releases, so each keypress is a
// one-tick trigger, not a held level. Blocks until ctx is done or stdin
// closes; the terminal state is restored on return.
func WatchTerminal(ctx context.Context, line *Line, key byte, logger *slog.Logger) error {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		logger.Debug("stdin is not a terminal, abort key disabled")
		return nil
	}
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return err
	}
	defer func() { _ = term.Restore(fd, oldState) }()

	logger.Info("abort key armed", "key", string(key))

	done := make(chan struct{})
	go func() {
		defer close(done)
		buf := make([]byte, 1)
		for {
			n, err := os.Stdin.Read(buf)
			if err != nil {
				return
			}
			if n == 0 {
				continue
			}
			switch buf[0] {
			case key:
				logger.Info("abort key pressed")
				line.Trigger()
			case 0x03: // ctrl-c still works in raw mode
				p, _ := os.FindProcess(os.Getpid())
				_ = p.Signal(os.Interrupt)
				return
			}
		}
	}()

	select {
	case <-ctx.Done():
		return nil
	case <-done:
		return nil
	}
}
