package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"inkpad/device/pokkenpad"
	"inkpad/internal/abortline"
	"inkpad/internal/log"
	"inkpad/internal/server/ctl"
	"inkpad/internal/server/uart"
	usbsrv "inkpad/internal/server/usb"
	"inkpad/printer"
	"inkpad/raster"
	"inkpad/virtualbus"
)

// Print serves the virtual pad and runs the print sequence against a live
// host. Without an image it prints a banner card, which doubles as a
// calibration target.
type Print struct {
	Image     string  `arg:"" optional:"" help:"Image to print (png, jpeg, gif, 1-bpp bmp or packed raw)." type:"existingfile"`
	Threshold float64 `help:"Lightness below which a pixel counts as ink, 0..1." default:"0.5"`
	Dither    bool    `help:"Floyd-Steinberg dithering instead of a hard threshold."`
	Invert    bool    `help:"Swap ink and blank."`

	Sequencer printer.Config      `embed:""`
	Usb       usbsrv.ServerConfig `embed:"" prefix:"usb-"`
	Ctl       ctl.ServerConfig    `embed:"" prefix:"ctl-"`
	Uart      uart.Config         `embed:""`

	AbortKey      string `help:"Terminal key that aborts the current pass." placeholder:"KEY"`
	AbortEvdev    string `help:"Linux input device watched for the abort key (e.g. /dev/input/event3)." placeholder:"DEV"`
	AbortEvdevKey uint16 `help:"Key code on the evdev device that holds the abort line." default:"1"`

	AutoAttach        bool          `help:"Attach the exported pad to the local vhci-hcd after startup."`
	NoCtlAuth         bool          `help:"Serve the control API without authentication."`
	ConnectionTimeout time.Duration `help:"Per-connection handshake timeout." default:"30s" env:"INKPAD_CONNECTION_TIMEOUT"`
}

func (p *Print) Run(logger *slog.Logger, rawLogger log.RawLogger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return p.run(ctx, logger, rawLogger)
}

func (p *Print) run(ctx context.Context, logger *slog.Logger, rawLogger log.RawLogger) error {
	p.Usb.ConnectionTimeout = p.ConnectionTimeout
	p.Ctl.ConnectionTimeout = p.ConnectionTimeout
	p.Uart.PollInterval = p.Sequencer.PollInterval

	img, err := p.loadImage()
	if err != nil {
		return err
	}
	logger.Info("raster loaded", "ink", img.Count(), "w", img.W, "h", img.H)

	line := &abortline.Line{}
	driver := printer.NewDriver(printer.New(img, p.Sequencer), line.Sample, logger)

	pad := pokkenpad.New()
	pad.SetSource(driver)

	bus := virtualbus.New(1)
	meta, err := bus.Add(pad)
	if err != nil {
		return err
	}
	defer bus.Close()

	usbServer := usbsrv.New(p.Usb, bus, logger, rawLogger)
	usbErrCh := make(chan error, 1)
	go func() { usbErrCh <- usbServer.ListenAndServe() }()
	select {
	case err := <-usbErrCh:
		return err
	case <-usbServer.Ready():
	}
	defer usbServer.Close()

	if p.Ctl.Password == "" && !p.NoCtlAuth {
		pwd, err := loadOrCreateKey(logger)
		if err != nil {
			return err
		}
		p.Ctl.Password = pwd
	}
	ctlServer, err := ctl.New(p.Ctl, driver, line, Version, logger)
	if err != nil {
		return err
	}
	if err := ctlServer.Start(); err != nil {
		return err
	}
	defer ctlServer.Close()

	if p.AbortKey != "" {
		go func() {
			if err := abortline.WatchTerminal(ctx, line, p.AbortKey[0], logger); err != nil {
				logger.Warn("terminal abort watcher stopped", "error", err)
			}
		}()
	}
	if p.AbortEvdev != "" {
		go func() {
			if err := abortline.WatchEvdev(ctx, line, p.AbortEvdev, p.AbortEvdevKey, logger); err != nil {
				logger.Warn("evdev abort watcher stopped", "error", err)
			}
		}()
	}

	uartErrCh := make(chan error, 1)
	if p.Uart.Port != "" {
		feeder := uart.New(p.Uart, driver, logger)
		go func() { uartErrCh <- feeder.Run(ctx) }()
	}

	if p.AutoAttach {
		if !usbsrv.CheckAttachPrerequisites(logger) {
			logger.Warn("auto-attach prerequisites not met, the pad will need a manual 'usbip attach'")
		} else {
			go func() {
				// Give the accept loop a beat before the client dials back in.
				time.Sleep(250 * time.Millisecond)
				if err := usbsrv.AttachLocalhost(ctx, &meta, usbServer.ListenPort(), logger); err != nil {
					logger.Error("auto-attach failed", "error", err)
				}
			}()
		}
	}

	logger.Info("inkpad running",
		"usb", p.Usb.Addr,
		"ctl", p.Ctl.Addr,
		"uart", p.Uart.Port,
		"frameAlign", p.Sequencer.FrameAlign,
		"skipBlanks", p.Sequencer.SkipBlanks)

	select {
	case <-ctx.Done():
		return nil
	case err := <-usbErrCh:
		return err
	case err := <-uartErrCh:
		return err
	}
}

func (p *Print) loadImage() (*raster.Bitmap, error) {
	if p.Image == "" {
		return raster.Banner(printer.CanvasWidth, printer.CanvasHeight, "INKPAD", Version), nil
	}
	img, err := raster.LoadFile(p.Image, printer.CanvasWidth, printer.CanvasHeight, raster.Options{
		Threshold: p.Threshold,
		Dither:    p.Dither,
		Invert:    p.Invert,
	})
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", p.Image, err)
	}
	return img, nil
}
