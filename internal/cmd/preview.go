package cmd

import (
	"fmt"
	"image/png"
	"log/slog"
	"os"
	"time"

	"inkpad/device/pokkenpad"
	"inkpad/printer"
	"inkpad/raster"
)

// Preview runs the full print sequence against an emulated canvas instead
// of a live host: same sequencer, no transports, instant result. Useful to
// judge a raster and the timing knobs before tying up a real canvas for an
// hour.
type Preview struct {
	Image     string  `arg:"" optional:"" help:"Image to preview (png, jpeg, gif, 1-bpp bmp or packed raw)." type:"existingfile"`
	Threshold float64 `help:"Lightness below which a pixel counts as ink, 0..1." default:"0.5"`
	Dither    bool    `help:"Floyd-Steinberg dithering instead of a hard threshold."`
	Invert    bool    `help:"Swap ink and blank."`

	Sequencer printer.Config `embed:""`

	Out string `help:"Write the reconstructed canvas as PNG." placeholder:"FILE"`
}

func (p *Preview) Run(logger *slog.Logger) error {
	var img *raster.Bitmap
	if p.Image == "" {
		img = raster.Banner(printer.CanvasWidth, printer.CanvasHeight, "INKPAD", Version)
	} else {
		var err error
		img, err = raster.LoadFile(p.Image, printer.CanvasWidth, printer.CanvasHeight, raster.Options{
			Threshold: p.Threshold,
			Dither:    p.Dither,
			Invert:    p.Invert,
		})
		if err != nil {
			return fmt.Errorf("load %s: %w", p.Image, err)
		}
	}

	prn := printer.New(img, p.Sequencer)
	cfg := prn.Config()

	// The modeled cursor never moves during echo or injection replays, so
	// painting at the sequencer's own cursor on every confirm press
	// reconstructs exactly what the host canvas would show.
	canvas := raster.New(printer.CanvasWidth, printer.CanvasHeight)
	const limit = 10_000_000 // well past any configured full run
	ticks := 0
	for prn.Phase() != printer.PhaseDone {
		r := prn.Tick(false)
		ticks++
		if r.Buttons&pokkenpad.ButtonA != 0 {
			c := prn.Snapshot().Cursor
			canvas.Set(c.X, c.Y, true)
		}
		if ticks >= limit {
			return fmt.Errorf("sequencer did not finish within %d polls", limit)
		}
	}

	snap := prn.Snapshot()
	duration := time.Duration(ticks) * cfg.PollInterval
	missing := 0
	extra := 0
	for y := 0; y < printer.CanvasHeight; y++ {
		for x := 0; x < printer.CanvasWidth; x++ {
			src, got := img.Pixel(x, y), canvas.Pixel(x, y)
			if src && !got {
				missing++
			}
			if !src && got {
				extra++
			}
		}
	}

	fmt.Printf("polls:      %d\n", ticks)
	fmt.Printf("duration:   %s at %s per poll\n", duration, cfg.PollInterval)
	fmt.Printf("ink:        %d pixels, %d confirm presses\n", img.Count(), snap.Inked)
	fmt.Printf("reproduced: %d missing, %d extra\n", missing, extra)

	if p.Out != "" {
		f, err := os.Create(p.Out)
		if err != nil {
			return err
		}
		defer f.Close()
		if err := png.Encode(f, canvas.Image()); err != nil {
			return fmt.Errorf("encode %s: %w", p.Out, err)
		}
		logger.Info("preview written", "path", p.Out)
	}
	return nil
}
