package raster

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	stddraw "image/draw"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
	xdraw "golang.org/x/image/draw"
)

// Options tune the conversion from a continuous-tone image to 1 bit.
type Options struct {
	// Threshold is the perceptual lightness below which a pixel counts as
	// ink, 0..1. Zero selects 0.5.
	Threshold float64
	// Dither applies Floyd-Steinberg error diffusion instead of a hard
	// threshold.
	Dither bool
	// Invert flips ink and blank after conversion.
	Invert bool
}

func (o Options) threshold() float64 {
	if o.Threshold <= 0 || o.Threshold >= 1 {
		return 0.5
	}
	return o.Threshold
}

// LoadFile reads an image file and converts it to a w×h bitmap. PNG, JPEG
// and GIF go through the scaling pipeline; .bmp is decoded as 1-bpp
// monochrome BMP; .raw is raw packed pixel data in the native layout.
func LoadFile(path string, w, h int, opts Options) (*Bitmap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".bmp":
		b, err := DecodeBMP(data)
		if err != nil {
			return nil, err
		}
		if b.W != w || b.H != h {
			return FromImage(b.Image(), w, h, opts), nil
		}
		if opts.Invert {
			b.Invert()
		}
		return b, nil
	case ".raw", ".bin":
		b, ok := FromPacked(data, w, h)
		if !ok {
			return nil, fmt.Errorf("raw image: want %d bytes for %dx%d, got %d", ((w+7)/8)*h, w, h, len(data))
		}
		if opts.Invert {
			b.Invert()
		}
		return b, nil
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return FromImage(img, w, h, opts), nil
}

// FromImage scales img to fit w×h (aspect preserved, centered on a white
// letterbox) and converts it to 1 bit.
func FromImage(img image.Image, w, h int, opts Options) *Bitmap {
	gray := scaleToFit(img, w, h)
	if opts.Dither {
		return ditherGray(gray, opts)
	}
	return thresholdGray(gray, opts)
}

// scaleToFit letterboxes img onto a white w×h canvas.
func scaleToFit(img image.Image, w, h int) *image.Gray {
	dst := image.NewGray(image.Rect(0, 0, w, h))
	stddraw.Draw(dst, dst.Bounds(), image.White, image.Point{}, stddraw.Src)

	sb := img.Bounds()
	if sb.Dx() == 0 || sb.Dy() == 0 {
		return dst
	}
	sw, sh := sb.Dx(), sb.Dy()
	tw, th := w, sh*w/sw
	if th > h {
		tw, th = sw*h/sh, h
	}
	if tw < 1 {
		tw = 1
	}
	if th < 1 {
		th = 1
	}
	ox := (w - tw) / 2
	oy := (h - th) / 2
	target := image.Rect(ox, oy, ox+tw, oy+th)
	xdraw.CatmullRom.Scale(dst, target, img, sb, xdraw.Over, nil)
	return dst
}

// thresholdGray marks every pixel whose perceptual lightness falls below
// the threshold. Gray values are mapped through CIE Lab so mid grays land
// where the eye puts them, not where the byte value does.
func thresholdGray(gray *image.Gray, opts Options) *Bitmap {
	b := New(gray.Bounds().Dx(), gray.Bounds().Dy())
	thr := opts.threshold()
	for y := 0; y < b.H; y++ {
		for x := 0; x < b.W; x++ {
			c, _ := colorful.MakeColor(gray.GrayAt(x, y))
			l, _, _ := c.Lab()
			b.Set(x, y, (l < thr) != opts.Invert)
		}
	}
	return b
}

func ditherGray(gray *image.Gray, opts Options) *Bitmap {
	pal := color.Palette{color.Black, color.White}
	dst := image.NewPaletted(gray.Bounds(), pal)
	stddraw.FloydSteinberg.Draw(dst, gray.Bounds(), gray, image.Point{})

	b := New(gray.Bounds().Dx(), gray.Bounds().Dy())
	for y := 0; y < b.H; y++ {
		for x := 0; x < b.W; x++ {
			b.Set(x, y, (dst.ColorIndexAt(x, y) == 0) != opts.Invert)
		}
	}
	return b
}
