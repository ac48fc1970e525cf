// Package raster holds the 1-bit rasters the printer reproduces and the
// loaders that produce them from common image formats.
package raster

import (
	"image"
	"image/color"
)

// Bitmap is a packed 1-bit-per-pixel raster, LSB-first within each row
// byte. Row stride is (W+7)/8 bytes. The zero value is an empty bitmap.
type Bitmap struct {
	W, H int
	bits []byte
}

// New returns an all-white W×H bitmap.
func New(w, h int) *Bitmap {
	return &Bitmap{W: w, H: h, bits: make([]byte, ((w+7)/8)*h)}
}

// FromPacked wraps raw packed pixel data in the native layout. The data
// length must be stride×h; data is used directly, not copied.
func FromPacked(data []byte, w, h int) (*Bitmap, bool) {
	if len(data) != ((w+7)/8)*h {
		return nil, false
	}
	return &Bitmap{W: w, H: h, bits: data}, true
}

func (b *Bitmap) stride() int { return (b.W + 7) / 8 }

// Pixel reports whether (x, y) is set. Out-of-range coordinates report
// false, so callers may probe past the edges freely.
func (b *Bitmap) Pixel(x, y int) bool {
	if b == nil || x < 0 || x >= b.W || y < 0 || y >= b.H {
		return false
	}
	return b.bits[y*b.stride()+x/8]&(1<<(x%8)) != 0
}

// Set sets or clears one pixel. Out-of-range coordinates are ignored.
func (b *Bitmap) Set(x, y int, on bool) {
	if x < 0 || x >= b.W || y < 0 || y >= b.H {
		return
	}
	idx := y*b.stride() + x/8
	if on {
		b.bits[idx] |= 1 << (x % 8)
	} else {
		b.bits[idx] &^= 1 << (x % 8)
	}
}

// Fill sets or clears every pixel.
func (b *Bitmap) Fill(on bool) {
	v := byte(0)
	if on {
		v = 0xff
	}
	for i := range b.bits {
		b.bits[i] = v
	}
}

// Invert flips every pixel.
func (b *Bitmap) Invert() {
	for i := range b.bits {
		b.bits[i] = ^b.bits[i]
	}
}

// Count returns the number of set pixels.
func (b *Bitmap) Count() int {
	n := 0
	for y := 0; y < b.H; y++ {
		for x := 0; x < b.W; x++ {
			if b.Pixel(x, y) {
				n++
			}
		}
	}
	return n
}

// Packed returns the raw packed pixel data in the native layout.
func (b *Bitmap) Packed() []byte {
	out := make([]byte, len(b.bits))
	copy(out, b.bits)
	return out
}

// Image renders the bitmap as a grayscale image, set pixels black.
func (b *Bitmap) Image() *image.Gray {
	img := image.NewGray(image.Rect(0, 0, b.W, b.H))
	for y := 0; y < b.H; y++ {
		for x := 0; x < b.W; x++ {
			v := uint8(255)
			if b.Pixel(x, y) {
				v = 0
			}
			img.SetGray(x, y, color.Gray{Y: v})
		}
	}
	return img
}
