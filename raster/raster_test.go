package raster_test

import (
	"image"
	"image/color"
	"testing"

	"inkpad/raster"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPackedLayout(t *testing.T) {
	b := raster.New(16, 2)
	b.Set(0, 0, true)
	b.Set(9, 0, true)
	b.Set(15, 1, true)

	// LSB-first within each row byte, two bytes per row.
	assert.Equal(t, []byte{0x01, 0x02, 0x00, 0x80}, b.Packed())
	assert.True(t, b.Pixel(0, 0))
	assert.True(t, b.Pixel(9, 0))
	assert.False(t, b.Pixel(9, 1))
}

func TestPixelOutOfRange(t *testing.T) {
	b := raster.New(8, 8)
	b.Fill(true)
	assert.False(t, b.Pixel(-1, 0))
	assert.False(t, b.Pixel(8, 0))
	assert.False(t, b.Pixel(0, -1))
	assert.False(t, b.Pixel(0, 8))
	assert.True(t, b.Pixel(7, 7))
}

func TestSetClearInvert(t *testing.T) {
	b := raster.New(8, 1)
	b.Set(3, 0, true)
	assert.Equal(t, 1, b.Count())
	b.Set(3, 0, false)
	assert.Equal(t, 0, b.Count())
	b.Invert()
	assert.Equal(t, 8, b.Count())
	b.Set(-1, 0, true) // ignored
	assert.Equal(t, 8, b.Count())
}

func TestFromPacked(t *testing.T) {
	_, ok := raster.FromPacked(make([]byte, 3), 16, 2)
	assert.False(t, ok)

	b, ok := raster.FromPacked([]byte{0x01, 0x00, 0x00, 0x80}, 16, 2)
	require.True(t, ok)
	assert.True(t, b.Pixel(0, 0))
	assert.True(t, b.Pixel(15, 1))
	assert.Equal(t, 2, b.Count())
}

func TestFromImageThreshold(t *testing.T) {
	// Left half black, right half white, already at target size.
	src := image.NewGray(image.Rect(0, 0, 32, 12))
	for y := 0; y < 12; y++ {
		for x := 0; x < 32; x++ {
			v := uint8(255)
			if x < 16 {
				v = 0
			}
			src.SetGray(x, y, color.Gray{Y: v})
		}
	}

	b := raster.FromImage(src, 32, 12, raster.Options{})
	assert.True(t, b.Pixel(2, 6))
	assert.False(t, b.Pixel(30, 6))

	inv := raster.FromImage(src, 32, 12, raster.Options{Invert: true})
	assert.False(t, inv.Pixel(2, 6))
	assert.True(t, inv.Pixel(30, 6))
}

func TestFromImageLetterbox(t *testing.T) {
	// A 10x10 all-black square into a 40x20 canvas lands centered with
	// white margins left and right.
	src := image.NewGray(image.Rect(0, 0, 10, 10))
	b := raster.FromImage(src, 40, 20, raster.Options{})
	assert.False(t, b.Pixel(0, 10))
	assert.False(t, b.Pixel(39, 10))
	assert.True(t, b.Pixel(20, 10))
}

func TestBannerDeterministic(t *testing.T) {
	a := raster.Banner(320, 120, "inkpad", "test card")
	b := raster.Banner(320, 120, "inkpad", "test card")
	assert.Equal(t, a.Packed(), b.Packed())

	// Border is always inked, interior carries the text.
	assert.True(t, a.Pixel(0, 0))
	assert.True(t, a.Pixel(319, 119))
	assert.Greater(t, a.Count(), 2*320+2*120-4)
}

func TestDecodeBMP(t *testing.T) {
	// 8x2 monochrome BMP, bottom-up: top row has pixel 0 set, bottom row
	// pixel 7. Palette entry 0 is black (ink), entry 1 white.
	bmp := []byte{
		'B', 'M',
		70, 0, 0, 0, // file size
		0, 0, 0, 0,
		62, 0, 0, 0, // pixel offset
		40, 0, 0, 0, // DIB size
		8, 0, 0, 0, // width
		2, 0, 0, 0, // height
		1, 0, // planes
		1, 0, // bpp
		0, 0, 0, 0, // compression
		0, 0, 0, 0, 0, 0, 0, 0, 0, 0, // rest of the DIB header
		0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
		0x00, 0x00, 0x00, 0x00, // palette 0: black
		0xff, 0xff, 0xff, 0x00, // palette 1: white
		0xfe, 0xff, 0xff, 0xff, // bottom row: pixel 7 ink (bit clear)
		0x7f, 0xff, 0xff, 0xff, // top row: pixel 0 ink
	}

	b, err := raster.DecodeBMP(bmp)
	require.NoError(t, err)
	assert.Equal(t, 8, b.W)
	assert.Equal(t, 2, b.H)
	assert.True(t, b.Pixel(0, 0))
	assert.True(t, b.Pixel(7, 1))
	assert.Equal(t, 2, b.Count())
}

func TestDecodeBMPRejects(t *testing.T) {
	_, err := raster.DecodeBMP([]byte("not a bitmap"))
	assert.Error(t, err)
}
