package raster

import (
	"image"
	stddraw "image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Banner renders text onto an all-white w×h bitmap with the built-in 7x13
// face, one line per string, and a one-pixel border. Deterministic, used as
// a test card when no image is supplied.
func Banner(w, h int, lines ...string) *Bitmap {
	fb := image.NewGray(image.Rect(0, 0, w, h))
	stddraw.Draw(fb, fb.Bounds(), image.White, image.Point{}, stddraw.Src)

	face := basicfont.Face7x13
	d := &font.Drawer{
		Dst:  fb,
		Src:  image.Black,
		Face: face,
	}
	lineHeight := face.Height + 3
	y := (h-lineHeight*len(lines))/2 + face.Ascent
	for _, line := range lines {
		adv := d.MeasureString(line)
		d.Dot = fixed.P((w-adv.Ceil())/2, y)
		d.DrawString(line)
		y += lineHeight
	}

	b := New(w, h)
	for py := 0; py < h; py++ {
		for px := 0; px < w; px++ {
			on := fb.GrayAt(px, py).Y < 128
			if px == 0 || py == 0 || px == w-1 || py == h-1 {
				on = true
			}
			b.Set(px, py, on)
		}
	}
	return b
}
