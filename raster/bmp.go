package raster

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/32bitkid/bitreader"
)

// DecodeBMP decodes a 1-bpp uncompressed Windows BMP. Rows are stored
// bottom-up and padded to 4 bytes, pixel bits MSB-first; the darker of the
// two palette entries counts as ink.
func DecodeBMP(data []byte) (*Bitmap, error) {
	if len(data) < 54 || data[0] != 'B' || data[1] != 'M' {
		return nil, fmt.Errorf("bmp: not a BMP file")
	}
	pixOffset := binary.LittleEndian.Uint32(data[10:14])
	dibSize := binary.LittleEndian.Uint32(data[14:18])
	if dibSize < 40 {
		return nil, fmt.Errorf("bmp: unsupported DIB header size %d", dibSize)
	}
	width := int(int32(binary.LittleEndian.Uint32(data[18:22])))
	height := int(int32(binary.LittleEndian.Uint32(data[22:26])))
	bpp := binary.LittleEndian.Uint16(data[28:30])
	compression := binary.LittleEndian.Uint32(data[30:34])
	if bpp != 1 {
		return nil, fmt.Errorf("bmp: want 1 bpp monochrome, got %d bpp", bpp)
	}
	if compression != 0 {
		return nil, fmt.Errorf("bmp: compressed BMP not supported")
	}

	topDown := false
	if height < 0 {
		topDown = true
		height = -height
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("bmp: bad dimensions %dx%d", width, height)
	}

	// Two BGRX palette entries follow the DIB header; the darker one is ink.
	palOff := 14 + int(dibSize)
	if len(data) < palOff+8 {
		return nil, fmt.Errorf("bmp: truncated palette")
	}
	inkIndex := 0
	if lum(data[palOff:palOff+4]) > lum(data[palOff+4:palOff+8]) {
		inkIndex = 1
	}

	rowBytes := ((width + 31) / 32) * 4
	if len(data) < int(pixOffset)+rowBytes*height {
		return nil, fmt.Errorf("bmp: truncated pixel data")
	}

	b := New(width, height)
	for row := 0; row < height; row++ {
		y := height - 1 - row
		if topDown {
			y = row
		}
		off := int(pixOffset) + row*rowBytes
		br := bitreader.NewReader(bytes.NewReader(data[off : off+rowBytes]))
		for x := 0; x < width; x++ {
			bit, err := br.Read1()
			if err != nil {
				return nil, fmt.Errorf("bmp: row %d: %w", row, err)
			}
			idx := 0
			if bit {
				idx = 1
			}
			b.Set(x, y, idx == inkIndex)
		}
	}
	return b, nil
}

// lum is the integer luma of one BGRX palette entry.
func lum(bgrx []byte) int {
	return 299*int(bgrx[2]) + 587*int(bgrx[1]) + 114*int(bgrx[0])
}
