package trayhotkey

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/png"
)

const iconSize = 32

var (
	colorActive  = color.RGBA{R: 0x2E, G: 0xB8, B: 0x4A, A: 0xFF}
	colorWaiting = color.RGBA{R: 0xF2, G: 0xC0, B: 0x1C, A: 0xFF}
	colorError   = color.RGBA{R: 0xD9, G: 0x30, B: 0x25, A: 0xFF}
)

// dotIcon renders a filled circle as a single-image ICO with a PNG payload.
func dotIcon(c color.RGBA) []byte {
	img := image.NewRGBA(image.Rect(0, 0, iconSize, iconSize))
	const r = iconSize/2 - 2
	for y := 0; y < iconSize; y++ {
		for x := 0; x < iconSize; x++ {
			dx, dy := x-iconSize/2, y-iconSize/2
			if dx*dx+dy*dy <= r*r {
				img.SetRGBA(x, y, c)
			}
		}
	}
	var payload bytes.Buffer
	_ = png.Encode(&payload, img)

	var out bytes.Buffer
	// ICONDIR
	_ = binary.Write(&out, binary.LittleEndian, [3]uint16{0, 1, 1})
	// ICONDIRENTRY; a zero width or height byte means 256.
	_ = binary.Write(&out, binary.LittleEndian, struct {
		W, H, Colors, Reserved uint8
		Planes, BitCount       uint16
		Size, Offset           uint32
	}{iconSize, iconSize, 0, 0, 1, 32, uint32(payload.Len()), 6 + 16})
	out.Write(payload.Bytes())
	return out.Bytes()
}
