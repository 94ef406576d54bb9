// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package picking

import (
	"image"
	"image/color"
	"image/png"
	"os"
)

// Target is an offscreen id buffer in RGBA8 layout, 4 bytes per pixel,
// rows top to bottom.
type Target struct {
	width  int
	height int
	data   []uint8
}

// NewTarget creates a target cleared to the sentinel.
func NewTarget(width, height int) *Target {
	t := &Target{
		width:  width,
		height: height,
		data:   make([]uint8, width*height*4),
	}
	t.Clear()
	return t
}

// Width returns the width of the target.
func (t *Target) Width() int { return t.width }

// Height returns the height of the target.
func (t *Target) Height() int { return t.height }

// Bounds returns the target rectangle.
func (t *Target) Bounds() image.Rectangle { return image.Rect(0, 0, t.width, t.height) }

// Data returns the raw pixel data.
func (t *Target) Data() []uint8 { return t.data }

// Clear fills the target with the sentinel.
func (t *Target) Clear() {
	for i := range t.data {
		t.data[i] = 0xFF
	}
}

// SetID writes id at (x, y). Out of bounds writes are ignored.
func (t *Target) SetID(x, y int, id uint32) {
	if x < 0 || x >= t.width || y < 0 || y >= t.height {
		return
	}
	b := EncodeID(id)
	copy(t.data[(y*t.width+x)*4:], b[:])
}

// ID returns the raw id stored at (x, y), Sentinel when out of bounds.
func (t *Target) ID(x, y int) uint32 {
	if x < 0 || x >= t.width || y < 0 || y >= t.height {
		return Sentinel
	}
	i := (y*t.width + x) * 4
	return uint32(t.data[i]) | uint32(t.data[i+1])<<8 | uint32(t.data[i+2])<<16 | uint32(t.data[i+3])<<24
}

// Region returns a tightly packed copy of the pixels inside r, which must
// lie within the target.
func (t *Target) Region(r image.Rectangle) []byte {
	out := make([]byte, 0, r.Dx()*r.Dy()*4)
	for y := r.Min.Y; y < r.Max.Y; y++ {
		row := (y*t.width + r.Min.X) * 4
		out = append(out, t.data[row:row+r.Dx()*4]...)
	}
	return out
}

// ToImage converts the target to an image.RGBA.
func (t *Target) ToImage() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, t.width, t.height))
	copy(img.Pix, t.data)
	return img
}

// SavePNG writes the target to path with ids scattered over visible
// colors, for inspecting picking coverage by eye.
func (t *Target) SavePNG(path string) error {
	img := image.NewRGBA(image.Rect(0, 0, t.width, t.height))
	for y := 0; y < t.height; y++ {
		for x := 0; x < t.width; x++ {
			id := t.ID(x, y)
			if id == Sentinel {
				img.SetRGBA(x, y, color.RGBA{A: 0xFF})
				continue
			}
			h := id*2654435761 + 1
			img.SetRGBA(x, y, color.RGBA{R: byte(h >> 24), G: byte(h >> 16), B: byte(h >> 8), A: 0xFF})
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, img)
}
