// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package picking

import (
	"image"
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/gogpu/gridedit/grid"
)

// Point is a pointer position in CSS pixels, origin at the top-left of
// the viewport.
type Point struct {
	X, Y float64
}

// View is the camera state supplied by the map host for one frame.
type View struct {
	// Matrix maps Mercator coordinates relative to Eye to clip space.
	Matrix mgl64.Mat4

	// Eye is the Mercator position Matrix is relative to, usually the
	// camera centre.
	Eye [2]float64

	// Width and Height are the viewport size in CSS pixels.
	Width, Height float64

	// PixelRatio is the number of device pixels per CSS pixel.
	// Zero is treated as 1.
	PixelRatio float64
}

func (v View) pixelRatio() float64 {
	if v.PixelRatio <= 0 {
		return 1
	}
	return v.PixelRatio
}

// BoxTargetSize returns the box picking target size: the device-pixel
// viewport scaled down by the pixel density.
func (v View) BoxTargetSize() (width, height int) {
	pr := v.pixelRatio()
	deviceW := math.Floor(v.Width * pr)
	deviceH := math.Floor(v.Height * pr)
	return int(math.Floor(deviceW / pr)), int(math.Floor(deviceH / pr))
}

// NDC converts a pointer position to normalized device coordinates.
func (v View) NDC(p Point) (x, y float64) {
	return 2*p.X/v.Width - 1, 1 - 2*p.Y/v.Height
}

// PickingMatrix returns the clip-space transform that centres a 1x1
// target on p: Scale(w/2, h/2, 1) * Translate(-ndcX, -ndcY, 0).
func (v View) PickingMatrix(p Point) mgl64.Mat4 {
	nx, ny := v.NDC(p)
	return mgl64.Scale3D(v.Width/2, v.Height/2, 1).Mul4(mgl64.Translate3D(-nx, -ny, 0))
}

// BoxRegion returns the target rectangle spanned by two pointer positions,
// clamped to a width x height target. The corners may be given in any
// order. The result is empty when the pointers span no whole pixel.
func BoxRegion(a, b Point, width, height int) image.Rectangle {
	x0 := int(math.Floor(math.Min(a.X, b.X)))
	y0 := int(math.Floor(math.Min(a.Y, b.Y)))
	x1 := int(math.Floor(math.Max(a.X, b.X)))
	y1 := int(math.Floor(math.Max(a.Y, b.Y)))
	return image.Rect(x0, y0, x1, y1).Intersect(image.Rect(0, 0, width, height))
}

// Shift returns the per-frame offset added to every stored vertex:
// origin minus eye, split into high and low parts as
// {highX, highY, lowX, lowY}.
func Shift(originHigh, originLow [2]float32, eye [2]float64) [4]float32 {
	ehx, elx := grid.SplitFloat(eye[0])
	ehy, ely := grid.SplitFloat(eye[1])
	return [4]float32{
		originHigh[0] - ehx,
		originHigh[1] - ehy,
		originLow[0] - elx,
		originLow[1] - ely,
	}
}
