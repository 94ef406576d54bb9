// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package picking

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/gogpu/gridedit/grid"
)

// VertexSource provides the split corner vertices of a slot.
type VertexSource interface {
	Vertices(slot int) (high, low grid.Vertices)
}

// SoftwareRenderer rasterizes ids on the CPU. It reproduces the draw of
// the GPU renderer: slots are drawn in storage order without depth
// testing, so where cells overlap the later slot wins.
type SoftwareRenderer struct {
	src  VertexSource
	last *Target
}

// NewSoftwareRenderer creates a renderer reading vertices from src.
func NewSoftwareRenderer(src VertexSource) *SoftwareRenderer {
	return &SoftwareRenderer{src: src}
}

// LastTarget returns the target of the most recent render, or nil.
func (r *SoftwareRenderer) LastTarget() *Target { return r.last }

// RenderIDs implements Renderer.
func (r *SoftwareRenderer) RenderIDs(req Request) ([]byte, error) {
	t := NewTarget(req.Width, req.Height)
	r.last = t

	region := req.Region.Intersect(t.Bounds())
	if region.Empty() {
		return []byte{}, nil
	}

	var quad [4][2]float64
	for slot := 0; slot < req.Count; slot++ {
		high, low := r.src.Vertices(slot)
		if !project(&quad, high, low, req.Shift, req.Transform, req.Width, req.Height) {
			continue
		}
		fillQuad(t, &quad, region.Min.X, region.Min.Y, region.Max.X, region.Max.Y, uint32(slot))
	}
	return t.Region(region), nil
}

// project maps the four corners of a cell into target pixel coordinates,
// ordered TL, TR, BR, BL. It reports false when any corner lies behind
// the camera.
func project(out *[4][2]float64, high, low grid.Vertices, shift [4]float32, m mgl64.Mat4, width, height int) bool {
	order := [4]int{grid.CornerTL, grid.CornerTR, grid.CornerBR, grid.CornerBL}
	for i, c := range order {
		x := (float64(high[2*c]) + float64(shift[0])) + (float64(low[2*c]) + float64(shift[2]))
		y := (float64(high[2*c+1]) + float64(shift[1])) + (float64(low[2*c+1]) + float64(shift[3]))
		clip := m.Mul4x1(mgl64.Vec4{x, y, 0, 1})
		if clip[3] <= 0 {
			return false
		}
		nx, ny := clip[0]/clip[3], clip[1]/clip[3]
		out[i][0] = (nx*0.5 + 0.5) * float64(width)
		out[i][1] = (1 - (ny*0.5 + 0.5)) * float64(height)
	}
	return true
}

// fillQuad writes id to every pixel in [x0,x1)x[y0,y1) whose centre lies
// inside the convex quad q.
func fillQuad(t *Target, q *[4][2]float64, x0, y0, x1, y1 int, id uint32) {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, p := range q {
		minX, maxX = math.Min(minX, p[0]), math.Max(maxX, p[0])
		minY, maxY = math.Min(minY, p[1]), math.Max(maxY, p[1])
	}
	bx0 := max(x0, int(math.Floor(minX-0.5)))
	by0 := max(y0, int(math.Floor(minY-0.5)))
	bx1 := min(x1, int(math.Ceil(maxX+0.5)))
	by1 := min(y1, int(math.Ceil(maxY+0.5)))

	for y := by0; y < by1; y++ {
		cy := float64(y) + 0.5
		for x := bx0; x < bx1; x++ {
			if insideQuad(q, float64(x)+0.5, cy) {
				t.SetID(x, y, id)
			}
		}
	}
}

// insideQuad reports whether (px, py) lies inside or on the edge of the
// convex quad q, regardless of its winding.
func insideQuad(q *[4][2]float64, px, py float64) bool {
	var pos, neg bool
	for i := range q {
		a, b := q[i], q[(i+1)%4]
		e := (b[0]-a[0])*(py-a[1]) - (b[1]-a[1])*(px-a[0])
		if e > 0 {
			pos = true
		} else if e < 0 {
			neg = true
		}
		if pos && neg {
			return false
		}
	}
	return true
}
