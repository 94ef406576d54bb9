// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package grid

import (
	"github.com/gogpu/gridedit/internal/cache"
)

// Vertices holds four corners as x,y pairs in the order
// top-left, top-right, bottom-left, bottom-right.
type Vertices [8]float32

// Corner indices into Vertices (x at 2*i, y at 2*i+1).
const (
	CornerTL = iota
	CornerTR
	CornerBL
	CornerBR
)

// Row is the render-ready attribute row of one cell.
type Row struct {
	Level    uint8
	GlobalID uint32
	Deleted  bool
	High     Vertices
	Low      Vertices
}

// Batch is a contiguous run of rows in storage id order.
type Batch []Row

// DefaultGeometryCacheSize is the default number of cells whose corners
// are memoised.
const DefaultGeometryCacheSize = 1 << 16

// cornerPair is the cached high/low geometry of a cell.
type cornerPair struct {
	high, low Vertices
}

// Geometry computes render-space corners of cells. Coordinates are
// normalized Mercator relative to the bounding-box centre, stored as
// compensated high/low float32 pairs.
type Geometry struct {
	bbox      BoundingBox
	hierarchy *Hierarchy
	proj      Projector

	centerHigh [2]float32
	centerLow  [2]float32

	corners *cache.Cache[CellKey, cornerPair]
}

// NewGeometry creates a geometry generator. A cacheSize of 0 disables
// memoisation.
func NewGeometry(bbox BoundingBox, h *Hierarchy, proj Projector, cacheSize int) *Geometry {
	g := &Geometry{
		bbox:      bbox,
		hierarchy: h,
		proj:      proj,
	}
	if cacheSize > 0 {
		g.corners = cache.New[CellKey, cornerPair](cacheSize)
	}

	cx, cy := bbox.Center()
	mx, my := MercatorFromLonLat(proj.Forward(cx, cy))
	g.centerHigh[0], g.centerLow[0] = SplitFloat(mx)
	g.centerHigh[1], g.centerLow[1] = SplitFloat(my)
	return g
}

// Origin returns the render-space origin as high and low parts.
// Hosts subtract it from the camera position to build a relative-to-origin
// view matrix.
func (g *Geometry) Origin() (high, low [2]float32) {
	return g.centerHigh, g.centerLow
}

// OriginMercator returns the render-space origin as float64 Mercator.
func (g *Geometry) OriginMercator() (x, y float64) {
	return float64(g.centerHigh[0]) + float64(g.centerLow[0]),
		float64(g.centerHigh[1]) + float64(g.centerLow[1])
}

// Corners returns the high and low vertices of a cell.
func (g *Geometry) Corners(level uint8, globalID uint32) (high, low Vertices) {
	if g.corners == nil {
		p := g.compute(level, globalID)
		return p.high, p.low
	}
	p := g.corners.GetOrCreate(CellKey{Level: level, GlobalID: globalID}, func() cornerPair {
		return g.compute(level, globalID)
	})
	return p.high, p.low
}

// CacheStats reports memoisation statistics.
func (g *Geometry) CacheStats() cache.Stats {
	if g.corners == nil {
		return cache.Stats{}
	}
	return g.corners.Stats()
}

func (g *Geometry) compute(level uint8, globalID uint32) cornerPair {
	width, height := g.hierarchy.Size(level)
	u := float64(globalID % width)
	v := float64(globalID / width)

	xMin := lerp(g.bbox.MinX, g.bbox.MaxX, u/float64(width))
	yMin := lerp(g.bbox.MinY, g.bbox.MaxY, v/float64(height))
	xMax := lerp(g.bbox.MinX, g.bbox.MaxX, (u+1)/float64(width))
	yMax := lerp(g.bbox.MinY, g.bbox.MaxY, (v+1)/float64(height))

	src := [4][2]float64{
		CornerTL: {xMin, yMax},
		CornerTR: {xMax, yMax},
		CornerBL: {xMin, yMin},
		CornerBR: {xMax, yMin},
	}

	var p cornerPair
	for i, c := range src {
		mx, my := MercatorFromLonLat(g.proj.Forward(c[0], c[1]))
		xh, xl := SplitFloat(mx)
		yh, yl := SplitFloat(my)
		p.high[2*i] = float32(float64(xh) - float64(g.centerHigh[0]))
		p.low[2*i] = float32(float64(xl) - float64(g.centerLow[0]))
		p.high[2*i+1] = float32(float64(yh) - float64(g.centerHigh[1]))
		p.low[2*i+1] = float32(float64(yl) - float64(g.centerLow[1]))
	}
	return p
}

func lerp(a, b, t float64) float64 {
	return (1-t)*a + t*b
}
