// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package grid

import (
	"fmt"
	"math"
)

// BoundingBox is an axis-aligned rectangle in the source CRS.
type BoundingBox struct {
	MinX float64 `json:"xMin"`
	MinY float64 `json:"yMin"`
	MaxX float64 `json:"xMax"`
	MaxY float64 `json:"yMax"`
}

// Center returns the centre of the box.
func (b BoundingBox) Center() (x, y float64) {
	return (b.MinX + b.MaxX) / 2, (b.MinY + b.MaxY) / 2
}

// valid reports whether the box has finite, positive extent on both axes.
func (b BoundingBox) valid() bool {
	for _, v := range [...]float64{b.MinX, b.MinY, b.MaxX, b.MaxY} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return b.MaxX > b.MinX && b.MaxY > b.MinY
}

// Context is the spatial frame and subdivision schema of one patch.
// It is immutable for the lifetime of a loaded grid.
type Context struct {
	// SourceCRS names the CRS of BoundingBox, e.g. "EPSG:3857".
	SourceCRS string `json:"srcCS"`

	// TargetCRS names the geographic CRS the source is projected to
	// before Mercator conversion. Empty means "EPSG:4326".
	TargetCRS string `json:"targetCS"`

	BoundingBox BoundingBox `json:"bBox"`

	// FirstSize is the per-axis cell count of the level-0 raster over the
	// bounding box. The zero value uses Rules[0].
	FirstSize [2]uint32 `json:"firstSize"`

	// Rules is the ratio table. Subdividing a level L cell yields
	// Rules[L][0] x Rules[L][1] children, so the deepest level is
	// len(Rules).
	Rules [][2]uint32 `json:"rules"`

	// MaxGridNum is the slot capacity of the GPU mirror. Zero selects the
	// default capacity.
	MaxGridNum int `json:"maxGridNum,omitempty"`
}

// Validate checks the context without building a store.
func (c *Context) Validate() error {
	if !c.BoundingBox.valid() {
		return fmt.Errorf("%w: degenerate bounding box %+v", ErrInvalidContext, c.BoundingBox)
	}
	if c.MaxGridNum < 0 {
		return fmt.Errorf("%w: negative max grid num %d", ErrInvalidContext, c.MaxGridNum)
	}
	_, err := c.hierarchy()
	return err
}

// MaxLevel returns the deepest level allowed by the ratio table.
func (c *Context) MaxLevel() uint8 {
	return uint8(min(len(c.Rules), math.MaxUint8)) //nolint:gosec // clamped
}

// hierarchy builds the level sizes of the context: the level-0 raster
// followed by the ratio table.
func (c *Context) hierarchy() (*Hierarchy, error) {
	if len(c.Rules) == 0 {
		return nil, fmt.Errorf("%w: empty ratio table", ErrInvalidContext)
	}
	first := c.FirstSize
	if first == ([2]uint32{}) {
		first = c.Rules[0]
	}
	sizes := make([][2]uint32, 0, len(c.Rules)+1)
	sizes = append(sizes, first)
	return NewHierarchy(append(sizes, c.Rules...))
}
