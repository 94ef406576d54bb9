// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package grid

import (
	"fmt"
	"math"
)

// maxLevels bounds the ratio table so levels fit in a uint8.
const maxLevels = math.MaxUint8 + 1

// levelInfo is the raster size of one level.
type levelInfo struct {
	width  uint32
	height uint32
}

// Hierarchy derives raster sizes and parent/child globalIds from a table
// of level sizes. It holds no cells and is safe for concurrent use.
type Hierarchy struct {
	ratios [][2]uint32
	levels []levelInfo
}

// NewHierarchy validates a table of level sizes and precomputes per-level
// raster sizes. ratios[0] is the level-0 raster and ratios[L] the
// per-axis split of a level L-1 cell, so a Context with ratio table R maps
// to [FirstSize, R...]. The raster of the deepest level must be
// addressable by a uint32.
func NewHierarchy(ratios [][2]uint32) (*Hierarchy, error) {
	if len(ratios) == 0 {
		return nil, fmt.Errorf("%w: empty ratio table", ErrInvalidContext)
	}
	if len(ratios) > maxLevels {
		return nil, fmt.Errorf("%w: %d levels exceed %d", ErrInvalidContext, len(ratios), maxLevels)
	}

	h := &Hierarchy{
		ratios: append([][2]uint32(nil), ratios...),
		levels: make([]levelInfo, len(ratios)),
	}
	w, ht := uint64(1), uint64(1)
	for i, r := range ratios {
		if r[0] == 0 || r[1] == 0 {
			return nil, fmt.Errorf("%w: ratio %d is %v", ErrInvalidContext, i, r)
		}
		w *= uint64(r[0])
		ht *= uint64(r[1])
		if w > math.MaxUint32 || ht > math.MaxUint32 || w*ht > math.MaxUint32+1 {
			return nil, fmt.Errorf("%w: level %d raster %dx%d overflows uint32", ErrInvalidContext, i, w, ht)
		}
		h.levels[i] = levelInfo{width: uint32(w), height: uint32(ht)}
	}
	return h, nil
}

// MaxLevel returns the deepest level.
func (h *Hierarchy) MaxLevel() uint8 {
	return uint8(len(h.levels) - 1) //nolint:gosec // len bounded by maxLevels
}

// Size returns the raster width and height of a level.
func (h *Hierarchy) Size(level uint8) (width, height uint32) {
	info := h.levels[level]
	return info.width, info.height
}

// Count returns the number of cells in a level's raster.
func (h *Hierarchy) Count(level uint8) uint64 {
	info := h.levels[level]
	return uint64(info.width) * uint64(info.height)
}

// Ratio returns the per-axis child count of a level.
func (h *Hierarchy) Ratio(level uint8) (sw, sh uint32) {
	r := h.ratios[level]
	return r[0], r[1]
}

// Contains reports whether (level, globalId) addresses a raster cell.
func (h *Hierarchy) Contains(level uint8, globalID uint32) bool {
	if int(level) >= len(h.levels) {
		return false
	}
	return uint64(globalID) < h.Count(level)
}

// ChildGlobalIDs returns the globalIds of a cell's children at level+1,
// in row-major order of their local ids.
func (h *Hierarchy) ChildGlobalIDs(level uint8, globalID uint32) ([]uint32, error) {
	if !h.Contains(level, globalID) {
		return nil, fmt.Errorf("%w: (%d, %d)", ErrInvalidCell, level, globalID)
	}
	if level >= h.MaxLevel() {
		return nil, fmt.Errorf("%w: level %d", ErrMaxLevelReached, level)
	}

	width := h.levels[level].width
	u := globalID % width
	v := globalID / width
	sw, sh := h.Ratio(level + 1)
	childWidth := width * sw

	children := make([]uint32, 0, sw*sh)
	for localID := uint32(0); localID < sw*sh; localID++ {
		subU := localID % sw
		subV := localID / sw
		children = append(children, (v*sh+subV)*childWidth+u*sw+subU)
	}
	return children, nil
}

// ParentGlobalID returns the globalId of a cell's parent at level-1.
// Level 0 cells have no parent.
func (h *Hierarchy) ParentGlobalID(level uint8, globalID uint32) (uint32, bool) {
	if level == 0 || !h.Contains(level, globalID) {
		return 0, false
	}
	width := h.levels[level].width
	u := globalID % width
	v := globalID / width
	sw, sh := h.Ratio(level)
	return (v/sh)*h.levels[level-1].width + u/sw, true
}

// LocalID returns a cell's index among its siblings. Level 0 cells use
// their globalId.
func (h *Hierarchy) LocalID(level uint8, globalID uint32) uint32 {
	if level == 0 {
		return globalID
	}
	width := h.levels[level].width
	u := globalID % width
	v := globalID / width
	sw, sh := h.Ratio(level)
	return (v%sh)*sw + u%sw
}

// SiblingCount returns the number of children one parent has at level.
func (h *Hierarchy) SiblingCount(level uint8) int {
	sw, sh := h.Ratio(level)
	return int(sw * sh)
}
