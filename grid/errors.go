// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package grid

import "errors"

var (
	// ErrInvalidContext is returned when a context or snapshot cannot
	// describe a valid hierarchy.
	ErrInvalidContext = errors.New("grid: invalid context")

	// ErrUnknownSlot is returned when a storage id is outside the live range.
	ErrUnknownSlot = errors.New("grid: unknown storage slot")

	// ErrMaxLevelReached is returned when children are requested for a cell
	// already at the deepest level.
	ErrMaxLevelReached = errors.New("grid: max level reached")

	// ErrInvalidCell is returned when a (level, globalId) pair lies outside
	// its level's raster, or is already live when it is appended.
	ErrInvalidCell = errors.New("grid: invalid cell")
)
