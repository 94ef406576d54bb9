// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gridedit

import (
	"errors"

	"github.com/gogpu/gridedit/grid"
	"github.com/gogpu/gridedit/mirror"
)

var (
	// ErrEngineNotInitialized is returned by every operation issued before
	// a context has been loaded. It must be surfaced to the user.
	ErrEngineNotInitialized = errors.New("gridedit: engine not initialized")

	// ErrStaleContext is returned when a feature pick completes after a
	// different context was loaded. Its results are discarded.
	ErrStaleContext = errors.New("gridedit: stale context")

	// ErrFeaturePending is returned when a feature task is applied before
	// it has completed.
	ErrFeaturePending = errors.New("gridedit: feature pick pending")

	// ErrNoFeatureSource is returned by PickFeature when the engine was
	// built without a feature source.
	ErrNoFeatureSource = errors.New("gridedit: no feature source")
)

// Errors of the grid store and attribute mirror, re-exported so callers
// can match them against this package.
var (
	ErrUnknownSlot      = grid.ErrUnknownSlot
	ErrInvalidContext   = grid.ErrInvalidContext
	ErrInvalidCell      = grid.ErrInvalidCell
	ErrMaxLevelReached  = grid.ErrMaxLevelReached
	ErrDeviceAllocation = mirror.ErrDeviceAllocation
	ErrCapacityExceeded = mirror.ErrCapacityExceeded
)
