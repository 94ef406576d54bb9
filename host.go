// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gridedit

import (
	"context"

	"github.com/gogpu/gridedit/grid"
)

// Host is the map host drawing the grid layer.
type Host interface {
	// TriggerRepaint asks the host to draw a new frame.
	TriggerRepaint()
}

// Notifier surfaces failures the user should see, typically as a toast.
type Notifier interface {
	Notify(err error)
}

// FeatureSource tests external feature geometry against the grid and
// returns the cells it intersects. Implementations may block; the engine
// calls them off the caller's goroutine.
type FeatureSource interface {
	PickFeature(ctx context.Context, path string) ([]grid.CellKey, error)
}

// HostFunc adapts a function to Host.
type HostFunc func()

// TriggerRepaint implements Host.
func (f HostFunc) TriggerRepaint() { f() }

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(err error)

// Notify implements Notifier.
func (f NotifierFunc) Notify(err error) { f(err) }
