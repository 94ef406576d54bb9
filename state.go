// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gridedit

// State is the engine's operation state. Mutating operations are
// synchronous, so Subdividing, Merging, Deleting and Recovering are only
// observable from callbacks. Between operations the state is Selecting
// when any cell is selected and Idle otherwise.
type State int

const (
	// Idle means nothing is selected.
	Idle State = iota
	// Selecting means at least one cell is selected.
	Selecting
	// Subdividing is the state during Subdivide.
	Subdividing
	// Merging is the state during Merge.
	Merging
	// Deleting is the state during Delete.
	Deleting
	// Recovering is the state during Recover.
	Recovering
)

// String returns the lowercase name of the state, as used in metric
// labels and host bridge status events.
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Selecting:
		return "selecting"
	case Subdividing:
		return "subdividing"
	case Merging:
		return "merging"
	case Deleting:
		return "deleting"
	case Recovering:
		return "recovering"
	}
	return "unknown"
}
