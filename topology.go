// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gridedit

import (
	"fmt"
	"slices"

	"github.com/gogpu/gridedit/grid"
)

// Select adds ids to the selection, or removes them when add is false.
// Ids outside the live range are ignored.
func (e *Engine) Select(ids []uint32, add bool) error {
	if err := e.ready(); err != nil {
		return err
	}
	e.clearHighlight()
	if err := e.apply(ids, add); err != nil {
		return err
	}
	e.settle()
	e.instrumentCounts()
	e.repaint()
	return nil
}

func (e *Engine) apply(ids []uint32, add bool) error {
	n := e.store.Len()
	for _, id := range ids {
		if int(id) >= n {
			continue
		}
		var err error
		if add {
			err = e.sel.Add(int(id))
		} else {
			err = e.sel.Remove(int(id))
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// SelectAll selects every live cell.
func (e *Engine) SelectAll() error {
	if err := e.ready(); err != nil {
		return err
	}
	e.clearHighlight()
	if err := e.sel.AddAll(); err != nil {
		return err
	}
	e.settle()
	e.instrumentCounts()
	e.repaint()
	return nil
}

// ClearSelection deselects every cell in O(1) by advancing the hit
// generation.
func (e *Engine) ClearSelection() error {
	if err := e.ready(); err != nil {
		return err
	}
	e.clearHighlight()
	if _, err := e.sel.Clear(); err != nil {
		return err
	}
	e.settle()
	e.instrumentCounts()
	e.repaint()
	return nil
}

// Delete soft-deletes the selected cells that are not deleted yet and
// returns their storage ids, which stay selected. Cells already deleted
// are left untouched.
func (e *Engine) Delete() ([]uint32, error) {
	return e.setDeleted(Deleting, true)
}

// Recover restores the selected cells that are deleted and returns their
// storage ids, which stay selected.
func (e *Engine) Recover() ([]uint32, error) {
	return e.setDeleted(Recovering, false)
}

func (e *Engine) setDeleted(op State, deleted bool) ([]uint32, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	e.clearHighlight()

	var ids []uint32
	for _, id := range e.sel.Selected() {
		d, err := e.store.IsDeleted(id)
		if err != nil {
			return nil, err
		}
		if d != deleted {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil, nil
	}

	e.begin(op)
	defer e.finish()

	for _, id := range ids {
		if err := e.store.SetDeleted(id, deleted); err != nil {
			return nil, err
		}
		if err := e.mirror.SetDeleted(int(id), deleted); err != nil {
			return nil, err
		}
	}
	if _, err := e.sel.Clear(); err != nil {
		return nil, err
	}
	if err := e.apply(ids, true); err != nil {
		return nil, err
	}
	instrumentTopologyOp(op, len(ids))
	return ids, nil
}

// Subdivide replaces every selected cell that is neither deleted nor at
// the deepest level with its children. The children are appended at the
// end of the live range and become the selection; their storage ids are
// returned. Selected cells that cannot be subdivided are deselected and
// otherwise left as they are.
//
// Subdivide fails with ErrCapacityExceeded, before changing anything, when
// the children would not fit the mirror.
func (e *Engine) Subdivide() ([]uint32, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	e.clearHighlight()

	selected := e.sel.Selected()
	if len(selected) == 0 {
		return nil, nil
	}

	maxLevel := e.store.Hierarchy().MaxLevel()
	var (
		removed  []uint32
		children []grid.CellKey
	)
	for _, id := range selected {
		level, gid, err := e.store.GridInfo(id)
		if err != nil {
			return nil, err
		}
		deleted, _ := e.store.IsDeleted(id)
		if deleted || level >= maxLevel {
			continue
		}
		gids, err := e.store.ChildGlobalIDs(level, gid)
		if err != nil {
			return nil, err
		}
		for _, c := range gids {
			key := grid.CellKey{Level: level + 1, GlobalID: c}
			if _, live := e.store.Lookup(key.Level, key.GlobalID); live {
				return nil, fmt.Errorf("%w: child (%d, %d) of slot %d already live", ErrInvalidCell, key.Level, key.GlobalID, id)
			}
			children = append(children, key)
		}
		removed = append(removed, id)
	}

	if len(removed) > 0 {
		if err := e.checkCapacity(len(removed), len(children)); err != nil {
			return nil, err
		}
	}

	e.begin(Subdividing)
	defer e.finish()

	if len(removed) == 0 {
		// Nothing subdividable: the selection is still cleared.
		_, err := e.sel.Clear()
		return nil, err
	}

	ids, err := e.replace(removed, children)
	if err != nil {
		return nil, err
	}
	instrumentTopologyOp(Subdividing, len(removed))
	e.logger.Debug("gridedit: subdivided", "cells", len(removed), "children", len(children), "live", e.store.Len())
	return ids, nil
}

// Merge replaces every complete sibling group in the selection with its
// parent. The parents are appended at the end of the live range and become
// the selection; their storage ids are returned. Groups the selection only
// partly covers are not merged. When no group is complete nothing changes,
// the selection included. Merge fails with ErrInvalidCell, before changing
// anything, when a parent is already live.
func (e *Engine) Merge() ([]uint32, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	e.clearHighlight()

	parents := e.store.MergeCandidates(e.sel.Selected())
	if len(parents) == 0 {
		return nil, nil
	}
	for _, p := range parents {
		if id, live := e.store.Lookup(p.Level, p.GlobalID); live {
			return nil, fmt.Errorf("%w: parent (%d, %d) already live at slot %d", ErrInvalidCell, p.Level, p.GlobalID, id)
		}
	}

	e.begin(Merging)
	defer e.finish()

	var removed []uint32
	keys := make([]grid.CellKey, 0, len(parents))
	for _, p := range parents {
		removed = append(removed, p.Children...)
		keys = append(keys, grid.CellKey{Level: p.Level, GlobalID: p.GlobalID})
	}
	ids, err := e.replace(removed, keys)
	if err != nil {
		return nil, err
	}
	instrumentTopologyOp(Merging, len(parents))
	e.logger.Debug("gridedit: merged", "parents", len(parents), "children", len(removed), "live", e.store.Len())
	return ids, nil
}

// checkCapacity reports whether the live range still fits the mirror after
// removing and appending the given number of cells.
func (e *Engine) checkCapacity(remove, add int) error {
	n := e.store.Len() - remove + add
	if n > e.mirror.Capacity() {
		return fmt.Errorf("%w: %d cells after operation, capacity %d", ErrCapacityExceeded, n, e.mirror.Capacity())
	}
	return nil
}

// replace clears the selection, compacts the removed slots away, appends
// cells contiguously and selects exactly the appended slots.
func (e *Engine) replace(removed []uint32, cells []grid.CellKey) ([]uint32, error) {
	if _, err := e.sel.Clear(); err != nil {
		return nil, err
	}
	if err := e.compact(removed); err != nil {
		return nil, err
	}

	first, rows, err := e.store.Append(cells)
	if err != nil {
		return nil, err
	}
	if err := e.mirror.WriteRange(first, rows); err != nil {
		return nil, err
	}
	e.sel.Grow(len(rows))
	if err := e.sel.AddRange(first, len(rows)); err != nil {
		return nil, err
	}

	ids := make([]uint32, len(rows))
	for i := range ids {
		ids[i] = uint32(first + i) //nolint:gosec // slot count fits uint32
	}
	return ids, nil
}

// compact removes slots by moving the last live slot into each of them.
// Slots are processed in descending order, so the moved slot is never one
// still waiting to be removed.
func (e *Engine) compact(slots []uint32) error {
	slots = slices.Clone(slots)
	slices.Sort(slots)
	slots = slices.Compact(slots)
	for i := len(slots) - 1; i >= 0; i-- {
		s := slots[i]
		moved, err := e.store.SwapRemove(s)
		if err != nil {
			return err
		}
		if moved >= 0 {
			if err := e.mirror.Copy(moved, int(s)); err != nil {
				return err
			}
		}
		if err := e.sel.Compact(int(s)); err != nil {
			return err
		}
	}
	e.mirror.Truncate(e.store.Len())
	return nil
}

// begin enters a mutating state and runs the start callback.
func (e *Engine) begin(op State) {
	e.state = op
	e.start()
}

// finish returns to the resting state, runs the end callback and asks for
// a repaint.
func (e *Engine) finish() {
	e.settle()
	e.end()
	e.instrumentCounts()
	e.repaint()
}
