// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gridedit

import (
	"github.com/gogpu/gridedit/picking"
)

// PickBrush selects the cell under the pointer, or deselects it when add
// is false. It returns the storage id of the cell and false when the
// pointer is over no cell.
func (e *Engine) PickBrush(view picking.View, at picking.Point, add bool) (uint32, bool, error) {
	if err := e.ready(); err != nil {
		return 0, false, err
	}
	e.clearHighlight()
	id, ok, err := e.picker.Brush(view, e.scene(), at)
	if err != nil || !ok {
		return id, ok, err
	}
	if err := e.Select([]uint32{id}, add); err != nil {
		return id, true, err
	}
	return id, true, nil
}

// PickBox selects every cell covering the rectangle spanned by a and b, or
// deselects them when add is false. It returns the picked storage ids in
// no particular order. An empty rectangle picks nothing.
func (e *Engine) PickBox(view picking.View, a, b picking.Point, add bool) ([]uint32, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	e.clearHighlight()
	ids, err := e.picker.Box(view, e.scene(), a, b)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return ids, nil
	}
	if err := e.Select(ids, add); err != nil {
		return ids, err
	}
	return ids, nil
}

// CheckGrid describes the cell under the pointer and highlights it until
// the next engine call. It returns nil when the pointer is over no cell.
func (e *Engine) CheckGrid(view picking.View, at picking.Point) (*GridInfo, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	e.clearHighlight()
	id, ok, err := e.picker.Brush(view, e.scene(), at)
	if err != nil || !ok {
		return nil, err
	}
	info, err := e.GridInfo(id)
	if err != nil {
		return nil, err
	}

	slot := int(id)
	e.highlight = highlight{active: true, slot: slot, prev: e.mirror.Hit(slot)}
	if err := e.mirror.SetHit(slot, e.sel.Generation()); err != nil {
		e.highlight = highlight{}
		return nil, err
	}
	e.repaint()
	return &info, nil
}

// clearHighlight restores the hit value of the slot marked by CheckGrid.
func (e *Engine) clearHighlight() {
	h := e.highlight
	if !h.active {
		return
	}
	e.highlight = highlight{}
	if h.slot >= e.store.Len() {
		return
	}
	if err := e.mirror.SetHit(h.slot, h.prev); err != nil {
		e.logger.Warn("gridedit: clear highlight", "slot", h.slot, "err", err)
	}
}

func (e *Engine) scene() picking.Scene {
	high, low := e.store.Geometry().Origin()
	return picking.Scene{
		Count:      e.store.Len(),
		OriginHigh: high,
		OriginLow:  low,
	}
}
