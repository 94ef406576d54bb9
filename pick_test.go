// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gridedit

import (
	"slices"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/require"

	"github.com/gogpu/gridedit/grid"
	"github.com/gogpu/gridedit/picking"
)

// testView centres the bounding box of testContext in a 100x100 viewport,
// covering pixels [25, 75) on both axes.
func testView(e *Engine) picking.View {
	bbox := testContext().BoundingBox
	x0, ySouth := grid.MercatorFromLonLat(bbox.MinX, bbox.MinY)
	x1, yNorth := grid.MercatorFromLonLat(bbox.MaxX, bbox.MaxY)
	ox, oy := e.store.Geometry().OriginMercator()

	m := mgl64.Scale3D(1/(x1-x0), -1/(ySouth-yNorth), 1).
		Mul4(mgl64.Translate3D(-((x0+x1)/2 - ox), -((ySouth+yNorth)/2 - oy), 0))
	return picking.View{
		Matrix:     m,
		Eye:        [2]float64{ox, oy},
		Width:      100,
		Height:     100,
		PixelRatio: 1,
	}
}

func TestPickBrush(t *testing.T) {
	e := newTestEngine(t)
	view := testView(e)

	id, ok, err := e.PickBrush(view, picking.Point{X: 37, Y: 63}, true)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint32(0), id, "bottom-left cell")

	id, ok, err = e.PickBrush(view, picking.Point{X: 63, Y: 37}, true)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint32(3), id, "top-right cell")

	selected, err := e.Selected()
	require.NoError(t, err)
	require.Equal(t, []uint32{0, 3}, selected)

	_, _, err = e.PickBrush(view, picking.Point{X: 37, Y: 63}, false)
	require.NoError(t, err)
	require.False(t, e.IsSelected(0))

	_, ok, err = e.PickBrush(view, picking.Point{X: 5, Y: 5}, true)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestPickBrushFollowsCompaction(t *testing.T) {
	e := newTestEngine(t)
	view := testView(e)
	require.NoError(t, e.Select([]uint32{0}, true))
	_, err := e.Subdivide()
	require.NoError(t, err)

	// Slot 0 now holds the top-right cell.
	id, ok, err := e.PickBrush(view, picking.Point{X: 63, Y: 37}, true)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint32(0), id)

	// The bottom-left quarter of the old cell 0 is a level 1 child.
	id, ok, err = e.PickBrush(view, picking.Point{X: 30, Y: 70}, true)
	require.NoError(t, err)
	require.True(t, ok)
	info, err := e.GridInfo(id)
	require.NoError(t, err)
	require.Equal(t, uint8(1), info.Level)
	require.Equal(t, uint32(0), info.GlobalID)
}

func TestPickBox(t *testing.T) {
	e := newTestEngine(t)
	view := testView(e)

	ids, err := e.PickBox(view, picking.Point{X: 100, Y: 100}, picking.Point{X: 0, Y: 0}, true)
	require.NoError(t, err)
	slices.Sort(ids)
	require.Equal(t, []uint32{0, 1, 2, 3}, ids)
	require.Equal(t, Selecting, e.State())

	ids, err = e.PickBox(view, picking.Point{X: 30, Y: 60}, picking.Point{X: 45, Y: 70}, false)
	require.NoError(t, err)
	require.Equal(t, []uint32{0}, ids)
	require.False(t, e.IsSelected(0))
	require.True(t, e.IsSelected(1))
}

func TestPickBoxEmptyRegion(t *testing.T) {
	e := newTestEngine(t)
	view := testView(e)
	require.NoError(t, e.Select([]uint32{2}, true))

	ids, err := e.PickBox(view, picking.Point{X: 1, Y: 1}, picking.Point{X: 10, Y: 10}, true)
	require.NoError(t, err)
	require.NotNil(t, ids)
	require.Empty(t, ids)

	ids, err = e.PickBox(view, picking.Point{X: 40.2, Y: 40.2}, picking.Point{X: 40.7, Y: 40.9}, true)
	require.NoError(t, err)
	require.Empty(t, ids)

	selected, err := e.Selected()
	require.NoError(t, err)
	require.Equal(t, []uint32{2}, selected)
}

func TestCheckGrid(t *testing.T) {
	e := newTestEngine(t)
	view := testView(e)

	info, err := e.CheckGrid(view, picking.Point{X: 63, Y: 63})
	require.NoError(t, err)
	require.NotNil(t, info)
	require.Equal(t, GridInfo{Level: 0, GlobalID: 1, LocalID: 1, StorageID: 1}, *info)

	// Highlighted but not selected.
	require.Equal(t, e.HitGeneration(), e.mirror.Hit(1))
	require.False(t, e.IsSelected(1))

	info, err = e.CheckGrid(view, picking.Point{X: 2, Y: 2})
	require.NoError(t, err)
	require.Nil(t, info)
	require.NotEqual(t, e.HitGeneration(), e.mirror.Hit(1), "highlight restored")
	requireConsistent(t, e)

	_, err = e.CheckGrid(view, picking.Point{X: 37, Y: 37})
	require.NoError(t, err)
	require.NoError(t, e.Select([]uint32{0}, true))
	requireConsistent(t, e)
}

// stubRenderer answers every pick with the given ids.
type stubRenderer struct {
	ids   []uint32
	calls int
}

func (r *stubRenderer) RenderIDs(req picking.Request) ([]byte, error) {
	r.calls++
	t := picking.NewTarget(req.Width, req.Height)
	for i, id := range r.ids {
		t.SetID(i%req.Width, i/req.Width%req.Height, id)
	}
	return t.Region(req.Region), nil
}

func TestWithRenderer(t *testing.T) {
	r := &stubRenderer{ids: []uint32{2, 7, 2}}
	e := newTestEngine(t, WithRenderer(r))
	view := testView(e)

	ids, err := e.PickBox(view, picking.Point{X: 0, Y: 0}, picking.Point{X: 100, Y: 100}, true)
	require.NoError(t, err)
	require.Equal(t, []uint32{2}, ids, "ids beyond the live count are discarded")
	require.Equal(t, 1, r.calls)

	_, err = e.PickBox(view, picking.Point{X: 0, Y: 0}, picking.Point{X: 0.5, Y: 100}, true)
	require.NoError(t, err)
	require.Equal(t, 1, r.calls, "empty region must not render")
}
