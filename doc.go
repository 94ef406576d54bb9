// Package gridedit is an interactive editor for hierarchical spatial grids
// drawn over a map.
//
// # Overview
//
// A grid context defines a bounding box and a ratio table. Level 0 is a
// raster over the bounding box, and every cell of level L can be
// subdivided into the raster of children given by the table's entry for
// level L+1. The live cells form a dense array of storage ids that the map
// host draws straight from the attribute mirror, one instance per cell.
//
// # Quick Start
//
//	e, err := gridedit.NewEngine(gridedit.WithHost(host))
//	if err != nil {
//	    return err
//	}
//	defer e.Close()
//
//	err = e.Load(grid.Context{
//	    SourceCRS:   "EPSG:3857",
//	    BoundingBox: grid.BoundingBox{MinX: 0, MinY: 0, MaxX: 1000, MaxY: 1000},
//	    FirstSize:   [2]uint32{4, 4},
//	    Rules:       [][2]uint32{{2, 2}, {2, 2}},
//	}, nil)
//
//	// Select the cell under the pointer and split it.
//	e.PickBrush(view, picking.Point{X: 120, Y: 80}, true)
//	children, err := e.Subdivide()
//
// # Topology operations
//
// Subdivide, Merge, Delete and Recover act on the selection. Subdivide and
// Merge remove cells by moving the last live cell into the freed slot and
// append the new cells at the end, so storage ids stay dense but are not
// stable across operations. Refer to cells by (level, globalId) when an id
// must survive an edit. Delete is a soft delete: the cell stays live with
// its deleted flag set.
//
// # Picking
//
// Brush and box picks render every live cell's storage id as a color into
// an offscreen target and read the pixels back. With a GPU device
// (WithDevice, WithDeviceProvider or WithGPU) this runs on the device that
// holds the mirror; otherwise a software rasterizer draws from the mirror's
// CPU shadow. Feature picks run an external containment test on a separate
// goroutine and are applied once complete; a result computed for an older
// context is rejected with ErrStaleContext.
//
// # Logging
//
// gridedit is silent by default. Use SetLogger to receive lifecycle and
// diagnostic records through log/slog.
//
// # Build tags
//
// Building with -tags nogpu removes the WebGPU backend. Engines then always
// use the CPU shadow and the software rasterizer.
package gridedit
