// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package grid is the CPU-side authoritative index of a multi-resolution
// grid overlaid on a geographic patch.
//
// A cell is identified by (level, globalId), where globalId is the cell's
// row-major index within the implicit raster of its level. Live cells are
// stored densely by storage id: the slots [0, Len()) are always occupied,
// and removal swaps the last slot into the hole.
//
// Parent and child relations are never stored. They are recomputed from
// (level, globalId) and the context's ratio table by [Hierarchy].
//
// Geometry is produced in normalized Mercator space relative to the
// bounding-box centre, with each coordinate split into a high and a low
// float32 so single-precision GPU pipelines can reconstruct it without
// losing precision at large map coordinates.
package grid
