// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package hostbridge

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/gogpu/gridedit"
	"github.com/gogpu/gridedit/grid"
	"github.com/gogpu/gridedit/picking"
)

// Command types accepted from the map host.
const (
	CmdLoad           = "load"
	CmdPickBrush      = "pick_brush"
	CmdPickBox        = "pick_box"
	CmdPickFeature    = "pick_feature"
	CmdSelect         = "select"
	CmdSelectAll      = "select_all"
	CmdClearSelection = "clear_selection"
	CmdSubdivide      = "subdivide"
	CmdMerge          = "merge"
	CmdDelete         = "delete"
	CmdRecover        = "recover"
	CmdCheckGrid      = "check_grid"
	CmdStatus         = "status"
	CmdSave           = "save"
)

// Event types pushed to the map host.
const (
	EventResult  = "result"
	EventRepaint = "repaint"
	EventNotify  = "notify"
)

// View is the wire form of picking.View. Matrix is column-major.
type View struct {
	Matrix     [16]float64 `json:"matrix"`
	Eye        [2]float64  `json:"eye"`
	Width      float64     `json:"width"`
	Height     float64     `json:"height"`
	PixelRatio float64     `json:"pixelRatio"`
}

func (v *View) picking() picking.View {
	return picking.View{
		Matrix:     mgl64.Mat4(v.Matrix),
		Eye:        v.Eye,
		Width:      v.Width,
		Height:     v.Height,
		PixelRatio: v.PixelRatio,
	}
}

// Point is a pointer position in CSS pixels.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (p Point) picking() picking.Point { return picking.Point{X: p.X, Y: p.Y} }

// Command is one request from the map host. Fields are used according to
// Type.
type Command struct {
	ID   uint64 `json:"id"`
	Type string `json:"type"`

	Context  *grid.Context  `json:"context,omitempty"`
	Snapshot *grid.Snapshot `json:"snapshot,omitempty"`

	View  *View    `json:"view,omitempty"`
	Start Point    `json:"start"`
	End   Point    `json:"end"`
	Add   bool     `json:"add"`
	IDs   []uint32 `json:"ids,omitempty"`
	Path  string   `json:"path,omitempty"`
}

// Status describes the engine state.
type Status struct {
	Loaded        bool   `json:"loaded"`
	ContextID     string `json:"contextId,omitempty"`
	State         string `json:"state"`
	LiveGridCount int    `json:"liveGridCount"`
	MaxGridNum    int    `json:"maxGridNum"`
	HitGeneration uint8  `json:"hitGeneration"`
}

// Event is one message to the map host. Results carry the ID of the
// command they answer.
type Event struct {
	ID    uint64 `json:"id,omitempty"`
	Type  string `json:"type"`
	Error string `json:"error,omitempty"`

	IDs      []uint32           `json:"ids,omitempty"`
	Hit      *bool              `json:"hit,omitempty"`
	Grid     *gridedit.GridInfo `json:"grid,omitempty"`
	Status   *Status            `json:"status,omitempty"`
	Snapshot *grid.Snapshot     `json:"snapshot,omitempty"`
}
