// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gridedit

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/gogpu/gridedit/grid"
	"github.com/gogpu/gridedit/mirror"
	"github.com/gogpu/gridedit/picking"
	"github.com/gogpu/gridedit/selection"
)

// Engine is the handle of one grid editing session. It owns the grid
// store, the attribute mirror, the selection and the picking engine of
// the loaded context.
//
// Engine is not safe for concurrent use, with the exception of feature
// tasks, which run on their own goroutines and only touch engine state
// through ApplyFeature.
type Engine struct {
	opts    options
	logger  *slog.Logger
	backend *gpuBackend

	id     uuid.UUID
	loaded bool
	state  State

	store  *grid.Store
	mirror *mirror.Mirror
	sel    *selection.Set
	picker *picking.Engine

	highlight highlight

	mu    sync.Mutex
	tasks map[*FeatureTask]struct{}
}

// highlight is the transient CheckGrid marker: the slot drawn with the
// current generation and the hit value it had before.
type highlight struct {
	active bool
	slot   int
	prev   uint8
}

// NewEngine creates an engine with no context loaded. Every grid operation
// returns ErrEngineNotInitialized until Load succeeds.
func NewEngine(opts ...Option) (*Engine, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	backend, err := openBackend(&o)
	if err != nil {
		return nil, err
	}
	return &Engine{
		opts:    o,
		logger:  Logger(),
		backend: backend,
		tasks:   make(map[*FeatureTask]struct{}),
	}, nil
}

// Load replaces the current context. The live set is the full level-0
// raster when snap is nil, or the saved cells of snap otherwise. Pending
// feature tasks are cancelled and their results become stale.
//
// On ErrDeviceAllocation the engine is left unloaded.
func (e *Engine) Load(ctx grid.Context, snap *grid.Snapshot) error {
	e.start()
	defer e.end()

	e.cancelTasks()
	if e.loaded {
		e.unload()
	}

	store, err := grid.NewStore(ctx, e.opts.storeOpts...)
	if err != nil {
		return err
	}
	rows, err := store.Initialize(snap)
	if err != nil {
		return err
	}
	capacity := ctx.MaxGridNum
	if capacity <= 0 {
		capacity = mirror.DefaultCapacity
	}
	if len(rows) > capacity {
		return fmt.Errorf("%w: %d initial cells, capacity %d", ErrCapacityExceeded, len(rows), capacity)
	}

	if err := e.prepareMirror(capacity); err != nil {
		return err
	}
	if err := e.mirror.WriteRange(0, rows); err != nil {
		return err
	}
	if err := e.mirror.Flush(); err != nil {
		return fmt.Errorf("gridedit: upload initial cells: %w", err)
	}

	e.store = store
	e.sel = selection.New(e.mirror, len(rows))
	e.id = uuid.New()
	e.loaded = true
	e.state = Idle
	e.highlight = highlight{}

	e.logger.Info("gridedit: context loaded",
		"context_id", e.id.String(),
		"cells", len(rows),
		"capacity", capacity,
		"max_level", ctx.MaxLevel(),
		"gpu", e.mirror.HasDevice())
	e.instrumentCounts()
	e.repaint()
	return nil
}

// prepareMirror empties the mirror, creating it on first use and
// reallocating it when the capacity changes.
func (e *Engine) prepareMirror(capacity int) error {
	if e.mirror == nil {
		var mopts []mirror.Option
		mopts = append(mopts, mirror.WithLogger(e.logger))
		if e.backend != nil {
			mopts = append(mopts, mirror.WithDevice(e.backend.mirrorDevice()))
		}
		m, err := mirror.New(capacity, mopts...)
		if err != nil {
			return err
		}
		e.mirror = m
		e.picker = picking.NewEngine(e.renderer(), m,
			picking.WithLogger(e.logger),
			picking.WithObserver(instrumentPick))
		return nil
	}
	e.mirror.Truncate(0)
	if e.mirror.Capacity() != capacity {
		return e.mirror.Resize(capacity)
	}
	return nil
}

func (e *Engine) renderer() picking.Renderer {
	switch {
	case e.opts.renderer != nil:
		return e.opts.renderer
	case e.backend != nil:
		return e.backend.renderer()
	}
	return picking.NewSoftwareRenderer(e.mirror)
}

// Unload drops the current context. Pending feature tasks are cancelled.
func (e *Engine) Unload() {
	e.cancelTasks()
	if e.loaded {
		e.unload()
		e.repaint()
	}
}

func (e *Engine) unload() {
	instrumentForgetContext(e.id.String())
	e.logger.Info("gridedit: context unloaded", "context_id", e.id.String())
	e.loaded = false
	e.state = Idle
	e.store = nil
	e.sel = nil
	e.highlight = highlight{}
	if e.mirror != nil {
		e.mirror.Truncate(0)
	}
}

// Close unloads the context and releases device resources. The engine
// must not be used afterwards.
func (e *Engine) Close() {
	e.Unload()
	if e.mirror != nil {
		e.mirror.Release()
		e.mirror = nil
	}
	if e.backend != nil {
		e.backend.close()
		e.backend = nil
	}
}

// Resize reallocates the attribute mirror for capacity slots and
// re-populates it from the CPU shadow. Reads stop for the duration and
// the start and end callbacks bracket it. On ErrDeviceAllocation the
// context is unloaded.
func (e *Engine) Resize(capacity int) error {
	if err := e.ready(); err != nil {
		return err
	}
	if capacity < e.store.Len() {
		return fmt.Errorf("%w: %d live cells, capacity %d", ErrCapacityExceeded, e.store.Len(), capacity)
	}
	e.clearHighlight()
	e.start()
	defer e.end()
	if err := e.mirror.Resize(capacity); err != nil {
		if errors.Is(err, ErrDeviceAllocation) {
			e.cancelTasks()
			e.unload()
		}
		return err
	}
	e.instrumentCounts()
	e.repaint()
	return nil
}

// ContextID identifies the loaded context. It changes on every Load.
func (e *Engine) ContextID() uuid.UUID { return e.id }

// Loaded reports whether a context is loaded.
func (e *Engine) Loaded() bool { return e.loaded }

// State returns the operation state.
func (e *Engine) State() State { return e.state }

// LiveGridCount returns the number of live cells, or 0 when no context is
// loaded.
func (e *Engine) LiveGridCount() int {
	if !e.loaded {
		return 0
	}
	return e.store.Len()
}

// MaxGridNum returns the slot capacity of the mirror, or 0 when no
// context is loaded.
func (e *Engine) MaxGridNum() int {
	if !e.loaded {
		return 0
	}
	return e.mirror.Capacity()
}

// Context returns the loaded context.
func (e *Engine) Context() (grid.Context, error) {
	if err := e.ready(); err != nil {
		return grid.Context{}, err
	}
	return e.store.Context(), nil
}

// Origin returns the render-space origin that stored vertices are
// relative to, split into high and low parts.
func (e *Engine) Origin() (high, low [2]float32, err error) {
	if err := e.ready(); err != nil {
		return high, low, err
	}
	high, low = e.store.Geometry().Origin()
	return high, low, nil
}

// Mirror returns the attribute mirror for host-side drawing. It is nil
// before the first Load.
func (e *Engine) Mirror() *mirror.Mirror { return e.mirror }

// HitGeneration returns the generation the host draws as selected.
func (e *Engine) HitGeneration() uint8 {
	if !e.loaded {
		return 0
	}
	return e.sel.Generation()
}

// Selected returns the selected storage ids in ascending order.
func (e *Engine) Selected() ([]uint32, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	return e.sel.Selected(), nil
}

// IsSelected reports whether storageID is selected.
func (e *Engine) IsSelected(storageID uint32) bool {
	return e.loaded && e.sel.IsSelected(int(storageID))
}

// GridInfo describes one live cell.
type GridInfo struct {
	Level     uint8  `json:"level"`
	GlobalID  uint32 `json:"globalId"`
	LocalID   uint32 `json:"localId"`
	Deleted   bool   `json:"deleted"`
	StorageID uint32 `json:"storageId"`
}

// GridInfo returns the cell stored at storageID.
func (e *Engine) GridInfo(storageID uint32) (GridInfo, error) {
	if err := e.ready(); err != nil {
		return GridInfo{}, err
	}
	level, gid, err := e.store.GridInfo(storageID)
	if err != nil {
		return GridInfo{}, err
	}
	deleted, _ := e.store.IsDeleted(storageID)
	return GridInfo{
		Level:     level,
		GlobalID:  gid,
		LocalID:   e.store.Hierarchy().LocalID(level, gid),
		Deleted:   deleted,
		StorageID: storageID,
	}, nil
}

// Save captures the live set so that it can be restored with Load.
func (e *Engine) Save() (grid.Snapshot, error) {
	if err := e.ready(); err != nil {
		return grid.Snapshot{}, err
	}
	return e.store.Snapshot(), nil
}

func (e *Engine) ready() error {
	if !e.loaded {
		return ErrEngineNotInitialized
	}
	return nil
}

func (e *Engine) start() {
	if e.opts.onStart != nil {
		e.opts.onStart()
	}
}

func (e *Engine) end() {
	if e.opts.onEnd != nil {
		e.opts.onEnd()
	}
}

func (e *Engine) repaint() {
	if e.opts.host != nil {
		e.opts.host.TriggerRepaint()
	}
}

// settle derives the resting state from the selection.
func (e *Engine) settle() {
	e.state = Idle
	if e.sel.Len() > 0 {
		e.state = Selecting
	}
}

func (e *Engine) instrumentCounts() {
	instrumentGridCounts(e.id.String(), e.store.Len(), e.mirror.Capacity(), e.sel.Len())
}
