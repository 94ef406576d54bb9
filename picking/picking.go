// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package picking resolves pointer gestures to storage ids by rendering
// every live cell's id as a color into an offscreen target and decoding
// the pixels read back.
//
// Brush picking renders a 1x1 target centred on the pointer through a
// picking matrix. Box picking renders a viewport-sized target and decodes
// only the rectangle spanned by the gesture. Both flush pending attribute
// writes before drawing, so ids are never read from stale geometry.
package picking

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/go-gl/mathgl/mgl64"
)

// ErrInvalidView is returned for views with a non-positive viewport.
var ErrInvalidView = errors.New("picking: invalid view")

// Scene describes what a pick draws: slots [0, Count) of the mirror, whose
// vertices are relative to the render-space origin.
type Scene struct {
	Count      int
	OriginHigh [2]float32
	OriginLow  [2]float32
}

// Request is one id render.
type Request struct {
	// Transform maps eye-relative Mercator coordinates to clip space.
	Transform mgl64.Mat4

	// Shift is added to every stored vertex before Transform,
	// as {highX, highY, lowX, lowY}. See [Shift].
	Shift [4]float32

	// Width and Height are the target size in pixels.
	Width, Height int

	// Region is the part of the target to read back.
	Region image.Rectangle

	// Count is the number of slots to draw.
	Count int
}

// Renderer draws slot ids into a target cleared to [Sentinel] and returns
// the tightly packed RGBA pixels of the requested region.
type Renderer interface {
	RenderIDs(req Request) ([]byte, error)
}

// Flusher makes pending attribute writes visible to the renderer.
type Flusher interface {
	Flush() error
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger for pick diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithObserver registers a callback invoked after every render with the
// pick mode ("brush" or "box") and its duration.
func WithObserver(fn func(mode string, d time.Duration)) Option {
	return func(e *Engine) {
		e.observe = fn
	}
}

// Engine performs brush and box picks.
//
// Engine is not safe for concurrent use.
type Engine struct {
	renderer Renderer
	flusher  Flusher
	logger   *slog.Logger
	observe  func(mode string, d time.Duration)
}

// NewEngine creates a picking engine. flusher may be nil when the
// renderer reads attributes directly from the CPU.
func NewEngine(r Renderer, flusher Flusher, opts ...Option) *Engine {
	e := &Engine{
		renderer: r,
		flusher:  flusher,
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Brush returns the slot under the pointer. ok is false when the pointer
// is over no cell.
func (e *Engine) Brush(view View, scene Scene, at Point) (id uint32, ok bool, err error) {
	if view.Width <= 0 || view.Height <= 0 {
		return 0, false, fmt.Errorf("%w: %gx%g", ErrInvalidView, view.Width, view.Height)
	}
	if scene.Count == 0 {
		return 0, false, nil
	}

	px, err := e.render("brush", Request{
		Transform: view.PickingMatrix(at).Mul4(view.Matrix),
		Shift:     Shift(scene.OriginHigh, scene.OriginLow, view.Eye),
		Width:     1,
		Height:    1,
		Region:    image.Rect(0, 0, 1, 1),
		Count:     scene.Count,
	})
	if err != nil {
		return 0, false, err
	}
	if len(px) < 4 {
		return 0, false, nil
	}
	id, ok = DecodeID(px, scene.Count)
	return id, ok, nil
}

// Box returns the distinct slots covering the rectangle spanned by a and
// b. An empty rectangle, or one over no cells, yields an empty set. The
// order of the ids is unspecified.
func (e *Engine) Box(view View, scene Scene, a, b Point) ([]uint32, error) {
	if view.Width <= 0 || view.Height <= 0 {
		return nil, fmt.Errorf("%w: %gx%g", ErrInvalidView, view.Width, view.Height)
	}
	w, h := view.BoxTargetSize()
	region := BoxRegion(a, b, w, h)
	if region.Empty() || scene.Count == 0 {
		return []uint32{}, nil
	}

	px, err := e.render("box", Request{
		Transform: view.Matrix,
		Shift:     Shift(scene.OriginHigh, scene.OriginLow, view.Eye),
		Width:     w,
		Height:    h,
		Region:    region,
		Count:     scene.Count,
	})
	if err != nil {
		return nil, err
	}
	ids := DecodeRegion(px, scene.Count)
	e.logger.Debug("picking: box", "region", region.String(), "ids", len(ids))
	return ids, nil
}

func (e *Engine) render(mode string, req Request) ([]byte, error) {
	if e.flusher != nil {
		if err := e.flusher.Flush(); err != nil {
			return nil, fmt.Errorf("picking: flush before %s pick: %w", mode, err)
		}
	}
	start := time.Now()
	px, err := e.renderer.RenderIDs(req)
	if err != nil {
		return nil, fmt.Errorf("picking: %s render: %w", mode, err)
	}
	if e.observe != nil {
		e.observe(mode, time.Since(start))
	}
	return px, nil
}
