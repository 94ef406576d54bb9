// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gridedit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gogpu/gridedit/grid"
)

// gatedSource answers once release is closed, or fails with err.
type gatedSource struct {
	release chan struct{}
	keys    []grid.CellKey
	err     error
}

func newGatedSource(keys []grid.CellKey, err error) *gatedSource {
	return &gatedSource{release: make(chan struct{}), keys: keys, err: err}
}

func (s *gatedSource) PickFeature(ctx context.Context, _ string) ([]grid.CellKey, error) {
	select {
	case <-s.release:
		return s.keys, s.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func waitTask(t *testing.T, task *FeatureTask) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, task.Wait(ctx))
}

func TestPickFeature(t *testing.T) {
	src := newGatedSource([]grid.CellKey{
		{Level: 0, GlobalID: 3},
		{Level: 0, GlobalID: 1},
		{Level: 1, GlobalID: 12},
	}, nil)
	e := newTestEngine(t, WithFeatureSource(src))

	task, err := e.PickFeature(context.Background(), "features/lake.geojson")
	require.NoError(t, err)
	require.Equal(t, e.ContextID(), task.ContextID())
	require.Equal(t, "features/lake.geojson", task.Path())

	_, err = e.ApplyFeature(task, true)
	require.ErrorIs(t, err, ErrFeaturePending)

	close(src.release)
	waitTask(t, task)

	ids, err := e.ApplyFeature(task, true)
	require.NoError(t, err)
	require.Equal(t, []uint32{3, 1}, ids, "cells that are not live are skipped")
	selected, err := e.Selected()
	require.NoError(t, err)
	require.Equal(t, []uint32{1, 3}, selected)
}

func TestPickFeatureResolvesAfterCompaction(t *testing.T) {
	src := newGatedSource([]grid.CellKey{{Level: 0, GlobalID: 3}}, nil)
	e := newTestEngine(t, WithFeatureSource(src))

	task, err := e.PickFeature(context.Background(), "f")
	require.NoError(t, err)

	// Subdividing cell 0 moves cell 3 into slot 0 while the task runs.
	require.NoError(t, e.Select([]uint32{0}, true))
	_, err = e.Subdivide()
	require.NoError(t, err)
	require.NoError(t, e.ClearSelection())

	close(src.release)
	waitTask(t, task)
	ids, err := e.ApplyFeature(task, true)
	require.NoError(t, err)
	require.Equal(t, []uint32{0}, ids)
}

func TestPickFeatureStaleContext(t *testing.T) {
	src := newGatedSource([]grid.CellKey{{Level: 0, GlobalID: 0}}, nil)
	e := newTestEngine(t, WithFeatureSource(src))

	task, err := e.PickFeature(context.Background(), "f")
	require.NoError(t, err)

	require.NoError(t, e.Load(testContext(), nil))
	waitTask(t, task)

	ids, err := e.ApplyFeature(task, true)
	require.ErrorIs(t, err, ErrStaleContext)
	require.Nil(t, ids)
	selected, err := e.Selected()
	require.NoError(t, err)
	require.Empty(t, selected)
}

func TestPickFeatureSourceErrorNotifies(t *testing.T) {
	boom := errors.New("feature service unavailable")
	src := newGatedSource(nil, boom)
	var notified []error
	e := newTestEngine(t,
		WithFeatureSource(src),
		WithNotifier(NotifierFunc(func(err error) { notified = append(notified, err) })))

	task, err := e.PickFeature(context.Background(), "f")
	require.NoError(t, err)
	close(src.release)
	waitTask(t, task)

	ids, err := e.ApplyFeature(task, true)
	require.NoError(t, err)
	require.Nil(t, ids)
	require.Len(t, notified, 1)
	require.ErrorIs(t, notified[0], boom)
}

func TestPickFeatureCancel(t *testing.T) {
	src := newGatedSource(nil, nil)
	e := newTestEngine(t, WithFeatureSource(src))

	task, err := e.PickFeature(context.Background(), "f")
	require.NoError(t, err)
	task.Cancel()
	waitTask(t, task)

	_, err = e.ApplyFeature(task, true)
	require.ErrorIs(t, err, context.Canceled)
}

func TestPickFeatureErrors(t *testing.T) {
	e, err := NewEngine(WithFeatureSource(newGatedSource(nil, nil)))
	require.NoError(t, err)
	defer e.Close()

	_, err = e.PickFeature(context.Background(), "f")
	require.ErrorIs(t, err, ErrEngineNotInitialized)

	e = newTestEngine(t)
	_, err = e.PickFeature(context.Background(), "f")
	require.ErrorIs(t, err, ErrNoFeatureSource)
}
