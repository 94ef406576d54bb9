// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gridedit

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/gogpu/gridedit/grid"
)

// FeatureTask is a feature pick running on its own goroutine. Its result
// refers to cells by (level, globalId) and is resolved to storage ids
// when applied, so compaction in the meantime is harmless.
type FeatureTask struct {
	contextID uuid.UUID
	path      string
	cancel    context.CancelFunc
	done      chan struct{}

	keys []grid.CellKey
	err  error
}

// ContextID returns the id of the context the task was started for.
func (t *FeatureTask) ContextID() uuid.UUID { return t.contextID }

// Path returns the feature file the task tests.
func (t *FeatureTask) Path() string { return t.path }

// Done is closed when the task completes.
func (t *FeatureTask) Done() <-chan struct{} { return t.done }

// Cancel stops the task. Cancelling a completed task has no effect.
func (t *FeatureTask) Cancel() { t.cancel() }

// Wait blocks until the task completes or ctx is done.
func (t *FeatureTask) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Result returns the cells reported by the feature source. It returns
// ErrFeaturePending while the task is running.
func (t *FeatureTask) Result() ([]grid.CellKey, error) {
	select {
	case <-t.done:
		return t.keys, t.err
	default:
		return nil, ErrFeaturePending
	}
}

// PickFeature starts testing the feature at path against the loaded grid.
// It returns at once; brush and box picks stay available while the task
// runs. Pass the completed task to ApplyFeature to select its cells.
//
// Loading or unloading a context cancels the task.
func (e *Engine) PickFeature(ctx context.Context, path string) (*FeatureTask, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if e.opts.features == nil {
		return nil, ErrNoFeatureSource
	}

	ctx, cancel := context.WithCancel(ctx)
	t := &FeatureTask{
		contextID: e.id,
		path:      path,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	e.mu.Lock()
	e.tasks[t] = struct{}{}
	e.mu.Unlock()

	src := e.opts.features
	go func() {
		defer func() {
			e.mu.Lock()
			delete(e.tasks, t)
			e.mu.Unlock()
			cancel()
			close(t.done)
		}()
		t.keys, t.err = src.PickFeature(ctx, path)
		if t.err == nil && ctx.Err() != nil {
			t.err = ctx.Err()
		}
	}()
	return t, nil
}

// ApplyFeature selects the cells found by a completed feature task, or
// deselects them when add is false, and returns their storage ids. Cells
// no longer live are skipped.
//
// A task started for another context fails with ErrStaleContext. A failure
// of the feature source is reported to the Notifier and yields no ids and
// no error; cancellation is returned as is.
func (e *Engine) ApplyFeature(t *FeatureTask, add bool) ([]uint32, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	keys, err := t.Result()
	if errors.Is(err, ErrFeaturePending) {
		return nil, err
	}
	if t.contextID != e.id {
		e.logger.Warn("gridedit: discarding stale feature pick",
			"path", t.path,
			"task_context", t.contextID.String(),
			"context_id", e.id.String())
		instrumentFeaturePick("stale")
		return nil, fmt.Errorf("%w: task for %s, loaded %s", ErrStaleContext, t.contextID, e.id)
	}
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			instrumentFeaturePick("cancelled")
			return nil, err
		}
		e.logger.Warn("gridedit: feature pick failed", "path", t.path, "err", err)
		instrumentFeaturePick("failed")
		if e.opts.notifier != nil {
			e.opts.notifier.Notify(fmt.Errorf("gridedit: feature pick %q: %w", t.path, err))
		}
		return nil, nil
	}

	ids := make([]uint32, 0, len(keys))
	for _, k := range keys {
		if id, ok := e.store.Lookup(k.Level, k.GlobalID); ok {
			ids = append(ids, id)
		}
	}
	instrumentFeaturePick("applied")
	if err := e.Select(ids, add); err != nil {
		return nil, err
	}
	return ids, nil
}

// cancelTasks cancels every running feature task.
func (e *Engine) cancelTasks() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for t := range e.tasks {
		t.cancel()
	}
	clear(e.tasks)
}
