// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gridedit

import (
	"log/slog"
	"sync/atomic"
)

// silent is the package logger until SetLogger installs another one.
var silent = slog.New(slog.DiscardHandler)

var current atomic.Pointer[slog.Logger]

func init() {
	current.Store(silent)
}

// SetLogger sets the logger of gridedit and of its GPU backend. Engines
// capture the logger when they are created, so call it before NewEngine.
// nil restores the default, which discards everything.
//
// Levels:
//   - Debug: buffer allocations, pick latency, topology edit sizes
//   - Info: context loaded or unloaded, GPU device attached
//   - Warn: stale or failed feature picks, highlight restore failures
//
// SetLogger is safe for concurrent use.
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = silent
	}
	current.Store(l)
	propagateLogger(l)
}

// Logger returns the logger set by SetLogger.
func Logger() *slog.Logger {
	return current.Load()
}
