//go:build !nogpu

package gpu

import (
	"log/slog"
	"sync/atomic"
)

// discard is the logger in effect until SetLogger is called.
var discard = slog.New(slog.DiscardHandler)

var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(discard)
}

// slogger returns the logger of the GPU backend. Records carry
// backend=gpu so they can be told apart from the CPU paths.
func slogger() *slog.Logger { return loggerPtr.Load() }

// SetLogger sets the logger of the GPU backend. nil restores the silent
// default. Called from gridedit.SetLogger.
func SetLogger(l *slog.Logger) {
	if l == nil {
		loggerPtr.Store(discard)
		return
	}
	loggerPtr.Store(l.With("backend", "gpu"))
}
