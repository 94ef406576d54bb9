// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build nogpu

package gridedit

import (
	"errors"
	"log/slog"

	"github.com/gogpu/gridedit/mirror"
	"github.com/gogpu/gridedit/picking"
)

// errNoGPU is returned when a device is requested from a nogpu build.
var errNoGPU = errors.New("gridedit: built without GPU support")

// gpuBackend is empty in nogpu builds; engines always run headless.
type gpuBackend struct{}

func openBackend(o *options) (*gpuBackend, error) {
	if o.device != nil || o.provider != nil || o.openGPU {
		return nil, errNoGPU
	}
	return nil, nil
}

func (b *gpuBackend) mirrorDevice() mirror.Device { return nil }

func (b *gpuBackend) renderer() picking.Renderer { return nil }

func (b *gpuBackend) close() {}

func propagateLogger(*slog.Logger) {}
