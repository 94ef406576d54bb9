// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

package gridedit

import (
	"log/slog"

	"github.com/gogpu/gridedit/internal/gpu"
	"github.com/gogpu/gridedit/mirror"
	"github.com/gogpu/gridedit/picking"
)

// gpuBackend holds the device resources of an engine: the attribute
// buffers behind the mirror and the id picker drawing from them.
type gpuBackend struct {
	dev    *gpu.Device
	attrs  *gpu.AttributeBuffers
	picker *gpu.Picker
}

// openBackend returns the GPU backend selected by o, or nil when the
// engine runs headless.
func openBackend(o *options) (*gpuBackend, error) {
	var dev *gpu.Device
	switch {
	case o.device != nil:
		dev = gpu.Wrap(o.device, o.queue)
	case o.provider != nil:
		d, err := gpu.FromProvider(o.provider)
		if err != nil {
			return nil, err
		}
		dev = d
	case o.openGPU:
		d, err := gpu.Open()
		if err != nil {
			return nil, err
		}
		dev = d
	default:
		return nil, nil
	}
	attrs := gpu.NewAttributeBuffers(dev)
	Logger().Info("gridedit: GPU device attached")
	return &gpuBackend{
		dev:    dev,
		attrs:  attrs,
		picker: gpu.NewPicker(dev, attrs),
	}, nil
}

func (b *gpuBackend) mirrorDevice() mirror.Device { return b.attrs }

func (b *gpuBackend) renderer() picking.Renderer { return b.picker }

func (b *gpuBackend) close() {
	b.picker.Destroy()
	b.attrs.Release()
	b.dev.Close()
}

func propagateLogger(l *slog.Logger) {
	gpu.SetLogger(l)
}
