// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gridedit

import (
	"github.com/gogpu/gpucontext"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/gridedit/grid"
	"github.com/gogpu/gridedit/picking"
)

// Option configures an Engine.
type Option func(*options)

// options holds optional configuration for an Engine.
type options struct {
	device   hal.Device
	queue    hal.Queue
	provider gpucontext.DeviceProvider
	openGPU  bool

	renderer picking.Renderer
	host     Host
	notifier Notifier
	features FeatureSource

	onStart func()
	onEnd   func()

	storeOpts []grid.StoreOption
}

func defaultOptions() options {
	return options{}
}

// WithDevice mirrors attributes into buffers created on a host-owned HAL
// device. Picks are rendered on that device. The engine never destroys
// device or queue.
func WithDevice(device hal.Device, queue hal.Queue) Option {
	return func(o *options) {
		o.device = device
		o.queue = queue
	}
}

// WithDeviceProvider shares the GPU device of a gpucontext host. The
// provider must also expose its HAL objects through HalDevice() any and
// HalQueue() any, as gogpu windows do.
func WithDeviceProvider(p gpucontext.DeviceProvider) Option {
	return func(o *options) {
		o.provider = p
	}
}

// WithGPU opens a dedicated Vulkan device for the engine. It is ignored
// when WithDevice or WithDeviceProvider is given.
func WithGPU() Option {
	return func(o *options) {
		o.openGPU = true
	}
}

// WithRenderer replaces the id renderer used by brush and box picks.
// Without it the engine renders on its GPU device when it has one, and on
// the CPU otherwise.
func WithRenderer(r picking.Renderer) Option {
	return func(o *options) {
		o.renderer = r
	}
}

// WithHost sets the map host notified when a topology change needs a
// repaint.
func WithHost(h Host) Option {
	return func(o *options) {
		o.host = h
	}
}

// WithNotifier sets the sink of user-facing failures of asynchronous
// feature picks.
func WithNotifier(n Notifier) Option {
	return func(o *options) {
		o.notifier = n
	}
}

// WithFeatureSource sets the collaborator queried by PickFeature.
func WithFeatureSource(s FeatureSource) Option {
	return func(o *options) {
		o.features = s
	}
}

// WithCallbacks sets functions invoked around every mutating operation
// and around context loads and resizes. Either may be nil.
func WithCallbacks(start, end func()) Option {
	return func(o *options) {
		o.onStart = start
		o.onEnd = end
	}
}

// WithProjector overrides the coordinate transform from the context's
// source CRS to geographic coordinates.
func WithProjector(p grid.Projector) Option {
	return func(o *options) {
		o.storeOpts = append(o.storeOpts, grid.WithProjector(p))
	}
}

// WithGeometryCache sets the number of cell corner sets kept in the
// geometry LRU.
func WithGeometryCache(size int) Option {
	return func(o *options) {
		o.storeOpts = append(o.storeOpts, grid.WithGeometryCache(size))
	}
}
