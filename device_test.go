// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

package gridedit

import (
	"testing"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"
	"github.com/stretchr/testify/require"

	"github.com/gogpu/gridedit/picking"
)

func openNoopDevice(t *testing.T) (hal.Device, hal.Queue) {
	t.Helper()
	api := noop.API{}
	instance, err := api.CreateInstance(nil)
	require.NoError(t, err)
	adapters := instance.EnumerateAdapters(nil)
	require.NotEmpty(t, adapters)
	openDev, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	require.NoError(t, err)
	t.Cleanup(func() {
		openDev.Device.Destroy()
		instance.Destroy()
	})
	return openDev.Device, openDev.Queue
}

func TestEngineWithDevice(t *testing.T) {
	device, queue := openNoopDevice(t)
	e := newTestEngine(t,
		WithDevice(device, queue),
		WithRenderer(picking.NewSoftwareRenderer(nil)))
	require.True(t, e.Mirror().HasDevice())

	require.NoError(t, e.SelectAll())
	ids, err := e.Subdivide()
	require.NoError(t, err)
	require.Len(t, ids, 16)

	require.NoError(t, e.Select(ids[:4], false))
	require.NoError(t, e.Select([]uint32{ids[0]}, true))
	_, err = e.Delete()
	require.NoError(t, err)
	require.NoError(t, e.Mirror().Flush())
	requireConsistent(t, e)

	require.NoError(t, e.Resize(128))
	require.Equal(t, 128, e.MaxGridNum())
	requireConsistent(t, e)
}

// stubProvider is a gpucontext host without HAL access.
type stubProvider struct{}

func (stubProvider) Device() gpucontext.Device             { return nil }
func (stubProvider) Queue() gpucontext.Queue               { return nil }
func (stubProvider) SurfaceFormat() gputypes.TextureFormat { return gputypes.TextureFormatUndefined }
func (stubProvider) Adapter() gpucontext.Adapter           { return nil }
func (stubProvider) AdapterInfo() gpucontext.AdapterInfo   { return gpucontext.AdapterInfo{} }

// halProvider also exposes the HAL device and queue, as gogpu windows do.
type halProvider struct {
	stubProvider
	device hal.Device
	queue  hal.Queue
}

func (p halProvider) HalDevice() any { return p.device }
func (p halProvider) HalQueue() any  { return p.queue }

func TestWithDeviceProvider(t *testing.T) {
	_, err := NewEngine(WithDeviceProvider(stubProvider{}))
	require.Error(t, err, "a provider without HAL access cannot share its device")

	device, queue := openNoopDevice(t)
	e := newTestEngine(t,
		WithDeviceProvider(halProvider{device: device, queue: queue}),
		WithRenderer(picking.NewSoftwareRenderer(nil)))
	require.True(t, e.Mirror().HasDevice())
	requireConsistent(t, e)
}
