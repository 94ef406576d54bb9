//go:build !nogpu

// Package gpu provides the WebGPU backend of the grid editor.
//
// It holds the device-resident attribute arrays of the mirror and renders
// cell ids into an offscreen target for picking, using the gogpu/wgpu
// Pure Go WebGPU implementation (zero CGO).
//
// # Resources
//
//   - AttributeBuffers: one storage buffer per mirrored attribute,
//     implementing mirror.Device
//   - Picker: the id render pipeline, implementing picking.Renderer
//
// Both run on a Device, which either owns a Vulkan device it opened
// itself or borrows one from a host through a device provider.
//
// # Id rendering
//
// Every live slot is drawn as an instance of six vertices. The vertex
// shader reads the four corners of the slot from the high and low vertex
// buffers, adds the per-frame shift to each part separately and sums them
// before the view transform. The fragment shader writes the slot index
// packed into RGBA8, least significant byte in red. The target is cleared
// to opaque white, which decodes to the sentinel.
package gpu
