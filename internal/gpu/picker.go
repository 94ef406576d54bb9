//go:build !nogpu

package gpu

import (
	_ "embed"
	"encoding/binary"
	"fmt"
	"image"
	"math"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/gridedit/mirror"
	"github.com/gogpu/gridedit/picking"
)

//go:embed shaders/picking.wgsl
var pickingShaderSource string

// pickUniformSize is the size of the picking uniform: a mat4x4<f32>
// transform followed by the high and low shift.
const pickUniformSize = 80

// copyPitchAlignment is the BytesPerRow alignment of texture readbacks.
const copyPitchAlignment = 256

// Picker renders slot ids into an offscreen RGBA8 target and reads them
// back. It implements picking.Renderer.
type Picker struct {
	dev   *Device
	attrs *AttributeBuffers

	shader     hal.ShaderModule
	bindLayout hal.BindGroupLayout
	pipeLayout hal.PipelineLayout
	pipeline   hal.RenderPipeline

	tex    hal.Texture
	view   hal.TextureView
	width  uint32
	height uint32
}

var _ picking.Renderer = (*Picker)(nil)

// NewPicker creates a picker drawing the vertices held in attrs. GPU
// resources are created lazily on the first render.
func NewPicker(dev *Device, attrs *AttributeBuffers) *Picker {
	return &Picker{dev: dev, attrs: attrs}
}

// RenderIDs implements picking.Renderer.
func (p *Picker) RenderIDs(req picking.Request) ([]byte, error) {
	if req.Width <= 0 || req.Height <= 0 {
		return nil, fmt.Errorf("gpu: invalid pick target %dx%d", req.Width, req.Height)
	}
	if req.Count > p.attrs.Capacity() {
		return nil, fmt.Errorf("gpu: pick of %d slots exceeds capacity %d", req.Count, p.attrs.Capacity())
	}
	if err := p.ensurePipeline(); err != nil {
		return nil, err
	}
	w, h := uint32(req.Width), uint32(req.Height)
	if err := p.ensureTarget(w, h); err != nil {
		return nil, err
	}

	uniformBuf, err := p.dev.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "pick_uniform",
		Size:  pickUniformSize,
		Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("create pick uniform: %w", err)
	}
	defer p.dev.device.DestroyBuffer(uniformBuf)
	p.dev.queue.WriteBuffer(uniformBuf, 0, makePickUniform(req))

	var bindGroup hal.BindGroup
	if req.Count > 0 {
		vertexBytes := uint64(req.Count) * uint64(mirror.AttrVertexHigh.Stride())
		bindGroup, err = p.dev.device.CreateBindGroup(&hal.BindGroupDescriptor{
			Label:  "pick_bind",
			Layout: p.bindLayout,
			Entries: []gputypes.BindGroupEntry{
				{Binding: 0, Resource: gputypes.BufferBinding{
					Buffer: uniformBuf.NativeHandle(), Offset: 0, Size: pickUniformSize,
				}},
				{Binding: 1, Resource: gputypes.BufferBinding{
					Buffer: p.attrs.Buffer(mirror.AttrVertexHigh).NativeHandle(), Offset: 0, Size: vertexBytes,
				}},
				{Binding: 2, Resource: gputypes.BufferBinding{
					Buffer: p.attrs.Buffer(mirror.AttrVertexLow).NativeHandle(), Offset: 0, Size: vertexBytes,
				}},
			},
		})
		if err != nil {
			return nil, fmt.Errorf("create pick bind group: %w", err)
		}
		defer p.dev.device.DestroyBindGroup(bindGroup)
	}

	bytesPerRow := w * 4
	alignedBytesPerRow := (bytesPerRow + copyPitchAlignment - 1) &^ (copyPitchAlignment - 1)
	stagingSize := uint64(alignedBytesPerRow) * uint64(h)
	stagingBuf, err := p.dev.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "pick_staging",
		Size:  stagingSize,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("create pick staging buffer: %w", err)
	}
	defer p.dev.device.DestroyBuffer(stagingBuf)

	err = p.dev.submit("pick", func(enc hal.CommandEncoder) {
		rp := enc.BeginRenderPass(&hal.RenderPassDescriptor{
			Label: "pick_pass",
			ColorAttachments: []hal.RenderPassColorAttachment{{
				View:       p.view,
				LoadOp:     gputypes.LoadOpClear,
				StoreOp:    gputypes.StoreOpStore,
				ClearValue: gputypes.Color{R: 1, G: 1, B: 1, A: 1},
			}},
		})
		if bindGroup != nil {
			rp.SetPipeline(p.pipeline)
			rp.SetBindGroup(0, bindGroup, nil)
			rp.Draw(6, uint32(req.Count), 0, 0)
		}
		rp.End()

		enc.TransitionTextures([]hal.TextureBarrier{{
			Texture: p.tex,
			Usage: hal.TextureUsageTransition{
				OldUsage: gputypes.TextureUsageRenderAttachment,
				NewUsage: gputypes.TextureUsageCopySrc,
			},
		}})
		enc.CopyTextureToBuffer(p.tex, stagingBuf, []hal.BufferTextureCopy{{
			BufferLayout: hal.ImageDataLayout{Offset: 0, BytesPerRow: alignedBytesPerRow, RowsPerImage: h},
			TextureBase:  hal.ImageCopyTexture{Texture: p.tex, MipLevel: 0},
			Size:         hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
		}})
		enc.TransitionTextures([]hal.TextureBarrier{{
			Texture: p.tex,
			Usage: hal.TextureUsageTransition{
				OldUsage: gputypes.TextureUsageCopySrc,
				NewUsage: gputypes.TextureUsageRenderAttachment,
			},
		}})
	})
	if err != nil {
		return nil, fmt.Errorf("gpu: pick render: %w", err)
	}

	readback := make([]byte, stagingSize)
	if err := p.dev.queue.ReadBuffer(stagingBuf, 0, readback); err != nil {
		return nil, fmt.Errorf("gpu: pick readback: %w", err)
	}
	return cropRegion(readback, int(alignedBytesPerRow), req), nil
}

// cropRegion strips row padding and returns the tightly packed pixels of
// req.Region.
func cropRegion(readback []byte, pitch int, req picking.Request) []byte {
	r := req.Region.Intersect(image.Rect(0, 0, req.Width, req.Height))
	out := make([]byte, 0, r.Dx()*r.Dy()*4)
	for y := r.Min.Y; y < r.Max.Y; y++ {
		row := y*pitch + r.Min.X*4
		out = append(out, readback[row:row+r.Dx()*4]...)
	}
	return out
}

// makePickUniform packs the transform (column-major) and shift.
func makePickUniform(req picking.Request) []byte {
	buf := make([]byte, pickUniformSize)
	for i, v := range req.Transform {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(float32(v)))
	}
	for i, v := range req.Shift {
		binary.LittleEndian.PutUint32(buf[64+i*4:], math.Float32bits(v))
	}
	return buf
}

// ensureTarget (re)creates the id texture when the size changes.
func (p *Picker) ensureTarget(w, h uint32) error {
	if p.tex != nil && p.width == w && p.height == h {
		return nil
	}
	p.destroyTarget()

	tex, err := p.dev.device.CreateTexture(&hal.TextureDescriptor{
		Label:         "pick_target",
		Size:          hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        gputypes.TextureFormatRGBA8Unorm,
		Usage:         gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageCopySrc,
	})
	if err != nil {
		return fmt.Errorf("create pick target: %w", err)
	}
	view, err := p.dev.device.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label: "pick_target_view",
	})
	if err != nil {
		p.dev.device.DestroyTexture(tex)
		return fmt.Errorf("create pick target view: %w", err)
	}
	p.tex, p.view = tex, view
	p.width, p.height = w, h
	slogger().Debug("gpu: pick target created", "width", w, "height", h)
	return nil
}

// ensurePipeline compiles the id shader and creates the render pipeline.
func (p *Picker) ensurePipeline() error {
	if p.pipeline != nil {
		return nil
	}
	shader, err := p.dev.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  "pick_shader",
		Source: hal.ShaderSource{WGSL: pickingShaderSource},
	})
	if err != nil {
		return fmt.Errorf("compile pick shader: %w", err)
	}
	p.shader = shader

	bindLayout, err := p.dev.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "pick_bind_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: gputypes.ShaderStageVertex,
				Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
			},
			{
				Binding:    1,
				Visibility: gputypes.ShaderStageVertex,
				Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeReadOnlyStorage},
			},
			{
				Binding:    2,
				Visibility: gputypes.ShaderStageVertex,
				Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeReadOnlyStorage},
			},
		},
	})
	if err != nil {
		p.destroyPipeline()
		return fmt.Errorf("create pick bind layout: %w", err)
	}
	p.bindLayout = bindLayout

	pipeLayout, err := p.dev.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "pick_pipe_layout",
		BindGroupLayouts: []hal.BindGroupLayout{p.bindLayout},
	})
	if err != nil {
		p.destroyPipeline()
		return fmt.Errorf("create pick pipeline layout: %w", err)
	}
	p.pipeLayout = pipeLayout

	pipeline, err := p.dev.device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  "pick_pipeline",
		Layout: p.pipeLayout,
		Vertex: hal.VertexState{
			Module:     p.shader,
			EntryPoint: "vs_main",
		},
		Fragment: &hal.FragmentState{
			Module:     p.shader,
			EntryPoint: "fs_main",
			Targets: []gputypes.ColorTargetState{
				{
					Format:    gputypes.TextureFormatRGBA8Unorm,
					WriteMask: gputypes.ColorWriteMaskAll,
				},
			},
		},
		Primitive: gputypes.PrimitiveState{
			Topology: gputypes.PrimitiveTopologyTriangleList,
			CullMode: gputypes.CullModeNone,
		},
		Multisample: gputypes.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		p.destroyPipeline()
		return fmt.Errorf("create pick pipeline: %w", err)
	}
	p.pipeline = pipeline
	return nil
}

// Destroy releases all GPU resources of the picker.
func (p *Picker) Destroy() {
	p.destroyTarget()
	p.destroyPipeline()
}

func (p *Picker) destroyTarget() {
	if p.view != nil {
		p.dev.device.DestroyTextureView(p.view)
		p.view = nil
	}
	if p.tex != nil {
		p.dev.device.DestroyTexture(p.tex)
		p.tex = nil
	}
	p.width, p.height = 0, 0
}

// destroyPipeline releases pipeline resources in reverse creation order.
func (p *Picker) destroyPipeline() {
	if p.pipeline != nil {
		p.dev.device.DestroyRenderPipeline(p.pipeline)
		p.pipeline = nil
	}
	if p.pipeLayout != nil {
		p.dev.device.DestroyPipelineLayout(p.pipeLayout)
		p.pipeLayout = nil
	}
	if p.bindLayout != nil {
		p.dev.device.DestroyBindGroupLayout(p.bindLayout)
		p.bindLayout = nil
	}
	if p.shader != nil {
		p.dev.device.DestroyShaderModule(p.shader)
		p.shader = nil
	}
}
