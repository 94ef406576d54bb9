//go:build !nogpu

package gpu

import (
	"fmt"
	"slices"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/gridedit/mirror"
)

// attributeUsage is the usage of every attribute buffer: bound as storage
// by the picker and the host's display pipeline, written from the CPU,
// and copied slot to slot on compaction.
const attributeUsage = gputypes.BufferUsageStorage | gputypes.BufferUsageCopyDst | gputypes.BufferUsageCopySrc

// attrOp is a pending slot copy.
type attrOp struct {
	src, dst int
}

// AttributeBuffers holds one storage buffer per mirrored attribute.
// It implements mirror.Device.
//
// Writes go through the queue immediately. Slot copies are recorded and
// applied on the next Flush, or before the next write so that call order
// is kept.
type AttributeBuffers struct {
	dev      *Device
	buffers  [mirror.NumAttributes]hal.Buffer
	capacity int
	copies   []attrOp
	err      error
}

var _ mirror.Device = (*AttributeBuffers)(nil)

// NewAttributeBuffers creates attribute buffers on dev. No device memory
// is allocated until Allocate.
func NewAttributeBuffers(dev *Device) *AttributeBuffers {
	return &AttributeBuffers{dev: dev}
}

// Buffer returns the device buffer of attr, or nil before Allocate.
func (b *AttributeBuffers) Buffer(attr mirror.Attribute) hal.Buffer {
	return b.buffers[attr]
}

// Capacity returns the allocated slot capacity.
func (b *AttributeBuffers) Capacity() int { return b.capacity }

// Allocate implements mirror.Device.
func (b *AttributeBuffers) Allocate(capacity int) error {
	b.Release()
	for attr := mirror.Attribute(0); attr < mirror.NumAttributes; attr++ {
		buf, err := b.dev.device.CreateBuffer(&hal.BufferDescriptor{
			Label: "gridedit_" + attr.String(),
			Size:  uint64(capacity) * uint64(attr.Stride()),
			Usage: attributeUsage,
		})
		if err != nil {
			b.Release()
			return fmt.Errorf("create %s buffer for %d slots: %w", attr, capacity, err)
		}
		b.buffers[attr] = buf
	}
	b.capacity = capacity
	slogger().Debug("gpu: attribute buffers allocated", "capacity", capacity)
	return nil
}

// Write implements mirror.Device.
func (b *AttributeBuffers) Write(attr mirror.Attribute, slot int, data []byte) {
	if b.buffers[attr] == nil {
		return
	}
	if len(b.copies) > 0 {
		b.encodeCopies()
	}
	b.dev.queue.WriteBuffer(b.buffers[attr], uint64(slot)*uint64(attr.Stride()), data)
}

// Copy implements mirror.Device.
func (b *AttributeBuffers) Copy(src, dst int) {
	b.copies = append(b.copies, attrOp{src: src, dst: dst})
}

// Flush implements mirror.Device. It reports the first error of any copy
// submitted since the previous Flush.
func (b *AttributeBuffers) Flush() error {
	if len(b.copies) > 0 {
		b.encodeCopies()
	}
	err := b.err
	b.err = nil
	return err
}

// encodeCopies resolves the pending slot copies and applies them through
// a scratch buffer: every source row is gathered first, then scattered to
// its destination. A chain such as 4->3 then 3->2 therefore moves the
// original row 4 to both slots.
func (b *AttributeBuffers) encodeCopies() {
	moves := resolveCopies(b.copies)
	b.copies = b.copies[:0]
	if b.buffers[0] == nil || len(moves) == 0 {
		return
	}
	if err := b.applyMoves(moves); err != nil && b.err == nil {
		b.err = fmt.Errorf("copy %d slots: %w", len(moves), err)
	}
}

func (b *AttributeBuffers) applyMoves(moves []attrOp) error {
	var rowSize uint64
	for attr := mirror.Attribute(0); attr < mirror.NumAttributes; attr++ {
		rowSize += uint64(attr.Stride())
	}
	scratch, err := b.dev.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "gridedit_compact_scratch",
		Size:  rowSize * uint64(len(moves)),
		Usage: gputypes.BufferUsageCopySrc | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("create scratch buffer: %w", err)
	}
	defer b.dev.device.DestroyBuffer(scratch)

	regions := func(attr mirror.Attribute, base uint64, gather bool) []hal.BufferCopy {
		stride := uint64(attr.Stride())
		out := make([]hal.BufferCopy, len(moves))
		for i, m := range moves {
			slot, scratchOff := uint64(m.dst)*stride, base+uint64(i)*stride
			if gather {
				slot = uint64(m.src) * stride
				out[i] = hal.BufferCopy{SrcOffset: slot, DstOffset: scratchOff, Size: stride}
				continue
			}
			out[i] = hal.BufferCopy{SrcOffset: scratchOff, DstOffset: slot, Size: stride}
		}
		return out
	}

	err = b.dev.submit("gridedit_compact_gather", func(enc hal.CommandEncoder) {
		var base uint64
		for attr := mirror.Attribute(0); attr < mirror.NumAttributes; attr++ {
			enc.CopyBufferToBuffer(b.buffers[attr], scratch, regions(attr, base, true))
			base += uint64(attr.Stride()) * uint64(len(moves))
		}
	})
	if err != nil {
		return err
	}
	return b.dev.submit("gridedit_compact_scatter", func(enc hal.CommandEncoder) {
		var base uint64
		for attr := mirror.Attribute(0); attr < mirror.NumAttributes; attr++ {
			enc.CopyBufferToBuffer(scratch, b.buffers[attr], regions(attr, base, false))
			base += uint64(attr.Stride()) * uint64(len(moves))
		}
	})
}

// resolveCopies collapses a sequence of slot copies into moves that read
// only the rows present before the first copy, ordered by destination.
func resolveCopies(copies []attrOp) []attrOp {
	origin := make(map[int]int, len(copies))
	for _, c := range copies {
		src, ok := origin[c.src]
		if !ok {
			src = c.src
		}
		origin[c.dst] = src
	}
	moves := make([]attrOp, 0, len(origin))
	for dst, src := range origin {
		if src != dst {
			moves = append(moves, attrOp{src: src, dst: dst})
		}
	}
	slices.SortFunc(moves, func(a, b attrOp) int { return a.dst - b.dst })
	return moves
}

// Release implements mirror.Device.
func (b *AttributeBuffers) Release() {
	for i, buf := range b.buffers {
		if buf != nil {
			b.dev.device.DestroyBuffer(buf)
			b.buffers[i] = nil
		}
	}
	b.capacity = 0
	b.copies = b.copies[:0]
}
