// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package mirror keeps a device-resident, storage-id indexed copy of every
// attribute needed to rasterize grid cells.
//
// Each attribute lives in its own device array so that single attributes
// (the hit generation, the deleted flag) can be updated with one small
// write. A CPU shadow of every slot up to the high-water mark is kept so
// that the device can be re-populated after a resize and so that software
// renderers can read geometry without a readback.
package mirror

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/gogpu/gridedit/grid"
)

// DefaultCapacity is the slot capacity used when a context does not
// specify one.
const DefaultCapacity = 4096 * 4096

var (
	// ErrDeviceAllocation is returned when device memory cannot be
	// allocated. The mirror is unusable until the next successful Resize.
	ErrDeviceAllocation = errors.New("mirror: device allocation failed")

	// ErrCapacityExceeded is returned when a write addresses a slot at or
	// beyond the capacity.
	ErrCapacityExceeded = errors.New("mirror: capacity exceeded")

	// ErrReleased is returned by writes after Release.
	ErrReleased = errors.New("mirror: released")
)

// Attribute names one per-slot device array.
type Attribute int

const (
	// AttrVertexHigh holds the high parts of the four corners (8 x f32).
	AttrVertexHigh Attribute = iota
	// AttrVertexLow holds the low parts of the four corners (8 x f32).
	AttrVertexLow
	// AttrLevel holds the cell level (u32).
	AttrLevel
	// AttrHit holds the selection generation (u32).
	AttrHit
	// AttrDeleted holds the soft-delete flag (u32, 0 or 1).
	AttrDeleted

	// NumAttributes is the number of attribute arrays.
	NumAttributes
)

// Stride returns the size of one slot of the attribute in bytes.
// Every stride is a multiple of 4 so device writes stay aligned.
func (a Attribute) Stride() int {
	switch a {
	case AttrVertexHigh, AttrVertexLow:
		return 32
	default:
		return 4
	}
}

func (a Attribute) String() string {
	switch a {
	case AttrVertexHigh:
		return "vertex_high"
	case AttrVertexLow:
		return "vertex_low"
	case AttrLevel:
		return "level"
	case AttrHit:
		return "hit"
	case AttrDeleted:
		return "deleted"
	}
	return fmt.Sprintf("Attribute(%d)", int(a))
}

// Device is the backing store of a Mirror.
//
// Writes and copies may be deferred; Flush must make every earlier write
// and copy visible to subsequent device reads, in call order.
type Device interface {
	// Allocate (re)creates every attribute array with room for capacity
	// slots. Previous contents are discarded.
	Allocate(capacity int) error

	// Write stores data starting at slot. len(data) is a multiple of the
	// attribute stride. data must not be retained after Write returns.
	Write(attr Attribute, slot int, data []byte)

	// Copy copies the full attribute row of src to dst on the device.
	Copy(src, dst int)

	// Flush submits pending work and waits for it to complete.
	Flush() error

	// Release frees every attribute array.
	Release()
}

// Option configures a Mirror.
type Option func(*Mirror)

// WithDevice attaches a device backend. Without one the mirror keeps only
// its CPU shadow.
func WithDevice(d Device) Option {
	return func(m *Mirror) {
		m.device = d
	}
}

// WithLogger sets the logger for allocation diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(m *Mirror) {
		if l != nil {
			m.logger = l
		}
	}
}

// Mirror is the storage-id indexed attribute mirror.
//
// Mirror is not safe for concurrent use.
type Mirror struct {
	device   Device
	logger   *slog.Logger
	capacity int
	released bool

	high    []grid.Vertices
	low     []grid.Vertices
	levels  []uint8
	hits    []uint8
	deleted []bool

	scratch []byte
}

// New creates a mirror with room for capacity slots. A capacity of 0
// selects DefaultCapacity.
func New(capacity int, opts ...Option) (*Mirror, error) {
	m := &Mirror{logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(m)
	}
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if err := m.allocate(capacity); err != nil {
		return nil, err
	}
	return m, nil
}

// Capacity returns the number of addressable slots.
func (m *Mirror) Capacity() int { return m.capacity }

// Size returns the shadow high-water mark.
func (m *Mirror) Size() int { return len(m.levels) }

// HasDevice reports whether a device backend is attached.
func (m *Mirror) HasDevice() bool { return m.device != nil }

// Write stores one row at slot. The slot's hit generation is reset.
func (m *Mirror) Write(slot int, row grid.Row) error {
	return m.WriteRange(slot, grid.Batch{row})
}

// WriteRange stores a contiguous run of rows starting at from, with one
// device write per attribute. Hit generations of the run are reset.
func (m *Mirror) WriteRange(from int, rows grid.Batch) error {
	if len(rows) == 0 {
		return nil
	}
	if err := m.check(from, len(rows)); err != nil {
		return err
	}
	m.grow(from + len(rows))

	for i, r := range rows {
		s := from + i
		m.high[s] = r.High
		m.low[s] = r.Low
		m.levels[s] = r.Level
		m.hits[s] = 0
		m.deleted[s] = r.Deleted
	}
	if m.device == nil {
		return nil
	}

	n := len(rows)
	buf := m.buffer(n * AttrVertexHigh.Stride())
	for i := range rows {
		putVertices(buf[i*32:], &rows[i].High)
	}
	m.device.Write(AttrVertexHigh, from, buf)

	buf = m.buffer(n * AttrVertexLow.Stride())
	for i := range rows {
		putVertices(buf[i*32:], &rows[i].Low)
	}
	m.device.Write(AttrVertexLow, from, buf)

	buf = m.buffer(n * 4)
	for i := range rows {
		binary.LittleEndian.PutUint32(buf[i*4:], uint32(rows[i].Level))
	}
	m.device.Write(AttrLevel, from, buf)

	buf = m.buffer(n * 4)
	clear(buf)
	m.device.Write(AttrHit, from, buf)

	buf = m.buffer(n * 4)
	for i := range rows {
		binary.LittleEndian.PutUint32(buf[i*4:], boolWord(rows[i].Deleted))
	}
	m.device.Write(AttrDeleted, from, buf)
	return nil
}

// Copy copies the full row of src into dst. On the device this is a
// buffer-to-buffer copy with no CPU round-trip.
func (m *Mirror) Copy(src, dst int) error {
	if err := m.check(src, 1); err != nil {
		return err
	}
	if err := m.check(dst, 1); err != nil {
		return err
	}
	if src == dst {
		return nil
	}
	m.grow(max(src, dst) + 1)
	m.high[dst] = m.high[src]
	m.low[dst] = m.low[src]
	m.levels[dst] = m.levels[src]
	m.hits[dst] = m.hits[src]
	m.deleted[dst] = m.deleted[src]
	if m.device != nil {
		m.device.Copy(src, dst)
	}
	return nil
}

// SetLevel updates the level of one slot.
func (m *Mirror) SetLevel(slot int, level uint8) error {
	if err := m.check(slot, 1); err != nil {
		return err
	}
	m.grow(slot + 1)
	m.levels[slot] = level
	m.writeWord(AttrLevel, slot, uint32(level))
	return nil
}

// SetDeleted updates the deleted flag of one slot.
func (m *Mirror) SetDeleted(slot int, deleted bool) error {
	if err := m.check(slot, 1); err != nil {
		return err
	}
	m.grow(slot + 1)
	m.deleted[slot] = deleted
	m.writeWord(AttrDeleted, slot, boolWord(deleted))
	return nil
}

// SetHit updates the hit generation of one slot.
func (m *Mirror) SetHit(slot int, gen uint8) error {
	if err := m.check(slot, 1); err != nil {
		return err
	}
	m.grow(slot + 1)
	m.hits[slot] = gen
	m.writeWord(AttrHit, slot, uint32(gen))
	return nil
}

// FillHit sets the hit generation of n slots starting at from with a
// single device write.
func (m *Mirror) FillHit(from, n int, gen uint8) error {
	if n == 0 {
		return nil
	}
	if err := m.check(from, n); err != nil {
		return err
	}
	m.grow(from + n)
	for i := from; i < from+n; i++ {
		m.hits[i] = gen
	}
	if m.device == nil {
		return nil
	}
	buf := m.buffer(n * 4)
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint32(buf[i*4:], uint32(gen))
	}
	m.device.Write(AttrHit, from, buf)
	return nil
}

// Vertices returns the shadow geometry of a slot.
func (m *Mirror) Vertices(slot int) (high, low grid.Vertices) {
	return m.high[slot], m.low[slot]
}

// Level returns the shadow level of a slot.
func (m *Mirror) Level(slot int) uint8 { return m.levels[slot] }

// Hit returns the shadow hit generation of a slot.
func (m *Mirror) Hit(slot int) uint8 { return m.hits[slot] }

// Deleted returns the shadow deleted flag of a slot.
func (m *Mirror) Deleted(slot int) bool { return m.deleted[slot] }

// Flush makes every pending write and copy visible to device reads.
func (m *Mirror) Flush() error {
	if m.released {
		return ErrReleased
	}
	if m.device == nil {
		return nil
	}
	return m.device.Flush()
}

// Resize reallocates device memory for capacity slots and re-populates it
// from the shadow. Slots at or beyond the new capacity are dropped.
// On ErrDeviceAllocation the mirror holds no device memory and every
// device-backed write fails until a later Resize succeeds.
func (m *Mirror) Resize(capacity int) error {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if m.device != nil {
		m.device.Release()
	}
	if err := m.allocate(capacity); err != nil {
		return err
	}
	if len(m.levels) > capacity {
		m.truncate(capacity)
	}
	if m.device == nil || len(m.levels) == 0 {
		return nil
	}

	rows := make(grid.Batch, len(m.levels))
	hits := append([]uint8(nil), m.hits...)
	for i := range rows {
		rows[i] = grid.Row{Level: m.levels[i], Deleted: m.deleted[i], High: m.high[i], Low: m.low[i]}
	}
	if err := m.WriteRange(0, rows); err != nil {
		return err
	}
	buf := m.buffer(len(hits) * 4)
	for i, g := range hits {
		m.hits[i] = g
		binary.LittleEndian.PutUint32(buf[i*4:], uint32(g))
	}
	m.device.Write(AttrHit, 0, buf)
	m.logger.Debug("mirror: re-populated after resize", "slots", len(rows), "capacity", capacity)
	return m.device.Flush()
}

// Truncate shrinks the shadow to n slots. Device memory is left as is;
// slots at or beyond n are simply no longer drawn.
func (m *Mirror) Truncate(n int) {
	if n < len(m.levels) {
		m.truncate(max(n, 0))
	}
}

// Release frees device memory. The mirror must not be used afterwards.
func (m *Mirror) Release() {
	if m.released {
		return
	}
	m.released = true
	if m.device != nil {
		m.device.Release()
	}
	m.high, m.low, m.levels, m.hits, m.deleted = nil, nil, nil, nil, nil
}

func (m *Mirror) allocate(capacity int) error {
	m.capacity = 0
	m.released = false
	if m.device != nil {
		if err := m.device.Allocate(capacity); err != nil {
			m.released = true
			return fmt.Errorf("%w: %d slots: %v", ErrDeviceAllocation, capacity, err)
		}
		m.logger.Info("mirror: device allocated", "capacity", capacity)
	}
	m.capacity = capacity
	return nil
}

func (m *Mirror) check(from, n int) error {
	if m.released {
		return ErrReleased
	}
	if from < 0 || n < 0 || from+n > m.capacity {
		return fmt.Errorf("%w: slots [%d, %d) of %d", ErrCapacityExceeded, from, from+n, m.capacity)
	}
	return nil
}

// grow extends the shadow to hold n slots.
func (m *Mirror) grow(n int) {
	if n <= len(m.levels) {
		return
	}
	extra := n - len(m.levels)
	m.high = append(m.high, make([]grid.Vertices, extra)...)
	m.low = append(m.low, make([]grid.Vertices, extra)...)
	m.levels = append(m.levels, make([]uint8, extra)...)
	m.hits = append(m.hits, make([]uint8, extra)...)
	m.deleted = append(m.deleted, make([]bool, extra)...)
}

func (m *Mirror) truncate(n int) {
	m.high = m.high[:n]
	m.low = m.low[:n]
	m.levels = m.levels[:n]
	m.hits = m.hits[:n]
	m.deleted = m.deleted[:n]
}

func (m *Mirror) writeWord(attr Attribute, slot int, v uint32) {
	if m.device == nil {
		return
	}
	var w [4]byte
	binary.LittleEndian.PutUint32(w[:], v)
	m.device.Write(attr, slot, w[:])
}

// buffer returns a scratch slice of n bytes. Devices copy written data
// before returning, so the scratch space is reused across writes.
func (m *Mirror) buffer(n int) []byte {
	if cap(m.scratch) < n {
		m.scratch = make([]byte, n)
	}
	return m.scratch[:n]
}

func putVertices(buf []byte, v *grid.Vertices) {
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
}

func boolWord(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}
