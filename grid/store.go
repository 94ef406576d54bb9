// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package grid

import (
	"fmt"
	"slices"
)

// CellKey identifies a cell independently of its storage slot.
type CellKey struct {
	Level    uint8
	GlobalID uint32
}

// Parent describes a complete sibling group and the parent it merges into.
type Parent struct {
	Level    uint8
	GlobalID uint32
	// Children are the storage ids of all children, ascending.
	Children []uint32
}

// StoreOption configures a Store.
type StoreOption func(*storeOptions)

type storeOptions struct {
	projector Projector
	cacheSize int
}

// WithProjector overrides the built-in projector chosen from the
// context's CRS codes.
func WithProjector(p Projector) StoreOption {
	return func(o *storeOptions) {
		o.projector = p
	}
}

// WithGeometryCache sets how many cells keep memoised corners.
// Zero disables the cache.
func WithGeometryCache(size int) StoreOption {
	return func(o *storeOptions) {
		o.cacheSize = size
	}
}

// Store is the authoritative index of live cells. Storage ids are dense:
// slots [0, Len()) are always occupied.
//
// Store is not safe for concurrent use.
type Store struct {
	ctx       Context
	hierarchy *Hierarchy
	geometry  *Geometry

	levels    []uint8
	globalIDs []uint32
	deleted   []bool
	index     map[CellKey]uint32
}

// NewStore validates ctx and creates an empty store.
// Call Initialize to populate it.
func NewStore(ctx Context, opts ...StoreOption) (*Store, error) {
	o := storeOptions{cacheSize: DefaultGeometryCacheSize}
	for _, opt := range opts {
		opt(&o)
	}

	if err := ctx.Validate(); err != nil {
		return nil, err
	}
	h, err := ctx.hierarchy()
	if err != nil {
		return nil, err
	}
	proj := o.projector
	if proj == nil {
		proj, err = LookupProjector(ctx.SourceCRS, ctx.TargetCRS)
		if err != nil {
			return nil, err
		}
	}

	ctx.Rules = slices.Clone(ctx.Rules)
	return &Store{
		ctx:       ctx,
		hierarchy: h,
		geometry:  NewGeometry(ctx.BoundingBox, h, proj, o.cacheSize),
		index:     make(map[CellKey]uint32),
	}, nil
}

// Initialize replaces the live set with the full level-0 raster, or with
// snap when it is non-nil, and returns the rows of every slot in order.
func (s *Store) Initialize(snap *Snapshot) (Batch, error) {
	var (
		levels    []uint8
		globalIDs []uint32
		deleted   []bool
	)
	if snap != nil {
		if err := snap.validate(s.hierarchy); err != nil {
			return nil, err
		}
		levels = slices.Clone(snap.Levels)
		globalIDs = slices.Clone(snap.GlobalIDs)
		deleted = slices.Clone(snap.Deleted)
		if deleted == nil {
			deleted = make([]bool, len(levels))
		}
	} else {
		n := s.hierarchy.Count(0)
		levels = make([]uint8, n)
		globalIDs = make([]uint32, n)
		deleted = make([]bool, n)
		for i := range globalIDs {
			globalIDs[i] = uint32(i) //nolint:gosec // level 0 raster fits uint32
		}
	}

	s.levels, s.globalIDs, s.deleted = levels, globalIDs, deleted
	s.index = make(map[CellKey]uint32, len(levels))
	for i := range levels {
		s.index[CellKey{Level: levels[i], GlobalID: globalIDs[i]}] = uint32(i) //nolint:gosec // slot count fits uint32
	}
	return s.rows(0, len(levels)), nil
}

// Context returns the context the store was built from.
func (s *Store) Context() Context { return s.ctx }

// Hierarchy returns the ratio-table math of the store.
func (s *Store) Hierarchy() *Hierarchy { return s.hierarchy }

// Geometry returns the corner generator of the store.
func (s *Store) Geometry() *Geometry { return s.geometry }

// Len returns the number of live slots.
func (s *Store) Len() int { return len(s.levels) }

// GridInfo returns the level and globalId stored in a slot.
func (s *Store) GridInfo(storageID uint32) (level uint8, globalID uint32, err error) {
	if int(storageID) >= len(s.levels) {
		return 0, 0, fmt.Errorf("%w: %d of %d", ErrUnknownSlot, storageID, len(s.levels))
	}
	return s.levels[storageID], s.globalIDs[storageID], nil
}

// IsDeleted reports the soft-delete flag of a slot.
func (s *Store) IsDeleted(storageID uint32) (bool, error) {
	if int(storageID) >= len(s.levels) {
		return false, fmt.Errorf("%w: %d of %d", ErrUnknownSlot, storageID, len(s.levels))
	}
	return s.deleted[storageID], nil
}

// SetDeleted updates the soft-delete flag of a slot.
func (s *Store) SetDeleted(storageID uint32, deleted bool) error {
	if int(storageID) >= len(s.levels) {
		return fmt.Errorf("%w: %d of %d", ErrUnknownSlot, storageID, len(s.levels))
	}
	s.deleted[storageID] = deleted
	return nil
}

// Lookup returns the slot holding (level, globalId).
func (s *Store) Lookup(level uint8, globalID uint32) (uint32, bool) {
	id, ok := s.index[CellKey{Level: level, GlobalID: globalID}]
	return id, ok
}

// ChildGlobalIDs returns the globalIds of a cell's children.
func (s *Store) ChildGlobalIDs(level uint8, globalID uint32) ([]uint32, error) {
	return s.hierarchy.ChildGlobalIDs(level, globalID)
}

// Row returns the render-ready attributes of a slot.
func (s *Store) Row(storageID uint32) (Row, error) {
	if int(storageID) >= len(s.levels) {
		return Row{}, fmt.Errorf("%w: %d of %d", ErrUnknownSlot, storageID, len(s.levels))
	}
	return s.row(int(storageID)), nil
}

// Append adds cells at the end of the live range and returns the first new
// slot with the rows of the appended cells. Either every cell is appended
// or none is.
func (s *Store) Append(cells []CellKey) (first int, rows Batch, err error) {
	first = len(s.levels)
	seen := make(map[CellKey]struct{}, len(cells))
	for _, c := range cells {
		if !s.hierarchy.Contains(c.Level, c.GlobalID) {
			return first, nil, fmt.Errorf("%w: (%d, %d) outside raster", ErrInvalidCell, c.Level, c.GlobalID)
		}
		if _, live := s.index[c]; live {
			return first, nil, fmt.Errorf("%w: (%d, %d) already live", ErrInvalidCell, c.Level, c.GlobalID)
		}
		if _, dup := seen[c]; dup {
			return first, nil, fmt.Errorf("%w: (%d, %d) appended twice", ErrInvalidCell, c.Level, c.GlobalID)
		}
		seen[c] = struct{}{}
	}

	for _, c := range cells {
		s.index[c] = uint32(len(s.levels)) //nolint:gosec // slot count fits uint32
		s.levels = append(s.levels, c.Level)
		s.globalIDs = append(s.globalIDs, c.GlobalID)
		s.deleted = append(s.deleted, false)
	}
	return first, s.rows(first, len(s.levels)), nil
}

// SwapRemove removes a slot by moving the last live slot into it.
// It returns the slot that was moved, or -1 when the removed slot was last.
func (s *Store) SwapRemove(storageID uint32) (moved int, err error) {
	n := len(s.levels)
	if int(storageID) >= n {
		return -1, fmt.Errorf("%w: %d of %d", ErrUnknownSlot, storageID, n)
	}
	delete(s.index, CellKey{Level: s.levels[storageID], GlobalID: s.globalIDs[storageID]})

	last := n - 1
	moved = -1
	if int(storageID) != last {
		s.levels[storageID] = s.levels[last]
		s.globalIDs[storageID] = s.globalIDs[last]
		s.deleted[storageID] = s.deleted[last]
		s.index[CellKey{Level: s.levels[storageID], GlobalID: s.globalIDs[storageID]}] = storageID
		moved = last
	}
	s.levels = s.levels[:last]
	s.globalIDs = s.globalIDs[:last]
	s.deleted = s.deleted[:last]
	return moved, nil
}

// MergeCandidates groups the live, non-deleted slots in ids by parent and
// returns every group that holds all children of its parent. Groups are
// ordered by parent (level, globalId).
func (s *Store) MergeCandidates(ids []uint32) []Parent {
	groups := make(map[CellKey][]uint32)
	seen := make(map[uint32]struct{}, len(ids))
	for _, id := range ids {
		if int(id) >= len(s.levels) || s.deleted[id] {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		level, gid := s.levels[id], s.globalIDs[id]
		pid, ok := s.hierarchy.ParentGlobalID(level, gid)
		if !ok {
			continue
		}
		key := CellKey{Level: level - 1, GlobalID: pid}
		groups[key] = append(groups[key], id)
	}

	var parents []Parent
	for key, children := range groups {
		if len(children) != s.hierarchy.SiblingCount(key.Level+1) {
			continue
		}
		slices.Sort(children)
		parents = append(parents, Parent{Level: key.Level, GlobalID: key.GlobalID, Children: children})
	}
	slices.SortFunc(parents, func(a, b Parent) int {
		if a.Level != b.Level {
			return int(a.Level) - int(b.Level)
		}
		switch {
		case a.GlobalID < b.GlobalID:
			return -1
		case a.GlobalID > b.GlobalID:
			return 1
		}
		return 0
	})
	return parents
}

// MergeCandidateParent reports whether ids form exactly one complete
// sibling group. A false result is a no-op for callers, not a failure.
func (s *Store) MergeCandidateParent(ids []uint32) (Parent, bool) {
	parents := s.MergeCandidates(ids)
	if len(parents) != 1 {
		return Parent{}, false
	}
	unique := make(map[uint32]struct{}, len(ids))
	for _, id := range ids {
		unique[id] = struct{}{}
	}
	if len(unique) != len(parents[0].Children) {
		return Parent{}, false
	}
	return parents[0], true
}

// Snapshot captures the live set in storage order.
func (s *Store) Snapshot() Snapshot {
	return Snapshot{
		Levels:    slices.Clone(s.levels),
		GlobalIDs: slices.Clone(s.globalIDs),
		Deleted:   slices.Clone(s.deleted),
	}
}

func (s *Store) rows(from, to int) Batch {
	b := make(Batch, 0, to-from)
	for i := from; i < to; i++ {
		b = append(b, s.row(i))
	}
	return b
}

func (s *Store) row(i int) Row {
	high, low := s.geometry.Corners(s.levels[i], s.globalIDs[i])
	return Row{
		Level:    s.levels[i],
		GlobalID: s.globalIDs[i],
		Deleted:  s.deleted[i],
		High:     high,
		Low:      low,
	}
}
