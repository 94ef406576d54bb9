// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package grid

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Snapshot is a saved live set in storage order. Restoring it reproduces
// the same storage ids.
type Snapshot struct {
	Levels    []uint8  `json:"levels"`
	GlobalIDs []uint32 `json:"globalIds"`
	// Deleted may be nil when no cell is deleted.
	Deleted []bool `json:"deleted,omitempty"`
}

// Len returns the number of cells in the snapshot.
func (s *Snapshot) Len() int { return len(s.Levels) }

// Keys returns the cells of the snapshot.
func (s *Snapshot) Keys() []CellKey {
	keys := make([]CellKey, len(s.Levels))
	for i := range keys {
		keys[i] = CellKey{Level: s.Levels[i], GlobalID: s.GlobalIDs[i]}
	}
	return keys
}

func (s *Snapshot) validate(h *Hierarchy) error {
	if len(s.GlobalIDs) != len(s.Levels) {
		return fmt.Errorf("%w: snapshot has %d levels and %d global ids", ErrInvalidContext, len(s.Levels), len(s.GlobalIDs))
	}
	if s.Deleted != nil && len(s.Deleted) != len(s.Levels) {
		return fmt.Errorf("%w: snapshot has %d levels and %d deleted flags", ErrInvalidContext, len(s.Levels), len(s.Deleted))
	}
	seen := make(map[CellKey]struct{}, len(s.Levels))
	for i := range s.Levels {
		k := CellKey{Level: s.Levels[i], GlobalID: s.GlobalIDs[i]}
		if !h.Contains(k.Level, k.GlobalID) {
			return fmt.Errorf("%w: snapshot cell %d (%d, %d) outside raster", ErrInvalidContext, i, k.Level, k.GlobalID)
		}
		if _, dup := seen[k]; dup {
			return fmt.Errorf("%w: snapshot cell %d (%d, %d) duplicated", ErrInvalidContext, i, k.Level, k.GlobalID)
		}
		seen[k] = struct{}{}
	}
	for i := range s.Levels {
		level, gid := s.Levels[i], s.GlobalIDs[i]
		for level > 0 {
			gid, _ = h.ParentGlobalID(level, gid)
			level--
			if _, live := seen[CellKey{Level: level, GlobalID: gid}]; live {
				return fmt.Errorf("%w: snapshot cell %d (%d, %d) overlaps live ancestor (%d, %d)",
					ErrInvalidContext, i, s.Levels[i], s.GlobalIDs[i], level, gid)
			}
		}
	}
	return nil
}

// ErrMalformedGridInfo is returned by DecodeMultiGridInfo for truncated input.
var ErrMalformedGridInfo = errors.New("grid: malformed multi grid info")

// EncodeMultiGridInfo encodes cells as a little-endian u32 count n, n
// level bytes, zero padding to a 4-byte boundary, then n u32 globalIds.
func EncodeMultiGridInfo(keys []CellKey) []byte {
	n := len(keys)
	idsOffset := 4 + align4(n)
	buf := make([]byte, idsOffset+4*n)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(n)) //nolint:gosec // cell count fits uint32
	for i, k := range keys {
		buf[4+i] = k.Level
		binary.LittleEndian.PutUint32(buf[idsOffset+4*i:], k.GlobalID)
	}
	return buf
}

// DecodeMultiGridInfo decodes the EncodeMultiGridInfo layout.
// Input shorter than the count prefix decodes as no cells.
func DecodeMultiGridInfo(buf []byte) ([]CellKey, error) {
	if len(buf) < 4 {
		return nil, nil
	}
	n := int(binary.LittleEndian.Uint32(buf[0:4]))
	idsOffset := 4 + align4(n)
	if n < 0 || len(buf) < idsOffset+4*n {
		return nil, fmt.Errorf("%w: %d bytes for %d cells", ErrMalformedGridInfo, len(buf), n)
	}
	keys := make([]CellKey, n)
	for i := range keys {
		keys[i] = CellKey{
			Level:    buf[4+i],
			GlobalID: binary.LittleEndian.Uint32(buf[idsOffset+4*i:]),
		}
	}
	return keys, nil
}

func align4(n int) int {
	return (n + 3) &^ 3
}
