// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package selection tracks the selected storage slots with a hit
// generation counter.
//
// A slot is selected when its stored generation equals the current one.
// Clearing the selection advances the generation instead of rewriting every
// slot, so the only O(n) path is the reset performed when the counter would
// overflow its 8-bit range.
package selection

import (
	"errors"
	"fmt"
	"math"
)

// ErrUnknownSlot is returned for slots outside the live range.
var ErrUnknownSlot = errors.New("selection: unknown slot")

// unselected is the generation of a slot that was never selected, or was
// removed from the selection.
const unselected uint8 = 0

// FlagWriter receives hit generation writes. The attribute mirror
// implements it.
type FlagWriter interface {
	SetHit(slot int, gen uint8) error
	FillHit(from, n int, gen uint8) error
}

// Set is the selection over slots [0, Len()).
//
// Set is not safe for concurrent use.
type Set struct {
	w       FlagWriter
	gens    []uint8
	current uint8
	count   int
	resets  int
}

// New creates an empty selection over size live slots.
func New(w FlagWriter, size int) *Set {
	return &Set{
		w:       w,
		gens:    make([]uint8, size),
		current: 1,
	}
}

// Size returns the number of live slots tracked.
func (s *Set) Size() int { return len(s.gens) }

// Len returns the number of selected slots.
func (s *Set) Len() int { return s.count }

// Generation returns the current hit generation. Renderers highlight a
// slot when its hit attribute equals this value.
func (s *Set) Generation() uint8 { return s.current }

// Resets returns how many overflow resets have been performed.
func (s *Set) Resets() int { return s.resets }

// IsSelected reports whether slot is selected.
func (s *Set) IsSelected(slot int) bool {
	return slot >= 0 && slot < len(s.gens) && s.gens[slot] == s.current
}

// Add selects slot.
func (s *Set) Add(slot int) error {
	if slot < 0 || slot >= len(s.gens) {
		return fmt.Errorf("%w: %d of %d", ErrUnknownSlot, slot, len(s.gens))
	}
	if s.gens[slot] == s.current {
		return nil
	}
	if err := s.w.SetHit(slot, s.current); err != nil {
		return err
	}
	s.gens[slot] = s.current
	s.count++
	return nil
}

// AddAll selects every live slot with a single flag write.
func (s *Set) AddAll() error {
	return s.AddRange(0, len(s.gens))
}

// AddRange selects slots [from, from+n) with a single flag write.
func (s *Set) AddRange(from, n int) error {
	if n == 0 {
		return nil
	}
	if from < 0 || n < 0 || from+n > len(s.gens) {
		return fmt.Errorf("%w: [%d, %d) of %d", ErrUnknownSlot, from, from+n, len(s.gens))
	}
	if err := s.w.FillHit(from, n, s.current); err != nil {
		return err
	}
	for i := from; i < from+n; i++ {
		if s.gens[i] != s.current {
			s.gens[i] = s.current
			s.count++
		}
	}
	return nil
}

// Remove deselects slot if it is selected in the current generation.
func (s *Set) Remove(slot int) error {
	if !s.IsSelected(slot) {
		return nil
	}
	if err := s.w.SetHit(slot, unselected); err != nil {
		return err
	}
	s.gens[slot] = unselected
	s.count--
	return nil
}

// Selected returns the selected slots in ascending order.
func (s *Set) Selected() []uint32 {
	ids := make([]uint32, 0, s.count)
	if s.count == 0 {
		return ids
	}
	for i, g := range s.gens {
		if g == s.current {
			ids = append(ids, uint32(i)) //nolint:gosec // slot count fits uint32
		}
	}
	return ids
}

// Clear deselects everything and returns the previously selected slots.
func (s *Set) Clear() ([]uint32, error) {
	ids := s.Selected()
	if err := s.advance(); err != nil {
		return ids, err
	}
	return ids, nil
}

// Grow extends the live range by n slots, none selected. The mirror
// resets the hit attribute of freshly written rows.
func (s *Set) Grow(n int) {
	s.gens = append(s.gens, make([]uint8, n)...)
}

// Compact mirrors a swap-removal of slot: the last slot's generation moves
// into slot and the live range shrinks by one. The device copy of the hit
// attribute is done by the mirror's row copy, so nothing is written here.
func (s *Set) Compact(slot int) error {
	last := len(s.gens) - 1
	if slot < 0 || slot > last {
		return fmt.Errorf("%w: %d of %d", ErrUnknownSlot, slot, len(s.gens))
	}
	if s.gens[slot] == s.current {
		s.count--
	}
	s.gens[slot] = s.gens[last]
	s.gens = s.gens[:last]
	return nil
}

// Reset drops every slot and restarts the generation.
func (s *Set) Reset(size int) {
	s.gens = make([]uint8, size)
	s.current = 1
	s.count = 0
}

// advance moves to the next generation. At the top of the range every live
// slot is rewritten to unselected once and the counter restarts.
func (s *Set) advance() error {
	s.count = 0
	if s.current < math.MaxUint8 {
		s.current++
		return nil
	}
	if err := s.w.FillHit(0, len(s.gens), unselected); err != nil {
		return err
	}
	clear(s.gens)
	s.current = 1
	s.resets++
	return nil
}
