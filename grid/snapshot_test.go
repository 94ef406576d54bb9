// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package grid

import (
	"bytes"
	"errors"
	"slices"
	"testing"
)

func TestEncodeMultiGridInfoLayout(t *testing.T) {
	keys := []CellKey{{Level: 1, GlobalID: 0x01020304}, {Level: 2, GlobalID: 7}}
	got := EncodeMultiGridInfo(keys)
	want := []byte{
		2, 0, 0, 0, // count
		1, 2, 0, 0, // levels, padded to 4 bytes
		4, 3, 2, 1, // globalId 0
		7, 0, 0, 0, // globalId 1
	}
	if !bytes.Equal(got, want) {
		t.Errorf("EncodeMultiGridInfo = %v, want %v", got, want)
	}
}

func TestDecodeMultiGridInfo(t *testing.T) {
	keys := []CellKey{{Level: 0, GlobalID: 3}, {Level: 1, GlobalID: 14}, {Level: 1, GlobalID: 15}, {Level: 3, GlobalID: 1 << 30}, {Level: 2, GlobalID: 9}}
	got, err := DecodeMultiGridInfo(EncodeMultiGridInfo(keys))
	if err != nil {
		t.Fatalf("DecodeMultiGridInfo: %v", err)
	}
	if !slices.Equal(got, keys) {
		t.Errorf("decoded %v, want %v", got, keys)
	}
}

func TestDecodeMultiGridInfoEdgeCases(t *testing.T) {
	if keys, err := DecodeMultiGridInfo([]byte{1, 0}); err != nil || len(keys) != 0 {
		t.Errorf("short input = %v %v, want empty", keys, err)
	}
	if keys, err := DecodeMultiGridInfo([]byte{0, 0, 0, 0}); err != nil || len(keys) != 0 {
		t.Errorf("zero count = %v %v, want empty", keys, err)
	}
	truncated := EncodeMultiGridInfo([]CellKey{{Level: 1, GlobalID: 2}})[:9]
	if _, err := DecodeMultiGridInfo(truncated); !errors.Is(err, ErrMalformedGridInfo) {
		t.Errorf("expected ErrMalformedGridInfo, got %v", err)
	}
}

func TestSnapshotKeys(t *testing.T) {
	s := Snapshot{Levels: []uint8{0, 1}, GlobalIDs: []uint32{2, 5}}
	want := []CellKey{{Level: 0, GlobalID: 2}, {Level: 1, GlobalID: 5}}
	if got := s.Keys(); !slices.Equal(got, want) {
		t.Errorf("Keys = %v, want %v", got, want)
	}
	if s.Len() != 2 {
		t.Errorf("Len = %d, want 2", s.Len())
	}
}
