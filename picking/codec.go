// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package picking

// Sentinel is the id decoded from a pixel no cell covered. Targets are
// cleared to opaque white, which packs to this value.
const Sentinel uint32 = 0xFFFFFFFF

// EncodeID packs a storage id into RGBA bytes, least significant byte in R.
func EncodeID(id uint32) [4]byte {
	return [4]byte{byte(id), byte(id >> 8), byte(id >> 16), byte(id >> 24)}
}

// DecodeID unpacks RGBA bytes into a storage id. It reports false for the
// sentinel and for ids at or beyond count.
func DecodeID(px []byte, count int) (uint32, bool) {
	id := uint32(px[0]) | uint32(px[1])<<8 | uint32(px[2])<<16 | uint32(px[3])<<24
	if id == Sentinel || uint64(id) >= uint64(count) {
		return 0, false
	}
	return id, true
}

// IDColor returns the normalized color a shader writes for id.
func IDColor(id uint32) [4]float32 {
	b := EncodeID(id)
	return [4]float32{float32(b[0]) / 255, float32(b[1]) / 255, float32(b[2]) / 255, float32(b[3]) / 255}
}

// DecodeRegion returns the distinct valid ids in tightly packed RGBA
// pixels, in first-seen order.
func DecodeRegion(pixels []byte, count int) []uint32 {
	seen := make(map[uint32]struct{})
	ids := make([]uint32, 0)
	for i := 0; i+4 <= len(pixels); i += 4 {
		id, ok := DecodeID(pixels[i:i+4], count)
		if !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}
