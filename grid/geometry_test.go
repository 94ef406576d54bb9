// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package grid

import (
	"errors"
	"math"
	"testing"
)

func TestSplitFloat(t *testing.T) {
	for _, v := range []float64{0, 1, 0.8123456789012345, 123456.789012345, -42.000000123} {
		hi, lo := SplitFloat(v)
		if float64(hi) != float64(float32(v)) {
			t.Errorf("SplitFloat(%v) hi = %v, want float32(v)", v, hi)
		}
		if got := float64(hi) + float64(lo); math.Abs(got-v) > math.Abs(v)*1e-13+1e-300 {
			t.Errorf("SplitFloat(%v) reconstructs %v", v, got)
		}
	}
}

func TestMercatorFromLonLat(t *testing.T) {
	tests := []struct {
		lon, lat float64
		x, y     float64
	}{
		{0, 0, 0.5, 0.5},
		{-180, 0, 0, 0.5},
		{180, 0, 1, 0.5},
	}
	for _, tt := range tests {
		x, y := MercatorFromLonLat(tt.lon, tt.lat)
		if math.Abs(x-tt.x) > 1e-12 || math.Abs(y-tt.y) > 1e-12 {
			t.Errorf("MercatorFromLonLat(%v, %v) = (%v, %v), want (%v, %v)", tt.lon, tt.lat, x, y, tt.x, tt.y)
		}
	}
	_, north := MercatorFromLonLat(0, 60)
	if north >= 0.5 {
		t.Errorf("northern latitudes must map above the equator, got y=%v", north)
	}
}

func TestLookupProjector(t *testing.T) {
	p, err := LookupProjector("EPSG:3857", "EPSG:4326")
	if err != nil {
		t.Fatalf("LookupProjector: %v", err)
	}
	lon, lat := p.Forward(earthRadius*math.Pi, 0)
	if math.Abs(lon-180) > 1e-9 || math.Abs(lat) > 1e-9 {
		t.Errorf("Forward(edge) = (%v, %v), want (180, 0)", lon, lat)
	}

	p, err = LookupProjector("epsg:4326", "")
	if err != nil {
		t.Fatalf("LookupProjector: %v", err)
	}
	if lon, lat := p.Forward(113.5, 22.25); lon != 113.5 || lat != 22.25 {
		t.Errorf("identity Forward = (%v, %v)", lon, lat)
	}

	if _, err := LookupProjector("EPSG:2326", "EPSG:4326"); !errors.Is(err, ErrInvalidContext) {
		t.Errorf("expected ErrInvalidContext for unknown source, got %v", err)
	}
	if _, err := LookupProjector("EPSG:4326", "EPSG:3857"); !errors.Is(err, ErrInvalidContext) {
		t.Errorf("expected ErrInvalidContext for projected target, got %v", err)
	}
}

func TestGeometryHighLowReconstruction(t *testing.T) {
	bbox := BoundingBox{MinX: 113.8, MinY: 22.1, MaxX: 114.4, MaxY: 22.6}
	h, err := NewHierarchy([][2]uint32{{4, 4}, {8, 8}})
	if err != nil {
		t.Fatalf("NewHierarchy: %v", err)
	}
	g := NewGeometry(bbox, h, identityProjector, 0)
	ox, oy := g.OriginMercator()

	for _, gid := range []uint32{0, 17, 255, 1023} {
		high, low := g.Corners(1, gid)
		w, ht := h.Size(1)
		u := float64(gid % w)
		v := float64(gid / w)
		xMin := lerp(bbox.MinX, bbox.MaxX, u/float64(w))
		yMax := lerp(bbox.MinY, bbox.MaxY, (v+1)/float64(ht))
		mx, my := MercatorFromLonLat(xMin, yMax)

		gotX := float64(high[2*CornerTL]) + float64(low[2*CornerTL])
		gotY := float64(high[2*CornerTL+1]) + float64(low[2*CornerTL+1])
		if math.Abs(gotX-(mx-ox)) > 1e-12 || math.Abs(gotY-(my-oy)) > 1e-12 {
			t.Errorf("cell %d TL = (%g, %g), want (%g, %g)", gid, gotX, gotY, mx-ox, my-oy)
		}
		// Mercator y grows southwards, so the top edge has the smaller y.
		if high[2*CornerTL+1] > high[2*CornerBL+1] {
			t.Errorf("cell %d top edge below bottom edge", gid)
		}
		if high[2*CornerTR] <= high[2*CornerTL] {
			t.Errorf("cell %d right edge not right of left edge", gid)
		}
	}
}

func TestGeometryCache(t *testing.T) {
	h, err := NewHierarchy([][2]uint32{{2, 2}})
	if err != nil {
		t.Fatalf("NewHierarchy: %v", err)
	}
	g := NewGeometry(BoundingBox{MinX: 0, MinY: 0, MaxX: 1, MaxY: 1}, h, identityProjector, 16)
	a, _ := g.Corners(0, 3)
	b, _ := g.Corners(0, 3)
	if a != b {
		t.Error("cached corners differ from computed corners")
	}
	if s := g.CacheStats(); s.Hits != 1 || s.Misses != 1 {
		t.Errorf("expected 1 hit and 1 miss, got %+v", s)
	}
}
