// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package grid

import (
	"fmt"
	"math"
	"strings"
)

// Projector converts a source CRS coordinate to WGS84 longitude and
// latitude in degrees.
type Projector interface {
	Forward(x, y float64) (lon, lat float64)
}

// ProjectorFunc adapts a function to the Projector interface.
type ProjectorFunc func(x, y float64) (lon, lat float64)

// Forward calls f(x, y).
func (f ProjectorFunc) Forward(x, y float64) (lon, lat float64) { return f(x, y) }

// earthRadius is the sphere radius used by EPSG:3857.
const earthRadius = 6378137.0

var (
	identityProjector = ProjectorFunc(func(x, y float64) (float64, float64) { return x, y })

	webMercatorProjector = ProjectorFunc(func(x, y float64) (float64, float64) {
		lon := x / earthRadius * 180 / math.Pi
		lat := (2*math.Atan(math.Exp(y/earthRadius)) - math.Pi/2) * 180 / math.Pi
		return lon, lat
	})
)

// geographicCRS lists the CRS codes treated as WGS84 lon/lat.
var geographicCRS = map[string]bool{
	"":          true,
	"EPSG:4326": true,
	"EPSG:4490": true,
	"CRS:84":    true,
}

// LookupProjector returns the built-in projector from source to target.
// The target must be geographic.
func LookupProjector(source, target string) (Projector, error) {
	source = strings.ToUpper(strings.TrimSpace(source))
	target = strings.ToUpper(strings.TrimSpace(target))
	if !geographicCRS[target] {
		return nil, fmt.Errorf("%w: unsupported target CRS %q", ErrInvalidContext, target)
	}
	switch {
	case geographicCRS[source]:
		return identityProjector, nil
	case source == "EPSG:3857" || source == "EPSG:900913":
		return webMercatorProjector, nil
	}
	return nil, fmt.Errorf("%w: unsupported source CRS %q", ErrInvalidContext, source)
}

// MercatorFromLonLat converts WGS84 degrees to normalized Web Mercator,
// where the world spans [0, 1] on both axes and y grows southwards.
func MercatorFromLonLat(lon, lat float64) (x, y float64) {
	x = (180 + lon) / 360
	y = (180 - (180/math.Pi)*math.Log(math.Tan(math.Pi/4+lat*math.Pi/360))) / 360
	return x, y
}

// SplitFloat splits v into a float32 high part and a float32 remainder
// so that float64(hi)+float64(lo) approximates v to roughly 48 bits.
func SplitFloat(v float64) (hi, lo float32) {
	hi = float32(v)
	lo = float32(v - float64(hi))
	return hi, lo
}
