// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package cache provides a generic LRU cache with a soft limit.
//
// The grid store memoises cell corner geometry here so that cells which
// come and go repeatedly (subdivide, then merge back) do not pay for
// projection and Mercator conversion twice.
//
//	c := cache.New[uint64, [4]float64](4096)
//	c.Set(key, corners)
//	corners, ok := c.Get(key)
//
// Cache is safe for concurrent use and must not be copied after creation.
package cache
