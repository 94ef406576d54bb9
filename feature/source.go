// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package feature tests external feature geometry against a grid through
// the topology service's HTTP API.
//
// The service answers a pick with a MultiGridInfo body listing the
// (level, globalId) of every live cell the feature intersects.
package feature

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gogpu/gridedit/grid"
)

const (
	// DefaultPickPath is the endpoint queried by PickFeature.
	DefaultPickPath = "/api/topo/pick"

	// maxBodySize bounds the MultiGridInfo body read from the service.
	maxBodySize = 256 << 20

	defaultTimeout = 30 * time.Second
)

// ErrUnexpectedStatus is returned when the service answers with a
// non-2xx status.
var ErrUnexpectedStatus = errors.New("feature: unexpected status")

// Option configures a Source.
type Option func(*Source)

// WithHTTPClient sets the client used for requests.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Source) {
		if c != nil {
			s.client = c
		}
	}
}

// WithPickPath overrides DefaultPickPath.
func WithPickPath(path string) Option {
	return func(s *Source) {
		s.pickPath = path
	}
}

// WithLogger sets the logger for request diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(s *Source) {
		if l != nil {
			s.logger = l
		}
	}
}

// Source is a feature source backed by the topology service. It
// implements gridedit.FeatureSource and is safe for concurrent use.
type Source struct {
	baseURL  string
	pickPath string
	client   *http.Client
	logger   *slog.Logger
}

// NewSource creates a source for the service at baseURL.
func NewSource(baseURL string, opts ...Option) *Source {
	s := &Source{
		baseURL:  strings.TrimRight(baseURL, "/"),
		pickPath: DefaultPickPath,
		client:   &http.Client{Timeout: defaultTimeout},
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PickFeature asks the service which cells the feature stored at path
// intersects.
func (s *Source) PickFeature(ctx context.Context, path string) ([]grid.CellKey, error) {
	u := s.baseURL + s.pickPath + "?" + url.Values{"feature_dir": {path}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("feature: build request: %w", err)
	}
	req.Header.Set("Accept", "application/octet-stream")

	start := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("feature: pick %q: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: %s: %s", ErrUnexpectedStatus, resp.Status, strings.TrimSpace(string(msg)))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("feature: read pick of %q: %w", path, err)
	}
	keys, err := grid.DecodeMultiGridInfo(body)
	if err != nil {
		return nil, fmt.Errorf("feature: decode pick of %q: %w", path, err)
	}
	s.logger.Debug("feature: picked",
		"path", path,
		"cells", len(keys),
		"bytes", len(body),
		"duration", time.Since(start))
	return keys, nil
}
