// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gridedit

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	contextIDLabel = "context_id"
	opLabel        = "op"
	modeLabel      = "mode"
)

var (
	gridLiveCount = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "gridedit_live_grid_count",
		Help: "The number of live grid cells.",
	}, []string{contextIDLabel})

	gridMaxCount = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "gridedit_max_grid_count",
		Help: "The slot capacity of the attribute mirror.",
	}, []string{contextIDLabel})

	gridSelectedCount = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "gridedit_selected_grid_count",
		Help: "The number of selected grid cells.",
	}, []string{contextIDLabel})

	topologyOpCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gridedit_topology_op_count_total",
		Help: "The total number of topology operations that changed the grid.",
	}, []string{opLabel})

	topologyCellCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gridedit_topology_cell_count_total",
		Help: "The total number of cells affected by topology operations.",
	}, []string{opLabel})

	pickLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gridedit_pick_seconds",
		Help:    "The duration of id renders for picking.",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
	}, []string{modeLabel})

	featurePickCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gridedit_feature_pick_count_total",
		Help: "The total number of feature picks by outcome.",
	}, []string{"outcome"})
)

func instrumentGridCounts(contextID string, live, capacity, selected int) {
	labels := prometheus.Labels{contextIDLabel: contextID}
	gridLiveCount.With(labels).Set(float64(live))
	gridMaxCount.With(labels).Set(float64(capacity))
	gridSelectedCount.With(labels).Set(float64(selected))
}

func instrumentForgetContext(contextID string) {
	labels := prometheus.Labels{contextIDLabel: contextID}
	gridLiveCount.Delete(labels)
	gridMaxCount.Delete(labels)
	gridSelectedCount.Delete(labels)
}

func instrumentTopologyOp(op State, cells int) {
	labels := prometheus.Labels{opLabel: op.String()}
	topologyOpCount.With(labels).Inc()
	topologyCellCount.With(labels).Add(float64(cells))
}

func instrumentPick(mode string, d time.Duration) {
	pickLatency.
		With(prometheus.Labels{modeLabel: mode}).
		Observe(d.Seconds())
}

func instrumentFeaturePick(outcome string) {
	featurePickCount.
		With(prometheus.Labels{"outcome": outcome}).
		Inc()
}
