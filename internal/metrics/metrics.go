// Coreview - Bounded-Memory Co-Review Network Builder
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/coreview

// Package metrics provides Prometheus instrumentation for the crunch
// pipeline. A full crunch runs for minutes to hours, so the counters and
// gauges here are worth scraping mid-run via the optional debug listener:
//
//	http.Handle("/metrics", promhttp.Handler())
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Catalog Metrics
	CatalogRowsLoaded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "coreview_catalog_rows_loaded_total",
			Help: "Total number of catalog rows loaded with valid metadata",
		},
	)

	CatalogRowsSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coreview_catalog_rows_skipped_total",
			Help: "Total number of catalog rows skipped during load",
		},
		[]string{"reason"}, // "short_row", "bad_year", "bad_number", "no_reviews"
	)

	// Scanner Metrics
	ScanFilesProcessed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "coreview_scan_files_processed_total",
			Help: "Total number of event files scanned",
		},
	)

	ScanFilesSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "coreview_scan_files_skipped_total",
			Help: "Total number of event files skipped (not in target set)",
		},
	)

	ScanFilesFailed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "coreview_scan_files_failed_total",
			Help: "Total number of event files skipped due to read errors",
		},
	)

	ScanRowsProcessed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "coreview_scan_rows_processed_total",
			Help: "Total number of event rows contributing a user association",
		},
	)

	ScanRowsMalformed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "coreview_scan_rows_malformed_total",
			Help: "Total number of event rows skipped as malformed",
		},
	)

	ScanUsersPruned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "coreview_scan_users_pruned_total",
			Help: "Total number of single-item users removed at compaction",
		},
	)

	ScanActiveUsers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "coreview_scan_active_users",
			Help: "Current number of users held in the association structure",
		},
	)

	// Aggregator Metrics
	AggregateUsersProcessed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "coreview_aggregate_users_processed_total",
			Help: "Total number of multi-item users converted to pairs",
		},
	)

	AggregateUsersCapped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "coreview_aggregate_users_capped_total",
			Help: "Total number of users reduced to the fan-out cap",
		},
	)

	AggregatePairsPruned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "coreview_aggregate_pairs_pruned_total",
			Help: "Total number of low-weight pairs dropped at mid-stream prunes",
		},
	)

	AggregatePairTableSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "coreview_aggregate_pair_table_size",
			Help: "Current number of entries in the weighted pair table",
		},
	)

	// Pipeline Metrics
	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "coreview_stage_duration_seconds",
			Help:    "Duration of pipeline stages in seconds",
			Buckets: []float64{1, 5, 15, 60, 300, 900, 1800, 3600, 7200},
		},
		[]string{"stage"}, // "catalog", "scan", "aggregate", "finalize", "export"
	)

	GraphNodes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "coreview_graph_nodes",
			Help: "Node count of the most recently finalized graph",
		},
	)

	GraphEdges = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "coreview_graph_edges",
			Help: "Edge count of the most recently finalized graph",
		},
	)
)

// ObserveStage records the duration of a pipeline stage.
//
//	defer metrics.ObserveStage("scan", time.Now())
func ObserveStage(stage string, start time.Time) {
	StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}
