// Coreview - Bounded-Memory Co-Review Network Builder
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/coreview

// Package pipeline runs the full crunch: catalog load, event scan, pair
// aggregation, filtering, and artifact export, with per-stage progress
// persistence and an optional metrics listener.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tomtom215/coreview/internal/catalog"
	"github.com/tomtom215/coreview/internal/config"
	"github.com/tomtom215/coreview/internal/export"
	"github.com/tomtom215/coreview/internal/graph"
	"github.com/tomtom215/coreview/internal/logging"
	"github.com/tomtom215/coreview/internal/metrics"
	"github.com/tomtom215/coreview/internal/scan"
)

// distributionThresholds are the weight-histogram buckets reported after
// aggregation. The histogram stops at the first empty bucket.
var distributionThresholds = []int{2, 3, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000}

// Runner executes a crunch end to end.
type Runner struct {
	cfg      *config.Config
	progress ProgressTracker
	preset   string
	log      zerolog.Logger
}

// New builds a Runner. A nil progress tracker falls back to an in-memory
// one, so callers that do not need persistence can pass nil.
func New(cfg *config.Config, progress ProgressTracker, preset string) *Runner {
	if progress == nil {
		progress = NewInMemoryProgress()
	}
	return &Runner{
		cfg:      cfg,
		progress: progress,
		preset:   preset,
		log:      logging.With().Str("component", "pipeline").Logger(),
	}
}

// Run executes every stage and writes the output artifacts. On a hard
// abort the returned error wraps *graph.AbortError and the persisted
// RunStats record the table size at abort; no output files are written.
func (r *Runner) Run(ctx context.Context) (*graph.Network, *RunStats, error) {
	stats := &RunStats{
		RunID:     uuid.NewString(),
		Preset:    r.preset,
		StartTime: time.Now().UTC(),
	}
	r.log.Info().
		Str("run_id", stats.RunID).
		Str("preset", r.preset).
		Msg("Starting crunch")

	idx, err := r.loadCatalog(ctx, stats)
	if err != nil {
		return nil, stats, err
	}

	users, err := r.scanEvents(ctx, stats, idx)
	if err != nil {
		return nil, stats, err
	}

	pairs, aggStats, err := r.aggregate(ctx, stats, users, idx)
	if err != nil {
		return nil, stats, err
	}

	net, err := r.finalize(ctx, stats, pairs, aggStats, idx)
	if err != nil {
		return nil, stats, err
	}

	if err := r.export(ctx, stats, net, idx); err != nil {
		return nil, stats, err
	}

	stats.Stage = "done"
	stats.FinishedAt = time.Now().UTC()
	r.saveProgress(ctx, stats)

	r.log.Info().
		Str("run_id", stats.RunID).
		Int("nodes", stats.Nodes).
		Int("links", stats.Links).
		Dur("elapsed", stats.FinishedAt.Sub(stats.StartTime)).
		Msg("Crunch complete")
	return net, stats, nil
}

func (r *Runner) loadCatalog(ctx context.Context, stats *RunStats) (*catalog.Index, error) {
	stats.Stage = "catalog"
	r.saveProgress(ctx, stats)
	start := time.Now()

	idx, err := catalog.Load(r.cfg.Catalog.Path, catalog.Options{
		MinYear: r.cfg.Catalog.MinYear,
		MaxYear: r.cfg.Catalog.MaxYear,
	})
	metrics.ObserveStage("catalog", start)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}

	stats.Catalog = idx.Stats()
	stats.Targets = len(idx.SelectTargets(r.cfg.Catalog.MinReviews))
	r.log.Info().
		Int("items", idx.Len()).
		Int("targets", stats.Targets).
		Int("min_reviews", r.cfg.Catalog.MinReviews).
		Msg("Catalog loaded")
	return idx, nil
}

func (r *Runner) scanEvents(ctx context.Context, stats *RunStats, idx *catalog.Index) (scan.UserItems, error) {
	stats.Stage = "scan"
	r.saveProgress(ctx, stats)
	start := time.Now()

	scanner := scan.New(scan.Config{
		UserIDColumn:       r.cfg.Events.UserIDColumn,
		CompactionInterval: r.cfg.Events.CompactionInterval,
		Workers:            r.cfg.Events.Workers,
	})
	users, scanStats, err := scanner.Scan(ctx, idx.SelectTargets(r.cfg.Catalog.MinReviews), r.cfg.Events.Dir)
	metrics.ObserveStage("scan", start)
	if err != nil {
		return nil, fmt.Errorf("scan events: %w", err)
	}

	stats.Scan = scanStats
	return users, nil
}

func (r *Runner) aggregate(ctx context.Context, stats *RunStats, users scan.UserItems, idx *catalog.Index) (map[graph.Pair]int, *graph.AggregateStats, error) {
	stats.Stage = "aggregate"
	r.saveProgress(ctx, stats)
	start := time.Now()

	pairs, aggStats, err := graph.Aggregate(ctx, users, idx.ReviewCounts(), graph.AggregateConfig{
		MaxFanOut:          r.cfg.Graph.MaxUserItems,
		CheckpointInterval: r.cfg.Graph.CheckpointInterval,
		SoftThreshold:      r.cfg.Graph.SoftThreshold,
		PruneFloor:         r.cfg.Graph.PruneFloor,
		HardThreshold:      r.cfg.Graph.HardThreshold,
	})
	metrics.ObserveStage("aggregate", start)

	var abortErr *graph.AbortError
	if errors.As(err, &abortErr) {
		stats.Aborted = true
		stats.AbortPairs = abortErr.Pairs
		stats.FinishedAt = time.Now().UTC()
		r.saveProgress(ctx, stats)
		r.log.Error().
			Int("pairs", abortErr.Pairs).
			Int("hard_threshold", r.cfg.Graph.HardThreshold).
			Msg("Pair table exceeded hard threshold; raise min_reviews or lower max_user_items")
		return nil, nil, fmt.Errorf("aggregate pairs: %w", err)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("aggregate pairs: %w", err)
	}

	stats.Aggregate = aggStats
	for _, b := range graph.WeightDistribution(pairs, distributionThresholds) {
		r.log.Info().
			Int("min_weight", b.Threshold).
			Int("pairs", b.Count).
			Msg("Weight distribution")
	}
	return pairs, aggStats, nil
}

func (r *Runner) finalize(ctx context.Context, stats *RunStats, pairs map[graph.Pair]int, aggStats *graph.AggregateStats, idx *catalog.Index) (*graph.Network, error) {
	stats.Stage = "finalize"
	r.saveProgress(ctx, stats)
	start := time.Now()

	net := graph.FilterConfig{
		MinWeight: r.cfg.Graph.MinShared,
		TopK:      r.cfg.Graph.TopK,
	}.Finalize(pairs, idx)
	metrics.ObserveStage("finalize", start)

	net.Meta.MaxUserGames = r.cfg.Graph.MaxUserItems
	net.Meta.MinGameReviews = r.cfg.Catalog.MinReviews
	net.Meta.LowerBound = aggStats.LowerBound()
	net.Meta.RunID = stats.RunID
	net.Meta.GeneratedAt = stats.StartTime.Format(time.RFC3339)

	stats.Nodes = net.Meta.NodeCount
	stats.Links = net.Meta.LinkCount
	return net, nil
}

func (r *Runner) export(ctx context.Context, stats *RunStats, net *graph.Network, idx *catalog.Index) error {
	stats.Stage = "export"
	r.saveProgress(ctx, stats)
	start := time.Now()
	defer metrics.ObserveStage("export", start)

	if err := export.WriteNetwork(r.cfg.Output.NetworkPath, net); err != nil {
		return fmt.Errorf("write network: %w", err)
	}
	if r.cfg.Output.CatalogPath != "" {
		if err := export.WriteCatalog(r.cfg.Output.CatalogPath, idx); err != nil {
			return fmt.Errorf("write catalog: %w", err)
		}
	}
	return nil
}

// saveProgress persists stats best-effort. A failed save is worth a
// warning but never aborts the crunch.
func (r *Runner) saveProgress(ctx context.Context, stats *RunStats) {
	if err := r.progress.Save(ctx, stats); err != nil {
		r.log.Warn().Err(err).Str("stage", stats.Stage).Msg("Failed to persist run progress")
	}
}
