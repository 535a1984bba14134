// Coreview - Bounded-Memory Co-Review Network Builder
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/coreview

// Package main is the entry point for the coreview batch builder.
//
// Coreview turns a directory of per-item review-event CSV exports plus a
// metadata catalog into a single co-review network JSON artifact. Two
// items are linked when the same users reviewed both; the edge weight is
// the number of shared reviewers.
//
// # Pipeline Stages
//
// The builder runs five stages in sequence:
//
//  1. Catalog: Load item metadata, select target items by review count
//  2. Scan: Stream per-item event files into user item-sets
//  3. Aggregate: Fold item-sets into a weighted pair table, pruning
//     low-weight pairs mid-stream to hold a memory ceiling
//  4. Finalize: Apply the weight floor and optional top-K cap, index
//     surviving nodes and edges
//  5. Export: Write the network artifact and optional packed catalog
//
// # Configuration
//
// Configuration is loaded via Koanf v2 with layered sources (highest
// priority wins):
//   - Environment variables (COREVIEW_ prefix)
//   - Config file (coreview.yaml, or -config / COREVIEW_CONFIG)
//   - Preset defaults (-preset standard|full)
//
// # Memory Ceiling
//
// The pair table is the dominant memory cost. When it crosses the soft
// threshold at a checkpoint, pairs below the prune floor are dropped and
// final weights become lower bounds. When it crosses the hard threshold
// the run aborts with exit code 2; raise catalog.min_reviews or lower
// graph.max_user_items and retry.
//
// # Example Usage
//
// Standard operating point:
//
//	coreview -catalog games.csv -events ./reviews -out network.json
//
// Full operating point with the packed catalog sidecar:
//
//	coreview -preset full -catalog games.csv -events ./reviews \
//	  -out network_full.json -catalog-out catalog.json
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/tomtom215/coreview/internal/config"
	"github.com/tomtom215/coreview/internal/graph"
	"github.com/tomtom215/coreview/internal/logging"
	"github.com/tomtom215/coreview/internal/pipeline"
)

// version is set at build time via -ldflags.
var version = "dev"

const (
	exitFailure = 1
	exitAbort   = 2
)

func main() {
	os.Exit(run())
}

//nolint:gocyclo // Sequential flag, config, and wiring steps
func run() int {
	var (
		configPath  = flag.String("config", "", "Path to YAML config file")
		preset      = flag.String("preset", config.PresetStandard, "Operating point: standard or full")
		catalogPath = flag.String("catalog", "", "Item metadata CSV (overrides config)")
		eventsDir   = flag.String("events", "", "Directory of per-item event CSVs (overrides config)")
		outPath     = flag.String("out", "", "Network artifact path (overrides config)")
		catalogOut  = flag.String("catalog-out", "", "Packed catalog artifact path (overrides config)")
		logLevel    = flag.String("log-level", "", "Log level: trace, debug, info, warn, error")
		showVersion = flag.Bool("version", false, "Print version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Println("coreview " + version)
		return 0
	}

	cfg, warnings, err := config.Load(*preset, *configPath)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to load configuration")
		return exitFailure
	}

	// Flags win over file and environment.
	if *catalogPath != "" {
		cfg.Catalog.Path = *catalogPath
	}
	if *eventsDir != "" {
		cfg.Events.Dir = *eventsDir
	}
	if *outPath != "" {
		cfg.Output.NetworkPath = *outPath
	}
	if *catalogOut != "" {
		cfg.Output.CatalogPath = *catalogOut
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}

	if _, err := cfg.Validate(); err != nil {
		logging.Error().Err(err).Msg("Invalid configuration")
		return exitFailure
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	for _, w := range warnings {
		logging.Warn().Msg(w)
	}
	logging.Info().Str("version", version).Str("preset", *preset).Msg("Starting coreview")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var tracker pipeline.ProgressTracker
	if cfg.Progress.Store == "badger" {
		p, closeDB, err := pipeline.OpenBadgerProgress(cfg.Progress.Path)
		if err != nil {
			logging.Error().Err(err).Str("path", cfg.Progress.Path).Msg("Failed to open progress store")
			return exitFailure
		}
		defer func() {
			if err := closeDB(); err != nil {
				logging.Warn().Err(err).Msg("Failed to close progress store")
			}
		}()
		tracker = p
	} else {
		tracker = pipeline.NewInMemoryProgress()
	}

	if cfg.Metrics.Enabled {
		debug := pipeline.NewDebugServer(cfg.Metrics.Listen)
		debug.Start(ctx)
		defer debug.Stop()
	}

	_, _, err = pipeline.New(cfg, tracker, *preset).Run(ctx)
	if err != nil {
		var abortErr *graph.AbortError
		if errors.As(err, &abortErr) {
			logging.Error().
				Int("pairs", abortErr.Pairs).
				Msg("Crunch aborted at the hard memory ceiling")
			return exitAbort
		}
		if errors.Is(err, context.Canceled) {
			logging.Warn().Msg("Crunch interrupted")
			return exitFailure
		}
		logging.Error().Err(err).Msg("Crunch failed")
		return exitFailure
	}
	return 0
}
