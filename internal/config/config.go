// Coreview - Bounded-Memory Co-Review Network Builder
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/coreview

// Package config defines the crunch configuration and loads it with
// Koanf v2 from layered sources: built-in defaults, a named preset, an
// optional YAML file, and environment variables (highest priority).
//
// Every threshold the pipeline consumes is an explicit configuration
// value; the two historical operating points live here as presets rather
// than duplicated code paths.
package config

import (
	"fmt"
)

// Config is the complete crunch configuration.
type Config struct {
	Catalog  CatalogConfig  `koanf:"catalog"`
	Events   EventsConfig   `koanf:"events"`
	Graph    GraphConfig    `koanf:"graph"`
	Output   OutputConfig   `koanf:"output"`
	Progress ProgressConfig `koanf:"progress"`
	Metrics  MetricsConfig  `koanf:"metrics"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// CatalogConfig controls metadata loading and target selection.
type CatalogConfig struct {
	// Path is the enriched catalog CSV.
	Path string `koanf:"path"`

	// MinYear and MaxYear bound accepted release years (inclusive).
	MinYear int `koanf:"min_year"`
	MaxYear int `koanf:"max_year"`

	// MinReviews is the review-count floor for an item to become a
	// scan target at all.
	MinReviews int `koanf:"min_reviews"`
}

// EventsConfig controls the event file scanner.
type EventsConfig struct {
	// Dir holds one CSV per item, named <item-id>.csv.
	Dir string `koanf:"dir"`

	// UserIDColumn is the zero-based user-identifier column.
	UserIDColumn int `koanf:"user_id_column"`

	// CompactionInterval is the number of processed files between
	// single-item-user prunes.
	CompactionInterval int `koanf:"compaction_interval"`

	// Workers shards files across goroutines when > 1.
	Workers int `koanf:"workers"`
}

// GraphConfig controls edge aggregation and filtering.
type GraphConfig struct {
	// MinShared is the minimum number of shared users for an edge to
	// survive the final filter.
	MinShared int `koanf:"min_shared"`

	// MaxUserItems is the per-user fan-out cap M.
	MaxUserItems int `koanf:"max_user_items"`

	// TopK caps each node's neighbor list when > 0; 0 disables the cap.
	TopK int `koanf:"top_k"`

	// CheckpointInterval is the number of users between prune checks.
	CheckpointInterval int `koanf:"checkpoint_interval"`

	// SoftThreshold triggers a mid-stream prune when the pair table
	// grows past it.
	SoftThreshold int `koanf:"soft_threshold"`

	// PruneFloor is the weight below which pairs are dropped at a
	// mid-stream prune. Must be >= 2.
	PruneFloor int `koanf:"prune_floor"`

	// HardThreshold aborts the run when the pair table grows past it.
	HardThreshold int `koanf:"hard_threshold"`
}

// OutputConfig names the export destinations.
type OutputConfig struct {
	// NetworkPath is the network graph JSON destination.
	NetworkPath string `koanf:"network_path"`

	// CatalogPath, when set, also writes the packed all-items export.
	CatalogPath string `koanf:"catalog_path"`
}

// ProgressConfig selects the run-progress store.
type ProgressConfig struct {
	// Store is "memory" or "badger".
	Store string `koanf:"store"`

	// Path is the BadgerDB directory when Store is "badger".
	Path string `koanf:"path"`
}

// MetricsConfig controls the optional debug listener.
type MetricsConfig struct {
	// Enabled serves /metrics and /healthz for the duration of the run.
	Enabled bool `koanf:"enabled"`

	// Listen is the listener address, e.g. "127.0.0.1:9090".
	Listen string `koanf:"listen"`
}

// LoggingConfig mirrors logging.Config.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// defaultConfig returns the built-in defaults, which match the standard
// operating point.
func defaultConfig() *Config {
	return &Config{
		Catalog: CatalogConfig{
			Path:       "data/games.csv",
			MinYear:    2005,
			MaxYear:    2025,
			MinReviews: 50,
		},
		Events: EventsConfig{
			Dir:                "data/reviews",
			UserIDColumn:       14,
			CompactionInterval: 5000,
			Workers:            1,
		},
		Graph: GraphConfig{
			MinShared:          5,
			MaxUserItems:       75,
			TopK:               50,
			CheckpointInterval: 500000,
			SoftThreshold:      15000000,
			PruneFloor:         3,
			HardThreshold:      100000000,
		},
		Output: OutputConfig{
			NetworkPath: "network.json",
			CatalogPath: "",
		},
		Progress: ProgressConfig{
			Store: "memory",
			Path:  "/data/progress",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Listen:  "127.0.0.1:9090",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Preset names the two documented operating points.
const (
	PresetStandard = "standard"
	PresetFull     = "full"
)

// applyPreset overlays a named operating point on the defaults. The full
// crunch relaxes every filter to preserve the complete topology: smaller
// items included, more per-user signal kept, weaker edges preserved, and
// both safety valves raised.
func applyPreset(cfg *Config, preset string) error {
	switch preset {
	case "", PresetStandard:
		// Defaults are the standard operating point.
		return nil
	case PresetFull:
		cfg.Catalog.MinReviews = 10
		cfg.Graph.MinShared = 2
		cfg.Graph.MaxUserItems = 250
		cfg.Graph.TopK = 0
		cfg.Graph.SoftThreshold = 50000000
		cfg.Graph.PruneFloor = 2
		cfg.Graph.HardThreshold = 500000000
		return nil
	default:
		return fmt.Errorf("unknown preset %q (want %q or %q)", preset, PresetStandard, PresetFull)
	}
}

// Validate checks for unusable values. Hard errors stop the run;
// returned warnings flag configurations that are literal-but-suspect
// (spec'd behavior: surfaced, not auto-corrected).
func (c *Config) Validate() ([]string, error) {
	if c.Catalog.Path == "" {
		return nil, fmt.Errorf("catalog.path is required")
	}
	if c.Events.Dir == "" {
		return nil, fmt.Errorf("events.dir is required")
	}
	if c.Catalog.MinYear > c.Catalog.MaxYear {
		return nil, fmt.Errorf("catalog.min_year %d exceeds catalog.max_year %d", c.Catalog.MinYear, c.Catalog.MaxYear)
	}
	if c.Events.UserIDColumn < 1 {
		return nil, fmt.Errorf("events.user_id_column must be >= 1, got %d", c.Events.UserIDColumn)
	}
	if c.Events.CompactionInterval < 1 {
		return nil, fmt.Errorf("events.compaction_interval must be >= 1, got %d", c.Events.CompactionInterval)
	}
	if c.Graph.MaxUserItems < 2 {
		return nil, fmt.Errorf("graph.max_user_items must be >= 2, got %d", c.Graph.MaxUserItems)
	}
	if c.Graph.PruneFloor < 2 {
		return nil, fmt.Errorf("graph.prune_floor must be >= 2, got %d", c.Graph.PruneFloor)
	}
	if c.Graph.CheckpointInterval < 1 {
		return nil, fmt.Errorf("graph.checkpoint_interval must be >= 1, got %d", c.Graph.CheckpointInterval)
	}
	if c.Graph.HardThreshold <= c.Graph.SoftThreshold {
		return nil, fmt.Errorf("graph.hard_threshold %d must exceed graph.soft_threshold %d",
			c.Graph.HardThreshold, c.Graph.SoftThreshold)
	}
	if c.Output.NetworkPath == "" {
		return nil, fmt.Errorf("output.network_path is required")
	}
	if c.Progress.Store != "memory" && c.Progress.Store != "badger" {
		return nil, fmt.Errorf("progress.store must be \"memory\" or \"badger\", got %q", c.Progress.Store)
	}
	if c.Progress.Store == "badger" && c.Progress.Path == "" {
		return nil, fmt.Errorf("progress.path is required when progress.store is \"badger\"")
	}
	if c.Metrics.Enabled && c.Metrics.Listen == "" {
		return nil, fmt.Errorf("metrics.listen is required when metrics.enabled")
	}

	var warnings []string
	if c.Graph.TopK > 0 && c.Graph.MinShared < 2 {
		warnings = append(warnings,
			fmt.Sprintf("graph.top_k=%d with graph.min_shared=%d: neighbor cap without a real weight floor keeps noise edges",
				c.Graph.TopK, c.Graph.MinShared))
	}
	if c.Graph.PruneFloor > c.Graph.MinShared && c.Graph.MinShared > 0 {
		warnings = append(warnings,
			fmt.Sprintf("graph.prune_floor=%d exceeds graph.min_shared=%d: mid-stream pruning discards edges the final filter would have kept",
				c.Graph.PruneFloor, c.Graph.MinShared))
	}
	return warnings, nil
}
