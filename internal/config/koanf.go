// Coreview - Bounded-Memory Co-Review Network Builder
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/coreview

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists where config files are searched, in order.
var DefaultConfigPaths = []string{
	"coreview.yaml",
	"coreview.yml",
	"/etc/coreview/config.yaml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "COREVIEW_CONFIG"

// Load builds the configuration from layered sources, lowest priority
// first: struct defaults, the named preset, an optional YAML file, then
// environment variables.
//
// The preset argument may be empty (standard). Validation warnings are
// returned for the caller to log; only hard errors fail the load.
func Load(preset, configPath string) (*Config, []string, error) {
	k := koanf.New(".")

	defaults := defaultConfig()
	if err := applyPreset(defaults, preset); err != nil {
		return nil, nil, err
	}
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, nil, fmt.Errorf("load defaults: %w", err)
	}

	if configPath == "" {
		configPath = findConfigFile()
	}
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, nil, fmt.Errorf("load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, nil, fmt.Errorf("unmarshal configuration: %w", err)
	}

	warnings, err := cfg.Validate()
	if err != nil {
		return nil, nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, warnings, nil
}

// findConfigFile returns the first existing default config path.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// envMappings maps environment variable names to koanf config paths.
// Unmapped variables are ignored so stray environment noise cannot
// pollute the configuration.
var envMappings = map[string]string{
	"catalog_path":        "catalog.path",
	"catalog_min_year":    "catalog.min_year",
	"catalog_max_year":    "catalog.max_year",
	"catalog_min_reviews": "catalog.min_reviews",

	"events_dir":                 "events.dir",
	"events_user_id_column":      "events.user_id_column",
	"events_compaction_interval": "events.compaction_interval",
	"events_workers":             "events.workers",

	"graph_min_shared":          "graph.min_shared",
	"graph_max_user_items":      "graph.max_user_items",
	"graph_top_k":               "graph.top_k",
	"graph_checkpoint_interval": "graph.checkpoint_interval",
	"graph_soft_threshold":      "graph.soft_threshold",
	"graph_prune_floor":         "graph.prune_floor",
	"graph_hard_threshold":      "graph.hard_threshold",

	"output_network_path": "output.network_path",
	"output_catalog_path": "output.catalog_path",

	"progress_store": "progress.store",
	"progress_path":  "progress.path",

	"metrics_enabled": "metrics.enabled",
	"metrics_listen":  "metrics.listen",

	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc maps an environment variable name to its koanf path,
// or empty to skip it.
func envTransformFunc(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, "COREVIEW_"))
	if mapped, ok := envMappings[key]; ok {
		return mapped
	}
	return ""
}
