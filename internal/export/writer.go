// Coreview - Bounded-Memory Co-Review Network Builder
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/coreview

// Package export serializes the finished network and the compact catalog
// summary to JSON files for the visualization frontend.
package export

import (
	"fmt"
	"os"
	"sort"

	"github.com/goccy/go-json"

	"github.com/tomtom215/coreview/internal/catalog"
	"github.com/tomtom215/coreview/internal/graph"
	"github.com/tomtom215/coreview/internal/logging"
)

// WriteNetwork writes the network graph as compact JSON.
func WriteNetwork(path string, net *graph.Network) error {
	data, err := json.Marshal(net)
	if err != nil {
		return fmt.Errorf("marshal network: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write network: %w", err)
	}

	logging.Info().
		Str("path", path).
		Int("nodes", net.Meta.NodeCount).
		Int("links", net.Meta.LinkCount).
		Float64("size_mb", float64(len(data))/(1024*1024)).
		Msg("Network written")
	return nil
}

// maxPackedTitle bounds title length in the packed catalog export.
const maxPackedTitle = 60

// PackedCatalog is the compact all-items export: a rating lookup table
// plus one packed array per item, minimizing file size for the browser.
type PackedCatalog struct {
	Ratings []string      `json:"ratings"`
	Games   [][6]any      `json:"games"`
	Meta    PackedcatMeta `json:"meta"`
}

// PackedcatMeta carries the packed export's summary fields.
type PackedcatMeta struct {
	Count     int    `json:"count"`
	YearRange [2]int `json:"yearRange"`
}

// PackCatalog converts the metadata index into the packed representation:
// [title, year, ratio, reviews, price, ratingIdx], sorted by review count
// descending so the frontend renders popular items first.
func PackCatalog(idx *catalog.Index) *PackedCatalog {
	records := idx.All()
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Reviews > records[j].Reviews
	})

	out := &PackedCatalog{
		Ratings: catalog.RatingOrder,
		Games:   make([][6]any, 0, len(records)),
	}

	minYear, maxYear := 0, 0
	for _, rec := range records {
		title := rec.Title
		if len(title) > maxPackedTitle {
			title = title[:maxPackedTitle-3] + "..."
		}
		out.Games = append(out.Games, [6]any{
			title, rec.Year, rec.Ratio, rec.Reviews, rec.Price, catalog.RatingIndex(rec.Rating),
		})
		if minYear == 0 || rec.Year < minYear {
			minYear = rec.Year
		}
		if rec.Year > maxYear {
			maxYear = rec.Year
		}
	}

	out.Meta = PackedcatMeta{
		Count:     len(out.Games),
		YearRange: [2]int{minYear, maxYear},
	}
	return out
}

// WriteCatalog writes the packed catalog export as compact JSON.
func WriteCatalog(path string, idx *catalog.Index) error {
	packed := PackCatalog(idx)

	data, err := json.Marshal(packed)
	if err != nil {
		return fmt.Errorf("marshal catalog: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write catalog: %w", err)
	}

	logging.Info().
		Str("path", path).
		Int("items", packed.Meta.Count).
		Float64("size_kb", float64(len(data))/1024).
		Msg("Packed catalog written")
	return nil
}
