// Coreview - Bounded-Memory Co-Review Network Builder
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/coreview

// Package catalog loads item metadata from the enriched catalog CSV and
// exposes the target-set and popularity lookups consumed by the scanner
// and aggregator.
//
// Rows are parsed into strongly-typed records exactly once, at this
// boundary. Malformed rows (short, unparseable year or counts) are
// skipped and counted, never fatal.
package catalog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/tomtom215/coreview/internal/logging"
	"github.com/tomtom215/coreview/internal/metrics"
)

// Column offsets in the enriched catalog CSV.
//
// The upstream header merges "Discount" and "DLC count" into a single
// "DiscountDLC count" cell, so every column from offset 8 onward sits one
// position left of where the header claims. These constants are the
// corrected data positions and the only place in the codebase where raw
// offsets appear.
const (
	colID          = 0
	colName        = 1
	colReleaseDate = 2
	colPrice       = 6
	colPositive    = 23
	colNegative    = 24
	colDevelopers  = 33
	colGenres      = 36
	colTags        = 37

	// minFields is the minimum row width covering every column above.
	minFields = 38
)

// yearPattern extracts the release year from the free-text date column.
var yearPattern = regexp.MustCompile(`\d{4}`)

// Record is one catalog item, immutable once loaded.
type Record struct {
	ID        int64
	Title     string
	Year      int
	Rating    string
	Ratio     int // rounded percentage of positive reviews
	Reviews   int
	Price     float64
	Genres    []string
	Tags      []string
	Developer string
}

// Options controls which rows survive the load.
type Options struct {
	// MinYear and MaxYear bound the accepted release year (inclusive).
	MinYear int
	MaxYear int
}

// LoadStats counts load outcomes for the operator summary.
type LoadStats struct {
	Loaded    int
	ShortRows int
	BadYear   int
	BadNumber int
	NoReviews int
}

// Index holds the loaded catalog, keyed by item identifier.
type Index struct {
	records map[int64]Record
	stats   LoadStats
}

// NewIndex builds an index directly from records, bypassing the CSV
// boundary. Intended for tests and for callers that already hold parsed
// metadata.
func NewIndex(records ...Record) *Index {
	idx := &Index{records: make(map[int64]Record, len(records))}
	for _, rec := range records {
		idx.records[rec.ID] = rec
		idx.stats.Loaded++
	}
	return idx
}

// Load reads the catalog CSV and builds the metadata index.
func Load(path string, opts Options) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()

	idx, err := parse(f, opts)
	if err != nil {
		return nil, err
	}

	logging.Info().
		Int("loaded", idx.stats.Loaded).
		Int("short_rows", idx.stats.ShortRows).
		Int("bad_year", idx.stats.BadYear).
		Int("bad_number", idx.stats.BadNumber).
		Int("no_reviews", idx.stats.NoReviews).
		Msg("Catalog loaded")

	return idx, nil
}

// parse builds the index from an already-open CSV stream.
func parse(r io.Reader, opts Options) (*Index, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	// Header row is discarded; column positions are fixed.
	if _, err := reader.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return &Index{records: map[int64]Record{}}, nil
		}
		return nil, fmt.Errorf("read catalog header: %w", err)
	}

	idx := &Index{records: make(map[int64]Record)}
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			idx.stats.ShortRows++
			metrics.CatalogRowsSkipped.WithLabelValues("short_row").Inc()
			continue
		}

		rec, reason := parseRow(row, opts)
		if reason != "" {
			switch reason {
			case "short_row":
				idx.stats.ShortRows++
			case "bad_year":
				idx.stats.BadYear++
			case "bad_number":
				idx.stats.BadNumber++
			case "no_reviews":
				idx.stats.NoReviews++
			}
			metrics.CatalogRowsSkipped.WithLabelValues(reason).Inc()
			continue
		}

		idx.records[rec.ID] = rec
		idx.stats.Loaded++
		metrics.CatalogRowsLoaded.Inc()
	}

	return idx, nil
}

// parseRow converts a raw CSV row into a Record. A non-empty reason means
// the row is skipped.
func parseRow(row []string, opts Options) (Record, string) {
	if len(row) < minFields {
		return Record{}, "short_row"
	}

	id, err := strconv.ParseInt(row[colID], 10, 64)
	if err != nil {
		return Record{}, "bad_number"
	}

	match := yearPattern.FindString(row[colReleaseDate])
	if match == "" {
		return Record{}, "bad_year"
	}
	year, _ := strconv.Atoi(match)
	if year < opts.MinYear || year > opts.MaxYear {
		return Record{}, "bad_year"
	}

	positive, err := strconv.Atoi(row[colPositive])
	if err != nil {
		return Record{}, "bad_number"
	}
	negative, err := strconv.Atoi(row[colNegative])
	if err != nil {
		return Record{}, "bad_number"
	}
	reviews := positive + negative
	if reviews < 1 {
		return Record{}, "no_reviews"
	}

	price, err := strconv.ParseFloat(row[colPrice], 64)
	if err != nil {
		price = 0.0
	}

	return Record{
		ID:        id,
		Title:     strings.TrimSpace(row[colName]),
		Year:      year,
		Rating:    ClassifyRating(positive, negative),
		Ratio:     int(float64(100*positive)/float64(reviews) + 0.5),
		Reviews:   reviews,
		Price:     price,
		Genres:    splitList(row[colGenres]),
		Tags:      splitList(row[colTags]),
		Developer: strings.TrimSpace(row[colDevelopers]),
	}, ""
}

// splitList splits a comma-joined taxonomy field, dropping empty entries.
func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Len returns the number of loaded records.
func (idx *Index) Len() int {
	return len(idx.records)
}

// Get returns the record for an item identifier.
func (idx *Index) Get(id int64) (Record, bool) {
	rec, ok := idx.records[id]
	return rec, ok
}

// Stats returns the load outcome counts.
func (idx *Index) Stats() LoadStats {
	return idx.stats
}

// SelectTargets returns the set of items with at least minReviews reviews.
// This set gates which event files the scanner opens at all.
func (idx *Index) SelectTargets(minReviews int) map[int64]struct{} {
	targets := make(map[int64]struct{})
	for id, rec := range idx.records {
		if rec.Reviews >= minReviews {
			targets[id] = struct{}{}
		}
	}
	return targets
}

// ReviewCounts returns the popularity lookup used for fan-out capping.
func (idx *Index) ReviewCounts() map[int64]int {
	counts := make(map[int64]int, len(idx.records))
	for id, rec := range idx.records {
		counts[id] = rec.Reviews
	}
	return counts
}

// All returns every record sorted by identifier ascending.
func (idx *Index) All() []Record {
	out := make([]Record, 0, len(idx.records))
	for _, rec := range idx.records {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
