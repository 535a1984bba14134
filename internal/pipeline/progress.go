// Coreview - Bounded-Memory Co-Review Network Builder
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/coreview

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/coreview/internal/catalog"
	"github.com/tomtom215/coreview/internal/graph"
	"github.com/tomtom215/coreview/internal/scan"
)

// progressKey is the BadgerDB key for the last run's statistics.
const progressKey = "coreview:run:progress"

// RunStats is the per-stage record of a crunch run. It is persisted at
// every stage boundary so an operator can inspect a running or aborted
// crunch and tune thresholds for the next one.
type RunStats struct {
	RunID     string    `json:"run_id"`
	Preset    string    `json:"preset,omitempty"`
	StartTime time.Time `json:"start_time"`
	Stage     string    `json:"stage"`

	Catalog   catalog.LoadStats     `json:"catalog"`
	Targets   int                   `json:"targets"`
	Scan      *scan.Stats           `json:"scan,omitempty"`
	Aggregate *graph.AggregateStats `json:"aggregate,omitempty"`

	Nodes int `json:"nodes"`
	Links int `json:"links"`

	Aborted    bool      `json:"aborted"`
	AbortPairs int       `json:"abort_pairs,omitempty"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
}

// ProgressTracker persists run statistics across stage boundaries.
type ProgressTracker interface {
	Save(ctx context.Context, stats *RunStats) error
	Load(ctx context.Context) (*RunStats, error)
	Clear(ctx context.Context) error
}

// BadgerProgress implements ProgressTracker on BadgerDB, surviving
// process restarts and abnormal exits.
type BadgerProgress struct {
	db *badger.DB
}

// NewBadgerProgress wraps an existing BadgerDB instance.
func NewBadgerProgress(db *badger.DB) *BadgerProgress {
	return &BadgerProgress{db: db}
}

// OpenBadgerProgress opens (or creates) a BadgerDB store at path.
// The caller owns the returned closer.
func OpenBadgerProgress(path string) (*BadgerProgress, func() error, error) {
	db, err := badger.Open(badger.DefaultOptions(path).WithLogger(nil))
	if err != nil {
		return nil, nil, fmt.Errorf("open progress store: %w", err)
	}
	return &BadgerProgress{db: db}, db.Close, nil
}

// Save persists the current run statistics.
func (p *BadgerProgress) Save(_ context.Context, stats *RunStats) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("marshal run stats: %w", err)
	}
	return p.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(progressKey), data)
	})
}

// Load retrieves the last saved run statistics.
// Returns nil, nil if nothing has been saved.
func (p *BadgerProgress) Load(_ context.Context) (*RunStats, error) {
	var stats RunStats

	err := p.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(progressKey))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &stats)
		})
	})
	if err != nil {
		return nil, fmt.Errorf("load run stats: %w", err)
	}

	if stats.StartTime.IsZero() {
		return nil, nil
	}
	return &stats, nil
}

// Clear removes saved run statistics.
func (p *BadgerProgress) Clear(_ context.Context) error {
	return p.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete([]byte(progressKey))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		return err
	})
}

// InMemoryProgress implements ProgressTracker in memory, for tests and
// runs that do not need persistence.
type InMemoryProgress struct {
	stats *RunStats
}

// NewInMemoryProgress creates an empty in-memory tracker.
func NewInMemoryProgress() *InMemoryProgress {
	return &InMemoryProgress{}
}

// Save stores a copy of the statistics.
func (p *InMemoryProgress) Save(_ context.Context, stats *RunStats) error {
	statsCopy := *stats
	p.stats = &statsCopy
	return nil
}

// Load returns a copy of the stored statistics, or nil.
func (p *InMemoryProgress) Load(_ context.Context) (*RunStats, error) {
	if p.stats == nil {
		return nil, nil
	}
	statsCopy := *p.stats
	return &statsCopy, nil
}

// Clear removes the stored statistics.
func (p *InMemoryProgress) Clear(_ context.Context) error {
	p.stats = nil
	return nil
}
