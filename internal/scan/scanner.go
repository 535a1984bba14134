// Coreview - Bounded-Memory Co-Review Network Builder
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/coreview

// Package scan streams per-item event files into a compact user→item-set
// structure under a fixed memory budget.
//
// Files whose name is not in the target set are never opened; that skip is
// the primary cost-avoidance mechanism when the target set is a small
// fraction of the catalog. Users still holding a single item are removed
// at a fixed file interval, which bounds peak memory to the population of
// active multi-item users: a singleton item-set can never produce a pair,
// so dropping it is always safe.
package scan

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/tomtom215/coreview/internal/logging"
	"github.com/tomtom215/coreview/internal/metrics"
)

// UserItems maps a user identifier to the set of items the user has
// interacted with. Built and owned exclusively by the scanner; ownership
// transfers to the aggregator when Scan returns.
type UserItems map[int64]map[int64]struct{}

// Config controls scanner behavior.
type Config struct {
	// UserIDColumn is the zero-based column holding the user identifier.
	// Default: 14
	UserIDColumn int

	// CompactionInterval is the number of processed files between
	// single-item-user prunes. Default: 5000
	CompactionInterval int

	// Workers shards files across goroutines when > 1. Each worker builds
	// a private map; shards are merged by set union and compaction runs
	// only after the merge (a user's items may be split across shards, so
	// per-shard compaction could discard a real multi-item user).
	Workers int
}

// Stats counts scan outcomes for the operator summary.
type Stats struct {
	FilesProcessed int
	FilesSkipped   int
	FilesFailed    int
	Rows           int64
	RowsMalformed  int64
	UsersPruned    int
	Users          int
}

// Scanner converts per-item event files into user associations.
type Scanner struct {
	cfg Config
	log zerolog.Logger
}

// New creates a scanner, applying defaults for zero config values.
func New(cfg Config) *Scanner {
	if cfg.UserIDColumn < 1 {
		cfg.UserIDColumn = 14
	}
	if cfg.CompactionInterval < 1 {
		cfg.CompactionInterval = 5000
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	return &Scanner{
		cfg: cfg,
		log: logging.With().Str("component", "scan").Logger(),
	}
}

// targetFile pairs an event file path with its already-parsed item id.
type targetFile struct {
	path string
	item int64
}

// Scan walks every *.csv file under dir, accumulating associations for
// items in the target set. Unreadable files are logged and skipped; the
// scan itself only fails on an unreadable directory or cancellation.
func (s *Scanner) Scan(ctx context.Context, targets map[int64]struct{}, dir string) (UserItems, *Stats, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("read event dir: %w", err)
	}

	stats := &Stats{}
	accepted := make([]targetFile, 0, len(targets))
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".csv") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		stem := strings.TrimSuffix(name, ".csv")
		item, err := strconv.ParseInt(stem, 10, 64)
		if err != nil {
			stats.FilesSkipped++
			metrics.ScanFilesSkipped.Inc()
			continue
		}
		if _, ok := targets[item]; !ok {
			stats.FilesSkipped++
			metrics.ScanFilesSkipped.Inc()
			continue
		}
		accepted = append(accepted, targetFile{path: filepath.Join(dir, name), item: item})
	}

	s.log.Info().
		Int("total_files", len(names)).
		Int("target_files", len(accepted)).
		Int("targets", len(targets)).
		Msg("Scanning event files")

	var users UserItems
	if s.cfg.Workers > 1 {
		users, err = s.scanSharded(ctx, accepted, stats)
	} else {
		users, err = s.scanSequential(ctx, accepted, stats)
	}
	if err != nil {
		return nil, nil, err
	}

	stats.UsersPruned += compact(users)
	stats.Users = len(users)
	metrics.ScanUsersPruned.Add(float64(stats.UsersPruned))
	metrics.ScanActiveUsers.Set(float64(len(users)))

	s.log.Info().
		Int("files", stats.FilesProcessed).
		Int("skipped", stats.FilesSkipped).
		Int("failed", stats.FilesFailed).
		Int64("rows", stats.Rows).
		Int64("malformed", stats.RowsMalformed).
		Int("users", stats.Users).
		Int("pruned", stats.UsersPruned).
		Msg("Scan complete")

	return users, stats, nil
}

// scanSequential processes files in order with periodic compaction.
func (s *Scanner) scanSequential(ctx context.Context, files []targetFile, stats *Stats) (UserItems, error) {
	users := make(UserItems)

	for _, tf := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if err := s.scanFile(tf, users, stats); err != nil {
			stats.FilesFailed++
			metrics.ScanFilesFailed.Inc()
			s.log.Warn().Err(err).Str("file", tf.path).Msg("Skipping unreadable event file")
			continue
		}
		stats.FilesProcessed++
		metrics.ScanFilesProcessed.Inc()

		if stats.FilesProcessed%s.cfg.CompactionInterval == 0 {
			pruned := compact(users)
			stats.UsersPruned += pruned
			metrics.ScanUsersPruned.Add(float64(pruned))
			metrics.ScanActiveUsers.Set(float64(len(users)))
			s.log.Info().
				Int("files", stats.FilesProcessed).
				Int("of", len(files)).
				Int64("rows", stats.Rows).
				Int("users", len(users)).
				Int("pruned", pruned).
				Msg("Scan progress")
		}
	}

	return users, nil
}

// scanSharded splits files across workers and merges the per-shard maps.
func (s *Scanner) scanSharded(ctx context.Context, files []targetFile, stats *Stats) (UserItems, error) {
	workers := s.cfg.Workers
	if workers > len(files) && len(files) > 0 {
		workers = len(files)
	}

	shardUsers := make([]UserItems, workers)
	shardStats := make([]Stats, workers)

	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		w := w
		g.Go(func() error {
			users := make(UserItems)
			for i := w; i < len(files); i += workers {
				if err := gctx.Err(); err != nil {
					return err
				}
				if err := s.scanFile(files[i], users, &shardStats[w]); err != nil {
					shardStats[w].FilesFailed++
					metrics.ScanFilesFailed.Inc()
					s.log.Warn().Err(err).Str("file", files[i].path).Msg("Skipping unreadable event file")
					continue
				}
				shardStats[w].FilesProcessed++
				metrics.ScanFilesProcessed.Inc()
			}
			shardUsers[w] = users
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := make(UserItems)
	for w := 0; w < workers; w++ {
		for uid, items := range shardUsers[w] {
			dst, ok := merged[uid]
			if !ok {
				merged[uid] = items
				continue
			}
			for item := range items {
				dst[item] = struct{}{}
			}
		}
		shardUsers[w] = nil
		stats.FilesProcessed += shardStats[w].FilesProcessed
		stats.FilesFailed += shardStats[w].FilesFailed
		stats.Rows += shardStats[w].Rows
		stats.RowsMalformed += shardStats[w].RowsMalformed
	}

	return merged, nil
}

// scanFile reads one event file. Malformed rows are counted and skipped;
// a read error mid-file abandons the remainder of that file only.
func (s *Scanner) scanFile(tf targetFile, users UserItems, stats *Stats) error {
	f, err := os.Open(tf.path)
	if err != nil {
		return err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.ReuseRecord = true

	// Header row
	if _, err := reader.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}

	col := s.cfg.UserIDColumn
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		if len(row) <= col || row[col] == "" {
			stats.RowsMalformed++
			metrics.ScanRowsMalformed.Inc()
			continue
		}
		uid, err := strconv.ParseInt(row[col], 10, 64)
		if err != nil {
			stats.RowsMalformed++
			metrics.ScanRowsMalformed.Inc()
			continue
		}

		set, ok := users[uid]
		if !ok {
			set = make(map[int64]struct{})
			users[uid] = set
		}
		set[tf.item] = struct{}{}
		stats.Rows++
		metrics.ScanRowsProcessed.Inc()
	}

	return nil
}

// compact removes every user whose item-set is still below 2, returning
// the number removed.
func compact(users UserItems) int {
	pruned := 0
	for uid, items := range users {
		if len(items) < 2 {
			delete(users, uid)
			pruned++
		}
	}
	return pruned
}
