// Coreview - Bounded-Memory Co-Review Network Builder
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/coreview

package graph

import (
	"context"
	"fmt"
	"sort"

	"github.com/tomtom215/coreview/internal/logging"
	"github.com/tomtom215/coreview/internal/metrics"
	"github.com/tomtom215/coreview/internal/scan"
)

// AggregateConfig bounds the pair table's growth.
type AggregateConfig struct {
	// MaxFanOut caps the number of items considered per user. A user with
	// more items is reduced to the MaxFanOut most popular, which caps the
	// per-user pair count at C(MaxFanOut, 2). Default: 75
	MaxFanOut int

	// CheckpointInterval is the number of processed users between prune
	// checks. Checkpoints are a pure function of processed-user count, so
	// identical inputs produce identical tables. Default: 500000
	CheckpointInterval int

	// SoftThreshold is the table size past which a checkpoint drops pairs
	// below PruneFloor. Default: 15000000
	SoftThreshold int

	// PruneFloor is the minimum weight a pair needs to survive a
	// mid-stream prune. Must be at least 2. Default: 3
	PruneFloor int

	// HardThreshold is the table size past which the run aborts.
	// Default: 100000000
	HardThreshold int
}

// withDefaults fills zero fields with the standard operating point.
func (c AggregateConfig) withDefaults() AggregateConfig {
	if c.MaxFanOut < 1 {
		c.MaxFanOut = 75
	}
	if c.CheckpointInterval < 1 {
		c.CheckpointInterval = 500000
	}
	if c.SoftThreshold < 1 {
		c.SoftThreshold = 15000000
	}
	if c.PruneFloor < 2 {
		c.PruneFloor = 3
	}
	if c.HardThreshold < 1 {
		c.HardThreshold = 100000000
	}
	return c
}

// AggregateStats counts aggregation outcomes for the operator summary.
type AggregateStats struct {
	Users       int
	Capped      int
	Pairs       int
	PairsPruned int
	PruneRuns   int
}

// LowerBound reports whether mid-stream pruning fired. When true, final
// weights are exact lower bounds on the true co-occurrence counts rather
// than exact counts: a dropped low-weight pair might have been reinforced
// by later users. This approximation is the documented price of the
// memory ceiling.
func (s *AggregateStats) LowerBound() bool {
	return s.PruneRuns > 0
}

// AbortError is returned when the pair table exceeds the hard threshold.
// The caller must treat the run as failed; no partial output is usable.
type AbortError struct {
	Pairs int
}

func (e *AbortError) Error() string {
	return fmt.Sprintf("pair table size %d exceeded hard abort threshold", e.Pairs)
}

// Aggregate converts user item-sets into a weighted pair table. Users are
// processed in ascending identifier order and each consumed entry is
// deleted from the input map, so the association structure shrinks as the
// table grows. The input map must not be used after this call.
func Aggregate(ctx context.Context, users scan.UserItems, popularity map[int64]int, cfg AggregateConfig) (map[Pair]int, *AggregateStats, error) {
	cfg = cfg.withDefaults()
	log := logging.With().Str("component", "aggregate").Logger()

	uids := make([]int64, 0, len(users))
	for uid := range users {
		uids = append(uids, uid)
	}
	sort.Slice(uids, func(i, j int) bool { return uids[i] < uids[j] })

	log.Info().
		Int("users", len(uids)).
		Int("max_fan_out", cfg.MaxFanOut).
		Int("soft_threshold", cfg.SoftThreshold).
		Int("hard_threshold", cfg.HardThreshold).
		Msg("Building edge weights")

	weights := make(map[Pair]int)
	stats := &AggregateStats{}
	scratch := make([]int64, 0, cfg.MaxFanOut)

	for _, uid := range uids {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		items := capItems(users[uid], popularity, cfg.MaxFanOut, scratch[:0])
		if len(items) < len(users[uid]) {
			stats.Capped++
			metrics.AggregateUsersCapped.Inc()
		}
		delete(users, uid)

		for i := 0; i < len(items); i++ {
			for j := i + 1; j < len(items); j++ {
				weights[MakePair(items[i], items[j])]++
			}
		}
		stats.Users++
		metrics.AggregateUsersProcessed.Inc()

		if len(weights) > cfg.HardThreshold {
			log.Error().
				Int("pairs", len(weights)).
				Int("hard_threshold", cfg.HardThreshold).
				Msg("Aborting: pair table exceeded hard threshold")
			return nil, nil, &AbortError{Pairs: len(weights)}
		}

		if stats.Users%cfg.CheckpointInterval == 0 {
			metrics.AggregatePairTableSize.Set(float64(len(weights)))
			log.Info().
				Int("users", stats.Users).
				Int("pairs", len(weights)).
				Msg("Aggregation progress")

			if len(weights) > cfg.SoftThreshold {
				before := len(weights)
				for p, w := range weights {
					if w < cfg.PruneFloor {
						delete(weights, p)
					}
				}
				pruned := before - len(weights)
				stats.PairsPruned += pruned
				stats.PruneRuns++
				metrics.AggregatePairsPruned.Add(float64(pruned))
				log.Info().
					Int("before", before).
					Int("after", len(weights)).
					Int("floor", cfg.PruneFloor).
					Msg("Mid-stream prune")
			}
		}
	}

	stats.Pairs = len(weights)
	metrics.AggregatePairTableSize.Set(float64(len(weights)))

	log.Info().
		Int("users", stats.Users).
		Int("capped", stats.Capped).
		Int("pairs", stats.Pairs).
		Int("pairs_pruned", stats.PairsPruned).
		Bool("lower_bound", stats.LowerBound()).
		Msg("Edge weights built")

	return weights, stats, nil
}

// capItems returns the user's items as a slice, reduced to the maxFanOut
// most popular when the set is larger. Popularity ties break by
// identifier ascending so capping is deterministic.
func capItems(set map[int64]struct{}, popularity map[int64]int, maxFanOut int, buf []int64) []int64 {
	items := buf
	for item := range set {
		items = append(items, item)
	}

	if len(items) <= maxFanOut {
		sort.Slice(items, func(i, j int) bool { return items[i] < items[j] })
		return items
	}

	sort.Slice(items, func(i, j int) bool {
		pi, pj := popularity[items[i]], popularity[items[j]]
		if pi != pj {
			return pi > pj
		}
		return items[i] < items[j]
	})
	return items[:maxFanOut]
}
