// Coreview - Bounded-Memory Co-Review Network Builder
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/coreview

package graph

// Node is one catalog item in the finished network, carrying its display
// metadata and positioned at its dense index in Network.Nodes.
type Node struct {
	ID      string   `json:"id"`
	Title   string   `json:"title"`
	Year    string   `json:"year"`
	Rating  string   `json:"rating"`
	Ratio   int      `json:"ratio"`
	Reviews int      `json:"reviews"`
	Price   float64  `json:"price"`
	Genres  []string `json:"genres,omitempty"`
	Tags    []string `json:"tags,omitempty"`
}

// Edge links two nodes by their array offsets in Network.Nodes, not by
// the original item identifiers.
type Edge struct {
	Source int `json:"source"`
	Target int `json:"target"`
	Weight int `json:"weight"`
}

// Meta summarizes the crunch that produced the network.
type Meta struct {
	NodeCount      int    `json:"node_count"`
	LinkCount      int    `json:"link_count"`
	MinEdgeWeight  int    `json:"min_edge_weight"`
	MaxEdgeWeight  int    `json:"max_edge_weight"`
	MinShared      int    `json:"min_shared"`
	MaxUserGames   int    `json:"max_user_games"`
	MinGameReviews int    `json:"min_game_reviews"`
	TopK           int    `json:"top_k,omitempty"`
	LowerBound     bool   `json:"lower_bound,omitempty"`
	RunID          string `json:"run_id,omitempty"`
	GeneratedAt    string `json:"generated_at,omitempty"`
}

// Network is the final graph handed to serialization and to the
// downstream layout step. Every edge references valid node indices and
// every node is touched by at least one edge.
type Network struct {
	Nodes []Node `json:"nodes"`
	Links []Edge `json:"links"`
	Meta  Meta   `json:"meta"`
}

// DistributionBucket is one row of the edge-weight histogram reported in
// the final summary.
type DistributionBucket struct {
	Threshold int
	Count     int
}

// WeightDistribution counts pairs at or above each threshold, stopping at
// the first empty bucket. Thresholds must be ascending.
func WeightDistribution(pairs map[Pair]int, thresholds []int) []DistributionBucket {
	var out []DistributionBucket
	for _, t := range thresholds {
		count := 0
		for _, w := range pairs {
			if w >= t {
				count++
			}
		}
		if count == 0 {
			break
		}
		out = append(out, DistributionBucket{Threshold: t, Count: count})
	}
	return out
}
