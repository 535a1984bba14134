// Coreview - Bounded-Memory Co-Review Network Builder
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/coreview

package graph

import (
	"sort"
	"strconv"

	"github.com/tomtom215/coreview/internal/catalog"
	"github.com/tomtom215/coreview/internal/logging"
	"github.com/tomtom215/coreview/internal/metrics"
)

// FilterConfig controls the filter/index stage.
type FilterConfig struct {
	// MinWeight drops every pair below this weight.
	MinWeight int

	// TopK, when > 0, caps each node's neighbor list. A pair survives if
	// it sits in either endpoint's top-K by weight (union, not
	// intersection): a strong one-directional affinity is kept even when
	// the more connected endpoint has stronger neighbors.
	TopK int
}

// Finalize reduces the raw pair table to the final node and edge lists.
// Pairs whose endpoints are missing from the metadata index are dropped
// silently; they cannot be rendered. An empty surviving edge set is not
// an error.
func (cfg FilterConfig) Finalize(pairs map[Pair]int, idx *catalog.Index) *Network {
	log := logging.With().Str("component", "finalize").Logger()

	// Step 1: weight floor.
	filtered := make(map[Pair]int)
	for p, w := range pairs {
		if w >= cfg.MinWeight {
			filtered[p] = w
		}
	}
	log.Info().
		Int("min_weight", cfg.MinWeight).
		Int("kept", len(filtered)).
		Int("dropped", len(pairs)-len(filtered)).
		Msg("Weight floor applied")

	// Step 2: optional per-node neighbor cap.
	if cfg.TopK > 0 {
		filtered = topKUnion(filtered, cfg.TopK)
		log.Info().Int("top_k", cfg.TopK).Int("kept", len(filtered)).Msg("Neighbor cap applied")
	}

	// Step 3: index surviving endpoints that carry metadata.
	present := make(map[int64]struct{})
	for p := range filtered {
		if _, ok := idx.Get(p.A); ok {
			present[p.A] = struct{}{}
		}
		if _, ok := idx.Get(p.B); ok {
			present[p.B] = struct{}{}
		}
	}
	ids := make([]int64, 0, len(present))
	for id := range present {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	idToIdx := make(map[int64]int, len(ids))
	nodes := make([]Node, 0, len(ids))
	for _, id := range ids {
		rec, _ := idx.Get(id)
		idToIdx[id] = len(nodes)
		nodes = append(nodes, Node{
			ID:      strconv.FormatInt(id, 10),
			Title:   rec.Title,
			Year:    strconv.Itoa(rec.Year),
			Rating:  rec.Rating,
			Ratio:   rec.Ratio,
			Reviews: rec.Reviews,
			Price:   rec.Price,
			Genres:  rec.Genres,
			Tags:    rec.Tags,
		})
	}

	// Step 4: emit edges against dense indices, heaviest first.
	links := make([]Edge, 0, len(filtered))
	for p, w := range filtered {
		src, okA := idToIdx[p.A]
		dst, okB := idToIdx[p.B]
		if !okA || !okB {
			continue
		}
		links = append(links, Edge{Source: src, Target: dst, Weight: w})
	}
	sort.Slice(links, func(i, j int) bool {
		if links[i].Weight != links[j].Weight {
			return links[i].Weight > links[j].Weight
		}
		if links[i].Source != links[j].Source {
			return links[i].Source < links[j].Source
		}
		return links[i].Target < links[j].Target
	})

	// Nodes whose every edge lost an endpoint to missing metadata would be
	// isolated; drop them so the output invariant holds.
	nodes, links = dropIsolated(nodes, links)

	minW, maxW := 0, 0
	if len(links) > 0 {
		maxW = links[0].Weight
		minW = links[len(links)-1].Weight
	} else {
		log.Warn().Msg("No edges survived filtering; emitting empty graph")
	}

	metrics.GraphNodes.Set(float64(len(nodes)))
	metrics.GraphEdges.Set(float64(len(links)))

	return &Network{
		Nodes: nodes,
		Links: links,
		Meta: Meta{
			NodeCount:     len(nodes),
			LinkCount:     len(links),
			MinEdgeWeight: minW,
			MaxEdgeWeight: maxW,
			MinShared:     cfg.MinWeight,
			TopK:          cfg.TopK,
		},
	}
}

// neighbor is one adjacency entry during the top-K pass.
type neighbor struct {
	id     int64
	weight int
}

// topKUnion keeps a pair when it ranks in the top K neighbors of either
// endpoint (weight descending, ties by neighbor identifier ascending).
func topKUnion(pairs map[Pair]int, k int) map[Pair]int {
	adj := make(map[int64][]neighbor)
	for p, w := range pairs {
		adj[p.A] = append(adj[p.A], neighbor{id: p.B, weight: w})
		adj[p.B] = append(adj[p.B], neighbor{id: p.A, weight: w})
	}

	kept := make(map[Pair]struct{})
	for node, neighbors := range adj {
		sort.Slice(neighbors, func(i, j int) bool {
			if neighbors[i].weight != neighbors[j].weight {
				return neighbors[i].weight > neighbors[j].weight
			}
			return neighbors[i].id < neighbors[j].id
		})
		limit := k
		if limit > len(neighbors) {
			limit = len(neighbors)
		}
		for _, n := range neighbors[:limit] {
			kept[MakePair(node, n.id)] = struct{}{}
		}
	}

	out := make(map[Pair]int, len(kept))
	for p := range kept {
		out[p] = pairs[p]
	}
	return out
}

// dropIsolated removes nodes with no surviving edge and reindexes the
// edge endpoints.
func dropIsolated(nodes []Node, links []Edge) ([]Node, []Edge) {
	touched := make(map[int]struct{}, len(nodes))
	for _, l := range links {
		touched[l.Source] = struct{}{}
		touched[l.Target] = struct{}{}
	}
	if len(touched) == len(nodes) {
		return nodes, links
	}

	remap := make(map[int]int, len(touched))
	kept := make([]Node, 0, len(touched))
	for i, n := range nodes {
		if _, ok := touched[i]; ok {
			remap[i] = len(kept)
			kept = append(kept, n)
		}
	}
	for i := range links {
		links[i].Source = remap[links[i].Source]
		links[i].Target = remap[links[i].Target]
	}
	return kept, links
}
