// Coreview - Bounded-Memory Co-Review Network Builder
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/coreview

// Package graph builds the weighted co-occurrence graph: the pair-weight
// aggregation under a memory ceiling, and the filter/index stage that
// produces the final node and edge lists.
package graph

// Pair is an unordered pair of item identifiers, canonicalized so that
// A < B. A Pair never holds equal identifiers; MakePair callers enumerate
// strict i<j combinations.
type Pair struct {
	A, B int64
}

// MakePair returns the canonical form of the pair (a, b).
func MakePair(a, b int64) Pair {
	if a > b {
		a, b = b, a
	}
	return Pair{A: a, B: b}
}
