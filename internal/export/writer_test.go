// Coreview - Bounded-Memory Co-Review Network Builder
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/coreview

package export

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/goccy/go-json"

	"github.com/tomtom215/coreview/internal/catalog"
	"github.com/tomtom215/coreview/internal/graph"
)

func TestWriteNetwork(t *testing.T) {
	net := &graph.Network{
		Nodes: []graph.Node{
			{ID: "1", Title: "Alpha", Year: "2015", Rating: catalog.RatingVeryPositive, Ratio: 90, Reviews: 100, Price: 9.99},
			{ID: "2", Title: "Beta", Year: "2016", Rating: catalog.RatingMixed, Ratio: 50, Reviews: 40},
		},
		Links: []graph.Edge{
			{Source: 0, Target: 1, Weight: 5},
		},
		Meta: graph.Meta{NodeCount: 2, LinkCount: 1, MinEdgeWeight: 5, MaxEdgeWeight: 5, MinShared: 2},
	}

	path := filepath.Join(t.TempDir(), "network.json")
	if err := WriteNetwork(path, net); err != nil {
		t.Fatalf("WriteNetwork() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	var got graph.Network
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if len(got.Nodes) != 2 || len(got.Links) != 1 {
		t.Errorf("round-trip: %d nodes, %d links, want 2, 1", len(got.Nodes), len(got.Links))
	}
	if got.Links[0].Source != 0 || got.Links[0].Target != 1 {
		t.Errorf("links must reference array offsets, got %+v", got.Links[0])
	}
	if got.Meta.MinShared != 2 {
		t.Errorf("meta.min_shared = %d, want 2", got.Meta.MinShared)
	}
}

func TestWriteNetworkBadPath(t *testing.T) {
	err := WriteNetwork(filepath.Join(t.TempDir(), "absent", "network.json"), &graph.Network{})
	if err == nil {
		t.Error("WriteNetwork() to a missing directory should fail")
	}
}

func TestPackCatalog(t *testing.T) {
	idx := catalog.NewIndex(
		catalog.Record{ID: 1, Title: "Small", Year: 2010, Rating: catalog.RatingMixed, Ratio: 50, Reviews: 10, Price: 1},
		catalog.Record{ID: 2, Title: "Big", Year: 2020, Rating: catalog.RatingVeryPositive, Ratio: 90, Reviews: 1000, Price: 20},
	)

	packed := PackCatalog(idx)

	if packed.Meta.Count != 2 {
		t.Fatalf("Count = %d, want 2", packed.Meta.Count)
	}
	if packed.Meta.YearRange != [2]int{2010, 2020} {
		t.Errorf("YearRange = %v, want [2010 2020]", packed.Meta.YearRange)
	}
	// Sorted by review count descending.
	if packed.Games[0][0] != "Big" {
		t.Errorf("first packed item = %v, want Big", packed.Games[0][0])
	}
	if packed.Games[0][5] != catalog.RatingIndex(catalog.RatingVeryPositive) {
		t.Errorf("rating index = %v, want %d", packed.Games[0][5], catalog.RatingIndex(catalog.RatingVeryPositive))
	}
	if len(packed.Ratings) != len(catalog.RatingOrder) {
		t.Errorf("ratings lookup len = %d, want %d", len(packed.Ratings), len(catalog.RatingOrder))
	}
}

func TestPackCatalogTruncatesLongTitles(t *testing.T) {
	long := ""
	for i := 0; i < 80; i++ {
		long += "x"
	}
	idx := catalog.NewIndex(
		catalog.Record{ID: 1, Title: long, Year: 2015, Rating: catalog.RatingMixed, Reviews: 5},
	)

	packed := PackCatalog(idx)
	title, ok := packed.Games[0][0].(string)
	if !ok {
		t.Fatalf("packed title is %T, want string", packed.Games[0][0])
	}
	if len(title) != maxPackedTitle {
		t.Errorf("truncated title len = %d, want %d", len(title), maxPackedTitle)
	}
	if title[len(title)-3:] != "..." {
		t.Errorf("truncated title should end with ellipsis, got %q", title)
	}
}

func TestWriteCatalogRoundTrip(t *testing.T) {
	idx := catalog.NewIndex(
		catalog.Record{ID: 1, Title: "Alpha", Year: 2015, Rating: catalog.RatingMixed, Reviews: 5},
	)
	path := filepath.Join(t.TempDir(), "catalog.json")
	if err := WriteCatalog(path, idx); err != nil {
		t.Fatalf("WriteCatalog() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var got PackedCatalog
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if got.Meta.Count != 1 {
		t.Errorf("Count = %d, want 1", got.Meta.Count)
	}
}
