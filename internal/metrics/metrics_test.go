// Coreview - Bounded-Memory Co-Review Network Builder
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/coreview

package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCountersIncrement(t *testing.T) {
	before := testutil.ToFloat64(ScanFilesProcessed)
	ScanFilesProcessed.Inc()
	after := testutil.ToFloat64(ScanFilesProcessed)

	if after != before+1 {
		t.Errorf("ScanFilesProcessed = %v, want %v", after, before+1)
	}
}

func TestGaugeSet(t *testing.T) {
	AggregatePairTableSize.Set(12345)
	if got := testutil.ToFloat64(AggregatePairTableSize); got != 12345 {
		t.Errorf("AggregatePairTableSize = %v, want 12345", got)
	}
}

func TestCatalogSkipReasons(t *testing.T) {
	before := testutil.ToFloat64(CatalogRowsSkipped.WithLabelValues("bad_year"))
	CatalogRowsSkipped.WithLabelValues("bad_year").Inc()
	after := testutil.ToFloat64(CatalogRowsSkipped.WithLabelValues("bad_year"))

	if after != before+1 {
		t.Errorf("CatalogRowsSkipped{bad_year} = %v, want %v", after, before+1)
	}
}

func TestObserveStage(t *testing.T) {
	// Must not panic; histogram observation is fire-and-forget.
	ObserveStage("scan", time.Now().Add(-time.Second))
}
