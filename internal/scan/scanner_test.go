// Coreview - Bounded-Memory Co-Review Network Builder
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/coreview

package scan

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// writeEventFile writes a per-item event CSV named <item>.csv whose rows
// place each user id at the configured column.
func writeEventFile(t *testing.T, dir string, item int64, col int, userIDs ...string) {
	t.Helper()
	var sb strings.Builder
	sb.WriteString(strings.Repeat("h,", col) + "h\n")
	for _, uid := range userIDs {
		sb.WriteString(strings.Repeat(",", col))
		sb.WriteString(uid)
		sb.WriteString("\n")
	}
	path := filepath.Join(dir, fmt.Sprintf("%d.csv", item))
	if err := os.WriteFile(path, []byte(sb.String()), 0o644); err != nil {
		t.Fatalf("write event file: %v", err)
	}
}

func targetSet(ids ...int64) map[int64]struct{} {
	set := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

func TestScanBuildsAssociations(t *testing.T) {
	dir := t.TempDir()
	writeEventFile(t, dir, 100, 3, "1", "2", "3")
	writeEventFile(t, dir, 200, 3, "1", "2")
	writeEventFile(t, dir, 300, 3, "2", "9")

	s := New(Config{UserIDColumn: 3})
	users, stats, err := s.Scan(context.Background(), targetSet(100, 200, 300), dir)
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}

	// Users 1 and 2 hold multiple items; 3 and 9 are singletons and must
	// be gone after the final compaction.
	if len(users) != 2 {
		t.Fatalf("surviving users = %d, want 2", len(users))
	}
	if _, ok := users[3]; ok {
		t.Error("single-item user 3 should have been compacted away")
	}
	if len(users[1]) != 2 {
		t.Errorf("user 1 item count = %d, want 2", len(users[1]))
	}
	if len(users[2]) != 3 {
		t.Errorf("user 2 item count = %d, want 3", len(users[2]))
	}
	if _, ok := users[2][300]; !ok {
		t.Error("user 2 should be associated with item 300")
	}

	if stats.FilesProcessed != 3 {
		t.Errorf("FilesProcessed = %d, want 3", stats.FilesProcessed)
	}
	if stats.Rows != 7 {
		t.Errorf("Rows = %d, want 7", stats.Rows)
	}
	if stats.Users != 2 {
		t.Errorf("Users = %d, want 2", stats.Users)
	}
	if stats.UsersPruned != 2 {
		t.Errorf("UsersPruned = %d, want 2", stats.UsersPruned)
	}
}

func TestScanSkipsNonTargetFilesWithoutOpening(t *testing.T) {
	dir := t.TempDir()
	writeEventFile(t, dir, 100, 3, "1", "2")

	// A non-target file with unreadable content: if the scanner opened it,
	// it would count malformed rows or fail.
	if err := os.WriteFile(filepath.Join(dir, "999.csv"), []byte("\"broken"), 0o644); err != nil {
		t.Fatal(err)
	}
	// A non-numeric filename is never a target.
	if err := os.WriteFile(filepath.Join(dir, "readme.csv"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	s := New(Config{UserIDColumn: 3})
	_, stats, err := s.Scan(context.Background(), targetSet(100), dir)
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if stats.FilesSkipped != 2 {
		t.Errorf("FilesSkipped = %d, want 2", stats.FilesSkipped)
	}
	if stats.FilesProcessed != 1 {
		t.Errorf("FilesProcessed = %d, want 1", stats.FilesProcessed)
	}
	if stats.FilesFailed != 0 {
		t.Errorf("FilesFailed = %d, want 0", stats.FilesFailed)
	}
}

func TestScanCountsMalformedRows(t *testing.T) {
	dir := t.TempDir()
	content := "h,h,h,h\n" +
		",,,42\n" + // valid
		",,,\n" + // empty user id
		"short\n" + // row shorter than user column
		",,,notanumber\n" + // non-numeric user id
		",,,43\n" // valid
	if err := os.WriteFile(filepath.Join(dir, "100.csv"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	writeEventFile(t, dir, 200, 3, "42", "43")

	s := New(Config{UserIDColumn: 3})
	users, stats, err := s.Scan(context.Background(), targetSet(100, 200), dir)
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if stats.RowsMalformed != 3 {
		t.Errorf("RowsMalformed = %d, want 3", stats.RowsMalformed)
	}
	if stats.Rows != 4 {
		t.Errorf("Rows = %d, want 4", stats.Rows)
	}
	if len(users) != 2 {
		t.Errorf("surviving users = %d, want 2", len(users))
	}
}

func TestScanSkipsUnreadableFile(t *testing.T) {
	dir := t.TempDir()
	writeEventFile(t, dir, 100, 3, "1", "2")
	writeEventFile(t, dir, 200, 3, "1", "2")

	// A directory with a target-shaped name forces a read failure after a
	// successful open.
	if err := os.Mkdir(filepath.Join(dir, "300.csv"), 0o755); err != nil {
		t.Fatal(err)
	}

	s := New(Config{UserIDColumn: 3})
	users, stats, err := s.Scan(context.Background(), targetSet(100, 200, 300), dir)
	if err != nil {
		t.Fatalf("Scan() should tolerate unreadable files, got error = %v", err)
	}
	if stats.FilesFailed != 1 {
		t.Errorf("FilesFailed = %d, want 1", stats.FilesFailed)
	}
	if len(users) != 2 {
		t.Errorf("surviving users = %d, want 2", len(users))
	}
}

func TestScanPeriodicCompaction(t *testing.T) {
	dir := t.TempDir()
	// Files 1..4: user 7 appears in all, users 100+i in one file each.
	for i := int64(1); i <= 4; i++ {
		writeEventFile(t, dir, i, 3, "7", fmt.Sprintf("%d", 100+i))
	}

	s := New(Config{UserIDColumn: 3, CompactionInterval: 2})
	users, stats, err := s.Scan(context.Background(), targetSet(1, 2, 3, 4), dir)
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}

	if len(users) != 1 {
		t.Fatalf("surviving users = %d, want 1", len(users))
	}
	if len(users[7]) != 4 {
		t.Errorf("user 7 item count = %d, want 4", len(users[7]))
	}
	// Mid-scan compactions plus the final one must have removed all four
	// singleton users.
	if stats.UsersPruned != 4 {
		t.Errorf("UsersPruned = %d, want 4", stats.UsersPruned)
	}
}

func TestScanShardedMatchesSequential(t *testing.T) {
	dir := t.TempDir()
	for i := int64(1); i <= 9; i++ {
		writeEventFile(t, dir, i, 3, "7", "8", fmt.Sprintf("%d", 100+i))
	}
	// User 9 has exactly one item per shard-sized slice; only the merged
	// view shows it is a multi-item user.
	writeEventFile(t, dir, 20, 3, "9")
	writeEventFile(t, dir, 21, 3, "9")

	targets := targetSet(1, 2, 3, 4, 5, 6, 7, 8, 9, 20, 21)

	seq, seqStats, err := New(Config{UserIDColumn: 3}).Scan(context.Background(), targets, dir)
	if err != nil {
		t.Fatalf("sequential Scan() error = %v", err)
	}
	par, parStats, err := New(Config{UserIDColumn: 3, Workers: 4}).Scan(context.Background(), targets, dir)
	if err != nil {
		t.Fatalf("sharded Scan() error = %v", err)
	}

	if len(seq) != len(par) {
		t.Fatalf("user count mismatch: sequential %d, sharded %d", len(seq), len(par))
	}
	for uid, items := range seq {
		pitems, ok := par[uid]
		if !ok {
			t.Fatalf("user %d missing from sharded result", uid)
		}
		if len(items) != len(pitems) {
			t.Errorf("user %d item count mismatch: %d vs %d", uid, len(items), len(pitems))
		}
		for item := range items {
			if _, ok := pitems[item]; !ok {
				t.Errorf("user %d missing item %d in sharded result", uid, item)
			}
		}
	}
	if _, ok := par[9]; !ok {
		t.Error("user 9 split across shards must survive the merged compaction")
	}
	if seqStats.Rows != parStats.Rows {
		t.Errorf("row count mismatch: %d vs %d", seqStats.Rows, parStats.Rows)
	}
}

func TestScanCancelled(t *testing.T) {
	dir := t.TempDir()
	writeEventFile(t, dir, 100, 3, "1")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := New(Config{UserIDColumn: 3})
	if _, _, err := s.Scan(ctx, targetSet(100), dir); err == nil {
		t.Error("Scan() with cancelled context should fail")
	}
}

func TestScanMissingDir(t *testing.T) {
	s := New(Config{})
	if _, _, err := s.Scan(context.Background(), targetSet(1), filepath.Join(t.TempDir(), "absent")); err == nil {
		t.Error("Scan() on missing directory should fail")
	}
}
