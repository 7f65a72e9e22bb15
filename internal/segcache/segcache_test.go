package segcache

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"slidecast/internal/testsupport"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithSegmentCache())
	m := NewManager(cfg, nil)
	if m == nil {
		t.Fatal("expected manager")
	}
	m.statfs = func(string) (uint64, uint64, error) { return 100, 50, nil }
	return m
}

func writeSegment(t *testing.T, size int64) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "segment-0001.mp4")
	testsupport.WriteFile(t, path, size)
	return path
}

func TestDisabledManagerIsNil(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	m := NewManager(cfg, nil)
	if m.Enabled() {
		t.Fatal("expected disabled cache")
	}
	ok, err := m.Restore(context.Background(), "abc", filepath.Join(t.TempDir(), "x.mp4"))
	if ok || err != nil {
		t.Fatalf("nil manager restore = %v, %v", ok, err)
	}
	if err := m.Store(context.Background(), "abc", "/nowhere"); err != nil {
		t.Fatalf("nil manager store: %v", err)
	}
}

func TestStoreAndRestore(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	seg := writeSegment(t, 2048)

	if err := m.Store(ctx, "f00d", seg); err != nil {
		t.Fatalf("Store: %v", err)
	}
	target := filepath.Join(t.TempDir(), "segment-0001.mp4")
	ok, err := m.Restore(ctx, "f00d", target)
	if err != nil || !ok {
		t.Fatalf("Restore = %v, %v", ok, err)
	}
	info, err := os.Stat(target)
	if err != nil || info.Size() != 2048 {
		t.Fatalf("restored segment: %v, %v", info, err)
	}

	ok, err = m.Restore(ctx, "beef", filepath.Join(t.TempDir(), "other.mp4"))
	if ok || err != nil {
		t.Fatalf("expected miss, got %v, %v", ok, err)
	}
}

func TestRejectsPathLikeFingerprints(t *testing.T) {
	m := newTestManager(t)
	if err := m.Store(context.Background(), "../escape", writeSegment(t, 10)); err == nil {
		t.Fatal("expected invalid fingerprint error")
	}
}

func TestPruneRemovesLeastRecentlyUsed(t *testing.T) {
	m := newTestManager(t)
	m.maxBytes = 3000
	ctx := context.Background()

	for i, fp := range []string{"aaa", "bbb"} {
		if err := m.Store(ctx, fp, writeSegment(t, 1200)); err != nil {
			t.Fatalf("Store %s: %v", fp, err)
		}
		old := time.Now().Add(time.Duration(i-10) * time.Minute)
		if err := os.Chtimes(filepath.Join(m.root, fp+entryExt), old, old); err != nil {
			t.Fatal(err)
		}
	}
	// Touch "aaa" through a restore so "bbb" becomes the oldest.
	if ok, err := m.Restore(ctx, "aaa", filepath.Join(t.TempDir(), "r.mp4")); !ok || err != nil {
		t.Fatalf("Restore = %v, %v", ok, err)
	}
	if err := m.Store(ctx, "ccc", writeSegment(t, 1200)); err != nil {
		t.Fatalf("Store ccc: %v", err)
	}

	for fp, want := range map[string]bool{"aaa": true, "bbb": false, "ccc": true} {
		_, err := os.Stat(filepath.Join(m.root, fp+entryExt))
		if exists := err == nil; exists != want {
			t.Errorf("entry %s exists=%v, want %v", fp, exists, want)
		}
	}
}

func TestPruneHonoursFreeSpaceFloor(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	if err := m.Store(ctx, "aaa", writeSegment(t, 100)); err != nil {
		t.Fatal(err)
	}
	m.statfs = func(string) (uint64, uint64, error) { return 100, 10, nil }
	if err := m.Prune(ctx); err != nil {
		t.Fatalf("Prune: %v", err)
	}
	stats, err := m.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Entries != 0 {
		t.Fatalf("expected the low free-space volume to be emptied, got %d entries", stats.Entries)
	}
}

func TestStatsAndClear(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	for _, fp := range []string{"one", "two"} {
		if err := m.Store(ctx, fp, writeSegment(t, 500)); err != nil {
			t.Fatal(err)
		}
	}
	stats, err := m.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Entries != 2 || stats.TotalBytes != 1000 || stats.FreeRatio != 0.5 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	n, err := m.Clear(ctx)
	if err != nil || n != 2 {
		t.Fatalf("Clear = %d, %v", n, err)
	}
}
