package staging

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"slidecast/internal/logging"
)

func TestAllocateAndRemove(t *testing.T) {
	root := filepath.Join(t.TempDir(), "scratch")
	ws, err := Allocate(root, "abc")
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if ws.Dir != filepath.Join(root, "run-abc") {
		t.Fatalf("dir = %q", ws.Dir)
	}
	sub, err := ws.Sub("segments")
	if err != nil {
		t.Fatalf("Sub: %v", err)
	}
	if err := os.WriteFile(filepath.Join(sub, "segment-0001.mp4"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Allocate(root, "abc"); err == nil {
		t.Fatal("expected error reusing a run id")
	}
	if err := ws.Remove(); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := ws.Remove(); err != nil {
		t.Fatalf("second Remove: %v", err)
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		t.Fatalf("read root: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected empty scratch root, found %d entries", len(entries))
	}
}

func TestAllocateRejectsBadInput(t *testing.T) {
	root := t.TempDir()
	for _, id := range []string{"", "  ", "../x", "a/b"} {
		if _, err := Allocate(root, id); err == nil {
			t.Errorf("expected error for run id %q", id)
		}
	}
	if _, err := Allocate(" ", "abc"); err == nil {
		t.Error("expected error for empty root")
	}
}

func TestCleanStaleRemovesOldRunDirectories(t *testing.T) {
	root := t.TempDir()
	old := filepath.Join(root, "run-old")
	recent := filepath.Join(root, "run-recent")
	foreign := filepath.Join(root, "keep-me")
	for _, dir := range []string{old, recent, foreign} {
		if err := os.Mkdir(dir, 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
	}
	past := time.Now().Add(-2 * time.Hour)
	for _, dir := range []string{old, foreign} {
		if err := os.Chtimes(dir, past, past); err != nil {
			t.Fatalf("chtimes: %v", err)
		}
	}

	result := CleanStale(context.Background(), root, time.Hour, logging.NewNop())
	if len(result.Removed) != 1 || result.Removed[0] != old {
		t.Fatalf("removed = %v", result.Removed)
	}
	for _, dir := range []string{recent, foreign} {
		if _, err := os.Stat(dir); err != nil {
			t.Errorf("%s should still exist", dir)
		}
	}
}

func TestCleanStaleInvalidPaths(t *testing.T) {
	for _, dir := range []string{"", "   ", "/nonexistent/path/12345"} {
		result := CleanStale(context.Background(), dir, time.Hour, nil)
		if len(result.Removed) != 0 || len(result.Errors) != 0 {
			t.Errorf("expected empty result for path %q", dir)
		}
	}
}

func TestListDirectories(t *testing.T) {
	root := t.TempDir()
	ws, err := Allocate(root, "one")
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if err := os.WriteFile(ws.Path("data.bin"), []byte("12345"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, "not-a-dir.txt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	dirs, err := ListDirectories(root)
	if err != nil {
		t.Fatalf("ListDirectories: %v", err)
	}
	if len(dirs) != 1 || dirs[0].Name != "run-one" || dirs[0].Size != 5 || dirs[0].ModTime.IsZero() {
		t.Fatalf("unexpected dirs %+v", dirs)
	}

	none, err := ListDirectories("/nonexistent/path/12345")
	if err != nil || none != nil {
		t.Fatalf("missing root: %v, %v", none, err)
	}
}
