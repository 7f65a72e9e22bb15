package preflight

import (
	"os"
	"path/filepath"
	"testing"

	"slidecast/internal/config"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	result := CheckDirectoryAccess("test", t.TempDir())
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if result := CheckDirectoryAccess("test", f); result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckFreeSpace(t *testing.T) {
	dir := t.TempDir()
	if result := CheckFreeSpace("free", dir, 1); !result.Passed {
		t.Fatalf("expected at least one free byte: %s", result.Detail)
	}
	if result := CheckFreeSpace("free", dir, ^uint64(0)); result.Passed {
		t.Fatal("expected failure for impossible requirement")
	}
	if result := CheckFreeSpace("free", filepath.Join(dir, "missing"), 1); result.Passed {
		t.Fatal("expected failure for missing path")
	}
}

func TestRunAllReportsMissingBinaries(t *testing.T) {
	cfg := config.Default()
	cfg.Tools.FFmpeg = "definitely-missing-ffmpeg"
	cfg.Tools.FFprobe = "definitely-missing-ffprobe"
	cfg.Tools.Pdftoppm = "definitely-missing-pdftoppm"
	cfg.Paths.ScratchDir = t.TempDir()
	cfg.Paths.CacheDir = t.TempDir()

	results := RunAll(&cfg, filepath.Join(t.TempDir(), "out.mp4"), false)
	failed := Failed(results)
	names := map[string]bool{}
	for _, r := range failed {
		names[r.Name] = true
	}
	if !names["FFmpeg"] || !names["FFprobe"] {
		t.Fatalf("expected ffmpeg and ffprobe failures, got %#v", failed)
	}
	if names["pdftoppm"] {
		t.Fatalf("optional pdftoppm should not fail, got %#v", failed)
	}
	if names["Scratch directory"] || names["Output directory"] {
		t.Fatalf("expected directory checks to pass, got %#v", failed)
	}
}
