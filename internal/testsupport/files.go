package testsupport

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

// WriteFile writes size filler bytes to path, creating parent directories.
// Media and segment fixtures only need a stable size and content; a size
// <= 0 writes a single byte.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()
	writeWithParents(t, path, bytes.Repeat([]byte{0x42}, int(max(size, 1))), 0o644)
}

// WriteScript writes an executable /bin/sh script with the given body and
// returns its path. Fake ffmpeg, ffprobe and pdftoppm binaries are scripts.
func WriteScript(t testing.TB, path, body string) string {
	t.Helper()
	writeWithParents(t, path, []byte("#!/bin/sh\n"+body), 0o755)
	return path
}

func writeWithParents(t testing.TB, path string, data []byte, mode os.FileMode) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, data, mode); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
