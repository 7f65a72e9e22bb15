package testsupport

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// FakeTool is a stub ffmpeg that records every invocation.
type FakeTool struct {
	Path    string
	LogPath string
}

// FakeFFmpeg writes a stub ffmpeg into a temp dir. Each run appends its
// arguments to a log and writes a small file at the last argument unless it
// is "-" or a pipe. hook is shell inserted before the output is written; it
// can inspect "$*" and exit early to simulate failures.
func FakeFFmpeg(t testing.TB, hook string) FakeTool {
	t.Helper()
	dir := t.TempDir()
	logPath := filepath.Join(dir, "invocations.log")
	body := "LOG='" + logPath + "'\n" +
		"SEP=$(printf '\\037')\n" +
		"line=''\n" +
		"for arg in \"$@\"; do line=\"$line$arg$SEP\"; done\n" +
		"printf '%s\\n' \"$line\" >> \"$LOG\"\n" +
		hook + "\n" +
		"for last; do :; done\n" +
		"case \"$last\" in\n" +
		"  -|pipe:*|/dev/null) ;;\n" +
		"  *) printf 'fake media' > \"$last\" ;;\n" +
		"esac\n"
	path := WriteScript(t, filepath.Join(dir, "ffmpeg"), body)
	return FakeTool{Path: path, LogPath: logPath}
}

// Invocations returns the recorded argument lists in call order.
func (f FakeTool) Invocations(t testing.TB) [][]string {
	t.Helper()
	data, err := os.ReadFile(f.LogPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		t.Fatalf("read invocation log: %v", err)
	}
	var out [][]string
	for _, line := range strings.Split(strings.TrimRight(string(data), "\n"), "\n") {
		if line == "" {
			continue
		}
		out = append(out, strings.Split(strings.TrimSuffix(line, "\x1f"), "\x1f"))
	}
	return out
}

// Joined returns each invocation's arguments joined by spaces.
func (f FakeTool) Joined(t testing.TB) []string {
	t.Helper()
	var out []string
	for _, args := range f.Invocations(t) {
		out = append(out, strings.Join(args, " "))
	}
	return out
}
