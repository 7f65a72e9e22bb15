package staging

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const runPrefix = "run-"

// Workspace is one run's scratch directory.
type Workspace struct {
	Root string
	Dir  string
}

// Allocate creates the workspace for runID under root.
func Allocate(root, runID string) (*Workspace, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, errors.New("scratch directory is not configured")
	}
	runID = strings.TrimSpace(runID)
	if runID == "" || strings.ContainsAny(runID, `/\`) || strings.Contains(runID, "..") {
		return nil, fmt.Errorf("invalid run id %q", runID)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create scratch root: %w", err)
	}
	dir := filepath.Join(root, runPrefix+runID)
	if err := os.Mkdir(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}
	return &Workspace{Root: root, Dir: dir}, nil
}

// Path returns name inside the workspace.
func (w *Workspace) Path(name string) string {
	return filepath.Join(w.Dir, name)
}

// Sub creates and returns a subdirectory of the workspace.
func (w *Workspace) Sub(name string) (string, error) {
	dir := w.Path(name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", name, err)
	}
	return dir, nil
}

// Remove deletes the workspace and everything in it. It is safe to call more
// than once.
func (w *Workspace) Remove() error {
	if w == nil || w.Dir == "" {
		return nil
	}
	if err := os.RemoveAll(w.Dir); err != nil {
		return fmt.Errorf("remove workspace: %w", err)
	}
	return nil
}

// IsRunDir reports whether name looks like a run workspace.
func IsRunDir(name string) bool {
	return strings.HasPrefix(name, runPrefix) && len(name) > len(runPrefix)
}
