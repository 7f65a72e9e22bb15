package segcache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"slidecast/internal/config"
	"slidecast/internal/fileutil"
	"slidecast/internal/logging"
)

const (
	// freeSpaceFloor is the minimum free-space ratio kept on the cache volume.
	freeSpaceFloor = 0.20
	entryExt       = ".mp4"
)

// statfsFunc allows tests to stub filesystem stats.
type statfsFunc func(path string) (total uint64, free uint64, err error)

// Manager stores and prunes cached segments.
type Manager struct {
	root     string
	maxBytes int64
	logger   *slog.Logger
	statfs   statfsFunc
}

// Stats describes current cache usage.
type Stats struct {
	Entries      int       `json:"entries"`
	TotalBytes   int64     `json:"total_bytes"`
	MaxBytes     int64     `json:"max_bytes"`
	FreeBytes    uint64    `json:"free_bytes"`
	TotalFSBytes uint64    `json:"total_fs_bytes"`
	FreeRatio    float64   `json:"free_ratio"`
	Oldest       time.Time `json:"oldest,omitzero"`
	Newest       time.Time `json:"newest,omitzero"`
}

// NewManager returns a Manager when the segment cache is enabled and
// configured, and nil otherwise. A nil Manager is safe to use and caches
// nothing.
func NewManager(cfg *config.Config, logger *slog.Logger) *Manager {
	if cfg == nil || !cfg.SegmentCache.Enabled {
		return nil
	}
	root := strings.TrimSpace(cfg.SegmentCache.Dir)
	if root == "" || cfg.SegmentCache.MaxGiB <= 0 {
		return nil
	}
	return &Manager{
		root:     root,
		maxBytes: cfg.SegmentCacheMaxBytes(),
		logger:   logging.NewComponentLogger(logger, "segcache"),
		statfs:   realStatfs,
	}
}

// Enabled reports whether m caches anything.
func (m *Manager) Enabled() bool {
	return m != nil
}

// Restore copies the entry for fingerprint to target. It reports whether an
// entry existed.
func (m *Manager) Restore(ctx context.Context, fingerprint, target string) (bool, error) {
	if m == nil {
		return false, nil
	}
	src, err := m.entryPath(fingerprint)
	if err != nil {
		return false, err
	}
	info, err := os.Stat(src)
	if err != nil || info.Size() == 0 {
		return false, nil
	}
	if err := fileutil.CopyFileVerified(src, target); err != nil {
		return false, fmt.Errorf("segcache: restore entry: %w", err)
	}
	now := time.Now()
	_ = os.Chtimes(src, now, now)
	m.logger.DebugContext(ctx, "restored segment from cache",
		logging.String("fingerprint", shortFingerprint(fingerprint)),
		logging.String("target", target))
	return true, nil
}

// Store copies a rendered segment into the cache and prunes older entries.
func (m *Manager) Store(ctx context.Context, fingerprint, segmentPath string) error {
	if m == nil {
		return nil
	}
	dest, err := m.entryPath(fingerprint)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(m.root, 0o755); err != nil {
		return fmt.Errorf("segcache: create root: %w", err)
	}
	if err := fileutil.PublishFile(segmentPath, dest); err != nil {
		return fmt.Errorf("segcache: store entry: %w", err)
	}
	return m.prune(ctx, dest)
}

// Prune removes least recently used entries until the size budget and the
// free-space floor are both satisfied.
func (m *Manager) Prune(ctx context.Context) error {
	if m == nil {
		return nil
	}
	return m.prune(ctx, "")
}

// Clear removes every entry and returns how many were removed.
func (m *Manager) Clear(ctx context.Context) (int, error) {
	if m == nil {
		return 0, nil
	}
	entries, _, err := m.scan()
	if err != nil {
		return 0, err
	}
	for _, e := range entries {
		if err := os.Remove(e.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return 0, fmt.Errorf("segcache: remove %q: %w", e.path, err)
		}
	}
	m.logger.InfoContext(ctx, "segment cache cleared", logging.Int("entries", len(entries)))
	return len(entries), nil
}

// Stats returns current cache usage and filesystem free-space info.
func (m *Manager) Stats(context.Context) (Stats, error) {
	var s Stats
	if m == nil {
		return s, nil
	}
	entries, total, err := m.scan()
	if err != nil {
		return s, err
	}
	s = Stats{Entries: len(entries), TotalBytes: total, MaxBytes: m.maxBytes, FreeRatio: 1}
	if len(entries) > 0 {
		s.Oldest = entries[0].modTime
		s.Newest = entries[len(entries)-1].modTime
	}
	if err := os.MkdirAll(m.root, 0o755); err != nil {
		return s, fmt.Errorf("segcache: create root: %w", err)
	}
	totalFS, freeFS, err := m.statfs(m.root)
	if err != nil {
		return s, fmt.Errorf("segcache: statfs: %w", err)
	}
	s.TotalFSBytes, s.FreeBytes = totalFS, freeFS
	if totalFS > 0 {
		s.FreeRatio = float64(freeFS) / float64(totalFS)
	}
	return s, nil
}

func (m *Manager) prune(ctx context.Context, keepPath string) error {
	entries, totalSize, err := m.scan()
	if err != nil {
		return err
	}
	for len(entries) > 0 {
		freeOK, err := m.freeSpaceOK()
		if err != nil {
			return err
		}
		if totalSize <= m.maxBytes && freeOK {
			return nil
		}
		oldest := entries[0]
		entries = entries[1:]
		if oldest.path == keepPath {
			continue
		}
		if err := os.Remove(oldest.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("segcache: remove %q: %w", oldest.path, err)
		}
		m.logger.InfoContext(ctx, "pruned segment cache entry",
			logging.String("fingerprint", strings.TrimSuffix(filepath.Base(oldest.path), entryExt)),
			logging.Int64("entry_size_bytes", oldest.size))
		totalSize -= oldest.size
	}
	return nil
}

type cacheEntry struct {
	path    string
	size    int64
	modTime time.Time
}

// scan lists entries oldest first.
func (m *Manager) scan() ([]cacheEntry, int64, error) {
	dirEntries, err := os.ReadDir(m.root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("segcache: list root: %w", err)
	}
	var (
		entries []cacheEntry
		total   int64
	)
	for _, d := range dirEntries {
		if d.IsDir() || filepath.Ext(d.Name()) != entryExt {
			continue
		}
		info, err := d.Info()
		if err != nil {
			logging.WarnWithContext(m.logger, "segcache: skip entry; excluded from stats and pruning", "segcache_entry_skipped",
				logging.String("path", filepath.Join(m.root, d.Name())),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "inspect cache directory permissions or remove the entry"),
				logging.String(logging.FieldImpact, "entry is neither reused nor pruned"))
			continue
		}
		total += info.Size()
		entries = append(entries, cacheEntry{path: filepath.Join(m.root, d.Name()), size: info.Size(), modTime: info.ModTime()})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].modTime.Before(entries[j].modTime)
	})
	return entries, total, nil
}

func (m *Manager) freeSpaceOK() (bool, error) {
	total, free, err := m.statfs(m.root)
	if err != nil {
		return false, fmt.Errorf("segcache: statfs: %w", err)
	}
	if total == 0 {
		return true, nil
	}
	return float64(free)/float64(total) >= freeSpaceFloor, nil
}

func (m *Manager) entryPath(fingerprint string) (string, error) {
	fingerprint = strings.TrimSpace(fingerprint)
	if fingerprint == "" || strings.ContainsAny(fingerprint, `/\.`) {
		return "", fmt.Errorf("segcache: invalid fingerprint %q", fingerprint)
	}
	return filepath.Join(m.root, fingerprint+entryExt), nil
}

func shortFingerprint(fp string) string {
	if len(fp) > 12 {
		return fp[:12]
	}
	return fp
}

func realStatfs(path string) (uint64, uint64, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return 0, 0, err
	}
	return stat.Blocks * uint64(stat.Bsize), stat.Bavail * uint64(stat.Bsize), nil
}
