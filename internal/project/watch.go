package project

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"slidecast/internal/logging"
)

// DefaultDebounce coalesces editor save bursts into one change.
const DefaultDebounce = 500 * time.Millisecond

// Watcher reports changes to a fixed set of files. Parent directories are
// watched so editors that save by rename are still seen.
type Watcher struct {
	fs       *fsnotify.Watcher
	targets  map[string]struct{}
	debounce time.Duration
	logger   *slog.Logger
}

// NewWatcher starts watching paths. Close releases it if Run is never called.
func NewWatcher(paths []string, debounce time.Duration, logger *slog.Logger) (*Watcher, error) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	w := &Watcher{
		fs:       fsw,
		targets:  make(map[string]struct{}, len(paths)),
		debounce: debounce,
		logger:   logging.NewComponentLogger(logger, "watch"),
	}
	dirs := make(map[string]struct{})
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			_ = fsw.Close()
			return nil, fmt.Errorf("resolve %s: %w", p, err)
		}
		w.targets[abs] = struct{}{}
		dirs[filepath.Dir(abs)] = struct{}{}
	}
	for dir := range dirs {
		if err := fsw.Add(dir); err != nil {
			_ = fsw.Close()
			return nil, fmt.Errorf("watch %s: %w", dir, err)
		}
	}
	w.logger.Info("watching files",
		logging.String(logging.FieldEventType, "watch_started"),
		logging.Int("files", len(w.targets)))
	return w, nil
}

// Run calls onChange once per burst of writes to a watched file until ctx
// ends. It closes the watcher on return.
func (w *Watcher) Run(ctx context.Context, onChange func(path string)) error {
	defer w.Close()

	var (
		timer   *time.Timer
		fire    <-chan time.Time
		changed string
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("watch stopped", logging.String(logging.FieldEventType, "watch_stopped"))
			return nil

		case event, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if _, watched := w.targets[filepath.Clean(event.Name)]; !watched {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			w.logger.Debug("file changed",
				logging.String("path", event.Name),
				logging.String("op", event.Op.String()))
			changed = event.Name
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			onChange(changed)

		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			logging.WarnWithContext(w.logger, "file watcher error", "watch_error",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "restart the watch if changes stop being picked up"),
				logging.String(logging.FieldImpact, "a change may be missed"))
		}
	}
}

// Close stops watching.
func (w *Watcher) Close() error {
	return w.fs.Close()
}
