package probecache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"slidecast/internal/config"
	"slidecast/internal/document"
	"slidecast/internal/logging"
	"slidecast/internal/media"
	"slidecast/internal/media/ffprobe"
	"slidecast/internal/store"
)

// PageRasterizer renders one document page.
type PageRasterizer interface {
	Rasterize(ctx context.Context, docPath string, index int, dir string) (document.Page, error)
}

type inspectFunc func(ctx context.Context, binary, path string) (ffprobe.Result, error)

var inspect inspectFunc = ffprobe.Inspect

// SetInspectForTests swaps the ffprobe invocation and returns a restore func.
func SetInspectForTests(fn func(ctx context.Context, binary, path string) (ffprobe.Result, error)) func() {
	prev := inspect
	inspect = fn
	return func() { inspect = prev }
}

type pageKey struct {
	fingerprint string
	index       int
}

// Cache is the asset probe cache. A nil store keeps results in memory only.
type Cache struct {
	store        *store.Store
	ffprobe      string
	probeTimeout time.Duration
	rasterizer   PageRasterizer
	pageDir      string
	workers      int
	logger       *slog.Logger

	mu    sync.Mutex
	media map[string]media.Asset
	pages map[pageKey]document.Page
}

// New builds a cache from configuration.
func New(cfg *config.Config, st *store.Store, rasterizer PageRasterizer, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Cache{
		store:        st,
		ffprobe:      cfg.Tools.FFprobe,
		probeTimeout: cfg.ProbeTimeout(),
		rasterizer:   rasterizer,
		pageDir:      filepath.Join(cfg.Paths.CacheDir, "pages"),
		workers:      cfg.ProbeWorkers(),
		logger:       logging.NewComponentLogger(logger, "probecache"),
		media:        make(map[string]media.Asset),
		pages:        make(map[pageKey]document.Page),
	}
}

// Media returns probed metadata for the file at path. Only a stat is needed
// on a hit.
func (c *Cache) Media(ctx context.Context, path string) (media.Asset, error) {
	id, err := media.IdentityOf(path)
	if err != nil {
		return media.Asset{}, err
	}
	key := id.Key()

	c.mu.Lock()
	asset, ok := c.media[key]
	c.mu.Unlock()
	if ok {
		return asset, nil
	}

	if c.store != nil {
		payload, found, err := c.store.MediaProbe(ctx, key)
		if err != nil {
			c.logger.Warn("media probe cache read failed",
				logging.String(logging.FieldEventType, "probe_cache_read_failed"),
				logging.String("path", id.Path),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "run `slidecast cache clear` if this persists"),
				logging.String(logging.FieldImpact, "media will be re-probed"))
		} else if found {
			var cached media.Asset
			if err := json.Unmarshal(payload, &cached); err == nil {
				c.remember(key, cached)
				c.logger.Debug("media probe cache hit", logging.String("path", id.Path))
				return cached, nil
			}
		}
	}

	probeCtx := ctx
	if c.probeTimeout > 0 {
		var cancel context.CancelFunc
		probeCtx, cancel = context.WithTimeout(ctx, c.probeTimeout)
		defer cancel()
	}
	result, err := inspect(probeCtx, c.ffprobe, id.Path)
	if err != nil {
		return media.Asset{}, fmt.Errorf("probe %s: %w", filepath.Base(id.Path), err)
	}
	asset, err = media.FromProbe(id, result)
	if err != nil {
		return media.Asset{}, err
	}
	c.remember(key, asset)

	if c.store != nil {
		if payload, err := json.Marshal(asset); err == nil {
			if err := c.store.SaveMediaProbe(ctx, key, id.Path, payload); err != nil {
				c.logger.Debug("media probe cache write failed", logging.Error(err))
			}
		}
	}
	c.logger.Debug("media probed",
		logging.String("path", id.Path),
		logging.String("kind", string(asset.Kind)),
		logging.Seconds("duration_seconds", asset.Duration),
		logging.Int("audio_streams", len(asset.AudioStreams)))
	return asset, nil
}

func (c *Cache) remember(key string, asset media.Asset) {
	c.mu.Lock()
	c.media[key] = asset
	c.mu.Unlock()
}

// Page returns the raster, thumbnail, and perceptual hash of one page.
func (c *Cache) Page(ctx context.Context, doc document.Info, index int) (document.Page, error) {
	if index < 0 || index >= doc.PageCount() {
		return document.Page{}, fmt.Errorf("page %d out of range (document has %d pages)", index+1, doc.PageCount())
	}
	key := pageKey{fingerprint: doc.Fingerprint, index: index}

	c.mu.Lock()
	page, ok := c.pages[key]
	c.mu.Unlock()
	if ok && fileExists(page.ImagePath) {
		return page, nil
	}

	if c.store != nil {
		payload, found, err := c.store.PageRaster(ctx, doc.Fingerprint, index)
		if err == nil && found {
			var cached document.Page
			if err := json.Unmarshal(payload, &cached); err == nil && cached.Digest != "" && fileExists(cached.ImagePath) {
				c.rememberPage(key, cached)
				return cached, nil
			}
		}
	}

	if c.rasterizer == nil {
		return document.Page{}, fmt.Errorf("no page rasterizer configured")
	}
	dir := filepath.Join(c.pageDir, shortFingerprint(doc.Fingerprint))
	page, err := c.rasterizer.Rasterize(ctx, doc.Path, index, dir)
	if err != nil {
		return document.Page{}, err
	}
	c.rememberPage(key, page)
	if c.store != nil {
		if payload, err := json.Marshal(page); err == nil {
			if err := c.store.SavePageRaster(ctx, doc.Fingerprint, index, payload); err != nil {
				c.logger.Debug("page raster cache write failed", logging.Error(err))
			}
		}
	}
	return page, nil
}

func (c *Cache) rememberPage(key pageKey, page document.Page) {
	c.mu.Lock()
	c.pages[key] = page
	c.mu.Unlock()
}

func shortFingerprint(fp string) string {
	if len(fp) > 16 {
		return fp[:16]
	}
	if fp == "" {
		return "unknown"
	}
	return fp
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
