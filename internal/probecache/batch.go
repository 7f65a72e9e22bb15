package probecache

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"slidecast/internal/document"
	"slidecast/internal/logging"
	"slidecast/internal/media"
)

// Failure records one asset that could not be probed.
type Failure struct {
	// Page is the 0-based page index, or -1 for media failures.
	Page int
	Path string
	Err  error
}

func (f Failure) String() string {
	if f.Page >= 0 {
		return fmt.Sprintf("page %d: %v", f.Page+1, f.Err)
	}
	return fmt.Sprintf("%s: %v", f.Path, f.Err)
}

// Result is the outcome of probing a whole job's inputs.
type Result struct {
	Pages    []document.Page
	Media    map[string]media.Asset
	Failures []Failure
}

// Failed reports whether any asset failed.
func (r Result) Failed() bool {
	return len(r.Failures) > 0
}

// ProbeAll rasterizes every page of doc and probes every media path. One
// asset failing does not stop the others; the only returned error is context
// cancellation. Pages that failed are absent from Result.Pages, which is
// ordered by index.
func (c *Cache) ProbeAll(ctx context.Context, doc document.Info, mediaPaths []string, progress func(done, total int)) (Result, error) {
	unique := dedupe(mediaPaths)
	total := doc.PageCount() + len(unique)
	result := Result{Media: make(map[string]media.Asset, len(unique))}

	var (
		mu   sync.Mutex
		done int
	)
	record := func(fn func()) {
		mu.Lock()
		fn()
		done++
		current := done
		mu.Unlock()
		if progress != nil {
			progress(current, total)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, c.workers))
	for index := range doc.PageCount() {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			page, err := c.Page(gctx, doc, index)
			record(func() {
				if err != nil {
					result.Failures = append(result.Failures, Failure{Page: index, Path: doc.Path, Err: err})
					return
				}
				result.Pages = append(result.Pages, page)
			})
			return nil
		})
	}
	for _, path := range unique {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			asset, err := c.Media(gctx, path)
			record(func() {
				if err != nil {
					result.Failures = append(result.Failures, Failure{Page: -1, Path: path, Err: err})
					return
				}
				result.Media[path] = asset
			})
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	sort.Slice(result.Pages, func(i, j int) bool { return result.Pages[i].Index < result.Pages[j].Index })
	sort.SliceStable(result.Failures, func(i, j int) bool {
		if result.Failures[i].Page != result.Failures[j].Page {
			return result.Failures[i].Page < result.Failures[j].Page
		}
		return result.Failures[i].Path < result.Failures[j].Path
	})
	for _, failure := range result.Failures {
		logging.WarnWithContext(c.logger, "asset probe failed", "probe_failed",
			logging.String("asset", failure.String()),
			logging.String(logging.FieldErrorHint, "check that the file exists and is a supported format"),
			logging.String(logging.FieldImpact, "slides using this asset cannot be planned"))
	}
	return result, nil
}

func dedupe(paths []string) []string {
	seen := make(map[string]struct{}, len(paths))
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if p == "" {
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}
