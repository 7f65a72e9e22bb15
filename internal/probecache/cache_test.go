package probecache_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"slidecast/internal/document"
	"slidecast/internal/media/ffprobe"
	"slidecast/internal/probecache"
	"slidecast/internal/testsupport"
)

type fakeRasterizer struct {
	calls atomic.Int32
	fail  map[int]bool
}

func (f *fakeRasterizer) Rasterize(_ context.Context, _ string, index int, dir string) (document.Page, error) {
	f.calls.Add(1)
	if f.fail[index] {
		return document.Page{}, errors.New("raster failed")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return document.Page{}, err
	}
	path := filepath.Join(dir, fmt.Sprintf("page-%04d.png", index+1))
	if err := os.WriteFile(path, []byte("png"), 0o644); err != nil {
		return document.Page{}, err
	}
	return document.Page{Index: index, ImagePath: path, Width: 1280, Height: 720, Fingerprint: "p:0000000000000000", Digest: fmt.Sprintf("digest-%d", index)}, nil
}

func audioResult(duration string) ffprobe.Result {
	return ffprobe.Result{
		Streams: []ffprobe.Stream{{Index: 0, CodecType: "audio", CodecName: "mp3", SampleRate: "44100", Channels: 2}},
		Format:  ffprobe.Format{Duration: duration},
	}
}

func TestMediaCacheHitSkipsProbe(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	var calls atomic.Int32
	restore := probecache.SetInspectForTests(func(_ context.Context, _, path string) (ffprobe.Result, error) {
		calls.Add(1)
		return audioResult("8.2"), nil
	})
	t.Cleanup(restore)

	path := filepath.Join(testsupport.BaseDir(cfg), "narration.mp3")
	testsupport.WriteFile(t, path, 128)

	first := probecache.New(cfg, st, nil, nil)
	asset, err := first.Media(context.Background(), path)
	if err != nil {
		t.Fatalf("Media failed: %v", err)
	}
	if asset.Duration != 8.2 {
		t.Fatalf("unexpected duration %v", asset.Duration)
	}
	if _, err := first.Media(context.Background(), path); err != nil {
		t.Fatal(err)
	}

	// A fresh process-level cache still hits the persistent store.
	second := probecache.New(cfg, st, nil, nil)
	again, err := second.Media(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(asset, again); diff != "" {
		t.Fatalf("cached asset differs (-first +second):\n%s", diff)
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("expected a single ffprobe call, got %d", got)
	}

	// Changing the identity forces a re-probe.
	later := time.Now().Add(time.Hour)
	if err := os.Chtimes(path, later, later); err != nil {
		t.Fatal(err)
	}
	if _, err := second.Media(context.Background(), path); err != nil {
		t.Fatal(err)
	}
	if got := calls.Load(); got != 2 {
		t.Fatalf("expected re-probe after identity change, got %d calls", got)
	}
}

func TestPageCacheReusesRasters(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	raster := &fakeRasterizer{}
	doc := document.Info{Path: "/deck.pdf", Fingerprint: "abc123", Pages: make([]document.PageBox, 2)}

	cache := probecache.New(cfg, st, raster, nil)
	page, err := cache.Page(context.Background(), doc, 1)
	if err != nil {
		t.Fatalf("Page failed: %v", err)
	}
	if page.Index != 1 {
		t.Fatalf("unexpected page %+v", page)
	}
	other := probecache.New(cfg, st, raster, nil)
	if _, err := other.Page(context.Background(), doc, 1); err != nil {
		t.Fatal(err)
	}
	if got := raster.calls.Load(); got != 1 {
		t.Fatalf("expected one rasterization, got %d", got)
	}

	// A missing raster file is regenerated.
	if err := os.Remove(page.ImagePath); err != nil {
		t.Fatal(err)
	}
	if _, err := other.Page(context.Background(), doc, 1); err != nil {
		t.Fatal(err)
	}
	if got := raster.calls.Load(); got != 2 {
		t.Fatalf("expected re-rasterization, got %d", got)
	}

	if _, err := cache.Page(context.Background(), doc, 5); err == nil {
		t.Fatal("expected out-of-range error")
	}
}

func TestProbeAllCollectsFailures(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	restore := probecache.SetInspectForTests(func(_ context.Context, _, path string) (ffprobe.Result, error) {
		if filepath.Base(path) == "broken.wav" {
			return ffprobe.Result{}, errors.New("invalid data found")
		}
		return audioResult("5"), nil
	})
	t.Cleanup(restore)

	base := testsupport.BaseDir(cfg)
	good := filepath.Join(base, "good.wav")
	broken := filepath.Join(base, "broken.wav")
	testsupport.WriteFile(t, good, 64)
	testsupport.WriteFile(t, broken, 64)
	missing := filepath.Join(base, "missing.wav")

	raster := &fakeRasterizer{fail: map[int]bool{2: true}}
	doc := document.Info{Path: "/deck.pdf", Fingerprint: "fp", Pages: make([]document.PageBox, 4)}
	cache := probecache.New(cfg, nil, raster, nil)

	var lastDone, lastTotal int
	result, err := cache.ProbeAll(context.Background(), doc, []string{good, broken, good, missing}, func(done, total int) {
		lastDone, lastTotal = done, total
	})
	if err != nil {
		t.Fatalf("ProbeAll failed: %v", err)
	}
	if lastDone != 7 || lastTotal != 7 {
		t.Fatalf("unexpected progress %d/%d", lastDone, lastTotal)
	}
	if len(result.Pages) != 3 || result.Pages[2].Index != 3 {
		t.Fatalf("unexpected pages: %+v", result.Pages)
	}
	if _, ok := result.Media[good]; !ok || len(result.Media) != 1 {
		t.Fatalf("unexpected media: %+v", result.Media)
	}
	if len(result.Failures) != 3 || result.Failures[0].Page != -1 || result.Failures[2].Page != 2 {
		t.Fatalf("unexpected failures: %+v", result.Failures)
	}
	if !result.Failed() {
		t.Fatal("expected Failed to report true")
	}
}

func TestProbeAllHonoursCancellation(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	doc := document.Info{Path: "/deck.pdf", Fingerprint: "fp", Pages: make([]document.PageBox, 3)}
	_, err := probecache.New(cfg, nil, &fakeRasterizer{}, nil).ProbeAll(ctx, doc, nil, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
