package watermark

import (
	"context"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"slidecast/internal/ffmpeg"
	"slidecast/internal/testsupport"
)

func opaquePixels(img *image.NRGBA, r image.Rectangle) int {
	n := 0
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			if img.NRGBAAt(x, y).A > 0 {
				n++
			}
		}
	}
	return n
}

func TestRenderCentersText(t *testing.T) {
	img, err := Render(Config{Text: "DRAFT", Opacity: 100, Color: "red", Size: 20}, 320, 180)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if opaquePixels(img, image.Rect(100, 60, 220, 120)) == 0 {
		t.Fatal("expected text pixels in the centre")
	}
	if opaquePixels(img, image.Rect(0, 0, 40, 40)) != 0 {
		t.Fatal("expected a transparent corner")
	}
	for y := 60; y < 120; y++ {
		for x := 100; x < 220; x++ {
			if c := img.NRGBAAt(x, y); c.A > 0 && (c.G != 0 || c.B != 0) {
				t.Fatalf("expected pure red text, got %+v at %d,%d", c, x, y)
			}
		}
	}
}

func TestRenderTilesAcrossFrame(t *testing.T) {
	img, err := Render(Config{Text: "CONFIDENTIAL", Opacity: 60, Size: 8, Tile: true, Rotation: 45}, 400, 300)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	quadrants := []image.Rectangle{
		image.Rect(0, 0, 200, 150), image.Rect(200, 0, 400, 150),
		image.Rect(0, 150, 200, 300), image.Rect(200, 150, 400, 300),
	}
	for _, q := range quadrants {
		if opaquePixels(img, q) == 0 {
			t.Fatalf("expected tiled text in quadrant %v", q)
		}
	}
}

func TestRenderDisabledIsTransparent(t *testing.T) {
	img, err := Render(Config{}, 64, 36)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if opaquePixels(img, img.Bounds()) != 0 {
		t.Fatal("expected a fully transparent canvas")
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		ok   bool
	}{
		{"disabled ignores ranges", Config{Opacity: 500}, true},
		{"valid", Config{Text: "x", Opacity: 40, Color: "Green", Size: 10, Rotation: -45}, true},
		{"opacity", Config{Text: "x", Opacity: 101, Color: "white", Size: 10}, false},
		{"size", Config{Text: "x", Opacity: 50, Color: "white", Size: 0}, false},
		{"color", Config{Text: "x", Opacity: 50, Color: "purple", Size: 10}, false},
		{"rotation", Config{Text: "x", Opacity: 50, Color: "white", Size: 10, Rotation: 30}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err == nil) != tt.ok {
				t.Fatalf("Validate() = %v, want ok=%v", err, tt.ok)
			}
		})
	}
}

func TestConfigRGBA(t *testing.T) {
	c := Config{Color: "green", Opacity: 50}.RGBA()
	if c.R != 0 || c.G != 128 || c.B != 0 || c.A != 127 {
		t.Fatalf("unexpected colour %+v", c)
	}
}

func TestCompositorOverlaysAndCopiesAudio(t *testing.T) {
	tool := testsupport.FakeFFmpeg(t, "")
	work := t.TempDir()
	comp := NewCompositor(ffmpeg.NewRunner(tool.Path, nil), 0, nil)
	out := filepath.Join(work, "watermarked.mp4")

	got, err := comp.Apply(context.Background(), Config{Text: "DRAFT", Opacity: 50, Size: 5}, Job{
		Input:      filepath.Join(work, "normalized.mp4"),
		Output:     out,
		WorkDir:    work,
		Width:      640,
		Height:     360,
		EncodeArgs: []string{"-c:v", "libx264"},
	})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if got != out {
		t.Fatalf("expected output %s, got %s", out, got)
	}
	calls := tool.Joined(t)
	if len(calls) != 1 {
		t.Fatalf("expected one ffmpeg call, got %d", len(calls))
	}
	for _, want := range []string{"overlay=0:0", "-map 0:a?", "-c:a copy", "-c:v libx264", "+faststart"} {
		if !strings.Contains(calls[0], want) {
			t.Fatalf("expected %q in %q", want, calls[0])
		}
	}

	f, err := os.Open(filepath.Join(work, "watermark.png"))
	if err != nil {
		t.Fatalf("open overlay: %v", err)
	}
	defer f.Close()
	cfg, err := png.DecodeConfig(f)
	if err != nil {
		t.Fatalf("decode overlay: %v", err)
	}
	if cfg.Width != 640 || cfg.Height != 360 {
		t.Fatalf("expected 640x360 overlay, got %dx%d", cfg.Width, cfg.Height)
	}
}

func TestCompositorPassthroughWhenDisabled(t *testing.T) {
	tool := testsupport.FakeFFmpeg(t, "")
	comp := NewCompositor(ffmpeg.NewRunner(tool.Path, nil), 0, nil)
	got, err := comp.Apply(context.Background(), Config{}, Job{Input: "/scratch/normalized.mp4", Output: "/scratch/out.mp4"})
	if err != nil || got != "/scratch/normalized.mp4" {
		t.Fatalf("expected passthrough, got %q, %v", got, err)
	}
	if calls := tool.Invocations(t); len(calls) != 0 {
		t.Fatalf("expected no ffmpeg calls, got %d", len(calls))
	}
}
