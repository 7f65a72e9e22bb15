package project

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"slidecast/internal/plan"
	"slidecast/internal/services"
)

const sampleProject = `
[paths]
document = "deck.pdf"
output = "out/talk.mp4"

[parameters]
resolution = "1280x720"
fps = 30
codec = "h264"
prefer_hardware = false
chapters = true
youtube_chapters = false
default_duration = 4.0

[parameters.encoding]
mode = "vbr"
value = 6000
passes = 2

[parameters.audio]
bitrate = "192k"
sample_rate = 48000
channels = 2

[parameters.loudness]
mode = "two-pass"
fallback = true

[parameters.watermark]
text = "DRAFT"
opacity = 40
size = 8

[[slides]]
material = "silent"
chapter_title = "Intro"

[[slides]]
material = "audio"
media = "media/narration.m4a"
duration = 12.5
trim = "cut"

[[slides]]
material = "video"
media = "/abs/clip.mp4"
position = "bottom right"
scale = 25
effects = ["circle", "grayscale"]
phash = "p:8000000000000000"
`

func writeProject(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "talk"+FileExtension)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write project: %v", err)
	}
	return path
}

func TestLoadResolvesPathsAndAssignments(t *testing.T) {
	path := writeProject(t, sampleProject)
	p, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	dir := filepath.Dir(path)

	if got := p.DocumentPath(); got != filepath.Join(dir, "deck.pdf") {
		t.Fatalf("document = %s", got)
	}
	if got := p.OutputPath(); got != filepath.Join(dir, "out", "talk.mp4") {
		t.Fatalf("output = %s", got)
	}

	want := []plan.Assignment{
		{Page: 0, Material: plan.MaterialSilent, ChapterTitle: "Intro", Position: plan.PositionCenter},
		{Page: 1, Material: plan.MaterialAudio, MediaPath: filepath.Join(dir, "media", "narration.m4a"), Duration: 12.5, Trim: plan.TrimCut, Position: plan.PositionCenter},
		{
			Page: 2, Material: plan.MaterialVideo, MediaPath: "/abs/clip.mp4", Position: plan.PositionBottomRight,
			Scale: 25, Effects: []plan.Effect{plan.EffectCircle, plan.EffectGrayscale}, PageHash: "p:8000000000000000",
		},
	}
	if diff := cmp.Diff(want, p.Assignments()); diff != "" {
		t.Fatalf("assignments mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{filepath.Join(dir, "media", "narration.m4a"), "/abs/clip.mp4"}, p.MediaPaths()); diff != "" {
		t.Fatalf("media paths mismatch (-want +got):\n%s", diff)
	}
	if len(p.Warnings) != 1 || !strings.Contains(p.Warnings[0], "no integrity hash") {
		t.Fatalf("warnings = %v", p.Warnings)
	}
}

func TestParamsConversion(t *testing.T) {
	p, err := Load(writeProject(t, sampleProject))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	params, err := p.Params()
	if err != nil {
		t.Fatalf("Params: %v", err)
	}
	if params.Width != 1280 || params.Height != 720 || params.FPS != 30 {
		t.Fatalf("geometry = %dx%d@%d", params.Width, params.Height, params.FPS)
	}
	if params.Encoding != (plan.Encoding{Mode: plan.ModeVBR, Value: 6000, Passes: 2}) {
		t.Fatalf("encoding = %+v", params.Encoding)
	}
	if params.Loudness != plan.LoudnessTwoPass || !params.LoudnessFallback {
		t.Fatalf("loudness = %s fallback = %v", params.Loudness, params.LoudnessFallback)
	}
	if params.Watermark.Text != "DRAFT" || params.Watermark.Color != "white" {
		t.Fatalf("watermark = %+v", params.Watermark)
	}
	if report := plan.ValidateParams(params); report.HasErrors() {
		t.Fatalf("converted params invalid: %v", report.Problems)
	}
}

func TestSaveRoundTripStampsHash(t *testing.T) {
	dir := t.TempDir()
	doc := filepath.Join(dir, "slides", "deck.pdf")
	p := Scaffold(dir, doc, 3, plan.DefaultParams())
	p.RecordPageHashes([]string{"p:1", "", "p:3"})

	path := filepath.Join(dir, "deck"+FileExtension)
	if err := p.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if p.IntegrityHash == "" {
		t.Fatal("Save did not stamp the integrity hash")
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(loaded.Warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", loaded.Warnings)
	}
	if loaded.Paths.Document != filepath.Join("slides", "deck.pdf") {
		t.Fatalf("document stored as %q, want relative", loaded.Paths.Document)
	}
	if got := loaded.DocumentPath(); got != doc {
		t.Fatalf("document resolves to %s, want %s", got, doc)
	}
	if got := loaded.OutputPath(); got != filepath.Join(dir, "deck.mp4") {
		t.Fatalf("default output = %s", got)
	}
	var hashes []string
	for _, s := range loaded.Slides {
		hashes = append(hashes, s.PHash)
	}
	if diff := cmp.Diff([]string{"p:1", "", "p:3"}, hashes); diff != "" {
		t.Fatalf("page hashes mismatch (-want +got):\n%s", diff)
	}
	params, err := loaded.Params()
	if err != nil {
		t.Fatalf("Params: %v", err)
	}
	if diff := cmp.Diff(plan.DefaultParams(), params); diff != "" {
		t.Fatalf("params did not round-trip (-want +got):\n%s", diff)
	}
}

func TestLoadFlagsHandEdits(t *testing.T) {
	dir := t.TempDir()
	p := Scaffold(dir, filepath.Join(dir, "deck.pdf"), 2, plan.DefaultParams())
	path := filepath.Join(dir, "deck"+FileExtension)
	if err := p.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	edited := strings.Replace(string(data), "fps = 30", "fps = 24", 1)
	if edited == string(data) {
		t.Fatalf("fixture did not contain fps = 30:\n%s", data)
	}
	if err := os.WriteFile(path, []byte(edited), 0o644); err != nil {
		t.Fatal(err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(loaded.Warnings) != 1 || !strings.Contains(loaded.Warnings[0], "edited by hand") {
		t.Fatalf("warnings = %v", loaded.Warnings)
	}
	if loaded.Parameters.FPS != 24 {
		t.Fatalf("edited value not loaded: fps = %d", loaded.Parameters.FPS)
	}
}

func TestLoadRejectsInvalidProjects(t *testing.T) {
	base := strings.Replace(sampleProject, `[[slides]]
material = "silent"
chapter_title = "Intro"
`, "", 1)
	tests := map[string]struct {
		body string
		want string
	}{
		"unknown material": {
			body: base + "\n[[slides]]\nmaterial = \"slideshow\"\n",
			want: "slides[2].material",
		},
		"media missing": {
			body: base + "\n[[slides]]\nmaterial = \"audio\"\n",
			want: "slides[2].media is required",
		},
		"bad effect": {
			body: base + "\n[[slides]]\nmaterial = \"video\"\nmedia = \"x.mp4\"\neffects = [\"sparkle\"]\n",
			want: "slides[2].effects[0]",
		},
		"bad resolution": {
			body: strings.Replace(sampleProject, `resolution = "1280x720"`, `resolution = "720p"`, 1),
			want: "parameters.resolution",
		},
		"bad passes": {
			body: strings.Replace(sampleProject, "passes = 2", "passes = 3", 1),
			want: "parameters.encoding.passes",
		},
		"unknown key": {
			body: sampleProject + "\n[extras]\nfoo = 1\n",
			want: "parse",
		},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeProject(t, tc.body))
			if !errors.Is(err, services.ErrValidation) {
				t.Fatalf("error = %v, want ErrValidation", err)
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent"+FileExtension))
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}

func TestWatcherDebouncesWrites(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "talk"+FileExtension)
	if err := os.WriteFile(target, []byte("a"), 0o644); err != nil {
		t.Fatal(err)
	}
	w, err := NewWatcher([]string{target}, 50*time.Millisecond, nil)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	changes := make(chan string, 8)
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx, func(path string) { changes <- path }) }()

	for i := range 3 {
		if err := os.WriteFile(target, []byte(strings.Repeat("b", i+2)), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(filepath.Join(dir, "unrelated.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case got := <-changes:
		if got != target {
			t.Fatalf("change reported for %s, want %s", got, target)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no change reported")
	}
	select {
	case extra := <-changes:
		t.Fatalf("burst produced a second change: %s", extra)
	case <-time.After(200 * time.Millisecond):
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}
}
