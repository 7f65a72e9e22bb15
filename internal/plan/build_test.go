package plan

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"slidecast/internal/chapters"
	"slidecast/internal/document"
	"slidecast/internal/encoders"
	"slidecast/internal/media"
	"slidecast/internal/services"
)

const (
	narrationPath = "/media/narration.m4a"
	clipPath      = "/media/clip.mp4"
)

var libx264 = encoders.Profile{Name: "libx264", Family: encoders.FamilyH264, Vendor: encoders.VendorSoftware, Usable: true}

func testInputs(pageCount int) Inputs {
	in := Inputs{
		DocumentPath: "/decks/review.pdf",
		PageCount:    pageCount,
		Media: map[string]media.Asset{
			narrationPath: {
				Identity:     media.Identity{Path: narrationPath},
				Kind:         media.KindAudio,
				Duration:     8.2,
				AudioStreams: []media.AudioStream{{StreamIndex: 0, Codec: "aac", SampleRate: 48000, Channels: 2}},
			},
			clipPath: {
				Identity:     media.Identity{Path: clipPath},
				Kind:         media.KindVideo,
				Duration:     6.0,
				AudioStreams: []media.AudioStream{{StreamIndex: 1, Codec: "aac", SampleRate: 44100, Channels: 2}},
				Video: &media.VideoStream{
					StreamIndex: 0, Codec: "h264", Width: 1920, Height: 1080,
					DisplayAspect: 16.0 / 9.0, FrameRate: 30,
				},
			},
		},
	}
	for i := range pageCount {
		in.Pages = append(in.Pages, document.Page{
			Index:     i,
			ImagePath: fmt.Sprintf("/scratch/pages/page-%04d.png", i+1),
			Width:     1920,
			Height:    1080,
		})
	}
	return in
}

func threeSlideAssignments() []Assignment {
	return []Assignment{
		{Page: 0, Material: MaterialSilent},
		{Page: 1, Material: MaterialAudio, MediaPath: narrationPath},
		{Page: 2, Material: MaterialVideo, MediaPath: clipPath, Position: PositionBottomRight, Scale: 25, Effects: []Effect{EffectCircle}},
	}
}

func scenarioParams() Params {
	p := DefaultParams()
	p.DefaultDuration = 5
	return p
}

func errorMessages(r Report) []string {
	var out []string
	for _, p := range r.Filter(SeverityError) {
		out = append(out, p.String())
	}
	return out
}

func TestBuildThreeSlideDeck(t *testing.T) {
	result, report := Build(testInputs(3), threeSlideAssignments(), scenarioParams(), libx264, nil)
	if report.HasErrors() {
		t.Fatalf("unexpected errors: %v", errorMessages(report))
	}

	type summary struct {
		Page     int
		Kind     Material
		Duration float64
	}
	var got []summary
	for _, s := range result.Slides {
		got = append(got, summary{s.Page, s.Kind(), s.Duration})
	}
	want := []summary{
		{0, MaterialSilent, 5},
		{1, MaterialAudio, 8.2},
		{2, MaterialVideo, 6.0},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("slides mismatch (-want +got):\n%s", diff)
	}
	if total := result.TotalDuration(); math.Abs(total-19.2) > 1e-9 {
		t.Fatalf("expected total 19.2s, got %v", total)
	}

	var starts []int64
	for _, e := range chapters.Compute(result.ChapterSlides()) {
		starts = append(starts, e.StartMillis())
	}
	if diff := cmp.Diff([]int64{0, 5000, 13200}, starts); diff != "" {
		t.Fatalf("chapter starts mismatch (-want +got):\n%s", diff)
	}

	video, ok := result.Slides[2].Body.(Video)
	if !ok {
		t.Fatalf("expected Video body, got %T", result.Slides[2].Body)
	}
	wantGeometry := Geometry{Position: PositionBottomRight, Width: 480, Height: 270, X: 1440, Y: 810}
	if diff := cmp.Diff(wantGeometry, video.Geometry); diff != "" {
		t.Fatalf("geometry mismatch (-want +got):\n%s", diff)
	}
	if video.Effects.Shape != EffectCircle {
		t.Fatalf("expected circle shape effect, got %q", video.Effects.Shape)
	}
	if video.Stream == nil || video.Stream.StreamIndex != 1 {
		t.Fatalf("expected audio stream index 1, got %+v", video.Stream)
	}

	var resampled bool
	for _, p := range report.Filter(SeverityNotice) {
		if p.Page == 2 && strings.Contains(p.Message, "44100 Hz to 48000 Hz") {
			resampled = true
		}
	}
	if !resampled {
		t.Fatalf("expected a resample notice, got %+v", report.Problems)
	}
}

func TestBuildCollectsEveryProblem(t *testing.T) {
	in := testInputs(4)
	in.MediaErrors = map[string]error{"/media/broken.mp3": errors.New("invalid data found")}
	assignments := []Assignment{
		{Page: 0, Material: MaterialSilent, Duration: 150},
		{Page: 1, Material: MaterialAudio, MediaPath: "/media/broken.mp3"},
		{Page: 1, Material: MaterialSilent},
		{Page: 7, Material: MaterialSilent},
	}
	_, report := Build(in, assignments, scenarioParams(), libx264, nil)
	want := []string{
		"error: assignment for page 8 but the document has 4 pages",
		"error: page 1: silent duration 150.00s outside 1-100s",
		"error: page 2: page has more than one material assignment",
		"error: page 2: could not probe /media/broken.mp3: invalid data found",
		"error: page 3: no material assigned",
		"error: page 4: no material assigned",
	}
	got := errorMessages(report)
	sortStrings := cmpopts.SortSlices(func(a, b string) bool { return a < b })
	if diff := cmp.Diff(want, got, sortStrings); diff != "" {
		t.Fatalf("problems mismatch (-want +got):\n%s", diff)
	}
	if err := report.Err(); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestBuildTrimPolicy(t *testing.T) {
	tests := []struct {
		name      string
		duration  float64
		trim      Trim
		wantOK    bool
		wantTrim  Trim
		wantDur   float64
		wantError string
	}{
		{name: "media length", wantOK: true, wantTrim: TrimNone, wantDur: 8.2},
		{name: "matching override", duration: 8.22, wantOK: true, wantTrim: TrimNone, wantDur: 8.2},
		{name: "shorter without trim", duration: 4, wantError: `set trim = "cut"`},
		{name: "longer without trim", duration: 12, wantError: `set trim = "pad"`},
		{name: "cut", duration: 4, trim: TrimCut, wantOK: true, wantTrim: TrimCut, wantDur: 4},
		{name: "cut beyond media", duration: 9, trim: TrimCut, wantError: "exceeds the media length"},
		{name: "pad", duration: 12, trim: TrimPad, wantOK: true, wantTrim: TrimPad, wantDur: 12},
		{name: "pad shorter", duration: 4, trim: TrimPad, wantError: "pad duration"},
		{name: "unknown", duration: 4, trim: "stretch", wantError: "unknown trim"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assignments := []Assignment{{Page: 0, Material: MaterialAudio, MediaPath: narrationPath, Duration: tt.duration, Trim: tt.trim}}
			result, report := Build(testInputs(1), assignments, scenarioParams(), libx264, nil)
			if !tt.wantOK {
				msgs := strings.Join(errorMessages(report), "\n")
				if !strings.Contains(msgs, tt.wantError) {
					t.Fatalf("expected error containing %q, got %q", tt.wantError, msgs)
				}
				if len(result.Slides) != 0 {
					t.Fatalf("expected no slides, got %d", len(result.Slides))
				}
				return
			}
			if report.HasErrors() {
				t.Fatalf("unexpected errors: %v", errorMessages(report))
			}
			slide := result.Slides[0]
			audio := slide.Body.(Audio)
			if slide.Duration != tt.wantDur || audio.Trim != tt.wantTrim {
				t.Fatalf("got duration %v trim %q, want %v %q", slide.Duration, audio.Trim, tt.wantDur, tt.wantTrim)
			}
		})
	}
}

func TestBuildRejectsOversizedOverlay(t *testing.T) {
	params := scenarioParams()
	params.Width, params.Height = 640, 480
	assignments := []Assignment{{Page: 0, Material: MaterialVideo, MediaPath: clipPath, Scale: 100}}
	_, report := Build(testInputs(1), assignments, params, libx264, nil)
	msgs := strings.Join(errorMessages(report), "\n")
	if !strings.Contains(msgs, "does not fit the 640x480 frame") {
		t.Fatalf("expected geometry error, got %q", msgs)
	}
}

func TestBuildRejectsConflictingEffects(t *testing.T) {
	assignments := []Assignment{{Page: 0, Material: MaterialVideo, MediaPath: clipPath, Effects: []Effect{EffectCircle, EffectChroma}}}
	_, report := Build(testInputs(1), assignments, scenarioParams(), libx264, nil)
	msgs := strings.Join(errorMessages(report), "\n")
	if !strings.Contains(msgs, "both shape effects") {
		t.Fatalf("expected effect conflict, got %q", msgs)
	}
}

func TestBuildWarnsAboutVideoSource(t *testing.T) {
	in := testInputs(1)
	clip := in.Media[clipPath]
	clip.Video = &media.VideoStream{Width: 640, Height: 360, DisplayAspect: 16.0 / 9.0, FrameRate: 59.94, VariableRate: true, Interlaced: true, Rotation: 180}
	in.Media[clipPath] = clip
	_, report := Build(in, []Assignment{{Page: 0, Material: MaterialVideo, MediaPath: clipPath}}, scenarioParams(), libx264, nil)
	if report.HasErrors() {
		t.Fatalf("unexpected errors: %v", errorMessages(report))
	}
	if got := len(report.Filter(SeverityWarning)); got != 3 {
		t.Fatalf("expected upscale, frame rate, and VFR warnings, got %+v", report.Problems)
	}
	notices := 0
	for _, p := range report.Filter(SeverityNotice) {
		if strings.Contains(p.Message, "deinterlaced") || strings.Contains(p.Message, "rotated 180") {
			notices++
		}
	}
	if notices != 2 {
		t.Fatalf("expected interlace and rotation notices, got %+v", report.Problems)
	}
}

func TestBuildVideoToolboxQualityMode(t *testing.T) {
	vt := encoders.Profile{Name: "h264_videotoolbox", Family: encoders.FamilyH264, Vendor: encoders.VendorVideoToolbox, Hardware: true, Usable: true}
	_, report := Build(testInputs(1), []Assignment{{Page: 0}}, scenarioParams(), vt, nil)
	msgs := strings.Join(errorMessages(report), "\n")
	if !strings.Contains(msgs, "does not support quality mode") {
		t.Fatalf("expected quality mode error, got %q", msgs)
	}
}

func TestBuildRecordsSubstitution(t *testing.T) {
	sub := &encoders.Substitution{Requested: "h264_nvenc", Selected: "libx264", Reason: "test encode failed"}
	result, report := Build(testInputs(1), []Assignment{{Page: 0}}, scenarioParams(), libx264, sub)
	if result.Substitution != sub {
		t.Fatal("expected substitution on the plan")
	}
	notices := report.Filter(SeverityNotice)
	if len(notices) == 0 || !strings.Contains(notices[0].Message, "using libx264") {
		t.Fatalf("expected substitution notice, got %+v", report.Problems)
	}
}

func TestBuildYouTubeChapterRules(t *testing.T) {
	params := scenarioParams()
	params.YouTubeChapters = true
	_, report := Build(testInputs(3), threeSlideAssignments(), params, libx264, nil)
	msgs := strings.Join(errorMessages(report), "\n")
	if !strings.Contains(msgs, `chapter "Slide 1" is 5.0s long`) {
		t.Fatalf("expected short chapter error, got %q", msgs)
	}
}
