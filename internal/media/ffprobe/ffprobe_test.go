package ffprobe

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestResultHelpers(t *testing.T) {
	result := Result{
		Streams: []Stream{
			{CodecType: "video"},
			{CodecType: "video", Disposition: Disposition{AttachedPic: 1}},
			{CodecType: "audio", SampleRate: "48000"},
			{CodecType: "audio"},
		},
		Format: Format{Duration: "123.45", Size: "1000"},
	}
	if len(result.VideoStreams()) != 1 {
		t.Fatalf("expected cover art to be skipped, got %d video streams", len(result.VideoStreams()))
	}
	if len(result.AudioStreams()) != 2 {
		t.Fatalf("expected 2 audio streams, got %d", len(result.AudioStreams()))
	}
	if result.DurationSeconds() != 123.45 {
		t.Fatalf("unexpected duration: %v", result.DurationSeconds())
	}
	if result.SizeBytes() != 1000 {
		t.Fatalf("unexpected size: %d", result.SizeBytes())
	}
	if result.AudioStreams()[0].SampleRateHz() != 48000 {
		t.Fatalf("unexpected sample rate")
	}
}

func TestDurationFallsBackToStreams(t *testing.T) {
	result := Result{Streams: []Stream{{Duration: "4.5"}, {Duration: "6.25"}}}
	if got := result.DurationSeconds(); got != 6.25 {
		t.Fatalf("expected longest stream duration, got %v", got)
	}
	bad := Result{Format: Format{Duration: "bad"}}
	if !math.IsNaN(bad.DurationSeconds()) {
		t.Fatalf("expected NaN for invalid duration")
	}
}

func TestRotation(t *testing.T) {
	cases := []struct {
		name   string
		stream Stream
		want   int
	}{
		{"none", Stream{}, 0},
		{"side data", Stream{SideDataList: []SideData{{SideDataType: "Display Matrix", Rotation: -90}}}, 90},
		{"side data ccw", Stream{SideDataList: []SideData{{Rotation: 90}}}, 270},
		{"tag", Stream{Tags: map[string]string{"rotate": "180"}}, 180},
		{"tag upper", Stream{Tags: map[string]string{"ROTATE": "-90"}}, 270},
		{"side data wins", Stream{SideDataList: []SideData{{Rotation: -90}}, Tags: map[string]string{"rotate": "180"}}, 90},
	}
	for _, tc := range cases {
		if got := tc.stream.Rotation(); got != tc.want {
			t.Fatalf("%s: rotation = %d, want %d", tc.name, got, tc.want)
		}
	}
}

func TestFrameRateAndFlags(t *testing.T) {
	s := Stream{RFrameRate: "30000/1001", AvgFrameRate: "30000/1001", FieldOrder: "progressive"}
	if s.IsVariableFrameRate() {
		t.Fatal("constant stream flagged as VFR")
	}
	if math.Abs(s.FrameRate()-29.97) > 0.01 {
		t.Fatalf("unexpected frame rate %v", s.FrameRate())
	}
	if s.IsInterlaced() {
		t.Fatal("progressive stream flagged interlaced")
	}
	vfr := Stream{RFrameRate: "60/1", AvgFrameRate: "2997/100", FieldOrder: "TT"}
	if !vfr.IsVariableFrameRate() {
		t.Fatal("expected VFR")
	}
	if !vfr.IsInterlaced() {
		t.Fatal("expected interlaced")
	}
	if (Stream{AvgFrameRate: "0/0"}).IsVariableFrameRate() {
		t.Fatal("unknown rates must not be VFR")
	}
}

func TestDisplayAspect(t *testing.T) {
	if ratio, ok := (Stream{DisplayAspectRatio: "16:9"}).DisplayAspect(); !ok || math.Abs(ratio-16.0/9) > 1e-9 {
		t.Fatalf("unexpected ratio %v %v", ratio, ok)
	}
	if _, ok := (Stream{DisplayAspectRatio: "0:1"}).DisplayAspect(); ok {
		t.Fatal("0:1 must be ignored")
	}
	if _, ok := (Stream{}).DisplayAspect(); ok {
		t.Fatal("missing ratio must be ignored")
	}
}

func TestInspectParsesStubOutput(t *testing.T) {
	dir := t.TempDir()
	stub := filepath.Join(dir, "ffprobe")
	script := `#!/bin/sh
cat <<'JSON'
{"streams":[{"index":0,"codec_type":"video","width":1920,"height":1080,"tags":{"rotate":"90"}},{"index":1,"codec_type":"audio","sample_rate":"44100","channels":2,"tags":{"language":"eng"}}],"format":{"duration":"6.0","size":"1234"}}
JSON
`
	if err := os.WriteFile(stub, []byte(script), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	result, err := Inspect(context.Background(), stub, filepath.Join(dir, "clip.mp4"))
	if err != nil {
		t.Fatalf("Inspect returned error: %v", err)
	}
	if result.DurationSeconds() != 6.0 {
		t.Fatalf("unexpected duration %v", result.DurationSeconds())
	}
	if result.VideoStreams()[0].Rotation() != 90 {
		t.Fatalf("unexpected rotation")
	}
	if result.AudioStreams()[0].Tag("LANGUAGE") != "eng" {
		t.Fatalf("unexpected language tag")
	}
}

func TestInspectReportsStderr(t *testing.T) {
	dir := t.TempDir()
	stub := filepath.Join(dir, "ffprobe")
	script := "#!/bin/sh\necho 'clip.mp4: Invalid data found' >&2\nexit 1\n"
	if err := os.WriteFile(stub, []byte(script), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	_, err := Inspect(context.Background(), stub, "clip.mp4")
	if err == nil || !strings.Contains(err.Error(), "Invalid data found") {
		t.Fatalf("expected stderr in error, got %v", err)
	}
	if _, err := Inspect(context.Background(), stub, " "); err == nil {
		t.Fatal("expected error for empty path")
	}
}
