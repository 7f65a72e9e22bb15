package loudness

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"slidecast/internal/ffmpeg"
	"slidecast/internal/plan"
	"slidecast/internal/services"
	"slidecast/internal/testsupport"
)

const analysisStderr = `[Parsed_loudnorm_0 @ 0x5581] 
{
	"input_i" : "-27.61",
	"input_tp" : "-4.47",
	"input_lra" : "18.06",
	"input_thresh" : "-39.20",
	"output_i" : "-23.06",
	"output_tp" : "-2.00",
	"output_lra" : "7.00",
	"output_thresh" : "-34.70",
	"normalization_type" : "dynamic",
	"target_offset" : "0.06"
}`

// analysisHook prints a loudnorm summary whenever the analysis filter runs.
const analysisHook = `case "$*" in *print_format=json*) cat >&2 <<'JSON'
` + analysisStderr + `
JSON
;; esac`

func job(dir string, mode plan.LoudnessMode, fallback bool) Job {
	return Job{
		Input:     filepath.Join(dir, "merged.mp4"),
		Output:    filepath.Join(dir, "normalized.mp4"),
		Mode:      mode,
		Fallback:  fallback,
		AudioArgs: []string{"-c:a", "aac", "-b:a", "192k", "-ar", "48000", "-ac", "2"},
	}
}

func TestParseMeasurement(t *testing.T) {
	m, err := ParseMeasurement("frame=1\n" + analysisStderr + "\n")
	if err != nil {
		t.Fatalf("ParseMeasurement: %v", err)
	}
	want := Measurement{InputI: "-27.61", InputTP: "-4.47", InputLRA: "18.06", InputThresh: "-39.20", TargetOffset: "0.06"}
	if diff := cmp.Diff(want, m); diff != "" {
		t.Fatalf("measurement mismatch (-want +got):\n%s", diff)
	}
	wantFilter := "loudnorm=I=-23.0:LRA=7.0:TP=-2.0:measured_I=-27.61:measured_LRA=18.06:measured_TP=-4.47:measured_thresh=-39.20:offset=0.06:linear=true"
	if got := m.ApplyFilter(); got != wantFilter {
		t.Fatalf("filter = %q", got)
	}
}

func TestParseMeasurementRejectsBadSummaries(t *testing.T) {
	for name, stderr := range map[string]string{
		"missing":  "no json here",
		"silent":   `{"input_i":"-inf","input_tp":"-inf","input_lra":"0.00","input_thresh":"-70.00","target_offset":"0.00"}`,
		"garbled":  `{"input_i": -27}`,
		"unclosed": `{"input_i":"-27.61"`,
	} {
		if _, err := ParseMeasurement(stderr); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestNormalizeOffIsPassthrough(t *testing.T) {
	dir := t.TempDir()
	fake := testsupport.FakeFFmpeg(t, "")
	n := New(ffmpeg.NewRunner(fake.Path, nil), 0, 0, nil)
	res, err := n.Normalize(context.Background(), job(dir, plan.LoudnessOff, true))
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if res.Path != filepath.Join(dir, "merged.mp4") || res.Invocations != 0 {
		t.Fatalf("unexpected result %+v", res)
	}
	if calls := fake.Invocations(t); len(calls) != 0 {
		t.Fatalf("expected no invocations, got %d", len(calls))
	}
}

func TestNormalizeOnePass(t *testing.T) {
	dir := t.TempDir()
	fake := testsupport.FakeFFmpeg(t, "")
	n := New(ffmpeg.NewRunner(fake.Path, nil), 0, 0, nil)
	res, err := n.Normalize(context.Background(), job(dir, plan.LoudnessOnePass, true))
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if res.Applied != plan.LoudnessOnePass || res.Invocations != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
	calls := fake.Joined(t)
	if len(calls) != 1 || !strings.Contains(calls[0], "-c:v copy -af loudnorm -c:a aac") {
		t.Fatalf("unexpected invocations %q", calls)
	}
}

func TestNormalizeTwoPassRunsAnalysisThenApply(t *testing.T) {
	dir := t.TempDir()
	fake := testsupport.FakeFFmpeg(t, analysisHook)
	n := New(ffmpeg.NewRunner(fake.Path, nil), 0, 0, nil)
	res, err := n.Normalize(context.Background(), job(dir, plan.LoudnessTwoPass, false))
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if res.Applied != plan.LoudnessTwoPass || res.Measurement == nil || res.Invocations != 2 {
		t.Fatalf("unexpected result %+v", res)
	}
	calls := fake.Joined(t)
	if len(calls) != 2 {
		t.Fatalf("expected two invocations, got %d", len(calls))
	}
	merged := filepath.Join(dir, "merged.mp4")
	for _, call := range calls {
		if !strings.Contains(call, "-i "+merged) {
			t.Fatalf("invocation does not read the merged file: %s", call)
		}
	}
	if !strings.Contains(calls[0], "-loglevel info") || !strings.HasSuffix(calls[0], "-f null -") {
		t.Fatalf("analysis args: %s", calls[0])
	}
	if !strings.Contains(calls[1], "measured_I=-27.61") || !strings.Contains(calls[1], "linear=true") {
		t.Fatalf("apply args: %s", calls[1])
	}
}

func TestNormalizeTwoPassFallbackLeavesAudioUntouched(t *testing.T) {
	dir := t.TempDir()
	fake := testsupport.FakeFFmpeg(t, `case "$*" in *print_format=json*) echo "Invalid data" >&2; exit 1;; esac`)
	n := New(ffmpeg.NewRunner(fake.Path, nil), 0, 0, nil)
	res, err := n.Normalize(context.Background(), job(dir, plan.LoudnessTwoPass, true))
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if !res.FellBack || res.Applied != plan.LoudnessOff || res.Measurement != nil || res.Invocations != 0 {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.Path != filepath.Join(dir, "merged.mp4") {
		t.Fatalf("fallback should pass the merged file through, got %s", res.Path)
	}
	if calls := fake.Joined(t); len(calls) != 1 {
		t.Fatalf("expected only the analysis invocation, got %q", calls)
	}
}

func TestNormalizeTwoPassWithoutFallbackFails(t *testing.T) {
	dir := t.TempDir()
	// Analysis succeeds but prints no summary.
	fake := testsupport.FakeFFmpeg(t, "")
	n := New(ffmpeg.NewRunner(fake.Path, nil), 0, 0, nil)
	_, err := n.Normalize(context.Background(), job(dir, plan.LoudnessTwoPass, false))
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
	if calls := fake.Invocations(t); len(calls) != 1 {
		t.Fatalf("expected only the analysis run, got %d", len(calls))
	}
}

func TestNormalizeRejectsUnknownMode(t *testing.T) {
	n := New(ffmpeg.NewRunner("ffmpeg", nil), 0, 0, nil)
	_, err := n.Normalize(context.Background(), job(t.TempDir(), "loud", true))
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
