package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestObserveAndWriteTextfile(t *testing.T) {
	r := NewRecorder()
	r.Observe(Summary{
		State:     "done",
		Duration:  90 * time.Second,
		Stages:    map[string]time.Duration{"rendering": time.Minute, "merging": 5 * time.Second},
		Rendered:  7,
		Reused:    3,
		Encoder:   "libx264",
		Finished:  time.Unix(1700000000, 0),
		AllStates: []string{"done", "failed", "cancelled"},
	})

	path := filepath.Join(t.TempDir(), "textfile", "slidecast.prom")
	if err := r.WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	text := string(data)
	for _, want := range []string{
		"slidecast_run_duration_seconds 90",
		`slidecast_stage_duration_seconds{stage="rendering"} 60`,
		`slidecast_stage_duration_seconds{stage="merging"} 5`,
		"slidecast_segments_rendered_total 7",
		"slidecast_segments_reused_total 3",
		`slidecast_run_state{state="done"} 1`,
		`slidecast_run_state{state="failed"} 0`,
		`slidecast_run_encoder_info{encoder="libx264"} 1`,
		"slidecast_run_finished_timestamp_seconds 1.7e+09",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("missing %q in:\n%s", want, text)
		}
	}
}

func TestWriteTextfileWithoutPathIsNoop(t *testing.T) {
	if err := NewRecorder().WriteTextfile(" "); err != nil {
		t.Fatalf("WriteTextfile: %v", err)
	}
}
