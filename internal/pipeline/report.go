package pipeline

import (
	"encoding/json"
	"time"

	"slidecast/internal/chapters"
	"slidecast/internal/encoders"
	"slidecast/internal/plan"
)

// StageTiming is the wall time one state took.
type StageTiming struct {
	Stage    State         `json:"stage"`
	Duration time.Duration `json:"duration"`
}

// Report summarizes a run. It is persisted to run history as JSON.
type Report struct {
	RunID         string                  `json:"run_id"`
	State         State                   `json:"state"`
	Preview       bool                    `json:"preview,omitempty"`
	Document      string                  `json:"document"`
	Output        string                  `json:"output,omitempty"`
	ChapterFile   string                  `json:"chapter_file,omitempty"`
	Encoder       string                  `json:"encoder,omitempty"`
	Substitutions []encoders.Substitution `json:"substitutions,omitempty"`
	Problems      []plan.Problem          `json:"problems,omitempty"`
	Chapters      []chapters.Entry        `json:"chapters,omitempty"`
	// TotalDuration is the planned length of the output in seconds.
	TotalDuration float64 `json:"total_duration"`
	// Realised holds the probed duration of each segment in page order.
	Realised    []float64         `json:"realised,omitempty"`
	Segments    int               `json:"segments"`
	Reused      int               `json:"reused"`
	Loudness    plan.LoudnessMode `json:"loudness,omitempty"`
	Notices     []string          `json:"notices,omitempty"`
	Stages      []StageTiming     `json:"stages,omitempty"`
	Transitions []Transition      `json:"transitions,omitempty"`
	Error       string            `json:"error,omitempty"`
	StartedAt   time.Time         `json:"started_at"`
	FinishedAt  time.Time         `json:"finished_at"`
}

// Visited returns the states the run entered, in order.
func (r *Report) Visited() []State {
	out := make([]State, 0, len(r.Transitions))
	for _, t := range r.Transitions {
		out = append(out, t.To)
	}
	return out
}

// StageDurations returns Stages keyed by state name.
func (r *Report) StageDurations() map[string]time.Duration {
	out := make(map[string]time.Duration, len(r.Stages))
	for _, s := range r.Stages {
		out[string(s.Stage)] += s.Duration
	}
	return out
}

// JSON encodes the report for run history.
func (r *Report) JSON() []byte {
	data, err := json.Marshal(r)
	if err != nil {
		return nil
	}
	return data
}
