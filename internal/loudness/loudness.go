// Package loudness applies EBU R128 loudness normalization to the merged
// audio track with ffmpeg's loudnorm filter.
package loudness

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"slidecast/internal/ffmpeg"
	"slidecast/internal/logging"
	"slidecast/internal/plan"
	"slidecast/internal/services"
)

// Targets for integrated loudness (LUFS), loudness range (LU), and true peak
// (dBTP).
const (
	TargetI   = -23.0
	TargetLRA = 7.0
	TargetTP  = -2.0
)

const analysisFilter = "loudnorm=I=-23:LRA=7:TP=-2:print_format=json"

// Measurement is the loudnorm analysis output. ffmpeg prints every value as
// a JSON string.
type Measurement struct {
	InputI       string `json:"input_i"`
	InputTP      string `json:"input_tp"`
	InputLRA     string `json:"input_lra"`
	InputThresh  string `json:"input_thresh"`
	TargetOffset string `json:"target_offset"`
}

func (m Measurement) validate() error {
	for name, v := range map[string]string{
		"input_i":       m.InputI,
		"input_tp":      m.InputTP,
		"input_lra":     m.InputLRA,
		"input_thresh":  m.InputThresh,
		"target_offset": m.TargetOffset,
	} {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return fmt.Errorf("%s %q is not a number", name, v)
		}
		// Silent input measures as -inf, which loudnorm cannot apply.
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("%s is not finite", name)
		}
	}
	return nil
}

// ApplyFilter returns the second-pass loudnorm filter for m.
func (m Measurement) ApplyFilter() string {
	return fmt.Sprintf("loudnorm=I=%.1f:LRA=%.1f:TP=%.1f:measured_I=%s:measured_LRA=%s:measured_TP=%s:measured_thresh=%s:offset=%s:linear=true",
		TargetI, TargetLRA, TargetTP,
		strings.TrimSpace(m.InputI), strings.TrimSpace(m.InputLRA), strings.TrimSpace(m.InputTP),
		strings.TrimSpace(m.InputThresh), strings.TrimSpace(m.TargetOffset))
}

// ParseMeasurement extracts the loudnorm JSON block from ffmpeg's stderr.
func ParseMeasurement(stderr string) (Measurement, error) {
	end := strings.LastIndex(stderr, "}")
	if end < 0 {
		return Measurement{}, errors.New("no loudnorm summary in output")
	}
	start := strings.LastIndex(stderr[:end], "{")
	if start < 0 {
		return Measurement{}, errors.New("no loudnorm summary in output")
	}
	var m Measurement
	if err := json.Unmarshal([]byte(stderr[start:end+1]), &m); err != nil {
		return Measurement{}, fmt.Errorf("decode loudnorm summary: %w", err)
	}
	if err := m.validate(); err != nil {
		return Measurement{}, err
	}
	return m, nil
}

// Job describes one normalization.
type Job struct {
	Input  string
	Output string
	Mode   plan.LoudnessMode
	// Fallback turns a failed two-pass analysis into a warning and leaves
	// the audio unnormalized.
	Fallback     bool
	AudioArgs    []string
	TotalSeconds float64
	Progress     func(float64)
}

// Result describes what was applied.
type Result struct {
	// Path is the normalized file, or the input when Mode is off.
	Path string
	// Applied is the mode that actually ran.
	Applied     plan.LoudnessMode
	Measurement *Measurement
	// Invocations counts ffmpeg runs made against the merged file.
	Invocations int
	FellBack    bool
	Elapsed     time.Duration
}

// Normalizer runs the loudness stage.
type Normalizer struct {
	runner          *ffmpeg.Runner
	timeout         time.Duration
	analysisTimeout time.Duration
	logger          *slog.Logger
}

// New returns a Normalizer.
func New(runner *ffmpeg.Runner, timeout, analysisTimeout time.Duration, logger *slog.Logger) *Normalizer {
	return &Normalizer{
		runner:          runner,
		timeout:         timeout,
		analysisTimeout: analysisTimeout,
		logger:          logging.NewComponentLogger(logger, "loudness"),
	}
}

// Normalize applies job.Mode to job.Input.
func (n *Normalizer) Normalize(ctx context.Context, job Job) (Result, error) {
	start := time.Now()
	switch job.Mode {
	case plan.LoudnessOff, "":
		n.logger.Debug("loudness normalization disabled")
		return Result{Path: job.Input, Applied: plan.LoudnessOff}, nil
	case plan.LoudnessOnePass:
		result, err := n.apply(ctx, job, "loudnorm")
		if err != nil {
			return Result{}, err
		}
		result.Applied = plan.LoudnessOnePass
		result.Elapsed = time.Since(start)
		return result, nil
	case plan.LoudnessTwoPass:
	default:
		return Result{}, services.Wrap(services.ErrValidation, "normalizing", "select mode",
			fmt.Sprintf("unknown loudness mode %q", job.Mode), nil)
	}

	m, err := n.analyze(ctx, job)
	if err != nil {
		if errors.Is(err, services.ErrCancelled) || !job.Fallback {
			return Result{}, err
		}
		logging.WarnWithContext(n.logger, "loudness analysis failed; audio left unnormalized", "loudness_fallback",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "set loudness_fallback = false to make analysis failures fatal"),
			logging.String(logging.FieldImpact, "exported audio keeps its original loudness"))
		return Result{Path: job.Input, Applied: plan.LoudnessOff, FellBack: true, Elapsed: time.Since(start)}, nil
	}

	n.logger.Info("loudness measured",
		logging.String("input_i", m.InputI),
		logging.String("input_tp", m.InputTP),
		logging.String("input_lra", m.InputLRA))
	result, err := n.apply(ctx, job, m.ApplyFilter())
	if err != nil {
		return Result{}, err
	}
	result.Applied = plan.LoudnessTwoPass
	result.Measurement = &m
	result.Invocations++
	result.Elapsed = time.Since(start)
	return result, nil
}

func (n *Normalizer) analyze(ctx context.Context, job Job) (Measurement, error) {
	args := ffmpeg.NewCommand("info").
		Input(job.Input).
		Map("0:a").
		Add("-af", analysisFilter, "-f", "null").
		Output("-")
	res := n.runner.Run(ctx, ffmpeg.Invocation{Label: "loudness analysis", Args: args, Timeout: n.analysisTimeout})
	if !res.OK() {
		return Measurement{}, fmt.Errorf("analyze loudness: %w", res.Err())
	}
	m, err := ParseMeasurement(res.Stderr)
	if err != nil {
		return Measurement{}, services.Wrap(services.ErrExternalTool, "normalizing", "parse loudness analysis", "", err)
	}
	return m, nil
}

func (n *Normalizer) apply(ctx context.Context, job Job, filter string) (Result, error) {
	args := ffmpeg.NewCommand("error").
		Input(job.Input).
		Map("0:v").
		Map("0:a").
		Add("-c:v", "copy", "-af", filter).
		Add(job.AudioArgs...).
		Add("-movflags", "+faststart").
		Output(job.Output)
	res := n.runner.Run(ctx, ffmpeg.Invocation{
		Label: "loudness normalize", Args: args, Output: job.Output, Timeout: n.timeout,
		TotalSeconds: job.TotalSeconds, Progress: job.Progress,
	})
	if !res.OK() {
		return Result{}, fmt.Errorf("normalize loudness: %w", res.Err())
	}
	return Result{Path: job.Output, Invocations: 1}, nil
}
