// Package concat joins rendered segments, in page order, into one stream.
//
// Segments share resolution, frame rate, sample rate, and channel layout, so
// the concat demuxer can append them with stream copy. A single re-encode
// pass with the plan's encoder is the fallback when stream copy fails.
package concat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"slidecast/internal/ffmpeg"
	"slidecast/internal/logging"
	"slidecast/internal/render"
	"slidecast/internal/services"
)

// driftTolerance is how far a realised segment duration may stray from the
// planned one before it is logged.
const driftTolerance = 0.1

// DurationProbe measures a media file's duration in seconds.
type DurationProbe func(ctx context.Context, path string) (float64, error)

// Job describes one concatenation.
type Job struct {
	Segments []render.Segment
	// Dir receives the concat list file.
	Dir    string
	Output string
	// EncodeArgs and AudioArgs are used only by the re-encode fallback.
	EncodeArgs []string
	AudioArgs  []string
	Progress   func(float64)
}

// Result is the merged stream and what it took to produce it.
type Result struct {
	Path string
	// Realised holds the probed duration of each segment, in page order.
	// It is empty when no probe is configured.
	Realised  []float64
	ReEncoded bool
	Elapsed   time.Duration
}

// Concatenator runs the merge stage.
type Concatenator struct {
	runner  *ffmpeg.Runner
	probe   DurationProbe
	timeout time.Duration
	logger  *slog.Logger
}

// New returns a Concatenator. probe may be nil.
func New(runner *ffmpeg.Runner, probe DurationProbe, timeout time.Duration, logger *slog.Logger) *Concatenator {
	return &Concatenator{runner: runner, probe: probe, timeout: timeout, logger: logging.NewComponentLogger(logger, "concat")}
}

// Concatenate merges job.Segments into job.Output.
func (c *Concatenator) Concatenate(ctx context.Context, job Job) (Result, error) {
	segments, err := ordered(job.Segments)
	if err != nil {
		return Result{}, err
	}
	var total float64
	for _, s := range segments {
		total += s.Duration
	}

	result := Result{Path: job.Output}
	if c.probe != nil {
		realised, err := c.measure(ctx, segments)
		if err != nil {
			return Result{}, err
		}
		result.Realised = realised
	}

	list := filepath.Join(job.Dir, "concat.txt")
	if err := os.WriteFile(list, []byte(ListFile(segments)), 0o644); err != nil {
		return Result{}, services.Wrap(services.ErrTransient, "merging", "write concat list", "", err)
	}

	start := time.Now()
	copyArgs := ffmpeg.NewCommand("error").
		Input(list, "-f", "concat", "-safe", "0").
		Map("0").
		Add("-c", "copy", "-movflags", "+faststart").
		Output(job.Output)
	res := c.runner.Run(ctx, ffmpeg.Invocation{
		Label: "concat", Args: copyArgs, Output: job.Output, Timeout: c.timeout,
		TotalSeconds: total, Progress: job.Progress,
	})
	if res.OK() {
		result.Elapsed = time.Since(start)
		c.logger.Info("segments merged",
			logging.Int("segments", len(segments)),
			logging.Seconds("duration_seconds", total),
			logging.Duration("elapsed", result.Elapsed))
		return result, nil
	}
	if res.Cancelled || len(job.EncodeArgs) == 0 {
		return Result{}, fmt.Errorf("concatenate segments: %w", res.Err())
	}

	logging.WarnWithContext(c.logger, "stream copy concat failed; re-encoding", "concat_fallback",
		logging.String("reason", ffmpeg.LastLines(res.Stderr, 2)),
		logging.String(logging.FieldErrorHint, "segments may differ in stream parameters"),
		logging.String(logging.FieldImpact, "merge takes longer and adds one generation of encoding loss"))
	reencode := ffmpeg.NewCommand("error").
		Input(list, "-f", "concat", "-safe", "0").
		Map("0:v").
		Map("0:a").
		Add(job.EncodeArgs...).
		Add(job.AudioArgs...).
		Add("-movflags", "+faststart").
		Output(job.Output)
	res = c.runner.Run(ctx, ffmpeg.Invocation{
		Label: "concat re-encode", Args: reencode, Output: job.Output, Timeout: c.timeout,
		TotalSeconds: total, Progress: job.Progress,
	})
	if !res.OK() {
		return Result{}, fmt.Errorf("concatenate segments: %w", res.Err())
	}
	result.ReEncoded = true
	result.Elapsed = time.Since(start)
	return result, nil
}

// ListFile renders the concat demuxer list for segments.
func ListFile(segments []render.Segment) string {
	var b strings.Builder
	for _, s := range segments {
		fmt.Fprintf(&b, "file '%s'\n", escapeListPath(s.Path))
	}
	return b.String()
}

// escapeListPath quotes a path for the concat demuxer: a single quote is
// closed, escaped, and reopened.
func escapeListPath(path string) string {
	path = filepath.ToSlash(path)
	return strings.ReplaceAll(path, "'", `'\''`)
}

func ordered(segments []render.Segment) ([]render.Segment, error) {
	if len(segments) == 0 {
		return nil, services.Wrap(services.ErrValidation, "merging", "order segments", "no segments to merge", nil)
	}
	out := append([]render.Segment(nil), segments...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Page < out[j].Page })
	for i := 1; i < len(out); i++ {
		if out[i].Page == out[i-1].Page {
			return nil, services.Wrap(services.ErrValidation, "merging", "order segments",
				fmt.Sprintf("page %d has two segments", out[i].Page+1), nil)
		}
	}
	for _, s := range out {
		if info, err := os.Stat(s.Path); err != nil || info.Size() == 0 {
			return nil, services.Wrap(services.ErrNotFound, "merging", "order segments",
				fmt.Sprintf("segment for page %d is missing", s.Page+1), err)
		}
	}
	return out, nil
}

func (c *Concatenator) measure(ctx context.Context, segments []render.Segment) ([]float64, error) {
	realised := make([]float64, 0, len(segments))
	for _, s := range segments {
		d, err := c.probe(ctx, s.Path)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil, services.Wrap(services.ErrCancelled, "merging", "probe segment", "", err)
			}
			return nil, services.Wrap(services.ErrExternalTool, "merging", "probe segment",
				fmt.Sprintf("page %d", s.Page+1), err)
		}
		if math.Abs(d-s.Duration) > driftTolerance {
			logging.WarnWithContext(c.logger, "segment duration differs from plan", "segment_duration_drift",
				logging.Slide(s.Page),
				logging.Float64("planned_seconds", s.Duration),
				logging.Float64("realised_seconds", d),
				logging.String(logging.FieldErrorHint, "check the source media for broken timestamps"),
				logging.String(logging.FieldImpact, "chapter markers keep planned offsets and may drift from content"))
		}
		realised = append(realised, d)
	}
	return realised, nil
}
