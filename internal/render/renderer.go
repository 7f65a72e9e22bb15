package render

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"time"

	"slidecast/internal/encoders"
	"slidecast/internal/ffmpeg"
	"slidecast/internal/logging"
	"slidecast/internal/plan"
	"slidecast/internal/services"
)

// Segment is one rendered slide on the scratch filesystem.
type Segment struct {
	Page int
	Path string
	// Duration is the planned slide duration in seconds.
	Duration    float64
	Fingerprint string
	Reused      bool
}

// SegmentError reports a failed segment render with its page and the
// engine's result.
type SegmentError struct {
	Page   int
	Result ffmpeg.Result
}

func (e *SegmentError) Error() string {
	return fmt.Sprintf("render page %d: %v", e.Page+1, e.Result.Err())
}

// Unwrap exposes the classified ffmpeg failure.
func (e *SegmentError) Unwrap() error {
	return e.Result.Err()
}

// Renderer renders the slides of one plan.
type Renderer struct {
	runner  *ffmpeg.Runner
	params  plan.Params
	encoder encoders.Profile
	passes  int
	timeout time.Duration
	logger  *slog.Logger
}

// New returns a Renderer for p. timeout bounds each ffmpeg invocation.
func New(runner *ffmpeg.Runner, p plan.RenderPlan, timeout time.Duration, logger *slog.Logger) *Renderer {
	return &Renderer{
		runner:  runner,
		params:  p.Params,
		encoder: p.Encoder,
		passes:  p.Params.EffectivePasses(p.Encoder),
		timeout: timeout,
		logger:  logging.NewComponentLogger(logger, "render"),
	}
}

// Passes returns the number of encode passes per segment.
func (r *Renderer) Passes() int { return r.passes }

// SegmentPath returns where the segment for page is written inside dir.
func SegmentPath(dir string, page int) string {
	return filepath.Join(dir, fmt.Sprintf("segment-%04d.mp4", page+1))
}

// Render encodes slide into dir. progress, when non-nil, receives the
// fraction of the slide encoded so far across all passes.
func (r *Renderer) Render(ctx context.Context, slide plan.SlideSpec, dir string, progress func(float64)) (Segment, error) {
	out := SegmentPath(dir, slide.Page)
	passlog := filepath.Join(dir, fmt.Sprintf("segment-%04d-pass", slide.Page+1))
	logger := logging.WithContext(services.WithSlide(ctx, slide.Page), r.logger)

	for pass := 1; pass <= r.passes; pass++ {
		inv := ffmpeg.Invocation{
			Label:        r.label(slide.Page, pass),
			Args:         r.Args(slide, out, pass, passlog),
			Timeout:      r.timeout,
			TotalSeconds: slide.Duration,
		}
		if pass == r.passes {
			inv.Output = out
		}
		if progress != nil {
			done := float64(pass-1) / float64(r.passes)
			inv.Progress = func(f float64) { progress(done + f/float64(r.passes)) }
		}
		result := r.runner.Run(ctx, inv)
		if !result.OK() {
			return Segment{}, &SegmentError{Page: slide.Page, Result: result}
		}
		logger.Debug("segment pass complete",
			logging.Int("pass", pass),
			logging.Duration("elapsed", result.Elapsed))
	}
	logger.Info("segment rendered",
		logging.String("material", string(slide.Kind())),
		logging.Seconds("duration_seconds", slide.Duration),
		logging.String("path", out))
	return Segment{Page: slide.Page, Path: out, Duration: slide.Duration}, nil
}

func (r *Renderer) label(page, pass int) string {
	if r.passes == 1 {
		return fmt.Sprintf("segment %d", page+1)
	}
	return fmt.Sprintf("segment %d pass %d", page+1, pass)
}

// Args returns the ffmpeg arguments for one pass of slide. With a single
// pass, pass is 1 and passlog is ignored.
func (r *Renderer) Args(slide plan.SlideSpec, out string, pass int, passlog string) []string {
	return r.args(slide, paths{image: slide.ImagePath, media: mediaPath(slide), output: out, passlog: passlog}, pass)
}

type paths struct {
	image   string
	media   string
	output  string
	passlog string
}

func mediaPath(slide plan.SlideSpec) string {
	switch body := slide.Body.(type) {
	case plan.Audio:
		return body.Asset.Identity.Path
	case plan.Video:
		return body.Asset.Identity.Path
	}
	return ""
}

func (r *Renderer) args(slide plan.SlideSpec, p paths, pass int) []string {
	cmd := ffmpeg.NewCommand("error").Input(p.image, "-loop", "1", "-framerate", strconv.Itoa(r.params.FPS))
	audio := r.params.Audio

	switch body := slide.Body.(type) {
	case plan.Audio:
		cmd.Input(p.media).
			Add("-vf", pageFilter(r.params.Width, r.params.Height)).
			Map("0:v").
			Map("1:" + strconv.Itoa(body.Stream.StreamIndex)).
			Add("-af", audioFilter(audio, body.Trim))
	case plan.Video:
		cmd.Input(p.media, "-noautorotate")
		if body.Stream == nil {
			cmd.Input(silenceSource(audio), "-f", "lavfi")
		}
		cmd.Add("-filter_complex", pinpGraph(r.params, body, slide.Duration)).Map("[v]")
		if body.Stream == nil {
			cmd.Map("2:a")
		} else {
			cmd.Map("1:"+strconv.Itoa(body.Stream.StreamIndex)).Add("-af", audioFilter(audio, body.Trim))
		}
	default:
		cmd.Input(silenceSource(audio), "-f", "lavfi").
			Add("-vf", pageFilter(r.params.Width, r.params.Height)).
			Map("0:v").
			Map("1:a")
	}

	cmd.Duration(slide.Duration).Add(EncodeArgs(r.params, r.encoder)...)
	if r.passes == 2 {
		cmd.Add("-pass", strconv.Itoa(pass), "-passlogfile", p.passlog)
		if pass == 1 {
			return cmd.Add("-an", "-f", "null").Output("-")
		}
	}
	return cmd.Add(AudioArgs(audio)...).Add("-movflags", "+faststart").Output(p.output)
}
