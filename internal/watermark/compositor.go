package watermark

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"slidecast/internal/ffmpeg"
	"slidecast/internal/logging"
	"slidecast/internal/services"
)

// Job describes one compositing run.
type Job struct {
	Input  string
	Output string
	// WorkDir receives the generated overlay PNG.
	WorkDir string
	Width   int
	Height  int
	// EncodeArgs are the video encoder arguments of the plan.
	EncodeArgs []string
	Duration   float64
	Progress   func(float64)
}

// Compositor overlays the watermark on a finished stream.
type Compositor struct {
	runner  *ffmpeg.Runner
	timeout time.Duration
	logger  *slog.Logger
}

// NewCompositor returns a Compositor that runs ffmpeg through runner.
func NewCompositor(runner *ffmpeg.Runner, timeout time.Duration, logger *slog.Logger) *Compositor {
	return &Compositor{runner: runner, timeout: timeout, logger: logging.NewComponentLogger(logger, "watermark")}
}

// Apply composites cfg over job.Input into job.Output and returns the path
// of the resulting stream. A disabled config returns job.Input untouched.
func (c *Compositor) Apply(ctx context.Context, cfg Config, job Job) (string, error) {
	if !cfg.Enabled() {
		c.logger.Debug("watermark disabled; passing stream through")
		return job.Input, nil
	}
	overlay := filepath.Join(job.WorkDir, "watermark.png")
	if err := WritePNG(cfg, job.Width, job.Height, overlay); err != nil {
		return "", services.Wrap(services.ErrValidation, "watermark", "render overlay", "", err)
	}

	cmd := ffmpeg.NewCommand("error").
		Input(job.Input).
		Input(overlay, "-loop", "1").
		Add("-filter_complex", "[0:v][1:v]overlay=0:0:shortest=1[v]").
		Map("[v]").
		Map("0:a?").
		Add(job.EncodeArgs...).
		Add("-c:a", "copy", "-movflags", "+faststart")
	result := c.runner.Run(ctx, ffmpeg.Invocation{
		Label:        "watermark",
		Args:         cmd.Output(job.Output),
		Output:       job.Output,
		Timeout:      c.timeout,
		TotalSeconds: job.Duration,
		Progress:     job.Progress,
	})
	if err := result.Err(); err != nil {
		return "", fmt.Errorf("apply watermark: %w", err)
	}
	c.logger.Info("watermark applied",
		logging.String("text", cfg.Text),
		logging.Bool("tiled", cfg.Tile),
		logging.Duration("elapsed", result.Elapsed))
	return job.Output, nil
}
