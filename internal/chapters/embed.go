package chapters

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"slidecast/internal/ffmpeg"
	"slidecast/internal/fileutil"
	"slidecast/internal/logging"
	"slidecast/internal/services"
)

// CompanionPath returns the chapter listing path that accompanies output.
func CompanionPath(output string) string {
	stem := strings.TrimSuffix(output, filepath.Ext(output))
	return stem + "-chapters.txt"
}

// Job describes one chapter embedding run.
type Job struct {
	Input  string
	Output string
	// WorkDir receives the FFMETADATA1 document.
	WorkDir string
	// TextPath receives the companion listing.
	TextPath string
	Entries  []Entry
}

// Result names the files Embed produced.
type Result struct {
	Path     string
	TextPath string
	Listing  string
}

// Embedder remuxes chapter metadata into a finished stream.
type Embedder struct {
	runner  *ffmpeg.Runner
	timeout time.Duration
	logger  *slog.Logger
}

// NewEmbedder returns an Embedder that runs ffmpeg through runner.
func NewEmbedder(runner *ffmpeg.Runner, timeout time.Duration, logger *slog.Logger) *Embedder {
	return &Embedder{runner: runner, timeout: timeout, logger: logging.NewComponentLogger(logger, "chapters")}
}

// Embed writes job.Entries into job.Output and the listing to job.TextPath.
// With no entries the input passes through and no listing is written.
func (e *Embedder) Embed(ctx context.Context, job Job) (Result, error) {
	if len(job.Entries) == 0 {
		e.logger.Debug("no chapters; passing stream through")
		return Result{Path: job.Input}, nil
	}
	meta := filepath.Join(job.WorkDir, "chapters.ffmeta")
	if err := fileutil.WriteFileAtomic(meta, []byte(Metadata(job.Entries))); err != nil {
		return Result{}, services.Wrap(services.ErrTransient, "chaptering", "write metadata", "", err)
	}

	args := ffmpeg.NewCommand("error").
		Input(job.Input).
		Input(meta).
		Add("-map", "0", "-map_metadata", "1", "-map_chapters", "1", "-codec", "copy", "-movflags", "+faststart").
		Output(job.Output)
	res := e.runner.Run(ctx, ffmpeg.Invocation{Label: "chapters", Args: args, Output: job.Output, Timeout: e.timeout})
	if !res.OK() {
		return Result{}, fmt.Errorf("embed chapters: %w", res.Err())
	}

	listing := Listing(job.Entries)
	if job.TextPath != "" {
		if err := fileutil.WriteFileAtomic(job.TextPath, []byte(listing)); err != nil {
			return Result{}, services.Wrap(services.ErrTransient, "chaptering", "write listing", "", err)
		}
	}
	e.logger.Info("chapters embedded",
		logging.Int("chapters", len(job.Entries)),
		logging.Seconds("duration_seconds", job.Entries[len(job.Entries)-1].End))
	return Result{Path: job.Output, TextPath: job.TextPath, Listing: listing}, nil
}
