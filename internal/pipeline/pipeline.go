package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"slidecast/internal/concat"
	"slidecast/internal/config"
	"slidecast/internal/document"
	"slidecast/internal/encoders"
	"slidecast/internal/ffmpeg"
	"slidecast/internal/logging"
	"slidecast/internal/media/ffprobe"
	"slidecast/internal/metrics"
	"slidecast/internal/plan"
	"slidecast/internal/probecache"
	"slidecast/internal/segcache"
	"slidecast/internal/services"
	"slidecast/internal/staging"
	"slidecast/internal/store"
)

// staleWorkspaceAge is how old a leftover run workspace must be before a new
// run sweeps it.
const staleWorkspaceAge = 24 * time.Hour

// AssetProber rasterizes pages and probes media. *probecache.Cache satisfies it.
type AssetProber interface {
	ProbeAll(ctx context.Context, doc document.Info, mediaPaths []string, progress func(done, total int)) (probecache.Result, error)
}

// EncoderDiscoverer returns the ranked encoder list. *encoders.Prober
// satisfies it.
type EncoderDiscoverer interface {
	Discover(ctx context.Context, refresh bool) (encoders.Discovery, error)
}

// RunRecorder persists run history. *store.Store satisfies it.
type RunRecorder interface {
	RecordRun(ctx context.Context, run store.Run) error
}

// Options wires an Orchestrator. Config, Assets, and Encoders are required.
type Options struct {
	Config   *config.Config
	Assets   AssetProber
	Encoders EncoderDiscoverer
	// Runs, when set, receives a history row per run.
	Runs RunRecorder
	// Segments enables cross-run segment reuse. A nil manager disables it.
	Segments *segcache.Manager
	// OpenDocument defaults to document.Open.
	OpenDocument func(path string) (document.Info, error)
	// SegmentProbe measures committed segments; it defaults to ffprobe.
	SegmentProbe concat.DurationProbe
	Logger       *slog.Logger
}

// Job is one export request.
type Job struct {
	DocumentPath string
	Output       string
	Assignments  []plan.Assignment
	Params       plan.Params
	// Preview, when set, renders only that 0-based page to Output.
	Preview         *int
	RefreshEncoders bool
	Observer        Observer
}

// Orchestrator runs jobs.
type Orchestrator struct {
	cfg          *config.Config
	assets       AssetProber
	encoders     EncoderDiscoverer
	runs         RunRecorder
	segments     *segcache.Manager
	openDocument func(string) (document.Info, error)
	segmentProbe concat.DurationProbe
	runner       *ffmpeg.Runner
	logger       *slog.Logger
}

// New validates opts and returns an Orchestrator.
func New(opts Options) (*Orchestrator, error) {
	if opts.Config == nil {
		return nil, errors.New("pipeline requires a config")
	}
	if opts.Assets == nil || opts.Encoders == nil {
		return nil, errors.New("pipeline requires an asset prober and an encoder discoverer")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	o := &Orchestrator{
		cfg:          opts.Config,
		assets:       opts.Assets,
		encoders:     opts.Encoders,
		runs:         opts.Runs,
		segments:     opts.Segments,
		openDocument: opts.OpenDocument,
		segmentProbe: opts.SegmentProbe,
		runner:       ffmpeg.NewRunner(opts.Config.Tools.FFmpeg, logger),
		logger:       logging.NewComponentLogger(logger, "pipeline"),
	}
	if o.openDocument == nil {
		o.openDocument = document.Open
	}
	if o.segmentProbe == nil {
		binary, timeout := opts.Config.Tools.FFprobe, opts.Config.ProbeTimeout()
		o.segmentProbe = func(ctx context.Context, path string) (float64, error) {
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}
			result, err := ffprobe.Inspect(ctx, binary, path)
			if err != nil {
				return 0, err
			}
			return result.DurationSeconds(), nil
		}
	}
	return o, nil
}

// Run executes job. The returned report is never nil. Cancellation yields a
// report in StateCancelled and an error matching services.ErrCancelled; no
// output is written in that case or on failure.
func (o *Orchestrator) Run(ctx context.Context, job Job) (*Report, error) {
	ctx, r := o.newRun(ctx, job)
	err := r.execute(ctx)
	return r.finish(ctx, err)
}

func (o *Orchestrator) newRun(ctx context.Context, job Job) (context.Context, *run) {
	runID := uuid.NewString()
	ctx = services.WithRunID(ctx, runID)
	logger := logging.WithContext(ctx, o.logger)

	r := &run{
		o:      o,
		job:    job,
		logger: logger,
		emit:   newEmitter(runID, job.Observer, logger),
		report: &Report{
			RunID:     runID,
			State:     StateIdle,
			Preview:   job.Preview != nil,
			Document:  job.DocumentPath,
			StartedAt: time.Now().UTC(),
		},
	}
	r.machine = newMachine(job.Preview != nil, func(_, to State) { r.emit.state(to) })
	return ctx, r
}

func (r *run) execute(ctx context.Context) error {
	output, err := filepath.Abs(strings.TrimSpace(r.job.Output))
	if err != nil || strings.TrimSpace(r.job.Output) == "" {
		return services.Wrap(services.ErrValidation, "pipeline", "resolve output", "an output path is required", err)
	}
	r.output = output

	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return services.Wrap(services.ErrConfiguration, "pipeline", "create output directory", "", err)
	}
	lock := flock.New(output + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return services.Wrap(services.ErrTransient, "pipeline", "lock output", "", err)
	}
	if !locked {
		return services.Wrap(services.ErrValidation, "pipeline", "lock output",
			fmt.Sprintf("another export is writing %s", output), nil)
	}
	defer func() {
		_ = lock.Unlock()
		_ = os.Remove(lock.Path())
	}()

	staging.CleanStale(ctx, r.o.cfg.Paths.ScratchDir, staleWorkspaceAge, r.logger)
	ws, err := staging.Allocate(r.o.cfg.Paths.ScratchDir, r.report.RunID)
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "pipeline", "allocate workspace", "", err)
	}
	r.ws = ws
	defer func() {
		if err := ws.Remove(); err != nil {
			logging.WarnWithContext(r.logger, "failed to remove run workspace", "workspace_cleanup_failed",
				logging.String("path", ws.Dir),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "remove the directory by hand"),
				logging.String(logging.FieldImpact, "scratch space is not reclaimed until the stale sweep"))
		}
	}()

	steps := []step{
		{StateProbing, r.probe},
		{StatePlanBuilding, r.buildPlan},
		{StateRendering, r.render},
	}
	if r.job.Preview == nil {
		steps = append(steps,
			step{StateMerging, r.merge},
			step{StateNormalizing, r.normalize},
			step{StateWatermarking, r.applyWatermark},
			step{StateChaptering, r.embedChapters},
		)
	}
	for _, s := range steps {
		if err := r.stage(ctx, s.state, s.fn); err != nil {
			return err
		}
	}
	return r.publish(ctx)
}

type step struct {
	state State
	fn    func(context.Context) error
}

// stage enters state and runs fn, recording its duration.
func (r *run) stage(ctx context.Context, state State, fn func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := r.machine.advance(state); err != nil {
		return err
	}
	stageCtx := services.WithStage(ctx, string(state))
	logger := logging.WithContext(stageCtx, r.o.logger)
	logger.Info("stage started", logging.String(logging.FieldEventType, "stage_start"))

	start := time.Now()
	err := fn(stageCtx)
	elapsed := time.Since(start)
	r.report.Stages = append(r.report.Stages, StageTiming{Stage: state, Duration: elapsed})
	if err != nil {
		return err
	}
	r.emit.progress(state, 1, "")
	logger.Info("stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.Duration("elapsed", elapsed))
	return nil
}

func (r *run) finish(ctx context.Context, runErr error) (*Report, error) {
	report := r.report
	cancelled := runErr != nil && (ctx.Err() != nil ||
		errors.Is(runErr, services.ErrCancelled) || errors.Is(runErr, context.Canceled))

	switch {
	case runErr == nil:
		_ = r.machine.advance(StateDone)
	case cancelled:
		_ = r.machine.advance(StateCancelling)
		_ = r.machine.advance(StateCancelled)
		runErr = services.Wrap(services.ErrCancelled, "pipeline", "run", "run cancelled", runErr)
		r.logger.Info("run cancelled",
			logging.String(logging.FieldEventType, "run_cancelled"),
			logging.String("during", string(lastActive(r.machine.transitions()))))
	default:
		_ = r.machine.advance(StateFailed)
		report.Error = runErr.Error()
		logging.ErrorWithContext(r.logger, "run failed", "run_failed",
			logging.Error(runErr),
			logging.String(logging.FieldErrorHint, failureHint(runErr)),
			logging.String(logging.FieldImpact, "no output was written"))
	}
	report.State = r.machine.current()
	report.Transitions = r.machine.transitions()
	report.FinishedAt = time.Now().UTC()
	if report.State != StateDone {
		report.Output = ""
		report.ChapterFile = ""
	}

	persistCtx := context.WithoutCancel(ctx)
	r.recordHistory(persistCtx)
	r.writeMetrics()
	if runErr == nil {
		r.logger.Info("run complete",
			logging.String(logging.FieldEventType, "run_complete"),
			logging.String("output", report.Output),
			logging.Int("segments", report.Segments),
			logging.Int("reused", report.Reused),
			logging.Duration("elapsed", report.FinishedAt.Sub(report.StartedAt)))
	}
	return report, runErr
}

func (r *run) recordHistory(ctx context.Context) {
	if r.o.runs == nil {
		return
	}
	report := r.report
	row := store.Run{
		ID:           report.RunID,
		State:        string(report.State),
		Document:     report.Document,
		Output:       report.Output,
		Encoder:      report.Encoder,
		ErrorMessage: report.Error,
		Report:       report.JSON(),
		StartedAt:    report.StartedAt,
		FinishedAt:   report.FinishedAt,
	}
	if err := r.o.runs.RecordRun(ctx, row); err != nil {
		logging.WarnWithContext(r.logger, "failed to record run history", "run_history_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the cache database"),
			logging.String(logging.FieldImpact, "the run is missing from history"))
	}
}

func (r *run) writeMetrics() {
	path := strings.TrimSpace(r.o.cfg.Metrics.Textfile)
	if path == "" {
		return
	}
	states := make([]string, 0, len(States()))
	for _, s := range States() {
		if s.Terminal() {
			states = append(states, string(s))
		}
	}
	rec := metrics.NewRecorder()
	rec.Observe(metrics.Summary{
		State:     string(r.report.State),
		Duration:  r.report.FinishedAt.Sub(r.report.StartedAt),
		Stages:    r.report.StageDurations(),
		Rendered:  r.report.Segments - r.report.Reused,
		Reused:    r.report.Reused,
		Encoder:   r.report.Encoder,
		Finished:  r.report.FinishedAt,
		AllStates: states,
	})
	if err := rec.WriteTextfile(path); err != nil {
		logging.WarnWithContext(r.logger, "failed to write metrics textfile", "metrics_write_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check metrics.textfile"),
			logging.String(logging.FieldImpact, "run metrics are stale"))
	}
}

func lastActive(transitions []Transition) State {
	for i := len(transitions) - 1; i >= 0; i-- {
		if to := transitions[i].To; to != StateCancelling && !to.Terminal() {
			return to
		}
	}
	return StateIdle
}

func failureHint(err error) string {
	switch {
	case errors.Is(err, services.ErrValidation):
		return "run slidecast validate to list every problem"
	case errors.Is(err, services.ErrTimeout):
		return "raise the matching [timeouts] value"
	case errors.Is(err, services.ErrExternalTool):
		return "check the ffmpeg diagnostic above"
	default:
		return "see the error for details"
	}
}
