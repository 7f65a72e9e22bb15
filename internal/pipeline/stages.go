package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"golang.org/x/sync/errgroup"

	"slidecast/internal/chapters"
	"slidecast/internal/concat"
	"slidecast/internal/document"
	"slidecast/internal/encoders"
	"slidecast/internal/fileutil"
	"slidecast/internal/logging"
	"slidecast/internal/loudness"
	"slidecast/internal/plan"
	"slidecast/internal/probecache"
	"slidecast/internal/render"
	"slidecast/internal/services"
	"slidecast/internal/staging"
	"slidecast/internal/watermark"
)

// run is the mutable state of one Orchestrator.Run call.
type run struct {
	o       *Orchestrator
	job     Job
	logger  *slog.Logger
	emit    *emitter
	machine *machine
	report  *Report
	output  string
	ws      *staging.Workspace

	doc          document.Info
	probed       probecache.Result
	encoder      encoders.Profile
	substitution *encoders.Substitution
	plan         plan.RenderPlan
	segments     []render.Segment
	// current is the latest committed artifact in the workspace.
	current     string
	chapterText string
}

func (r *run) probe(ctx context.Context) error {
	doc, err := r.o.openDocument(r.job.DocumentPath)
	if err != nil {
		return services.Wrap(services.ErrValidation, string(StateProbing), "open document", "", err)
	}
	r.doc = doc
	r.report.Document = doc.Path

	result, err := r.o.assets.ProbeAll(ctx, doc, mediaPaths(r.job.Assignments), func(done, total int) {
		r.emit.progress(StateProbing, float64(done)/float64(max(1, total)), fmt.Sprintf("%d/%d assets", done, total))
	})
	if err != nil {
		return err
	}
	r.probed = result

	discovery, err := r.o.encoders.Discover(ctx, r.job.RefreshEncoders)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return services.Wrap(services.ErrExternalTool, string(StateProbing), "discover encoders", "", err)
	}
	encoder, sub, err := encoders.Select(discovery.Profiles, r.job.Params.EncoderRequest())
	if err != nil {
		return services.Wrap(services.ErrConfiguration, string(StateProbing), "select encoder", "", err)
	}
	r.encoder = encoder
	r.substitution = sub
	r.report.Encoder = encoder.Name
	if sub != nil {
		r.report.Substitutions = append(r.report.Substitutions, *sub)
		logging.WarnWithContext(r.logger, "requested encoder unavailable", "encoder_substituted",
			logging.String("requested", sub.Requested),
			logging.String("selected", sub.Selected),
			logging.String("reason", sub.Reason),
			logging.String(logging.FieldErrorHint, "run slidecast encoders --refresh to re-test the host"),
			logging.String(logging.FieldImpact, "the export uses a different encoder"))
	} else {
		r.logger.Info("encoder selected",
			logging.Args(logging.DecisionAttrs("encoder_selection", encoder.Name, "requested encoder usable")...)...)
	}
	return nil
}

func mediaPaths(assignments []plan.Assignment) []string {
	var out []string
	for _, a := range assignments {
		if a.Material != plan.MaterialSilent && a.MediaPath != "" {
			out = append(out, a.MediaPath)
		}
	}
	return out
}

func (r *run) buildPlan(context.Context) error {
	mediaErrors := make(map[string]error)
	for _, f := range r.probed.Failures {
		if f.Page < 0 {
			mediaErrors[f.Path] = f.Err
		}
	}
	params := r.job.Params
	if r.job.Preview != nil {
		params.YouTubeChapters = false
	}
	built, report := plan.Build(plan.Inputs{
		DocumentPath: r.doc.Path,
		PageCount:    r.doc.PageCount(),
		Pages:        r.probed.Pages,
		Media:        r.probed.Media,
		MediaErrors:  mediaErrors,
	}, r.job.Assignments, params, r.encoder, r.substitution)
	r.report.Problems = report.Problems

	if r.job.Preview != nil {
		page := *r.job.Preview
		report = previewReport(report, page)
		idx := slices.IndexFunc(built.Slides, func(s plan.SlideSpec) bool { return s.Page == page })
		if idx < 0 && !report.HasErrors() {
			report.Errorf(plan.GlobalPage, "page %d is not part of the plan", page+1)
		}
		if idx >= 0 {
			built.Slides = built.Slides[idx : idx+1]
		}
	}
	for _, p := range report.Filter(plan.SeverityWarning) {
		logging.WarnWithContext(r.logger, "plan warning", "plan_warning",
			logging.String("problem", p.String()),
			logging.String(logging.FieldErrorHint, "adjust the slide or accept the result"),
			logging.String(logging.FieldImpact, "the slide renders with the noted compromise"))
	}
	if err := report.Err(); err != nil {
		return err
	}
	r.plan = built
	r.report.TotalDuration = built.TotalDuration()
	r.logger.Info("plan built",
		logging.Int("slides", len(built.Slides)),
		logging.Seconds("duration_seconds", built.TotalDuration()),
		logging.String("encoder", built.Encoder.Name))
	return nil
}

// previewReport keeps only the problems that block rendering page.
func previewReport(report plan.Report, page int) plan.Report {
	var out plan.Report
	for _, p := range report.Problems {
		if p.Page == page || p.Page == plan.GlobalPage {
			out.Problems = append(out.Problems, p)
		}
	}
	return out
}

func (r *run) render(ctx context.Context) error {
	dir, err := r.ws.Sub("segments")
	if err != nil {
		return services.Wrap(services.ErrTransient, string(StateRendering), "create segment dir", "", err)
	}
	renderer := render.New(r.o.runner, r.plan, r.o.cfg.SegmentTimeout(), r.o.logger)
	slides := r.plan.Slides
	segments := make([]render.Segment, len(slides))
	track := newTracker(len(slides), StateRendering, r.emit)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, r.o.cfg.RenderWorkers()))
	for i, slide := range slides {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			seg, err := r.renderSlide(gctx, renderer, slide, dir, func(f float64) { track.set(i, f) })
			if err != nil {
				return err
			}
			segments[i] = seg
			track.set(i, 1)
			r.emit.segment(slide.Page, seg.Reused)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	r.segments = segments
	r.report.Segments = len(segments)
	for _, s := range segments {
		if s.Reused {
			r.report.Reused++
		}
	}
	return nil
}

func (r *run) renderSlide(ctx context.Context, renderer *render.Renderer, slide plan.SlideSpec, dir string, progress func(float64)) (render.Segment, error) {
	fingerprint := renderer.Fingerprint(slide)
	logger := logging.WithContext(services.WithSlide(ctx, slide.Page), r.o.logger)

	if r.o.segments.Enabled() {
		target := render.SegmentPath(dir, slide.Page)
		restored, err := r.o.segments.Restore(ctx, fingerprint, target)
		if err != nil {
			logging.WarnWithContext(logger, "segment cache restore failed", "segment_cache_restore_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "run slidecast cache clear if this repeats"),
				logging.String(logging.FieldImpact, "the segment is rendered again"))
		}
		if restored {
			logger.Info("segment reused",
				logging.Args(logging.DecisionAttrs("segment_reuse", "reused", "render fingerprint unchanged")...)...)
			return render.Segment{Page: slide.Page, Path: target, Duration: slide.Duration, Fingerprint: fingerprint, Reused: true}, nil
		}
	}

	seg, err := renderer.Render(ctx, slide, dir, progress)
	if err != nil {
		return render.Segment{}, err
	}
	seg.Fingerprint = fingerprint
	if err := r.o.segments.Store(ctx, fingerprint, seg.Path); err != nil {
		logging.WarnWithContext(logger, "segment cache store failed", "segment_cache_store_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check segment_cache.dir permissions and free space"),
			logging.String(logging.FieldImpact, "the next run renders this slide again"))
	}
	return seg, nil
}

func (r *run) merge(ctx context.Context) error {
	params := r.plan.Params
	c := concat.New(r.o.runner, r.o.segmentProbe, r.o.cfg.StageTimeout(), r.o.logger)
	res, err := c.Concatenate(ctx, concat.Job{
		Segments:   r.segments,
		Dir:        r.ws.Dir,
		Output:     r.ws.Path("merged.mp4"),
		EncodeArgs: render.EncodeArgs(params, r.plan.Encoder),
		AudioArgs:  render.AudioArgs(params.Audio),
		Progress:   func(f float64) { r.emit.progress(StateMerging, f, "") },
	})
	if err != nil {
		return err
	}
	if res.ReEncoded {
		r.report.Notices = append(r.report.Notices, "segments were re-encoded while merging because stream copy failed")
	}
	r.report.Realised = res.Realised
	r.current = res.Path
	return nil
}

func (r *run) normalize(ctx context.Context) error {
	params := r.plan.Params
	n := loudness.New(r.o.runner, r.o.cfg.StageTimeout(), r.o.cfg.LoudnessAnalysisTimeout(), r.o.logger)
	res, err := n.Normalize(ctx, loudness.Job{
		Input:        r.current,
		Output:       r.ws.Path("normalized.mp4"),
		Mode:         params.Loudness,
		Fallback:     params.LoudnessFallback,
		AudioArgs:    render.AudioArgs(params.Audio),
		TotalSeconds: r.plan.TotalDuration(),
		Progress:     func(f float64) { r.emit.progress(StateNormalizing, f, "") },
	})
	if err != nil {
		return err
	}
	r.report.Loudness = res.Applied
	if res.FellBack {
		r.report.Notices = append(r.report.Notices, "loudness analysis failed; audio was left unnormalized")
	}
	r.current = res.Path
	return nil
}

func (r *run) applyWatermark(ctx context.Context) error {
	params := r.plan.Params
	c := watermark.NewCompositor(r.o.runner, r.o.cfg.StageTimeout(), r.o.logger)
	out, err := c.Apply(ctx, params.Watermark, watermark.Job{
		Input:      r.current,
		Output:     r.ws.Path("watermarked.mp4"),
		WorkDir:    r.ws.Dir,
		Width:      params.Width,
		Height:     params.Height,
		EncodeArgs: render.EncodeArgs(params, r.plan.Encoder),
		Duration:   r.plan.TotalDuration(),
		Progress:   func(f float64) { r.emit.progress(StateWatermarking, f, "") },
	})
	if err != nil {
		return err
	}
	r.current = out
	return nil
}

func (r *run) embedChapters(ctx context.Context) error {
	if !r.plan.Params.Chapters {
		r.logger.Debug("chapters disabled")
		return nil
	}
	entries := chapters.Compute(r.plan.ChapterSlides())
	e := chapters.NewEmbedder(r.o.runner, r.o.cfg.StageTimeout(), r.o.logger)
	res, err := e.Embed(ctx, chapters.Job{
		Input:    r.current,
		Output:   r.ws.Path("final.mp4"),
		WorkDir:  r.ws.Dir,
		TextPath: r.ws.Path("chapters.txt"),
		Entries:  entries,
	})
	if err != nil {
		return err
	}
	r.report.Chapters = entries
	r.current = res.Path
	r.chapterText = res.TextPath
	return nil
}

// publish copies the committed artifact to the output path. It is the only
// step that writes outside the workspace.
func (r *run) publish(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	src := r.current
	if r.job.Preview != nil && len(r.segments) > 0 {
		src = r.segments[0].Path
	}
	if err := fileutil.PublishFile(src, r.output); err != nil {
		return services.Wrap(services.ErrTransient, "publish", "publish output", "", err)
	}
	var companion string
	if r.chapterText != "" {
		companion = chapters.CompanionPath(r.output)
		if err := fileutil.PublishFile(r.chapterText, companion); err != nil {
			return services.Wrap(services.ErrTransient, "publish", "publish chapter listing", "", err)
		}
	}
	r.report.Output = r.output
	r.report.ChapterFile = companion
	return nil
}
