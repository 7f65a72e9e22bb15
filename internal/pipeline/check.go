package pipeline

import (
	"context"
	"time"

	"slidecast/internal/chapters"
	"slidecast/internal/plan"
)

// Check probes the job's inputs and builds its plan without rendering or
// touching the output. The report lists every problem found and, when the
// plan is usable, its chapters and total duration. err is non-nil when the
// plan cannot be rendered.
func (o *Orchestrator) Check(ctx context.Context, job Job) (*Report, plan.RenderPlan, error) {
	ctx, r := o.newRun(ctx, job)

	err := r.stage(ctx, StateProbing, r.probe)
	if err == nil {
		err = r.stage(ctx, StatePlanBuilding, r.buildPlan)
	}
	r.report.State = r.machine.current()
	r.report.Transitions = r.machine.transitions()
	r.report.FinishedAt = time.Now().UTC()
	if err != nil {
		r.report.Error = err.Error()
		return r.report, plan.RenderPlan{}, err
	}
	if r.plan.Params.Chapters {
		r.report.Chapters = chapters.Compute(r.plan.ChapterSlides())
	}
	return r.report, r.plan, nil
}
