package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"slidecast/internal/pipeline"
	"slidecast/internal/preflight"
	"slidecast/internal/project"
	"slidecast/internal/services"
	"slidecast/internal/textutil"
)

type renderOptions struct {
	output          string
	refreshEncoders bool
	jsonOutput      bool
	skipPreflight   bool
}

func newRenderCommand(ctx *commandContext) *cobra.Command {
	var opts renderOptions
	cmd := &cobra.Command{
		Use:   "render <project>",
		Short: "Render a project to a video file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRender(cmd, ctx, args[0], nil, opts)
		},
	}
	addRenderFlags(cmd, &opts)
	return cmd
}

func newPreviewCommand(ctx *commandContext) *cobra.Command {
	var opts renderOptions
	var slide int
	cmd := &cobra.Command{
		Use:   "preview <project>",
		Short: "Render one slide on its own",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if slide < 1 {
				return services.Wrap(services.ErrValidation, "preview", "parse flags", "--slide must be 1 or more", nil)
			}
			page := slide - 1
			return runRender(cmd, ctx, args[0], &page, opts)
		},
	}
	addRenderFlags(cmd, &opts)
	cmd.Flags().IntVar(&slide, "slide", 1, "Slide number to preview (1-based)")
	return cmd
}

func addRenderFlags(cmd *cobra.Command, opts *renderOptions) {
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Output file (defaults to the project's output)")
	cmd.Flags().BoolVar(&opts.refreshEncoders, "refresh-encoders", false, "Re-test encoders instead of using cached discovery")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Print the run report as JSON")
	cmd.Flags().BoolVar(&opts.skipPreflight, "skip-preflight", false, "Skip binary and directory checks")
}

func runRender(cmd *cobra.Command, ctx *commandContext, projectPath string, preview *int, opts renderOptions) error {
	proj, err := project.Load(projectPath)
	if err != nil {
		return err
	}
	job, err := projectJob(proj, opts.output)
	if err != nil {
		return err
	}
	if preview != nil {
		job.Preview = preview
		if opts.output == "" {
			job.Output = previewOutput(job.Output, *preview)
		}
	}
	job.RefreshEncoders = opts.refreshEncoders

	sess, err := ctx.openSession()
	if err != nil {
		return err
	}
	defer sess.Close()

	stderr := cmd.ErrOrStderr()
	colorize := shouldColorize(stderr)
	for _, w := range proj.Warnings {
		fmt.Fprintln(stderr, renderStatusLine("project", statusWarn, w, colorize))
	}
	if !opts.skipPreflight {
		if failed := preflight.Failed(preflight.RunAll(sess.cfg, job.Output, true)); len(failed) > 0 {
			printPreflight(stderr, failed, colorize)
			return services.Wrap(services.ErrConfiguration, "preflight", "check host", "preflight checks failed", nil)
		}
	}

	orch, err := sess.orchestrator()
	if err != nil {
		return err
	}
	printer := newProgressPrinter(stderr, isTerminal(stderr), colorize)
	job.Observer = printer.observe

	report, runErr := orch.Run(cmd.Context(), job)
	printer.finish()

	if opts.jsonOutput {
		if err := writeJSON(cmd, report); err != nil {
			return err
		}
	} else {
		printReport(cmd.OutOrStdout(), report, colorize)
	}
	if runErr != nil && errors.Is(runErr, services.ErrValidation) && len(report.Problems) > 0 && !opts.jsonOutput {
		printProblems(stderr, report.Problems, colorize)
	}
	return runErr
}

// previewOutput places a preview next to the export as <stem>-slide-N.mp4.
func previewOutput(output string, page int) string {
	stem := strings.TrimSuffix(output, ".mp4")
	return fmt.Sprintf("%s-slide-%d.mp4", stem, page+1)
}

func printReport(out io.Writer, report *pipeline.Report, colorize bool) {
	rows := [][]string{
		{"Run", report.RunID},
		{"State", string(report.State)},
	}
	if report.Output != "" {
		rows = append(rows, []string{"Output", report.Output})
	}
	if report.ChapterFile != "" {
		rows = append(rows, []string{"Chapters", report.ChapterFile})
	}
	if report.Encoder != "" {
		rows = append(rows, []string{"Encoder", report.Encoder})
	}
	if report.TotalDuration > 0 {
		rows = append(rows, []string{"Duration", (time.Duration(report.TotalDuration * float64(time.Second))).Round(100 * time.Millisecond).String()})
	}
	if report.Segments > 0 {
		rows = append(rows, []string{"Segments", fmt.Sprintf("%d (%d reused)", report.Segments, report.Reused)})
	}
	if report.Loudness != "" {
		rows = append(rows, []string{"Loudness", string(report.Loudness)})
	}
	rows = append(rows, []string{"Elapsed", report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond).String()})
	fmt.Fprintln(out, renderTable([]string{"Field", "Value"}, rows, nil))

	if len(report.Stages) > 0 {
		stageRows := make([][]string, 0, len(report.Stages))
		for _, s := range report.Stages {
			stageRows = append(stageRows, []string{stageLabel(s.Stage), s.Duration.Round(time.Millisecond).String()})
		}
		fmt.Fprintln(out, renderTable([]string{"Stage", "Duration"}, stageRows, []columnAlignment{alignLeft, alignRight}))
	}
	for _, s := range report.Substitutions {
		fmt.Fprintln(out, renderStatusLine("encoder", statusWarn, s.String(), colorize))
	}
	for _, n := range report.Notices {
		fmt.Fprintln(out, renderStatusLine("notice", statusInfo, n, colorize))
	}
	if report.Error != "" {
		fmt.Fprintln(out, renderStatusLine("error", statusError, report.Error, colorize))
	}
}

// stageLabel turns "plan_building" into "Plan Building".
func stageLabel(s pipeline.State) string {
	return textutil.TitleCase(strings.ReplaceAll(string(s), "_", " "))
}

// progressPrinter renders pipeline events. On a terminal the current stage
// fraction is redrawn in place; otherwise only state changes are printed.
type progressPrinter struct {
	mu       sync.Mutex
	out      io.Writer
	tty      bool
	colorize bool
	inline   bool
}

func newProgressPrinter(out io.Writer, tty, colorize bool) *progressPrinter {
	return &progressPrinter{out: out, tty: tty, colorize: colorize}
}

func (p *progressPrinter) observe(ev pipeline.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch ev.Kind {
	case pipeline.EventState:
		p.clearLine()
		kind := statusInfo
		switch ev.State {
		case pipeline.StateDone:
			kind = statusOK
		case pipeline.StateFailed, pipeline.StateCancelled:
			kind = statusError
		case pipeline.StateCancelling:
			kind = statusWarn
		}
		fmt.Fprintln(p.out, renderStatusLine(string(ev.State), kind, "", p.colorize))
	case pipeline.EventProgress:
		if !p.tty {
			return
		}
		line := fmt.Sprintf("%s%-*s %5.1f%%", statusIndent, statusLabelWidth, string(ev.State)+":", ev.Fraction*100)
		if ev.Message != "" {
			line += " " + ev.Message
		}
		fmt.Fprintf(p.out, "\r\x1b[K%s", line)
		p.inline = true
	case pipeline.EventSegment:
		if p.tty {
			return
		}
		fmt.Fprintf(p.out, "%sslide %d %s\n", statusIndent+statusIndent, ev.Page+1, ev.Message)
	}
}

func (p *progressPrinter) clearLine() {
	if p.inline {
		fmt.Fprint(p.out, "\r\x1b[K")
		p.inline = false
	}
}

func (p *progressPrinter) finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clearLine()
}
