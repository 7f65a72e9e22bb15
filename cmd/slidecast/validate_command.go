package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"slidecast/internal/chapters"
	"slidecast/internal/logging"
	"slidecast/internal/plan"
	"slidecast/internal/preflight"
	"slidecast/internal/project"
	"slidecast/internal/services"
)

func newValidateCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "validate <project>",
		Short: "Check a project without rendering it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := ctx.openSession()
			if err != nil {
				return err
			}
			defer sess.Close()
			result, err := validateProject(cmd.Context(), sess, args[0])
			if jsonOutput {
				if jerr := writeJSON(cmd, result); jerr != nil {
					return jerr
				}
				return err
			}
			printValidation(cmd.OutOrStdout(), result, shouldColorize(cmd.OutOrStdout()))
			return err
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the findings as JSON")
	return cmd
}

// validation is everything validate reports about a project.
type validation struct {
	Project   string             `json:"project"`
	Warnings  []string           `json:"warnings,omitempty"`
	Preflight []preflight.Result `json:"preflight,omitempty"`
	Problems  []plan.Problem     `json:"problems,omitempty"`
	Encoder   string             `json:"encoder,omitempty"`
	Duration  float64            `json:"duration_seconds,omitempty"`
	Chapters  []chapters.Entry   `json:"chapters,omitempty"`
	Error     string             `json:"error,omitempty"`
}

func validateProject(ctx context.Context, sess *session, path string) (validation, error) {
	result := validation{Project: path}
	proj, err := project.Load(path)
	if err != nil {
		result.Error = err.Error()
		return result, err
	}
	result.Project = proj.Path()
	result.Warnings = proj.Warnings

	job, err := projectJob(proj, "")
	if err != nil {
		result.Error = err.Error()
		return result, services.Wrap(services.ErrValidation, "validate", "project parameters", "", err)
	}
	result.Preflight = preflight.Failed(preflight.RunAll(sess.cfg, job.Output, true))

	orch, err := sess.orchestrator()
	if err != nil {
		return result, err
	}
	report, _, err := orch.Check(ctx, job)
	result.Problems = report.Problems
	result.Encoder = report.Encoder
	result.Duration = report.TotalDuration
	result.Chapters = report.Chapters
	if err != nil {
		result.Error = err.Error()
		return result, err
	}
	if len(result.Preflight) > 0 {
		err := services.Wrap(services.ErrConfiguration, "validate", "preflight", "preflight checks failed", nil)
		result.Error = err.Error()
		return result, err
	}
	return result, nil
}

func printValidation(out io.Writer, v validation, colorize bool) {
	fmt.Fprintf(out, "Project: %s\n", v.Project)
	for _, w := range v.Warnings {
		fmt.Fprintln(out, renderStatusLine("project", statusWarn, w, colorize))
	}
	printPreflight(out, v.Preflight, colorize)
	printProblems(out, v.Problems, colorize)
	if v.Error != "" && len(v.Problems) == 0 && len(v.Preflight) == 0 {
		fmt.Fprintln(out, renderStatusLine("project", statusError, v.Error, colorize))
	}
	if v.Error == "" {
		fmt.Fprintln(out, renderStatusLine("plan", statusOK,
			fmt.Sprintf("%s with %s, %d chapters", chapters.Timestamp(v.Duration), v.Encoder, len(v.Chapters)), colorize))
	}
}

func newWatchCommand(ctx *commandContext) *cobra.Command {
	var debounce time.Duration
	cmd := &cobra.Command{
		Use:   "watch <project>",
		Short: "Re-validate a project whenever it or its media change",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := ctx.openSession()
			if err != nil {
				return err
			}
			defer sess.Close()

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			check := func() []string {
				result, err := validateProject(cmd.Context(), sess, args[0])
				printValidation(out, result, colorize)
				if err != nil && errors.Is(err, services.ErrCancelled) {
					return nil
				}
				return watchTargets(args[0])
			}

			for targets := check(); ; {
				if len(targets) == 0 {
					return cmd.Context().Err()
				}
				w, err := project.NewWatcher(targets, debounce, sess.logger)
				if err != nil {
					return err
				}
				changed := false
				// The watcher set is rebuilt after each change so newly
				// referenced media are picked up.
				watchCtx, cancel := context.WithCancel(cmd.Context())
				err = w.Run(watchCtx, func(path string) {
					sess.logger.Info("project input changed",
						logging.String(logging.FieldEventType, "watch_change"),
						logging.String("path", path))
					fmt.Fprintf(out, "\nChanged: %s\n", path)
					changed = true
					cancel()
				})
				cancel()
				if err != nil {
					return err
				}
				if !changed {
					return nil
				}
				targets = check()
			}
		},
	}
	cmd.Flags().DurationVar(&debounce, "debounce", project.DefaultDebounce, "Quiet period before re-validating")
	return cmd
}

// watchTargets lists the project file plus the document and media it
// references. An unreadable project still watches the file itself.
func watchTargets(path string) []string {
	proj, err := project.Load(path)
	if err != nil {
		return []string{path}
	}
	return append([]string{proj.Path(), proj.DocumentPath()}, proj.MediaPaths()...)
}
