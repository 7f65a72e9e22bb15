package main

import (
	"fmt"

	"github.com/google/renameio/v2"
	"github.com/spf13/cobra"

	"slidecast/internal/chapters"
	"slidecast/internal/project"
)

func newChaptersCommand(ctx *commandContext) *cobra.Command {
	var (
		youtube    bool
		write      bool
		jsonOutput bool
	)
	cmd := &cobra.Command{
		Use:   "chapters <project>",
		Short: "Show the chapter markers a render would embed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			proj, err := project.Load(args[0])
			if err != nil {
				return err
			}
			job, err := projectJob(proj, "")
			if err != nil {
				return err
			}
			// Listing chapters never fails on the project's own YouTube
			// setting; --youtube reports the rules separately.
			job.Params.YouTubeChapters = false
			job.Params.Chapters = true

			sess, err := ctx.openSession()
			if err != nil {
				return err
			}
			defer sess.Close()
			orch, err := sess.orchestrator()
			if err != nil {
				return err
			}
			report, _, err := orch.Check(cmd.Context(), job)
			if err != nil {
				printProblems(cmd.ErrOrStderr(), report.Problems, shouldColorize(cmd.ErrOrStderr()))
				return err
			}

			if jsonOutput {
				if err := writeJSON(cmd, report.Chapters); err != nil {
					return err
				}
			} else {
				rows := make([][]string, 0, len(report.Chapters))
				for _, e := range report.Chapters {
					rows = append(rows, []string{chapters.Timestamp(e.Start), formatSeconds(e.End - e.Start), e.Title})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"Start", "Length", "Title"}, rows,
					[]columnAlignment{alignRight, alignRight, alignLeft}))
			}

			if write {
				path := chapters.CompanionPath(job.Output)
				if err := renameio.WriteFile(path, []byte(chapters.Listing(report.Chapters)), 0o644); err != nil {
					return fmt.Errorf("write chapter listing: %w", err)
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %s\n", path)
			}

			if youtube {
				violations := chapters.CheckYouTube(report.Chapters)
				colorize := shouldColorize(cmd.ErrOrStderr())
				for _, v := range violations {
					fmt.Fprintln(cmd.ErrOrStderr(), renderStatusLine("youtube", statusError, v, colorize))
				}
				if len(violations) > 0 {
					return fmt.Errorf("chapters do not meet YouTube requirements")
				}
				fmt.Fprintln(cmd.ErrOrStderr(), renderStatusLine("youtube", statusOK, "chapters meet YouTube requirements", colorize))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&youtube, "youtube", false, "Check the chapters against YouTube's rules")
	cmd.Flags().BoolVar(&write, "write", false, "Write the companion chapter listing next to the output")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the chapters as JSON")
	return cmd
}
