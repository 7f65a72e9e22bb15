package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"slidecast/internal/document"
	"slidecast/internal/logging"
	"slidecast/internal/plan"
	"slidecast/internal/project"
	"slidecast/internal/services"
)

func newProjectCommand(ctx *commandContext) *cobra.Command {
	projectCmd := &cobra.Command{
		Use:   "project",
		Short: "Create and maintain project files",
	}
	projectCmd.AddCommand(newProjectInitCommand(ctx))
	projectCmd.AddCommand(newProjectStampCommand(ctx))
	return projectCmd
}

func newProjectInitCommand(ctx *commandContext) *cobra.Command {
	var (
		target   string
		force    bool
		noHashes bool
	)
	cmd := &cobra.Command{
		Use:   "init <document.pdf>",
		Short: "Create a project with one silent slide per page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := document.Open(args[0])
			if err != nil {
				return services.Wrap(services.ErrValidation, "project", "open document", "", err)
			}
			path := strings.TrimSpace(target)
			if path == "" {
				path = strings.TrimSuffix(doc.Path, filepath.Ext(doc.Path)) + project.FileExtension
			}
			path, err = filepath.Abs(path)
			if err != nil {
				return err
			}
			if !force {
				if _, err := os.Stat(path); err == nil {
					return fmt.Errorf("project already exists at %s (use --force to replace it)", path)
				}
			}

			proj := project.Scaffold(filepath.Dir(path), doc.Path, doc.PageCount(), plan.DefaultParams())
			if !noHashes {
				hashes, err := pageHashes(cmd.Context(), ctx, doc)
				if err != nil {
					return err
				}
				proj.RecordPageHashes(hashes)
			}
			if err := proj.Save(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s with %d slides\n", path, len(proj.Slides))
			return nil
		},
	}
	cmd.Flags().StringVarP(&target, "output", "o", "", "Project file to write (defaults next to the document)")
	cmd.Flags().BoolVar(&force, "force", false, "Replace an existing project file")
	cmd.Flags().BoolVar(&noHashes, "no-page-hashes", false, "Skip rasterising pages to record their fingerprints")
	return cmd
}

func newProjectStampCommand(ctx *commandContext) *cobra.Command {
	var pages bool
	cmd := &cobra.Command{
		Use:   "stamp <project>",
		Short: "Accept hand edits by re-stamping the integrity hash",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			proj, err := project.Load(args[0])
			if err != nil {
				return err
			}
			if pages {
				doc, err := document.Open(proj.DocumentPath())
				if err != nil {
					return services.Wrap(services.ErrValidation, "project", "open document", "", err)
				}
				hashes, err := pageHashes(cmd.Context(), ctx, doc)
				if err != nil {
					return err
				}
				proj.RecordPageHashes(hashes)
			}
			if err := proj.Save(proj.Path()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Stamped %s\n", proj.Path())
			return nil
		},
	}
	cmd.Flags().BoolVar(&pages, "pages", false, "Also record the current page fingerprints")
	return cmd
}

// pageHashes rasterises doc through the probe cache and returns one
// fingerprint per page, empty for pages that failed.
func pageHashes(ctx context.Context, cmdCtx *commandContext, doc document.Info) ([]string, error) {
	sess, err := cmdCtx.openSession()
	if err != nil {
		return nil, err
	}
	defer sess.Close()
	result, err := sess.assets.ProbeAll(ctx, doc, nil, nil)
	if err != nil {
		return nil, err
	}
	hashes := make([]string, doc.PageCount())
	for _, page := range result.Pages {
		if page.Index >= 0 && page.Index < len(hashes) {
			hashes[page.Index] = page.Fingerprint
		}
	}
	for _, f := range result.Failures {
		logging.WarnWithContext(sess.logger, "page fingerprint unavailable", "page_hash_skipped",
			logging.Slide(f.Page),
			logging.Error(f.Err),
			logging.String(logging.FieldImpact, "changes to this page will not be detected"))
	}
	return hashes, nil
}
