package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"slidecast/internal/segcache"
	"slidecast/internal/store"
)

func newCacheCommand(ctx *commandContext) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and manage the probe, encoder and segment caches",
	}

	cacheCmd.AddCommand(newCacheStatsCommand(ctx))
	cacheCmd.AddCommand(newCachePruneCommand(ctx))
	cacheCmd.AddCommand(newCacheClearCommand(ctx))

	return cacheCmd
}

func newCacheStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show cache usage",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := ctx.openSession()
			if err != nil {
				return err
			}
			defer sess.Close()

			rows, err := sess.store.Stats(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Database: %s\n", sess.store.Path())
			fmt.Fprintln(out, renderTable([]string{"Table", "Rows"}, [][]string{
				{"Media probes", strconv.Itoa(rows.MediaProbes)},
				{"Page rasters", strconv.Itoa(rows.PageRasters)},
				{"Encoder discovery", strconv.Itoa(rows.EncoderEntries)},
				{"Run history", strconv.Itoa(rows.Runs)},
			}, []columnAlignment{alignLeft, alignRight}))

			if !sess.segments.Enabled() {
				fmt.Fprintln(out, "Segment cache: disabled")
				return nil
			}
			segments, err := sess.segments.Stats(cmd.Context())
			if err != nil {
				return err
			}
			printSegmentStats(out, segments)
			return nil
		},
	}
}

func printSegmentStats(out io.Writer, s segcache.Stats) {
	fmt.Fprintf(out, "Segment cache: %d entries\n", s.Entries)
	fmt.Fprintf(out, "  Size:  %s / %s\n", humanize.IBytes(uint64(max(s.TotalBytes, 0))), humanize.IBytes(uint64(max(s.MaxBytes, 0))))
	fmt.Fprintf(out, "  Disk:  %s free of %s (%.1f%%)\n", humanize.IBytes(s.FreeBytes), humanize.IBytes(s.TotalFSBytes), s.FreeRatio*100)
	if !s.Oldest.IsZero() {
		fmt.Fprintf(out, "  Oldest entry used %s\n", humanize.Time(s.Oldest))
		fmt.Fprintf(out, "  Newest entry used %s\n", humanize.Time(s.Newest))
	}
}

func newCachePruneCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Prune the segment cache to its size budget now",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := ctx.openSession()
			if err != nil {
				return err
			}
			defer sess.Close()
			if !sess.segments.Enabled() {
				fmt.Fprintln(cmd.OutOrStdout(), "Segment cache is disabled")
				return nil
			}
			before, err := sess.segments.Stats(cmd.Context())
			if err != nil {
				return err
			}
			if err := sess.segments.Prune(cmd.Context()); err != nil {
				return err
			}
			after, err := sess.segments.Stats(cmd.Context())
			if err != nil {
				return err
			}
			freed := before.TotalBytes - after.TotalBytes
			if freed <= 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No cache entries pruned")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Pruned %s (now %s / %s)\n",
				humanize.IBytes(uint64(freed)), humanize.IBytes(uint64(after.TotalBytes)), humanize.IBytes(uint64(after.MaxBytes)))
			return nil
		},
	}
}

func newCacheClearCommand(ctx *commandContext) *cobra.Command {
	var (
		includeRuns bool
		segments    bool
		encoders    bool
	)
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Forget cached probes and page rasters",
		Long: "Forget cached media probes and page rasters. Encoder discovery, rendered " +
			"segments and run history are kept unless their flags are given.",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := ctx.openSession()
			if err != nil {
				return err
			}
			defer sess.Close()
			out := cmd.OutOrStdout()

			if err := sess.store.ClearCaches(cmd.Context(), includeRuns); err != nil {
				return err
			}
			fmt.Fprintln(out, "Cleared media probes and page rasters")
			if includeRuns {
				fmt.Fprintln(out, "Cleared run history")
			}
			if encoders {
				if err := sess.store.ClearEncoderDiscovery(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(out, "Cleared encoder discovery")
			}
			if segments {
				removed, err := sess.segments.Clear(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Removed %d cached segments\n", removed)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&includeRuns, "runs", false, "Also clear run history")
	cmd.Flags().BoolVar(&segments, "segments", false, "Also remove cached segments")
	cmd.Flags().BoolVar(&encoders, "encoders", false, "Also forget encoder discovery results")
	return cmd
}

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var (
		limit      int
		jsonOutput bool
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent renders",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := ctx.openSession()
			if err != nil {
				return err
			}
			defer sess.Close()

			runs, err := sess.store.RecentRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if jsonOutput {
				reports := make([]json.RawMessage, 0, len(runs))
				for _, r := range runs {
					if len(r.Report) > 0 {
						reports = append(reports, json.RawMessage(r.Report))
					}
				}
				return writeJSON(cmd, reports)
			}
			out := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintln(out, "No renders recorded")
				return nil
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Started", "State", "Elapsed", "Output", "Encoder", "Error"},
				historyRows(runs), nil))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of runs to show")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the stored run reports as JSON")
	return cmd
}

func historyRows(runs []store.Run) [][]string {
	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		elapsed := "-"
		if !r.FinishedAt.IsZero() && !r.StartedAt.IsZero() {
			elapsed = r.FinishedAt.Sub(r.StartedAt).Round(time.Second).String()
		}
		rows = append(rows, []string{
			r.StartedAt.Local().Format("2006-01-02 15:04"),
			r.State,
			elapsed,
			r.Output,
			r.Encoder,
			r.ErrorMessage,
		})
	}
	return rows
}
