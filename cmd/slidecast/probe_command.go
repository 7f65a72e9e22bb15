package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"slidecast/internal/media"
)

func newProbeCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "probe <media>...",
		Short: "Show the duration and streams of media files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := ctx.openSession()
			if err != nil {
				return err
			}
			defer sess.Close()

			assets := make([]media.Asset, 0, len(args))
			var failures []string
			for _, path := range args {
				asset, err := sess.assets.Media(cmd.Context(), path)
				if err != nil {
					failures = append(failures, fmt.Sprintf("%s: %v", path, err))
					continue
				}
				assets = append(assets, asset)
			}
			if jsonOutput {
				if err := writeJSON(cmd, assets); err != nil {
					return err
				}
			} else if len(assets) > 0 {
				rows := make([][]string, 0, len(assets))
				for _, a := range assets {
					rows = append(rows, []string{
						a.Identity.Path,
						string(a.Kind),
						formatSeconds(a.Duration),
						describeStreams(a),
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"Path", "Kind", "Duration", "Streams"}, rows,
					[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft}))
			}
			if len(failures) > 0 {
				colorize := shouldColorize(cmd.ErrOrStderr())
				for _, f := range failures {
					fmt.Fprintln(cmd.ErrOrStderr(), renderStatusLine("probe", statusError, f, colorize))
				}
				return fmt.Errorf("%d of %d files could not be probed", len(failures), len(args))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the probe results as JSON")
	return cmd
}

func describeStreams(a media.Asset) string {
	parts := make([]string, 0, len(a.AudioStreams)+1)
	if a.Video != nil {
		parts = append(parts, fmt.Sprintf("video %dx%d", a.Video.Width, a.Video.Height))
	}
	for i, s := range a.AudioStreams {
		label := "audio " + strconv.Itoa(i)
		if s.Language != "" {
			label += " (" + s.Language + ")"
		}
		parts = append(parts, label)
	}
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, ", ")
}

func formatSeconds(seconds float64) string {
	return time.Duration(seconds * float64(time.Second)).Round(10 * time.Millisecond).String()
}

func newEncodersCommand(ctx *commandContext) *cobra.Command {
	var refresh bool
	var jsonOutput bool
	var all bool
	cmd := &cobra.Command{
		Use:   "encoders",
		Short: "List the video encoders this host can use",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := ctx.openSession()
			if err != nil {
				return err
			}
			defer sess.Close()

			discovery, err := sess.encoders.Discover(cmd.Context(), refresh)
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, discovery)
			}

			out := cmd.OutOrStdout()
			source := "tested now"
			if discovery.Cached {
				source = "cached " + discovery.DiscoveredAt.Local().Format("2006-01-02 15:04")
			}
			fmt.Fprintf(out, "ffmpeg %s (%s)\n", discovery.FFmpegVersion, source)

			rows := make([][]string, 0, len(discovery.Profiles))
			for _, p := range discovery.Profiles {
				if !all && !p.Usable {
					continue
				}
				rows = append(rows, []string{p.Name, string(p.Family), string(p.Vendor), yesNo(p.Hardware), yesNo(p.Usable), p.Reason})
			}
			if len(rows) == 0 {
				fmt.Fprintln(out, "No usable encoders found")
				return nil
			}
			fmt.Fprintln(out, renderTable([]string{"Encoder", "Codec", "Vendor", "Hardware", "Usable", "Reason"}, rows, nil))
			return nil
		},
	}
	cmd.Flags().BoolVar(&refresh, "refresh", false, "Re-test every encoder instead of using cached results")
	cmd.Flags().BoolVar(&all, "all", false, "Include encoders that failed their test encode")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the discovery result as JSON")
	return cmd
}
