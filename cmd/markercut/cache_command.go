package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"markercut/internal/framecache"
	"markercut/internal/logging"
)

func newCacheCommand(ctx *commandContext) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and manage the frame cache",
	}

	cacheCmd.AddCommand(newCacheStatsCommand(ctx))
	cacheCmd.AddCommand(newCacheClearCommand(ctx))
	cacheCmd.AddCommand(newCachePruneCommand(ctx))

	return cacheCmd
}

func (c *commandContext) frameBackend() (*framecache.DirBackend, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := c.ensureLogger()
	if err != nil {
		return nil, err
	}
	return framecache.NewDirBackend(cfg.FramesDir(), logging.NewComponentLogger(logger, "framecache")), nil
}

func newCacheStatsCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show frame cache usage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, err := ctx.frameBackend()
			if err != nil {
				return err
			}
			stats, err := backend.Stats(cmd.Context())
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd.OutOrStdout(), stats)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Root:   %s\n", backend.Root())
			fmt.Fprintf(out, "Videos: %d (%d extractions, %d frames)\n", stats.Videos, stats.Keys, stats.Frames)
			fmt.Fprintf(out, "Size:   %s\n", humanize.IBytes(uint64(max(stats.TotalBytes, 0))))
			if stats.TotalFSBytes > 0 {
				fmt.Fprintf(out, "Disk:   %s free of %s\n", humanize.IBytes(stats.FreeBytes), humanize.IBytes(stats.TotalFSBytes))
			}
			printCacheSummaries(out, stats.Summaries)
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit JSON instead of text")
	return cmd
}

func printCacheSummaries(out io.Writer, summaries []framecache.VideoSummary) {
	if len(summaries) == 0 {
		fmt.Fprintln(out, "Cached videos: none")
		return
	}
	rows := make([][]string, 0, len(summaries))
	for _, s := range summaries {
		updated := "unknown"
		if !s.ModifiedAt.IsZero() {
			updated = humanize.Time(s.ModifiedAt)
		}
		rows = append(rows, []string{
			s.VideoID,
			strconv.Itoa(s.Keys),
			strconv.Itoa(s.Frames),
			humanize.IBytes(uint64(max(s.SizeBytes, 0))),
			strconv.Itoa(s.Staging),
			updated,
		})
	}
	fmt.Fprintln(out, renderTable([]column{
		{title: "Video"},
		{title: "Extractions", numeric: true},
		{title: "Frames", numeric: true},
		{title: "Size", numeric: true},
		{title: "Staging", numeric: true},
		{title: "Updated"},
	}, rows))
}

func newCacheClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear <video-id>",
		Short: "Delete every cached frame for a video",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, err := ctx.frameBackend()
			if err != nil {
				return err
			}
			if err := backend.Remove(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cleared cached frames for %s\n", args[0])
			return nil
		},
	}
}

func newCachePruneCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Remove staging directories left by interrupted extractions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, err := ctx.frameBackend()
			if err != nil {
				return err
			}
			stats, err := backend.Stats(cmd.Context())
			if err != nil {
				return err
			}
			total := 0
			for _, s := range stats.Summaries {
				if s.Staging == 0 {
					continue
				}
				removed, err := backend.PruneStaging(s.VideoID)
				total += removed
				if err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d staging directories\n", total)
			return nil
		},
	}
}
