package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"markercut/internal/batch"
	"markercut/internal/config"
	"markercut/internal/deps"
	"markercut/internal/preflight"
	"markercut/internal/services"
)

func newFindClipsCommand(ctx *commandContext) *cobra.Command {
	var opts batch.FindOptions

	cmd := &cobra.Command{
		Use:   "find-clips",
		Short: "Detect marker ranges for every catalog video",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := requireReady(cmd.Context(), cfg); err != nil {
				return err
			}
			return ctx.withRunner(cmd, func(runCtx context.Context, runner *batch.Runner) error {
				report, err := runner.FindClips(runCtx, opts)
				printReport(cmd.OutOrStdout(), report)
				return err
			})
		},
	}

	cmd.Flags().BoolVar(&opts.SkipExisting, "skip-existing-clips", false, "Skip videos that already have a range file")
	cmd.Flags().StringVar(&opts.FromID, "from-id", "", "Start at this video id (inclusive)")
	cmd.Flags().BoolVar(&opts.KeepGoing, "keep-going", false, "Continue with the next video after a failure")
	return cmd
}

func newMakeClipsCommand(ctx *commandContext) *cobra.Command {
	var opts batch.MakeOptions

	cmd := &cobra.Command{
		Use:   "make-clips",
		Short: "Cut detected ranges into one clip per video",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := requireBinaries(cfg); err != nil {
				return err
			}
			return ctx.withRunner(cmd, func(runCtx context.Context, runner *batch.Runner) error {
				report, err := runner.MakeClips(runCtx, opts)
				printReport(cmd.OutOrStdout(), report)
				return err
			})
		},
	}

	cmd.Flags().BoolVar(&opts.SkipExisting, "skip-existing-clips", false, "Skip videos whose clip already exists")
	cmd.Flags().StringVar(&opts.VideoID, "video-id", "", "Only cut this video")
	cmd.Flags().BoolVar(&opts.KeepGoing, "keep-going", false, "Continue with the next video after a failure")
	return cmd
}

func newConcatCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "concat",
		Short: "Join every clip into the compilation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := requireBinaries(cfg); err != nil {
				return err
			}
			return ctx.withRunner(cmd, func(runCtx context.Context, runner *batch.Runner) error {
				report, err := runner.Concat(runCtx)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Compiled %d clips into %s\n", len(report.Videos), report.Output)
				if report.Captions != "" {
					fmt.Fprintf(out, "Captions: %s\n", report.Captions)
				}
				return nil
			})
		},
	}
}

// requireReady runs the directory, space, and dependency checks that must
// pass before frames are extracted.
func requireReady(ctx context.Context, cfg *config.Config) error {
	var failures []string
	for _, result := range preflight.Failed(preflight.RunAll(ctx, cfg)) {
		failures = append(failures, fmt.Sprintf("%s: %s", result.Name, result.Detail))
	}
	for _, status := range deps.Missing(preflight.CheckSystemDeps(ctx, cfg)) {
		failures = append(failures, fmt.Sprintf("%s: %s", status.Name, status.Detail))
	}
	if len(failures) > 0 {
		return services.Wrap(services.ErrConfiguration, "preflight", "check", strings.Join(failures, "; "), nil)
	}
	return nil
}

func requireBinaries(cfg *config.Config) error {
	missing := deps.Missing(deps.CheckBinaries([]deps.Requirement{
		{Name: "FFmpeg", Command: cfg.Tools.FFmpeg},
		{Name: "FFprobe", Command: cfg.Tools.FFprobe},
	}))
	if len(missing) == 0 {
		return nil
	}
	details := make([]string, 0, len(missing))
	for _, status := range missing {
		details = append(details, fmt.Sprintf("%s: %s", status.Name, status.Detail))
	}
	return services.Wrap(services.ErrConfiguration, "preflight", "check binaries", strings.Join(details, "; "), nil)
}

func printReport(out io.Writer, report batch.Report) {
	if report.RunID == "" && len(report.Videos) == 0 {
		return
	}
	done := report.Count(batch.OutcomeDetected) + report.Count(batch.OutcomeCut)
	fmt.Fprintf(out, "%s: %d videos (%d done, %d skipped, %d failed) in %s\n",
		report.Command,
		len(report.Videos),
		done,
		report.Count(batch.OutcomeSkipped),
		report.Count(batch.OutcomeFailed),
		report.Elapsed.Round(time.Millisecond),
	)
	failed := report.Failed()
	if len(failed) == 0 {
		return
	}
	rows := make([][]string, 0, len(failed))
	for _, v := range failed {
		rows = append(rows, []string{v.VideoID, services.Kind(v.Err), yesNo(services.Retryable(v.Err)), v.Err.Error()})
	}
	fmt.Fprintln(out, renderTable([]column{{title: "Video"}, {title: "Kind"}, {title: "Retryable"}, {title: "Error", width: 80}}, rows))
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
