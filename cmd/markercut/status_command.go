package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"markercut/internal/ledger"
)

type statusView struct {
	Summary   ledger.Summary `json:"summary"`
	LatestRun *ledger.Run    `json:"latest_run,omitempty"`
	Videos    []ledger.Video `json:"videos"`
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var (
		jsonOutput bool
		statuses   []string
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show per-video detection status from the ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := make([]ledger.Status, 0, len(statuses))
			for _, raw := range statuses {
				status, ok := ledger.ParseStatus(strings.ToLower(strings.TrimSpace(raw)))
				if !ok {
					return fmt.Errorf("unknown status %q", raw)
				}
				filter = append(filter, status)
			}
			return ctx.withLedger(cmd.Context(), func(store *ledger.Store) error {
				view, err := loadStatusView(cmd.Context(), store, filter)
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd.OutOrStdout(), view)
				}
				renderStatusView(cmd, view)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit JSON instead of a table")
	cmd.Flags().StringSliceVarP(&statuses, "status", "s", nil, "Only list videos with these statuses")
	return cmd
}

func loadStatusView(ctx context.Context, store *ledger.Store, filter []ledger.Status) (statusView, error) {
	var view statusView
	var err error
	if view.Summary, err = store.Summarize(ctx); err != nil {
		return view, err
	}
	if view.LatestRun, err = store.LatestRun(ctx); err != nil {
		return view, err
	}
	if view.Videos, err = store.List(ctx, filter...); err != nil {
		return view, err
	}
	if view.Videos == nil {
		view.Videos = []ledger.Video{}
	}
	return view, nil
}

func renderStatusView(cmd *cobra.Command, view statusView) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)

	for _, line := range renderSectionHeader("Ledger", colorize) {
		fmt.Fprintln(out, line)
	}
	parts := make([]string, 0, len(ledger.AllStatuses))
	for _, status := range ledger.AllStatuses {
		parts = append(parts, fmt.Sprintf("%s %d", status, view.Summary.Counts[status]))
	}
	fmt.Fprintln(out, renderStatusLine("Videos", statusInfo, fmt.Sprintf("%d (%s)", view.Summary.Total, strings.Join(parts, ", ")), colorize))
	if run := view.LatestRun; run != nil {
		kind, state := statusOK, "finished"
		switch {
		case run.FinishedAt == nil:
			kind, state = statusWarn, "unfinished"
		case run.VideosFailed > 0:
			kind = statusWarn
		}
		fmt.Fprintln(out, renderStatusLine("Latest run", kind,
			fmt.Sprintf("%s %s %s, %d videos, %d failed", run.Command, state, humanize.Time(run.StartedAt), run.VideosTotal, run.VideosFailed),
			colorize))
	}
	fmt.Fprintln(out)

	if len(view.Videos) == 0 {
		fmt.Fprintln(out, "No videos recorded")
		return
	}
	rows := make([][]string, 0, len(view.Videos))
	for _, v := range view.Videos {
		detail := v.Detail
		if v.FailureKind != "" {
			detail = v.FailureKind + ": " + detail
		}
		rows = append(rows, []string{
			v.VideoID,
			string(v.Status),
			strconv.Itoa(v.RangeCount),
			strconv.Itoa(v.Attempts),
			humanize.Time(v.UpdatedAt),
			detail,
		})
	}
	fmt.Fprintln(out, renderTable([]column{
		{title: "Video"},
		{title: "Status"},
		{title: "Ranges", numeric: true},
		{title: "Attempts", numeric: true},
		{title: "Updated"},
		{title: "Detail", width: 60},
	}, rows))
}
