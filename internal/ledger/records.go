package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"markercut/internal/services"
)

// BeginRun records the start of a batch command and returns its run.
func (s *Store) BeginRun(ctx context.Context, command string) (Run, error) {
	run := Run{ID: newRunID(), Command: command, StartedAt: s.now()}
	if _, err := s.exec(ctx,
		`INSERT INTO runs (id, command, started_at) VALUES (?, ?, ?)`,
		run.ID, run.Command, run.StartedAt.Format(timeLayout),
	); err != nil {
		return Run{}, fmt.Errorf("insert run: %w", err)
	}
	return run, nil
}

// FinishRun stamps the run with its totals.
func (s *Store) FinishRun(ctx context.Context, runID string, total, failed int) error {
	res, err := s.exec(ctx,
		`UPDATE runs SET finished_at = ?, videos_total = ?, videos_failed = ? WHERE id = ?`,
		s.timestamp(), total, failed, runID,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return services.Wrap(services.ErrNotFound, "ledger", "finish run", runID, nil)
	}
	return nil
}

// MarkRunning records that runID started working on videoID.
func (s *Store) MarkRunning(ctx context.Context, runID, videoID string) error {
	now := s.timestamp()
	_, err := s.exec(ctx, `
        INSERT INTO videos (video_id, status, run_id, range_count, failure_kind, detail, attempts, started_at, updated_at)
        VALUES (?, ?, ?, 0, NULL, NULL, 1, ?, ?)
        ON CONFLICT(video_id) DO UPDATE SET
            status = excluded.status,
            run_id = excluded.run_id,
            failure_kind = NULL,
            detail = NULL,
            attempts = videos.attempts + 1,
            started_at = excluded.started_at,
            updated_at = excluded.updated_at`,
		videoID, StatusRunning, nullableString(runID), now, now,
	)
	if err != nil {
		return fmt.Errorf("mark running: %w", err)
	}
	return nil
}

// MarkDetected records a successful detection with its range count.
func (s *Store) MarkDetected(ctx context.Context, runID, videoID string, ranges int) error {
	return s.finish(ctx, runID, videoID, StatusDetected, ranges, "", "")
}

// MarkFailed records err, classified with services.Kind.
func (s *Store) MarkFailed(ctx context.Context, runID, videoID string, cause error) error {
	detail := ""
	if cause != nil {
		detail = cause.Error()
	}
	return s.finish(ctx, runID, videoID, StatusFailed, 0, services.Kind(cause), detail)
}

// MarkSkipped records that videoID was passed over and why.
func (s *Store) MarkSkipped(ctx context.Context, runID, videoID, reason string) error {
	return s.finish(ctx, runID, videoID, StatusSkipped, 0, "", reason)
}

func (s *Store) finish(ctx context.Context, runID, videoID string, status Status, ranges int, kind, detail string) error {
	_, err := s.exec(ctx, `
        INSERT INTO videos (video_id, status, run_id, range_count, failure_kind, detail, attempts, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, 0, ?)
        ON CONFLICT(video_id) DO UPDATE SET
            status = excluded.status,
            run_id = excluded.run_id,
            range_count = excluded.range_count,
            failure_kind = excluded.failure_kind,
            detail = excluded.detail,
            updated_at = excluded.updated_at`,
		videoID, status, nullableString(runID), ranges, nullableString(kind), nullableString(detail), s.timestamp(),
	)
	if err != nil {
		return fmt.Errorf("mark %s: %w", status, err)
	}
	return nil
}

// ResetInterrupted marks videoID failed if it is still recorded as running
// and reports whether the row changed. The caller holds the video's lock, so
// only rows whose owning process has gone away are reset.
func (s *Store) ResetInterrupted(ctx context.Context, videoID string) (bool, error) {
	res, err := s.exec(ctx,
		`UPDATE videos SET status = ?, failure_kind = ?, detail = ?, updated_at = ? WHERE video_id = ? AND status = ?`,
		StatusFailed, services.Kind(services.ErrTransient), InterruptedDetail, s.timestamp(), videoID, StatusRunning,
	)
	if err != nil {
		return false, fmt.Errorf("reset interrupted %s: %w", videoID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("reset interrupted %s: %w", videoID, err)
	}
	return n > 0, nil
}

const videoColumns = "video_id, status, run_id, range_count, failure_kind, detail, attempts, started_at, updated_at"

func scanVideo(scanner interface{ Scan(dest ...any) error }) (*Video, error) {
	var (
		video      Video
		status     string
		runID      sql.NullString
		kind       sql.NullString
		detail     sql.NullString
		startedRaw sql.NullString
		updatedRaw sql.NullString
	)
	if err := scanner.Scan(&video.VideoID, &status, &runID, &video.RangeCount, &kind, &detail,
		&video.Attempts, &startedRaw, &updatedRaw); err != nil {
		return nil, err
	}
	video.Status = Status(status)
	video.RunID = runID.String
	video.FailureKind = kind.String
	video.Detail = detail.String
	started, err := parseTime(startedRaw)
	if err != nil {
		return nil, err
	}
	video.StartedAt = started
	updated, err := parseTime(updatedRaw)
	if err != nil {
		return nil, err
	}
	if updated != nil {
		video.UpdatedAt = *updated
	}
	return &video, nil
}

// Video fetches the row for videoID, or nil when none exists.
func (s *Store) Video(ctx context.Context, videoID string) (*Video, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+videoColumns+` FROM videos WHERE video_id = ?`, videoID)
	video, err := scanVideo(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get video: %w", err)
	}
	return video, nil
}

// List returns videos, newest update first, optionally limited to statuses.
func (s *Store) List(ctx context.Context, statuses ...Status) ([]Video, error) {
	query := `SELECT ` + videoColumns + ` FROM videos`
	args := make([]any, 0, len(statuses))
	if len(statuses) > 0 {
		placeholders := make([]string, len(statuses))
		for i, status := range statuses {
			placeholders[i] = "?"
			args = append(args, status)
		}
		query += ` WHERE status IN (` + strings.Join(placeholders, ", ") + `)`
	}
	query += ` ORDER BY updated_at DESC, video_id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list videos: %w", err)
	}
	defer rows.Close()

	var videos []Video
	for rows.Next() {
		video, err := scanVideo(rows)
		if err != nil {
			return nil, fmt.Errorf("scan video: %w", err)
		}
		videos = append(videos, *video)
	}
	return videos, rows.Err()
}

// Summarize counts videos per status.
func (s *Store) Summarize(ctx context.Context) (Summary, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM videos GROUP BY status`)
	if err != nil {
		return Summary{}, fmt.Errorf("ledger stats: %w", err)
	}
	defer rows.Close()

	summary := Summary{Counts: make(map[Status]int, len(AllStatuses))}
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return Summary{}, err
		}
		summary.Counts[status] = count
		summary.Total += count
	}
	return summary, rows.Err()
}

// LatestRun returns the most recently started run, or nil.
func (s *Store) LatestRun(ctx context.Context) (*Run, error) {
	var (
		run         Run
		startedRaw  sql.NullString
		finishedRaw sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, command, started_at, finished_at, videos_total, videos_failed FROM runs ORDER BY started_at DESC LIMIT 1`,
	).Scan(&run.ID, &run.Command, &startedRaw, &finishedRaw, &run.VideosTotal, &run.VideosFailed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest run: %w", err)
	}
	started, err := parseTime(startedRaw)
	if err != nil {
		return nil, err
	}
	if started != nil {
		run.StartedAt = *started
	}
	if run.FinishedAt, err = parseTime(finishedRaw); err != nil {
		return nil, err
	}
	return &run, nil
}
