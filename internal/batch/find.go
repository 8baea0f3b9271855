package batch

import (
	"context"

	"markercut/internal/catalog"
	"markercut/internal/framecache"
	"markercut/internal/logging"
	"markercut/internal/services"
)

// Command names recorded in the ledger and metrics.
const (
	CommandFindClips = "find-clips"
	CommandMakeClips = "make-clips"
	CommandConcat    = "concat"
)

// FindOptions controls FindClips.
type FindOptions struct {
	// SkipExisting passes over videos that already have a range file.
	SkipExisting bool
	// FromID starts at this catalog id, inclusive.
	FromID string
	// KeepGoing records a failed video and moves on instead of stopping.
	KeepGoing bool
}

// FindClips detects marker ranges for every catalog video and writes one
// range file per video. Without KeepGoing the first failure ends the run.
func (r *Runner) FindClips(ctx context.Context, opts FindOptions) (Report, error) {
	if err := r.require(CommandFindClips,
		requirement{"detector", r.parts.Detector != nil},
		requirement{"video source", r.parts.Source != nil},
	); err != nil {
		return Report{Command: CommandFindClips}, err
	}
	items, err := catalog.Load(r.cfg.Paths.CatalogDirs)
	if err != nil {
		return Report{Command: CommandFindClips}, err
	}
	items, err = catalog.SkipUntil(items, opts.FromID)
	if err != nil {
		return Report{Command: CommandFindClips}, err
	}
	filter, err := catalog.NewFilter(r.cfg.Catalog.ExcludeIDs, r.cfg.Catalog.ExcludeTitlePatterns)
	if err != nil {
		return Report{Command: CommandFindClips}, err
	}

	return r.run(ctx, CommandFindClips, func(ctx context.Context, report *Report) error {
		if r.ledger != nil {
			if err := r.resetAbandoned(ctx); err != nil {
				return err
			}
		}
		bar := newProgress(r.progress, len(items), CommandFindClips)
		defer bar.Finish()
		for _, item := range items {
			if err := ctx.Err(); err != nil {
				return err
			}
			bar.Describe(item.VideoID)
			err := r.findOne(ctx, report, filter, item, opts)
			_ = bar.Add(1)
			if err != nil && !opts.KeepGoing {
				return err
			}
		}
		return report.Err()
	})
}

func (r *Runner) findOne(ctx context.Context, report *Report, filter *catalog.Filter, item catalog.Item, opts FindOptions) error {
	ctx = services.WithVideoID(ctx, item.VideoID)
	if excluded, reason := filter.Excluded(item); excluded {
		r.recordSkip(ctx, report, item.VideoID, reason)
		return nil
	}
	if opts.SkipExisting && r.parts.Store.Exists(item.VideoID) {
		r.recordSkip(ctx, report, item.VideoID, "range file exists")
		return nil
	}

	lock, err := lockVideo(r.cfg.LocksDir(), item.VideoID)
	if err != nil {
		r.reportFailure(ctx, report, item.VideoID, err)
		return err
	}
	defer lock.Unlock()

	if r.tracksVideos(report) {
		if err := r.ledger.MarkRunning(ctx, report.RunID, item.VideoID); err != nil {
			r.recordFailure(ctx, report, item.VideoID, err)
			return err
		}
	}

	ranges, err := r.detectVideo(ctx, item)
	if err != nil {
		r.recordFailure(ctx, report, item.VideoID, err)
		return err
	}

	report.Videos = append(report.Videos, VideoReport{VideoID: item.VideoID, Outcome: OutcomeDetected, Ranges: ranges})
	if r.metrics != nil {
		r.metrics.VideoFinished(OutcomeDetected)
	}
	if r.tracksVideos(report) {
		if err := r.ledger.MarkDetected(ctx, report.RunID, item.VideoID, ranges); err != nil {
			logging.WithContext(ctx, r.logger).Error("failed to persist detection", logging.Error(err))
		}
	}
	return nil
}

func (r *Runner) detectVideo(ctx context.Context, item catalog.Item) (int, error) {
	logger := logging.WithContext(ctx, r.logger)
	path, err := r.parts.Source.Ensure(ctx, item.VideoID)
	if err != nil {
		return 0, err
	}
	logger.Info("detecting marker ranges",
		logging.String("title", item.Title),
		logging.String("path", path),
		logging.String(logging.FieldEventType, "detect_started"),
	)
	result, err := r.parts.Detector.Detect(ctx, framecache.Video{ID: item.VideoID, Path: path})
	if err != nil {
		return 0, err
	}
	if err := r.parts.Store.Write(item.VideoID, result); err != nil {
		return 0, err
	}
	logger.Info("marker ranges written",
		logging.Int("ranges", len(result.Ranges)),
		logging.String("path", r.parts.Store.ResultPath(item.VideoID)),
		logging.String(logging.FieldEventType, "detect_completed"),
	)
	return len(result.Ranges), nil
}
