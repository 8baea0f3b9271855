package batch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"markercut/internal/catalog"
	"markercut/internal/fileutil"
	"markercut/internal/logging"
	"markercut/internal/services"
	"markercut/internal/timecode"
)

// MakeOptions controls MakeClips.
type MakeOptions struct {
	// SkipExisting passes over videos whose clip file already exists.
	SkipExisting bool
	// VideoID restricts the run to one video instead of the catalog.
	VideoID string
	// KeepGoing records a failed video and moves on instead of stopping.
	KeepGoing bool
}

// MakeClips cuts every detected range of each video into <clips>/<id>.mkv.
// Videos without a range file or with no ranges are skipped.
func (r *Runner) MakeClips(ctx context.Context, opts MakeOptions) (Report, error) {
	if err := r.require(CommandMakeClips, requirement{"clip cutter", r.parts.Cutter != nil}); err != nil {
		return Report{Command: CommandMakeClips}, err
	}
	ids, err := r.makeTargets(opts.VideoID)
	if err != nil {
		return Report{Command: CommandMakeClips}, err
	}

	return r.run(ctx, CommandMakeClips, func(ctx context.Context, report *Report) error {
		bar := newProgress(r.progress, len(ids), CommandMakeClips)
		defer bar.Finish()
		for _, id := range ids {
			if err := ctx.Err(); err != nil {
				return err
			}
			bar.Describe(id)
			err := r.makeOne(ctx, report, id, opts.SkipExisting)
			_ = bar.Add(1)
			if err != nil && !opts.KeepGoing {
				return err
			}
		}
		return report.Err()
	})
}

// makeTargets lists the videos to cut: the catalog minus exclusions, or the
// single requested id. A requested id the catalog excludes is refused; one the
// catalog does not list is cut if it has a range file.
func (r *Runner) makeTargets(videoID string) ([]string, error) {
	filter, err := catalog.NewFilter(r.cfg.Catalog.ExcludeIDs, r.cfg.Catalog.ExcludeTitlePatterns)
	if err != nil {
		return nil, err
	}
	items, err := catalog.Load(r.cfg.Paths.CatalogDirs)
	if videoID = strings.TrimSpace(videoID); videoID != "" {
		if err != nil && !errors.Is(err, services.ErrNotFound) {
			return nil, err
		}
		if item, ok := catalog.Find(items, videoID); ok {
			if excluded, reason := filter.Excluded(item); excluded {
				return nil, services.Wrap(services.ErrValidation, CommandMakeClips, "select video",
					fmt.Sprintf("video %s is excluded (%s)", videoID, reason), nil)
			}
		}
		return []string{videoID}, nil
	}
	if err != nil {
		return nil, err
	}
	kept := filter.Apply(items)
	ids := make([]string, 0, len(kept))
	for _, item := range kept {
		ids = append(ids, item.VideoID)
	}
	return ids, nil
}

func (r *Runner) makeOne(ctx context.Context, report *Report, videoID string, skipExisting bool) error {
	ctx = services.WithVideoID(ctx, videoID)
	store := r.parts.Store

	result, err := store.Read(videoID)
	switch {
	case errors.Is(err, services.ErrNotFound):
		r.recordSkip(ctx, report, videoID, "no range file")
		return nil
	case err != nil:
		r.recordFailure(ctx, report, videoID, err)
		return err
	case len(result.Ranges) == 0:
		r.recordSkip(ctx, report, videoID, "no ranges")
		return nil
	}
	if skipExisting && store.ClipExists(videoID) {
		r.recordSkip(ctx, report, videoID, "clip exists")
		return nil
	}

	input, ok := r.localVideo(videoID)
	if !ok {
		err := services.Wrap(services.ErrNotFound, CommandMakeClips, "locate video", "no local video for "+videoID, nil)
		r.recordFailure(ctx, report, videoID, err)
		return err
	}

	ranges := slices.Clone(result.Ranges)
	slices.SortStableFunc(ranges, func(a, b timecode.Range) int { return a.Start.Compare(b.Start) })
	if err := r.cut(ctx, input, store.ClipPath(videoID), ranges); err != nil {
		r.recordFailure(ctx, report, videoID, err)
		return err
	}

	report.Videos = append(report.Videos, VideoReport{VideoID: videoID, Outcome: OutcomeCut, Ranges: len(ranges)})
	if r.metrics != nil {
		r.metrics.VideoFinished(OutcomeCut)
	}
	logging.WithContext(ctx, r.logger).Info("clip written",
		logging.Int("ranges", len(ranges)),
		logging.String("path", store.ClipPath(videoID)),
		logging.String(logging.FieldEventType, "clip_written"),
	)
	return nil
}

// localVideo prefers the mkv download, then mp4, then a bare file.
func (r *Runner) localVideo(videoID string) (string, bool) {
	base := filepath.Join(r.cfg.VideosDir(), videoID)
	return fileutil.FirstExisting(base+".mkv", base+".mp4", base)
}

// cut writes to a sibling partial file and renames it into place, so an
// interrupted encode never looks like a finished clip.
func (r *Runner) cut(ctx context.Context, input, output string, ranges []timecode.Range) error {
	partial := strings.TrimSuffix(output, filepath.Ext(output)) + ".partial" + filepath.Ext(output)
	if err := r.parts.Cutter.CutClips(ctx, input, partial, ranges, true); err != nil {
		_ = os.Remove(partial)
		return err
	}
	if err := os.Rename(partial, output); err != nil {
		_ = os.Remove(partial)
		return services.Wrap(services.ErrIO, CommandMakeClips, "finalize clip", output, err)
	}
	return nil
}
