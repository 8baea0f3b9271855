package batch

import (
	"context"
	"os"
	"path/filepath"

	"markercut/internal/captions"
	"markercut/internal/catalog"
	"markercut/internal/config"
	"markercut/internal/logging"
	"markercut/internal/services"
)

// Concat joins every cut clip, oldest publication first, into the configured
// compilation. In filter mode with captions enabled an SRT track naming each
// video is written next to the output and burned in.
func (r *Runner) Concat(ctx context.Context) (Report, error) {
	captioned := r.cfg.Compile.Captions && r.cfg.Compile.Mode == config.CompileModeFilter
	if err := r.require(CommandConcat,
		requirement{"compiler", r.parts.Compiler != nil},
		requirement{"duration prober", r.parts.Probe != nil || !captioned},
	); err != nil {
		return Report{Command: CommandConcat}, err
	}
	items, err := catalog.Load(r.cfg.Paths.CatalogDirs)
	if err != nil {
		return Report{Command: CommandConcat}, err
	}
	catalog.SortByPublished(items)

	return r.run(ctx, CommandConcat, func(ctx context.Context, report *Report) error {
		var (
			inputs []string
			kept   []catalog.Item
		)
		for _, item := range items {
			if !r.parts.Store.ClipExists(item.VideoID) {
				continue
			}
			inputs = append(inputs, r.parts.Store.ClipPath(item.VideoID))
			kept = append(kept, item)
		}
		if len(inputs) == 0 {
			return services.Wrap(services.ErrNotFound, CommandConcat, "collect clips", "no clips to concatenate in "+r.parts.Store.Dir(), nil)
		}

		output := r.cfg.CompilationPath()
		if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
			return services.Wrap(services.ErrIO, CommandConcat, "create output directory", filepath.Dir(output), err)
		}
		report.Output = output
		logger := logging.WithContext(ctx, r.logger)
		logger.Info("concatenating clips",
			logging.Int("clips", len(inputs)),
			logging.String("mode", r.cfg.Compile.Mode),
			logging.String("output", output),
			logging.String(logging.FieldEventType, "concat_started"),
		)

		var err error
		switch {
		case r.cfg.Compile.Mode == config.CompileModeDemuxer:
			err = r.parts.Compiler.ConcatDemuxer(ctx, inputs, output, true)
		case captioned:
			var track string
			if track, err = r.writeCaptions(ctx, kept); err == nil {
				report.Captions = track
				err = r.parts.Compiler.ConcatFilter(ctx, inputs, output, track)
			}
		default:
			err = r.parts.Compiler.ConcatFilter(ctx, inputs, output, "")
		}
		if err != nil {
			return err
		}
		for _, item := range kept {
			report.Videos = append(report.Videos, VideoReport{VideoID: item.VideoID, Outcome: OutcomeIncluded})
		}
		logger.Info("compilation written",
			logging.String("output", output),
			logging.String("captions", report.Captions),
			logging.String(logging.FieldEventType, "concat_completed"),
		)
		return nil
	})
}

// writeCaptions lays one cue per clip end to end using probed durations.
func (r *Runner) writeCaptions(ctx context.Context, items []catalog.Item) (string, error) {
	var track captions.Track
	for _, item := range items {
		clip := r.parts.Store.ClipPath(item.VideoID)
		duration, err := r.parts.Probe(ctx, clip)
		if err != nil {
			return "", err
		}
		track.Append(item.Title, item.VideoID, duration)
	}
	path := r.cfg.CaptionsPath()
	if err := track.WriteFile(path); err != nil {
		return "", err
	}
	logging.WithContext(ctx, r.logger).Debug("captions written",
		logging.Int("cues", track.Len()),
		logging.String("end", track.End().String()),
		logging.String("path", path),
	)
	return path, nil
}
