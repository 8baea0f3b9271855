package batch

import (
	"context"
	"log/slog"

	"markercut/internal/classifier"
	"markercut/internal/clipstore"
	"markercut/internal/config"
	"markercut/internal/detect"
	"markercut/internal/framecache"
	"markercut/internal/media/ffmpeg"
	"markercut/internal/media/ffprobe"
	"markercut/internal/metrics"
	"markercut/internal/source"
	"markercut/internal/timecode"
)

// BuildComponents assembles the production collaborators for cfg. m may be
// nil when metrics are not collected.
func BuildComponents(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) (Components, error) {
	tool := ffmpeg.New(cfg.Tools.FFmpeg, ffmpeg.WithCUDA(cfg.UseCUDA()), ffmpeg.WithLogger(logger))

	cacheOpts := []framecache.Option{framecache.WithLogger(logger)}
	detectOpts := []detect.Option{detect.WithLogger(logger)}
	if m != nil {
		cacheOpts = append(cacheOpts, framecache.WithExtractObserver(m.ObserveExtraction))
		detectOpts = append(detectOpts, detect.WithRecorder(m))
	}
	cache := framecache.New(framecache.NewDirBackend(cfg.FramesDir(), logger), tool, cfg.Tools.FrameExt, cacheOpts...)
	frames := classifier.NewFileClassifier(ClassifierOptions(cfg), logger)

	detector, err := detect.New(cache, frames, DetectOptions(cfg), detectOpts...)
	if err != nil {
		return Components{}, err
	}

	ffprobeBinary := cfg.Tools.FFprobe
	return Components{
		Store:    clipstore.New(cfg.ClipsDir()),
		Detector: detector,
		Source:   source.New(source.OptionsFromConfig(cfg), source.WithLogger(logger)),
		Cutter:   tool,
		Compiler: tool,
		Probe: func(ctx context.Context, path string) (timecode.Timestamp, error) {
			result, err := ffprobe.Inspect(ctx, ffprobeBinary, path)
			if err != nil {
				return timecode.Zero, err
			}
			return result.Duration()
		},
	}, nil
}
