package batch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"markercut/internal/clipstore"
	"markercut/internal/config"
	"markercut/internal/detect"
	"markercut/internal/framecache"
	"markercut/internal/ledger"
	"markercut/internal/logging"
	"markercut/internal/metrics"
	"markercut/internal/services"
	"markercut/internal/timecode"
)

// Detector finds marker ranges in one video.
type Detector interface {
	Detect(ctx context.Context, video framecache.Video) (detect.Result, error)
}

// VideoSource returns a local path for a catalog video, fetching it if needed.
type VideoSource interface {
	Ensure(ctx context.Context, videoID string) (string, error)
}

// ClipCutter extracts ranges of input into one output file.
type ClipCutter interface {
	CutClips(ctx context.Context, input, output string, ranges []timecode.Range, overwrite bool) error
}

// Compiler joins clips into the final compilation.
type Compiler interface {
	ConcatFilter(ctx context.Context, inputs []string, output, subtitles string) error
	ConcatDemuxer(ctx context.Context, inputs []string, output string, copyStreams bool) error
}

// DurationProber reports the playable length of a media file.
type DurationProber func(ctx context.Context, path string) (timecode.Timestamp, error)

// Components are the collaborators a Runner drives. Commands check for the
// ones they need when they start.
type Components struct {
	Store    *clipstore.Store
	Detector Detector
	Source   VideoSource
	Cutter   ClipCutter
	Compiler Compiler
	Probe    DurationProber
}

// Runner executes batch commands against the configured catalog.
type Runner struct {
	cfg      *config.Config
	parts    Components
	ledger   *ledger.Store
	metrics  *metrics.Metrics
	logger   *slog.Logger
	progress io.Writer
	now      func() time.Time
}

// Option configures a Runner.
type Option func(*Runner)

// WithLedger records per-video progress in store.
func WithLedger(store *ledger.Store) Option {
	return func(r *Runner) { r.ledger = store }
}

// WithMetrics counts outcomes and writes the configured textfile after runs.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Runner) { r.metrics = m }
}

// WithLogger sets the base logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) { r.logger = logger }
}

// WithProgressOutput draws progress bars on w when it is a terminal.
func WithProgressOutput(w io.Writer) Option {
	return func(r *Runner) { r.progress = w }
}

// New builds a Runner. Store is always required.
func New(cfg *config.Config, parts Components, opts ...Option) (*Runner, error) {
	if cfg == nil {
		return nil, services.Wrap(services.ErrConfiguration, "batch", "init", "config is required", nil)
	}
	if parts.Store == nil {
		return nil, services.Wrap(services.ErrConfiguration, "batch", "init", "clip store is required", nil)
	}
	r := &Runner{cfg: cfg, parts: parts, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = logging.NewComponentLogger(r.logger, "batch")
	return r, nil
}

type requirement struct {
	name    string
	present bool
}

func (r *Runner) require(command string, reqs ...requirement) error {
	for _, req := range reqs {
		if !req.present {
			return services.Wrap(services.ErrConfiguration, command, "init", req.name+" is required", nil)
		}
	}
	return nil
}

// run brackets one command invocation: ledger run row, run id on the context,
// and metrics once it returns.
func (r *Runner) run(ctx context.Context, command string, body func(ctx context.Context, report *Report) error) (Report, error) {
	started := r.now()
	report := Report{Command: command}

	if r.ledger != nil {
		run, err := r.ledger.BeginRun(ctx, command)
		if err != nil {
			return report, err
		}
		report.RunID = run.ID
	}
	ctx = services.WithRunID(ctx, report.RunID)

	err := body(ctx, &report)
	report.Elapsed = r.now().Sub(started)

	failed := len(report.Failed())
	if r.ledger != nil && report.RunID != "" {
		// The run row is closed even when the context was cancelled.
		if finishErr := r.ledger.FinishRun(context.WithoutCancel(ctx), report.RunID, len(report.Videos), failed); finishErr != nil {
			err = errors.Join(err, finishErr)
		}
	}
	if r.metrics != nil {
		r.metrics.RunCompleted(command, r.now(), report.Elapsed)
		if writeErr := r.metrics.WriteTextfile(r.cfg.Metrics.TextfilePath); writeErr != nil {
			logging.WarnWithContext(logging.WithContext(ctx, r.logger), "metrics textfile not written", "metrics_write_failed",
				logging.Error(writeErr),
				logging.String(logging.FieldImpact, "dashboards show stale values"),
			)
		}
	}

	logging.WithContext(ctx, r.logger).Info("batch command finished",
		logging.String("command", command),
		logging.Int("videos", len(report.Videos)),
		logging.Int("failed", failed),
		logging.Int("skipped", report.Count(OutcomeSkipped)),
		logging.Duration("elapsed", report.Elapsed),
		logging.String(logging.FieldEventType, "batch_finished"),
	)
	return report, err
}

func (r *Runner) recordFailure(ctx context.Context, report *Report, videoID string, cause error) {
	r.reportFailure(ctx, report, videoID, cause)
	if r.tracksVideos(report) {
		if err := r.ledger.MarkFailed(context.WithoutCancel(ctx), report.RunID, videoID, cause); err != nil {
			logging.WithContext(ctx, r.logger).Error("failed to persist video failure", logging.Error(err))
		}
	}
}

// reportFailure counts a failure in the report and metrics without touching
// the ledger row, which may belong to another process.
func (r *Runner) reportFailure(ctx context.Context, report *Report, videoID string, cause error) {
	report.Videos = append(report.Videos, VideoReport{VideoID: videoID, Outcome: OutcomeFailed, Err: cause})
	if r.metrics != nil {
		r.metrics.VideoFailed(cause)
	}
	logging.WithContext(ctx, r.logger).Error("video failed",
		logging.Error(cause),
		logging.String("failure_kind", services.Kind(cause)),
		logging.Bool("retryable", services.Retryable(cause)),
		logging.String(logging.FieldEventType, "video_failed"),
	)
}

func (r *Runner) recordSkip(ctx context.Context, report *Report, videoID, reason string) {
	report.Videos = append(report.Videos, VideoReport{VideoID: videoID, Outcome: OutcomeSkipped, Reason: reason})
	if r.metrics != nil {
		r.metrics.VideoFinished(metrics.OutcomeSkipped)
	}
	logger := logging.WithContext(ctx, r.logger)
	logger.Debug("video skipped", logging.String("reason", reason))
	if r.tracksVideos(report) {
		if err := r.ledger.MarkSkipped(ctx, report.RunID, videoID, reason); err != nil {
			logger.Error("failed to persist skip", logging.Error(err))
		}
	}
}

// tracksVideos reports whether per-video rows are written. The ledger's video
// status describes detection, so only find-clips updates it; other commands
// record their run totals alone.
func (r *Runner) tracksVideos(report *Report) bool {
	return r.ledger != nil && report.Command == CommandFindClips
}
