package detect

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"slices"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"markercut/internal/coalesce"
	"markercut/internal/framecache"
	"markercut/internal/logging"
	"markercut/internal/services"
	"markercut/internal/timecode"
)

// Pipeline phases, also used as log and metric labels.
const (
	PhaseCoarse = "coarse"
	PhaseRefine = "refine"
)

// Range is one refined marker span.
type Range = timecode.Range

// Result lists refined ranges sorted by start.
type Result struct {
	Ranges []Range `json:"ranges"`
}

// FrameSource supplies sampled frames; *framecache.Cache in production.
type FrameSource interface {
	FramesFor(ctx context.Context, video framecache.Video, window framecache.Window, rate framecache.Rate) ([]framecache.Frame, error)
}

// Classifier decides whether the frame stored at path shows the marker.
// Implementations must be safe for concurrent use.
type Classifier interface {
	Classify(ctx context.Context, path string) (bool, error)
}

// Recorder receives pipeline counters. Implementations must be safe for
// concurrent use.
type Recorder interface {
	FramesClassified(phase string, total, matched int)
	Candidates(kept, dropped int)
	RangesRefined(n int)
}

// Options tunes the search.
type Options struct {
	CoarseRate framecache.Rate
	FineRate   framecache.Rate
	// MarginSeconds is the half-width of each refinement window.
	MarginSeconds int64
	// MinDuration drops candidates whose rough span is not longer than this.
	MinDuration time.Duration
	// Workers bounds concurrent classification and refinement tasks.
	Workers int
}

// DefaultOptions returns the standard coarse-to-fine profile.
func DefaultOptions() Options {
	return Options{
		CoarseRate:    framecache.Rate{Num: 1, Den: 1},
		FineRate:      framecache.Rate{Num: 30, Den: 1},
		MarginSeconds: 2,
		MinDuration:   4 * time.Second,
		Workers:       runtime.NumCPU(),
	}
}

// Validate reports unusable options.
func (o Options) Validate() error {
	switch {
	case !o.CoarseRate.Valid():
		return fmt.Errorf("coarse rate %s must be positive", o.CoarseRate)
	case !o.FineRate.Valid():
		return fmt.Errorf("fine rate %s must be positive", o.FineRate)
	case o.MarginSeconds <= 0:
		return errors.New("margin must be positive")
	case o.MinDuration < 0:
		return errors.New("minimum duration must be non-negative")
	case o.Workers < 1:
		return errors.New("workers must be positive")
	}
	return nil
}

// Detector runs the search for one video at a time.
type Detector struct {
	frames     FrameSource
	classifier Classifier
	opts       Options
	logger     *slog.Logger
	recorder   Recorder
}

// Option customizes a Detector.
type Option func(*Detector)

// WithLogger sets the detector logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Detector) { d.logger = logging.NewComponentLogger(logger, "detect") }
}

// WithRecorder attaches a metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(d *Detector) { d.recorder = r }
}

// New builds a Detector.
func New(frames FrameSource, classifier Classifier, opts Options, options ...Option) (*Detector, error) {
	if frames == nil || classifier == nil {
		return nil, services.Wrap(services.ErrConfiguration, "detect", "new", "frame source and classifier are required", nil)
	}
	if err := opts.Validate(); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "detect", "new", "", err)
	}
	d := &Detector{
		frames:     frames,
		classifier: classifier,
		opts:       opts,
		logger:     logging.NewNop(),
		recorder:   nopRecorder{},
	}
	for _, option := range options {
		option(d)
	}
	return d, nil
}

// candidate is a coarse run of matching frames.
type candidate struct {
	index int
	first framecache.Frame
	last  framecache.Frame
}

// Detect runs the coarse scan and refinement for video.
func (d *Detector) Detect(ctx context.Context, video framecache.Video) (Result, error) {
	ctx = services.WithVideoID(ctx, video.ID)
	logger := logging.WithContext(ctx, d.logger)

	coarseCtx := services.WithPhase(ctx, PhaseCoarse)
	matches, err := d.coarseScan(coarseCtx, video)
	if err != nil {
		return Result{}, err
	}

	candidates, dropped := d.candidates(matches)
	d.recorder.Candidates(len(candidates), dropped)
	logger.InfoContext(ctx, "coarse scan complete",
		logging.Int("matched_frames", len(matches)),
		logging.Int("candidates", len(candidates)),
		logging.Int("dropped", dropped))
	if len(candidates) == 0 {
		return Result{Ranges: []Range{}}, nil
	}

	ranges, err := d.refine(services.WithPhase(ctx, PhaseRefine), video, candidates)
	if err != nil {
		return Result{}, err
	}
	d.recorder.RangesRefined(len(ranges))
	logger.InfoContext(ctx, "refinement complete", logging.Int("ranges", len(ranges)))
	return Result{Ranges: ranges}, nil
}

// coarseScan classifies every frame of the full-video sweep in parallel and
// returns the matches sorted by sequence.
func (d *Detector) coarseScan(ctx context.Context, video framecache.Video) ([]framecache.Frame, error) {
	frames, err := d.frames.FramesFor(ctx, video, framecache.Full, d.opts.CoarseRate)
	if err != nil {
		return nil, err
	}

	var (
		mu      sync.Mutex
		matches []framecache.Frame
		failed  []indexedError
	)
	var g errgroup.Group
	g.SetLimit(d.opts.Workers)
	for i, frame := range frames {
		g.Go(func() error {
			ok, err := d.classifier.Classify(ctx, frame.Path)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed = append(failed, indexedError{index: i, err: err})
				return nil
			}
			if ok {
				matches = append(matches, frame)
			}
			return nil
		})
	}
	_ = g.Wait()
	if len(failed) > 0 {
		return nil, joinIndexed(failed)
	}

	d.recorder.FramesClassified(PhaseCoarse, len(frames), len(matches))
	sort.Slice(matches, func(i, j int) bool { return matches[i].Seq < matches[j].Seq })
	return matches, nil
}

// candidates coalesces consecutive sequence numbers and drops short runs.
func (d *Detector) candidates(matches []framecache.Frame) ([]candidate, int) {
	var kept []candidate
	dropped := 0
	adjacent := func(a, b framecache.Frame) bool { return a.Seq+1 == b.Seq }
	for first, last := range coalesce.Runs(slices.Values(matches), adjacent) {
		if last.Timestamp.Sub(first.Timestamp) <= d.opts.MinDuration {
			dropped++
			continue
		}
		kept = append(kept, candidate{index: len(kept), first: first, last: last})
	}
	return kept, dropped
}

type indexedError struct {
	index int
	err   error
}

func joinIndexed(errs []indexedError) error {
	sort.Slice(errs, func(i, j int) bool { return errs[i].index < errs[j].index })
	joined := make([]error, 0, len(errs))
	for _, e := range errs {
		joined = append(joined, e.err)
	}
	return errors.Join(joined...)
}

type nopRecorder struct{}

func (nopRecorder) FramesClassified(string, int, int) {}

func (nopRecorder) Candidates(int, int) {}

func (nopRecorder) RangesRefined(int) {}
