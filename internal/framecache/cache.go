package framecache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"markercut/internal/logging"
	"markercut/internal/services"
)

// Video is a locally readable source file.
type Video struct {
	ID   string
	Path string
}

// Request asks an extractor to sample Video across Window at Rate, writing
// OutputDir/Pattern with a 1-based printf sequence (thumb%04d.jpg).
type Request struct {
	Video     string
	Window    Window
	Rate      Rate
	OutputDir string
	Pattern   string
}

// Extractor produces still frames; ffmpeg in production.
type Extractor interface {
	Extract(ctx context.Context, req Request) error
}

// ExtractObserver is notified after each successful extraction.
type ExtractObserver func(key Key, frames int, elapsed time.Duration)

// Cache answers frame requests from a Backend, extracting on first use.
type Cache struct {
	backend   Backend
	extractor Extractor
	ext       string
	logger    *slog.Logger
	observe   ExtractObserver
}

// Option customizes a Cache.
type Option func(*Cache)

// WithLogger sets the logger used for extraction progress.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) { c.logger = logging.NewComponentLogger(logger, "framecache") }
}

// WithExtractObserver registers a callback for extraction timings.
func WithExtractObserver(fn ExtractObserver) Option {
	return func(c *Cache) { c.observe = fn }
}

// New builds a cache. ext is the frame image extension without a dot.
func New(backend Backend, extractor Extractor, ext string, opts ...Option) *Cache {
	if ext == "" {
		ext = "jpg"
	}
	c := &Cache{
		backend:   backend,
		extractor: extractor,
		ext:       ext,
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FramesFor returns the frames of video sampled across window at rate,
// invoking the extractor only when the key has never been populated.
func (c *Cache) FramesFor(ctx context.Context, video Video, window Window, rate Rate) ([]Frame, error) {
	if !rate.Valid() {
		return nil, services.Wrap(services.ErrValidation, "framecache", "frames for", fmt.Sprintf("invalid rate %s", rate), nil)
	}
	if window.Start != nil && window.End != nil && !window.Start.Before(*window.End) {
		return nil, services.Wrap(services.ErrValidation, "framecache", "frames for", fmt.Sprintf("empty window %s", window), nil)
	}
	key := Key{VideoID: video.ID, Window: window, Rate: rate}

	frames, populated, err := c.backend.Lookup(ctx, key)
	if err != nil {
		return nil, err
	}
	if populated {
		c.logger.DebugContext(ctx, "frame cache hit",
			logging.String("key", key.String()),
			logging.Int("frames", len(frames)))
		return frames, nil
	}

	elapsed, err := c.populate(ctx, video, key)
	if err != nil {
		return nil, err
	}

	frames, populated, err = c.backend.Lookup(ctx, key)
	if err != nil {
		return nil, err
	}
	if !populated {
		return nil, services.Wrap(services.ErrIO, "framecache", "frames for", "key not visible after commit: "+key.String(), nil)
	}
	if c.observe != nil {
		c.observe(key, len(frames), elapsed)
	}
	c.logger.DebugContext(ctx, "frames committed",
		logging.String("key", key.String()),
		logging.Int("frames", len(frames)),
		logging.Duration("elapsed", elapsed))
	return frames, nil
}

func (c *Cache) populate(ctx context.Context, video Video, key Key) (elapsed time.Duration, err error) {
	staging, err := c.backend.Prepare(ctx, key)
	if err != nil {
		return 0, err
	}
	defer func() {
		if discardErr := staging.Discard(); discardErr != nil {
			err = errors.Join(err, discardErr)
		}
	}()

	started := time.Now()
	c.logger.InfoContext(ctx, "extracting frames",
		logging.String("key", key.String()),
		logging.String("rate", key.Rate.String()),
		logging.String("window", key.Window.String()))

	req := Request{
		Video:     video.Path,
		Window:    key.Window,
		Rate:      key.Rate,
		OutputDir: staging.Dir(),
		Pattern:   FramePrefix + "%04d." + c.ext,
	}
	if err := c.extractor.Extract(ctx, req); err != nil {
		if errors.Is(err, services.ErrExternalTool) || ctx.Err() != nil {
			return 0, err
		}
		return 0, services.Wrap(services.ErrExternalTool, "framecache", "extract frames", key.String(), err)
	}
	if err := staging.Commit(); err != nil {
		return 0, err
	}
	return time.Since(started), nil
}
