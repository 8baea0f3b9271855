package source

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"markercut/internal/config"
	"markercut/internal/fileutil"
	"markercut/internal/logging"
	"markercut/internal/services"
	"markercut/internal/textutil"
)

var commandContext = exec.CommandContext

// Runner executes name with args, returning an error on non-zero exit.
type Runner func(ctx context.Context, name string, args ...string) error

// Options configures a Fetcher.
type Options struct {
	VideosDir   string
	Downloader  string
	URLTemplate string
	Format      string
	Attempts    int
	RetryDelay  time.Duration
}

// OptionsFromConfig maps the [source] and [tools] sections.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		VideosDir:   cfg.VideosDir(),
		Downloader:  cfg.Tools.Downloader,
		URLTemplate: cfg.Source.URLTemplate,
		Format:      cfg.Source.Format,
		Attempts:    cfg.Source.Retries,
		RetryDelay:  time.Duration(cfg.Source.RetryDelaySeconds) * time.Second,
	}
}

// Fetcher locates and downloads source videos.
type Fetcher struct {
	opts   Options
	runner Runner
	sleep  func(ctx context.Context, d time.Duration) error
	logger *slog.Logger
}

// Option customizes a Fetcher.
type Option func(*Fetcher)

// WithRunner replaces process execution (for testing).
func WithRunner(runner Runner) Option {
	return func(f *Fetcher) { f.runner = runner }
}

// WithSleeper replaces the pause between attempts (for testing).
func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(f *Fetcher) { f.sleep = sleep }
}

// WithLogger sets the fetcher logger.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Fetcher) { f.logger = logging.NewComponentLogger(logger, "source") }
}

// New builds a Fetcher.
func New(opts Options, options ...Option) *Fetcher {
	if opts.Attempts < 1 {
		opts.Attempts = 1
	}
	if strings.TrimSpace(opts.Downloader) == "" {
		opts.Downloader = "yt-dlp"
	}
	f := &Fetcher{opts: opts, runner: execRunner, sleep: sleepContext, logger: logging.NewNop()}
	for _, option := range options {
		option(f)
	}
	return f
}

// Locate returns the first existing file for videoID.
func (f *Fetcher) Locate(videoID string) (string, bool) {
	base := filepath.Join(f.opts.VideosDir, videoID)
	return fileutil.FirstExisting(base, base+".mp4", base+".mkv")
}

// Ensure returns a local path for videoID, downloading it when absent.
func (f *Fetcher) Ensure(ctx context.Context, videoID string) (string, error) {
	if !textutil.ValidVideoID(videoID) {
		return "", services.Wrap(services.ErrValidation, "source", "ensure", fmt.Sprintf("invalid video id %q", videoID), nil)
	}
	if path, ok := f.Locate(videoID); ok {
		return path, nil
	}
	if err := f.Download(ctx, videoID); err != nil {
		return "", err
	}
	path, ok := f.Locate(videoID)
	if !ok {
		return "", services.Wrap(services.ErrNotFound, "source", "locate download", fmt.Sprintf("downloader finished but no file for %s in %s", videoID, f.opts.VideosDir), nil)
	}
	return path, nil
}

// URL renders the download URL for videoID.
func (f *Fetcher) URL(videoID string) string {
	if strings.Contains(f.opts.URLTemplate, "%s") {
		return fmt.Sprintf(f.opts.URLTemplate, videoID)
	}
	return f.opts.URLTemplate + videoID
}

// Download runs the downloader up to Attempts times, pausing RetryDelay after
// each failure.
func (f *Fetcher) Download(ctx context.Context, videoID string) error {
	url := f.URL(videoID)
	args := []string{"-o", filepath.Join(f.opts.VideosDir, videoID)}
	if format := strings.TrimSpace(f.opts.Format); format != "" {
		args = append(args, "-f", format)
	}
	args = append(args, url)

	logger := logging.WithContext(ctx, f.logger)
	var lastErr error
	for attempt := 1; attempt <= f.opts.Attempts; attempt++ {
		logger.InfoContext(ctx, "downloading video",
			logging.String("url", url),
			logging.Int("attempt", attempt),
			logging.Int("attempts", f.opts.Attempts))
		err := f.runner(ctx, f.opts.Downloader, args...)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		lastErr = err
		logging.WarnWithContext(logger, "download attempt failed", "source_download_failed",
			logging.String("url", url),
			logging.Int("attempt", attempt),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check network access and the downloader version"),
			logging.String(logging.FieldImpact, "video is retried after a pause"))
		if attempt < f.opts.Attempts {
			if err := f.sleep(ctx, f.opts.RetryDelay); err != nil {
				return err
			}
		}
	}
	return services.Wrap(services.ErrExternalTool, "source", "download",
		fmt.Sprintf("%s failed after %d attempts", url, f.opts.Attempts), lastErr)
}

func execRunner(ctx context.Context, name string, args ...string) error {
	var stderr bytes.Buffer
	cmd := commandContext(ctx, name, args...)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			lines := strings.Split(msg, "\n")
			return fmt.Errorf("%w: %s", err, lines[len(lines)-1])
		}
		return err
	}
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
