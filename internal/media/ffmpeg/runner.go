package ffmpeg

import (
	"bytes"
	"context"
	"log/slog"
	"os/exec"
	"strings"

	"markercut/internal/logging"
	"markercut/internal/services"
)

// DefaultBinary is used when no ffmpeg path is configured.
const DefaultBinary = "ffmpeg"

const stderrTailLines = 8

var commandContext = exec.CommandContext

// Runner executes name with args, returning an error on non-zero exit.
type Runner func(ctx context.Context, name string, args ...string) error

// Tool invokes ffmpeg.
type Tool struct {
	binary string
	cuda   bool
	runner Runner
	logger *slog.Logger
}

// Option customizes a Tool.
type Option func(*Tool)

// WithCUDA enables -hwaccel cuda decoding and h264_nvenc encoding for clip
// cutting and concatenation.
func WithCUDA(enabled bool) Option {
	return func(t *Tool) { t.cuda = enabled }
}

// WithRunner replaces process execution (for testing).
func WithRunner(runner Runner) Option {
	return func(t *Tool) { t.runner = runner }
}

// WithLogger sets the logger for command tracing.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Tool) { t.logger = logging.NewComponentLogger(logger, "ffmpeg") }
}

// New constructs a Tool for binary.
func New(binary string, opts ...Option) *Tool {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = DefaultBinary
	}
	t := &Tool{binary: binary, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(t)
	}
	if t.runner == nil {
		t.runner = execRunner
	}
	return t
}

func (t *Tool) run(ctx context.Context, operation string, args []string) error {
	t.logger.DebugContext(ctx, "running ffmpeg",
		logging.String("operation", operation),
		logging.String("args", strings.Join(args, " ")))
	if err := t.runner(ctx, t.binary, args...); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return services.Wrap(services.ErrExternalTool, "ffmpeg", operation, "", err)
	}
	return nil
}

func execRunner(ctx context.Context, name string, args ...string) error {
	var stderr bytes.Buffer
	cmd := commandContext(ctx, name, args...)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if tail := lastLines(stderr.String(), stderrTailLines); tail != "" {
			return &exitError{err: err, stderr: tail}
		}
		return err
	}
	return nil
}

type exitError struct {
	err    error
	stderr string
}

func (e *exitError) Error() string { return e.err.Error() + ": " + e.stderr }

func (e *exitError) Unwrap() error { return e.err }

func lastLines(output string, n int) string {
	lines := strings.Split(strings.TrimSpace(output), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
