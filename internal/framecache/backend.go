package framecache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"markercut/internal/logging"
	"markercut/internal/services"
)

// FramePrefix and the extensions below form the on-disk naming convention
// thumb%04d.<ext>.
const FramePrefix = "thumb"

var frameExtensions = []string{".jpg", ".png"}

const stagingPrefix = ".staging-"

// Backend stores extraction batches.
type Backend interface {
	// Lookup reports whether key is populated and, if so, lists its frames
	// sorted by sequence.
	Lookup(ctx context.Context, key Key) ([]Frame, bool, error)
	// Prepare returns a private location for the extractor to fill.
	Prepare(ctx context.Context, key Key) (Staging, error)
}

// Staging is an in-progress population of one key.
type Staging interface {
	// Dir is where the extractor writes frames.
	Dir() string
	// Commit publishes the staged frames under the key.
	Commit() error
	// Discard drops the staged frames. It is safe to call after Commit.
	Discard() error
}

// DirBackend keeps each key in <root>/<video>/<key name>/.
type DirBackend struct {
	root   string
	logger *slog.Logger
}

// NewDirBackend constructs a directory backend rooted at root.
func NewDirBackend(root string, logger *slog.Logger) *DirBackend {
	return &DirBackend{
		root:   root,
		logger: logging.NewComponentLogger(logger, "framecache"),
	}
}

// Root returns the cache root directory.
func (b *DirBackend) Root() string { return b.root }

// KeyDir returns the committed directory for key.
func (b *DirBackend) KeyDir(key Key) string {
	return filepath.Join(b.root, key.VideoID, key.Name())
}

// Lookup lists committed frames. A committed directory with no frames is
// populated; the window may lie past the end of the video.
func (b *DirBackend) Lookup(ctx context.Context, key Key) ([]Frame, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	dir := b.KeyDir(key)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, services.Wrap(services.ErrIO, "framecache", "list frames", dir, err)
	}

	origin := key.Window.Origin()
	frames := make([]Frame, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		seq, ok, err := parseFrameName(entry.Name())
		if err != nil {
			return nil, false, services.Wrap(services.ErrCacheCorrupt, "framecache", "parse frame name", filepath.Join(dir, entry.Name()), err)
		}
		if !ok {
			continue
		}
		frames = append(frames, Frame{
			Seq:       seq,
			Timestamp: FrameTimestamp(origin, seq, key.Rate),
			Path:      filepath.Join(dir, entry.Name()),
		})
	}
	sort.Slice(frames, func(i, j int) bool { return frames[i].Seq < frames[j].Seq })
	return frames, true, nil
}

// parseFrameName extracts the sequence number from thumb%04d.<ext>. Names
// outside the convention report ok=false; names inside it with a missing,
// malformed, or zero sequence are an error.
func parseFrameName(name string) (uint64, bool, error) {
	if !strings.HasPrefix(name, FramePrefix) {
		return 0, false, nil
	}
	ext := strings.ToLower(filepath.Ext(name))
	known := false
	for _, candidate := range frameExtensions {
		if ext == candidate {
			known = true
			break
		}
	}
	if !known {
		return 0, false, nil
	}
	digits := name[len(FramePrefix) : len(name)-len(ext)]
	seq, err := strconv.ParseUint(digits, 10, 64)
	if err != nil {
		return 0, true, fmt.Errorf("sequence %q: %w", digits, err)
	}
	if seq == 0 {
		return 0, true, errors.New("sequence must be 1-based")
	}
	return seq, true, nil
}

// Prepare creates a hidden staging directory beside the key's final location.
func (b *DirBackend) Prepare(ctx context.Context, key Key) (Staging, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	parent := filepath.Join(b.root, key.VideoID)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return nil, services.Wrap(services.ErrIO, "framecache", "create video dir", parent, err)
	}
	dir, err := os.MkdirTemp(parent, stagingPrefix+key.Name()+"-")
	if err != nil {
		return nil, services.Wrap(services.ErrIO, "framecache", "create staging dir", parent, err)
	}
	return &dirStaging{dir: dir, final: b.KeyDir(key)}, nil
}

type dirStaging struct {
	dir       string
	final     string
	committed bool
}

func (s *dirStaging) Dir() string { return s.dir }

func (s *dirStaging) Commit() error {
	if err := os.Rename(s.dir, s.final); err != nil {
		return services.Wrap(services.ErrIO, "framecache", "commit frames", s.final, err)
	}
	s.committed = true
	return nil
}

func (s *dirStaging) Discard() error {
	if s.committed {
		return nil
	}
	if err := os.RemoveAll(s.dir); err != nil {
		return services.Wrap(services.ErrIO, "framecache", "discard staging", s.dir, err)
	}
	return nil
}
