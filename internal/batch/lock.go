package batch

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"markercut/internal/ledger"
	"markercut/internal/logging"
	"markercut/internal/services"
)

// lockVideo takes the per-video advisory lock so two processes never write
// the same range file or frame cache entry at once.
func lockVideo(dir, videoID string) (*flock.Flock, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, services.Wrap(services.ErrIO, "lock", "create lock directory", dir, err)
	}
	path := filepath.Join(dir, videoID+".lock")
	lock := flock.New(path)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, services.Wrap(services.ErrIO, "lock", "acquire", path, err)
	}
	if !ok {
		return nil, services.Wrap(services.ErrTransient, "lock", "acquire",
			"video "+videoID+" is being processed by another markercut process", nil)
	}
	return lock, nil
}

// resetAbandoned fails ledger rows left running by a process that no longer
// holds the video's lock. Rows whose lock is held belong to a live process and
// are left alone.
func (r *Runner) resetAbandoned(ctx context.Context) error {
	running, err := r.ledger.List(ctx, ledger.StatusRunning)
	if err != nil {
		return err
	}
	var reset []string
	for _, video := range running {
		lock, err := lockVideo(r.cfg.LocksDir(), video.VideoID)
		if errors.Is(err, services.ErrTransient) {
			continue
		}
		if err != nil {
			return err
		}
		changed, err := r.ledger.ResetInterrupted(ctx, video.VideoID)
		_ = lock.Unlock()
		if err != nil {
			return err
		}
		if changed {
			reset = append(reset, video.VideoID)
		}
	}
	if len(reset) > 0 {
		logging.WarnWithContext(logging.WithContext(ctx, r.logger), "reset videos left running by an earlier process", "ledger_reset_interrupted",
			logging.Int("videos", len(reset)),
			logging.Any("video_ids", reset),
			logging.String(logging.FieldImpact, "those videos are reported as failed until processed again"),
		)
	}
	return nil
}
