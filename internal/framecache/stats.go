package framecache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"markercut/internal/logging"
	"markercut/internal/services"
)

// statfsFunc allows tests to stub filesystem stats.
type statfsFunc func(path string) (total uint64, free uint64, err error)

var statfs statfsFunc = realStatfs

// Stats describes current cache usage.
type Stats struct {
	Videos       int            `json:"videos"`
	Keys         int            `json:"keys"`
	Frames       int            `json:"frames"`
	TotalBytes   int64          `json:"total_bytes"`
	FreeBytes    uint64         `json:"free_bytes"`
	TotalFSBytes uint64         `json:"total_fs_bytes"`
	Summaries    []VideoSummary `json:"summaries"`
}

// VideoSummary aggregates the keys stored for one video.
type VideoSummary struct {
	VideoID    string    `json:"video_id"`
	Keys       int       `json:"keys"`
	Frames     int       `json:"frames"`
	SizeBytes  int64     `json:"size_bytes"`
	Staging    int       `json:"staging"`
	ModifiedAt time.Time `json:"modified_at"`
}

// Stats walks the cache root. Unreadable video directories are logged and
// skipped.
func (b *DirBackend) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	videos, err := os.ReadDir(b.root)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return s, services.Wrap(services.ErrIO, "framecache", "list root", b.root, err)
	}
	for _, entry := range videos {
		if err := ctx.Err(); err != nil {
			return s, err
		}
		if !entry.IsDir() {
			continue
		}
		summary, err := b.summarize(entry.Name())
		if err != nil {
			b.logger.Warn("framecache: skip video; excluded from stats",
				logging.String(logging.FieldVideoID, entry.Name()),
				logging.Error(err),
				logging.String(logging.FieldEventType, "framecache_entry_skipped"),
				logging.String(logging.FieldErrorHint, "inspect cache directory permissions or remove the entry"),
			)
			continue
		}
		s.Videos++
		s.Keys += summary.Keys
		s.Frames += summary.Frames
		s.TotalBytes += summary.SizeBytes
		s.Summaries = append(s.Summaries, summary)
	}
	sort.Slice(s.Summaries, func(i, j int) bool {
		return s.Summaries[i].SizeBytes > s.Summaries[j].SizeBytes
	})
	if s.Videos > 0 {
		total, free, err := statfs(b.root)
		if err != nil {
			return s, services.Wrap(services.ErrIO, "framecache", "statfs", b.root, err)
		}
		s.TotalFSBytes, s.FreeBytes = total, free
	}
	return s, nil
}

func (b *DirBackend) summarize(videoID string) (VideoSummary, error) {
	summary := VideoSummary{VideoID: videoID}
	dir := filepath.Join(b.root, videoID)
	keys, err := os.ReadDir(dir)
	if err != nil {
		return summary, err
	}
	for _, key := range keys {
		if !key.IsDir() {
			continue
		}
		if strings.HasPrefix(key.Name(), stagingPrefix) {
			summary.Staging++
		} else {
			summary.Keys++
		}
		err := filepath.WalkDir(filepath.Join(dir, key.Name()), func(_ string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			info, err := d.Info()
			if err != nil {
				return err
			}
			if info.ModTime().After(summary.ModifiedAt) {
				summary.ModifiedAt = info.ModTime()
			}
			if d.IsDir() {
				return nil
			}
			summary.SizeBytes += info.Size()
			if _, ok, _ := parseFrameName(d.Name()); ok && !strings.HasPrefix(key.Name(), stagingPrefix) {
				summary.Frames++
			}
			return nil
		})
		if err != nil {
			return summary, err
		}
	}
	return summary, nil
}

// Remove deletes every stored key for videoID.
func (b *DirBackend) Remove(videoID string) error {
	videoID = strings.TrimSpace(videoID)
	if videoID == "" || strings.ContainsAny(videoID, `/\`) || videoID == "." || videoID == ".." {
		return services.Wrap(services.ErrValidation, "framecache", "remove", fmt.Sprintf("invalid video id %q", videoID), nil)
	}
	dir := filepath.Join(b.root, videoID)
	if _, err := os.Stat(dir); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return services.Wrap(services.ErrNotFound, "framecache", "remove", "no cached frames for "+videoID, nil)
		}
		return services.Wrap(services.ErrIO, "framecache", "remove", dir, err)
	}
	if err := os.RemoveAll(dir); err != nil {
		return services.Wrap(services.ErrIO, "framecache", "remove", dir, err)
	}
	b.logger.Info("removed cached frames", logging.String(logging.FieldVideoID, videoID))
	return nil
}

// PruneStaging removes staging directories abandoned by interrupted runs and
// returns how many were removed.
func (b *DirBackend) PruneStaging(videoID string) (int, error) {
	dir := filepath.Join(b.root, videoID)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, services.Wrap(services.ErrIO, "framecache", "prune staging", dir, err)
	}
	removed := 0
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), stagingPrefix) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(dir, entry.Name())); err != nil {
			return removed, services.Wrap(services.ErrIO, "framecache", "prune staging", entry.Name(), err)
		}
		removed++
	}
	if removed > 0 {
		b.logger.Debug("pruned abandoned staging dirs",
			logging.String(logging.FieldVideoID, videoID),
			logging.Int("count", removed))
	}
	return removed, nil
}

func realStatfs(path string) (uint64, uint64, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return 0, 0, err
	}
	total := stat.Blocks * uint64(stat.Bsize)
	free := stat.Bavail * uint64(stat.Bsize)
	return total, free, nil
}
