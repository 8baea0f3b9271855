package preflight

import (
	"context"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"golang.org/x/sys/unix"

	"markercut/internal/config"
	"markercut/internal/deps"
)

var statfs = unix.Statfs

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	return checkDirectory(name, path, unix.R_OK|unix.W_OK|unix.X_OK, "read/write ok")
}

// CheckReadableDirectory verifies that the directory exists and can be listed.
func CheckReadableDirectory(name, path string) Result {
	return checkDirectory(name, path, unix.R_OK|unix.X_OK, "readable")
}

func checkDirectory(name, path string, mode uint32, okDetail string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, mode); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%s)", path, okDetail)}
}

// CheckFreeSpace verifies the filesystem holding path has at least minBytes free.
func CheckFreeSpace(name, path string, minBytes uint64) Result {
	var st unix.Statfs_t
	if err := statfs(path, &st); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: statfs: %v)", path, err)}
	}
	free := st.Bavail * uint64(st.Bsize)
	detail := fmt.Sprintf("%s free on %s", humanize.IBytes(free), path)
	if free < minBytes {
		return Result{Name: name, Detail: fmt.Sprintf("%s (need %s)", detail, humanize.IBytes(minBytes))}
	}
	return Result{Name: name, Passed: true, Detail: detail}
}

// CheckSystemDeps evaluates external binaries and ffmpeg features for cfg.
// Both the batch commands and doctor use this list.
func CheckSystemDeps(ctx context.Context, cfg *config.Config) []deps.Status {
	requirements := []deps.Requirement{
		{
			Name:        "FFmpeg",
			Command:     cfg.Tools.FFmpeg,
			Description: "Required for frame extraction, cutting and concatenation",
		},
		{
			Name:        "FFprobe",
			Command:     cfg.Tools.FFprobe,
			Description: "Required for caption timing",
		},
		{
			Name:        "Downloader",
			Command:     cfg.Tools.Downloader,
			Description: "Fetches videos missing from the videos directory",
			Optional:    true,
		},
	}
	statuses := deps.CheckBinaries(requirements)
	if len(statuses) == 0 || !statuses[0].Available {
		return statuses
	}

	features := []deps.Feature{
		{Kind: "filter", Name: "fps", Description: "Frame sampling"},
		{Kind: "filter", Name: "select", Description: "Clip cutting"},
		{Kind: "filter", Name: "aselect", Description: "Clip cutting"},
		{Kind: "filter", Name: "concat", Description: "Compilation"},
	}
	if cfg.Compile.Captions {
		features = append(features, deps.Feature{Kind: "filter", Name: "subtitles", Description: "Burned-in captions (libass)"})
	}
	if cfg.UseCUDA() {
		features = append(features, deps.Feature{Kind: "encoder", Name: "h264_nvenc", Description: "CUDA clip encoding"})
	}
	return append(statuses, deps.CheckFFmpegFeatures(ctx, cfg.Tools.FFmpeg, features)...)
}
