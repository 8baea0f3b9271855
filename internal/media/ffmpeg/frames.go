package ffmpeg

import (
	"context"
	"path/filepath"

	"markercut/internal/framecache"
)

// Extract samples still frames into req.OutputDir. It satisfies
// framecache.Extractor.
func (t *Tool) Extract(ctx context.Context, req framecache.Request) error {
	return t.run(ctx, "extract frames", frameArgs(req))
}

func frameArgs(req framecache.Request) []string {
	args := []string{"-hide_banner", "-loglevel", "error", "-i", req.Video}
	if req.Window.Start != nil {
		args = append(args, "-ss", req.Window.Start.String())
	}
	if req.Window.End != nil {
		args = append(args, "-to", req.Window.End.String())
	}
	return append(args,
		"-vf", "fps="+req.Rate.String(),
		"-vsync", "0",
		"-qscale:v", "2",
		"-f", "image2",
		filepath.Join(req.OutputDir, req.Pattern),
	)
}
