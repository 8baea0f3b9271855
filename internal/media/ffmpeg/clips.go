package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"markercut/internal/timecode"
)

// CutClips writes output containing only the given ranges of input, in the
// order supplied, re-timed to play back to back.
func (t *Tool) CutClips(ctx context.Context, input, output string, ranges []timecode.Range, overwrite bool) error {
	if len(ranges) == 0 {
		return errors.New("cut clips: no ranges")
	}
	return t.run(ctx, "cut clips", t.clipArgs(input, output, ranges, overwrite))
}

func (t *Tool) clipArgs(input, output string, ranges []timecode.Range, overwrite bool) []string {
	args := []string{"-hide_banner", "-loglevel", "error"}
	if t.cuda {
		args = append(args, "-hwaccel", "cuda")
	}
	if overwrite {
		args = append(args, "-y")
	} else {
		args = append(args, "-n")
	}
	args = append(args, "-i", input)

	expr := selectExpr(ranges)
	args = append(args,
		"-vf", fmt.Sprintf("select='%s',setpts=N/FRAME_RATE/TB", expr),
		"-af", fmt.Sprintf("aselect='%s',asetpts=N/SR/TB", expr),
	)
	if t.cuda {
		args = append(args, "-c:v", "h264_nvenc")
	}
	return append(args, output)
}

// selectExpr joins between(t,a,b) terms for every range.
func selectExpr(ranges []timecode.Range) string {
	terms := make([]string, 0, len(ranges))
	for _, r := range ranges {
		terms = append(terms, fmt.Sprintf("between(t,%.3f,%.3f)", r.Start.Seconds(), r.End.Seconds()))
	}
	return strings.Join(terms, "+")
}
