package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"markercut/internal/services"
)

// CaptionStyle is the ASS force_style applied to burned-in captions.
const CaptionStyle = "Alignment=1,OutlineColour=&H100000000,BorderStyle=3,Outline=1,Shadow=0,Fontsize=18"

// ConcatFilter re-encodes inputs into output through the concat filter. When
// subtitles is non-empty the SRT file is burned into the video.
func (t *Tool) ConcatFilter(ctx context.Context, inputs []string, output, subtitles string) error {
	if len(inputs) == 0 {
		return errors.New("concat: no inputs")
	}
	return t.run(ctx, "concat filter", t.concatFilterArgs(inputs, output, subtitles))
}

func (t *Tool) concatFilterArgs(inputs []string, output, subtitles string) []string {
	args := []string{"-hide_banner", "-loglevel", "error", "-y"}
	if t.cuda {
		args = append(args, "-hwaccel", "cuda")
	}
	var graph strings.Builder
	for i, input := range inputs {
		args = append(args, "-i", input)
		fmt.Fprintf(&graph, "[%d:v:0][%d:a:0]", i, i)
	}
	fmt.Fprintf(&graph, "concat=n=%d:v=1:a=1[outv][outa]", len(inputs))
	videoLabel := "[outv]"
	if subtitles != "" {
		fmt.Fprintf(&graph, ";[outv]subtitles=%s:force_style='%s'[subv]", escapeFilterValue(subtitles), CaptionStyle)
		videoLabel = "[subv]"
	}
	args = append(args,
		"-filter_complex", graph.String(),
		"-map", videoLabel,
		"-map", "[outa]",
		"-preset", "slow",
	)
	if t.cuda {
		args = append(args, "-c:v", "h264_nvenc")
	}
	return append(args, output)
}

// ConcatDemuxer joins inputs with the concat demuxer, stream-copying when
// copyStreams is set. The list file is written beside output and removed
// afterwards.
func (t *Tool) ConcatDemuxer(ctx context.Context, inputs []string, output string, copyStreams bool) error {
	if len(inputs) == 0 {
		return errors.New("concat: no inputs")
	}
	listPath := output + ".txt"
	if err := writeConcatList(listPath, inputs); err != nil {
		return err
	}
	defer os.Remove(listPath)

	args := []string{"-hide_banner", "-loglevel", "error", "-y",
		"-f", "concat", "-safe", "0", "-i", listPath, "-fflags", "+igndts"}
	if copyStreams {
		args = append(args, "-c", "copy")
	}
	args = append(args, output)
	return t.run(ctx, "concat demuxer", args)
}

func writeConcatList(path string, inputs []string) error {
	var b strings.Builder
	for _, input := range inputs {
		abs, err := filepath.Abs(input)
		if err != nil {
			return services.Wrap(services.ErrIO, "ffmpeg", "concat list", input, err)
		}
		fmt.Fprintf(&b, "file '%s'\n", strings.ReplaceAll(abs, "'", `'\''`))
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return services.Wrap(services.ErrIO, "ffmpeg", "concat list", path, err)
	}
	return nil
}

var (
	optionEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`, `:`, `\:`)
	graphEscaper  = strings.NewReplacer(`\`, `\\`, `'`, `\'`, `[`, `\[`, `]`, `\]`, `,`, `\,`, `;`, `\;`)
)

// escapeFilterValue escapes a filter option value for use inside
// -filter_complex: once for the option parser, then for the graph parser.
func escapeFilterValue(value string) string {
	return graphEscaper.Replace(optionEscaper.Replace(value))
}
