package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"markercut/internal/framecache"
	"markercut/internal/services"
	"markercut/internal/timecode"
)

type capture struct {
	name string
	args []string
	err  error
}

func (c *capture) run(_ context.Context, name string, args ...string) error {
	c.name = name
	c.args = append([]string(nil), args...)
	return c.err
}

func (c *capture) joined() string { return strings.Join(c.args, " ") }

func TestExtractBuildsWindowedArgs(t *testing.T) {
	rec := &capture{}
	tool := New("/opt/ffmpeg", WithRunner(rec.run))
	req := framecache.Request{
		Video:     "in.mp4",
		Window:    framecache.Between(timecode.New(8, 500), timecode.New(12, 500)),
		Rate:      framecache.Rate{Num: 30, Den: 1},
		OutputDir: "/cache/stage",
		Pattern:   "thumb%04d.jpg",
	}
	if err := tool.Extract(context.Background(), req); err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if rec.name != "/opt/ffmpeg" {
		t.Fatalf("unexpected binary %q", rec.name)
	}
	want := "-hide_banner -loglevel error -i in.mp4 -ss 00:00:08.500 -to 00:00:12.500 -vf fps=30/1 -vsync 0 -qscale:v 2 -f image2 /cache/stage/thumb%04d.jpg"
	if got := rec.joined(); got != want {
		t.Fatalf("unexpected args\n got: %s\nwant: %s", got, want)
	}
}

func TestExtractFullWindowOmitsSeek(t *testing.T) {
	rec := &capture{}
	tool := New("", WithRunner(rec.run))
	req := framecache.Request{Video: "in.mp4", Window: framecache.Full, Rate: framecache.Rate{Num: 1, Den: 1}, OutputDir: "out", Pattern: "thumb%04d.png"}
	if err := tool.Extract(context.Background(), req); err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if rec.name != DefaultBinary {
		t.Fatalf("expected default binary, got %q", rec.name)
	}
	if slices.Contains(rec.args, "-ss") || slices.Contains(rec.args, "-to") {
		t.Fatalf("full window should not seek: %v", rec.args)
	}
}

func TestFailuresAreExternalToolErrors(t *testing.T) {
	rec := &capture{err: errors.New("exit status 1")}
	tool := New("ffmpeg", WithRunner(rec.run))
	err := tool.Extract(context.Background(), framecache.Request{Rate: framecache.Rate{Num: 1, Den: 1}})
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected ErrExternalTool, got %v", err)
	}
}

func TestCutClipsSelectExpression(t *testing.T) {
	rec := &capture{}
	tool := New("ffmpeg", WithRunner(rec.run), WithCUDA(true))
	ranges := []timecode.Range{
		{Start: timecode.New(10, 17), End: timecode.New(15, 983)},
		{Start: timecode.New(100, 0), End: timecode.New(104, 500)},
	}
	if err := tool.CutClips(context.Background(), "in.mkv", "out.mkv", ranges, true); err != nil {
		t.Fatalf("CutClips: %v", err)
	}
	got := rec.joined()
	for _, want := range []string{
		"-hwaccel cuda -y -i in.mkv",
		"-vf select='between(t,10.017,15.983)+between(t,100.000,104.500)',setpts=N/FRAME_RATE/TB",
		"-af aselect='between(t,10.017,15.983)+between(t,100.000,104.500)',asetpts=N/SR/TB",
		"-c:v h264_nvenc out.mkv",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("expected %q in %s", want, got)
		}
	}
	if err := tool.CutClips(context.Background(), "in.mkv", "out.mkv", nil, true); err == nil {
		t.Fatal("expected error for empty ranges")
	}
}

func TestConcatFilterGraph(t *testing.T) {
	rec := &capture{}
	tool := New("ffmpeg", WithRunner(rec.run))
	if err := tool.ConcatFilter(context.Background(), []string{"a.mkv", "b.mkv"}, "combined.mkv", "/data/combined.srt"); err != nil {
		t.Fatalf("ConcatFilter: %v", err)
	}
	idx := slices.Index(rec.args, "-filter_complex")
	if idx < 0 {
		t.Fatalf("missing -filter_complex in %v", rec.args)
	}
	graph := rec.args[idx+1]
	wantGraph := "[0:v:0][0:a:0][1:v:0][1:a:0]concat=n=2:v=1:a=1[outv][outa];[outv]subtitles=/data/combined.srt:force_style='" + CaptionStyle + "'[subv]"
	if graph != wantGraph {
		t.Fatalf("unexpected graph\n got: %s\nwant: %s", graph, wantGraph)
	}
	if !strings.Contains(rec.joined(), "-map [subv] -map [outa]") {
		t.Fatalf("expected captioned video to be mapped: %s", rec.joined())
	}

	if err := tool.ConcatFilter(context.Background(), []string{"a.mkv"}, "c.mkv", ""); err != nil {
		t.Fatalf("ConcatFilter without captions: %v", err)
	}
	if !strings.Contains(rec.joined(), "-map [outv] -map [outa]") || strings.Contains(rec.joined(), "subtitles=") {
		t.Fatalf("unexpected uncaptioned args: %s", rec.joined())
	}
}

func TestEscapeFilterValue(t *testing.T) {
	cases := map[string]string{
		`/data/combined.srt`:   `/data/combined.srt`,
		`/mnt/c:/combined.srt`: `/mnt/c\\:/combined.srt`,
		`/tmp/it's:here,[x]`:   `/tmp/it\\\'s\\:here\,\[x\]`,
		`C:\clips\a;b.srt`:     `C\\:\\\\clips\\\\a\;b.srt`,
	}
	for in, want := range cases {
		if got := escapeFilterValue(in); got != want {
			t.Fatalf("escapeFilterValue(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestConcatFilterEscapesColonInSubtitlePath(t *testing.T) {
	rec := &capture{}
	tool := New("ffmpeg", WithRunner(rec.run))
	if err := tool.ConcatFilter(context.Background(), []string{"a.mkv"}, "c.mkv", "/mnt/d:/data/combined.srt"); err != nil {
		t.Fatalf("ConcatFilter: %v", err)
	}
	idx := slices.Index(rec.args, "-filter_complex")
	if idx < 0 {
		t.Fatalf("missing -filter_complex in %v", rec.args)
	}
	want := `subtitles=/mnt/d\\:/data/combined.srt:force_style='`
	if !strings.Contains(rec.args[idx+1], want) {
		t.Fatalf("expected %s in graph %s", want, rec.args[idx+1])
	}
}

func TestConcatDemuxerWritesAndRemovesList(t *testing.T) {
	dir := t.TempDir()
	output := filepath.Join(dir, "combined.mkv")
	var listContent string
	runner := func(_ context.Context, _ string, args ...string) error {
		idx := slices.Index(args, "-i")
		data, err := os.ReadFile(args[idx+1])
		if err != nil {
			return err
		}
		listContent = string(data)
		if !slices.Contains(args, "copy") {
			return fmt.Errorf("expected stream copy in %v", args)
		}
		return nil
	}
	tool := New("ffmpeg", WithRunner(runner))
	inputs := []string{filepath.Join(dir, "a.mkv"), filepath.Join(dir, "o'b.mkv")}
	if err := tool.ConcatDemuxer(context.Background(), inputs, output, true); err != nil {
		t.Fatalf("ConcatDemuxer: %v", err)
	}
	want := fmt.Sprintf("file '%s'\nfile '%s'\n", inputs[0], filepath.Join(dir, `o'\''b.mkv`))
	if listContent != want {
		t.Fatalf("unexpected list\n got: %q\nwant: %q", listContent, want)
	}
	if _, err := os.Stat(output + ".txt"); !os.IsNotExist(err) {
		t.Fatalf("expected list file to be removed, stat err=%v", err)
	}
}

func TestExecRunnerReportsStderrTail(t *testing.T) {
	original := commandContext
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		cmd := exec.CommandContext(ctx, os.Args[0], "-test.run=TestHelperProcess")
		cmd.Env = append(os.Environ(), "GO_WANT_HELPER_PROCESS=1")
		return cmd
	}
	t.Cleanup(func() { commandContext = original })

	err := New("ffmpeg").Extract(context.Background(), framecache.Request{Rate: framecache.Rate{Num: 1, Den: 1}})
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected ErrExternalTool, got %v", err)
	}
	if !strings.Contains(err.Error(), "Invalid data found when processing input") {
		t.Fatalf("expected stderr tail in error, got %v", err)
	}
}

func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	fmt.Fprintln(os.Stderr, "in.mp4: Invalid data found when processing input")
	os.Exit(1)
}
