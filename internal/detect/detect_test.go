package detect_test

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"markercut/internal/classifier"
	"markercut/internal/detect"
	"markercut/internal/framecache"
	"markercut/internal/services"
	"markercut/internal/timecode"
)

// span is a marker interval [from, to) in seconds.
type span struct{ from, to float64 }

type syntheticVideo struct {
	duration float64
	markers  []span
}

func (v syntheticVideo) markerAt(t float64) bool {
	for _, s := range v.markers {
		if t >= s.from && t < s.to {
			return true
		}
	}
	return false
}

// sample lists the frame timestamps an fps filter would emit for window.
func (v syntheticVideo) sample(window framecache.Window, rate framecache.Rate) []float64 {
	start, end := 0.0, v.duration
	if window.Start != nil {
		start = window.Start.Seconds()
	}
	if window.End != nil {
		end = math.Min(window.End.Seconds(), v.duration)
	}
	n := int(math.Floor((end - start) * rate.PerSecond()))
	out := make([]float64, 0, max(n, 0))
	for i := 1; i <= n; i++ {
		out = append(out, start+(float64(i)-0.5)/rate.PerSecond())
	}
	return out
}

// pngExtractor renders the synthetic video into real PNG files.
type pngExtractor struct {
	video syntheticVideo
	calls atomic.Int32
}

func (e *pngExtractor) Extract(_ context.Context, req framecache.Request) error {
	e.calls.Add(1)
	grey := image.NewRGBA(image.Rect(0, 0, 4, 4))
	black := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			grey.Set(x, y, color.RGBA{R: 128, G: 128, B: 128, A: 255})
			black.Set(x, y, color.RGBA{A: 255})
		}
	}
	for i, t := range e.video.sample(req.Window, req.Rate) {
		img := black
		if e.video.markerAt(t) {
			img = grey
		}
		f, err := os.Create(filepath.Join(req.OutputDir, fmt.Sprintf(req.Pattern, i+1)))
		if err != nil {
			return err
		}
		if err := png.Encode(f, img); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
	}
	return nil
}

func within(ts timecode.Timestamp, want float64, tolerance float64) bool {
	return math.Abs(ts.Seconds()-want) <= tolerance
}

func TestDetectEndToEnd(t *testing.T) {
	video := syntheticVideo{duration: 60, markers: []span{{10, 16}, {40, 41}}}
	extractor := &pngExtractor{video: video}
	cache := framecache.New(framecache.NewDirBackend(t.TempDir(), nil), extractor, "png")
	opts := detect.DefaultOptions()
	opts.Workers = 4

	d, err := detect.New(cache, classifier.NewFileClassifier(classifier.DefaultOptions(), nil), opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	result, err := d.Detect(context.Background(), framecache.Video{ID: "synthetic", Path: "synthetic.mp4"})
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if len(result.Ranges) != 1 {
		t.Fatalf("expected exactly one range, got %v", result.Ranges)
	}
	r := result.Ranges[0]
	if !within(r.Start, 10, 1.0/30) || !within(r.End, 16, 1.0/30) {
		t.Fatalf("range %s not within 1/30s of 10-16", r)
	}
	if r.Start != timecode.New(10, 17) || r.End != timecode.New(15, 983) {
		t.Fatalf("unexpected refined range %s", r)
	}

	// Coarse sweep plus one window per edge.
	if calls := extractor.calls.Load(); calls != 3 {
		t.Fatalf("expected 3 extractions, got %d", calls)
	}
	again, err := d.Detect(context.Background(), framecache.Video{ID: "synthetic", Path: "synthetic.mp4"})
	if err != nil {
		t.Fatalf("second Detect: %v", err)
	}
	if calls := extractor.calls.Load(); calls != 3 {
		t.Fatalf("rerun should be served from cache, got %d extractions", calls)
	}
	if len(again.Ranges) != 1 || again.Ranges[0] != r {
		t.Fatalf("rerun changed result: %v", again.Ranges)
	}
}

// memorySource serves synthetic frames whose path encodes the timestamp.
type memorySource struct {
	video syntheticVideo
	mu    sync.Mutex
	rates map[framecache.Rate]int
	// hideStart drops the marker from fine windows around these rough times.
	hideStart map[float64]bool
}

func (s *memorySource) FramesFor(_ context.Context, _ framecache.Video, window framecache.Window, rate framecache.Rate) ([]framecache.Frame, error) {
	s.mu.Lock()
	if s.rates == nil {
		s.rates = map[framecache.Rate]int{}
	}
	s.rates[rate]++
	s.mu.Unlock()

	origin := window.Origin()
	var frames []framecache.Frame
	for i, t := range s.video.sample(window, rate) {
		label := "clear"
		if s.video.markerAt(t) {
			label = "marker"
		}
		if window.Start != nil && s.hideStart[window.Start.Seconds()+2] {
			label = "clear"
		}
		seq := uint64(i + 1)
		frames = append(frames, framecache.Frame{
			Seq:       seq,
			Timestamp: framecache.FrameTimestamp(origin, seq, rate),
			Path:      label + "@" + strconv.FormatFloat(t, 'f', 4, 64),
		})
	}
	return frames, nil
}

func (s *memorySource) fineRequests(rate framecache.Rate) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rates[rate]
}

type labelClassifier struct{ calls atomic.Int64 }

func (c *labelClassifier) Classify(_ context.Context, path string) (bool, error) {
	c.calls.Add(1)
	return strings.HasPrefix(path, "marker@"), nil
}

func manyMarkers() syntheticVideo {
	video := syntheticVideo{duration: 600}
	for i := 0; i < 8; i++ {
		from := 20 + float64(i)*70 + float64(i)*0.25
		video.markers = append(video.markers, span{from, from + 6 + float64(i%3)})
	}
	return video
}

func TestDetectWorkerCountDoesNotChangeResult(t *testing.T) {
	video := manyMarkers()
	run := func(workers int) detect.Result {
		opts := detect.DefaultOptions()
		opts.Workers = workers
		d, err := detect.New(&memorySource{video: video}, &labelClassifier{}, opts)
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		result, err := d.Detect(context.Background(), framecache.Video{ID: "many"})
		if err != nil {
			t.Fatalf("Detect(workers=%d): %v", workers, err)
		}
		return result
	}

	serial := run(1)
	if len(serial.Ranges) != len(video.markers) {
		t.Fatalf("expected %d ranges, got %d", len(video.markers), len(serial.Ranges))
	}
	for _, workers := range []int{3, 16} {
		parallel := run(workers)
		if len(parallel.Ranges) != len(serial.Ranges) {
			t.Fatalf("workers=%d: range count %d != %d", workers, len(parallel.Ranges), len(serial.Ranges))
		}
		for i := range serial.Ranges {
			if parallel.Ranges[i] != serial.Ranges[i] {
				t.Fatalf("workers=%d: range %d differs: %s vs %s", workers, i, parallel.Ranges[i], serial.Ranges[i])
			}
		}
	}
	for i := 1; i < len(serial.Ranges); i++ {
		if !serial.Ranges[i-1].Start.Before(serial.Ranges[i].Start) {
			t.Fatalf("ranges not sorted at %d", i)
		}
	}
}

func TestDetectDropsShortCandidates(t *testing.T) {
	video := syntheticVideo{duration: 120, markers: []span{{10, 13}, {50, 56}, {90, 95}}}
	source := &memorySource{video: video}
	opts := detect.DefaultOptions()
	d, err := detect.New(source, &labelClassifier{}, opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	result, err := d.Detect(context.Background(), framecache.Video{ID: "short"})
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	// Rough frames span 2s for 10-13 and exactly 4s for 90-95: both dropped.
	if len(result.Ranges) != 1 || !within(result.Ranges[0].Start, 50, 1.0/30) {
		t.Fatalf("expected only the 50s range, got %v", result.Ranges)
	}
	if got := source.fineRequests(opts.FineRate); got != 2 {
		t.Fatalf("expected 2 fine windows, got %d", got)
	}
}

func TestDetectNoCandidatesSkipsRefinement(t *testing.T) {
	source := &memorySource{video: syntheticVideo{duration: 30}}
	opts := detect.DefaultOptions()
	d, err := detect.New(source, &labelClassifier{}, opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	result, err := d.Detect(context.Background(), framecache.Video{ID: "empty"})
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if result.Ranges == nil || len(result.Ranges) != 0 {
		t.Fatalf("expected empty non-nil ranges, got %#v", result.Ranges)
	}
	if source.fineRequests(opts.FineRate) != 0 {
		t.Fatal("fine windows should not be requested")
	}
}

func TestDetectReportsMissingBoundaryAfterSiblingsFinish(t *testing.T) {
	video := syntheticVideo{duration: 300, markers: []span{{20, 30}, {100, 110}, {200, 210}}}
	// Rough start frames sit at 20.5 and 200.5.
	source := &memorySource{video: video, hideStart: map[float64]bool{20.5: true, 200.5: true}}
	opts := detect.DefaultOptions()
	opts.Workers = 2
	d, err := detect.New(source, &labelClassifier{}, opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, err = d.Detect(context.Background(), framecache.Video{ID: "broken"})
	if !errors.Is(err, services.ErrBoundaryNotFound) {
		t.Fatalf("expected ErrBoundaryNotFound, got %v", err)
	}
	msg := err.Error()
	first := strings.Index(msg, "candidate 0")
	last := strings.Index(msg, "candidate 2")
	if first < 0 || last < 0 || first > last {
		t.Fatalf("expected candidates 0 and 2 in order, got %q", msg)
	}
	if strings.Contains(msg, "candidate 1") {
		t.Fatalf("healthy candidate should not be reported: %q", msg)
	}
	if !strings.Contains(msg, "no start boundary") {
		t.Fatalf("expected the failing edge to be named: %q", msg)
	}
	// The healthy candidate still resampled both edges.
	if got := source.fineRequests(opts.FineRate); got != 4 {
		t.Fatalf("expected 4 fine windows (2 failing starts + healthy start/end), got %d", got)
	}
}

type failingClassifier struct{}

func (failingClassifier) Classify(context.Context, string) (bool, error) {
	return false, services.Wrap(services.ErrIO, "classify", "decode frame", "bad", errors.New("unexpected EOF"))
}

func TestDetectPropagatesClassifierErrors(t *testing.T) {
	d, err := detect.New(&memorySource{video: syntheticVideo{duration: 5}}, failingClassifier{}, detect.DefaultOptions())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := d.Detect(context.Background(), framecache.Video{ID: "io"}); !errors.Is(err, services.ErrIO) {
		t.Fatalf("expected ErrIO, got %v", err)
	}
}

func TestNewValidatesOptions(t *testing.T) {
	opts := detect.DefaultOptions()
	opts.Workers = 0
	if _, err := detect.New(&memorySource{}, &labelClassifier{}, opts); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
	if _, err := detect.New(nil, &labelClassifier{}, detect.DefaultOptions()); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration for nil source, got %v", err)
	}
}

type countingRecorder struct {
	mu            sync.Mutex
	classified    map[string]int
	kept, dropped int
	refined       int
}

func (r *countingRecorder) FramesClassified(phase string, total, _ int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.classified[phase] += total
}

func (r *countingRecorder) Candidates(kept, dropped int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.kept += kept
	r.dropped += dropped
}

func (r *countingRecorder) RangesRefined(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refined += n
}

func TestDetectRecordsMetrics(t *testing.T) {
	video := syntheticVideo{duration: 60, markers: []span{{10, 16}, {40, 41}}}
	rec := &countingRecorder{classified: map[string]int{}}
	d, err := detect.New(&memorySource{video: video}, &labelClassifier{}, detect.DefaultOptions(), detect.WithRecorder(rec))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	start := time.Now()
	if _, err := d.Detect(context.Background(), framecache.Video{ID: "m"}); err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Fatal("detection over in-memory frames should be fast")
	}
	if rec.classified[detect.PhaseCoarse] != 60 {
		t.Fatalf("expected 60 coarse frames, got %d", rec.classified[detect.PhaseCoarse])
	}
	if rec.classified[detect.PhaseRefine] == 0 {
		t.Fatal("expected refine frames to be recorded")
	}
	if rec.kept != 1 || rec.dropped != 1 || rec.refined != 1 {
		t.Fatalf("unexpected counters kept=%d dropped=%d refined=%d", rec.kept, rec.dropped, rec.refined)
	}
}
