package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"markercut/internal/detect"
	"markercut/internal/framecache"
	"markercut/internal/services"
	"markercut/internal/timecode"
)

var _ detect.Recorder = (*Metrics)(nil)

var _ framecache.ExtractObserver = (*Metrics)(nil).ObserveExtraction

func TestWriteTextfile(t *testing.T) {
	m := New()
	m.FramesClassified(detect.PhaseCoarse, 60, 7)
	m.FramesClassified(detect.PhaseRefine, 120, 46)
	m.Candidates(1, 1)
	m.RangesRefined(1)
	m.ObserveExtraction(framecache.Key{VideoID: "a", Window: framecache.Full, Rate: framecache.Rate{Num: 1, Den: 1}}, 60, 3*time.Second)
	m.ObserveExtraction(framecache.Key{VideoID: "a", Window: framecache.Between(timecode.New(8, 0), timecode.New(12, 0)), Rate: framecache.Rate{Num: 30, Den: 1}}, 120, time.Second)
	m.VideoFinished(OutcomeDetected)
	m.VideoFinished(OutcomeSkipped)
	m.VideoFailed(services.Wrap(services.ErrExternalTool, "ffmpeg", "extract", "", errors.New("exit status 1")))
	m.RunCompleted("find-clips", time.Unix(1700000000, 0), 90*time.Second)

	path := filepath.Join(t.TempDir(), "markercut.prom")
	if err := m.WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	text := string(data)
	for _, want := range []string{
		`markercut_frames_classified_total{phase="coarse"} 60`,
		`markercut_marker_frames_total{phase="refine"} 46`,
		`markercut_candidates_total{outcome="dropped"} 1`,
		`markercut_ranges_refined_total 1`,
		`markercut_frame_extraction_duration_seconds_count{window="full"} 1`,
		`markercut_frames_extracted_total{window="window"} 120`,
		`markercut_videos_processed_total{outcome="failed"} 1`,
		`markercut_video_failures_total{kind="external_tool"} 1`,
		`markercut_last_run_duration_seconds{command="find-clips"} 90`,
		`markercut_last_run_timestamp_seconds{command="find-clips"} 1.7e+09`,
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("textfile missing %q:\n%s", want, text)
		}
	}
}

func TestWriteTextfileEmptyPath(t *testing.T) {
	if err := New().WriteTextfile(""); err != nil {
		t.Fatalf("expected no-op, got %v", err)
	}
}

func TestRegistriesAreIndependent(t *testing.T) {
	a, b := New(), New()
	a.RangesRefined(3)
	families, err := b.Registry().Gather()
	if err != nil {
		t.Fatal(err)
	}
	for _, family := range families {
		if family.GetName() == "markercut_ranges_refined_total" && family.GetMetric()[0].GetCounter().GetValue() != 0 {
			t.Fatal("registries should not share collectors")
		}
	}
}
