package captions

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"markercut/internal/timecode"
)

func TestTrackLaysCuesEndToEnd(t *testing.T) {
	var track Track
	track.Append("First  video", "aaa", timecode.FromSeconds(5.966))
	track.Append("", "bbb", timecode.FromSeconds(61.5))
	track.Append("Café", "ccc", timecode.New(3600, 0))

	cues := track.cues
	if len(cues) != 3 || track.Len() != 3 {
		t.Fatalf("expected 3 cues, got %d", len(cues))
	}
	if cues[1].Start != cues[0].End || cues[2].Start != cues[1].End {
		t.Fatal("cues should be contiguous")
	}
	if cues[1].Text != "bbb" {
		t.Fatalf("expected fallback text, got %q", cues[1].Text)
	}
	if cues[2].Text != "Café" {
		t.Fatalf("expected NFC text, got %q", cues[2].Text)
	}
	if track.End() != timecode.New(3667, 466) {
		t.Fatalf("unexpected end %s", track.End())
	}
}

func TestWriteToSubRip(t *testing.T) {
	var track Track
	track.Append("First video", "aaa", timecode.FromSeconds(5.966))
	track.Append("Second video", "bbb", timecode.FromSeconds(2))

	var sb strings.Builder
	if _, err := track.WriteTo(&sb); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}
	want := "1\n00:00:00,000 --> 00:00:05,966\nFirst video\n\n" +
		"2\n00:00:05,966 --> 00:00:07,966\nSecond video\n\n"
	if sb.String() != want {
		t.Fatalf("unexpected srt:\n%s", sb.String())
	}
}

func TestWriteFile(t *testing.T) {
	var track Track
	track.Append("Only", "x", timecode.New(1, 0))
	path := filepath.Join(t.TempDir(), "combined.srt")
	if err := track.WriteFile(path); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), "1\n00:00:00,000 --> 00:00:01,000\nOnly\n") {
		t.Fatalf("unexpected file %q", data)
	}
}

func TestEmptyTrackWritesNothing(t *testing.T) {
	var track Track
	var sb strings.Builder
	if n, err := track.WriteTo(&sb); err != nil || n != 0 || sb.Len() != 0 {
		t.Fatalf("expected empty output, got %d %v", n, err)
	}
}
