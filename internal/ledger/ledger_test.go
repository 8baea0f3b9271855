package ledger

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"markercut/internal/services"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(context.Background(), filepath.Join(t.TempDir(), "data", "ledger.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	clock := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return store
}

func TestRunLifecycle(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	run, err := store.BeginRun(ctx, "find-clips")
	if err != nil {
		t.Fatalf("BeginRun: %v", err)
	}
	if len(run.ID) != 36 {
		t.Fatalf("expected uuid run id, got %q", run.ID)
	}
	if err := store.FinishRun(ctx, run.ID, 3, 1); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}
	latest, err := store.LatestRun(ctx)
	if err != nil {
		t.Fatalf("LatestRun: %v", err)
	}
	if latest == nil || latest.ID != run.ID || latest.FinishedAt == nil || latest.VideosTotal != 3 || latest.VideosFailed != 1 {
		t.Fatalf("unexpected latest run %+v", latest)
	}
	if err := store.FinishRun(ctx, "missing", 0, 0); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestVideoTransitions(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	run, err := store.BeginRun(ctx, "find-clips")
	if err != nil {
		t.Fatal(err)
	}

	if err := store.MarkRunning(ctx, run.ID, "abc"); err != nil {
		t.Fatalf("MarkRunning: %v", err)
	}
	cause := services.Wrap(services.ErrBoundaryNotFound, "refine", "candidate 0", "no end boundary", nil)
	if err := store.MarkFailed(ctx, run.ID, "abc", cause); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}
	video, err := store.Video(ctx, "abc")
	if err != nil {
		t.Fatal(err)
	}
	if video.Status != StatusFailed || video.FailureKind != "boundary_not_found" || video.Detail != cause.Error() {
		t.Fatalf("unexpected failed row %+v", video)
	}
	if video.RunID != run.ID || video.Attempts != 1 || video.StartedAt == nil {
		t.Fatalf("unexpected bookkeeping %+v", video)
	}

	if err := store.MarkRunning(ctx, run.ID, "abc"); err != nil {
		t.Fatal(err)
	}
	if err := store.MarkDetected(ctx, run.ID, "abc", 4); err != nil {
		t.Fatalf("MarkDetected: %v", err)
	}
	video, err = store.Video(ctx, "abc")
	if err != nil {
		t.Fatal(err)
	}
	if video.Status != StatusDetected || video.RangeCount != 4 || video.FailureKind != "" || video.Detail != "" || video.Attempts != 2 {
		t.Fatalf("unexpected detected row %+v", video)
	}

	missing, err := store.Video(ctx, "nope")
	if err != nil || missing != nil {
		t.Fatalf("expected nil for unknown video, got %+v %v", missing, err)
	}
}

func TestListAndSummarize(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	run, err := store.BeginRun(ctx, "find-clips")
	if err != nil {
		t.Fatal(err)
	}
	steps := []func() error{
		func() error { return store.MarkDetected(ctx, run.ID, "a", 1) },
		func() error { return store.MarkSkipped(ctx, run.ID, "b", "excluded id") },
		func() error { return store.MarkFailed(ctx, run.ID, "c", errors.New("boom")) },
		func() error { return store.MarkDetected(ctx, run.ID, "d", 0) },
	}
	for i, step := range steps {
		if err := step(); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}

	all, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 4 || all[0].VideoID != "d" || all[3].VideoID != "a" {
		t.Fatalf("expected newest first, got %+v", all)
	}
	detected, err := store.List(ctx, StatusDetected)
	if err != nil {
		t.Fatal(err)
	}
	if len(detected) != 2 {
		t.Fatalf("expected 2 detected, got %d", len(detected))
	}

	summary, err := store.Summarize(ctx)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if summary.Total != 4 || summary.Counts[StatusDetected] != 2 || summary.Counts[StatusSkipped] != 1 || summary.Counts[StatusFailed] != 1 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	failed, err := store.Video(ctx, "c")
	if err != nil {
		t.Fatal(err)
	}
	if failed.FailureKind != "transient" {
		t.Fatalf("unclassified errors should be transient, got %q", failed.FailureKind)
	}
}

func TestResetInterrupted(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	if err := store.MarkRunning(ctx, "", "stuck"); err != nil {
		t.Fatal(err)
	}
	if err := store.MarkDetected(ctx, "", "done", 2); err != nil {
		t.Fatal(err)
	}
	reset, err := store.ResetInterrupted(ctx, "stuck")
	if err != nil {
		t.Fatalf("ResetInterrupted: %v", err)
	}
	if !reset {
		t.Fatal("expected running row to be reset")
	}
	video, err := store.Video(ctx, "stuck")
	if err != nil {
		t.Fatal(err)
	}
	if video.Status != StatusFailed || video.Detail != InterruptedDetail {
		t.Fatalf("unexpected reset row %+v", video)
	}

	reset, err = store.ResetInterrupted(ctx, "done")
	if err != nil {
		t.Fatalf("ResetInterrupted: %v", err)
	}
	if reset {
		t.Fatal("finished rows must not be reset")
	}
	done, err := store.Video(ctx, "done")
	if err != nil {
		t.Fatal(err)
	}
	if done.Status != StatusDetected || done.RangeCount != 2 {
		t.Fatalf("finished row changed: %+v", done)
	}
	if reset, err := store.ResetInterrupted(ctx, "missing"); err != nil || reset {
		t.Fatalf("unknown video: reset=%v err=%v", reset, err)
	}
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	ctx := context.Background()
	store, err := Open(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.MarkDetected(ctx, "", "abc", 1); err != nil {
		t.Fatal(err)
	}
	if err := store.Close(); err != nil {
		t.Fatal(err)
	}

	reopened, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	video, err := reopened.Video(ctx, "abc")
	if err != nil || video == nil || video.RangeCount != 1 {
		t.Fatalf("expected persisted row, got %+v %v", video, err)
	}
}

func TestSchemaMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	ctx := context.Background()
	store, err := Open(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.db.ExecContext(ctx, "UPDATE schema_version SET version = 99"); err != nil {
		t.Fatal(err)
	}
	_ = store.Close()

	if _, err := Open(ctx, path); !errors.Is(err, ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
}

func TestParseStatus(t *testing.T) {
	if s, ok := ParseStatus("failed"); !ok || s != StatusFailed {
		t.Fatalf("unexpected parse %q %v", s, ok)
	}
	if _, ok := ParseStatus("bogus"); ok {
		t.Fatal("expected bogus status to be rejected")
	}
}
