package detect

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"markercut/internal/framecache"
	"markercut/internal/logging"
	"markercut/internal/services"
	"markercut/internal/timecode"
)

type edge string

const (
	edgeStart edge = "start"
	edgeEnd   edge = "end"
)

// refineTask holds the two windows resampled for one candidate.
type refineTask struct {
	cand        candidate
	startWindow framecache.Window
	endWindow   framecache.Window
}

func (d *Detector) plan(video framecache.Video, candidates []candidate) ([]refineTask, error) {
	tasks := make([]refineTask, 0, len(candidates))
	owners := make(map[string]int, 2*len(candidates))
	for _, cand := range candidates {
		task := refineTask{
			cand:        cand,
			startWindow: d.around(cand.first.Timestamp),
			endWindow:   d.around(cand.last.Timestamp),
		}
		for _, window := range []framecache.Window{task.startWindow, task.endWindow} {
			key := framecache.Key{VideoID: video.ID, Window: window, Rate: d.opts.FineRate}.Name()
			if owner, ok := owners[key]; ok && owner != cand.index {
				return nil, services.Wrap(services.ErrValidation, "detect", "plan refinement",
					fmt.Sprintf("candidates %d and %d share frame cache key %s", owner, cand.index, key), nil)
			}
			owners[key] = cand.index
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}

func (d *Detector) around(t timecode.Timestamp) framecache.Window {
	return framecache.Between(t.AddSeconds(-d.opts.MarginSeconds), t.AddSeconds(d.opts.MarginSeconds))
}

// refine runs one task per candidate on the bounded pool. Failures are
// collected and returned, ordered by candidate, after every task finishes.
func (d *Detector) refine(ctx context.Context, video framecache.Video, candidates []candidate) ([]Range, error) {
	tasks, err := d.plan(video, candidates)
	if err != nil {
		return nil, err
	}

	var (
		mu     sync.Mutex
		ranges []Range
		failed []indexedError
	)
	var g errgroup.Group
	g.SetLimit(d.opts.Workers)
	for _, task := range tasks {
		g.Go(func() error {
			r, err := d.refineOne(ctx, video, task)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed = append(failed, indexedError{index: task.cand.index, err: err})
				return nil
			}
			ranges = append(ranges, r)
			return nil
		})
	}
	_ = g.Wait()
	if len(failed) > 0 {
		return nil, joinIndexed(failed)
	}

	sort.Slice(ranges, func(i, j int) bool { return ranges[i].Start.Before(ranges[j].Start) })
	return ranges, nil
}

func (d *Detector) refineOne(ctx context.Context, video framecache.Video, task refineTask) (Range, error) {
	start, err := d.findEdge(ctx, video, task, edgeStart)
	if err != nil {
		return Range{}, err
	}
	end, err := d.findEdge(ctx, video, task, edgeEnd)
	if err != nil {
		return Range{}, err
	}
	r := Range{Start: start, End: end}
	if !r.Valid() {
		return Range{}, services.Wrap(services.ErrBoundaryNotFound, PhaseRefine, task.describe(),
			fmt.Sprintf("refined start %s is not before end %s", start, end), nil)
	}
	logging.WithContext(ctx, d.logger).DebugContext(ctx, "candidate refined",
		logging.Int("candidate", task.cand.index),
		logging.String("range", r.String()))
	return r, nil
}

func (task refineTask) describe() string {
	return fmt.Sprintf("candidate %d (rough %s-%s)", task.cand.index, task.cand.first.Timestamp, task.cand.last.Timestamp)
}

// findEdge samples the window around one rough edge and locates the
// transition frame.
func (d *Detector) findEdge(ctx context.Context, video framecache.Video, task refineTask, which edge) (timecode.Timestamp, error) {
	window := task.startWindow
	if which == edgeEnd {
		window = task.endWindow
	}
	frames, err := d.frames.FramesFor(ctx, video, window, d.opts.FineRate)
	if err != nil {
		return timecode.Zero, err
	}

	matched := 0
	found := false
	var at timecode.Timestamp
	prev := false
	for i, frame := range frames {
		ok, err := d.classifier.Classify(ctx, frame.Path)
		if err != nil {
			return timecode.Zero, err
		}
		if ok {
			matched++
		}
		switch which {
		case edgeStart:
			if ok {
				d.recorder.FramesClassified(PhaseRefine, i+1, matched)
				return frame.Timestamp, nil
			}
		case edgeEnd:
			if i > 0 && prev && !ok {
				at, found = frames[i-1].Timestamp, true
			}
		}
		prev = ok
	}
	d.recorder.FramesClassified(PhaseRefine, len(frames), matched)
	if found {
		return at, nil
	}
	return timecode.Zero, services.Wrap(services.ErrBoundaryNotFound, PhaseRefine, task.describe(),
		fmt.Sprintf("no %s boundary in window %s (%d frames)", which, window, len(frames)), nil)
}
