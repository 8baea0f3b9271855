package batch

import (
	"errors"
	"fmt"
	"time"

	"markercut/internal/metrics"
)

// Video outcomes reported by the batch commands.
const (
	OutcomeDetected = metrics.OutcomeDetected
	OutcomeFailed   = metrics.OutcomeFailed
	OutcomeSkipped  = metrics.OutcomeSkipped
	OutcomeCut      = metrics.OutcomeCut
	// OutcomeIncluded marks a clip that went into the compilation.
	OutcomeIncluded = "included"
)

// VideoReport is the outcome for one video.
type VideoReport struct {
	VideoID string
	Outcome string
	Ranges  int
	Reason  string
	Err     error
}

// Report summarises one command invocation.
type Report struct {
	RunID   string
	Command string
	Videos  []VideoReport
	Elapsed time.Duration
	// Output is the compilation written by Concat.
	Output string
	// Captions is the SRT track written by Concat, if any.
	Captions string
}

// Count returns how many videos ended with outcome.
func (r Report) Count(outcome string) int {
	n := 0
	for _, v := range r.Videos {
		if v.Outcome == outcome {
			n++
		}
	}
	return n
}

// Failed returns the failed videos in processing order.
func (r Report) Failed() []VideoReport {
	var out []VideoReport
	for _, v := range r.Videos {
		if v.Outcome == OutcomeFailed {
			out = append(out, v)
		}
	}
	return out
}

// Err joins every per-video failure, or returns nil.
func (r Report) Err() error {
	var errs []error
	for _, v := range r.Failed() {
		errs = append(errs, fmt.Errorf("%s: %w", v.VideoID, v.Err))
	}
	return errors.Join(errs...)
}
