// Package metrics exposes pipeline counters through a Prometheus registry and
// writes them in node-exporter textfile format after batch runs.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"markercut/internal/framecache"
	"markercut/internal/services"
)

const namespace = "markercut"

// Video outcomes.
const (
	OutcomeDetected = "detected"
	OutcomeFailed   = "failed"
	OutcomeSkipped  = "skipped"
	OutcomeCut      = "cut"
)

// Metrics owns a private registry so concurrent tests and commands do not
// share global state.
type Metrics struct {
	registry *prometheus.Registry

	framesClassified  *prometheus.CounterVec
	markerFrames      *prometheus.CounterVec
	candidates        *prometheus.CounterVec
	rangesRefined     prometheus.Counter
	extractionSeconds *prometheus.HistogramVec
	extractedFrames   *prometheus.CounterVec
	videos            *prometheus.CounterVec
	failures          *prometheus.CounterVec
	lastRun           *prometheus.GaugeVec
	runDuration       *prometheus.GaugeVec
}

// New registers every collector on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		framesClassified: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_classified_total",
			Help:      "Frames classified, by detection phase",
		}, []string{"phase"}),
		markerFrames: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "marker_frames_total",
			Help:      "Frames classified as showing the marker, by detection phase",
		}, []string{"phase"}),
		candidates: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "candidates_total",
			Help:      "Coarse candidates, by whether they passed the duration filter",
		}, []string{"outcome"}),
		rangesRefined: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ranges_refined_total",
			Help:      "Marker ranges refined to frame accuracy",
		}),
		extractionSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "frame_extraction_duration_seconds",
			Help:      "Wall time of ffmpeg frame extraction, by window kind",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600, 1800},
		}, []string{"window"}),
		extractedFrames: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_extracted_total",
			Help:      "Frames written to the frame cache, by window kind",
		}, []string{"window"}),
		videos: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "videos_processed_total",
			Help:      "Videos processed by batch commands, by outcome",
		}, []string{"outcome"}),
		failures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "video_failures_total",
			Help:      "Video failures, by failure kind",
		}, []string{"kind"}),
		lastRun: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last batch command finished",
		}, []string{"command"}),
		runDuration: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_duration_seconds",
			Help:      "Wall time of the last batch command",
		}, []string{"command"}),
	}
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// FramesClassified records one classification pass.
func (m *Metrics) FramesClassified(phase string, total, matched int) {
	m.framesClassified.WithLabelValues(phase).Add(float64(total))
	m.markerFrames.WithLabelValues(phase).Add(float64(matched))
}

// Candidates records the duration filter outcome.
func (m *Metrics) Candidates(kept, dropped int) {
	m.candidates.WithLabelValues("kept").Add(float64(kept))
	m.candidates.WithLabelValues("dropped").Add(float64(dropped))
}

// RangesRefined records refined ranges.
func (m *Metrics) RangesRefined(n int) {
	m.rangesRefined.Add(float64(n))
}

// ObserveExtraction matches framecache.ExtractObserver.
func (m *Metrics) ObserveExtraction(key framecache.Key, frames int, elapsed time.Duration) {
	kind := "window"
	if key.Window.IsFull() {
		kind = "full"
	}
	m.extractionSeconds.WithLabelValues(kind).Observe(elapsed.Seconds())
	m.extractedFrames.WithLabelValues(kind).Add(float64(frames))
}

// VideoFinished counts one video outcome.
func (m *Metrics) VideoFinished(outcome string) {
	m.videos.WithLabelValues(outcome).Inc()
}

// VideoFailed counts a failed video under its failure kind.
func (m *Metrics) VideoFailed(err error) {
	m.videos.WithLabelValues(OutcomeFailed).Inc()
	m.failures.WithLabelValues(services.Kind(err)).Inc()
}

// RunCompleted stamps the finish time and duration of command.
func (m *Metrics) RunCompleted(command string, finished time.Time, elapsed time.Duration) {
	m.lastRun.WithLabelValues(command).Set(float64(finished.Unix()))
	m.runDuration.WithLabelValues(command).Set(elapsed.Seconds())
}

// WriteTextfile atomically writes the registry to path. An empty path is a
// no-op.
func (m *Metrics) WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return services.Wrap(services.ErrIO, "metrics", "write textfile", path, err)
	}
	return nil
}
