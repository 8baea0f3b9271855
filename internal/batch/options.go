package batch

import (
	"time"

	"markercut/internal/classifier"
	"markercut/internal/config"
	"markercut/internal/detect"
	"markercut/internal/framecache"
)

// DetectOptions maps the detection section of cfg onto detector options.
func DetectOptions(cfg *config.Config) detect.Options {
	d := cfg.Detection
	return detect.Options{
		CoarseRate:    framecache.Rate{Num: uint64(d.CoarseFPS), Den: 1},
		FineRate:      framecache.Rate{Num: uint64(d.FineFPS), Den: 1},
		MarginSeconds: int64(d.MarginSeconds),
		MinDuration:   time.Duration(d.MinDurationSeconds * float64(time.Second)),
		Workers:       d.Workers,
	}
}

// ClassifierOptions maps the pixel thresholds of cfg. Values were range
// checked by config validation.
func ClassifierOptions(cfg *config.Config) classifier.Options {
	d := cfg.Detection
	return classifier.Options{
		BlackBelow:   uint8(d.BlackBelow),
		WhiteAbove:   uint8(d.WhiteAbove),
		NoisyPercent: d.NoisyPercent,
	}
}
