package preflight

import (
	"context"

	"markercut/internal/config"
)

// minFreeBytes is the free space below which frame extraction is refused.
const minFreeBytes = 2 << 30

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// RunAll executes all applicable preflight checks for the given config.
func RunAll(_ context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}
	results := []Result{
		CheckDirectoryAccess("Videos directory", cfg.VideosDir()),
		CheckDirectoryAccess("Clips directory", cfg.ClipsDir()),
		CheckDirectoryAccess("Frame cache", cfg.FramesDir()),
		CheckFreeSpace("Frame cache space", cfg.FramesDir(), minFreeBytes),
	}
	for _, dir := range cfg.Paths.CatalogDirs {
		results = append(results, CheckReadableDirectory("Catalog "+dir, dir))
	}
	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}
