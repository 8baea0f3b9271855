package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"markercut/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.CatalogDirs = []string{filepath.Join(base, "catalog")}
	cfgVal.Detection.Workers = 2
	cfgVal.Source.RetryDelaySeconds = 0
	cfgVal.Catalog.ExcludeIDs = nil
	cfgVal.Catalog.ExcludeTitlePatterns = nil

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	for _, dir := range builder.cfg.Paths.CatalogDirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("mkdir catalog dir: %v", err)
		}
	}
	return builder.cfg
}

// WithCatalogDirs replaces the catalog directories, resolved under the temp root.
func WithCatalogDirs(names ...string) ConfigOption {
	return func(b *configBuilder) {
		dirs := make([]string, 0, len(names))
		for _, name := range names {
			dirs = append(dirs, filepath.Join(b.baseDir, name))
		}
		b.cfg.Paths.CatalogDirs = dirs
	}
}

// WithExclusions sets the catalog exclusion lists.
func WithExclusions(ids []string, patterns []string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Catalog.ExcludeIDs = ids
		b.cfg.Catalog.ExcludeTitlePatterns = patterns
	}
}

// WithCompileMode selects the compilation strategy and caption toggle.
func WithCompileMode(mode string, captions bool) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Compile.Mode = mode
		b.cfg.Compile.Captions = captions
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. If names is empty, ffmpeg, ffprobe, and the
// downloader are stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"ffmpeg", "ffprobe", "yt-dlp"}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		script := []byte("#!/bin/sh\nexit 0\n")
		for _, name := range names {
			target := filepath.Join(binDir, name)
			if err := os.WriteFile(target, script, 0o755); err != nil {
				b.t.Fatalf("write stub %s: %v", name, err)
			}
		}

		oldPath := os.Getenv("PATH")
		if err := os.Setenv("PATH", binDir+string(os.PathListSeparator)+oldPath); err != nil {
			b.t.Fatalf("set PATH: %v", err)
		}
		b.t.Cleanup(func() {
			_ = os.Setenv("PATH", oldPath)
		})
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
