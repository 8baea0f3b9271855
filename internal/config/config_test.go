package config_test

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"markercut/internal/config"
)

func TestLoadDefaultsExpandPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantData := filepath.Join(tempHome, ".local", "share", "markercut")
	if cfg.Paths.DataDir != wantData {
		t.Fatalf("unexpected data dir: got %q want %q", cfg.Paths.DataDir, wantData)
	}
	if cfg.VideosDir() != filepath.Join(wantData, "videos") {
		t.Fatalf("unexpected videos dir: %q", cfg.VideosDir())
	}
	if cfg.CompilationPath() != filepath.Join(wantData, "combined.mkv") {
		t.Fatalf("unexpected compilation path: %q", cfg.CompilationPath())
	}
	if cfg.CaptionsPath() != filepath.Join(wantData, "combined.srt") {
		t.Fatalf("unexpected captions path: %q", cfg.CaptionsPath())
	}
	if cfg.Detection.Workers != runtime.NumCPU() {
		t.Fatalf("expected workers to default to NumCPU, got %d", cfg.Detection.Workers)
	}
	if cfg.Detection.CoarseFPS != 1 || cfg.Detection.FineFPS != 30 || cfg.Detection.MarginSeconds != 2 {
		t.Fatalf("unexpected detection defaults: %+v", cfg.Detection)
	}
	if cfg.UseCUDA() {
		t.Fatal("expected CUDA disabled by default")
	}
}

func TestLoadCustomFile(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	configPath := filepath.Join(tempHome, "config.toml")
	content := `
[paths]
data_dir = "~/work"
catalog_dirs = ["~/lists", ""]

[tools]
frame_ext = ".PNG"
hwaccel = "CUDA"

[detection]
workers = 3
fine_fps = 24

[logging]
format = "JSON"
`
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("expected existing config at %q, got %q (exists=%v)", configPath, resolved, exists)
	}
	if cfg.Paths.DataDir != filepath.Join(tempHome, "work") {
		t.Fatalf("unexpected data dir %q", cfg.Paths.DataDir)
	}
	if len(cfg.Paths.CatalogDirs) != 1 || cfg.Paths.CatalogDirs[0] != filepath.Join(tempHome, "lists") {
		t.Fatalf("unexpected catalog dirs %v", cfg.Paths.CatalogDirs)
	}
	if cfg.Tools.FrameExt != "png" || !cfg.UseCUDA() {
		t.Fatalf("unexpected tools %+v", cfg.Tools)
	}
	if cfg.Detection.Workers != 3 || cfg.Detection.FineFPS != 24 {
		t.Fatalf("unexpected detection %+v", cfg.Detection)
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("expected normalized json format, got %q", cfg.Logging.Format)
	}
}

func TestEnvironmentOverridesFile(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	configPath := filepath.Join(tempHome, "config.toml")
	if err := os.WriteFile(configPath, []byte("[detection]\nworkers = 2\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("MARKERCUT_WORKERS", "7")
	t.Setenv("MARKERCUT_DATA_DIR", filepath.Join(tempHome, "env-data"))
	t.Setenv("MARKERCUT_EXCLUDE_IDS", "a,b")

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Detection.Workers != 7 {
		t.Fatalf("expected env workers override, got %d", cfg.Detection.Workers)
	}
	if cfg.Paths.DataDir != filepath.Join(tempHome, "env-data") {
		t.Fatalf("expected env data dir, got %q", cfg.Paths.DataDir)
	}
	if strings.Join(cfg.Catalog.ExcludeIDs, ",") != "a,b" {
		t.Fatalf("expected env exclusions, got %v", cfg.Catalog.ExcludeIDs)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := map[string]func(*config.Config){
		"coarse fps":        func(c *config.Config) { c.Detection.CoarseFPS = 0 },
		"fine below coarse": func(c *config.Config) { c.Detection.CoarseFPS = 10; c.Detection.FineFPS = 5 },
		"margin":            func(c *config.Config) { c.Detection.MarginSeconds = 0 },
		"thresholds":        func(c *config.Config) { c.Detection.BlackBelow = 230 },
		"noisy":             func(c *config.Config) { c.Detection.NoisyPercent = 101 },
		"frame ext":         func(c *config.Config) { c.Tools.FrameExt = "bmp" },
		"hwaccel":           func(c *config.Config) { c.Tools.HWAccel = "vaapi" },
		"url template":      func(c *config.Config) { c.Source.URLTemplate = "https://example.com" },
		"retries":           func(c *config.Config) { c.Source.Retries = 0 },
		"title pattern":     func(c *config.Config) { c.Catalog.ExcludeTitlePatterns = []string{"("} },
		"compile mode":      func(c *config.Config) { c.Compile.Mode = "split" },
		"demuxer captions":  func(c *config.Config) { c.Compile.Mode = config.CompileModeDemuxer },
		"log format":        func(c *config.Config) { c.Logging.Format = "xml" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Detection.Workers = 1
			mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestDefaultValidates(t *testing.T) {
	cfg := config.Default()
	cfg.Detection.Workers = 1
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestCreateSampleParsesAndLoads(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	path := filepath.Join(tempHome, "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample returned error: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	var parsed config.Config
	if err := toml.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("sample is not valid TOML: %v", err)
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("sample config should load: %v", err)
	}
	if !exists {
		t.Fatal("expected sample to be found")
	}
	if len(cfg.Catalog.ExcludeIDs) != 1 || cfg.Catalog.ExcludeIDs[0] != "lED1vIbaivA" {
		t.Fatalf("unexpected sample exclusions %v", cfg.Catalog.ExcludeIDs)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	path := filepath.Join(tempHome, "config.toml")
	if err := os.WriteFile(path, []byte("[detection]\nworkerz = 2\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, _, err := config.Load(path); err == nil {
		t.Fatal("expected unknown key to be rejected")
	}
}

func TestEncodeRoundTrips(t *testing.T) {
	cfg := config.Default()
	data, err := cfg.Encode()
	if err != nil {
		t.Fatalf("Encode returned error: %v", err)
	}
	var decoded config.Config
	if err := toml.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("decode encoded config: %v", err)
	}
	if decoded.Source.URLTemplate != cfg.Source.URLTemplate || decoded.Detection.FineFPS != cfg.Detection.FineFPS {
		t.Fatalf("unexpected round trip %+v", decoded)
	}
}
