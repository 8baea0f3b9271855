package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// EnvPrefix prefixes every environment override.
const EnvPrefix = "MARKERCUT_"

// Paths contains the data and catalog directories.
type Paths struct {
	DataDir     string   `toml:"data_dir" env:"DATA_DIR"`
	LogDir      string   `toml:"log_dir" env:"LOG_DIR"`
	CatalogDirs []string `toml:"catalog_dirs" env:"CATALOG_DIRS"`
}

// Tools names the external binaries markercut shells out to.
type Tools struct {
	FFmpeg     string `toml:"ffmpeg" env:"FFMPEG"`
	FFprobe    string `toml:"ffprobe" env:"FFPROBE"`
	Downloader string `toml:"downloader" env:"DOWNLOADER"`
	// HWAccel enables "cuda" decode plus h264_nvenc encode when set.
	HWAccel  string `toml:"hwaccel" env:"HWACCEL"`
	FrameExt string `toml:"frame_ext" env:"FRAME_EXT"`
}

// Detection tunes the marker search.
type Detection struct {
	CoarseFPS          int     `toml:"coarse_fps" env:"COARSE_FPS"`
	FineFPS            int     `toml:"fine_fps" env:"FINE_FPS"`
	MarginSeconds      int     `toml:"margin_seconds" env:"MARGIN_SECONDS"`
	MinDurationSeconds float64 `toml:"min_duration_seconds" env:"MIN_DURATION_SECONDS"`
	// Workers bounds concurrent classification and refinement; 0 means one per CPU.
	Workers      int `toml:"workers" env:"WORKERS"`
	BlackBelow   int `toml:"black_below" env:"BLACK_BELOW"`
	WhiteAbove   int `toml:"white_above" env:"WHITE_ABOVE"`
	NoisyPercent int `toml:"noisy_percent" env:"NOISY_PERCENT"`
}

// Source configures how missing videos are downloaded.
type Source struct {
	URLTemplate       string `toml:"url_template" env:"SOURCE_URL_TEMPLATE"`
	Format            string `toml:"format" env:"SOURCE_FORMAT"`
	Retries           int    `toml:"retries" env:"SOURCE_RETRIES"`
	RetryDelaySeconds int    `toml:"retry_delay_seconds" env:"SOURCE_RETRY_DELAY_SECONDS"`
}

// Catalog filters the playlist items considered by batch commands.
type Catalog struct {
	ExcludeIDs           []string `toml:"exclude_ids" env:"EXCLUDE_IDS"`
	ExcludeTitlePatterns []string `toml:"exclude_title_patterns" env:"EXCLUDE_TITLE_PATTERNS" envSeparator:";"`
}

// Compile configures the final compilation.
type Compile struct {
	Output   string `toml:"output" env:"COMPILE_OUTPUT"`
	Mode     string `toml:"mode" env:"COMPILE_MODE"`
	Captions bool   `toml:"captions" env:"COMPILE_CAPTIONS"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format" env:"LOG_FORMAT"`
	Level  string `toml:"level" env:"LOG_LEVEL"`
}

// Metrics configures the Prometheus textfile written after batch runs.
type Metrics struct {
	TextfilePath string `toml:"textfile_path" env:"METRICS_TEXTFILE"`
}

// Config encapsulates all configuration values for markercut.
type Config struct {
	Paths     Paths     `toml:"paths"`
	Tools     Tools     `toml:"tools"`
	Detection Detection `toml:"detection"`
	Source    Source    `toml:"source"`
	Catalog   Catalog   `toml:"catalog"`
	Compile   Compile   `toml:"compile"`
	Logging   Logging   `toml:"logging"`
	Metrics   Metrics   `toml:"metrics"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/markercut/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has environment overrides applied and all paths expanded.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config %s: %w", resolvedPath, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func (c *Config) applyEnv() error {
	if err := env.ParseWithOptions(c, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("environment overrides: %w", err)
	}
	return nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("markercut.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the data layout used by the batch commands.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.VideosDir(), c.ClipsDir(), c.FramesDir(), c.LocksDir(), c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// VideosDir holds downloaded source videos.
func (c *Config) VideosDir() string { return filepath.Join(c.Paths.DataDir, "videos") }

// ClipsDir holds per-video range files and cut clips.
func (c *Config) ClipsDir() string { return filepath.Join(c.Paths.DataDir, "clips") }

// FramesDir is the root of the frame cache.
func (c *Config) FramesDir() string { return filepath.Join(c.Paths.DataDir, "thumbnails") }

// LocksDir holds per-video advisory lock files.
func (c *Config) LocksDir() string { return filepath.Join(c.Paths.DataDir, "locks") }

// LedgerPath is the SQLite run ledger.
func (c *Config) LedgerPath() string { return filepath.Join(c.Paths.DataDir, "ledger.db") }

// CompilationPath is the final concatenated video.
func (c *Config) CompilationPath() string {
	if filepath.IsAbs(c.Compile.Output) {
		return c.Compile.Output
	}
	return filepath.Join(c.Paths.DataDir, c.Compile.Output)
}

// CaptionsPath is the SRT track that accompanies the compilation.
func (c *Config) CaptionsPath() string {
	out := c.CompilationPath()
	return strings.TrimSuffix(out, filepath.Ext(out)) + ".srt"
}

// UseCUDA reports whether hardware decode and encode are enabled.
func (c *Config) UseCUDA() bool {
	return c.Tools.HWAccel == "cuda"
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// Encode renders the effective configuration as TOML.
func (c *Config) Encode() ([]byte, error) {
	data, err := toml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return data, nil
}
