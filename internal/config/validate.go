package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateTools(); err != nil {
		return err
	}
	if err := c.validateDetection(); err != nil {
		return err
	}
	if err := c.validateSource(); err != nil {
		return err
	}
	if err := c.validateCatalog(); err != nil {
		return err
	}
	if err := c.validateCompile(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		return errors.New("paths.data_dir must be set")
	}
	return nil
}

func (c *Config) validateTools() error {
	switch c.Tools.HWAccel {
	case "", "cuda":
	default:
		return fmt.Errorf("tools.hwaccel: unsupported value %q (want \"cuda\" or empty)", c.Tools.HWAccel)
	}
	switch c.Tools.FrameExt {
	case "jpg", "png":
	default:
		return fmt.Errorf("tools.frame_ext: unsupported value %q (want jpg or png)", c.Tools.FrameExt)
	}
	return nil
}

func (c *Config) validateDetection() error {
	d := c.Detection
	if d.CoarseFPS <= 0 {
		return errors.New("detection.coarse_fps must be positive")
	}
	if d.FineFPS < d.CoarseFPS {
		return errors.New("detection.fine_fps must be at least detection.coarse_fps")
	}
	if d.MarginSeconds <= 0 {
		return errors.New("detection.margin_seconds must be positive")
	}
	if d.MinDurationSeconds < 0 {
		return errors.New("detection.min_duration_seconds must be non-negative")
	}
	if d.Workers < 1 {
		return errors.New("detection.workers must be positive")
	}
	if d.BlackBelow < 0 || d.BlackBelow > 255 || d.WhiteAbove < 0 || d.WhiteAbove > 255 {
		return errors.New("detection.black_below and detection.white_above must be within 0-255")
	}
	if d.BlackBelow > d.WhiteAbove {
		return errors.New("detection.black_below must not exceed detection.white_above")
	}
	if d.NoisyPercent < 0 || d.NoisyPercent > 100 {
		return errors.New("detection.noisy_percent must be between 0 and 100")
	}
	return nil
}

func (c *Config) validateSource() error {
	if strings.Count(c.Source.URLTemplate, "%s") != 1 {
		return errors.New("source.url_template must contain exactly one %s placeholder")
	}
	if c.Source.Retries < 1 {
		return errors.New("source.retries must be at least 1")
	}
	if c.Source.RetryDelaySeconds < 0 {
		return errors.New("source.retry_delay_seconds must be non-negative")
	}
	return nil
}

func (c *Config) validateCatalog() error {
	for _, pattern := range c.Catalog.ExcludeTitlePatterns {
		if _, err := regexp.Compile(pattern); err != nil {
			return fmt.Errorf("catalog.exclude_title_patterns: %q: %w", pattern, err)
		}
	}
	return nil
}

func (c *Config) validateCompile() error {
	switch c.Compile.Mode {
	case CompileModeFilter, CompileModeDemuxer:
	default:
		return fmt.Errorf("compile.mode: unsupported value %q (want %s or %s)", c.Compile.Mode, CompileModeFilter, CompileModeDemuxer)
	}
	if c.Compile.Output == "" {
		return errors.New("compile.output must be set")
	}
	if c.Compile.Captions && c.Compile.Mode == CompileModeDemuxer {
		return errors.New("compile.captions requires compile.mode = \"filter\"")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
