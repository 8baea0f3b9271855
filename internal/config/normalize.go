package config

import (
	"fmt"
	"runtime"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeTools()
	c.normalizeDetection()
	c.normalizeCatalog()
	c.Compile.Mode = strings.ToLower(strings.TrimSpace(c.Compile.Mode))
	c.Compile.Output = strings.TrimSpace(c.Compile.Output)
	c.normalizeLogging()
	if c.Metrics.TextfilePath != "" {
		var err error
		if c.Metrics.TextfilePath, err = expandPath(strings.TrimSpace(c.Metrics.TextfilePath)); err != nil {
			return fmt.Errorf("metrics.textfile_path: %w", err)
		}
	}
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.DataDir, err = expandPath(strings.TrimSpace(c.Paths.DataDir)); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(strings.TrimSpace(c.Paths.LogDir)); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	dirs := make([]string, 0, len(c.Paths.CatalogDirs))
	for _, dir := range c.Paths.CatalogDirs {
		dir = strings.TrimSpace(dir)
		if dir == "" {
			continue
		}
		expanded, err := expandPath(dir)
		if err != nil {
			return fmt.Errorf("paths.catalog_dirs: %w", err)
		}
		dirs = append(dirs, expanded)
	}
	c.Paths.CatalogDirs = dirs
	return nil
}

func (c *Config) normalizeTools() {
	c.Tools.FFmpeg = strings.TrimSpace(c.Tools.FFmpeg)
	if c.Tools.FFmpeg == "" {
		c.Tools.FFmpeg = defaultFFmpegBinary
	}
	c.Tools.FFprobe = strings.TrimSpace(c.Tools.FFprobe)
	if c.Tools.FFprobe == "" {
		c.Tools.FFprobe = defaultFFprobeBinary
	}
	c.Tools.Downloader = strings.TrimSpace(c.Tools.Downloader)
	if c.Tools.Downloader == "" {
		c.Tools.Downloader = defaultDownloaderBinary
	}
	c.Tools.HWAccel = strings.ToLower(strings.TrimSpace(c.Tools.HWAccel))
	if c.Tools.HWAccel == "none" {
		c.Tools.HWAccel = ""
	}
	c.Tools.FrameExt = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(c.Tools.FrameExt), "."))
	switch c.Tools.FrameExt {
	case "":
		c.Tools.FrameExt = defaultFrameExt
	case "jpeg":
		c.Tools.FrameExt = "jpg"
	}
}

func (c *Config) normalizeDetection() {
	if c.Detection.Workers <= 0 {
		c.Detection.Workers = runtime.NumCPU()
	}
}

func (c *Config) normalizeCatalog() {
	ids := c.Catalog.ExcludeIDs[:0]
	for _, id := range c.Catalog.ExcludeIDs {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	c.Catalog.ExcludeIDs = ids
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
