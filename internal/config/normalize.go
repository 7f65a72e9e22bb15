package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeTools()
	if err := c.normalizeSegmentCache(); err != nil {
		return err
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.ScratchDir) == "" {
		c.Paths.ScratchDir = defaultScratchDir
	}
	if c.Paths.ScratchDir, err = expandPath(c.Paths.ScratchDir); err != nil {
		return fmt.Errorf("paths.scratch_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.CacheDir) == "" {
		c.Paths.CacheDir = defaultCacheDir
	}
	if c.Paths.CacheDir, err = expandPath(c.Paths.CacheDir); err != nil {
		return fmt.Errorf("paths.cache_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(strings.TrimSpace(c.Paths.LogDir)); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeTools() {
	c.Tools.FFmpeg = strings.TrimSpace(c.Tools.FFmpeg)
	c.Tools.FFprobe = strings.TrimSpace(c.Tools.FFprobe)
	c.Tools.Pdftoppm = strings.TrimSpace(c.Tools.Pdftoppm)
	if value, ok := os.LookupEnv(envFFmpegOverride); ok && strings.TrimSpace(value) != "" {
		c.Tools.FFmpeg = strings.TrimSpace(value)
	}
	if value, ok := os.LookupEnv(envFFprobeOverride); ok && strings.TrimSpace(value) != "" {
		c.Tools.FFprobe = strings.TrimSpace(value)
	}
	if c.Tools.FFmpeg == "" {
		c.Tools.FFmpeg = defaultFFmpegBinary
	}
	if c.Tools.FFprobe == "" {
		c.Tools.FFprobe = defaultFFprobeBinary
	}
	if c.Tools.Pdftoppm == "" {
		c.Tools.Pdftoppm = defaultPdftoppmBinary
	}
}

func (c *Config) normalizeSegmentCache() error {
	if strings.TrimSpace(c.SegmentCache.Dir) == "" {
		c.SegmentCache.Dir = defaultSegmentCacheDir
	}
	var err error
	if c.SegmentCache.Dir, err = expandPath(c.SegmentCache.Dir); err != nil {
		return fmt.Errorf("segment_cache.dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeLogging() {
	format := strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if format == "" {
		format = defaultLogFormat
	}
	c.Logging.Format = format
	level := strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if level == "" {
		level = defaultLogLevel
	}
	c.Logging.Level = level
}
