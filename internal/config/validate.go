package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateTimeouts(); err != nil {
		return err
	}
	if err := c.validateWorkers(); err != nil {
		return err
	}
	if err := c.validateEncoders(); err != nil {
		return err
	}
	if err := c.validateRaster(); err != nil {
		return err
	}
	if err := c.validateSegmentCache(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateTimeouts() error {
	return ensurePositiveMap(map[string]int{
		"timeouts.probe":             c.Timeouts.Probe,
		"timeouts.encoder_test":      c.Timeouts.EncoderTest,
		"timeouts.segment":           c.Timeouts.Segment,
		"timeouts.stage":             c.Timeouts.Stage,
		"timeouts.loudness_analysis": c.Timeouts.LoudnessAnalysis,
		"timeouts.raster":            c.Timeouts.Raster,
	})
}

func (c *Config) validateWorkers() error {
	if c.Workers.Render < 0 || c.Workers.Render > maxWorkers {
		return fmt.Errorf("workers.render must be between 0 and %d", maxWorkers)
	}
	if c.Workers.Probe < 0 || c.Workers.Probe > maxWorkers {
		return fmt.Errorf("workers.probe must be between 0 and %d", maxWorkers)
	}
	return nil
}

func (c *Config) validateEncoders() error {
	if c.Encoders.CacheTTLHours < 0 {
		return errors.New("encoders.cache_ttl_hours must be zero or positive")
	}
	if _, _, err := ParseResolution(c.Encoders.TestResolution); err != nil {
		return fmt.Errorf("encoders.test_resolution: %w", err)
	}
	return ensurePositiveMap(map[string]int{
		"encoders.test_fps":              c.Encoders.TestFPS,
		"encoders.test_duration_seconds": c.Encoders.TestDurationSeconds,
	})
}

func (c *Config) validateRaster() error {
	if c.Raster.DPI < 36 || c.Raster.DPI > 600 {
		return errors.New("raster.dpi must be between 36 and 600")
	}
	if c.Raster.ThumbnailWidth < 16 {
		return errors.New("raster.thumbnail_width must be at least 16")
	}
	return nil
}

func (c *Config) validateSegmentCache() error {
	if !c.SegmentCache.Enabled {
		return nil
	}
	if c.SegmentCache.MaxGiB <= 0 {
		return errors.New("segment_cache.max_gib must be positive when segment_cache.enabled is true")
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
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}

// ParseResolution splits a WIDTHxHEIGHT string into positive even dimensions.
func ParseResolution(value string) (int, int, error) {
	w, h, ok := strings.Cut(strings.ToLower(strings.TrimSpace(value)), "x")
	if !ok {
		return 0, 0, fmt.Errorf("resolution %q is not WIDTHxHEIGHT", value)
	}
	width, err := strconv.Atoi(w)
	if err != nil || width <= 0 {
		return 0, 0, fmt.Errorf("resolution %q has invalid width", value)
	}
	height, err := strconv.Atoi(h)
	if err != nil || height <= 0 {
		return 0, 0, fmt.Errorf("resolution %q has invalid height", value)
	}
	if width%2 != 0 || height%2 != 0 {
		return 0, 0, fmt.Errorf("resolution %q must use even dimensions", value)
	}
	return width, height, nil
}
