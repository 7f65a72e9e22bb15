package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	ScratchDir string `toml:"scratch_dir"`
	CacheDir   string `toml:"cache_dir"`
	LogDir     string `toml:"log_dir"`
}

// Tools names the external binaries. Bare names are resolved through PATH.
type Tools struct {
	FFmpeg   string `toml:"ffmpeg"`
	FFprobe  string `toml:"ffprobe"`
	Pdftoppm string `toml:"pdftoppm"`
}

// Timeouts bounds every external process invocation, in seconds.
type Timeouts struct {
	Probe            int `toml:"probe"`
	EncoderTest      int `toml:"encoder_test"`
	Segment          int `toml:"segment"`
	Stage            int `toml:"stage"`
	LoudnessAnalysis int `toml:"loudness_analysis"`
	Raster           int `toml:"raster"`
}

// Workers sizes the bounded worker pools. Zero derives a value from the host.
type Workers struct {
	Render int `toml:"render"`
	Probe  int `toml:"probe"`
}

// Encoders contains encoder discovery settings.
type Encoders struct {
	CacheTTLHours       int    `toml:"cache_ttl_hours"`
	TestResolution      string `toml:"test_resolution"`
	TestFPS             int    `toml:"test_fps"`
	TestDurationSeconds int    `toml:"test_duration_seconds"`
}

// Raster contains page rasterisation settings.
type Raster struct {
	DPI            int `toml:"dpi"`
	ThumbnailWidth int `toml:"thumbnail_width"`
}

// SegmentCache contains configuration for reusing rendered segments across runs.
type SegmentCache struct {
	Enabled bool   `toml:"enabled"`
	Dir     string `toml:"dir"`
	MaxGiB  int    `toml:"max_gib"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Metrics contains configuration for run metrics export.
type Metrics struct {
	Textfile string `toml:"textfile"`
}

// Config encapsulates all configuration values for slidecast.
//
// Configuration sections by subsystem:
//   - Paths: scratch workspace, persistent cache, and log directories
//   - Tools: ffmpeg, ffprobe, and pdftoppm binaries
//   - Timeouts: per-invocation limits for external processes
//   - Workers: probe and render pool sizes
//   - Encoders: discovery cache lifetime and test encode shape
//   - Raster: page rasterisation resolution and thumbnail size
//   - SegmentCache: cross-run segment reuse
//   - Logging: log format and level
//   - Metrics: Prometheus textfile export
type Config struct {
	Paths        Paths        `toml:"paths"`
	Tools        Tools        `toml:"tools"`
	Timeouts     Timeouts     `toml:"timeouts"`
	Workers      Workers      `toml:"workers"`
	Encoders     Encoders     `toml:"encoders"`
	Raster       Raster       `toml:"raster"`
	SegmentCache SegmentCache `toml:"segment_cache"`
	Logging      Logging      `toml:"logging"`
	Metrics      Metrics      `toml:"metrics"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
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
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
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

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("slidecast.toml")
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

// EnsureDirectories creates the scratch, cache, and log directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.ScratchDir, c.Paths.CacheDir, c.Paths.LogDir}
	if c.SegmentCache.Enabled {
		dirs = append(dirs, c.SegmentCache.Dir)
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// StorePath returns the location of the sqlite cache database.
func (c *Config) StorePath() string {
	return filepath.Join(c.Paths.CacheDir, "slidecast.db")
}

// ProbeTimeout bounds a single ffprobe invocation.
func (c *Config) ProbeTimeout() time.Duration { return seconds(c.Timeouts.Probe) }

// EncoderTestTimeout bounds a single encoder validation encode.
func (c *Config) EncoderTestTimeout() time.Duration { return seconds(c.Timeouts.EncoderTest) }

// SegmentTimeout bounds a single segment render invocation.
func (c *Config) SegmentTimeout() time.Duration { return seconds(c.Timeouts.Segment) }

// StageTimeout bounds each sequential post-render invocation.
func (c *Config) StageTimeout() time.Duration { return seconds(c.Timeouts.Stage) }

// LoudnessAnalysisTimeout bounds the loudnorm measurement pass.
func (c *Config) LoudnessAnalysisTimeout() time.Duration {
	return seconds(c.Timeouts.LoudnessAnalysis)
}

// RasterTimeout bounds a single page rasterisation.
func (c *Config) RasterTimeout() time.Duration { return seconds(c.Timeouts.Raster) }

// EncoderCacheTTL returns how long discovery results stay valid.
func (c *Config) EncoderCacheTTL() time.Duration {
	return time.Duration(c.Encoders.CacheTTLHours) * time.Hour
}

// RenderWorkers returns the segment render concurrency. Each worker runs its
// own ffmpeg process, so the derived value stays well below the CPU count.
func (c *Config) RenderWorkers() int {
	if c.Workers.Render > 0 {
		return c.Workers.Render
	}
	return clamp(runtime.NumCPU()/2, 1, 4)
}

// ProbeWorkers returns the probe concurrency.
func (c *Config) ProbeWorkers() int {
	if c.Workers.Probe > 0 {
		return c.Workers.Probe
	}
	return clamp(runtime.NumCPU(), 1, 8)
}

// SegmentCacheMaxBytes converts the configured limit to bytes.
func (c *Config) SegmentCacheMaxBytes() int64 {
	return int64(c.SegmentCache.MaxGiB) << 30
}

func seconds(v int) time.Duration {
	return time.Duration(v) * time.Second
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
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

// SampleConfig returns the embedded sample configuration.
func SampleConfig() string {
	return sampleConfig
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
