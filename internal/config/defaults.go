package config

const (
	defaultConfigPath            = "~/.config/slidecast/config.toml"
	defaultScratchDir            = "~/.local/share/slidecast/scratch"
	defaultCacheDir              = "~/.cache/slidecast"
	defaultLogDir                = "~/.local/share/slidecast/logs"
	defaultSegmentCacheDir       = "~/.cache/slidecast/segments"
	defaultSegmentCacheMaxGiB    = 10
	defaultFFmpegBinary          = "ffmpeg"
	defaultFFprobeBinary         = "ffprobe"
	defaultPdftoppmBinary        = "pdftoppm"
	defaultProbeTimeout          = 15
	defaultEncoderTestTimeout    = 15
	defaultSegmentTimeout        = 1800
	defaultStageTimeout          = 3600
	defaultLoudnessTimeout       = 600
	defaultRasterTimeout         = 60
	defaultEncoderCacheTTLHours  = 168
	defaultEncoderTestResolution = "320x240"
	defaultEncoderTestFPS        = 30
	defaultEncoderTestDuration   = 1
	defaultRasterDPI             = 150
	defaultThumbnailWidth        = 240
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
	maxWorkers                   = 64
	envFFmpegOverride            = "SLIDECAST_FFMPEG"
	envFFprobeOverride           = "SLIDECAST_FFPROBE"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			ScratchDir: defaultScratchDir,
			CacheDir:   defaultCacheDir,
			LogDir:     defaultLogDir,
		},
		Tools: Tools{
			FFmpeg:   defaultFFmpegBinary,
			FFprobe:  defaultFFprobeBinary,
			Pdftoppm: defaultPdftoppmBinary,
		},
		Timeouts: Timeouts{
			Probe:            defaultProbeTimeout,
			EncoderTest:      defaultEncoderTestTimeout,
			Segment:          defaultSegmentTimeout,
			Stage:            defaultStageTimeout,
			LoudnessAnalysis: defaultLoudnessTimeout,
			Raster:           defaultRasterTimeout,
		},
		Encoders: Encoders{
			CacheTTLHours:       defaultEncoderCacheTTLHours,
			TestResolution:      defaultEncoderTestResolution,
			TestFPS:             defaultEncoderTestFPS,
			TestDurationSeconds: defaultEncoderTestDuration,
		},
		Raster: Raster{
			DPI:            defaultRasterDPI,
			ThumbnailWidth: defaultThumbnailWidth,
		},
		SegmentCache: SegmentCache{
			Enabled: false,
			Dir:     defaultSegmentCacheDir,
			MaxGiB:  defaultSegmentCacheMaxGiB,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
