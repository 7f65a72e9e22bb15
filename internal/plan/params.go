package plan

import (
	"fmt"
	"slices"

	"slidecast/internal/encoders"
)

// Output parameter bounds and defaults.
const (
	MinSilentDuration     = 1.0
	MaxSilentDuration     = 100.0
	DefaultSilentDuration = 3.0

	MinQuality     = 0
	MaxQuality     = 51
	DefaultQuality = 23

	MinBitrate        = 500
	MaxBitrate        = 20000
	DefaultVBRBitrate = 6000
	DefaultCBRBitrate = 4000

	// durationTolerance absorbs container rounding when comparing an explicit
	// duration with a probed media length.
	durationTolerance = 0.05
)

// Resolution is an allowed output frame size.
type Resolution struct {
	Width  int
	Height int
}

func (r Resolution) String() string { return fmt.Sprintf("%dx%d", r.Width, r.Height) }

var (
	// Resolutions lists the supported output frame sizes.
	Resolutions = []Resolution{
		{3840, 2160}, {1920, 1080}, {1280, 720}, {960, 540}, {426, 240},
		{1280, 960}, {960, 720}, {640, 480},
	}
	// FrameRates lists the supported output frame rates.
	FrameRates = []int{60, 30, 24, 10, 5, 3}
	// AudioBitrates lists the supported AAC bitrates.
	AudioBitrates = []string{"256k", "192k", "160k", "128k", "96k"}
	// SampleRates lists the supported audio sample rates.
	SampleRates = []int{48000, 44100, 32000, 22050, 16000}
)

// DefaultParams returns 1080p30 h264 at the default quality with stereo
// 48 kHz audio and one-pass loudness normalization.
func DefaultParams() Params {
	return Params{
		Width:            1920,
		Height:           1080,
		FPS:              30,
		Codec:            encoders.FamilyH264,
		PreferHardware:   true,
		Encoding:         Encoding{Mode: ModeQuality, Value: DefaultQuality, Passes: 1},
		Audio:            AudioParams{Bitrate: "192k", SampleRate: 48000, Channels: 2},
		Loudness:         LoudnessOnePass,
		LoudnessFallback: true,
		Chapters:         true,
		DefaultDuration:  DefaultSilentDuration,
	}
}

// ValidateParams checks the global parameters against the supported sets.
func ValidateParams(p Params) Report {
	var r Report
	if !slices.Contains(Resolutions, Resolution{p.Width, p.Height}) {
		r.Errorf(GlobalPage, "resolution %dx%d is not supported", p.Width, p.Height)
	}
	if !slices.Contains(FrameRates, p.FPS) {
		r.Errorf(GlobalPage, "frame rate %d is not supported", p.FPS)
	}
	if _, ok := encoders.ParseFamily(string(p.Codec)); !ok {
		r.Errorf(GlobalPage, "codec %q is not one of h264, hevc, av1, mpeg4", p.Codec)
	}

	switch p.Encoding.Mode {
	case ModeQuality:
		if p.Encoding.Value < MinQuality || p.Encoding.Value > MaxQuality {
			r.Errorf(GlobalPage, "quality %d outside %d-%d", p.Encoding.Value, MinQuality, MaxQuality)
		}
		if p.Encoding.Passes == 2 {
			r.Noticef(GlobalPage, "two-pass encoding has no effect in quality mode; using one pass")
		}
	case ModeVBR, ModeCBR:
		if p.Encoding.Value < MinBitrate || p.Encoding.Value > MaxBitrate {
			r.Errorf(GlobalPage, "bitrate %d kbps outside %d-%d", p.Encoding.Value, MinBitrate, MaxBitrate)
		}
	default:
		r.Errorf(GlobalPage, "encoding mode %q is not one of quality, vbr, cbr", p.Encoding.Mode)
	}
	if p.Encoding.Passes != 1 && p.Encoding.Passes != 2 {
		r.Errorf(GlobalPage, "passes must be 1 or 2, got %d", p.Encoding.Passes)
	}

	if !slices.Contains(AudioBitrates, p.Audio.Bitrate) {
		r.Errorf(GlobalPage, "audio bitrate %q is not supported", p.Audio.Bitrate)
	}
	if !slices.Contains(SampleRates, p.Audio.SampleRate) {
		r.Errorf(GlobalPage, "sample rate %d is not supported", p.Audio.SampleRate)
	}
	if p.Audio.Channels != 1 && p.Audio.Channels != 2 {
		r.Errorf(GlobalPage, "audio channels must be 1 or 2, got %d", p.Audio.Channels)
	}

	switch p.Loudness {
	case LoudnessOff, LoudnessOnePass, LoudnessTwoPass:
	default:
		r.Errorf(GlobalPage, "loudness mode %q is not one of off, one-pass, two-pass", p.Loudness)
	}
	if p.DefaultDuration < MinSilentDuration || p.DefaultDuration > MaxSilentDuration {
		r.Errorf(GlobalPage, "default slide duration %.1fs outside %.0f-%.0fs", p.DefaultDuration, MinSilentDuration, MaxSilentDuration)
	}
	if err := p.Watermark.Validate(); err != nil {
		r.Errorf(GlobalPage, "%v", err)
	}
	return r
}

// ValidateEncoder checks combinations of the selected encoder and the rate
// control settings.
func ValidateEncoder(p Params, encoder encoders.Profile) Report {
	var r Report
	if !encoder.Usable {
		r.Errorf(GlobalPage, "encoder %s is not usable on this host", encoder.Name)
		return r
	}
	if encoder.Vendor == encoders.VendorVideoToolbox && p.Encoding.Mode == ModeQuality {
		r.Errorf(GlobalPage, "%s does not support quality mode; use vbr or cbr", encoder.Name)
	}
	if p.Encoding.Passes == 2 && p.Encoding.Mode != ModeQuality && !encoder.Settings().TwoPass {
		r.Noticef(GlobalPage, "%s does not support two-pass encoding; using one pass", encoder.Name)
	}
	return r
}

// EffectivePasses returns how many encode passes a segment needs.
func (p Params) EffectivePasses(encoder encoders.Profile) int {
	if p.Encoding.Passes == 2 && p.Encoding.Mode != ModeQuality && encoder.Settings().TwoPass {
		return 2
	}
	return 1
}
