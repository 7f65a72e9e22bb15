package plan

import (
	"slidecast/internal/encoders"
	"slidecast/internal/media"
	"slidecast/internal/watermark"
)

// Material is the kind of content assigned to a page.
type Material string

const (
	MaterialSilent Material = "silent"
	MaterialAudio  Material = "audio"
	MaterialVideo  Material = "video"
)

// Trim controls how an explicit duration interacts with a media length.
type Trim string

const (
	// TrimNone uses the media's full length; overrides must match it.
	TrimNone Trim = "none"
	// TrimCut truncates the media to the override.
	TrimCut Trim = "cut"
	// TrimPad holds the last frame and silence until the override.
	TrimPad Trim = "pad"
)

// EncodingMode selects constant quality or a bitrate target.
type EncodingMode string

const (
	ModeQuality EncodingMode = "quality"
	ModeVBR     EncodingMode = "vbr"
	ModeCBR     EncodingMode = "cbr"
)

// LoudnessMode selects the loudness normalization strategy.
type LoudnessMode string

const (
	LoudnessOff     LoudnessMode = "off"
	LoudnessOnePass LoudnessMode = "one-pass"
	LoudnessTwoPass LoudnessMode = "two-pass"
)

// Encoding holds the video rate-control parameters.
type Encoding struct {
	Mode   EncodingMode
	Value  int
	Passes int
}

// AudioParams are the uniform audio parameters every segment is encoded to.
type AudioParams struct {
	Bitrate    string
	SampleRate int
	Channels   int
}

// ChannelLayout returns the ffmpeg channel layout name.
func (a AudioParams) ChannelLayout() string {
	if a.Channels == 1 {
		return "mono"
	}
	return "stereo"
}

// Params are the global output parameters of a render.
type Params struct {
	Width            int
	Height           int
	FPS              int
	Codec            encoders.Family
	Encoder          string
	PreferHardware   bool
	Encoding         Encoding
	Audio            AudioParams
	Loudness         LoudnessMode
	LoudnessFallback bool
	Watermark        watermark.Config
	Chapters         bool
	YouTubeChapters  bool
	DefaultDuration  float64
}

// EncoderRequest converts the codec parameters into a selection request.
func (p Params) EncoderRequest() encoders.Request {
	return encoders.Request{Family: p.Codec, Encoder: p.Encoder, PreferHardware: p.PreferHardware}
}

// Assignment is the user's material choice for one page.
type Assignment struct {
	Page      int
	Material  Material
	MediaPath string
	// AudioStream is the ordinal among the media's audio streams.
	AudioStream  int
	Duration     float64
	Trim         Trim
	ChapterTitle string
	Position     Position
	Scale        int
	Effects      []Effect
	// PageHash is the page's perceptual hash when the assignment was made.
	PageHash string
}

// SlideSpec is the fully resolved render description of one page.
type SlideSpec struct {
	Page         int
	ImagePath    string
	PageHash     string
	// ImageDigest is the SHA-256 of the page raster.
	ImageDigest  string
	Duration     float64
	ChapterTitle string
	Body         Body
}

// Kind returns the material kind of the slide.
func (s SlideSpec) Kind() Material {
	if s.Body == nil {
		return MaterialSilent
	}
	return s.Body.Kind()
}

// Body is the closed set of slide variants: Silent, Audio, and Video.
type Body interface {
	Kind() Material
	sealed()
}

// Silent holds the page image over generated silence.
type Silent struct{}

// Audio holds the page image over one audio stream.
type Audio struct {
	Asset  media.Asset
	Stream media.AudioStream
	Trim   Trim
}

// Video overlays a picture-in-picture video on the page image. Stream is nil
// when the video has no audio, in which case silence is generated.
type Video struct {
	Asset    media.Asset
	Stream   *media.AudioStream
	Geometry Geometry
	Effects  Effects
	Trim     Trim
}

func (Silent) Kind() Material { return MaterialSilent }
func (Audio) Kind() Material  { return MaterialAudio }
func (Video) Kind() Material  { return MaterialVideo }

func (Silent) sealed() {}
func (Audio) sealed()  {}
func (Video) sealed()  {}

// RenderPlan is the immutable description of a whole export.
type RenderPlan struct {
	DocumentPath string
	Slides       []SlideSpec
	Encoder      encoders.Profile
	Substitution *encoders.Substitution
	Params       Params
}

// TotalDuration sums the slide durations.
func (p RenderPlan) TotalDuration() float64 {
	var total float64
	for _, s := range p.Slides {
		total += s.Duration
	}
	return total
}
