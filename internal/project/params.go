package project

import (
	"fmt"
	"strconv"
	"strings"

	"slidecast/internal/encoders"
	"slidecast/internal/plan"
	"slidecast/internal/watermark"
)

// Parameters are the global render parameters as stored on disk.
type Parameters struct {
	Resolution      string    `toml:"resolution" validate:"required,resolution"`
	FPS             int       `toml:"fps" validate:"gt=0"`
	Codec           string    `toml:"codec" validate:"required,codec"`
	Encoder         string    `toml:"encoder,omitempty"`
	PreferHardware  bool      `toml:"prefer_hardware"`
	Encoding        Encoding  `toml:"encoding"`
	Audio           Audio     `toml:"audio"`
	Loudness        Loudness  `toml:"loudness"`
	Watermark       Watermark `toml:"watermark"`
	Chapters        bool      `toml:"chapters"`
	YouTubeChapters bool      `toml:"youtube_chapters"`
	DefaultDuration float64   `toml:"default_duration" validate:"gte=1,lte=100"`
}

// Encoding is the rate-control block.
type Encoding struct {
	Mode   string `toml:"mode" validate:"oneof=quality vbr cbr"`
	Value  int    `toml:"value" validate:"gte=0"`
	Passes int    `toml:"passes" validate:"oneof=1 2"`
}

// Audio is the uniform audio block.
type Audio struct {
	Bitrate    string `toml:"bitrate" validate:"required"`
	SampleRate int    `toml:"sample_rate" validate:"gt=0"`
	Channels   int    `toml:"channels" validate:"oneof=1 2"`
}

// Loudness selects the normalization mode.
type Loudness struct {
	Mode     string `toml:"mode" validate:"oneof=off one-pass two-pass"`
	Fallback bool   `toml:"fallback"`
}

// Watermark is the optional text watermark. Empty text disables it.
type Watermark struct {
	Text     string `toml:"text,omitempty"`
	Opacity  int    `toml:"opacity,omitempty" validate:"gte=0,lte=100"`
	Color    string `toml:"color,omitempty"`
	FontFile string `toml:"font_file,omitempty"`
	Size     int    `toml:"size,omitempty" validate:"gte=0,lte=100"`
	Rotation int    `toml:"rotation,omitempty" validate:"oneof=0 45 -45"`
	Tile     bool   `toml:"tile,omitempty"`
}

// ParametersFrom converts runtime parameters to their stored form.
func ParametersFrom(p plan.Params) Parameters {
	return Parameters{
		Resolution:     plan.Resolution{Width: p.Width, Height: p.Height}.String(),
		FPS:            p.FPS,
		Codec:          string(p.Codec),
		Encoder:        p.Encoder,
		PreferHardware: p.PreferHardware,
		Encoding:       Encoding{Mode: string(p.Encoding.Mode), Value: p.Encoding.Value, Passes: p.Encoding.Passes},
		Audio:          Audio{Bitrate: p.Audio.Bitrate, SampleRate: p.Audio.SampleRate, Channels: p.Audio.Channels},
		Loudness:       Loudness{Mode: string(p.Loudness), Fallback: p.LoudnessFallback},
		Watermark: Watermark{
			Text:     p.Watermark.Text,
			Opacity:  p.Watermark.Opacity,
			Color:    p.Watermark.Color,
			FontFile: p.Watermark.FontFile,
			Size:     p.Watermark.Size,
			Rotation: p.Watermark.Rotation,
			Tile:     p.Watermark.Tile,
		},
		Chapters:        p.Chapters,
		YouTubeChapters: p.YouTubeChapters,
		DefaultDuration: p.DefaultDuration,
	}
}

// Params converts the stored parameters to runtime parameters. Range checks
// against the supported sets happen in plan.ValidateParams.
func (p *Project) Params() (plan.Params, error) {
	s := p.Parameters
	width, height, err := parseResolution(s.Resolution)
	if err != nil {
		return plan.Params{}, err
	}
	family, ok := encoders.ParseFamily(s.Codec)
	if !ok {
		return plan.Params{}, fmt.Errorf("codec %q is not one of h264, hevc, av1, mpeg4", s.Codec)
	}
	wm := watermark.Config{
		Text:     s.Watermark.Text,
		Opacity:  s.Watermark.Opacity,
		Color:    s.Watermark.Color,
		FontFile: p.resolve(s.Watermark.FontFile),
		Size:     s.Watermark.Size,
		Rotation: s.Watermark.Rotation,
		Tile:     s.Watermark.Tile,
	}
	if wm.Enabled() {
		wm = wm.WithDefaults()
	}
	return plan.Params{
		Width:            width,
		Height:           height,
		FPS:              s.FPS,
		Codec:            family,
		Encoder:          strings.TrimSpace(s.Encoder),
		PreferHardware:   s.PreferHardware,
		Encoding:         plan.Encoding{Mode: plan.EncodingMode(s.Encoding.Mode), Value: s.Encoding.Value, Passes: s.Encoding.Passes},
		Audio:            plan.AudioParams{Bitrate: s.Audio.Bitrate, SampleRate: s.Audio.SampleRate, Channels: s.Audio.Channels},
		Loudness:         plan.LoudnessMode(s.Loudness.Mode),
		LoudnessFallback: s.Loudness.Fallback,
		Watermark:        wm,
		Chapters:         s.Chapters,
		YouTubeChapters:  s.YouTubeChapters,
		DefaultDuration:  s.DefaultDuration,
	}, nil
}

// Assignments returns one assignment per slide; slide i is page i.
func (p *Project) Assignments() []plan.Assignment {
	out := make([]plan.Assignment, 0, len(p.Slides))
	for i, s := range p.Slides {
		a := plan.Assignment{
			Page:         i,
			Material:     plan.Material(s.Material),
			AudioStream:  s.AudioStream,
			Duration:     s.Duration,
			Trim:         plan.Trim(s.Trim),
			ChapterTitle: s.ChapterTitle,
			Scale:        s.Scale,
			PageHash:     s.PHash,
		}
		if a.Material != plan.MaterialSilent {
			a.MediaPath = p.resolve(s.Media)
		}
		if pos, ok := plan.ParsePosition(s.Position); ok {
			a.Position = pos
		}
		for _, name := range s.Effects {
			if e, ok := plan.ParseEffect(name); ok {
				a.Effects = append(a.Effects, e)
			}
		}
		out = append(out, a)
	}
	return out
}

// Scaffold returns a project with one silent slide per page of document.
// The document path is stored relative to dir when it lies beneath it.
func Scaffold(dir, document string, pages int, params plan.Params) *Project {
	p := &Project{
		Paths:      Paths{Document: relativeTo(dir, document)},
		Parameters: ParametersFrom(params),
		Slides:     make([]Slide, pages),
	}
	for i := range p.Slides {
		p.Slides[i] = Slide{Material: string(plan.MaterialSilent)}
	}
	return p
}

// RecordPageHashes stores the current page fingerprints so later loads can
// detect pages whose content changed.
func (p *Project) RecordPageHashes(hashes []string) {
	for i := range p.Slides {
		if i < len(hashes) && hashes[i] != "" {
			p.Slides[i].PHash = hashes[i]
		}
	}
}

func parseResolution(value string) (int, int, error) {
	w, h, ok := strings.Cut(strings.ToLower(strings.TrimSpace(value)), "x")
	if !ok {
		return 0, 0, fmt.Errorf("resolution %q is not WIDTHxHEIGHT", value)
	}
	width, err := strconv.Atoi(w)
	if err != nil || width <= 0 {
		return 0, 0, fmt.Errorf("resolution %q has an invalid width", value)
	}
	height, err := strconv.Atoi(h)
	if err != nil || height <= 0 {
		return 0, 0, fmt.Errorf("resolution %q has an invalid height", value)
	}
	return width, height, nil
}
