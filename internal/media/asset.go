package media

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"slidecast/internal/language"
	"slidecast/internal/media/ffprobe"
)

// Kind classifies a probed media file.
type Kind string

const (
	KindAudio Kind = "audio"
	KindVideo Kind = "video"
)

// Supported file extensions, lower case with leading dot.
var (
	AudioExtensions = []string{".mp3", ".flac", ".aac", ".wav", ".m4a"}
	VideoExtensions = []string{".mp4", ".avi", ".mov", ".mkv"}
)

// Identity is the cheap cache key for a media file: path, size, and
// modification time stand in for content identity.
type Identity struct {
	Path    string    `json:"path"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
}

// Key renders the identity as a stable string.
func (id Identity) Key() string {
	return fmt.Sprintf("%s|%d|%d", id.Path, id.Size, id.ModTime.UnixNano())
}

// IdentityOf stats path and returns its identity. The path is made absolute.
func IdentityOf(path string) (Identity, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return Identity{}, fmt.Errorf("resolve media path: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return Identity{}, fmt.Errorf("stat media: %w", err)
	}
	if info.IsDir() {
		return Identity{}, fmt.Errorf("media path %q is a directory", abs)
	}
	return Identity{Path: abs, Size: info.Size(), ModTime: info.ModTime().UTC()}, nil
}

// AudioStream describes one selectable audio stream.
type AudioStream struct {
	// StreamIndex is the absolute container stream index used in -map.
	StreamIndex   int    `json:"stream_index"`
	Codec         string `json:"codec"`
	SampleRate    int    `json:"sample_rate"`
	Channels      int    `json:"channels"`
	ChannelLayout string `json:"channel_layout,omitempty"`
	Language      string `json:"language,omitempty"`
	Title         string `json:"title,omitempty"`
	Default       bool   `json:"default,omitempty"`
}

// Label renders a human-readable description of the stream.
func (a AudioStream) Label() string {
	parts := []string{fmt.Sprintf("#%d", a.StreamIndex)}
	if a.Language != "" {
		parts = append(parts, language.DisplayName(a.Language))
	}
	if a.Title != "" {
		parts = append(parts, fmt.Sprintf("%q", a.Title))
	}
	if a.Codec != "" {
		parts = append(parts, a.Codec)
	}
	if a.Channels > 0 {
		parts = append(parts, fmt.Sprintf("%dch", a.Channels))
	}
	if a.SampleRate > 0 {
		parts = append(parts, fmt.Sprintf("%dHz", a.SampleRate))
	}
	return strings.Join(parts, " ")
}

// VideoStream describes the primary video stream of an audio/video asset.
type VideoStream struct {
	StreamIndex   int     `json:"stream_index"`
	Codec         string  `json:"codec"`
	Width         int     `json:"width"`
	Height        int     `json:"height"`
	Rotation      int     `json:"rotation"`
	SampleAspect  string  `json:"sample_aspect,omitempty"`
	DisplayAspect float64 `json:"display_aspect"`
	FrameRate     float64 `json:"frame_rate"`
	VariableRate  bool    `json:"variable_rate,omitempty"`
	Interlaced    bool    `json:"interlaced,omitempty"`
}

// Rotated reports whether width and height swap for display.
func (v VideoStream) Rotated() bool {
	return v.Rotation == 90 || v.Rotation == 270
}

// Asset is the probed metadata of one media file.
type Asset struct {
	Identity     Identity      `json:"identity"`
	Kind         Kind          `json:"kind"`
	Duration     float64       `json:"duration"`
	AudioStreams []AudioStream `json:"audio_streams"`
	Video        *VideoStream  `json:"video,omitempty"`
}

// AudioStream returns the stream at the given ordinal (0-based position among
// the asset's audio streams).
func (a Asset) AudioStream(ordinal int) (AudioStream, bool) {
	if ordinal < 0 || ordinal >= len(a.AudioStreams) {
		return AudioStream{}, false
	}
	return a.AudioStreams[ordinal], true
}

// FromProbe converts ffprobe output into an Asset.
func FromProbe(id Identity, result ffprobe.Result) (Asset, error) {
	duration := result.DurationSeconds()
	if math.IsNaN(duration) || duration <= 0 {
		return Asset{}, fmt.Errorf("media %q reports no usable duration", id.Path)
	}
	asset := Asset{Identity: id, Kind: KindAudio, Duration: duration}
	for _, stream := range result.AudioStreams() {
		asset.AudioStreams = append(asset.AudioStreams, AudioStream{
			StreamIndex:   stream.Index,
			Codec:         stream.CodecName,
			SampleRate:    stream.SampleRateHz(),
			Channels:      stream.Channels,
			ChannelLayout: stream.ChannelLayout,
			Language:      language.Canonical(stream.Tag("language")),
			Title:         stream.Tag("title"),
			Default:       stream.Disposition.Default == 1,
		})
	}
	if videos := result.VideoStreams(); len(videos) > 0 {
		v := videos[0]
		if v.Width <= 0 || v.Height <= 0 {
			return Asset{}, fmt.Errorf("media %q video stream has no dimensions", id.Path)
		}
		vs := &VideoStream{
			StreamIndex:  v.Index,
			Codec:        v.CodecName,
			Width:        v.Width,
			Height:       v.Height,
			Rotation:     v.Rotation(),
			SampleAspect: v.SampleAspectRatio,
			FrameRate:    v.FrameRate(),
			VariableRate: v.IsVariableFrameRate(),
			Interlaced:   v.IsInterlaced(),
		}
		if dar, ok := v.DisplayAspect(); ok {
			vs.DisplayAspect = dar
		} else {
			vs.DisplayAspect = float64(v.Width) / float64(v.Height)
		}
		asset.Video = vs
		asset.Kind = KindVideo
	}
	if asset.Kind == KindAudio && len(asset.AudioStreams) == 0 {
		return Asset{}, fmt.Errorf("media %q has neither audio nor video streams", id.Path)
	}
	return asset, nil
}

// KindForExtension classifies a path by extension. ok is false for
// unsupported extensions.
func KindForExtension(path string) (Kind, bool) {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range AudioExtensions {
		if e == ext {
			return KindAudio, true
		}
	}
	for _, e := range VideoExtensions {
		if e == ext {
			return KindVideo, true
		}
	}
	return "", false
}
