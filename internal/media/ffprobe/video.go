package ffprobe

import (
	"math"
	"strconv"
	"strings"
)

// Rotation returns the clockwise display rotation normalised to 0, 90, 180, or
// 270. The display matrix side data wins over the legacy rotate tag.
func (s Stream) Rotation() int {
	raw := math.NaN()
	for _, sd := range s.SideDataList {
		if sd.Rotation != 0 {
			// Display matrix rotation is counter-clockwise.
			raw = -sd.Rotation
			break
		}
	}
	if math.IsNaN(raw) {
		if tag := s.Tag("rotate"); tag != "" {
			if v, err := strconv.ParseFloat(tag, 64); err == nil {
				raw = v
			}
		}
	}
	if math.IsNaN(raw) {
		return 0
	}
	deg := int(math.Round(raw/90)) * 90
	deg %= 360
	if deg < 0 {
		deg += 360
	}
	return deg
}

// FrameRate returns the average frame rate, falling back to r_frame_rate.
func (s Stream) FrameRate() float64 {
	if avg := parseRatio(s.AvgFrameRate); avg > 0 {
		return avg
	}
	return parseRatio(s.RFrameRate)
}

// IsVariableFrameRate reports whether the real and average frame rates diverge.
func (s Stream) IsVariableFrameRate() bool {
	r := parseRatio(s.RFrameRate)
	avg := parseRatio(s.AvgFrameRate)
	if r <= 0 || avg <= 0 {
		return false
	}
	return math.Abs(r-avg) > 0.01
}

// IsInterlaced reports whether the stream carries interlaced fields.
func (s Stream) IsInterlaced() bool {
	switch strings.ToLower(strings.TrimSpace(s.FieldOrder)) {
	case "tt", "bb", "tb", "bt":
		return true
	default:
		return false
	}
}

// DisplayAspect returns the display aspect ratio when the container signals a
// usable one.
func (s Stream) DisplayAspect() (float64, bool) {
	ratio := parseRatioSep(s.DisplayAspectRatio, ":")
	if ratio > 0 {
		return ratio, true
	}
	return 0, false
}

func parseRatio(value string) float64 {
	return parseRatioSep(value, "/")
}

func parseRatioSep(value, sep string) float64 {
	num, den, ok := strings.Cut(strings.TrimSpace(value), sep)
	if !ok {
		v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return 0
		}
		return v
	}
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil || d == 0 {
		return 0
	}
	return n / d
}
