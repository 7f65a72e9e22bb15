package render

import (
	"strconv"

	"slidecast/internal/encoders"
	"slidecast/internal/plan"
)

// VBR headroom relative to the target bitrate.
const (
	vbrMaxrateFactor = 1.5
	vbrBufsizeFactor = 2.0
)

// EncodeArgs returns the video encoder arguments of a plan: codec, profile
// and preset, rate control, and the fixed pixel format, colour signalling,
// keyframe interval, and frame rate.
func EncodeArgs(params plan.Params, encoder encoders.Profile) []string {
	settings := encoder.Settings()
	args := []string{"-c:v", encoder.Name}
	args = append(args, settings.Args()...)
	args = append(args, rateControlArgs(params.Encoding, settings)...)
	return append(args,
		"-pix_fmt", "yuv420p",
		"-color_primaries", "bt709",
		"-color_trc", "bt709",
		"-colorspace", "bt709",
		"-g", strconv.Itoa(params.FPS*2),
		"-r", strconv.Itoa(params.FPS),
	)
}

func rateControlArgs(enc plan.Encoding, settings encoders.Settings) []string {
	switch enc.Mode {
	case plan.ModeVBR:
		return []string{
			"-b:v", kbps(float64(enc.Value)),
			"-maxrate", kbps(float64(enc.Value) * vbrMaxrateFactor),
			"-bufsize", kbps(float64(enc.Value) * vbrBufsizeFactor),
		}
	case plan.ModeCBR:
		return []string{"-b:v", kbps(float64(enc.Value))}
	default:
		return settings.QualityArgs(enc.Value)
	}
}

// AudioArgs returns the uniform AAC output arguments.
func AudioArgs(a plan.AudioParams) []string {
	return []string{
		"-c:a", "aac",
		"-b:a", a.Bitrate,
		"-ar", strconv.Itoa(a.SampleRate),
		"-ac", strconv.Itoa(a.Channels),
	}
}

func kbps(v float64) string {
	return strconv.Itoa(int(v)) + "k"
}
