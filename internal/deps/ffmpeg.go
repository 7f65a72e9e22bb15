package deps

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// Tools lists the configured external binaries.
type Tools struct {
	FFmpeg   string
	FFprobe  string
	Pdftoppm string
}

// Requirements builds the dependency list for a pipeline run. Rasterisation is
// only needed when a document must be rendered, so pdftoppm can be optional.
func Requirements(tools Tools, needRaster bool) []Requirement {
	return []Requirement{
		{Name: "FFmpeg", Command: tools.FFmpeg, Description: "Encodes segments and assembles the final video"},
		{Name: "FFprobe", Command: ResolveFFprobe(tools.FFmpeg, tools.FFprobe), Description: "Reads media durations and stream layouts"},
		{Name: "pdftoppm", Command: tools.Pdftoppm, Description: "Rasterises document pages", Optional: !needRaster},
	}
}

// ResolveFFprobe prefers an ffprobe binary that sits next to an explicitly
// configured ffmpeg when ffprobe itself was left at its bare default name, so
// both tools come from the same build.
func ResolveFFprobe(ffmpeg, ffprobe string) string {
	ffprobe = strings.TrimSpace(ffprobe)
	ffmpeg = strings.TrimSpace(ffmpeg)
	if ffprobe != "" && ffprobe != "ffprobe" {
		return ffprobe
	}
	if ffmpeg == "" || !filepath.IsAbs(ffmpeg) {
		if ffprobe == "" {
			return "ffprobe"
		}
		return ffprobe
	}
	candidate := filepath.Join(filepath.Dir(ffmpeg), executableName("ffprobe"))
	if info, err := os.Stat(candidate); err == nil && isExecutable(info) {
		return candidate
	}
	return "ffprobe"
}

func executableName(base string) string {
	if runtime.GOOS == "windows" {
		return base + ".exe"
	}
	return base
}

func isExecutable(info os.FileInfo) bool {
	if info == nil || info.IsDir() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return info.Mode().Perm()&0o111 != 0
}
