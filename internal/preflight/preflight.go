package preflight

import (
	"path/filepath"

	"slidecast/internal/config"
	"slidecast/internal/deps"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// minScratchBytes is the free space below which a render is refused.
const minScratchBytes = 1 << 30

// RunAll executes the preflight checks for a render writing to outputPath.
// An empty outputPath skips the output directory check.
func RunAll(cfg *config.Config, outputPath string, needRaster bool) []Result {
	if cfg == nil {
		return nil
	}
	var results []Result
	for _, status := range deps.CheckBinaries(deps.Requirements(deps.Tools{
		FFmpeg:   cfg.Tools.FFmpeg,
		FFprobe:  cfg.Tools.FFprobe,
		Pdftoppm: cfg.Tools.Pdftoppm,
	}, needRaster)) {
		results = append(results, fromStatus(status))
	}
	results = append(results, CheckDirectoryAccess("Scratch directory", cfg.Paths.ScratchDir))
	results = append(results, CheckFreeSpace("Scratch free space", cfg.Paths.ScratchDir, minScratchBytes))
	results = append(results, CheckDirectoryAccess("Cache directory", cfg.Paths.CacheDir))
	if cfg.SegmentCache.Enabled {
		results = append(results, CheckDirectoryAccess("Segment cache directory", cfg.SegmentCache.Dir))
	}
	if outputPath != "" {
		results = append(results, CheckDirectoryAccess("Output directory", filepath.Dir(outputPath)))
	}
	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}

func fromStatus(status deps.Status) Result {
	result := Result{Name: status.Name, Passed: status.Available || status.Optional}
	switch {
	case status.Available:
		result.Detail = status.Path
	case status.Optional:
		result.Detail = status.Detail + " (optional)"
	default:
		result.Detail = status.Detail
	}
	return result
}
