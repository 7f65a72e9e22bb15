package logging

import "strings"

// ProgressSampler decides which stage progress updates are worth a log line:
// the first update of each stage, and the first update in each of a fixed
// number of equal fraction buckets. Observers still see every update.
type ProgressSampler struct {
	buckets    int
	stage      string
	lastBucket int
}

// NewProgressSampler splits each stage into buckets equal parts; values
// below 1 default to 20 (every 5%).
func NewProgressSampler(buckets int) *ProgressSampler {
	if buckets < 1 {
		buckets = 20
	}
	return &ProgressSampler{buckets: buckets, lastBucket: -1}
}

// ShouldLog reports whether fraction (0..1) of stage starts a new bucket. A
// negative fraction means the total is unknown and only a stage change logs.
func (s *ProgressSampler) ShouldLog(stage string, fraction float64) bool {
	if s == nil {
		return true
	}
	emit := false
	if stage = strings.TrimSpace(stage); stage != "" && stage != s.stage {
		s.stage = stage
		s.lastBucket = -1
		emit = true
	}
	if fraction < 0 {
		return emit
	}
	bucket := min(int(fraction*float64(s.buckets)), s.buckets)
	if bucket > s.lastBucket {
		s.lastBucket = bucket
		emit = true
	}
	return emit
}
