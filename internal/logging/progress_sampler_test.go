package logging

import "testing"

func TestNewProgressSamplerDefaults(t *testing.T) {
	for _, buckets := range []int{0, -3} {
		if s := NewProgressSampler(buckets); s.buckets != 20 {
			t.Errorf("NewProgressSampler(%d).buckets = %d, want 20", buckets, s.buckets)
		}
	}
	if s := NewProgressSampler(4); s.buckets != 4 || s.lastBucket != -1 {
		t.Fatalf("unexpected sampler %+v", s)
	}
}

func TestProgressSamplerNilAlwaysLogs(t *testing.T) {
	var s *ProgressSampler
	if !s.ShouldLog("rendering", 0.5) {
		t.Fatal("nil sampler should log everything")
	}
}

func TestProgressSamplerBuckets(t *testing.T) {
	s := NewProgressSampler(10)
	steps := []struct {
		stage    string
		fraction float64
		want     bool
	}{
		{"rendering", 0, true},
		{"rendering", 0.05, false},
		{"rendering", 0.12, true},
		{"rendering", 0.19, false},
		{"merging", 0.19, true},
		{"merging", 1, true},
		{"merging", 1, false},
		{"merging", -1, false},
		{"normalizing", -1, true},
		{"normalizing", 1.5, true},
	}
	for i, step := range steps {
		if got := s.ShouldLog(step.stage, step.fraction); got != step.want {
			t.Fatalf("step %d (%s %.2f): ShouldLog = %v, want %v", i, step.stage, step.fraction, got, step.want)
		}
	}
}
