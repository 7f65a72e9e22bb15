// Package metrics exports per-run pipeline metrics as a Prometheus textfile
// for the node-exporter textfile collector.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Summary is the metric-relevant view of one finished run.
type Summary struct {
	State     string
	Duration  time.Duration
	Stages    map[string]time.Duration
	Rendered  int
	Reused    int
	Encoder   string
	Finished  time.Time
	AllStates []string
}

// Recorder holds one run's metrics in a private registry.
type Recorder struct {
	registry      *prometheus.Registry
	runDuration   prometheus.Gauge
	stageDuration *prometheus.GaugeVec
	rendered      prometheus.Counter
	reused        prometheus.Counter
	state         *prometheus.GaugeVec
	encoder       *prometheus.GaugeVec
	finished      prometheus.Gauge
}

// NewRecorder returns a Recorder with every metric registered.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		runDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "slidecast_run_duration_seconds",
			Help: "Wall time of the last pipeline run",
		}),
		stageDuration: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "slidecast_stage_duration_seconds",
			Help: "Wall time of each stage of the last pipeline run",
		}, []string{"stage"}),
		rendered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "slidecast_segments_rendered_total",
			Help: "Segments encoded by the last pipeline run",
		}),
		reused: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "slidecast_segments_reused_total",
			Help: "Segments restored from the segment cache by the last pipeline run",
		}),
		state: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "slidecast_run_state",
			Help: "Final state of the last pipeline run (1 for the state reached)",
		}, []string{"state"}),
		encoder: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "slidecast_run_encoder_info",
			Help: "Video encoder used by the last pipeline run",
		}, []string{"encoder"}),
		finished: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "slidecast_run_finished_timestamp_seconds",
			Help: "Unix time the last pipeline run finished",
		}),
	}
	r.registry.MustRegister(r.runDuration, r.stageDuration, r.rendered, r.reused, r.state, r.encoder, r.finished)
	return r
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// Observe records s.
func (r *Recorder) Observe(s Summary) {
	r.runDuration.Set(s.Duration.Seconds())
	for stage, d := range s.Stages {
		r.stageDuration.WithLabelValues(stage).Set(d.Seconds())
	}
	r.rendered.Add(float64(s.Rendered))
	r.reused.Add(float64(s.Reused))
	for _, state := range s.AllStates {
		r.state.WithLabelValues(state).Set(0)
	}
	if s.State != "" {
		r.state.WithLabelValues(s.State).Set(1)
	}
	if enc := strings.TrimSpace(s.Encoder); enc != "" {
		r.encoder.WithLabelValues(enc).Set(1)
	}
	if !s.Finished.IsZero() {
		r.finished.Set(float64(s.Finished.Unix()))
	}
}

// WriteTextfile atomically replaces path with the current metrics.
func (r *Recorder) WriteTextfile(path string) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
