package pipeline

import (
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"slidecast/internal/logging"
)

// EventKind classifies observer events.
type EventKind string

const (
	EventState    EventKind = "state"
	EventProgress EventKind = "progress"
	EventSegment  EventKind = "segment"
)

// Event is one notification to a run observer.
type Event struct {
	Kind     EventKind
	RunID    string
	State    State
	Fraction float64
	Message  string
	// Page is the 0-based page of a segment event, -1 otherwise.
	Page int
}

// Observer receives run events. Calls are serialized.
type Observer func(Event)

// progressInterval is the minimum spacing of fraction updates.
const progressInterval = 250 * time.Millisecond

// emitter throttles progress events and logs sampled progress.
type emitter struct {
	mu       sync.Mutex
	runID    string
	observer Observer
	limiter  *rate.Limiter
	sampler  *logging.ProgressSampler
	logger   *slog.Logger
}

func newEmitter(runID string, observer Observer, logger *slog.Logger) *emitter {
	return &emitter{
		runID:    runID,
		observer: observer,
		limiter:  rate.NewLimiter(rate.Every(progressInterval), 1),
		sampler:  logging.NewProgressSampler(10),
		logger:   logger,
	}
}

func (e *emitter) send(ev Event) {
	ev.RunID = e.runID
	if e.observer != nil {
		e.observer(ev)
	}
}

func (e *emitter) state(to State) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.send(Event{Kind: EventState, State: to, Page: -1})
}

// progress reports fraction of stage. Intermediate updates are dropped when
// they arrive faster than progressInterval; completion is always delivered.
func (e *emitter) progress(stage State, fraction float64, message string) {
	fraction = min(1, max(0, fraction))
	e.mu.Lock()
	defer e.mu.Unlock()
	if fraction < 1 && !e.limiter.Allow() {
		return
	}
	if e.sampler.ShouldLog(string(stage), fraction) {
		e.logger.Info("progress",
			logging.String("stage", string(stage)),
			logging.Float64("percent", fraction*100),
			logging.String("message", message))
	}
	e.send(Event{Kind: EventProgress, State: stage, Fraction: fraction, Message: message, Page: -1})
}

func (e *emitter) segment(page int, reused bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	msg := "rendered"
	if reused {
		msg = "reused"
	}
	e.send(Event{Kind: EventSegment, State: StateRendering, Page: page, Message: msg})
}

// tracker aggregates per-item fractions into one stage fraction.
type tracker struct {
	mu    sync.Mutex
	parts []float64
	stage State
	emit  *emitter
}

func newTracker(n int, stage State, emit *emitter) *tracker {
	return &tracker{parts: make([]float64, n), stage: stage, emit: emit}
}

func (t *tracker) set(i int, fraction float64) {
	t.mu.Lock()
	t.parts[i] = min(1, max(t.parts[i], fraction))
	var sum float64
	for _, p := range t.parts {
		sum += p
	}
	total := sum / float64(len(t.parts))
	t.mu.Unlock()
	t.emit.progress(t.stage, total, "")
}
