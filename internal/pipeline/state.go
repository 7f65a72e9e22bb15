package pipeline

import (
	"fmt"
	"sync"
	"time"
)

// State is a run's position in the pipeline.
type State string

const (
	StateIdle         State = "idle"
	StateProbing      State = "probing"
	StatePlanBuilding State = "plan_building"
	StateRendering    State = "rendering"
	StateMerging      State = "merging"
	StateNormalizing  State = "normalizing"
	StateWatermarking State = "watermarking"
	StateChaptering   State = "chaptering"
	StateDone         State = "done"
	StateCancelling   State = "cancelling"
	StateCancelled    State = "cancelled"
	StateFailed       State = "failed"
)

// States lists every state in pipeline order.
func States() []State {
	return []State{
		StateIdle, StateProbing, StatePlanBuilding, StateRendering, StateMerging,
		StateNormalizing, StateWatermarking, StateChaptering, StateDone,
		StateCancelling, StateCancelled, StateFailed,
	}
}

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool {
	return s == StateDone || s == StateCancelled || s == StateFailed
}

var forward = map[State]State{
	StateIdle:         StateProbing,
	StateProbing:      StatePlanBuilding,
	StatePlanBuilding: StateRendering,
	StateRendering:    StateMerging,
	StateMerging:      StateNormalizing,
	StateNormalizing:  StateWatermarking,
	StateWatermarking: StateChaptering,
	StateChaptering:   StateDone,
}

// Transition is one recorded state change.
type Transition struct {
	From State     `json:"from"`
	To   State     `json:"to"`
	At   time.Time `json:"at"`
}

// machine enforces the run state graph. In preview mode Rendering leads
// straight to Done.
type machine struct {
	mu      sync.Mutex
	state   State
	preview bool
	history []Transition
	onEnter func(from, to State)
}

func newMachine(preview bool, onEnter func(from, to State)) *machine {
	return &machine{state: StateIdle, preview: preview, onEnter: onEnter}
}

func (m *machine) current() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *machine) transitions() []Transition {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Transition(nil), m.history...)
}

func (m *machine) allowed(from, to State) bool {
	if from.Terminal() {
		return false
	}
	switch to {
	case StateCancelling:
		return from != StateCancelling
	case StateCancelled:
		return from == StateCancelling
	case StateFailed:
		return from != StateCancelling
	}
	if from == StateCancelling {
		return false
	}
	if m.preview && from == StateRendering {
		return to == StateDone
	}
	return forward[from] == to
}

func (m *machine) advance(to State) error {
	m.mu.Lock()
	from := m.state
	if !m.allowed(from, to) {
		m.mu.Unlock()
		return fmt.Errorf("invalid state transition %s -> %s", from, to)
	}
	m.state = to
	m.history = append(m.history, Transition{From: from, To: to, At: time.Now().UTC()})
	onEnter := m.onEnter
	m.mu.Unlock()
	if onEnter != nil {
		onEnter(from, to)
	}
	return nil
}
