package pipeline

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestMachineFollowsPipelineOrder(t *testing.T) {
	var entered []State
	m := newMachine(false, func(_, to State) { entered = append(entered, to) })
	path := []State{StateProbing, StatePlanBuilding, StateRendering, StateMerging,
		StateNormalizing, StateWatermarking, StateChaptering, StateDone}
	for _, s := range path {
		if err := m.advance(s); err != nil {
			t.Fatalf("advance %s: %v", s, err)
		}
	}
	if diff := cmp.Diff(path, entered); diff != "" {
		t.Fatalf("entered states mismatch (-want +got):\n%s", diff)
	}
	if err := m.advance(StateCancelling); err == nil {
		t.Fatal("terminal state must not transition")
	}
	if got := len(m.transitions()); got != len(path) {
		t.Fatalf("history length %d", got)
	}
}

func TestMachineRejectsSkippedStages(t *testing.T) {
	m := newMachine(false, nil)
	if err := m.advance(StateRendering); err == nil {
		t.Fatal("idle -> rendering should be rejected")
	}
	for _, s := range []State{StateProbing, StatePlanBuilding, StateRendering} {
		if err := m.advance(s); err != nil {
			t.Fatal(err)
		}
	}
	if err := m.advance(StateDone); err == nil {
		t.Fatal("rendering -> done is only valid for previews")
	}
}

func TestMachineCancellationFromAnyActiveState(t *testing.T) {
	for _, stop := range []State{StateIdle, StateProbing, StateRendering, StateChaptering} {
		m := newMachine(false, nil)
		for _, s := range []State{StateProbing, StatePlanBuilding, StateRendering, StateMerging,
			StateNormalizing, StateWatermarking, StateChaptering} {
			if m.current() == stop {
				break
			}
			if err := m.advance(s); err != nil {
				t.Fatal(err)
			}
		}
		if err := m.advance(StateCancelled); err == nil {
			t.Fatalf("%s: cancelled must go through cancelling", stop)
		}
		if err := m.advance(StateCancelling); err != nil {
			t.Fatalf("%s: %v", stop, err)
		}
		if err := m.advance(StateFailed); err == nil {
			t.Fatalf("%s: cancelling must not fail", stop)
		}
		if err := m.advance(StateCancelled); err != nil {
			t.Fatalf("%s: %v", stop, err)
		}
	}
}

func TestMachinePreviewEndsAfterRendering(t *testing.T) {
	m := newMachine(true, nil)
	for _, s := range []State{StateProbing, StatePlanBuilding, StateRendering, StateDone} {
		if err := m.advance(s); err != nil {
			t.Fatalf("advance %s: %v", s, err)
		}
	}
}
