package job

import (
	"errors"
	"testing"
	"time"
)

func TestAllowedLifecyclePaths(t *testing.T) {
	paths := [][]State{
		{StateCreated, StateRunning, StateCompleted},
		{StateCreated, StateRunning, StatePaused, StateRunning, StateFailed},
		{StateCreated, StateRunning, StateCancelled},
		{StateCreated, StateCancelled},
		{StateCreated, StateRunning, StatePaused, StateCancelled},
	}

	for _, path := range paths {
		for i := 0; i < len(path)-1; i++ {
			if err := ValidateTransition(path[i], path[i+1]); err != nil {
				t.Fatalf("expected %s -> %s to be valid: %v", path[i], path[i+1], err)
			}
		}
	}
}

func TestTerminalStatesRejectAllTransitions(t *testing.T) {
	all := []State{StateCreated, StateRunning, StatePaused, StateCompleted, StateFailed, StateCancelled}

	for _, from := range []State{StateCompleted, StateFailed, StateCancelled} {
		for _, to := range all {
			if err := ValidateTransition(from, to); !errors.Is(err, ErrInvalidTransition) {
				t.Fatalf("expected ErrInvalidTransition for %s -> %s, got %v", from, to, err)
			}
		}
	}
}

func TestInvalidTransitionsRejected(t *testing.T) {
	cases := []struct{ from, to State }{
		{StateCreated, StatePaused},
		{StateCreated, StateCompleted},
		{StateCreated, StateFailed},
		{StatePaused, StateCompleted},
		{StatePaused, StateFailed},
		{StateRunning, StateCreated},
		{StateRunning, StateRunning},
	}

	for _, tc := range cases {
		if err := ValidateTransition(tc.from, tc.to); !errors.Is(err, ErrInvalidTransition) {
			t.Fatalf("expected ErrInvalidTransition for %s -> %s, got %v", tc.from, tc.to, err)
		}
	}
}

func TestCloneDoesNotAliasStages(t *testing.T) {
	record := &Record{
		ID:          "j-1",
		ResourceKey: "acct-1",
		Kind:        KindBulkStaged,
		State:       StateRunning,
		Stages: []Stage{
			{Name: "collecting", ProcessedUnits: 3, TotalUnits: 10},
		},
	}

	clone := record.Clone()
	clone.Stages[0].ProcessedUnits = 9
	clone.State = StateCancelled

	if record.Stages[0].ProcessedUnits != 3 {
		t.Fatalf("clone mutated original stages")
	}
	if record.State != StateRunning {
		t.Fatalf("clone mutated original state")
	}
}

func TestCloneDoesNotAliasScheduleTimes(t *testing.T) {
	next := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	record := &Record{
		ID:          "j-2",
		ResourceKey: "acct-2",
		Kind:        KindRecurringCycle,
		State:       StateRunning,
		Schedule: &ScheduleConfig{
			IntervalSeconds: 60,
			NextRunAt:       &next,
		},
	}

	clone := record.Clone()
	*clone.Schedule.NextRunAt = next.Add(time.Hour)
	clone.Schedule.IntervalSeconds = 120

	if !record.Schedule.NextRunAt.Equal(next) {
		t.Fatalf("clone mutated original next run time")
	}
	if record.Schedule.IntervalSeconds != 60 {
		t.Fatalf("clone mutated original schedule interval")
	}
}
