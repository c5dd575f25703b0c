package registry

import (
	"testing"

	"github.com/sellsync/sellsync/internal/job"
)

func record(id, resourceKey string, state job.State) *job.Record {
	return &job.Record{
		ID:          id,
		ResourceKey: resourceKey,
		Kind:        job.KindRecurringCycle,
		State:       state,
	}
}

func TestUpsertDropsStaleSnapshots(t *testing.T) {
	g := New()

	if !g.Upsert(record("j-1", "acct-1", job.StateRunning), 2) {
		t.Fatal("fresh snapshot rejected")
	}

	// A slower in-flight poll resolving late must not win.
	if g.Upsert(record("j-1", "acct-1", job.StateCreated), 1) {
		t.Fatal("stale snapshot accepted")
	}

	got, _ := g.Get("acct-1")
	if got.State != job.StateRunning {
		t.Fatalf("state = %s, want RUNNING", got.State)
	}
}

func TestRestartReplacesOldRecord(t *testing.T) {
	g := New()
	g.Upsert(record("j-1", "acct-1", job.StateCompleted), 1)
	g.Seed(record("j-2", "acct-1", job.StateCreated))

	got, ok := g.Get("acct-1")
	if !ok || got.ID != "j-2" {
		t.Fatalf("expected fresh record j-2, got %+v", got)
	}

	// The first poll after a restart reconciles the seeded entry.
	if !g.Upsert(record("j-2", "acct-1", job.StateRunning), 5) {
		t.Fatal("post-restart poll rejected")
	}
}

func TestApplyOptimisticDoesNotAdvanceStamp(t *testing.T) {
	g := New()
	g.Upsert(record("j-1", "acct-1", job.StateRunning), 3)

	if !g.ApplyOptimistic("j-1", job.StatePaused) {
		t.Fatal("optimistic update failed")
	}

	got, _ := g.Get("acct-1")
	if got.State != job.StatePaused {
		t.Fatalf("state = %s, want PAUSED", got.State)
	}

	// The next successful poll wins over the optimistic local state.
	if !g.Upsert(record("j-1", "acct-1", job.StateRunning), 3) {
		t.Fatal("poll at same stamp rejected after optimistic update")
	}

	got, _ = g.Get("acct-1")
	if got.State != job.StateRunning {
		t.Fatalf("state = %s, want RUNNING after reconcile", got.State)
	}
}

func TestRunningCountAndAggregate(t *testing.T) {
	g := New()

	if got := g.AggregateStatistics(); got != (job.Statistics{}) {
		t.Fatalf("empty registry aggregate = %+v, want zeroes", got)
	}
	if got := g.RunningCount(); got != 0 {
		t.Fatalf("empty registry running count = %d, want 0", got)
	}

	r1 := record("j-1", "acct-1", job.StateRunning)
	r1.Stats = job.Statistics{Collected: 4, Succeeded: 2}
	r2 := record("j-2", "acct-2", job.StatePaused)
	r2.Stats = job.Statistics{Collected: 1, Failed: 1}

	g.Upsert(r1, 1)
	g.Upsert(r2, 1)

	if got := g.RunningCount(); got != 1 {
		t.Fatalf("running count = %d, want 1", got)
	}

	want := job.Statistics{Collected: 5, Succeeded: 2, Failed: 1}
	if got := g.AggregateStatistics(); got != want {
		t.Fatalf("aggregate = %+v, want %+v", got, want)
	}
}

func TestRemove(t *testing.T) {
	g := New()
	g.Upsert(record("j-1", "acct-1", job.StateRunning), 1)
	g.Remove("acct-1")

	if _, ok := g.Get("acct-1"); ok {
		t.Fatal("record still present after remove")
	}
}

func TestGetReturnsCopy(t *testing.T) {
	g := New()
	g.Upsert(record("j-1", "acct-1", job.StateRunning), 1)

	got, _ := g.Get("acct-1")
	got.State = job.StateCancelled

	again, _ := g.Get("acct-1")
	if again.State != job.StateRunning {
		t.Fatal("registry entry aliased by returned record")
	}
}
