// Package registry keeps the keyed collection of job records (one per
// resource) and serves aggregate queries over it.
package registry

import (
	"sync"

	"github.com/sellsync/sellsync/internal/job"
)

type entry struct {
	record *job.Record
	// stamp is the observation stamp of the poll that produced the record.
	// A snapshot arriving with a lower stamp is stale and dropped, so a late
	// in-flight response can never overwrite a newer one.
	stamp uint64
}

// Registry maps resourceKey to the latest known record for that resource.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

func New() *Registry {
	return &Registry{
		entries: make(map[string]*entry),
	}
}

// Upsert installs an observed snapshot with its poll stamp. It reports false
// when the snapshot is stale relative to what is already held. A record with
// a new ID for the same resource (a restart) fully replaces the old entry.
func (g *Registry) Upsert(record *job.Record, stamp uint64) bool {
	if record == nil || record.ResourceKey == "" {
		return false
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	current, ok := g.entries[record.ResourceKey]
	if ok && stamp < current.stamp {
		return false
	}

	g.entries[record.ResourceKey] = &entry{record: record.Clone(), stamp: stamp}

	return true
}

// Seed installs a record the controller just created or restarted. It carries
// stamp zero so the next successful poll always reconciles over it.
func (g *Registry) Seed(record *job.Record) {
	if record == nil || record.ResourceKey == "" {
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.entries[record.ResourceKey] = &entry{record: record.Clone()}
}

// ApplyOptimistic moves a record's lifecycle state locally after a command was
// acknowledged, without advancing its observation stamp. The next successful
// poll wins over this.
func (g *Registry) ApplyOptimistic(jobID string, to job.State) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, e := range g.entries {
		if e.record.ID != jobID {
			continue
		}

		updated := e.record.Clone()
		updated.State = to
		e.record = updated

		return true
	}

	return false
}

// Get returns a copy of the record for a resource.
func (g *Registry) Get(resourceKey string) (*job.Record, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	e, ok := g.entries[resourceKey]
	if !ok {
		return nil, false
	}

	return e.record.Clone(), true
}

// GetByID returns a copy of the record with the given job id.
func (g *Registry) GetByID(jobID string) (*job.Record, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	for _, e := range g.entries {
		if e.record.ID == jobID {
			return e.record.Clone(), true
		}
	}

	return nil, false
}

// Remove drops the record for a resource. The caller is responsible for
// stopping any poll loop watching the key.
func (g *Registry) Remove(resourceKey string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	delete(g.entries, resourceKey)
}

// Snapshot returns copies of all held records.
func (g *Registry) Snapshot() []*job.Record {
	g.mu.RLock()
	defer g.mu.RUnlock()

	records := make([]*job.Record, 0, len(g.entries))
	for _, e := range g.entries {
		records = append(records, e.record.Clone())
	}

	return records
}

// RunningCount reports how many records are currently running.
func (g *Registry) RunningCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()

	count := 0
	for _, e := range g.entries {
		if e.record.State == job.StateRunning {
			count++
		}
	}

	return count
}

// AggregateStatistics sums counters across all held records. An empty
// registry yields all-zero counters.
func (g *Registry) AggregateStatistics() job.Statistics {
	return job.AggregateStatistics(g.Snapshot())
}
