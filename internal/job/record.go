// Package job defines the client-side snapshot of one server-tracked unit of
// work, its lifecycle state machine, and pure progress derivations over it.
package job

import "time"

// Kind tags the variant of work a record tracks.
type Kind string

const (
	// KindRecurringCycle is an auto-mode session that fires on an interval.
	KindRecurringCycle Kind = "recurring_cycle"
	// KindBulkStaged is a multi-stage bulk operation (e.g. a coupon rollout).
	KindBulkStaged Kind = "bulk_staged_operation"
	// KindScheduledTask is a one-off or cron-driven scrape task.
	KindScheduledTask Kind = "scheduled_task"
)

// Stage is one named phase of a bulk staged operation.
type Stage struct {
	Name           string `json:"name"`
	ProcessedUnits int    `json:"processed_units"`
	TotalUnits     int    `json:"total_units"`
	SuccessCount   int    `json:"success_count"`
	FailureCount   int    `json:"failure_count"`
}

// Statistics are monotonic counters that only grow while a record is running
// and reset only when a brand-new record is created for the same resource.
type Statistics struct {
	Collected int64 `json:"collected"`
	Processed int64 `json:"processed"`
	Succeeded int64 `json:"succeeded"`
	Failed    int64 `json:"failed"`
	Skipped   int64 `json:"skipped"`
}

// ScheduleConfig describes when a recurring cycle or scheduled task fires.
type ScheduleConfig struct {
	IntervalSeconds int        `json:"interval_seconds,omitempty"`
	Cron            string     `json:"cron,omitempty"`
	NextRunAt       *time.Time `json:"next_run_at,omitempty"`
	LastRunAt       *time.Time `json:"last_run_at,omitempty"`
}

// Record is the canonical client-side snapshot of one backend job.
//
// At most one non-terminal Record exists per ResourceKey; the controller layer
// enforces this before any create request is issued.
type Record struct {
	ID          string          `json:"job_id"`
	ResourceKey string          `json:"resource_key"`
	Kind        Kind            `json:"kind"`
	State       State           `json:"state"`
	Stages      []Stage         `json:"stages,omitempty"`
	Schedule    *ScheduleConfig `json:"schedule,omitempty"`
	Stats       Statistics      `json:"statistics"`
	// ErrorMessage is set only when State is StateFailed.
	ErrorMessage string    `json:"error_message,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Terminal reports whether the record can no longer transition, restart aside.
func (r *Record) Terminal() bool {
	return r.State.Terminal()
}

// Clone returns a deep copy so observed snapshots are never aliased by
// optimistic local mutation.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}

	out := *r

	if r.Stages != nil {
		out.Stages = make([]Stage, len(r.Stages))
		copy(out.Stages, r.Stages)
	}

	if r.Schedule != nil {
		schedule := *r.Schedule
		if schedule.NextRunAt != nil {
			next := *schedule.NextRunAt
			schedule.NextRunAt = &next
		}
		if schedule.LastRunAt != nil {
			last := *schedule.LastRunAt
			schedule.LastRunAt = &last
		}
		out.Schedule = &schedule
	}

	return &out
}
