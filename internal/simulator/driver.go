package simulator

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/sellsync/sellsync/internal/job"
)

// unitsPerTick is how much stage work one driver tick performs per job.
const unitsPerTick = 3

// Driver advances RUNNING jobs so polling clients observe realistic progress:
// bulk jobs walk their stages, recurring cycles fire on their interval.
type Driver struct {
	store  *Store
	logger *slog.Logger
	tick   time.Duration
}

func NewDriver(store *Store, logger *slog.Logger, tick time.Duration) *Driver {
	if tick <= 0 {
		tick = time.Second
	}

	return &Driver{
		store:  store,
		logger: logger,
		tick:   tick,
	}
}

func (d *Driver) Run(ctx context.Context) {
	ticker := time.NewTicker(d.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.advanceOnce(ctx)
		}
	}
}

func (d *Driver) advanceOnce(ctx context.Context) {
	records, err := d.store.ListRunning(ctx)
	if err != nil {
		d.logger.Error("driver failed to list running jobs", "err", err)
		return
	}

	for _, record := range records {
		if err := d.advanceJob(ctx, record); err != nil {
			d.logger.Error("driver failed to advance job", "job_id", record.ID, "err", err)
		}
	}
}

func (d *Driver) advanceJob(ctx context.Context, record *job.Record) error {
	switch record.Kind {
	case job.KindBulkStaged:
		return d.advanceBulk(ctx, record)
	case job.KindRecurringCycle, job.KindScheduledTask:
		return d.advanceScheduled(ctx, record)
	default:
		return nil
	}
}

func (d *Driver) advanceBulk(ctx context.Context, record *job.Record) error {
	done := true

	for i := range record.Stages {
		stage := &record.Stages[i]
		if stage.ProcessedUnits >= stage.TotalUnits {
			continue
		}

		step := unitsPerTick
		if remaining := stage.TotalUnits - stage.ProcessedUnits; remaining < step {
			step = remaining
		}

		stage.ProcessedUnits += step
		stage.SuccessCount += step

		record.Stats.Processed += int64(step)
		record.Stats.Succeeded += int64(step)
		if stage.Name == "collecting" {
			record.Stats.Collected += int64(step)
		}

		// One stage per tick; the next stage starts once this one ends.
		break
	}

	for _, stage := range record.Stages {
		if stage.ProcessedUnits < stage.TotalUnits {
			done = false
		}
	}

	if err := d.store.SaveProgress(ctx, record); err != nil {
		return err
	}

	if done {
		jobID, err := uuid.Parse(record.ID)
		if err != nil {
			return err
		}

		// A concurrent cancel wins the guarded transition; that is fine.
		if err := d.store.CompleteJob(ctx, jobID); err != nil && err != ErrInvalidStateTransition {
			return err
		}

		d.logger.Info("bulk job completed", "job_id", record.ID, "resource_key", record.ResourceKey)
	}

	return nil
}

func (d *Driver) advanceScheduled(ctx context.Context, record *job.Record) error {
	if record.Schedule == nil || record.Schedule.IntervalSeconds <= 0 {
		return nil
	}

	now := time.Now()
	if record.Schedule.NextRunAt != nil && record.Schedule.NextRunAt.After(now) {
		return nil
	}

	record.Stats.Collected++
	record.Stats.Processed++
	record.Stats.Succeeded++

	next := now.Add(time.Duration(record.Schedule.IntervalSeconds) * time.Second)
	record.Schedule.LastRunAt = &now
	record.Schedule.NextRunAt = &next

	d.logger.Info("cycle fired", "job_id", record.ID, "resource_key", record.ResourceKey, "next_run_at", next)

	return d.store.SaveProgress(ctx, record)
}
