// Package control issues lifecycle-mutating commands against the backend and
// reconciles local state optimistically. It is the only component allowed to
// transition a record's lifecycle.
package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/sellsync/sellsync/internal/client"
	"github.com/sellsync/sellsync/internal/job"
	"github.com/sellsync/sellsync/internal/registry"
)

// API is the command surface of the backend client.
type API interface {
	CreateJob(ctx context.Context, params client.CreateJobParams) (*job.Record, error)
	StartJob(ctx context.Context, jobID string) (*job.Record, error)
	StopJob(ctx context.Context, jobID string) (*job.Record, error)
	CancelJob(ctx context.Context, jobID string) (*job.Record, error)
	RestartJob(ctx context.Context, jobID string, policy client.RestartPolicy) (*job.Record, error)
}

// Watcher is the synchronizer surface the controller drives.
type Watcher interface {
	Start(scope string)
	Stop(scope string)
}

// Controller issues lifecycle commands and applies optimistic local state
// that the next successful poll reconciles.
type Controller struct {
	api      API
	registry *registry.Registry
	watcher  Watcher
	logger   *slog.Logger

	// commandTimeout bounds each command so the UI can re-enable controls
	// and rely on the next poll instead of hanging.
	commandTimeout time.Duration

	mu       sync.Mutex
	inflight map[string]struct{}
}

func New(api API, reg *registry.Registry, watcher Watcher, logger *slog.Logger) *Controller {
	return &Controller{
		api:            api,
		registry:       reg,
		watcher:        watcher,
		logger:         logger,
		commandTimeout: 10 * time.Second,
		inflight:       make(map[string]struct{}),
	}
}

// Create starts tracking a new unit of work for a resource. It rejects the
// request locally when a non-terminal record already exists for the key, so
// duplicate concurrent work is impossible regardless of backend behaviour.
func (c *Controller) Create(ctx context.Context, params client.CreateJobParams) (*job.Record, error) {
	if params.ResourceKey == "" {
		return nil, &client.ValidationError{Message: "resource key is required"}
	}

	if existing, ok := c.registry.Get(params.ResourceKey); ok && !existing.Terminal() {
		return nil, &client.ConflictError{
			Message: fmt.Sprintf("resource %s already has an active job %s", params.ResourceKey, existing.ID),
		}
	}

	ctx, cancel := context.WithTimeout(ctx, c.commandTimeout)
	defer cancel()

	record, err := c.api.CreateJob(ctx, params)
	if err != nil {
		return nil, err
	}

	c.registry.Seed(record)
	c.watcher.Start(record.ResourceKey)

	c.logger.Info("job created", "job_id", record.ID, "resource_key", record.ResourceKey, "kind", record.Kind)

	return record, nil
}

// Toggle starts a paused or created job and stops a running one, as a single
// intent. A second toggle on the same id while one is in flight is rejected
// so double submission is impossible.
func (c *Controller) Toggle(ctx context.Context, jobID string) (*job.Record, error) {
	if err := c.acquire(jobID); err != nil {
		return nil, err
	}
	defer c.release(jobID)

	record, ok := c.registry.GetByID(jobID)
	if !ok {
		return nil, &client.ValidationError{Message: "unknown job " + jobID}
	}

	var (
		command func(context.Context, string) (*job.Record, error)
		target  job.State
	)

	switch record.State {
	case job.StateRunning:
		command, target = c.api.StopJob, job.StatePaused
	case job.StatePaused, job.StateCreated:
		command, target = c.api.StartJob, job.StateRunning
	default:
		// Terminal records cannot toggle; short-circuit instead of
		// issuing a doomed request.
		return nil, fmt.Errorf("toggle %s: %w: state %s", jobID, job.ErrInvalidTransition, record.State)
	}

	if err := job.ValidateTransition(record.State, target); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.commandTimeout)
	defer cancel()

	if _, err := command(ctx, jobID); err != nil {
		return nil, err
	}

	c.registry.ApplyOptimistic(jobID, target)
	c.logger.Info("job toggled", "job_id", jobID, "state", target)

	updated, _ := c.registry.GetByID(jobID)

	return updated, nil
}

// Cancel is valid only while the job is running. The optimistic cancelled
// state is reconciled, not overridden, by the next successful poll.
func (c *Controller) Cancel(ctx context.Context, jobID string) (*job.Record, error) {
	record, ok := c.registry.GetByID(jobID)
	if !ok {
		return nil, &client.ValidationError{Message: "unknown job " + jobID}
	}

	if record.State != job.StateRunning {
		return nil, fmt.Errorf("cancel %s: %w: state %s", jobID, job.ErrInvalidTransition, record.State)
	}

	ctx, cancel := context.WithTimeout(ctx, c.commandTimeout)
	defer cancel()

	if _, err := c.api.CancelJob(ctx, jobID); err != nil {
		return nil, err
	}

	c.registry.ApplyOptimistic(jobID, job.StateCancelled)
	c.logger.Info("job cancelled", "job_id", jobID)

	updated, _ := c.registry.GetByID(jobID)

	return updated, nil
}

// Restart asks the backend for a brand-new record for the same resource. The
// old terminal record is never mutated; the policy is an opaque hint and the
// client makes no assumption about which units the backend skips.
func (c *Controller) Restart(ctx context.Context, jobID string, policy client.RestartPolicy) (*job.Record, error) {
	record, ok := c.registry.GetByID(jobID)
	if !ok {
		return nil, &client.ValidationError{Message: "unknown job " + jobID}
	}

	if !record.Terminal() {
		return nil, fmt.Errorf("restart %s: %w: state %s is not terminal", jobID, job.ErrInvalidTransition, record.State)
	}

	ctx, cancel := context.WithTimeout(ctx, c.commandTimeout)
	defer cancel()

	fresh, err := c.api.RestartJob(ctx, jobID, policy)
	if err != nil {
		return nil, err
	}

	c.registry.Seed(fresh)
	c.watcher.Start(fresh.ResourceKey)

	c.logger.Info("job restarted", "old_job_id", jobID, "job_id", fresh.ID, "policy", string(policy))

	return fresh, nil
}

// Remove drops a resource from the registry and stops watching it.
func (c *Controller) Remove(resourceKey string) {
	c.registry.Remove(resourceKey)
	c.watcher.Stop(resourceKey)
}

// BulkToggleAll drives every tracked record toward the desired state, skipping
// records that already agree and tolerating partial failure: one failed
// sub-command never aborts the rest.
func (c *Controller) BulkToggleAll(ctx context.Context, desired job.State) (*BulkResult, error) {
	if desired != job.StateRunning && desired != job.StatePaused {
		return nil, &client.ValidationError{Message: "desired state must be RUNNING or PAUSED"}
	}

	records := c.registry.Snapshot()
	sort.Slice(records, func(i, j int) bool {
		return records[i].ResourceKey < records[j].ResourceKey
	})

	result := &BulkResult{Outcomes: make(map[string]error)}

	for _, record := range records {
		if record.Terminal() || record.State == desired {
			continue
		}
		if desired == job.StateRunning && record.State != job.StatePaused && record.State != job.StateCreated {
			continue
		}
		if desired == job.StatePaused && record.State != job.StateRunning {
			continue
		}

		result.Requested++

		if _, err := c.Toggle(ctx, record.ID); err != nil {
			result.Failed++
			result.Outcomes[record.ResourceKey] = err
			c.logger.Warn("bulk toggle sub-command failed",
				"resource_key", record.ResourceKey, "job_id", record.ID, "err", err)
			continue
		}

		result.Succeeded++
		result.Outcomes[record.ResourceKey] = nil
	}

	if result.Failed > 0 {
		return result, &PartialFailure{Succeeded: result.Succeeded, Failed: result.Failed}
	}

	return result, nil
}

func (c *Controller) acquire(jobID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, busy := c.inflight[jobID]; busy {
		return &client.ValidationError{Message: "a command for job " + jobID + " is already in flight"}
	}
	c.inflight[jobID] = struct{}{}

	return nil
}

func (c *Controller) release(jobID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.inflight, jobID)
}

// IsConflict reports whether err is a duplicate-create or invalid-transition
// rejection, which is never retried automatically.
func IsConflict(err error) bool {
	var conflict *client.ConflictError
	return errors.As(err, &conflict) || errors.Is(err, job.ErrInvalidTransition)
}
