package simulator

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/sellsync/sellsync/internal/job"
)

// CreateJob inserts a fresh record, rejecting the insert when the resource
// already has a non-terminal job. The check and insert share one transaction
// so concurrent creates cannot both pass.
func (s *Store) CreateJob(ctx context.Context, record *job.Record) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		var existing string
		err := tx.QueryRow(
			ctx,
			`
			SELECT id
			FROM jobs
			WHERE resource_key = $1
				AND state NOT IN ('COMPLETED', 'FAILED', 'CANCELLED')
			FOR UPDATE
			`,
			record.ResourceKey,
		).Scan(&existing)

		if err == nil {
			return ErrDuplicateActiveJob
		}
		if err != pgx.ErrNoRows {
			return err
		}

		return insertJob(ctx, tx, record)
	})
}

func insertJob(ctx context.Context, tx pgx.Tx, record *job.Record) error {
	stages, schedule, statistics, err := encodeJobFields(record)
	if err != nil {
		return err
	}

	_, err = tx.Exec(
		ctx,
		`
		INSERT INTO jobs (
			id,
			resource_key,
			kind,
			state,
			stages,
			schedule,
			statistics
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		`,
		record.ID,
		record.ResourceKey,
		record.Kind,
		record.State,
		stages,
		schedule,
		statistics,
	)

	return err
}

// StartJob moves a created or paused job to RUNNING.
func (s *Store) StartJob(ctx context.Context, jobID uuid.UUID) error {
	return s.transitionGuarded(ctx, jobID, []string{"CREATED", "PAUSED"}, "RUNNING")
}

// StopJob moves a running job to PAUSED.
func (s *Store) StopJob(ctx context.Context, jobID uuid.UUID) error {
	return s.transitionGuarded(ctx, jobID, []string{"RUNNING"}, "PAUSED")
}

// CancelJob moves any non-terminal job to CANCELLED.
func (s *Store) CancelJob(ctx context.Context, jobID uuid.UUID) error {
	return s.transitionGuarded(ctx, jobID, []string{"CREATED", "RUNNING", "PAUSED"}, "CANCELLED")
}

func (s *Store) transitionGuarded(ctx context.Context, jobID uuid.UUID, fromStates []string, toState string) error {
	commandTag, err := s.connectionPool.Exec(
		ctx,
		`
		UPDATE jobs
		SET state = $2,
			updated_at = now()
		WHERE id = $1
			AND state = ANY($3)
		`,
		jobID,
		toState,
		fromStates,
	)
	if err != nil {
		return err
	}

	if commandTag.RowsAffected() == 0 {
		return ErrInvalidStateTransition
	}

	return nil
}

// RestartJob creates a brand-new record for the resource of a terminal job.
// The terminal record itself is never touched. The policy is recorded in the
// returned record's config only as a hint; clients cannot observe which units
// the replay actually skips.
func (s *Store) RestartJob(ctx context.Context, oldJobID uuid.UUID, policy string) (*job.Record, error) {
	var fresh *job.Record

	err := s.inTx(ctx, func(tx pgx.Tx) error {
		old, err := queryJob(ctx, tx, oldJobID)
		if err != nil {
			return err
		}
		if old == nil {
			return ErrJobNotFound
		}
		if !old.Terminal() {
			return ErrInvalidStateTransition
		}

		fresh = newRecordFrom(old, policy)

		return insertJob(ctx, tx, fresh)
	})
	if err != nil {
		return nil, err
	}

	return fresh, nil
}

// newRecordFrom builds the restart successor: same resource, same kind, fresh
// id, zeroed counters and stage progress.
func newRecordFrom(old *job.Record, policy string) *job.Record {
	now := time.Now()

	fresh := &job.Record{
		ID:          uuid.NewString(),
		ResourceKey: old.ResourceKey,
		Kind:        old.Kind,
		State:       job.StateCreated,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	for _, stage := range old.Stages {
		fresh.Stages = append(fresh.Stages, job.Stage{
			Name:       stage.Name,
			TotalUnits: stage.TotalUnits,
		})
	}

	if old.Schedule != nil {
		schedule := *old.Schedule
		schedule.NextRunAt = nil
		schedule.LastRunAt = nil
		fresh.Schedule = &schedule
	}

	_ = policy // opaque hint; the simulator replays everything either way

	return fresh
}

// GetJob returns nil when the job does not exist.
func (s *Store) GetJob(ctx context.Context, jobID uuid.UUID) (*job.Record, error) {
	var record *job.Record

	err := s.inTx(ctx, func(tx pgx.Tx) error {
		var err error
		record, err = queryJob(ctx, tx, jobID)
		return err
	})
	if err != nil {
		return nil, err
	}

	return record, nil
}

// ListJobs returns current snapshots, optionally filtered by resource key.
func (s *Store) ListJobs(ctx context.Context, resourceKey string, limit int) ([]*job.Record, error) {
	query := `
		SELECT ` + jobColumns + `
		FROM jobs
		WHERE ($1 = '' OR resource_key = $1)
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := s.connectionPool.Query(ctx, query, resourceKey, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*job.Record
	for rows.Next() {
		record, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	return records, rows.Err()
}

// ListRunning returns the jobs the progress driver should advance.
func (s *Store) ListRunning(ctx context.Context) ([]*job.Record, error) {
	rows, err := s.connectionPool.Query(ctx, `
		SELECT `+jobColumns+`
		FROM jobs
		WHERE state = 'RUNNING'
		ORDER BY created_at
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*job.Record
	for rows.Next() {
		record, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	return records, rows.Err()
}

// SaveProgress persists stage and counter movement for a job that is still
// running. A job that was cancelled or stopped mid-tick is left alone.
func (s *Store) SaveProgress(ctx context.Context, record *job.Record) error {
	stages, schedule, statistics, err := encodeJobFields(record)
	if err != nil {
		return err
	}

	_, err = s.connectionPool.Exec(
		ctx,
		`
		UPDATE jobs
		SET stages = $2,
			schedule = $3,
			statistics = $4,
			updated_at = now()
		WHERE id = $1
			AND state = 'RUNNING'
		`,
		record.ID,
		stages,
		schedule,
		statistics,
	)

	return err
}

// CompleteJob marks a running job COMPLETED.
func (s *Store) CompleteJob(ctx context.Context, jobID uuid.UUID) error {
	return s.transitionGuarded(ctx, jobID, []string{"RUNNING"}, "COMPLETED")
}

// FailJob marks a running job FAILED with a message.
func (s *Store) FailJob(ctx context.Context, jobID uuid.UUID, message string) error {
	commandTag, err := s.connectionPool.Exec(
		ctx,
		`
		UPDATE jobs
		SET state = 'FAILED',
			error_message = $2,
			updated_at = now()
		WHERE id = $1
			AND state = 'RUNNING'
		`,
		jobID,
		message,
	)
	if err != nil {
		return err
	}

	if commandTag.RowsAffected() == 0 {
		return ErrInvalidStateTransition
	}

	return nil
}

const jobColumns = `
	id,
	resource_key,
	kind,
	state,
	stages,
	schedule,
	statistics,
	error_message,
	created_at,
	updated_at
`

func queryJob(ctx context.Context, tx pgx.Tx, jobID uuid.UUID) (*job.Record, error) {
	row := tx.QueryRow(ctx, `
		SELECT `+jobColumns+`
		FROM jobs
		WHERE id = $1
	`, jobID)

	record, err := scanJob(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}

		return nil, err
	}

	return record, nil
}

func scanJob(row pgx.Row) (*job.Record, error) {
	var (
		record     job.Record
		id         uuid.UUID
		stages     []byte
		schedule   []byte
		statistics []byte
	)

	err := row.Scan(
		&id,
		&record.ResourceKey,
		&record.Kind,
		&record.State,
		&stages,
		&schedule,
		&statistics,
		&record.ErrorMessage,
		&record.CreatedAt,
		&record.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	record.ID = id.String()

	if len(stages) > 0 {
		if err := json.Unmarshal(stages, &record.Stages); err != nil {
			return nil, fmt.Errorf("decode stages: %w", err)
		}
	}
	if len(schedule) > 0 {
		if err := json.Unmarshal(schedule, &record.Schedule); err != nil {
			return nil, fmt.Errorf("decode schedule: %w", err)
		}
	}
	if len(statistics) > 0 {
		if err := json.Unmarshal(statistics, &record.Stats); err != nil {
			return nil, fmt.Errorf("decode statistics: %w", err)
		}
	}

	return &record, nil
}

func encodeJobFields(record *job.Record) (stages, schedule, statistics []byte, err error) {
	if record.Stages != nil {
		stages, err = json.Marshal(record.Stages)
		if err != nil {
			return nil, nil, nil, err
		}
	}

	if record.Schedule != nil {
		schedule, err = json.Marshal(record.Schedule)
		if err != nil {
			return nil, nil, nil, err
		}
	}

	statistics, err = json.Marshal(record.Stats)
	if err != nil {
		return nil, nil, nil, err
	}

	return stages, schedule, statistics, nil
}
