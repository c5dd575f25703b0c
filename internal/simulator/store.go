// Package simulator is a development backend for the engine: it serves the
// job API over Postgres and advances running jobs on a timer so the dashboard
// core can be exercised without the production automation services.
package simulator

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// All job state changes MUST go through the guarded UPDATEs in jobs.go.
// A direct UPDATE of jobs.state elsewhere is a correctness bug.

var (
	ErrInvalidStateTransition = errors.New("invalid job state transition")
	ErrDuplicateActiveJob     = errors.New("resource already has an active job")
	ErrJobNotFound            = errors.New("job not found")
)

type Store struct {
	connectionPool *pgxpool.Pool
}

func NewStore(ctx context.Context, databaseURL string) (*Store, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, err
	}

	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = time.Hour

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, err
	}

	return &Store{connectionPool: pool}, nil
}

// EnsureSchema creates the jobs table when missing. The simulator owns its
// schema; production backends do not.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.connectionPool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS jobs (
			id uuid PRIMARY KEY,
			resource_key text NOT NULL,
			kind text NOT NULL,
			state text NOT NULL,
			stages jsonb,
			schedule jsonb,
			statistics jsonb NOT NULL DEFAULT '{}',
			error_message text NOT NULL DEFAULT '',
			created_at timestamptz NOT NULL DEFAULT now(),
			updated_at timestamptz NOT NULL DEFAULT now()
		);

		CREATE INDEX IF NOT EXISTS jobs_resource_key_idx ON jobs (resource_key);
		CREATE INDEX IF NOT EXISTS jobs_state_idx ON jobs (state);
	`)

	return err
}

func (s *Store) Close() {
	s.connectionPool.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.connectionPool.Ping(ctx)
}
