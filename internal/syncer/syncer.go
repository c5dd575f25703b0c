// Package syncer keeps local job records up to date by periodic re-fetch.
//
// Each watched scope (one resource key, or all of them) gets its own loop.
// Polls within a loop are strictly sequential, and stopping a loop is
// effective synchronously: a poll already in flight when Stop returns can no
// longer publish.
package syncer

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sellsync/sellsync/internal/job"
	"github.com/sellsync/sellsync/internal/registry"
)

// ScopeAll watches every resource in one loop.
const ScopeAll = ""

// Fetcher is the read side of the backend API.
type Fetcher interface {
	ListJobs(ctx context.Context, resourceKey string) ([]*job.Record, error)
}

// Subscriber receives every record accepted into the registry. Subscribers
// run on the poll loop and must not call back into the Synchronizer.
type Subscriber func(record *job.Record)

// Config holds the cadence knobs. Zero values take defaults.
type Config struct {
	// FastInterval applies while any watched record is non-terminal.
	FastInterval time.Duration
	// SlowInterval applies once all watched records are terminal.
	SlowInterval time.Duration
	// PollTimeout bounds a single fetch.
	PollTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.FastInterval <= 0 {
		c.FastInterval = 3 * time.Second
	}
	if c.SlowInterval <= 0 {
		c.SlowInterval = 30 * time.Second
	}
	if c.PollTimeout <= 0 {
		c.PollTimeout = 10 * time.Second
	}

	return c
}

type loop struct {
	scope  string
	epoch  uint64
	ctx    context.Context
	cancel context.CancelFunc
}

// Synchronizer runs the poll loops and publishes accepted snapshots.
type Synchronizer struct {
	fetcher  Fetcher
	registry *registry.Registry
	logger   *slog.Logger
	cfg      Config

	stamp atomic.Uint64

	mu          sync.Mutex
	loops       map[string]*loop
	nextEpoch   uint64
	subscribers []Subscriber
}

func New(fetcher Fetcher, reg *registry.Registry, logger *slog.Logger, cfg Config) *Synchronizer {
	return &Synchronizer{
		fetcher:  fetcher,
		registry: reg,
		logger:   logger,
		cfg:      cfg.withDefaults(),
		loops:    make(map[string]*loop),
	}
}

// Subscribe registers a callback for accepted record updates.
func (s *Synchronizer) Subscribe(fn Subscriber) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.subscribers = append(s.subscribers, fn)
}

// Start begins watching a scope. Calling Start for a scope that is already
// watched is a no-op.
func (s *Synchronizer) Start(scope string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.loops[scope]; ok {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.nextEpoch++
	lp := &loop{
		scope:  scope,
		epoch:  s.nextEpoch,
		ctx:    ctx,
		cancel: cancel,
	}
	s.loops[scope] = lp

	s.logger.Info("watch started", "scope", scopeLabel(scope), "epoch", lp.epoch)

	go s.run(lp)
}

// Stop ends the loop for a scope. Once Stop returns, no subscriber fires for
// that loop: the publish path re-checks the loop's epoch under the same mutex
// Stop holds, so a poll that was in flight is discarded on arrival.
func (s *Synchronizer) Stop(scope string) {
	s.mu.Lock()
	lp, ok := s.loops[scope]
	if !ok {
		s.mu.Unlock()
		return
	}
	delete(s.loops, scope)
	lp.cancel()
	s.mu.Unlock()

	s.logger.Info("watch stopped", "scope", scopeLabel(scope), "epoch", lp.epoch)
}

// StopAll ends every loop.
func (s *Synchronizer) StopAll() {
	s.mu.Lock()
	loops := make([]*loop, 0, len(s.loops))
	for scope, lp := range s.loops {
		loops = append(loops, lp)
		delete(s.loops, scope)
	}
	s.mu.Unlock()

	for _, lp := range loops {
		lp.cancel()
	}
}

// Watching reports whether a scope currently has a loop.
func (s *Synchronizer) Watching(scope string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.loops[scope]
	return ok
}

func (s *Synchronizer) run(lp *loop) {
	// First poll fires immediately; afterwards the cadence follows the
	// terminality of what the poll saw.
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-lp.ctx.Done():
			return
		case <-timer.C:
		}

		records, err := s.poll(lp)
		timer.Reset(s.nextInterval(records, err))
	}
}

func (s *Synchronizer) poll(lp *loop) ([]*job.Record, error) {
	ctx, cancel := context.WithTimeout(lp.ctx, s.cfg.PollTimeout)
	defer cancel()

	pollsTotal.WithLabelValues(scopeLabel(lp.scope)).Inc()

	records, err := s.fetcher.ListJobs(ctx, lp.scope)
	if err != nil {
		// Stale-but-valid beats blank: the registry keeps its last
		// known good snapshot and subscribers hear nothing.
		pollFailuresTotal.WithLabelValues(scopeLabel(lp.scope)).Inc()
		s.logger.Warn("poll failed, keeping last known state",
			"scope", scopeLabel(lp.scope), "err", err)
		return nil, err
	}

	s.publish(lp, records)

	return records, nil
}

func (s *Synchronizer) publish(lp *loop, records []*job.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.loops[lp.scope]
	if !ok || current.epoch != lp.epoch {
		staleDropsTotal.Inc()
		return
	}

	stamp := s.stamp.Add(1)
	for _, record := range records {
		if s.registry.Upsert(record, stamp) {
			for _, fn := range s.subscribers {
				fn(record)
			}
		}
	}
}

// nextInterval picks the cadence for the next poll: fast while anything is
// still non-terminal, slow once all watched work is done. A failed poll keeps
// the fast cadence so recovery is noticed promptly.
func (s *Synchronizer) nextInterval(records []*job.Record, err error) time.Duration {
	if err != nil {
		return s.cfg.FastInterval
	}

	for _, record := range records {
		if record != nil && !record.Terminal() {
			return s.cfg.FastInterval
		}
	}

	return s.cfg.SlowInterval
}
