// Package confirm implements the human-paced review queue: a fixed list of
// items walked front to back, each requiring an explicit confirm or skip
// decision before the next is offered.
package confirm

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/sellsync/sellsync/internal/client"
)

// State is the queue lifecycle. Active is the only state in which decisions
// are valid.
type State string

const (
	StateIdle      State = "IDLE"
	StateActive    State = "ACTIVE"
	StateExhausted State = "EXHAUSTED"
	StateAborted   State = "ABORTED"
)

// Item is one unit awaiting a decision. Key is the stable backend identifier
// used for the submission call; Payload is opaque display data.
type Item struct {
	Key     string
	Payload map[string]any
}

// Summary is emitted exactly once, when the walk ends.
type Summary struct {
	Confirmed int
	Skipped   int
	Failed    int
	Total     int
}

// Snapshot is the queue state handed to the change callback.
type Snapshot struct {
	State     State
	Cursor    int
	Total     int
	Confirmed int
	Skipped   int
	Failed    int
	Current   *Item
}

// Submitter performs the side-effecting submission for a single item.
type Submitter interface {
	SubmitQueueItem(ctx context.Context, itemKey string) (*client.SubmitResult, error)
}

// Config wires the queue's collaborators and callbacks.
type Config struct {
	Submitter Submitter
	Logger    *slog.Logger
	// OnChange fires after every state change.
	OnChange func(Snapshot)
	// OnSummary fires once when the queue exhausts or aborts.
	OnSummary func(Summary)
}

// Queue walks a fixed item list under explicit human decisions. The cursor
// only moves forward; abandoning mid-queue discards the remaining items.
type Queue struct {
	submitter Submitter
	logger    *slog.Logger
	onChange  func(Snapshot)
	onSummary func(Summary)

	mu        sync.Mutex
	state     State
	items     []Item
	cursor    int
	confirmed int
	skipped   int
	failed    int
	inflight  bool
}

func New(cfg Config) *Queue {
	return &Queue{
		submitter: cfg.Submitter,
		logger:    cfg.Logger,
		onChange:  cfg.OnChange,
		onSummary: cfg.OnSummary,
		state:     StateIdle,
	}
}

// Begin arms the queue with items to review. An empty list is rejected and
// the queue stays idle.
func (q *Queue) Begin(items []Item) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.state == StateActive {
		return &client.ValidationError{Message: "queue is already active"}
	}
	if len(items) == 0 {
		return &client.ValidationError{Message: "no items to review"}
	}

	q.items = make([]Item, len(items))
	copy(q.items, items)
	q.cursor = 0
	q.confirmed = 0
	q.skipped = 0
	q.failed = 0
	q.state = StateActive

	q.notifyLocked()

	return nil
}

// ConfirmCurrent submits the current item. A failed submission is surfaced to
// the caller but still advances the cursor: the walk never stalls on one
// item, and it is never retried in place.
func (q *Queue) ConfirmCurrent(ctx context.Context) error {
	q.mu.Lock()
	if err := q.decisionAllowedLocked(); err != nil {
		q.mu.Unlock()
		return err
	}
	item := q.items[q.cursor]
	q.inflight = true
	q.mu.Unlock()

	result, err := q.submitter.SubmitQueueItem(ctx, item.Key)
	if err == nil && result != nil && !result.Success {
		err = fmt.Errorf("submission rejected: %s", result.Message)
	}

	q.mu.Lock()
	q.inflight = false
	if q.state != StateActive {
		// Aborted while the submission was in flight. The late result is
		// dropped; the summary already carried the counts as of the abort.
		q.mu.Unlock()
		return err
	}
	if err != nil {
		q.failed++
		if q.logger != nil {
			q.logger.Warn("item submission failed, advancing anyway", "item_key", item.Key, "err", err)
		}
	} else {
		q.confirmed++
	}
	q.advanceLocked()
	q.mu.Unlock()

	return err
}

// SkipCurrent advances past the current item without any backend call.
func (q *Queue) SkipCurrent() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if err := q.decisionAllowedLocked(); err != nil {
		return err
	}

	q.skipped++
	q.advanceLocked()

	return nil
}

// Abort discards the remaining items. Counts already recorded are preserved
// in the summary.
func (q *Queue) Abort() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.state != StateActive {
		return &client.ValidationError{Message: "queue is not active"}
	}

	q.state = StateAborted
	q.emitSummaryLocked()
	q.notifyLocked()

	return nil
}

// Current returns the item awaiting a decision.
func (q *Queue) Current() (Item, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.state != StateActive || q.cursor >= len(q.items) {
		return Item{}, false
	}

	return q.items[q.cursor], true
}

// Snapshot returns the current queue state.
func (q *Queue) Snapshot() Snapshot {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.snapshotLocked()
}

func (q *Queue) decisionAllowedLocked() error {
	if q.state != StateActive {
		return &client.ValidationError{Message: "queue is not active"}
	}
	if q.inflight {
		// Double submission on the same item must be impossible.
		return &client.ValidationError{Message: "a decision is already in flight"}
	}

	return nil
}

func (q *Queue) advanceLocked() {
	q.cursor++

	if q.cursor >= len(q.items) {
		q.state = StateExhausted
		q.emitSummaryLocked()
	}

	q.notifyLocked()
}

func (q *Queue) emitSummaryLocked() {
	summary := Summary{
		Confirmed: q.confirmed,
		Skipped:   q.skipped,
		Failed:    q.failed,
		Total:     len(q.items),
	}

	if q.logger != nil {
		q.logger.Info("review finished",
			"state", string(q.state),
			"confirmed", summary.Confirmed,
			"skipped", summary.Skipped,
			"failed", summary.Failed,
			"total", summary.Total)
	}

	if q.onSummary != nil {
		q.onSummary(summary)
	}
}

func (q *Queue) notifyLocked() {
	if q.onChange == nil {
		return
	}

	q.onChange(q.snapshotLocked())
}

func (q *Queue) snapshotLocked() Snapshot {
	snapshot := Snapshot{
		State:     q.state,
		Cursor:    q.cursor,
		Total:     len(q.items),
		Confirmed: q.confirmed,
		Skipped:   q.skipped,
		Failed:    q.failed,
	}

	if q.state == StateActive && q.cursor < len(q.items) {
		item := q.items[q.cursor]
		snapshot.Current = &item
	}

	return snapshot
}
