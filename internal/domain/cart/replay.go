package cart

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ReplayStatus represents the status of a deferred mutation
type ReplayStatus string

const (
	ReplayStatusPending    ReplayStatus = "PENDING"
	ReplayStatusProcessing ReplayStatus = "PROCESSING"
	ReplayStatusReplayed   ReplayStatus = "REPLAYED"
	ReplayStatusFailed     ReplayStatus = "FAILED"
	ReplayStatusDropped    ReplayStatus = "DROPPED"
)

// Default retry configuration for replay entries
const (
	DefaultMaxReplayRetries  = 5
	DefaultReplayBaseBackoff = time.Second
)

// ReplayEntry is one mutation deferred during an offline period, stored
// for replay in original issuance order on reconnect
type ReplayEntry struct {
	ID          uuid.UUID
	SessionID   string
	Sequence    int64
	Mutation    Mutation
	Status      ReplayStatus
	RetryCount  int
	MaxRetries  int
	LastError   string
	NextRetryAt *time.Time
	ReplayedAt  *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewReplayEntry creates a pending replay entry for a deferred mutation
func NewReplayEntry(m Mutation) *ReplayEntry {
	now := time.Now()
	return &ReplayEntry{
		ID:         uuid.New(),
		SessionID:  m.SessionID,
		Mutation:   m,
		Status:     ReplayStatusPending,
		MaxRetries: DefaultMaxReplayRetries,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// CanRetry returns true if the entry may be retried
func (e *ReplayEntry) CanRetry() bool {
	return e.Status == ReplayStatusFailed && e.RetryCount < e.MaxRetries
}

// MarkProcessing marks the entry as being replayed
func (e *ReplayEntry) MarkProcessing() error {
	if e.Status != ReplayStatusPending && e.Status != ReplayStatusFailed {
		return errors.New("can only mark pending or failed entries as processing")
	}
	e.Status = ReplayStatusProcessing
	e.UpdatedAt = time.Now()
	return nil
}

// MarkReplayed marks the entry as successfully applied
func (e *ReplayEntry) MarkReplayed() {
	now := time.Now()
	e.Status = ReplayStatusReplayed
	e.ReplayedAt = &now
	e.UpdatedAt = now
}

// MarkFailed records a transient failure and schedules the next retry
// with exponential backoff; once retries are exhausted the entry is
// dropped rather than retried indefinitely
func (e *ReplayEntry) MarkFailed(errMsg string) {
	e.RetryCount++
	e.LastError = errMsg
	e.UpdatedAt = time.Now()

	if e.RetryCount >= e.MaxRetries {
		e.Status = ReplayStatusDropped
	} else {
		e.Status = ReplayStatusFailed
		backoff := DefaultReplayBaseBackoff * time.Duration(1<<uint(e.RetryCount-1))
		nextRetry := time.Now().Add(backoff)
		e.NextRetryAt = &nextRetry
	}
}

// MarkDropped permanently drops the entry with a recorded reason, used
// when replay fails in a way retrying cannot fix (the item no longer
// exists, the backend rejected the rule)
func (e *ReplayEntry) MarkDropped(reason string) {
	e.Status = ReplayStatusDropped
	e.LastError = reason
	e.UpdatedAt = time.Now()
}

// IsDropped returns true if the entry has been permanently dropped
func (e *ReplayEntry) IsDropped() bool {
	return e.Status == ReplayStatusDropped
}

// ReplayQueue persists mutations deferred while offline. FindPending
// returns entries in original issuance order.
type ReplayQueue interface {
	// Enqueue appends an entry to the session's queue
	Enqueue(ctx context.Context, entry *ReplayEntry) error
	// FindPending retrieves pending and retry-due entries for a session
	// in enqueue order, up to limit. Failed entries stay out until their
	// NextRetryAt has passed.
	FindPending(ctx context.Context, sessionID string, limit int) ([]*ReplayEntry, error)
	// Update persists a status change on an entry
	Update(ctx context.Context, entry *ReplayEntry) error
	// DeleteReplayed removes successfully replayed entries older than the cutoff
	DeleteReplayed(ctx context.Context, before time.Time) (int64, error)
	// CountPending returns the number of pending entries for a session
	CountPending(ctx context.Context, sessionID string) (int64, error)
}
