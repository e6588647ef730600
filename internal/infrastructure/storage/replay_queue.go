package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/zeno/cartsync/internal/domain/cart"
)

// GormReplayQueue implements cart.ReplayQueue over sqlite. Insertion
// order is the replay order: the auto-incremented sequence preserves it
// across process restarts.
type GormReplayQueue struct {
	db *gorm.DB
}

// NewGormReplayQueue creates a replay queue backed by sqlite
func NewGormReplayQueue(db *Database) *GormReplayQueue {
	return &GormReplayQueue{db: db.DB}
}

// Enqueue appends an entry to the session's queue
func (q *GormReplayQueue) Enqueue(ctx context.Context, entry *cart.ReplayEntry) error {
	row, err := toReplayModel(entry)
	if err != nil {
		return err
	}
	if err := q.db.WithContext(ctx).Create(row).Error; err != nil {
		return err
	}
	entry.Sequence = row.Sequence
	return nil
}

// FindPending retrieves pending and retryable entries for a session in
// enqueue order. A failed entry is excluded until its scheduled retry
// time has passed, so the persisted backoff holds across restarts. A
// limit of zero means no limit.
func (q *GormReplayQueue) FindPending(ctx context.Context, sessionID string, limit int) ([]*cart.ReplayEntry, error) {
	var rows []replayModel
	query := q.db.WithContext(ctx).
		Where("session_id = ? AND status IN ?", sessionID,
			[]string{string(cart.ReplayStatusPending), string(cart.ReplayStatusFailed)}).
		Where("next_retry_at IS NULL OR next_retry_at <= ?", time.Now()).
		Order("sequence ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}

	entries := make([]*cart.ReplayEntry, 0, len(rows))
	for idx := range rows {
		entry, err := toReplayEntry(&rows[idx])
		if err != nil {
			// An undecodable entry cannot ever be replayed
			q.db.WithContext(ctx).Model(&replayModel{}).
				Where("sequence = ?", rows[idx].Sequence).
				Updates(map[string]any{
					"status":     string(cart.ReplayStatusDropped),
					"last_error": "undecodable mutation payload",
					"updated_at": time.Now(),
				})
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Update persists a status change on an entry
func (q *GormReplayQueue) Update(ctx context.Context, entry *cart.ReplayEntry) error {
	entry.UpdatedAt = time.Now()
	return q.db.WithContext(ctx).Model(&replayModel{}).
		Where("entry_id = ?", entry.ID.String()).
		Updates(map[string]any{
			"status":        string(entry.Status),
			"retry_count":   entry.RetryCount,
			"last_error":    entry.LastError,
			"next_retry_at": entry.NextRetryAt,
			"replayed_at":   entry.ReplayedAt,
			"updated_at":    entry.UpdatedAt,
		}).Error
}

// DeleteReplayed removes successfully replayed entries older than the cutoff
func (q *GormReplayQueue) DeleteReplayed(ctx context.Context, before time.Time) (int64, error) {
	result := q.db.WithContext(ctx).
		Where("status = ? AND updated_at < ?", string(cart.ReplayStatusReplayed), before).
		Delete(&replayModel{})
	return result.RowsAffected, result.Error
}

// CountPending returns the number of pending entries for a session
func (q *GormReplayQueue) CountPending(ctx context.Context, sessionID string) (int64, error) {
	var count int64
	err := q.db.WithContext(ctx).Model(&replayModel{}).
		Where("session_id = ? AND status IN ?", sessionID,
			[]string{string(cart.ReplayStatusPending), string(cart.ReplayStatusFailed)}).
		Count(&count).Error
	return count, err
}

func toReplayModel(entry *cart.ReplayEntry) (*replayModel, error) {
	mutation, err := json.Marshal(entry.Mutation)
	if err != nil {
		return nil, err
	}
	return &replayModel{
		EntryID:     entry.ID.String(),
		SessionID:   entry.SessionID,
		Mutation:    mutation,
		Status:      string(entry.Status),
		RetryCount:  entry.RetryCount,
		MaxRetries:  entry.MaxRetries,
		LastError:   entry.LastError,
		NextRetryAt: entry.NextRetryAt,
		ReplayedAt:  entry.ReplayedAt,
		CreatedAt:   entry.CreatedAt,
		UpdatedAt:   entry.UpdatedAt,
	}, nil
}

func toReplayEntry(row *replayModel) (*cart.ReplayEntry, error) {
	id, err := uuid.Parse(row.EntryID)
	if err != nil {
		return nil, err
	}
	var mutation cart.Mutation
	if err := json.Unmarshal(row.Mutation, &mutation); err != nil {
		return nil, err
	}
	return &cart.ReplayEntry{
		ID:          id,
		SessionID:   row.SessionID,
		Sequence:    row.Sequence,
		Mutation:    mutation,
		Status:      cart.ReplayStatus(row.Status),
		RetryCount:  row.RetryCount,
		MaxRetries:  row.MaxRetries,
		LastError:   row.LastError,
		NextRetryAt: row.NextRetryAt,
		ReplayedAt:  row.ReplayedAt,
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}, nil
}
