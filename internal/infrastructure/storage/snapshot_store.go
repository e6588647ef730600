package storage

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/zeno/cartsync/internal/domain/cart"
)

// SqliteSnapshotStore implements cart.SnapshotStore over the local
// sqlite database. Load never surfaces corruption to the caller: a
// missing row yields an empty cart, and an unreadable or legacy payload
// is upgraded through the normalizer and written back.
type SqliteSnapshotStore struct {
	db         *gorm.DB
	normalizer *cart.Normalizer
	logger     *zap.Logger
}

// NewSqliteSnapshotStore creates a snapshot store backed by sqlite
func NewSqliteSnapshotStore(db *Database, normalizer *cart.Normalizer, logger *zap.Logger) *SqliteSnapshotStore {
	return &SqliteSnapshotStore{db: db.DB, normalizer: normalizer, logger: logger}
}

// Load reads the session's cart. The zero value for a session with no
// stored state is an empty cart, never an error.
func (s *SqliteSnapshotStore) Load(ctx context.Context, sessionID string) (*cart.Cart, error) {
	var row snapshotModel
	err := s.db.WithContext(ctx).First(&row, "session_id = ?", sessionID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return cart.NewCart(sessionID), nil
	}
	if err != nil {
		return nil, err
	}

	c := &cart.Cart{}
	if err := json.Unmarshal(row.Payload, c); err == nil && canonical(c, sessionID) {
		c.RecalculateTotals()
		return c, nil
	}

	return s.upgrade(ctx, sessionID, row.Payload), nil
}

// canonical reports whether the decoded snapshot is in the current
// shape. Legacy payloads decode partially, so each line is checked, not
// just the envelope.
func canonical(c *cart.Cart, sessionID string) bool {
	if c.SessionID != sessionID || c.Items == nil {
		return false
	}
	for idx := range c.Items {
		item := &c.Items[idx]
		if item.ItemID == uuid.Nil || item.CatalogItemID == "" || !item.Kind.IsValid() || item.Quantity < 1 {
			return false
		}
	}
	return true
}

// upgrade salvages whatever the stored payload still holds; items the
// normalizer cannot make sense of are dropped rather than poisoning
// every future read
func (s *SqliteSnapshotStore) upgrade(ctx context.Context, sessionID string, payload []byte) *cart.Cart {
	var raw any
	if err := json.Unmarshal(payload, &raw); err != nil {
		s.logger.Warn("discarding unreadable cart snapshot",
			zap.String("session_id", sessionID),
			zap.Error(err),
		)
		raw = nil
	}

	upgraded := s.normalizer.NormalizeCart(sessionID, raw)
	if err := s.Save(ctx, upgraded); err != nil {
		s.logger.Error("failed to persist upgraded cart snapshot",
			zap.String("session_id", sessionID),
			zap.Error(err),
		)
	} else {
		s.logger.Info("upgraded legacy cart snapshot",
			zap.String("session_id", sessionID),
			zap.Int("items_recovered", len(upgraded.Items)),
		)
	}
	return upgraded
}

// Save writes the whole cart as one document
func (s *SqliteSnapshotStore) Save(ctx context.Context, c *cart.Cart) error {
	payload, err := json.Marshal(c)
	if err != nil {
		return err
	}

	row := snapshotModel{
		SessionID: c.SessionID,
		Payload:   payload,
		UpdatedAt: time.Now(),
	}
	return s.db.WithContext(ctx).Save(&row).Error
}

// Clear removes the session's stored cart
func (s *SqliteSnapshotStore) Clear(ctx context.Context, sessionID string) error {
	return s.db.WithContext(ctx).Delete(&snapshotModel{}, "session_id = ?", sessionID).Error
}
