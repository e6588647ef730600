package storage

import "time"

// snapshotModel is the persisted cart: one row per session holding the
// whole cart as a JSON document. The cart is always written and read as
// a single object, never per field.
type snapshotModel struct {
	SessionID string    `gorm:"primaryKey;size:128"`
	Payload   []byte    `gorm:"type:blob;not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (snapshotModel) TableName() string {
	return "cart_snapshots"
}

// replayModel is one deferred mutation. Sequence is the auto-assigned
// insertion order, which is the order replay must follow.
type replayModel struct {
	Sequence    int64  `gorm:"primaryKey;autoIncrement"`
	EntryID     string `gorm:"size:36;uniqueIndex;not null"`
	SessionID   string `gorm:"size:128;index;not null"`
	Mutation    []byte `gorm:"type:blob;not null"`
	Status      string `gorm:"size:16;index;not null"`
	RetryCount  int    `gorm:"not null;default:0"`
	MaxRetries  int    `gorm:"not null"`
	LastError   string
	NextRetryAt *time.Time
	ReplayedAt  *time.Time
	CreatedAt   time.Time `gorm:"not null"`
	UpdatedAt   time.Time `gorm:"not null"`
}

func (replayModel) TableName() string {
	return "replay_entries"
}
