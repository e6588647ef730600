package shared

import (
	"context"
	"time"
)

// IdempotencyStore records keys that have already been acted on, so a
// retried checkout submission or a redelivered event produces exactly
// one side effect
type IdempotencyStore interface {
	// MarkProcessed marks a key as used with a TTL.
	// Returns true if the key was newly marked, false if it was already used.
	MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// IsProcessed checks whether a key has already been used
	IsProcessed(ctx context.Context, key string) (bool, error)

	// Release frees a key reserved by MarkProcessed, so an attempt that
	// failed before producing its side effect can be retried with the
	// same key
	Release(ctx context.Context, key string) error

	// Close releases the store's resources
	Close() error
}

// IdempotencyConfig holds configuration for idempotency handling
type IdempotencyConfig struct {
	// TTL is how long a used key stays reserved; after it expires the
	// same key may be acted on again
	TTL time.Duration

	// Enabled determines whether idempotency checking is enabled
	Enabled bool
}

// DefaultIdempotencyConfig returns the default idempotency configuration
func DefaultIdempotencyConfig() IdempotencyConfig {
	return IdempotencyConfig{
		TTL:     24 * time.Hour,
		Enabled: true,
	}
}
