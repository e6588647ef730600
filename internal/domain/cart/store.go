package cart

import "context"

// SnapshotStore persists the cart as one whole object per session.
// It is the sole source of truth for guest sessions and the optimistic
// cache for authenticated ones.
//
// Load never surfaces corruption to the caller: a missing, corrupt or
// legacy-shaped snapshot is detected, upgraded through the Normalizer
// and persisted back, so reads always succeed with a canonical cart.
// Save writes the whole object; there are no partial patches.
type SnapshotStore interface {
	Load(ctx context.Context, sessionID string) (*Cart, error)
	Save(ctx context.Context, c *Cart) error
	Clear(ctx context.Context, sessionID string) error
}
