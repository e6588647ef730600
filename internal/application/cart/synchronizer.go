package cart

import (
	"go.uber.org/zap"

	"github.com/zeno/cartsync/internal/domain/cart"
)

// Synchronizer reconciles the local and remote cart snapshots into one
// cart. The merge policy prefers local intent with a remote availability
// overlay: always trusting the backend would discard in-flight optimistic
// adds during brief disconnects, while always trusting local would hide
// stock changes.
type Synchronizer struct {
	normalizer *cart.Normalizer
	logger     *zap.Logger
}

// NewSynchronizer creates a synchronizer
func NewSynchronizer(normalizer *cart.Normalizer, logger *zap.Logger) *Synchronizer {
	return &Synchronizer{
		normalizer: normalizer,
		logger:     logger,
	}
}

// Merge produces one cart from the local snapshot and the raw remote
// payload. Totals are always recomputed from the merged items, never
// copied from either input.
func (s *Synchronizer) Merge(local *cart.Cart, remotePayload map[string]any) *cart.Cart {
	remote := s.normalizer.NormalizeCart(local.SessionID, remotePayload)

	switch {
	case remote.IsEmpty() && !local.IsEmpty():
		// Nothing to reconcile; local intent stands
		merged := local.Clone()
		merged.RecalculateTotals()
		s.adoptRemoteID(merged, remote)
		merged.AddDomainEvent(cart.NewSynchronizedEvent(merged))
		return merged

	case !remote.IsEmpty() && local.IsEmpty():
		remote.RecalculateTotals()
		remote.AddDomainEvent(cart.NewSynchronizedEvent(remote))
		return remote

	case remote.IsEmpty() && local.IsEmpty():
		merged := local.Clone()
		s.adoptRemoteID(merged, remote)
		merged.AddDomainEvent(cart.NewSynchronizedEvent(merged))
		return merged
	}

	// Both non-empty: local item list is the base (it reflects the most
	// recent user intent); each line's availability is overlaid from the
	// matching remote line. Lines with no remote match keep their local
	// availability unchanged.
	merged := local.Clone()
	for idx := range merged.Items {
		item := &merged.Items[idx]
		remoteItem := remote.ItemByCatalogID(item.CatalogItemID)
		if remoteItem == nil {
			continue
		}
		item.ApplyAvailability(remoteItem.StockQuantity, remoteItem.Available)
	}
	merged.RecalculateTotals()
	s.adoptRemoteID(merged, remote)

	s.logger.Debug("cart synchronized",
		zap.String("session_id", merged.SessionID),
		zap.Int("local_items", len(local.Items)),
		zap.Int("remote_items", len(remote.Items)),
		zap.Int("merged_items", len(merged.Items)),
	)

	merged.AddDomainEvent(cart.NewSynchronizedEvent(merged))
	return merged
}

// adoptRemoteID carries the backend cart identity onto the merged cart
// once the backend has assigned one
func (s *Synchronizer) adoptRemoteID(merged, remote *cart.Cart) {
	if merged.RemoteID == nil && remote.RemoteID != nil {
		merged.RemoteID = remote.RemoteID
	}
}
