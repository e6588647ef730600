package cart

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zeno/cartsync/internal/domain/backend"
	"github.com/zeno/cartsync/internal/domain/cart"
	"github.com/zeno/cartsync/internal/domain/shared"
	"github.com/zeno/cartsync/internal/domain/shared/valueobject"
)

// Service coordinates cart reads, validated mutations and state
// synchronization for one backend. Reads never require the network: the
// local snapshot is the source of truth for quantities and the backend
// only contributes the availability overlay.
type Service struct {
	store      cart.SnapshotStore
	queue      cart.ReplayQueue
	gateway    backend.CartGateway
	tokens     backend.TokenSource
	sync       *Synchronizer
	dispatcher *Dispatcher
	bus        shared.EventPublisher
	logger     *zap.Logger
}

// NewService creates the cart application service
func NewService(
	store cart.SnapshotStore,
	queue cart.ReplayQueue,
	gateway backend.CartGateway,
	tokens backend.TokenSource,
	sync *Synchronizer,
	dispatcher *Dispatcher,
	bus shared.EventPublisher,
	logger *zap.Logger,
) *Service {
	return &Service{
		store:      store,
		queue:      queue,
		gateway:    gateway,
		tokens:     tokens,
		sync:       sync,
		dispatcher: dispatcher,
		bus:        bus,
		logger:     logger,
	}
}

// GetCart returns the local cart snapshot. Missing state yields an empty
// cart, never an error surfaced to the caller.
func (s *Service) GetCart(ctx context.Context, sessionID string) (*CartResponse, error) {
	c, err := s.store.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	resp := ToCartResponse(c)
	return &resp, nil
}

// AddItem validates and dispatches an add mutation. Adding a catalog
// item already in the cart merges quantities.
func (s *Service) AddItem(ctx context.Context, sessionID string, req AddItemRequest) (*CartResponse, error) {
	kind := cart.ItemKind(req.ItemKind)
	if kind == "" {
		kind = cart.ItemKindPhysicalGood
	}

	item, err := cart.NewCartItem(req.CatalogItemID, kind, req.Quantity, valueobject.NewMoneyKES(req.UnitPrice), req.VendorID)
	if err != nil {
		return nil, err
	}
	item.Name = req.Name
	item.Modifiers = req.Modifiers

	m := cart.NewAddItemMutation(sessionID, item)
	return s.dispatch(ctx, m)
}

// UpdateItem validates and dispatches a quantity change. Quantity zero
// removes the line.
func (s *Service) UpdateItem(ctx context.Context, sessionID, itemID string, req UpdateItemRequest) (*CartResponse, error) {
	id, err := uuid.Parse(itemID)
	if err != nil {
		return nil, shared.NewDomainError("INVALID_ITEM_ID", "Item ID must be a valid UUID")
	}

	m := cart.NewUpdateItemMutation(sessionID, id, req.Quantity)
	return s.dispatch(ctx, m)
}

// RemoveItem dispatches a line removal
func (s *Service) RemoveItem(ctx context.Context, sessionID, itemID string) (*CartResponse, error) {
	id, err := uuid.Parse(itemID)
	if err != nil {
		return nil, shared.NewDomainError("INVALID_ITEM_ID", "Item ID must be a valid UUID")
	}

	m := cart.NewRemoveItemMutation(sessionID, id)
	return s.dispatch(ctx, m)
}

// ClearCart dispatches a full cart clear
func (s *Service) ClearCart(ctx context.Context, sessionID string) (*CartResponse, error) {
	return s.dispatch(ctx, cart.NewClearMutation(sessionID))
}

// dispatch hands the mutation to the serialized dispatcher, which
// validates it against the current snapshot before applying it
func (s *Service) dispatch(ctx context.Context, m cart.Mutation) (*CartResponse, error) {
	result, err := s.dispatcher.Dispatch(ctx, m)
	if err != nil {
		return nil, err
	}
	if result.Coalesced || result.Cart == nil {
		// The mutation was folded into a newer one; report the latest state
		return s.GetCart(ctx, m.SessionID)
	}

	resp := toResultResponse(result)
	return &resp, nil
}

// Sync fetches the backend cart and merges it over the local snapshot.
// Failures never lose local state: the local cart is returned unchanged
// when the backend cannot be reached.
func (s *Service) Sync(ctx context.Context, sessionID string) (*CartResponse, error) {
	local, err := s.store.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	token, err := s.tokens.Current(ctx)
	if err != nil || token == "" {
		// Guest sessions have nothing remote to merge
		resp := ToCartResponse(local)
		return &resp, nil
	}

	payload, fetchErr := s.gateway.FetchCart(ctx, token)
	if fetchErr != nil && backend.IsAuthError(fetchErr) {
		if refreshed, refreshErr := s.tokens.Refresh(ctx); refreshErr == nil {
			payload, fetchErr = s.gateway.FetchCart(ctx, refreshed)
		}
	}
	if fetchErr != nil {
		s.logger.Warn("cart sync skipped; backend unavailable",
			zap.String("session_id", sessionID),
			zap.Error(fetchErr),
		)
		resp := ToCartResponse(local)
		resp.Warning = "showing locally saved cart; last sync failed"
		return &resp, nil
	}

	merged := s.sync.Merge(local, payload)
	if err := s.persist(ctx, merged); err != nil {
		return nil, err
	}

	resp := ToCartResponse(merged)
	return &resp, nil
}

// SetOnline records connectivity. Coming back online replays deferred
// mutations in original order, then refreshes from the backend.
func (s *Service) SetOnline(ctx context.Context, sessionID string, online bool) (*SyncStatusResponse, error) {
	wasOnline := s.dispatcher.Online()
	s.dispatcher.SetOnline(online)

	if online && !wasOnline {
		if err := s.dispatcher.Replay(ctx, sessionID); err != nil {
			s.logger.Warn("replay interrupted", zap.String("session_id", sessionID), zap.Error(err))
		} else if _, err := s.Sync(ctx, sessionID); err != nil {
			s.logger.Warn("post-replay sync failed", zap.String("session_id", sessionID), zap.Error(err))
		}
	}

	pending, err := s.queue.CountPending(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return &SyncStatusResponse{Online: s.dispatcher.Online(), PendingReplay: pending}, nil
}

// Status reports connectivity and the replay backlog
func (s *Service) Status(ctx context.Context, sessionID string) (*SyncStatusResponse, error) {
	pending, err := s.queue.CountPending(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return &SyncStatusResponse{Online: s.dispatcher.Online(), PendingReplay: pending}, nil
}

// Logout discards the session's persisted cart state
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	return s.store.Clear(ctx, sessionID)
}

func (s *Service) persist(ctx context.Context, c *cart.Cart) error {
	if err := s.store.Save(ctx, c); err != nil {
		return err
	}
	events := c.GetDomainEvents()
	c.ClearDomainEvents()
	if len(events) > 0 && s.bus != nil {
		if err := s.bus.Publish(ctx, events...); err != nil {
			s.logger.Warn("failed to publish cart events", zap.Error(err))
		}
	}
	return nil
}
