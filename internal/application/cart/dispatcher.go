package cart

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/zeno/cartsync/internal/domain/backend"
	"github.com/zeno/cartsync/internal/domain/cart"
	"github.com/zeno/cartsync/internal/domain/shared"
)

// MutationResult reports how a dispatched mutation was resolved
type MutationResult struct {
	// Cart is the persisted cart after the mutation
	Cart *cart.Cart
	// Coalesced is true when the mutation was superseded by a newer one
	// on the same line and was never sent
	Coalesced bool
	// Deferred is true when the mutation was applied locally and queued
	// for replay because the backend was unreachable
	Deferred bool
	// Warning carries a non-fatal condition, such as a failed token
	// refresh that forced a local-only apply
	Warning string
}

// WarningReauthRequired is surfaced when a token refresh fails; the
// pending mutation has been preserved locally, not discarded
const WarningReauthRequired = "session expired; sign in again to sync your cart"

type queuedMutation struct {
	mutation cart.Mutation
	done     chan dispatchOutcome
}

type dispatchOutcome struct {
	result *MutationResult
	err    error
}

// Dispatcher applies validated mutations with retry, auth refresh, local
// fallback and offline replay. Mutations are serialized per session: one
// in flight at a time, processed in issuance order regardless of network
// response order.
type Dispatcher struct {
	gateway   backend.CartGateway
	tokens    backend.TokenSource
	store     cart.SnapshotStore
	queue     cart.ReplayQueue
	validator *cart.Validator
	sync      *Synchronizer
	bus       shared.EventPublisher
	logger    *zap.Logger

	// callTimeout bounds each cart gateway call; mutations have a local
	// fallback so the bound is short
	callTimeout time.Duration

	mu      sync.Mutex
	pending []*queuedMutation
	running bool
	online  bool
	// lastWrite records the newest client timestamp applied per line;
	// a response older than the recorded write is discarded
	// (last-write-wins by client timestamp, not response arrival order)
	lastWrite map[uuid.UUID]time.Time
}

// NewDispatcher creates a mutation dispatcher
func NewDispatcher(
	gateway backend.CartGateway,
	tokens backend.TokenSource,
	store cart.SnapshotStore,
	queue cart.ReplayQueue,
	validator *cart.Validator,
	sync *Synchronizer,
	bus shared.EventPublisher,
	callTimeout time.Duration,
	logger *zap.Logger,
) *Dispatcher {
	if callTimeout <= 0 {
		callTimeout = 5 * time.Second
	}
	return &Dispatcher{
		gateway:     gateway,
		tokens:      tokens,
		store:       store,
		queue:       queue,
		validator:   validator,
		sync:        sync,
		bus:         bus,
		logger:      logger,
		callTimeout: callTimeout,
		online:      true,
		lastWrite:   make(map[uuid.UUID]time.Time),
	}
}

// SetOnline records the connectivity signal. Transitioning to online
// does not replay by itself; the owning service calls Replay.
func (d *Dispatcher) SetOnline(online bool) {
	d.mu.Lock()
	d.online = online
	d.mu.Unlock()
}

// Online reports the last known connectivity state
func (d *Dispatcher) Online() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.online
}

// Dispatch queues the mutation and blocks until it is resolved or the
// context is cancelled. Cancellation abandons the wait, not the
// mutation: it still executes in order.
func (d *Dispatcher) Dispatch(ctx context.Context, m cart.Mutation) (*MutationResult, error) {
	q := &queuedMutation{mutation: m, done: make(chan dispatchOutcome, 1)}

	d.mu.Lock()
	d.pending = append(d.pending, q)
	startWorker := !d.running
	if startWorker {
		d.running = true
	}
	d.mu.Unlock()

	if startWorker {
		go d.drain()
	}

	select {
	case out := <-q.done:
		return out.result, out.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// drain processes the queue one mutation at a time in issuance order
func (d *Dispatcher) drain() {
	for {
		d.mu.Lock()
		if len(d.pending) == 0 {
			d.running = false
			d.mu.Unlock()
			return
		}
		q := d.pending[0]
		d.pending = d.pending[1:]
		superseded := d.supersededLocked(q.mutation)
		d.mu.Unlock()

		if superseded {
			// A newer edit of the same line is queued behind this one;
			// only the latest intent is sent
			q.done <- dispatchOutcome{result: &MutationResult{Coalesced: true}}
			continue
		}

		result, err := d.process(context.Background(), q.mutation)
		q.done <- dispatchOutcome{result: result, err: err}
	}
}

// supersededLocked reports whether a queued mutation supersedes m.
// Callers must hold d.mu.
func (d *Dispatcher) supersededLocked(m cart.Mutation) bool {
	for _, waiting := range d.pending {
		if waiting.mutation.Supersedes(m) {
			return true
		}
	}
	return false
}

// process applies one mutation end to end. Admission runs here, inside
// the serialized worker, so overlapping requests validate against the
// state left by the previous mutation rather than a shared stale
// snapshot; a rejected mutation never changes the cart.
func (d *Dispatcher) process(ctx context.Context, m cart.Mutation) (*MutationResult, error) {
	current, err := d.store.Load(ctx, m.SessionID)
	if err != nil {
		return nil, err
	}
	if err := d.validator.Validate(ctx, current, m); err != nil {
		return nil, err
	}

	token, err := d.tokens.Current(ctx)
	if err != nil {
		d.logger.Warn("token lookup failed; treating session as guest", zap.Error(err))
		token = ""
	}

	// Guest sessions mutate the local store directly
	if token == "" {
		c, err := d.applyLocal(ctx, m)
		if err != nil {
			return nil, err
		}
		return &MutationResult{Cart: c}, nil
	}

	if !d.Online() {
		return d.deferMutation(ctx, m)
	}

	payload, callErr := d.callGateway(ctx, token, m)
	if callErr == nil {
		c, err := d.applyAndMerge(ctx, m, payload)
		if err != nil {
			return nil, err
		}
		return &MutationResult{Cart: c}, nil
	}

	switch {
	case backend.IsAuthError(callErr):
		return d.retryAfterRefresh(ctx, m)

	case backend.IsNetworkError(callErr):
		d.logger.Info("backend unreachable; applying mutation locally",
			zap.String("mutation", m.Kind.String()),
			zap.String("session_id", m.SessionID),
		)
		return d.deferMutation(ctx, m)

	default:
		// ServerError: the backend enforced a rule; applying locally
		// would diverge from it. Surface the detail, leave the cart.
		if se, ok := backend.AsServerError(callErr); ok {
			d.logger.Warn("backend rejected mutation",
				zap.String("mutation", m.Kind.String()),
				zap.Int("status", se.StatusCode),
				zap.String("detail", se.Detail),
			)
		}
		return nil, callErr
	}
}

// retryAfterRefresh refreshes the token once and retries once; if either
// fails the mutation is preserved locally and a warning is surfaced
func (d *Dispatcher) retryAfterRefresh(ctx context.Context, m cart.Mutation) (*MutationResult, error) {
	token, err := d.tokens.Refresh(ctx)
	if err == nil {
		payload, callErr := d.callGateway(ctx, token, m)
		if callErr == nil {
			c, applyErr := d.applyAndMerge(ctx, m, payload)
			if applyErr != nil {
				return nil, applyErr
			}
			return &MutationResult{Cart: c}, nil
		}
		if se, ok := backend.AsServerError(callErr); ok {
			return nil, se
		}
		// Renewed auth failure or network loss: fall through to local
	}

	d.logger.Warn("token refresh failed; mutation preserved locally",
		zap.String("mutation", m.Kind.String()),
		zap.String("session_id", m.SessionID),
	)
	result, deferErr := d.deferMutation(ctx, m)
	if deferErr != nil {
		return nil, deferErr
	}
	result.Warning = WarningReauthRequired
	return result, nil
}

// deferMutation applies the mutation to the local store and enqueues it
// for replay on reconnect
func (d *Dispatcher) deferMutation(ctx context.Context, m cart.Mutation) (*MutationResult, error) {
	c, err := d.applyLocal(ctx, m)
	if err != nil {
		return nil, err
	}
	if err := d.queue.Enqueue(ctx, cart.NewReplayEntry(m)); err != nil {
		// The local apply already succeeded; losing the replay entry is
		// recoverable by the next full sync
		d.logger.Error("failed to enqueue mutation for replay", zap.Error(err))
	}
	return &MutationResult{Cart: c, Deferred: true}, nil
}

// callGateway issues the single backend call for the mutation under the
// short mutation timeout
func (d *Dispatcher) callGateway(ctx context.Context, token string, m cart.Mutation) (map[string]any, error) {
	callCtx, cancel := context.WithTimeout(ctx, d.callTimeout)
	defer cancel()

	switch m.Kind {
	case cart.MutationAddItem:
		return d.gateway.AddItem(callCtx, token, m.CatalogID, m.ItemKind.String(), m.Quantity, m.Modifiers, m.VendorID)
	case cart.MutationUpdateItem:
		return d.gateway.UpdateItem(callCtx, token, m.ItemID.String(), m.Quantity)
	case cart.MutationRemoveItem:
		return nil, d.gateway.RemoveItem(callCtx, token, m.ItemID.String())
	case cart.MutationClear:
		return nil, d.gateway.Clear(callCtx, token)
	default:
		return nil, shared.NewDomainError("INVALID_MUTATION", fmt.Sprintf("Unknown mutation kind %q", m.Kind))
	}
}

// applyAndMerge applies the mutation locally, overlays the backend
// response and persists the result
func (d *Dispatcher) applyAndMerge(ctx context.Context, m cart.Mutation, payload map[string]any) (*cart.Cart, error) {
	c, err := d.applyLocal(ctx, m)
	if err != nil {
		return nil, err
	}

	if payload == nil {
		return c, nil
	}

	// A stale response must not overwrite newer local intent for the line
	if m.TargetsItem() {
		d.mu.Lock()
		newest := d.lastWrite[m.ItemID]
		d.mu.Unlock()
		if newest.After(m.IssuedAt) {
			d.logger.Debug("discarding stale backend response",
				zap.String("item_id", m.ItemID.String()),
			)
			return c, nil
		}
	}

	// A full cart payload feeds the synchronizer; a single-item payload
	// only refreshes that line's availability
	if _, hasItems := payload["items"]; hasItems {
		merged := d.sync.Merge(c, payload)
		if err := d.persist(ctx, merged); err != nil {
			return nil, err
		}
		return merged, nil
	}

	return c, nil
}

// applyLocal performs the whole-object read-modify-write on the local
// snapshot
func (d *Dispatcher) applyLocal(ctx context.Context, m cart.Mutation) (*cart.Cart, error) {
	c, err := d.store.Load(ctx, m.SessionID)
	if err != nil {
		return nil, err
	}

	switch m.Kind {
	case cart.MutationAddItem:
		item := cart.CartItem{
			ItemID:        m.ItemID,
			CatalogItemID: m.CatalogID,
			Kind:          m.ItemKind,
			Quantity:      m.Quantity,
			UnitPrice:     m.UnitPrice,
			TotalPrice:    m.UnitPrice.Mul(decimal.NewFromInt(int64(m.Quantity))),
			VendorID:      m.VendorID,
			Modifiers:     m.Modifiers,
			Available:     true,
			AddedAt:       m.IssuedAt,
			UpdatedAt:     m.IssuedAt,
		}
		if _, err := c.Put(item); err != nil {
			return nil, err
		}
	case cart.MutationUpdateItem:
		if err := c.SetQuantity(m.ItemID, m.Quantity, m.IssuedAt); err != nil {
			return nil, err
		}
	case cart.MutationRemoveItem:
		if err := c.Remove(m.ItemID); err != nil {
			return nil, err
		}
	case cart.MutationClear:
		c.Clear()
	default:
		return nil, shared.NewDomainError("INVALID_MUTATION", fmt.Sprintf("Unknown mutation kind %q", m.Kind))
	}

	if m.TargetsItem() || m.Kind == cart.MutationAddItem {
		d.mu.Lock()
		if m.IssuedAt.After(d.lastWrite[m.ItemID]) {
			d.lastWrite[m.ItemID] = m.IssuedAt
		}
		d.mu.Unlock()
	}

	if err := d.persist(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// persist saves the cart and publishes its pending change events
func (d *Dispatcher) persist(ctx context.Context, c *cart.Cart) error {
	if err := d.store.Save(ctx, c); err != nil {
		return err
	}
	events := c.GetDomainEvents()
	c.ClearDomainEvents()
	if len(events) > 0 && d.bus != nil {
		if err := d.bus.Publish(ctx, events...); err != nil {
			d.logger.Warn("failed to publish cart events", zap.Error(err))
		}
	}
	return nil
}

// Replay applies offline-deferred mutations in original order. A
// mutation that fails permanently (the backend enforced a rule, or the
// line no longer exists) is dropped with a recorded reason; a network
// failure stops the pass and leaves the remainder queued.
func (d *Dispatcher) Replay(ctx context.Context, sessionID string) error {
	token, err := d.tokens.Current(ctx)
	if err != nil || token == "" {
		// Guest sessions have nothing to replay against
		return nil
	}

	entries, err := d.queue.FindPending(ctx, sessionID, 0)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if err := entry.MarkProcessing(); err != nil {
			continue
		}
		if err := d.queue.Update(ctx, entry); err != nil {
			return err
		}

		_, callErr := d.callGateway(ctx, token, entry.Mutation)
		switch {
		case callErr == nil:
			entry.MarkReplayed()

		case backend.IsNetworkError(callErr):
			// Still offline; put the entry back and stop the pass
			entry.Status = cart.ReplayStatusPending
			if err := d.queue.Update(ctx, entry); err != nil {
				return err
			}
			return callErr

		case backend.IsAuthError(callErr):
			refreshed, refreshErr := d.tokens.Refresh(ctx)
			if refreshErr != nil {
				entry.Status = cart.ReplayStatusPending
				if err := d.queue.Update(ctx, entry); err != nil {
					return err
				}
				return callErr
			}
			token = refreshed
			if _, retryErr := d.callGateway(ctx, token, entry.Mutation); retryErr == nil {
				entry.MarkReplayed()
			} else if se, ok := backend.AsServerError(retryErr); ok {
				entry.MarkDropped(se.Error())
			} else {
				entry.MarkFailed(retryErr.Error())
			}

		default:
			// The backend rejected the mutation outright; replaying it
			// again can never succeed
			entry.MarkDropped(callErr.Error())
			d.logger.Warn("dropping replay entry",
				zap.String("mutation", entry.Mutation.Kind.String()),
				zap.String("reason", callErr.Error()),
			)
		}

		if err := d.queue.Update(ctx, entry); err != nil {
			return err
		}
	}

	return nil
}
