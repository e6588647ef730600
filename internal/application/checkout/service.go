package checkout

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zeno/cartsync/internal/domain/backend"
	"github.com/zeno/cartsync/internal/domain/cart"
	"github.com/zeno/cartsync/internal/domain/order"
	"github.com/zeno/cartsync/internal/domain/shared"
)

// submissionTTL is how long a used idempotency key blocks resubmission
const submissionTTL = 24 * time.Hour

// stateRetention is how long a terminal checkout state stays queryable
// before the session's entry is pruned
const stateRetention = 15 * time.Minute

type sessionState struct {
	state     order.CheckoutState
	updatedAt time.Time
}

// Service runs the checkout pipeline: local validation, a single order
// submission, then the atomic cart clear. One attempt is in flight per
// session at a time; a failure leaves the cart untouched for retry.
type Service struct {
	store       cart.SnapshotStore
	orders      backend.OrderGateway
	carts       backend.CartGateway
	tokens      backend.TokenSource
	validator   *cart.Validator
	submissions shared.IdempotencyStore
	bus         shared.EventPublisher
	logger      *zap.Logger

	// submitTimeout bounds the order creation call. It is longer than
	// the cart mutation timeout: aborting early risks a duplicate order.
	submitTimeout time.Duration

	mu     sync.Mutex
	states map[string]sessionState
}

// NewService creates the checkout application service
func NewService(
	store cart.SnapshotStore,
	orders backend.OrderGateway,
	carts backend.CartGateway,
	tokens backend.TokenSource,
	validator *cart.Validator,
	submissions shared.IdempotencyStore,
	bus shared.EventPublisher,
	submitTimeout time.Duration,
	logger *zap.Logger,
) *Service {
	if submitTimeout <= 0 {
		submitTimeout = 30 * time.Second
	}
	return &Service{
		store:         store,
		orders:        orders,
		carts:         carts,
		tokens:        tokens,
		validator:     validator,
		submissions:   submissions,
		bus:           bus,
		logger:        logger,
		submitTimeout: submitTimeout,
		states:        make(map[string]sessionState),
	}
}

// State returns the session's current checkout state
func (s *Service) State(sessionID string) order.CheckoutState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.states[sessionID]; ok {
		return st.state
	}
	return order.CheckoutStateIdle
}

// Checkout converts the session's cart into an order. The pipeline is
// validate locally, submit exactly once, then clear the cart; any
// failure before success leaves the cart exactly as it was.
func (s *Service) Checkout(ctx context.Context, sessionID string, req CheckoutRequest) (*CheckoutResponse, error) {
	if err := s.transition(sessionID, order.CheckoutStateValidating); err != nil {
		return nil, err
	}

	resp, err := s.run(ctx, sessionID, req)
	if err != nil {
		s.setState(sessionID, order.CheckoutStateFailed)
		return nil, err
	}
	s.setState(sessionID, order.CheckoutStateSucceeded)
	resp.State = order.CheckoutStateSucceeded.String()
	return resp, nil
}

func (s *Service) run(ctx context.Context, sessionID string, req CheckoutRequest) (*CheckoutResponse, error) {
	c, err := s.store.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	// Validation reads only local state; no network round trip
	if violations := s.validator.ValidateForCheckout(c); len(violations) > 0 {
		return nil, order.NewValidationCheckoutError(violationsOrNil(violations))
	}

	draft, err := order.NewDraft(c, req.deliveryDetails())
	if err != nil {
		return nil, err
	}

	token, err := s.tokens.Current(ctx)
	if err != nil || token == "" {
		return nil, &order.CheckoutError{
			Code:      "AUTH_REQUIRED",
			Message:   "Sign in to place an order",
			Retryable: false,
		}
	}

	key := req.IdempotencyKey
	if key == "" {
		key = uuid.New().String()
	}
	reservation := "checkout:" + key
	fresh, err := s.submissions.MarkProcessed(ctx, reservation, submissionTTL)
	if err != nil {
		return nil, err
	}
	if !fresh {
		return nil, &order.CheckoutError{
			Code:      "DUPLICATE_SUBMISSION",
			Message:   "This order was already submitted",
			Retryable: false,
		}
	}

	if err := s.transition(sessionID, order.CheckoutStateSubmitting); err != nil {
		s.release(ctx, reservation)
		return nil, err
	}

	created, err := s.submit(ctx, token, draft)
	if err != nil {
		// No order came out of this attempt; a reserved key would turn
		// an honest retry into DUPLICATE_SUBMISSION
		s.release(ctx, reservation)
		return nil, err
	}

	// Clear the local cart in the same step that reports success; the
	// remote clear is best effort since the backend usually empties the
	// server cart itself on order creation
	c.Clear()
	if err := s.persist(ctx, c); err != nil {
		s.logger.Error("order created but local cart clear failed",
			zap.String("session_id", sessionID),
			zap.String("order_id", created.ID),
			zap.Error(err),
		)
		return nil, err
	}
	if err := s.carts.Clear(ctx, token); err != nil {
		s.logger.Warn("remote cart clear failed after order creation",
			zap.String("order_id", created.ID),
			zap.Error(err),
		)
	}

	s.logger.Info("checkout succeeded",
		zap.String("session_id", sessionID),
		zap.String("order_id", created.ID),
		zap.String("vendor_id", created.VendorID),
		zap.String("total_amount", created.TotalAmount.String()),
	)

	orderResp := ToOrderResponse(created)
	return &CheckoutResponse{Order: &orderResp}, nil
}

// submit issues exactly one order creation, with one token refresh on an
// auth rejection. Every failure is classified into an actionable
// CheckoutError; the cart has not been touched on any of these paths.
func (s *Service) submit(ctx context.Context, token string, draft *order.Draft) (*order.Order, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.submitTimeout)
	defer cancel()

	created, err := s.orders.CreateOrder(callCtx, token, draft)
	if err == nil {
		return created, nil
	}

	if backend.IsAuthError(err) {
		refreshed, refreshErr := s.tokens.Refresh(ctx)
		if refreshErr != nil {
			return nil, &order.CheckoutError{
				Code:      "AUTH_REQUIRED",
				Message:   "Session expired; sign in again to place your order",
				Retryable: false,
			}
		}
		retryCtx, retryCancel := context.WithTimeout(ctx, s.submitTimeout)
		defer retryCancel()
		created, err = s.orders.CreateOrder(retryCtx, refreshed, draft)
		if err == nil {
			return created, nil
		}
	}

	switch {
	case backend.IsNetworkError(err):
		return nil, &order.CheckoutError{
			Code:      "CHECKOUT_NETWORK",
			Message:   "Could not reach the server; check your connection and try again",
			Retryable: true,
		}
	case backend.IsAuthError(err):
		return nil, &order.CheckoutError{
			Code:      "AUTH_REQUIRED",
			Message:   "Session expired; sign in again to place your order",
			Retryable: false,
		}
	default:
		if se, ok := backend.AsServerError(err); ok {
			return nil, order.ClassifyBackendError(se.Detail, se.FieldErrors)
		}
		return nil, order.ClassifyBackendError(err.Error(), nil)
	}
}

// transition moves the session's checkout state, rejecting overlapping
// attempts
func (s *Service) transition(sessionID string, target order.CheckoutState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneLocked()

	current := order.CheckoutStateIdle
	if st, ok := s.states[sessionID]; ok {
		current = st.state
	}
	if !current.CanTransitionTo(target) {
		return &order.CheckoutError{
			Code:      "CHECKOUT_IN_PROGRESS",
			Message:   "A checkout is already in progress for this session",
			Retryable: false,
		}
	}
	s.states[sessionID] = sessionState{state: target, updatedAt: time.Now()}
	return nil
}

func (s *Service) setState(sessionID string, state order.CheckoutState) {
	s.mu.Lock()
	s.states[sessionID] = sessionState{state: state, updatedAt: time.Now()}
	s.mu.Unlock()
}

// pruneLocked drops terminal entries older than the retention window, so
// the map does not grow with every session ever seen. Callers must hold
// s.mu; a pruned session reads as IDLE again.
func (s *Service) pruneLocked() {
	cutoff := time.Now().Add(-stateRetention)
	for sessionID, st := range s.states {
		if st.state.IsTerminal() && st.updatedAt.Before(cutoff) {
			delete(s.states, sessionID)
		}
	}
}

func (s *Service) release(ctx context.Context, key string) {
	if err := s.submissions.Release(ctx, key); err != nil {
		s.logger.Warn("failed to release idempotency key", zap.Error(err))
	}
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
