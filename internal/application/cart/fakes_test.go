package cart

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/zeno/cartsync/internal/domain/backend"
	"github.com/zeno/cartsync/internal/domain/cart"
	"github.com/zeno/cartsync/internal/domain/vendor"
)

// In-memory doubles for the dispatcher's collaborators

type fakeSnapshotStore struct {
	mu    sync.Mutex
	carts map[string]*cart.Cart
	saves int
}

func newFakeSnapshotStore() *fakeSnapshotStore {
	return &fakeSnapshotStore{carts: make(map[string]*cart.Cart)}
}

func (s *fakeSnapshotStore) Load(_ context.Context, sessionID string) (*cart.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.carts[sessionID]; ok {
		return c.Clone(), nil
	}
	return cart.NewCart(sessionID), nil
}

func (s *fakeSnapshotStore) Save(_ context.Context, c *cart.Cart) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.carts[c.SessionID] = c.Clone()
	s.saves++
	return nil
}

func (s *fakeSnapshotStore) Clear(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.carts, sessionID)
	return nil
}

type fakeReplayQueue struct {
	mu      sync.Mutex
	entries []*cart.ReplayEntry
}

func (q *fakeReplayQueue) Enqueue(_ context.Context, entry *cart.ReplayEntry) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	entry.Sequence = int64(len(q.entries) + 1)
	q.entries = append(q.entries, entry)
	return nil
}

func (q *fakeReplayQueue) FindPending(_ context.Context, sessionID string, limit int) ([]*cart.ReplayEntry, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var pending []*cart.ReplayEntry
	for _, e := range q.entries {
		if e.SessionID != sessionID {
			continue
		}
		if e.Status != cart.ReplayStatusPending && e.Status != cart.ReplayStatusFailed {
			continue
		}
		if e.NextRetryAt != nil && e.NextRetryAt.After(time.Now()) {
			continue
		}
		pending = append(pending, e)
		if limit > 0 && len(pending) == limit {
			break
		}
	}
	return pending, nil
}

func (q *fakeReplayQueue) Update(_ context.Context, _ *cart.ReplayEntry) error {
	return nil
}

func (q *fakeReplayQueue) DeleteReplayed(_ context.Context, _ time.Time) (int64, error) {
	return 0, nil
}

func (q *fakeReplayQueue) CountPending(_ context.Context, sessionID string) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var n int64
	for _, e := range q.entries {
		if e.SessionID == sessionID && (e.Status == cart.ReplayStatusPending || e.Status == cart.ReplayStatusFailed) {
			n++
		}
	}
	return n, nil
}

// fakeGateway scripts per-call failures and records the calls it saw
type fakeGateway struct {
	mu        sync.Mutex
	calls     []string
	fetchBody map[string]any
	// err is returned by every call until cleared
	err error
	// errOnce is returned by the next call only
	errOnce error
}

func (g *fakeGateway) nextErr() error {
	if g.errOnce != nil {
		err := g.errOnce
		g.errOnce = nil
		return err
	}
	return g.err
}

func (g *fakeGateway) record(call string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, call)
	return g.nextErr()
}

func (g *fakeGateway) callLog() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.calls...)
}

func (g *fakeGateway) FetchCart(_ context.Context, _ string) (map[string]any, error) {
	if err := g.record("fetch"); err != nil {
		return nil, err
	}
	return g.fetchBody, nil
}

func (g *fakeGateway) AddItem(_ context.Context, _ string, catalogItemID string, _ string, _ int, _ map[string]any, _ string) (map[string]any, error) {
	if err := g.record("add:" + catalogItemID); err != nil {
		return nil, err
	}
	return nil, nil
}

func (g *fakeGateway) UpdateItem(_ context.Context, _ string, itemID string, _ int) (map[string]any, error) {
	if err := g.record("update:" + itemID); err != nil {
		return nil, err
	}
	return nil, nil
}

func (g *fakeGateway) RemoveItem(_ context.Context, _ string, itemID string) error {
	return g.record("remove:" + itemID)
}

func (g *fakeGateway) Clear(_ context.Context, _ string) error {
	return g.record("clear")
}

// fakeTokenSource scripts the auth states the dispatcher must handle
type fakeTokenSource struct {
	token      string
	refreshed  string
	refreshErr error
	refreshes  int
}

func (t *fakeTokenSource) Current(_ context.Context) (string, error) {
	return t.token, nil
}

func (t *fakeTokenSource) Refresh(_ context.Context) (string, error) {
	t.refreshes++
	if t.refreshErr != nil {
		return "", t.refreshErr
	}
	if t.refreshed != "" {
		t.token = t.refreshed
	}
	return t.token, nil
}

// fakeDirectory reports every vendor healthy and every item in stock
type fakeDirectory struct{}

func (fakeDirectory) GetVendor(_ context.Context, vendorID string) (*vendor.Vendor, error) {
	return &vendor.Vendor{ID: vendorID, Name: "Acme", IsActive: true, IsVerified: true}, nil
}

func (fakeDirectory) GetStock(_ context.Context, _, catalogItemID string) (*vendor.StockInfo, error) {
	return &vendor.StockInfo{CatalogItemID: catalogItemID, StockQuantity: 100, Available: true}, nil
}

var (
	errNetwork = &backend.NetworkError{Op: "test", Err: errors.New("connection refused")}
	errAuth    = &backend.AuthError{Op: "test", Detail: "token expired"}
	errServer  = &backend.ServerError{Op: "test", StatusCode: 400, Detail: "All items must be from the same vendor"}
)

var (
	_ cart.SnapshotStore  = (*fakeSnapshotStore)(nil)
	_ cart.ReplayQueue    = (*fakeReplayQueue)(nil)
	_ backend.CartGateway = (*fakeGateway)(nil)
	_ backend.TokenSource = (*fakeTokenSource)(nil)
	_ vendor.Directory    = fakeDirectory{}
)
