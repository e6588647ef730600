package cart

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/zeno/cartsync/internal/domain/backend"
	"github.com/zeno/cartsync/internal/domain/cart"
	"github.com/zeno/cartsync/internal/domain/shared"
)

func newTestDispatcher(gateway *fakeGateway, tokens *fakeTokenSource) (*Dispatcher, *fakeSnapshotStore, *fakeReplayQueue) {
	store := newFakeSnapshotStore()
	queue := &fakeReplayQueue{}
	normalizer := cart.NewNormalizer(cart.ItemKindPhysicalGood)
	sync := NewSynchronizer(normalizer, zap.NewNop())
	d := NewDispatcher(gateway, tokens, store, queue, cart.NewValidator(fakeDirectory{}), sync, nil, time.Second, zap.NewNop())
	return d, store, queue
}

func addMutationFor(sessionID, catalogID string) cart.Mutation {
	return cart.Mutation{
		ID:        [16]byte{0xAA},
		Kind:      cart.MutationAddItem,
		SessionID: sessionID,
		ItemID:    [16]byte{0xBB},
		CatalogID: catalogID,
		VendorID:  "vendor-1",
		ItemKind:  cart.ItemKindPhysicalGood,
		Quantity:  1,
		UnitPrice: decimal.NewFromInt(1000),
		IssuedAt:  time.Now(),
	}
}

func TestDispatcher_GuestAppliesLocally(t *testing.T) {
	gateway := &fakeGateway{}
	d, store, queue := newTestDispatcher(gateway, &fakeTokenSource{token: ""})

	result, err := d.Dispatch(context.Background(), addMutationFor("s1", "prod-1"))
	require.NoError(t, err)
	require.NotNil(t, result.Cart)
	assert.Len(t, result.Cart.Items, 1)
	assert.False(t, result.Deferred)

	// No backend traffic, no replay entries for guests
	assert.Empty(t, gateway.callLog())
	n, _ := queue.CountPending(context.Background(), "s1")
	assert.Zero(t, n)

	saved, err := store.Load(context.Background(), "s1")
	require.NoError(t, err)
	assert.Len(t, saved.Items, 1)
}

func TestDispatcher_AuthenticatedSendsToBackend(t *testing.T) {
	gateway := &fakeGateway{}
	d, store, _ := newTestDispatcher(gateway, &fakeTokenSource{token: "tok"})

	result, err := d.Dispatch(context.Background(), addMutationFor("s1", "prod-1"))
	require.NoError(t, err)
	assert.Len(t, result.Cart.Items, 1)
	assert.Equal(t, []string{"add:prod-1"}, gateway.callLog())

	saved, _ := store.Load(context.Background(), "s1")
	assert.Len(t, saved.Items, 1)
}

func TestDispatcher_ConcurrentMixedVendorAddsKeepSingleVendor(t *testing.T) {
	gateway := &fakeGateway{}
	d, store, _ := newTestDispatcher(gateway, &fakeTokenSource{token: ""})

	first := addMutationFor("s1", "prod-1")
	second := addMutationFor("s1", "prod-2")
	second.ItemID = [16]byte{0xCC}
	second.VendorID = "vendor-2"

	// Both requests arrive before either is applied; serialization must
	// still reject whichever one would mix vendors
	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, m := range []cart.Mutation{first, second} {
		wg.Add(1)
		go func(i int, m cart.Mutation) {
			defer wg.Done()
			_, errs[i] = d.Dispatch(context.Background(), m)
		}(i, m)
	}
	wg.Wait()

	rejections := 0
	for _, err := range errs {
		if err == nil {
			continue
		}
		var de *shared.DomainError
		require.ErrorAs(t, err, &de)
		assert.Equal(t, "MULTI_VENDOR", de.Code)
		rejections++
	}
	assert.Equal(t, 1, rejections)

	saved, err := store.Load(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, saved.Items, 1)
	assert.Equal(t, saved.VendorID(), saved.Items[0].VendorID)
}

func TestDispatcher_CoalescesRapidEditsOnOneLine(t *testing.T) {
	gateway := &fakeGateway{}
	d, store, _ := newTestDispatcher(gateway, &fakeTokenSource{token: "tok"})
	ctx := context.Background()

	add := addMutationFor("s1", "prod-1")
	_, err := d.Dispatch(ctx, add)
	require.NoError(t, err)
	gateway.calls = nil

	first := cart.NewUpdateItemMutation("s1", add.ItemID, 2)
	second := cart.NewUpdateItemMutation("s1", add.ItemID, 5)
	second.IssuedAt = first.IssuedAt.Add(time.Millisecond)

	// Queue both edits behind an idle worker, the way two rapid taps land
	// while an earlier call is still in flight
	q1 := &queuedMutation{mutation: first, done: make(chan dispatchOutcome, 1)}
	q2 := &queuedMutation{mutation: second, done: make(chan dispatchOutcome, 1)}
	d.mu.Lock()
	d.pending = append(d.pending, q1, q2)
	d.running = true
	d.mu.Unlock()
	d.drain()

	out1 := <-q1.done
	require.NoError(t, out1.err)
	require.NotNil(t, out1.result)
	assert.True(t, out1.result.Coalesced)

	out2 := <-q2.done
	require.NoError(t, out2.err)
	assert.False(t, out2.result.Coalesced)

	// Only the latest edit was sent
	assert.Equal(t, []string{"update:" + add.ItemID.String()}, gateway.callLog())
	saved, _ := store.Load(ctx, "s1")
	require.Len(t, saved.Items, 1)
	assert.Equal(t, 5, saved.Items[0].Quantity)
}

func TestDispatcher_ServerErrorLeavesCartUnchanged(t *testing.T) {
	gateway := &fakeGateway{err: errServer}
	d, store, queue := newTestDispatcher(gateway, &fakeTokenSource{token: "tok"})

	_, err := d.Dispatch(context.Background(), addMutationFor("s1", "prod-1"))
	require.Error(t, err)
	se, ok := backend.AsServerError(err)
	require.True(t, ok)
	assert.Equal(t, 400, se.StatusCode)

	// The rejection is surfaced; nothing is applied or queued
	saved, _ := store.Load(context.Background(), "s1")
	assert.True(t, saved.IsEmpty())
	n, _ := queue.CountPending(context.Background(), "s1")
	assert.Zero(t, n)
}

func TestDispatcher_NetworkErrorDefersLocally(t *testing.T) {
	gateway := &fakeGateway{err: errNetwork}
	d, store, queue := newTestDispatcher(gateway, &fakeTokenSource{token: "tok"})

	result, err := d.Dispatch(context.Background(), addMutationFor("s1", "prod-1"))
	require.NoError(t, err)
	assert.True(t, result.Deferred)
	assert.Len(t, result.Cart.Items, 1)

	saved, _ := store.Load(context.Background(), "s1")
	assert.Len(t, saved.Items, 1)
	n, _ := queue.CountPending(context.Background(), "s1")
	assert.EqualValues(t, 1, n)
}

func TestDispatcher_OfflineDefersWithoutCalling(t *testing.T) {
	gateway := &fakeGateway{}
	d, _, queue := newTestDispatcher(gateway, &fakeTokenSource{token: "tok"})
	d.SetOnline(false)

	result, err := d.Dispatch(context.Background(), addMutationFor("s1", "prod-1"))
	require.NoError(t, err)
	assert.True(t, result.Deferred)
	assert.Empty(t, gateway.callLog())

	n, _ := queue.CountPending(context.Background(), "s1")
	assert.EqualValues(t, 1, n)
}

func TestDispatcher_AuthErrorRefreshesOnceAndRetries(t *testing.T) {
	gateway := &fakeGateway{errOnce: errAuth}
	tokens := &fakeTokenSource{token: "stale", refreshed: "fresh"}
	d, _, _ := newTestDispatcher(gateway, tokens)

	result, err := d.Dispatch(context.Background(), addMutationFor("s1", "prod-1"))
	require.NoError(t, err)
	assert.Empty(t, result.Warning)
	assert.Equal(t, 1, tokens.refreshes)
	// first call failed with 401, retry succeeded
	assert.Equal(t, []string{"add:prod-1", "add:prod-1"}, gateway.callLog())
}

func TestDispatcher_RefreshFailurePreservesMutation(t *testing.T) {
	gateway := &fakeGateway{err: errAuth}
	tokens := &fakeTokenSource{token: "stale", refreshErr: errAuth}
	d, store, queue := newTestDispatcher(gateway, tokens)

	result, err := d.Dispatch(context.Background(), addMutationFor("s1", "prod-1"))
	require.NoError(t, err)
	assert.True(t, result.Deferred)
	assert.Equal(t, WarningReauthRequired, result.Warning)

	// The user's intent is never discarded
	saved, _ := store.Load(context.Background(), "s1")
	assert.Len(t, saved.Items, 1)
	n, _ := queue.CountPending(context.Background(), "s1")
	assert.EqualValues(t, 1, n)
}

func TestDispatcher_SerializesPerSession(t *testing.T) {
	gateway := &fakeGateway{}
	d, store, _ := newTestDispatcher(gateway, &fakeTokenSource{token: "tok"})

	ctx := context.Background()
	for i, catalogID := range []string{"prod-1", "prod-2", "prod-3"} {
		m := addMutationFor("s1", catalogID)
		m.ItemID = [16]byte{byte(i + 1)}
		_, err := d.Dispatch(ctx, m)
		require.NoError(t, err)
	}

	assert.Equal(t, []string{"add:prod-1", "add:prod-2", "add:prod-3"}, gateway.callLog())
	saved, _ := store.Load(ctx, "s1")
	assert.Len(t, saved.Items, 3)
}

func TestDispatcher_ReplayAppliesInOrder(t *testing.T) {
	gateway := &fakeGateway{}
	tokens := &fakeTokenSource{token: "tok"}
	d, _, queue := newTestDispatcher(gateway, tokens)
	d.SetOnline(false)

	ctx := context.Background()
	for i, catalogID := range []string{"prod-1", "prod-2", "prod-3"} {
		m := addMutationFor("s1", catalogID)
		m.ItemID = [16]byte{byte(i + 1)}
		m.IssuedAt = time.Now().Add(time.Duration(i) * time.Millisecond)
		_, err := d.Dispatch(ctx, m)
		require.NoError(t, err)
	}
	n, _ := queue.CountPending(ctx, "s1")
	require.EqualValues(t, 3, n)
	gateway.calls = nil

	d.SetOnline(true)
	require.NoError(t, d.Replay(ctx, "s1"))

	assert.Equal(t, []string{"add:prod-1", "add:prod-2", "add:prod-3"}, gateway.callLog())
	n, _ = queue.CountPending(ctx, "s1")
	assert.Zero(t, n)
}

func TestDispatcher_ReplayStopsOnNetworkError(t *testing.T) {
	gateway := &fakeGateway{}
	d, _, queue := newTestDispatcher(gateway, &fakeTokenSource{token: "tok"})
	d.SetOnline(false)

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		m := addMutationFor("s1", "prod-"+string(rune('1'+i)))
		m.ItemID = [16]byte{byte(i + 1)}
		_, err := d.Dispatch(ctx, m)
		require.NoError(t, err)
	}
	gateway.calls = nil
	gateway.errOnce = errNetwork

	err := d.Replay(ctx, "s1")
	require.Error(t, err)
	assert.True(t, backend.IsNetworkError(err))

	// First entry went back to pending, second was never attempted
	n, _ := queue.CountPending(ctx, "s1")
	assert.EqualValues(t, 2, n)
	assert.Len(t, gateway.callLog(), 1)
}

func TestDispatcher_ReplayDropsRejectedEntries(t *testing.T) {
	gateway := &fakeGateway{}
	d, _, queue := newTestDispatcher(gateway, &fakeTokenSource{token: "tok"})
	d.SetOnline(false)

	ctx := context.Background()
	first := addMutationFor("s1", "prod-1")
	first.ItemID = [16]byte{1}
	_, err := d.Dispatch(ctx, first)
	require.NoError(t, err)
	second := addMutationFor("s1", "prod-2")
	second.ItemID = [16]byte{2}
	_, err = d.Dispatch(ctx, second)
	require.NoError(t, err)

	gateway.calls = nil
	gateway.errOnce = errServer

	d.SetOnline(true)
	require.NoError(t, d.Replay(ctx, "s1"))

	// The rejected entry is dropped, the pass continues to the next
	assert.Len(t, gateway.callLog(), 2)
	n, _ := queue.CountPending(ctx, "s1")
	assert.Zero(t, n)
	assert.Equal(t, cart.ReplayStatusDropped, queue.entries[0].Status)
	assert.Equal(t, cart.ReplayStatusReplayed, queue.entries[1].Status)
}

func TestDispatcher_ReplayNoopForGuests(t *testing.T) {
	gateway := &fakeGateway{}
	d, _, _ := newTestDispatcher(gateway, &fakeTokenSource{token: ""})

	require.NoError(t, d.Replay(context.Background(), "s1"))
	assert.Empty(t, gateway.callLog())
}
