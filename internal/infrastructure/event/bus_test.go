package event

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/zeno/cartsync/internal/domain/cart"
	"github.com/zeno/cartsync/internal/domain/shared"
)

type recordingHandler struct {
	types    []string
	received []shared.DomainEvent
	err      error
	panics   bool
}

func (h *recordingHandler) Handle(_ context.Context, event shared.DomainEvent) error {
	if h.panics {
		panic("handler exploded")
	}
	h.received = append(h.received, event)
	return h.err
}

func (h *recordingHandler) EventTypes() []string { return h.types }

func addedEvent(sessionID string) *cart.ChangedEvent {
	c := cart.NewCart(sessionID)
	return cart.NewItemAddedEvent(c, nil)
}

func TestEventBus_RoutesByEventType(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())
	added := &recordingHandler{types: []string{cart.EventTypeItemAdded}}
	cleared := &recordingHandler{types: []string{cart.EventTypeCleared}}
	bus.Subscribe(added)
	bus.Subscribe(cleared)

	require.NoError(t, bus.Publish(context.Background(), addedEvent("s1")))

	require.Len(t, added.received, 1)
	assert.Equal(t, cart.EventTypeItemAdded, added.received[0].EventType())
	assert.Empty(t, cleared.received)
}

func TestEventBus_WildcardHandlerReceivesEverything(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())
	all := &recordingHandler{}
	bus.Subscribe(all)

	c := cart.NewCart("s1")
	require.NoError(t, bus.Publish(context.Background(),
		cart.NewItemAddedEvent(c, nil),
		cart.NewClearedEvent(c),
	))

	assert.Len(t, all.received, 2)
}

func TestEventBus_FailingHandlerDoesNotBlockOthers(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())
	failing := &recordingHandler{types: []string{cart.EventTypeItemAdded}, err: errors.New("boom")}
	healthy := &recordingHandler{types: []string{cart.EventTypeItemAdded}}
	bus.Subscribe(failing)
	bus.Subscribe(healthy)

	require.NoError(t, bus.Publish(context.Background(), addedEvent("s1")))

	assert.Len(t, healthy.received, 1)
}

func TestEventBus_PanickingHandlerIsContained(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())
	panicking := &recordingHandler{types: []string{cart.EventTypeItemAdded}, panics: true}
	healthy := &recordingHandler{types: []string{cart.EventTypeItemAdded}}
	bus.Subscribe(panicking)
	bus.Subscribe(healthy)

	require.NoError(t, bus.Publish(context.Background(), addedEvent("s1")))

	assert.Len(t, healthy.received, 1)
}

func TestEventBus_UnsubscribeStopsDelivery(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())
	handler := &recordingHandler{types: []string{cart.EventTypeItemAdded}}
	bus.Subscribe(handler)
	bus.Unsubscribe(handler)

	require.NoError(t, bus.Publish(context.Background(), addedEvent("s1")))

	assert.Empty(t, handler.received)
}

func TestEventBus_SessionIDTravelsWithEvent(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())
	handler := &recordingHandler{types: []string{cart.EventTypeItemAdded}}
	bus.Subscribe(handler)

	require.NoError(t, bus.Publish(context.Background(), addedEvent("session-42")))

	changed, ok := handler.received[0].(*cart.ChangedEvent)
	require.True(t, ok)
	assert.Equal(t, "session-42", changed.SessionID)
}
