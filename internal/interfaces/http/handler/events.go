package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zeno/cartsync/internal/domain/cart"
	"github.com/zeno/cartsync/internal/domain/shared"
)

// SSEClient represents a connected change-feed client
type SSEClient struct {
	ID        string
	SessionID string
	Chan      chan SSEMessage
	Done      chan struct{}
}

// SSEMessage represents a message to be sent to SSE clients
type SSEMessage struct {
	Event string `json:"event"`
	Data  string `json:"data"`
	ID    string `json:"id,omitempty"`
}

// CartEventsHandler streams cart change events to connected clients
// over Server-Sent Events. It subscribes to the event bus and routes
// each event only to clients of the originating session.
type CartEventsHandler struct {
	BaseHandler
	bus        shared.EventSubscriber
	logger     *zap.Logger
	clients    sync.Map // map[string]*SSEClient
	ctx        context.Context
	cancel     context.CancelFunc
	heartbeat  time.Duration
	started    bool
	startMu    sync.Mutex
	maxClients int
}

// CartEventsOption is a functional option for configuring the handler
type CartEventsOption func(*CartEventsHandler)

// WithHeartbeat sets the heartbeat interval
func WithHeartbeat(interval time.Duration) CartEventsOption {
	return func(h *CartEventsHandler) {
		h.heartbeat = interval
	}
}

// WithMaxClients sets the maximum number of concurrent SSE clients
func WithMaxClients(max int) CartEventsOption {
	return func(h *CartEventsHandler) {
		h.maxClients = max
	}
}

// NewCartEventsHandler creates a new change-feed handler
func NewCartEventsHandler(bus shared.EventSubscriber, logger *zap.Logger, opts ...CartEventsOption) *CartEventsHandler {
	ctx, cancel := context.WithCancel(context.Background())
	h := &CartEventsHandler{
		bus:        bus,
		logger:     logger,
		ctx:        ctx,
		cancel:     cancel,
		heartbeat:  30 * time.Second,
		maxClients: 1000,
	}

	for _, opt := range opts {
		opt(h)
	}

	return h
}

// Start subscribes to cart events and begins the heartbeat loop
func (h *CartEventsHandler) Start() error {
	h.startMu.Lock()
	defer h.startMu.Unlock()

	if h.started {
		return fmt.Errorf("cart events handler already started")
	}

	h.bus.Subscribe(h,
		cart.EventTypeItemAdded,
		cart.EventTypeItemUpdated,
		cart.EventTypeItemRemoved,
		cart.EventTypeCleared,
		cart.EventTypeSynchronized,
	)
	go h.sendHeartbeats()

	h.started = true
	h.logger.Info("cart events handler started")
	return nil
}

// Stop unsubscribes and disconnects all clients
func (h *CartEventsHandler) Stop() {
	h.cancel()
	h.bus.Unsubscribe(h)

	h.clients.Range(func(key, value any) bool {
		if client, ok := value.(*SSEClient); ok {
			close(client.Done)
		}
		return true
	})

	h.logger.Info("cart events handler stopped")
}

// EventTypes implements shared.EventHandler
func (h *CartEventsHandler) EventTypes() []string {
	return []string{
		cart.EventTypeItemAdded,
		cart.EventTypeItemUpdated,
		cart.EventTypeItemRemoved,
		cart.EventTypeCleared,
		cart.EventTypeSynchronized,
	}
}

// Handle implements shared.EventHandler; it fans a cart change out to
// the clients watching that session
func (h *CartEventsHandler) Handle(_ context.Context, event shared.DomainEvent) error {
	changed, ok := event.(*cart.ChangedEvent)
	if !ok {
		return nil
	}

	data, err := json.Marshal(changed)
	if err != nil {
		h.logger.Error("failed to marshal cart event", zap.Error(err))
		return err
	}

	msg := SSEMessage{
		Event: changed.EventType(),
		Data:  string(data),
		ID:    changed.EventID().String(),
	}

	h.clients.Range(func(key, value any) bool {
		client, ok := value.(*SSEClient)
		if !ok || client.SessionID != changed.SessionID {
			return true
		}

		select {
		case client.Chan <- msg:
		default:
			// channel full, client is slow
			h.logger.Warn("client channel full, dropping message",
				zap.String("client_id", client.ID))
		}
		return true
	})
	return nil
}

// sendHeartbeats keeps idle connections alive
func (h *CartEventsHandler) sendHeartbeats() {
	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-h.ctx.Done():
			return
		case <-ticker.C:
			beat := SSEMessage{
				Event: "heartbeat",
				Data:  fmt.Sprintf(`{"timestamp":%d}`, time.Now().Unix()),
			}
			h.clients.Range(func(_, value any) bool {
				if client, ok := value.(*SSEClient); ok {
					select {
					case client.Chan <- beat:
					default:
					}
				}
				return true
			})
		}
	}
}

// Stream establishes an SSE connection for the session's cart changes
func (h *CartEventsHandler) Stream(c *gin.Context) {
	sessionID := getSessionID(c)
	if sessionID == "" {
		h.Error(c, http.StatusBadRequest, "SESSION_REQUIRED", "The "+SessionHeader+" header is required")
		return
	}

	if h.maxClients > 0 && h.ClientCount() >= h.maxClients {
		h.Error(c, http.StatusServiceUnavailable, "MAX_CONNECTIONS_REACHED", "Maximum number of SSE connections reached")
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")

	const messageBufferSize = 64
	client := &SSEClient{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		Chan:      make(chan SSEMessage, messageBufferSize),
		Done:      make(chan struct{}),
	}

	h.clients.Store(client.ID, client)
	defer func() {
		close(client.Chan)
		h.clients.Delete(client.ID)
	}()

	h.logger.Info("SSE client connected",
		zap.String("client_id", client.ID),
		zap.String("session_id", sessionID))

	h.sendEvent(c.Writer, SSEMessage{
		Event: "connected",
		Data:  fmt.Sprintf(`{"client_id":"%s","timestamp":%d}`, client.ID, time.Now().Unix()),
	})
	c.Writer.Flush()

	reqCtx := c.Request.Context()
	for {
		select {
		case <-reqCtx.Done():
			h.logger.Info("SSE client disconnected", zap.String("client_id", client.ID))
			return
		case <-client.Done:
			return
		case <-h.ctx.Done():
			return
		case msg, ok := <-client.Chan:
			if !ok {
				return
			}
			h.sendEvent(c.Writer, msg)
			c.Writer.Flush()
		}
	}
}

// sendEvent writes an SSE event to the response writer
func (h *CartEventsHandler) sendEvent(w io.Writer, msg SSEMessage) {
	if msg.Event != "" {
		fmt.Fprintf(w, "event: %s\n", msg.Event)
	}
	if msg.ID != "" {
		fmt.Fprintf(w, "id: %s\n", msg.ID)
	}
	fmt.Fprintf(w, "data: %s\n\n", msg.Data)
}

// ClientCount returns the number of connected SSE clients
func (h *CartEventsHandler) ClientCount() int {
	count := 0
	h.clients.Range(func(_, _ any) bool {
		count++
		return true
	})
	return count
}

// RegisterRoutes registers the change-feed route
func (h *CartEventsHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/cart/events", h.Stream)
}

var _ shared.EventHandler = (*CartEventsHandler)(nil)
