package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"recipebox/internal/middleware"
	"recipebox/internal/models"
	"recipebox/internal/observability"

	"github.com/gofiber/websocket/v2"
)

const (
	maxTotalConns      = 10000
	listenerBufferSize = 64
	changeHubName      = "change hub"
)

// ErrHubClosed is returned by Register after Shutdown.
var ErrHubClosed = errors.New("hub is shut down")

// Listener receives matching change events in-process.
type Listener struct {
	hub    *Hub
	filter models.ChangeFilter
	events chan models.ChangeEvent
	once   sync.Once
}

// Events returns the channel of matching events. It is closed by Close or
// hub shutdown.
func (l *Listener) Events() <-chan models.ChangeEvent {
	return l.events
}

// Close detaches the listener; it is safe to call more than once.
func (l *Listener) Close() error {
	l.hub.removeListener(l)
	return nil
}

// Hub tracks change-feed websocket clients and in-process listeners and
// delivers each event to those whose filter matches.
type Hub struct {
	mu        sync.RWMutex
	clients   map[*Client]struct{}
	listeners map[*Listener]struct{}
	closed    bool
	log       *observability.WSLogger
}

// NewHub creates an empty change hub.
func NewHub() *Hub {
	return &Hub{
		clients:   make(map[*Client]struct{}),
		listeners: make(map[*Listener]struct{}),
		log:       observability.NewWSLogger(changeHubName),
	}
}

// Name returns a human-readable identifier for this hub.
func (h *Hub) Name() string { return changeHubName }

// Logger returns the hub's websocket logger.
func (h *Hub) Logger() *observability.WSLogger { return h.log }

// Register adds a websocket client with the given filter.
func (h *Hub) Register(userID string, filter models.ChangeFilter, conn *websocket.Conn) (*Client, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, ErrHubClosed
	}
	if len(h.clients) >= maxTotalConns {
		return nil, errors.New("server connection limit reached")
	}

	client := NewClient(h, conn, userID, filter)
	h.clients[client] = struct{}{}
	observability.WebSocketConnectionsTotal.Inc()
	h.log.LogConnect(context.Background(), userID, filter.RecipeID)
	return client, nil
}

// UnregisterClient removes the client and closes its send buffer.
func (h *Hub) UnregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	close(client.Send)
	observability.WebSocketConnectionsTotal.Dec()
	h.log.LogDisconnect(context.Background(), client.UserID, client.Filter.RecipeID, "unregistered")
}

// Listen attaches an in-process listener.
func (h *Hub) Listen(filter models.ChangeFilter) *Listener {
	l := &Listener{hub: h, filter: filter, events: make(chan models.ChangeEvent, listenerBufferSize)}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(l.events)
		l.once.Do(func() {})
		return l
	}
	h.listeners[l] = struct{}{}
	return l
}

func (h *Hub) removeListener(l *Listener) {
	h.mu.Lock()
	defer h.mu.Unlock()
	l.once.Do(func() {
		delete(h.listeners, l)
		close(l.events)
	})
}

// Dispatch delivers ev to every client and listener whose filter matches.
func (h *Hub) Dispatch(ev models.ChangeEvent) {
	payload, err := json.Marshal(ev)
	if err != nil {
		middleware.Logger.Error("failed to encode change event", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		if c.Filter.Matches(ev) {
			c.TrySend(payload)
		}
	}
	for l := range h.listeners {
		if !l.filter.Matches(ev) {
			continue
		}
		select {
		case l.events <- ev:
		default:
			observability.WebSocketBackpressureDrops.WithLabelValues(changeHubName, "listener_full").Inc()
		}
	}
}

// ClientCount returns the number of registered websocket clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ListenerCount returns the number of attached in-process listeners.
func (h *Hub) ListenerCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.listeners)
}

// StartWiring subscribes to Redis change channels and dispatches every
// received event to this hub.
func (h *Hub) StartWiring(ctx context.Context, n *Notifier) error {
	if err := n.StartChangeSubscriber(ctx, h.Dispatch); err != nil {
		return err
	}
	h.log.LogLifecycle(ctx, "wired", map[string]any{"pattern": changeChannelPattern})
	return nil
}

// Shutdown closes every client connection and listener.
func (h *Hub) Shutdown(_ context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}
	h.closed = true

	// The write pump owns the connection: it sends the close frame once Send
	// is closed and then closes the socket.
	for client := range h.clients {
		client.closeMessage = websocket.FormatCloseMessage(websocket.CloseGoingAway, "Server shutting down")
		delete(h.clients, client)
		close(client.Send)
		observability.WebSocketConnectionsTotal.Dec()
	}
	for l := range h.listeners {
		l.once.Do(func() {
			delete(h.listeners, l)
			close(l.events)
		})
	}
	h.log.LogLifecycle(context.Background(), "shutdown", nil)
	return nil
}
