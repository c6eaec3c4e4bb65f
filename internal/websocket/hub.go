package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"chat-relay/internal/domain"
	"chat-relay/internal/observability"
)

const socketChannel = "socket"

// Frame is the envelope exchanged with socket clients
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// EncodeFrame marshals payload under the given event name
func EncodeFrame(event string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Frame{Event: event, Data: data})
}

// Hub maintains connected socket clients and broadcasts frames to all of them.
// It implements domain.Publisher for the socket broadcast channel.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	closed  bool

	// Shutdown signal
	done chan struct{}
}

// NewHub creates a new Hub
func NewHub() *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		done:    make(chan struct{}),
	}
}

// Run keeps the hub open until ctx is cancelled, then closes every client
func (h *Hub) Run(ctx context.Context) error {
	<-ctx.Done()
	slog.Info("hub shutting down gracefully")
	h.shutdown()
	return ctx.Err()
}

// removeLocked drops a client from the set. Callers hold h.mu.
func (h *Hub) removeLocked(client *Client) {
	if _, ok := h.clients[client]; !ok {
		return
	}

	delete(h.clients, client)
	client.closeSend()
	observability.WebSocketConnectionsActive.WithLabelValues(socketChannel).Dec()
	slog.Info("client unregistered",
		slog.String("client_id", client.ID),
		slog.Int("clients", len(h.clients)))
}

// shutdown performs graceful cleanup of all connections
func (h *Hub) shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	close(h.done)

	for client := range h.clients {
		client.closeSend()
		observability.WebSocketConnectionsActive.WithLabelValues(socketChannel).Dec()
		slog.Info("closed client connection",
			slog.String("client_id", client.ID))
	}
	h.clients = make(map[*Client]struct{})

	slog.Info("hub shutdown complete")
}

// Publish encodes payload as a frame named event and queues it for every
// connected client. Encoding failures are logged and the frame is dropped.
func (h *Hub) Publish(event string, payload any) {
	data, err := EncodeFrame(event, payload)
	if err != nil {
		slog.Error("failed to encode broadcast frame",
			slog.String("event", event),
			slog.String("error", err.Error()))
		return
	}
	h.Broadcast(event, data)
}

// Broadcast queues an encoded frame on every client registered at the time
// of the call. It never blocks: a client whose buffer is full is evicted.
func (h *Hub) Broadcast(event string, data []byte) {
	var slow []*Client

	h.mu.RLock()
	if h.closed {
		h.mu.RUnlock()
		slog.Debug("hub closed, dropping broadcast", slog.String("event", event))
		return
	}
	for client := range h.clients {
		if client.enqueue(data) {
			observability.WebSocketMessagesSent.WithLabelValues(socketChannel, event).Inc()
			continue
		}
		slow = append(slow, client)
	}
	h.mu.RUnlock()

	if len(slow) == 0 {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, client := range slow {
		if _, ok := h.clients[client]; !ok {
			continue
		}
		slog.Warn("evicting slow socket client",
			slog.String("client_id", client.ID))
		observability.ListenersEvicted.WithLabelValues(socketChannel).Inc()
		h.removeLocked(client)
	}
}

// Register registers a client with the hub. Once it returns, the client
// receives every subsequent broadcast and nothing published before it.
func (h *Hub) Register(client *Client) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		client.closeSend()
		return domain.ErrHubClosed
	}

	h.clients[client] = struct{}{}
	observability.WebSocketConnectionsActive.WithLabelValues(socketChannel).Inc()
	slog.Info("client registered",
		slog.String("client_id", client.ID),
		slog.Int("clients", len(h.clients)))
	return nil
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(client)
}

// ClientCount returns the number of registered clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Closed reports whether the hub has shut down
func (h *Hub) Closed() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}
