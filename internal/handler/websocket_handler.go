package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"chat-relay/internal/domain"
	"chat-relay/internal/observability"
	"chat-relay/internal/pubsub"
	ws "chat-relay/internal/websocket"

	"github.com/gorilla/websocket"
)

// WebSocketHandler upgrades socket and subscription connections
type WebSocketHandler struct {
	ctx          context.Context
	hub          *ws.Hub
	ps           *pubsub.PubSub
	acceptor     ws.MessageAcceptor
	upgrader     websocket.Upgrader
	clientBuffer int
}

// NewWebSocketHandler creates a new WebSocket handler. ctx bounds the
// lifetime of every connection it accepts.
func NewWebSocketHandler(ctx context.Context, hub *ws.Hub, ps *pubsub.PubSub, acceptor ws.MessageAcceptor,
	checkOrigin func(r *http.Request) bool, clientBuffer int) *WebSocketHandler {
	return &WebSocketHandler{
		ctx:      ctx,
		hub:      hub,
		ps:       ps,
		acceptor: acceptor,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
		clientBuffer: clientBuffer,
	}
}

// HandleSocket upgrades a raw socket connection and registers it with the hub
func (h *WebSocketHandler) HandleSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		observability.FromContext(r.Context()).Warn("websocket upgrade failed",
			slog.String("error", err.Error()))
		return
	}

	client := ws.NewClient(h.ctx, h.hub, conn, h.acceptor, h.clientBuffer)

	if err := h.hub.Register(client); err != nil {
		slog.Warn("rejecting socket client",
			slog.String("client_id", client.ID),
			slog.String("error", err.Error()))
		conn.Close()
		return
	}

	go client.WritePump()
	go client.ReadPump()
}

// HandleSubscription upgrades a subscription connection for the requested topic
func (h *WebSocketHandler) HandleSubscription(w http.ResponseWriter, r *http.Request) {
	topic := r.URL.Query().Get("topic")
	if topic == "" {
		topic = domain.TopicMessageAdded
	}

	if !websocket.IsWebSocketUpgrade(r) {
		http.Error(w, `{"error":"WebSocket upgrade required"}`, http.StatusBadRequest)
		return
	}

	// Subscribe before the upgrade so the acknowledgement implies registration
	sub, err := h.ps.Subscribe(topic)
	if err != nil {
		if errors.Is(err, domain.ErrUnknownTopic) {
			http.Error(w, `{"error":"Unknown topic"}`, http.StatusBadRequest)
			return
		}
		http.Error(w, `{"error":"Subscription failed"}`, http.StatusInternalServerError)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		sub.Unsubscribe()
		observability.FromContext(r.Context()).Warn("websocket upgrade failed",
			slog.String("error", err.Error()))
		return
	}

	go ws.NewSubscriptionClient(conn, sub).Serve(h.ctx)
}
