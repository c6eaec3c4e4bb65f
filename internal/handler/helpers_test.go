package handler

import (
	"context"
	"testing"

	"chat-relay/internal/domain"
	"chat-relay/internal/pubsub"
	"chat-relay/internal/repository/memory"
	"chat-relay/internal/service"
	ws "chat-relay/internal/websocket"
)

// relayFixture wires an in-memory relay the way the server does
type relayFixture struct {
	ctx   context.Context
	store *memory.MessageRepository
	ps    *pubsub.PubSub
	hub   *ws.Hub
	relay *service.RelayService
}

func newRelayFixture(t *testing.T) *relayFixture {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	store := memory.NewMessageRepository()
	ps := pubsub.New(16, domain.TopicMessageAdded)
	hub := ws.NewHub()
	go hub.Run(ctx)

	t.Cleanup(func() {
		cancel()
		ps.Close()
	})

	return &relayFixture{
		ctx:   ctx,
		store: store,
		ps:    ps,
		hub:   hub,
		relay: service.NewRelayService(store, service.NewBroadcaster(ps, hub)),
	}
}
