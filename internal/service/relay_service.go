package service

import (
	"context"
	"log/slog"
	"sync"

	"chat-relay/internal/domain"
	"chat-relay/internal/observability"
)

// Ingestion paths, used as metric labels
const (
	PathMutation = "mutation"
	PathSocket   = "socket"
)

// RelayService is the single entry point for submitting and reading messages
type RelayService struct {
	store       domain.MessageStore
	broadcaster *Broadcaster

	// serialises append+publish so each channel sees ids in log order
	publishMu sync.Mutex
}

func NewRelayService(store domain.MessageStore, broadcaster *Broadcaster) *RelayService {
	return &RelayService{
		store:       store,
		broadcaster: broadcaster,
	}
}

// SubmitMessage appends input and fans the stored message out to every
// subscription listener and every socket client.
func (s *RelayService) SubmitMessage(ctx context.Context, input domain.MessageInput) domain.SubmitResult {
	s.publishMu.Lock()
	msg := s.store.Append(input)
	s.broadcaster.PublishToSubscriptionChannel(msg)
	s.broadcaster.PublishToBroadcastChannel(msg)
	s.publishMu.Unlock()

	observability.MessagesAppended.WithLabelValues(PathMutation).Inc()
	observability.FromContext(ctx).Info("message submitted",
		slog.String("message_id", msg.ID),
		slog.String("path", PathMutation))

	return domain.SubmitResult{Success: true, Message: msg}
}

// AcceptSocketMessage appends input without fanning it out. The caller
// replies to the originating connection only.
func (s *RelayService) AcceptSocketMessage(ctx context.Context, input domain.MessageInput) domain.Message {
	msg := s.store.Append(input)

	observability.MessagesAppended.WithLabelValues(PathSocket).Inc()
	observability.FromContext(ctx).Info("message accepted",
		slog.String("message_id", msg.ID),
		slog.String("path", PathSocket))

	return msg
}

// ListMessages returns the full log in insertion order
func (s *RelayService) ListMessages(_ context.Context) []domain.Message {
	return s.store.List()
}

// MessageCount returns the number of messages in the log
func (s *RelayService) MessageCount() int {
	return s.store.Len()
}
