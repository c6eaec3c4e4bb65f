package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"chat-relay/internal/observability"
	"chat-relay/internal/pubsub"

	"github.com/gorilla/websocket"
)

const subscriptionChannel = "subscription"

// Subscription protocol frame types
const (
	FrameConnectionAck = "connection_ack"
	FrameData          = "data"
	FrameComplete      = "complete"
)

// SubscriptionFrame is the envelope pushed to subscription clients
type SubscriptionFrame struct {
	Type    string `json:"type"`
	Topic   string `json:"topic,omitempty"`
	Payload any    `json:"payload,omitempty"`
}

// SubscriptionClient streams the events of one pubsub subscription over a
// WebSocket connection. Inbound frames are read only to observe closes and pongs.
type SubscriptionClient struct {
	conn    *websocket.Conn
	sub     *pubsub.Subscription
	writeMu sync.Mutex
}

// NewSubscriptionClient binds an upgraded connection to a subscription
func NewSubscriptionClient(conn *websocket.Conn, sub *pubsub.Subscription) *SubscriptionClient {
	return &SubscriptionClient{conn: conn, sub: sub}
}

// Serve acknowledges the subscription and streams events until the
// connection closes, the subscription ends or ctx is cancelled.
func (s *SubscriptionClient) Serve(ctx context.Context) {
	ctx, cancel := context.WithCancel(observability.WithClientID(ctx, s.sub.ID))
	log := observability.FromContext(ctx)

	observability.WebSocketConnectionsActive.WithLabelValues(subscriptionChannel).Inc()
	defer func() {
		cancel()
		s.sub.Unsubscribe()
		s.conn.Close()
		observability.WebSocketConnectionsActive.WithLabelValues(subscriptionChannel).Dec()
		log.Info("subscription closed", slog.String("topic", s.sub.Topic))
	}()

	go s.readLoop(cancel)

	if err := s.writeFrame(SubscriptionFrame{Type: FrameConnectionAck, Topic: s.sub.Topic}); err != nil {
		log.Warn("failed to acknowledge subscription", slog.String("error", err.Error()))
		return
	}
	log.Info("subscription started", slog.String("topic", s.sub.Topic))

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.writeClose()
			return

		case evt, ok := <-s.sub.Events():
			if !ok {
				// evicted or pubsub closed
				_ = s.writeFrame(SubscriptionFrame{Type: FrameComplete, Topic: s.sub.Topic})
				s.writeClose()
				return
			}
			if err := s.writeFrame(SubscriptionFrame{Type: FrameData, Topic: evt.Topic, Payload: evt.Payload}); err != nil {
				log.Warn("failed to push subscription event", slog.String("error", err.Error()))
				return
			}
			observability.WebSocketMessagesSent.WithLabelValues(subscriptionChannel, evt.Topic).Inc()

		case <-ticker.C:
			if err := s.write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *SubscriptionClient) readLoop(cancel context.CancelFunc) {
	defer cancel()

	s.conn.SetReadLimit(maxMessageSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *SubscriptionClient) writeFrame(frame SubscriptionFrame) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	return s.write(websocket.TextMessage, data)
}

func (s *SubscriptionClient) writeClose() {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = s.write(websocket.CloseMessage, msg)
}

func (s *SubscriptionClient) write(messageType int, data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return s.conn.WriteMessage(messageType, data)
}
