package messaging

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"chat-relay/internal/domain"
	"chat-relay/internal/observability"
	"chat-relay/internal/pubsub"
)

const publishTimeout = 5 * time.Second

// MessagePublisher mirrors a message to an external broker
type MessagePublisher interface {
	PublishMessage(ctx context.Context, msg domain.Message) error
}

// Forwarder is a subscription-channel listener that mirrors every
// MESSAGE_ADDED publication to an external broker.
//
// Draining the subscription and publishing to the broker run on separate
// goroutines joined by an unbounded queue, so a slow broker never holds up
// the subscription. If the subscription is evicted anyway the forwarder
// subscribes again.
type Forwarder struct {
	ps        *pubsub.PubSub
	publisher MessagePublisher

	mu      sync.Mutex
	queue   []domain.Message
	wake    chan struct{}
	stopped chan struct{}
}

func NewForwarder(ps *pubsub.PubSub, publisher MessagePublisher) *Forwarder {
	return &Forwarder{
		ps:        ps,
		publisher: publisher,
		wake:      make(chan struct{}, 1),
	}
}

// Start subscribes to MESSAGE_ADDED and forwards in the background until ctx
// is cancelled or the PubSub is closed. The returned channel is closed when
// forwarding stops.
func (f *Forwarder) Start(ctx context.Context) (<-chan struct{}, error) {
	sub, err := f.ps.Subscribe(domain.TopicMessageAdded)
	if err != nil {
		return nil, err
	}

	slog.Info("started forwarding messages",
		slog.String("topic", domain.TopicMessageAdded),
		slog.String("subscription_id", sub.ID))

	stopped := make(chan struct{})
	f.mu.Lock()
	f.stopped = stopped
	f.mu.Unlock()

	drained := make(chan struct{})
	go f.drain(ctx, sub, drained)
	go func() {
		defer close(stopped)
		f.send(ctx, drained)
	}()

	return stopped, nil
}

// Stopped reports whether forwarding has ended. A forwarder that was never
// started counts as stopped.
func (f *Forwarder) Stopped() bool {
	f.mu.Lock()
	stopped := f.stopped
	f.mu.Unlock()

	if stopped == nil {
		return true
	}
	select {
	case <-stopped:
		return true
	default:
		return false
	}
}

// drain moves subscription events onto the queue until ctx is done or the
// subscription ends for a reason other than eviction
func (f *Forwarder) drain(ctx context.Context, sub *pubsub.Subscription, done chan<- struct{}) {
	defer close(done)

	for {
		select {
		case <-ctx.Done():
			sub.Unsubscribe()
			slog.Info("stopping message forwarder")
			return

		case evt, ok := <-sub.Events():
			if !ok {
				if !sub.Evicted() || ctx.Err() != nil {
					slog.Warn("forwarder subscription closed")
					return
				}

				next, err := f.ps.Subscribe(domain.TopicMessageAdded)
				if err != nil {
					slog.Error("forwarder failed to resubscribe",
						slog.String("error", err.Error()))
					return
				}
				slog.Warn("forwarder fell behind and resubscribed",
					slog.String("previous_subscription_id", sub.ID),
					slog.String("subscription_id", next.ID))
				sub = next
				continue
			}

			payload, ok := evt.Payload.(domain.AddedMessagePayload)
			if !ok {
				slog.Warn("unexpected payload on message topic",
					slog.String("topic", evt.Topic))
				continue
			}
			f.push(payload.AddedMessage)
		}
	}
}

// send publishes queued messages in order. Once drain has finished it
// flushes what is left and returns.
func (f *Forwarder) send(ctx context.Context, drained <-chan struct{}) {
	for {
		if msg, ok := f.pop(); ok {
			f.forward(ctx, msg)
			continue
		}

		select {
		case <-ctx.Done():
			<-drained
			return
		case <-f.wake:
		case <-drained:
			for {
				msg, ok := f.pop()
				if !ok || ctx.Err() != nil {
					return
				}
				f.forward(ctx, msg)
			}
		}
	}
}

func (f *Forwarder) push(msg domain.Message) {
	f.mu.Lock()
	f.queue = append(f.queue, msg)
	f.mu.Unlock()

	select {
	case f.wake <- struct{}{}:
	default:
	}
}

func (f *Forwarder) pop() (domain.Message, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.queue) == 0 {
		return domain.Message{}, false
	}
	msg := f.queue[0]
	f.queue[0] = domain.Message{}
	f.queue = f.queue[1:]
	return msg, true
}

func (f *Forwarder) forward(ctx context.Context, msg domain.Message) {
	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	if err := f.publisher.PublishMessage(pubCtx, msg); err != nil {
		observability.AMQPMessagesForwarded.WithLabelValues("error").Inc()
		slog.Error("failed to forward message",
			slog.String("message_id", msg.ID),
			slog.String("error", err.Error()))
		return
	}
	observability.AMQPMessagesForwarded.WithLabelValues("ok").Inc()
}

// BrokerConn is the connection state the mirror depends on
type BrokerConn interface {
	IsClosed() bool
}

// Mirror combines the broker connection and its forwarder into one status:
// the mirror is closed when either the connection or the forwarder is down.
type Mirror struct {
	conn      BrokerConn
	forwarder *Forwarder
}

func NewMirror(conn BrokerConn, forwarder *Forwarder) *Mirror {
	return &Mirror{conn: conn, forwarder: forwarder}
}

// IsClosed reports whether messages are no longer being mirrored
func (m *Mirror) IsClosed() bool {
	return m.conn.IsClosed() || m.forwarder.Stopped()
}
