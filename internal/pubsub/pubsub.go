// Package pubsub is the in-process subscription channel: listeners register
// interest in a named topic and receive every later publication to it.
package pubsub

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"chat-relay/internal/domain"
	"chat-relay/internal/observability"

	"github.com/google/uuid"
)

const channelName = "subscription"

// Event is a single publication delivered to a subscriber
type Event struct {
	Topic   string
	Payload any
}

// Subscription is one listener registered under a topic.
// Its channel is closed when the listener unsubscribes or is evicted.
type Subscription struct {
	ID    string
	Topic string

	events  chan Event
	ps      *PubSub
	once    sync.Once
	evicted atomic.Bool
}

// Events returns the stream of publications for this subscription
func (s *Subscription) Events() <-chan Event {
	return s.events
}

// Evicted reports whether the stream was closed because the listener fell
// behind, as opposed to unsubscribing or the PubSub closing
func (s *Subscription) Evicted() bool {
	return s.evicted.Load()
}

// Unsubscribe removes the listener and closes its stream. Safe to call more than once.
func (s *Subscription) Unsubscribe() {
	s.ps.remove(s, false)
}

// PubSub fans publications out to topic subscribers. It implements domain.Publisher.
type PubSub struct {
	mu     sync.RWMutex
	topics map[string]map[*Subscription]struct{}
	buffer int
}

// New creates a PubSub that accepts subscriptions for the given topics.
// Each subscriber gets a stream buffered to bufferSize events.
func New(bufferSize int, topics ...string) *PubSub {
	if bufferSize <= 0 {
		bufferSize = 1
	}

	ps := &PubSub{
		topics: make(map[string]map[*Subscription]struct{}, len(topics)),
		buffer: bufferSize,
	}
	for _, topic := range topics {
		ps.topics[topic] = make(map[*Subscription]struct{})
	}
	return ps
}

// Subscribe registers a new listener under topic. The listener only sees
// publications made after this call returns.
func (p *PubSub) Subscribe(topic string) (*Subscription, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	subs, ok := p.topics[topic]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownTopic, topic)
	}

	sub := &Subscription{
		ID:     uuid.NewString(),
		Topic:  topic,
		events: make(chan Event, p.buffer),
		ps:     p,
	}
	subs[sub] = struct{}{}

	observability.SubscribersActive.WithLabelValues(topic).Inc()
	slog.Debug("subscriber registered",
		slog.String("topic", topic),
		slog.String("subscription_id", sub.ID))

	return sub, nil
}

// Publish delivers payload to every listener registered under topic at the
// time of the call. It never blocks: a listener whose buffer is full is evicted.
func (p *PubSub) Publish(topic string, payload any) {
	evt := Event{Topic: topic, Payload: payload}

	var slow []*Subscription

	p.mu.RLock()
	for sub := range p.topics[topic] {
		select {
		case sub.events <- evt:
		default:
			slow = append(slow, sub)
		}
	}
	p.mu.RUnlock()

	for _, sub := range slow {
		slog.Warn("evicting slow subscriber",
			slog.String("topic", topic),
			slog.String("subscription_id", sub.ID))
		p.remove(sub, true)
	}
}

// SubscriberCount returns the number of listeners registered under topic
func (p *PubSub) SubscriberCount(topic string) int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.topics[topic])
}

// Close removes every listener and closes their streams
func (p *PubSub) Close() {
	p.mu.RLock()
	all := make([]*Subscription, 0)
	for _, subs := range p.topics {
		for sub := range subs {
			all = append(all, sub)
		}
	}
	p.mu.RUnlock()

	for _, sub := range all {
		p.remove(sub, false)
	}
}

func (p *PubSub) remove(sub *Subscription, evicted bool) {
	sub.once.Do(func() {
		sub.evicted.Store(evicted)

		p.mu.Lock()
		delete(p.topics[sub.Topic], sub)
		close(sub.events)
		p.mu.Unlock()

		observability.SubscribersActive.WithLabelValues(sub.Topic).Dec()
		if evicted {
			observability.ListenersEvicted.WithLabelValues(channelName).Inc()
		}
	})
}
