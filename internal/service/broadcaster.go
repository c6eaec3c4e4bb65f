package service

import (
	"chat-relay/internal/domain"
)

// Broadcaster fans accepted messages out to the two delivery channels
type Broadcaster struct {
	subscriptions domain.Publisher
	sockets       domain.Publisher
}

// NewBroadcaster creates a broadcaster over the subscription and socket channels
func NewBroadcaster(subscriptions, sockets domain.Publisher) *Broadcaster {
	return &Broadcaster{
		subscriptions: subscriptions,
		sockets:       sockets,
	}
}

// PublishToSubscriptionChannel delivers msg to every listener of the
// MESSAGE_ADDED topic as {addedMessage: msg}
func (b *Broadcaster) PublishToSubscriptionChannel(msg domain.Message) {
	b.subscriptions.Publish(domain.TopicMessageAdded, domain.AddedMessagePayload{AddedMessage: msg})
}

// PublishToBroadcastChannel emits msg to every connected socket client
func (b *Broadcaster) PublishToBroadcastChannel(msg domain.Message) {
	b.sockets.Publish(domain.EventChatMessageAdded, msg)
}
