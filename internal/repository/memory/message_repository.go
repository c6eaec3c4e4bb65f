package memory

import (
	"strconv"
	"sync"
	"time"

	"chat-relay/internal/domain"
	"chat-relay/internal/observability"
)

// MessageRepository is the process-lifetime, append-only message log.
// It implements domain.MessageStore.
type MessageRepository struct {
	mu       sync.RWMutex
	messages []domain.Message
	lastDate int64
	now      func() time.Time
}

// NewMessageRepository creates an empty message log
func NewMessageRepository() *MessageRepository {
	return &MessageRepository{now: time.Now}
}

// NewMessageRepositoryWithClock creates an empty message log that reads time from now
func NewMessageRepositoryWithClock(now func() time.Time) *MessageRepository {
	return &MessageRepository{now: now}
}

// Append assigns the next positional id and the current time to input and
// stores the resulting message at the end of the log.
func (r *MessageRepository) Append(input domain.MessageInput) domain.Message {
	r.mu.Lock()
	defer r.mu.Unlock()

	// dates never go backwards, even if the wall clock does
	date := r.now().UnixMilli()
	if date < r.lastDate {
		date = r.lastDate
	}
	r.lastDate = date

	msg := domain.Message{
		ID:     strconv.Itoa(len(r.messages)),
		Text:   input.Text,
		Author: input.Author,
		UserID: input.UserID,
		Date:   date,
	}
	r.messages = append(r.messages, msg)

	observability.MessageLogSize.Set(float64(len(r.messages)))
	return msg
}

// List returns a copy of the log in insertion order
func (r *MessageRepository) List() []domain.Message {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snapshot := make([]domain.Message, len(r.messages))
	copy(snapshot, r.messages)
	return snapshot
}

// Len returns the number of messages in the log
func (r *MessageRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.messages)
}
