package testutil

import (
	"fmt"
	"sync/atomic"

	"chat-relay/internal/domain"
)

// Counter for generating unique fixture values
var idCounter atomic.Int64

// InputOptions allows customizing message input fixture creation
type InputOptions struct {
	Text   string
	Author string
	UserID string
}

// NewTestInput creates a message input with sensible defaults
// Pass options to override specific fields
func NewTestInput(opts ...func(*InputOptions)) domain.MessageInput {
	n := idCounter.Add(1)
	o := &InputOptions{
		Text:   fmt.Sprintf("message %d", n),
		Author: fmt.Sprintf("author%d", n),
		UserID: fmt.Sprintf("user-%d", n),
	}

	for _, opt := range opts {
		opt(o)
	}

	return domain.MessageInput{
		Text:   o.Text,
		Author: o.Author,
		UserID: o.UserID,
	}
}

// WithText sets the message text
func WithText(text string) func(*InputOptions) {
	return func(o *InputOptions) {
		o.Text = text
	}
}

// WithAuthor sets the message author
func WithAuthor(author string) func(*InputOptions) {
	return func(o *InputOptions) {
		o.Author = author
	}
}

// WithUserID sets the author's user id
func WithUserID(userID string) func(*InputOptions) {
	return func(o *InputOptions) {
		o.UserID = userID
	}
}

// InputBody renders an input as the JSON object clients submit
func InputBody(in domain.MessageInput) map[string]any {
	return map[string]any{
		"text":   in.Text,
		"author": in.Author,
		"userId": in.UserID,
	}
}
