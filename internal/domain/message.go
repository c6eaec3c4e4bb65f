package domain

import (
	"bytes"
	"encoding/json"
)

const (
	// TopicMessageAdded is the subscription topic every accepted message is published under
	TopicMessageAdded = "MESSAGE_ADDED"

	// EventAddChatMessage is sent by socket clients to submit a message
	EventAddChatMessage = "ADD_CHAT_MESSAGE"

	// EventChatMessageAdded is emitted to socket clients for accepted messages.
	// It must differ from EventAddChatMessage so a client never mistakes an echo for a submission.
	EventChatMessageAdded = "CHAT_MESSAGE_ADDED"
)

// Message represents a relayed chat message
type Message struct {
	ID     string `json:"id"`
	Text   string `json:"text"`
	Author string `json:"author"`
	UserID string `json:"userId"`
	Date   int64  `json:"date"`
}

// MessageInput is the author-supplied part of a message.
// Identity and timestamp are always assigned by the store.
type MessageInput struct {
	Text   string `json:"text"`
	Author string `json:"author"`
	UserID string `json:"userId"`
}

// AddedMessagePayload is the payload published on TopicMessageAdded
type AddedMessagePayload struct {
	AddedMessage Message `json:"addedMessage"`
}

// SubmitResult is returned to structured-path submitters
type SubmitResult struct {
	Success bool    `json:"success"`
	Message Message `json:"message"`
}

// UnmarshalJSON accepts any JSON scalar for the input fields. Numbers and
// booleans are kept in their literal form, null and missing fields become "".
// Unknown fields (including id and date) are ignored.
func (in *MessageInput) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*in = MessageInput{
		Text:   scalarString(raw["text"]),
		Author: scalarString(raw["author"]),
		UserID: scalarString(raw["userId"]),
	}
	return nil
}

func scalarString(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}

	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
	}

	// objects and arrays are kept as compact JSON text
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err == nil {
		return buf.String()
	}
	return string(raw)
}
