//go:generate go run go.uber.org/mock/mockgen -source=publisher.go -destination=../mocks/mock_publisher.go -package=mocks

package domain

// Publisher delivers a named event to every listener currently attached to one
// delivery channel. Delivery is fire-and-forget: failures reaching a listener
// are transport concerns and are never reported back to the caller.
type Publisher interface {
	Publish(event string, payload any)
}

// MessageStore is the append-only log of accepted messages
type MessageStore interface {
	Append(input MessageInput) Message
	List() []Message
	Len() int
}
