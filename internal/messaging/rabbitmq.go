package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"chat-relay/internal/domain"

	amqp "github.com/rabbitmq/amqp091-go"
)

// MessagesExchange is the fanout exchange every relayed message is mirrored to
const MessagesExchange = "chat.messages"

type RabbitMQ struct {
	conn    *amqp.Connection
	channel *amqp.Channel
}

// MessageEnvelope is the AMQP body for a mirrored message
type MessageEnvelope struct {
	Topic     string         `json:"topic"`
	Message   domain.Message `json:"message"`
	Timestamp int64          `json:"timestamp"`
}

func NewRabbitMQ(url string) (*RabbitMQ, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	rmq := &RabbitMQ{
		conn:    conn,
		channel: ch,
	}

	if err := rmq.Setup(); err != nil {
		rmq.Close()
		return nil, err
	}

	return rmq, nil
}

// NewRabbitMQWithRetry keeps dialing until it succeeds or ctx expires
func NewRabbitMQWithRetry(ctx context.Context, url string) (*RabbitMQ, error) {
	backoff := 500 * time.Millisecond
	const maxBackoff = 8 * time.Second

	for attempt := 1; ; attempt++ {
		rmq, err := NewRabbitMQ(url)
		if err == nil {
			return rmq, nil
		}

		slog.Warn("rabbitmq not reachable, retrying",
			slog.Int("attempt", attempt),
			slog.Duration("backoff", backoff),
			slog.String("error", err.Error()))

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("giving up on rabbitmq after %d attempts: %w", attempt, err)
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

func (r *RabbitMQ) Setup() error {
	if err := r.channel.ExchangeDeclare(
		MessagesExchange, // name
		"fanout",         // type
		true,             // durable
		false,            // auto-deleted
		false,            // internal
		false,            // no-wait
		nil,              // arguments
	); err != nil {
		return fmt.Errorf("failed to declare messages exchange: %w", err)
	}

	slog.Info("rabbitmq setup completed successfully")
	return nil
}

// PublishMessage mirrors msg to the messages exchange
func (r *RabbitMQ) PublishMessage(ctx context.Context, msg domain.Message) error {
	body, err := json.Marshal(MessageEnvelope{
		Topic:     domain.TopicMessageAdded,
		Message:   msg,
		Timestamp: time.Now().UnixMilli(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	err = r.channel.PublishWithContext(
		ctx,
		MessagesExchange,
		"",
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			MessageId:    msg.ID,
			DeliveryMode: amqp.Transient,
		},
	)

	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}

	slog.Debug("mirrored message to rabbitmq",
		slog.String("message_id", msg.ID),
		slog.String("exchange", MessagesExchange))
	return nil
}

// ConsumeMessages binds a private, auto-deleted queue to the messages
// exchange and returns its deliveries
func (r *RabbitMQ) ConsumeMessages() (<-chan amqp.Delivery, error) {
	queue, err := r.channel.QueueDeclare(
		"",    // auto-generated name
		false, // durable
		true,  // delete when unused
		true,  // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}

	if err := r.channel.QueueBind(
		queue.Name,       // queue name
		"",               // routing key
		MessagesExchange, // exchange
		false,
		nil,
	); err != nil {
		return nil, fmt.Errorf("failed to bind queue: %w", err)
	}

	msgs, err := r.channel.Consume(
		queue.Name, // queue
		"",         // consumer
		true,       // auto-ack
		false,      // exclusive
		false,      // no-local
		false,      // no-wait
		nil,        // args
	)
	if err != nil {
		return nil, fmt.Errorf("failed to register consumer: %w", err)
	}

	slog.Info("started consuming relayed messages",
		slog.String("queue", queue.Name),
		slog.String("exchange", MessagesExchange))
	return msgs, nil
}

func (r *RabbitMQ) IsClosed() bool {
	return r.conn == nil || r.conn.IsClosed()
}

func (r *RabbitMQ) Close() error {
	if r.channel != nil {
		r.channel.Close()
	}
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}
