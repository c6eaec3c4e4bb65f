//go:build integration

package messaging_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"chat-relay/internal/domain"
	"chat-relay/internal/messaging"
	"chat-relay/internal/pubsub"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRabbitMQ starts a RabbitMQ container and returns its connection URL
func setupRabbitMQ(t *testing.T) string {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "rabbitmq:3.12-alpine",
		ExposedPorts: []string{"5672/tcp"},
		Env: map[string]string{
			"RABBITMQ_DEFAULT_USER": "guest",
			"RABBITMQ_DEFAULT_PASS": "guest",
		},
		WaitingFor: wait.ForAll(
			wait.ForLog("Server startup complete"),
			wait.ForListeningPort("5672/tcp"),
		).WithDeadline(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err, "failed to start RabbitMQ container")

	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)

	port, err := container.MappedPort(ctx, "5672")
	require.NoError(t, err)

	return fmt.Sprintf("amqp://guest:guest@%s:%s/", host, port.Port())
}

func TestRabbitMQConnection(t *testing.T) {
	url := setupRabbitMQ(t)

	t.Run("successful_connection", func(t *testing.T) {
		rmq, err := messaging.NewRabbitMQ(url)
		require.NoError(t, err)
		defer rmq.Close()

		assert.False(t, rmq.IsClosed())
	})

	t.Run("invalid_url_fails", func(t *testing.T) {
		_, err := messaging.NewRabbitMQ("amqp://invalid:9999/")
		assert.Error(t, err)
	})

	t.Run("retry_gives_up_with_context", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		_, err := messaging.NewRabbitMQWithRetry(ctx, "amqp://invalid:9999/")
		assert.Error(t, err)
	})

	t.Run("close_connection", func(t *testing.T) {
		rmq, err := messaging.NewRabbitMQ(url)
		require.NoError(t, err)

		assert.NoError(t, rmq.Close())
		assert.True(t, rmq.IsClosed())
	})
}

func TestPublishAndConsumeMessages(t *testing.T) {
	url := setupRabbitMQ(t)

	rmq, err := messaging.NewRabbitMQ(url)
	require.NoError(t, err)
	defer rmq.Close()

	consumer, err := messaging.NewRabbitMQ(url)
	require.NoError(t, err)
	defer consumer.Close()

	deliveries, err := consumer.ConsumeMessages()
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	msg := domain.Message{ID: "0", Text: "hello", Author: "alice", UserID: "u1", Date: time.Now().UnixMilli()}
	require.NoError(t, rmq.PublishMessage(ctx, msg))

	select {
	case d := <-deliveries:
		var envelope messaging.MessageEnvelope
		require.NoError(t, json.Unmarshal(d.Body, &envelope))
		assert.Equal(t, domain.TopicMessageAdded, envelope.Topic)
		assert.Equal(t, msg, envelope.Message)
		assert.Equal(t, "0", d.MessageId)
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for mirrored message")
	}
}

func TestForwarderMirrorsSubscriptionChannel(t *testing.T) {
	url := setupRabbitMQ(t)

	rmq, err := messaging.NewRabbitMQ(url)
	require.NoError(t, err)
	defer rmq.Close()

	consumer, err := messaging.NewRabbitMQ(url)
	require.NoError(t, err)
	defer consumer.Close()

	deliveries, err := consumer.ConsumeMessages()
	require.NoError(t, err)

	ps := pubsub.New(16, domain.TopicMessageAdded)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, err = messaging.NewForwarder(ps, rmq).Start(ctx)
	require.NoError(t, err)

	ps.Publish(domain.TopicMessageAdded, domain.AddedMessagePayload{
		AddedMessage: domain.Message{ID: "3", Text: "mirrored"},
	})

	select {
	case d := <-deliveries:
		var envelope messaging.MessageEnvelope
		require.NoError(t, json.Unmarshal(d.Body, &envelope))
		assert.Equal(t, "3", envelope.Message.ID)
		assert.Equal(t, "mirrored", envelope.Message.Text)
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for forwarded message")
	}
}
