package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chat-relay/internal/config"
	"chat-relay/internal/domain"
	"chat-relay/internal/messaging"
	"chat-relay/internal/observability"
	"chat-relay/internal/pubsub"
	"chat-relay/internal/repository/memory"
	"chat-relay/internal/server"
	"chat-relay/internal/service"
	"chat-relay/internal/websocket"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Config error: %v", err)
	}

	observability.InitLogger(cfg.LogLevel, cfg.LogFormat)

	slog.Info("starting chat relay", slog.String("environment", cfg.Environment))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := memory.NewMessageRepository()
	ps := pubsub.New(cfg.SubscriberBuffer, domain.TopicMessageAdded)
	hub := websocket.NewHub()

	hubCtx, hubCancel := context.WithCancel(context.Background())
	defer hubCancel()
	go func() {
		if err := hub.Run(hubCtx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("hub error", slog.String("error", err.Error()))
		}
	}()
	slog.Info("websocket hub started")

	relay := service.NewRelayService(store, service.NewBroadcaster(ps, hub))

	deps := server.Deps{
		Config: cfg,
		Relay:  relay,
		Hub:    hub,
		PubSub: ps,
	}

	var forwarderDone <-chan struct{}
	if cfg.RabbitMQURL != "" {
		rmqCtx, rmqCancel := context.WithTimeout(ctx, 60*time.Second)
		rmq, err := messaging.NewRabbitMQWithRetry(rmqCtx, cfg.RabbitMQURL)
		rmqCancel()
		if err != nil {
			slog.Error("failed to connect to rabbitmq", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer rmq.Close()

		forwarder := messaging.NewForwarder(ps, rmq)
		forwarderDone, err = forwarder.Start(ctx)
		if err != nil {
			slog.Error("failed to start message forwarder", slog.String("error", err.Error()))
			os.Exit(1)
		}
		deps.Broker = messaging.NewMirror(rmq, forwarder)
		slog.Info("rabbitmq mirror enabled", slog.String("exchange", messaging.MessagesExchange))
	} else {
		slog.Info("rabbitmq mirror disabled")
	}

	srv := &http.Server{
		Addr:        cfg.Addr(),
		Handler:     server.NewRouter(ctx, deps),
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		slog.Info("server ready", slog.String("url", "http://localhost"+cfg.Addr()+"/api/v1"))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	slog.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", slog.String("error", err.Error()))
	}

	// Closing the pubsub completes every open subscription stream
	ps.Close()
	cancel()
	hubCancel()

	if forwarderDone != nil {
		select {
		case <-forwarderDone:
		case <-shutdownCtx.Done():
			slog.Warn("forwarder did not stop in time")
		}
	}

	slog.Info("server stopped gracefully")
}
