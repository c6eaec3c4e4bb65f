package server

import (
	"context"
	"net/http"

	"chat-relay/internal/config"
	"chat-relay/internal/handler"
	"chat-relay/internal/middleware"
	"chat-relay/internal/pubsub"
	"chat-relay/internal/service"
	ws "chat-relay/internal/websocket"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Deps are the collaborators the HTTP surface is built from.
// Broker is nil when the AMQP mirror is disabled.
type Deps struct {
	Config *config.Config
	Relay  *service.RelayService
	Hub    *ws.Hub
	PubSub *pubsub.PubSub
	Broker handler.BrokerStatus
}

// NewRouter builds the HTTP router. ctx bounds the lifetime of upgraded connections.
func NewRouter(ctx context.Context, deps Deps) http.Handler {
	cfg := deps.Config
	origins := middleware.ParseOrigins(cfg.AllowedOrigins)

	messageHandler := handler.NewMessageHandler(deps.Relay)
	wsHandler := handler.NewWebSocketHandler(ctx, deps.Hub, deps.PubSub, deps.Relay,
		middleware.OriginAllowed(origins), cfg.ClientBuffer)
	staticHandler := handler.NewStaticHandler(cfg.StaticMaxAge, cfg.DistDir, cfg.AssetsDir)

	r := chi.NewRouter()

	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogging())
	r.Use(middleware.CORS(origins))
	r.Use(middleware.Metrics())

	r.Get("/health", handler.Health)
	r.Get("/health/ready", handler.Ready(deps.Relay, deps.Hub, deps.Broker))
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		validation := middleware.DefaultOpenAPIValidatorConfig(cfg.OpenAPIValidation, cfg.OpenAPISpecPath)
		validation.ValidateResponses = cfg.OpenAPIValidateResponses
		r.Use(middleware.OpenAPIValidator(validation))

		r.Get("/messages", messageHandler.List)
		r.Post("/messages", messageHandler.Create)
		r.Get("/subscriptions", wsHandler.HandleSubscription)
	})

	r.Get("/socket", wsHandler.HandleSocket)

	// Everything else is the single page app
	r.Handle("/*", staticHandler)

	return r
}
