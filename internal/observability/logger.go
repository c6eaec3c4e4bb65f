package observability

import (
	"context"
	"io"
	"log/slog"
	"os"
)

type contextKey string

const (
	requestIDKey contextKey = "request_id"
	clientIDKey  contextKey = "client_id"
)

var logger *slog.Logger

// InitLogger initializes the global structured logger
func InitLogger(level, format string) {
	logger = NewLogger(os.Stdout, level, format)
	slog.SetDefault(logger)
}

// NewLogger builds a JSON or text logger writing to w
func NewLogger(w io.Writer, level, format string) *slog.Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level:     parseLevel(level),
		AddSource: level == "debug",
	}

	if format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}

// FromContext returns a logger with context values attached
func FromContext(ctx context.Context) *slog.Logger {
	base := logger
	if base == nil {
		// Fallback to default logger if not initialized
		base = slog.Default()
	}

	attrs := make([]any, 0, 2)

	if reqID, ok := ctx.Value(requestIDKey).(string); ok && reqID != "" {
		attrs = append(attrs, slog.String("request_id", reqID))
	}

	if clientID, ok := ctx.Value(clientIDKey).(string); ok && clientID != "" {
		attrs = append(attrs, slog.String("client_id", clientID))
	}

	if len(attrs) > 0 {
		return base.With(attrs...)
	}
	return base
}

// WithRequestID adds request ID to context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestID returns the request ID stored in ctx, if any
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// WithClientID adds a socket connection ID to context
func WithClientID(ctx context.Context, clientID string) context.Context {
	return context.WithValue(ctx, clientIDKey, clientID)
}

// parseLevel converts string level to slog.Level
func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
