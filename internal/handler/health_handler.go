package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// Health returns basic health check
func Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status": "ok",
	})
}

// HealthCheckResult represents the result of a health check
type HealthCheckResult struct {
	Status    string         `json:"status"`
	LatencyMs int64          `json:"latency_ms,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Error     string         `json:"error,omitempty"`
}

// HubStatus is the part of the socket hub readiness depends on
type HubStatus interface {
	Closed() bool
	ClientCount() int
}

// BrokerStatus is the part of the AMQP mirror readiness depends on
type BrokerStatus interface {
	IsClosed() bool
}

// LogStatus reports the size of the message log
type LogStatus interface {
	MessageCount() int
}

// Ready returns readiness check with dependencies. A nil broker means the
// AMQP mirror is disabled and is reported as such without failing readiness.
func Ready(log LogStatus, hub HubStatus, broker BrokerStatus) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		// Check dependencies in parallel
		hubResult := make(chan HealthCheckResult, 1)
		brokerResult := make(chan HealthCheckResult, 1)

		go func() {
			hubResult <- checkHub(ctx, hub)
		}()

		go func() {
			brokerResult <- checkBroker(ctx, broker)
		}()

		hubCheck := <-hubResult
		brokerCheck := <-brokerResult

		response := map[string]any{
			"timestamp": time.Now().Format(time.RFC3339),
			"checks": map[string]HealthCheckResult{
				"hub":      hubCheck,
				"rabbitmq": brokerCheck,
				"log": {
					Status:   "up",
					Metadata: map[string]any{"messages": log.MessageCount()},
				},
			},
		}

		allHealthy := hubCheck.Status == "up" && brokerCheck.Status != "down"

		w.Header().Set("Content-Type", "application/json")
		if allHealthy {
			response["status"] = "ready"
			w.WriteHeader(http.StatusOK)
		} else {
			response["status"] = "not_ready"
			w.WriteHeader(http.StatusServiceUnavailable)
		}

		json.NewEncoder(w).Encode(response)
	}
}

// checkHub verifies the socket hub loop is running
func checkHub(_ context.Context, hub HubStatus) HealthCheckResult {
	if hub.Closed() {
		return HealthCheckResult{
			Status: "down",
			Error:  "hub stopped",
		}
	}

	return HealthCheckResult{
		Status: "up",
		Metadata: map[string]any{
			"clients": hub.ClientCount(),
		},
	}
}

// checkBroker reports whether messages are still being mirrored to RabbitMQ
func checkBroker(_ context.Context, broker BrokerStatus) HealthCheckResult {
	if broker == nil {
		return HealthCheckResult{Status: "disabled"}
	}

	start := time.Now()

	if broker.IsClosed() {
		return HealthCheckResult{
			Status: "down",
			Error:  "mirror not running",
		}
	}

	return HealthCheckResult{
		Status:    "up",
		LatencyMs: time.Since(start).Milliseconds(),
	}
}
