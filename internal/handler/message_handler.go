package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"chat-relay/internal/domain"
	"chat-relay/internal/observability"
	"chat-relay/internal/service"
)

// maxBodySize bounds a submitted message body
const maxBodySize = 64 << 10

// MessageHandler serves the structured message query and mutation
type MessageHandler struct {
	relay *service.RelayService
}

// NewMessageHandler creates a new message handler
func NewMessageHandler(relay *service.RelayService) *MessageHandler {
	return &MessageHandler{relay: relay}
}

// List returns the full message log
func (h *MessageHandler) List(w http.ResponseWriter, r *http.Request) {
	messages := h.relay.ListMessages(r.Context())

	writeJSON(w, http.StatusOK, map[string]any{
		"messages": messages,
	})
}

// Create appends a message and fans it out on both delivery channels
func (h *MessageHandler) Create(w http.ResponseWriter, r *http.Request) {
	var input domain.MessageInput
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&input); err != nil {
		observability.FromContext(r.Context()).Warn("invalid message body",
			slog.String("error", err.Error()))
		http.Error(w, `{"error":"Invalid request body"}`, http.StatusBadRequest)
		return
	}

	result := h.relay.SubmitMessage(r.Context(), input)

	writeJSON(w, http.StatusOK, result)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}
