package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"chaos-ai/internal/contextutil"
	"chaos-ai/internal/service"
)

// ChatHandler handles HTTP requests for chat.
type ChatHandler struct {
	relay        service.RelayService
	maxBodyBytes int64
}

// NewChatHandler creates a new ChatHandler. maxBodyBytes <= 0 disables the body limit.
func NewChatHandler(relay service.RelayService, maxBodyBytes int64) *ChatHandler {
	return &ChatHandler{
		relay:        relay,
		maxBodyBytes: maxBodyBytes,
	}
}

// ChatRequest represents the HTTP request payload for chat.
// Message is a pointer so an absent field can be told apart from an empty string.
type ChatRequest struct {
	Message *string `json:"message"`
}

// ChatResponse represents the HTTP response payload for chat.
type ChatResponse struct {
	Response string `json:"response"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ServeHTTP handles HTTP requests for chat.
func (h *ChatHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if r.Method != http.MethodPost {
		logger.WarnContext(ctx, "method not allowed", "method", r.Method)
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	if h.maxBodyBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	}

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			logger.WarnContext(ctx, "request body too large", "limit", maxErr.Limit)
			writeError(w, http.StatusBadRequest, "Request body too large")
			return
		}
		logger.WarnContext(ctx, "invalid request body", "error", err)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Message == nil {
		h.handleServiceError(w, ctx, &service.ValidationError{
			Field:   "message",
			Message: "is required",
		}, "Invalid request")
		return
	}

	resp, err := h.relay.Relay(ctx, service.RelayRequest{Message: *req.Message})
	if err != nil {
		h.handleServiceError(w, ctx, err, "Failed to process message")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(ChatResponse{Response: resp.Response}); err != nil {
		logger.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

// handleServiceError maps service errors to appropriate HTTP status codes and responses.
func (h *ChatHandler) handleServiceError(w http.ResponseWriter, ctx context.Context, err error, defaultMsg string) {
	logger := contextutil.LoggerFromContext(ctx)

	var validationErr *service.ValidationError
	if errors.As(err, &validationErr) {
		logger.WarnContext(ctx, "validation error", "error", err)
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Validation error: %s %s", validationErr.Field, validationErr.Message))
		return
	}

	if errors.Is(err, service.ErrInvalidInput) {
		logger.WarnContext(ctx, "invalid input", "error", err)
		writeError(w, http.StatusBadRequest, "Invalid input")
		return
	}

	if errors.Is(err, service.ErrDelegationFailed) {
		logger.ErrorContext(ctx, "relay failed", "error", err)
		writeError(w, http.StatusBadGateway, "External service error")
		return
	}

	logger.ErrorContext(ctx, "service error", "error", err)
	writeError(w, http.StatusInternalServerError, defaultMsg)
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(ErrorResponse{Error: message}); err != nil {
		slog.Default().Error("failed to encode error response", "error", err)
	}
}
