package service

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_completion_client.go -package=mocks chaos-ai/internal/service CompletionClient
//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_relay_service.go -package=mocks -mock_names=RelayService=MockRelayService chaos-ai/internal/service RelayService

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"chaos-ai/internal/contextutil"
	"chaos-ai/internal/llm"
	"chaos-ai/internal/persona"
)

// Relay outcomes reported to a Recorder.
const (
	OutcomeSuccess  = "success"
	OutcomeFallback = "fallback"
	OutcomeFailure  = "failure"
)

// CompletionClient is an interface for the chat completion backend.
// This interface is defined from the service layer's perspective (consumer-first).
type CompletionClient interface {
	// Complete submits the conversation in one blocking call and returns every choice.
	Complete(ctx context.Context, messages []llm.Message, params llm.ChatParams) (*llm.Completion, error)
}

// Recorder observes relay outcomes.
type Recorder interface {
	ObserveRelay(outcome string, duration time.Duration)
}

// RelayRequest represents a relay request in the domain layer.
type RelayRequest struct {
	Message string
}

// RelayResponse represents a relay response in the domain layer.
// Response is never empty when returned without error.
type RelayResponse struct {
	Response string
}

// RelayService turns one message into one persona-styled reply.
type RelayService interface {
	// Relay forwards the message to the completion backend under the fixed persona.
	// Any backend failure is reported as ErrDelegationFailed.
	Relay(ctx context.Context, req RelayRequest) (RelayResponse, error)
}

// relayService implements RelayService.
type relayService struct {
	client   CompletionClient
	params   persona.Params
	recorder Recorder
}

// NewRelayService creates a new RelayService. params is copied and never
// modified afterwards. recorder may be nil.
func NewRelayService(client CompletionClient, params persona.Params, recorder Recorder) RelayService {
	if recorder == nil {
		recorder = noopRecorder{}
	}
	if strings.TrimSpace(params.Fallback) == "" {
		params.Fallback = persona.DefaultFallback
	}
	return &relayService{
		client:   client,
		params:   params,
		recorder: recorder,
	}
}

// Relay relays one message. Empty messages are forwarded as-is.
func (s *relayService) Relay(ctx context.Context, req RelayRequest) (RelayResponse, error) {
	logger := contextutil.LoggerFromContext(ctx)
	start := time.Now()

	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: s.params.SystemPrompt},
		{Role: llm.RoleUser, Content: req.Message},
	}
	params := llm.ChatParams{
		Model:       s.params.Model,
		MaxTokens:   s.params.MaxTokens,
		Temperature: s.params.Temperature,
	}

	completion, err := s.client.Complete(ctx, messages, params)
	if err != nil {
		s.recorder.ObserveRelay(OutcomeFailure, time.Since(start))
		logger.ErrorContext(ctx, "completion call failed", "error", err)
		return RelayResponse{}, ErrDelegationFailed
	}
	if completion == nil {
		s.recorder.ObserveRelay(OutcomeFailure, time.Since(start))
		logger.ErrorContext(ctx, "completion call returned no completion")
		return RelayResponse{}, ErrDelegationFailed
	}
	if len(completion.Choices) == 0 {
		s.recorder.ObserveRelay(OutcomeFailure, time.Since(start))
		logger.ErrorContext(ctx, "completion returned no choices", "completion_id", completion.ID)
		return RelayResponse{}, ErrDelegationFailed
	}

	reply := completion.Choices[0].Content
	if strings.TrimSpace(reply) == "" {
		s.recorder.ObserveRelay(OutcomeFallback, time.Since(start))
		logger.WarnContext(ctx, "completion returned empty text, using fallback",
			"completion_id", completion.ID,
			"finish_reason", completion.Choices[0].FinishReason,
		)
		return RelayResponse{Response: s.params.Fallback}, nil
	}

	s.recorder.ObserveRelay(OutcomeSuccess, time.Since(start))
	logger.InfoContext(ctx, "relay processed successfully",
		"message_length", len(req.Message),
		"reply_length", len(reply),
		"completion_tokens", completion.CompletionTokens,
		slog.Duration("duration", time.Since(start)),
	)
	return RelayResponse{Response: reply}, nil
}

type noopRecorder struct{}

func (noopRecorder) ObserveRelay(string, time.Duration) {}
