package llm

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// DefaultBaseURL is Groq's OpenAI-compatible API root.
const DefaultBaseURL = "https://api.groq.com/openai/v1"

// Client is a client for OpenAI-compatible chat completions APIs (Groq by default).
// It is safe for concurrent use.
type Client struct {
	BaseURL string
	Model   string
	api     *openai.Client
}

// NewClient creates a new LLM client.
func NewClient(baseURL, apiKey, model string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")

	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = baseURL

	return &Client{
		BaseURL: baseURL,
		Model:   model,
		api:     openai.NewClientWithConfig(cfg),
	}
}

// Complete sends the conversation to the chat completions endpoint in a single
// blocking call and returns every choice the backend produced.
func (c *Client) Complete(ctx context.Context, messages []Message, params ChatParams) (*Completion, error) {
	model := params.Model
	if model == "" {
		model = c.Model
	}

	req := openai.ChatCompletionRequest{
		Model:       model,
		Messages:    make([]openai.ChatCompletionMessage, 0, len(messages)),
		MaxTokens:   params.MaxTokens,
		Temperature: params.Temperature,
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}

	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}

	completion := &Completion{
		ID:               resp.ID,
		Model:            resp.Model,
		Choices:          make([]Choice, 0, len(resp.Choices)),
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	}
	for _, ch := range resp.Choices {
		completion.Choices = append(completion.Choices, Choice{
			Index:        ch.Index,
			Content:      ch.Message.Content,
			FinishReason: string(ch.FinishReason),
		})
	}
	return completion, nil
}

// Ping checks that the backend is reachable and the credential is accepted
// by listing the available models.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.api.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}
