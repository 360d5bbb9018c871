package service_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"chaos-ai/internal/contextutil"
	"chaos-ai/internal/llm"
	"chaos-ai/internal/persona"
	"chaos-ai/internal/service"
	"chaos-ai/internal/service/mocks"

	"go.uber.org/mock/gomock"
)

func init() {
	// Set default logger to discard output for cleaner test output
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func testParams() persona.Params {
	return persona.Params{
		Model:        "test-model",
		SystemPrompt: "You are a delightfully broken AI assistant.",
		Temperature:  1.4,
		MaxTokens:    70,
		Fallback:     "fallback reply",
	}
}

func completionOf(contents ...string) *llm.Completion {
	c := &llm.Completion{ID: "cmpl-1", Model: "test-model"}
	for i, content := range contents {
		c.Choices = append(c.Choices, llm.Choice{Index: i, Content: content, FinishReason: "stop"})
	}
	return c
}

type fakeRecorder struct {
	mu       sync.Mutex
	outcomes []string
}

func (r *fakeRecorder) ObserveRelay(outcome string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, outcome)
}

func TestNewRelayService(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockClient := mocks.NewMockCompletionClient(ctrl)
	svc := service.NewRelayService(mockClient, testParams(), nil)

	if svc == nil {
		t.Fatal("NewRelayService() returned nil")
	}
}

func TestRelayService_Relay(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	tests := []struct {
		name        string
		message     string
		mockSetup   func(*mocks.MockCompletionClient)
		wantErr     error
		wantReply   string
		wantOutcome string
	}{
		{
			name:    "successful relay",
			message: "what time is it",
			mockSetup: func(m *mocks.MockCompletionClient) {
				m.EXPECT().
					Complete(gomock.Any(), gomock.Any(), gomock.Any()).
					Return(completionOf("Time is a soup, my friend."), nil)
			},
			wantReply:   "Time is a soup, my friend.",
			wantOutcome: service.OutcomeSuccess,
		},
		{
			name:    "empty message is forwarded",
			message: "",
			mockSetup: func(m *mocks.MockCompletionClient) {
				m.EXPECT().
					Complete(gomock.Any(), gomock.Any(), gomock.Any()).
					DoAndReturn(func(ctx context.Context, messages []llm.Message, params llm.ChatParams) (*llm.Completion, error) {
						if messages[1].Content != "" {
							t.Errorf("user turn = %q, want empty", messages[1].Content)
						}
						return completionOf("Silence! My favorite genre."), nil
					})
			},
			wantReply:   "Silence! My favorite genre.",
			wantOutcome: service.OutcomeSuccess,
		},
		{
			name:    "reply is returned verbatim",
			message: "hi",
			mockSetup: func(m *mocks.MockCompletionClient) {
				m.EXPECT().
					Complete(gomock.Any(), gomock.Any(), gomock.Any()).
					Return(completionOf("  padded reply \n"), nil)
			},
			wantReply:   "  padded reply \n",
			wantOutcome: service.OutcomeSuccess,
		},
		{
			name:    "nil completion without error",
			message: "hi",
			mockSetup: func(m *mocks.MockCompletionClient) {
				m.EXPECT().
					Complete(gomock.Any(), gomock.Any(), gomock.Any()).
					Return(nil, nil)
			},
			wantErr:     service.ErrDelegationFailed,
			wantOutcome: service.OutcomeFailure,
		},
		{
			name:    "only the first choice is used",
			message: "hi",
			mockSetup: func(m *mocks.MockCompletionClient) {
				m.EXPECT().
					Complete(gomock.Any(), gomock.Any(), gomock.Any()).
					Return(completionOf("first", "second"), nil)
			},
			wantReply:   "first",
			wantOutcome: service.OutcomeSuccess,
		},
		{
			name:    "empty text uses fallback",
			message: "hi",
			mockSetup: func(m *mocks.MockCompletionClient) {
				m.EXPECT().
					Complete(gomock.Any(), gomock.Any(), gomock.Any()).
					Return(completionOf(""), nil)
			},
			wantReply:   "fallback reply",
			wantOutcome: service.OutcomeFallback,
		},
		{
			name:    "whitespace text uses fallback",
			message: "hi",
			mockSetup: func(m *mocks.MockCompletionClient) {
				m.EXPECT().
					Complete(gomock.Any(), gomock.Any(), gomock.Any()).
					Return(completionOf(" \n\t"), nil)
			},
			wantReply:   "fallback reply",
			wantOutcome: service.OutcomeFallback,
		},
		{
			name:    "backend error",
			message: "hi",
			mockSetup: func(m *mocks.MockCompletionClient) {
				m.EXPECT().
					Complete(gomock.Any(), gomock.Any(), gomock.Any()).
					Return(nil, errors.New("401 invalid api key gsk_secret"))
			},
			wantErr:     service.ErrDelegationFailed,
			wantOutcome: service.OutcomeFailure,
		},
		{
			name:    "no choices",
			message: "hi",
			mockSetup: func(m *mocks.MockCompletionClient) {
				m.EXPECT().
					Complete(gomock.Any(), gomock.Any(), gomock.Any()).
					Return(completionOf(), nil)
			},
			wantErr:     service.ErrDelegationFailed,
			wantOutcome: service.OutcomeFailure,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockClient := mocks.NewMockCompletionClient(ctrl)
			tt.mockSetup(mockClient)
			rec := &fakeRecorder{}

			svc := service.NewRelayService(mockClient, testParams(), rec)
			resp, err := svc.Relay(context.Background(), service.RelayRequest{Message: tt.message})

			if tt.wantErr != nil {
				if err != tt.wantErr {
					t.Errorf("Relay() error = %v, want exactly %v", err, tt.wantErr)
				}
				if err != nil && strings.Contains(err.Error(), "gsk_secret") {
					t.Error("Relay() error leaks backend detail")
				}
				if resp.Response != "" {
					t.Errorf("Relay() response = %q on failure, want empty", resp.Response)
				}
			} else {
				if err != nil {
					t.Fatalf("Relay() unexpected error: %v", err)
				}
				if resp.Response != tt.wantReply {
					t.Errorf("Relay() response = %q, want %q", resp.Response, tt.wantReply)
				}
			}

			if len(rec.outcomes) != 1 || rec.outcomes[0] != tt.wantOutcome {
				t.Errorf("Relay() outcomes = %v, want [%s]", rec.outcomes, tt.wantOutcome)
			}
		})
	}
}

func TestRelayService_Relay_Conversation(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	params := testParams()
	mockClient := mocks.NewMockCompletionClient(ctrl)
	mockClient.EXPECT().
		Complete(gomock.Any(), []llm.Message{
			{Role: llm.RoleSystem, Content: params.SystemPrompt},
			{Role: llm.RoleUser, Content: "remind me to call mom"},
		}, llm.ChatParams{
			Model:       "test-model",
			MaxTokens:   70,
			Temperature: 1.4,
		}).
		Return(completionOf("Calling a random mom now."), nil)

	svc := service.NewRelayService(mockClient, params, nil)
	if _, err := svc.Relay(context.Background(), service.RelayRequest{Message: "remind me to call mom"}); err != nil {
		t.Fatalf("Relay() error = %v", err)
	}
}

func TestRelayService_Relay_IdenticalSubmissions(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	type submission struct {
		messages []llm.Message
		params   llm.ChatParams
	}
	var submissions []submission

	mockClient := mocks.NewMockCompletionClient(ctrl)
	mockClient.EXPECT().
		Complete(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, messages []llm.Message, params llm.ChatParams) (*llm.Completion, error) {
			submissions = append(submissions, submission{messages: messages, params: params})
			return completionOf("reply"), nil
		}).
		Times(2)

	svc := service.NewRelayService(mockClient, testParams(), nil)
	for i := 0; i < 2; i++ {
		if _, err := svc.Relay(context.Background(), service.RelayRequest{Message: "same"}); err != nil {
			t.Fatalf("Relay() error = %v", err)
		}
	}

	if len(submissions) != 2 {
		t.Fatalf("recorded %d submissions, want 2", len(submissions))
	}
	if !reflect.DeepEqual(submissions[0], submissions[1]) {
		t.Errorf("submissions differ:\n%+v\n%+v", submissions[0], submissions[1])
	}
}

func TestRelayService_Relay_EmptyFallbackDefaults(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	params := testParams()
	params.Fallback = ""

	mockClient := mocks.NewMockCompletionClient(ctrl)
	mockClient.EXPECT().
		Complete(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(completionOf(""), nil)

	svc := service.NewRelayService(mockClient, params, nil)
	resp, err := svc.Relay(context.Background(), service.RelayRequest{Message: "hi"})
	if err != nil {
		t.Fatalf("Relay() error = %v", err)
	}
	if resp.Response != persona.DefaultFallback {
		t.Errorf("Relay() response = %q, want %q", resp.Response, persona.DefaultFallback)
	}
}

func TestRelayService_Relay_Concurrent(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockClient := mocks.NewMockCompletionClient(ctrl)
	mockClient.EXPECT().
		Complete(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, messages []llm.Message, params llm.ChatParams) (*llm.Completion, error) {
			// Hold the call open so both relays overlap.
			time.Sleep(10 * time.Millisecond)
			return completionOf("echo:" + messages[1].Content), nil
		}).
		Times(2)

	svc := service.NewRelayService(mockClient, testParams(), nil)

	inputs := []string{"A", "B"}
	results := make([]string, len(inputs))
	errs := make([]error, len(inputs))

	var wg sync.WaitGroup
	for i, in := range inputs {
		wg.Add(1)
		go func(i int, in string) {
			defer wg.Done()
			resp, err := svc.Relay(context.Background(), service.RelayRequest{Message: in})
			results[i], errs[i] = resp.Response, err
		}(i, in)
	}
	wg.Wait()

	for i, in := range inputs {
		if errs[i] != nil {
			t.Fatalf("Relay(%q) error = %v", in, errs[i])
		}
		if results[i] != "echo:"+in {
			t.Errorf("Relay(%q) = %q, want %q", in, results[i], "echo:"+in)
		}
	}
}

func TestRelayService_Relay_WithLogger(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockClient := mocks.NewMockCompletionClient(ctrl)
	mockClient.EXPECT().
		Complete(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(completionOf("response"), nil)

	var buf strings.Builder
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	ctx := contextutil.WithLogger(context.Background(), logger)

	svc := service.NewRelayService(mockClient, testParams(), nil)
	if _, err := svc.Relay(ctx, service.RelayRequest{Message: "test"}); err != nil {
		t.Fatalf("Relay() error = %v", err)
	}

	if !strings.Contains(buf.String(), "relay processed successfully") {
		t.Errorf("expected request logger to be used, got %q", buf.String())
	}
}
