package llm

// Chat roles understood by OpenAI-compatible backends.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message represents a single message in a chat conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatParams holds parameters for chat completion requests.
type ChatParams struct {
	// Model specifies the model to use. If empty, the client's default model is used.
	Model string

	// MaxTokens specifies the maximum number of tokens to generate.
	// If 0, no limit is applied.
	MaxTokens int

	// Temperature controls the randomness of the output.
	// If 0, the backend default is used.
	Temperature float32
}

// Choice is one candidate continuation returned by the backend.
// Content is empty when the backend returned no text for the choice.
type Choice struct {
	Index        int
	Content      string
	FinishReason string
}

// Completion is the result of a single chat completion call.
type Completion struct {
	ID               string
	Model            string
	Choices          []Choice
	PromptTokens     int
	CompletionTokens int
}
