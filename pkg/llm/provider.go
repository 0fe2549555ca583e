package llm

import "context"

// Role represents the role of the message sender (system, user, assistant).
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message represents a single message in the outbound completion request.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Params holds the sampling parameters for a completion call.
type Params struct {
	Model       string
	Temperature float64
	MaxTokens   int64
	TopP        float64
}

// DefaultParams returns the default sampling parameters.
func DefaultParams() Params {
	return Params{
		Model:       "llama3-70b-8192",
		Temperature: 0.7,
		MaxTokens:   2048,
		TopP:        0.95,
	}
}

// Provider defines the interface for an LLM provider. Chat is a blocking,
// bounded call; a provider failure is reported synchronously to the caller.
type Provider interface {
	// Chat sends a list of messages to the LLM and returns the response text.
	Chat(ctx context.Context, messages []Message, params Params) (string, error)
}
