package openai

import (
	"context"
	"fmt"
	"strings"

	"github.com/barekit/lingua/pkg/llm"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Provider implements llm.Provider using the OpenAI chat completions API.
// Groq exposes the same wire contract, so pointing the client at the Groq
// base URL with option.WithBaseURL is all it takes to use Groq-hosted
// models.
type Provider struct {
	client *openai.Client
}

// New creates a new Provider.
func New(opts ...option.RequestOption) *Provider {
	client := openai.NewClient(opts...)
	return &Provider{client: &client}
}

// Chat sends the messages to the provider and returns the response text.
func (p *Provider) Chat(ctx context.Context, messages []llm.Message, params llm.Params) (string, error) {
	openaiMessages := make([]openai.ChatCompletionMessageParamUnion, len(messages))
	for i, msg := range messages {
		switch msg.Role {
		case llm.RoleSystem:
			openaiMessages[i] = openai.SystemMessage(msg.Content)
		case llm.RoleUser:
			openaiMessages[i] = openai.UserMessage(msg.Content)
		case llm.RoleAssistant:
			openaiMessages[i] = openai.AssistantMessage(msg.Content)
		default:
			return "", fmt.Errorf("unknown role: %s", msg.Role)
		}
	}

	req := openai.ChatCompletionNewParams{
		Messages: openaiMessages,
		Model:    params.Model,
	}
	if params.Temperature > 0 {
		req.Temperature = openai.Float(params.Temperature)
	}
	if params.MaxTokens > 0 {
		req.MaxTokens = openai.Int(params.MaxTokens)
	}
	if params.TopP > 0 {
		req.TopP = openai.Float(params.TopP)
	}

	completion, err := p.client.Chat.Completions.New(ctx, req)
	if err != nil {
		return "", err
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("provider returned no choices")
	}

	return strings.TrimSpace(completion.Choices[0].Message.Content), nil
}
