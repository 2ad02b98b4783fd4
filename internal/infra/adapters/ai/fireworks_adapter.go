package ai

import (
	"context"
	"errors"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"grid-agent-service/internal/domain/ports/adapter"
)

// Compile-time assurance this adapter satisfies the port
var _ adapter.AIServiceAdapter = (*FireworksAdapter)(nil)

const fireworksBaseURL = "https://api.fireworks.ai/inference/v1"

// FireworksAdapter implements adapter.AIServiceAdapter against
// Fireworks' OpenAI-compatible gateway, used for the Dobby models.
// The OpenAI SDK is pointed at the Fireworks base URL; only the
// model id and auth differ.
type FireworksAdapter struct {
	client openai.Client
	model  string // full Dobby model id
}

func NewFireworksAdapter(apiKey, model string) (*FireworksAdapter, error) {
	if apiKey == "" {
		return nil, errors.New("fireworks api key empty")
	}
	if model == "" {
		return nil, errors.New("fireworks model empty")
	}
	return &FireworksAdapter{
		client: openai.NewClient(
			option.WithAPIKey(apiKey),
			option.WithBaseURL(fireworksBaseURL),
		),
		model: model,
	}, nil
}

func (f *FireworksAdapter) Provider() string { return "fireworks" }

// CountTokens approximates at 4 characters per token; Fireworks does
// not publish tokenizers for the Dobby family.
func (f *FireworksAdapter) CountTokens(ctx context.Context, model string, messages []adapter.Message) (int, error) {
	chars := 0
	for _, m := range messages {
		chars += len(m.Content)
	}
	return chars / 4, nil
}

func (f *FireworksAdapter) ChatWithUsage(ctx context.Context, model string, messages []adapter.Message) (string, adapter.Usage, error) {
	if model == "" {
		model = f.model
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(model),
		Messages: toOpenAIMessages(messages),
	}
	resp, err := f.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", adapter.Usage{}, err
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", adapter.Usage{}, errors.New("fireworks: no choice content")
	}

	u := adapter.Usage{
		PromptTokens:     int(resp.Usage.PromptTokens),
		CompletionTokens: int(resp.Usage.CompletionTokens),
		TotalTokens:      int(resp.Usage.TotalTokens),
	}
	return resp.Choices[0].Message.Content, u, nil
}
