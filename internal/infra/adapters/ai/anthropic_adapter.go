package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"grid-agent-service/internal/domain/ports/adapter"
)

// Compile-time assurance this adapter satisfies the port
var _ adapter.AIServiceAdapter = (*AnthropicAdapter)(nil)

// AnthropicAdapter implements adapter.AIServiceAdapter against the
// Anthropic Messages API. Unlike the OpenAI wire shape, system text
// travels in a top-level field and usage is reported as
// input_tokens/output_tokens.
type AnthropicAdapter struct {
	apiKey string
	base   string // https://api.anthropic.com/v1
	model  string
	client *http.Client
}

func NewAnthropicAdapter(apiKey string) (*AnthropicAdapter, error) {
	if apiKey == "" {
		return nil, errors.New("anthropic api key empty")
	}
	return &AnthropicAdapter{
		apiKey: apiKey,
		base:   "https://api.anthropic.com/v1",
		model:  "claude-3-5-sonnet-20241022",
		client: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

func (a *AnthropicAdapter) Provider() string { return "anthropic" }

// CountTokens approximates at 4 characters per token; Anthropic has a
// counting endpoint but a heuristic is enough for pre-checks here.
func (a *AnthropicAdapter) CountTokens(ctx context.Context, model string, messages []adapter.Message) (int, error) {
	chars := 0
	for _, m := range messages {
		chars += len(m.Content)
	}
	return chars / 4, nil
}

func (a *AnthropicAdapter) ChatWithUsage(ctx context.Context, model string, messages []adapter.Message) (string, adapter.Usage, error) {
	if model == "" {
		model = a.model
	}

	var system string
	msgs := make([]adapter.Message, 0, len(messages))
	for _, m := range messages {
		if strings.ToLower(m.Role) == "system" {
			if system != "" {
				system += "\n"
			}
			system += m.Content
			continue
		}
		msgs = append(msgs, m)
	}

	reqBody := struct {
		Model     string            `json:"model"`
		MaxTokens int               `json:"max_tokens"`
		System    string            `json:"system,omitempty"`
		Messages  []adapter.Message `json:"messages"`
	}{Model: model, MaxTokens: 1024, System: system, Messages: msgs}

	b, _ := json.Marshal(reqBody)
	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, a.base+"/messages", bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", a.apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := a.client.Do(req)
	if err != nil {
		return "", adapter.Usage{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return "", adapter.Usage{}, fmt.Errorf("anthropic http %d", resp.StatusCode)
	}

	var payload struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
		Usage struct {
			InputTokens  int `json:"input_tokens"`
			OutputTokens int `json:"output_tokens"`
		} `json:"usage"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", adapter.Usage{}, err
	}

	for _, c := range payload.Content {
		if c.Type == "text" && c.Text != "" {
			u := adapter.Usage{
				PromptTokens:     payload.Usage.InputTokens,
				CompletionTokens: payload.Usage.OutputTokens,
				TotalTokens:      payload.Usage.InputTokens + payload.Usage.OutputTokens,
			}
			return c.Text, u, nil
		}
	}
	return "", adapter.Usage{}, errors.New("anthropic: no text content")
}
