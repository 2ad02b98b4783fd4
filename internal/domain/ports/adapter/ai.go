package adapter

import "context"

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"` // "user", "assistant", "system"
	Content string `json:"content"`
}

// Usage for a single completion call.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// AIServiceAdapter is the port for LLM completions. Each provider
// adapter owns its default model; callers pass "" to use it.
type AIServiceAdapter interface {
	// Provider returns a stable lowercase provider label for
	// metrics and usage accounting ("openai", "anthropic", ...).
	Provider() string

	// CountTokens estimates prompt tokens for the provided messages
	// before the call (provider-specific counting; best-effort when
	// exact isn't available).
	CountTokens(ctx context.Context, model string, messages []Message) (int, error)

	// ChatWithUsage returns assistant text + usage as reported by
	// the provider.
	ChatWithUsage(ctx context.Context, model string, messages []Message) (string, Usage, error)
}
