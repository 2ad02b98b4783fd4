package model

import "time"

// APIUsage is one accounting record for a live-mode provider call.
type APIUsage struct {
	ID            int64
	UserID        string // wallet address or "local"
	JobID         string
	Provider      string // "openai", "anthropic", "fireworks", "gemini"
	Model         string
	TokensUsed    int
	EstimatedCost float64 // USD
	CreatedAt     time.Time
}

// UsageTotals aggregates a user's provider spend.
type UsageTotals struct {
	TotalCalls  int
	TotalTokens int64
	TotalCost   float64
}

// ProviderUsage is the per-provider breakdown of UsageTotals.
type ProviderUsage struct {
	Provider string
	Calls    int
	Tokens   int64
	Cost     float64
}
