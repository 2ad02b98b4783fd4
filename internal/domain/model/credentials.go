package model

// Credentials are the optional provider keys supplied with a job
// request. They are request-scoped: never stored on the Job and never
// logged.
type Credentials struct {
	OpenAIKey      string
	AnthropicKey   string
	FireworksKey   string
	FireworksModel string // Dobby model name; Fireworks is unusable without it
	GeminiKey      string
}

// Usable reports whether at least one provider could be driven with
// these credentials. Fireworks needs both a key and a model name.
func (c Credentials) Usable() bool {
	if c.FireworksKey != "" && c.FireworksModel != "" {
		return true
	}
	return c.AnthropicKey != "" || c.OpenAIKey != "" || c.GeminiKey != ""
}

// Merge fills empty fields from fallback (typically server-side
// configured keys), leaving supplied fields untouched.
func (c Credentials) Merge(fallback Credentials) Credentials {
	if c.OpenAIKey == "" {
		c.OpenAIKey = fallback.OpenAIKey
	}
	if c.AnthropicKey == "" {
		c.AnthropicKey = fallback.AnthropicKey
	}
	if c.FireworksKey == "" {
		c.FireworksKey = fallback.FireworksKey
	}
	if c.FireworksModel == "" {
		c.FireworksModel = fallback.FireworksModel
	}
	if c.GeminiKey == "" {
		c.GeminiKey = fallback.GeminiKey
	}
	return c
}
