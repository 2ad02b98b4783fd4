package workflow

import (
	"context"

	"github.com/rs/zerolog"

	"grid-agent-service/internal/config"
	"grid-agent-service/internal/domain"
	"grid-agent-service/internal/domain/model"
	"grid-agent-service/internal/domain/ports/adapter"
	"grid-agent-service/internal/domain/ports/repository"
	ai "grid-agent-service/internal/infra/adapters/ai"
)

// SelectMode is the mode decision: live when at least one usable
// provider credential is present, demo otherwise. Pure, decided once
// at job creation.
func SelectMode(creds model.Credentials) model.Mode {
	if creds.Usable() {
		return model.ModeLive
	}
	return model.ModeDemo
}

// ExecutorFactory builds the per-job StageExecutor. Request-supplied
// credentials are merged over server-configured ones, then a provider
// is picked by fixed precedence:
//
//	Fireworks (key + Dobby model) > Anthropic > OpenAI > Gemini
//
// The first three mirror the upstream playground's preference order;
// Gemini is the local addition and slots in last.
type ExecutorFactory struct {
	cfg   config.AIConfig
	usage repository.UsageLogRepository
	log   *zerolog.Logger
}

func NewExecutorFactory(cfg config.AIConfig, usage repository.UsageLogRepository, logger *zerolog.Logger) *ExecutorFactory {
	return &ExecutorFactory{cfg: cfg, usage: usage, log: logger}
}

// ServerCredentials exposes the server-side configured keys, used as
// the fallback when a request supplies none.
func (f *ExecutorFactory) ServerCredentials() model.Credentials {
	return model.Credentials{
		OpenAIKey:      f.cfg.OpenAIKey,
		AnthropicKey:   f.cfg.AnthropicKey,
		FireworksKey:   f.cfg.FireworksKey,
		FireworksModel: f.cfg.FireworksModel,
		GeminiKey:      f.cfg.GeminiKey,
	}
}

// ForJob constructs the executor matching the job's mode. creds must
// be the same (merged) set the mode was selected from.
func (f *ExecutorFactory) ForJob(ctx context.Context, job *model.Job, creds model.Credentials) (StageExecutor, error) {
	if job.Mode == model.ModeDemo {
		return NewDemoExecutor(), nil
	}

	var (
		svc            adapter.AIServiceAdapter
		router, worker string
		err            error
	)
	switch {
	case creds.FireworksKey != "" && creds.FireworksModel != "":
		svc, err = ai.NewFireworksAdapter(creds.FireworksKey, creds.FireworksModel)
		router, worker = creds.FireworksModel, creds.FireworksModel
	case creds.AnthropicKey != "":
		svc, err = ai.NewAnthropicAdapter(creds.AnthropicKey)
		router, worker = "claude-3-5-sonnet-20241022", "claude-3-5-haiku-20241022"
	case creds.OpenAIKey != "":
		svc, err = ai.NewOpenAIAdapter(creds.OpenAIKey, "gpt-4o")
		router, worker = "gpt-4o", "gpt-4o-mini"
	case creds.GeminiKey != "":
		svc, err = ai.NewGeminiAdapter(ctx, creds.GeminiKey, f.cfg.GeminiURL, "gemini-2.0-flash", 1024)
		router, worker = "gemini-2.0-flash", "gemini-2.0-flash-lite"
	default:
		return nil, domain.ErrNoProvider
	}
	if err != nil {
		return nil, err
	}
	return NewLiveExecutor(svc, router, worker, f.usage, job, f.log), nil
}
