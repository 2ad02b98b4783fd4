package config

import (
	"testing"
	"time"
)

func TestApplyDefaults(t *testing.T) {
	t.Parallel()

	cfg := &Config{}
	cfg.ApplyDefaults()

	if cfg.Server.Port != 8000 {
		t.Fatalf("port %d", cfg.Server.Port)
	}
	if cfg.Server.WSBase != "ws://localhost:8000" {
		t.Fatalf("ws base %q", cfg.Server.WSBase)
	}
	if cfg.Jobs.MaxPromptLen != 4000 {
		t.Fatalf("max prompt %d", cfg.Jobs.MaxPromptLen)
	}
	if cfg.Jobs.IdleTTL != 10*time.Minute {
		t.Fatalf("idle ttl %s", cfg.Jobs.IdleTTL)
	}
	if cfg.Jobs.StepDelay != 300*time.Millisecond {
		t.Fatalf("step delay %s", cfg.Jobs.StepDelay)
	}
	if cfg.Redis.AskLimit != 30 || cfg.Redis.AskWindow != time.Minute {
		t.Fatalf("rate limit %d/%s", cfg.Redis.AskLimit, cfg.Redis.AskWindow)
	}
}

func TestApplyDefaults_NegativeStepDelayMeansNoPacing(t *testing.T) {
	t.Parallel()

	cfg := &Config{}
	cfg.Jobs.StepDelay = -1
	cfg.ApplyDefaults()
	if cfg.Jobs.StepDelay != 0 {
		t.Fatalf("step delay %s, want 0", cfg.Jobs.StepDelay)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	cfg := &Config{}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}

	cfg.Admin.Password = "secret"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("admin password without jwt secret must fail")
	}
	cfg.Admin.JWTSecret = "s"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}

	cfg.Server.Port = 70000
	if err := cfg.Validate(); err == nil {
		t.Fatalf("out-of-range port must fail")
	}
}
