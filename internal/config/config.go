package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type ServerConfig struct {
	Port   int    `yaml:"port"`
	WSBase string `yaml:"ws_base"` // e.g. ws://localhost:8000
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type AIConfig struct {
	OpenAIKey      string `yaml:"openai_key"`
	AnthropicKey   string `yaml:"anthropic_key"`
	FireworksKey   string `yaml:"fireworks_key"`
	FireworksModel string `yaml:"fireworks_model"` // Dobby model id
	GeminiKey      string `yaml:"gemini_key"`
	GeminiURL      string `yaml:"gemini_url"`

	ConcurrentLimit int `yaml:"concurrent_limit"` // max concurrent workflow runs
}

type JobsConfig struct {
	MaxPromptLen  int           `yaml:"max_prompt_len"`
	IdleTTL       time.Duration `yaml:"idle_ttl"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
	ChannelBuffer int           `yaml:"channel_buffer"`
	StepDelay     time.Duration `yaml:"step_delay"` // pacing between stage events
}

type DatabaseConfig struct {
	URL string `yaml:"url"` // optional; usage tracking stays in-memory when empty
}

type RedisConfig struct {
	URL      string `yaml:"url"` // optional; rate limiting disabled when empty
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`

	AskLimit  int           `yaml:"ask_limit"` // requests per window per client
	AskWindow time.Duration `yaml:"ask_window"`
}

type AdminConfig struct {
	JWTSecret  string        `yaml:"jwt_secret"`
	Password   string        `yaml:"password"`
	SessionTTL time.Duration `yaml:"session_ttl"`
}

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
	AI       AIConfig       `yaml:"ai"`
	Jobs     JobsConfig     `yaml:"jobs"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Admin    AdminConfig    `yaml:"admin"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.Runtime.Dev = dev
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyDefaults fills unset fields; also used by tests building a
// Config by hand.
func (cfg *Config) ApplyDefaults() {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8000
	}
	if cfg.Server.WSBase == "" {
		cfg.Server.WSBase = fmt.Sprintf("ws://localhost:%d", cfg.Server.Port)
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.AI.ConcurrentLimit <= 0 {
		cfg.AI.ConcurrentLimit = 16
	}
	if cfg.Jobs.MaxPromptLen <= 0 {
		cfg.Jobs.MaxPromptLen = 4000
	}
	if cfg.Jobs.IdleTTL <= 0 {
		cfg.Jobs.IdleTTL = 10 * time.Minute
	}
	if cfg.Jobs.SweepInterval <= 0 {
		cfg.Jobs.SweepInterval = time.Minute
	}
	if cfg.Jobs.ChannelBuffer <= 0 {
		cfg.Jobs.ChannelBuffer = 256
	}
	if cfg.Jobs.StepDelay < 0 {
		cfg.Jobs.StepDelay = 0
	} else if cfg.Jobs.StepDelay == 0 {
		cfg.Jobs.StepDelay = 300 * time.Millisecond
	}
	if cfg.Redis.AskLimit <= 0 {
		cfg.Redis.AskLimit = 30
	}
	if cfg.Redis.AskWindow <= 0 {
		cfg.Redis.AskWindow = time.Minute
	}
	if cfg.Admin.SessionTTL <= 0 {
		cfg.Admin.SessionTTL = 30 * time.Minute
	}
}

// Validate performs minimal sanity checks; optional backends
// (database, redis) are allowed to be absent.
func (cfg *Config) Validate() error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return errors.New("server.port out of range")
	}
	if cfg.Admin.JWTSecret == "" && cfg.Admin.Password != "" {
		return errors.New("admin.jwt_secret is required when admin.password is set")
	}
	return nil
}
