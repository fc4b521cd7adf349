package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// LLMConfig holds model and classifier settings.
type LLMConfig struct {
	Provider        string        `yaml:"provider"`         // "bedrock"
	Region          string        `yaml:"region"`           // AWS region
	Model           string        `yaml:"model"`            // generation model ID
	ClassifierModel string        `yaml:"classifier_model"` // routing model ID, defaults to Model
	MaxTokens       int           `yaml:"max_tokens"`
	Temperature     float64       `yaml:"temperature"`
	ContextBudget   int           `yaml:"context_budget"` // token budget for assembled history, 0 disables
	Breaker         BreakerConfig `yaml:"breaker"`
}

// BreakerConfig configures the circuit breaker around LLM calls.
type BreakerConfig struct {
	MaxFailures uint32        `yaml:"max_failures"`
	Timeout     time.Duration `yaml:"timeout"`
	Interval    time.Duration `yaml:"interval"`
}

// GatewayConfig holds WebSocket server settings.
type GatewayConfig struct {
	Addr         string  `yaml:"addr"`
	Tokens       []Token `yaml:"tokens"`
	MsgPerMinute int     `yaml:"msg_per_minute"` // per-connection inbound rate limit
}

// Token is one static gateway credential.
type Token struct {
	Token string `yaml:"token"`
	Name  string `yaml:"name"`
}

// StoreConfig selects and configures the conversation store backend.
type StoreConfig struct {
	Backend      string        `yaml:"backend"` // "sqlite" or "redis"
	Path         string        `yaml:"path"`    // sqlite file path
	RedisURL     string        `yaml:"redis_url"`
	HistoryLimit int           `yaml:"history_limit"`
	SessionTTL   time.Duration `yaml:"session_ttl"`
	SweepCron    string        `yaml:"sweep_cron"` // cron spec for expired-session sweep
}

// CatalogConfig points at the product/order/review seed data.
type CatalogConfig struct {
	ProductsPath string `yaml:"products_path"`
	OrdersPath   string `yaml:"orders_path"`
	ReviewsPath  string `yaml:"reviews_path"`
	ImageBaseURL string `yaml:"image_base_url"`
	SearchLimit  int    `yaml:"search_limit"`
}

// LoggerConfig holds logging settings.
type LoggerConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
	Output string `yaml:"output"` // stdout, stderr, or file path
}

// TracerConfig holds tracing settings.
type TracerConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Exporter string `yaml:"exporter"` // "stdout" or "noop"
}

// Config is the top-level application configuration.
type Config struct {
	LLM     LLMConfig     `yaml:"llm"`
	Gateway GatewayConfig `yaml:"gateway"`
	Store   StoreConfig   `yaml:"store"`
	Catalog CatalogConfig `yaml:"catalog"`
	Logger  LoggerConfig  `yaml:"logger"`
	Tracer  TracerConfig  `yaml:"tracer"`
}

// Load reads and validates the config file at path. Environment variables
// SHOPSTREAM_ADDR, SHOPSTREAM_REGION and SHOPSTREAM_REDIS_URL override their
// file counterparts when set.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("SHOPSTREAM_ADDR"); v != "" {
		c.Gateway.Addr = v
	}
	if v := os.Getenv("SHOPSTREAM_REGION"); v != "" {
		c.LLM.Region = v
	}
	if v := os.Getenv("SHOPSTREAM_REDIS_URL"); v != "" {
		c.Store.RedisURL = v
	}
}

// Validate fills defaults and rejects unusable settings.
func (c *Config) Validate() error {
	if c.LLM.Provider == "" {
		c.LLM.Provider = "bedrock"
	}
	if c.LLM.Provider != "bedrock" {
		return fmt.Errorf("llm.provider: unsupported provider %q", c.LLM.Provider)
	}
	if c.LLM.Model == "" {
		return fmt.Errorf("llm.model is required")
	}
	if c.LLM.ClassifierModel == "" {
		c.LLM.ClassifierModel = c.LLM.Model
	}
	if c.LLM.MaxTokens <= 0 {
		c.LLM.MaxTokens = 4096
	}
	if c.LLM.ContextBudget < 0 {
		c.LLM.ContextBudget = 0
	}

	if c.Gateway.Addr == "" {
		c.Gateway.Addr = "127.0.0.1:8080"
	}
	if c.Gateway.MsgPerMinute <= 0 {
		c.Gateway.MsgPerMinute = 30
	}

	switch c.Store.Backend {
	case "":
		c.Store.Backend = "sqlite"
	case "sqlite", "redis":
	default:
		return fmt.Errorf("store.backend: unsupported backend %q", c.Store.Backend)
	}
	if c.Store.Backend == "sqlite" && c.Store.Path == "" {
		c.Store.Path = "shopstream.db"
	}
	if c.Store.Backend == "redis" && c.Store.RedisURL == "" {
		return fmt.Errorf("store.redis_url is required for the redis backend")
	}
	if c.Store.HistoryLimit <= 0 {
		c.Store.HistoryLimit = 10
	}
	if c.Store.SessionTTL <= 0 {
		c.Store.SessionTTL = 24 * time.Hour
	}
	if c.Store.SweepCron == "" {
		c.Store.SweepCron = "@hourly"
	}

	if c.Catalog.SearchLimit <= 0 {
		c.Catalog.SearchLimit = 10
	}

	if c.Logger.Level == "" {
		c.Logger.Level = "info"
	}
	if c.Logger.Format == "" {
		c.Logger.Format = "text"
	}

	return nil
}
