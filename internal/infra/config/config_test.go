package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `
llm:
  model: us.anthropic.claude-3-5-haiku-20241022-v1:0
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LLM.Provider != "bedrock" {
		t.Errorf("provider = %q, want bedrock", cfg.LLM.Provider)
	}
	if cfg.LLM.ClassifierModel != cfg.LLM.Model {
		t.Errorf("classifier model should default to model, got %q", cfg.LLM.ClassifierModel)
	}
	if cfg.Store.Backend != "sqlite" || cfg.Store.Path == "" {
		t.Errorf("store defaults: %+v", cfg.Store)
	}
	if cfg.Store.SessionTTL != 24*time.Hour {
		t.Errorf("session ttl = %v", cfg.Store.SessionTTL)
	}
	if cfg.Gateway.MsgPerMinute != 30 {
		t.Errorf("msg_per_minute = %d", cfg.Gateway.MsgPerMinute)
	}
}

func TestLoadMissingModel(t *testing.T) {
	path := writeConfig(t, "llm: {}\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for missing llm.model")
	}
}

func TestLoadRedisRequiresURL(t *testing.T) {
	path := writeConfig(t, `
llm:
  model: m
store:
  backend: redis
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for redis backend without url")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SHOPSTREAM_ADDR", "0.0.0.0:9999")
	path := writeConfig(t, `
llm:
  model: m
gateway:
  addr: 127.0.0.1:8080
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Gateway.Addr != "0.0.0.0:9999" {
		t.Errorf("addr = %q, want env override", cfg.Gateway.Addr)
	}
}

func TestUnsupportedBackend(t *testing.T) {
	path := writeConfig(t, `
llm:
  model: m
store:
  backend: dynamo
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unsupported backend")
	}
}
