package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Orchestration.MaxAgents != 3 {
		t.Errorf("MaxAgents = %d, want 3", cfg.Orchestration.MaxAgents)
	}
	if cfg.Orchestration.Timeout != 30*time.Second {
		t.Errorf("Timeout = %v, want 30s", cfg.Orchestration.Timeout)
	}
	if cfg.ContextStore.CacheSize != 1000 {
		t.Errorf("CacheSize = %d, want 1000", cfg.ContextStore.CacheSize)
	}
	if cfg.Orchestration.QualityThreshold != 0.8 {
		t.Errorf("QualityThreshold = %v, want 0.8", cfg.Orchestration.QualityThreshold)
	}
}

func TestLoadFromPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	content := `orchestration:
  max_agents: 5
  timeout: 10s
  quality_threshold: 0.6
context_store:
  cache_size: 50
  default_ttl: 24h
runner:
  simulate: true
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath: %v", err)
	}

	if cfg.Orchestration.MaxAgents != 5 {
		t.Errorf("MaxAgents = %d, want 5", cfg.Orchestration.MaxAgents)
	}
	if cfg.Orchestration.Timeout != 10*time.Second {
		t.Errorf("Timeout = %v, want 10s", cfg.Orchestration.Timeout)
	}
	if cfg.Orchestration.QualityThreshold != 0.6 {
		t.Errorf("QualityThreshold = %v, want 0.6", cfg.Orchestration.QualityThreshold)
	}
	if cfg.ContextStore.CacheSize != 50 {
		t.Errorf("CacheSize = %d, want 50", cfg.ContextStore.CacheSize)
	}
	if cfg.ContextStore.DefaultTTL != 24*time.Hour {
		t.Errorf("DefaultTTL = %v, want 24h", cfg.ContextStore.DefaultTTL)
	}
	if !cfg.Runner.Simulate {
		t.Error("Simulate = false, want true")
	}

	// Unset keys fall back to defaults.
	if cfg.Orchestration.MaxConcurrentOrchestrations != 10 {
		t.Errorf("MaxConcurrentOrchestrations = %d, want default 10", cfg.Orchestration.MaxConcurrentOrchestrations)
	}
}

func TestLoadFromPath_Missing(t *testing.T) {
	_, err := LoadFromPath(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("CONCLAVE_TEST_KEY", "sk-test")

	got := expandEnv("${CONCLAVE_TEST_KEY}")
	if got != "sk-test" {
		t.Errorf("expandEnv = %q, want %q", got, "sk-test")
	}
}
