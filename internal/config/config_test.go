package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadIncludesChannelDefaults(t *testing.T) {
	t.Setenv("MESSAGING_BUDGET", "")
	t.Setenv("MESSAGING_MAX_CHARS", "")
	t.Setenv("POINTS_PER_RESPONSE", "")
	t.Setenv("POINTS_LOW_BALANCE_THRESHOLD", "")

	cfg := Load()
	if cfg.MessagingBudget != 4*time.Second {
		t.Fatalf("expected default messaging budget 4s, got %v", cfg.MessagingBudget)
	}
	if cfg.MessagingMaxChars != 300 {
		t.Fatalf("expected default max chars 300, got %d", cfg.MessagingMaxChars)
	}
	if cfg.PointsPerResponse != 1 {
		t.Fatalf("expected default cost 1, got %d", cfg.PointsPerResponse)
	}
	if cfg.LowBalanceThreshold != 100 {
		t.Fatalf("expected default threshold 100, got %d", cfg.LowBalanceThreshold)
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	t.Setenv("MESSAGING_BUDGET", "2500ms")
	t.Setenv("RETRIEVAL_TOP_K", "8")
	t.Setenv("RATE_LIMIT_RPS", "12.5")

	cfg := Load()
	if cfg.MessagingBudget != 2500*time.Millisecond {
		t.Fatalf("expected budget override, got %v", cfg.MessagingBudget)
	}
	if cfg.RetrievalTopK != 8 {
		t.Fatalf("expected top k 8, got %d", cfg.RetrievalTopK)
	}
	if cfg.RateLimitRPS != 12.5 {
		t.Fatalf("expected rps 12.5, got %v", cfg.RateLimitRPS)
	}
}

func TestLoadProvidersResolvesKeysFromEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "providers.yaml")
	raw := `providers:
  - name: openai
    base_url: https://api.openai.com
    api_key_env: TEST_OPENAI_KEY
    model: gpt-4o-mini
    priority: 1
  - name: ollama
    base_url: http://localhost:11434
    model: llama3.1:8b
    priority: 2
`
	if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
		t.Fatalf("write providers file: %v", err)
	}
	t.Setenv("TEST_OPENAI_KEY", "sk-from-env")

	specs, err := LoadProviders(path)
	if err != nil {
		t.Fatalf("LoadProviders() error = %v", err)
	}
	if len(specs) != 2 {
		t.Fatalf("expected 2 providers, got %d", len(specs))
	}
	if specs[0].APIKey() != "sk-from-env" {
		t.Fatalf("expected key from env, got %q", specs[0].APIKey())
	}
	if specs[1].APIKey() != "" {
		t.Fatalf("expected empty key for keyless provider, got %q", specs[1].APIKey())
	}
}

func TestLoadProvidersRejectsUnnamedEntry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "providers.yaml")
	if err := os.WriteFile(path, []byte("providers:\n  - model: x\n"), 0o600); err != nil {
		t.Fatalf("write providers file: %v", err)
	}
	if _, err := LoadProviders(path); err == nil {
		t.Fatalf("expected error for unnamed provider")
	}
}

func TestLoadProvidersEmptyPath(t *testing.T) {
	specs, err := LoadProviders("")
	if err != nil || specs != nil {
		t.Fatalf("expected nil, nil for empty path, got %v, %v", specs, err)
	}
}
