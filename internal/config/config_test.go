package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"reelsmith/internal/config"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if exists {
		t.Fatalf("expected missing config at %s", resolved)
	}
	if cfg.Narration.WordsPerMinute != 150 {
		t.Fatalf("expected default words_per_minute, got %d", cfg.Narration.WordsPerMinute)
	}
	if cfg.Pipeline.BatchSize != 3 {
		t.Fatalf("expected default batch_size, got %d", cfg.Pipeline.BatchSize)
	}
}

func TestLoadParsesAndNormalizes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	body := `
[paths]
workspace_dir = "` + filepath.Join(dir, "ws") + `"
log_dir = "` + filepath.Join(dir, "logs") + `"

[narration]
max_rate = 1.4

[providers.speech]
model = "turbo-tts"
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to be found")
	}
	if cfg.Providers.Speech.Model != "turbo-tts" {
		t.Fatalf("unexpected speech model: %q", cfg.Providers.Speech.Model)
	}
	if cfg.Narration.MaxRate != 1.4 {
		t.Fatalf("unexpected max rate: %v", cfg.Narration.MaxRate)
	}
	if cfg.Narration.MinRate != 0.9 {
		t.Fatalf("expected defaulted min rate, got %v", cfg.Narration.MinRate)
	}
}

func TestValidateRejectsCrossedRateBounds(t *testing.T) {
	cfg := config.Default()
	cfg.Narration.MinRate = 1.6
	cfg.Narration.MaxRate = 1.2
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for crossed rate bounds")
	}
}

func TestValidateRejectsDuplicatePricing(t *testing.T) {
	cfg := config.Default()
	rule := config.PriceRule{Provider: "speech", Model: "standard", Resource: "narration", UnitUSD: 0.01}
	cfg.Pricing = []config.PriceRule{rule, rule}
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "duplicate") {
		t.Fatalf("expected duplicate pricing error, got %v", err)
	}
}

func TestEnvironmentOverridesAPIKey(t *testing.T) {
	t.Setenv("REELSMITH_SPEECH_API_KEY", "env-key")
	path := filepath.Join(t.TempDir(), "config.toml")
	cfg, _, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Providers.Speech.APIKey != "env-key" {
		t.Fatalf("expected env override, got %q", cfg.Providers.Speech.APIKey)
	}
}
