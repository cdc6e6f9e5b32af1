package testsupport

import (
	"path/filepath"
	"testing"

	"reelsmith/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// Provider endpoints get placeholder credentials so validation passes; tests
// exercising a real adapter point its base URL at an httptest server.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.WorkspaceDir = filepath.Join(base, "workspace")
	cfg.Paths.LibraryDir = filepath.Join(base, "library")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Providers.Script.APIKey = "test"
	cfg.Providers.Speech.APIKey = "test"
	cfg.Providers.Image.APIKey = "test"
	cfg.Providers.Motion.APIKey = "test"
	cfg.Providers.Music.APIKey = "test"

	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// WithPricing replaces the pricing table on the test config.
func WithPricing(rules ...config.PriceRule) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Pricing = rules
	}
}

// WithBatchSize overrides the stage fan-out bound.
func WithBatchSize(size int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Pipeline.BatchSize = size
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.WorkspaceDir)
}
