package testsupport

import (
	"path/filepath"
	"testing"

	"couchlog/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Simkl.ClientID = "test"
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")

	for _, opt := range opts {
		opt(&cfg)
	}

	return &cfg
}

// WithAccessToken sets the catalog access token on the test config.
func WithAccessToken(token string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Simkl.AccessToken = token
	}
}

// WithCompletionThreshold overrides the completion threshold.
func WithCompletionThreshold(threshold float64) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Scrobble.CompletionThreshold = threshold
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
