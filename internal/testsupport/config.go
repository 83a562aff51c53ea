package testsupport

import (
	"path/filepath"
	"testing"

	"copydesk/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// Credentials are filled with placeholders so Validate passes.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.KnowledgeDir = filepath.Join(base, "knowledge")
	cfg.Generator.APIKey = "test"
	cfg.Publish.BaseURL = "https://example.com"
	cfg.Publish.Username = "editor"
	cfg.Publish.AppPassword = "test"

	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// WithNtfyTopic sets the ntfy endpoint on the test config.
func WithNtfyTopic(topic string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Notifications.NtfyTopic = topic
	}
}
