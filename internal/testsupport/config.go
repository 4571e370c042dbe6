// Package testsupport provides shared helpers for building test
// configurations, fixture files, and stores on per-test temp directories.
package testsupport

import (
	"path/filepath"
	"testing"

	"dialtone/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.ContentDir = filepath.Join(base, "content")
	cfgVal.Paths.AudioDir = filepath.Join(base, "content", "audio")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Catalog.RetryDelay = 0

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}

	return builder.cfg
}

// WithCatalogURL points the test config at the given catalog endpoint.
func WithCatalogURL(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Catalog.URL = url
	}
}

// WithStreaming toggles the streaming catalog variant on the test config.
func WithStreaming(enabled bool) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Catalog.Streaming = enabled
	}
}

// WithQueueCapacity overrides the download queue capacity.
func WithQueueCapacity(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Downloads.Capacity = n
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.ContentDir)
}
