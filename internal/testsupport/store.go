package testsupport

import (
	"log/slog"
	"testing"

	"dialtone/internal/config"
	"dialtone/internal/contentstore"
	"dialtone/internal/logging"
)

// MustOpenStore opens a content store for tests on the config's directories.
func MustOpenStore(t testing.TB, cfg *config.Config) *contentstore.Store {
	t.Helper()

	store := contentstore.Open(cfg, logging.NewNop())
	if !store.Available() {
		t.Fatalf("content store unavailable at %s", cfg.Paths.ContentDir)
	}
	return store
}

// NewMemStore builds a content store on an in-memory backend, isolated from
// the filesystem.
func NewMemStore(t testing.TB, cfg *config.Config) *contentstore.Store {
	t.Helper()
	return contentstore.NewWithBackend(contentstore.NewMemBackend(), cfg.Paths.ContentDir, cfg.Paths.AudioDir, logging.NewNop())
}

// Logger returns a silent logger for test wiring.
func Logger() *slog.Logger {
	return logging.NewNop()
}
