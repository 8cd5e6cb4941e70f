package testsupport

import (
	"testing"

	"spriteforge/internal/config"
	"spriteforge/internal/storage"
)

// MustOpenStore opens the job store rooted at the config's data directory.
func MustOpenStore(t testing.TB, cfg *config.Config) *storage.Store {
	t.Helper()

	store, err := storage.New(cfg.Paths.DataDir, cfg.Server.BaseURL)
	if err != nil {
		t.Fatalf("storage.New: %v", err)
	}
	return store
}
