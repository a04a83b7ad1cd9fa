package app

import (
	"path/filepath"
	"testing"

	"github.com/wacli/wacli/internal/store"
)

// newTestApp builds an App backed by a throwaway on-disk store, without a
// real protocol client. Tests set a.wa to a fakeWA after construction.
func newTestApp(t *testing.T) *App {
	t.Helper()
	dir := t.TempDir()
	db, err := store.Open(filepath.Join(dir, "wacli.db"))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	return &App{
		opts: Options{StoreDir: dir},
		db:   db,
	}
}
