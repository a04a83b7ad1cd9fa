package main

import (
	"io"
	"os"
	"testing"

	"github.com/wacli/wacli/internal/store"
)

// captureStdout runs fn with os.Stdout redirected to a pipe and returns
// everything it wrote. Mirrors how CLI commands in this package write
// directly to os.Stdout rather than through cobra's OutOrStdout.
func captureStdout(t *testing.T, fn func() error) (string, error) {
	t.Helper()

	oldStdout := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe: %v", err)
	}
	os.Stdout = w

	runErr := fn()

	w.Close()
	os.Stdout = oldStdout

	out, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("read captured stdout: %v", err)
	}
	return string(out), runErr
}

// newTestStoreDir creates a store directory with a freshly migrated
// database, ready for a command's newApp() call.
func newTestStoreDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	db, err := store.Open(dir + "/wacli.db")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("close store: %v", err)
	}
	return dir
}
