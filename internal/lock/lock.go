// Package lock implements the store directory's single-writer guarantee: an
// exclusive, OS-level advisory lock over a LOCK file, automatically released
// if the holding process exits or crashes. No library in the retrieval pack
// offers cross-process advisory locking, so this talks to syscall.Flock
// directly rather than reaching for a lockfile-race workaround.
package lock

import (
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/wacli/wacli/internal/errs"
)

const fileName = "LOCK"

// Lock represents a held exclusive lock over a store directory.
type Lock struct {
	f *os.File
}

// Acquire takes an exclusive, non-blocking advisory lock on <dir>/LOCK,
// creating the store directory and the file if needed. If another process
// already holds the lock, it returns an errs.LockHeld error naming that
// process from the file's owner-hint body.
func Acquire(dir string) (*Lock, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}

	path := filepath.Join(dir, fileName)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		holder := readOwnerHint(path)
		f.Close()
		if holder != "" {
			return nil, errs.New(errs.LockHeld, "another wacli is running: %s", holder)
		}
		return nil, errs.New(errs.LockHeld, "another wacli is running (lock held on %s)", path)
	}

	if err := f.Truncate(0); err != nil {
		syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
		f.Close()
		return nil, fmt.Errorf("truncate lock file: %w", err)
	}
	hint := fmt.Sprintf("pid=%d cmd=%s acquired_at=%s\n",
		os.Getpid(), commandLine(), time.Now().UTC().Format(time.RFC3339))
	if _, err := f.WriteAt([]byte(hint), 0); err != nil {
		syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
		f.Close()
		return nil, fmt.Errorf("write lock owner hint: %w", err)
	}

	return &Lock{f: f}, nil
}

// Release unlocks and closes the lock file. Idempotent: calling it more than
// once, or on a nil *Lock, is a no-op.
func (l *Lock) Release() error {
	if l == nil || l.f == nil {
		return nil
	}
	err := syscall.Flock(int(l.f.Fd()), syscall.LOCK_UN)
	closeErr := l.f.Close()
	l.f = nil
	if err != nil {
		return err
	}
	return closeErr
}

// Probe reports whether dir's lock is currently held by another process,
// without blocking and without disturbing an existing hold. Used by doctor.
// It returns held=false, hint="" if the lock file doesn't exist or isn't
// held.
func Probe(dir string) (held bool, hint string) {
	path := filepath.Join(dir, fileName)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return false, ""
	}
	defer f.Close()

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		return true, readOwnerHint(path)
	}
	// We just took the lock ourselves to probe; release it immediately.
	syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
	return false, ""
}

func readOwnerHint(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	s := string(data)
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}

func commandLine() string {
	if len(os.Args) == 0 {
		return "wacli"
	}
	return filepath.Base(os.Args[0])
}
