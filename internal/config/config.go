// Package config resolves wacli's runtime settings: the store directory
// and optional `.env` overrides.
package config

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/joho/godotenv"
)

// LoadDotEnv loads a `.env` file from the current directory into the
// process environment. A missing file is not an error; it's local
// developer convenience, not a required configuration source.
func LoadDotEnv() {
	_ = godotenv.Load()
}

// DefaultStoreDir returns the OS-appropriate per-user default store
// directory, honoring WACLI_STORE_DIR first, then HOME/XDG.
func DefaultStoreDir() string {
	if v := os.Getenv("WACLI_STORE_DIR"); v != "" {
		return v
	}

	if runtime.GOOS == "windows" {
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "wacli")
		}
	}

	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "wacli")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return ".wacli"
	}
	if runtime.GOOS == "darwin" {
		return filepath.Join(home, "Library", "Application Support", "wacli")
	}
	return filepath.Join(home, ".local", "share", "wacli")
}
