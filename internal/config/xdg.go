// Package config resolves on-disk locations and loads the TOML config file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const appName = "repertoire"

// xdgBase resolves an XDG base directory from env, falling back to
// the home-relative default. Without a home directory paths are relative.
func xdgBase(env string, fallback ...string) string {
	if dir := os.Getenv(env); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "."
	}
	return filepath.Join(append([]string{home}, fallback...)...)
}

func appDir(env string, fallback ...string) string {
	return filepath.Join(xdgBase(env, fallback...), appName)
}

func dataDir() string   { return appDir("XDG_DATA_HOME", ".local", "share") }
func stateDir() string  { return appDir("XDG_STATE_HOME", ".local", "state") }
func configDir() string { return appDir("XDG_CONFIG_HOME", ".config") }

// DefaultStorePath returns the default location for a store backend.
// SQLite uses a single file, Badger a directory.
func DefaultStorePath(backend string) string {
	if backend == "badger" {
		return filepath.Join(dataDir(), "badger")
	}
	return filepath.Join(dataDir(), appName+".db")
}

// DefaultLogPath returns the diagnostics log written while a TUI owns the terminal.
func DefaultLogPath() string {
	return filepath.Join(stateDir(), appName+".log")
}

// DefaultConfigPath returns the default TOML config path.
func DefaultConfigPath() string {
	return filepath.Join(configDir(), "config.toml")
}

// WriteFileAtomic replaces path with data through a sibling temp file.
func WriteFileAtomic(path string, data []byte) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	f, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to stage %s: %w", path, err)
	}
	defer func() {
		if err != nil {
			_ = f.Close()
			_ = os.Remove(f.Name())
		}
	}()
	if _, err = f.Write(data); err != nil {
		return fmt.Errorf("failed to write %s: %w", f.Name(), err)
	}
	if err = f.Close(); err != nil {
		return fmt.Errorf("failed to flush %s: %w", f.Name(), err)
	}
	if err = os.Rename(f.Name(), path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
