// Package store provides the persistent key-value slots used by the trainer.
package store

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// Backend names accepted by Open.
const (
	BackendSQLite = "sqlite"
	BackendBadger = "badger"
	BackendMemory = "memory"
)

// KV is a minimal persistent key-value store.
type KV interface {
	// Get returns the stored value. A missing key yields ok == false and no error.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Config selects and configures a backend.
type Config struct {
	Backend string
	Path    string
	Logger  *slog.Logger
}

// Open opens the configured backend.
func Open(cfg Config) (KV, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	switch strings.ToLower(cfg.Backend) {
	case "", BackendSQLite:
		return OpenSQLite(cfg.Path)
	case BackendBadger:
		return OpenBadger(BadgerConfig{Path: cfg.Path, SyncWrites: true, Logger: logger})
	case BackendMemory:
		return NewMemory(), nil
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
}
