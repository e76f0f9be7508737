// Package credstore provides the durable, scope-partitioned key-value storage
// that holds each visitor's credential.
package credstore

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/storrsec/internal/config"
	"github.com/storrsec/internal/domain"
)

var (
	_ domain.KeyValueStore = (*SQLiteStore)(nil)
	_ domain.KeyValueStore = (*RedisStore)(nil)
	_ domain.KeyValueStore = (*MemoryStore)(nil)

	_ Purger = (*SQLiteStore)(nil)
	_ Purger = (*MemoryStore)(nil)
)

// New opens the backend selected by cfg.Backend
func New(ctx context.Context, cfg config.StorageConfig) (domain.KeyValueStore, error) {
	switch cfg.Backend {
	case config.StoreSQLite:
		slog.Info("using sqlite credential store", "path", cfg.DatabasePath)
		store, err := OpenSQLite(cfg.DatabasePath)
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.StoreRedis:
		slog.Info("using redis credential store", "addr", cfg.RedisAddr, "db", cfg.RedisDB)
		store, err := OpenRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, err
		}
		return store.WithExpiry(cfg.Retention), nil
	case config.StoreMemory:
		slog.Warn("using in-memory credential store, credentials are lost on restart")
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown credential store backend %q", cfg.Backend)
	}
}
