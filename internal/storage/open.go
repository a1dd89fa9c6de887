package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jwebster45206/npc-mind/internal/config"
	"github.com/jwebster45206/npc-mind/pkg/storage"
)

// Open builds the backend named by cfg.StorageBackend.
func Open(cfg *config.Config, logger *slog.Logger) (storage.Storage, error) {
	switch cfg.StorageBackend {
	case config.StorageRedis:
		s, err := NewRedisStorage(cfg.RedisURL, cfg.AgentTTL, logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.StorageSQLite:
		s, err := NewSQLiteStorage(cfg.SQLitePath, logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.StorageMemory:
		return storage.NewMemoryStorage(), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}

// Connect waits for store to answer. Backends that can come up after the
// process (Redis) are retried up to maxRetries times; the rest are pinged once.
func Connect(ctx context.Context, store storage.Storage, maxRetries int, retryDelay time.Duration) error {
	if w, ok := store.(interface {
		WaitForConnection(context.Context, int, time.Duration) error
	}); ok {
		return w.WaitForConnection(ctx, maxRetries, retryDelay)
	}
	return store.Ping(ctx)
}
