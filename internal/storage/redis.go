package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/jwebster45206/npc-mind/pkg/npc"
	"github.com/jwebster45206/npc-mind/pkg/storage"
)

const (
	agentKeyPrefix = "npc:"
	// agentIndexKey is a hash of agent id to its JSON summary
	agentIndexKey = "npcs"
)

// RedisStorage implements storage.Storage with one JSON value per agent plus
// an index hash for listing.
type RedisStorage struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// Ensure RedisStorage implements Storage interface
var _ storage.Storage = (*RedisStorage)(nil)

// NewRedisStorage accepts either a redis:// URL or a bare host:port. A zero
// ttl keeps agents until they are deleted.
func NewRedisStorage(redisURL string, ttl time.Duration, logger *slog.Logger) (*RedisStorage, error) {
	opts, err := redisOptions(redisURL)
	if err != nil {
		return nil, err
	}

	return &RedisStorage{
		client: redis.NewClient(opts),
		ttl:    ttl,
		logger: logger,
	}, nil
}

func redisOptions(redisURL string) (*redis.Options, error) {
	if !strings.Contains(redisURL, "://") {
		return &redis.Options{Addr: redisURL}, nil
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	return opts, nil
}

func agentKey(id uuid.UUID) string {
	return agentKeyPrefix + id.String()
}

// Health and lifecycle methods

func (r *RedisStorage) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

func (r *RedisStorage) Close() error {
	if err := r.client.Close(); err != nil {
		r.logger.Error("Failed to close Redis connection", "error", err)
		return err
	}
	r.logger.Info("Redis connection closed")
	return nil
}

// WaitForConnection waits for Redis to become available (used during startup)
func (r *RedisStorage) WaitForConnection(ctx context.Context, maxRetries int, retryDelay time.Duration) error {
	for i := 0; i < maxRetries; i++ {
		if err := r.Ping(ctx); err != nil {
			r.logger.Debug("Redis not ready yet", "error", err, "attempt", i+1)

			select {
			case <-ctx.Done():
				return fmt.Errorf("context cancelled while waiting for redis: %w", ctx.Err())
			case <-time.After(retryDelay):
				continue
			}
		}

		r.logger.Info("Redis connection established")
		return nil
	}

	return fmt.Errorf("redis did not become available after %d attempts", maxRetries)
}

// Agent operations

func (r *RedisStorage) SaveAgent(ctx context.Context, snap *npc.Snapshot) error {
	snap.UpdatedAt = time.Now()

	data, err := json.Marshal(snap)
	if err != nil {
		r.logger.Error("Failed to marshal agent", "agent_id", snap.ID, "error", err)
		return fmt.Errorf("failed to marshal agent: %w", err)
	}
	summary, err := json.Marshal(storage.Summarize(snap))
	if err != nil {
		return fmt.Errorf("failed to marshal agent summary: %w", err)
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, agentKey(snap.ID), data, r.ttl)
		pipe.HSet(ctx, agentIndexKey, snap.ID.String(), summary)
		return nil
	})
	if err != nil {
		r.logger.Error("Failed to save agent", "agent_id", snap.ID, "error", err)
		return fmt.Errorf("failed to save agent: %w", err)
	}

	return nil
}

func (r *RedisStorage) LoadAgent(ctx context.Context, id uuid.UUID) (*npc.Snapshot, error) {
	data, err := r.client.Get(ctx, agentKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			r.logger.Debug("Agent not found", "agent_id", id)
			return nil, nil
		}
		r.logger.Error("Failed to load agent", "agent_id", id, "error", err)
		return nil, fmt.Errorf("failed to load agent: %w", err)
	}

	var snap npc.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		r.logger.Error("Failed to unmarshal agent", "agent_id", id, "error", err)
		return nil, fmt.Errorf("failed to unmarshal agent: %w", err)
	}

	return &snap, nil
}

func (r *RedisStorage) DeleteAgent(ctx context.Context, id uuid.UUID) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, agentKey(id))
		pipe.HDel(ctx, agentIndexKey, id.String())
		return nil
	})
	if err != nil {
		r.logger.Error("Failed to delete agent", "agent_id", id, "error", err)
		return fmt.Errorf("failed to delete agent: %w", err)
	}
	return nil
}

// ListAgents reads the index and drops entries whose snapshot has expired.
func (r *RedisStorage) ListAgents(ctx context.Context) ([]storage.AgentSummary, error) {
	index, err := r.client.HGetAll(ctx, agentIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list agents: %w", err)
	}

	ids := make([]string, 0, len(index))
	exists := make([]*redis.IntCmd, 0, len(index))
	pipe := r.client.Pipeline()
	for id := range index {
		ids = append(ids, id)
		exists = append(exists, pipe.Exists(ctx, agentKeyPrefix+id))
	}
	if len(ids) > 0 {
		if _, err := pipe.Exec(ctx); err != nil {
			return nil, fmt.Errorf("failed to check agent keys: %w", err)
		}
	}

	list := make([]storage.AgentSummary, 0, len(ids))
	var stale []string
	for i, id := range ids {
		if exists[i].Val() == 0 {
			stale = append(stale, id)
			continue
		}
		var s storage.AgentSummary
		if err := json.Unmarshal([]byte(index[id]), &s); err != nil {
			r.logger.Warn("Skipping unreadable agent index entry", "agent_id", id, "error", err)
			continue
		}
		list = append(list, s)
	}

	if len(stale) > 0 {
		if err := r.client.HDel(ctx, agentIndexKey, stale...).Err(); err != nil {
			r.logger.Warn("Failed to prune expired agents", "count", len(stale), "error", err)
		}
	}

	storage.SortSummaries(list)
	return list, nil
}
