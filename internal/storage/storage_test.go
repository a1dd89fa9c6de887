package storage

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/npc-mind/internal/config"
	"github.com/jwebster45206/npc-mind/pkg/decision"
	"github.com/jwebster45206/npc-mind/pkg/emotion"
	"github.com/jwebster45206/npc-mind/pkg/knowledge"
	"github.com/jwebster45206/npc-mind/pkg/npc"
	"github.com/jwebster45206/npc-mind/pkg/storage"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupRedisStorage(t *testing.T, ttl time.Duration) (*RedisStorage, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	s, err := NewRedisStorage("redis://"+mr.Addr(), ttl, testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, mr
}

func setupSQLiteStorage(t *testing.T) *SQLiteStorage {
	t.Helper()
	s, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "nested", "npcs.db"), testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testAgent(name string) *npc.Agent {
	a := npc.New(name, []decision.Action{
		{Name: "Talk", Description: "Engage in conversation."},
		{Name: "Run", Description: "Flee from danger."},
	})
	a.Decisions.UpdateState("Engaged")
	a.Decisions.RecordMemory("last_visitor", "a bard")
	a.Emotions.SetEmotion(emotion.Trust)
	a.Emotions.RecordMemory("dragon_sighting", emotion.Fear)
	a.Knowledge.AddEntity(knowledge.NewEntity("player", map[string]string{"name": "Hero"}))
	a.Knowledge.AddRelationship(knowledge.NewRelationship("player", "gate", "approaches", nil))
	return a
}

// exerciseBackend runs the behavior every backend shares.
func exerciseBackend(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	require.NoError(t, s.Ping(ctx))

	missing, err := s.LoadAgent(ctx, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, missing)

	bram := testAgent("Bram")
	ada := testAgent("Ada")
	require.NoError(t, s.SaveAgent(ctx, bram.Snapshot()))
	require.NoError(t, s.SaveAgent(ctx, ada.Snapshot()))

	snap, err := s.LoadAgent(ctx, bram.ID)
	require.NoError(t, err)
	require.NotNil(t, snap)

	restored, err := npc.FromSnapshot(snap)
	require.NoError(t, err)
	assert.Equal(t, "Bram", restored.Name)
	assert.Equal(t, "Action selected: Engage in conversation.", restored.Act())
	assert.Equal(t, "Collaborate", restored.React())
	got, ok := restored.Decisions.Memory("last_visitor")
	assert.True(t, ok)
	assert.Equal(t, "a bard", got)
	feel, ok := restored.Emotions.Memory("dragon_sighting")
	assert.True(t, ok)
	assert.Equal(t, emotion.Fear, feel)
	assert.Len(t, restored.Knowledge.GetRelationships("gate"), 1)

	// overwrite
	bram.Decisions.UpdateState("Fleeing")
	require.NoError(t, s.SaveAgent(ctx, bram.Snapshot()))
	snap, err = s.LoadAgent(ctx, bram.ID)
	require.NoError(t, err)
	assert.Equal(t, decision.StateFleeing, snap.State)

	list, err := s.ListAgents(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Ada", list[0].Name)
	assert.Equal(t, ada.ID, list[0].ID)
	assert.Equal(t, "Bram", list[1].Name)
	assert.False(t, list[1].UpdatedAt.IsZero())

	require.NoError(t, s.DeleteAgent(ctx, bram.ID))
	snap, err = s.LoadAgent(ctx, bram.ID)
	require.NoError(t, err)
	assert.Nil(t, snap)
	require.NoError(t, s.DeleteAgent(ctx, bram.ID))

	list, err = s.ListAgents(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestRedisStorage(t *testing.T) {
	s, _ := setupRedisStorage(t, 0)
	exerciseBackend(t, s)
}

func TestSQLiteStorage(t *testing.T) {
	exerciseBackend(t, setupSQLiteStorage(t))
}

func TestMemoryStorage(t *testing.T) {
	exerciseBackend(t, storage.NewMemoryStorage())
}

func TestRedisStorage_Keys(t *testing.T) {
	s, mr := setupRedisStorage(t, 0)
	a := testAgent("Bram")
	require.NoError(t, s.SaveAgent(context.Background(), a.Snapshot()))

	assert.True(t, mr.Exists("npc:"+a.ID.String()))
	assert.True(t, mr.Exists("npcs"))
	assert.Equal(t, time.Duration(0), mr.TTL("npc:"+a.ID.String()))
}

func TestRedisStorage_TTLExpiry(t *testing.T) {
	s, mr := setupRedisStorage(t, time.Hour)
	ctx := context.Background()
	a := testAgent("Bram")
	require.NoError(t, s.SaveAgent(ctx, a.Snapshot()))
	assert.Equal(t, time.Hour, mr.TTL("npc:"+a.ID.String()))

	mr.FastForward(2 * time.Hour)

	snap, err := s.LoadAgent(ctx, a.ID)
	require.NoError(t, err)
	assert.Nil(t, snap)

	list, err := s.ListAgents(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
	keys, _ := mr.HKeys("npcs")
	assert.Empty(t, keys)
}

func TestRedisStorage_WaitForConnection(t *testing.T) {
	s, mr := setupRedisStorage(t, 0)
	require.NoError(t, s.WaitForConnection(context.Background(), 3, time.Millisecond))

	mr.Close()
	err := s.WaitForConnection(context.Background(), 2, time.Millisecond)
	assert.ErrorContains(t, err, "did not become available after 2 attempts")
}

func TestConnect_RetriesRedisUntilUp(t *testing.T) {
	s, mr := setupRedisStorage(t, 0)
	mr.Close()

	go func() {
		time.Sleep(30 * time.Millisecond)
		_ = mr.Restart()
	}()

	require.NoError(t, Connect(context.Background(), s, 100, 10*time.Millisecond))
}

func TestConnect_PingsOtherBackends(t *testing.T) {
	mem := storage.NewMemoryStorage()
	require.NoError(t, Connect(context.Background(), mem, 1, time.Millisecond))
	mem.SetPingError(errors.New("down"))
	assert.ErrorContains(t, Connect(context.Background(), mem, 5, time.Millisecond), "down")

	s := setupSQLiteStorage(t)
	require.NoError(t, Connect(context.Background(), s, 1, time.Millisecond))
}

func TestRedisOptions(t *testing.T) {
	opts, err := redisOptions("localhost:6379")
	require.NoError(t, err)
	assert.Equal(t, "localhost:6379", opts.Addr)

	opts, err = redisOptions("redis://localhost:6380/2")
	require.NoError(t, err)
	assert.Equal(t, "localhost:6380", opts.Addr)
	assert.Equal(t, 2, opts.DB)

	_, err = redisOptions("redis://[bad")
	assert.Error(t, err)
}

func TestOpen(t *testing.T) {
	mr := miniredis.RunT(t)

	s, err := Open(&config.Config{StorageBackend: config.StorageRedis, RedisURL: mr.Addr()}, testLogger())
	require.NoError(t, err)
	assert.IsType(t, &RedisStorage{}, s)
	_ = s.Close()

	s, err = Open(&config.Config{StorageBackend: config.StorageSQLite, SQLitePath: filepath.Join(t.TempDir(), "a.db")}, testLogger())
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStorage{}, s)
	_ = s.Close()

	s, err = Open(&config.Config{StorageBackend: config.StorageMemory}, testLogger())
	require.NoError(t, err)
	assert.IsType(t, &storage.MemoryStorage{}, s)

	_, err = Open(&config.Config{StorageBackend: "etcd"}, testLogger())
	assert.Error(t, err)
}
