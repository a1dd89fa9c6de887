package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jwebster45206/npc-mind/pkg/npc"
)

// MemoryStorage keeps snapshots in process. Used by tests and by
// STORAGE_BACKEND=memory.
type MemoryStorage struct {
	mu        sync.RWMutex
	agents    map[uuid.UUID][]byte
	pingError error
}

// Ensure MemoryStorage implements Storage interface
var _ Storage = (*MemoryStorage)(nil)

// NewMemoryStorage creates an empty in-memory store
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		agents: make(map[uuid.UUID][]byte),
	}
}

// SetPingError configures Ping to fail with err; nil restores success.
func (m *MemoryStorage) SetPingError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pingError = err
}

func (m *MemoryStorage) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pingError
}

func (m *MemoryStorage) Close() error {
	return nil
}

// SaveAgent stores an encoded copy so later changes to snap are not visible.
func (m *MemoryStorage) SaveAgent(ctx context.Context, snap *npc.Snapshot) error {
	snap.UpdatedAt = time.Now()
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal agent: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.agents[snap.ID] = data
	return nil
}

func (m *MemoryStorage) LoadAgent(ctx context.Context, id uuid.UUID) (*npc.Snapshot, error) {
	m.mu.RLock()
	data, ok := m.agents[id]
	m.mu.RUnlock()
	if !ok {
		return nil, nil
	}

	var snap npc.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal agent: %w", err)
	}
	return &snap, nil
}

func (m *MemoryStorage) DeleteAgent(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.agents, id)
	return nil
}

func (m *MemoryStorage) ListAgents(ctx context.Context) ([]AgentSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	list := make([]AgentSummary, 0, len(m.agents))
	for _, data := range m.agents {
		var snap npc.Snapshot
		if err := json.Unmarshal(data, &snap); err != nil {
			return nil, fmt.Errorf("failed to unmarshal agent: %w", err)
		}
		list = append(list, Summarize(&snap))
	}
	SortSummaries(list)
	return list, nil
}
