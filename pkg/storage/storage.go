package storage

import (
	"cmp"
	"context"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/jwebster45206/npc-mind/pkg/npc"
)

// Storage persists agent snapshots. The cognition packages never touch it;
// callers snapshot an agent, save it, and rebuild it with npc.FromSnapshot.
type Storage interface {
	// Health and lifecycle
	Ping(ctx context.Context) error
	Close() error

	// SaveAgent inserts or replaces the snapshot and stamps UpdatedAt.
	SaveAgent(ctx context.Context, snap *npc.Snapshot) error
	// LoadAgent returns nil, nil when the agent does not exist.
	LoadAgent(ctx context.Context, id uuid.UUID) (*npc.Snapshot, error)
	// DeleteAgent is a no-op for unknown ids.
	DeleteAgent(ctx context.Context, id uuid.UUID) error
	// ListAgents returns summaries sorted by name, then id.
	ListAgents(ctx context.Context) ([]AgentSummary, error)
}

// AgentSummary is the index entry for a stored agent.
type AgentSummary struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Summarize builds the index entry for a snapshot.
func Summarize(s *npc.Snapshot) AgentSummary {
	return AgentSummary{ID: s.ID, Name: s.Name, UpdatedAt: s.UpdatedAt}
}

// SortSummaries orders summaries by name, then id.
func SortSummaries(list []AgentSummary) {
	slices.SortFunc(list, func(a, b AgentSummary) int {
		if c := cmp.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		return cmp.Compare(a.ID.String(), b.ID.String())
	})
}
