package npc

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jwebster45206/npc-mind/pkg/decision"
	"github.com/jwebster45206/npc-mind/pkg/emotion"
	"github.com/jwebster45206/npc-mind/pkg/knowledge"
	"github.com/jwebster45206/npc-mind/pkg/personality"
)

// Snapshot is the serializable form of an Agent
type Snapshot struct {
	ID                uuid.UUID                  `json:"id"`
	Name              string                     `json:"name"`
	Personality       personality.Traits         `json:"personality"`
	State             decision.State             `json:"state"`
	Actions           []decision.Action          `json:"actions"`
	Memories          map[string]string          `json:"memories,omitempty"`
	Emotion           emotion.Emotion            `json:"emotion"`
	EmotionalMemories map[string]emotion.Emotion `json:"emotional_memories,omitempty"`
	Entities          []knowledge.Entity         `json:"entities,omitempty"`
	Relationships     []knowledge.Relationship   `json:"relationships,omitempty"`
	CreatedAt         time.Time                  `json:"created_at"`
	UpdatedAt         time.Time                  `json:"updated_at"`
}

// Snapshot captures the agent's full state
func (a *Agent) Snapshot() *Snapshot {
	return &Snapshot{
		ID:                a.ID,
		Name:              a.Name,
		Personality:       a.Personality.Traits(),
		State:             a.Decisions.State(),
		Actions:           a.Decisions.Catalog(),
		Memories:          a.Decisions.Memories(),
		Emotion:           a.Emotions.Emotion(),
		EmotionalMemories: a.Emotions.Memories(),
		Entities:          a.Knowledge.Entities(),
		Relationships:     a.Knowledge.Relationships(),
		CreatedAt:         a.CreatedAt,
		UpdatedAt:         a.UpdatedAt,
	}
}

// FromSnapshot rebuilds an agent. Relationship order is preserved.
func FromSnapshot(s *Snapshot) (*Agent, error) {
	if s == nil {
		return nil, fmt.Errorf("snapshot cannot be nil")
	}
	if s.ID == uuid.Nil {
		return nil, fmt.Errorf("snapshot is missing an id")
	}
	if !s.Emotion.Valid() {
		return nil, fmt.Errorf("snapshot has invalid emotion %d", int(s.Emotion))
	}

	a := &Agent{
		ID:          s.ID,
		Name:        s.Name,
		Personality: personality.FromTraits(s.Personality),
		Knowledge:   knowledge.NewGraph(),
		Emotions:    emotion.NewTracker(),
		Decisions:   decision.NewEngine(s.Actions),
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
	}

	state := s.State
	if state == "" {
		state = decision.StateIdle
	}
	a.Decisions.Restore(state, s.Memories)
	a.Emotions.Restore(s.Emotion, s.EmotionalMemories)

	for _, e := range s.Entities {
		a.Knowledge.AddEntity(e)
	}
	for _, r := range s.Relationships {
		a.Knowledge.AddRelationship(r)
	}

	return a, nil
}
