// Package npc assembles the cognitive components of a single non-player
// character into one independently owned unit.
package npc

import (
	"time"

	"github.com/google/uuid"
	"github.com/jwebster45206/npc-mind/pkg/decision"
	"github.com/jwebster45206/npc-mind/pkg/emotion"
	"github.com/jwebster45206/npc-mind/pkg/knowledge"
	"github.com/jwebster45206/npc-mind/pkg/personality"
)

// Agent is one NPC's complete cognitive state. Nothing in an Agent is shared
// with other agents; callers that update agents concurrently must give each
// agent to a single goroutine at a time.
type Agent struct {
	ID          uuid.UUID
	Name        string
	Personality personality.Profile
	Knowledge   *knowledge.Graph
	Emotions    *emotion.Tracker
	Decisions   *decision.Engine
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// New creates an agent in the Idle state, feeling Neutral, with a default
// personality and an empty knowledge graph.
func New(name string, actions []decision.Action) *Agent {
	now := time.Now()
	return &Agent{
		ID:          uuid.New(),
		Name:        name,
		Personality: personality.New(),
		Knowledge:   knowledge.NewGraph(),
		Emotions:    emotion.NewTracker(),
		Decisions:   decision.NewEngine(actions),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Act returns the state-driven action choice
func (a *Agent) Act() string {
	return a.Decisions.ChooseAction()
}

// React returns the emotion-driven action choice. It is independent of Act;
// the two tables are not blended.
func (a *Agent) React() string {
	return a.Emotions.ChooseAction()
}

// Touch marks the agent as modified
func (a *Agent) Touch() {
	a.UpdatedAt = time.Now()
}
