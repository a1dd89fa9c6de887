package queue

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/jwebster45206/npc-mind/pkg/chat"
)

// DialogueRequest asks a worker to generate the next line for one NPC.
type DialogueRequest struct {
	RequestID string    `json:"request_id"`
	AgentID   uuid.UUID `json:"agent_id"`

	// Instruction replaces the default writing task; optional.
	Instruction string `json:"instruction,omitempty"`
	// PlayerLine is what the player just said to the NPC; optional.
	PlayerLine string `json:"player_line,omitempty"`
	// Messages, when set, are sent as-is instead of a prompt built from the agent.
	Messages []chat.ChatMessage `json:"messages,omitempty"`

	EnqueuedAt time.Time `json:"enqueued_at"`
}

// Validate checks the fields a worker needs to process the request.
func (r *DialogueRequest) Validate() error {
	if r.RequestID == "" {
		return errors.New("request_id is required")
	}
	if r.AgentID == uuid.Nil {
		return errors.New("agent_id is required")
	}
	return nil
}

// ToJSON converts the request to JSON bytes for Redis
func (r *DialogueRequest) ToJSON() ([]byte, error) {
	return json.Marshal(r)
}

// FromJSON parses a request from JSON bytes
func FromJSON(data []byte) (*DialogueRequest, error) {
	var req DialogueRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, err
	}
	return &req, nil
}
