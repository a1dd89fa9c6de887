package queue

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/npc-mind/pkg/chat"
)

func TestDialogueRequest_JSON(t *testing.T) {
	req := &DialogueRequest{
		RequestID:   "req-1",
		AgentID:     uuid.New(),
		Instruction: "Greet the player.",
		Messages:    []chat.ChatMessage{{Role: chat.ChatRoleUser, Content: "hi"}},
		EnqueuedAt:  time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}

	data, err := req.ToJSON()
	require.NoError(t, err)
	assert.Contains(t, string(data), `"agent_id":"`+req.AgentID.String()+`"`)
	assert.NotContains(t, string(data), "player_line")

	got, err := FromJSON(data)
	require.NoError(t, err)
	assert.Equal(t, req, got)
}

func TestFromJSON_Invalid(t *testing.T) {
	_, err := FromJSON([]byte(`{"agent_id":"not-a-uuid"}`))
	assert.Error(t, err)

	_, err = FromJSON([]byte(`nope`))
	assert.Error(t, err)
}

func TestDialogueRequest_Validate(t *testing.T) {
	assert.NoError(t, (&DialogueRequest{RequestID: "r", AgentID: uuid.New()}).Validate())
	assert.EqualError(t, (&DialogueRequest{AgentID: uuid.New()}).Validate(), "request_id is required")
	assert.EqualError(t, (&DialogueRequest{RequestID: "r"}).Validate(), "agent_id is required")
}
