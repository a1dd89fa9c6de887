package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseDialogueLines(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		expected   DialogueLines
		structured bool
	}{
		{
			name:  "json object",
			input: `{"npc_response":"Halt!","npc_feelings":"wary","action_description":"The guard raises a spear."}`,
			expected: DialogueLines{
				NPCResponse:       "Halt!",
				NPCFeelings:       "wary",
				ActionDescription: "The guard raises a spear.",
			},
			structured: true,
		},
		{
			name:       "fenced json",
			input:      "```json\n{\"npc_response\":\"Welcome, traveler.\"}\n```",
			expected:   DialogueLines{NPCResponse: "Welcome, traveler."},
			structured: true,
		},
		{
			name:       "plain text",
			input:      "  Leave me be.  ",
			expected:   DialogueLines{NPCResponse: "Leave me be."},
			structured: false,
		},
		{
			name:       "json without npc response",
			input:      `{"npc_feelings":"sad"}`,
			expected:   DialogueLines{NPCResponse: `{"npc_feelings":"sad"}`},
			structured: false,
		},
		{
			name:       "empty",
			input:      "",
			expected:   DialogueLines{},
			structured: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, structured := ParseDialogueLines(tt.input)
			assert.Equal(t, tt.structured, structured)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestCompletionResponse_Text(t *testing.T) {
	var nilResp *CompletionResponse
	_, ok := nilResp.Text()
	assert.False(t, ok)

	_, ok = (&CompletionResponse{}).Text()
	assert.False(t, ok)

	resp := &CompletionResponse{Choices: []Choice{
		{Index: 0, Message: ChatMessage{Role: ChatRoleAgent, Content: "first"}},
		{Index: 1, Message: ChatMessage{Role: ChatRoleAgent, Content: "second"}},
	}}
	text, ok := resp.Text()
	assert.True(t, ok)
	assert.Equal(t, "first", text)
}

func TestCompletionResponse_Validate(t *testing.T) {
	assert.Error(t, (&CompletionResponse{}).Validate())
	assert.Error(t, (&CompletionResponse{ID: "x", Choices: []Choice{{}}}).Validate())
	assert.NoError(t, (&CompletionResponse{ID: "x", Choices: []Choice{{Message: ChatMessage{Role: "assistant"}}}}).Validate())
}
