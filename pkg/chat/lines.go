package chat

import (
	"encoding/json"
	"strings"
)

// DialogueLines is the structured reply requested from the text-generation
// service for an NPC turn.
type DialogueLines struct {
	NPCResponse       string `json:"npc_response"`
	OtherResponse     string `json:"other_response,omitempty"`
	NPCFeelings       string `json:"npc_feelings,omitempty"`
	OtherFeelings     string `json:"other_feelings,omitempty"`
	ActionDescription string `json:"action_description,omitempty"`
}

// ParseDialogueLines decodes a model reply. Replies that are not the requested
// JSON object are kept whole as the NPC's speech, and structured is false.
func ParseDialogueLines(text string) (lines DialogueLines, structured bool) {
	trimmed := strings.TrimSpace(text)
	body := stripCodeFence(trimmed)

	if err := json.Unmarshal([]byte(body), &lines); err == nil && lines.NPCResponse != "" {
		return lines, true
	}
	return DialogueLines{NPCResponse: trimmed}, false
}

// stripCodeFence removes a surrounding ``` or ```json fence
func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") || !strings.HasSuffix(s, "```") || len(s) < 6 {
		return s
	}
	inner := strings.TrimSuffix(strings.TrimPrefix(s, "```"), "```")
	inner = strings.TrimPrefix(inner, "json")
	return strings.TrimSpace(inner)
}
