package chat

const (
	ChatRoleUser   = "user"      // player or game prompt
	ChatRoleAgent  = "assistant" // NPC
	ChatRoleSystem = "system"    // writer instructions
)

// ChatMessage is a single role/content pair sent to the text-generation service.
type ChatMessage struct {
	Role    string `json:"role"` // "user", "assistant", "system"
	Content string `json:"content"`
}
