package services

import (
	"context"

	"github.com/jwebster45206/npc-mind/pkg/chat"
)

// DialogueService generates NPC dialogue from a prepared prompt.
type DialogueService interface {
	// Generate sends the messages to the text-generation service.
	Generate(ctx context.Context, messages []chat.ChatMessage) (*chat.CompletionResponse, error)

	// ModelName reports the model requests are sent to.
	ModelName() string
}
