package services

import (
	"context"
	"sync"

	"github.com/jwebster45206/npc-mind/pkg/chat"
)

// MockDialogueService is a mock implementation of DialogueService for testing
type MockDialogueService struct {
	GenerateFunc func(ctx context.Context, messages []chat.ChatMessage) (*chat.CompletionResponse, error)

	// Track calls for testing
	GenerateCalls [][]chat.ChatMessage

	mu sync.Mutex
}

// NewMockDialogueService creates a new mock dialogue service
func NewMockDialogueService() *MockDialogueService {
	return &MockDialogueService{
		GenerateCalls: make([][]chat.ChatMessage, 0),
	}
}

// Generate records the call and delegates to GenerateFunc when set.
func (m *MockDialogueService) Generate(ctx context.Context, messages []chat.ChatMessage) (*chat.CompletionResponse, error) {
	m.mu.Lock()
	m.GenerateCalls = append(m.GenerateCalls, messages)
	fn := m.GenerateFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, messages)
	}

	// Default behavior - a fixed structured line
	return MockCompletion(`{"npc_response":"Well met, traveler.","npc_feelings":"calm"}`), nil
}

func (m *MockDialogueService) ModelName() string {
	return "mock-model"
}

// CallCount returns how many times Generate was called
func (m *MockDialogueService) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.GenerateCalls)
}

// Reset clears all recorded calls
func (m *MockDialogueService) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GenerateCalls = make([][]chat.ChatMessage, 0)
}

// MockCompletion wraps text in a single-choice completion response.
func MockCompletion(text string) *chat.CompletionResponse {
	return &chat.CompletionResponse{
		ID:     "mock-completion",
		Object: "chat.completion",
		Model:  "mock-model",
		Choices: []chat.Choice{{
			Message:      chat.ChatMessage{Role: chat.ChatRoleAgent, Content: text},
			FinishReason: "stop",
		}},
	}
}
