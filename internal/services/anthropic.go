package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jwebster45206/npc-mind/pkg/chat"
)

const (
	AnthropicBaseURL = "https://api.anthropic.com/v1"
	anthropicVersion = "2023-06-01"
)

// AnthropicService implements DialogueService for the Anthropic Messages API
type AnthropicService struct {
	baseURL     string
	model       string
	apiKey      string
	temperature float64
	maxTokens   int
	maxAttempts int
	backoff     time.Duration
	httpClient  *http.Client
	logger      *slog.Logger
}

type AnthropicChatRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature *float64           `json:"temperature,omitempty"`
	Messages    []chat.ChatMessage `json:"messages"`
	System      string             `json:"system,omitempty"`
}

type AnthropicContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type AnthropicChatResponse struct {
	ID         string                  `json:"id"`
	Type       string                  `json:"type"`
	Role       string                  `json:"role"`
	Content    []AnthropicContentBlock `json:"content"`
	Model      string                  `json:"model"`
	StopReason string                  `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// NewAnthropicService reads the API key from the named environment variable.
func NewAnthropicService(baseURL, model, apiKeyEnv string, logger *slog.Logger) (*AnthropicService, error) {
	if apiKeyEnv == "" {
		return nil, &ConfigurationError{Setting: "DIALOGUE_API_KEY_ENV", Reason: "is empty"}
	}
	apiKey := os.Getenv(apiKeyEnv)
	if apiKey == "" {
		return nil, &ConfigurationError{Setting: apiKeyEnv, Reason: "is not set"}
	}
	if model == "" {
		return nil, &ConfigurationError{Setting: "DIALOGUE_MODEL", Reason: "is empty"}
	}
	if baseURL == "" {
		baseURL = AnthropicBaseURL
	}

	return &AnthropicService{
		baseURL:     strings.TrimRight(baseURL, "/"),
		model:       model,
		apiKey:      apiKey,
		temperature: DefaultTemperature,
		maxTokens:   DefaultMaxTokens,
		maxAttempts: defaultMaxAttempts,
		backoff:     defaultBackoff,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
		logger: logger,
	}, nil
}

func (a *AnthropicService) ModelName() string {
	return a.model
}

// splitChatMessages extracts and combines all system messages into a single system prompt
// and returns the remaining non-system messages
func splitChatMessages(messages []chat.ChatMessage) (string, []chat.ChatMessage) {
	var systemParts []string
	var nonSystemMessages []chat.ChatMessage

	for _, msg := range messages {
		if msg.Role == chat.ChatRoleSystem {
			systemParts = append(systemParts, msg.Content)
		} else {
			nonSystemMessages = append(nonSystemMessages, msg)
		}
	}

	return strings.Join(systemParts, "\n\n"), nonSystemMessages
}

// Generate sends the messages to the Messages API and returns the reply in
// chat completion form, so callers need not know which provider answered.
func (a *AnthropicService) Generate(ctx context.Context, messages []chat.ChatMessage) (*chat.CompletionResponse, error) {
	systemPrompt, conversation := splitChatMessages(messages)

	temperature := a.temperature
	reqBody, err := json.Marshal(AnthropicChatRequest{
		Model:       a.model,
		MaxTokens:   a.maxTokens,
		Temperature: &temperature,
		Messages:    conversation,
		System:      systemPrompt,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	return withRetry(ctx, a.logger, a.maxAttempts, a.backoff, func() (*chat.CompletionResponse, error) {
		return a.post(ctx, reqBody)
	})
}

func (a *AnthropicService) post(ctx context.Context, body []byte) (*chat.CompletionResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	// Set required Anthropic headers
	req.Header.Set("x-api-key", a.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)
	req.Header.Set("content-type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &NetworkError{Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{Err: fmt.Errorf("failed to read response body: %w", err)}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var anthropicResp AnthropicChatResponse
	if err := json.Unmarshal(respBody, &anthropicResp); err != nil {
		return nil, &ProtocolError{Body: string(respBody), Err: err}
	}
	if anthropicResp.Error != nil {
		return nil, &ProtocolError{Body: string(respBody), Err: fmt.Errorf("API error: %s", anthropicResp.Error.Message)}
	}

	out := toCompletion(&anthropicResp)
	if err := out.Validate(); err != nil {
		return nil, &ProtocolError{Body: string(respBody), Err: err}
	}

	a.logger.Debug("Dialogue generated",
		"id", out.ID,
		"model", out.Model,
		"total_tokens", out.Usage.TotalTokens)

	return out, nil
}

// toCompletion joins the text blocks into a single choice.
func toCompletion(r *AnthropicChatResponse) *chat.CompletionResponse {
	var text strings.Builder
	for _, block := range r.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	out := &chat.CompletionResponse{
		ID:     r.ID,
		Object: r.Type,
		Model:  r.Model,
		Usage: chat.Usage{
			PromptTokens:     r.Usage.InputTokens,
			CompletionTokens: r.Usage.OutputTokens,
			TotalTokens:      r.Usage.InputTokens + r.Usage.OutputTokens,
		},
	}
	if text.Len() > 0 {
		out.Choices = []chat.Choice{{
			Message:      chat.ChatMessage{Role: chat.ChatRoleAgent, Content: text.String()},
			FinishReason: r.StopReason,
		}}
	}
	return out
}
