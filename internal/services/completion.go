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
	DefaultTemperature = 0.8
	DefaultMaxTokens   = 512

	defaultMaxAttempts = 3
	defaultBackoff     = 500 * time.Millisecond
)

// CompletionService implements DialogueService against an OpenAI-compatible
// chat completions endpoint (Groq by default).
type CompletionService struct {
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

// NewCompletionService reads the API key from the named environment variable.
// A missing key is a ConfigurationError.
func NewCompletionService(baseURL, model, apiKeyEnv string, logger *slog.Logger) (*CompletionService, error) {
	if apiKeyEnv == "" {
		return nil, &ConfigurationError{Setting: "DIALOGUE_API_KEY_ENV", Reason: "is empty"}
	}
	apiKey := os.Getenv(apiKeyEnv)
	if apiKey == "" {
		return nil, &ConfigurationError{Setting: apiKeyEnv, Reason: "is not set"}
	}
	if baseURL == "" {
		return nil, &ConfigurationError{Setting: "DIALOGUE_BASE_URL", Reason: "is empty"}
	}
	if model == "" {
		return nil, &ConfigurationError{Setting: "DIALOGUE_MODEL", Reason: "is empty"}
	}

	return &CompletionService{
		baseURL:     strings.TrimRight(baseURL, "/"),
		model:       model,
		apiKey:      apiKey,
		temperature: DefaultTemperature,
		maxTokens:   DefaultMaxTokens,
		maxAttempts: defaultMaxAttempts,
		backoff:     defaultBackoff,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		logger: logger,
	}, nil
}

func (s *CompletionService) ModelName() string {
	return s.model
}

// Generate posts the messages and returns the decoded completion. Network
// failures and 429/5xx responses are retried with exponential backoff.
func (s *CompletionService) Generate(ctx context.Context, messages []chat.ChatMessage) (*chat.CompletionResponse, error) {
	temperature := s.temperature
	reqBody, err := json.Marshal(chat.CompletionRequest{
		Model:       s.model,
		Messages:    messages,
		Temperature: &temperature,
		MaxTokens:   s.maxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	return withRetry(ctx, s.logger, s.maxAttempts, s.backoff, func() (*chat.CompletionResponse, error) {
		return s.post(ctx, reqBody)
	})
}

func (s *CompletionService) post(ctx context.Context, body []byte) (*chat.CompletionResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
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

	var out chat.CompletionResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, &ProtocolError{Body: string(respBody), Err: err}
	}
	if err := out.Validate(); err != nil {
		return nil, &ProtocolError{Body: string(respBody), Err: err}
	}

	s.logger.Debug("Dialogue generated",
		"id", out.ID,
		"model", out.Model,
		"total_tokens", out.Usage.TotalTokens,
		"total_time", out.Usage.TotalTime)

	return &out, nil
}
