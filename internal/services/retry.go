package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jwebster45206/npc-mind/pkg/chat"
)

// withRetry runs call until it succeeds, fails permanently or runs out of
// attempts. The wait doubles after each failure.
func withRetry(ctx context.Context, logger *slog.Logger, maxAttempts int, backoff time.Duration, call func() (*chat.CompletionResponse, error)) (*chat.CompletionResponse, error) {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		resp, err := call()
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if !retryable(err) || attempt == maxAttempts {
			break
		}

		wait := backoff << (attempt - 1)
		logger.Warn("Dialogue request failed, retrying",
			"attempt", attempt,
			"max_attempts", maxAttempts,
			"wait", wait,
			"error", err)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}

	return nil, lastErr
}

func retryable(err error) bool {
	var netErr *NetworkError
	if errors.As(err, &netErr) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Retryable()
	}
	return false
}
