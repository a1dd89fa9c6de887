package dialogue

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/npc-mind/internal/config"
	"github.com/jwebster45206/npc-mind/internal/services"
)

func TestNewFromConfig(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := &config.Config{
		DialogueBaseURL:   "http://localhost:1/v1",
		DialogueModel:     "test-model",
		DialogueAPIKeyEnv: "NPC_MIND_TEST_KEY",
		ContentRating:     "PG",
	}

	t.Run("missing key", func(t *testing.T) {
		t.Setenv("NPC_MIND_TEST_KEY", "")
		_, err := NewFromConfig(cfg, log)
		var cfgErr *services.ConfigurationError
		assert.True(t, errors.As(err, &cfgErr))
	})

	t.Run("filtered rating", func(t *testing.T) {
		t.Setenv("NPC_MIND_TEST_KEY", "secret")
		d, err := NewFromConfig(cfg, log)
		require.NoError(t, err)
		defer d.Close()
		assert.Equal(t, "test-model", d.ModelName())
		assert.NotNil(t, d.filter)
	})

	t.Run("anthropic provider", func(t *testing.T) {
		t.Setenv("NPC_MIND_TEST_KEY", "secret")
		claude := *cfg
		claude.DialogueProvider = config.ProviderAnthropic
		claude.DialogueModel = "claude-3-5-haiku-latest"
		d, err := NewFromConfig(&claude, log)
		require.NoError(t, err)
		defer d.Close()
		assert.IsType(t, &services.AnthropicService{}, d.service)
		assert.Equal(t, "claude-3-5-haiku-latest", d.ModelName())
	})

	t.Run("unfiltered rating", func(t *testing.T) {
		t.Setenv("NPC_MIND_TEST_KEY", "secret")
		adult := *cfg
		adult.ContentRating = "R"
		d, err := NewFromConfig(&adult, log)
		require.NoError(t, err)
		defer d.Close()
		assert.Nil(t, d.filter)
	})
}
