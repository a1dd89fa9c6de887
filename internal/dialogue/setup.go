package dialogue

import (
	"log/slog"

	"github.com/jwebster45206/npc-mind/internal/config"
	"github.com/jwebster45206/npc-mind/internal/services"
	"github.com/jwebster45206/npc-mind/pkg/textfilter"
)

// NewFromConfig builds a dispatcher over the configured provider.
// Lines are filtered when the content rating calls for it.
func NewFromConfig(cfg *config.Config, logger *slog.Logger) (*Dispatcher, error) {
	var svc services.DialogueService
	var err error
	switch cfg.DialogueProvider {
	case config.ProviderAnthropic:
		svc, err = services.NewAnthropicService(cfg.DialogueBaseURL, cfg.DialogueModel, cfg.DialogueAPIKeyEnv, logger)
	default:
		svc, err = services.NewCompletionService(cfg.DialogueBaseURL, cfg.DialogueModel, cfg.DialogueAPIKeyEnv, logger)
	}
	if err != nil {
		return nil, err
	}

	var filter *textfilter.Filter
	if textfilter.RequiresFiltering(cfg.ContentRating) {
		filter = textfilter.New()
	}
	return NewDispatcher(svc, filter, logger), nil
}
