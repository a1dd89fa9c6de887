package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jwebster45206/npc-mind/internal/dialogue"
	"github.com/jwebster45206/npc-mind/internal/logger"
	"github.com/jwebster45206/npc-mind/pkg/npc"
	"github.com/jwebster45206/npc-mind/pkg/prompts"
	"github.com/jwebster45206/npc-mind/pkg/queue"
	"github.com/jwebster45206/npc-mind/pkg/storage"
)

// LastDialogueKey is the general-memory key holding the NPC's latest line.
const LastDialogueKey = "last_dialogue"

// ErrAgentNotFound means the request names an agent that is not stored,
// or that was deleted while its dialogue was being generated.
var ErrAgentNotFound = errors.New("agent not found")

// DialogueProcessor turns a queued request into generated lines and records
// the outcome on the agent.
type DialogueProcessor struct {
	storage       storage.Storage
	dispatcher    *dialogue.Dispatcher
	contentRating string
	logger        *slog.Logger
	locks         *storage.AgentLocks // nil when no other writer shares this process
}

// NewDialogueProcessor creates a new dialogue processor
func NewDialogueProcessor(store storage.Storage, dispatcher *dialogue.Dispatcher, contentRating string, log *slog.Logger) *DialogueProcessor {
	return &DialogueProcessor{
		storage:       store,
		dispatcher:    dispatcher,
		contentRating: contentRating,
		logger:        log,
	}
}

// WithLocks makes the final reload and save take the per-agent lock the API
// handlers use, so a delete cannot be undone by a late save.
func (p *DialogueProcessor) WithLocks(locks *storage.AgentLocks) *DialogueProcessor {
	p.locks = locks
	return p
}

// Process generates dialogue for req. On success the NPC's general memory
// gets the new line; on failure the stored agent is left untouched.
func (p *DialogueProcessor) Process(ctx context.Context, req *queue.DialogueRequest) (*dialogue.Result, error) {
	agent, err := p.loadAgent(ctx, req)
	if err != nil {
		return nil, err
	}
	log := logger.WithAgent(logger.WithRequestID(p.logger, req.RequestID), req.AgentID.String(), agent.Name)

	messages := req.Messages
	if len(messages) == 0 {
		messages, err = prompts.New().
			WithAgent(agent).
			WithInstruction(req.Instruction).
			WithPlayerLine(req.PlayerLine).
			WithContentRating(p.contentRating).
			Build()
		if err != nil {
			return nil, fmt.Errorf("failed to build prompt: %w", err)
		}
	}

	var res dialogue.Result
	select {
	case res = <-p.dispatcher.RequestWithID(ctx, req.RequestID, req.AgentID, messages):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if res.Err != nil {
		log.Debug("Dialogue generation failed", "error", res.Err)
		return &res, res.Err
	}

	if p.locks != nil {
		defer p.locks.Lock(req.AgentID)()
	}
	// Reload so edits made while generating are kept.
	agent, err = p.loadAgent(ctx, req)
	if err != nil {
		return &res, err
	}
	agent.Decisions.RecordMemory(LastDialogueKey, res.Lines.NPCResponse)
	agent.Touch()

	if err := p.storage.SaveAgent(ctx, agent.Snapshot()); err != nil {
		return &res, fmt.Errorf("failed to save agent: %w", err)
	}
	log.Debug("Recorded dialogue", "structured", res.Structured)
	return &res, nil
}

func (p *DialogueProcessor) loadAgent(ctx context.Context, req *queue.DialogueRequest) (*npc.Agent, error) {
	snap, err := p.storage.LoadAgent(ctx, req.AgentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load agent: %w", err)
	}
	if snap == nil {
		return nil, fmt.Errorf("%w: %s", ErrAgentNotFound, req.AgentID)
	}
	agent, err := npc.FromSnapshot(snap)
	if err != nil {
		return nil, fmt.Errorf("failed to restore agent: %w", err)
	}
	return agent, nil
}
