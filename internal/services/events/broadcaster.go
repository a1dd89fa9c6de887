package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/jwebster45206/npc-mind/pkg/chat"
)

// EventType represents the type of event being broadcast
type EventType string

const (
	EventTypeDialogueQueued     EventType = "dialogue.queued"
	EventTypeDialogueProcessing EventType = "dialogue.processing"
	EventTypeDialogueCompleted  EventType = "dialogue.completed"
	EventTypeDialogueFailed     EventType = "dialogue.failed"
	EventTypeAgentDeleted       EventType = "npc.deleted"
)

const channelPrefix = "npc-events:"

// Event represents a generic event structure
type Event struct {
	Type      EventType      `json:"type"`
	RequestID string         `json:"request_id,omitempty"`
	AgentID   string         `json:"agent_id"`
	Data      map[string]any `json:"data,omitempty"`
}

// Channel returns the Pub/Sub channel for an agent's events.
func Channel(agentID uuid.UUID) string {
	return channelPrefix + agentID.String()
}

// Broadcaster publishes events to Redis Pub/Sub for SSE distribution
type Broadcaster struct {
	redisClient *redis.Client
	logger      *slog.Logger
}

// NewBroadcaster creates a new event broadcaster
func NewBroadcaster(redisClient *redis.Client, logger *slog.Logger) *Broadcaster {
	return &Broadcaster{
		redisClient: redisClient,
		logger:      logger,
	}
}

// PublishDialogueQueued publishes a dialogue.queued event
func (b *Broadcaster) PublishDialogueQueued(ctx context.Context, agentID uuid.UUID, requestID string) error {
	return b.publish(ctx, agentID, Event{
		Type:      EventTypeDialogueQueued,
		RequestID: requestID,
		Data:      map[string]any{"status": "queued"},
	})
}

// PublishDialogueProcessing publishes a dialogue.processing event
func (b *Broadcaster) PublishDialogueProcessing(ctx context.Context, agentID uuid.UUID, requestID, model string) error {
	return b.publish(ctx, agentID, Event{
		Type:      EventTypeDialogueProcessing,
		RequestID: requestID,
		Data:      map[string]any{"status": "processing", "model": model},
	})
}

// PublishDialogueCompleted publishes a dialogue.completed event with the generated lines
func (b *Broadcaster) PublishDialogueCompleted(ctx context.Context, agentID uuid.UUID, requestID string, lines chat.DialogueLines, usage chat.Usage) error {
	return b.publish(ctx, agentID, Event{
		Type:      EventTypeDialogueCompleted,
		RequestID: requestID,
		Data: map[string]any{
			"status": "completed",
			"lines":  lines,
			"usage":  usage,
		},
	})
}

// PublishDialogueFailed publishes a dialogue.failed event
func (b *Broadcaster) PublishDialogueFailed(ctx context.Context, agentID uuid.UUID, requestID, errorMsg string) error {
	return b.publish(ctx, agentID, Event{
		Type:      EventTypeDialogueFailed,
		RequestID: requestID,
		Data:      map[string]any{"status": "failed", "error": errorMsg},
	})
}

// PublishAgentDeleted tells workers to drop pending work for the agent.
func (b *Broadcaster) PublishAgentDeleted(ctx context.Context, agentID uuid.UUID) error {
	return b.publish(ctx, agentID, Event{Type: EventTypeAgentDeleted})
}

// Subscribe listens to one agent's events. The caller closes the PubSub.
func (b *Broadcaster) Subscribe(ctx context.Context, agentID uuid.UUID) *redis.PubSub {
	return b.redisClient.Subscribe(ctx, Channel(agentID))
}

// SubscribeAll listens to every agent's events. The caller closes the PubSub.
func (b *Broadcaster) SubscribeAll(ctx context.Context) *redis.PubSub {
	return b.redisClient.PSubscribe(ctx, channelPrefix+"*")
}

// Decode parses a Pub/Sub payload into an Event.
func Decode(payload string) (Event, error) {
	var e Event
	if err := json.Unmarshal([]byte(payload), &e); err != nil {
		return Event{}, fmt.Errorf("failed to unmarshal event: %w", err)
	}
	return e, nil
}

// AgentIDFromChannel extracts the agent id from an npc-events channel name.
func AgentIDFromChannel(channel string) (uuid.UUID, bool) {
	raw, ok := strings.CutPrefix(channel, channelPrefix)
	if !ok {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

func (b *Broadcaster) publish(ctx context.Context, agentID uuid.UUID, event Event) error {
	event.AgentID = agentID.String()
	channel := Channel(agentID)

	data, err := json.Marshal(event)
	if err != nil {
		b.logger.Error("Failed to marshal event", "error", err, "event_type", event.Type)
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := b.redisClient.Publish(ctx, channel, data).Err(); err != nil {
		b.logger.Error("Failed to publish event", "error", err, "channel", channel)
		return fmt.Errorf("failed to publish event: %w", err)
	}

	b.logger.Debug("Event published",
		"channel", channel,
		"event_type", event.Type,
		"request_id", event.RequestID,
	)

	return nil
}
