package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jwebster45206/npc-mind/pkg/queue"
)

const requestsKey = "dialogue-requests"

// DialogueQueue is the FIFO of dialogue requests shared by API and workers.
type DialogueQueue struct {
	client *Client
}

func NewDialogueQueue(client *Client) *DialogueQueue {
	return &DialogueQueue{
		client: client,
	}
}

// Enqueue appends a request to the tail of the queue
func (q *DialogueQueue) Enqueue(ctx context.Context, req *queue.DialogueRequest) error {
	if err := req.Validate(); err != nil {
		return fmt.Errorf("invalid request: %w", err)
	}
	if req.EnqueuedAt.IsZero() {
		req.EnqueuedAt = time.Now()
	}

	data, err := req.ToJSON()
	if err != nil {
		return fmt.Errorf("failed to serialize request: %w", err)
	}

	if err := q.client.rdb.RPush(ctx, requestsKey, data).Err(); err != nil {
		return fmt.Errorf("failed to enqueue request: %w", err)
	}

	q.client.logger.Debug("Enqueued dialogue request",
		"request_id", req.RequestID,
		"agent_id", req.AgentID)
	return nil
}

// Dequeue removes and returns the head of the queue.
// Returns nil if queue is empty
func (q *DialogueQueue) Dequeue(ctx context.Context) (*queue.DialogueRequest, error) {
	result, err := q.client.rdb.LPop(ctx, requestsKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to dequeue request: %w", err)
	}

	req, err := queue.FromJSON([]byte(result))
	if err != nil {
		return nil, fmt.Errorf("failed to parse request: %w", err)
	}
	return req, nil
}

// BlockingDequeue waits up to timeout for a request. It returns nil, nil when
// the timeout passes with the queue still empty. A zero timeout waits forever.
func (q *DialogueQueue) BlockingDequeue(ctx context.Context, timeout time.Duration) (*queue.DialogueRequest, error) {
	result, err := q.client.rdb.BLPop(ctx, timeout, requestsKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to dequeue request: %w", err)
	}

	// BLPop returns [key, value]
	if len(result) != 2 {
		return nil, fmt.Errorf("unexpected BLPop result: %v", result)
	}

	req, err := queue.FromJSON([]byte(result[1]))
	if err != nil {
		return nil, fmt.Errorf("failed to parse request: %w", err)
	}
	return req, nil
}

// Peek returns up to limit queued requests without removing them; limit <= 0 returns all.
func (q *DialogueQueue) Peek(ctx context.Context, limit int) ([]*queue.DialogueRequest, error) {
	end := int64(limit - 1)
	if limit <= 0 {
		end = -1
	}
	raw, err := q.client.rdb.LRange(ctx, requestsKey, 0, end).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to peek requests: %w", err)
	}

	reqs := make([]*queue.DialogueRequest, 0, len(raw))
	for _, r := range raw {
		req, err := queue.FromJSON([]byte(r))
		if err != nil {
			q.client.logger.Warn("Skipping unreadable queued request", "error", err)
			continue
		}
		reqs = append(reqs, req)
	}
	return reqs, nil
}

// Depth returns the number of queued requests
func (q *DialogueQueue) Depth(ctx context.Context) (int, error) {
	count, err := q.client.rdb.LLen(ctx, requestsKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get queue depth: %w", err)
	}
	return int(count), nil
}
