package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/jwebster45206/npc-mind/internal/dialogue"
	"github.com/jwebster45206/npc-mind/internal/logger"
	"github.com/jwebster45206/npc-mind/internal/services/events"
	"github.com/jwebster45206/npc-mind/internal/services/queue"
	queuePkg "github.com/jwebster45206/npc-mind/pkg/queue"
)

const (
	workerTimeout  = 5 * time.Second
	lockTTL        = 2 * time.Minute
	requestTimeout = 90 * time.Second
)

var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

// Worker processes dialogue requests from the queue
type Worker struct {
	id          string
	queue       *queue.DialogueQueue
	processor   *DialogueProcessor
	dispatcher  *dialogue.Dispatcher
	broadcaster *events.Broadcaster
	redisClient *redis.Client
	log         *slog.Logger
	ctx         context.Context
	cancel      context.CancelFunc
}

// New creates a new worker instance
func New(q *queue.DialogueQueue, processor *DialogueProcessor, redisClient *redis.Client, log *slog.Logger, workerID string) *Worker {
	ctx, cancel := context.WithCancel(context.Background())

	if workerID == "" {
		workerID = fmt.Sprintf("worker-%s", uuid.New().String()[:8])
	}

	return &Worker{
		id:          workerID,
		queue:       q,
		processor:   processor,
		dispatcher:  processor.dispatcher,
		broadcaster: events.NewBroadcaster(redisClient, log),
		redisClient: redisClient,
		log:         log.With("worker_id", workerID),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// ID returns the worker's lock owner id
func (w *Worker) ID() string {
	return w.id
}

// Start begins processing requests from the queue
func (w *Worker) Start() error {
	w.log.Info("Worker starting")

	go w.watchDeletions()

	for {
		select {
		case <-w.ctx.Done():
			w.log.Info("Worker shutting down")
			return nil
		default:
			if err := w.processNextRequest(); err != nil {
				w.log.Error("Error processing request", "error", err)
				// Continue processing even on error
				select {
				case <-w.ctx.Done():
				case <-time.After(time.Second):
				}
			}
		}
	}
}

// Stop gracefully shuts down the worker
func (w *Worker) Stop() {
	w.log.Info("Worker stop requested")
	w.cancel()
}

// watchDeletions cancels in-flight generation for agents deleted through the API.
func (w *Worker) watchDeletions() {
	ps := w.broadcaster.SubscribeAll(w.ctx)
	defer func() {
		if err := ps.Close(); err != nil {
			w.log.Error("Failed to close pubsub", "error", err)
		}
	}()

	msgs := ps.Channel()
	for {
		select {
		case <-w.ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			w.handleEvent(msg)
		}
	}
}

func (w *Worker) handleEvent(msg *redis.Message) {
	event, err := events.Decode(msg.Payload)
	if err != nil || event.Type != events.EventTypeAgentDeleted {
		return
	}
	agentID, ok := events.AgentIDFromChannel(msg.Channel)
	if !ok {
		return
	}
	if n := w.dispatcher.Cancel(agentID); n > 0 {
		w.log.Info("Cancelled dialogue for deleted agent", "agent_id", agentID, "count", n)
	}
}

// processNextRequest pulls the next request from the queue and processes it
func (w *Worker) processNextRequest() error {
	req, err := w.queue.BlockingDequeue(w.ctx, workerTimeout)
	if err != nil {
		if w.ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("failed to dequeue request: %w", err)
	}
	if req == nil {
		// Queue is empty or timeout occurred - this is normal
		return nil
	}

	log := logger.WithRequestID(w.log, req.RequestID).With("agent_id", req.AgentID)
	log.Info("Received request from queue")

	locked, err := w.acquireAgentLock(req.AgentID)
	if err != nil {
		return fmt.Errorf("failed to acquire agent lock: %w", err)
	}
	if !locked {
		// Another worker is speaking for this NPC; keep order by re-queueing
		log.Info("Agent already locked, re-queueing request")
		if err := w.queue.Enqueue(w.ctx, req); err != nil {
			return fmt.Errorf("failed to re-queue request: %w", err)
		}
		return nil
	}

	defer w.releaseAgentLock(req.AgentID)
	return w.processRequest(req, log)
}

func lockKey(agentID uuid.UUID) string {
	return "npc-lock:" + agentID.String()
}

// acquireAgentLock returns true if the lock was acquired, false if already held
func (w *Worker) acquireAgentLock(agentID uuid.UUID) (bool, error) {
	return w.redisClient.SetNX(w.ctx, lockKey(agentID), w.id, lockTTL).Result()
}

// releaseAgentLock deletes the lock only if this worker still owns it
func (w *Worker) releaseAgentLock(agentID uuid.UUID) {
	// the worker context may already be cancelled during shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := releaseScript.Run(ctx, w.redisClient, []string{lockKey(agentID)}, w.id).Err(); err != nil {
		w.log.Error("Failed to release agent lock", "error", err, "agent_id", agentID)
	}
}

func (w *Worker) processRequest(req *queuePkg.DialogueRequest, log *slog.Logger) error {
	start := time.Now()

	if err := w.broadcaster.PublishDialogueProcessing(w.ctx, req.AgentID, req.RequestID, w.dispatcher.ModelName()); err != nil {
		log.Error("Failed to publish processing event", "error", err)
	}

	ctx, cancel := context.WithTimeout(w.ctx, requestTimeout)
	defer cancel()

	res, err := w.processor.Process(ctx, req)
	if err != nil {
		if errors.Is(err, context.Canceled) && w.ctx.Err() == nil {
			log.Info("Dialogue request cancelled")
		}
		if pubErr := w.broadcaster.PublishDialogueFailed(w.ctx, req.AgentID, req.RequestID, err.Error()); pubErr != nil {
			log.Error("Failed to publish failure event", "error", pubErr)
		}
		return fmt.Errorf("failed to process dialogue request %s: %w", req.RequestID, err)
	}

	log.Info("Dialogue request processed successfully",
		"structured", res.Structured,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if err := w.broadcaster.PublishDialogueCompleted(w.ctx, req.AgentID, req.RequestID, res.Lines, res.Response.Usage); err != nil {
		log.Error("Failed to publish completion event", "error", err)
	}
	return nil
}
