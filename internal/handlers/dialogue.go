package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/jwebster45206/npc-mind/internal/dialogue"
	"github.com/jwebster45206/npc-mind/internal/logger"
	"github.com/jwebster45206/npc-mind/internal/worker"
	"github.com/jwebster45206/npc-mind/pkg/chat"
	"github.com/jwebster45206/npc-mind/pkg/queue"
	"github.com/jwebster45206/npc-mind/pkg/storage"
)

const syncDialogueTimeout = 60 * time.Second

// Enqueuer accepts dialogue requests for a worker to process.
type Enqueuer interface {
	Enqueue(ctx context.Context, req *queue.DialogueRequest) error
}

// QueuedPublisher announces accepted requests.
type QueuedPublisher interface {
	PublishDialogueQueued(ctx context.Context, agentID uuid.UUID, requestID string) error
}

// DialogueRunner generates dialogue in-process.
type DialogueRunner interface {
	Process(ctx context.Context, req *queue.DialogueRequest) (*dialogue.Result, error)
}

// DialogueHandler accepts NPC dialogue requests. With a queue it answers 202
// and the result arrives as events; without one it generates inline.
type DialogueHandler struct {
	storage   storage.Storage
	queue     Enqueuer
	publisher QueuedPublisher
	runner    DialogueRunner
	logger    *slog.Logger
}

// NewDialogueHandler creates the handler. Any of q, publisher and runner may be nil.
func NewDialogueHandler(storage storage.Storage, q Enqueuer, publisher QueuedPublisher, runner DialogueRunner, logger *slog.Logger) *DialogueHandler {
	return &DialogueHandler{
		storage:   storage,
		queue:     q,
		publisher: publisher,
		runner:    runner,
		logger:    logger,
	}
}

type dialogueRequest struct {
	Instruction string `json:"instruction,omitempty"`
	PlayerLine  string `json:"player_line,omitempty"`
}

// QueuedResponse is returned when a request is accepted for async processing.
type QueuedResponse struct {
	RequestID string `json:"request_id"`
	Status    string `json:"status"`
}

// DialogueResponse is returned by the inline path.
type DialogueResponse struct {
	RequestID  string             `json:"request_id"`
	Lines      chat.DialogueLines `json:"lines"`
	Structured bool               `json:"structured"`
	Model      string             `json:"model,omitempty"`
}

// ServeHTTP handles POST /v1/npcs/{id}/dialogue
func (h *DialogueHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	agentID, err := agentIDParam(r)
	if err != nil {
		writeError(w, h.logger, http.StatusBadRequest, err.Error())
		return
	}

	var body dialogueRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, err.Error())
		return
	}

	snap, err := h.storage.LoadAgent(r.Context(), agentID)
	if err != nil {
		h.logger.Error("Failed to load NPC", "agent_id", agentID, "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to load NPC")
		return
	}
	if snap == nil {
		writeError(w, h.logger, http.StatusNotFound, "NPC not found")
		return
	}

	req := &queue.DialogueRequest{
		RequestID:   uuid.New().String(),
		AgentID:     agentID,
		Instruction: body.Instruction,
		PlayerLine:  body.PlayerLine,
	}
	log := logger.WithAgent(logger.WithRequestID(h.logger, req.RequestID), agentID.String(), snap.Name)

	switch {
	case h.queue != nil:
		h.enqueue(w, r, req, log)
	case h.runner != nil:
		h.runInline(w, r, req, log)
	default:
		writeError(w, h.logger, http.StatusServiceUnavailable, "Dialogue generation is not configured")
	}
}

func (h *DialogueHandler) enqueue(w http.ResponseWriter, r *http.Request, req *queue.DialogueRequest, log *slog.Logger) {
	if err := h.queue.Enqueue(r.Context(), req); err != nil {
		log.Error("Failed to enqueue dialogue request", "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to queue dialogue request")
		return
	}
	if h.publisher != nil {
		if err := h.publisher.PublishDialogueQueued(r.Context(), req.AgentID, req.RequestID); err != nil {
			log.Warn("Failed to publish queued event", "error", err)
		}
	}

	log.Info("Dialogue request queued")
	writeJSON(w, h.logger, http.StatusAccepted, QueuedResponse{
		RequestID: req.RequestID,
		Status:    "queued",
	})
}

func (h *DialogueHandler) runInline(w http.ResponseWriter, r *http.Request, req *queue.DialogueRequest, log *slog.Logger) {
	ctx, cancel := context.WithTimeout(r.Context(), syncDialogueTimeout)
	defer cancel()

	res, err := h.runner.Process(ctx, req)
	if err != nil {
		switch {
		case errors.Is(err, worker.ErrAgentNotFound):
			writeError(w, h.logger, http.StatusNotFound, "NPC not found")
		case errors.Is(err, context.Canceled):
			writeError(w, h.logger, http.StatusConflict, "Dialogue request was cancelled")
		case errors.Is(err, context.DeadlineExceeded):
			writeError(w, h.logger, http.StatusGatewayTimeout, "Dialogue generation timed out")
		default:
			log.Error("Dialogue generation failed", "error", err)
			writeError(w, h.logger, http.StatusBadGateway, "Dialogue generation failed")
		}
		return
	}

	resp := DialogueResponse{
		RequestID:  req.RequestID,
		Lines:      res.Lines,
		Structured: res.Structured,
	}
	if res.Response != nil {
		resp.Model = res.Response.Model
	}
	log.Info("Dialogue generated inline", "structured", res.Structured)
	writeJSON(w, h.logger, http.StatusOK, resp)
}
