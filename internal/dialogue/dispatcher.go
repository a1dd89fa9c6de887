// Package dialogue runs dialogue generation off the decision path. Each
// request gets its own goroutine and a buffered result channel, so callers
// never block on the text-generation service.
package dialogue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/jwebster45206/npc-mind/internal/services"
	"github.com/jwebster45206/npc-mind/pkg/chat"
	"github.com/jwebster45206/npc-mind/pkg/textfilter"
)

var (
	// ErrClosed is delivered for requests made after Close.
	ErrClosed = errors.New("dispatcher is closed")
	// ErrEmptyResponse means the service returned no choices.
	ErrEmptyResponse = errors.New("response has no choices")
)

// Result is the outcome of one dialogue request.
type Result struct {
	RequestID  string
	AgentID    uuid.UUID
	Lines      chat.DialogueLines
	Structured bool
	Response   *chat.CompletionResponse
	Err        error
}

// Dispatcher tracks in-flight dialogue requests per agent.
type Dispatcher struct {
	service services.DialogueService
	filter  *textfilter.Filter
	logger  *slog.Logger

	mu      sync.Mutex
	pending map[uuid.UUID]map[string]context.CancelFunc
	closed  bool
	wg      sync.WaitGroup
}

// NewDispatcher creates a dispatcher. A nil filter leaves lines unfiltered.
func NewDispatcher(service services.DialogueService, filter *textfilter.Filter, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		service: service,
		filter:  filter,
		logger:  logger,
		pending: make(map[uuid.UUID]map[string]context.CancelFunc),
	}
}

// Request starts generation and returns immediately. The channel receives
// exactly one Result and is never closed.
func (d *Dispatcher) Request(ctx context.Context, agentID uuid.UUID, messages []chat.ChatMessage) <-chan Result {
	return d.RequestWithID(ctx, uuid.NewString(), agentID, messages)
}

// RequestWithID is Request with a caller-chosen request id.
func (d *Dispatcher) RequestWithID(ctx context.Context, requestID string, agentID uuid.UUID, messages []chat.ChatMessage) <-chan Result {
	out := make(chan Result, 1)

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		out <- Result{RequestID: requestID, AgentID: agentID, Err: ErrClosed}
		return out
	}
	reqCtx, cancel := context.WithCancel(ctx)
	if d.pending[agentID] == nil {
		d.pending[agentID] = make(map[string]context.CancelFunc)
	}
	d.pending[agentID][requestID] = cancel
	d.wg.Add(1)
	d.mu.Unlock()

	go func() {
		defer d.wg.Done()

		res := d.generate(reqCtx, requestID, agentID, messages)
		d.forget(agentID, requestID)
		cancel()
		out <- res
	}()

	return out
}

func (d *Dispatcher) generate(ctx context.Context, requestID string, agentID uuid.UUID, messages []chat.ChatMessage) Result {
	res := Result{RequestID: requestID, AgentID: agentID}

	resp, err := d.service.Generate(ctx, messages)
	if ctxErr := ctx.Err(); ctxErr != nil {
		res.Err = ctxErr
		d.logger.Debug("Dialogue request cancelled", "request_id", requestID, "agent_id", agentID)
		return res
	}
	if err != nil {
		res.Err = fmt.Errorf("failed to generate dialogue: %w", err)
		d.logger.Error("Dialogue generation failed", "request_id", requestID, "agent_id", agentID, "error", err)
		return res
	}

	text, ok := resp.Text()
	if !ok {
		res.Response = resp
		res.Err = ErrEmptyResponse
		return res
	}

	lines, structured := chat.ParseDialogueLines(text)
	if d.filter != nil {
		lines = d.filter.ApplyLines(lines)
	}
	if !structured {
		d.logger.Warn("Dialogue reply was not structured", "request_id", requestID, "agent_id", agentID)
	}

	res.Lines = lines
	res.Structured = structured
	res.Response = resp
	return res
}

func (d *Dispatcher) forget(agentID uuid.UUID, requestID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	reqs := d.pending[agentID]
	delete(reqs, requestID)
	if len(reqs) == 0 {
		delete(d.pending, agentID)
	}
}

// ModelName reports the model behind the dialogue service.
func (d *Dispatcher) ModelName() string {
	return d.service.ModelName()
}

// Cancel aborts every pending request of the agent. Their results carry
// context.Canceled. It returns how many requests were cancelled.
func (d *Dispatcher) Cancel(agentID uuid.UUID) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	reqs := d.pending[agentID]
	for _, cancel := range reqs {
		cancel()
	}
	return len(reqs)
}

// Pending returns the number of in-flight requests for the agent.
func (d *Dispatcher) Pending(agentID uuid.UUID) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending[agentID])
}

// Close cancels all pending requests and waits for their goroutines.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	d.closed = true
	for _, reqs := range d.pending {
		for _, cancel := range reqs {
			cancel()
		}
	}
	d.mu.Unlock()

	d.wg.Wait()
}
