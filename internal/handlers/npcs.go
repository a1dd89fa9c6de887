package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/jwebster45206/npc-mind/pkg/decision"
	"github.com/jwebster45206/npc-mind/pkg/emotion"
	"github.com/jwebster45206/npc-mind/pkg/knowledge"
	"github.com/jwebster45206/npc-mind/pkg/npc"
	"github.com/jwebster45206/npc-mind/pkg/storage"
)

var errNotFound = errors.New("not found")

// AgentCanceller aborts in-flight dialogue for an agent.
type AgentCanceller interface {
	Cancel(agentID uuid.UUID) int
}

// DeletionPublisher announces agent deletion to other processes.
type DeletionPublisher interface {
	PublishAgentDeleted(ctx context.Context, agentID uuid.UUID) error
}

// NPCHandler serves agent lifecycle and cognition routes. Each mutation is a
// load, change, save cycle serialized per agent.
type NPCHandler struct {
	storage   storage.Storage
	canceller AgentCanceller
	deletions DeletionPublisher
	logger    *slog.Logger
	locks     *storage.AgentLocks
}

// NewNPCHandler creates the handler. canceller and deletions may be nil.
func NewNPCHandler(store storage.Storage, canceller AgentCanceller, deletions DeletionPublisher, logger *slog.Logger) *NPCHandler {
	return &NPCHandler{
		storage:   store,
		canceller: canceller,
		deletions: deletions,
		logger:    logger,
		locks:     storage.NewAgentLocks(),
	}
}

// WithLocks shares per-agent locks with other writers in this process,
// such as the inline dialogue processor.
func (h *NPCHandler) WithLocks(locks *storage.AgentLocks) *NPCHandler {
	h.locks = locks
	return h
}

// Routes mounts the handler under /v1/npcs. perAgent adds routes below /{id}.
func (h *NPCHandler) Routes(r chi.Router, perAgent ...func(chi.Router)) {
	r.Post("/", h.create)
	r.Get("/", h.list)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.get)
		r.Delete("/", h.delete)

		r.Put("/state", h.updateState)
		r.Get("/action", h.chooseAction)

		r.Put("/emotion", h.setEmotion)
		r.Get("/emotion/action", h.emotionAction)

		r.Put("/memory/{key}", h.setMemory)
		r.Get("/memory/{key}", h.getMemory)
		r.Put("/emotional-memory/{trigger}", h.setEmotionalMemory)
		r.Get("/emotional-memory/{trigger}", h.getEmotionalMemory)

		r.Post("/entities", h.addEntity)
		r.Get("/entities/{entityID}", h.getEntity)
		r.Post("/relationships", h.addRelationship)
		r.Get("/relationships/{entityID}", h.getRelationships)
		r.Get("/neighbors/{entityID}", h.getNeighbors)

		for _, fn := range perAgent {
			fn(r)
		}
	})
}

// load fetches and restores the agent named in the URL, writing the error
// response itself when it returns nil.
func (h *NPCHandler) load(w http.ResponseWriter, r *http.Request) *npc.Agent {
	id, err := agentIDParam(r)
	if err != nil {
		writeError(w, h.logger, http.StatusBadRequest, err.Error())
		return nil
	}

	snap, err := h.storage.LoadAgent(r.Context(), id)
	if err != nil {
		h.logger.Error("Failed to load NPC", "agent_id", id, "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to load NPC")
		return nil
	}
	if snap == nil {
		writeError(w, h.logger, http.StatusNotFound, "NPC not found")
		return nil
	}

	agent, err := npc.FromSnapshot(snap)
	if err != nil {
		h.logger.Error("Stored NPC is corrupt", "agent_id", id, "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to restore NPC")
		return nil
	}
	return agent
}

// mutate runs fn on the stored agent and saves the result. fn returns the
// response body; an error from fn is a 400 and nothing is saved.
func (h *NPCHandler) mutate(w http.ResponseWriter, r *http.Request, status int, fn func(a *npc.Agent) (any, error)) {
	id, err := agentIDParam(r)
	if err != nil {
		writeError(w, h.logger, http.StatusBadRequest, err.Error())
		return
	}
	defer h.locks.Lock(id)()

	agent := h.load(w, r)
	if agent == nil {
		return
	}

	body, err := fn(agent)
	if err != nil {
		writeError(w, h.logger, http.StatusBadRequest, err.Error())
		return
	}

	agent.Touch()
	if err := h.storage.SaveAgent(r.Context(), agent.Snapshot()); err != nil {
		h.logger.Error("Failed to save NPC", "agent_id", agent.ID, "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to save NPC")
		return
	}
	writeJSON(w, h.logger, status, body)
}

// read runs fn on the stored agent without saving. errNotFound from fn is a 404.
func (h *NPCHandler) read(w http.ResponseWriter, r *http.Request, fn func(a *npc.Agent) (any, error)) {
	agent := h.load(w, r)
	if agent == nil {
		return
	}
	body, err := fn(agent)
	if err != nil {
		if errors.Is(err, errNotFound) {
			writeError(w, h.logger, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, h.logger, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, h.logger, http.StatusOK, body)
}

// POST /v1/npcs
func (h *NPCHandler) create(w http.ResponseWriter, r *http.Request) {
	var def npc.Definition
	if err := decodeJSON(r, &def); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, err.Error())
		return
	}

	agent, err := def.Build()
	if err != nil {
		writeError(w, h.logger, http.StatusBadRequest, err.Error())
		return
	}

	snap := agent.Snapshot()
	if err := h.storage.SaveAgent(r.Context(), snap); err != nil {
		h.logger.Error("Failed to save NPC", "agent_id", agent.ID, "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to save NPC")
		return
	}

	h.logger.Info("NPC created", "agent_id", agent.ID, "agent_name", agent.Name)
	writeJSON(w, h.logger, http.StatusCreated, snap)
}

// GET /v1/npcs
func (h *NPCHandler) list(w http.ResponseWriter, r *http.Request) {
	list, err := h.storage.ListAgents(r.Context())
	if err != nil {
		h.logger.Error("Failed to list NPCs", "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to list NPCs")
		return
	}
	writeJSON(w, h.logger, http.StatusOK, map[string]any{"npcs": list})
}

// GET /v1/npcs/{id}
func (h *NPCHandler) get(w http.ResponseWriter, r *http.Request) {
	h.read(w, r, func(a *npc.Agent) (any, error) {
		return a.Snapshot(), nil
	})
}

// DELETE /v1/npcs/{id}
func (h *NPCHandler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := agentIDParam(r)
	if err != nil {
		writeError(w, h.logger, http.StatusBadRequest, err.Error())
		return
	}
	// waits out any in-flight mutation so it cannot save the agent back
	defer h.locks.Lock(id)()

	snap, err := h.storage.LoadAgent(r.Context(), id)
	if err != nil {
		h.logger.Error("Failed to load NPC", "agent_id", id, "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to load NPC")
		return
	}
	if snap == nil {
		writeError(w, h.logger, http.StatusNotFound, "NPC not found")
		return
	}

	if err := h.storage.DeleteAgent(r.Context(), id); err != nil {
		h.logger.Error("Failed to delete NPC", "agent_id", id, "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to delete NPC")
		return
	}

	// pending dialogue belongs to the agent and dies with it
	if h.canceller != nil {
		if n := h.canceller.Cancel(id); n > 0 {
			h.logger.Info("Cancelled pending dialogue", "agent_id", id, "count", n)
		}
	}
	if h.deletions != nil {
		if err := h.deletions.PublishAgentDeleted(r.Context(), id); err != nil {
			h.logger.Error("Failed to publish deletion", "agent_id", id, "error", err)
		}
	}

	h.logger.Info("NPC deleted", "agent_id", id)
	w.WriteHeader(http.StatusNoContent)
}

type stateRequest struct {
	State *string `json:"state"`
}

// PUT /v1/npcs/{id}/state
func (h *NPCHandler) updateState(w http.ResponseWriter, r *http.Request) {
	var req stateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, err.Error())
		return
	}
	if req.State == nil {
		writeError(w, h.logger, http.StatusBadRequest, "state is required")
		return
	}

	h.mutate(w, r, http.StatusOK, func(a *npc.Agent) (any, error) {
		a.Decisions.UpdateState(*req.State)
		return map[string]any{"state": a.Decisions.State()}, nil
	})
}

// ActionResponse is the decision plus the text the engine reports for it.
type ActionResponse struct {
	decision.Decision
	Result string `json:"result"`
}

// GET /v1/npcs/{id}/action
func (h *NPCHandler) chooseAction(w http.ResponseWriter, r *http.Request) {
	h.read(w, r, func(a *npc.Agent) (any, error) {
		d := a.Decisions.Decide()
		return ActionResponse{Decision: d, Result: d.String()}, nil
	})
}

type emotionRequest struct {
	Emotion string `json:"emotion"`
}

// EmotionResponse pairs an emotion with the action it drives.
type EmotionResponse struct {
	Emotion emotion.Emotion `json:"emotion"`
	Action  string          `json:"action"`
}

func parseEmotion(raw string) (emotion.Emotion, error) {
	e, ok := emotion.Parse(raw)
	if !ok {
		return emotion.Neutral, fmt.Errorf("unknown emotion %q", raw)
	}
	return e, nil
}

// PUT /v1/npcs/{id}/emotion
func (h *NPCHandler) setEmotion(w http.ResponseWriter, r *http.Request) {
	var req emotionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, err.Error())
		return
	}
	e, err := parseEmotion(req.Emotion)
	if err != nil {
		writeError(w, h.logger, http.StatusBadRequest, err.Error())
		return
	}

	h.mutate(w, r, http.StatusOK, func(a *npc.Agent) (any, error) {
		a.Emotions.SetEmotion(e)
		return EmotionResponse{Emotion: e, Action: a.React()}, nil
	})
}

// GET /v1/npcs/{id}/emotion/action
func (h *NPCHandler) emotionAction(w http.ResponseWriter, r *http.Request) {
	h.read(w, r, func(a *npc.Agent) (any, error) {
		return EmotionResponse{Emotion: a.Emotions.Emotion(), Action: a.React()}, nil
	})
}

type memoryRequest struct {
	Value *string `json:"value"`
}

// MemoryResponse is one general-memory entry.
type MemoryResponse struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// PUT /v1/npcs/{id}/memory/{key}
func (h *NPCHandler) setMemory(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	var req memoryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, err.Error())
		return
	}
	if req.Value == nil {
		writeError(w, h.logger, http.StatusBadRequest, "value is required")
		return
	}

	h.mutate(w, r, http.StatusOK, func(a *npc.Agent) (any, error) {
		a.Decisions.RecordMemory(key, *req.Value)
		return MemoryResponse{Key: key, Value: *req.Value}, nil
	})
}

// GET /v1/npcs/{id}/memory/{key}
func (h *NPCHandler) getMemory(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	h.read(w, r, func(a *npc.Agent) (any, error) {
		v, ok := a.Decisions.Memory(key)
		if !ok {
			return nil, fmt.Errorf("memory %q %w", key, errNotFound)
		}
		return MemoryResponse{Key: key, Value: v}, nil
	})
}

// EmotionalMemoryResponse is one emotional-memory entry.
type EmotionalMemoryResponse struct {
	Trigger string          `json:"trigger"`
	Emotion emotion.Emotion `json:"emotion"`
}

// PUT /v1/npcs/{id}/emotional-memory/{trigger}
func (h *NPCHandler) setEmotionalMemory(w http.ResponseWriter, r *http.Request) {
	trigger := chi.URLParam(r, "trigger")
	var req emotionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, err.Error())
		return
	}
	e, err := parseEmotion(req.Emotion)
	if err != nil {
		writeError(w, h.logger, http.StatusBadRequest, err.Error())
		return
	}

	h.mutate(w, r, http.StatusOK, func(a *npc.Agent) (any, error) {
		a.Emotions.RecordMemory(trigger, e)
		return EmotionalMemoryResponse{Trigger: trigger, Emotion: e}, nil
	})
}

// GET /v1/npcs/{id}/emotional-memory/{trigger}
func (h *NPCHandler) getEmotionalMemory(w http.ResponseWriter, r *http.Request) {
	trigger := chi.URLParam(r, "trigger")
	h.read(w, r, func(a *npc.Agent) (any, error) {
		e, ok := a.Emotions.Memory(trigger)
		if !ok {
			return nil, fmt.Errorf("emotional memory %q %w", trigger, errNotFound)
		}
		return EmotionalMemoryResponse{Trigger: trigger, Emotion: e}, nil
	})
}

// POST /v1/npcs/{id}/entities
func (h *NPCHandler) addEntity(w http.ResponseWriter, r *http.Request) {
	var e knowledge.Entity
	if err := decodeJSON(r, &e); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, err.Error())
		return
	}
	if e.ID == "" {
		writeError(w, h.logger, http.StatusBadRequest, "id is required")
		return
	}

	h.mutate(w, r, http.StatusCreated, func(a *npc.Agent) (any, error) {
		a.Knowledge.AddEntity(e)
		stored, _ := a.Knowledge.GetEntity(e.ID)
		return stored, nil
	})
}

// GET /v1/npcs/{id}/entities/{entityID}
func (h *NPCHandler) getEntity(w http.ResponseWriter, r *http.Request) {
	entityID := chi.URLParam(r, "entityID")
	h.read(w, r, func(a *npc.Agent) (any, error) {
		e, ok := a.Knowledge.GetEntity(entityID)
		if !ok {
			return nil, fmt.Errorf("entity %q %w", entityID, errNotFound)
		}
		return e, nil
	})
}

// POST /v1/npcs/{id}/relationships
func (h *NPCHandler) addRelationship(w http.ResponseWriter, r *http.Request) {
	var rel knowledge.Relationship
	if err := decodeJSON(r, &rel); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, err.Error())
		return
	}
	if rel.Source == "" || rel.Target == "" {
		writeError(w, h.logger, http.StatusBadRequest, "source and target are required")
		return
	}
	if rel.RelationType == "" {
		writeError(w, h.logger, http.StatusBadRequest, "relation_type is required")
		return
	}

	h.mutate(w, r, http.StatusCreated, func(a *npc.Agent) (any, error) {
		a.Knowledge.AddRelationship(rel)
		return rel, nil
	})
}

// RelationshipsResponse lists relationships in insertion order.
type RelationshipsResponse struct {
	EntityID      string                   `json:"entity_id"`
	Relationships []knowledge.Relationship `json:"relationships"`
}

// GET /v1/npcs/{id}/relationships/{entityID}?type=guards
func (h *NPCHandler) getRelationships(w http.ResponseWriter, r *http.Request) {
	entityID := chi.URLParam(r, "entityID")
	relType := r.URL.Query().Get("type")

	h.read(w, r, func(a *npc.Agent) (any, error) {
		var rels []knowledge.Relationship
		if relType != "" {
			rels = a.Knowledge.RelationshipsOfType(entityID, relType)
		} else {
			rels = a.Knowledge.GetRelationships(entityID)
		}
		if rels == nil {
			rels = []knowledge.Relationship{}
		}
		return RelationshipsResponse{EntityID: entityID, Relationships: rels}, nil
	})
}

// GET /v1/npcs/{id}/neighbors/{entityID}
func (h *NPCHandler) getNeighbors(w http.ResponseWriter, r *http.Request) {
	entityID := chi.URLParam(r, "entityID")
	h.read(w, r, func(a *npc.Agent) (any, error) {
		ids := a.Knowledge.Neighbors(entityID)
		if ids == nil {
			ids = []string{}
		}
		return map[string]any{"entity_id": entityID, "neighbors": ids}, nil
	})
}
