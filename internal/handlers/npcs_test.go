package handlers

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/npc-mind/pkg/decision"
	"github.com/jwebster45206/npc-mind/pkg/emotion"
	"github.com/jwebster45206/npc-mind/pkg/knowledge"
	"github.com/jwebster45206/npc-mind/pkg/npc"
	"github.com/jwebster45206/npc-mind/pkg/storage"
)

type npcFixture struct {
	store     *storage.MemoryStorage
	canceller *fakeCanceller
	deletions *fakeDeletions
	router    http.Handler
}

func newNPCFixture() *npcFixture {
	log := testLogger()
	f := &npcFixture{
		store:     storage.NewMemoryStorage(),
		canceller: &fakeCanceller{},
		deletions: &fakeDeletions{},
	}
	f.router = NewRouter(Handlers{
		Health: NewHealthHandler(f.store, nil, log),
		NPCs:   NewNPCHandler(f.store, f.canceller, f.deletions, log),
	}, log)
	return f
}

func (f *npcFixture) path(a *npc.Agent, suffix string) string {
	return "/v1/npcs/" + a.ID.String() + suffix
}

func TestNPCHandler_CreateAndGet(t *testing.T) {
	f := newNPCFixture()

	def := map[string]any{
		"name":            "Old Tom",
		"actions":         []map[string]string{{"name": "Talk", "description": "Chat about the weather."}},
		"initial_state":   "Engaged",
		"initial_emotion": "Trust",
		"entities":        []map[string]any{{"id": "tavern", "properties": map[string]string{"type": "building"}}},
	}

	var created npc.Snapshot
	rec := do(t, f.router, http.MethodPost, "/v1/npcs", def, &created)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "Old Tom", created.Name)
	assert.Equal(t, decision.StateEngaged, created.State)
	assert.Equal(t, emotion.Trust, created.Emotion)

	var fetched npc.Snapshot
	rec = do(t, f.router, http.MethodGet, "/v1/npcs/"+created.ID.String(), nil, &fetched)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, created.ID, fetched.ID)
	require.Len(t, fetched.Entities, 1)
	assert.Equal(t, "tavern", fetched.Entities[0].ID)

	var list struct {
		NPCs []storage.AgentSummary `json:"npcs"`
	}
	rec = do(t, f.router, http.MethodGet, "/v1/npcs", nil, &list)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, list.NPCs, 1)
	assert.Equal(t, "Old Tom", list.NPCs[0].Name)
}

func TestNPCHandler_CreateRejectsBadDefinitions(t *testing.T) {
	f := newNPCFixture()

	tests := []struct {
		name string
		body any
	}{
		{name: "empty body", body: ""},
		{name: "malformed json", body: "{not json"},
		{name: "unknown field", body: `{"name":"x","hp":10}`},
		{name: "missing name", body: map[string]any{"actions": []any{}}},
		{name: "unknown emotion", body: map[string]any{"name": "x", "initial_emotion": "Bored"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var resp ErrorResponse
			rec := do(t, f.router, http.MethodPost, "/v1/npcs", tt.body, &resp)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.NotEmpty(t, resp.Error)
		})
	}
}

func TestNPCHandler_NotFoundAndBadID(t *testing.T) {
	f := newNPCFixture()

	rec := do(t, f.router, http.MethodGet, "/v1/npcs/not-a-uuid", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, f.router, http.MethodGet, "/v1/npcs/6f1c1b8e-1d4f-4a43-9d1b-4b2a3e8e2a10", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, f.router, http.MethodDelete, "/v1/npcs/6f1c1b8e-1d4f-4a43-9d1b-4b2a3e8e2a10", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestNPCHandler_StateAndAction(t *testing.T) {
	f := newNPCFixture()
	agent := seedAgent(t, f.store)

	var action ActionResponse
	rec := do(t, f.router, http.MethodGet, f.path(agent, "/action"), nil, &action)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, decision.OutcomeSelected, action.Outcome)
	assert.Equal(t, "Action selected: Take a break.", action.Result)

	rec = do(t, f.router, http.MethodPut, f.path(agent, "/state"), map[string]string{"state": "Alert"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	do(t, f.router, http.MethodGet, f.path(agent, "/action"), nil, &action)
	assert.Equal(t, "Action selected: Look around carefully.", action.Result)

	// Talk is not in this agent's catalog
	do(t, f.router, http.MethodPut, f.path(agent, "/state"), map[string]string{"state": "Engaged"}, nil)
	do(t, f.router, http.MethodGet, f.path(agent, "/action"), nil, &action)
	assert.Equal(t, decision.OutcomeNotFound, action.Outcome)
	assert.Equal(t, decision.ActionNotFound, action.Result)

	do(t, f.router, http.MethodPut, f.path(agent, "/state"), map[string]string{"state": "Dancing"}, nil)
	do(t, f.router, http.MethodGet, f.path(agent, "/action"), nil, &action)
	assert.Equal(t, decision.OutcomeNoAction, action.Outcome)
	assert.Equal(t, decision.NoActionAvailable, action.Result)

	rec = do(t, f.router, http.MethodPut, f.path(agent, "/state"), map[string]string{}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestNPCHandler_Emotion(t *testing.T) {
	f := newNPCFixture()
	agent := seedAgent(t, f.store)

	var resp EmotionResponse
	rec := do(t, f.router, http.MethodGet, f.path(agent, "/emotion/action"), nil, &resp)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, emotion.Neutral, resp.Emotion)
	assert.Equal(t, "Observe", resp.Action)

	rec = do(t, f.router, http.MethodPut, f.path(agent, "/emotion"), map[string]string{"emotion": "Fear"}, &resp)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Hide", resp.Action)

	do(t, f.router, http.MethodGet, f.path(agent, "/emotion/action"), nil, &resp)
	assert.Equal(t, emotion.Fear, resp.Emotion)

	rec = do(t, f.router, http.MethodPut, f.path(agent, "/emotion"), map[string]string{"emotion": "Boredom"}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	snap, err := f.store.LoadAgent(context.Background(), agent.ID)
	require.NoError(t, err)
	assert.Equal(t, emotion.Fear, snap.Emotion, "rejected update must not change the stored emotion")
}

func TestNPCHandler_Memories(t *testing.T) {
	f := newNPCFixture()
	agent := seedAgent(t, f.store)

	rec := do(t, f.router, http.MethodGet, f.path(agent, "/memory/met_player"), nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, f.router, http.MethodPut, f.path(agent, "/memory/met_player"), map[string]string{"value": "yes"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	do(t, f.router, http.MethodPut, f.path(agent, "/memory/met_player"), map[string]string{"value": "twice"}, nil)

	var mem MemoryResponse
	rec = do(t, f.router, http.MethodGet, f.path(agent, "/memory/met_player"), nil, &mem)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "twice", mem.Value)

	rec = do(t, f.router, http.MethodPut, f.path(agent, "/emotional-memory/thunder"), map[string]string{"emotion": "Fear"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var emo EmotionalMemoryResponse
	rec = do(t, f.router, http.MethodGet, f.path(agent, "/emotional-memory/thunder"), nil, &emo)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, emotion.Fear, emo.Emotion)

	rec = do(t, f.router, http.MethodGet, f.path(agent, "/emotional-memory/rain"), nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestNPCHandler_Knowledge(t *testing.T) {
	f := newNPCFixture()
	agent := seedAgent(t, f.store)

	rec := do(t, f.router, http.MethodPost, f.path(agent, "/entities"),
		knowledge.NewEntity("castle", map[string]string{"type": "fortress"}), nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = do(t, f.router, http.MethodPost, f.path(agent, "/entities"), map[string]any{"properties": map[string]string{}}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var entity knowledge.Entity
	rec = do(t, f.router, http.MethodGet, f.path(agent, "/entities/castle"), nil, &entity)
	require.Equal(t, http.StatusOK, rec.Code)
	v, _ := entity.Property("type")
	assert.Equal(t, "fortress", v)

	rec = do(t, f.router, http.MethodGet, f.path(agent, "/entities/moat"), nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	for _, rel := range []knowledge.Relationship{
		knowledge.NewRelationship("guard", "castle", "guards", nil),
		knowledge.NewRelationship("castle", "village", "overlooks", nil),
		knowledge.NewRelationship("guard", "king", "serves", nil),
	} {
		rec = do(t, f.router, http.MethodPost, f.path(agent, "/relationships"), rel, nil)
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec = do(t, f.router, http.MethodPost, f.path(agent, "/relationships"), map[string]string{"source": "a", "target": "b"}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var rels RelationshipsResponse
	rec = do(t, f.router, http.MethodGet, f.path(agent, "/relationships/castle"), nil, &rels)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, rels.Relationships, 2)
	assert.Equal(t, "guards", rels.Relationships[0].RelationType)
	assert.Equal(t, "overlooks", rels.Relationships[1].RelationType)

	do(t, f.router, http.MethodGet, f.path(agent, "/relationships/guard?type=serves"), nil, &rels)
	require.Len(t, rels.Relationships, 1)
	assert.Equal(t, "king", rels.Relationships[0].Target)

	do(t, f.router, http.MethodGet, f.path(agent, "/relationships/nobody"), nil, &rels)
	assert.NotNil(t, rels.Relationships)
	assert.Empty(t, rels.Relationships)

	var neighbors struct {
		Neighbors []string `json:"neighbors"`
	}
	rec = do(t, f.router, http.MethodGet, f.path(agent, "/neighbors/castle"), nil, &neighbors)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.ElementsMatch(t, []string{"guard", "village"}, neighbors.Neighbors)
}

func TestNPCHandler_Delete(t *testing.T) {
	f := newNPCFixture()
	agent := seedAgent(t, f.store)

	rec := do(t, f.router, http.MethodDelete, f.path(agent, ""), nil, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	assert.Equal(t, agent.ID, f.canceller.canceled[0])
	assert.Equal(t, agent.ID, f.deletions.deleted[0])

	rec = do(t, f.router, http.MethodGet, f.path(agent, ""), nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestNPCHandler_MutationsAreSerialized(t *testing.T) {
	f := newNPCFixture()
	agent := seedAgent(t, f.store)

	done := make(chan struct{})
	keys := []string{"a", "b", "c", "d", "e", "f", "g", "h"}
	for _, k := range keys {
		go func(k string) {
			defer func() { done <- struct{}{} }()
			do(t, f.router, http.MethodPut, f.path(agent, "/memory/"+k), map[string]string{"value": k}, nil)
		}(k)
	}
	for range keys {
		<-done
	}

	snap, err := f.store.LoadAgent(context.Background(), agent.ID)
	require.NoError(t, err)
	assert.Len(t, snap.Memories, len(keys), "no update may be lost")
}

// slowSaveStore holds every SaveAgent until release is closed.
type slowSaveStore struct {
	storage.Storage
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (s *slowSaveStore) SaveAgent(ctx context.Context, snap *npc.Snapshot) error {
	s.once.Do(func() { close(s.entered) })
	<-s.release
	return s.Storage.SaveAgent(ctx, snap)
}

func TestNPCHandler_DeleteWaitsForInFlightMutation(t *testing.T) {
	inner := storage.NewMemoryStorage()
	agent := seedAgent(t, inner)
	store := &slowSaveStore{Storage: inner, entered: make(chan struct{}), release: make(chan struct{})}

	log := testLogger()
	router := NewRouter(Handlers{
		Health: NewHealthHandler(inner, nil, log),
		NPCs:   NewNPCHandler(store, &fakeCanceller{}, &fakeDeletions{}, log),
	}, log)
	path := "/v1/npcs/" + agent.ID.String()

	putDone := make(chan int, 1)
	go func() {
		rec := do(t, router, http.MethodPut, path+"/memory/door", map[string]string{"value": "locked"}, nil)
		putDone <- rec.Code
	}()
	<-store.entered

	delDone := make(chan int, 1)
	go func() {
		rec := do(t, router, http.MethodDelete, path, nil, nil)
		delDone <- rec.Code
	}()

	select {
	case <-delDone:
		t.Fatal("delete finished while a mutation was still saving")
	case <-time.After(50 * time.Millisecond):
	}

	close(store.release)
	assert.Equal(t, http.StatusOK, <-putDone)
	assert.Equal(t, http.StatusNoContent, <-delDone)

	snap, err := inner.LoadAgent(context.Background(), agent.ID)
	require.NoError(t, err)
	assert.Nil(t, snap, "the mutation must not resurrect a deleted agent")
}
