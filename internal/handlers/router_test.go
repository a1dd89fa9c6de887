package handlers

import (
	"bufio"
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/npc-mind/internal/dialogue"
	"github.com/jwebster45206/npc-mind/internal/services"
	"github.com/jwebster45206/npc-mind/internal/worker"
	"github.com/jwebster45206/npc-mind/pkg/storage"
)

// logRecords decodes one JSON log line per record, keyed by message.
func logRecords(t *testing.T, buf *bytes.Buffer) map[string]map[string]any {
	t.Helper()
	records := make(map[string]map[string]any)
	sc := bufio.NewScanner(buf)
	for sc.Scan() {
		var rec map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &rec))
		records[rec["msg"].(string)] = rec
	}
	return records
}

func TestRouter_LogsCarryRequestAndAgent(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	store := storage.NewMemoryStorage()
	agent := seedAgent(t, store)
	dispatcher := dialogue.NewDispatcher(services.NewMockDialogueService(), nil, log)
	defer dispatcher.Close()
	processor := worker.NewDialogueProcessor(store, dispatcher, "", log)

	router := NewRouter(Handlers{
		Health:   NewHealthHandler(store, nil, log),
		NPCs:     NewNPCHandler(store, nil, nil, log),
		Dialogue: NewDialogueHandler(store, nil, nil, processor, log),
	}, log)

	var resp DialogueResponse
	rec := do(t, router, http.MethodPost, "/v1/npcs/"+agent.ID.String()+"/dialogue", map[string]string{}, &resp)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	records := logRecords(t, &buf)

	httpLine, ok := records["HTTP request"]
	require.True(t, ok)
	assert.NotEmpty(t, httpLine["request_id"])

	for _, msg := range []string{"Dialogue generated inline", "Recorded dialogue"} {
		line, ok := records[msg]
		require.True(t, ok, msg)
		assert.Equal(t, resp.RequestID, line["request_id"], msg)
		assert.Equal(t, agent.ID.String(), line["agent_id"], msg)
		assert.Equal(t, "Mira", line["agent_name"], msg)
	}
}
