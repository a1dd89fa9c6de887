package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/npc-mind/pkg/decision"
	"github.com/jwebster45206/npc-mind/pkg/npc"
	"github.com/jwebster45206/npc-mind/pkg/storage"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeCanceller struct {
	mu       sync.Mutex
	canceled []uuid.UUID
}

func (f *fakeCanceller) Cancel(agentID uuid.UUID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.canceled = append(f.canceled, agentID)
	return 1
}

type fakeDeletions struct {
	deleted []uuid.UUID
}

func (f *fakeDeletions) PublishAgentDeleted(ctx context.Context, agentID uuid.UUID) error {
	f.deleted = append(f.deleted, agentID)
	return nil
}

func seedAgent(t *testing.T, store storage.Storage) *npc.Agent {
	t.Helper()
	agent := npc.New("Mira", []decision.Action{
		{Name: "Rest", Description: "Take a break."},
		{Name: "Investigate", Description: "Look around carefully."},
	})
	require.NoError(t, store.SaveAgent(context.Background(), agent.Snapshot()))
	return agent
}

// do sends a request through h and decodes a JSON body into out when non-nil.
func do(t *testing.T, h http.Handler, method, path string, body any, out any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if out != nil {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out), rec.Body.String())
	}
	return rec
}
