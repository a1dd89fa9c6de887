package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/jwebster45206/npc-mind/internal/handlers"
	"github.com/jwebster45206/npc-mind/internal/worker"
	"github.com/jwebster45206/npc-mind/pkg/npc"
)

const (
	// PollInterval is how often to check the NPC for a new line
	PollInterval = 1 * time.Second
	// DialogueTimeout is max time to wait for a queued dialogue to land
	DialogueTimeout = 30 * time.Second
)

// doJSON sends body (when non-nil) and decodes the response into out (when non-nil).
// Any status other than want is an error carrying the response body.
func doJSON(ctx context.Context, client *http.Client, method, url string, body, out any, want ...int) (int, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return 0, fmt.Errorf("failed to create %s request: %w", method, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to send %s %s: %w", method, url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	ok := false
	for _, code := range want {
		if resp.StatusCode == code {
			ok = true
			break
		}
	}
	if !ok {
		raw, _ := io.ReadAll(resp.Body)
		return resp.StatusCode, fmt.Errorf("%s %s returned %d: %s", method, url, resp.StatusCode, string(raw))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("failed to decode %s %s response: %w", method, url, err)
		}
	}
	return resp.StatusCode, nil
}

func npcURL(baseURL string, id uuid.UUID) string {
	return fmt.Sprintf("%s/v1/npcs/%s", baseURL, id)
}

// CreateNPC posts a definition and returns the created snapshot
func CreateNPC(ctx context.Context, client *http.Client, baseURL string, def npc.Definition) (*npc.Snapshot, error) {
	var snap npc.Snapshot
	if _, err := doJSON(ctx, client, http.MethodPost, baseURL+"/v1/npcs", def, &snap, http.StatusCreated); err != nil {
		return nil, err
	}
	return &snap, nil
}

// GetNPC retrieves the current snapshot
func GetNPC(ctx context.Context, client *http.Client, baseURL string, id uuid.UUID) (*npc.Snapshot, error) {
	var snap npc.Snapshot
	if _, err := doJSON(ctx, client, http.MethodGet, npcURL(baseURL, id), nil, &snap, http.StatusOK); err != nil {
		return nil, err
	}
	return &snap, nil
}

// DeleteNPC removes an NPC. A missing NPC is not an error.
func DeleteNPC(ctx context.Context, client *http.Client, baseURL string, id uuid.UUID) error {
	_, err := doJSON(ctx, client, http.MethodDelete, npcURL(baseURL, id), nil, nil, http.StatusNoContent, http.StatusNotFound)
	return err
}

// PostDialogue posts a dialogue request. When the API generates inline the
// NPC line is returned directly; when it queues, only the request ID is set.
func PostDialogue(ctx context.Context, client *http.Client, baseURL string, id uuid.UUID, in DialogueInput) (line string, requestID string, queued bool, err error) {
	var raw json.RawMessage
	status, err := doJSON(ctx, client, http.MethodPost, npcURL(baseURL, id)+"/dialogue", in, &raw,
		http.StatusOK, http.StatusAccepted)
	if err != nil {
		return "", "", false, err
	}

	if status == http.StatusAccepted {
		var q handlers.QueuedResponse
		if err := json.Unmarshal(raw, &q); err != nil {
			return "", "", false, fmt.Errorf("failed to parse queued response: %w", err)
		}
		return "", q.RequestID, true, nil
	}

	var d handlers.DialogueResponse
	if err := json.Unmarshal(raw, &d); err != nil {
		return "", "", false, fmt.Errorf("failed to parse dialogue response: %w", err)
	}
	return d.Lines.NPCResponse, d.RequestID, false, nil
}

// PollForDialogue polls the NPC until a save newer than before lands with a
// last_dialogue memory. Returns the updated snapshot and the line.
func PollForDialogue(ctx context.Context, client *http.Client, baseURL string, before *npc.Snapshot, interval, timeout time.Duration) (*npc.Snapshot, string, error) {
	deadline := time.After(timeout)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, "", ctx.Err()
		case <-deadline:
			return nil, "", fmt.Errorf("timeout waiting for dialogue (waited %v)", timeout)
		case <-ticker.C:
			snap, err := GetNPC(ctx, client, baseURL, before.ID)
			if err != nil {
				// keep polling
				continue
			}
			line, ok := snap.Memories[worker.LastDialogueKey]
			if ok && snap.UpdatedAt.After(before.UpdatedAt) {
				return snap, line, nil
			}
		}
	}
}
