package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/jwebster45206/npc-mind/pkg/npc"
	"github.com/jwebster45206/npc-mind/pkg/storage"
)

// SQLiteStorage implements storage.Storage on a single SQLite file.
type SQLiteStorage struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// Ensure SQLiteStorage implements Storage interface
var _ storage.Storage = (*SQLiteStorage)(nil)

type agentRow struct {
	ID           string `db:"id"`
	Name         string `db:"name"`
	SnapshotJSON string `db:"snapshot_json"`
	UpdatedAt    string `db:"updated_at"`
}

// NewSQLiteStorage opens or creates the database at path and applies the schema.
func NewSQLiteStorage(path string, logger *slog.Logger) (*SQLiteStorage, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sqlx.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &SQLiteStorage{db: db, logger: logger}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	logger.Info("SQLite storage ready", "path", path)
	return s, nil
}

func (s *SQLiteStorage) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS agents (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		snapshot_json TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_agents_name ON agents(name);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStorage) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("sqlite ping failed: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

func (s *SQLiteStorage) SaveAgent(ctx context.Context, snap *npc.Snapshot) error {
	snap.UpdatedAt = time.Now().UTC()

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal agent: %w", err)
	}

	row := agentRow{
		ID:           snap.ID.String(),
		Name:         snap.Name,
		SnapshotJSON: string(data),
		UpdatedAt:    snap.UpdatedAt.Format(time.RFC3339Nano),
	}
	_, err = s.db.NamedExecContext(ctx, `
		INSERT INTO agents (id, name, snapshot_json, updated_at)
		VALUES (:id, :name, :snapshot_json, :updated_at)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			snapshot_json = excluded.snapshot_json,
			updated_at = excluded.updated_at`, row)
	if err != nil {
		s.logger.Error("Failed to save agent", "agent_id", snap.ID, "error", err)
		return fmt.Errorf("failed to save agent: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) LoadAgent(ctx context.Context, id uuid.UUID) (*npc.Snapshot, error) {
	var data string
	err := s.db.GetContext(ctx, &data, "SELECT snapshot_json FROM agents WHERE id = ?", id.String())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load agent: %w", err)
	}

	var snap npc.Snapshot
	if err := json.Unmarshal([]byte(data), &snap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal agent: %w", err)
	}
	return &snap, nil
}

func (s *SQLiteStorage) DeleteAgent(ctx context.Context, id uuid.UUID) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM agents WHERE id = ?", id.String()); err != nil {
		return fmt.Errorf("failed to delete agent: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) ListAgents(ctx context.Context) ([]storage.AgentSummary, error) {
	var rows []agentRow
	if err := s.db.SelectContext(ctx, &rows, "SELECT id, name, updated_at FROM agents ORDER BY name, id"); err != nil {
		return nil, fmt.Errorf("failed to list agents: %w", err)
	}

	list := make([]storage.AgentSummary, 0, len(rows))
	for _, row := range rows {
		id, err := uuid.Parse(row.ID)
		if err != nil {
			s.logger.Warn("Skipping agent with invalid id", "id", row.ID, "error", err)
			continue
		}
		updated, err := time.Parse(time.RFC3339Nano, row.UpdatedAt)
		if err != nil {
			s.logger.Warn("Agent has invalid updated_at", "agent_id", id, "error", err)
		}
		list = append(list, storage.AgentSummary{ID: id, Name: row.Name, UpdatedAt: updated})
	}
	return list, nil
}
