package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/danielpatrickdp/agent-governor/internal/state"
)

// #region schema

const schema = `
CREATE TABLE IF NOT EXISTS agent_snapshots (
	agent_id     TEXT PRIMARY KEY,
	snapshot     TEXT NOT NULL,
	update_count INTEGER NOT NULL,
	regime       TEXT NOT NULL,
	updated_at   TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_snapshots_updated_at
	ON agent_snapshots(updated_at DESC);
`

// #endregion schema

// #region constructor

// SQLiteStore keeps one snapshot row per agent.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens the database and runs migrations. WAL keeps readers off
// the writer's back; the busy timeout covers short cross-process contention.
func NewSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		return nil, fmt.Errorf("pragma busy: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// DB exposes the connection for sinks that share the database file.
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

// #endregion constructor

// #region load-save

// Load implements Store.
func (s *SQLiteStore) Load(ctx context.Context, agentID string) (*state.AgentState, error) {
	var snapshot string
	err := s.db.QueryRowContext(ctx,
		`SELECT snapshot FROM agent_snapshots WHERE agent_id = ?`, agentID,
	).Scan(&snapshot)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot %s: %w", agentID, err)
	}

	var st state.AgentState
	if err := json.Unmarshal([]byte(snapshot), &st); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", agentID, err)
	}
	return &st, nil
}

// Save implements Store. The upsert is a single statement, so the snapshot
// is committed whole or not at all.
func (s *SQLiteStore) Save(ctx context.Context, st *state.AgentState) error {
	snapshot, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode snapshot %s: %w", st.AgentID, err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO agent_snapshots (agent_id, snapshot, update_count, regime, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(agent_id) DO UPDATE SET
			snapshot = excluded.snapshot,
			update_count = excluded.update_count,
			regime = excluded.regime,
			updated_at = excluded.updated_at`,
		st.AgentID, string(snapshot), st.UpdateCount, string(st.Regime),
		st.UpdatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("save snapshot %s: %w", st.AgentID, err)
	}
	return nil
}

// #endregion load-save

// #region list

// List implements Store.
func (s *SQLiteStore) List(ctx context.Context, limit int) ([]Summary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT agent_id, update_count, regime, updated_at
		 FROM agent_snapshots ORDER BY updated_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var sum Summary
		var regime, updatedStr string
		if err := rows.Scan(&sum.AgentID, &sum.UpdateCount, &regime, &updatedStr); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		sum.Regime = state.Regime(regime)
		sum.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedStr)
		out = append(out, sum)
	}
	return out, rows.Err()
}

// #endregion list

var _ Store = (*SQLiteStore)(nil)
