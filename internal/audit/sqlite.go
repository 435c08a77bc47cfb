package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// #region schema

const schema = `
CREATE TABLE IF NOT EXISTS audit_log (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	event_id   TEXT NOT NULL,
	agent_id   TEXT NOT NULL,
	kind       TEXT NOT NULL,
	detail     TEXT,
	created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_audit_log_agent_kind ON audit_log(agent_id, kind, id);
`

// #endregion schema

// #region sqlite-sink

// SQLiteSink appends events to an audit_log table. It does not own the
// handle; callers may point it at the same database file as the snapshot
// store and are responsible for closing it.
type SQLiteSink struct {
	db *sql.DB
}

// NewSQLiteSink ensures the audit_log table exists on db.
func NewSQLiteSink(db *sql.DB) (*SQLiteSink, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate audit schema: %w", err)
	}
	return &SQLiteSink{db: db}, nil
}

// Record inserts one audit_log row.
func (s *SQLiteSink) Record(ctx context.Context, ev Event) error {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit_log (event_id, agent_id, kind, detail, created_at) VALUES (?, ?, ?, ?, ?)`,
		ev.ID,
		ev.AgentID,
		string(ev.Kind),
		nullIfEmpty(ev.Detail),
		ev.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("record audit event: %w", err)
	}
	return nil
}

// Observations returns the observation records for agentID in insertion
// order. limit > 0 keeps only the most recent limit rows. Rows whose detail
// does not parse as an ObservationRecord are skipped.
func (s *SQLiteSink) Observations(ctx context.Context, agentID string, limit int) ([]ObservationRecord, error) {
	q := `SELECT detail FROM audit_log WHERE agent_id = ? AND kind = ? ORDER BY id ASC`
	args := []interface{}{agentID, string(KindObservation)}
	if limit > 0 {
		q = `SELECT detail FROM (
			SELECT id, detail FROM audit_log WHERE agent_id = ? AND kind = ? ORDER BY id DESC LIMIT ?
		) sub ORDER BY id ASC`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query observations: %w", err)
	}
	defer rows.Close()

	var out []ObservationRecord
	for rows.Next() {
		var detail sql.NullString
		if err := rows.Scan(&detail); err != nil {
			return nil, fmt.Errorf("scan observation: %w", err)
		}
		if !detail.Valid || detail.String == "" {
			continue
		}

		var rec ObservationRecord
		if err := json.Unmarshal([]byte(detail.String), &rec); err != nil {
			continue
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate observations: %w", err)
	}
	return out, nil
}

// #endregion sqlite-sink

// #region helpers

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// #endregion helpers
