// Package repo persists agent snapshots. The Store interface is the
// injection point: SQLite is the durable default, Badger serves embedded
// key-value deployments, and the in-memory store backs tests and ephemeral
// runs. A snapshot is the full agent state, histories included, written
// whole or not at all.
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/danielpatrickdp/agent-governor/internal/state"
)

// ErrNotFound marks an agent with no persisted snapshot. Callers treat it
// as "start fresh", never as a failure.
var ErrNotFound = errors.New("agent snapshot not found")

// #region store

// Store is the persistence contract for agent snapshots.
type Store interface {
	// Load returns the snapshot for agentID, or ErrNotFound.
	Load(ctx context.Context, agentID string) (*state.AgentState, error)

	// Save upserts the full snapshot atomically.
	Save(ctx context.Context, st *state.AgentState) error

	// List summarizes the most recently updated agents.
	List(ctx context.Context, limit int) ([]Summary, error)

	Close() error
}

// Summary is the cheap per-agent listing row; no snapshot decode needed.
type Summary struct {
	AgentID     string       `json:"agent_id"`
	UpdateCount int64        `json:"update_count"`
	Regime      state.Regime `json:"regime"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// #endregion store
