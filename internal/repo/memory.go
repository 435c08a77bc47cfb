package repo

import (
	"context"
	"sort"
	"sync"

	"github.com/danielpatrickdp/agent-governor/internal/state"
)

// #region memory

// MemoryStore keeps snapshots in a map. It clones on both paths so callers
// can never alias the stored state.
type MemoryStore struct {
	mu     sync.RWMutex
	agents map[string]*state.AgentState
}

// NewMemory returns an empty in-memory store.
func NewMemory() *MemoryStore {
	return &MemoryStore{agents: make(map[string]*state.AgentState)}
}

// Load implements Store.
func (s *MemoryStore) Load(_ context.Context, agentID string) (*state.AgentState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.agents[agentID]
	if !ok {
		return nil, ErrNotFound
	}
	return st.Clone(), nil
}

// Save implements Store.
func (s *MemoryStore) Save(_ context.Context, st *state.AgentState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.agents[st.AgentID] = st.Clone()
	return nil
}

// List implements Store.
func (s *MemoryStore) List(_ context.Context, limit int) ([]Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Summary, 0, len(s.agents))
	for _, st := range s.agents {
		out = append(out, Summary{
			AgentID:     st.AgentID,
			UpdateCount: st.UpdateCount,
			Regime:      st.Regime,
			UpdatedAt:   st.UpdatedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Close implements Store.
func (s *MemoryStore) Close() error { return nil }

// #endregion memory

var _ Store = (*MemoryStore)(nil)
