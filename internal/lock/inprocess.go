package lock

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
)

// #region inprocess

// InProcess serializes agents within one process. Leases die with the
// process, so there is no staleness reclamation here; that concern belongs
// to the file manager.
type InProcess struct {
	cfg Config

	mu     sync.Mutex
	agents map[string]*agentSlot
}

type agentSlot struct {
	sem   *semaphore.Weighted
	owner string
	since time.Time
}

// NewInProcess returns an in-process manager.
func NewInProcess(cfg Config) *InProcess {
	return &InProcess{cfg: cfg, agents: make(map[string]*agentSlot)}
}

func (m *InProcess) slot(agentID string) *agentSlot {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.agents[agentID]
	if !ok {
		s = &agentSlot{sem: semaphore.NewWeighted(1)}
		m.agents[agentID] = s
	}
	return s
}

// Acquire implements Manager.
func (m *InProcess) Acquire(ctx context.Context, agentID string) (Lease, error) {
	s := m.slot(agentID)

	waitCtx, cancel := context.WithTimeout(ctx, m.cfg.Timeout)
	defer cancel()

	if err := s.sem.Acquire(waitCtx, 1); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		m.mu.Lock()
		owner, since := s.owner, s.since
		m.mu.Unlock()
		return nil, &ContendedError{AgentID: agentID, Owner: owner, Since: since}
	}

	owner := uuid.NewString()
	m.mu.Lock()
	s.owner, s.since = owner, time.Now().UTC()
	m.mu.Unlock()

	return &inProcessLease{m: m, slot: s, owner: owner}, nil
}

type inProcessLease struct {
	m     *InProcess
	slot  *agentSlot
	owner string

	releaseOnce sync.Once
}

func (l *inProcessLease) Owner() string { return l.owner }

func (l *inProcessLease) Release() error {
	l.releaseOnce.Do(func() {
		l.m.mu.Lock()
		l.slot.owner, l.slot.since = "", time.Time{}
		l.m.mu.Unlock()
		l.slot.sem.Release(1)
	})
	return nil
}

// #endregion inprocess

var _ Manager = (*InProcess)(nil)
