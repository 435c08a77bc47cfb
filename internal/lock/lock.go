// Package lock serializes state updates per agent identity. Two managers
// implement the same contract: an in-process one for a single governor and a
// file-based one that coordinates across processes and can reclaim locks
// from dead or stalled holders.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// #region contract

// Lease is a held lock. Release is idempotent.
type Lease interface {
	Release() error
	// Owner is the holder token recorded for diagnosability.
	Owner() string
}

// Manager hands out exclusive per-agent leases.
type Manager interface {
	// Acquire blocks until the lease is granted, the configured timeout
	// passes, or ctx is cancelled. A timeout yields *ContendedError;
	// callers are expected to surface it, not spin on it.
	Acquire(ctx context.Context, agentID string) (Lease, error)
}

// #endregion contract

// #region errors

// ErrContended matches any ContendedError via errors.Is, for callers that
// only care whether to retry later.
var ErrContended = errors.New("agent lock contended")

// ContendedError reports a lock still held by someone else when the
// acquisition timeout expired.
type ContendedError struct {
	AgentID string
	Owner   string    // holder token, when known
	Since   time.Time // holder's acquisition time, when known
}

func (e *ContendedError) Error() string {
	if e.Owner == "" {
		return fmt.Sprintf("lock for agent %q contended", e.AgentID)
	}
	return fmt.Sprintf("lock for agent %q contended: held by %s since %s",
		e.AgentID, e.Owner, e.Since.Format(time.RFC3339))
}

func (e *ContendedError) Is(target error) bool { return target == ErrContended }

// #endregion errors

// #region config

// Config bounds acquisition and staleness.
type Config struct {
	// Timeout caps how long Acquire waits before reporting contention.
	Timeout time.Duration `yaml:"timeout" validate:"gt=0"`

	// Staleness is the heartbeat age past which a file lock is considered
	// abandoned and may be reclaimed.
	Staleness time.Duration `yaml:"staleness" validate:"gt=0"`

	// Poll is the fallback re-check interval while waiting on a file
	// lock; filesystem events usually wake the waiter sooner.
	Poll time.Duration `yaml:"poll" validate:"gt=0"`
}

// DefaultConfig returns the reference lock timing.
func DefaultConfig() Config {
	return Config{
		Timeout:   5 * time.Second,
		Staleness: 300 * time.Second,
		Poll:      100 * time.Millisecond,
	}
}

// #endregion config
