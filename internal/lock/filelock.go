package lock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// #region manager

// FileManager coordinates leases across processes through lock files. Each
// lock file records the holder token, PID, and timestamps; a holder whose
// process is dead or whose heartbeat has aged out is reclaimed by the next
// acquirer.
type FileManager struct {
	dir string
	cfg Config
	log *zap.Logger

	// OnReclaim, when set, is called after a stale or dead-holder lock has
	// been removed. Set it before the first Acquire.
	OnReclaim func(agentID, owner string, pid int)
}

// NewFileManager creates the lock directory if needed.
func NewFileManager(dir string, cfg Config, log *zap.Logger) (*FileManager, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create lock dir: %w", err)
	}
	return &FileManager{dir: dir, cfg: cfg, log: log}, nil
}

type lockInfo struct {
	Owner       string    `json:"owner"`
	PID         int       `json:"pid"`
	AcquiredAt  time.Time `json:"acquired_at"`
	HeartbeatAt time.Time `json:"heartbeat_at"`
}

func (m *FileManager) path(agentID string) string {
	return filepath.Join(m.dir, url.PathEscape(agentID)+".lock")
}

var errHeld = errors.New("lock held")

// Acquire implements Manager. Waiters are woken by filesystem events on the
// lock directory, with a poll interval as fallback.
func (m *FileManager) Acquire(ctx context.Context, agentID string) (Lease, error) {
	path := m.path(agentID)
	deadline := time.Now().Add(m.cfg.Timeout)

	watcher, werr := fsnotify.NewWatcher()
	if werr == nil {
		if err := watcher.Add(m.dir); err != nil {
			watcher.Close()
			watcher = nil
		} else {
			defer watcher.Close()
		}
	}

	for {
		lease, holder, err := m.try(path)
		if err == nil {
			return lease, nil
		}
		if !errors.Is(err, errHeld) {
			return nil, err
		}

		if m.reclaimable(path, holder) {
			m.reclaim(path, agentID, holder)
			continue
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, &ContendedError{AgentID: agentID, Owner: holder.Owner, Since: holder.AcquiredAt}
		}
		if err := m.wait(ctx, watcher, path, remaining); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, &ContendedError{AgentID: agentID, Owner: holder.Owner, Since: holder.AcquiredAt}
		}
	}
}

// try creates the lock file exclusively. When the file already exists, the
// current holder's record is returned alongside errHeld.
func (m *FileManager) try(path string) (Lease, lockInfo, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return nil, m.readInfo(path), errHeld
		}
		return nil, lockInfo{}, fmt.Errorf("create lock file: %w", err)
	}

	now := time.Now().UTC()
	info := lockInfo{
		Owner:       uuid.NewString(),
		PID:         os.Getpid(),
		AcquiredAt:  now,
		HeartbeatAt: now,
	}
	enc := json.NewEncoder(f)
	if err := enc.Encode(info); err != nil {
		f.Close()
		os.Remove(path)
		return nil, lockInfo{}, fmt.Errorf("write lock record: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return nil, lockInfo{}, fmt.Errorf("close lock file: %w", err)
	}
	return &fileLease{path: path, owner: info.Owner}, lockInfo{}, nil
}

// readInfo tolerates a corrupt record; the file mtime then stands in for
// the heartbeat so an unreadable lock still ages out.
func (m *FileManager) readInfo(path string) lockInfo {
	var info lockInfo
	data, err := os.ReadFile(path)
	if err == nil && json.Unmarshal(data, &info) == nil && !info.HeartbeatAt.IsZero() {
		return info
	}
	if fi, err := os.Stat(path); err == nil {
		info.HeartbeatAt = fi.ModTime()
	}
	return info
}

func (m *FileManager) reclaimable(path string, info lockInfo) bool {
	if info.PID > 0 && !processAlive(info.PID) {
		return true
	}
	return !info.HeartbeatAt.IsZero() && time.Since(info.HeartbeatAt) > m.cfg.Staleness
}

func (m *FileManager) reclaim(path, agentID string, info lockInfo) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		m.log.Warn("failed to reclaim lock",
			zap.String("agent_id", agentID), zap.Error(err))
		return
	}
	m.log.Warn("reclaimed abandoned lock",
		zap.String("agent_id", agentID),
		zap.String("owner", info.Owner),
		zap.Int("pid", info.PID),
		zap.Time("heartbeat_at", info.HeartbeatAt))
	if m.OnReclaim != nil {
		m.OnReclaim(agentID, info.Owner, info.PID)
	}
}

// wait blocks until the lock file changes, the poll interval elapses, the
// remaining budget runs out, or ctx is cancelled. A nil error means retry.
func (m *FileManager) wait(ctx context.Context, watcher *fsnotify.Watcher, path string, remaining time.Duration) error {
	interval := m.cfg.Poll
	if remaining < interval {
		interval = remaining
	}
	timer := time.NewTimer(interval)
	defer timer.Stop()

	if watcher == nil {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return nil
		}
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-watcher.Events:
			if ev.Name == path && ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
				return nil
			}
		case err := <-watcher.Errors:
			m.log.Debug("lock watcher error", zap.Error(err))
		case <-timer.C:
			return nil
		}
	}
}

// #endregion manager

// #region lease

type fileLease struct {
	path  string
	owner string
}

func (l *fileLease) Owner() string { return l.owner }

// Release removes the lock file, but only while it still carries this
// lease's owner token. A lock reclaimed and re-acquired by another process
// is not ours to remove.
func (l *fileLease) Release() error {
	data, err := os.ReadFile(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("release lock: %w", err)
	}
	var info lockInfo
	if json.Unmarshal(data, &info) == nil && info.Owner != l.owner {
		return nil
	}
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("release lock: %w", err)
	}
	return nil
}

// #endregion lease

var _ Manager = (*FileManager)(nil)
