package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"

	"github.com/danielpatrickdp/agent-governor/internal/state"
)

// #region config

// BadgerConfig selects the key-value backend's mode.
type BadgerConfig struct {
	Path       string `yaml:"path"`
	InMemory   bool   `yaml:"in_memory"`
	SyncWrites bool   `yaml:"sync_writes"`
}

// #endregion config

// #region store

const badgerKeyPrefix = "agent/"

// BadgerStore keeps snapshots in an embedded key-value log. Listing decodes
// snapshots, which is fine at the fleet sizes this backend is meant for.
type BadgerStore struct {
	db *badger.DB
}

// NewBadger opens or creates the store.
func NewBadger(cfg BadgerConfig, log *zap.Logger) (*BadgerStore, error) {
	if log == nil {
		log = zap.NewNop()
	}
	opts := badger.DefaultOptions(cfg.Path).
		WithInMemory(cfg.InMemory).
		WithSyncWrites(cfg.SyncWrites).
		WithLogger(badgerLogger{log.Sugar()})
	if cfg.InMemory {
		opts = opts.WithDir("").WithValueDir("")
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

func badgerKey(agentID string) []byte {
	return []byte(badgerKeyPrefix + agentID)
}

// Load implements Store.
func (s *BadgerStore) Load(_ context.Context, agentID string) (*state.AgentState, error) {
	var st state.AgentState
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(badgerKey(agentID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &st)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot %s: %w", agentID, err)
	}
	return &st, nil
}

// Save implements Store.
func (s *BadgerStore) Save(_ context.Context, st *state.AgentState) error {
	snapshot, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode snapshot %s: %w", st.AgentID, err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(badgerKey(st.AgentID), snapshot)
	})
	if err != nil {
		return fmt.Errorf("save snapshot %s: %w", st.AgentID, err)
	}
	return nil
}

// List implements Store.
func (s *BadgerStore) List(_ context.Context, limit int) ([]Summary, error) {
	var out []Summary
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(badgerKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var st state.AgentState
				if err := json.Unmarshal(val, &st); err != nil {
					return err
				}
				out = append(out, Summary{
					AgentID:     st.AgentID,
					UpdateCount: st.UpdateCount,
					Regime:      st.Regime,
					UpdatedAt:   st.UpdatedAt,
				})
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Close implements Store.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

// RunGC reclaims value-log space until ctx is done. Run it in its own
// goroutine for on-disk stores; it is a no-op for in-memory ones.
func (s *BadgerStore) RunGC(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for s.db.RunValueLogGC(0.5) == nil {
			}
		}
	}
}

// #endregion store

// #region logger

// badgerLogger bridges badger's logger to zap.
type badgerLogger struct {
	s *zap.SugaredLogger
}

func (l badgerLogger) Errorf(f string, args ...interface{})   { l.s.Errorf(f, args...) }
func (l badgerLogger) Warningf(f string, args ...interface{}) { l.s.Warnf(f, args...) }
func (l badgerLogger) Infof(f string, args ...interface{})    { l.s.Debugf(f, args...) }
func (l badgerLogger) Debugf(f string, args ...interface{})   { l.s.Debugf(f, args...) }

// #endregion logger

var _ Store = (*BadgerStore)(nil)
