// Package audit records append-only telemetry for governance updates.
// Sinks return errors; the BestEffort wrapper is the one place those
// errors stop.
package audit

import (
	"context"
	"encoding/json"
	"sync/atomic"

	"go.uber.org/zap"
)

// #region sink

// Sink persists audit events.
type Sink interface {
	Record(ctx context.Context, ev Event) error
}

// NopSink discards every event.
type NopSink struct{}

func (NopSink) Record(context.Context, Event) error { return nil }

// #endregion sink

// #region best-effort

// BestEffort wraps a sink so recording failures are logged and counted but
// never reach the caller. A governance update proceeds whether or not its
// telemetry lands.
type BestEffort struct {
	sink    Sink
	log     *zap.Logger
	dropped atomic.Int64
}

// NewBestEffort wraps sink. A nil sink discards events; a nil logger is
// replaced with a no-op logger.
func NewBestEffort(sink Sink, log *zap.Logger) *BestEffort {
	if sink == nil {
		sink = NopSink{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &BestEffort{sink: sink, log: log}
}

// Record writes ev to the underlying sink, absorbing any error.
func (b *BestEffort) Record(ctx context.Context, ev Event) {
	if err := b.sink.Record(ctx, ev); err != nil {
		b.dropped.Add(1)
		b.log.Warn("audit event dropped",
			zap.String("agent_id", ev.AgentID),
			zap.String("kind", string(ev.Kind)),
			zap.Error(err))
	}
}

// Emit marshals rec into an event detail and records it.
func (b *BestEffort) Emit(ctx context.Context, agentID string, kind Kind, rec interface{}) {
	detail, err := json.Marshal(rec)
	if err != nil {
		b.dropped.Add(1)
		b.log.Warn("audit detail not serializable",
			zap.String("agent_id", agentID),
			zap.String("kind", string(kind)),
			zap.Error(err))
		return
	}
	b.Record(ctx, Event{AgentID: agentID, Kind: kind, Detail: string(detail)})
}

// Dropped reports how many events failed to record.
func (b *BestEffort) Dropped() int64 { return b.dropped.Load() }

// #endregion best-effort
