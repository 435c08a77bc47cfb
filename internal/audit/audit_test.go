package audit

import (
	"context"
	"database/sql"
	"math"
	"testing"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// #region helpers
func setupSink(t *testing.T) (*SQLiteSink, *sql.DB) {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	sink, err := NewSQLiteSink(db)
	if err != nil {
		t.Fatalf("new sink: %v", err)
	}
	return sink, db
}

func ptr(v float64) *float64 { return &v }

func observation(seq int64, action string) ObservationRecord {
	return ObservationRecord{
		UpdateSeq:  seq,
		Drift:      []float64{0.1, 0.2, 0.3},
		Complexity: ptr(0.4),
		Text:       "refactor the scheduler",
		Thresholds: ObservationThresholds{Coherence: 0.3, Risk: 0.6, Void: 0.2},
		Outcome: ObservationOutcome{
			Status:    "healthy",
			Action:    action,
			Risk:      0.22,
			Coherence: 0.91,
			Regime:    "CONVERGENCE",
			Tier:      "proceed",
		},
	}
}

// #endregion helpers

// #region record-tests
func TestRecord_Success(t *testing.T) {
	sink, db := setupSink(t)

	ev := Event{
		AgentID:   "agent-1",
		Kind:      KindResonance,
		Detail:    `{"index":3.4,"flips":4}`,
		CreatedAt: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}
	if err := sink.Record(context.Background(), ev); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var count int
	db.QueryRow("SELECT COUNT(*) FROM audit_log").Scan(&count)
	if count != 1 {
		t.Errorf("expected 1 row, got %d", count)
	}

	var eventID, agentID, kind string
	db.QueryRow("SELECT event_id, agent_id, kind FROM audit_log").Scan(&eventID, &agentID, &kind)
	if eventID == "" {
		t.Error("expected auto-assigned event_id")
	}
	if agentID != "agent-1" {
		t.Errorf("expected agent_id 'agent-1', got %q", agentID)
	}
	if kind != string(KindResonance) {
		t.Errorf("expected kind 'resonance', got %q", kind)
	}
}

func TestRecord_ZeroCreatedAt(t *testing.T) {
	sink, db := setupSink(t)

	before := time.Now().UTC()
	ev := Event{AgentID: "agent-1", Kind: KindControllerSkip, Detail: `{"applied":false}`}
	if err := sink.Record(context.Background(), ev); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var createdAtStr string
	db.QueryRow("SELECT created_at FROM audit_log").Scan(&createdAtStr)
	createdAt, err := time.Parse(time.RFC3339Nano, createdAtStr)
	if err != nil {
		t.Fatalf("parse created_at: %v", err)
	}
	if createdAt.Before(before) {
		t.Error("expected auto-filled created_at to be >= test start time")
	}
}

func TestRecord_EmptyDetail(t *testing.T) {
	sink, db := setupSink(t)

	ev := Event{AgentID: "agent-1", Kind: KindLockReclaimed}
	if err := sink.Record(context.Background(), ev); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var detail sql.NullString
	db.QueryRow("SELECT detail FROM audit_log").Scan(&detail)
	if detail.Valid {
		t.Error("expected NULL detail for empty string")
	}
}

func TestRecord_ClosedDB(t *testing.T) {
	sink, db := setupSink(t)
	db.Close()

	err := sink.Record(context.Background(), Event{AgentID: "agent-1", Kind: KindObservation})
	if err == nil {
		t.Fatal("expected error on closed db")
	}
}

// #endregion record-tests

// #region observations-tests
func TestObservations_RoundTrip(t *testing.T) {
	sink, _ := setupSink(t)
	ctx := context.Background()
	be := NewBestEffort(sink, nil)

	be.Emit(ctx, "agent-1", KindObservation, observation(1, "proceed"))
	be.Emit(ctx, "agent-1", KindControllerUpdate, ControllerRecord{Applied: true, Coupling: 0.11})
	be.Emit(ctx, "agent-1", KindObservation, observation(2, "proceed"))
	be.Emit(ctx, "agent-1", KindResonance, ResonanceRecord{Index: 3.2, Flips: 4})
	be.Emit(ctx, "agent-1", KindObservation, observation(3, "pause"))
	be.Emit(ctx, "agent-2", KindObservation, observation(9, "proceed"))

	if got := be.Dropped(); got != 0 {
		t.Fatalf("expected 0 dropped events, got %d", got)
	}

	recs, err := sink.Observations(ctx, "agent-1", 0)
	if err != nil {
		t.Fatalf("observations: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("expected 3 observation records, got %d", len(recs))
	}
	for i, want := range []int64{1, 2, 3} {
		if recs[i].UpdateSeq != want {
			t.Errorf("record %d: expected update_seq %d, got %d", i, want, recs[i].UpdateSeq)
		}
	}

	first := recs[0]
	if len(first.Drift) != 3 || first.Drift[1] != 0.2 {
		t.Errorf("drift did not round-trip: %v", first.Drift)
	}
	if first.Complexity == nil || *first.Complexity != 0.4 {
		t.Errorf("complexity did not round-trip: %v", first.Complexity)
	}
	if first.Outcome.Action != "proceed" || first.Outcome.Regime != "CONVERGENCE" {
		t.Errorf("outcome did not round-trip: %+v", first.Outcome)
	}
	if recs[2].Outcome.Action != "pause" {
		t.Errorf("expected third record action 'pause', got %q", recs[2].Outcome.Action)
	}
}

func TestObservations_Limit(t *testing.T) {
	sink, _ := setupSink(t)
	ctx := context.Background()
	be := NewBestEffort(sink, nil)

	for seq := int64(1); seq <= 5; seq++ {
		be.Emit(ctx, "agent-1", KindObservation, observation(seq, "proceed"))
	}

	recs, err := sink.Observations(ctx, "agent-1", 2)
	if err != nil {
		t.Fatalf("observations: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
	// Most recent two, oldest first
	if recs[0].UpdateSeq != 4 || recs[1].UpdateSeq != 5 {
		t.Errorf("expected update_seq [4 5], got [%d %d]", recs[0].UpdateSeq, recs[1].UpdateSeq)
	}
}

func TestObservations_SkipsMalformedDetail(t *testing.T) {
	sink, db := setupSink(t)
	ctx := context.Background()

	_, err := db.Exec(
		`INSERT INTO audit_log (event_id, agent_id, kind, detail, created_at) VALUES (?, ?, ?, ?, ?)`,
		"ev-bad", "agent-1", string(KindObservation), `{not json`, "2026-03-01T00:00:00Z",
	)
	if err != nil {
		t.Fatalf("insert malformed row: %v", err)
	}
	NewBestEffort(sink, nil).Emit(ctx, "agent-1", KindObservation, observation(7, "proceed"))

	recs, err := sink.Observations(ctx, "agent-1", 0)
	if err != nil {
		t.Fatalf("observations: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("expected malformed row skipped, got %d records", len(recs))
	}
	if recs[0].UpdateSeq != 7 {
		t.Errorf("expected update_seq 7, got %d", recs[0].UpdateSeq)
	}
}

// #endregion observations-tests

// #region best-effort-tests
func TestBestEffort_AbsorbsSinkFailure(t *testing.T) {
	sink, db := setupSink(t)
	db.Close()

	be := NewBestEffort(sink, zap.NewNop())
	be.Record(context.Background(), Event{AgentID: "agent-1", Kind: KindObservation})
	be.Emit(context.Background(), "agent-1", KindResonance, ResonanceRecord{Index: 1})

	if got := be.Dropped(); got != 2 {
		t.Errorf("expected 2 dropped events, got %d", got)
	}
}

func TestBestEffort_MarshalFailure(t *testing.T) {
	sink, db := setupSink(t)

	be := NewBestEffort(sink, nil)
	be.Emit(context.Background(), "agent-1", KindControllerUpdate, ControllerRecord{Coupling: math.NaN()})

	if got := be.Dropped(); got != 1 {
		t.Errorf("expected 1 dropped event, got %d", got)
	}
	var count int
	db.QueryRow("SELECT COUNT(*) FROM audit_log").Scan(&count)
	if count != 0 {
		t.Errorf("expected no rows for unserializable detail, got %d", count)
	}
}

func TestBestEffort_NilSink(t *testing.T) {
	be := NewBestEffort(nil, nil)
	be.Emit(context.Background(), "agent-1", KindObservation, observation(1, "proceed"))
	if got := be.Dropped(); got != 0 {
		t.Errorf("expected nop sink to accept events, got %d dropped", got)
	}
}

// #endregion best-effort-tests

// #region null-if-empty-tests
func TestNullIfEmpty_Empty(t *testing.T) {
	if result := nullIfEmpty(""); result != nil {
		t.Errorf("expected nil for empty string, got %v", result)
	}
}

func TestNullIfEmpty_NonEmpty(t *testing.T) {
	if result := nullIfEmpty("hello"); result != "hello" {
		t.Errorf("expected 'hello', got %v", result)
	}
}

// #endregion null-if-empty-tests
