package replay

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/danielpatrickdp/agent-governor/internal/gate"
	"github.com/danielpatrickdp/agent-governor/internal/governor"
	"github.com/danielpatrickdp/agent-governor/internal/state"
)

// helper: a small-drift observation step with plain prose.
func calmStep(text string) Step {
	cx := 0.2
	return Step{Drift: []float64{0.05, -0.02, 0.01}, Complexity: &cx, Text: text}
}

// helper: fixture with n calm steps and no expectations.
func calmFixture(n int) *Fixture {
	f := &Fixture{Description: "calm run", AgentID: "replay-test"}
	for i := 0; i < n; i++ {
		f.Steps = append(f.Steps, calmStep(fmt.Sprintf("Completed step %d of the plan without surprises.", i+1)))
	}
	return f
}

// helper: defaults matching the reference governor tuning.
func replayDefaults() state.Defaults {
	return state.Defaults{
		Coupling:           0.10,
		CoherenceThreshold: 0.30,
		RiskThreshold:      0.60,
		VoidThreshold:      0.20,
		HistoryCapacity:    100,
	}
}

// 1. Calm run: small drift and plain prose never pause, and the replay
// agent accumulates one update per step.
func TestReplay_CalmRunAllProceeds(t *testing.T) {
	f := calmFixture(3)

	results, sum, err := Replay(context.Background(), f, governor.DefaultConfig())
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	for _, r := range results {
		if r.Action != gate.ActionProceed {
			t.Errorf("step %d: expected proceed, got %s (reason: %s)", r.Step, r.Action, r.Reason)
		}
		if r.Status != governor.StatusHealthy {
			t.Errorf("step %d: expected healthy, got %s", r.Step, r.Status)
		}
		if len(r.Mismatches) != 0 {
			t.Errorf("step %d: unexpected mismatches %v", r.Step, r.Mismatches)
		}
	}
	if sum.Proceeds != 3 || sum.Pauses != 0 || sum.HardBlocks != 0 || sum.Mismatched != 0 {
		t.Errorf("summary counts off: %+v", sum)
	}
	if sum.Final == nil {
		t.Fatal("expected final state")
	}
	if sum.Final.UpdateCount != 3 {
		t.Errorf("expected final update count 3, got %d", sum.Final.UpdateCount)
	}
	if sum.Final.AgentID != "replay-test" {
		t.Errorf("expected agent replay-test, got %s", sum.Final.AgentID)
	}
}

// 2. Missing agent id: the harness falls back to its own identity.
func TestReplay_DefaultAgentID(t *testing.T) {
	f := calmFixture(1)
	f.AgentID = ""

	_, sum, err := Replay(context.Background(), f, governor.DefaultConfig())
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if sum.Final.AgentID != "replay" {
		t.Errorf("expected fallback agent id, got %s", sum.Final.AgentID)
	}
}

// 3. Divergence reporting: an expectation that contradicts the replayed
// decision lands on its step only, and the summary counts it once.
func TestReplay_ExpectationMismatchReported(t *testing.T) {
	f := calmFixture(3)
	f.Expected = []Expected{
		{Step: 1, Action: "proceed"},
		{Step: 2, Action: "pause"},
	}

	results, sum, err := Replay(context.Background(), f, governor.DefaultConfig())
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if len(results[0].Mismatches) != 0 {
		t.Errorf("step 1: unexpected mismatches %v", results[0].Mismatches)
	}
	if len(results[1].Mismatches) != 1 {
		t.Fatalf("step 2: expected 1 mismatch, got %v", results[1].Mismatches)
	}
	if !strings.Contains(results[1].Mismatches[0], "action") {
		t.Errorf("mismatch should name the field: %s", results[1].Mismatches[0])
	}
	if sum.Mismatched != 1 {
		t.Errorf("expected 1 mismatched step, got %d", sum.Mismatched)
	}
}

// 4. Sparse expectations: a position-only expectation compares nothing and
// can never diverge.
func TestReplay_EmptyExpectedFieldsSkipped(t *testing.T) {
	f := calmFixture(2)
	f.Expected = []Expected{{Step: 1}, {Step: 2}}

	results, sum, err := Replay(context.Background(), f, governor.DefaultConfig())
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	for _, r := range results {
		if len(r.Mismatches) != 0 {
			t.Errorf("step %d: unexpected mismatches %v", r.Step, r.Mismatches)
		}
	}
	if sum.Mismatched != 0 {
		t.Errorf("expected no mismatched steps, got %d", sum.Mismatched)
	}
}

// 5. Seeded start: the snapshot is cloned in under the fixture's agent id,
// and a deep void seed pauses immediately at critical severity.
func TestReplay_StartStateSeedsAgent(t *testing.T) {
	start := state.New("donor", replayDefaults())
	start.Void = 0.9
	start.UpdateCount = 2
	start.Time = 0.2

	f := &Fixture{
		Description: "void seed",
		AgentID:     "seeded",
		Start:       start,
		Steps:       []Step{calmStep("Wrapped up the remaining cleanup item from earlier.")},
	}

	results, sum, err := Replay(context.Background(), f, governor.DefaultConfig())
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	r := results[0]
	if r.Action != gate.ActionPause {
		t.Fatalf("expected pause, got %s (reason: %s)", r.Action, r.Reason)
	}
	if r.Edge != gate.EdgeVoid {
		t.Errorf("expected void edge, got %s", r.Edge)
	}
	if r.Status != governor.StatusCritical {
		t.Errorf("expected critical status, got %s", r.Status)
	}
	if sum.Pauses != 1 {
		t.Errorf("expected 1 pause, got %d", sum.Pauses)
	}
	if sum.Final.AgentID != "seeded" {
		t.Errorf("expected fixture agent id to win, got %s", sum.Final.AgentID)
	}
	if sum.Final.UpdateCount != 3 {
		t.Errorf("expected update count 3 (seed 2 + 1 step), got %d", sum.Final.UpdateCount)
	}
}

// 6. Determinism: identical fixture and tuning reproduce identical
// decisions and scores.
func TestReplay_Deterministic(t *testing.T) {
	f := calmFixture(4)

	r1, _, err := Replay(context.Background(), f, governor.DefaultConfig())
	if err != nil {
		t.Fatalf("first Replay: %v", err)
	}
	r2, _, err := Replay(context.Background(), f, governor.DefaultConfig())
	if err != nil {
		t.Fatalf("second Replay: %v", err)
	}
	if len(r1) != len(r2) {
		t.Fatalf("result lengths differ: %d vs %d", len(r1), len(r2))
	}
	for i := range r1 {
		if r1[i].Action != r2[i].Action {
			t.Errorf("step %d: action differs: %s vs %s", i+1, r1[i].Action, r2[i].Action)
		}
		if r1[i].Risk != r2[i].Risk {
			t.Errorf("step %d: risk differs: %f vs %f", i+1, r1[i].Risk, r2[i].Risk)
		}
		if r1[i].Coherence != r2[i].Coherence {
			t.Errorf("step %d: coherence differs: %f vs %f", i+1, r1[i].Coherence, r2[i].Coherence)
		}
	}
}

// 7. Abort on error: a dead context stops the run at its first step and the
// error names the step.
func TestReplay_CancelledContextAborts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := Replay(ctx, calmFixture(2), governor.DefaultConfig())
	if err == nil {
		t.Fatal("expected error from cancelled context")
	}
	if !strings.Contains(err.Error(), "step 1") {
		t.Errorf("error should name the failing step: %v", err)
	}
}
