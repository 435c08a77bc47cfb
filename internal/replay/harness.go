package replay

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/danielpatrickdp/agent-governor/internal/audit"
	"github.com/danielpatrickdp/agent-governor/internal/gate"
	"github.com/danielpatrickdp/agent-governor/internal/governor"
	"github.com/danielpatrickdp/agent-governor/internal/lock"
	"github.com/danielpatrickdp/agent-governor/internal/repo"
	"github.com/danielpatrickdp/agent-governor/internal/resonance"
	"github.com/danielpatrickdp/agent-governor/internal/state"
)

// #region types

// StepResult captures the outcome of replaying one observation, plus any
// divergence from the fixture's expectations.
type StepResult struct {
	Step      int             `json:"step"`
	Status    governor.Status `json:"status"`
	Action    gate.Action     `json:"action"`
	Edge      gate.Edge       `json:"edge,omitempty"`
	Reason    string          `json:"reason,omitempty"`
	Tier      resonance.Tier  `json:"tier"`
	Regime    state.Regime    `json:"regime"`
	Risk      float64         `json:"risk"`
	Coherence float64         `json:"coherence"`

	// Mismatches lists expectation fields that diverged, empty on a match.
	Mismatches []string `json:"mismatches,omitempty"`
}

// Summary provides aggregate stats from a replay run.
type Summary struct {
	Steps      int               `json:"steps"`
	Proceeds   int               `json:"proceeds"`
	Pauses     int               `json:"pauses"`
	HardBlocks int               `json:"hard_blocks"`
	Mismatched int               `json:"mismatched"`
	Final      *state.AgentState `json:"final,omitempty"`
}

// #endregion types

// #region replay

// Replay runs the fixture through a fresh in-memory governor: memory store,
// in-process locking, no audit sink. A step that errors aborts the run;
// fixtures are recordings of valid sessions, so an error means the fixture
// itself is broken.
func Replay(ctx context.Context, f *Fixture, cfg governor.Config) ([]StepResult, Summary, error) {
	agentID := f.AgentID
	if agentID == "" {
		agentID = "replay"
	}

	store := repo.NewMemory()
	if f.Start != nil {
		st := f.Start.Clone()
		st.AgentID = agentID
		if err := store.Save(ctx, st); err != nil {
			return nil, Summary{}, fmt.Errorf("seed start state: %w", err)
		}
	}
	g := governor.New(store, lock.NewInProcess(lock.DefaultConfig()), audit.NopSink{}, cfg, zap.NewNop())

	expect := make(map[int]Expected, len(f.Expected))
	for _, e := range f.Expected {
		expect[e.Step] = e
	}

	results := make([]StepResult, 0, len(f.Steps))
	for i, step := range f.Steps {
		res, err := g.ProcessUpdate(ctx, agentID, step.ToObservation())
		if err != nil {
			return results, Summary{}, fmt.Errorf("step %d: %w", i+1, err)
		}

		sr := StepResult{
			Step:      i + 1,
			Status:    res.Status,
			Action:    res.Decision.Action,
			Edge:      res.Decision.Edge,
			Reason:    res.Decision.Reason,
			Tier:      res.Tier,
			Regime:    res.Metrics.Regime,
			Risk:      res.Metrics.RiskScore,
			Coherence: res.Metrics.Coherence,
		}
		if e, ok := expect[sr.Step]; ok {
			sr.Mismatches = diff(e, sr)
		}
		results = append(results, sr)
	}

	final, err := g.GetMetrics(ctx, agentID)
	if err != nil {
		return results, Summary{}, fmt.Errorf("final state: %w", err)
	}
	return results, summarize(results, final), nil
}

// diff compares the populated expectation fields against the replayed step.
func diff(want Expected, got StepResult) []string {
	var out []string
	if want.Status != "" && want.Status != string(got.Status) {
		out = append(out, fmt.Sprintf("status: want %s, got %s", want.Status, got.Status))
	}
	if want.Action != "" && want.Action != string(got.Action) {
		out = append(out, fmt.Sprintf("action: want %s, got %s", want.Action, got.Action))
	}
	if want.Edge != "" && want.Edge != string(got.Edge) {
		out = append(out, fmt.Sprintf("edge: want %s, got %s", want.Edge, got.Edge))
	}
	if want.Tier != "" && want.Tier != string(got.Tier) {
		out = append(out, fmt.Sprintf("tier: want %s, got %s", want.Tier, got.Tier))
	}
	if want.Regime != "" && want.Regime != string(got.Regime) {
		out = append(out, fmt.Sprintf("regime: want %s, got %s", want.Regime, got.Regime))
	}
	return out
}

func summarize(results []StepResult, final *state.AgentState) Summary {
	s := Summary{Steps: len(results), Final: final}
	for _, r := range results {
		switch r.Action {
		case gate.ActionProceed:
			s.Proceeds++
		case gate.ActionPause:
			s.Pauses++
		}
		if r.Tier == resonance.TierHardBlock {
			s.HardBlocks++
		}
		if len(r.Mismatches) > 0 {
			s.Mismatched++
		}
	}
	return s
}

// #endregion replay
