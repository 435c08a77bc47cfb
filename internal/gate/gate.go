// Package gate turns a governed state plus one response into the operational
// verdict. Risk blends a state-side objective with content heuristics; the
// decision itself is a strict priority chain of hard checks.
package gate

import (
	"fmt"
	"math"

	"github.com/danielpatrickdp/agent-governor/internal/evolve"
	"github.com/danielpatrickdp/agent-governor/internal/mathx"
	"github.com/danielpatrickdp/agent-governor/internal/signals"
	"github.com/danielpatrickdp/agent-governor/internal/state"
)

// #region risk

// EstimateRisk blends the state objective with the content heuristics.
// The reported complexity pointer may be nil; reconciliation decides what
// value actually enters the blend.
func EstimateRisk(st *state.AgentState, drift []float64, text string, reported *float64, cfg Config, sigCfg signals.Config) Breakdown {
	obj := objective(st, drift, cfg)
	stateRisk := bandRisk(obj, cfg)

	complexity := signals.Reconcile(signals.EstimateComplexity(text), reported, sigCfg)
	contentRisk := signals.ContentRisk(text, st.Coherence, complexity, sigCfg)

	return Breakdown{
		Risk:        mathx.Clamp01(cfg.StateWeight*stateRisk + cfg.ContentWeight*contentRisk),
		StateRisk:   stateRisk,
		ContentRisk: contentRisk,
		Objective:   obj,
		Complexity:  complexity,
	}
}

// objective scores how safe the state itself looks; drift pressure
// subtracts from it.
func objective(st *state.AgentState, drift []float64, cfg Config) float64 {
	return cfg.ObjCoherenceWeight*mathx.Clamp01(st.Coherence) +
		cfg.ObjIntegrityWeight*mathx.Clamp01(st.Integrity) +
		cfg.ObjEntropyWeight*mathx.Clamp01(1-st.Entropy) +
		cfg.ObjVoidWeight*mathx.Clamp01(1-math.Abs(st.Void)) -
		cfg.ObjDriftPenalty*evolve.NormDrift(drift)
}

// bandRisk maps the objective into state risk across the three bands, with
// linear interpolation inside each.
func bandRisk(obj float64, cfg Config) float64 {
	switch {
	case obj >= cfg.SafePivot:
		t := (mathx.Clamp(obj, cfg.SafePivot, 1) - cfg.SafePivot) / (1 - cfg.SafePivot)
		return cfg.SafeRiskCeiling * (1 - t)
	case obj >= cfg.CautionPivot:
		t := (obj - cfg.CautionPivot) / (cfg.SafePivot - cfg.CautionPivot)
		return cfg.CautionRiskCeiling - t*(cfg.CautionRiskCeiling-cfg.SafeRiskCeiling)
	default:
		t := mathx.Clamp(obj, 0, cfg.CautionPivot) / cfg.CautionPivot
		return 1 - t*(1-cfg.CautionRiskCeiling)
	}
}

// #endregion risk

// #region decide

// Decide runs the priority chain. Each check is a hard gate; nothing below
// a tripped check is consulted.
func Decide(risk float64, st *state.AgentState, cfg Config) Decision {
	margin := ComputeMargin(risk, st, cfg)

	if st.VoidActive {
		return Decision{
			Action: ActionPause,
			Edge:   EdgeVoid,
			Reason: fmt.Sprintf("void state active: |V| %.2f over threshold %.2f", math.Abs(st.Void), st.VoidThreshold),
			Margin: margin,
		}
	}
	if st.Coherence < st.CoherenceThreshold {
		return Decision{
			Action: ActionPause,
			Edge:   EdgeCoherence,
			Reason: fmt.Sprintf("coherence %.2f below critical threshold %.2f", st.Coherence, st.CoherenceThreshold),
			Margin: margin,
		}
	}
	if risk < cfg.ApproveThreshold {
		return Decision{
			Action: ActionProceed,
			Reason: fmt.Sprintf("risk %.2f below approval threshold", risk),
			Margin: margin,
		}
	}
	if risk < st.RiskThreshold {
		return Decision{
			Action:   ActionProceed,
			Reason:   fmt.Sprintf("risk %.2f elevated but below pause threshold %.2f", risk, st.RiskThreshold),
			Guidance: guidance(risk, st.RiskThreshold, cfg),
			Margin:   margin,
		}
	}
	return Decision{
		Action: ActionPause,
		Edge:   EdgeRisk,
		Reason: fmt.Sprintf("risk %.2f at or above pause threshold %.2f", risk, st.RiskThreshold),
		Margin: margin,
	}
}

func guidance(risk, pauseThreshold float64, cfg Config) string {
	remaining := (pauseThreshold - risk) / pauseThreshold
	if remaining < cfg.GuidanceMarginFrac {
		return fmt.Sprintf("risk %.2f is within %.0f%% of the pause threshold; do not increase complexity", risk, remaining*100)
	}
	return fmt.Sprintf("risk %.2f is elevated; keep output scope steady", risk)
}

// #endregion decide

// #region margin

// ComputeMargin reports the signed distance to the most pressing boundary.
// A violated boundary (negative distance) always outranks a near one, and
// the deepest violation wins.
func ComputeMargin(risk float64, st *state.AgentState, cfg Config) Margin {
	dists := []struct {
		d    float64
		edge Edge
	}{
		{st.RiskThreshold - risk, EdgeRisk},
		{st.Coherence - st.CoherenceThreshold, EdgeCoherence},
		{st.VoidThreshold - math.Abs(st.Void), EdgeVoid},
	}

	worst := dists[0]
	nearest := dists[0]
	violated := false
	for _, c := range dists {
		if c.d < 0 && (!violated || c.d < worst.d) {
			worst = c
			violated = true
		}
		if c.d >= 0 && (nearest.d < 0 || c.d < nearest.d) {
			nearest = c
		}
	}

	if violated {
		sev := SeverityWarning
		if -worst.d >= cfg.MarginCriticalDepth {
			sev = SeverityCritical
		}
		return Margin{Distance: worst.d, Edge: worst.edge, Severity: sev}
	}

	sev := SeverityComfortable
	if nearest.d <= cfg.MarginTightBand {
		sev = SeverityTight
	}
	return Margin{Distance: nearest.d, Edge: nearest.edge, Severity: sev}
}

// #endregion margin
