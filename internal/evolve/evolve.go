// Package evolve implements the state-update rule. Advance is a pure
// function over an AgentState and one observation; every coefficient lives
// in Config so the rule can be retuned without touching the integration.
package evolve

import (
	"math"
	"time"

	"github.com/danielpatrickdp/agent-governor/internal/mathx"
	"github.com/danielpatrickdp/agent-governor/internal/state"
)

// #region advance

// Advance integrates one observation into st. The caller passes a clone and
// commits it only on success. On error the state is partially mutated and
// must be discarded.
func Advance(st *state.AgentState, in Input, cfg Config) (Result, error) {
	dt := cfg.DT
	if in.DT > 0 {
		dt = in.DT
	}

	driftNorm := NormDrift(in.Drift)
	complexity := mathx.Clamp01(mathx.Sanitize(in.Complexity, 0.5))
	perturb := st.Coupling * driftNorm

	prevE, prevI := st.Energy, st.Integrity
	prevS, prevV := st.Entropy, st.Void

	dE := cfg.EnergyRestoreRate*(cfg.EnergyRest-prevE) +
		cfg.EnergyPerturbGain*perturb +
		cfg.EnergyComplexityGain*(complexity-0.5)
	dI := cfg.IntegrityRestoreRate*(cfg.IntegrityRest-prevI) -
		cfg.IntegrityPerturbGain*perturb -
		cfg.IntegrityEntropyGain*(prevS-cfg.EntropyRest)
	dS := cfg.EntropyPerturbGain*perturb +
		cfg.EntropyComplexityGain*(complexity-0.5) -
		cfg.EntropyRelaxRate*(prevS-cfg.EntropyRest)

	st.Energy = mathx.Clamp01(prevE + dt*dE)
	st.Integrity = mathx.Clamp01(prevI + dt*dI)
	st.Entropy = mathx.Clamp(prevS+dt*dS, cfg.EntropyFloor, 1)

	// Void accumulates the realized E-I mismatch, not the raw derivatives,
	// so channel clamping feeds back into it.
	deltaE := st.Energy - prevE
	deltaI := st.Integrity - prevI
	dV := cfg.VoidGain*(deltaE-deltaI)/dt - cfg.VoidRelaxRate*prevV
	st.Void = mathx.Clamp(prevV+dt*dV, -1, 1)

	st.Coherence = Coherence(st.Void, cfg)

	st.UpdateCount++
	st.Time += dt
	st.UpdatedAt = time.Now().UTC()

	st.Histories.Energy.Push(st.Energy)
	st.Histories.Integrity.Push(st.Integrity)
	st.Histories.Entropy.Push(st.Entropy)
	st.Histories.Void.Push(st.Void)
	st.Histories.Coherence.Push(st.Coherence)
	st.Histories.Coupling.Push(st.Coupling)

	st.VoidThreshold = voidThreshold(st, cfg)
	st.VoidActive = math.Abs(st.Void) > st.VoidThreshold

	classifyRegime(st, prevS, prevI, cfg)

	if err := st.Validate(); err != nil {
		return Result{}, err
	}

	return Result{
		Deltas: Deltas{
			Energy:    deltaE,
			Integrity: deltaI,
			Entropy:   st.Entropy - prevS,
			Void:      st.Void - prevV,
		},
		DriftNorm:  driftNorm,
		Complexity: complexity,
	}, nil
}

// Coherence maps void magnitude to [0,1]: 1 at V=0, falling monotonically
// as |V| grows.
func Coherence(void float64, cfg Config) float64 {
	return 1.0 / (1.0 + cfg.CoherenceSlope*math.Pow(math.Abs(void), cfg.CoherenceShape))
}

// #endregion advance

// #region drift

// NormDrift collapses a drift vector to a [0,1] magnitude. Non-finite
// components are zeroed, and the L2 norm is scaled by sqrt(len) so a vector
// of all-ones maps to 1 regardless of dimension.
func NormDrift(drift []float64) float64 {
	if len(drift) == 0 {
		return 0
	}
	clean := make([]float64, len(drift))
	for i, v := range drift {
		clean[i] = mathx.Sanitize(v, 0)
	}
	return mathx.Clamp01(mathx.Norm(clean) / math.Sqrt(float64(len(drift))))
}

// #endregion drift

// #region threshold

// voidThreshold derives the adaptive void-activation threshold from the
// recent |V| history: mean + sigma-factor * stddev, clamped to the
// configured band. Called after the current sample is pushed.
func voidThreshold(st *state.AgentState, cfg Config) float64 {
	tail := st.Histories.Void.Tail(cfg.VoidStatsWindow)
	abs := make([]float64, len(tail))
	for i, v := range tail {
		abs[i] = math.Abs(v)
	}
	raw := mathx.Mean(abs) + cfg.VoidSigmaFactor*mathx.StdDev(abs)
	return mathx.Clamp(raw, cfg.VoidThresholdMin, cfg.VoidThresholdMax)
}

// #endregion threshold

// #region regime

// classifyRegime assigns the operating regime from the post-step channels.
// STABLE requires the integrity/entropy gate to hold for StableStreakRequired
// consecutive updates; one miss resets the streak.
func classifyRegime(st *state.AgentState, prevS, prevI float64, cfg Config) {
	if st.Integrity >= cfg.StableIntegrityMin && st.Entropy <= cfg.StableEntropyMax {
		st.StableStreak++
	} else {
		st.StableStreak = 0
	}
	if st.StableStreak >= state.StableStreakRequired {
		st.Regime = state.RegimeStable
		return
	}

	// Too little history to read a trend: assume the worst.
	if st.Histories.Entropy.Len() < 2 {
		st.Regime = state.RegimeDivergence
		return
	}

	deltaS := st.Entropy - prevS
	deltaI := st.Integrity - prevI

	switch {
	case deltaS > 0 || math.Abs(st.Void) > st.VoidThreshold:
		st.Regime = state.RegimeDivergence
	case st.Entropy <= cfg.ConvergenceEntropyMax && deltaS <= 0 &&
		st.Integrity >= cfg.ConvergenceIntegrityMin:
		st.Regime = state.RegimeConvergence
	case deltaS < 0 && deltaI > 0:
		st.Regime = state.RegimeTransition
	}
	// Flat step with calm void: regime carries over.
}

// #endregion regime
