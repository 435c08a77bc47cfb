package evolve

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/danielpatrickdp/agent-governor/internal/state"
)

func testState() *state.AgentState {
	return state.New("agent-1", state.Defaults{
		Coupling:           0.12,
		CoherenceThreshold: 0.30,
		RiskThreshold:      0.60,
		VoidThreshold:      0.10,
		HistoryCapacity:    1000,
	})
}

func step(t *testing.T, st *state.AgentState, in Input, cfg Config) Result {
	t.Helper()
	res, err := Advance(st, in, cfg)
	if err != nil {
		t.Fatalf("advance: %v", err)
	}
	return res
}

func TestAdvanceBoundsAlways(t *testing.T) {
	cfg := DefaultConfig()
	st := testState()
	rng := rand.New(rand.NewSource(1))

	for i := 0; i < 500; i++ {
		in := Input{
			Drift: []float64{
				rng.Float64()*4 - 2,
				rng.Float64()*4 - 2,
				rng.Float64()*4 - 2,
				rng.Float64()*4 - 2,
			},
			Complexity: rng.Float64(),
		}
		if i%97 == 0 {
			in.Complexity = math.NaN()
		}
		step(t, st, in, cfg)

		if st.Energy < 0 || st.Energy > 1 {
			t.Fatalf("step %d: energy out of bounds: %g", i, st.Energy)
		}
		if st.Integrity < 0 || st.Integrity > 1 {
			t.Fatalf("step %d: integrity out of bounds: %g", i, st.Integrity)
		}
		if st.Entropy < cfg.EntropyFloor || st.Entropy > 1 {
			t.Fatalf("step %d: entropy out of bounds: %g", i, st.Entropy)
		}
		if st.Void < -1 || st.Void > 1 {
			t.Fatalf("step %d: void out of bounds: %g", i, st.Void)
		}
		if st.Coherence <= 0 || st.Coherence > 1 {
			t.Fatalf("step %d: coherence out of bounds: %g", i, st.Coherence)
		}
		if st.VoidThreshold < cfg.VoidThresholdMin || st.VoidThreshold > cfg.VoidThresholdMax {
			t.Fatalf("step %d: void threshold out of band: %g", i, st.VoidThreshold)
		}
	}
	if st.UpdateCount != 500 {
		t.Fatalf("update count = %d, want 500", st.UpdateCount)
	}
}

func TestCalmStreamConverges(t *testing.T) {
	cfg := DefaultConfig()
	st := testState()

	// Knock the state around first so convergence is doing real work.
	for i := 0; i < 40; i++ {
		step(t, st, Input{Drift: []float64{1.5, -1.2, 0.8}, Complexity: 0.9}, cfg)
	}
	// Neutral stream: no drift, midpoint complexity.
	for i := 0; i < 800; i++ {
		step(t, st, Input{Complexity: 0.5}, cfg)
	}

	if math.Abs(st.Void) > 0.02 {
		t.Fatalf("void did not converge: %g", st.Void)
	}
	if st.Coherence < 0.99 {
		t.Fatalf("coherence did not recover: %g", st.Coherence)
	}
}

func TestQuietStreamReachesStable(t *testing.T) {
	cfg := DefaultConfig()
	st := testState()

	for i := 0; i < 400; i++ {
		step(t, st, Input{Complexity: 0}, cfg)
	}

	if st.Entropy > cfg.StableEntropyMax {
		t.Fatalf("entropy still %g after quiet stream", st.Entropy)
	}
	if st.Integrity < cfg.StableIntegrityMin {
		t.Fatalf("integrity still %g after quiet stream", st.Integrity)
	}
	if st.Regime != state.RegimeStable {
		t.Fatalf("regime = %s, want %s", st.Regime, state.RegimeStable)
	}
	if st.StableStreak < state.StableStreakRequired {
		t.Fatalf("stable streak = %d, want >= %d", st.StableStreak, state.StableStreakRequired)
	}
}

func TestFirstUpdateDefaultsToDivergence(t *testing.T) {
	st := testState()
	step(t, st, Input{Drift: []float64{0.1, 0.1, 0.1}, Complexity: 0.5}, DefaultConfig())

	if st.Regime != state.RegimeDivergence {
		t.Fatalf("regime after first update = %s, want %s", st.Regime, state.RegimeDivergence)
	}
}

func TestStableRequiresConsecutiveStreak(t *testing.T) {
	cfg := DefaultConfig()
	st := testState()

	// Drive into the stable gate.
	for i := 0; i < 400; i++ {
		step(t, st, Input{Complexity: 0}, cfg)
	}
	if st.Regime != state.RegimeStable {
		t.Fatalf("precondition: regime = %s", st.Regime)
	}

	// One loud observation breaks the streak.
	step(t, st, Input{Drift: []float64{2, 2, 2}, Complexity: 1}, cfg)
	if st.StableStreak != 0 {
		t.Fatalf("streak after violation = %d, want 0", st.StableStreak)
	}
	if st.Regime == state.RegimeStable {
		t.Fatal("regime stayed STABLE after gate violation")
	}
}

func TestEntropyFloorHolds(t *testing.T) {
	cfg := DefaultConfig()
	st := testState()

	for i := 0; i < 600; i++ {
		step(t, st, Input{Complexity: 0}, cfg)
		if st.Entropy < cfg.EntropyFloor {
			t.Fatalf("entropy %g below floor at step %d", st.Entropy, i)
		}
	}
	if st.Entropy != cfg.EntropyFloor {
		t.Fatalf("entropy settled at %g, want floor %g", st.Entropy, cfg.EntropyFloor)
	}
}

func TestDriftRaisesEntropy(t *testing.T) {
	cfg := DefaultConfig()
	st := testState()
	before := st.Entropy

	res := step(t, st, Input{Drift: []float64{1.8, -1.8, 1.8}, Complexity: 0.9}, cfg)

	if st.Entropy <= before {
		t.Fatalf("entropy did not rise: %g -> %g", before, st.Entropy)
	}
	if res.Deltas.Entropy <= 0 {
		t.Fatalf("entropy delta = %g, want > 0", res.Deltas.Entropy)
	}
	if res.DriftNorm <= 0 || res.DriftNorm > 1 {
		t.Fatalf("drift norm = %g, want (0,1]", res.DriftNorm)
	}
}

func TestNonFiniteInputsSanitized(t *testing.T) {
	cfg := DefaultConfig()
	st := testState()

	res := step(t, st, Input{
		Drift:      []float64{math.NaN(), math.Inf(1), 0.5},
		Complexity: math.NaN(),
	}, cfg)

	if res.Complexity != 0.5 {
		t.Fatalf("sanitized complexity = %g, want 0.5", res.Complexity)
	}
	// Only the finite component should contribute to the norm.
	want := 0.5 / math.Sqrt(3)
	if math.Abs(res.DriftNorm-want) > 1e-12 {
		t.Fatalf("drift norm = %g, want %g", res.DriftNorm, want)
	}
	if err := st.Validate(); err != nil {
		t.Fatalf("state poisoned by sanitized input: %v", err)
	}
}

func TestPoisonedStateIsFatal(t *testing.T) {
	st := testState()
	st.Coupling = math.NaN()

	_, err := Advance(st, Input{Drift: []float64{0.5, 0.5, 0.5}, Complexity: 0.5}, DefaultConfig())
	if err == nil {
		t.Fatal("expected validation error for NaN coupling")
	}
	var verr *state.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("error type = %T, want *state.ValidationError", err)
	}
}

func TestCoherenceCurve(t *testing.T) {
	cfg := DefaultConfig()

	if c := Coherence(0, cfg); c != 1.0 {
		t.Fatalf("C(0) = %g, want 1", c)
	}
	prev := 1.0
	for _, v := range []float64{0.1, 0.25, 0.5, 0.75, 1.0} {
		c := Coherence(v, cfg)
		if c <= 0 || c >= prev {
			t.Fatalf("C(%g) = %g, not strictly decreasing from %g", v, c, prev)
		}
		if neg := Coherence(-v, cfg); neg != c {
			t.Fatalf("C(%g) = %g != C(%g) = %g", -v, neg, v, c)
		}
		prev = c
	}
}

func TestHistoriesAppendedPerStep(t *testing.T) {
	cfg := DefaultConfig()
	st := testState()

	for i := 0; i < 5; i++ {
		step(t, st, Input{Drift: []float64{0.3, 0.3, 0.3}, Complexity: 0.5}, cfg)
	}

	for name, h := range map[string]*state.History{
		"energy":    &st.Histories.Energy,
		"integrity": &st.Histories.Integrity,
		"entropy":   &st.Histories.Entropy,
		"void":      &st.Histories.Void,
		"coherence": &st.Histories.Coherence,
		"coupling":  &st.Histories.Coupling,
	} {
		if h.Len() != 5 {
			t.Fatalf("%s history length = %d, want 5", name, h.Len())
		}
	}
}
