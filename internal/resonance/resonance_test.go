package resonance

import (
	"testing"

	"github.com/danielpatrickdp/agent-governor/internal/state"
)

func TestWindowStaysBounded(t *testing.T) {
	cfg := DefaultConfig()
	det := &state.DetectorState{}

	for i := 0; i < 30; i++ {
		Record(det, 0.8, 0.2, "proceed", 0.30, 0.60, cfg)
	}
	if len(det.Window) != cfg.Window {
		t.Fatalf("window length = %d, want %d", len(det.Window), cfg.Window)
	}
}

func TestSteadySeriesStaysQuiet(t *testing.T) {
	cfg := DefaultConfig()
	det := &state.DetectorState{}

	var r Reading
	for i := 0; i < 20; i++ {
		r = Record(det, 0.8, 0.2, "proceed", 0.30, 0.60, cfg)
	}
	if r.Resonant {
		t.Fatalf("steady series flagged resonant: %+v", r)
	}
	if r.Index > 0.5 {
		t.Fatalf("index = %g on a steady series", r.Index)
	}
	if r.Flips != 0 {
		t.Fatalf("flips = %d on a constant decision", r.Flips)
	}
}

func TestAlternatingSignsTripIndex(t *testing.T) {
	cfg := DefaultConfig()
	det := &state.DetectorState{}

	// Coherence hops across its threshold every sample; decision constant,
	// so only the index can trip.
	var r Reading
	for i := 0; i < 12; i++ {
		coh := 0.20
		if i%2 == 0 {
			coh = 0.40
		}
		r = Record(det, coh, 0.2, "proceed", 0.30, 0.60, cfg)
	}
	if !r.Resonant {
		t.Fatalf("alternating signs did not trip resonance: %+v", r)
	}
	if r.Trigger != TriggerIndex {
		t.Fatalf("trigger = %q, want %q", r.Trigger, TriggerIndex)
	}
	if r.Index < cfg.IndexThreshold {
		t.Fatalf("index = %g, want >= %g", r.Index, cfg.IndexThreshold)
	}
}

func TestDecisionFlipsTrip(t *testing.T) {
	cfg := DefaultConfig()
	det := &state.DetectorState{}

	// Signs constant, label alternates: the flip counter must trip alone.
	var r Reading
	for i := 0; i < 8; i++ {
		decision := "proceed"
		if i%2 == 0 {
			decision = "pause"
		}
		r = Record(det, 0.8, 0.2, decision, 0.30, 0.60, cfg)
	}
	if !r.Resonant {
		t.Fatalf("flip series did not trip resonance: %+v", r)
	}
	if r.Trigger != TriggerFlips {
		t.Fatalf("trigger = %q, want %q", r.Trigger, TriggerFlips)
	}
	if r.Flips < cfg.FlipThreshold {
		t.Fatalf("flips = %d, want >= %d", r.Flips, cfg.FlipThreshold)
	}
}

func TestIndexTracksAlternationRate(t *testing.T) {
	cfg := DefaultConfig()

	run := func(period int) float64 {
		det := &state.DetectorState{}
		var r Reading
		for i := 0; i < 32; i++ {
			coh := 0.20
			if (i/period)%2 == 0 {
				coh = 0.40
			}
			r = Record(det, coh, 0.2, "proceed", 0.30, 0.60, cfg)
		}
		return r.Index
	}

	fast := run(1)
	slow := run(4)
	if fast <= slow {
		t.Fatalf("faster alternation scored lower: fast %g, slow %g", fast, slow)
	}
}

func TestDampenStepBoundedAndDirected(t *testing.T) {
	cfg := DefaultConfig()
	st := state.New("agent-1", state.Defaults{
		Coupling:           0.12,
		CoherenceThreshold: 0.30,
		RiskThreshold:      0.60,
		HistoryCapacity:    10,
	})

	// Far-away observation: step must clamp at MaxStep, toward the value.
	Dampen(st, 0.9, 0.95, cfg)
	if got := st.CoherenceThreshold; got != 0.30+cfg.MaxStep {
		t.Fatalf("coherence threshold = %g, want %g", got, 0.30+cfg.MaxStep)
	}
	if got := st.RiskThreshold; got != 0.60+cfg.MaxStep {
		t.Fatalf("risk threshold = %g, want %g", got, 0.60+cfg.MaxStep)
	}

	// Observation below: nudge goes the other way.
	st.CoherenceThreshold = 0.30
	Dampen(st, 0.28, 0.58, cfg)
	if st.CoherenceThreshold >= 0.30 {
		t.Fatalf("threshold did not move toward lower coherence: %g", st.CoherenceThreshold)
	}
}

func TestDampenRespectsHardRanges(t *testing.T) {
	cfg := DefaultConfig()
	st := state.New("agent-1", state.Defaults{
		Coupling:           0.12,
		CoherenceThreshold: 0.30,
		RiskThreshold:      0.60,
		HistoryCapacity:    10,
	})

	for i := 0; i < 200; i++ {
		Dampen(st, 1.0, 1.0, cfg)
	}
	if st.CoherenceThreshold > cfg.CoherenceThresholdMax {
		t.Fatalf("coherence threshold %g above hard max %g", st.CoherenceThreshold, cfg.CoherenceThresholdMax)
	}
	if st.RiskThreshold > cfg.RiskThresholdMax {
		t.Fatalf("risk threshold %g above hard max %g", st.RiskThreshold, cfg.RiskThresholdMax)
	}

	for i := 0; i < 200; i++ {
		Dampen(st, 0.0, 0.0, cfg)
	}
	if st.CoherenceThreshold < cfg.CoherenceThresholdMin {
		t.Fatalf("coherence threshold %g below hard min %g", st.CoherenceThreshold, cfg.CoherenceThresholdMin)
	}
	if st.RiskThreshold < cfg.RiskThresholdMin {
		t.Fatalf("risk threshold %g below hard min %g", st.RiskThreshold, cfg.RiskThresholdMin)
	}
}

func TestClassifyTiers(t *testing.T) {
	cfg := DefaultConfig()

	cases := []struct {
		name      string
		coherence float64
		risk      float64
		resonant  bool
		want      Tier
	}{
		{"calm", 0.8, 0.2, false, TierProceed},
		{"resonant-midband", 0.5, 0.5, true, TierSoftDampen},
		{"coherence-floor", 0.10, 0.2, false, TierHardBlock},
		{"risk-ceiling", 0.8, 0.90, false, TierHardBlock},
		{"floor-beats-resonance", 0.10, 0.2, true, TierHardBlock},
	}
	for _, tc := range cases {
		if got := Classify(tc.coherence, tc.risk, tc.resonant, cfg); got != tc.want {
			t.Fatalf("%s: tier = %q, want %q", tc.name, got, tc.want)
		}
	}
}
