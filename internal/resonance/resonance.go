// Package resonance watches the decision boundary for thrash. It keeps a
// short window of threshold-sign samples and decision labels, scores an
// exponentially smoothed oscillation index, and when the index or the flip
// count trips, nudges the thresholds toward observed reality instead of
// letting the boundary ring.
package resonance

import (
	"github.com/danielpatrickdp/agent-governor/internal/mathx"
	"github.com/danielpatrickdp/agent-governor/internal/state"
)

// #region config

// Config tunes detection and damping. The hard floor and ceiling are
// absolute and never damped.
type Config struct {
	Window         int     `yaml:"window" validate:"gte=2"`
	Lambda         float64 `yaml:"lambda" validate:"gt=0,lte=1"`
	IndexThreshold float64 `yaml:"index_threshold" validate:"gt=0"`
	FlipThreshold  int     `yaml:"flip_threshold" validate:"gte=1"`

	MaxStep float64 `yaml:"max_step" validate:"gt=0"`
	Gain    float64 `yaml:"gain" validate:"gt=0,lte=1"`

	// Hard ranges for the damped thresholds.
	CoherenceThresholdMin float64 `yaml:"coherence_threshold_min" validate:"gte=0"`
	CoherenceThresholdMax float64 `yaml:"coherence_threshold_max" validate:"gtfield=CoherenceThresholdMin"`
	RiskThresholdMin      float64 `yaml:"risk_threshold_min" validate:"gte=0"`
	RiskThresholdMax      float64 `yaml:"risk_threshold_max" validate:"gtfield=RiskThresholdMin"`

	// Absolute tier bounds, independent of any damping.
	HardCoherenceFloor float64 `yaml:"hard_coherence_floor" validate:"gte=0,lte=1"`
	HardRiskCeiling    float64 `yaml:"hard_risk_ceiling" validate:"gte=0,lte=1"`
}

// DefaultConfig returns the reference detector tuning.
func DefaultConfig() Config {
	return Config{
		Window:                8,
		Lambda:                0.3,
		IndexThreshold:        3.0,
		FlipThreshold:         3,
		MaxStep:               0.05,
		Gain:                  0.1,
		CoherenceThresholdMin: 0.10,
		CoherenceThresholdMax: 0.50,
		RiskThresholdMin:      0.40,
		RiskThresholdMax:      0.85,
		HardCoherenceFloor:    0.15,
		HardRiskCeiling:       0.85,
	}
}

// #endregion config

// #region reading

// Trigger names what tripped resonance.
type Trigger string

const (
	TriggerNone  Trigger = ""
	TriggerIndex Trigger = "index"
	TriggerFlips Trigger = "flips"
	TriggerBoth  Trigger = "index+flips"
)

// Reading is the detector output for one sample.
type Reading struct {
	Index    float64
	Flips    int
	Resonant bool
	Trigger  Trigger
}

// Record folds one decision into the detector window and rescores it.
// The signs are taken against the currently damped thresholds, so the
// detector tracks the same boundary the gate decides on.
func Record(det *state.DetectorState, coherence, risk float64, decision string, coherenceThr, riskThr float64, cfg Config) Reading {
	det.Window = append(det.Window, state.DetectorSample{
		CoherenceSign: mathx.Sign(coherence - coherenceThr),
		RiskSign:      mathx.Sign(risk - riskThr),
		Decision:      decision,
	})
	if len(det.Window) > cfg.Window {
		det.Window = det.Window[len(det.Window)-cfg.Window:]
	}

	raw := float64(signTransitions(det.Window, func(s state.DetectorSample) int { return s.CoherenceSign }) +
		signTransitions(det.Window, func(s state.DetectorSample) int { return s.RiskSign }))
	det.EMA = cfg.Lambda*raw + (1-cfg.Lambda)*det.EMA

	flips := decisionFlips(det.Window)

	r := Reading{Index: det.EMA, Flips: flips}
	overIndex := r.Index >= cfg.IndexThreshold || r.Index <= -cfg.IndexThreshold
	overFlips := flips >= cfg.FlipThreshold
	switch {
	case overIndex && overFlips:
		r.Resonant, r.Trigger = true, TriggerBoth
	case overIndex:
		r.Resonant, r.Trigger = true, TriggerIndex
	case overFlips:
		r.Resonant, r.Trigger = true, TriggerFlips
	}
	return r
}

func signTransitions(w []state.DetectorSample, sign func(state.DetectorSample) int) int {
	n := 0
	for i := 1; i < len(w); i++ {
		if sign(w[i]) != sign(w[i-1]) {
			n++
		}
	}
	return n
}

func decisionFlips(w []state.DetectorSample) int {
	n := 0
	for i := 1; i < len(w); i++ {
		if w[i].Decision != w[i-1].Decision {
			n++
		}
	}
	return n
}

// #endregion reading

// #region damper

// Dampen pulls both thresholds toward the observed coherence and risk by a
// gain-scaled, step-bounded nudge, then clamps them to the hard ranges.
// Called only when a reading is resonant.
func Dampen(st *state.AgentState, coherence, risk float64, cfg Config) {
	st.CoherenceThreshold = nudge(st.CoherenceThreshold, coherence,
		cfg.CoherenceThresholdMin, cfg.CoherenceThresholdMax, cfg)
	st.RiskThreshold = nudge(st.RiskThreshold, risk,
		cfg.RiskThresholdMin, cfg.RiskThresholdMax, cfg)
}

func nudge(current, target, lo, hi float64, cfg Config) float64 {
	step := mathx.Clamp(cfg.Gain*(target-current), -cfg.MaxStep, cfg.MaxStep)
	return mathx.Clamp(current+step, lo, hi)
}

// #endregion damper

// #region tier

// Tier is the resonance response class.
type Tier string

const (
	TierHardBlock  Tier = "hard_block"
	TierSoftDampen Tier = "soft_dampen"
	TierProceed    Tier = "proceed"
)

// Classify picks the response tier. The absolute floor and ceiling always
// win; resonance alone only soft-dampens.
func Classify(coherence, risk float64, resonant bool, cfg Config) Tier {
	if coherence < cfg.HardCoherenceFloor || risk > cfg.HardRiskCeiling {
		return TierHardBlock
	}
	if resonant {
		return TierSoftDampen
	}
	return TierProceed
}

// #endregion tier
