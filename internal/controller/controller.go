// Package controller retunes the coupling parameter with a discrete PI loop.
// It runs on a fixed cadence, only when confidence clears the gate, and its
// gains are scaled down when the energy and integrity channels move against
// each other.
package controller

import (
	"math"

	"github.com/danielpatrickdp/agent-governor/internal/evolve"
	"github.com/danielpatrickdp/agent-governor/internal/mathx"
	"github.com/danielpatrickdp/agent-governor/internal/state"
)

// #region config

// Config holds the PI tuning. CouplingMin/Max bound the actuator; the
// integral clamp is the anti-windup guard.
type Config struct {
	Cadence        int     `yaml:"cadence" validate:"gte=1"`
	ConfidenceGate float64 `yaml:"confidence_gate" validate:"gte=0,lte=1"`

	VoidFreqTarget  float64 `yaml:"void_freq_target" validate:"gte=0,lte=1"`
	CoherenceTarget float64 `yaml:"coherence_target" validate:"gte=0,lte=1"`
	VoidFreqWeight  float64 `yaml:"void_freq_weight" validate:"gte=0,lte=1"`
	CoherenceWeight float64 `yaml:"coherence_weight" validate:"gte=0,lte=1"`

	Kp          float64 `yaml:"kp" validate:"gte=0"`
	Ki          float64 `yaml:"ki" validate:"gte=0"`
	IntegralMax float64 `yaml:"integral_max" validate:"gt=0"`

	CouplingMin float64 `yaml:"coupling_min" validate:"gt=0"`
	CouplingMax float64 `yaml:"coupling_max" validate:"gtfield=CouplingMin"`

	// GainFloor is the lowest fraction of nominal gain applied when the
	// E and I deltas are fully adversarial.
	GainFloor float64 `yaml:"gain_floor" validate:"gte=0,lte=1"`

	// FreqWindow is how many trailing void samples the frequency estimate
	// looks at.
	FreqWindow int `yaml:"freq_window" validate:"gte=1"`
}

// DefaultConfig returns the reference controller tuning.
func DefaultConfig() Config {
	return Config{
		Cadence:         5,
		ConfidenceGate:  0.8,
		VoidFreqTarget:  0.02,
		CoherenceTarget: 0.9,
		VoidFreqWeight:  0.7,
		CoherenceWeight: 0.3,
		Kp:              0.05,
		Ki:              0.01,
		IntegralMax:     1.0,
		CouplingMin:     0.05,
		CouplingMax:     0.20,
		GainFloor:       0.5,
		FreqWindow:      100,
	}
}

// #endregion config

// #region outcome

// SkipReason labels why a cadence-due retune did not run.
type SkipReason string

const (
	SkipNone          SkipReason = ""
	SkipLowConfidence SkipReason = "low_confidence"
)

// Outcome reports one controller invocation for telemetry and audit.
type Outcome struct {
	Applied    bool
	Skip       SkipReason
	Confidence float64

	Coupling     float64 // coupling after this invocation
	PrevCoupling float64

	VoidFrequency float64
	VoidFreqError float64
	CoherenceErr  float64
	Integral      float64

	Rho       float64 // delta-alignment signal in [-1,1]
	GainScale float64
}

// #endregion outcome

// #region update

// Due reports whether the cadence calls for a retune at this update count.
func Due(updateCount int64, cfg Config) bool {
	return updateCount > 0 && updateCount%int64(cfg.Cadence) == 0
}

// Update applies one PI step to st.Coupling. Confidence below the gate
// skips the retune, bumps the skip counter, and leaves coupling untouched.
func Update(st *state.AgentState, conf float64, deltas evolve.Deltas, cfg Config) Outcome {
	out := Outcome{
		Confidence:   conf,
		Coupling:     st.Coupling,
		PrevCoupling: st.Coupling,
		Integral:     st.ControllerIntegral,
	}

	if conf < cfg.ConfidenceGate {
		st.ControllerSkips++
		out.Skip = SkipLowConfidence
		return out
	}

	freq := voidFrequency(st, cfg.FreqWindow)
	freqErr := cfg.VoidFreqTarget - freq
	cohErr := st.Coherence - cfg.CoherenceTarget

	// Only the frequency error integrates; coherence acts proportionally.
	integral := mathx.Clamp(st.ControllerIntegral+freqErr, -cfg.IntegralMax, cfg.IntegralMax)

	rho := alignment(deltas)
	gain := cfg.GainFloor + (1-cfg.GainFloor)*(rho+1)/2

	combined := cfg.VoidFreqWeight*freqErr + cfg.CoherenceWeight*cohErr
	next := st.Coupling + gain*(cfg.Kp*combined+cfg.Ki*integral)

	st.Coupling = mathx.Clamp(next, cfg.CouplingMin, cfg.CouplingMax)
	st.ControllerIntegral = integral

	out.Applied = true
	out.Coupling = st.Coupling
	out.VoidFrequency = freq
	out.VoidFreqError = freqErr
	out.CoherenceErr = cohErr
	out.Integral = integral
	out.Rho = rho
	out.GainScale = gain
	return out
}

// voidFrequency is the fraction of the trailing window whose |V| exceeded
// the current threshold, applied retroactively across the window.
func voidFrequency(st *state.AgentState, window int) float64 {
	tail := st.Histories.Void.Tail(window)
	if len(tail) == 0 {
		return 0
	}
	active := 0
	for _, v := range tail {
		if math.Abs(v) > st.VoidThreshold {
			active++
		}
	}
	return float64(active) / float64(len(tail))
}

// alignment is the sign of the E-I delta product: +1 when the channels
// moved together, -1 when they moved apart, 0 when either held still.
func alignment(d evolve.Deltas) float64 {
	return float64(mathx.Sign(d.Energy) * mathx.Sign(d.Integrity))
}

// #endregion update
