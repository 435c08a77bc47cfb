// Package confidence scores how much the governor trusts its own reading of
// an agent. The estimate gates the adaptive controller and caps any
// caller-supplied certainty.
package confidence

import (
	"math"

	"github.com/danielpatrickdp/agent-governor/internal/mathx"
	"github.com/danielpatrickdp/agent-governor/internal/state"
)

// #region config

// Config weights the four confidence terms and bounds the output. The
// output band stops short of both 0 and 1.
type Config struct {
	CoherenceWeight float64 `yaml:"coherence_weight" validate:"gte=0"`
	IntegrityWeight float64 `yaml:"integrity_weight" validate:"gte=0"`
	EntropyWeight   float64 `yaml:"entropy_weight" validate:"gte=0"`
	VoidWeight      float64 `yaml:"void_weight" validate:"gte=0"`

	Min     float64 `yaml:"min" validate:"gt=0,lt=1"`
	Max     float64 `yaml:"max" validate:"gtfield=Min,lt=1"`
	Neutral float64 `yaml:"neutral" validate:"gte=0,lte=1"`
}

// DefaultConfig returns the reference weighting: coherence dominates,
// integrity close behind, entropy and void calm as minor corrections.
func DefaultConfig() Config {
	return Config{
		CoherenceWeight: 0.4,
		IntegrityWeight: 0.3,
		EntropyWeight:   0.2,
		VoidWeight:      0.1,
		Min:             0.05,
		Max:             0.95,
		Neutral:         0.5,
	}
}

// #endregion config

// #region derive

// Derive maps a state to a confidence scalar in [Min, Max]. A nil state
// yields the neutral default rather than an error.
func Derive(st *state.AgentState, cfg Config) float64 {
	if st == nil {
		return cfg.Neutral
	}

	coherence := mathx.Clamp01(st.Coherence)
	integrity := mathx.Clamp01(st.Integrity)
	entropyCalm := mathx.Clamp01(1 - st.Entropy)

	thr := st.VoidThreshold
	if thr <= 0 {
		// Unset threshold: normalize against the full void range.
		thr = 1
	}
	voidCalm := mathx.Clamp01(1 - math.Abs(st.Void)/thr)

	raw := cfg.CoherenceWeight*coherence +
		cfg.IntegrityWeight*integrity +
		cfg.EntropyWeight*entropyCalm +
		cfg.VoidWeight*voidCalm
	return mathx.Clamp(raw, cfg.Min, cfg.Max)
}

// Cap reconciles a caller-reported confidence with the derived one. The
// caller may lower confidence but never raise it past what the state
// supports. A nil or non-finite report leaves the derived value standing.
func Cap(derived float64, reported *float64, cfg Config) float64 {
	if reported == nil || !mathx.IsFinite(*reported) {
		return derived
	}
	return mathx.Clamp(math.Min(*reported, derived), cfg.Min, cfg.Max)
}

// #endregion derive
