package evolve

// #region input

// Input carries one sanitized observation into the advance step.
type Input struct {
	// Drift is the observed behavioral deviation, 3-4 signed floats.
	// Non-finite components are zeroed before use.
	Drift []float64

	// Complexity in [0,1]. Non-finite input defaults to 0.5.
	Complexity float64

	// DT overrides the configured timestep when positive.
	DT float64
}

// #endregion input

// #region config

// Config holds every coefficient of the state-update rule. The rule itself
// never hard-codes a coefficient; tuning happens here and is validated by the
// property tests.
type Config struct {
	DT float64 `yaml:"dt" validate:"gt=0"`

	// Energy channel: restore toward rest, perturbed by coupled drift,
	// shifted by complexity relative to the neutral midpoint.
	EnergyRest           float64 `yaml:"energy_rest" validate:"gte=0,lte=1"`
	EnergyRestoreRate    float64 `yaml:"energy_restore_rate" validate:"gt=0"`
	EnergyPerturbGain    float64 `yaml:"energy_perturb_gain" validate:"gte=0"`
	EnergyComplexityGain float64 `yaml:"energy_complexity_gain" validate:"gte=0"`

	// Integrity channel: restored toward rest, eroded by coupled drift and
	// by above-rest entropy, rebuilt when entropy runs below rest.
	IntegrityRest        float64 `yaml:"integrity_rest" validate:"gte=0,lte=1"`
	IntegrityRestoreRate float64 `yaml:"integrity_restore_rate" validate:"gt=0"`
	IntegrityPerturbGain float64 `yaml:"integrity_perturb_gain" validate:"gte=0"`
	IntegrityEntropyGain float64 `yaml:"integrity_entropy_gain" validate:"gte=0"`

	// Entropy channel: relaxes toward rest, raised by coupled drift and
	// above-neutral complexity.
	EntropyRest           float64 `yaml:"entropy_rest" validate:"gte=0,lte=1"`
	EntropyRelaxRate      float64 `yaml:"entropy_relax_rate" validate:"gt=0"`
	EntropyPerturbGain    float64 `yaml:"entropy_perturb_gain" validate:"gte=0"`
	EntropyComplexityGain float64 `yaml:"entropy_complexity_gain" validate:"gte=0"`

	// Void channel: accumulates the per-step E-I mismatch and relaxes
	// toward zero, so sustained imbalance is required to hold it open.
	VoidGain      float64 `yaml:"void_gain" validate:"gte=0"`
	VoidRelaxRate float64 `yaml:"void_relax_rate" validate:"gt=0"`

	// EntropyFloor keeps S strictly positive. An exact-zero entropy reads
	// as false certainty, which the model treats as unsafe.
	EntropyFloor float64 `yaml:"entropy_floor" validate:"gt=0,lt=1"`

	// Coherence C(V) = 1 / (1 + slope * |V|^shape).
	CoherenceSlope float64 `yaml:"coherence_slope" validate:"gt=0"`
	CoherenceShape float64 `yaml:"coherence_shape" validate:"gte=1"`

	// Adaptive void threshold: mean + sigma-factor * stddev over the recent
	// |V| window, clamped to [VoidThresholdMin, VoidThresholdMax].
	VoidStatsWindow  int     `yaml:"void_stats_window" validate:"gte=2"`
	VoidSigmaFactor  float64 `yaml:"void_sigma_factor" validate:"gte=0"`
	VoidThresholdMin float64 `yaml:"void_threshold_min" validate:"gt=0"`
	VoidThresholdMax float64 `yaml:"void_threshold_max" validate:"gtefield=VoidThresholdMin"`

	// Regime gates.
	StableIntegrityMin      float64 `yaml:"stable_integrity_min" validate:"gte=0,lte=1"`
	StableEntropyMax        float64 `yaml:"stable_entropy_max" validate:"gte=0,lte=1"`
	ConvergenceIntegrityMin float64 `yaml:"convergence_integrity_min" validate:"gte=0,lte=1"`
	ConvergenceEntropyMax   float64 `yaml:"convergence_entropy_max" validate:"gte=0,lte=1"`
}

// DefaultConfig returns the validated tuning defaults.
func DefaultConfig() Config {
	return Config{
		DT: 0.1,

		EnergyRest:           0.5,
		EnergyRestoreRate:    0.15,
		EnergyPerturbGain:    0.9,
		EnergyComplexityGain: 0.12,

		IntegrityRest:        0.5,
		IntegrityRestoreRate: 0.15,
		IntegrityPerturbGain: 0.7,
		IntegrityEntropyGain: 0.4,

		EntropyRest:           0.5,
		EntropyRelaxRate:      0.18,
		EntropyPerturbGain:    0.6,
		EntropyComplexityGain: 0.25,

		VoidGain:      0.9,
		VoidRelaxRate: 0.25,

		EntropyFloor: 0.001,

		CoherenceSlope: 4.0,
		CoherenceShape: 2.0,

		VoidStatsWindow:  100,
		VoidSigmaFactor:  2.0,
		VoidThresholdMin: 0.10,
		VoidThresholdMax: 0.30,

		StableIntegrityMin:      0.999,
		StableEntropyMax:        0.001,
		ConvergenceIntegrityMin: 0.8,
		ConvergenceEntropyMax:   0.1,
	}
}

// #endregion config

// #region deltas

// Deltas reports the post-clamp per-channel change of the last advance.
// The controller reads Energy and Integrity for its gain modulation.
type Deltas struct {
	Energy    float64
	Integrity float64
	Entropy   float64
	Void      float64
}

// #endregion deltas

// #region result

// Result bundles telemetry from one advance step.
type Result struct {
	Deltas     Deltas
	DriftNorm  float64 // normalized drift magnitude actually applied
	Complexity float64 // sanitized complexity actually applied
}

// #endregion result
