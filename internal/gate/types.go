package gate

// #region verdict

// Action is the binary verdict.
type Action string

const (
	ActionProceed Action = "proceed"
	ActionPause   Action = "pause"
)

// Edge names which boundary a decision or margin is about.
type Edge string

const (
	EdgeVoid      Edge = "void"
	EdgeCoherence Edge = "coherence"
	EdgeRisk      Edge = "risk"
)

// Severity grades a margin reading.
type Severity string

const (
	SeverityCritical    Severity = "critical"
	SeverityWarning     Severity = "warning"
	SeverityTight       Severity = "tight"
	SeverityComfortable Severity = "comfortable"
)

// Margin is the signed distance to the nearest (or most violated) boundary.
// It is advisory telemetry only and never feeds back into the verdict.
type Margin struct {
	Distance float64  `json:"distance"`
	Edge     Edge     `json:"edge"`
	Severity Severity `json:"severity"`
}

// Decision is the full verdict returned to the caller.
type Decision struct {
	Action   Action `json:"action"`
	Edge     Edge   `json:"edge,omitempty"` // boundary that forced a pause
	Reason   string `json:"reason"`
	Guidance string `json:"guidance,omitempty"`
	Margin   Margin `json:"margin"`
}

// Breakdown carries the risk composition for metrics and audit.
type Breakdown struct {
	Risk        float64 `json:"risk"`
	StateRisk   float64 `json:"state_risk"`
	ContentRisk float64 `json:"content_risk"`
	Objective   float64 `json:"objective"`
	Complexity  float64 `json:"complexity"` // reconciled value actually used
}

// #endregion verdict

// #region config

// Config tunes the objective, the band pivots, and the decision chain.
type Config struct {
	StateWeight   float64 `yaml:"state_weight" validate:"gte=0,lte=1"`
	ContentWeight float64 `yaml:"content_weight" validate:"gte=0,lte=1"`

	// Objective terms; higher objective means safer.
	ObjCoherenceWeight float64 `yaml:"obj_coherence_weight" validate:"gte=0"`
	ObjIntegrityWeight float64 `yaml:"obj_integrity_weight" validate:"gte=0"`
	ObjEntropyWeight   float64 `yaml:"obj_entropy_weight" validate:"gte=0"`
	ObjVoidWeight      float64 `yaml:"obj_void_weight" validate:"gte=0"`
	ObjDriftPenalty    float64 `yaml:"obj_drift_penalty" validate:"gte=0"`

	// Piecewise objective-to-risk map: above SafePivot risk interpolates
	// inside [0, SafeRiskCeiling], between the pivots inside
	// (SafeRiskCeiling, CautionRiskCeiling], below CautionPivot inside
	// (CautionRiskCeiling, 1].
	SafePivot          float64 `yaml:"safe_pivot" validate:"gtfield=CautionPivot,lt=1"`
	CautionPivot       float64 `yaml:"caution_pivot" validate:"gt=0"`
	SafeRiskCeiling    float64 `yaml:"safe_risk_ceiling" validate:"gt=0,lt=1"`
	CautionRiskCeiling float64 `yaml:"caution_risk_ceiling" validate:"gtfield=SafeRiskCeiling,lt=1"`

	// ApproveThreshold passes without guidance; the pause boundary is the
	// state's damped risk threshold.
	ApproveThreshold float64 `yaml:"approve_threshold" validate:"gt=0,lt=1"`

	// GuidanceMarginFrac is the remaining-margin fraction under which the
	// guidance hardens into a complexity warning.
	GuidanceMarginFrac float64 `yaml:"guidance_margin_frac" validate:"gte=0,lte=1"`

	// Margin severity grading.
	MarginCriticalDepth float64 `yaml:"margin_critical_depth" validate:"gt=0"`
	MarginTightBand     float64 `yaml:"margin_tight_band" validate:"gt=0"`
}

// DefaultConfig returns the reference gate tuning.
func DefaultConfig() Config {
	return Config{
		StateWeight:         0.7,
		ContentWeight:       0.3,
		ObjCoherenceWeight:  0.35,
		ObjIntegrityWeight:  0.25,
		ObjEntropyWeight:    0.20,
		ObjVoidWeight:       0.20,
		ObjDriftPenalty:     0.30,
		SafePivot:           0.65,
		CautionPivot:        0.35,
		SafeRiskCeiling:     0.35,
		CautionRiskCeiling:  0.70,
		ApproveThreshold:    0.35,
		GuidanceMarginFrac:  0.20,
		MarginCriticalDepth: 0.10,
		MarginTightBand:     0.15,
	}
}

// #endregion config
