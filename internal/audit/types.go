package audit

import "time"

// #region event
// Kind labels an audit_log row.
type Kind string

const (
	KindObservation      Kind = "observation"
	KindControllerUpdate Kind = "controller_update"
	KindControllerSkip   Kind = "controller_skip"
	KindResonance        Kind = "resonance"
	KindLockReclaimed    Kind = "lock_reclaimed"
)

// Event is a single row in the audit_log table.
type Event struct {
	ID        string // uuid, assigned by the sink when empty
	AgentID   string
	Kind      Kind
	Detail    string // JSON-serialized record for the kind
	CreatedAt time.Time
}

// #endregion event

// #region observation-record
// ObservationRecord captures the complete evaluation of one observation.
// Serialized as JSON into audit_log.detail for deterministic replay.
type ObservationRecord struct {
	UpdateSeq int64  `json:"update_seq"`
	SessionID string `json:"session_id,omitempty"`

	// Exact inputs as evaluated at runtime
	Drift      []float64 `json:"drift"`
	Complexity *float64  `json:"complexity,omitempty"`
	Confidence *float64  `json:"confidence,omitempty"`
	Text       string    `json:"text,omitempty"`

	// Gate thresholds active at decision time
	Thresholds ObservationThresholds `json:"thresholds"`

	// Governor output
	Outcome ObservationOutcome `json:"outcome"`
}

// ObservationThresholds captures the damped thresholds in force.
type ObservationThresholds struct {
	Coherence float64 `json:"coherence"`
	Risk      float64 `json:"risk"`
	Void      float64 `json:"void"`
}

// ObservationOutcome captures the decision and scores produced for the turn.
type ObservationOutcome struct {
	Status     string  `json:"status"`
	Action     string  `json:"action"`
	Edge       string  `json:"edge,omitempty"`
	Risk       float64 `json:"risk"`
	Coherence  float64 `json:"coherence"`
	Confidence float64 `json:"confidence"`
	Regime     string  `json:"regime"`
	Tier       string  `json:"tier"`
}

// #endregion observation-record

// #region controller-record
// ControllerRecord captures one coupling controller evaluation, applied or
// skipped.
type ControllerRecord struct {
	Applied       bool    `json:"applied"`
	SkipReason    string  `json:"skip_reason,omitempty"`
	Confidence    float64 `json:"confidence"`
	PrevCoupling  float64 `json:"prev_coupling"`
	Coupling      float64 `json:"coupling"`
	VoidFrequency float64 `json:"void_frequency"`
	Integral      float64 `json:"integral"`
	Alignment     float64 `json:"alignment"`
	GainScale     float64 `json:"gain_scale"`
}

// #endregion controller-record

// #region resonance-record
// ResonanceRecord captures a detector reading that crossed into resonance,
// plus the thresholds after damping.
type ResonanceRecord struct {
	Index              float64 `json:"index"`
	Flips              int     `json:"flips"`
	Trigger            string  `json:"trigger"`
	Tier               string  `json:"tier"`
	CoherenceThreshold float64 `json:"coherence_threshold"`
	RiskThreshold      float64 `json:"risk_threshold"`
}

// #endregion resonance-record

// #region lock-reclaim-record
// LockReclaimRecord captures a stale lock takeover.
type LockReclaimRecord struct {
	Owner string `json:"owner"`
	PID   int    `json:"pid"`
}

// #endregion lock-reclaim-record
