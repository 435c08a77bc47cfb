package governor

import (
	"errors"
	"fmt"
	"time"

	"github.com/danielpatrickdp/agent-governor/internal/confidence"
	"github.com/danielpatrickdp/agent-governor/internal/controller"
	"github.com/danielpatrickdp/agent-governor/internal/evolve"
	"github.com/danielpatrickdp/agent-governor/internal/gate"
	"github.com/danielpatrickdp/agent-governor/internal/mathx"
	"github.com/danielpatrickdp/agent-governor/internal/resonance"
	"github.com/danielpatrickdp/agent-governor/internal/signals"
	"github.com/danielpatrickdp/agent-governor/internal/state"
)

// #region observation

// SchemaVersion is the current Observation schema.
const SchemaVersion = 1

// ErrSchemaVersion reports an Observation from a newer, unknown schema.
var ErrSchemaVersion = errors.New("unsupported observation schema version")

// Observation is one update from an external agent. The struct is versioned;
// a zero SchemaVersion is read as the current version. Optional self-reports
// are pointers so that absent and zero stay distinct.
type Observation struct {
	SchemaVersion int `json:"schema_version"`

	// Drift is the observed behavioral deviation, typically 3 or 4 signed
	// components. Non-finite components are zeroed before use.
	Drift []float64 `json:"drift"`

	// Complexity is the agent's self-reported task complexity in [0,1].
	// It is reconciled against the text-derived estimate before use.
	Complexity *float64 `json:"complexity,omitempty"`

	// Text is the response body the content heuristics score.
	Text string `json:"text"`

	// Confidence is the caller's self-reported confidence. It can only
	// lower the derived value, never raise it.
	Confidence *float64 `json:"confidence,omitempty"`

	// SessionID tags audit records; it does not influence the pipeline.
	SessionID string `json:"session_id,omitempty"`
}

func (o Observation) validate() error {
	if o.SchemaVersion != 0 && o.SchemaVersion != SchemaVersion {
		return fmt.Errorf("%w: %d", ErrSchemaVersion, o.SchemaVersion)
	}
	return nil
}

// clippedInput names the first input the pipeline will clip or zero rather
// than reject, empty when every input is in range.
func (o Observation) clippedInput() string {
	if o.Complexity != nil &&
		(!mathx.IsFinite(*o.Complexity) || *o.Complexity < 0 || *o.Complexity > 1) {
		return "complexity"
	}
	for _, v := range o.Drift {
		if !mathx.IsFinite(v) {
			return "drift"
		}
	}
	if o.Confidence != nil && !mathx.IsFinite(*o.Confidence) {
		return "confidence"
	}
	return ""
}

// #endregion observation

// #region result

// Status summarizes an update outcome at a glance.
type Status string

const (
	StatusHealthy  Status = "healthy"
	StatusModerate Status = "moderate"
	StatusCritical Status = "critical"
)

// Metrics is the scalar telemetry view returned with every result.
type Metrics struct {
	AgentID            string       `json:"agent_id"`
	Energy             float64      `json:"energy"`
	Integrity          float64      `json:"integrity"`
	Entropy            float64      `json:"entropy"`
	Void               float64      `json:"void"`
	Coherence          float64      `json:"coherence"`
	Coupling           float64      `json:"coupling"`
	ControllerIntegral float64      `json:"controller_integral"`
	ControllerSkips    int64        `json:"controller_skips"`
	UpdateCount        int64        `json:"update_count"`
	Time               float64      `json:"time"`
	Regime             state.Regime `json:"regime"`
	StableStreak       int          `json:"stable_streak"`
	VoidActive         bool         `json:"void_active"`
	VoidThreshold      float64      `json:"void_threshold"`
	CoherenceThreshold float64      `json:"coherence_threshold"`
	RiskThreshold      float64      `json:"risk_threshold"`
	RiskScore          float64      `json:"risk_score"`
	Confidence         float64      `json:"confidence"`
	OscillationIndex   float64      `json:"oscillation_index"`
	UpdatedAt          time.Time    `json:"updated_at"`
}

// Result is the complete outcome of one processed update. It is either
// fully populated or not returned at all.
type Result struct {
	Status   Status         `json:"status"`
	Decision gate.Decision  `json:"decision"`
	Tier     resonance.Tier `json:"tier"`
	Metrics  Metrics        `json:"metrics"`
}

// #endregion result

// #region config

// Config aggregates the pipeline tuning for one governor instance.
type Config struct {
	// InitialCoupling seeds a fresh agent's coupling parameter; it is
	// clamped into the controller's coupling bounds.
	InitialCoupling float64 `yaml:"initial_coupling" validate:"gt=0,lt=1"`

	// Initial decision thresholds for a fresh agent. The resonance damper
	// moves them afterwards.
	InitialCoherenceThreshold float64 `yaml:"initial_coherence_threshold" validate:"gt=0,lt=1"`
	InitialRiskThreshold      float64 `yaml:"initial_risk_threshold" validate:"gt=0,lt=1"`

	// HistoryCapacity bounds every per-channel history ring.
	HistoryCapacity int `yaml:"history_capacity" validate:"gte=10"`

	Evolve     evolve.Config     `yaml:"evolve"`
	Confidence confidence.Config `yaml:"confidence"`
	Controller controller.Config `yaml:"controller"`
	Resonance  resonance.Config  `yaml:"resonance"`
	Signals    signals.Config    `yaml:"signals"`
	Gate       gate.Config       `yaml:"gate"`
}

// DefaultConfig returns the reference pipeline tuning.
func DefaultConfig() Config {
	return Config{
		InitialCoupling:           0.10,
		InitialCoherenceThreshold: 0.30,
		InitialRiskThreshold:      0.60,
		HistoryCapacity:           1000,
		Evolve:                    evolve.DefaultConfig(),
		Confidence:                confidence.DefaultConfig(),
		Controller:                controller.DefaultConfig(),
		Resonance:                 resonance.DefaultConfig(),
		Signals:                   signals.DefaultConfig(),
		Gate:                      gate.DefaultConfig(),
	}
}

// #endregion config
