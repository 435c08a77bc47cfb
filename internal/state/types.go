// Package state defines the per-agent governance state: the four scalar
// channels, the derived coherence signal, controller bookkeeping, and the
// bounded history windows. An AgentState is also the durable snapshot: every
// field round-trips through JSON, histories included.
package state

import (
	"fmt"
	"time"

	"github.com/danielpatrickdp/agent-governor/internal/mathx"
)

// #region regime

// Regime classifies the current trend of the (I, S, V) channels.
type Regime string

const (
	RegimeStable      Regime = "STABLE"
	RegimeDivergence  Regime = "DIVERGENCE"
	RegimeTransition  Regime = "TRANSITION"
	RegimeConvergence Regime = "CONVERGENCE"
)

// StableStreakRequired is how many consecutive qualifying updates are needed
// before the regime may report STABLE. Prevents single-sample flicker.
const StableStreakRequired = 3

// #endregion regime

// #region agent-state

// AgentState is the full per-agent state. Owned exclusively by one agent
// identity and mutated only under that agent's lock. Coherence is derived
// from Void each step, never set directly.
type AgentState struct {
	AgentID string `json:"agent_id"`

	// Scalar channels. Energy, Integrity, Entropy in [0,1]; Void in [-1,1].
	// A negative Void (integrity-dominant) is a legitimate state, not an error.
	Energy    float64 `json:"energy"`
	Integrity float64 `json:"integrity"`
	Entropy   float64 `json:"entropy"`
	Void      float64 `json:"void"`

	// Coherence in [0,1], recomputed from Void each step. A fresh state
	// carries the 1.0 sentinel; UpdateCount == 0 distinguishes the sentinel
	// from a measured 1.0.
	Coherence float64 `json:"coherence"`

	// Controller state. Coupling stays within the configured coupling bounds;
	// the integral term is anti-windup-clamped and persists across updates.
	Coupling           float64 `json:"coupling"`
	ControllerIntegral float64 `json:"controller_integral"`
	ControllerSkips    int64   `json:"controller_skips"`

	// Monotone counters.
	UpdateCount int64   `json:"update_count"`
	Time        float64 `json:"time"`

	// Regime classification with its persistence counter.
	Regime       Regime `json:"regime"`
	StableStreak int    `json:"stable_streak"`

	// Void detection. VoidThreshold is the adaptive mean+2-sigma value,
	// persisted so the trigger point is diagnosable after the fact.
	VoidActive    bool    `json:"void_active"`
	VoidThreshold float64 `json:"void_threshold"`

	// Decision thresholds the resonance damper nudges. Session-scoped,
	// seeded from config on first observation.
	CoherenceThreshold float64 `json:"coherence_threshold"`
	RiskThreshold      float64 `json:"risk_threshold"`

	Histories ChannelHistories `json:"histories"`
	Detector  DetectorState    `json:"detector"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Defaults seeds a fresh AgentState. Values come from the governor config.
type Defaults struct {
	Coupling           float64
	CoherenceThreshold float64
	RiskThreshold      float64
	VoidThreshold      float64
	HistoryCapacity    int
}

// New creates the neutral state for a first observation: mid-range channels,
// zero void, the coherence sentinel, and empty histories.
func New(agentID string, d Defaults) *AgentState {
	now := time.Now().UTC()
	return &AgentState{
		AgentID:            agentID,
		Energy:             0.5,
		Integrity:          0.5,
		Entropy:            0.5,
		Void:               0,
		Coherence:          1.0,
		Coupling:           d.Coupling,
		Regime:             RegimeDivergence,
		VoidThreshold:      d.VoidThreshold,
		CoherenceThreshold: d.CoherenceThreshold,
		RiskThreshold:      d.RiskThreshold,
		Histories:          NewChannelHistories(d.HistoryCapacity),
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

// Clone returns a deep copy. Updates mutate a clone and swap it in whole, so
// readers holding the previous pointer never observe a partial write.
func (s *AgentState) Clone() *AgentState {
	if s == nil {
		return nil
	}
	out := *s
	out.Histories = s.Histories.clone()
	out.Detector = s.Detector.clone()
	return &out
}

// #endregion agent-state

// #region validation

// ValidationError reports a non-finite channel value after an update step.
// Always fatal for that update: the state must not be persisted.
type ValidationError struct {
	Channel string
	Value   float64
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("non-finite %s channel: %v", e.Channel, e.Value)
}

// Validate returns a *ValidationError for the first non-finite channel, or
// nil when every channel is finite.
func (s *AgentState) Validate() error {
	channels := []struct {
		name string
		v    float64
	}{
		{"energy", s.Energy},
		{"integrity", s.Integrity},
		{"entropy", s.Entropy},
		{"void", s.Void},
		{"coherence", s.Coherence},
		{"coupling", s.Coupling},
		{"controller_integral", s.ControllerIntegral},
	}
	for _, c := range channels {
		if !mathx.IsFinite(c.v) {
			return &ValidationError{Channel: c.name, Value: c.v}
		}
	}
	return nil
}

// #endregion validation
