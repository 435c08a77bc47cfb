package replay

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/danielpatrickdp/agent-governor/internal/audit"
	"github.com/danielpatrickdp/agent-governor/internal/governor"
	"github.com/danielpatrickdp/agent-governor/internal/state"
)

// #region fixture-types

// Fixture is the top-level JSON structure for a replay fixture: an optional
// start snapshot, the observation sequence, and the outcomes recorded when
// the sequence originally ran. Tuning is deliberately not embedded; replay
// must run under the same config the fixture was recorded under.
type Fixture struct {
	Description string            `json:"description"`
	AgentID     string            `json:"agent_id"`
	Start       *state.AgentState `json:"start,omitempty"`
	Steps       []Step            `json:"steps"`
	Expected    []Expected        `json:"expected,omitempty"`
}

// Step mirrors governor.Observation with JSON tags.
type Step struct {
	SessionID  string    `json:"session_id,omitempty"`
	Drift      []float64 `json:"drift"`
	Complexity *float64  `json:"complexity,omitempty"`
	Confidence *float64  `json:"confidence,omitempty"`
	Text       string    `json:"text,omitempty"`
}

// Expected captures the recorded outcome for one step, matched by 1-based
// position. Empty fields are not compared.
type Expected struct {
	Step   int    `json:"step"`
	Status string `json:"status,omitempty"`
	Action string `json:"action,omitempty"`
	Edge   string `json:"edge,omitempty"`
	Tier   string `json:"tier,omitempty"`
	Regime string `json:"regime,omitempty"`
}

// #endregion fixture-types

// #region fixture-loader

// LoadFixture reads and parses a JSON fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	if len(f.Steps) == 0 {
		return nil, fmt.Errorf("fixture %s has no steps", path)
	}
	return &f, nil
}

// ToObservation converts a fixture step to a domain observation.
func (s Step) ToObservation() governor.Observation {
	return governor.Observation{
		Drift:      s.Drift,
		Complexity: s.Complexity,
		Confidence: s.Confidence,
		Text:       s.Text,
		SessionID:  s.SessionID,
	}
}

// FromObservations builds a fixture from exported audit records: the inputs
// become steps, the recorded outcomes become expectations. The fixture
// replays from a fresh agent, so records exported mid-life will diverge and
// the mismatch report says where.
func FromObservations(agentID, description string, records []audit.ObservationRecord) Fixture {
	steps := make([]Step, len(records))
	expected := make([]Expected, len(records))
	for i, r := range records {
		steps[i] = Step{
			SessionID:  r.SessionID,
			Drift:      r.Drift,
			Complexity: r.Complexity,
			Confidence: r.Confidence,
			Text:       r.Text,
		}
		expected[i] = Expected{
			Step:   i + 1,
			Status: r.Outcome.Status,
			Action: r.Outcome.Action,
			Edge:   r.Outcome.Edge,
			Tier:   r.Outcome.Tier,
			Regime: r.Outcome.Regime,
		}
	}
	return Fixture{
		Description: description,
		AgentID:     agentID,
		Steps:       steps,
		Expected:    expected,
	}
}

// #endregion fixture-loader
