// Package governor runs the per-agent governance pipeline: lock, load,
// advance the state, retune the coupling controller, score risk, decide,
// dampen on resonance, persist, audit. One Governor serves many agents;
// each agent's updates are serialized by the lock manager.
package governor

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/danielpatrickdp/agent-governor/internal/audit"
	"github.com/danielpatrickdp/agent-governor/internal/confidence"
	"github.com/danielpatrickdp/agent-governor/internal/controller"
	"github.com/danielpatrickdp/agent-governor/internal/evolve"
	"github.com/danielpatrickdp/agent-governor/internal/gate"
	"github.com/danielpatrickdp/agent-governor/internal/lock"
	"github.com/danielpatrickdp/agent-governor/internal/mathx"
	"github.com/danielpatrickdp/agent-governor/internal/repo"
	"github.com/danielpatrickdp/agent-governor/internal/resonance"
	"github.com/danielpatrickdp/agent-governor/internal/signals"
	"github.com/danielpatrickdp/agent-governor/internal/state"
)

// #region governor

// Governor owns the update pipeline. The cache holds the last snapshot this
// instance committed per agent; it is swapped whole under mu so the read
// path never observes a partial update.
type Governor struct {
	store   repo.Store
	locks   lock.Manager
	auditor *audit.BestEffort
	cfg     Config
	log     *zap.Logger

	mu    sync.RWMutex
	cache map[string]*state.AgentState
}

// New wires a governor. A nil sink disables auditing; a nil logger logs
// nothing.
func New(store repo.Store, locks lock.Manager, sink audit.Sink, cfg Config, log *zap.Logger) *Governor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Governor{
		store:   store,
		locks:   locks,
		auditor: audit.NewBestEffort(sink, log.Named("audit")),
		cfg:     cfg,
		log:     log.Named("governor"),
		cache:   make(map[string]*state.AgentState),
	}
}

// Auditor exposes the best-effort audit boundary, for wiring lock
// reclamation telemetry and for inspecting the drop counter.
func (g *Governor) Auditor() *audit.BestEffort { return g.auditor }

// #endregion governor

// #region process-update

// ProcessUpdate folds one observation into the agent's state and returns
// the decision with full metrics. It returns either a complete Result or a
// typed error (*lock.ContendedError, *state.ValidationError,
// ErrSchemaVersion); the stored snapshot is untouched on any error.
func (g *Governor) ProcessUpdate(ctx context.Context, agentID string, obs Observation) (*Result, error) {
	if agentID == "" {
		return nil, fmt.Errorf("agent id must not be empty")
	}
	if err := obs.validate(); err != nil {
		return nil, err
	}
	if field := obs.clippedInput(); field != "" {
		g.log.Warn("observation input out of range; clipping",
			zap.String("agent_id", agentID), zap.String("field", field))
	}

	lease, err := g.locks.Acquire(ctx, agentID)
	if err != nil {
		return nil, err
	}
	defer func() {
		if rerr := lease.Release(); rerr != nil {
			g.log.Warn("lock release failed",
				zap.String("agent_id", agentID), zap.Error(rerr))
		}
	}()

	prev, err := g.current(ctx, agentID)
	if err != nil {
		return nil, err
	}
	next := prev.Clone()

	// Reconcile the reported complexity against the text before anything
	// consumes it; a lowballed report must not drive the state either.
	derivedCx := signals.EstimateComplexity(obs.Text)
	cx := signals.Reconcile(derivedCx, obs.Complexity, g.cfg.Signals)

	res, err := evolve.Advance(next, evolve.Input{
		Drift:      obs.Drift,
		Complexity: cx,
		DT:         g.cfg.Evolve.DT,
	}, g.cfg.Evolve)
	if err != nil {
		g.log.Warn("update rejected",
			zap.String("agent_id", agentID), zap.Error(err))
		return nil, err
	}

	conf := confidence.Cap(confidence.Derive(next, g.cfg.Confidence), obs.Confidence, g.cfg.Confidence)

	if controller.Due(next.UpdateCount, g.cfg.Controller) {
		out := controller.Update(next, conf, res.Deltas, g.cfg.Controller)
		kind := audit.KindControllerUpdate
		if !out.Applied {
			kind = audit.KindControllerSkip
		}
		g.auditor.Emit(ctx, agentID, kind, controllerRecord(out))
	}

	breakdown := gate.EstimateRisk(next, obs.Drift, obs.Text, obs.Complexity, g.cfg.Gate, g.cfg.Signals)
	decision := gate.Decide(breakdown.Risk, next, g.cfg.Gate)

	// Thresholds as the decision saw them; the damper may move them below.
	decidedAt := audit.ObservationThresholds{
		Coherence: next.CoherenceThreshold,
		Risk:      next.RiskThreshold,
		Void:      next.VoidThreshold,
	}

	reading := resonance.Record(&next.Detector, next.Coherence, breakdown.Risk,
		string(decision.Action), next.CoherenceThreshold, next.RiskThreshold, g.cfg.Resonance)
	tier := resonance.Classify(next.Coherence, breakdown.Risk, reading.Resonant, g.cfg.Resonance)
	if reading.Resonant {
		resonance.Dampen(next, next.Coherence, breakdown.Risk, g.cfg.Resonance)
		g.auditor.Emit(ctx, agentID, audit.KindResonance, resonanceRecord(reading, next, tier))
	}

	next.Histories.Risk.Push(breakdown.Risk)
	next.Histories.Decision.Push(string(decision.Action))
	next.Histories.Oscillation.Push(reading.Index)

	status := statusOf(decision, tier)

	if err := g.store.Save(ctx, next); err != nil {
		g.log.Warn("snapshot save failed; in-memory state stands",
			zap.String("agent_id", agentID), zap.Error(err))
	}

	g.mu.Lock()
	g.cache[agentID] = next
	g.mu.Unlock()

	g.auditor.Emit(ctx, agentID, audit.KindObservation,
		observationRecord(obs, next, decidedAt, breakdown, decision, conf, status, tier))

	return &Result{
		Status:   status,
		Decision: decision,
		Tier:     tier,
		Metrics:  metricsOf(next, breakdown.Risk, conf),
	}, nil
}

// current resolves the state the update builds on. The store is
// authoritative, except when this instance's cache is ahead of it: that
// means an earlier save failed, and the in-memory update stands for the
// rest of the process lifetime.
func (g *Governor) current(ctx context.Context, agentID string) (*state.AgentState, error) {
	g.mu.RLock()
	cached := g.cache[agentID]
	g.mu.RUnlock()

	stored, err := g.store.Load(ctx, agentID)
	switch {
	case errors.Is(err, repo.ErrNotFound):
		if cached != nil {
			return cached, nil
		}
		return state.New(agentID, g.defaults()), nil
	case err != nil:
		if cached != nil {
			g.log.Warn("snapshot load failed; continuing from cached state",
				zap.String("agent_id", agentID), zap.Error(err))
			return cached, nil
		}
		return nil, fmt.Errorf("load snapshot: %w", err)
	}

	if cached != nil && cached.UpdateCount > stored.UpdateCount {
		return cached, nil
	}
	return stored, nil
}

func (g *Governor) defaults() state.Defaults {
	return state.Defaults{
		Coupling: mathx.Clamp(g.cfg.InitialCoupling,
			g.cfg.Controller.CouplingMin, g.cfg.Controller.CouplingMax),
		CoherenceThreshold: g.cfg.InitialCoherenceThreshold,
		RiskThreshold:      g.cfg.InitialRiskThreshold,
		VoidThreshold:      (g.cfg.Evolve.VoidThresholdMin + g.cfg.Evolve.VoidThresholdMax) / 2,
		HistoryCapacity:    g.cfg.HistoryCapacity,
	}
}

// #endregion process-update

// #region get-metrics

// GetMetrics returns the latest committed snapshot without taking the write
// lock: the cache serves reads independently of the update path, falling
// back to the store for agents this instance has not updated.
func (g *Governor) GetMetrics(ctx context.Context, agentID string) (*state.AgentState, error) {
	g.mu.RLock()
	cached := g.cache[agentID]
	g.mu.RUnlock()
	if cached != nil {
		return cached.Clone(), nil
	}
	return g.store.Load(ctx, agentID)
}

// #endregion get-metrics

// #region status

// statusOf grades the overall result. Hard blocks and deep violations are
// critical; any pause, damping, or guidance is moderate. The margin is
// advisory and never demotes a clean proceed on its own.
func statusOf(d gate.Decision, tier resonance.Tier) Status {
	switch {
	case tier == resonance.TierHardBlock,
		d.Action == gate.ActionPause && d.Margin.Severity == gate.SeverityCritical:
		return StatusCritical
	case d.Action == gate.ActionPause,
		tier == resonance.TierSoftDampen,
		d.Guidance != "":
		return StatusModerate
	default:
		return StatusHealthy
	}
}

// #endregion status

// #region records

func metricsOf(st *state.AgentState, risk, conf float64) Metrics {
	return Metrics{
		AgentID:            st.AgentID,
		Energy:             st.Energy,
		Integrity:          st.Integrity,
		Entropy:            st.Entropy,
		Void:               st.Void,
		Coherence:          st.Coherence,
		Coupling:           st.Coupling,
		ControllerIntegral: st.ControllerIntegral,
		ControllerSkips:    st.ControllerSkips,
		UpdateCount:        st.UpdateCount,
		Time:               st.Time,
		Regime:             st.Regime,
		StableStreak:       st.StableStreak,
		VoidActive:         st.VoidActive,
		VoidThreshold:      st.VoidThreshold,
		CoherenceThreshold: st.CoherenceThreshold,
		RiskThreshold:      st.RiskThreshold,
		RiskScore:          risk,
		Confidence:         conf,
		OscillationIndex:   st.Detector.EMA,
		UpdatedAt:          st.UpdatedAt,
	}
}

func controllerRecord(out controller.Outcome) audit.ControllerRecord {
	return audit.ControllerRecord{
		Applied:       out.Applied,
		SkipReason:    string(out.Skip),
		Confidence:    out.Confidence,
		PrevCoupling:  out.PrevCoupling,
		Coupling:      out.Coupling,
		VoidFrequency: out.VoidFrequency,
		Integral:      out.Integral,
		Alignment:     out.Rho,
		GainScale:     out.GainScale,
	}
}

func resonanceRecord(r resonance.Reading, st *state.AgentState, tier resonance.Tier) audit.ResonanceRecord {
	return audit.ResonanceRecord{
		Index:              r.Index,
		Flips:              r.Flips,
		Trigger:            string(r.Trigger),
		Tier:               string(tier),
		CoherenceThreshold: st.CoherenceThreshold,
		RiskThreshold:      st.RiskThreshold,
	}
}

func observationRecord(obs Observation, st *state.AgentState, decidedAt audit.ObservationThresholds,
	b gate.Breakdown, d gate.Decision, conf float64, status Status, tier resonance.Tier) audit.ObservationRecord {
	return audit.ObservationRecord{
		UpdateSeq:  st.UpdateCount,
		SessionID:  obs.SessionID,
		Drift:      obs.Drift,
		Complexity: obs.Complexity,
		Confidence: obs.Confidence,
		Text:       obs.Text,
		Thresholds: decidedAt,
		Outcome: audit.ObservationOutcome{
			Status:     string(status),
			Action:     string(d.Action),
			Edge:       string(d.Edge),
			Risk:       b.Risk,
			Coherence:  st.Coherence,
			Confidence: conf,
			Regime:     string(st.Regime),
			Tier:       string(tier),
		},
	}
}

// #endregion records
