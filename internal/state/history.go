package state

// #region history

// History is a bounded FIFO of float64 samples with ring semantics:
// appends past capacity drop the oldest samples from the front.
type History struct {
	Samples  []float64 `json:"samples"`
	Capacity int       `json:"capacity"`
}

// NewHistory returns an empty history with the given capacity.
func NewHistory(capacity int) History {
	if capacity < 1 {
		capacity = 1
	}
	return History{Capacity: capacity}
}

// Push appends v, trimming from the front past capacity.
func (h *History) Push(v float64) {
	h.Samples = append(h.Samples, v)
	if len(h.Samples) > h.Capacity {
		h.Samples = h.Samples[len(h.Samples)-h.Capacity:]
	}
}

// Len returns the number of stored samples.
func (h *History) Len() int {
	return len(h.Samples)
}

// Last returns the most recent sample, or (0, false) when empty.
func (h *History) Last() (float64, bool) {
	if len(h.Samples) == 0 {
		return 0, false
	}
	return h.Samples[len(h.Samples)-1], true
}

// Tail returns up to the n most recent samples, oldest first.
// The returned slice aliases the history; callers must not mutate it.
func (h *History) Tail(n int) []float64 {
	if n <= 0 || len(h.Samples) == 0 {
		return nil
	}
	if n > len(h.Samples) {
		n = len(h.Samples)
	}
	return h.Samples[len(h.Samples)-n:]
}

func (h *History) clone() History {
	out := History{Capacity: h.Capacity}
	if len(h.Samples) > 0 {
		out.Samples = make([]float64, len(h.Samples))
		copy(out.Samples, h.Samples)
	}
	return out
}

// #endregion history

// #region label-history

// LabelHistory is a bounded FIFO of string labels (decision actions).
type LabelHistory struct {
	Labels   []string `json:"labels"`
	Capacity int      `json:"capacity"`
}

// NewLabelHistory returns an empty label history with the given capacity.
func NewLabelHistory(capacity int) LabelHistory {
	if capacity < 1 {
		capacity = 1
	}
	return LabelHistory{Capacity: capacity}
}

// Push appends label, trimming from the front past capacity.
func (h *LabelHistory) Push(label string) {
	h.Labels = append(h.Labels, label)
	if len(h.Labels) > h.Capacity {
		h.Labels = h.Labels[len(h.Labels)-h.Capacity:]
	}
}

// Len returns the number of stored labels.
func (h *LabelHistory) Len() int {
	return len(h.Labels)
}

func (h *LabelHistory) clone() LabelHistory {
	out := LabelHistory{Capacity: h.Capacity}
	if len(h.Labels) > 0 {
		out.Labels = make([]string, len(h.Labels))
		copy(out.Labels, h.Labels)
	}
	return out
}

// #endregion label-history

// #region channel-histories

// ChannelHistories bundles the per-channel sample windows used for windowed
// statistics (void frequency, coherence trend). Never used for exact replay.
type ChannelHistories struct {
	Energy      History      `json:"energy"`
	Integrity   History      `json:"integrity"`
	Entropy     History      `json:"entropy"`
	Void        History      `json:"void"`
	Coherence   History      `json:"coherence"`
	Coupling    History      `json:"coupling"`
	Risk        History      `json:"risk"`
	Decision    LabelHistory `json:"decision"`
	Oscillation History      `json:"oscillation"`
}

// NewChannelHistories returns empty histories, all with the given capacity.
func NewChannelHistories(capacity int) ChannelHistories {
	return ChannelHistories{
		Energy:      NewHistory(capacity),
		Integrity:   NewHistory(capacity),
		Entropy:     NewHistory(capacity),
		Void:        NewHistory(capacity),
		Coherence:   NewHistory(capacity),
		Coupling:    NewHistory(capacity),
		Risk:        NewHistory(capacity),
		Decision:    NewLabelHistory(capacity),
		Oscillation: NewHistory(capacity),
	}
}

func (c *ChannelHistories) clone() ChannelHistories {
	return ChannelHistories{
		Energy:      c.Energy.clone(),
		Integrity:   c.Integrity.clone(),
		Entropy:     c.Entropy.clone(),
		Void:        c.Void.clone(),
		Coherence:   c.Coherence.clone(),
		Coupling:    c.Coupling.clone(),
		Risk:        c.Risk.clone(),
		Decision:    c.Decision.clone(),
		Oscillation: c.Oscillation.clone(),
	}
}

// #endregion channel-histories

// #region detector-state

// DetectorSample is one entry in the resonance detector's sliding window.
type DetectorSample struct {
	CoherenceSign int    `json:"coherence_sign"`
	RiskSign      int    `json:"risk_sign"`
	Decision      string `json:"decision"`
}

// DetectorState is the persisted form of the resonance detector: the sliding
// window of threshold-sign tuples and the EMA of sign-transition counts.
type DetectorState struct {
	Window []DetectorSample `json:"window"`
	EMA    float64          `json:"ema"`
}

func (d *DetectorState) clone() DetectorState {
	out := DetectorState{EMA: d.EMA}
	if len(d.Window) > 0 {
		out.Window = make([]DetectorSample, len(d.Window))
		copy(out.Window, d.Window)
	}
	return out
}

// #endregion detector-state
