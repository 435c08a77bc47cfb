// Package signals derives content-side risk terms from a response text:
// length appropriateness, an observable complexity estimate, and blocklist
// hits that survive negation screening. Nothing here trusts caller-reported
// values; self-reports are reconciled against what the text itself shows.
package signals

import (
	"math"
	"regexp"
	"strings"

	"github.com/danielpatrickdp/agent-governor/internal/mathx"
)

// #region config

// Config bounds the length bands and weights the content-risk blend.
type Config struct {
	// Normal rune-length bands. Code output runs longer than prose.
	ProseMin int `yaml:"prose_min" validate:"gte=1"`
	ProseMax int `yaml:"prose_max" validate:"gtfield=ProseMin"`
	CodeMin  int `yaml:"code_min" validate:"gte=1"`
	CodeMax  int `yaml:"code_max" validate:"gtfield=CodeMin"`

	// DivergenceLimit is how far a self-reported complexity may sit from
	// the derived estimate before the report is overridden.
	DivergenceLimit float64 `yaml:"divergence_limit" validate:"gt=0,lte=1"`

	// NegationWindow is the character span around a blocklist hit that is
	// searched for negation or educational cues.
	NegationWindow int `yaml:"negation_window" validate:"gte=0"`

	LengthWeight     float64 `yaml:"length_weight" validate:"gte=0"`
	ComplexityWeight float64 `yaml:"complexity_weight" validate:"gte=0"`
	CoherenceWeight  float64 `yaml:"coherence_weight" validate:"gte=0"`
	BlocklistWeight  float64 `yaml:"blocklist_weight" validate:"gte=0"`
}

// DefaultConfig returns the reference content tuning.
func DefaultConfig() Config {
	return Config{
		ProseMin:         20,
		ProseMax:         4000,
		CodeMin:          40,
		CodeMax:          12000,
		DivergenceLimit:  0.3,
		NegationWindow:   20,
		LengthWeight:     0.3,
		ComplexityWeight: 0.3,
		CoherenceWeight:  0.2,
		BlocklistWeight:  0.2,
	}
}

// #endregion config

// #region vocabulary

var technicalTerms = []string{
	"goroutine", "mutex", "semaphore", "deadlock", "pointer", "recursion",
	"compiler", "algorithm", "endpoint", "schema", "transaction", "index",
	"serialization", "middleware", "regression", "checksum", "protocol",
	"concurrency", "allocator", "heap", "cache", "migration",
}

var blockedTerms = []string{
	"rm -rf /",
	"drop table",
	"delete from users",
	"chmod 777",
	"curl | sh",
	"disable safety",
	"exfiltrate",
	"keylogger",
	"credential harvest",
	"fork bomb",
}

var negationCues = []string{
	"avoid", "example", "never", "do not", "don't", "warning", "danger",
}

var (
	technicalPatterns = compileWordPatterns(technicalTerms)
	filePathPattern   = regexp.MustCompile(`(?i)\b[\w./~-]+\.(go|py|js|ts|rs|java|rb|c|cpp|h|sh|sql|ya?ml|json|toml|md)\b`)
)

func compileWordPatterns(terms []string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(terms))
	for i, term := range terms {
		out[i] = regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(term) + `\b`)
	}
	return out
}

// #endregion vocabulary

// #region complexity

// LooksLikeCode reports whether the text reads as code rather than prose.
func LooksLikeCode(text string) bool {
	if strings.Count(text, "```") >= 2 {
		return true
	}
	lines := strings.Split(text, "\n")
	indented := 0
	for _, l := range lines {
		if strings.HasPrefix(l, "    ") || strings.HasPrefix(l, "\t") {
			indented++
		}
	}
	return len(lines) >= 4 && indented*2 >= len(lines)
}

// EstimateComplexity scores the text's observable complexity in [0,1] from
// code fences, technical vocabulary hits, and file or path references.
func EstimateComplexity(text string) float64 {
	if text == "" {
		return 0
	}
	score := 0.0

	if fences := strings.Count(text, "```") / 2; fences > 0 {
		score += 0.25
		if fences > 1 {
			score += 0.10
		}
	}

	vocab := 0
	for _, p := range technicalPatterns {
		vocab += len(p.FindAllStringIndex(text, 3))
	}
	score += math.Min(0.05*float64(vocab), 0.35)

	if paths := len(filePathPattern.FindAllStringIndex(text, 5)); paths >= 2 {
		score += 0.20
	} else if paths == 1 {
		score += 0.10
	}

	if len(text) > 2000 {
		score += 0.10
	}
	return mathx.Clamp01(score)
}

// Reconcile folds a self-reported complexity into the derived estimate. A
// missing or non-finite report yields the derived value. A report within
// DivergenceLimit of the estimate is accepted; beyond that the higher of
// the two stands, so a caller can never talk the risk down.
func Reconcile(derived float64, reported *float64, cfg Config) float64 {
	if reported == nil || !mathx.IsFinite(*reported) {
		return derived
	}
	rep := mathx.Clamp01(*reported)
	if math.Abs(rep-derived) > cfg.DivergenceLimit {
		return math.Max(rep, derived)
	}
	return rep
}

// #endregion complexity

// #region length

// LengthTerm scores how far the text length sits outside its normal band:
// 0 inside the band, rising toward 1 as it shrinks to nothing or overruns.
func LengthTerm(text string, cfg Config) float64 {
	lo, hi := cfg.ProseMin, cfg.ProseMax
	if LooksLikeCode(text) {
		lo, hi = cfg.CodeMin, cfg.CodeMax
	}
	n := len([]rune(text))
	switch {
	case n < lo:
		return mathx.Clamp01(float64(lo-n) / float64(lo))
	case n > hi:
		return mathx.Clamp01(float64(n-hi) / float64(hi))
	default:
		return 0
	}
}

// #endregion length

// #region blocklist

// BlocklistTerm scores blocklist hits, skipping any hit whose surrounding
// window contains a negation or educational cue. Text that warns against a
// dangerous command is not itself dangerous.
func BlocklistTerm(text string, cfg Config) float64 {
	lower := strings.ToLower(text)
	hits := 0
	for _, term := range blockedTerms {
		from := 0
		for {
			i := strings.Index(lower[from:], term)
			if i < 0 {
				break
			}
			at := from + i
			if !negated(lower, at, at+len(term), cfg.NegationWindow) {
				hits++
			}
			from = at + len(term)
		}
	}
	return math.Min(1, 0.4*float64(hits))
}

func negated(lower string, start, end, window int) bool {
	lo := start - window
	if lo < 0 {
		lo = 0
	}
	hi := end + window
	if hi > len(lower) {
		hi = len(lower)
	}
	ctx := lower[lo:hi]
	for _, cue := range negationCues {
		if strings.Contains(ctx, cue) {
			return true
		}
	}
	return false
}

// #endregion blocklist

// #region blend

// ContentRisk blends the content terms into one [0,1] score. Complexity is
// the already-reconciled value; coherence comes from the state so losing
// coherence surfaces on the content side too.
func ContentRisk(text string, coherence, complexity float64, cfg Config) float64 {
	blend := cfg.LengthWeight*LengthTerm(text, cfg) +
		cfg.ComplexityWeight*mathx.Clamp01(complexity) +
		cfg.CoherenceWeight*mathx.Clamp01(1-coherence) +
		cfg.BlocklistWeight*BlocklistTerm(text, cfg)
	return mathx.Clamp01(blend)
}

// #endregion blend
