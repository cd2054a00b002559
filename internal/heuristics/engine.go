package heuristics

import (
	"phishguard/internal/features"
	"phishguard/internal/metrics"
)

// Hit is a triggered rule.
type Hit struct {
	Rule   string `json:"rule"`
	Points int    `json:"points"`
	Reason string `json:"reason"`
}

// Result is the heuristic verdict for one URL. Score is the plain sum of
// the hit points; it is not clamped.
type Result struct {
	Hits  []Hit
	Score int
}

// Reasons returns the hit reasons in rule order, never nil.
func (r Result) Reasons() []string {
	reasons := make([]string, 0, len(r.Hits))
	for _, h := range r.Hits {
		reasons = append(reasons, h.Reason)
	}
	return reasons
}

// Engine evaluates an ordered rule set against feature vectors.
type Engine struct {
	rules   []Rule
	trusted *TrustedSet
}

// NewEngine returns an engine over rules, or DefaultRules when none are given.
func NewEngine(trusted *TrustedSet, rules ...Rule) *Engine {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	if trusted == nil {
		trusted = NewTrustedSet()
	}
	return &Engine{rules: rules, trusted: trusted}
}

// Evaluate runs every rule; rules are independent and may all fire.
func (e *Engine) Evaluate(v features.Vector) Result {
	var res Result
	for _, r := range e.rules {
		if !r.Match(v, e.trusted) {
			continue
		}
		res.Hits = append(res.Hits, Hit{Rule: r.Name, Points: r.Points, Reason: r.Reason})
		res.Score += r.Points
		metrics.RuleHitsTotal.WithLabelValues(r.Name).Inc()
	}
	return res
}

// MaxScore is the score when every rule fires.
func (e *Engine) MaxScore() int {
	total := 0
	for _, r := range e.rules {
		total += r.Points
	}
	return total
}
