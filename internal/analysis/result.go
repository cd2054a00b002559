package analysis

import (
	"encoding/json"

	"phishguard/internal/features"
	"phishguard/internal/scoring"
)

// RiskResult is the per-URL verdict. When Error is set the scan produced no
// score and only URL and Error are serialized.
type RiskResult struct {
	URL               string           `json:"url"`
	AIPrediction      int              `json:"ai_prediction"`
	AIProbability     float64          `json:"ai_probability"`
	HeuristicScore    int              `json:"heuristic_score"`
	CombinedRiskScore float64          `json:"combined_risk_score"`
	RiskLevel         scoring.Level    `json:"risk_level"`
	Reasons           []string         `json:"reasons,omitempty"`
	Features          *features.Vector `json:"features,omitempty"`
	Error             string           `json:"error,omitempty"`
}

// Failed reports whether r is an error-shaped result.
func (r RiskResult) Failed() bool {
	return r.Error != ""
}

func (r RiskResult) MarshalJSON() ([]byte, error) {
	if r.Failed() {
		return json.Marshal(struct {
			URL   string `json:"url"`
			Error string `json:"error"`
		}{r.URL, r.Error})
	}
	type plain RiskResult
	return json.Marshal(plain(r))
}

// Summary counts batch results per risk band.
type Summary struct {
	Safe       int `json:"safe"`
	Suspicious int `json:"suspicious"`
	HighRisk   int `json:"high_risk"`
}

func (s *Summary) add(level scoring.Level) {
	switch level {
	case scoring.LevelHigh:
		s.HighRisk++
	case scoring.LevelSuspicious:
		s.Suspicious++
	default:
		s.Safe++
	}
}

// BatchResult holds the batch verdicts in input order.
type BatchResult struct {
	Count   int          `json:"count"`
	Results []RiskResult `json:"results"`
	Summary Summary      `json:"summary"`
}
