package heuristics

import "phishguard/internal/features"

// Rule names, used as metric labels.
const (
	RuleSuspiciousTLD    = "suspicious_tld"
	RuleRawIP            = "raw_ip"
	RuleHighEntropy      = "high_entropy"
	RulePasswordField    = "password_field"
	RulePhishingKeywords = "phishing_keywords"
)

// highEntropyThreshold is the URL entropy above which a URL looks random.
const highEntropyThreshold = 4.2

// Rule is one additive heuristic.
type Rule struct {
	Name   string
	Points int
	Reason string
	Match  func(v features.Vector, trusted *TrustedSet) bool
}

// DefaultRules returns the standard rule set in evaluation order.
func DefaultRules() []Rule {
	return []Rule{
		{
			Name:   RuleSuspiciousTLD,
			Points: 25,
			Reason: "Suspicious TLD detected",
			Match: func(v features.Vector, _ *TrustedSet) bool {
				return v.Flag(features.BadTLD)
			},
		},
		{
			Name:   RuleRawIP,
			Points: 20,
			Reason: "URL uses raw IP address",
			Match: func(v features.Vector, _ *TrustedSet) bool {
				return v.Flag(features.HasIP)
			},
		},
		{
			Name:   RuleHighEntropy,
			Points: 20,
			Reason: "High entropy (random-looking URL)",
			Match: func(v features.Vector, _ *TrustedSet) bool {
				return v.Get(features.Entropy) > highEntropyThreshold
			},
		},
		{
			Name:   RulePasswordField,
			Points: 20,
			Reason: "Password input field detected",
			Match: func(v features.Vector, _ *TrustedSet) bool {
				return v.Get(features.PasswordFields) > 0
			},
		},
		{
			// Reputation-based, so trusted domains are exempt. The structural
			// rules above apply to everyone.
			Name:   RulePhishingKeywords,
			Points: 15,
			Reason: "Phishing-like phrases detected",
			Match: func(v features.Vector, trusted *TrustedSet) bool {
				return v.Get(features.KeywordHits) > 0 && !trusted.Contains(v.Domain)
			},
		},
	}
}
