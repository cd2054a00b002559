package heuristics

import (
	"sort"
	"sync"
	"testing"

	"phishguard/internal/features"
)

func vec(domain string, kv map[string]float64) features.Vector {
	return features.Vector{Domain: domain, Values: kv}
}

func TestEvaluate_StructuralRules(t *testing.T) {
	e := NewEngine(NewTrustedSet(DefaultTrustedDomains...))

	v := vec("evil.xyz", map[string]float64{
		features.BadTLD:         1,
		features.HasIP:          1,
		features.Entropy:        4.5,
		features.PasswordFields: 2,
		features.KeywordHits:    0,
	})

	res := e.Evaluate(v)
	if res.Score != 85 {
		t.Errorf("expected score 85, got %d", res.Score)
	}
	if len(res.Reasons()) != 4 {
		t.Fatalf("expected 4 reasons, got %v", res.Reasons())
	}

	want := []string{
		"Suspicious TLD detected",
		"URL uses raw IP address",
		"High entropy (random-looking URL)",
		"Password input field detected",
	}
	for i, r := range res.Reasons() {
		if r != want[i] {
			t.Errorf("reason %d: got %q, want %q", i, r, want[i])
		}
	}
}

func TestEvaluate_OrderIndependent(t *testing.T) {
	rules := DefaultRules()
	reversed := make([]Rule, len(rules))
	for i, r := range rules {
		reversed[len(rules)-1-i] = r
	}

	v := vec("evil.xyz", map[string]float64{
		features.BadTLD:         1,
		features.HasIP:          1,
		features.Entropy:        5,
		features.PasswordFields: 1,
	})

	a := NewEngine(nil, rules...).Evaluate(v)
	b := NewEngine(nil, reversed...).Evaluate(v)

	if a.Score != b.Score || a.Score != 85 {
		t.Errorf("score depends on rule order: %d vs %d", a.Score, b.Score)
	}
	ra, rb := a.Reasons(), b.Reasons()
	sort.Strings(ra)
	sort.Strings(rb)
	if len(ra) != 4 || len(rb) != 4 {
		t.Fatalf("expected 4 reasons each, got %d and %d", len(ra), len(rb))
	}
	for i := range ra {
		if ra[i] != rb[i] {
			t.Errorf("reason sets differ: %v vs %v", ra, rb)
		}
	}
}

func TestEvaluate_KeywordTrustExemption(t *testing.T) {
	e := NewEngine(NewTrustedSet(DefaultTrustedDomains...))

	trusted := e.Evaluate(vec("google.com", map[string]float64{features.KeywordHits: 3}))
	if trusted.Score != 0 || len(trusted.Hits) != 0 {
		t.Errorf("keyword rule must not fire for a trusted domain, got %+v", trusted)
	}

	untrusted := e.Evaluate(vec("g00gle-login.com", map[string]float64{features.KeywordHits: 1}))
	if untrusted.Score != 15 {
		t.Errorf("expected 15 for untrusted keyword hit, got %d", untrusted.Score)
	}
	if len(untrusted.Hits) != 1 || untrusted.Hits[0].Rule != RulePhishingKeywords {
		t.Errorf("unexpected hits: %+v", untrusted.Hits)
	}
}

func TestEvaluate_TrustDoesNotExemptStructuralRules(t *testing.T) {
	e := NewEngine(NewTrustedSet(DefaultTrustedDomains...))

	res := e.Evaluate(vec("github.com", map[string]float64{
		features.PasswordFields: 1,
		features.KeywordHits:    2,
	}))
	if res.Score != 20 {
		t.Errorf("trusted domain should still trip the password rule only, got %d", res.Score)
	}
}

func TestEvaluate_EntropyThresholdIsStrict(t *testing.T) {
	e := NewEngine(nil)
	if got := e.Evaluate(vec("x.com", map[string]float64{features.Entropy: 4.2})).Score; got != 0 {
		t.Errorf("entropy exactly at threshold must not fire, got %d", got)
	}
}

func TestEvaluate_Clean(t *testing.T) {
	res := NewEngine(nil).Evaluate(vec("example.com", map[string]float64{features.Entropy: 3.1}))
	if res.Score != 0 {
		t.Errorf("expected 0, got %d", res.Score)
	}
	if r := res.Reasons(); r == nil || len(r) != 0 {
		t.Errorf("expected empty non-nil reasons, got %#v", r)
	}
}

func TestEvaluate_AllRules(t *testing.T) {
	e := NewEngine(nil)
	res := e.Evaluate(vec("evil.xyz", map[string]float64{
		features.BadTLD:         1,
		features.HasIP:          1,
		features.Entropy:        4.9,
		features.PasswordFields: 1,
		features.KeywordHits:    4,
	}))
	if res.Score != e.MaxScore() {
		t.Errorf("all rules firing should reach MaxScore %d, got %d", e.MaxScore(), res.Score)
	}
}

func TestMaxScore_DefaultRules(t *testing.T) {
	if got := NewEngine(nil).MaxScore(); got != 100 {
		t.Errorf("default rule weights must sum to 100, got %d", got)
	}
}

func TestTrustedSet_Contains(t *testing.T) {
	set := NewTrustedSet("google.com", "ads.example.com", "Wikipedia.org.")

	tests := []struct {
		input string
		want  bool
		desc  string
	}{
		{"google.com", true, "Exact match"},
		{"mail.google.com", true, "Subdomain match"},
		{"notgoogle.com", false, "Suffix match but different domain"},
		{"google.com.evil.xyz", false, "Trusted name as a subdomain of another domain"},
		{"ads.example.com", true, "Exact subdomain match"},
		{"safe.example.com", false, "Sibling subdomain"},
		{"example.com", false, "Parent of a trusted subdomain"},
		{"wikipedia.org", true, "Normalized entry"},
		{"GOOGLE.COM", true, "Case-insensitive lookup"},
		{"com", false, "Top level domain"},
		{"", false, "Empty string"},
	}
	for _, tc := range tests {
		if got := set.Contains(tc.input); got != tc.want {
			t.Errorf("%s: Contains(%q) = %v, want %v", tc.desc, tc.input, got, tc.want)
		}
	}
	if set.Len() != 3 {
		t.Errorf("expected 3 entries, got %d", set.Len())
	}
}

func TestTrustedSet_Nil(t *testing.T) {
	var set *TrustedSet
	if set.Contains("google.com") {
		t.Error("nil set must not contain anything")
	}
}

// TestTrustedSet_ConcurrentReads exercises lock-free lookups from many
// goroutines. Run with: go test -race ./internal/heuristics
func TestTrustedSet_ConcurrentReads(t *testing.T) {
	set := NewTrustedSet(DefaultTrustedDomains...)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 500; j++ {
				if !set.Contains("github.com") || set.Contains("github.com.evil.xyz") {
					t.Error("inconsistent lookup result")
					return
				}
			}
		}()
	}
	wg.Wait()
}
