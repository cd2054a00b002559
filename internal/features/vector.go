package features

import (
	"encoding/json"
)

// Feature names shared by the extractor, the heuristics and the models'
// feature_names files.
const (
	SubdomainCount  = "subdomain_count"
	URLLength       = "url_length"
	NumDigits       = "num_digits"
	NumSpecialChars = "num_special_chars"
	NumParams       = "num_params"
	HasIP           = "has_ip"
	Entropy         = "entropy"
	IsHTTPS         = "is_https"
	BadTLD          = "bad_tld"
	SuspiciousAt    = "suspicious_at"
	LongHostname    = "long_hostname"

	FormCount       = "form_count"
	PasswordFields  = "password_fields"
	ScriptsExternal = "scripts_external"
	Images          = "images"
	HiddenInputs    = "hidden_inputs"
	KeywordHits     = "keyword_hits"
	HasBase64       = "has_base64"
)

// PageFeatureNames lists the page-derived features in model column order.
var PageFeatureNames = []string{
	FormCount,
	PasswordFields,
	ScriptsExternal,
	Images,
	HiddenInputs,
	KeywordHits,
	HasBase64,
}

// Vector is the feature set of one URL. Domain is categorical metadata and
// is kept out of Values so it can never reach a classifier.
type Vector struct {
	Domain string
	Values map[string]float64
}

func newVector(domain string) Vector {
	return Vector{Domain: domain, Values: make(map[string]float64, 20)}
}

// Get returns the named feature, 0 when absent.
func (v Vector) Get(name string) float64 {
	return v.Values[name]
}

// Flag reports whether a 0/1 feature is set.
func (v Vector) Flag(name string) bool {
	return v.Values[name] != 0
}

func (v Vector) set(name string, val float64) {
	v.Values[name] = val
}

func (v Vector) setFlag(name string, b bool) {
	v.Values[name] = boolToFloat(b)
}

// Flatten lays the vector out in the given column order. Unknown columns
// are filled with 0.
func (v Vector) Flatten(order []string) []float32 {
	row := make([]float32, len(order))
	for i, name := range order {
		if val, ok := v.Values[name]; ok {
			row[i] = float32(val)
		}
	}
	return row
}

// jsonBools are the flags reported as true/false rather than 0/1.
var jsonBools = map[string]struct{}{HasIP: {}, IsHTTPS: {}, HasBase64: {}}

// MarshalJSON emits one flat object: the domain next to the features.
func (v Vector) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(v.Values)+1)
	for k, val := range v.Values {
		if _, ok := jsonBools[k]; ok {
			m[k] = val != 0
			continue
		}
		m[k] = val
	}
	m["domain"] = v.Domain
	return json.Marshal(m)
}

func boolToFloat(b bool) float64 {
	if b {
		return 1.0
	}
	return 0.0
}
