package features

import (
	"errors"
	"fmt"
	"math"
	"net"
	"net/url"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/net/publicsuffix"
)

// ErrEmptyURL is returned for an empty (or whitespace-only) URL. Callers are
// expected to filter these out before extraction.
var ErrEmptyURL = errors.New("features: empty url")

const specialChars = "@!%*{}[]$&"

// longHostnameLen is the subdomain length above which long_hostname is set.
const longHostnameLen = 20

var reIPHost = regexp.MustCompile(`^https?://(?:\d{1,3}\.){3}\d{1,3}(?:[:/?#]|$)`)

var badTLDs = map[string]struct{}{
	"zip": {}, "xyz": {}, "click": {}, "work": {}, "rest": {}, "country": {},
	"kim": {}, "ml": {}, "ga": {}, "cf": {}, "gq": {},
}

// LexicalOptions tunes the URL-string features.
type LexicalOptions struct {
	// CountQueryMarks adds '?' occurrences to num_params. The URL-only model
	// was trained with this definition, the page-aware model without it.
	CountQueryMarks bool
}

// ExtractLexical derives the URL-string features. It does no I/O.
func ExtractLexical(rawURL string, opts LexicalOptions) (Vector, error) {
	u := strings.TrimSpace(rawURL)
	if u == "" {
		return Vector{}, ErrEmptyURL
	}

	host, err := hostOf(u)
	if err != nil {
		return Vector{}, err
	}
	parts := SplitHost(host)

	v := newVector(parts.Domain)

	v.set(SubdomainCount, float64(labelCount(parts.Subdomain)))
	v.set(URLLength, float64(utf8.RuneCountInString(u)))
	v.set(NumDigits, float64(countFunc(u, unicode.IsDigit)))
	v.set(NumSpecialChars, float64(countFunc(u, func(r rune) bool {
		return strings.ContainsRune(specialChars, r)
	})))

	params := strings.Count(u, "&")
	if opts.CountQueryMarks {
		params += strings.Count(u, "?")
	}
	v.set(NumParams, float64(params))

	v.setFlag(HasIP, reIPHost.MatchString(u))
	v.set(Entropy, ShannonEntropy(u))
	v.setFlag(IsHTTPS, strings.HasPrefix(u, "https"))

	_, bad := badTLDs[parts.Suffix]
	v.setFlag(BadTLD, bad)

	v.setFlag(SuspiciousAt, strings.Contains(u, "@"))
	v.setFlag(LongHostname, utf8.RuneCountInString(parts.Subdomain) > longHostnameLen)

	return v, nil
}

// HostParts is a hostname split around its public suffix.
type HostParts struct {
	Subdomain string
	Domain    string // registrable domain, or the bare label when Suffix is empty
	Suffix    string
}

// SplitHost splits a lower-case hostname using the ICANN section of the
// public suffix list. "mail.google.com" gives {mail, google.com, com} and
// "foo.blogspot.com" gives {foo, blogspot.com, com}. Hosts without a known
// suffix (IP literals, unlisted TLDs, single labels) get an empty Suffix and
// their last label as Domain.
func SplitHost(host string) HostParts {
	if host == "" {
		return HostParts{}
	}
	if net.ParseIP(host) != nil {
		return HostParts{Domain: host}
	}

	suffix, icann := publicsuffix.PublicSuffix(host)
	// Private entries (blogspot.com, s3.amazonaws.com) are registrable
	// domains here: walk up to the ICANN suffix below them.
	for !icann && strings.Contains(suffix, ".") {
		_, parent, _ := strings.Cut(suffix, ".")
		suffix, icann = publicsuffix.PublicSuffix(parent)
	}
	// A single-label answer outside ICANN is the list's fallback for an
	// unknown TLD, not a real entry.
	if icann && suffix != host {
		rest := strings.TrimSuffix(host, "."+suffix)
		sub, label := cutLast(rest)
		return HostParts{Subdomain: sub, Domain: label + "." + suffix, Suffix: suffix}
	}
	if suffix == host {
		return HostParts{Domain: host}
	}

	sub, label := cutLast(host)
	return HostParts{Subdomain: sub, Domain: label}
}

// ShannonEntropy returns the base-2 entropy of the character distribution
// of s, 0 for the empty string.
func ShannonEntropy(s string) float64 {
	if s == "" {
		return 0
	}
	counts := make(map[rune]int)
	n := 0
	for _, r := range s {
		counts[r]++
		n++
	}
	var h float64
	for _, c := range counts {
		p := float64(c) / float64(n)
		h -= p * math.Log2(p)
	}
	return h
}

// hostOf parses only the authority so a malformed path, query or fragment
// (a stray "%" for example) never rejects the URL.
func hostOf(u string) (string, error) {
	authority := u
	if i := strings.Index(authority, "://"); i >= 0 {
		authority = authority[i+3:]
	}
	if i := strings.IndexAny(authority, "/?#"); i >= 0 {
		authority = authority[:i]
	}
	if i := strings.LastIndexByte(authority, '@'); i >= 0 {
		authority = authority[i+1:]
	}
	parsed, err := url.Parse("http://" + authority)
	if err != nil {
		return "", fmt.Errorf("features: parse url: %w", err)
	}
	return strings.TrimSuffix(strings.ToLower(parsed.Hostname()), "."), nil
}

func cutLast(host string) (rest, last string) {
	i := strings.LastIndexByte(host, '.')
	if i < 0 {
		return "", host
	}
	return host[:i], host[i+1:]
}

func labelCount(sub string) int {
	if sub == "" {
		return 0
	}
	return strings.Count(sub, ".") + 1
}

func countFunc(s string, f func(rune) bool) int {
	count := 0
	for _, r := range s {
		if f(r) {
			count++
		}
	}
	return count
}
