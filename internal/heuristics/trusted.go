package heuristics

import "strings"

// DefaultTrustedDomains are exempt from the phishing-keyword rule.
var DefaultTrustedDomains = []string{
	"google.com",
	"youtube.com",
	"microsoft.com",
	"github.com",
	"facebook.com",
	"wikipedia.org",
	"apple.com",
	"amazon.com",
	"openai.com",
}

type trieNode struct {
	children map[byte]*trieNode
	isEnd    bool
}

func newTrieNode() *trieNode {
	return &trieNode{children: make(map[byte]*trieNode)}
}

// TrustedSet is a reverse-character trie of trusted domains. It is built
// once and only read afterwards, so lookups take no lock.
type TrustedSet struct {
	root *trieNode
	size int
}

// NewTrustedSet builds the set from the given domains.
func NewTrustedSet(domains ...string) *TrustedSet {
	t := &TrustedSet{root: newTrieNode()}
	for _, d := range domains {
		t.insert(normalizeDomain(d))
	}
	return t
}

// Domains are inserted in REVERSE order: "bad.com" -> 'm', 'o', 'c', '.', 'd', 'a', 'b'
func (t *TrustedSet) insert(domain string) {
	if domain == "" {
		return
	}
	node := t.root
	for i := len(domain) - 1; i >= 0; i-- {
		char := domain[i]
		if node.children[char] == nil {
			node.children[char] = newTrieNode()
		}
		node = node.children[char]
	}
	if !node.isEnd {
		t.size++
	}
	node.isEnd = true
}

// Contains reports whether domain, or a parent domain of it, is trusted.
// "google.com" covers "mail.google.com" but not "notgoogle.com".
func (t *TrustedSet) Contains(domain string) bool {
	if t == nil {
		return false
	}
	domain = normalizeDomain(domain)
	node := t.root
	for i := len(domain) - 1; i >= 0; i-- {
		// A trusted entry ends exactly at a label boundary.
		if node.isEnd && domain[i] == '.' {
			return true
		}
		next, ok := node.children[domain[i]]
		if !ok {
			return false
		}
		node = next
	}
	return node.isEnd
}

// Len returns the number of distinct trusted domains.
func (t *TrustedSet) Len() int {
	if t == nil {
		return 0
	}
	return t.size
}

func normalizeDomain(d string) string {
	return strings.TrimSuffix(strings.ToLower(strings.TrimSpace(d)), ".")
}
