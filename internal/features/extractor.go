package features

import (
	"context"
	"strings"
)

// Column orders of the two trained models, in the order the training
// scripts emitted them. Used when a model ships without a feature_names file.
var (
	PageModelColumns = []string{
		SubdomainCount, URLLength, NumDigits, NumSpecialChars, NumParams,
		HasIP, Entropy, IsHTTPS, BadTLD,
		FormCount, PasswordFields, ScriptsExternal, Images, HiddenInputs,
		KeywordHits, HasBase64,
	}
	URLModelColumns = []string{
		SubdomainCount, URLLength, NumDigits, NumSpecialChars, NumParams,
		HasIP, Entropy, IsHTTPS, BadTLD, SuspiciousAt, LongHostname,
	}
)

// Options selects the extraction pipeline.
type Options struct {
	// FetchPage downloads the page and adds the page features.
	FetchPage bool
	// CountQueryMarks see LexicalOptions.
	CountQueryMarks bool
}

// SingleScanOptions is the page-aware pipeline used for one URL at a time.
func SingleScanOptions() Options {
	return Options{FetchPage: true}
}

// BatchOptions is the URL-only pipeline: no network I/O.
func BatchOptions() Options {
	return Options{CountQueryMarks: true}
}

// Extractor combines lexical and page features behind one call.
type Extractor struct {
	page *PageExtractor
}

// NewExtractor returns an Extractor. page may be nil, in which case
// page-aware extraction scores every page as the empty document.
func NewExtractor(page *PageExtractor) *Extractor {
	return &Extractor{page: page}
}

// Extract builds the feature vector for rawURL. Only lexical failures (empty
// or unparsable URL) are returned; page problems degrade to zero counts.
func (e *Extractor) Extract(ctx context.Context, rawURL string, opts Options) (Vector, error) {
	v, err := ExtractLexical(rawURL, LexicalOptions{CountQueryMarks: opts.CountQueryMarks})
	if err != nil {
		return Vector{}, err
	}
	if !opts.FetchPage {
		return v, nil
	}

	var page PageFeatures
	if e.page != nil {
		page = e.page.Extract(ctx, strings.TrimSpace(rawURL))
	} else {
		page = ParsePage("")
	}
	page.apply(v)
	return v, nil
}
