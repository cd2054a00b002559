// Package engine puts a verdict cache and scan de-duplication in front of
// the analyzer.
package engine

import (
	"context"
	"strings"

	"golang.org/x/sync/singleflight"

	"phishguard/internal/analysis"
	"phishguard/internal/metrics"
)

// Scanner is the pipeline being fronted.
type Scanner interface {
	AnalyzeURL(ctx context.Context, url string) (analysis.RiskResult, error)
	AnalyzeBatch(ctx context.Context, urls []string) (analysis.BatchResult, error)
}

type Engine struct {
	scanner      Scanner
	cache        *VerdictCache
	pendingScans singleflight.Group
}

// New fronts scanner. A nil cache only de-duplicates concurrent scans.
func New(scanner Scanner, cache *VerdictCache) *Engine {
	return &Engine{scanner: scanner, cache: cache}
}

// AnalyzeURL answers from RAM when it can (fast path). Otherwise it runs
// one scan per URL no matter how many callers ask at the same time, and
// caches scored results. Error-shaped results and failures are not cached.
func (e *Engine) AnalyzeURL(ctx context.Context, url string) (analysis.RiskResult, error) {
	key := strings.TrimSpace(url)

	if e.cache != nil {
		if res, ok := e.cache.Get(key); ok {
			metrics.VerdictCacheLookups.WithLabelValues("hit").Inc()
			res.URL = url
			return res, nil
		}
	}

	// The scan outlives any single caller: others may be waiting on it and
	// a page cut short by a cancelled request must not be cached.
	scanCtx := context.WithoutCancel(ctx)
	v, err, shared := e.pendingScans.Do(key, func() (any, error) {
		res, err := e.scanner.AnalyzeURL(scanCtx, url)
		if err != nil {
			return nil, err
		}
		if e.cache != nil && !res.Failed() {
			e.cache.Put(key, res)
		}
		return res, nil
	})
	if shared {
		metrics.VerdictCacheLookups.WithLabelValues("shared").Inc()
	} else {
		metrics.VerdictCacheLookups.WithLabelValues("miss").Inc()
	}
	if err != nil {
		return analysis.RiskResult{}, err
	}

	res := v.(analysis.RiskResult)
	res.URL = url
	return res, nil
}

// AnalyzeBatch is not cached: batches are URL-only and cheap.
func (e *Engine) AnalyzeBatch(ctx context.Context, urls []string) (analysis.BatchResult, error) {
	return e.scanner.AnalyzeBatch(ctx, urls)
}
