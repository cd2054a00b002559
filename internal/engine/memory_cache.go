package engine

import (
	"sync"
	"time"

	"phishguard/internal/analysis"
)

type cacheEntry struct {
	result  analysis.RiskResult
	expires time.Time
}

// VerdictCache keeps recent single-URL verdicts in RAM. Reads take the read
// lock only, so many requests can check it at once.
type VerdictCache struct {
	lock    sync.RWMutex
	entries map[string]cacheEntry
	ttl     time.Duration
	max     int
	now     func() time.Time
}

// NewVerdictCache holds up to max verdicts for ttl each.
func NewVerdictCache(ttl time.Duration, max int) *VerdictCache {
	return &VerdictCache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
		max:     max,
		now:     time.Now,
	}
}

// Get returns the cached verdict for url if it has not expired.
func (c *VerdictCache) Get(url string) (analysis.RiskResult, bool) {
	c.lock.RLock()
	defer c.lock.RUnlock()

	e, ok := c.entries[url]
	if !ok || !c.now().Before(e.expires) {
		return analysis.RiskResult{}, false
	}
	return e.result, true
}

// Put stores a verdict. When the cache is full, expired entries are swept
// first; if it is still full the verdict is dropped.
func (c *VerdictCache) Put(url string, res analysis.RiskResult) {
	c.lock.Lock()
	defer c.lock.Unlock()

	now := c.now()
	if _, exists := c.entries[url]; !exists && len(c.entries) >= c.max {
		for k, e := range c.entries {
			if !now.Before(e.expires) {
				delete(c.entries, k)
			}
		}
		if len(c.entries) >= c.max {
			return
		}
	}
	c.entries[url] = cacheEntry{result: res, expires: now.Add(c.ttl)}
}

// Len counts stored entries, expired ones included.
func (c *VerdictCache) Len() int {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return len(c.entries)
}
