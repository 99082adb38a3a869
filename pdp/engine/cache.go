// api/pdp/engine/cache.go
package engine

import (
	"context"
	"sync"
	"time"

	pdp_model "github.com/dev-mohitbeniwal/warden/api/pdp/model"
)

// RemoteDecisionCache is an optional second cache tier (redis-backed in the
// host shell). Lookups and stores are best-effort.
type RemoteDecisionCache interface {
	GetDecision(ctx context.Context, key string) (*pdp_model.AccessDecision, bool)
	SetDecision(ctx context.Context, key string, decision pdp_model.AccessDecision)
}

// decisionCache holds recent decisions keyed by session, resource, and access
// type. Entries expire after the configured TTL; when the map grows past its
// size bound an arbitrary entry is evicted.
type decisionCache struct {
	mu      sync.Mutex
	entries map[string]pdp_model.DecisionCacheEntry
	size    int
	ttl     time.Duration
	now     func() time.Time
}

func newDecisionCache(size int, ttl time.Duration, now func() time.Time) *decisionCache {
	if size <= 0 {
		size = 1024
	}
	return &decisionCache{
		entries: make(map[string]pdp_model.DecisionCacheEntry),
		size:    size,
		ttl:     ttl,
		now:     now,
	}
}

func (c *decisionCache) Get(key string) (pdp_model.AccessDecision, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return pdp_model.AccessDecision{}, false
	}
	if c.now().After(entry.ExpiresAt) {
		delete(c.entries, key)
		return pdp_model.AccessDecision{}, false
	}
	return entry.Decision, true
}

func (c *decisionCache) Set(key string, decision pdp_model.AccessDecision) {
	if c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.entries) >= c.size {
		for k := range c.entries {
			delete(c.entries, k)
			break
		}
	}
	c.entries[key] = pdp_model.DecisionCacheEntry{
		Decision:  decision,
		ExpiresAt: c.now().Add(c.ttl),
	}
}

func (c *decisionCache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]pdp_model.DecisionCacheEntry)
}
