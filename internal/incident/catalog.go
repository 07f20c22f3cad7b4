package incident

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// PatternSource supplies the ordered known-failure list.
type PatternSource interface {
	KnownFailures(ctx context.Context) ([]FailurePattern, error)
}

// Catalog caches the known-failure list and applies MatchFailure to it.
// Concurrent refreshes are collapsed into a single load.
type Catalog struct {
	src PatternSource
	ttl time.Duration
	now func() time.Time

	mu       sync.RWMutex
	patterns []FailurePattern
	loadedAt time.Time

	group singleflight.Group
}

// NewCatalog creates a catalog over src. A zero ttl disables caching.
func NewCatalog(src PatternSource, ttl time.Duration) *Catalog {
	return &Catalog{src: src, ttl: ttl, now: time.Now}
}

// Match finds the known failure explaining payload, if any.
func (c *Catalog) Match(ctx context.Context, payload string) (*FailurePattern, bool, error) {
	patterns, err := c.load(ctx)
	if err != nil {
		return nil, false, err
	}
	p, ok := MatchFailure(patterns, payload)
	return p, ok, nil
}

// Invalidate drops the cached list so the next Match reloads it.
func (c *Catalog) Invalidate() {
	c.mu.Lock()
	c.patterns = nil
	c.loadedAt = time.Time{}
	c.mu.Unlock()
}

func (c *Catalog) load(ctx context.Context) ([]FailurePattern, error) {
	if c.ttl > 0 {
		c.mu.RLock()
		fresh := !c.loadedAt.IsZero() && c.now().Sub(c.loadedAt) < c.ttl
		patterns := c.patterns
		c.mu.RUnlock()
		if fresh {
			return patterns, nil
		}
	}

	v, err, _ := c.group.Do("known_failures", func() (any, error) {
		patterns, err := c.src.KnownFailures(ctx)
		if err != nil {
			return nil, fmt.Errorf("load known failures: %w", err)
		}
		c.mu.Lock()
		c.patterns = patterns
		c.loadedAt = c.now()
		c.mu.Unlock()
		return patterns, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]FailurePattern), nil
}
