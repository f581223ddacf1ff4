package matcher

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// PlanCache is a read-through view of the latest computed plan, for
// previews. It is never consulted by the reconciliation loop itself.
type PlanCache struct {
	ttl   time.Duration
	mu    sync.RWMutex
	plan  *Plan
	built time.Time
	sf    singleflight.Group
	now   func() time.Time
}

// NewPlanCache creates a cache; a zero ttl disables caching.
func NewPlanCache(ttl time.Duration) *PlanCache {
	return &PlanCache{ttl: ttl, now: time.Now}
}

func (c *PlanCache) fresh() (*Plan, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.plan == nil || c.ttl == 0 || c.now().Sub(c.built) > c.ttl {
		return nil, false
	}
	return c.plan, true
}

// Get returns the cached plan or builds a new one. Concurrent callers share
// a single build.
func (c *PlanCache) Get(ctx context.Context, build func(context.Context) (*Plan, error)) (*Plan, error) {
	if plan, ok := c.fresh(); ok {
		return plan, nil
	}

	result, err, _ := c.sf.Do("plan", func() (any, error) {
		// Double-check after acquiring singleflight lock
		if plan, ok := c.fresh(); ok {
			return plan, nil
		}

		plan, err := build(ctx)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.plan = plan
		c.built = c.now()
		c.mu.Unlock()
		return plan, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*Plan), nil
}

// Invalidate drops the cached plan.
func (c *PlanCache) Invalidate() {
	c.mu.Lock()
	c.plan = nil
	c.mu.Unlock()
}
