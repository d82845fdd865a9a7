package discovery

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// DefaultRetryEmpty is how long an empty discovery is remembered before the
// chain runs again.
const DefaultRetryEmpty = 30 * time.Second

// Cached discovers the catalog once per process and shares it. Concurrent
// first calls run a single discovery. An empty result is held for RetryEmpty,
// after which the next call discovers again.
type Cached struct {
	method     Method
	group      singleflight.Group
	RetryEmpty time.Duration

	mu      sync.Mutex
	refs    []string
	emptyAt time.Time
	now     func() time.Time
}

func NewCached(m Method) *Cached {
	return &Cached{method: m, RetryEmpty: DefaultRetryEmpty, now: time.Now}
}

func (c *Cached) Name() string { return c.method.Name() }

func (c *Cached) Discover(ctx context.Context) ([]string, error) {
	c.mu.Lock()
	if len(c.refs) > 0 {
		refs := append([]string(nil), c.refs...)
		c.mu.Unlock()
		return refs, nil
	}
	if !c.emptyAt.IsZero() && c.now().Sub(c.emptyAt) < c.RetryEmpty {
		c.mu.Unlock()
		return nil, nil
	}
	c.mu.Unlock()

	v, err, _ := c.group.Do("catalog", func() (any, error) {
		refs, err := c.method.Discover(ctx)
		c.mu.Lock()
		defer c.mu.Unlock()
		switch {
		case len(refs) == 0:
			c.emptyAt = c.now()
		case err == nil:
			c.refs = append([]string(nil), refs...)
			c.emptyAt = time.Time{}
		}
		return refs, err
	})
	refs, _ := v.([]string)
	return append([]string(nil), refs...), err
}
