package bracket

import (
	"strconv"
	"sync"

	"golang.org/x/sync/singleflight"
)

// coalescer wraps golang.org/x/sync/singleflight.Group (grounded on
// warming/service.go's s.deduper.Do(...) use of the same library) with a
// per-key refresh-generation counter, so a forced refresh bypasses and
// replaces any in-flight non-refresh fetch for the same key (spec.md §4.5:
// "a forced refresh bypasses any waiting on an existing in-flight entry
// started without refresh").
//
// The teacher's own cache-manager/singleflight.go reimplements singleflight
// from scratch; that bespoke version has no notion of generations and is
// not reused here in favor of the real library plus this thin extension.
type coalescer struct {
	group singleflight.Group

	mu  sync.Mutex
	gen map[string]int
}

func newCoalescer() *coalescer {
	return &coalescer{gen: make(map[string]int)}
}

// bump increments key's generation, forcing any subsequent Do call under
// the generation-qualified key to start a fresh singleflight group entry
// rather than join an in-flight one.
func (c *coalescer) bump(key string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen[key]++
	return c.gen[key]
}

func (c *coalescer) currentGen(key string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen[key]
}

// Do executes fn, coalescing concurrent non-refresh callers for key into one
// execution. refresh callers always bump the generation first (via Refresh),
// so they never join a stale in-flight call and every waiter started after
// the bump joins the fresh one instead.
func (c *coalescer) Do(key string, fn func() (interface{}, error)) (interface{}, error, bool) {
	gen := c.currentGen(key)
	return c.group.Do(groupKey(key, gen), fn)
}

// Refresh always starts its own fetch: it bumps the generation first so
// concurrent non-refresh readers waiting on the old generation are
// unaffected, then executes fn under the new generation's key so any reader
// that arrives after the bump joins this fetch instead of starting another.
func (c *coalescer) Refresh(key string, fn func() (interface{}, error)) (interface{}, error, bool) {
	gen := c.bump(key)
	return c.group.Do(groupKey(key, gen), fn)
}

func groupKey(key string, gen int) string {
	return key + "#" + strconv.Itoa(gen)
}
