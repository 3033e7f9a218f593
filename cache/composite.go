package cache

import (
	"fmt"
	"log"
	"strings"
	"sync"
)

// Composite is C3: an ordered, non-empty chain of backends where index 0 is
// most preferred. It implements read-fallback, write-through (parallel
// fan-out, tolerant of partial failure), and delete-all, per spec.md §4.2.
//
// The composite never assumes a backend is transactional; partial visibility
// between backends during a write is tolerated by design (spec.md §4.2).
type Composite struct {
	backends []Backend
	promoter *PromotionQueue // nil disables promotion
	logf     func(format string, args ...interface{})
}

// CompositeConfig configures Composite construction.
type CompositeConfig struct {
	// Backends, most-preferred first. Must be non-empty.
	Backends []Backend
	// Promoter, if non-nil, enables the optional promotion behavior of
	// spec.md §4.2 invariant 3: a hit at level i>0 asynchronously populates
	// levels 0..i-1. Promotion never blocks the read that triggered it.
	Promoter *PromotionQueue
	// Logf receives fault log lines. Defaults to log.Printf.
	Logf func(format string, args ...interface{})
}

// NewComposite builds a Composite. Panics if Backends is empty — a composite
// with no backends is a construction error, not a runtime condition.
func NewComposite(cfg CompositeConfig) *Composite {
	if len(cfg.Backends) == 0 {
		panic("cache: Composite requires at least one backend")
	}
	if cfg.Logf == nil {
		cfg.Logf = log.Printf
	}
	return &Composite{backends: cfg.Backends, promoter: cfg.Promoter, logf: cfg.Logf}
}

// Name returns "Composite(B0.name → B1.name → ...)" per spec.md §4.2.
func (c *Composite) Name() string {
	names := make([]string, len(c.backends))
	for i, b := range c.backends {
		names[i] = b.Name()
	}
	return "Composite(" + strings.Join(names, " → ") + ")"
}

// Get reads through the chain in order, returning the first non-null hit.
// A faulted backend is logged and skipped. If promotion is enabled and the
// hit came from level i>0, levels 0..i-1 are populated asynchronously.
func (c *Composite) Get(key string) ([]byte, bool, error) {
	for i, b := range c.backends {
		val, ok, err := b.Get(key)
		if err != nil {
			c.logf("cache: composite get fault on %s for key %q: %v", b.Name(), key, err)
			continue
		}
		if !ok {
			continue
		}

		if i > 0 && c.promoter != nil {
			c.promoter.Enqueue(promotionTask{
				key:      key,
				value:    val,
				targets:  c.backends[:i],
				fromIdx:  i,
				metaFrom: b,
			})
		}

		return val, true, nil
	}
	return nil, false, nil
}

// Exists is Get without returning the value.
func (c *Composite) Exists(key string) (bool, error) {
	_, ok, err := c.Get(key)
	return ok, err
}

// GetMetadata reads through the chain in order, same fallback discipline as Get.
func (c *Composite) GetMetadata(key string) (*Metadata, error) {
	for _, b := range c.backends {
		meta, err := b.GetMetadata(key)
		if err != nil {
			c.logf("cache: composite getMetadata fault on %s for key %q: %v", b.Name(), key, err)
			continue
		}
		if meta != nil {
			return meta, nil
		}
	}
	return nil, nil
}

// Set dispatches to every backend in parallel and awaits all of them. It
// reports success if at least one backend succeeded (spec.md §4.2 and the
// Open Question in §9: availability over strict coherence), with a logged
// warning when any backend faulted. It fails only when every backend faulted.
func (c *Composite) Set(key string, value []byte, ttlSeconds int) error {
	if key == "" {
		return ErrEmptyKey
	}
	if ttlSeconds <= 0 {
		return ErrInvalidTTL
	}

	errs := c.fanOut(func(b Backend) error {
		return b.Set(key, value, ttlSeconds)
	})

	succeeded := 0
	for i, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		c.logf("cache: composite set fault on %s for key %q: %v", c.backends[i].Name(), key, err)
	}

	if succeeded == 0 {
		return fmt.Errorf("cache: composite set failed on every backend for key %q", key)
	}
	if succeeded < len(c.backends) {
		c.logf("cache: composite set partially succeeded for key %q (%d/%d backends)", key, succeeded, len(c.backends))
	}
	return nil
}

// Del dispatches to every backend in parallel; individual failures are
// logged and swallowed (spec.md §4.2: absent keys are a no-op everywhere).
func (c *Composite) Del(key string) error {
	if key == "" {
		return ErrEmptyKey
	}

	errs := c.fanOut(func(b Backend) error {
		return b.Del(key)
	})
	for i, err := range errs {
		if err != nil {
			c.logf("cache: composite del fault on %s for key %q: %v", c.backends[i].Name(), key, err)
		}
	}
	return nil
}

// Clear dispatches to every backend in parallel and awaits all, same
// partial-failure tolerance as Set.
func (c *Composite) Clear() error {
	errs := c.fanOut(func(b Backend) error {
		return b.Clear()
	})

	succeeded := 0
	for i, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		c.logf("cache: composite clear fault on %s: %v", c.backends[i].Name(), err)
	}
	if succeeded == 0 {
		return fmt.Errorf("cache: composite clear failed on every backend")
	}
	return nil
}

// Close closes every backend in parallel and awaits all.
func (c *Composite) Close() error {
	errs := c.fanOut(func(b Backend) error {
		return b.Close()
	})
	for i, err := range errs {
		if err != nil {
			c.logf("cache: composite close fault on %s: %v", c.backends[i].Name(), err)
		}
	}
	if c.promoter != nil {
		c.promoter.Stop()
	}
	return nil
}

// fanOut runs fn against every backend concurrently and returns one error
// slot per backend (index-aligned with c.backends), awaiting all of them.
func (c *Composite) fanOut(fn func(Backend) error) []error {
	errs := make([]error, len(c.backends))
	var wg sync.WaitGroup
	wg.Add(len(c.backends))
	for i, b := range c.backends {
		go func(i int, b Backend) {
			defer wg.Done()
			errs[i] = fn(b)
		}(i, b)
	}
	wg.Wait()
	return errs
}
