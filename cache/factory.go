package cache

import "time"

// FactoryConfig mirrors the environment-driven choice of spec.md §6: presence
// of a remote cache URL enables the composite [remote, in-memory]; absence
// selects the in-memory backend alone.
type FactoryConfig struct {
	RemoteCacheURL string // optional; enables composite [remote, memory]
	MemoryMaxEntries int
	MemorySweepInterval time.Duration
	EnablePromotion  bool
	PromotionWorkers int
	PromotionQueueSize int
	Logf func(format string, args ...interface{})
}

// BuildCache is C4: the cache factory. Returns the constructed top-level
// cache and a cleanup func that closes every backend it created.
func BuildCache(cfg FactoryConfig) (*Composite, func() error, error) {
	memory := NewMemoryBackend(MemoryBackendConfig{
		MaxEntries:    cfg.MemoryMaxEntries,
		SweepInterval: cfg.MemorySweepInterval,
	})

	backends := []Backend{memory}

	if cfg.RemoteCacheURL != "" {
		remote, err := NewRemoteBackend(RemoteBackendConfig{URL: cfg.RemoteCacheURL})
		if err != nil {
			_ = memory.Close()
			return nil, nil, err
		}
		// Remote is most-preferred (B0): it is the shared, cross-process
		// source of truth; memory is the fast local fallback (B1).
		backends = []Backend{remote, memory}
	}

	var promoter *PromotionQueue
	if cfg.EnablePromotion && len(backends) > 1 {
		promoter = NewPromotionQueue(PromotionQueueConfig{
			Workers:   cfg.PromotionWorkers,
			QueueSize: cfg.PromotionQueueSize,
			Logf:      cfg.Logf,
		})
	}

	composite := NewComposite(CompositeConfig{
		Backends: backends,
		Promoter: promoter,
		Logf:     cfg.Logf,
	})

	cleanup := func() error {
		return composite.Close()
	}

	return composite, cleanup, nil
}
