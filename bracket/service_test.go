package bracket

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"encore.dev/beta/errs"

	"encore.app/cache"
	"encore.app/internal/metrics"
	"encore.app/pkg/middleware"
	"encore.app/tournament"
	"encore.app/upstream"
)

// fakeFetcher is a tournamentFetcher test double, grounded on the teacher's
// MockOriginFetcher (cache-manager/service_test.go): configurable result,
// error, and call count.
type fakeFetcher struct {
	calls  int32
	result *tournament.Tournament
	err    error
	delay  time.Duration
}

func (f *fakeFetcher) FetchTournament(ctx context.Context, slug string, cb *upstream.Callbacks) (*tournament.Tournament, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func newTestService(t *testing.T, fetcher tournamentFetcher) *Service {
	t.Helper()
	memory := cache.NewMemoryBackend(cache.MemoryBackendConfig{SweepInterval: time.Hour})
	t.Cleanup(func() { _ = memory.Close() })
	composite := cache.NewComposite(cache.CompositeConfig{Backends: []cache.Backend{memory}, Logf: func(string, ...interface{}) {}})
	return &Service{
		cacheStack: composite,
		client:     fetcher,
		coalescer:  newCoalescer(),
		recorder:   metrics.NewRecorder(64),
	}
}

func idleTournament(slug string) *tournament.Tournament {
	return &tournament.Tournament{ID: "t1", Slug: slug, Name: "Test Tournament"}
}

func TestReadColdCacheFetchesUpstreamAndWritesThrough(t *testing.T) {
	fetcher := &fakeFetcher{result: idleTournament("genesis-9")}
	s := newTestService(t, fetcher)

	resp, err := s.Read(context.Background(), "genesis-9", false)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if resp.Cached {
		t.Fatalf("expected cached:false on a cold read")
	}
	if atomic.LoadInt32(&fetcher.calls) != 1 {
		t.Fatalf("expected exactly one upstream fetch")
	}

	status := s.Status(context.Background(), "genesis-9")
	if !status.Cached {
		t.Fatalf("expected the write-through to be visible via cache-status")
	}
}

func TestReadWarmCacheNeverCallsUpstream(t *testing.T) {
	fetcher := &fakeFetcher{result: idleTournament("genesis-9")}
	s := newTestService(t, fetcher)

	if _, err := s.Read(context.Background(), "genesis-9", false); err != nil {
		t.Fatalf("first Read: %v", err)
	}
	resp, err := s.Read(context.Background(), "genesis-9", false)
	if err != nil {
		t.Fatalf("second Read: %v", err)
	}
	if !resp.Cached {
		t.Fatalf("expected cached:true on a warm read")
	}
	if atomic.LoadInt32(&fetcher.calls) != 1 {
		t.Fatalf("expected the warm read to skip upstream entirely")
	}
}

func TestRefreshAlwaysBypassesCache(t *testing.T) {
	fetcher := &fakeFetcher{result: idleTournament("genesis-9")}
	s := newTestService(t, fetcher)

	if _, err := s.Read(context.Background(), "genesis-9", false); err != nil {
		t.Fatalf("first Read: %v", err)
	}
	resp, err := s.Refresh(context.Background(), "genesis-9")
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if resp.Cached {
		t.Fatalf("expected cached:false on a forced refresh")
	}
	if atomic.LoadInt32(&fetcher.calls) != 2 {
		t.Fatalf("expected Refresh to call upstream again, got %d calls", fetcher.calls)
	}
}

func TestReadSingleFlightsConcurrentMisses(t *testing.T) {
	fetcher := &fakeFetcher{result: idleTournament("genesis-9"), delay: 50 * time.Millisecond}
	s := newTestService(t, fetcher)

	done := make(chan error, 5)
	for i := 0; i < 5; i++ {
		go func() {
			_, err := s.Read(context.Background(), "genesis-9", false)
			done <- err
		}()
	}
	for i := 0; i < 5; i++ {
		if err := <-done; err != nil {
			t.Fatalf("Read: %v", err)
		}
	}
	if got := atomic.LoadInt32(&fetcher.calls); got != 1 {
		t.Fatalf("expected concurrent misses to coalesce into one upstream call, got %d", got)
	}
}

func TestReadUpstreamErrorIsClassified(t *testing.T) {
	fetcher := &fakeFetcher{err: upstream.NewNotFound("tournament \"ghost\" not found")}
	s := newTestService(t, fetcher)

	_, err := s.Read(context.Background(), "ghost", false)
	if err == nil {
		t.Fatalf("expected an error")
	}
	var apiErr *errs.Error
	if !errors.As(err, &apiErr) || apiErr.Code != errs.NotFound {
		t.Fatalf("expected an upstream not-found to be classified as errs.NotFound, got %v", err)
	}
}

func TestReadRejectsEmptySlug(t *testing.T) {
	s := newTestService(t, &fakeFetcher{})
	if _, err := s.Read(context.Background(), "", false); err == nil {
		t.Fatalf("expected an error for an empty slug")
	}
}

func TestStatusReportsUncachedForUnknownSlug(t *testing.T) {
	s := newTestService(t, &fakeFetcher{})
	status := s.Status(context.Background(), "never-fetched")
	if status.Cached {
		t.Fatalf("expected cached:false for a slug never read")
	}
}

func TestFetchAndStoreToleratesCacheWriteFault(t *testing.T) {
	fetcher := &fakeFetcher{result: idleTournament("genesis-9")}
	s := newTestService(t, fetcher)

	faulty := &faultyBackend{}
	s.SetCache(cache.NewComposite(cache.CompositeConfig{Backends: []cache.Backend{faulty}, Logf: func(string, ...interface{}) {}}))

	resp, err := s.Read(context.Background(), "genesis-9", false)
	if err != nil {
		t.Fatalf("expected upstream success to survive a cache-write fault, got %v", err)
	}
	if resp.Data == nil {
		t.Fatalf("expected data even though the write-through faulted")
	}
}

func TestCheckRateLimitNoopWhenDisabled(t *testing.T) {
	s := newTestService(t, &fakeFetcher{})
	for i := 0; i < 10; i++ {
		if err := s.checkRateLimit("1.2.3.4"); err != nil {
			t.Fatalf("expected no limiting with inboundLimiter unset, got %v", err)
		}
	}
}

func TestCheckRateLimitFailsOpenOnEmptyIP(t *testing.T) {
	s := newTestService(t, &fakeFetcher{})
	s.inboundLimiter = middleware.NewTokenBucket(1, 1)
	for i := 0; i < 10; i++ {
		if err := s.checkRateLimit(""); err != nil {
			t.Fatalf("expected an empty client IP to fail open, got %v", err)
		}
	}
}

func TestCheckRateLimitBlocksOverBurst(t *testing.T) {
	s := newTestService(t, &fakeFetcher{})
	s.inboundLimiter = middleware.NewTokenBucket(1, 2)

	if err := s.checkRateLimit("5.6.7.8"); err != nil {
		t.Fatalf("first request should be allowed, got %v", err)
	}
	if err := s.checkRateLimit("5.6.7.8"); err != nil {
		t.Fatalf("second request within burst should be allowed, got %v", err)
	}
	if err := s.checkRateLimit("5.6.7.8"); err == nil {
		t.Fatalf("third request past the burst should be rate limited")
	}
}

func TestCheckRateLimitIsolatesByKey(t *testing.T) {
	s := newTestService(t, &fakeFetcher{})
	s.inboundLimiter = middleware.NewTokenBucket(1, 1)

	if err := s.checkRateLimit("1.1.1.1"); err != nil {
		t.Fatalf("first caller should be allowed, got %v", err)
	}
	if err := s.checkRateLimit("2.2.2.2"); err != nil {
		t.Fatalf("a distinct caller must have its own bucket, got %v", err)
	}
}

// faultyBackend always faults on Set, never on Get, to exercise the
// cache-fault-never-fails-the-request guarantee (spec.md §7).
type faultyBackend struct{}

func (faultyBackend) Name() string                                    { return "faulty" }
func (faultyBackend) Get(string) ([]byte, bool, error)                 { return nil, false, nil }
func (faultyBackend) Set(string, []byte, int) error                    { return errors.New("write fault") }
func (faultyBackend) Del(string) error                                 { return nil }
func (faultyBackend) Exists(string) (bool, error)                      { return false, nil }
func (faultyBackend) GetMetadata(string) (*cache.Metadata, error)      { return nil, nil }
func (faultyBackend) Clear() error                                     { return nil }
func (faultyBackend) Close() error                                     { return nil }
