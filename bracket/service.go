// Package bracket is C7: the tournament request router. It wires the
// cache stack (C3/C4), the upstream GraphQL client (C5), and the TTL policy
// (C6) behind three HTTP endpoints plus health/metrics, following
// cache-manager/service.go's shape: a service struct holding dependencies,
// a package-level singleton initialized once via sync.Once, and exported
// //encore:api functions that delegate straight to a method on the struct
// (Health to Health, GetTournament to Read, RefreshTournament to Refresh,
// CacheStatus to Status).
package bracket

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"encore.app/cache"
	"encore.app/internal/metrics"
	"encore.app/pkg/middleware"
	"encore.app/tournament"
	"encore.app/upstream"
)

// tournamentFetcher is the narrow interface Service depends on for C5,
// satisfied by *upstream.Client. Grounded on the teacher's OriginFetcher
// interface in cache-manager/service.go, which exists for exactly this
// reason: so tests can substitute a MockOriginFetcher instead of a real
// upstream call.
type tournamentFetcher interface {
	FetchTournament(ctx context.Context, slug string, cb *upstream.Callbacks) (*tournament.Tournament, error)
}

// Service holds every dependency the router orchestrates.
//
//encore:service
type Service struct {
	cfg          Config
	cacheStack   *cache.Composite
	cacheCleanup func() error
	client       tournamentFetcher
	clientClose  func()
	coalescer    *coalescer
	recorder     *metrics.Recorder

	// inboundLimiter guards the BFF's own surface against abusive polling
	// clients (SPEC_FULL.md recovered feature #2); nil when disabled.
	inboundLimiter *middleware.TokenBucket
}

// SetFetcher overrides the upstream fetcher, for tests. Mirrors
// cache-manager/service.go's SetOriginFetcher.
func (s *Service) SetFetcher(f tournamentFetcher) { s.client = f }

// SetCache overrides the cache stack, for tests. Mirrors
// cache-manager/service.go's SetL2Cache.
func (s *Service) SetCache(c *cache.Composite) { s.cacheStack = c }

var (
	svc     *Service
	once    sync.Once
	initErr error
)

func initService() (*Service, error) {
	once.Do(func() {
		cfg, err := LoadConfig()
		if err != nil {
			initErr = err
			return
		}
		svc, initErr = newService(cfg)
	})
	return svc, initErr
}

func newService(cfg Config) (*Service, error) {
	cacheStack, cleanup, err := cache.BuildCache(cache.FactoryConfig{
		RemoteCacheURL:  cfg.RemoteCacheURL,
		EnablePromotion: true,
		Logf:            log.Printf,
	})
	if err != nil {
		return nil, err
	}

	client := upstream.NewClient(upstream.ClientConfig{
		Endpoint:       upstreamEndpoint(),
		Token:          cfg.UpstreamToken,
		MinInterval:    cfg.UpstreamMinInterval,
		MaxRetries:     cfg.UpstreamMaxRetries,
		RetryBaseDelay: cfg.UpstreamRetryBase,
		PageSize:       cfg.PageSize,
		PageLimit:      cfg.PageLimit,
	})

	var limiter *middleware.TokenBucket
	if cfg.InboundRateLimit > 0 {
		limiter = middleware.NewTokenBucket(cfg.InboundRateLimit, int64(cfg.InboundRateBurst))
	}

	return &Service{
		cfg:            cfg,
		cacheStack:     cacheStack,
		cacheCleanup:   cleanup,
		client:         client,
		clientClose:    client.Close,
		coalescer:      newCoalescer(),
		recorder:       metrics.NewRecorder(1024),
		inboundLimiter: limiter,
	}, nil
}

// checkRateLimit enforces the per-IP inbound token bucket, a no-op when
// InboundRateLimit is configured to 0. clientIP is best-effort: an empty
// value (no X-Forwarded-For) fails open rather than locking every such
// caller out of a shared bucket.
func (s *Service) checkRateLimit(clientIP string) error {
	if s.inboundLimiter == nil || clientIP == "" {
		return nil
	}
	if !s.inboundLimiter.Allow(clientIP) {
		return rateLimitedLocally("too many requests, slow down")
	}
	return nil
}

// upstreamEndpoint is not part of spec.md §6's enumerated configuration
// (the upstream base URL is assumed fixed infrastructure, unlike the
// per-deployment credential and tuning knobs); it is still read from the
// environment so it is never hardcoded into source.
func upstreamEndpoint() string {
	if v := os.Getenv("UPSTREAM_GRAPHQL_ENDPOINT"); v != "" {
		return v
	}
	return "https://api.upstream.example/gql"
}

// Shutdown releases the cache stack's resources (connections, background
// goroutines) and stops the upstream dispatch queue.
func (s *Service) Shutdown() {
	if s.cacheCleanup != nil {
		if err := s.cacheCleanup(); err != nil {
			log.Printf("[WARN] cache shutdown error: %v", err)
		}
	}
	if s.clientClose != nil {
		s.clientClose()
	}
}

// HealthResponse is the liveness payload of spec.md §6.
type HealthResponse struct {
	Status      string `json:"status"`
	Timestamp   int64  `json:"timestamp"`
	Environment string `json:"environment"`
}

//encore:api public method=GET path=/health
func Health(ctx context.Context) (*HealthResponse, error) {
	s, err := initService()
	if err != nil {
		return nil, classifyUpstreamError(err)
	}
	return s.Health(ctx), nil
}

func (s *Service) Health(ctx context.Context) *HealthResponse {
	env := os.Getenv("ENCORE_ENV")
	if env == "" {
		env = "development"
	}
	return &HealthResponse{Status: "ok", Timestamp: time.Now().Unix(), Environment: env}
}

// TournamentParams carries the optional refresh query flag of spec.md §4.5
// plus the caller's forwarded IP, used only for the BFF's own inbound rate
// limit (SPEC_FULL.md recovered feature #2) — never logged or forwarded
// upstream.
type TournamentParams struct {
	Refresh  bool   `query:"refresh"`
	ClientIP string `header:"X-Forwarded-For"`
}

//encore:api public method=GET path=/api/tournament/:slug
func GetTournament(ctx context.Context, slug string, params *TournamentParams) (*tournament.Response, error) {
	s, err := initService()
	if err != nil {
		return nil, classifyUpstreamError(err)
	}
	var clientIP string
	if params != nil {
		clientIP = params.ClientIP
	}
	if err := s.checkRateLimit(clientIP); err != nil {
		return nil, err
	}
	ctx = requestContext(ctx)
	refresh := params != nil && params.Refresh
	middleware.LogWithRequestID(ctx, "tournament read", map[string]interface{}{"slug": slug, "refresh": refresh})
	return s.Read(ctx, slug, refresh)
}

// RefreshParams carries the caller's forwarded IP for inbound rate limiting.
type RefreshParams struct {
	ClientIP string `header:"X-Forwarded-For"`
}

//encore:api public method=POST path=/api/tournament/:slug/refresh
func RefreshTournament(ctx context.Context, slug string, params *RefreshParams) (*tournament.Response, error) {
	s, err := initService()
	if err != nil {
		return nil, classifyUpstreamError(err)
	}
	var clientIP string
	if params != nil {
		clientIP = params.ClientIP
	}
	if err := s.checkRateLimit(clientIP); err != nil {
		return nil, err
	}
	ctx = requestContext(ctx)
	middleware.LogWithRequestID(ctx, "tournament refresh", map[string]interface{}{"slug": slug})
	return s.Refresh(ctx, slug)
}

// CacheStatusResponse is spec.md §4.5's status() contract:
// {cached: bool, metadata | null}.
type CacheStatusResponse struct {
	Cached   bool                         `json:"cached"`
	Metadata *tournament.ResponseMetadata `json:"metadata,omitempty"`
}

// CacheStatusParams carries the caller's forwarded IP for inbound rate limiting.
type CacheStatusParams struct {
	ClientIP string `header:"X-Forwarded-For"`
}

//encore:api public method=GET path=/api/tournament/:slug/cache-status
func CacheStatus(ctx context.Context, slug string, params *CacheStatusParams) (*CacheStatusResponse, error) {
	s, err := initService()
	if err != nil {
		return nil, classifyUpstreamError(err)
	}
	var clientIP string
	if params != nil {
		clientIP = params.ClientIP
	}
	if err := s.checkRateLimit(clientIP); err != nil {
		return nil, err
	}
	return s.Status(ctx, slug), nil
}

// requestContext attaches a request ID to ctx for LogWithRequestID: ctx is
// returned unchanged if it already carries one set through
// middleware.WithRequestID, otherwise a fresh one is minted.
func requestContext(ctx context.Context) context.Context {
	if middleware.RequestIDFromCtx(ctx) != "" {
		return ctx
	}
	return middleware.WithRequestID(ctx, uuid.NewString())
}

//encore:api public method=GET path=/internal/metrics
func GetMetrics(ctx context.Context) (*metrics.Snapshot, error) {
	s, err := initService()
	if err != nil {
		return nil, classifyUpstreamError(err)
	}
	snap := s.recorder.Snapshot()
	return &snap, nil
}

// Read implements spec.md §4.5's read(slug, refresh?). A cache hit short
// circuits upstream entirely; a miss (or a forced refresh) routes through
// the single-flight coalescer into a fetch-and-store.
func (s *Service) Read(ctx context.Context, slug string, refresh bool) (*tournament.Response, error) {
	start := time.Now()
	defer func() { s.recorder.Observe(time.Since(start)) }()
	if slug == "" {
		return nil, invalidRequest("slug must not be empty")
	}
	key := tournament.CacheKey(slug)

	if !refresh {
		if resp, ok := s.readFromCache(key); ok {
			s.recorder.RecordHit()
			return resp, nil
		}
	}
	s.recorder.RecordMiss()
	return s.fetchAndStore(ctx, slug, key, refresh)
}

// Refresh implements spec.md §4.5's refresh(slug): always deletes the cache
// entry, fetches upstream, writes through, and returns as a miss.
func (s *Service) Refresh(ctx context.Context, slug string) (*tournament.Response, error) {
	start := time.Now()
	defer func() { s.recorder.Observe(time.Since(start)) }()
	if slug == "" {
		return nil, invalidRequest("slug must not be empty")
	}
	key := tournament.CacheKey(slug)
	if err := s.cacheStack.Del(key); err != nil {
		log.Printf("[WARN] cache delete fault for %s during forced refresh: %v", key, err)
	}
	return s.fetchAndStore(ctx, slug, key, true)
}

// Status implements spec.md §4.5's status(slug): cache metadata only, never
// touches upstream.
func (s *Service) Status(ctx context.Context, slug string) *CacheStatusResponse {
	key := tournament.CacheKey(slug)

	raw, hit, err := s.cacheStack.Get(key)
	if err != nil {
		log.Printf("[WARN] cache-status read fault for %s: %v", key, err)
		return &CacheStatusResponse{Cached: false}
	}
	if !hit {
		return &CacheStatusResponse{Cached: false}
	}

	meta, err := s.cacheStack.GetMetadata(key)
	if err != nil || meta == nil {
		return &CacheStatusResponse{Cached: false}
	}

	var t tournament.Tournament
	if err := json.Unmarshal(raw, &t); err != nil {
		log.Printf("[WARN] cache-status decode fault for %s: %v", key, err)
		return &CacheStatusResponse{Cached: false}
	}

	md := metadataFor(&t, *meta)
	return &CacheStatusResponse{Cached: true, Metadata: &md}
}

// readFromCache consults the composite cache only; a fault or decode error
// is treated as a miss (spec.md §7: cache faults are recovered locally and
// never surface to the client).
func (s *Service) readFromCache(key string) (*tournament.Response, bool) {
	raw, hit, err := s.cacheStack.Get(key)
	if err != nil {
		log.Printf("[WARN] cache read fault for %s: %v", key, err)
		return nil, false
	}
	if !hit {
		return nil, false
	}

	meta, err := s.cacheStack.GetMetadata(key)
	if err != nil || meta == nil {
		return nil, false
	}

	var t tournament.Tournament
	if err := json.Unmarshal(raw, &t); err != nil {
		log.Printf("[WARN] cache decode fault for %s: %v", key, err)
		return nil, false
	}

	md := metadataFor(&t, *meta)
	return &tournament.Response{Data: &t, Cached: true, Metadata: md}, true
}

// fetchAndStore routes a miss (or forced refresh) through the single-flight
// coalescer into one upstream fetch, computes the TTL, writes through the
// cache, and returns cached:false (spec.md §4.5). A forced refresh always
// starts its own fetch under a bumped coalescer generation: reads that
// arrive after the bump join it, while waiters already on an earlier
// in-flight fetch still receive that fetch's result (spec.md §4.5, §5).
func (s *Service) fetchAndStore(ctx context.Context, slug, key string, refresh bool) (*tournament.Response, error) {
	do := func() (interface{}, error) {
		t, err := s.client.FetchTournament(ctx, slug, nil)
		if err != nil {
			return nil, classifyUpstreamError(err)
		}

		ttl := tournament.ComputeTTL(t, time.Now())

		data, err := json.Marshal(t)
		if err != nil {
			return nil, &errInternal{err}
		}
		if err := s.cacheStack.Set(key, data, ttl.TTLSeconds); err != nil {
			log.Printf("[WARN] cache write-through fault for %s: %v", key, err)
		}

		now := time.Now().Unix()
		ttlSeconds := ttl.TTLSeconds
		return &tournament.Response{
			Data:   t,
			Cached: false,
			Metadata: tournament.ResponseMetadata{
				CachedAt:          &now,
				TTL:               &ttlSeconds,
				HasOngoingMatches: ttl.HasOngoingMatches,
				HasRecentMatches:  ttl.HasRecentMatches,
				Counts:            ttl.Counts,
			},
		}, nil
	}

	var (
		result interface{}
		err    error
	)
	if refresh {
		result, err, _ = s.coalescer.Refresh(key, do)
	} else {
		result, err, _ = s.coalescer.Do(key, do)
	}
	if err != nil {
		return nil, err
	}
	return result.(*tournament.Response), nil
}

// metadataFor derives ResponseMetadata for an already-cached Tournament:
// hasOngoingMatches/hasRecentMatches/counts are recomputed from the value's
// current match state (cheap and always consistent with what is returned),
// while cachedAt/ttl come from the cache backend's own metadata, since
// spec.md §3 treats Cache Metadata as derived and never stored.
func metadataFor(t *tournament.Tournament, meta cache.Metadata) tournament.ResponseMetadata {
	ttl := tournament.ComputeTTL(t, time.Now())
	cachedAt := meta.CreatedAt.Unix()
	ttlSeconds := meta.TTL
	return tournament.ResponseMetadata{
		CachedAt:          &cachedAt,
		TTL:               &ttlSeconds,
		HasOngoingMatches: ttl.HasOngoingMatches,
		HasRecentMatches:  ttl.HasRecentMatches,
		Counts:            ttl.Counts,
	}
}

type errInternal struct{ err error }

func (e *errInternal) Error() string { return "internal error: " + e.err.Error() }
func (e *errInternal) Unwrap() error { return e.err }
