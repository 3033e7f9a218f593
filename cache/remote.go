package cache

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// RemoteBackend is C2: the cache-backend contract backed by Redis. Values are
// serialized as a self-describing byte envelope (see envelope.go) so
// GetMetadata can be derived from Redis's own TTL without a second encoding
// scheme. Grounded on the pack's worked Redis-cache example
// (stormlightlabs-baseball/internal/cache/cache.go) rather than the teacher,
// which only ever injects RemoteCache as an interface and never implements one.
type RemoteBackend struct {
	client    *redis.Client
	connected atomic.Bool

	reconnectBase time.Duration
	reconnectCap  time.Duration
	pingInterval  time.Duration

	stopCh chan struct{}
	done   chan struct{}
}

// RemoteBackendConfig configures RemoteBackend construction.
type RemoteBackendConfig struct {
	// URL is a redis:// connection string, e.g. "redis://localhost:6379/0".
	URL string
	// ReconnectBase is the initial backoff between reconnect attempts.
	// Design default: 250ms, doubling up to ReconnectCap.
	ReconnectBase time.Duration
	// ReconnectCap bounds the exponential reconnect backoff. Per spec.md
	// §4.1: capped at 2s per attempt, up to 3 attempts before giving up on
	// that cycle (the background loop then keeps retrying on PingInterval).
	ReconnectCap time.Duration
	// PingInterval is how often a connected client is health-checked.
	PingInterval time.Duration
}

// NewRemoteBackend parses URL, makes one initial ping (bounded by a 2s
// timeout), and starts a background connection-state monitor. It does not
// wait beyond that single ping: if it fails, operations fail fast
// (ErrDisconnected) until a later ping from the monitor succeeds
// (spec.md §4.1).
func NewRemoteBackend(cfg RemoteBackendConfig) (*RemoteBackend, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("cache: invalid REMOTE_CACHE_URL: %w", err)
	}

	if cfg.ReconnectBase <= 0 {
		cfg.ReconnectBase = 250 * time.Millisecond
	}
	if cfg.ReconnectCap <= 0 {
		cfg.ReconnectCap = 2 * time.Second
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 10 * time.Second
	}

	b := &RemoteBackend{
		client:        redis.NewClient(opts),
		reconnectBase: cfg.ReconnectBase,
		reconnectCap:  cfg.ReconnectCap,
		pingInterval:  cfg.PingInterval,
		stopCh:        make(chan struct{}),
		done:          make(chan struct{}),
	}

	b.connected.Store(b.tryConnect())
	go b.monitor()

	return b, nil
}

// ErrDisconnected is returned by every operation while the remote connection
// is known to be down.
var ErrDisconnected = fmt.Errorf("cache: remote backend disconnected")

func (b *RemoteBackend) Name() string { return "remote" }

func (b *RemoteBackend) tryConnect() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return b.client.Ping(ctx).Err() == nil
}

// monitor re-pings on a fixed interval and reconnects with exponential
// backoff (capped at reconnectCap) for up to 3 attempts per cycle whenever
// the connection is down.
func (b *RemoteBackend) monitor() {
	defer close(b.done)
	ticker := time.NewTicker(b.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopCh:
			return
		case <-ticker.C:
			if b.tryConnect() {
				b.connected.Store(true)
				continue
			}

			b.connected.Store(false)
			backoff := b.reconnectBase
			for attempt := 0; attempt < 3; attempt++ {
				select {
				case <-b.stopCh:
					return
				case <-time.After(backoff):
				}
				if b.tryConnect() {
					b.connected.Store(true)
					break
				}
				backoff *= 2
				if backoff > b.reconnectCap {
					backoff = b.reconnectCap
				}
			}
		}
	}
}

func (b *RemoteBackend) Get(key string) ([]byte, bool, error) {
	if key == "" {
		return nil, false, ErrEmptyKey
	}
	if !b.connected.Load() {
		return nil, false, ErrDisconnected
	}

	ctx := context.Background()
	raw, err := b.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache: remote get: %w", err)
	}

	env, err := unmarshalEnvelope(raw)
	if err != nil {
		return nil, false, err
	}
	if time.Now().After(env.ExpiresAt) {
		return nil, false, nil
	}
	return env.Value, true, nil
}

func (b *RemoteBackend) Set(key string, value []byte, ttlSeconds int) error {
	if key == "" {
		return ErrEmptyKey
	}
	if ttlSeconds <= 0 {
		return ErrInvalidTTL
	}
	if !b.connected.Load() {
		return ErrDisconnected
	}

	now := time.Now()
	ttl := time.Duration(ttlSeconds) * time.Second
	data, err := marshalEnvelope(value, now, now.Add(ttl))
	if err != nil {
		return err
	}

	if err := b.client.Set(context.Background(), key, data, ttl).Err(); err != nil {
		return fmt.Errorf("cache: remote set: %w", err)
	}
	return nil
}

func (b *RemoteBackend) Del(key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	if !b.connected.Load() {
		return ErrDisconnected
	}
	if err := b.client.Del(context.Background(), key).Err(); err != nil {
		return fmt.Errorf("cache: remote del: %w", err)
	}
	return nil
}

func (b *RemoteBackend) Exists(key string) (bool, error) {
	_, ok, err := b.Get(key)
	return ok, err
}

func (b *RemoteBackend) GetMetadata(key string) (*Metadata, error) {
	if key == "" {
		return nil, ErrEmptyKey
	}
	if !b.connected.Load() {
		return nil, ErrDisconnected
	}

	ctx := context.Background()
	raw, err := b.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache: remote getMetadata: %w", err)
	}

	env, err := unmarshalEnvelope(raw)
	if err != nil {
		return nil, err
	}

	ttl := b.client.TTL(ctx, key).Val()
	if ttl <= 0 {
		return nil, nil
	}

	return &Metadata{
		Key:       key,
		TTL:       int(ttl.Seconds()),
		CreatedAt: env.CreatedAt,
		ExpiresAt: env.ExpiresAt,
	}, nil
}

func (b *RemoteBackend) Clear() error {
	if !b.connected.Load() {
		return ErrDisconnected
	}
	return b.client.FlushDB(context.Background()).Err()
}

func (b *RemoteBackend) Close() error {
	close(b.stopCh)
	<-b.done
	return b.client.Close()
}
