package bracket

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config is loaded from environment variables exactly as enumerated in
// spec.md §6. Grounded on cache-manager/service.go's Config construction,
// which also reads os.Getenv directly rather than going through
// encore.dev/config — no secrets object appears anywhere in the teacher
// pack.
type Config struct {
	UpstreamToken string

	RemoteCacheURL string

	ListenPort    int
	AllowedOrigin string

	UpstreamMinInterval time.Duration
	UpstreamMaxRetries  int
	UpstreamRetryBase   time.Duration

	PageSize  int
	PageLimit int

	// InboundRateLimit is tokens/sec for the per-IP inbound limiter
	// (SPEC_FULL.md recovered feature #2). 0 disables it entirely.
	InboundRateLimit float64
	InboundRateBurst int
}

// LoadConfig reads Config from the environment. UPSTREAM_TOKEN is required;
// its absence is a fatal-configuration error at startup (spec.md §6, §7).
func LoadConfig() (Config, error) {
	token := os.Getenv("UPSTREAM_TOKEN")
	if token == "" {
		return Config{}, fmt.Errorf("UPSTREAM_TOKEN is required")
	}

	return Config{
		UpstreamToken:       token,
		RemoteCacheURL:      os.Getenv("REMOTE_CACHE_URL"),
		ListenPort:          envInt("LISTEN_PORT", 3001),
		AllowedOrigin:       envString("ALLOWED_ORIGIN", "http://localhost:3000"),
		UpstreamMinInterval: envMillis("UPSTREAM_MIN_INTERVAL_MS", 800),
		UpstreamMaxRetries:  envInt("UPSTREAM_MAX_RETRIES", 3),
		UpstreamRetryBase:   envMillis("UPSTREAM_RETRY_BASE_MS", 2000),
		PageSize:            envInt("PAGE_SIZE", 30),
		PageLimit:           envInt("PAGE_LIMIT", 10),
		InboundRateLimit:    envFloat("INBOUND_RATE_LIMIT", 5),
		InboundRateBurst:    envInt("INBOUND_RATE_BURST", 20),
	}, nil
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envMillis(key string, defMillis int) time.Duration {
	return time.Duration(envInt(key, defMillis)) * time.Millisecond
}
