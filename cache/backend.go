// Package cache implements the pluggable cache-backend stack: an in-memory
// backend (C1), a Redis-backed remote backend (C2), and a composite backend
// (C3) that chains them with read-fallback / write-through semantics.
//
// Design Choices:
// - Backends are polymorphic over a single Backend interface (C1/C2 contract)
//   so the composite and factory never know which concrete backend they hold.
// - get returns (value, ok, error): ok=false+err=nil means "absent or expired",
//   err!=nil means a transient fault distinguishable from a legitimate miss.
// - TTL is always whole seconds; callers passing ttlSeconds<=0 get an error.
package cache

import (
	"errors"
	"time"
)

// ErrInvalidTTL is returned when a caller requests a non-positive TTL.
var ErrInvalidTTL = errors.New("cache: ttlSeconds must be > 0")

// ErrEmptyKey is returned when a caller passes an empty key.
var ErrEmptyKey = errors.New("cache: key must not be empty")

// Entry is a single cached value together with its lifecycle timestamps.
// Invariant: ExpiresAt must be strictly after CreatedAt.
type Entry struct {
	Key       string    `json:"key"`
	Value     []byte    `json:"value"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Metadata is the derived, never-stored view of an entry's remaining lifetime.
type Metadata struct {
	Key       string    `json:"key"`
	TTL       int       `json:"ttl"` // seconds remaining, always > 0
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Backend is the cache-backend contract shared by C1 (in-memory) and C2
// (remote). Every method must be safe for concurrent use.
type Backend interface {
	// Get returns (value, true, nil) on a live hit, (nil, false, nil) for an
	// absent or expired key, and (nil, false, err) on a transient fault.
	Get(key string) ([]byte, bool, error)
	// Set overwrites key unconditionally with value and ttlSeconds. It never
	// merges with an existing value.
	Set(key string, value []byte, ttlSeconds int) error
	// Del removes key. Absent keys succeed silently.
	Del(key string) error
	// Exists reports whether key currently holds a live (non-expired) value.
	Exists(key string) (bool, error)
	// GetMetadata returns the metadata for a live key, or (nil, nil) if the
	// key is absent or expired.
	GetMetadata(key string) (*Metadata, error)
	// Clear removes every entry owned by this backend.
	Clear() error
	// Close releases backend resources (background goroutines, connections).
	Close() error
	// Name identifies this backend for observability and Composite.Name().
	Name() string
}
