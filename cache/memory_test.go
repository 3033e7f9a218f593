package cache

import (
	"testing"
	"time"
)

func newTestMemory() *MemoryBackend {
	return NewMemoryBackend(MemoryBackendConfig{SweepInterval: time.Hour})
}

func TestMemoryBackendSetGetRoundTrip(t *testing.T) {
	b := newTestMemory()
	defer b.Close()

	if err := b.Set("k", []byte("v"), 60); err != nil {
		t.Fatalf("Set: %v", err)
	}
	val, ok, err := b.Get("k")
	if err != nil || !ok {
		t.Fatalf("Get: val=%v ok=%v err=%v", val, ok, err)
	}
	if string(val) != "v" {
		t.Fatalf("got %q want %q", val, "v")
	}
}

func TestMemoryBackendMiss(t *testing.T) {
	b := newTestMemory()
	defer b.Close()

	_, ok, err := b.Get("missing")
	if err != nil || ok {
		t.Fatalf("expected clean miss, got ok=%v err=%v", ok, err)
	}
}

func TestMemoryBackendExpiry(t *testing.T) {
	b := newTestMemory()
	defer b.Close()

	if err := b.Set("k", []byte("v"), 1); err != nil {
		t.Fatalf("Set: %v", err)
	}
	time.Sleep(1100 * time.Millisecond)

	_, ok, err := b.Get("k")
	if err != nil || ok {
		t.Fatalf("expected expired entry to read as miss, got ok=%v err=%v", ok, err)
	}
}

func TestMemoryBackendGetMetadataReflectsTTL(t *testing.T) {
	b := newTestMemory()
	defer b.Close()

	if err := b.Set("k", []byte("v"), 60); err != nil {
		t.Fatalf("Set: %v", err)
	}
	meta, err := b.GetMetadata("k")
	if err != nil || meta == nil {
		t.Fatalf("GetMetadata: meta=%v err=%v", meta, err)
	}
	if meta.TTL <= 0 || meta.TTL > 60 {
		t.Fatalf("unexpected ttl %d", meta.TTL)
	}
	if !meta.ExpiresAt.After(meta.CreatedAt) {
		t.Fatalf("invariant violated: expiresAt must be after createdAt")
	}
}

func TestMemoryBackendInvalidInputs(t *testing.T) {
	b := newTestMemory()
	defer b.Close()

	if err := b.Set("", []byte("v"), 60); err != ErrEmptyKey {
		t.Fatalf("expected ErrEmptyKey, got %v", err)
	}
	if err := b.Set("k", []byte("v"), 0); err != ErrInvalidTTL {
		t.Fatalf("expected ErrInvalidTTL, got %v", err)
	}
}

func TestMemoryBackendLRUEviction(t *testing.T) {
	b := NewMemoryBackend(MemoryBackendConfig{MaxEntries: 2, SweepInterval: time.Hour})
	defer b.Close()

	_ = b.Set("a", []byte("1"), 60)
	_ = b.Set("b", []byte("2"), 60)
	_ = b.Set("c", []byte("3"), 60) // evicts "a", the least recently used

	if _, ok, _ := b.Get("a"); ok {
		t.Fatalf("expected \"a\" to have been evicted")
	}
	if _, ok, _ := b.Get("b"); !ok {
		t.Fatalf("expected \"b\" to survive eviction")
	}
	if _, ok, _ := b.Get("c"); !ok {
		t.Fatalf("expected \"c\" to survive eviction")
	}
}

func TestMemoryBackendDelAndClear(t *testing.T) {
	b := newTestMemory()
	defer b.Close()

	_ = b.Set("k", []byte("v"), 60)
	if err := b.Del("k"); err != nil {
		t.Fatalf("Del: %v", err)
	}
	if ok, _ := b.Exists("k"); ok {
		t.Fatalf("expected key gone after Del")
	}

	_ = b.Set("k2", []byte("v"), 60)
	if err := b.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if ok, _ := b.Exists("k2"); ok {
		t.Fatalf("expected Clear to remove everything")
	}
}
