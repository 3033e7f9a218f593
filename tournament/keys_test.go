package tournament

import "testing"

func TestCacheKeyIsDeterministicAndOpaque(t *testing.T) {
	if got, want := CacheKey("genesis-9"), "tournament:genesis-9"; got != want {
		t.Fatalf("got %q want %q", got, want)
	}
	// Slugs are never normalized (spec.md §4.5): case and punctuation pass through.
	if got, want := CacheKey("Genesis_9!"), "tournament:Genesis_9!"; got != want {
		t.Fatalf("got %q want %q", got, want)
	}
	if CacheKey("a") == CacheKey("b") {
		t.Fatalf("distinct slugs must produce distinct keys")
	}
}
