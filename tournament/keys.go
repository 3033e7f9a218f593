package tournament

import "fmt"

// CacheKey is C8: the deterministic cache key for a tournament. Slugs are
// opaque and are never normalized (spec.md §4.5).
func CacheKey(slug string) string {
	return fmt.Sprintf("tournament:%s", slug)
}
