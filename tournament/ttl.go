package tournament

import "time"

// TTL buckets from spec.md §4.4, evaluated in order — first match wins.
const (
	TTLInProgress      = 15
	TTLRecentlyDone    = 120
	TTLPending         = 600
	TTLIdle            = 1800
	recentCompletedWindow = 300 * time.Second
)

// TTLResult is C6's output: the chosen TTL plus the counts and booleans that
// accompany a response's metadata (spec.md §3, §4.4).
type TTLResult struct {
	TTLSeconds        int
	HasOngoingMatches bool
	HasRecentMatches  bool
	Counts            Counts
}

// ComputeTTL derives a TTL bucket by inspecting only events[*].currentMatches[*]
// (spec.md §4.4 — deliberately never matches inside brackets). now is passed
// explicitly so the policy is deterministic and testable.
func ComputeTTL(t *Tournament, now time.Time) TTLResult {
	var counts Counts
	anyInProgress := false
	anyRecentCompleted := false
	anyPending := false

	for _, ev := range t.Events {
		for _, m := range ev.CurrentMatches {
			switch m.Status {
			case StatusInProgress:
				anyInProgress = true
				counts.Ongoing++
			case StatusPending:
				anyPending = true
				counts.Pending++
			case StatusCompleted:
				if m.CompletedAt != nil && now.Sub(time.Unix(*m.CompletedAt, 0)) < recentCompletedWindow {
					anyRecentCompleted = true
					counts.RecentlyCompleted++
				} else {
					counts.OldCompleted++
				}
			}
		}
	}

	ttl := TTLIdle
	switch {
	case anyInProgress:
		ttl = TTLInProgress
	case anyRecentCompleted:
		ttl = TTLRecentlyDone
	case anyPending:
		ttl = TTLPending
	}

	return TTLResult{
		TTLSeconds:        ttl,
		HasOngoingMatches: counts.Ongoing > 0,
		HasRecentMatches:  counts.RecentlyCompleted > 0,
		Counts:            counts,
	}
}
