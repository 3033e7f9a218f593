package tournament

import (
	"testing"
	"time"
)

func epoch(t time.Time) *int64 {
	v := t.Unix()
	return &v
}

func TestComputeTTLIdleWhenNoCurrentMatches(t *testing.T) {
	tour := &Tournament{Events: []Event{{}}}
	result := ComputeTTL(tour, time.Now())
	if result.TTLSeconds != TTLIdle {
		t.Fatalf("got %d want %d", result.TTLSeconds, TTLIdle)
	}
	if result.HasOngoingMatches || result.HasRecentMatches {
		t.Fatalf("expected no ongoing/recent matches")
	}
}

func TestComputeTTLInProgressTakesPriority(t *testing.T) {
	now := time.Now()
	tour := &Tournament{Events: []Event{{CurrentMatches: []Match{
		{Status: StatusInProgress},
		{Status: StatusCompleted, CompletedAt: epoch(now)},
		{Status: StatusPending},
	}}}}
	result := ComputeTTL(tour, now)
	if result.TTLSeconds != TTLInProgress {
		t.Fatalf("got %d want %d", result.TTLSeconds, TTLInProgress)
	}
	if !result.HasOngoingMatches {
		t.Fatalf("expected HasOngoingMatches")
	}
}

func TestComputeTTLRecentlyCompletedWhenNoneInProgress(t *testing.T) {
	now := time.Now()
	tour := &Tournament{Events: []Event{{CurrentMatches: []Match{
		{Status: StatusCompleted, CompletedAt: epoch(now.Add(-30 * time.Second))},
		{Status: StatusPending},
	}}}}
	result := ComputeTTL(tour, now)
	if result.TTLSeconds != TTLRecentlyDone {
		t.Fatalf("got %d want %d", result.TTLSeconds, TTLRecentlyDone)
	}
	if !result.HasRecentMatches {
		t.Fatalf("expected HasRecentMatches")
	}
}

func TestComputeTTLOldCompletionDoesNotCountAsRecent(t *testing.T) {
	now := time.Now()
	tour := &Tournament{Events: []Event{{CurrentMatches: []Match{
		{Status: StatusCompleted, CompletedAt: epoch(now.Add(-10 * time.Minute))},
		{Status: StatusPending},
	}}}}
	result := ComputeTTL(tour, now)
	if result.TTLSeconds != TTLPending {
		t.Fatalf("got %d want %d", result.TTLSeconds, TTLPending)
	}
	if result.HasRecentMatches {
		t.Fatalf("expected no recent matches from a stale completion")
	}
}

func TestComputeTTLPendingWhenOnlyPendingMatches(t *testing.T) {
	now := time.Now()
	tour := &Tournament{Events: []Event{{CurrentMatches: []Match{{Status: StatusPending}}}}}
	result := ComputeTTL(tour, now)
	if result.TTLSeconds != TTLPending {
		t.Fatalf("got %d want %d", result.TTLSeconds, TTLPending)
	}
}

func TestComputeTTLIgnoresMatchesInsideBrackets(t *testing.T) {
	now := time.Now()
	tour := &Tournament{Events: []Event{{
		Brackets: []Bracket{{Matches: []Match{{Status: StatusInProgress}}}},
	}}}
	result := ComputeTTL(tour, now)
	if result.TTLSeconds != TTLIdle {
		t.Fatalf("ComputeTTL must only inspect currentMatches, got ttl=%d", result.TTLSeconds)
	}
}

func TestComputeTTLCounts(t *testing.T) {
	now := time.Now()
	tour := &Tournament{Events: []Event{{CurrentMatches: []Match{
		{Status: StatusInProgress},
		{Status: StatusInProgress},
		{Status: StatusPending},
		{Status: StatusCompleted, CompletedAt: epoch(now.Add(-10 * time.Minute))},
	}}}}
	result := ComputeTTL(tour, now)
	if result.Counts.Ongoing != 2 || result.Counts.Pending != 1 || result.Counts.OldCompleted != 1 {
		t.Fatalf("unexpected counts: %+v", result.Counts)
	}
}
