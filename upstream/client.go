package upstream

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"encore.app/tournament"
)

// Callbacks are optional progress observers invoked during FetchTournament.
// They must never panic into the client and must never block the upstream
// queue (spec.md §4.3) — both callbacks are invoked synchronously from the
// assembly goroutine but are expected to be cheap; a panicking callback is
// recovered and logged rather than allowed to corrupt the fetch.
type Callbacks struct {
	OnProgress        func(eventID string, completedBrackets, totalBrackets int)
	OnBracketComplete func(eventID, bracketID string)
}

func (cb *Callbacks) progress(eventID string, done, total int) {
	if cb == nil || cb.OnProgress == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[WARN] progress callback panicked: %v", r)
		}
	}()
	cb.OnProgress(eventID, done, total)
}

func (cb *Callbacks) bracketComplete(eventID, bracketID string) {
	if cb == nil || cb.OnBracketComplete == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[WARN] bracket-complete callback panicked: %v", r)
		}
	}()
	cb.OnBracketComplete(eventID, bracketID)
}

// ClientConfig configures the rate-limited GraphQL client (C5).
type ClientConfig struct {
	Endpoint       string
	Token          string
	MinInterval    time.Duration // spec.md §6 UPSTREAM_MIN_INTERVAL_MS, default 800ms
	MaxRetries     int           // spec.md §6 UPSTREAM_MAX_RETRIES, default 3
	RetryBaseDelay time.Duration // spec.md §6 UPSTREAM_RETRY_BASE_MS, default 2000ms
	PageSize       int           // spec.md §6 PAGE_SIZE, default 30
	PageLimit      int           // spec.md §6 PAGE_LIMIT, default 10
	HTTPClient     *http.Client
}

// Client is C5: a token-authenticated, rate-limited, retrying GraphQL client
// that exchanges a tournament slug for a fully materialized Tournament.
type Client struct {
	transport      *transport
	queue          *Queue
	maxRetries     int
	retryBaseDelay time.Duration
	pageSize       int
	pageLimit      int
}

func NewClient(cfg ClientConfig) *Client {
	return &Client{
		transport:      newTransport(cfg.Endpoint, cfg.Token, cfg.HTTPClient),
		queue:          NewQueue(cfg.MinInterval),
		maxRetries:     cfg.MaxRetries,
		retryBaseDelay: cfg.RetryBaseDelay,
		pageSize:       cfg.PageSize,
		pageLimit:      cfg.PageLimit,
	}
}

// Close stops the underlying dispatch queue.
func (c *Client) Close() { c.queue.Stop() }

// doWithRetry dispatches query/variables through the rate-controlled queue,
// retrying on rate-limited responses per spec.md §4.3: delay
// baseDelay*2^attempt between attempts, up to MaxRetries retries (so exactly
// MaxRetries+1 attempts total). Every attempt is itself dispatched through
// the queue, so retries remain subject to the rate budget.
func (c *Client) doWithRetry(ctx context.Context, query string, variables map[string]interface{}, out interface{}) error {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		_, err := c.queue.Do(ctx, func(ctx context.Context) (interface{}, error) {
			return nil, c.transport.do(ctx, query, variables, out)
		})
		if err == nil {
			return nil
		}
		lastErr = err

		apiErr, ok := err.(*Error)
		if !ok || apiErr.Kind != KindRateLimited {
			return err
		}
		if attempt == c.maxRetries {
			break
		}

		delay := c.retryBaseDelay * time.Duration(1<<uint(attempt))
		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
	return lastErr
}

// FetchTournament implements the two-tier query shape and progressive
// assembly of spec.md §4.3. A failure loading one event does not abort
// sibling events; a failure loading one page of a phase group halts that
// phase group but not the event, so the returned Tournament can be a
// partial-but-internally-consistent result.
func (c *Client) FetchTournament(ctx context.Context, slug string, cb *Callbacks) (*tournament.Tournament, error) {
	root, err := c.fetchTournamentAndEvents(ctx, slug)
	if err != nil {
		return nil, err
	}
	if root == nil {
		return nil, NewNotFound(fmt.Sprintf("tournament %q not found", slug))
	}

	t := &tournament.Tournament{ID: root.ID, Name: root.Name, Slug: root.Slug, URL: root.URL}
	for _, re := range root.Events {
		event := tournament.Event{ID: re.ID, Name: re.Name, Slug: re.Slug}
		event.Participants = dedupPlayers(seedParticipants(re))

		if err := c.fillEventBrackets(ctx, &event, cb); err != nil {
			log.Printf("[WARN] failed to load brackets for event %s: %v", re.ID, err)
		}
		t.Events = append(t.Events, event)
	}
	return t, nil
}

// fillEventBrackets enumerates phase groups for one event and fills each
// with its paginated sets, assembling matches/participants/currentMatches
// progressively as each phase group completes.
func (c *Client) fillEventBrackets(ctx context.Context, event *tournament.Event, cb *Callbacks) error {
	groups, err := c.fetchPhaseGroups(ctx, event.ID)
	if err != nil {
		return err
	}

	total := len(groups)
	for i, g := range groups {
		bracket := tournament.Bracket{ID: g.ID, Name: bracketName(g)}

		matches, err := c.fetchAllSets(ctx, g.ID)
		if err != nil {
			log.Printf("[WARN] phase group %s halted early for event %s: %v", g.ID, event.ID, err)
		}
		for i := range matches {
			matches[i].BracketName = bracket.Name
		}
		bracket.Matches = matches
		event.Brackets = append(event.Brackets, bracket)

		for _, m := range matches {
			if m.Player1 != nil && !m.Player1.IsUnknown() {
				event.Participants = unionPlayer(event.Participants, *m.Player1)
			}
			if m.Player2 != nil && !m.Player2.IsUnknown() {
				event.Participants = unionPlayer(event.Participants, *m.Player2)
			}
			if m.Status == tournament.StatusPending || m.Status == tournament.StatusInProgress {
				event.CurrentMatches = appendDedupMatch(event.CurrentMatches, m)
			}
		}

		cb.bracketComplete(event.ID, g.ID)
		cb.progress(event.ID, i+1, total)
	}
	return nil
}

func bracketName(g rawPhaseGroup) string {
	if g.Phase != nil && g.Phase.Name != "" {
		return fmt.Sprintf("%s - %s", g.Phase.Name, g.DisplayIdentifier)
	}
	return g.DisplayIdentifier
}

func unionPlayer(players []tournament.Player, p tournament.Player) []tournament.Player {
	for _, existing := range players {
		if existing.ID == p.ID {
			return players
		}
	}
	return append(players, p)
}

func appendDedupMatch(matches []tournament.Match, m tournament.Match) []tournament.Match {
	for _, existing := range matches {
		if existing.ID == m.ID {
			return matches
		}
	}
	return append(matches, m)
}

func dedupPlayers(players []tournament.Player) []tournament.Player {
	var out []tournament.Player
	for _, p := range players {
		if p.IsUnknown() {
			continue
		}
		out = unionPlayer(out, p)
	}
	return out
}
