package upstream

import (
	"context"

	"encore.app/tournament"
)

// Raw upstream wire shapes. The upstream GraphQL schema is treated as an
// opaque external contract (spec.md §1 out-of-scope: "parsing of
// user-visible URLs"/schema details are not owned by this core); these
// types model the structure spec.md §4.3 describes: tournament -> events ->
// phase groups -> paginated sets.

type rawTournament struct {
	ID     string     `json:"id"`
	Name   string     `json:"name"`
	Slug   string     `json:"slug"`
	URL    string     `json:"url"`
	Events []rawEvent `json:"events"`
}

type rawEvent struct {
	ID           string               `json:"id"`
	Name         string               `json:"name"`
	Slug         string               `json:"slug"`
	Participants []rawParticipantEdge `json:"participants"`
}

type rawParticipantEdge struct {
	ID       string    `json:"id"`
	GamerTag string    `json:"gamerTag"`
	Player   *rawIdent `json:"player"`
}

type rawIdent struct {
	ID string `json:"id"`
}

type tournamentEventsQuery struct {
	Tournament *rawTournament `json:"tournament"`
}

const tournamentEventsGQL = `
query TournamentEvents($slug: String!) {
  tournament(slug: $slug) {
    id
    name
    slug
    url
    events {
      id
      name
      slug
      participants(limit: 32) {
        id
        gamerTag
        player { id }
      }
    }
  }
}`

// fetchTournamentAndEvents is tier one of spec.md §4.3's query shape: one
// request for tournament-level identity and a bounded list of events, each
// with a capped participant sample.
func (c *Client) fetchTournamentAndEvents(ctx context.Context, slug string) (*rawTournament, error) {
	var resp tournamentEventsQuery
	err := c.doWithRetry(ctx, tournamentEventsGQL, map[string]interface{}{"slug": slug}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.Tournament, nil
}

// seedParticipants converts an event's capped participant sample into the
// initial participants set, before phase-group matches union in the rest.
func seedParticipants(e rawEvent) []tournament.Player {
	players := make([]tournament.Player, 0, len(e.Participants))
	for _, p := range e.Participants {
		playerID := p.ID
		if p.Player != nil && p.Player.ID != "" {
			playerID = p.Player.ID
		}
		players = append(players, normalizePlayer(playerID, p.GamerTag, "", p.ID))
	}
	return players
}

type rawPhaseGroup struct {
	ID                string    `json:"id"`
	DisplayIdentifier string    `json:"displayIdentifier"`
	Phase             *rawPhase `json:"phase"`
}

type rawPhase struct {
	Name string `json:"name"`
}

type phaseGroupsQuery struct {
	Event *struct {
		PhaseGroups []rawPhaseGroup `json:"phaseGroups"`
	} `json:"event"`
}

const phaseGroupsGQL = `
query PhaseGroups($eventId: ID!) {
  event(id: $eventId) {
    phaseGroups {
      id
      displayIdentifier
      phase { name }
    }
  }
}`

// fetchPhaseGroups enumerates the phase groups (brackets) of one event.
func (c *Client) fetchPhaseGroups(ctx context.Context, eventID string) ([]rawPhaseGroup, error) {
	var resp phaseGroupsQuery
	err := c.doWithRetry(ctx, phaseGroupsGQL, map[string]interface{}{"eventId": eventID}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.Event == nil {
		return nil, nil
	}
	return resp.Event.PhaseGroups, nil
}

type rawGame struct {
	WinnerID string `json:"winnerId"`
}

type rawSlotScore struct {
	Value *int `json:"value"`
}

type rawSlotStanding struct {
	Score *rawSlotScore `json:"score"`
}

type rawSlotEntrant struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type rawSlot struct {
	Entrant  *rawSlotEntrant  `json:"entrant"`
	Standing *rawSlotStanding `json:"standing"`
}

type rawSet struct {
	ID            string    `json:"id"`
	Round         int       `json:"round"`
	FullRoundText string    `json:"fullRoundText"`
	State         int       `json:"state"`
	Slots         []rawSlot `json:"slots"`
	Games         []rawGame `json:"games"`
	StartedAt     *int64    `json:"startedAt"`
	CompletedAt   *int64    `json:"completedAt"`
	UpdatedAt     *int64    `json:"updatedAt"`
}

type setsPageQuery struct {
	PhaseGroup *struct {
		Sets *struct {
			Nodes []rawSet `json:"nodes"`
		} `json:"sets"`
	} `json:"phaseGroup"`
}

const setsPageGQL = `
query SetsPage($phaseGroupId: ID!, $page: Int!, $perPage: Int!) {
  phaseGroup(id: $phaseGroupId) {
    sets(page: $page, perPage: $perPage) {
      nodes {
        id
        round
        fullRoundText
        state
        slots {
          entrant { id name }
          standing { score { value } }
        }
        games { winnerId }
        startedAt
        completedAt
        updatedAt
      }
    }
  }
}`

// fetchAllSets paginates through one phase group's sets (spec.md §4.3):
// page size is fixed, pagination stops when a page returns fewer items than
// pageSize or the configured page ceiling is reached. A failure on one page
// halts the phase group (treated as end-of-pages) without aborting the
// event.
func (c *Client) fetchAllSets(ctx context.Context, phaseGroupID string) ([]tournament.Match, error) {
	var matches []tournament.Match

	for page := 1; page <= c.pageLimit; page++ {
		var resp setsPageQuery
		err := c.doWithRetry(ctx, setsPageGQL, map[string]interface{}{
			"phaseGroupId": phaseGroupID,
			"page":         page,
			"perPage":      c.pageSize,
		}, &resp)
		if err != nil {
			return matches, err
		}

		var nodes []rawSet
		if resp.PhaseGroup != nil && resp.PhaseGroup.Sets != nil {
			nodes = resp.PhaseGroup.Sets.Nodes
		}

		for _, n := range nodes {
			matches = append(matches, convertSet(n))
		}

		if len(nodes) < c.pageSize {
			break
		}
	}
	return matches, nil
}

// convertSet normalizes one upstream set into a Match (spec.md §4.3 field
// normalization rules).
func convertSet(s rawSet) tournament.Match {
	status := normalizeStatus(s.State)

	var player1, player2 *tournament.Player
	if len(s.Slots) > 0 {
		p := slotToPlayer(s.Slots[0])
		player1 = &p
	}
	if len(s.Slots) > 1 {
		p := slotToPlayer(s.Slots[1])
		player2 = &p
	}

	var winner *tournament.Player
	var explicitP1, explicitP2 *int
	if len(s.Slots) > 0 && s.Slots[0].Standing != nil && s.Slots[0].Standing.Score != nil {
		explicitP1 = s.Slots[0].Standing.Score.Value
	}
	if len(s.Slots) > 1 && s.Slots[1].Standing != nil && s.Slots[1].Standing.Score != nil {
		explicitP2 = s.Slots[1].Standing.Score.Value
	}
	if status == tournament.StatusCompleted {
		winner = winnerFromScore(explicitP1, explicitP2, player1, player2)
		if winner == nil {
			winner = winnerFromGames(s.Games, player1, player2)
		}
	}

	score := scoreFrom(explicitP1, explicitP2, s.Games, status, winner, player1, player2)

	return tournament.Match{
		ID:          s.ID,
		Round:       roundLabel(s.FullRoundText, s.Round),
		Player1:     player1,
		Player2:     player2,
		Winner:      winner,
		Status:      status,
		Score:       score,
		StartedAt:   s.StartedAt,
		CompletedAt: s.CompletedAt,
		UpdatedAt:   s.UpdatedAt,
	}
}

func slotToPlayer(s rawSlot) tournament.Player {
	if s.Entrant == nil {
		return normalizePlayer("", "", "", "")
	}
	return normalizePlayer(s.Entrant.ID, s.Entrant.Name, s.Entrant.Name, "")
}

func winnerFromScore(p1, p2 *int, player1, player2 *tournament.Player) *tournament.Player {
	if p1 == nil || p2 == nil || player1 == nil || player2 == nil {
		return nil
	}
	if *p1 > *p2 {
		return player1
	}
	if *p2 > *p1 {
		return player2
	}
	return nil
}

func winnerFromGames(games []rawGame, player1, player2 *tournament.Player) *tournament.Player {
	if player1 == nil || player2 == nil {
		return nil
	}
	var p1Wins, p2Wins int
	for _, g := range games {
		switch g.WinnerID {
		case player1.ID:
			p1Wins++
		case player2.ID:
			p2Wins++
		}
	}
	if p1Wins > p2Wins {
		return player1
	}
	if p2Wins > p1Wins {
		return player2
	}
	return nil
}
