package upstream

import (
	"fmt"

	"github.com/google/uuid"

	"encore.app/tournament"
)

// normalizeStatus maps upstream's numeric state codes to MatchStatus
// (spec.md §4.3): 1 -> pending, 2 -> in_progress, 3 -> completed, anything
// else -> pending.
func normalizeStatus(code int) tournament.MatchStatus {
	switch code {
	case 1:
		return tournament.StatusPending
	case 2:
		return tournament.StatusInProgress
	case 3:
		return tournament.StatusCompleted
	default:
		return tournament.StatusPending
	}
}

// scoreFrom extracts a Score by the precedence order of spec.md §4.3:
// explicit slot scores, then per-game winner tallies, then (for a completed
// match with a known winner and no other score source) a synthesized 1-0 in
// the winner's favor. This fallback is flagged as potentially misleading for
// best-of-many formats but is preserved unchanged (spec.md §9).
func scoreFrom(explicitP1, explicitP2 *int, games []rawGame, status tournament.MatchStatus, winner, player1, player2 *tournament.Player) *tournament.Score {
	if explicitP1 != nil && explicitP2 != nil {
		return &tournament.Score{P1: *explicitP1, P2: *explicitP2}
	}

	if len(games) > 0 && player1 != nil && player2 != nil {
		var p1Wins, p2Wins int
		for _, g := range games {
			switch g.WinnerID {
			case player1.ID:
				p1Wins++
			case player2.ID:
				p2Wins++
			}
		}
		if p1Wins > 0 || p2Wins > 0 {
			return &tournament.Score{P1: p1Wins, P2: p2Wins}
		}
	}

	if status == tournament.StatusCompleted && winner != nil && player1 != nil && player2 != nil {
		if winner.ID == player1.ID {
			return &tournament.Score{P1: 1, P2: 0}
		}
		if winner.ID == player2.ID {
			return &tournament.Score{P1: 0, P2: 1}
		}
	}

	return nil
}

// roundLabel follows spec.md §4.3: upstream's full-round text when present,
// otherwise "Round <n>".
func roundLabel(fullRoundText string, roundNumber int) string {
	if fullRoundText != "" {
		return fullRoundText
	}
	return fmt.Sprintf("Round %d", roundNumber)
}

// normalizePlayer synthesizes a random id and the placeholder tag
// "Unknown Player" for a missing upstream identity. Placeholders must never
// enter a participants set (spec.md §3, §4.3) — callers filter on
// Player.IsUnknown before unioning into Event.Participants.
func normalizePlayer(id, tag, name, participantID string) tournament.Player {
	if id == "" {
		id = uuid.NewString()
	}
	if tag == "" {
		tag = "Unknown Player"
	}
	return tournament.Player{ID: id, Tag: tag, Name: name, ParticipantID: participantID}
}
