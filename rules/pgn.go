package rules

import (
	"fmt"
	"strconv"

	"github.com/Dosada05/chess-arena/models"
	"github.com/notnil/chess"
)

// PGN replays a finished match from the starting position and renders it.
func PGN(match *models.Match) (string, error) {
	game := chess.NewGame(chess.UseNotation(chess.AlgebraicNotation{}))
	for i, text := range match.Moves {
		move, err := decodeMove(game.Position(), text)
		if err == nil {
			err = game.Move(move)
		}
		if err != nil {
			return "", fmt.Errorf("replay move %d (%q): %w", i+1, text, err)
		}
	}

	game.AddTagPair("Event", eventName(match))
	game.AddTagPair("White", strconv.Itoa(match.WhitePlayerID))
	game.AddTagPair("Black", strconv.Itoa(match.BlackPlayerID))
	game.AddTagPair("Result", resultTag(match.Status))
	return game.String(), nil
}

func eventName(match *models.Match) string {
	if match.TournamentRef == nil {
		return fmt.Sprintf("Match %d", match.ID)
	}
	return fmt.Sprintf("Tournament %d, round %d, game %d",
		match.TournamentRef.TournamentID, match.TournamentRef.Round, match.TournamentRef.MatchNumber)
}

func resultTag(status models.MatchStatus) string {
	switch status {
	case models.MatchStatusWhiteWon:
		return "1-0"
	case models.MatchStatusBlackWon:
		return "0-1"
	case models.MatchStatusDraw:
		return "1/2-1/2"
	default:
		return "*"
	}
}
