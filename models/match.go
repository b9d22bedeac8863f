package models

import "time"

type MatchStatus string

const (
	MatchStatusPending    MatchStatus = "pending"
	MatchStatusInProgress MatchStatus = "in_progress"
	MatchStatusWhiteWon   MatchStatus = "white_won"
	MatchStatusBlackWon   MatchStatus = "black_won"
	MatchStatusDraw       MatchStatus = "draw"
	MatchStatusAborted    MatchStatus = "aborted"
)

// InitialFEN стартовая позиция для каждого нового матча.
const InitialFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

// IsTerminal reports whether no further transition is allowed from s.
func (s MatchStatus) IsTerminal() bool {
	switch s {
	case MatchStatusWhiteWon, MatchStatusBlackWon, MatchStatusDraw, MatchStatusAborted:
		return true
	default:
		return false
	}
}

func (s MatchStatus) IsValid() bool {
	switch s {
	case MatchStatusPending, MatchStatusInProgress:
		return true
	default:
		return s.IsTerminal()
	}
}

type Color string

const (
	White Color = "white"
	Black Color = "black"
)

// TournamentRef привязывает матч к слоту сетки.
type TournamentRef struct {
	TournamentID int `json:"tournament_id"`
	Round        int `json:"round"`
	MatchNumber  int `json:"match_number"`
}

type Match struct {
	ID            int            `json:"id" db:"id"`
	WhitePlayerID int            `json:"white_player_id" db:"white_player_id"`
	BlackPlayerID int            `json:"black_player_id" db:"black_player_id"`
	Status        MatchStatus    `json:"status" db:"status"`
	FEN           string         `json:"fen" db:"fen"`
	Moves         []string       `json:"moves" db:"-"`
	TournamentRef *TournamentRef `json:"tournament_ref,omitempty" db:"-"`
	CreatedAt     time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at" db:"updated_at"`
}

// ColorOf returns the side playerID plays in m.
func (m *Match) ColorOf(playerID int) (Color, bool) {
	switch playerID {
	case m.WhitePlayerID:
		return White, true
	case m.BlackPlayerID:
		return Black, true
	default:
		return "", false
	}
}

// WinnerID is the white player for WhiteWon and the black player for BlackWon.
func (m *Match) WinnerID() (int, bool) {
	switch m.Status {
	case MatchStatusWhiteWon:
		return m.WhitePlayerID, true
	case MatchStatusBlackWon:
		return m.BlackPlayerID, true
	default:
		return 0, false
	}
}

type ListMatchesFilter struct {
	PlayerID     *int
	TournamentID *int
	Limit        int
	Offset       int
}
