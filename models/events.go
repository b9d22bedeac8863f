package models

// MatchChanged is raised after every accepted mutation of a match.
type MatchChanged struct {
	MatchID int         `json:"matchId"`
	Status  MatchStatus `json:"status,omitempty"`
	Move    string      `json:"move,omitempty"`
}

// MatchCompleted is raised only for tournament matches that reached
// WhiteWon, BlackWon or Draw.
type MatchCompleted struct {
	MatchID int `json:"matchId"`
}

type TournamentChanged struct {
	TournamentID int `json:"tournamentId"`
	MatchID      int `json:"matchId"`
}
