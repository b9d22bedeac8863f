package models

// SlotStatus mirrors the status of the match played in a slot. SlotStatusBye
// marks a slot won without a game.
type SlotStatus string

const SlotStatusBye SlotStatus = "bye"

type Bracket struct {
	Format TournamentFormat `json:"format,omitempty"`
	Rounds []Round          `json:"rounds"`
}

type Round struct {
	Round   int           `json:"round"`
	Matches []BracketSlot `json:"matches"`
}

type BracketSlot struct {
	MatchNumber int        `json:"matchNumber"`
	Player1ID   *int       `json:"player1,omitempty"`
	Player2ID   *int       `json:"player2,omitempty"`
	MatchID     *int       `json:"matchId,omitempty"`
	WinnerID    *int       `json:"winner,omitempty"`
	Status      SlotStatus `json:"status,omitempty"`
}

// Ready means both seats are filled and no match has been created yet.
func (s *BracketSlot) Ready() bool {
	return s.Player1ID != nil && s.Player2ID != nil && s.MatchID == nil
}

// Decided means the slot needs no further games.
func (s *BracketSlot) Decided() bool {
	if s.WinnerID != nil {
		return true
	}
	switch s.Status {
	case SlotStatusBye, SlotStatus(MatchStatusWhiteWon), SlotStatus(MatchStatusBlackWon):
		return true
	}
	return false
}

func (s *BracketSlot) PlayerCount() int {
	n := 0
	if s.Player1ID != nil {
		n++
	}
	if s.Player2ID != nil {
		n++
	}
	return n
}

// Slot returns the slot at (round, matchNumber), both 1-based.
func (b *Bracket) Slot(round, matchNumber int) *BracketSlot {
	if b == nil || round < 1 || round > len(b.Rounds) {
		return nil
	}
	r := &b.Rounds[round-1]
	for i := range r.Matches {
		if r.Matches[i].MatchNumber == matchNumber {
			return &r.Matches[i]
		}
	}
	return nil
}

func (b *Bracket) LastRound() int {
	if b == nil {
		return 0
	}
	return len(b.Rounds)
}

// Clone returns a deep copy so callers can mutate without sharing pointers.
func (b *Bracket) Clone() *Bracket {
	if b == nil {
		return nil
	}
	out := &Bracket{Format: b.Format, Rounds: make([]Round, len(b.Rounds))}
	for i, r := range b.Rounds {
		slots := make([]BracketSlot, len(r.Matches))
		for j, s := range r.Matches {
			slots[j] = BracketSlot{
				MatchNumber: s.MatchNumber,
				Player1ID:   cloneInt(s.Player1ID),
				Player2ID:   cloneInt(s.Player2ID),
				MatchID:     cloneInt(s.MatchID),
				WinnerID:    cloneInt(s.WinnerID),
				Status:      s.Status,
			}
		}
		out.Rounds[i] = Round{Round: r.Round, Matches: slots}
	}
	return out
}

func cloneInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
