package brackets

import (
	"fmt"
	"math"

	"github.com/Dosada05/chess-arena/models"
)

type SingleEliminationGenerator struct{}

func NewSingleEliminationGenerator() BracketGenerator {
	return &SingleEliminationGenerator{}
}

func (g *SingleEliminationGenerator) GetName() string {
	return "SingleElimination"
}

func (g *SingleEliminationGenerator) GenerateBracket(params GenerateBracketParams) (*models.Bracket, error) {
	return BuildSingleElimination(params.ParticipantIDs, params.Seed)
}

// BuildSingleElimination shuffles the participants with seed and lays them
// out two per slot across the first round. Later rounds start empty.
func BuildSingleElimination(participantIDs []int, seed int64) (*models.Bracket, error) {
	n := len(participantIDs)
	if n < 2 {
		return nil, fmt.Errorf("%w: got %d", ErrInsufficientParticipants, n)
	}

	shuffled := Shuffle(participantIDs, seed)
	numRounds := int(math.Ceil(math.Log2(float64(n))))
	firstRoundSlots := 1 << uint(numRounds-1)

	bracket := &models.Bracket{
		Format: models.FormatSingleElimination,
		Rounds: make([]models.Round, numRounds),
	}

	idx := 0
	take := func() *int {
		if idx >= n {
			return nil
		}
		id := shuffled[idx]
		idx++
		return &id
	}

	slotsInRound := firstRoundSlots
	for r := 0; r < numRounds; r++ {
		slots := make([]models.BracketSlot, slotsInRound)
		for i := range slots {
			slots[i].MatchNumber = i + 1
			if r == 0 {
				slots[i].Player1ID = take()
				slots[i].Player2ID = take()
			}
		}
		bracket.Rounds[r] = models.Round{Round: r + 1, Matches: slots}
		slotsInRound = (slotsInRound + 1) / 2
	}

	return bracket, nil
}

// Advance records winnerID for slot (round, matchNumber) and seats the winner
// in slot (round+1, ceil(matchNumber/2)): player1 for odd match numbers,
// player2 for even. The input bracket is not modified.
func Advance(b *models.Bracket, round, matchNumber, winnerID int, status models.SlotStatus) (*models.Bracket, *NextMatch, error) {
	next := b.Clone()
	slot := next.Slot(round, matchNumber)
	if slot == nil {
		return nil, nil, fmt.Errorf("%w: round %d match %d", ErrSlotNotFound, round, matchNumber)
	}

	w := winnerID
	slot.WinnerID = &w
	slot.Status = status

	if next.Format == models.FormatRoundRobin || round >= next.LastRound() {
		return next, nil, nil
	}

	targetNumber := (matchNumber + 1) / 2
	target := next.Slot(round+1, targetNumber)
	if target == nil {
		return nil, nil, fmt.Errorf("%w: round %d match %d", ErrSlotNotFound, round+1, targetNumber)
	}

	seat := winnerID
	if matchNumber%2 == 1 {
		target.Player1ID = &seat
	} else {
		target.Player2ID = &seat
	}

	if target.Ready() {
		return next, &NextMatch{
			Round:       round + 1,
			MatchNumber: targetNumber,
			Player1ID:   *target.Player1ID,
			Player2ID:   *target.Player2ID,
		}, nil
	}
	return next, nil, nil
}

// ResolveByes walks the bracket until nothing changes, awarding a bye to
// every undecided slot that holds one player and can never receive an
// opponent. A round-1 slot can never be filled further; a later slot's empty
// seat is unreachable when the slot feeding it is dead.
func ResolveByes(b *models.Bracket) (*models.Bracket, error) {
	next := b.Clone()
	if next == nil || next.Format == models.FormatRoundRobin {
		return next, nil
	}

	for changed := true; changed; {
		changed = false
		for r := 1; r <= next.LastRound(); r++ {
			for i := range next.Rounds[r-1].Matches {
				s := next.Rounds[r-1].Matches[i]
				if s.WinnerID != nil || s.MatchID != nil || s.PlayerCount() != 1 {
					continue
				}
				player, emptyFeeder := loneSeat(&s)
				if r > 1 && !isDead(next, r-1, emptyFeeder(s.MatchNumber)) {
					continue
				}

				advanced, _, err := Advance(next, r, s.MatchNumber, player, models.SlotStatusBye)
				if err != nil {
					return nil, err
				}
				next = advanced
				changed = true
			}
		}
	}
	return next, nil
}

// loneSeat returns the seated player and a function mapping the slot number
// to the previous-round slot that feeds the empty seat.
func loneSeat(s *models.BracketSlot) (int, func(int) int) {
	if s.Player1ID != nil {
		return *s.Player1ID, func(n int) int { return 2 * n }
	}
	return *s.Player2ID, func(n int) int { return 2*n - 1 }
}

// isDead reports that a slot will never produce a player.
func isDead(b *models.Bracket, round, matchNumber int) bool {
	s := b.Slot(round, matchNumber)
	if s == nil {
		return true
	}
	if s.PlayerCount() > 0 || s.WinnerID != nil || s.MatchID != nil {
		return false
	}
	if round == 1 {
		return true
	}
	return isDead(b, round-1, 2*matchNumber-1) && isDead(b, round-1, 2*matchNumber)
}
