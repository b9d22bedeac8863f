package brackets

import (
	"fmt"

	"github.com/Dosada05/chess-arena/models"
)

type RoundRobinGenerator struct{}

func NewRoundRobinGenerator() BracketGenerator {
	return &RoundRobinGenerator{}
}

func (g *RoundRobinGenerator) GetName() string {
	return "RoundRobin"
}

// GenerateBracket schedules every pairing once using the circle method.
// An odd field gets a phantom seat; games against it are skipped, so the
// match numbers in such a round may have gaps.
func (g *RoundRobinGenerator) GenerateBracket(params GenerateBracketParams) (*models.Bracket, error) {
	n := len(params.ParticipantIDs)
	if n < 2 {
		return nil, fmt.Errorf("%w: got %d", ErrInsufficientParticipants, n)
	}

	shuffled := Shuffle(params.ParticipantIDs, params.Seed)

	seats := n
	if seats%2 != 0 {
		seats++
	}
	positions := make([]*int, seats)
	for i := range shuffled {
		id := shuffled[i]
		positions[i] = &id
	}

	numRounds := seats - 1
	perRound := seats / 2
	bracket := &models.Bracket{
		Format: models.FormatRoundRobin,
		Rounds: make([]models.Round, numRounds),
	}

	for r := 0; r < numRounds; r++ {
		slots := make([]models.BracketSlot, 0, perRound)
		for m := 0; m < perRound; m++ {
			home, away := positions[m], positions[seats-1-m]
			if home == nil || away == nil {
				continue
			}
			p1, p2 := *home, *away
			slots = append(slots, models.BracketSlot{
				MatchNumber: m + 1,
				Player1ID:   &p1,
				Player2ID:   &p2,
			})
		}
		bracket.Rounds[r] = models.Round{Round: r + 1, Matches: slots}

		// Первая позиция фиксирована, остальные сдвигаются по кругу.
		last := positions[seats-1]
		for i := seats - 1; i > 1; i-- {
			positions[i] = positions[i-1]
		}
		positions[1] = last
	}

	return bracket, nil
}

func roundRobinComplete(b *models.Bracket) bool {
	for _, r := range b.Rounds {
		for _, s := range r.Matches {
			if !models.MatchStatus(s.Status).IsTerminal() {
				return false
			}
		}
	}
	return true
}

// Standings counts wins (1 point) and draws (half a point, stored doubled)
// per player from a round-robin bracket.
func Standings(b *models.Bracket) map[int]int {
	points := make(map[int]int)
	if b == nil {
		return points
	}
	for _, r := range b.Rounds {
		for _, s := range r.Matches {
			if s.Player1ID == nil || s.Player2ID == nil {
				continue
			}
			switch models.MatchStatus(s.Status) {
			case models.MatchStatusDraw:
				points[*s.Player1ID]++
				points[*s.Player2ID]++
			case models.MatchStatusWhiteWon, models.MatchStatusBlackWon:
				if s.WinnerID != nil {
					points[*s.WinnerID] += 2
				}
			}
		}
	}
	return points
}
