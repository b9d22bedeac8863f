package brackets

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/Dosada05/chess-arena/models"
)

var (
	ErrInsufficientParticipants = errors.New("at least two participants are required")
	ErrSlotNotFound             = errors.New("bracket slot not found")
	ErrUnknownFormat            = errors.New("unknown tournament format")
)

type GenerateBracketParams struct {
	ParticipantIDs []int
	Seed           int64
}

type BracketGenerator interface {
	GenerateBracket(params GenerateBracketParams) (*models.Bracket, error)

	GetName() string
}

// NextMatch describes a slot whose both seats are filled and which still
// needs a match record.
type NextMatch struct {
	Round       int
	MatchNumber int
	Player1ID   int
	Player2ID   int
}

func GeneratorFor(format models.TournamentFormat) (BracketGenerator, error) {
	switch format {
	case models.FormatSingleElimination, "":
		return NewSingleEliminationGenerator(), nil
	case models.FormatRoundRobin:
		return NewRoundRobinGenerator(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// Shuffle returns a Fisher–Yates permutation of ids driven by seed; ids is
// left untouched.
func Shuffle(ids []int, seed int64) []int {
	out := make([]int, len(ids))
	copy(out, ids)

	rng := rand.New(rand.NewSource(seed))
	for i := len(out) - 1; i > 0; i-- {
		j := rng.Intn(i + 1)
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// ReadySlots lists every slot that has both players and no match yet, in
// round then match order.
func ReadySlots(b *models.Bracket) []NextMatch {
	if b == nil {
		return nil
	}
	var out []NextMatch
	for _, r := range b.Rounds {
		for i := range r.Matches {
			s := &r.Matches[i]
			if s.Ready() && s.WinnerID == nil {
				out = append(out, NextMatch{
					Round:       r.Round,
					MatchNumber: s.MatchNumber,
					Player1ID:   *s.Player1ID,
					Player2ID:   *s.Player2ID,
				})
			}
		}
	}
	return out
}

// RecordResult mirrors status into the slot without advancing anybody.
func RecordResult(b *models.Bracket, round, matchNumber int, status models.SlotStatus) (*models.Bracket, error) {
	next := b.Clone()
	slot := next.Slot(round, matchNumber)
	if slot == nil {
		return nil, fmt.Errorf("%w: round %d match %d", ErrSlotNotFound, round, matchNumber)
	}
	slot.Status = status
	return next, nil
}

// AttachMatch writes a created match id into its slot.
func AttachMatch(b *models.Bracket, round, matchNumber, matchID int) (*models.Bracket, error) {
	next := b.Clone()
	slot := next.Slot(round, matchNumber)
	if slot == nil {
		return nil, fmt.Errorf("%w: round %d match %d", ErrSlotNotFound, round, matchNumber)
	}
	slot.MatchID = &matchID
	slot.Status = models.SlotStatus(models.MatchStatusPending)
	return next, nil
}

// IsComplete reports whether no more games are needed.
func IsComplete(b *models.Bracket) bool {
	if b == nil || len(b.Rounds) == 0 {
		return false
	}
	if b.Format == models.FormatRoundRobin {
		return roundRobinComplete(b)
	}
	final := b.Slot(b.LastRound(), 1)
	return final != nil && final.WinnerID != nil
}

// Champion is the winner of the final slot of a single-elimination bracket.
func Champion(b *models.Bracket) *int {
	if b == nil || b.Format == models.FormatRoundRobin {
		return nil
	}
	final := b.Slot(b.LastRound(), 1)
	if final == nil || final.WinnerID == nil {
		return nil
	}
	id := *final.WinnerID
	return &id
}
