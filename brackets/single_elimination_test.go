package brackets

import (
	"fmt"
	"math"
	"sort"
	"testing"

	"github.com/Dosada05/chess-arena/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ids(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = 100 + i
	}
	return out
}

func TestBuildSingleElimination_Shape(t *testing.T) {
	for _, n := range []int{2, 3, 4, 5, 7, 8, 9, 16, 17} {
		n := n
		t.Run(fmt.Sprintf("n=%d", n), func(t *testing.T) {
			b, err := BuildSingleElimination(ids(n), 42)
			require.NoError(t, err)

			wantRounds := int(math.Ceil(math.Log2(float64(n))))
			require.Len(t, b.Rounds, wantRounds, "n=%d", n)

			first := 1 << uint(wantRounds-1)
			for r, round := range b.Rounds {
				assert.Equal(t, r+1, round.Round)
				want := int(math.Ceil(float64(first) / math.Pow(2, float64(r))))
				assert.Len(t, round.Matches, want, "n=%d round=%d", n, r+1)
				for i, s := range round.Matches {
					assert.Equal(t, i+1, s.MatchNumber)
					if r > 0 {
						assert.Nil(t, s.Player1ID)
						assert.Nil(t, s.Player2ID)
					}
				}
			}
			assert.Len(t, b.Rounds[len(b.Rounds)-1].Matches, 1)

			var seated []int
			for _, s := range b.Rounds[0].Matches {
				if s.Player1ID != nil {
					seated = append(seated, *s.Player1ID)
				}
				if s.Player2ID != nil {
					seated = append(seated, *s.Player2ID)
				}
			}
			sort.Ints(seated)
			assert.Equal(t, ids(n), seated)
		})
	}
}

func TestBuildSingleElimination_FillsConsecutivePairs(t *testing.T) {
	b, err := BuildSingleElimination(ids(5), 7)
	require.NoError(t, err)

	shuffled := Shuffle(ids(5), 7)
	slots := b.Rounds[0].Matches
	require.Len(t, slots, 4)

	assert.Equal(t, shuffled[0], *slots[0].Player1ID)
	assert.Equal(t, shuffled[1], *slots[0].Player2ID)
	assert.Equal(t, shuffled[2], *slots[1].Player1ID)
	assert.Equal(t, shuffled[3], *slots[1].Player2ID)
	assert.Equal(t, shuffled[4], *slots[2].Player1ID)
	assert.Nil(t, slots[2].Player2ID)
	assert.Equal(t, 0, slots[3].PlayerCount())
}

func TestBuildSingleElimination_Insufficient(t *testing.T) {
	for _, n := range []int{0, 1} {
		_, err := BuildSingleElimination(ids(n), 1)
		assert.ErrorIs(t, err, ErrInsufficientParticipants)
	}
}

func TestShuffle_SeedIsReproducible(t *testing.T) {
	in := ids(16)
	a := Shuffle(in, 99)
	b := Shuffle(in, 99)
	c := Shuffle(in, 100)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Equal(t, ids(16), in, "input must not be reordered")
	assert.ElementsMatch(t, in, a)
}

func TestAdvance_PlacesWinnerBySlotParity(t *testing.T) {
	b, err := BuildSingleElimination(ids(8), 3)
	require.NoError(t, err)

	odd := *b.Rounds[0].Matches[2].Player1ID
	after, next, err := Advance(b, 1, 3, odd, models.SlotStatus(models.MatchStatusWhiteWon))
	require.NoError(t, err)
	assert.Nil(t, next)
	require.NotNil(t, after.Slot(2, 2).Player1ID)
	assert.Equal(t, odd, *after.Slot(2, 2).Player1ID)
	assert.Nil(t, after.Slot(2, 2).Player2ID)
	assert.Equal(t, odd, *after.Slot(1, 3).WinnerID)
	assert.Equal(t, models.SlotStatus(models.MatchStatusWhiteWon), after.Slot(1, 3).Status)

	even := *after.Rounds[0].Matches[3].Player2ID
	after2, next, err := Advance(after, 1, 4, even, models.SlotStatus(models.MatchStatusBlackWon))
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, NextMatch{Round: 2, MatchNumber: 2, Player1ID: odd, Player2ID: even}, *next)
	assert.Equal(t, even, *after2.Slot(2, 2).Player2ID)

	// входная сетка не изменилась
	assert.Nil(t, b.Slot(1, 3).WinnerID)
	assert.Nil(t, b.Slot(2, 2).Player1ID)
}

func TestAdvance_NoNextMatchWhenAlreadyCreated(t *testing.T) {
	b, err := BuildSingleElimination(ids(4), 3)
	require.NoError(t, err)

	b, _, err = Advance(b, 1, 1, *b.Slot(1, 1).Player1ID, "white_won")
	require.NoError(t, err)
	b, next, err := Advance(b, 1, 2, *b.Slot(1, 2).Player1ID, "white_won")
	require.NoError(t, err)
	require.NotNil(t, next)

	b, err = AttachMatch(b, 2, 1, 55)
	require.NoError(t, err)

	_, again, err := Advance(b, 1, 2, *b.Slot(1, 2).Player1ID, "white_won")
	require.NoError(t, err)
	assert.Nil(t, again)
}

func TestAdvance_SlotNotFound(t *testing.T) {
	b, err := BuildSingleElimination(ids(4), 1)
	require.NoError(t, err)

	_, _, err = Advance(b, 3, 1, 1, "white_won")
	assert.ErrorIs(t, err, ErrSlotNotFound)
	_, _, err = Advance(b, 1, 9, 1, "white_won")
	assert.ErrorIs(t, err, ErrSlotNotFound)
}

// simulate plays the bracket to the end, player1 always winning, and checks
// every recorded winner landed in the right seat of the next round.
func simulate(t *testing.T, b *models.Bracket, byes bool) *models.Bracket {
	t.Helper()
	for guard := 0; guard < 64; guard++ {
		ready := ReadySlots(b)
		if len(ready) == 0 {
			break
		}
		for _, nm := range ready {
			var err error
			b, err = AttachMatch(b, nm.Round, nm.MatchNumber, nm.Round*100+nm.MatchNumber)
			require.NoError(t, err)
			b, _, err = Advance(b, nm.Round, nm.MatchNumber, nm.Player1ID, "white_won")
			require.NoError(t, err)
			if byes {
				b, err = ResolveByes(b)
				require.NoError(t, err)
			}
		}
	}

	for r := 1; r < b.LastRound(); r++ {
		for _, s := range b.Rounds[r-1].Matches {
			if s.WinnerID == nil {
				continue
			}
			target := b.Slot(r+1, (s.MatchNumber+1)/2)
			require.NotNil(t, target)
			if s.MatchNumber%2 == 1 {
				require.NotNil(t, target.Player1ID)
				assert.Equal(t, *s.WinnerID, *target.Player1ID)
			} else {
				require.NotNil(t, target.Player2ID)
				assert.Equal(t, *s.WinnerID, *target.Player2ID)
			}
		}
	}
	return b
}

func TestFullRun_AdvancementCorrectness(t *testing.T) {
	for _, n := range []int{2, 3, 4, 5, 6, 7, 8, 9, 16} {
		n := n
		t.Run(fmt.Sprintf("n=%d", n), func(t *testing.T) {
			b, err := BuildSingleElimination(ids(n), int64(n))
			require.NoError(t, err)
			b, err = ResolveByes(b)
			require.NoError(t, err)

			b = simulate(t, b, true)
			assert.True(t, IsComplete(b), "n=%d", n)
			assert.NotNil(t, Champion(b))
		})
	}
}

func TestFullRun_PowerOfTwoWithoutByes(t *testing.T) {
	for _, n := range []int{2, 4, 8, 16} {
		b, err := BuildSingleElimination(ids(n), 5)
		require.NoError(t, err)
		b = simulate(t, b, false)
		assert.True(t, IsComplete(b), "n=%d", n)
	}
}

func TestWithoutByeResolution_UnpairedSlotStalls(t *testing.T) {
	b, err := BuildSingleElimination(ids(3), 11)
	require.NoError(t, err)

	b = simulate(t, b, false)
	assert.False(t, IsComplete(b))
	lone := b.Slot(1, 2)
	assert.Nil(t, lone.WinnerID)
	assert.Nil(t, lone.MatchID)
}

func TestResolveByes(t *testing.T) {
	t.Run("three players", func(t *testing.T) {
		b, err := BuildSingleElimination(ids(3), 2)
		require.NoError(t, err)

		out, err := ResolveByes(b)
		require.NoError(t, err)

		lone := *b.Slot(1, 2).Player1ID
		assert.Equal(t, models.SlotStatusBye, out.Slot(1, 2).Status)
		assert.Equal(t, lone, *out.Slot(1, 2).WinnerID)
		assert.Equal(t, lone, *out.Slot(2, 1).Player2ID)
		assert.Nil(t, out.Slot(2, 1).WinnerID, "final must still be played")
		assert.Nil(t, b.Slot(1, 2).WinnerID, "input untouched")
	})

	t.Run("five players cascade through a dead slot", func(t *testing.T) {
		b, err := BuildSingleElimination(ids(5), 2)
		require.NoError(t, err)

		out, err := ResolveByes(b)
		require.NoError(t, err)

		lone := *b.Slot(1, 3).Player1ID
		assert.Equal(t, lone, *out.Slot(2, 2).Player1ID)
		assert.Equal(t, models.SlotStatusBye, out.Slot(2, 2).Status)
		assert.Equal(t, lone, *out.Slot(3, 1).Player2ID)
		assert.Nil(t, out.Slot(1, 4).WinnerID)
		assert.Nil(t, out.Slot(2, 1).WinnerID)
	})

	t.Run("full bracket untouched", func(t *testing.T) {
		b, err := BuildSingleElimination(ids(8), 2)
		require.NoError(t, err)
		out, err := ResolveByes(b)
		require.NoError(t, err)
		assert.Equal(t, b, out)
	})
}
