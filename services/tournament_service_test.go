package services

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/Dosada05/chess-arena/models"
	"github.com/Dosada05/chess-arena/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateTournament_Validation(t *testing.T) {
	f := newFixture(t, TournamentOptions{})
	ctx := context.Background()

	testCases := []struct {
		name    string
		input   CreateTournamentInput
		wantErr error
	}{
		{name: "blank name", input: CreateTournamentInput{Name: "  "}, wantErr: ErrTournamentNameRequired},
		{name: "negative cap", input: CreateTournamentInput{Name: "A", MaxParticipants: -1}, wantErr: ErrTournamentInvalidCapacity},
		{name: "unknown format", input: CreateTournamentInput{Name: "A", Format: "swiss"}, wantErr: ErrTournamentInvalidFormat},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.tournaments.CreateTournament(ctx, admin, tc.input)
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}

	created, err := f.tournaments.CreateTournament(ctx, admin, CreateTournamentInput{Name: " Open ", Description: utils.Ptr("  ")})
	require.NoError(t, err)
	assert.Equal(t, "Open", created.Name)
	assert.Nil(t, created.Description)
	assert.Equal(t, models.FormatSingleElimination, created.Format)
	assert.Equal(t, models.StatusRegistration, created.Status)

	_, err = f.tournaments.CreateTournament(ctx, &models.Principal{UserID: 5}, CreateTournamentInput{Name: "B"})
	assert.ErrorIs(t, err, ErrForbiddenOperation)
}

func TestCreateTournament_StorageFailure(t *testing.T) {
	f := newFixture(t, TournamentOptions{})
	require.NoError(t, f.db.Close())

	created, err := f.tournaments.CreateTournament(context.Background(), admin, CreateTournamentInput{Name: "Open"})
	require.Error(t, err)
	assert.Nil(t, created)
	assert.Contains(t, err.Error(), "failed to create tournament")
	assert.ErrorContains(t, err, "database is closed")
}

func TestRegisterParticipant(t *testing.T) {
	f := newFixture(t, TournamentOptions{})
	ctx := context.Background()

	tournament, err := f.tournaments.CreateTournament(ctx, admin, CreateTournamentInput{Name: "Capped", MaxParticipants: 2})
	require.NoError(t, err)

	got, err := f.tournaments.RegisterParticipant(ctx, tournament.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, got.ParticipantIDs)

	_, err = f.tournaments.RegisterParticipant(ctx, tournament.ID, 1)
	assert.ErrorIs(t, err, ErrAlreadyRegistered)

	_, err = f.tournaments.RegisterParticipant(ctx, tournament.ID, 2)
	require.NoError(t, err)

	_, err = f.tournaments.RegisterParticipant(ctx, tournament.ID, 3)
	assert.ErrorIs(t, err, ErrTournamentFull)

	_, err = f.tournaments.RegisterParticipant(ctx, 999, 3)
	assert.ErrorIs(t, err, ErrTournamentNotFound)

	left, err := f.tournaments.LeaveTournament(ctx, tournament.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, left.ParticipantIDs)
	_, err = f.tournaments.LeaveTournament(ctx, tournament.ID, 2)
	assert.ErrorIs(t, err, ErrNotRegistered)

	_, err = f.tournaments.RegisterParticipant(ctx, tournament.ID, 3)
	require.NoError(t, err)
	f.start(t, tournament.ID, 1)

	_, err = f.tournaments.RegisterParticipant(ctx, tournament.ID, 4)
	assert.ErrorIs(t, err, ErrNotOpenForRegistration)
	_, err = f.tournaments.LeaveTournament(ctx, tournament.ID, 1)
	assert.ErrorIs(t, err, ErrNotOpenForRegistration)
}

func TestRegisterParticipant_ConcurrentRespectsCapacity(t *testing.T) {
	f := newFixture(t, TournamentOptions{})
	ctx := context.Background()
	tournament, err := f.tournaments.CreateTournament(ctx, admin, CreateTournamentInput{Name: "Rush", MaxParticipants: 3})
	require.NoError(t, err)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		full int
	)
	for user := 1; user <= 10; user++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.tournaments.RegisterParticipant(ctx, tournament.ID, user)
			if err != nil {
				assert.ErrorIs(t, err, ErrTournamentFull)
				mu.Lock()
				full++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 7, full)
	assert.Len(t, f.reload(t, tournament.ID).ParticipantIDs, 3)
}

func TestStartTournament_Errors(t *testing.T) {
	f := newFixture(t, TournamentOptions{})
	ctx := context.Background()
	seed := int64(1)

	lonely := f.newTournament(t, models.FormatSingleElimination, 1)
	_, err := f.tournaments.StartTournament(ctx, admin, lonely.ID, &seed)
	assert.ErrorIs(t, err, ErrTooFewParticipants)

	_, err = f.tournaments.StartTournament(ctx, admin, 999, &seed)
	assert.ErrorIs(t, err, ErrTournamentNotFound)

	pair := f.newTournament(t, models.FormatSingleElimination, 1, 2)
	_, err = f.tournaments.StartTournament(ctx, &models.Principal{UserID: 1}, pair.ID, &seed)
	assert.ErrorIs(t, err, ErrForbiddenOperation)

	f.start(t, pair.ID, seed)
	_, err = f.tournaments.StartTournament(ctx, admin, pair.ID, &seed)
	assert.ErrorIs(t, err, ErrNotOpenForRegistration)
}

func TestStartTournament_RandomSeedWhenNil(t *testing.T) {
	f := newFixture(t, TournamentOptions{})
	tournament := f.newTournament(t, models.FormatSingleElimination, 1, 2, 3, 4)

	started, err := f.tournaments.StartTournament(context.Background(), admin, tournament.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, started.Status)
	assert.Len(t, started.Bracket.Rounds, 2)
}

// Четыре участника: два полуфинала, затем финал и завершение турнира.
func TestTournament_FourPlayerRun(t *testing.T) {
	f := newFixture(t, TournamentOptions{})
	ctx := context.Background()
	tournament := f.newTournament(t, models.FormatSingleElimination, 1, 2, 3, 4)

	started := f.start(t, tournament.ID, 42)
	require.Equal(t, models.StatusInProgress, started.Status)
	require.NotNil(t, started.StartDate)
	require.Len(t, started.Bracket.Rounds, 2)
	require.Len(t, started.Bracket.Rounds[0].Matches, 2)
	require.Len(t, started.Bracket.Rounds[1].Matches, 1)

	semi1 := f.matchAt(t, started, 1, 1)
	semi2 := f.matchAt(t, started, 1, 2)
	for _, m := range []*models.Match{semi1, semi2} {
		assert.Equal(t, models.MatchStatusPending, m.Status)
		require.NotNil(t, m.TournamentRef)
		assert.Equal(t, tournament.ID, m.TournamentRef.TournamentID)
	}
	assert.Nil(t, started.Bracket.Slot(2, 1).MatchID)

	f.win(t, semi1, semi1.WhitePlayerID)
	afterFirst := f.reload(t, tournament.ID)
	assert.Equal(t, models.StatusInProgress, afterFirst.Status)
	assert.Nil(t, afterFirst.Bracket.Slot(2, 1).MatchID, "final waits for the second semi-final")
	assert.Len(t, afterFirst.Matches, 2)

	f.win(t, semi2, semi2.BlackPlayerID)
	afterSemis := f.reload(t, tournament.ID)
	require.Len(t, afterSemis.Matches, 3)

	final := f.matchAt(t, afterSemis, 2, 1)
	assert.Equal(t, semi1.WhitePlayerID, final.WhitePlayerID)
	assert.Equal(t, semi2.BlackPlayerID, final.BlackPlayerID)
	assert.Equal(t, models.MatchStatusPending, final.Status)

	f.win(t, final, final.BlackPlayerID)
	done := f.reload(t, tournament.ID)
	assert.Equal(t, models.StatusCompleted, done.Status)
	require.NotNil(t, done.EndDate)
	require.NotNil(t, done.WinnerID)
	assert.Equal(t, final.BlackPlayerID, *done.WinnerID)
	assert.Equal(t, []int{tournament.ID}, f.archiver.tournaments)
	assert.Empty(t, f.archiver.matches, "tournament games are archived with the tournament")

	events := f.broadcaster.tournamentEvents()
	require.NotEmpty(t, events)
	assert.Equal(t, models.TournamentChanged{TournamentID: tournament.ID, MatchID: final.ID}, events[len(events)-1])

	bracket, err := f.tournaments.GetBracket(ctx, tournament.ID)
	require.NoError(t, err)
	assert.Equal(t, done.Bracket, bracket)
}

func TestOnMatchCompleted_Idempotent(t *testing.T) {
	f := newFixture(t, TournamentOptions{})
	ctx := context.Background()
	tournament := f.newTournament(t, models.FormatSingleElimination, 1, 2, 3, 4)
	started := f.start(t, tournament.ID, 7)

	semi1 := f.matchAt(t, started, 1, 1)
	semi2 := f.matchAt(t, started, 1, 2)
	f.win(t, semi1, semi1.WhitePlayerID)
	f.win(t, semi2, semi2.WhitePlayerID)

	before := f.reload(t, tournament.ID)
	require.Len(t, before.Matches, 3)

	for i := 0; i < 3; i++ {
		require.NoError(t, f.tournaments.OnMatchCompleted(ctx, semi1.ID))
		require.NoError(t, f.tournaments.OnMatchCompleted(ctx, semi2.ID))
	}

	after := f.reload(t, tournament.ID)
	assert.Len(t, after.Matches, 3)
	assert.Equal(t, before.Bracket, after.Bracket)
}

func TestOnMatchCompleted_ConcurrentDeliveries(t *testing.T) {
	f := newFixture(t, TournamentOptions{})
	ctx := context.Background()
	tournament := f.newTournament(t, models.FormatSingleElimination, 1, 2, 3, 4)
	started := f.start(t, tournament.ID, 3)

	semi1 := f.matchAt(t, started, 1, 1)
	semi2 := f.matchAt(t, started, 1, 2)

	// Завершаем матчи без синхронной доставки, затем доставляем параллельно.
	f.sink.onCompleted = nil
	f.win(t, semi1, semi1.WhitePlayerID)
	f.win(t, semi2, semi2.WhitePlayerID)
	require.Len(t, f.sink.completions(), 2)

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		for _, id := range []int{semi1.ID, semi2.ID} {
			wg.Add(1)
			go func() {
				defer wg.Done()
				assert.NoError(t, f.tournaments.OnMatchCompleted(ctx, id))
			}()
		}
	}
	wg.Wait()

	after := f.reload(t, tournament.ID)
	require.Len(t, after.Matches, 3)
	final := f.matchAt(t, after, 2, 1)
	assert.Equal(t, semi1.WhitePlayerID, final.WhitePlayerID)
	assert.Equal(t, semi2.WhitePlayerID, final.BlackPlayerID)
}

func TestOnMatchCompleted_IgnoresFreeAndUnknownMatches(t *testing.T) {
	f := newFixture(t, TournamentOptions{})
	ctx := context.Background()
	free := f.createMatch(t, 1, 2)

	assert.NoError(t, f.tournaments.OnMatchCompleted(ctx, free.ID))
	assert.ErrorIs(t, f.tournaments.OnMatchCompleted(ctx, 4040), ErrMatchNotFound)
	assert.Empty(t, f.broadcaster.tournamentEvents())
}

func TestDrawPolicy(t *testing.T) {
	t.Run("replay swaps colours and supersedes the drawn game", func(t *testing.T) {
		f := newFixture(t, TournamentOptions{DrawPolicy: DrawPolicyReplay})
		ctx := context.Background()
		tournament := f.newTournament(t, models.FormatSingleElimination, 1, 2)
		started := f.start(t, tournament.ID, 11)

		drawn := f.matchAt(t, started, 1, 1)
		f.draw(t, drawn)

		afterDraw := f.reload(t, tournament.ID)
		assert.Equal(t, models.StatusInProgress, afterDraw.Status)
		slot := afterDraw.Bracket.Slot(1, 1)
		assert.Nil(t, slot.WinnerID)
		assert.Equal(t, models.SlotStatus(models.MatchStatusDraw), slot.Status)

		replay := f.matchAt(t, afterDraw, 1, 1)
		assert.NotEqual(t, drawn.ID, replay.ID)
		assert.Equal(t, drawn.WhitePlayerID, replay.BlackPlayerID)
		assert.Equal(t, drawn.BlackPlayerID, replay.WhitePlayerID)
		assert.Equal(t, models.MatchStatusPending, replay.Status)

		// Повторная доставка для старого матча ничего не меняет.
		require.NoError(t, f.tournaments.OnMatchCompleted(ctx, drawn.ID))
		again := f.reload(t, tournament.ID)
		assert.Len(t, again.Matches, 2)
		assert.Equal(t, afterDraw.Bracket, again.Bracket)

		f.win(t, replay, replay.WhitePlayerID)
		done := f.reload(t, tournament.ID)
		assert.Equal(t, models.StatusCompleted, done.Status)
		require.NotNil(t, done.WinnerID)
		assert.Equal(t, replay.WhitePlayerID, *done.WinnerID)
	})

	t.Run("white advances", func(t *testing.T) {
		f := newFixture(t, TournamentOptions{DrawPolicy: DrawPolicyWhiteAdvances})
		tournament := f.newTournament(t, models.FormatSingleElimination, 1, 2)
		started := f.start(t, tournament.ID, 11)

		drawn := f.matchAt(t, started, 1, 1)
		f.draw(t, drawn)

		done := f.reload(t, tournament.ID)
		assert.Equal(t, models.StatusCompleted, done.Status)
		require.NotNil(t, done.WinnerID)
		assert.Equal(t, drawn.WhitePlayerID, *done.WinnerID)
		assert.Len(t, done.Matches, 1)
		assert.Equal(t, models.SlotStatus(models.MatchStatusDraw), done.Bracket.Slot(1, 1).Status)
	})
}

func TestByePolicy(t *testing.T) {
	t.Run("none leaves the lone player waiting", func(t *testing.T) {
		f := newFixture(t, TournamentOptions{ByePolicy: ByePolicyNone})
		tournament := f.newTournament(t, models.FormatSingleElimination, 1, 2, 3)
		started := f.start(t, tournament.ID, 5)

		require.Len(t, started.Bracket.Rounds, 2)
		lone := started.Bracket.Slot(1, 2)
		assert.Equal(t, 1, lone.PlayerCount())
		assert.Nil(t, lone.MatchID)
		assert.Nil(t, lone.WinnerID)

		f.win(t, f.matchAt(t, started, 1, 1), f.matchAt(t, started, 1, 1).WhitePlayerID)
		after := f.reload(t, tournament.ID)
		assert.Equal(t, models.StatusInProgress, after.Status)
		assert.Nil(t, after.Bracket.Slot(2, 1).MatchID)
		assert.Len(t, after.Matches, 1)
	})

	t.Run("advance seats the lone player in the next round", func(t *testing.T) {
		f := newFixture(t, TournamentOptions{ByePolicy: ByePolicyAdvance})
		tournament := f.newTournament(t, models.FormatSingleElimination, 1, 2, 3)
		started := f.start(t, tournament.ID, 5)

		lone := started.Bracket.Slot(1, 2)
		require.NotNil(t, lone.WinnerID)
		assert.Equal(t, models.SlotStatusBye, lone.Status)
		assert.Nil(t, lone.MatchID)
		assert.Equal(t, *lone.WinnerID, *started.Bracket.Slot(2, 1).Player2ID)

		semi := f.matchAt(t, started, 1, 1)
		f.win(t, semi, semi.BlackPlayerID)

		after := f.reload(t, tournament.ID)
		final := f.matchAt(t, after, 2, 1)
		assert.Equal(t, semi.BlackPlayerID, final.WhitePlayerID)
		assert.Equal(t, *lone.WinnerID, final.BlackPlayerID)

		f.win(t, final, final.WhitePlayerID)
		done := f.reload(t, tournament.ID)
		assert.Equal(t, models.StatusCompleted, done.Status)
		assert.Equal(t, semi.BlackPlayerID, *done.WinnerID)
	})
}

func TestTournament_FullRunsWithByes(t *testing.T) {
	for _, n := range []int{2, 3, 5, 6, 7, 8, 9} {
		t.Run(fmt.Sprintf("n=%d", n), func(t *testing.T) {
			f := newFixture(t, TournamentOptions{ByePolicy: ByePolicyAdvance})
			players := make([]int, n)
			for i := range players {
				players[i] = i + 1
			}
			tournament := f.newTournament(t, models.FormatSingleElimination, players...)
			f.start(t, tournament.ID, int64(n))

			for guard := 0; guard < 2*n; guard++ {
				current := f.reload(t, tournament.ID)
				if current.Status == models.StatusCompleted {
					break
				}
				played := false
				for _, m := range current.Matches {
					if m.Status == models.MatchStatusPending {
						mm := m
						f.win(t, &mm, mm.WhitePlayerID)
						played = true
					}
				}
				require.True(t, played, "bracket stalled")
			}

			done := f.reload(t, tournament.ID)
			require.Equal(t, models.StatusCompleted, done.Status)
			require.NotNil(t, done.WinnerID)
			assert.Len(t, done.Matches, n-1, "single elimination plays n-1 games")
		})
	}
}

func TestCancelTournament(t *testing.T) {
	f := newFixture(t, TournamentOptions{})
	ctx := context.Background()
	tournament := f.newTournament(t, models.FormatSingleElimination, 1, 2, 3, 4)
	started := f.start(t, tournament.ID, 9)

	semi1 := f.matchAt(t, started, 1, 1)
	semi2 := f.matchAt(t, started, 1, 2)
	f.play(t, semi2, "e4")

	cancelled, err := f.tournaments.CancelTournament(ctx, admin, tournament.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, cancelled.Status)

	for _, m := range []*models.Match{semi1, semi2} {
		stored, err := f.matchRepo.GetByID(ctx, nil, m.ID)
		require.NoError(t, err)
		assert.Equal(t, models.MatchStatusAborted, stored.Status)
	}

	// Поздние завершения игнорируются.
	require.NoError(t, f.tournaments.OnMatchCompleted(ctx, semi1.ID))
	after := f.reload(t, tournament.ID)
	assert.Equal(t, models.StatusCancelled, after.Status)
	assert.Len(t, after.Matches, 2)

	_, err = f.tournaments.CancelTournament(ctx, admin, tournament.ID)
	assert.ErrorIs(t, err, ErrTournamentInvalidStatusTransition)

	require.NoError(t, f.tournaments.DeleteTournament(ctx, admin, tournament.ID))
	_, err = f.tournaments.GetTournament(ctx, tournament.ID)
	assert.ErrorIs(t, err, ErrTournamentNotFound)
}

func TestUpdateAndDeleteTournament(t *testing.T) {
	f := newFixture(t, TournamentOptions{})
	ctx := context.Background()
	tournament := f.newTournament(t, models.FormatSingleElimination, 1, 2, 3)

	updated, err := f.tournaments.UpdateTournament(ctx, admin, tournament.ID, UpdateTournamentInput{
		Name:            utils.Ptr("Renamed"),
		Description:     utils.Ptr("Weekly blitz"),
		MaxParticipants: utils.Ptr(8),
	})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Name)
	require.NotNil(t, updated.Description)
	assert.Equal(t, "Weekly blitz", *updated.Description)
	assert.Equal(t, 8, updated.MaxParticipants)

	_, err = f.tournaments.UpdateTournament(ctx, admin, tournament.ID, UpdateTournamentInput{MaxParticipants: utils.Ptr(2)})
	assert.ErrorIs(t, err, ErrTournamentInvalidCapacity)
	_, err = f.tournaments.UpdateTournament(ctx, admin, tournament.ID, UpdateTournamentInput{Name: utils.Ptr("")})
	assert.ErrorIs(t, err, ErrTournamentNameRequired)

	status := models.StatusRegistration
	open, err := f.tournaments.ListTournaments(ctx, &status, 0, 0)
	require.NoError(t, err)
	assert.Len(t, open, 1)

	f.start(t, tournament.ID, 1)
	_, err = f.tournaments.UpdateTournament(ctx, admin, tournament.ID, UpdateTournamentInput{Name: utils.Ptr("Late")})
	assert.ErrorIs(t, err, ErrNotOpenForRegistration)
	assert.ErrorIs(t, f.tournaments.DeleteTournament(ctx, admin, tournament.ID), ErrTournamentInvalidStatusTransition)

	bogus := models.TournamentStatus("paused")
	_, err = f.tournaments.ListTournaments(ctx, &bogus, 0, 0)
	assert.ErrorIs(t, err, ErrValidationFailed)
}

func TestRoundRobinTournament(t *testing.T) {
	f := newFixture(t, TournamentOptions{})
	tournament := f.newTournament(t, models.FormatRoundRobin, 1, 2, 3)
	started := f.start(t, tournament.ID, 4)

	current := f.reload(t, tournament.ID)
	require.Len(t, current.Matches, 3, "every pair plays once")
	assert.Equal(t, models.FormatRoundRobin, started.Bracket.Format)

	// Игрок 1 выигрывает все свои партии, остальные играют вничью.
	for _, m := range current.Matches {
		mm := m
		switch {
		case mm.WhitePlayerID == 1 || mm.BlackPlayerID == 1:
			f.win(t, &mm, 1)
		default:
			f.draw(t, &mm)
		}
	}

	done := f.reload(t, tournament.ID)
	assert.Equal(t, models.StatusCompleted, done.Status)
	require.NotNil(t, done.WinnerID)
	assert.Equal(t, 1, *done.WinnerID)
	assert.Len(t, done.Matches, 3, "draws are final in round robin")
}

func TestRoundRobinLeader(t *testing.T) {
	assert.Nil(t, roundRobinLeader(map[int]int{}))
	assert.Nil(t, roundRobinLeader(map[int]int{1: 2, 2: 2}))
	leader := roundRobinLeader(map[int]int{1: 1, 2: 4, 3: 3})
	require.NotNil(t, leader)
	assert.Equal(t, 2, *leader)
}
