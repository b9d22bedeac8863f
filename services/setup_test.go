package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Dosada05/chess-arena/db"
	"github.com/Dosada05/chess-arena/models"
	"github.com/Dosada05/chess-arena/repositories"
	"github.com/Dosada05/chess-arena/rules"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var admin = &models.Principal{UserID: 1000, Roles: []models.UserRole{models.RoleAdmin}}

// Чёрный король a8, белые Kb6 и Qc5: ход Qc7 ставит пат.
const stalemateInOneFEN = "k7/8/1K6/2Q5/8/8/8/8 w - - 0 1"

var (
	whiteMates = []string{"e3", "f6", "e4", "g5", "Qh5"}
	blackMates = []string{"f3", "e6", "g4", "Qh4"}
)

func setupTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	conn, err := db.Connect("sqlite://:memory:", time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, db.Migrate(conn))
	return conn
}

func newRepos(conn *sqlx.DB) (repositories.MatchRepository, repositories.TournamentRepository) {
	return repositories.NewMatchRepository(conn), repositories.NewTournamentRepository(conn)
}

type recordingSink struct {
	mu          sync.Mutex
	changed     []models.MatchChanged
	completed   []models.MatchCompleted
	onCompleted func(matchID int)
}

func (s *recordingSink) PublishMatchChanged(evt models.MatchChanged) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.changed = append(s.changed, evt)
}

func (s *recordingSink) PublishMatchCompleted(evt models.MatchCompleted) {
	s.mu.Lock()
	s.completed = append(s.completed, evt)
	hook := s.onCompleted
	s.mu.Unlock()
	if hook != nil {
		hook(evt.MatchID)
	}
}

func (s *recordingSink) changes() []models.MatchChanged {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.MatchChanged(nil), s.changed...)
}

func (s *recordingSink) completions() []models.MatchCompleted {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.MatchCompleted(nil), s.completed...)
}

type recordingBroadcaster struct {
	mu          sync.Mutex
	matches     []models.MatchChanged
	tournaments []models.TournamentChanged
}

func (b *recordingBroadcaster) PublishMatchChanged(evt models.MatchChanged) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.matches = append(b.matches, evt)
}

func (b *recordingBroadcaster) PublishTournamentChanged(evt models.TournamentChanged) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tournaments = append(b.tournaments, evt)
}

func (b *recordingBroadcaster) tournamentEvents() []models.TournamentChanged {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]models.TournamentChanged(nil), b.tournaments...)
}

type recordingArchiver struct {
	mu          sync.Mutex
	matches     []int
	tournaments []int
	removed     []int
}

func (a *recordingArchiver) ArchiveMatch(_ context.Context, m *models.Match) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.matches = append(a.matches, m.ID)
	return nil
}

func (a *recordingArchiver) RemoveMatch(_ context.Context, matchID int) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.removed = append(a.removed, matchID)
	return nil
}

func (a *recordingArchiver) ArchiveTournament(_ context.Context, t *models.Tournament, _ []models.Match) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.tournaments = append(a.tournaments, t.ID)
	return nil
}

type fixture struct {
	db             *sqlx.DB
	matchRepo      repositories.MatchRepository
	tournamentRepo repositories.TournamentRepository
	sink           *recordingSink
	broadcaster    *recordingBroadcaster
	archiver       *recordingArchiver
	matches        MatchService
	tournaments    *TournamentService
}

// newFixture wires the services the way main does, except that completions
// are delivered synchronously instead of through the Dispatcher.
func newFixture(t *testing.T, opts TournamentOptions) *fixture {
	t.Helper()
	conn := setupTestDB(t)
	f := &fixture{
		db:          conn,
		sink:        &recordingSink{},
		broadcaster: &recordingBroadcaster{},
		archiver:    &recordingArchiver{},
	}
	f.matchRepo, f.tournamentRepo = newRepos(conn)
	f.tournaments = NewTournamentService(conn, f.tournamentRepo, f.matchRepo, f.broadcaster, f.archiver, opts, nil)
	f.matches = NewMatchService(f.matchRepo, rules.NewEngine(), f.sink, f.archiver, nil)
	f.tournaments.SetMatchAborter(f.matches)
	f.sink.onCompleted = func(matchID int) {
		assert.NoError(t, f.tournaments.OnMatchCompleted(context.Background(), matchID))
	}
	return f
}

func (f *fixture) createMatch(t *testing.T, white, black int) *models.Match {
	t.Helper()
	m, err := f.matches.CreateMatch(context.Background(), admin, white, black)
	require.NoError(t, err)
	return m
}

// play submits moves alternately starting with white.
func (f *fixture) play(t *testing.T, m *models.Match, moves ...string) *models.Match {
	t.Helper()
	current := m
	for i, move := range moves {
		player := m.WhitePlayerID
		if i%2 == 1 {
			player = m.BlackPlayerID
		}
		res, err := f.matches.SubmitMove(context.Background(), m.ID, player, move)
		require.NoError(t, err)
		require.True(t, res.Success, "move %q rejected: %s %s", move, res.Reason, res.Detail)
		current = res.Match
	}
	return current
}

// win finishes m with winnerID mating the opponent.
func (f *fixture) win(t *testing.T, m *models.Match, winnerID int) {
	t.Helper()
	if winnerID == m.WhitePlayerID {
		f.play(t, m, whiteMates...)
	} else {
		f.play(t, m, blackMates...)
	}
}

// draw puts m into a stalemate-in-one position and lets white stalemate.
func (f *fixture) draw(t *testing.T, m *models.Match) {
	t.Helper()
	ctx := context.Background()
	stored, err := f.matchRepo.GetByID(ctx, nil, m.ID)
	require.NoError(t, err)
	stored.FEN = stalemateInOneFEN
	stored.Status = models.MatchStatusInProgress
	require.NoError(t, f.matchRepo.Update(ctx, nil, stored))

	res, err := f.matches.SubmitMove(ctx, m.ID, m.WhitePlayerID, "Qc7")
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Equal(t, models.MatchStatusDraw, res.Match.Status)
}

func (f *fixture) newTournament(t *testing.T, format models.TournamentFormat, players ...int) *models.Tournament {
	t.Helper()
	ctx := context.Background()
	tournament, err := f.tournaments.CreateTournament(ctx, admin, CreateTournamentInput{Name: "Cup", Format: format})
	require.NoError(t, err)
	for _, p := range players {
		_, err := f.tournaments.RegisterParticipant(ctx, tournament.ID, p)
		require.NoError(t, err)
	}
	return tournament
}

func (f *fixture) start(t *testing.T, tournamentID int, seed int64) *models.Tournament {
	t.Helper()
	started, err := f.tournaments.StartTournament(context.Background(), admin, tournamentID, &seed)
	require.NoError(t, err)
	return started
}

func (f *fixture) reload(t *testing.T, tournamentID int) *models.Tournament {
	t.Helper()
	tournament, err := f.tournaments.GetTournament(context.Background(), tournamentID)
	require.NoError(t, err)
	return tournament
}

func (f *fixture) matchAt(t *testing.T, tournament *models.Tournament, round, number int) *models.Match {
	t.Helper()
	slot := tournament.Bracket.Slot(round, number)
	require.NotNil(t, slot, "slot %d/%d", round, number)
	require.NotNil(t, slot.MatchID, "slot %d/%d has no match", round, number)
	m, err := f.matchRepo.GetByID(context.Background(), nil, *slot.MatchID)
	require.NoError(t, err)
	return m
}
