package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Dosada05/chess-arena/brackets"
	"github.com/Dosada05/chess-arena/models"
	"github.com/Dosada05/chess-arena/repositories"
	"github.com/Dosada05/chess-arena/storage"
	"github.com/Dosada05/chess-arena/utils"
	"github.com/jmoiron/sqlx"
	"golang.org/x/sync/errgroup"
)

// DrawPolicy decides what a drawn single-elimination game means.
type DrawPolicy string

const (
	DrawPolicyReplay        DrawPolicy = "replay"
	DrawPolicyWhiteAdvances DrawPolicy = "white_advances"
)

// ByePolicy decides whether a lone player in a slot moves on automatically.
type ByePolicy string

const (
	ByePolicyNone    ByePolicy = "none"
	ByePolicyAdvance ByePolicy = "advance"
)

type TournamentOptions struct {
	DrawPolicy DrawPolicy
	ByePolicy  ByePolicy
}

// MatchAborter is the part of MatchService a cancelled tournament needs.
type MatchAborter interface {
	AbortMatch(ctx context.Context, actor *models.Principal, matchID int) (*models.Match, error)
}

type CreateTournamentInput struct {
	Name            string                  `json:"name"`
	Description     *string                 `json:"description"`
	Format          models.TournamentFormat `json:"format"`
	MaxParticipants int                     `json:"max_participants"`
}

type UpdateTournamentInput struct {
	Name            *string `json:"name"`
	Description     *string `json:"description"`
	MaxParticipants *int    `json:"max_participants"`
}

type TournamentService struct {
	db             *sqlx.DB
	tournamentRepo repositories.TournamentRepository
	matchRepo      repositories.MatchRepository
	broadcaster    Broadcaster
	archiver       storage.Archiver
	aborter        MatchAborter
	opts           TournamentOptions
	locks          *keyedMutex
	logger         *slog.Logger
	now            func() time.Time
}

func NewTournamentService(
	db *sqlx.DB,
	tournamentRepo repositories.TournamentRepository,
	matchRepo repositories.MatchRepository,
	broadcaster Broadcaster,
	archiver storage.Archiver,
	opts TournamentOptions,
	logger *slog.Logger,
) *TournamentService {
	if broadcaster == nil {
		broadcaster = nopBroadcaster{}
	}
	if archiver == nil {
		archiver = storage.NopArchiver{}
	}
	if opts.DrawPolicy == "" {
		opts.DrawPolicy = DrawPolicyReplay
	}
	if opts.ByePolicy == "" {
		opts.ByePolicy = ByePolicyNone
	}
	return &TournamentService{
		db:             db,
		tournamentRepo: tournamentRepo,
		matchRepo:      matchRepo,
		broadcaster:    broadcaster,
		archiver:       archiver,
		opts:           opts,
		locks:          newKeyedMutex(),
		logger:         loggerOrDefault(logger),
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// SetMatchAborter wires the match service in after both are constructed;
// match events flow back into this service, so neither can own the other.
func (s *TournamentService) SetMatchAborter(aborter MatchAborter) {
	s.aborter = aborter
}

func (s *TournamentService) CreateTournament(ctx context.Context, actor *models.Principal, input CreateTournamentInput) (*models.Tournament, error) {
	if err := RequireRoles(actor, models.RoleAdmin); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, ErrTournamentNameRequired
	}
	if input.MaxParticipants < 0 {
		return nil, ErrTournamentInvalidCapacity
	}
	format := input.Format
	if format == "" {
		format = models.FormatSingleElimination
	}
	if !format.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrTournamentInvalidFormat, format)
	}

	tournament := &models.Tournament{
		Name:            name,
		Description:     trimmedOrNil(input.Description),
		Format:          format,
		Status:          models.StatusRegistration,
		MaxParticipants: input.MaxParticipants,
	}
	if err := s.tournamentRepo.Create(ctx, tournament); err != nil {
		return nil, fmt.Errorf("failed to create tournament: %w", handleRepositoryError(err))
	}
	s.logger.InfoContext(ctx, "tournament created",
		slog.Int("tournament_id", tournament.ID), slog.String("format", string(format)))
	return tournament, nil
}

// GetTournament loads the tournament, its participants and its matches in
// parallel.
func (s *TournamentService) GetTournament(ctx context.Context, tournamentID int) (*models.Tournament, error) {
	var (
		tournament   *models.Tournament
		participants []int
		matches      []models.Match
	)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		t, err := s.tournamentRepo.GetByID(gCtx, nil, tournamentID)
		if err != nil {
			return handleRepositoryError(err)
		}
		tournament = t
		return nil
	})
	g.Go(func() error {
		ids, err := s.tournamentRepo.ListParticipantIDs(gCtx, nil, tournamentID)
		if err != nil {
			return err
		}
		participants = ids
		return nil
	})
	g.Go(func() error {
		list, err := s.matchRepo.ListByTournament(gCtx, nil, tournamentID)
		if err != nil {
			return err
		}
		matches = list
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	tournament.ParticipantIDs = participants
	tournament.Matches = matches
	return tournament, nil
}

func (s *TournamentService) ListTournaments(ctx context.Context, status *models.TournamentStatus, limit, offset int) ([]models.Tournament, error) {
	if status != nil && !status.IsValid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidationFailed, *status)
	}
	tournaments, err := s.tournamentRepo.List(ctx, models.ListTournamentsFilter{Status: status, Limit: limit, Offset: offset})
	if err != nil {
		return nil, fmt.Errorf("failed to list tournaments: %w", err)
	}
	return tournaments, nil
}

func (s *TournamentService) UpdateTournament(ctx context.Context, actor *models.Principal, tournamentID int, input UpdateTournamentInput) (*models.Tournament, error) {
	if err := RequireRoles(actor, models.RoleAdmin); err != nil {
		return nil, err
	}
	unlock := s.locks.Lock(tournamentID)
	defer unlock()

	var updated *models.Tournament
	err := withTx(ctx, s.db, s.logger, func(tx *sqlx.Tx) error {
		t, err := s.loadWithParticipants(ctx, tx, tournamentID)
		if err != nil {
			return err
		}
		if t.Status != models.StatusRegistration {
			return fmt.Errorf("%w: tournament can only be edited during registration", ErrNotOpenForRegistration)
		}

		if input.Name != nil {
			name := strings.TrimSpace(*input.Name)
			if name == "" {
				return ErrTournamentNameRequired
			}
			t.Name = name
		}
		if input.Description != nil {
			t.Description = trimmedOrNil(input.Description)
		}
		if input.MaxParticipants != nil {
			capacity := *input.MaxParticipants
			if capacity < 0 {
				return ErrTournamentInvalidCapacity
			}
			if capacity > 0 && capacity < len(t.ParticipantIDs) {
				return fmt.Errorf("%w: %d participants already registered", ErrTournamentInvalidCapacity, len(t.ParticipantIDs))
			}
			t.MaxParticipants = capacity
		}

		if err := s.tournamentRepo.Update(ctx, tx, t); err != nil {
			return handleRepositoryError(err)
		}
		updated = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *TournamentService) DeleteTournament(ctx context.Context, actor *models.Principal, tournamentID int) error {
	if err := RequireRoles(actor, models.RoleAdmin); err != nil {
		return err
	}
	unlock := s.locks.Lock(tournamentID)
	defer unlock()

	t, err := s.tournamentRepo.GetByID(ctx, nil, tournamentID)
	if err != nil {
		return handleRepositoryError(err)
	}
	if t.Status != models.StatusRegistration && t.Status != models.StatusCancelled {
		return fmt.Errorf("%w: cannot delete a tournament in status %s", ErrTournamentInvalidStatusTransition, t.Status)
	}
	if err := s.tournamentRepo.Delete(ctx, tournamentID); err != nil {
		return handleRepositoryError(err)
	}
	s.logger.InfoContext(ctx, "tournament deleted", slog.Int("tournament_id", tournamentID))
	return nil
}

func (s *TournamentService) RegisterParticipant(ctx context.Context, tournamentID, userID int) (*models.Tournament, error) {
	if userID <= 0 {
		return nil, fmt.Errorf("%w: user id must be positive", ErrValidationFailed)
	}
	unlock := s.locks.Lock(tournamentID)
	defer unlock()

	var result *models.Tournament
	err := withTx(ctx, s.db, s.logger, func(tx *sqlx.Tx) error {
		t, err := s.loadWithParticipants(ctx, tx, tournamentID)
		if err != nil {
			return err
		}
		if t.Status != models.StatusRegistration {
			return ErrNotOpenForRegistration
		}
		if t.IsParticipant(userID) {
			return ErrAlreadyRegistered
		}
		if !t.HasCapacity() {
			return ErrTournamentFull
		}
		if err := s.tournamentRepo.AddParticipant(ctx, tx, tournamentID, userID); err != nil {
			return handleRepositoryError(err)
		}
		t.ParticipantIDs = append(t.ParticipantIDs, userID)
		result = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.broadcaster.PublishTournamentChanged(models.TournamentChanged{TournamentID: tournamentID})
	return result, nil
}

func (s *TournamentService) LeaveTournament(ctx context.Context, tournamentID, userID int) (*models.Tournament, error) {
	unlock := s.locks.Lock(tournamentID)
	defer unlock()

	var result *models.Tournament
	err := withTx(ctx, s.db, s.logger, func(tx *sqlx.Tx) error {
		t, err := s.loadWithParticipants(ctx, tx, tournamentID)
		if err != nil {
			return err
		}
		if t.Status != models.StatusRegistration {
			return ErrNotOpenForRegistration
		}
		if err := s.tournamentRepo.RemoveParticipant(ctx, tx, tournamentID, userID); err != nil {
			return handleRepositoryError(err)
		}
		remaining := make([]int, 0, len(t.ParticipantIDs))
		for _, id := range t.ParticipantIDs {
			if id != userID {
				remaining = append(remaining, id)
			}
		}
		t.ParticipantIDs = remaining
		result = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.broadcaster.PublishTournamentChanged(models.TournamentChanged{TournamentID: tournamentID})
	return result, nil
}

// StartTournament builds the bracket, creates a match for every paired slot
// and moves the tournament to InProgress. A nil seed draws a random one.
func (s *TournamentService) StartTournament(ctx context.Context, actor *models.Principal, tournamentID int, seed *int64) (*models.Tournament, error) {
	if err := RequireRoles(actor, models.RoleAdmin); err != nil {
		return nil, err
	}

	var shuffleSeed int64
	if seed != nil {
		shuffleSeed = *seed
	} else {
		generated, err := utils.NewSeed()
		if err != nil {
			return nil, err
		}
		shuffleSeed = generated
	}

	unlock := s.locks.Lock(tournamentID)
	defer unlock()

	var started *models.Tournament
	err := withTx(ctx, s.db, s.logger, func(tx *sqlx.Tx) error {
		t, err := s.loadWithParticipants(ctx, tx, tournamentID)
		if err != nil {
			return err
		}
		if t.Status != models.StatusRegistration {
			return ErrNotOpenForRegistration
		}
		if len(t.ParticipantIDs) < 2 {
			return ErrTooFewParticipants
		}

		generator, err := brackets.GeneratorFor(t.Format)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrTournamentInvalidFormat, err)
		}
		bracket, err := generator.GenerateBracket(brackets.GenerateBracketParams{
			ParticipantIDs: t.ParticipantIDs,
			Seed:           shuffleSeed,
		})
		if err != nil {
			if errors.Is(err, brackets.ErrInsufficientParticipants) {
				return ErrTooFewParticipants
			}
			return fmt.Errorf("failed to generate %s bracket for tournament %d: %w", generator.GetName(), t.ID, err)
		}

		bracket, err = s.applyByePolicy(bracket)
		if err != nil {
			return err
		}
		bracket, err = s.createReadyMatches(ctx, tx, t.ID, bracket)
		if err != nil {
			return err
		}

		startedAt := s.now()
		t.Bracket = bracket
		t.Status = models.StatusInProgress
		t.StartDate = &startedAt
		s.finishIfComplete(t)

		if err := s.tournamentRepo.Update(ctx, tx, t); err != nil {
			return handleRepositoryError(err)
		}
		started = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "tournament started",
		slog.Int("tournament_id", tournamentID),
		slog.Int("participants", len(started.ParticipantIDs)),
		slog.Int64("seed", shuffleSeed))
	s.broadcaster.PublishTournamentChanged(models.TournamentChanged{TournamentID: tournamentID})
	return started, nil
}

// CancelTournament stops a tournament and aborts its unfinished games.
// Completions that arrive afterwards are ignored.
func (s *TournamentService) CancelTournament(ctx context.Context, actor *models.Principal, tournamentID int) (*models.Tournament, error) {
	if err := RequireRoles(actor, models.RoleAdmin); err != nil {
		return nil, err
	}

	var (
		cancelled *models.Tournament
		open      []int
	)
	unlock := s.locks.Lock(tournamentID)
	err := withTx(ctx, s.db, s.logger, func(tx *sqlx.Tx) error {
		t, err := s.tournamentRepo.GetByID(ctx, tx, tournamentID)
		if err != nil {
			return handleRepositoryError(err)
		}
		if t.Status == models.StatusCancelled || !isValidStatusTransition(t.Status, models.StatusCancelled) {
			return fmt.Errorf("%w: %s -> %s", ErrTournamentInvalidStatusTransition, t.Status, models.StatusCancelled)
		}
		if err := s.tournamentRepo.UpdateStatus(ctx, tx, tournamentID, models.StatusCancelled); err != nil {
			return handleRepositoryError(err)
		}
		matches, err := s.matchRepo.ListByTournament(ctx, tx, tournamentID)
		if err != nil {
			return err
		}
		for _, m := range matches {
			if !m.Status.IsTerminal() {
				open = append(open, m.ID)
			}
		}
		t.Status = models.StatusCancelled
		cancelled = t
		return nil
	})
	unlock()
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "tournament cancelled",
		slog.Int("tournament_id", tournamentID), slog.Int("open_matches", len(open)))
	s.broadcaster.PublishTournamentChanged(models.TournamentChanged{TournamentID: tournamentID})

	// Матчи прерываются вне блокировки турнира.
	if s.aborter != nil {
		for _, matchID := range open {
			if _, err := s.aborter.AbortMatch(ctx, actor, matchID); err != nil && !errors.Is(err, ErrAlreadyCompleted) {
				s.logger.ErrorContext(ctx, "failed to abort match of cancelled tournament",
					slog.Int("tournament_id", tournamentID), slog.Int("match_id", matchID), slog.Any("error", err))
			}
		}
	}
	return cancelled, nil
}

func (s *TournamentService) GetBracket(ctx context.Context, tournamentID int) (*models.Bracket, error) {
	t, err := s.tournamentRepo.GetByID(ctx, nil, tournamentID)
	if err != nil {
		return nil, handleRepositoryError(err)
	}
	if t.Bracket == nil {
		return nil, ErrBracketNotGenerated
	}
	return t.Bracket, nil
}

// OnMatchCompleted advances the bracket after a tournament game ends. Safe to
// call repeatedly for the same match.
func (s *TournamentService) OnMatchCompleted(ctx context.Context, matchID int) error {
	match, err := s.matchRepo.GetByID(ctx, nil, matchID)
	if err != nil {
		return handleRepositoryError(err)
	}
	if match.TournamentRef == nil {
		s.logger.DebugContext(ctx, "completed match has no tournament", slog.Int("match_id", matchID))
		return nil
	}
	tournamentID := match.TournamentRef.TournamentID

	unlock := s.locks.Lock(tournamentID)
	defer unlock()

	var (
		advanced bool
		finished *models.Tournament
	)
	err = withTx(ctx, s.db, s.logger, func(tx *sqlx.Tx) error {
		t, err := s.tournamentRepo.GetByID(ctx, tx, tournamentID)
		if err != nil {
			return handleRepositoryError(err)
		}
		if t.Status != models.StatusInProgress {
			s.logger.InfoContext(ctx, "ignoring completion for inactive tournament",
				slog.Int("tournament_id", tournamentID), slog.Int("match_id", matchID), slog.String("status", string(t.Status)))
			return nil
		}
		if t.Bracket == nil {
			return fmt.Errorf("%w: tournament %d", ErrBracketNotGenerated, tournamentID)
		}

		// Перечитываем матч внутри транзакции.
		match, err := s.matchRepo.GetByID(ctx, tx, matchID)
		if err != nil {
			return handleRepositoryError(err)
		}

		bracket, changed, err := s.recordResult(ctx, tx, t, match)
		if err != nil {
			return err
		}
		if !changed {
			return nil
		}

		bracket, err = s.applyByePolicy(bracket)
		if err != nil {
			return err
		}
		bracket, err = s.createReadyMatches(ctx, tx, t.ID, bracket)
		if err != nil {
			return err
		}

		t.Bracket = bracket
		if s.finishIfComplete(t) {
			finished = t
		}
		if err := s.tournamentRepo.Update(ctx, tx, t); err != nil {
			return handleRepositoryError(err)
		}
		advanced = true
		return nil
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to advance bracket",
			slog.Int("tournament_id", tournamentID), slog.Int("match_id", matchID), slog.Any("error", err))
		return err
	}
	if !advanced {
		return nil
	}

	s.broadcaster.PublishTournamentChanged(models.TournamentChanged{TournamentID: tournamentID, MatchID: matchID})

	if finished != nil {
		s.logger.InfoContext(ctx, "tournament completed", slog.Int("tournament_id", tournamentID))
		s.archiveTournament(ctx, finished)
	}
	return nil
}

// recordResult writes the outcome of match into t's bracket. changed is
// false when the completion is stale or was already applied.
func (s *TournamentService) recordResult(ctx context.Context, tx *sqlx.Tx, t *models.Tournament, match *models.Match) (*models.Bracket, bool, error) {
	ref := match.TournamentRef
	log := s.logger.With(slog.Int("tournament_id", t.ID), slog.Int("match_id", match.ID))

	slot := t.Bracket.Slot(ref.Round, ref.MatchNumber)
	if slot == nil {
		return nil, false, fmt.Errorf("%w: round %d match %d", brackets.ErrSlotNotFound, ref.Round, ref.MatchNumber)
	}
	if slot.MatchID == nil || *slot.MatchID != match.ID {
		log.InfoContext(ctx, "completion for superseded match ignored")
		return nil, false, nil
	}
	roundRobin := t.Bracket.Format == models.FormatRoundRobin
	if slot.Decided() || (roundRobin && models.MatchStatus(slot.Status).IsTerminal()) {
		log.DebugContext(ctx, "completion already recorded")
		return nil, false, nil
	}

	status := models.SlotStatus(match.Status)
	switch match.Status {
	case models.MatchStatusWhiteWon, models.MatchStatusBlackWon:
		winnerID, _ := match.WinnerID()
		next, nextMatch, err := brackets.Advance(t.Bracket, ref.Round, ref.MatchNumber, winnerID, status)
		if err != nil {
			return nil, false, err
		}
		if nextMatch != nil {
			log.DebugContext(ctx, "next match ready", slog.Int("round", nextMatch.Round), slog.Int("match_number", nextMatch.MatchNumber))
		}
		return next, true, nil

	case models.MatchStatusDraw:
		if roundRobin {
			next, err := brackets.RecordResult(t.Bracket, ref.Round, ref.MatchNumber, status)
			return next, err == nil, err
		}
		if s.opts.DrawPolicy == DrawPolicyWhiteAdvances {
			next, _, err := brackets.Advance(t.Bracket, ref.Round, ref.MatchNumber, match.WhitePlayerID, status)
			return next, err == nil, err
		}
		return s.replayDraw(ctx, tx, t, match)

	default:
		log.WarnContext(ctx, "completion for match without a result ignored", slog.String("status", string(match.Status)))
		return nil, false, nil
	}
}

// replayDraw schedules a rematch at the same coordinates with colours swapped.
func (s *TournamentService) replayDraw(ctx context.Context, tx *sqlx.Tx, t *models.Tournament, drawn *models.Match) (*models.Bracket, bool, error) {
	ref := *drawn.TournamentRef

	latest, err := s.matchRepo.FindByBracketCoords(ctx, tx, t.ID, ref.Round, ref.MatchNumber)
	if err != nil {
		return nil, false, handleRepositoryError(err)
	}
	replay := latest
	if latest.ID == drawn.ID {
		replay = &models.Match{
			WhitePlayerID: drawn.BlackPlayerID,
			BlackPlayerID: drawn.WhitePlayerID,
			Status:        models.MatchStatusPending,
			FEN:           models.InitialFEN,
			Moves:         []string{},
			TournamentRef: &ref,
		}
		if err := s.matchRepo.Create(ctx, tx, replay); err != nil {
			return nil, false, handleRepositoryError(err)
		}
	}

	next, err := brackets.AttachMatch(t.Bracket, ref.Round, ref.MatchNumber, replay.ID)
	if err != nil {
		return nil, false, err
	}
	next, err = brackets.RecordResult(next, ref.Round, ref.MatchNumber, models.SlotStatus(models.MatchStatusDraw))
	if err != nil {
		return nil, false, err
	}
	s.logger.InfoContext(ctx, "drawn game replayed",
		slog.Int("tournament_id", t.ID), slog.Int("match_id", drawn.ID), slog.Int("replay_match_id", replay.ID))
	return next, true, nil
}

// createReadyMatches creates a match for every paired slot that has none,
// reusing one already stored at the same coordinates.
func (s *TournamentService) createReadyMatches(ctx context.Context, tx *sqlx.Tx, tournamentID int, bracket *models.Bracket) (*models.Bracket, error) {
	for _, next := range brackets.ReadySlots(bracket) {
		var matchID int

		existing, err := s.matchRepo.FindByBracketCoords(ctx, tx, tournamentID, next.Round, next.MatchNumber)
		switch {
		case err == nil:
			matchID = existing.ID
			s.logger.WarnContext(ctx, "reusing match already stored for bracket slot",
				slog.Int("tournament_id", tournamentID), slog.Int("match_id", matchID),
				slog.Int("round", next.Round), slog.Int("match_number", next.MatchNumber))
		case errors.Is(err, repositories.ErrMatchNotFound):
			m := &models.Match{
				WhitePlayerID: next.Player1ID,
				BlackPlayerID: next.Player2ID,
				Status:        models.MatchStatusPending,
				FEN:           models.InitialFEN,
				Moves:         []string{},
				TournamentRef: &models.TournamentRef{
					TournamentID: tournamentID,
					Round:        next.Round,
					MatchNumber:  next.MatchNumber,
				},
			}
			if err := s.matchRepo.Create(ctx, tx, m); err != nil {
				return nil, handleRepositoryError(err)
			}
			matchID = m.ID
		default:
			return nil, err
		}

		bracket, err = brackets.AttachMatch(bracket, next.Round, next.MatchNumber, matchID)
		if err != nil {
			return nil, err
		}
	}
	return bracket, nil
}

func (s *TournamentService) applyByePolicy(bracket *models.Bracket) (*models.Bracket, error) {
	if s.opts.ByePolicy != ByePolicyAdvance {
		return bracket, nil
	}
	return brackets.ResolveByes(bracket)
}

// finishIfComplete marks t completed when its bracket needs no more games.
func (s *TournamentService) finishIfComplete(t *models.Tournament) bool {
	if !brackets.IsComplete(t.Bracket) || !isValidStatusTransition(t.Status, models.StatusCompleted) {
		return false
	}
	endedAt := s.now()
	t.Status = models.StatusCompleted
	t.EndDate = &endedAt
	if t.Bracket.Format == models.FormatRoundRobin {
		t.WinnerID = roundRobinLeader(brackets.Standings(t.Bracket))
	} else {
		t.WinnerID = brackets.Champion(t.Bracket)
	}
	return true
}

// roundRobinLeader returns the single top scorer, or nil on a shared first
// place.
func roundRobinLeader(points map[int]int) *int {
	var (
		leader int
		best   = -1
		tied   bool
	)
	for id, p := range points {
		switch {
		case p > best:
			leader, best, tied = id, p, false
		case p == best:
			tied = true
		}
	}
	if best < 0 || tied {
		return nil
	}
	return &leader
}

func (s *TournamentService) archiveTournament(ctx context.Context, t *models.Tournament) {
	matches, err := s.matchRepo.ListByTournament(ctx, nil, t.ID)
	if err == nil {
		err = s.archiver.ArchiveTournament(ctx, t, matches)
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to archive tournament", slog.Int("tournament_id", t.ID), slog.Any("error", err))
	}
}

func (s *TournamentService) loadWithParticipants(ctx context.Context, exec repositories.SQLExecutor, tournamentID int) (*models.Tournament, error) {
	t, err := s.tournamentRepo.GetByID(ctx, exec, tournamentID)
	if err != nil {
		return nil, handleRepositoryError(err)
	}
	ids, err := s.tournamentRepo.ListParticipantIDs(ctx, exec, tournamentID)
	if err != nil {
		return nil, err
	}
	t.ParticipantIDs = ids
	return t, nil
}
