package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Dosada05/chess-arena/models"
	"github.com/Dosada05/chess-arena/repositories"
	"github.com/Dosada05/chess-arena/rules"
	"github.com/Dosada05/chess-arena/storage"
)

// MoveRejection is the reason a move was refused. It is a result, not an
// error.
type MoveRejection string

const (
	RejectNotFound         MoveRejection = "not_found"
	RejectAlreadyCompleted MoveRejection = "already_completed"
	RejectNotAParticipant  MoveRejection = "not_a_participant"
	RejectWrongTurn        MoveRejection = "wrong_turn"
	RejectIllegalMove      MoveRejection = "illegal_move"
)

type MoveResult struct {
	Success bool          `json:"success"`
	Reason  MoveRejection `json:"reason,omitempty"`
	Detail  string        `json:"detail,omitempty"`
	Match   *models.Match `json:"match,omitempty"`
}

func rejected(reason MoveRejection, detail string) MoveResult {
	return MoveResult{Reason: reason, Detail: detail}
}

type MatchService interface {
	CreateMatch(ctx context.Context, actor *models.Principal, whiteID, blackID int) (*models.Match, error)
	GetMatch(ctx context.Context, matchID int) (*models.Match, error)
	ListMatches(ctx context.Context, limit, offset int) ([]models.Match, error)
	ListPlayerMatches(ctx context.Context, userID int) ([]models.Match, error)
	SubmitMove(ctx context.Context, matchID, playerID int, moveText string) (MoveResult, error)
	StartMatch(ctx context.Context, actor *models.Principal, matchID int) (*models.Match, error)
	AbortMatch(ctx context.Context, actor *models.Principal, matchID int) (*models.Match, error)
	DeleteMatch(ctx context.Context, actor *models.Principal, matchID int) error
}

type matchService struct {
	matchRepo repositories.MatchRepository
	engine    rules.Engine
	sink      MatchEventSink
	archiver  storage.Archiver
	locks     *keyedMutex
	logger    *slog.Logger
}

func NewMatchService(
	matchRepo repositories.MatchRepository,
	engine rules.Engine,
	sink MatchEventSink,
	archiver storage.Archiver,
	logger *slog.Logger,
) MatchService {
	if archiver == nil {
		archiver = storage.NopArchiver{}
	}
	return &matchService{
		matchRepo: matchRepo,
		engine:    engine,
		sink:      sink,
		archiver:  archiver,
		locks:     newKeyedMutex(),
		logger:    loggerOrDefault(logger),
	}
}

func (s *matchService) CreateMatch(ctx context.Context, actor *models.Principal, whiteID, blackID int) (*models.Match, error) {
	if err := RequireRoles(actor, models.RoleAdmin); err != nil {
		return nil, err
	}
	if whiteID <= 0 || blackID <= 0 {
		return nil, fmt.Errorf("%w: player ids must be positive", ErrValidationFailed)
	}
	if whiteID == blackID {
		return nil, ErrSamePlayers
	}

	match := &models.Match{
		WhitePlayerID: whiteID,
		BlackPlayerID: blackID,
		Status:        models.MatchStatusPending,
		FEN:           models.InitialFEN,
		Moves:         []string{},
	}
	if err := s.matchRepo.Create(ctx, nil, match); err != nil {
		return nil, handleRepositoryError(err)
	}
	s.logger.InfoContext(ctx, "match created",
		slog.Int("match_id", match.ID), slog.Int("white_id", whiteID), slog.Int("black_id", blackID))
	return match, nil
}

func (s *matchService) GetMatch(ctx context.Context, matchID int) (*models.Match, error) {
	match, err := s.matchRepo.GetByID(ctx, nil, matchID)
	if err != nil {
		return nil, handleRepositoryError(err)
	}
	return match, nil
}

func (s *matchService) ListMatches(ctx context.Context, limit, offset int) ([]models.Match, error) {
	matches, err := s.matchRepo.List(ctx, models.ListMatchesFilter{Limit: limit, Offset: offset})
	if err != nil {
		return nil, fmt.Errorf("failed to list matches: %w", err)
	}
	return matches, nil
}

func (s *matchService) ListPlayerMatches(ctx context.Context, userID int) ([]models.Match, error) {
	if userID <= 0 {
		return nil, fmt.Errorf("%w: user id must be positive", ErrValidationFailed)
	}
	matches, err := s.matchRepo.List(ctx, models.ListMatchesFilter{PlayerID: &userID})
	if err != nil {
		return nil, fmt.Errorf("failed to list matches of user %d: %w", userID, err)
	}
	return matches, nil
}

// SubmitMove validates and applies one move. Rejections come back in
// MoveResult; a non-nil error means storage or the engine broke.
func (s *matchService) SubmitMove(ctx context.Context, matchID, playerID int, moveText string) (MoveResult, error) {
	unlock := s.locks.Lock(matchID)
	result, archive, err := s.submitMoveLocked(ctx, matchID, playerID, moveText)
	unlock()

	if archive != nil {
		s.archiveMatch(ctx, archive)
	}
	return result, err
}

func (s *matchService) submitMoveLocked(ctx context.Context, matchID, playerID int, moveText string) (MoveResult, *models.Match, error) {
	match, err := s.matchRepo.GetByID(ctx, nil, matchID)
	if err != nil {
		if errors.Is(err, repositories.ErrMatchNotFound) {
			return rejected(RejectNotFound, fmt.Sprintf("match %d does not exist", matchID)), nil, nil
		}
		return MoveResult{}, nil, fmt.Errorf("failed to load match %d: %w", matchID, err)
	}

	if match.Status.IsTerminal() {
		return rejected(RejectAlreadyCompleted, string(match.Status)), nil, nil
	}

	color, ok := match.ColorOf(playerID)
	if !ok {
		return rejected(RejectNotAParticipant, fmt.Sprintf("user %d does not play in match %d", playerID, matchID)), nil, nil
	}

	toMove, err := s.engine.SideToMove(match.FEN)
	if err != nil {
		return MoveResult{}, nil, fmt.Errorf("stored position of match %d is unreadable: %w", matchID, err)
	}
	if toMove != color {
		return rejected(RejectWrongTurn, fmt.Sprintf("%s to move", toMove)), nil, nil
	}

	outcome, err := s.engine.ApplyMove(match.FEN, moveText)
	if err != nil {
		s.logger.DebugContext(ctx, "move rejected by rules engine",
			slog.Int("match_id", matchID), slog.String("move", moveText), slog.Any("error", err))
		return rejected(RejectIllegalMove, err.Error()), nil, nil
	}

	// Pending -> InProgress до проверки финала.
	status := match.Status
	if status == models.MatchStatusPending {
		status = models.MatchStatusInProgress
	}
	switch {
	case outcome.IsCheckmate && color == models.White:
		status = models.MatchStatusWhiteWon
	case outcome.IsCheckmate:
		status = models.MatchStatusBlackWon
	case outcome.IsDraw:
		status = models.MatchStatusDraw
	}

	match.Moves = append(match.Moves, outcome.Move)
	match.FEN = outcome.Position
	match.Status = status

	if err := s.matchRepo.Update(ctx, nil, match); err != nil {
		return MoveResult{}, nil, fmt.Errorf("failed to persist move for match %d: %w", matchID, err)
	}

	// События публикуются под блокировкой матча, чтобы сохранить порядок.
	s.sink.PublishMatchChanged(models.MatchChanged{MatchID: match.ID, Status: match.Status, Move: outcome.Move})

	var archive *models.Match
	if status.IsTerminal() {
		s.logger.InfoContext(ctx, "match finished", slog.Int("match_id", match.ID), slog.String("status", string(status)))
		if match.TournamentRef != nil {
			s.sink.PublishMatchCompleted(models.MatchCompleted{MatchID: match.ID})
		} else {
			snapshot := *match
			archive = &snapshot
		}
	}

	return MoveResult{Success: true, Match: match}, archive, nil
}

func (s *matchService) archiveMatch(ctx context.Context, match *models.Match) {
	if err := s.archiver.ArchiveMatch(ctx, match); err != nil {
		s.logger.ErrorContext(ctx, "failed to archive match", slog.Int("match_id", match.ID), slog.Any("error", err))
	}
}

func (s *matchService) StartMatch(ctx context.Context, actor *models.Principal, matchID int) (*models.Match, error) {
	if err := RequireRoles(actor, models.RoleAdmin); err != nil {
		return nil, err
	}
	unlock := s.locks.Lock(matchID)
	defer unlock()

	match, err := s.matchRepo.GetByID(ctx, nil, matchID)
	if err != nil {
		return nil, handleRepositoryError(err)
	}
	switch {
	case match.Status.IsTerminal():
		return nil, ErrAlreadyCompleted
	case match.Status != models.MatchStatusPending:
		return nil, ErrMatchNotPending
	}

	match.Status = models.MatchStatusInProgress
	if err := s.matchRepo.Update(ctx, nil, match); err != nil {
		return nil, handleRepositoryError(err)
	}
	s.sink.PublishMatchChanged(models.MatchChanged{MatchID: match.ID, Status: match.Status})
	return match, nil
}

// AbortMatch never raises MatchCompleted, so an aborted tournament game does
// not advance anybody.
func (s *matchService) AbortMatch(ctx context.Context, actor *models.Principal, matchID int) (*models.Match, error) {
	if err := RequireRoles(actor, models.RoleAdmin); err != nil {
		return nil, err
	}
	unlock := s.locks.Lock(matchID)
	defer unlock()

	match, err := s.matchRepo.GetByID(ctx, nil, matchID)
	if err != nil {
		return nil, handleRepositoryError(err)
	}
	if match.Status.IsTerminal() {
		return nil, ErrAlreadyCompleted
	}

	match.Status = models.MatchStatusAborted
	if err := s.matchRepo.Update(ctx, nil, match); err != nil {
		return nil, handleRepositoryError(err)
	}
	s.logger.InfoContext(ctx, "match aborted", slog.Int("match_id", match.ID), slog.Int("by_user_id", actor.UserID))
	s.sink.PublishMatchChanged(models.MatchChanged{MatchID: match.ID, Status: match.Status})
	return match, nil
}

func (s *matchService) DeleteMatch(ctx context.Context, actor *models.Principal, matchID int) error {
	if err := RequireRoles(actor, models.RoleAdmin); err != nil {
		return err
	}
	unlock := s.locks.Lock(matchID)
	defer unlock()

	match, err := s.matchRepo.GetByID(ctx, nil, matchID)
	if err != nil {
		return handleRepositoryError(err)
	}
	if match.TournamentRef != nil {
		return ErrMatchInUse
	}
	if err := s.matchRepo.Delete(ctx, nil, matchID); err != nil {
		return handleRepositoryError(err)
	}
	s.logger.InfoContext(ctx, "match deleted", slog.Int("match_id", matchID), slog.Int("by_user_id", actor.UserID))

	// Архив есть только у завершённых свободных матчей.
	if match.Status.IsTerminal() {
		if err := s.archiver.RemoveMatch(ctx, matchID); err != nil {
			s.logger.ErrorContext(ctx, "failed to remove match archive", slog.Int("match_id", matchID), slog.Any("error", err))
		}
	}
	return nil
}
