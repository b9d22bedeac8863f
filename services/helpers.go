package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Dosada05/chess-arena/models"
	"github.com/Dosada05/chess-arena/repositories"
	"github.com/jmoiron/sqlx"
)

// --- Общие хелперы ---

// RequireRoles passes when principal holds at least one of roles.
func RequireRoles(principal *models.Principal, roles ...models.UserRole) error {
	if principal == nil || principal.UserID <= 0 {
		return ErrAuthenticationFailed
	}
	for _, role := range roles {
		if principal.HasRole(role) {
			return nil
		}
	}
	return fmt.Errorf("%w: requires one of %v", ErrForbiddenOperation, roles)
}

func isValidStatusTransition(current, next models.TournamentStatus) bool {
	if current == next {
		return true
	}
	allowedTransitions := map[models.TournamentStatus][]models.TournamentStatus{
		models.StatusRegistration: {models.StatusInProgress, models.StatusCancelled},
		models.StatusInProgress:   {models.StatusCompleted, models.StatusCancelled},
		models.StatusCompleted:    {},
		models.StatusCancelled:    {},
	}
	for _, allowedNextStatus := range allowedTransitions[current] {
		if next == allowedNextStatus {
			return true
		}
	}
	return false
}

func trimmedOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

// handleRepositoryError переводит ошибки репозиториев в ошибки сервисов.
func handleRepositoryError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repositories.ErrMatchNotFound):
		return ErrMatchNotFound
	case errors.Is(err, repositories.ErrMatchSamePlayers):
		return ErrSamePlayers
	case errors.Is(err, repositories.ErrTournamentNotFound):
		return ErrTournamentNotFound
	case errors.Is(err, repositories.ErrAlreadyRegistered):
		return ErrAlreadyRegistered
	case errors.Is(err, repositories.ErrParticipantNotFound):
		return ErrNotRegistered
	default:
		return err
	}
}

// withTx runs fn inside a transaction and commits when fn returns nil.
func withTx(ctx context.Context, db *sqlx.DB, logger *slog.Logger, fn func(tx *sqlx.Tx) error) (txErr error) {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if txErr != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				logger.Error("rollback failed", slog.Any("error", rbErr), slog.Any("cause", txErr))
				txErr = fmt.Errorf("%w (rollback also failed: %v)", txErr, rbErr)
			}
			return
		}
		if cErr := tx.Commit(); cErr != nil {
			txErr = fmt.Errorf("failed to commit transaction: %w", cErr)
		}
	}()
	return fn(tx)
}

func loggerOrDefault(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}
