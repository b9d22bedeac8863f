package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Dosada05/chess-arena/models"
	"github.com/jmoiron/sqlx"
)

var (
	ErrMatchNotFound          = errors.New("match not found")
	ErrMatchSamePlayers       = errors.New("white and black must be different players")
	ErrMatchInvalidTournament = errors.New("invalid tournament reference")
)

type MatchRepository interface {
	Create(ctx context.Context, exec SQLExecutor, match *models.Match) error
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Match, error)
	Update(ctx context.Context, exec SQLExecutor, match *models.Match) error
	Delete(ctx context.Context, exec SQLExecutor, id int) error
	List(ctx context.Context, filter models.ListMatchesFilter) ([]models.Match, error)
	ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) ([]models.Match, error)
	FindByBracketCoords(ctx context.Context, exec SQLExecutor, tournamentID, round, matchNumber int) (*models.Match, error)
}

type sqlMatchRepository struct {
	db *sqlx.DB
}

func NewMatchRepository(db *sqlx.DB) MatchRepository {
	return &sqlMatchRepository{db: db}
}

func (r *sqlMatchRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const matchColumns = `
	id, white_player_id, black_player_id, status, fen, moves,
	tournament_id, tournament_round, tournament_match_number, created_at, updated_at`

type matchRow struct {
	ID                    int           `db:"id"`
	WhitePlayerID         int           `db:"white_player_id"`
	BlackPlayerID         int           `db:"black_player_id"`
	Status                string        `db:"status"`
	FEN                   string        `db:"fen"`
	Moves                 string        `db:"moves"`
	TournamentID          sql.NullInt64 `db:"tournament_id"`
	TournamentRound       sql.NullInt64 `db:"tournament_round"`
	TournamentMatchNumber sql.NullInt64 `db:"tournament_match_number"`
	CreatedAt             time.Time     `db:"created_at"`
	UpdatedAt             time.Time     `db:"updated_at"`
}

func (row *matchRow) toModel() models.Match {
	m := models.Match{
		ID:            row.ID,
		WhitePlayerID: row.WhitePlayerID,
		BlackPlayerID: row.BlackPlayerID,
		Status:        models.MatchStatus(row.Status),
		FEN:           row.FEN,
		Moves:         splitMoves(row.Moves),
		CreatedAt:     row.CreatedAt,
		UpdatedAt:     row.UpdatedAt,
	}
	if row.TournamentID.Valid {
		m.TournamentRef = &models.TournamentRef{
			TournamentID: int(row.TournamentID.Int64),
			Round:        int(row.TournamentRound.Int64),
			MatchNumber:  int(row.TournamentMatchNumber.Int64),
		}
	}
	return m
}

// Ходы хранятся строкой через пробел.
func splitMoves(s string) []string {
	fields := strings.Fields(s)
	if fields == nil {
		return []string{}
	}
	return fields
}

func joinMoves(moves []string) string {
	return strings.Join(moves, " ")
}

func (r *sqlMatchRepository) Create(ctx context.Context, exec SQLExecutor, m *models.Match) error {
	executor := r.getExecutor(exec)

	var tournamentID, round, number *int
	if m.TournamentRef != nil {
		tournamentID = &m.TournamentRef.TournamentID
		round = &m.TournamentRef.Round
		number = &m.TournamentRef.MatchNumber
	}

	now := time.Now().UTC()
	query := executor.Rebind(`
		INSERT INTO matches (
			white_player_id, black_player_id, status, fen, moves,
			tournament_id, tournament_round, tournament_match_number, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`)

	err := executor.QueryRowxContext(ctx, query,
		m.WhitePlayerID, m.BlackPlayerID, m.Status, m.FEN, joinMoves(m.Moves),
		nullInt(tournamentID), nullInt(round), nullInt(number), now, now,
	).Scan(&m.ID)
	if err != nil {
		return r.handleMatchError(err)
	}
	m.CreatedAt, m.UpdatedAt = now, now
	return nil
}

func (r *sqlMatchRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Match, error) {
	executor := r.getExecutor(exec)
	query := executor.Rebind(`SELECT ` + matchColumns + ` FROM matches WHERE id = $1`)

	var row matchRow
	if err := sqlx.GetContext(ctx, executor, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("failed to get match %d: %w", id, err)
	}
	m := row.toModel()
	return &m, nil
}

// Update persists the mutable part of a match: status, position and move log.
func (r *sqlMatchRepository) Update(ctx context.Context, exec SQLExecutor, m *models.Match) error {
	executor := r.getExecutor(exec)
	now := time.Now().UTC()
	query := executor.Rebind(`
		UPDATE matches
		SET status = $1, fen = $2, moves = $3, updated_at = $4
		WHERE id = $5`)

	result, err := executor.ExecContext(ctx, query, m.Status, m.FEN, joinMoves(m.Moves), now, m.ID)
	if err != nil {
		return r.handleMatchError(err)
	}
	if err := checkAffectedRows(result, ErrMatchNotFound); err != nil {
		return err
	}
	m.UpdatedAt = now
	return nil
}

func (r *sqlMatchRepository) Delete(ctx context.Context, exec SQLExecutor, id int) error {
	executor := r.getExecutor(exec)
	result, err := executor.ExecContext(ctx, executor.Rebind(`DELETE FROM matches WHERE id = $1`), id)
	if err != nil {
		return fmt.Errorf("failed to delete match %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

func (r *sqlMatchRepository) List(ctx context.Context, filter models.ListMatchesFilter) ([]models.Match, error) {
	query := `SELECT ` + matchColumns + ` FROM matches WHERE 1=1`
	args := []interface{}{}
	argID := 1

	if filter.PlayerID != nil {
		query += fmt.Sprintf(" AND (white_player_id = $%d OR black_player_id = $%d)", argID, argID+1)
		args = append(args, *filter.PlayerID, *filter.PlayerID)
		argID += 2
	}
	if filter.TournamentID != nil {
		query += fmt.Sprintf(" AND tournament_id = $%d", argID)
		args = append(args, *filter.TournamentID)
		argID++
	}

	query += " ORDER BY created_at DESC, id DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argID)
		args = append(args, filter.Limit)
		argID++
		if filter.Offset > 0 {
			query += fmt.Sprintf(" OFFSET $%d", argID)
			args = append(args, filter.Offset)
		}
	}

	return r.selectMatches(ctx, r.db, r.db.Rebind(query), args...)
}

func (r *sqlMatchRepository) ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) ([]models.Match, error) {
	executor := r.getExecutor(exec)
	query := executor.Rebind(`SELECT ` + matchColumns + `
		FROM matches
		WHERE tournament_id = $1
		ORDER BY tournament_round, tournament_match_number, id`)
	return r.selectMatches(ctx, executor, query, tournamentID)
}

// FindByBracketCoords returns the most recent match created for a bracket
// slot. A replayed slot has several; the newest one is authoritative.
func (r *sqlMatchRepository) FindByBracketCoords(ctx context.Context, exec SQLExecutor, tournamentID, round, matchNumber int) (*models.Match, error) {
	executor := r.getExecutor(exec)
	query := executor.Rebind(`SELECT ` + matchColumns + `
		FROM matches
		WHERE tournament_id = $1 AND tournament_round = $2 AND tournament_match_number = $3
		ORDER BY id DESC
		LIMIT 1`)

	var row matchRow
	if err := sqlx.GetContext(ctx, executor, &row, query, tournamentID, round, matchNumber); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("failed to find match at tournament %d round %d match %d: %w", tournamentID, round, matchNumber, err)
	}
	m := row.toModel()
	return &m, nil
}

func (r *sqlMatchRepository) selectMatches(ctx context.Context, q sqlx.QueryerContext, query string, args ...interface{}) ([]models.Match, error) {
	var rows []matchRow
	if err := sqlx.SelectContext(ctx, q, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list matches: %w", err)
	}
	matches := make([]models.Match, 0, len(rows))
	for i := range rows {
		matches = append(matches, rows[i].toModel())
	}
	return matches, nil
}

func (r *sqlMatchRepository) handleMatchError(err error) error {
	switch {
	case err == nil:
		return nil
	case isCheckViolation(err):
		return ErrMatchSamePlayers
	case isForeignKeyViolation(err):
		return ErrMatchInvalidTournament
	default:
		return fmt.Errorf("match query failed: %w", err)
	}
}
