package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Dosada05/chess-arena/models"
	"github.com/jmoiron/sqlx"
)

var (
	ErrTournamentNotFound  = errors.New("tournament not found")
	ErrAlreadyRegistered   = errors.New("participant already registered")
	ErrParticipantNotFound = errors.New("participant not registered")
	ErrBracketCorrupted    = errors.New("stored bracket cannot be decoded")
)

type TournamentRepository interface {
	Create(ctx context.Context, tournament *models.Tournament) error
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Tournament, error)
	List(ctx context.Context, filter models.ListTournamentsFilter) ([]models.Tournament, error)
	Update(ctx context.Context, exec SQLExecutor, tournament *models.Tournament) error
	UpdateStatus(ctx context.Context, exec SQLExecutor, id int, status models.TournamentStatus) error
	Delete(ctx context.Context, id int) error

	AddParticipant(ctx context.Context, exec SQLExecutor, tournamentID, userID int) error
	RemoveParticipant(ctx context.Context, exec SQLExecutor, tournamentID, userID int) error
	ListParticipantIDs(ctx context.Context, exec SQLExecutor, tournamentID int) ([]int, error)
}

type sqlTournamentRepository struct {
	db *sqlx.DB
}

func NewTournamentRepository(db *sqlx.DB) TournamentRepository {
	return &sqlTournamentRepository{db: db}
}

func (r *sqlTournamentRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const tournamentColumns = `
	id, name, description, format, status, max_participants,
	bracket, winner_id, start_date, end_date, created_at`

type tournamentRow struct {
	ID              int            `db:"id"`
	Name            string         `db:"name"`
	Description     sql.NullString `db:"description"`
	Format          string         `db:"format"`
	Status          string         `db:"status"`
	MaxParticipants int            `db:"max_participants"`
	Bracket         sql.NullString `db:"bracket"`
	WinnerID        sql.NullInt64  `db:"winner_id"`
	StartDate       sql.NullTime   `db:"start_date"`
	EndDate         sql.NullTime   `db:"end_date"`
	CreatedAt       time.Time      `db:"created_at"`
}

func (row *tournamentRow) toModel() (models.Tournament, error) {
	t := models.Tournament{
		ID:              row.ID,
		Name:            row.Name,
		Format:          models.TournamentFormat(row.Format),
		Status:          models.TournamentStatus(row.Status),
		MaxParticipants: row.MaxParticipants,
		WinnerID:        intPtr(row.WinnerID),
		CreatedAt:       row.CreatedAt,
		ParticipantIDs:  []int{},
	}
	if row.Description.Valid {
		d := row.Description.String
		t.Description = &d
	}
	if row.StartDate.Valid {
		s := row.StartDate.Time
		t.StartDate = &s
	}
	if row.EndDate.Valid {
		e := row.EndDate.Time
		t.EndDate = &e
	}
	if row.Bracket.Valid && row.Bracket.String != "" {
		var b models.Bracket
		if err := json.Unmarshal([]byte(row.Bracket.String), &b); err != nil {
			return t, fmt.Errorf("%w: tournament %d: %v", ErrBracketCorrupted, row.ID, err)
		}
		t.Bracket = &b
	}
	return t, nil
}

func encodeBracket(b *models.Bracket) (sql.NullString, error) {
	if b == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(b)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to encode bracket: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func (r *sqlTournamentRepository) Create(ctx context.Context, t *models.Tournament) error {
	bracket, err := encodeBracket(t.Bracket)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	query := r.db.Rebind(`
		INSERT INTO tournaments (
			name, description, format, status, max_participants, bracket, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`)

	if err := r.db.QueryRowxContext(ctx, query,
		t.Name, t.Description, t.Format, t.Status, t.MaxParticipants, bracket, now,
	).Scan(&t.ID); err != nil {
		return fmt.Errorf("failed to create tournament: %w", err)
	}
	t.CreatedAt = now
	if t.ParticipantIDs == nil {
		t.ParticipantIDs = []int{}
	}
	return nil
}

func (r *sqlTournamentRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Tournament, error) {
	executor := r.getExecutor(exec)
	query := executor.Rebind(`SELECT ` + tournamentColumns + ` FROM tournaments WHERE id = $1`)

	var row tournamentRow
	if err := sqlx.GetContext(ctx, executor, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTournamentNotFound
		}
		return nil, fmt.Errorf("failed to get tournament %d: %w", id, err)
	}
	t, err := row.toModel()
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *sqlTournamentRepository) List(ctx context.Context, filter models.ListTournamentsFilter) ([]models.Tournament, error) {
	query := `SELECT ` + tournamentColumns + ` FROM tournaments WHERE 1=1`
	args := []interface{}{}
	argID := 1

	if filter.Status != nil {
		query += fmt.Sprintf(" AND status = $%d", argID)
		args = append(args, *filter.Status)
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

	var rows []tournamentRow
	if err := sqlx.SelectContext(ctx, r.db, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to list tournaments: %w", err)
	}

	tournaments := make([]models.Tournament, 0, len(rows))
	for i := range rows {
		t, err := rows[i].toModel()
		if err != nil {
			return nil, err
		}
		tournaments = append(tournaments, t)
	}
	return tournaments, nil
}

// Update writes every mutable column, bracket snapshot included, in one
// statement.
func (r *sqlTournamentRepository) Update(ctx context.Context, exec SQLExecutor, t *models.Tournament) error {
	executor := r.getExecutor(exec)
	bracket, err := encodeBracket(t.Bracket)
	if err != nil {
		return err
	}

	query := executor.Rebind(`
		UPDATE tournaments
		SET name = $1, description = $2, status = $3, max_participants = $4,
			bracket = $5, winner_id = $6, start_date = $7, end_date = $8
		WHERE id = $9`)

	result, err := executor.ExecContext(ctx, query,
		t.Name, t.Description, t.Status, t.MaxParticipants,
		bracket, nullInt(t.WinnerID), nullTime(t.StartDate), nullTime(t.EndDate), t.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update tournament %d: %w", t.ID, err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

func (r *sqlTournamentRepository) UpdateStatus(ctx context.Context, exec SQLExecutor, id int, status models.TournamentStatus) error {
	executor := r.getExecutor(exec)
	result, err := executor.ExecContext(ctx, executor.Rebind(`UPDATE tournaments SET status = $1 WHERE id = $2`), status, id)
	if err != nil {
		return fmt.Errorf("failed to update tournament %d status: %w", id, err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

func (r *sqlTournamentRepository) Delete(ctx context.Context, id int) error {
	result, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM tournaments WHERE id = $1`), id)
	if err != nil {
		return fmt.Errorf("failed to delete tournament %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

func (r *sqlTournamentRepository) AddParticipant(ctx context.Context, exec SQLExecutor, tournamentID, userID int) error {
	executor := r.getExecutor(exec)
	query := executor.Rebind(`
		INSERT INTO tournament_participants (tournament_id, user_id, registered_at)
		VALUES ($1, $2, $3)`)

	if _, err := executor.ExecContext(ctx, query, tournamentID, userID, time.Now().UTC()); err != nil {
		switch {
		case isUniqueViolation(err):
			return ErrAlreadyRegistered
		case isForeignKeyViolation(err):
			return ErrTournamentNotFound
		default:
			return fmt.Errorf("failed to register user %d for tournament %d: %w", userID, tournamentID, err)
		}
	}
	return nil
}

func (r *sqlTournamentRepository) RemoveParticipant(ctx context.Context, exec SQLExecutor, tournamentID, userID int) error {
	executor := r.getExecutor(exec)
	query := executor.Rebind(`DELETE FROM tournament_participants WHERE tournament_id = $1 AND user_id = $2`)
	result, err := executor.ExecContext(ctx, query, tournamentID, userID)
	if err != nil {
		return fmt.Errorf("failed to unregister user %d from tournament %d: %w", userID, tournamentID, err)
	}
	return checkAffectedRows(result, ErrParticipantNotFound)
}

// ListParticipantIDs returns ids in registration order.
func (r *sqlTournamentRepository) ListParticipantIDs(ctx context.Context, exec SQLExecutor, tournamentID int) ([]int, error) {
	executor := r.getExecutor(exec)
	query := executor.Rebind(`
		SELECT user_id FROM tournament_participants
		WHERE tournament_id = $1
		ORDER BY registered_at, user_id`)

	ids := []int{}
	if err := sqlx.SelectContext(ctx, executor, &ids, query, tournamentID); err != nil {
		return nil, fmt.Errorf("failed to list participants of tournament %d: %w", tournamentID, err)
	}
	return ids, nil
}
