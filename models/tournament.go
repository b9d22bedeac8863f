package models

import "time"

// TournamentStatus представляет статусы турнира, соответствующие значениям в БД.
type TournamentStatus string

const (
	StatusRegistration TournamentStatus = "registration"
	StatusInProgress   TournamentStatus = "in_progress"
	StatusCompleted    TournamentStatus = "completed"
	StatusCancelled    TournamentStatus = "cancelled"
)

func (s TournamentStatus) IsValid() bool {
	switch s {
	case StatusRegistration, StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	default:
		return false
	}
}

type TournamentFormat string

const (
	FormatSingleElimination TournamentFormat = "single_elimination"
	FormatRoundRobin        TournamentFormat = "round_robin"
)

func (f TournamentFormat) IsValid() bool {
	return f == FormatSingleElimination || f == FormatRoundRobin
}

// Tournament представляет турнир.
type Tournament struct {
	ID              int              `json:"id" db:"id"`
	Name            string           `json:"name" db:"name"`
	Description     *string          `json:"description,omitempty" db:"description"`
	Format          TournamentFormat `json:"format" db:"format"`
	Status          TournamentStatus `json:"status" db:"status"`
	MaxParticipants int              `json:"max_participants" db:"max_participants"`
	WinnerID        *int             `json:"winner_id,omitempty" db:"winner_id"`
	StartDate       *time.Time       `json:"start_date,omitempty" db:"start_date"`
	EndDate         *time.Time       `json:"end_date,omitempty" db:"end_date"`
	CreatedAt       time.Time        `json:"created_at" db:"created_at"`

	// Не мапятся напрямую, заполняются репозиторием или сервисом
	Bracket        *Bracket `json:"bracket,omitempty" db:"-"`
	ParticipantIDs []int    `json:"participant_ids" db:"-"`
	Matches        []Match  `json:"matches,omitempty" db:"-"`
}

// HasCapacity is false only when a positive cap is set and already reached.
func (t *Tournament) HasCapacity() bool {
	return t.MaxParticipants <= 0 || len(t.ParticipantIDs) < t.MaxParticipants
}

func (t *Tournament) IsParticipant(userID int) bool {
	for _, id := range t.ParticipantIDs {
		if id == userID {
			return true
		}
	}
	return false
}

type ListTournamentsFilter struct {
	Status *TournamentStatus
	Limit  int
	Offset int
}
