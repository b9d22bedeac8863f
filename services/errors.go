package services

import "errors"

// Общие ошибки, используемые в разных сервисах и маппинге HTTP.
var (
	ErrValidationFailed = errors.New("validation failed")

	// Ошибки аутентификации и авторизации
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrForbiddenOperation   = errors.New("operation not allowed for the current user")

	// Матчи
	ErrMatchNotFound    = errors.New("match not found")
	ErrSamePlayers      = errors.New("white and black must be different players")
	ErrAlreadyCompleted = errors.New("match is already completed")
	ErrMatchNotPending  = errors.New("match is not pending")
	ErrMatchInUse       = errors.New("match belongs to a tournament bracket")

	// Турниры
	ErrTournamentNotFound                = errors.New("tournament not found")
	ErrNotOpenForRegistration            = errors.New("tournament registration is not open")
	ErrTournamentFull                    = errors.New("tournament registration is full")
	ErrAlreadyRegistered                 = errors.New("user is already registered for this tournament")
	ErrNotRegistered                     = errors.New("user is not registered for this tournament")
	ErrTooFewParticipants                = errors.New("at least two participants are required to start")
	ErrTournamentNameRequired            = errors.New("tournament name is required")
	ErrTournamentInvalidCapacity         = errors.New("tournament max participants must not be negative")
	ErrTournamentInvalidFormat           = errors.New("unsupported tournament format")
	ErrTournamentInvalidStatusTransition = errors.New("invalid tournament status transition")
	ErrBracketNotGenerated               = errors.New("tournament bracket has not been generated yet")
)
