package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/Dosada05/chess-arena/middleware"
	"github.com/Dosada05/chess-arena/models"
	"github.com/Dosada05/chess-arena/services" // Импортируем для маппинга ошибок сервисов
	"github.com/Dosada05/chess-arena/utils"
	"github.com/go-chi/chi/v5"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

type jsonResponse map[string]interface{}

func readJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	maxBytes := 1_048_576 // 1MB
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxBytes))

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	err := dec.Decode(dst)
	if err != nil {
		var syntaxError *json.SyntaxError
		var unmarshalTypeError *json.UnmarshalTypeError
		var maxBytesError *http.MaxBytesError

		switch {
		case errors.As(err, &syntaxError):
			return fmt.Errorf("body contains badly-formed JSON (at character %d)", syntaxError.Offset)
		case errors.Is(err, io.ErrUnexpectedEOF):
			return errors.New("body contains badly-formed JSON")
		case errors.As(err, &unmarshalTypeError):
			if unmarshalTypeError.Field != "" {
				return fmt.Errorf("body contains incorrect JSON type for field %q", unmarshalTypeError.Field)
			}
			return fmt.Errorf("body contains incorrect JSON type (at character %d)", unmarshalTypeError.Offset)
		case errors.Is(err, io.EOF):
			return errors.New("body must not be empty")
		case strings.HasPrefix(err.Error(), "json: unknown field "):
			fieldName := strings.TrimPrefix(err.Error(), "json: unknown field ")
			return fmt.Errorf("body contains unknown key %s", fieldName)
		case errors.As(err, &maxBytesError):
			return fmt.Errorf("body must not be larger than %d bytes", maxBytes)
		default:
			return err
		}
	}

	err = dec.Decode(&struct{}{})
	if !errors.Is(err, io.EOF) {
		return errors.New("body must only contain a single JSON value")
	}

	return nil
}

// readOptionalJSON accepts an empty body.
func readOptionalJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	if r.ContentLength == 0 {
		return nil
	}
	return readJSON(w, r, dst)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}, headers http.Header) error {
	js, err := json.MarshalIndent(data, "", "\t")
	if err != nil {
		return err
	}
	js = append(js, '\n')

	for key, value := range headers {
		w.Header()[key] = value
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, err = w.Write(js)
	return err
}

func errorResponse(w http.ResponseWriter, r *http.Request, status int, message interface{}) {
	env := jsonResponse{"error": message}
	if err := writeJSON(w, status, env, nil); err != nil {
		slog.ErrorContext(r.Context(), "failed to write error response", slog.Any("error", err))
		w.WriteHeader(http.StatusInternalServerError)
	}
}

func serverErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	slog.ErrorContext(r.Context(), "internal server error",
		slog.String("method", r.Method), slog.String("path", r.URL.Path), slog.Any("error", err))
	message := "the server encountered a problem and could not process your request"
	errorResponse(w, r, http.StatusInternalServerError, message)
}

func badRequestResponse(w http.ResponseWriter, r *http.Request, err error) {
	errorResponse(w, r, http.StatusBadRequest, err.Error())
}

func notFoundResponse(w http.ResponseWriter, r *http.Request, err error) {
	errorResponse(w, r, http.StatusNotFound, err.Error())
}

func conflictResponse(w http.ResponseWriter, r *http.Request, err error) {
	errorResponse(w, r, http.StatusConflict, err.Error())
}

func unauthorizedResponse(w http.ResponseWriter, r *http.Request, message string) {
	errorResponse(w, r, http.StatusUnauthorized, message)
}

func forbiddenResponse(w http.ResponseWriter, r *http.Request, err error) {
	errorResponse(w, r, http.StatusForbidden, err.Error())
}

// moveRejectedResponse отдаёт отказ в ходе с причиной: 404 для
// несуществующего матча, 422 для остальных.
func moveRejectedResponse(w http.ResponseWriter, r *http.Request, result services.MoveResult) {
	status := http.StatusUnprocessableEntity
	if result.Reason == services.RejectNotFound {
		status = http.StatusNotFound
	}
	body := jsonResponse{"error": result.Reason, "detail": result.Detail}
	if err := writeJSON(w, status, body, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// mapServiceErrorToHTTP преобразует ошибки сервисного слоя в HTTP-ответы
func mapServiceErrorToHTTP(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, services.ErrMatchNotFound),
		errors.Is(err, services.ErrTournamentNotFound),
		errors.Is(err, services.ErrNotRegistered),
		errors.Is(err, services.ErrBracketNotGenerated):
		notFoundResponse(w, r, err)

	// Невалидные данные
	case errors.Is(err, services.ErrValidationFailed),
		errors.Is(err, services.ErrSamePlayers),
		errors.Is(err, services.ErrTournamentNameRequired),
		errors.Is(err, services.ErrTournamentInvalidCapacity),
		errors.Is(err, services.ErrTournamentInvalidFormat):
		badRequestResponse(w, r, err)

	case errors.Is(err, services.ErrAuthenticationFailed):
		unauthorizedResponse(w, r, err.Error())
	case errors.Is(err, services.ErrForbiddenOperation),
		errors.Is(err, services.ErrNotOpenForRegistration):
		forbiddenResponse(w, r, err)

	// Конфликты состояния
	case errors.Is(err, services.ErrAlreadyCompleted),
		errors.Is(err, services.ErrMatchNotPending),
		errors.Is(err, services.ErrMatchInUse),
		errors.Is(err, services.ErrTournamentFull),
		errors.Is(err, services.ErrAlreadyRegistered),
		errors.Is(err, services.ErrTooFewParticipants),
		errors.Is(err, services.ErrTournamentInvalidStatusTransition):
		conflictResponse(w, r, err)

	default:
		serverErrorResponse(w, r, err)
	}
}

func getIDFromURL(r *http.Request, paramName string) (int, error) {
	idStr := chi.URLParam(r, paramName)
	if idStr == "" {
		return 0, fmt.Errorf("missing %s in URL path", paramName)
	}
	id, err := utils.ParsePositiveInt(idStr)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", paramName, err)
	}
	return id, nil
}

// pagination reads ?limit= and ?offset=.
func pagination(r *http.Request) (limit, offset int, err error) {
	query := r.URL.Query()
	limit = defaultPageLimit
	if limitStr := query.Get("limit"); limitStr != "" {
		limit, err = utils.ParsePositiveInt(limitStr)
		if err != nil {
			return 0, 0, errors.New("invalid limit query parameter")
		}
		if limit > maxPageLimit {
			limit = maxPageLimit
		}
	}
	if offsetStr := query.Get("offset"); offsetStr != "" {
		offset, err = strconv.Atoi(offsetStr)
		if err != nil || offset < 0 {
			return 0, 0, errors.New("invalid offset query parameter")
		}
	}
	return limit, offset, nil
}

// principal returns the authenticated caller or writes 401.
func principal(w http.ResponseWriter, r *http.Request) (*models.Principal, bool) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		unauthorizedResponse(w, r, "authentication required")
		return nil, false
	}
	return p, true
}
