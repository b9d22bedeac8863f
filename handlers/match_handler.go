package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/Dosada05/chess-arena/models"
	"github.com/Dosada05/chess-arena/services"
)

type MatchHandler struct {
	matchService services.MatchService
}

func NewMatchHandler(ms services.MatchService) *MatchHandler {
	return &MatchHandler{matchService: ms}
}

type createMatchRequest struct {
	WhiteID int `json:"whiteId"`
	BlackID int `json:"blackId"`
}

type matchTransition func(ctx context.Context, actor *models.Principal, matchID int) (*models.Match, error)

type submitMoveRequest struct {
	Move string `json:"move"`
}

// ListHandler обрабатывает GET /matches
func (h *MatchHandler) ListHandler(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := pagination(r)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	matches, err := h.matchService.ListMatches(r.Context(), limit, offset)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"matches": matches}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// GetByIDHandler обрабатывает GET /matches/{matchID}
func (h *MatchHandler) GetByIDHandler(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	match, err := h.matchService.GetMatch(r.Context(), id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"match": match}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ListPlayerMatchesHandler обрабатывает GET /users/{userID}/matches
func (h *MatchHandler) ListPlayerMatchesHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := getIDFromURL(r, "userID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	matches, err := h.matchService.ListPlayerMatches(r.Context(), userID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"matches": matches}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// SubmitMoveHandler обрабатывает POST /matches/{matchID}/moves.
// Отказ в ходе это 422, а не ошибка сервера.
func (h *MatchHandler) SubmitMoveHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := principal(w, r)
	if !ok {
		return
	}
	id, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input submitMoveRequest
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	input.Move = strings.TrimSpace(input.Move)
	if input.Move == "" {
		badRequestResponse(w, r, errors.New("move is required"))
		return
	}

	result, err := h.matchService.SubmitMove(r.Context(), id, caller.UserID, input.Move)
	if err != nil {
		serverErrorResponse(w, r, err)
		return
	}
	if !result.Success {
		moveRejectedResponse(w, r, result)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"match": result.Match}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// CreateHandler обрабатывает POST /admin/matches
func (h *MatchHandler) CreateHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := principal(w, r)
	if !ok {
		return
	}

	var input createMatchRequest
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	match, err := h.matchService.CreateMatch(r.Context(), caller, input.WhiteID, input.BlackID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"match": match}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *MatchHandler) StartHandler(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.matchService.StartMatch)
}

func (h *MatchHandler) AbortHandler(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.matchService.AbortMatch)
}

func (h *MatchHandler) transition(w http.ResponseWriter, r *http.Request, apply matchTransition) {
	caller, ok := principal(w, r)
	if !ok {
		return
	}
	id, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	match, err := apply(r.Context(), caller, id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"match": match}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// DeleteHandler обрабатывает DELETE /admin/matches/{matchID}
func (h *MatchHandler) DeleteHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := principal(w, r)
	if !ok {
		return
	}
	id, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := h.matchService.DeleteMatch(r.Context(), caller, id); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
