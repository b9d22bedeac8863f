package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/Dosada05/chess-arena/brackets"
	"github.com/Dosada05/chess-arena/middleware"
	"github.com/Dosada05/chess-arena/models"
	"github.com/Dosada05/chess-arena/services"
	"github.com/gorilla/websocket"
)

// Типы кадров от клиента.
const (
	frameJoinMatch       = "join_match"
	frameLeaveMatch      = "leave_match"
	frameJoinTournament  = "join_tournament"
	frameLeaveTournament = "leave_tournament"
	frameMove            = "move"
)

// Типы кадров от сервера. update и tournament.update рассылает Hub.
const (
	frameMatchSnapshot   = "match_snapshot"
	frameBracketSnapshot = "bracket_snapshot"
	frameMoveResult      = "move_result"
	frameError           = "error"
)

const frameTimeout = 10 * time.Second

type clientFrame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type framePayload struct {
	MatchID      int    `json:"matchId"`
	TournamentID int    `json:"tournamentId"`
	Move         string `json:"move"`
}

type matchSnapshot struct {
	ID     int                `json:"id"`
	FEN    string             `json:"fen"`
	Status models.MatchStatus `json:"status"`
	White  int                `json:"white"`
	Black  int                `json:"black"`
	Moves  []string           `json:"moves"`
}

type bracketSnapshot struct {
	TournamentID int             `json:"tournamentId"`
	Status       string          `json:"status"`
	Bracket      *models.Bracket `json:"bracket"`
}

type errorFrame struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

type WebSocketHandler struct {
	hub         *brackets.Hub
	matches     services.MatchService
	tournaments *services.TournamentService
	upgrader    websocket.Upgrader
	logger      *slog.Logger
}

// NewWebSocketHandler принимает список разрешённых Origin; пустой список
// разрешает любые (для разработки).
func NewWebSocketHandler(hub *brackets.Hub, ms services.MatchService, ts *services.TournamentService, allowedOrigins []string, logger *slog.Logger) *WebSocketHandler {
	if logger == nil {
		logger = slog.Default()
	}
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	return &WebSocketHandler{
		hub:         hub,
		matches:     ms,
		tournaments: ts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return len(allowed) == 0 || origin == "" || allowed[origin]
			},
		},
		logger: logger,
	}
}

// ServeWs обрабатывает GET /ws. Токен (если есть) приходит в ?token= и уже
// разобран middleware.
func (h *WebSocketHandler) ServeWs(w http.ResponseWriter, r *http.Request) {
	caller, _ := middleware.PrincipalFromContext(r.Context())

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// upgrader.Upgrade сам отправляет HTTP ошибку клиенту, так что здесь просто логируем.
		h.logger.Warn("websocket upgrade failed", slog.Any("error", err))
		return
	}

	observer := h.hub.NewObserver(conn)
	h.logger.Debug("websocket connected", slog.String("observer_id", observer.ID))

	go observer.WritePump()
	go observer.ReadPump(func(o *brackets.Observer, message []byte) {
		h.handleFrame(o, caller, message)
	})
}

func (h *WebSocketHandler) handleFrame(o *brackets.Observer, caller *models.Principal, message []byte) {
	var frame clientFrame
	if err := json.Unmarshal(message, &frame); err != nil {
		h.sendError(o, "bad_frame", "frame must be a JSON object with type and payload")
		return
	}
	var payload framePayload
	if len(frame.Payload) > 0 {
		if err := json.Unmarshal(frame.Payload, &payload); err != nil {
			h.sendError(o, "bad_payload", err.Error())
			return
		}
	}

	// Соединение живёт дольше запроса, поэтому контекст свой на каждый кадр.
	ctx, cancel := context.WithTimeout(context.Background(), frameTimeout)
	defer cancel()

	switch frame.Type {
	case frameJoinMatch:
		h.joinMatch(ctx, o, payload.MatchID)
	case frameLeaveMatch:
		h.hub.Leave(o.ID, brackets.MatchRoom(payload.MatchID))
	case frameJoinTournament:
		h.joinTournament(ctx, o, payload.TournamentID)
	case frameLeaveTournament:
		h.hub.Leave(o.ID, brackets.TournamentRoom(payload.TournamentID))
	case frameMove:
		h.move(ctx, o, caller, payload)
	default:
		h.sendError(o, "unknown_type", frame.Type)
	}
}

func (h *WebSocketHandler) joinMatch(ctx context.Context, o *brackets.Observer, matchID int) {
	if !h.hub.Join(o.ID, brackets.MatchRoom(matchID)) {
		return
	}
	match, err := h.matches.GetMatch(ctx, matchID)
	if err != nil {
		h.hub.Leave(o.ID, brackets.MatchRoom(matchID))
		h.sendServiceError(o, err)
		return
	}
	moves := match.Moves
	if moves == nil {
		moves = []string{}
	}
	h.hub.SendTo(o, brackets.WebSocketMessage{
		Type: frameMatchSnapshot,
		Payload: matchSnapshot{
			ID:     match.ID,
			FEN:    match.FEN,
			Status: match.Status,
			White:  match.WhitePlayerID,
			Black:  match.BlackPlayerID,
			Moves:  moves,
		},
		RoomID: brackets.MatchRoom(matchID),
	})
}

func (h *WebSocketHandler) joinTournament(ctx context.Context, o *brackets.Observer, tournamentID int) {
	room := brackets.TournamentRoom(tournamentID)
	if !h.hub.Join(o.ID, room) {
		return
	}
	tournament, err := h.tournaments.GetTournament(ctx, tournamentID)
	if err != nil {
		h.hub.Leave(o.ID, room)
		h.sendServiceError(o, err)
		return
	}
	// До старта сетки нет: подписка остаётся, снимок не отправляем.
	if tournament.Bracket == nil {
		return
	}
	h.hub.SendTo(o, brackets.WebSocketMessage{
		Type: frameBracketSnapshot,
		Payload: bracketSnapshot{
			TournamentID: tournament.ID,
			Status:       string(tournament.Status),
			Bracket:      tournament.Bracket,
		},
		RoomID: room,
	})
}

func (h *WebSocketHandler) move(ctx context.Context, o *brackets.Observer, caller *models.Principal, payload framePayload) {
	if caller == nil {
		h.sendError(o, "unauthorized", "authentication required")
		return
	}
	result, err := h.matches.SubmitMove(ctx, payload.MatchID, caller.UserID, payload.Move)
	if err != nil {
		h.logger.Error("websocket move failed",
			slog.Int("match_id", payload.MatchID), slog.String("observer_id", o.ID), slog.Any("error", err))
		h.sendError(o, "internal_error", "the server could not process the move")
		return
	}
	h.hub.SendTo(o, brackets.WebSocketMessage{Type: frameMoveResult, Payload: result})
}

func (h *WebSocketHandler) sendServiceError(o *brackets.Observer, err error) {
	switch {
	case errors.Is(err, services.ErrMatchNotFound), errors.Is(err, services.ErrTournamentNotFound):
		h.sendError(o, "not_found", err.Error())
	default:
		h.logger.Error("websocket request failed", slog.String("observer_id", o.ID), slog.Any("error", err))
		h.sendError(o, "internal_error", "the server encountered a problem")
	}
}

func (h *WebSocketHandler) sendError(o *brackets.Observer, code, detail string) {
	h.hub.SendTo(o, brackets.WebSocketMessage{Type: frameError, Payload: errorFrame{Error: code, Detail: detail}})
}
