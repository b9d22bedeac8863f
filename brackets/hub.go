package brackets

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/Dosada05/chess-arena/models"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 256
)

const (
	MessageMatchUpdate      = "update"
	MessageTournamentUpdate = "tournament.update"
)

type WebSocketMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
	RoomID  string      `json:"room_id,omitempty"`
}

func MatchRoom(matchID int) string {
	return "match:" + strconv.Itoa(matchID)
}

func TournamentRoom(tournamentID int) string {
	return "tournament:" + strconv.Itoa(tournamentID)
}

// Observer is one connected client. It may sit in any number of rooms.
type Observer struct {
	ID   string
	Send chan []byte

	hub    *Hub
	conn   *websocket.Conn
	rooms  map[string]bool
	closed bool
}

// Hub fans match and tournament updates out to the observers joined to the
// matching room. Delivery is best effort: a full send buffer drops the
// message for that observer only.
type Hub struct {
	observers  map[string]*Observer
	rooms      map[string]map[*Observer]bool
	unregister chan *Observer
	mu         sync.RWMutex
	logger     *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		observers:  make(map[string]*Observer),
		rooms:      make(map[string]map[*Observer]bool),
		unregister: make(chan *Observer, 64),
		logger:     logger,
	}
}

// Run processes disconnects until ctx is done, then closes every observer.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case o := <-h.unregister:
			h.Unregister(o)
		case <-ctx.Done():
			h.closeAll()
			return
		}
	}
}

// NewObserver registers an observer backed by conn. conn may be nil for
// in-process observers.
func (h *Hub) NewObserver(conn *websocket.Conn) *Observer {
	o := &Observer{
		ID:    uuid.NewString(),
		Send:  make(chan []byte, sendBuffer),
		hub:   h,
		conn:  conn,
		rooms: make(map[string]bool),
	}

	h.mu.Lock()
	h.observers[o.ID] = o
	h.mu.Unlock()

	h.logger.Debug("observer registered", slog.String("observer_id", o.ID))
	return o
}

// Join is idempotent. It reports false if the observer is unknown.
func (h *Hub) Join(observerID, room string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	o, ok := h.observers[observerID]
	if !ok || o.closed {
		return false
	}
	if _, ok := h.rooms[room]; !ok {
		h.rooms[room] = make(map[*Observer]bool)
	}
	h.rooms[room][o] = true
	o.rooms[room] = true
	return true
}

// Leave is idempotent.
func (h *Hub) Leave(observerID, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	o, ok := h.observers[observerID]
	if !ok {
		return
	}
	h.removeFromRoom(o, room)
}

// Unregister drops o from every room and closes its send channel.
func (h *Hub) Unregister(o *Observer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dropLocked(o)
}

func (h *Hub) dropLocked(o *Observer) {
	if o.closed {
		return
	}
	for room := range o.rooms {
		h.removeFromRoom(o, room)
	}
	delete(h.observers, o.ID)
	o.closed = true
	close(o.Send)
	h.logger.Debug("observer unregistered", slog.String("observer_id", o.ID))
}

func (h *Hub) removeFromRoom(o *Observer, room string) {
	delete(o.rooms, room)
	members, ok := h.rooms[room]
	if !ok {
		return
	}
	delete(members, o)
	if len(members) == 0 {
		delete(h.rooms, room)
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, o := range h.observers {
		h.dropLocked(o)
	}
	h.logger.Info("websocket hub stopped")
}

// RoomSize is the number of observers currently joined to room.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

func (h *Hub) PublishMatchChanged(evt models.MatchChanged) {
	h.BroadcastToRoom(MatchRoom(evt.MatchID), WebSocketMessage{Type: MessageMatchUpdate, Payload: evt})
}

func (h *Hub) PublishTournamentChanged(evt models.TournamentChanged) {
	h.BroadcastToRoom(TournamentRoom(evt.TournamentID), WebSocketMessage{Type: MessageTournamentUpdate, Payload: evt})
}

// BroadcastToRoom отправляет сообщение всем наблюдателям комнаты.
func (h *Hub) BroadcastToRoom(room string, message WebSocketMessage) {
	message.RoomID = room
	data, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("marshal broadcast", slog.String("room", room), slog.Any("error", err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for o := range h.rooms[room] {
		h.deliver(o, data)
	}
}

// SendTo delivers a message to one observer.
func (h *Hub) SendTo(o *Observer, message WebSocketMessage) {
	data, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("marshal direct message", slog.String("observer_id", o.ID), slog.Any("error", err))
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	h.deliver(o, data)
}

// deliver must be called with h.mu held.
func (h *Hub) deliver(o *Observer, data []byte) {
	if o.closed {
		return
	}
	select {
	case o.Send <- data:
	default:
		h.logger.Warn("observer send buffer full, dropping message", slog.String("observer_id", o.ID))
	}
}

// ReadPump hands every inbound frame to handle until the peer goes away, then
// queues the observer for removal.
func (o *Observer) ReadPump(handle func(o *Observer, message []byte)) {
	defer func() {
		select {
		case o.hub.unregister <- o:
		default:
			o.hub.Unregister(o)
		}
		o.conn.Close()
	}()
	o.conn.SetReadLimit(maxMessageSize)
	o.conn.SetReadDeadline(time.Now().Add(pongWait))
	o.conn.SetPongHandler(func(string) error { o.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })

	for {
		_, message, err := o.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				o.hub.logger.Warn("websocket read failed", slog.String("observer_id", o.ID), slog.Any("error", err))
			}
			return
		}
		handle(o, message)
	}
}

func (o *Observer) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		o.conn.Close()
	}()
	for {
		select {
		case message, ok := <-o.Send:
			o.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				o.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			// Один кадр на сообщение: клиенты парсят каждый кадр как JSON.
			if err := o.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				o.hub.logger.Debug("websocket write failed", slog.String("observer_id", o.ID), slog.Any("error", err))
				return
			}
		case <-ticker.C:
			o.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := o.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
