package notify

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	maxFrame   = 4096

	EventConnected = "connected"
	EventJoined    = "joined"
	EventLeft      = "left"
	EventError     = "error"
)

type clientFrame struct {
	Action string `json:"action"`
	Group  string `json:"group"`
}

// Handler upgrades GET /ws to a WebSocket session attached to the hub.
// Initial groups come from ?groups=kitchen,cashier; later changes arrive as
// {"action":"join"|"leave","group":"..."} frames.
type Handler struct {
	hub      *Hub
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

func NewHandler(hub *Hub, logger *slog.Logger) *Handler {
	return &Handler{
		hub:    hub,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	id := uuid.NewString()
	conn := h.hub.Attach(id)
	for _, group := range strings.Split(r.URL.Query().Get("groups"), ",") {
		if group = strings.TrimSpace(group); group != "" {
			_ = h.hub.Join(id, group)
		}
	}
	h.logger.Info("subscriber attached", "conn_id", id, "remote", r.RemoteAddr)

	h.reply(id, EventConnected, map[string]string{"id": id})

	go h.writeLoop(ws, conn)
	h.readLoop(ws, id)

	h.hub.Detach(id)
	h.logger.Info("subscriber detached", "conn_id", id)
}

func (h *Handler) readLoop(ws *websocket.Conn, id string) {
	ws.SetReadLimit(maxFrame)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var frame clientFrame
		if err := ws.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("websocket read failed", "error", err, "conn_id", id)
			}
			return
		}

		switch frame.Action {
		case "join":
			if err := h.hub.Join(id, frame.Group); err != nil {
				h.reply(id, EventError, map[string]string{"error": err.Error()})
				continue
			}
			h.reply(id, EventJoined, map[string]string{"group": frame.Group})
		case "leave":
			h.hub.Leave(id, frame.Group)
			h.reply(id, EventLeft, map[string]string{"group": frame.Group})
		default:
			h.reply(id, EventError, map[string]string{"error": "unknown action " + frame.Action})
		}
	}
}

// writeLoop is the only writer on ws. It exits when the hub closes the
// connection's queue.
func (h *Handler) writeLoop(ws *websocket.Conn, conn *Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = ws.Close()
	}()

	for {
		select {
		case msg, ok := <-conn.Messages():
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := ws.WriteJSON(msg); err != nil {
				h.logger.Warn("websocket write failed", "error", err, "conn_id", conn.ID)
				return
			}
		case <-ticker.C:
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Handler) reply(id, event string, payload any) {
	msg, err := NewMessage(event, payload)
	if err != nil {
		return
	}
	if !h.hub.send(id, msg) {
		h.logger.Warn("failed to queue reply", "conn_id", id, "event", event)
	}
}
