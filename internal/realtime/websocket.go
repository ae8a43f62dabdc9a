package realtime

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/conclave-mcp/orchestrator/pkg/logger"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

const writeTimeout = 10 * time.Second

// Handler serves WS /ws/{channel}, bridging a Hub subscription onto a
// gorilla/websocket connection's write pump (grounded on the read/write
// pump split used throughout the retrieval pack's WebSocket servers).
type Handler struct {
	hub *Hub
	log *logger.Logger
}

// NewHandler returns an http.Handler for WS /ws/{channel}.
func NewHandler(hub *Hub, log *logger.Logger) *Handler {
	return &Handler{hub: hub, log: log}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	channel := mux.Vars(r)["channel"]
	switch channel {
	case ChannelTasks, ChannelAgents, ChannelContext, ChannelSecurity, ChannelRAG:
	default:
		http.Error(w, "unknown channel", http.StatusNotFound)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithField("error", err).Warn("websocket upgrade failed")
		return
	}

	sub := h.hub.Subscribe(channel)
	defer h.hub.Unsubscribe(sub)

	go h.discardInbound(conn)
	h.writePump(conn, sub)
}

// discardInbound drains any client-sent frames so the connection's read
// deadline machinery notices a closed socket; subscribers are read-only.
func (h *Handler) discardInbound(conn *websocket.Conn) {
	defer conn.Close()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Handler) writePump(conn *websocket.Conn, sub *Subscriber) {
	defer conn.Close()
	for event := range sub.Events() {
		payload, err := json.Marshal(event)
		if err != nil {
			continue
		}
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return
		}
	}
}
