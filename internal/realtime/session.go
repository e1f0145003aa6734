package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/chatwire/chatwire/internal/metrics"
)

const (
	// Mirrors the client expectations: server pings every pingInterval
	// and gives up on a socket that stays silent for pongWait.
	pongWait     = 60 * time.Second
	pingInterval = 25 * time.Second
	writeWait    = 10 * time.Second

	maxInboundBytes = 32 * 1024
)

// SocketHandler upgrades HTTP requests to websocket connections and runs
// one read loop plus one write pump per connection. It is the thin
// transport layer; all semantics live in the Gateway.
type SocketHandler struct {
	gateway  *Gateway
	logger   zerolog.Logger
	upgrader websocket.Upgrader
}

// NewSocketHandler creates the websocket endpoint handler.
func NewSocketHandler(gateway *Gateway, logger zerolog.Logger, allowedOrigins []string) *SocketHandler {
	allowed := make(map[string]bool, len(allowedOrigins))
	allowAll := len(allowedOrigins) == 0
	for _, o := range allowedOrigins {
		if o == "*" {
			allowAll = true
		}
		allowed[o] = true
	}

	return &SocketHandler{
		gateway: gateway,
		logger:  logger.With().Str("component", "socket").Logger(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				if allowAll {
					return true
				}
				return allowed[r.Header.Get("Origin")]
			},
		},
	}
}

// ServeHTTP handles GET /ws. The bearer credential arrives as a query
// parameter because browsers cannot set headers on websocket upgrades.
func (h *SocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	identity, err := h.gateway.Authenticate(r.Context(), r.URL.Query().Get("token"))
	if err != nil {
		metrics.HandshakeFailures.WithLabelValues("unauthenticated").Inc()
		h.logger.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("handshake rejected")
		http.Error(w, `{"error":"invalid or missing token"}`, http.StatusUnauthorized)
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		metrics.HandshakeFailures.WithLabelValues("upgrade").Inc()
		h.logger.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("websocket upgrade failed")
		return
	}

	conn := NewConn(*identity)
	rooms, err := h.gateway.Register(r.Context(), conn)
	if err != nil {
		ws.Close()
		return
	}

	conn.Deliver(Event{Type: EventReady, Data: ReadyPayload{ConnectionID: conn.ID, Rooms: rooms}})

	go h.writePump(conn, ws)
	h.readPump(conn, ws)
}

// readPump reads inbound events until the socket dies, dispatching each
// synchronously on this goroutine so a connection's events are handled in
// order. Teardown runs exactly once when the loop exits.
func (h *SocketHandler) readPump(conn *Conn, ws *websocket.Conn) {
	defer func() {
		h.gateway.Disconnect(conn)
		ws.Close()
	}()

	ws.SetReadLimit(maxInboundBytes)
	ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure) && !errors.Is(err, net.ErrClosed) {
				h.logger.Warn().Err(err).
					Str("conn_id", conn.ID.String()).
					Msg("unexpected read error")
			}
			return
		}

		var ev InboundEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			conn.Deliver(messageErrorEvent("malformed event envelope"))
			continue
		}
		h.gateway.Dispatch(context.Background(), conn, ev)
	}
}

// writePump drains the connection's event queue onto the socket and keeps
// the connection alive with periodic pings. It exits when the queue is
// closed by teardown or a write fails.
func (h *SocketHandler) writePump(conn *Conn, ws *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		ws.Close()
	}()

	for {
		select {
		case ev, ok := <-conn.Events():
			ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				ws.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := ws.WriteJSON(ev); err != nil {
				h.logger.Debug().Err(err).
					Str("conn_id", conn.ID.String()).
					Str("event", ev.Type).
					Msg("write failed; closing socket")
				return
			}

		case <-ticker.C:
			ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
