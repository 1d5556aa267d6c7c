package pairing

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lewisedginton/whatsapp_session_manager/pkg/logger"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
)

// ServeWS upgrades the request and streams the session's pairing updates as
// JSON text frames until the client goes away. The stream ends after a
// paired update.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, sessionID string) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     h.checkOrigin,
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response.
		h.log.Debug("QR websocket upgrade failed", logger.SessionIDField(sessionID), logger.ErrorField(err))
		return
	}
	defer func() { _ = conn.Close() }()

	updates, unsubscribe := h.Subscribe(sessionID)
	defer unsubscribe()

	gone := make(chan struct{})
	go func() {
		defer close(gone)
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(wsPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-gone:
			return
		case u, ok := <-updates:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(u); err != nil {
				return
			}
			if u.Paired {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "paired"),
					time.Now().Add(wsWriteWait))
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return
			}
		}
	}
}

// checkOrigin allows non-browser clients and the configured origins.
func (h *Hub) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, a := range h.allowedOrigins {
		if a == "*" || a == origin {
			return true
		}
	}
	return false
}
