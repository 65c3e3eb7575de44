package server

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	wsWriteWait  = 10 * time.Second
	wsBufferSize = 256
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // control API binds to localhost
	},
}

// handleWebSocket streams the event feed to one client. Messages sent by the
// client are ignored.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("Failed to upgrade WebSocket", "error", err)
		return
	}
	defer conn.Close()

	id := uuid.NewString()
	feed := s.feed.Subscribe(id, wsBufferSize)
	defer s.feed.Unsubscribe(id)

	logger := s.logger.With("client", id, "remote", r.RemoteAddr)
	logger.Info("WebSocket connection established")

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					logger.Debug("WebSocket read error", "error", err)
				}
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			logger.Info("WebSocket connection closed")
			return
		case msg, ok := <-feed:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "feed closed"),
					time.Now().Add(wsWriteWait))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(msg); err != nil {
				logger.Debug("WebSocket write failed", "error", err)
				return
			}
		}
	}
}
