package server

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"voicebridge/internal/relay"
	"voicebridge/internal/session"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleVoiceSocket upgrades the connection and runs one relay loop per
// session. The session's history and voice settings live and die with the
// connection.
func (s *Server) handleVoiceSocket(c echo.Context) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	sess := session.New()
	slog.Info("voice session opened", "session", sess.ID())

	r := relay.New(conn, s.deps.Transcriber, s.deps.Synthesizer, s.deps.Chat, sess)
	err = r.Run(c.Request().Context())

	slog.Info("voice session closed", "session", sess.ID(), "turns", sess.Len())
	return err
}
