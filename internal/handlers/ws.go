// internal/handlers/ws.go
package handlers

import (
	"errors"
	"net/http"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/jason-s-yu/uno/internal/gateway"
	"github.com/jason-s-yu/uno/internal/room"
	"github.com/sirupsen/logrus"
)

// playerSocket upgrades to a websocket speaking the uno subprotocol and hands
// the connection to the gateway until it ends.
func (s *Server) playerSocket(w http.ResponseWriter, r *http.Request) {
	roomName, player := chi.URLParam(r, "room"), chi.URLParam(r, "player")
	log := s.log.WithFields(logrus.Fields{"room": roomName, "player": player, "remote": r.RemoteAddr})

	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols:   []string{gateway.Subprotocol},
		OriginPatterns: originPatterns(s.origins),
	})
	if err != nil {
		log.WithError(err).Warn("websocket accept error")
		return
	}

	if c.Subprotocol() != gateway.Subprotocol {
		log.WithField("subprotocol", c.Subprotocol()).Warn("client connected with invalid subprotocol")
		c.Close(gateway.CodeBadSubprotocol, "client must use the uno subprotocol")
		return
	}

	err = s.gw.Connect(r.Context(), roomName, player, seatToken(r), gateway.NewWebSocketTransport(c, s.readLimit))
	if err != nil && !errors.Is(err, room.ErrRejected) {
		log.WithError(err).Error("gateway error")
	}
}
