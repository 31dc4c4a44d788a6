// internal/gateway/codes.go
package gateway

import (
	"context"
	"errors"

	"github.com/coder/websocket"
	"github.com/jason-s-yu/uno/internal/room"
)

// Application close codes sent when the gateway ends a connection.
const (
	CodeBadSubprotocol websocket.StatusCode = 3000 // client did not speak the uno subprotocol
	CodeBadToken       websocket.StatusCode = 3001 // seat token missing, invalid or for another seat
	CodeNameTaken      websocket.StatusCode = 3002 // another live connection holds the name
	CodeRoomNotFound   websocket.StatusCode = 3003
	CodeRoomClosed     websocket.StatusCode = 3004 // room closed or draining
	CodeSuperseded     websocket.StatusCode = 3005 // the same player connected again elsewhere
	CodeSlowConsumer   websocket.StatusCode = 3006 // client fell too far behind
	CodeBadName        websocket.StatusCode = 3007
)

var (
	ErrTransportClosed = errors.New("transport closed")
	ErrBadToken        = errors.New("invalid seat token")
)

// closeStatus picks the close code and reason for the error that ended a
// connection.
func closeStatus(cause error) (websocket.StatusCode, string) {
	switch {
	case cause == nil, errors.Is(cause, room.ErrSessionLeft), errors.Is(cause, ErrTransportClosed):
		return websocket.StatusNormalClosure, "bye"
	case errors.Is(cause, room.ErrRoomClosing):
		return CodeRoomClosed, "room closed"
	case errors.Is(cause, room.ErrSuperseded):
		return CodeSuperseded, "connected from another client"
	case errors.Is(cause, room.ErrSlowConsumer):
		return CodeSlowConsumer, "too slow to keep up"
	case errors.Is(cause, room.ErrNameTaken):
		return CodeNameTaken, "name already taken"
	case errors.Is(cause, room.ErrNotFound):
		return CodeRoomNotFound, "room does not exist"
	case errors.Is(cause, room.ErrInvalidName):
		return CodeBadName, "invalid name"
	case errors.Is(cause, ErrBadToken):
		return CodeBadToken, "invalid seat token"
	case errors.Is(cause, context.Canceled), errors.Is(cause, context.DeadlineExceeded):
		return websocket.StatusGoingAway, "server shutting down"
	}
	return websocket.StatusInternalError, "internal error"
}
