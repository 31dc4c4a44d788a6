// internal/gateway/gateway.go
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jason-s-yu/uno/internal/room"
	"github.com/sirupsen/logrus"
)

// Control messages handled by the gateway itself. Any other message type is
// passed to the room as a game action.
const (
	MsgStart = "start"
	MsgLeave = "leave"
	MsgPing  = "ping"
	MsgSync  = "sync"
)

// Inbound is a client message.
type Inbound struct {
	Type  string `json:"type"`
	Card  int    `json:"card,omitempty"`
	Color string `json:"color,omitempty"`
	Turn  uint64 `json:"turn"`
}

// SeatVerifier checks the token a player received when they were seated.
type SeatVerifier interface {
	VerifySeat(token string) (roomName, player string, err error)
}

// Gateway wires transports to room sessions.
type Gateway struct {
	reg          *room.Registry
	verifier     SeatVerifier
	requireToken bool
	pingInterval time.Duration
	writeTimeout time.Duration
	log          logrus.FieldLogger
}

type Option func(*Gateway)

// WithSeatVerifier checks seat tokens on connect. With required set, a
// missing token is rejected too.
func WithSeatVerifier(v SeatVerifier, required bool) Option {
	return func(g *Gateway) {
		g.verifier = v
		g.requireToken = required
	}
}

func WithPingInterval(d time.Duration) Option {
	return func(g *Gateway) { g.pingInterval = d }
}

func WithWriteTimeout(d time.Duration) Option {
	return func(g *Gateway) { g.writeTimeout = d }
}

func New(reg *room.Registry, logger logrus.FieldLogger, opts ...Option) *Gateway {
	g := &Gateway{
		reg:          reg,
		pingInterval: 30 * time.Second,
		writeTimeout: 5 * time.Second,
		log:          logger.WithField("component", "gateway"),
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Connect seats player in roomName and pumps messages between t and the
// session until either side ends. Refused connections return an error
// wrapping room.ErrRejected after closing t with a matching code.
func (g *Gateway) Connect(ctx context.Context, roomName, player, token string, t Transport) error {
	log := g.log.WithFields(logrus.Fields{"room": roomName, "player": player})

	sess, err := g.admit(roomName, player, token)
	if err != nil {
		code, reason := closeStatus(err)
		_ = t.Close(code, reason)
		log.WithError(err).Info("connection rejected")
		return fmt.Errorf("%w: %w", room.ErrRejected, err)
	}
	log = log.WithField("session", sess.ID())
	log.Info("player connected")

	pumpCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	stop := context.AfterFunc(sess.Context(), func() {
		cancel(context.Cause(sess.Context()))
	})
	defer stop()

	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		cancel(g.readPump(ctx, sess, t, log))
	}()

	g.writePump(pumpCtx, cancel, sess, t, log)

	cause := context.Cause(pumpCtx)
	code, reason := closeStatus(cause)
	_ = t.Close(code, reason)
	<-readDone

	sess.OnDisconnect()
	log.WithField("cause", cause).Info("player disconnected")
	return nil
}

func (g *Gateway) admit(roomName, player, token string) (*room.PlayerSession, error) {
	r, err := g.reg.GetRoom(roomName)
	if err != nil {
		return nil, err
	}
	if err := g.checkSeat(roomName, player, token); err != nil {
		return nil, err
	}
	sess, err := r.Join(player)
	if err != nil {
		return nil, err
	}
	if err := sess.Attach(); err != nil {
		return nil, err
	}
	return sess, nil
}

func (g *Gateway) checkSeat(roomName, player, token string) error {
	if g.verifier == nil {
		return nil
	}
	if token == "" {
		if g.requireToken {
			return fmt.Errorf("%w: missing", ErrBadToken)
		}
		return nil
	}
	tokRoom, tokPlayer, err := g.verifier.VerifySeat(token)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBadToken, err)
	}
	if tokRoom != roomName || tokPlayer != player {
		return fmt.Errorf("%w: issued for %s/%s", ErrBadToken, tokRoom, tokPlayer)
	}
	return nil
}

// handle dispatches one inbound message. Problems are reported to the sender
// only; the connection stays open.
func (g *Gateway) handle(sess *room.PlayerSession, raw []byte, log logrus.FieldLogger) {
	var msg Inbound
	if err := json.Unmarshal(raw, &msg); err != nil || msg.Type == "" {
		log.WithError(err).Debug("malformed message")
		sendError(sess, "malformed", "message must be a JSON object with a type")
		return
	}

	var err error
	switch msg.Type {
	case MsgPing:
		sess.Send(room.Event{Type: room.EventPong})
	case MsgSync:
		sess.Resync()
	case MsgLeave:
		sess.Leave()
	case MsgStart:
		err = sess.Start()
	default:
		_, err = sess.Apply(room.Action{Type: msg.Type, Card: msg.Card, Color: msg.Color, Turn: msg.Turn})
	}
	if err == nil {
		return
	}

	log.WithError(err).WithField("type", msg.Type).Debug("message refused")
	switch {
	case errors.Is(err, room.ErrRoomClosing):
		sendError(sess, "room_closing", err.Error())
	case errors.Is(err, room.ErrIllegalAction):
		sendError(sess, "illegal_action", err.Error())
	default:
		sendError(sess, "error", err.Error())
	}
}

func sendError(sess *room.PlayerSession, reason, msg string) {
	sess.Send(room.Event{Type: room.EventError, Reason: reason, Message: msg})
}
