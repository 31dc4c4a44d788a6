// internal/room/session.go
package room

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ConnState is the connection state of a PlayerSession.
type ConnState int32

const (
	Connecting ConnState = iota
	Connected
	Disconnected
)

func (c ConnState) String() string {
	switch c {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Disconnected:
		return "disconnected"
	}
	return "unknown"
}

func (c ConnState) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// Event types pushed to a session's outbox.
const (
	EventState      = "state"
	EventError      = "error"
	EventRoomClosed = "room_closed"
	EventPong       = "pong"
)

// Event is a single outbound message for one player.
type Event struct {
	Type    string    `json:"type"`
	Reason  string    `json:"reason,omitempty"`
	Player  string    `json:"player,omitempty"`
	Message string    `json:"message,omitempty"`
	State   *Snapshot `json:"state,omitempty"`
}

// PlayerSession is one player's membership in a room. The room pushes events
// into its outbox; the gateway drains the outbox into the transport.
//
// The outbox is never closed. Consumers stop on Done instead.
type PlayerSession struct {
	id     uuid.UUID
	name   string
	room   *Room
	log    logrus.FieldLogger
	outbox chan Event
	state  atomic.Int32
	ctx    context.Context
	cancel context.CancelCauseFunc

	// grace is guarded by room.mu.
	grace *time.Timer
}

func newSession(r *Room, name string) *PlayerSession {
	ctx, cancel := context.WithCancelCause(context.Background())
	s := &PlayerSession{
		id:     uuid.New(),
		name:   name,
		room:   r,
		outbox: make(chan Event, r.policy.OutboxSize),
		ctx:    ctx,
		cancel: cancel,
	}
	s.log = r.log.WithFields(logrus.Fields{"player": name, "session": s.id})
	s.state.Store(int32(Connecting))
	return s
}

func (s *PlayerSession) ID() uuid.UUID            { return s.id }
func (s *PlayerSession) Name() string             { return s.name }
func (s *PlayerSession) Room() *Room              { return s.room }
func (s *PlayerSession) State() ConnState         { return ConnState(s.state.Load()) }
func (s *PlayerSession) Outbox() <-chan Event     { return s.outbox }
func (s *PlayerSession) Done() <-chan struct{}    { return s.ctx.Done() }
func (s *PlayerSession) Context() context.Context { return s.ctx }

// Err returns the reason the session ended, or nil while it is live.
func (s *PlayerSession) Err() error {
	return context.Cause(s.ctx)
}

// Send enqueues ev without blocking. A full outbox means the client is not
// keeping up: the session is marked Disconnected, cancelled, and every later
// send is dropped.
func (s *PlayerSession) Send(ev Event) bool {
	if s.State() == Disconnected || s.ctx.Err() != nil {
		return false
	}
	select {
	case s.outbox <- ev:
		return true
	default:
	}
	s.state.Store(int32(Disconnected))
	s.cancel(ErrSlowConsumer)
	s.log.WithField("event", ev.Type).Warn("outbox full, dropping session")
	return false
}

// Attach marks the session Connected and pushes the current room state to
// every attached player, this one included.
func (s *PlayerSession) Attach() error {
	return s.room.attach(s)
}

// OnDisconnect is called when the transport behind the session ends. The
// seat is held for the reconnect grace window, or released at once when
// reconnects are disabled or the room is closing.
func (s *PlayerSession) OnDisconnect() {
	s.room.detach(s)
}

// Leave gives up the seat.
func (s *PlayerSession) Leave() {
	s.room.leaveSession(s)
}

// Apply submits a move on behalf of this session.
func (s *PlayerSession) Apply(a Action) (Game, error) {
	return s.room.applyAction(s, a)
}

// Start deals a new round on behalf of this session.
func (s *PlayerSession) Start() error {
	return s.room.start(s)
}

// Resync pushes a fresh snapshot to this session only.
func (s *PlayerSession) Resync() {
	s.room.resync(s)
}

// retire ends the session. Caller holds room.mu.
func (s *PlayerSession) retire(cause error) {
	if s.grace != nil {
		s.grace.Stop()
		s.grace = nil
	}
	s.state.Store(int32(Disconnected))
	s.cancel(cause)
}
