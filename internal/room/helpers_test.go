package room

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

// turnRules deals a trivial game: "move" passes the turn, "win" ends the
// round for 10 points, "boom" is a rules failure that is not an illegal move.
type turnRules struct{}

func (turnRules) NewGame(players []string, _ int64) (Game, error) {
	return &turnGame{players: slices.Clone(players)}, nil
}

type turnGame struct {
	players []string
	turn    int
	version uint64
	winner  string
}

func (g *turnGame) Version() uint64   { return g.version }
func (g *turnGame) Players() []string { return slices.Clone(g.players) }
func (g *turnGame) Current() string   { return g.players[g.turn] }
func (g *turnGame) Finished() bool    { return g.winner != "" }

func (g *turnGame) Apply(player string, a Action) (Game, *Outcome, error) {
	if g.Finished() {
		return nil, nil, fmt.Errorf("%w: round over", ErrIllegalAction)
	}
	if player != g.Current() {
		return nil, nil, fmt.Errorf("%w: not your turn", ErrIllegalAction)
	}
	next := *g
	next.version++
	switch a.Type {
	case "move":
		next.turn = (g.turn + 1) % len(g.players)
		return &next, nil, nil
	case "win":
		next.winner = player
		return &next, &Outcome{Winner: player, Points: map[string]int{player: 10}}, nil
	case "boom":
		return nil, nil, errors.New("rules exploded")
	}
	return nil, nil, fmt.Errorf("%w: unknown move %q", ErrIllegalAction, a.Type)
}

func (g *turnGame) View(player string) any {
	return map[string]any{"turn": g.Current(), "viewer": player, "version": g.version}
}

type memJournal struct {
	records []Record
}

func (j *memJournal) Append(rec Record) { j.records = append(j.records, rec) }

func (j *memJournal) kinds() []string {
	out := make([]string, len(j.records))
	for i, r := range j.records {
		out[i] = r.Kind
	}
	return out
}

type resultCh chan RoundResult

func (c resultCh) RecordRound(res RoundResult) { c <- res }

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func testPolicy() Policy {
	p := DefaultPolicy()
	p.ReconnectGrace = time.Minute
	return p
}

func newTestRegistry(p Policy) *Registry {
	return NewRegistry(Options{
		Rules:  turnRules{},
		Policy: p,
		Logger: quietLogger(),
		Seed:   func() int64 { return 1 },
	})
}

func newTestRoom(t *testing.T, p Policy) (*Registry, *Room) {
	t.Helper()
	reg := newTestRegistry(p)
	r, err := reg.CreateRoom("table1")
	require.NoError(t, err)
	return reg, r
}

// seat joins and attaches player, discarding the attach broadcast.
func seat(t *testing.T, r *Room, player string) *PlayerSession {
	t.Helper()
	s, err := r.Join(player)
	require.NoError(t, err)
	require.NoError(t, s.Attach())
	return s
}

func recv(t *testing.T, s *PlayerSession) Event {
	t.Helper()
	select {
	case ev := <-s.Outbox():
		return ev
	case <-time.After(time.Second):
		t.Fatalf("no event for %s", s.Name())
		return Event{}
	}
}

// pending drains every queued event without waiting.
func pending(s *PlayerSession) []Event {
	var out []Event
	for {
		select {
		case ev := <-s.Outbox():
			out = append(out, ev)
		default:
			return out
		}
	}
}

func versions(evs []Event) []uint64 {
	out := make([]uint64, 0, len(evs))
	for _, ev := range evs {
		if ev.State != nil {
			out = append(out, ev.State.Version)
		}
	}
	return out
}
