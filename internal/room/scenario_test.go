package room_test

import (
	"io"
	"testing"
	"time"

	"github.com/jason-s-yu/uno/internal/game"
	"github.com/jason-s-yu/uno/internal/room"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func red(n int) game.Card   { return game.Card{Color: game.Red, Kind: game.Number, Number: n} }
func green(n int) game.Card { return game.Card{Color: game.Green, Kind: game.Number, Number: n} }

// newTable creates table1 dealing alice {red 5, blue 7, yellow 1} and bob
// three greens over a red 3.
func newTable(t *testing.T) (*room.Registry, *room.Room) {
	t.Helper()
	deck := []game.Card{
		red(5), {Color: game.Blue, Kind: game.Number, Number: 7}, {Color: game.Yellow, Kind: game.Number, Number: 1},
		green(2), green(3), green(4),
		red(3),
		green(9), red(8), red(7),
	}
	house := game.DefaultHouseRules()
	house.HandSize = 3

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	reg := room.NewRegistry(room.Options{
		Rules:  game.NewRules(house, game.WithDeck(deck)),
		Policy: room.DefaultPolicy(),
		Logger: logger,
	})
	r, err := reg.CreateRoom("table1")
	require.NoError(t, err)
	return reg, r
}

func attach(t *testing.T, r *room.Room, name string) *room.PlayerSession {
	t.Helper()
	s, err := r.Join(name)
	require.NoError(t, err)
	require.NoError(t, s.Attach())
	return s
}

func drain(s *room.PlayerSession) []room.Event {
	var out []room.Event
	for {
		select {
		case ev := <-s.Outbox():
			out = append(out, ev)
		default:
			return out
		}
	}
}

func TestTableScenario(t *testing.T) {
	_, r := newTable(t)
	alice := attach(t, r, "alice")
	bob := attach(t, r, "bob")

	snap := r.Snapshot("")
	require.Len(t, snap.Players, 2)
	assert.Equal(t, "alice", snap.Players[0].Name)
	assert.Equal(t, "bob", snap.Players[1].Name)

	require.NoError(t, alice.Start())
	drain(alice)
	drain(bob)

	// bob cannot move before alice.
	_, err := bob.Apply(room.Action{Type: game.ActionPlay, Card: 0, Turn: 0})
	assert.ErrorIs(t, err, room.ErrIllegalAction)
	assert.Empty(t, drain(alice))
	assert.Empty(t, drain(bob))

	_, err = alice.Apply(room.Action{Type: game.ActionPlay, Card: 0, Turn: 0})
	require.NoError(t, err)

	aliceEvs, bobEvs := drain(alice), drain(bob)
	require.Len(t, aliceEvs, 1)
	require.Len(t, bobEvs, 1)

	aliceView := aliceEvs[0].State.Game.(game.View)
	assert.Len(t, aliceView.Hand, 2)
	assert.Equal(t, "bob", aliceEvs[0].State.Turn)
	assert.Equal(t, red(5), aliceView.Top)

	bobView := bobEvs[0].State.Game.(game.View)
	assert.Equal(t, "bob", bobEvs[0].State.Turn)
	assert.Equal(t, 2, bobView.Players[0].Cards)
	assert.Len(t, bobView.Hand, 3)

	// A replay of the superseded turn is rejected and changes nothing.
	before := r.Snapshot("bob")
	_, err = bob.Apply(room.Action{Type: game.ActionPlay, Card: 0, Turn: 0})
	assert.ErrorIs(t, err, room.ErrIllegalAction)
	assert.Equal(t, before, r.Snapshot("bob"))
	assert.Empty(t, drain(alice))
}

func TestCloseRoomScenario(t *testing.T) {
	reg, r := newTable(t)
	alice := attach(t, r, "alice")
	bob := attach(t, r, "bob")
	require.NoError(t, alice.Start())

	require.True(t, reg.CloseRoom("table1"))
	for _, s := range []*room.PlayerSession{alice, bob} {
		select {
		case <-s.Done():
		case <-time.After(time.Second):
			t.Fatalf("%s still running", s.Name())
		}
	}
	assert.False(t, reg.HasRoom("table1"))

	_, err := reg.CreateRoom("table1")
	assert.NoError(t, err)
}

func TestShutdownScenario(t *testing.T) {
	_, r := newTable(t)
	alice := attach(t, r, "alice")
	attach(t, r, "bob")
	require.NoError(t, alice.Start())
	_, err := alice.Apply(room.Action{Type: game.ActionPlay, Card: 0, Turn: 0})
	require.NoError(t, err)

	before := r.Snapshot("")
	require.NoError(t, r.Shutdown())
	after := r.Snapshot("")

	assert.Nil(t, after.Game)
	assert.Equal(t, room.StatusOpen, after.Status)
	assert.Equal(t, before.Players, after.Players)
	assert.Equal(t, before.Scoreboard, after.Scoreboard)
}
