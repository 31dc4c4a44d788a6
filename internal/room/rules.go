// internal/room/rules.go
package room

import "time"

// Action is a single game move submitted by a player. Turn must quote the
// Snapshot.Version the client last saw; anything else is stale. Snapshot
// versions keep increasing across rounds, so a move from an earlier round
// never matches.
type Action struct {
	Type  string `json:"type"`
	Card  int    `json:"card,omitempty"`
	Color string `json:"color,omitempty"`
	Turn  uint64 `json:"turn"`
}

// Outcome is reported by Game.Apply when a move ends the round.
type Outcome struct {
	Winner string         `json:"winner"`
	Points map[string]int `json:"points"`
}

// Rules deals new games. Implementations must be deterministic for a given seed.
type Rules interface {
	NewGame(players []string, seed int64) (Game, error)
}

// Game is an immutable game state. Apply never mutates the receiver; it
// returns the successor state instead.
type Game interface {
	// Version increases by one with every applied move.
	Version() uint64
	Players() []string
	// Current is the player whose turn it is.
	Current() string
	Finished() bool
	Apply(player string, a Action) (Game, *Outcome, error)
	// View renders the state as seen by player. Other players' hands are hidden.
	View(player string) any
}

// Record is one entry of a room's event log.
type Record struct {
	Room      string    `json:"room"`
	Round     string    `json:"round,omitempty"`
	Index     uint64    `json:"index"`
	Player    string    `json:"player,omitempty"`
	Kind      string    `json:"kind"`
	Payload   any       `json:"payload,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Journal receives every room event in order. Append is called with the room
// lock held and must not block.
type Journal interface {
	Append(rec Record)
}

// RoundResult describes a finished round.
type RoundResult struct {
	Room       string         `json:"room"`
	Round      string         `json:"round"`
	Winner     string         `json:"winner"`
	Points     map[string]int `json:"points"`
	Scoreboard map[string]int `json:"scoreboard"`
	FinishedAt time.Time      `json:"finishedAt"`
}

// ResultSink persists finished rounds. It is called outside the room lock.
type ResultSink interface {
	RecordRound(res RoundResult)
}
