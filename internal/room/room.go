// internal/room/room.go
package room

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Status is the lifecycle state of a Room.
type Status int

const (
	StatusOpen Status = iota
	StatusInGame
	StatusClosing
)

func (s Status) String() string {
	switch s {
	case StatusOpen:
		return "open"
	case StatusInGame:
		return "in_game"
	case StatusClosing:
		return "closing"
	}
	return "unknown"
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Policy controls seating and delivery for every room of a registry.
type Policy struct {
	// AllowReconnect holds a disconnected player's seat for ReconnectGrace so
	// that a join under the same name reclaims it.
	AllowReconnect bool
	// ReconnectGrace is how long an unattached seat is held. Zero or less
	// holds it until the room closes.
	ReconnectGrace time.Duration
	OutboxSize     int
	MinPlayers     int
}

func DefaultPolicy() Policy {
	return Policy{
		AllowReconnect: true,
		ReconnectGrace: 30 * time.Second,
		OutboxSize:     32,
		MinPlayers:     2,
	}
}

// PlayerInfo is one seat as shown in a Snapshot.
type PlayerInfo struct {
	Name  string    `json:"name"`
	Seat  int       `json:"seat"`
	State ConnState `json:"state"`
	Score int       `json:"score"`
}

// Snapshot is a read-only copy of a room, rendered for a single player.
type Snapshot struct {
	Room       string         `json:"room"`
	Status     Status         `json:"status"`
	Players    []PlayerInfo   `json:"players"`
	Scoreboard map[string]int `json:"scoreboard"`
	Round      string         `json:"round,omitempty"`
	Version    uint64         `json:"version"`
	Turn       string         `json:"turn,omitempty"`
	Game       any            `json:"game,omitempty"`
}

// Summary is the lobby listing entry for a room.
type Summary struct {
	Name      string `json:"name"`
	Status    Status `json:"status"`
	Players   int    `json:"players"`
	Connected int    `json:"connected"`
	Protected bool   `json:"protected"`
}

// Room is one game table: its seats in turn order, a cumulative scoreboard and
// the game in progress. Every mutation goes through mu, and every broadcast
// happens while mu is held, so all outboxes see events in the same order.
type Room struct {
	name         string
	rules        Rules
	policy       Policy
	log          logrus.FieldLogger
	journal      Journal
	results      ResultSink
	seed         func() int64
	ownerKeyHash string

	onEmpty   func()
	emptyOnce sync.Once

	mu     sync.RWMutex
	seats  []*PlayerSession
	scores map[string]int
	game   Game
	status Status
	round  uuid.UUID
	seq    uint64
	// turnBase offsets game versions so turn numbers never repeat across
	// rounds of the same room.
	turnBase uint64
}

// RoomOption customizes a single room at creation.
type RoomOption func(*Room)

// WithOwnerKeyHash protects the room's administrative operations with a
// hashed owner key.
func WithOwnerKeyHash(hash string) RoomOption {
	return func(r *Room) { r.ownerKeyHash = hash }
}

// WithRules deals this room's games with rules instead of the registry's.
func WithRules(rules Rules) RoomOption {
	return func(r *Room) {
		if rules != nil {
			r.rules = rules
		}
	}
}

func newRoom(name string, opts Options, ropts ...RoomOption) *Room {
	r := &Room{
		name:    name,
		rules:   opts.Rules,
		policy:  opts.Policy,
		log:     opts.Logger.WithField("room", name),
		journal: opts.Journal,
		results: opts.Results,
		seed:    opts.Seed,
		scores:  make(map[string]int),
	}
	for _, o := range ropts {
		o(r)
	}
	return r
}

func (r *Room) Name() string         { return r.name }
func (r *Room) Policy() Policy       { return r.policy }
func (r *Room) Rules() Rules         { return r.rules }
func (r *Room) OwnerKeyHash() string { return r.ownerKeyHash }

func (r *Room) Status() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status
}

// Game returns the current (or last finished) game, nil when idle.
func (r *Room) Game() Game {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.game
}

// Scoreboard returns a copy of the cumulative scores.
func (r *Room) Scoreboard() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return maps.Clone(r.scores)
}

// Join seats player. A seat whose session is not attached (still Connecting,
// or Disconnected inside the grace window) is reclaimed in place, keeping its
// position and score.
func (r *Room) Join(player string) (*PlayerSession, error) {
	if !ValidName(player) {
		return nil, fmt.Errorf("join %s as %q: %w", r.name, player, ErrInvalidName)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status == StatusClosing {
		return nil, fmt.Errorf("join %s: %w", r.name, ErrRoomClosing)
	}

	idx := r.seatIndexUnsafe(player)
	if idx >= 0 {
		old := r.seats[idx]
		switch old.State() {
		case Connected:
			return nil, fmt.Errorf("join %s as %q: %w", r.name, player, ErrNameTaken)
		case Disconnected:
			if !r.policy.AllowReconnect {
				return nil, fmt.Errorf("join %s as %q: %w", r.name, player, ErrNameTaken)
			}
		}
		old.retire(ErrSuperseded)
	}

	sess := newSession(r, player)
	if idx >= 0 {
		r.seats[idx] = sess
		sess.log.Info("seat reclaimed")
	} else {
		r.seats = append(r.seats, sess)
		if _, ok := r.scores[player]; !ok {
			r.scores[player] = 0
		}
		sess.log.WithField("seat", len(r.seats)-1).Info("player seated")
	}
	r.armGraceUnsafe(sess)
	r.recordUnsafe(player, "join", nil)
	r.broadcastUnsafe("join")
	return sess, nil
}

// Leave removes player's seat. It reports whether the player was seated.
func (r *Room) Leave(player string) bool {
	found, empty := func() (bool, bool) {
		r.mu.Lock()
		defer r.mu.Unlock()
		idx := r.seatIndexUnsafe(player)
		if idx < 0 {
			return false, false
		}
		empty := r.removeSeatUnsafe(idx)
		r.broadcastUnsafe("leave")
		return true, empty
	}()
	if empty {
		r.finalize()
	}
	return found
}

func (r *Room) leaveSession(s *PlayerSession) {
	empty := func() bool {
		r.mu.Lock()
		defer r.mu.Unlock()
		idx := r.seatIndexUnsafe(s.name)
		if idx < 0 || r.seats[idx] != s {
			s.cancel(ErrSessionLeft)
			return false
		}
		empty := r.removeSeatUnsafe(idx)
		r.broadcastUnsafe("leave")
		return empty
	}()
	if empty {
		r.finalize()
	}
}

func (r *Room) attach(s *PlayerSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status == StatusClosing {
		return fmt.Errorf("attach to %s: %w", r.name, ErrRoomClosing)
	}
	idx := r.seatIndexUnsafe(s.name)
	if idx < 0 || r.seats[idx] != s || s.ctx.Err() != nil {
		return fmt.Errorf("attach %q to %s: %w", s.name, r.name, ErrSuperseded)
	}
	if s.grace != nil {
		s.grace.Stop()
		s.grace = nil
	}
	s.state.Store(int32(Connected))
	s.log.Info("session attached")
	r.recordUnsafe(s.name, "attach", nil)
	r.broadcastUnsafe("attach")
	return nil
}

func (r *Room) detach(s *PlayerSession) {
	empty := func() bool {
		r.mu.Lock()
		defer r.mu.Unlock()

		idx := r.seatIndexUnsafe(s.name)
		if idx < 0 || r.seats[idx] != s {
			// Already replaced or removed.
			s.cancel(ErrSessionLeft)
			return false
		}
		if !r.policy.AllowReconnect || r.status == StatusClosing {
			empty := r.removeSeatUnsafe(idx)
			r.broadcastUnsafe("leave")
			return empty
		}
		s.state.Store(int32(Disconnected))
		s.cancel(ErrDisconnected)
		r.armGraceUnsafe(s)
		s.log.WithField("grace", r.policy.ReconnectGrace).Info("session disconnected, holding seat")
		r.recordUnsafe(s.name, "disconnect", nil)
		r.broadcastUnsafe("disconnect")
		return false
	}()
	if empty {
		r.finalize()
	}
}

func (r *Room) resync(s *PlayerSession) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	idx := r.seatIndexUnsafe(s.name)
	if idx < 0 || r.seats[idx] != s || s.State() != Connected {
		return
	}
	snap := r.snapshotUnsafe(s.name)
	s.Send(Event{Type: EventState, Reason: "sync", State: &snap})
}

// expire releases s's seat once its grace window passes without a reattach.
func (r *Room) expire(s *PlayerSession) {
	empty := func() bool {
		r.mu.Lock()
		defer r.mu.Unlock()
		idx := r.seatIndexUnsafe(s.name)
		if idx < 0 || r.seats[idx] != s || s.State() == Connected {
			return false
		}
		s.log.Info("reconnect grace expired")
		empty := r.removeSeatUnsafe(idx)
		r.broadcastUnsafe("leave")
		return empty
	}()
	if empty {
		r.finalize()
	}
}

// ApplyAction validates and applies a move by the named player, then
// broadcasts the new state to every attached session before returning.
func (r *Room) ApplyAction(player string, a Action) (Game, error) {
	r.mu.RLock()
	idx := r.seatIndexUnsafe(player)
	var s *PlayerSession
	if idx >= 0 {
		s = r.seats[idx]
	}
	r.mu.RUnlock()
	if s == nil {
		return nil, fmt.Errorf("%q is not seated in %s: %w", player, r.name, ErrIllegalAction)
	}
	return r.applyAction(s, a)
}

func (r *Room) applyAction(by *PlayerSession, a Action) (Game, error) {
	var result *RoundResult
	g, err := func() (Game, error) {
		r.mu.Lock()
		defer r.mu.Unlock()

		if r.status == StatusClosing {
			return nil, fmt.Errorf("action in %s: %w", r.name, ErrRoomClosing)
		}
		idx := r.seatIndexUnsafe(by.name)
		if idx < 0 || r.seats[idx] != by || by.State() != Connected {
			return nil, fmt.Errorf("%q is not attached to %s: %w", by.name, r.name, ErrIllegalAction)
		}
		if r.status != StatusInGame || r.game == nil {
			return nil, fmt.Errorf("no game in progress in %s: %w", r.name, ErrIllegalAction)
		}
		if v := r.turnUnsafe(); a.Turn != v {
			return nil, fmt.Errorf("stale turn %d, current is %d: %w", a.Turn, v, ErrIllegalAction)
		}

		next, outcome, err := r.game.Apply(by.name, a)
		if err != nil {
			if !errors.Is(err, ErrIllegalAction) {
				err = fmt.Errorf("%w: %w", ErrIllegalAction, err)
			}
			return nil, err
		}
		r.game = next
		r.recordUnsafe(by.name, a.Type, a)

		if outcome == nil {
			r.broadcastUnsafe(a.Type)
			return next, nil
		}

		for p, pts := range outcome.Points {
			r.scores[p] += pts
		}
		r.status = StatusOpen
		result = &RoundResult{
			Room:       r.name,
			Round:      r.round.String(),
			Winner:     outcome.Winner,
			Points:     maps.Clone(outcome.Points),
			Scoreboard: maps.Clone(r.scores),
			FinishedAt: time.Now().UTC(),
		}
		r.log.WithFields(logrus.Fields{"round": r.round, "winner": outcome.Winner}).Info("round finished")
		r.recordUnsafe(outcome.Winner, "round_over", outcome)
		r.broadcastUnsafe("round_over")
		return next, nil
	}()

	if result != nil && r.results != nil {
		r.results.RecordRound(*result)
	}
	return g, err
}

// Start deals a new round among the attached players, in seating order. The
// room must be Open and have at least Policy.MinPlayers attached seats.
func (r *Room) Start(player string) error {
	r.mu.RLock()
	idx := r.seatIndexUnsafe(player)
	var s *PlayerSession
	if idx >= 0 {
		s = r.seats[idx]
	}
	r.mu.RUnlock()
	if s == nil {
		return fmt.Errorf("%q is not seated in %s: %w", player, r.name, ErrIllegalAction)
	}
	return r.start(s)
}

func (r *Room) start(by *PlayerSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch r.status {
	case StatusClosing:
		return fmt.Errorf("start in %s: %w", r.name, ErrRoomClosing)
	case StatusInGame:
		return fmt.Errorf("game already in progress in %s: %w", r.name, ErrIllegalAction)
	}
	idx := r.seatIndexUnsafe(by.name)
	if idx < 0 || r.seats[idx] != by || by.State() != Connected {
		return fmt.Errorf("%q is not attached to %s: %w", by.name, r.name, ErrIllegalAction)
	}

	var players []string
	for _, s := range r.seats {
		if s.State() == Connected {
			players = append(players, s.name)
		}
	}
	if len(players) < r.policy.MinPlayers {
		return fmt.Errorf("need %d players, have %d: %w", r.policy.MinPlayers, len(players), ErrIllegalAction)
	}

	g, err := r.rules.NewGame(players, r.seed())
	if err != nil {
		return fmt.Errorf("%w: %w", ErrIllegalAction, err)
	}
	if r.game != nil {
		r.turnBase += r.game.Version() + 1
	}
	r.game = g
	r.status = StatusInGame
	r.round = uuid.New()
	r.log.WithFields(logrus.Fields{"round": r.round, "players": players}).Info("round started")
	r.recordUnsafe(by.name, "start", players)
	r.broadcastUnsafe("start")
	return nil
}

// Shutdown drops the current game and reopens the room. Seats and scores are
// kept.
func (r *Room) Shutdown() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status == StatusClosing {
		return fmt.Errorf("shutdown %s: %w", r.name, ErrRoomClosing)
	}
	r.dropGameUnsafe()
	r.log.Info("game shut down")
	r.recordUnsafe("", "shutdown", nil)
	r.broadcastUnsafe("shutdown")
	return nil
}

// ClearScoreboard zeroes every score. The game and the seats are untouched.
func (r *Room) ClearScoreboard() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status == StatusClosing {
		return fmt.Errorf("clear scoreboard of %s: %w", r.name, ErrRoomClosing)
	}
	for p := range r.scores {
		r.scores[p] = 0
	}
	r.recordUnsafe("", "clear", nil)
	r.broadcastUnsafe("clear")
	return nil
}

// Snapshot copies the room state as seen by forPlayer. An empty forPlayer
// yields a spectator view.
func (r *Room) Snapshot(forPlayer string) Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshotUnsafe(forPlayer)
}

func (r *Room) Summary() Summary {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sum := Summary{
		Name:      r.name,
		Status:    r.status,
		Players:   len(r.seats),
		Protected: r.ownerKeyHash != "",
	}
	for _, s := range r.seats {
		if s.State() == Connected {
			sum.Connected++
		}
	}
	return sum
}

// close forcibly detaches every session. Used by Registry.CloseRoom after the
// room is unlisted.
func (r *Room) close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status = StatusClosing
	r.game = nil
	closed := Event{Type: EventRoomClosed, Reason: "closed"}
	for _, s := range r.seats {
		s.Send(closed)
		s.retire(ErrRoomClosing)
	}
	r.seats = nil
	r.log.Info("room closed")
	r.recordUnsafe("", "closed", nil)
}

// drain stops the room from accepting joins and releases every unattached
// seat. The room is finalized once its last attached player leaves.
func (r *Room) drain() {
	empty := func() bool {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.status = StatusClosing
		r.game = nil
		for i := len(r.seats) - 1; i >= 0; i-- {
			if r.seats[i].State() != Connected {
				r.removeSeatUnsafe(i)
			}
		}
		r.log.WithField("remaining", len(r.seats)).Info("room draining")
		r.recordUnsafe("", "drain", nil)
		r.broadcastUnsafe("drain")
		return len(r.seats) == 0
	}()
	if empty {
		r.finalize()
	}
}

func (r *Room) finalize() {
	r.emptyOnce.Do(func() {
		r.log.Info("room empty, finalizing")
		if r.onEmpty != nil {
			r.onEmpty()
		}
	})
}

func (r *Room) seatIndexUnsafe(player string) int {
	return slices.IndexFunc(r.seats, func(s *PlayerSession) bool { return s.name == player })
}

// removeSeatUnsafe drops the seat at idx, aborting the game if that player
// was dealt in. Scores are kept so a returning player keeps theirs. It
// reports whether this emptied a closing room.
func (r *Room) removeSeatUnsafe(idx int) bool {
	s := r.seats[idx]
	s.retire(ErrSessionLeft)
	r.seats = slices.Delete(r.seats, idx, idx+1)
	s.log.Info("player left")
	r.recordUnsafe(s.name, "leave", nil)

	if r.status == StatusInGame && r.game != nil && slices.Contains(r.game.Players(), s.name) {
		r.dropGameUnsafe()
		r.log.WithField("player", s.name).Warn("player left mid-round, game aborted")
		r.recordUnsafe(s.name, "abort", nil)
	}
	return r.status == StatusClosing && len(r.seats) == 0
}

// dropGameUnsafe discards the current game and reopens the room. The turn
// sequence moves past the dropped game's last version.
func (r *Room) dropGameUnsafe() {
	if r.game != nil {
		r.turnBase += r.game.Version() + 1
	}
	r.game = nil
	r.status = StatusOpen
	r.round = uuid.Nil
}

// turnUnsafe is the turn number the next action must quote.
func (r *Room) turnUnsafe() uint64 {
	if r.game == nil {
		return r.turnBase
	}
	return r.turnBase + r.game.Version()
}

func (r *Room) armGraceUnsafe(s *PlayerSession) {
	if s.grace != nil {
		s.grace.Stop()
		s.grace = nil
	}
	if r.policy.ReconnectGrace <= 0 {
		return
	}
	s.grace = time.AfterFunc(r.policy.ReconnectGrace, func() { r.expire(s) })
}

// broadcastUnsafe pushes a per-player snapshot to every attached session in
// seating order.
func (r *Room) broadcastUnsafe(reason string) {
	for _, s := range r.seats {
		if s.State() != Connected {
			continue
		}
		snap := r.snapshotUnsafe(s.name)
		s.Send(Event{Type: EventState, Reason: reason, State: &snap})
	}
}

func (r *Room) snapshotUnsafe(forPlayer string) Snapshot {
	snap := Snapshot{
		Room:       r.name,
		Status:     r.status,
		Players:    make([]PlayerInfo, len(r.seats)),
		Scoreboard: maps.Clone(r.scores),
	}
	for i, s := range r.seats {
		snap.Players[i] = PlayerInfo{Name: s.name, Seat: i, State: s.State(), Score: r.scores[s.name]}
	}
	if r.round != uuid.Nil {
		snap.Round = r.round.String()
	}
	snap.Version = r.turnUnsafe()
	if r.game != nil {
		if !r.game.Finished() {
			snap.Turn = r.game.Current()
		}
		snap.Game = r.game.View(forPlayer)
	}
	return snap
}

func (r *Room) recordUnsafe(player, kind string, payload any) {
	if r.journal == nil {
		return
	}
	rec := Record{
		Room:      r.name,
		Index:     r.seq,
		Player:    player,
		Kind:      kind,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}
	if r.round != uuid.Nil {
		rec.Round = r.round.String()
	}
	r.seq++
	r.journal.Append(rec)
}
