// internal/game/game.go
package game

import (
	"fmt"
	"slices"

	"github.com/jason-s-yu/uno/internal/room"
)

// Action types accepted by State.Apply.
const (
	ActionPlay = "play"
	ActionDraw = "draw"
	ActionPass = "pass"
)

var (
	ErrNotYourTurn = fmt.Errorf("%w: not your turn", room.ErrIllegalAction)
	ErrRoundOver   = fmt.Errorf("%w: round is over", room.ErrIllegalAction)
	ErrUnplayable  = fmt.Errorf("%w: card does not match the pile", room.ErrIllegalAction)
	ErrBadCard     = fmt.Errorf("%w: no such card in hand", room.ErrIllegalAction)
	ErrBadColor    = fmt.Errorf("%w: wild cards need a color", room.ErrIllegalAction)
	ErrAlreadyDrew = fmt.Errorf("%w: already drew this turn", room.ErrIllegalAction)
	ErrMustDraw    = fmt.Errorf("%w: draw before passing", room.ErrIllegalAction)
	ErrUnknownMove = fmt.Errorf("%w: unknown action", room.ErrIllegalAction)
	ErrNotInRound  = fmt.Errorf("%w: not dealt into this round", room.ErrIllegalAction)
	ErrDrawnOnly   = fmt.Errorf("%w: only the drawn card may be played", room.ErrIllegalAction)
)

// State is one UNO round. It is immutable: Apply returns a modified copy.
type State struct {
	house     HouseRules
	seed      int64
	version   uint64
	players   []string
	hands     [][]Card
	draw      []Card
	discard   []Card
	color     Color // active color; empty after a wild start means anything goes
	current   int
	direction int
	drew      bool // current player has drawn this turn
	winner    string
}

var _ room.Game = (*State)(nil)

func (s *State) Version() uint64   { return s.version }
func (s *State) Players() []string { return slices.Clone(s.players) }
func (s *State) Current() string   { return s.players[s.current] }
func (s *State) Finished() bool    { return s.winner != "" }
func (s *State) Winner() string    { return s.winner }
func (s *State) Color() Color      { return s.color }
func (s *State) Top() Card         { return s.discard[len(s.discard)-1] }
func (s *State) DrawPile() int     { return len(s.draw) }

// Hand returns a copy of player's hand, nil if they are not in the round.
func (s *State) Hand(player string) []Card {
	i := s.indexOf(player)
	if i < 0 {
		return nil
	}
	return slices.Clone(s.hands[i])
}

// Apply validates and performs a move. On success the returned state has a
// Version one higher than s.
func (s *State) Apply(player string, a room.Action) (room.Game, *room.Outcome, error) {
	next, outcome, err := s.apply(player, a)
	if err != nil {
		return nil, nil, err
	}
	return next, outcome, nil
}

func (s *State) apply(player string, a room.Action) (*State, *room.Outcome, error) {
	if s.Finished() {
		return nil, nil, ErrRoundOver
	}
	idx := s.indexOf(player)
	if idx < 0 {
		return nil, nil, ErrNotInRound
	}
	if idx != s.current {
		return nil, nil, ErrNotYourTurn
	}

	next := s.clone()
	switch a.Type {
	case ActionPlay:
		if err := next.play(a.Card, Color(a.Color)); err != nil {
			return nil, nil, err
		}
	case ActionDraw:
		if next.drew {
			return nil, nil, ErrAlreadyDrew
		}
		next.hands[idx] = append(next.hands[idx], next.take(1)...)
		next.drew = true
	case ActionPass:
		if !next.drew && !next.house.PassWithoutDrawing {
			return nil, nil, ErrMustDraw
		}
		next.advance(1)
	default:
		return nil, nil, fmt.Errorf("%w %q", ErrUnknownMove, a.Type)
	}
	next.version++

	if next.winner == "" {
		return next, nil, nil
	}
	return next, next.outcome(), nil
}

// Playable reports whether c may go on the pile right now.
func (s *State) Playable(c Card) bool {
	if c.IsWild() || s.color == "" {
		return true
	}
	if c.Color == s.color {
		return true
	}
	top := s.Top()
	if c.Kind == Number {
		return top.Kind == Number && top.Number == c.Number
	}
	return c.Kind == top.Kind
}

func (s *State) play(cardIdx int, chosen Color) error {
	hand := s.hands[s.current]
	if cardIdx < 0 || cardIdx >= len(hand) {
		return ErrBadCard
	}
	if s.drew && s.house.DrawnCardOnly && cardIdx != len(hand)-1 {
		return ErrDrawnOnly
	}
	c := hand[cardIdx]
	if !s.Playable(c) {
		return fmt.Errorf("%w: %s on %s", ErrUnplayable, c, s.Top())
	}
	if c.IsWild() && !chosen.Valid() {
		return ErrBadColor
	}

	s.hands[s.current] = slices.Delete(hand, cardIdx, cardIdx+1)
	s.discard = append(s.discard, c)
	s.color = c.Color
	if c.IsWild() {
		s.color = chosen
	}
	if len(s.hands[s.current]) == 0 {
		s.winner = s.players[s.current]
	}
	s.resolve(c)
	return nil
}

// outcome awards the winner the points left in every other hand.
func (s *State) outcome() *room.Outcome {
	total := 0
	for i, h := range s.hands {
		if s.players[i] == s.winner {
			continue
		}
		for _, c := range h {
			total += c.Points()
		}
	}
	return &room.Outcome{Winner: s.winner, Points: map[string]int{s.winner: total}}
}

func (s *State) indexOf(player string) int {
	return slices.Index(s.players, player)
}

func (s *State) next(steps int) int {
	n := len(s.players)
	return ((s.current+steps*s.direction)%n + n) % n
}

func (s *State) advance(steps int) {
	s.current = s.next(steps)
	s.drew = false
}

func (s *State) clone() *State {
	c := *s
	c.players = slices.Clone(s.players)
	c.hands = make([][]Card, len(s.hands))
	for i, h := range s.hands {
		c.hands[i] = slices.Clone(h)
	}
	c.draw = slices.Clone(s.draw)
	c.discard = slices.Clone(s.discard)
	return &c
}
