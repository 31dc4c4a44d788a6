// internal/game/rules.go
package game

import (
	"fmt"

	"github.com/jason-s-yu/uno/internal/room"
)

const (
	MinPlayers = 2
	MaxPlayers = 10
)

// HouseRules defines optional rules that modify standard play.
type HouseRules struct {
	HandSize           int  `json:"handSize"`           // cards dealt to each player
	PassWithoutDrawing bool `json:"passWithoutDrawing"` // allow passing a turn without drawing first
	DrawnCardOnly      bool `json:"drawnCardOnly"`      // after drawing, only the drawn card may be played
}

func DefaultHouseRules() HouseRules {
	return HouseRules{
		HandSize:      7,
		DrawnCardOnly: true,
	}
}

// Update will update the house rules with the new rules provided.
// Keys that are missing or null are ignored and the old value persists.
func (rules *HouseRules) Update(newRules map[string]any) error {
	assignBool := func(field *bool, key string) error {
		if val, exists := newRules[key]; exists && val != nil {
			b, ok := val.(bool)
			if !ok {
				return fmt.Errorf("invalid type for %s", key)
			}
			*field = b
		}
		return nil
	}

	assignInt := func(field *int, key string, minVal, maxVal int) error {
		if val, exists := newRules[key]; exists && val != nil {
			var n int
			switch v := val.(type) {
			case float64: // JSON numbers
				n = int(v)
			case int:
				n = v
			default:
				return fmt.Errorf("invalid type for %s", key)
			}
			if n < minVal || n > maxVal {
				return fmt.Errorf("%s must be between %d and %d", key, minVal, maxVal)
			}
			*field = n
		}
		return nil
	}

	if err := assignInt(&rules.HandSize, "handSize", 1, 15); err != nil {
		return err
	}
	if err := assignBool(&rules.PassWithoutDrawing, "passWithoutDrawing"); err != nil {
		return err
	}
	return assignBool(&rules.DrawnCardOnly, "drawnCardOnly")
}

// ParseRules applies a map of rules on top of current.
func ParseRules(rules map[string]any, current HouseRules) (HouseRules, error) {
	houseRules := current
	err := houseRules.Update(rules)
	return houseRules, err
}

// Rules deals UNO games. It implements room.Rules.
type Rules struct {
	House HouseRules
	deck  []Card
}

type Option func(*Rules)

// WithDeck replaces the shuffled deck with a fixed one. Cards are dealt from
// index 0 in blocks of HandSize per player, then the first playable card is
// turned up.
func WithDeck(deck []Card) Option {
	return func(r *Rules) { r.deck = append([]Card(nil), deck...) }
}

func NewRules(house HouseRules, opts ...Option) *Rules {
	if house.HandSize <= 0 {
		house.HandSize = DefaultHouseRules().HandSize
	}
	r := &Rules{House: house}
	for _, o := range opts {
		o(r)
	}
	return r
}

// NewGame deals a round for players, in seating order.
func (r *Rules) NewGame(players []string, seed int64) (room.Game, error) {
	return r.Deal(players, seed)
}

func (r *Rules) Deal(players []string, seed int64) (*State, error) {
	if len(players) < MinPlayers || len(players) > MaxPlayers {
		return nil, fmt.Errorf("uno needs %d to %d players, got %d", MinPlayers, MaxPlayers, len(players))
	}
	var deck []Card
	if r.deck != nil {
		deck = append([]Card(nil), r.deck...)
	} else {
		deck = NewDeck()
		shuffle(deck, uint64(seed))
	}
	need := len(players)*r.House.HandSize + 1
	if len(deck) < need {
		return nil, fmt.Errorf("deck of %d cards cannot deal %d hands of %d", len(deck), len(players), r.House.HandSize)
	}

	s := &State{
		house:     r.House,
		seed:      seed,
		players:   append([]string(nil), players...),
		hands:     make([][]Card, len(players)),
		direction: 1,
	}
	for i := range players {
		s.hands[i] = append([]Card(nil), deck[:r.House.HandSize]...)
		deck = deck[r.House.HandSize:]
	}

	// A wild draw four may not start the pile; it goes to the bottom.
	for i := 0; i < len(deck) && deck[0].Kind == WildFour; i++ {
		deck = append(deck[1:], deck[0])
	}
	start := deck[0]
	s.draw = deck[1:]
	s.discard = []Card{start}
	s.color = start.Color
	return s, nil
}
