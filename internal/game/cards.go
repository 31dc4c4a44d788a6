// internal/game/cards.go
package game

import (
	"fmt"
	"math/rand/v2"
)

// Color is a card color. Wild cards have no color until played.
type Color string

const (
	Red    Color = "red"
	Yellow Color = "yellow"
	Green  Color = "green"
	Blue   Color = "blue"
)

var colors = []Color{Red, Yellow, Green, Blue}

func (c Color) Valid() bool {
	switch c {
	case Red, Yellow, Green, Blue:
		return true
	}
	return false
}

// Kind is what a card does when played.
type Kind string

const (
	Number   Kind = "number"
	Skip     Kind = "skip"
	Reverse  Kind = "reverse"
	DrawTwo  Kind = "draw2"
	Wild     Kind = "wild"
	WildFour Kind = "wild4"
)

// Card is a single UNO card. Number is only meaningful for Number cards.
type Card struct {
	Color  Color `json:"color,omitempty"`
	Kind   Kind  `json:"kind"`
	Number int   `json:"number"`
}

func (c Card) IsWild() bool {
	return c.Kind == Wild || c.Kind == WildFour
}

// Points is the card's value when left in a losing hand.
func (c Card) Points() int {
	switch c.Kind {
	case Number:
		return c.Number
	case Skip, Reverse, DrawTwo:
		return 20
	default:
		return 50
	}
}

func (c Card) String() string {
	switch c.Kind {
	case Number:
		return fmt.Sprintf("%s %d", c.Color, c.Number)
	case Wild, WildFour:
		return string(c.Kind)
	default:
		return fmt.Sprintf("%s %s", c.Color, c.Kind)
	}
}

// NewDeck returns the standard 108 card deck in a fixed order: per color one
// zero, two of each 1-9, two each of skip, reverse and draw two; then four
// wilds and four wild draw fours.
func NewDeck() []Card {
	deck := make([]Card, 0, 108)
	for _, c := range colors {
		deck = append(deck, Card{Color: c, Kind: Number, Number: 0})
		for n := 1; n <= 9; n++ {
			deck = append(deck, Card{Color: c, Kind: Number, Number: n}, Card{Color: c, Kind: Number, Number: n})
		}
		for _, k := range []Kind{Skip, Reverse, DrawTwo} {
			deck = append(deck, Card{Color: c, Kind: k}, Card{Color: c, Kind: k})
		}
	}
	for i := 0; i < 4; i++ {
		deck = append(deck, Card{Kind: Wild}, Card{Kind: WildFour})
	}
	return deck
}

// shuffle permutes cards in place, deterministically for a given seed.
func shuffle(cards []Card, seed uint64) {
	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	r.Shuffle(len(cards), func(i, j int) {
		cards[i], cards[j] = cards[j], cards[i]
	})
}
