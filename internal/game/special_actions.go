// internal/game/special_actions.go
package game

// resolve applies the effect of the card just played and moves the turn on.
func (s *State) resolve(c Card) {
	switch c.Kind {
	case Skip:
		s.advance(2)
	case Reverse:
		if len(s.players) == 2 {
			// With two players a reverse acts as a skip.
			s.advance(2)
			return
		}
		s.direction = -s.direction
		s.advance(1)
	case DrawTwo:
		s.penalize(2)
	case WildFour:
		s.penalize(4)
	default:
		s.advance(1)
	}
}

// penalize makes the next player draw n cards and lose their turn.
func (s *State) penalize(n int) {
	victim := s.next(1)
	s.hands[victim] = append(s.hands[victim], s.take(n)...)
	s.advance(2)
}

// take removes up to n cards from the draw pile. When the pile runs out, the
// discard pile minus its top card is reshuffled into it.
func (s *State) take(n int) []Card {
	out := make([]Card, 0, n)
	for len(out) < n {
		if len(s.draw) == 0 && !s.reshuffle() {
			break
		}
		out = append(out, s.draw[0])
		s.draw = s.draw[1:]
	}
	return out
}

func (s *State) reshuffle() bool {
	if len(s.discard) <= 1 {
		return false
	}
	top := s.discard[len(s.discard)-1]
	s.draw = append(s.draw, s.discard[:len(s.discard)-1]...)
	s.discard = []Card{top}
	shuffle(s.draw, uint64(s.seed)^s.version)
	return true
}
