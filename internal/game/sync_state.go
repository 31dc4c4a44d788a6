// internal/game/sync_state.go
package game

// PlayerView is one player as seen by everyone.
type PlayerView struct {
	Name    string `json:"name"`
	Cards   int    `json:"cards"`
	Current bool   `json:"current"`
}

// View is a round as seen by a single player. Only the requesting player's
// own hand is revealed.
type View struct {
	Players   []PlayerView `json:"players"`
	Hand      []Card       `json:"hand,omitempty"`
	Playable  []int        `json:"playable,omitempty"`
	Top       Card         `json:"top"`
	Color     Color        `json:"color,omitempty"`
	Direction int          `json:"direction"`
	DrawPile  int          `json:"drawPile"`
	Drew      bool         `json:"drew"`
	Winner    string       `json:"winner,omitempty"`
}

// View implements room.Game.
func (s *State) View(player string) any {
	v := View{
		Players:   make([]PlayerView, len(s.players)),
		Top:       s.Top(),
		Color:     s.color,
		Direction: s.direction,
		DrawPile:  len(s.draw),
		Drew:      s.drew,
		Winner:    s.winner,
	}
	for i, p := range s.players {
		v.Players[i] = PlayerView{Name: p, Cards: len(s.hands[i]), Current: i == s.current && !s.Finished()}
	}
	if i := s.indexOf(player); i >= 0 {
		v.Hand = s.Hand(player)
		if i == s.current && !s.Finished() {
			for ci, c := range v.Hand {
				if s.Playable(c) && (!s.drew || !s.house.DrawnCardOnly || ci == len(v.Hand)-1) {
					v.Playable = append(v.Playable, ci)
				}
			}
		}
	}
	return v
}
