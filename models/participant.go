package models

// Player is a single entrant of the cup. ID is the only identity key; Name is
// a display label that may change at any time.
type Player struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	Points         float64 `json:"points"`
	Played         int     `json:"played"`
	TiebreakPoints float64 `json:"tiebreak_points"`
}

// Group is a named round-robin pool. Players keep their creation order.
type Group struct {
	Name    string    `json:"name"`
	Players []*Player `json:"players"`
}

func (g *Group) Player(id string) *Player {
	for _, p := range g.Players {
		if p.ID == id {
			return p
		}
	}
	return nil
}
