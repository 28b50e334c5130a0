package models

import (
	"sort"
	"time"
)

// TournamentSnapshot is the serializable state of one cup. It is what gets
// persisted, exported and imported.
type TournamentSnapshot struct {
	ID              string                `json:"id,omitempty"`
	Name            string                `json:"name,omitempty"`
	TotalPlayers    int                   `json:"total_players"`
	PlayersPerGroup int                   `json:"players_per_group"`
	Groups          map[string][]*Player  `json:"groups"`
	Fixtures        map[string][]*Fixture `json:"fixtures"`
	Bracket         []*BracketMatch       `json:"bracket"`
	CreatedAt       *time.Time            `json:"created_at,omitempty"`
	LastUpdated     *time.Time            `json:"last_updated,omitempty"`
}

// GroupNames returns the group keys in alphabetical order, whatever order the
// storage layer handed them back in.
func (s *TournamentSnapshot) GroupNames() []string {
	names := make([]string, 0, len(s.Groups))
	for name := range s.Groups {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// TournamentSummary is a listing row for saved tournaments.
type TournamentSummary struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}
