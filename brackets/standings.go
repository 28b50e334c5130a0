package brackets

import (
	"sort"

	"github.com/Dosada05/chess-cup/models"
)

const (
	winPoints  = 1.0
	drawPoints = 0.5
)

// ValidateResult keeps 0, 0.5 and 1 and turns anything else into 0.
func ValidateResult(v float64) float64 {
	switch v {
	case 0, 0.5, 1:
		return v
	default:
		return 0
	}
}

// RecomputeStandings rebuilds points and played counts of a group from its
// fixtures. Only fixtures with both results count. Tiebreak points are left
// alone. Calling it twice on the same data gives the same numbers.
func RecomputeStandings(players []*models.Player, fixtures []*models.Fixture) {
	index := make(map[string]*models.Player, len(players))
	for _, p := range players {
		p.Points = 0
		p.Played = 0
		index[p.ID] = p
	}

	for _, f := range fixtures {
		if !f.IsPlayed() {
			continue
		}
		p1 := index[f.Player1ID]
		p2 := index[f.Player2ID]
		if p1 == nil || p2 == nil {
			continue
		}
		p1.Played++
		p2.Played++

		switch {
		case *f.Result1 > *f.Result2:
			p1.Points += winPoints
		case *f.Result1 < *f.Result2:
			p2.Points += winPoints
		default:
			p1.Points += drawPoints
			p2.Points += drawPoints
		}
	}
}

// RankPlayers returns a copy ordered by points, then tiebreak points, both
// descending. Players equal on both keys keep their input order; there is no
// head-to-head or further criterion.
func RankPlayers(players []*models.Player) []*models.Player {
	ranked := make([]*models.Player, len(players))
	copy(ranked, players)
	sort.SliceStable(ranked, func(i, j int) bool {
		return rankedAhead(ranked[i], ranked[j])
	})
	return ranked
}

func rankedAhead(a, b *models.Player) bool {
	if a.Points != b.Points {
		return a.Points > b.Points
	}
	return a.TiebreakPoints > b.TiebreakPoints
}
