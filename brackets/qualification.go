package brackets

import "github.com/Dosada05/chess-cup/models"

// Qualification is the outcome of the group stage as it currently stands.
type Qualification struct {
	Direct      []*models.Player `json:"direct"`
	ThirdPlaced []*models.Player `json:"third_placed"`
	BestThird   []*models.Player `json:"best_third"`
	Wildcards   []*models.Player `json:"wildcards"`
	Entrants    []*models.Player `json:"entrants"`
}

// SelectQualifiers ranks every group, takes its top qualifiedPerGroup players
// and keeps the next one as a third-place candidate. Candidates are ranked
// across groups with the same comparator and the best numWildcards of them
// join the bracket after the direct qualifiers. Groups are expected in
// alphabetical order.
func SelectQualifiers(groups []*models.Group, qualifiedPerGroup, numWildcards int) Qualification {
	q := Qualification{
		Direct:      make([]*models.Player, 0, len(groups)*qualifiedPerGroup),
		ThirdPlaced: make([]*models.Player, 0, len(groups)),
	}

	for _, g := range groups {
		ranked := RankPlayers(g.Players)
		for i := 0; i < qualifiedPerGroup && i < len(ranked); i++ {
			q.Direct = append(q.Direct, ranked[i])
		}
		if qualifiedPerGroup < len(ranked) {
			q.ThirdPlaced = append(q.ThirdPlaced, ranked[qualifiedPerGroup])
		}
	}

	q.BestThird = RankPlayers(q.ThirdPlaced)
	q.Wildcards = q.BestThird[:min(max(numWildcards, 0), len(q.BestThird))]

	q.Entrants = make([]*models.Player, 0, len(q.Direct)+len(q.Wildcards))
	q.Entrants = append(q.Entrants, q.Direct...)
	q.Entrants = append(q.Entrants, q.Wildcards...)
	return q
}

// Complete reports whether the entrant list can seed the bracket.
func (q Qualification) Complete() bool {
	return len(q.Entrants) == BracketSize
}

// StatusOf tells whether a player is in the bracket and by which route.
func (q Qualification) StatusOf(playerID string) models.QualificationStatus {
	for _, p := range q.Direct {
		if p.ID == playerID {
			return models.QualifiedDirect
		}
	}
	for _, p := range q.Wildcards {
		if p.ID == playerID {
			return models.QualifiedWildcard
		}
	}
	return models.NotQualified
}
