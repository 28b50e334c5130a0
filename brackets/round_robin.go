package brackets

import (
	"fmt"

	"github.com/Dosada05/chess-cup/models"
)

// fourPlayerRounds holds seat pairings per round. Every round is a perfect
// matching and every pair meets exactly once.
var fourPlayerRounds = [3][2][2]int{
	{{0, 3}, {1, 2}},
	{{0, 2}, {1, 3}},
	{{0, 1}, {2, 3}},
}

// GroupRounds is the number of rounds in a 4-player group.
const GroupRounds = len(fourPlayerRounds)

type RoundRobinGenerator struct{}

func NewRoundRobinGenerator() FixtureGenerator {
	return &RoundRobinGenerator{}
}

func (g *RoundRobinGenerator) GetName() string {
	return "RoundRobin"
}

// GenerateFixtures emits the 6 fixtures of a 4-player group across 3 rounds.
// Seats follow the creation order of the players, not their rank, so the same
// group always yields the same schedule.
func (g *RoundRobinGenerator) GenerateFixtures(players []*models.Player) ([]*models.Fixture, error) {
	if len(players) != PlayersPerGroup {
		return nil, fmt.Errorf("RoundRobinGenerator: %w (found %d)", ErrUnsupportedGroupSize, len(players))
	}

	fixtures := make([]*models.Fixture, 0, GroupRounds*2)
	for r, pairs := range fourPlayerRounds {
		for _, seats := range pairs {
			fixtures = append(fixtures, &models.Fixture{
				Player1ID: players[seats[0]].ID,
				Player2ID: players[seats[1]].ID,
				Round:     r + 1,
			})
		}
	}
	return fixtures, nil
}

// FixturesByRound filters a group's fixtures down to one round.
func FixturesByRound(fixtures []*models.Fixture, round int) []*models.Fixture {
	out := make([]*models.Fixture, 0, 2)
	for _, f := range fixtures {
		if f.Round == round {
			out = append(out, f)
		}
	}
	return out
}
