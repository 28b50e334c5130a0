package brackets

import "github.com/Dosada05/chess-cup/models"

// FixtureGenerator builds the group-stage schedule for one group.
type FixtureGenerator interface {
	GenerateFixtures(players []*models.Player) ([]*models.Fixture, error)

	GetName() string
}
