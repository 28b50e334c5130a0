package brackets

import "fmt"

const (
	// BracketSize is the number of knockout entrants. The bracket always
	// starts at the round of 16.
	BracketSize = 16

	// PlayersPerGroup is the only group size the scheduler supports.
	PlayersPerGroup = 4

	// MaxQualifiedPerGroup caps direct qualifiers from one group.
	MaxQualifiedPerGroup = 2

	DefaultMinPlayers = 24
)

// Structure is the shape of a cup derived from its player count. It is
// recomputed whenever it is needed and never stored on its own.
type Structure struct {
	NumGroups         int `json:"num_groups"`
	QualifiedPerGroup int `json:"qualified_per_group"`
	NumWildcards      int `json:"num_wildcards"`
}

// DirectQualifiers is the number of bracket slots filled by group finishers.
func (s Structure) DirectQualifiers() int {
	return s.NumGroups * s.QualifiedPerGroup
}

// ClampPlayers raises totalPlayers to the configured minimum.
func ClampPlayers(totalPlayers, minPlayers int) int {
	if totalPlayers < minPlayers {
		return minPlayers
	}
	return totalPlayers
}

// CalculateStructure derives group count, direct qualifiers per group and the
// number of third-place wildcards needed to reach BracketSize entrants.
// totalPlayers is expected to be clamped already.
func CalculateStructure(totalPlayers, playersPerGroup int) (Structure, error) {
	if playersPerGroup != PlayersPerGroup {
		return Structure{}, fmt.Errorf("%w: got %d", ErrUnsupportedGroupSize, playersPerGroup)
	}
	if totalPlayers <= 0 {
		return Structure{}, fmt.Errorf("%w: %d players", ErrInvalidStructure, totalPlayers)
	}

	numGroups := (totalPlayers + playersPerGroup - 1) / playersPerGroup
	qualified := min(MaxQualifiedPerGroup, BracketSize/numGroups)
	wildcards := BracketSize - numGroups*qualified

	if qualified < 1 || wildcards < 0 {
		return Structure{}, fmt.Errorf("%w: %d groups, %d qualifiers per group, %d wildcards",
			ErrInvalidStructure, numGroups, qualified, wildcards)
	}

	return Structure{
		NumGroups:         numGroups,
		QualifiedPerGroup: qualified,
		NumWildcards:      wildcards,
	}, nil
}

// GroupName returns the letter name of the i-th group: A, B, C...
func GroupName(i int) string {
	return string(rune('A' + i))
}
