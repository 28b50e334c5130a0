package brackets

import "errors"

var (
	ErrInvalidStructure     = errors.New("tournament structure cannot fill the knockout bracket")
	ErrUnsupportedGroupSize = errors.New("only groups of 4 players are supported")
	ErrGroupNotFound        = errors.New("group not found")
	ErrFixtureNotFound      = errors.New("fixture not found")
	ErrPlayerNotFound       = errors.New("player not found")
	ErrMatchNotFound        = errors.New("knockout match not found")
	ErrUnknownStage         = errors.New("unknown knockout stage")
	ErrKnockoutDraw         = errors.New("a knockout match cannot end in a draw")
	ErrEmptyName            = errors.New("player name must not be empty")
	ErrInvalidSnapshot      = errors.New("invalid tournament snapshot")
)
