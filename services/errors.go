package services

import (
	"errors"
	"fmt"

	"github.com/Dosada05/chess-cup/brackets"
	"github.com/Dosada05/chess-cup/repositories"
	"github.com/Dosada05/chess-cup/storage"
)

var (
	ErrNotFound         = errors.New("requested resource not found")
	ErrValidationFailed = errors.New("validation failed")
	ErrConflict         = errors.New("operation conflicts with the tournament state")

	ErrTournamentNotFound = errors.New("tournament not found")
	ErrPlayerNotFound     = errors.New("player not found")
	ErrGroupNotFound      = errors.New("group not found")
	ErrFixtureNotFound    = errors.New("fixture not found")
	ErrMatchNotFound      = errors.New("knockout match not found")

	ErrInvalidStage       = errors.New("invalid knockout stage")
	ErrInvalidPlayerCount = errors.New("player count cannot fill the knockout bracket")
	ErrInvalidImport      = errors.New("tournament file could not be imported")
	ErrKnockoutDraw       = errors.New("knockout matches need a winner")
	ErrPersistenceFailed  = errors.New("tournament could not be saved")
)

// translateError maps lower layer errors onto service errors while keeping
// the cause in the chain.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	var target error
	switch {
	case errors.Is(err, brackets.ErrGroupNotFound):
		target = ErrGroupNotFound
	case errors.Is(err, brackets.ErrFixtureNotFound):
		target = ErrFixtureNotFound
	case errors.Is(err, brackets.ErrPlayerNotFound):
		target = ErrPlayerNotFound
	case errors.Is(err, brackets.ErrMatchNotFound):
		target = ErrMatchNotFound
	case errors.Is(err, brackets.ErrUnknownStage):
		target = ErrInvalidStage
	case errors.Is(err, brackets.ErrKnockoutDraw):
		target = ErrKnockoutDraw
	case errors.Is(err, brackets.ErrEmptyName), errors.Is(err, storage.ErrInvalidTournamentID):
		target = ErrValidationFailed
	case errors.Is(err, brackets.ErrInvalidStructure), errors.Is(err, brackets.ErrUnsupportedGroupSize):
		target = ErrInvalidPlayerCount
	case errors.Is(err, brackets.ErrInvalidSnapshot), errors.Is(err, storage.ErrInvalidSnapshot),
		errors.Is(err, repositories.ErrTournamentStateCorrupt):
		target = ErrInvalidImport
	case errors.Is(err, repositories.ErrTournamentNotFound), errors.Is(err, repositories.ErrNoCurrentTournament):
		target = ErrTournamentNotFound
	case errors.Is(err, repositories.ErrTournamentConflict):
		target = ErrConflict
	default:
		return err
	}
	return fmt.Errorf("%w: %w", target, err)
}
