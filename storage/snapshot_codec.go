package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Dosada05/chess-cup/models"
)

var ErrInvalidSnapshot = errors.New("invalid tournament file")

// ExportFileName is the download name for a snapshot taken at t.
func ExportFileName(t time.Time) string {
	return fmt.Sprintf("chess-tournament-%s.json", t.Format(time.DateOnly))
}

// ExportSnapshot encodes a snapshot as indented JSON.
func ExportSnapshot(snap *models.TournamentSnapshot) ([]byte, error) {
	if snap == nil {
		return nil, fmt.Errorf("%w: nothing to export", ErrInvalidSnapshot)
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding snapshot: %w", err)
	}
	return data, nil
}

// ImportSnapshot decodes a previously exported snapshot and checks that it has
// the shape a tournament can be rebuilt from.
func ImportSnapshot(data []byte) (*models.TournamentSnapshot, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty file", ErrInvalidSnapshot)
	}

	var snap models.TournamentSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	if err := validateSnapshot(&snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

func validateSnapshot(snap *models.TournamentSnapshot) error {
	if snap.TotalPlayers <= 0 {
		return fmt.Errorf("%w: total_players must be positive", ErrInvalidSnapshot)
	}
	if len(snap.Groups) == 0 {
		return fmt.Errorf("%w: no groups", ErrInvalidSnapshot)
	}
	if !ValidTournamentID(snap.ID) {
		return fmt.Errorf("%w: id %q", ErrInvalidSnapshot, snap.ID)
	}

	seen := make(map[string]string)
	for _, name := range snap.GroupNames() {
		for _, p := range snap.Groups[name] {
			if p == nil || p.ID == "" {
				return fmt.Errorf("%w: group %s has a player without id", ErrInvalidSnapshot, name)
			}
			if other, dup := seen[p.ID]; dup {
				return fmt.Errorf("%w: player %s appears in groups %s and %s", ErrInvalidSnapshot, p.ID, other, name)
			}
			seen[p.ID] = name
		}
	}

	for name, fixtures := range snap.Fixtures {
		if _, ok := snap.Groups[name]; !ok {
			return fmt.Errorf("%w: fixtures for unknown group %s", ErrInvalidSnapshot, name)
		}
		for i, f := range fixtures {
			if f == nil {
				return fmt.Errorf("%w: group %s fixture %d is empty", ErrInvalidSnapshot, name, i)
			}
		}
	}

	for _, m := range snap.Bracket {
		if m == nil || !m.Stage.IsValid() {
			return fmt.Errorf("%w: bracket match with unknown stage", ErrInvalidSnapshot)
		}
	}
	return nil
}
