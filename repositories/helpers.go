package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/Dosada05/chess-cup/models"
)

// SQLExecutor is satisfied by both *sql.DB and *sql.Tx.
type SQLExecutor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func checkAffectedRows(result sql.Result, notFoundError error) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if rowsAffected == 0 {
		return notFoundError
	}
	return nil
}

func encodeState(snap *models.TournamentSnapshot) ([]byte, error) {
	data, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("failed to encode tournament state: %w", err)
	}
	return data, nil
}

func decodeState(data []byte) (*models.TournamentSnapshot, error) {
	var snap models.TournamentSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTournamentStateCorrupt, err)
	}
	return &snap, nil
}
