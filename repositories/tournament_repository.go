package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Dosada05/chess-cup/models"
	"github.com/lib/pq"
)

var (
	ErrTournamentNotFound     = errors.New("tournament not found")
	ErrNoCurrentTournament    = errors.New("no current tournament")
	ErrTournamentIDRequired   = errors.New("tournament id is required")
	ErrTournamentConflict     = errors.New("tournament id conflict")
	ErrTournamentStateCorrupt = errors.New("stored tournament state is corrupt")
)

type ListTournamentsFilter struct {
	Limit  int
	Offset int
}

// TournamentRepository stores whole tournament snapshots and remembers which
// one is current.
type TournamentRepository interface {
	// Save upserts the snapshot and, with makeCurrent, marks it current in the
	// same write. A snapshot older than the stored one (by last_updated) does
	// not replace it.
	Save(ctx context.Context, snap *models.TournamentSnapshot, makeCurrent bool) error
	GetByID(ctx context.Context, id string) (*models.TournamentSnapshot, error)
	GetCurrent(ctx context.Context) (*models.TournamentSnapshot, error)
	SetCurrent(ctx context.Context, exec SQLExecutor, id string) error
	// List returns summaries, newest first.
	List(ctx context.Context, filter ListTournamentsFilter) ([]models.TournamentSummary, error)
	Delete(ctx context.Context, id string) error
}

type postgresTournamentRepository struct {
	db *sql.DB
}

func NewPostgresTournamentRepository(db *sql.DB) TournamentRepository {
	return &postgresTournamentRepository{db: db}
}

func (r *postgresTournamentRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresTournamentRepository) Save(ctx context.Context, snap *models.TournamentSnapshot, makeCurrent bool) error {
	if snap == nil || snap.ID == "" {
		return ErrTournamentIDRequired
	}
	state, err := encodeState(snap)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	createdAt, lastUpdated := now, now
	if snap.CreatedAt != nil {
		createdAt = *snap.CreatedAt
	}
	if snap.LastUpdated != nil {
		lastUpdated = *snap.LastUpdated
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO tournaments (id, name, state, created_at, last_updated)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name,
			state = EXCLUDED.state,
			last_updated = EXCLUDED.last_updated
		WHERE tournaments.last_updated <= EXCLUDED.last_updated`

	if _, err = tx.ExecContext(ctx, query, snap.ID, snap.Name, state, createdAt, lastUpdated); err != nil {
		return r.handleTournamentError(err)
	}
	if makeCurrent {
		if err = r.SetCurrent(ctx, tx, snap.ID); err != nil {
			return err
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit tournament save: %w", err)
	}
	return nil
}

func (r *postgresTournamentRepository) GetByID(ctx context.Context, id string) (*models.TournamentSnapshot, error) {
	executor := r.getExecutor(nil)
	query := `SELECT state FROM tournaments WHERE id = $1`

	var state []byte
	err := executor.QueryRowContext(ctx, query, id).Scan(&state)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTournamentNotFound
		}
		return nil, err
	}
	return decodeState(state)
}

func (r *postgresTournamentRepository) GetCurrent(ctx context.Context) (*models.TournamentSnapshot, error) {
	executor := r.getExecutor(nil)
	query := `
		SELECT t.state
		FROM current_tournament c
		JOIN tournaments t ON t.id = c.tournament_id
		WHERE c.slot = 1`

	var state []byte
	err := executor.QueryRowContext(ctx, query).Scan(&state)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoCurrentTournament
		}
		return nil, err
	}
	return decodeState(state)
}

func (r *postgresTournamentRepository) SetCurrent(ctx context.Context, exec SQLExecutor, id string) error {
	executor := r.getExecutor(exec)
	query := `
		INSERT INTO current_tournament (slot, tournament_id, updated_at)
		VALUES (1, $1, NOW())
		ON CONFLICT (slot) DO UPDATE
		SET tournament_id = EXCLUDED.tournament_id,
			updated_at = EXCLUDED.updated_at`

	_, err := executor.ExecContext(ctx, query, id)
	return r.handleTournamentError(err)
}

func (r *postgresTournamentRepository) List(ctx context.Context, filter ListTournamentsFilter) ([]models.TournamentSummary, error) {
	executor := r.getExecutor(nil)
	query := `
		SELECT id, name, created_at
		FROM tournaments
		ORDER BY created_at DESC, id`

	args := []interface{}{}
	argID := 1
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argID)
		args = append(args, filter.Limit)
		argID++
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argID)
		args = append(args, filter.Offset)
	}

	rows, err := executor.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	summaries := make([]models.TournamentSummary, 0)
	for rows.Next() {
		var s models.TournamentSummary
		if err := rows.Scan(&s.ID, &s.Name, &s.CreatedAt); err != nil {
			return nil, err
		}
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return summaries, nil
}

func (r *postgresTournamentRepository) Delete(ctx context.Context, id string) error {
	executor := r.getExecutor(nil)
	result, err := executor.ExecContext(ctx, `DELETE FROM tournaments WHERE id = $1`, id)
	if err != nil {
		return r.handleTournamentError(err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

func (r *postgresTournamentRepository) handleTournamentError(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505":
			return ErrTournamentConflict
		case "23503":
			if pqErr.Constraint == "current_tournament_tournament_id_fkey" {
				return ErrTournamentNotFound
			}
		case "22P02":
			return ErrTournamentStateCorrupt
		}
	}
	return err
}
