package repositories

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Dosada05/chess-cup/models"
)

type memoryTournament struct {
	state       []byte
	name        string
	createdAt   time.Time
	lastUpdated time.Time
}

type memoryTournamentRepository struct {
	mu        sync.RWMutex
	items     map[string]memoryTournament
	currentID string
}

// NewMemoryTournamentRepository keeps snapshots in process memory. It is used
// when no database is configured; contents are lost on restart.
func NewMemoryTournamentRepository() TournamentRepository {
	return &memoryTournamentRepository{items: make(map[string]memoryTournament)}
}

func (r *memoryTournamentRepository) Save(_ context.Context, snap *models.TournamentSnapshot, makeCurrent bool) error {
	if snap == nil || snap.ID == "" {
		return ErrTournamentIDRequired
	}
	state, err := encodeState(snap)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	createdAt, lastUpdated := now, now
	if snap.LastUpdated != nil {
		lastUpdated = *snap.LastUpdated
	}
	existing, exists := r.items[snap.ID]
	switch {
	case exists && existing.lastUpdated.After(lastUpdated):
	case exists:
		r.items[snap.ID] = memoryTournament{state: state, name: snap.Name, createdAt: existing.createdAt, lastUpdated: lastUpdated}
	default:
		if snap.CreatedAt != nil {
			createdAt = *snap.CreatedAt
		}
		r.items[snap.ID] = memoryTournament{state: state, name: snap.Name, createdAt: createdAt, lastUpdated: lastUpdated}
	}
	if makeCurrent {
		r.currentID = snap.ID
	}
	return nil
}

func (r *memoryTournamentRepository) GetByID(_ context.Context, id string) (*models.TournamentSnapshot, error) {
	r.mu.RLock()
	item, ok := r.items[id]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrTournamentNotFound
	}
	return decodeState(item.state)
}

func (r *memoryTournamentRepository) GetCurrent(ctx context.Context) (*models.TournamentSnapshot, error) {
	r.mu.RLock()
	id := r.currentID
	r.mu.RUnlock()
	if id == "" {
		return nil, ErrNoCurrentTournament
	}
	return r.GetByID(ctx, id)
}

func (r *memoryTournamentRepository) SetCurrent(_ context.Context, _ SQLExecutor, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[id]; !ok {
		return ErrTournamentNotFound
	}
	r.currentID = id
	return nil
}

func (r *memoryTournamentRepository) List(_ context.Context, filter ListTournamentsFilter) ([]models.TournamentSummary, error) {
	r.mu.RLock()
	summaries := make([]models.TournamentSummary, 0, len(r.items))
	for id, item := range r.items {
		summaries = append(summaries, models.TournamentSummary{ID: id, Name: item.name, CreatedAt: item.createdAt})
	}
	r.mu.RUnlock()

	sort.Slice(summaries, func(i, j int) bool {
		if !summaries[i].CreatedAt.Equal(summaries[j].CreatedAt) {
			return summaries[i].CreatedAt.After(summaries[j].CreatedAt)
		}
		return summaries[i].ID < summaries[j].ID
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(summaries) {
			return []models.TournamentSummary{}, nil
		}
		summaries = summaries[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(summaries) {
		summaries = summaries[:filter.Limit]
	}
	return summaries, nil
}

func (r *memoryTournamentRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[id]; !ok {
		return ErrTournamentNotFound
	}
	delete(r.items, id)
	if r.currentID == id {
		r.currentID = ""
	}
	return nil
}
