package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Dosada05/chess-cup/brackets"
	"github.com/Dosada05/chess-cup/models"
	"github.com/Dosada05/chess-cup/repositories"
	"github.com/Dosada05/chess-cup/storage"
)

const (
	// MessageTournamentUpdated is the websocket message type sent after every
	// state change.
	MessageTournamentUpdated = "TOURNAMENT_UPDATED"

	// CurrentRoom receives updates for whichever tournament is current.
	CurrentRoom = "current"
)

// Broadcaster pushes messages to subscribed websocket clients.
type Broadcaster interface {
	BroadcastToRoom(roomID string, message interface{})
}

// SnapshotArchiver keeps an external copy of saved snapshots.
type SnapshotArchiver interface {
	Archive(ctx context.Context, snap *models.TournamentSnapshot) (*storage.UploadResult, error)
	Remove(ctx context.Context, id string) error
}

type UpdateMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
	RoomID  string      `json:"room_id,omitempty"`
}

type SaveResult struct {
	ID         string `json:"id"`
	ArchiveURL string `json:"archive_url,omitempty"`
}

type TournamentService interface {
	State() *TournamentState
	Create(ctx context.Context, name string, totalPlayers int) (*TournamentState, error)
	List(ctx context.Context, limit, offset int) ([]models.TournamentSummary, error)
	Load(ctx context.Context, id string) (*TournamentState, error)
	Delete(ctx context.Context, id string) (*TournamentState, error)
	LoadCurrent(ctx context.Context) (*TournamentState, error)
	Reset(ctx context.Context, totalPlayers int) (*TournamentState, error)

	RecordResult(ctx context.Context, group string, index int, result1, result2 float64) (*TournamentState, error)
	ClearResult(ctx context.Context, group string, index int) (*TournamentState, error)
	SetTiebreak(ctx context.Context, playerID string, points float64) (*TournamentState, error)
	RenamePlayer(ctx context.Context, playerID, name string) (*TournamentState, error)
	RecordKnockoutResult(ctx context.Context, stage models.Stage, matchNumber int, result1, result2 float64) (*TournamentState, error)
	AdvanceStage(ctx context.Context, stage models.Stage) (bool, *TournamentState, error)

	Save(ctx context.Context) (*SaveResult, error)
	SetAutosave(ctx context.Context, enabled bool) *TournamentState
	Export(ctx context.Context) ([]byte, string, error)
	Import(ctx context.Context, data []byte) (*TournamentState, error)

	// Wait blocks until background saves have finished.
	Wait()
}

type TournamentServiceConfig struct {
	MinPlayers          int
	PlayersPerGroup     int
	DefaultTotalPlayers int
	Autosave            bool
	SaveTimeout         time.Duration
}

type tournamentService struct {
	repo        repositories.TournamentRepository
	archiver    SnapshotArchiver
	broadcaster Broadcaster
	cfg         TournamentServiceConfig
	logger      *slog.Logger

	now   func() time.Time
	newID func() string

	mu         sync.Mutex
	tournament *brackets.Tournament
	autosave   bool

	// persistMu orders every write to the repository and archive. It is
	// taken before mu when both are needed.
	persistMu sync.Mutex

	// queued holds the latest unsaved autosave snapshot per tournament id.
	queueMu sync.Mutex
	queued  map[string]*models.TournamentSnapshot
	saving  bool
	pending sync.WaitGroup
}

// NewTournamentService starts with a fresh, unsaved tournament. archiver and
// broadcaster may be nil.
func NewTournamentService(
	repo repositories.TournamentRepository,
	archiver SnapshotArchiver,
	broadcaster Broadcaster,
	cfg TournamentServiceConfig,
	logger *slog.Logger,
) (TournamentService, error) {
	if cfg.SaveTimeout <= 0 {
		cfg.SaveTimeout = 10 * time.Second
	}
	s := &tournamentService{
		repo:        repo,
		archiver:    archiver,
		broadcaster: broadcaster,
		cfg:         cfg,
		logger:      logger,
		now:         time.Now,
		newID:       func() string { return "tournament_" + uuid.NewString() },
		autosave:    cfg.Autosave,
		queued:      make(map[string]*models.TournamentSnapshot),
	}
	t, err := brackets.NewTournament(s.options(cfg.DefaultTotalPlayers))
	if err != nil {
		return nil, translateError(err)
	}
	s.tournament = t
	return s, nil
}

func (s *tournamentService) options(totalPlayers int) brackets.Options {
	return brackets.Options{
		TotalPlayers:    totalPlayers,
		MinPlayers:      s.cfg.MinPlayers,
		PlayersPerGroup: s.cfg.PlayersPerGroup,
		Logger:          s.logger,
	}
}

func (s *tournamentService) defaultName() string {
	return "Tournament " + s.now().Format(time.DateOnly)
}

func (s *tournamentService) State() *TournamentState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return buildTournamentState(s.tournament, s.autosave)
}

// mutate applies fn under the lock, then broadcasts the new state and, with
// autosave on, persists it in the background.
func (s *tournamentService) mutate(ctx context.Context, op string, fn func(t *brackets.Tournament) error) (*TournamentState, error) {
	s.mu.Lock()
	if err := fn(s.tournament); err != nil {
		s.mu.Unlock()
		s.logger.WarnContext(ctx, "tournament operation rejected", slog.String("op", op), slog.Any("error", err))
		return nil, translateError(err)
	}
	if s.autosave {
		s.saveInBackground(s.stampLocked())
	}
	state := buildTournamentState(s.tournament, s.autosave)
	s.mu.Unlock()

	s.broadcast(state)
	return state, nil
}

// stampLocked gives an unsaved tournament an id and name, records the save
// time and returns the snapshot to persist.
func (s *tournamentService) stampLocked() *models.TournamentSnapshot {
	if s.tournament.ID() == "" {
		s.tournament.SetID(s.newID())
	}
	if s.tournament.Name() == "" {
		s.tournament.SetName(s.defaultName())
	}
	s.tournament.Touch(s.now().UTC())
	return s.tournament.Snapshot()
}

// saveInBackground queues snap for the autosave worker, replacing any older
// queued snapshot of the same tournament. One worker runs at a time. Callers
// hold mu so a snapshot is never queued after its tournament was replaced.
func (s *tournamentService) saveInBackground(snap *models.TournamentSnapshot) {
	s.queueMu.Lock()
	defer s.queueMu.Unlock()
	s.queued[snap.ID] = snap
	if s.saving {
		return
	}
	s.saving = true
	s.pending.Add(1)
	go s.saveQueued()
}

func (s *tournamentService) saveQueued() {
	defer s.pending.Done()
	for {
		s.persistMu.Lock()
		snap := s.dequeue()
		if snap == nil {
			s.persistMu.Unlock()
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.SaveTimeout)
		_, err := s.persistLocked(ctx, snap, s.isCurrent(snap.ID))
		cancel()
		s.persistMu.Unlock()
		if err != nil {
			s.logger.Error("autosave failed", slog.String("tournament_id", snap.ID), slog.Any("error", err))
		}
	}
}

// dequeue pops any queued snapshot, or marks the worker finished when the
// queue is empty.
func (s *tournamentService) dequeue() *models.TournamentSnapshot {
	s.queueMu.Lock()
	defer s.queueMu.Unlock()
	for id, snap := range s.queued {
		delete(s.queued, id)
		return snap
	}
	s.saving = false
	return nil
}

func (s *tournamentService) dropQueued(id string) {
	s.queueMu.Lock()
	defer s.queueMu.Unlock()
	delete(s.queued, id)
}

func (s *tournamentService) isCurrent(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tournament.ID() == id
}

// persist saves snap, marking it current only while it is still the
// service's current tournament.
func (s *tournamentService) persist(ctx context.Context, snap *models.TournamentSnapshot) (*SaveResult, error) {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()
	return s.persistLocked(ctx, snap, s.isCurrent(snap.ID))
}

// persistLocked writes the snapshot to the repository and, when configured,
// to the archive at the same time. The caller holds persistMu.
func (s *tournamentService) persistLocked(ctx context.Context, snap *models.TournamentSnapshot, makeCurrent bool) (*SaveResult, error) {
	result := &SaveResult{ID: snap.ID}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := s.repo.Save(gCtx, snap, makeCurrent); err != nil {
			return fmt.Errorf("saving tournament %s: %w", snap.ID, err)
		}
		return nil
	})
	if s.archiver != nil {
		g.Go(func() error {
			res, err := s.archiver.Archive(gCtx, snap)
			if err != nil {
				return err
			}
			result.ArchiveURL = res.Location
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistenceFailed, translateError(err))
	}

	s.logger.Info("tournament saved", slog.String("tournament_id", snap.ID), slog.String("archive_url", result.ArchiveURL))
	return result, nil
}

func (s *tournamentService) broadcast(state *TournamentState) {
	if s.broadcaster == nil {
		return
	}
	s.broadcaster.BroadcastToRoom(CurrentRoom, UpdateMessage{Type: MessageTournamentUpdated, Payload: state, RoomID: CurrentRoom})
	if state.ID != "" {
		s.broadcaster.BroadcastToRoom(state.ID, UpdateMessage{Type: MessageTournamentUpdated, Payload: state, RoomID: state.ID})
	}
}

// replace swaps in a new current tournament and announces it.
func (s *tournamentService) replace(t *brackets.Tournament) *TournamentState {
	s.mu.Lock()
	s.tournament = t
	state := buildTournamentState(t, s.autosave)
	s.mu.Unlock()
	s.broadcast(state)
	return state
}

// Create starts a new named tournament and saves it right away. The current
// tournament is only replaced once the save succeeded.
func (s *tournamentService) Create(ctx context.Context, name string, totalPlayers int) (*TournamentState, error) {
	if totalPlayers <= 0 {
		totalPlayers = s.cfg.DefaultTotalPlayers
	}
	t, err := brackets.NewTournament(s.options(totalPlayers))
	if err != nil {
		return nil, translateError(err)
	}
	if name == "" {
		name = s.defaultName()
	}
	t.SetID(s.newID())
	t.SetName(name)
	t.Touch(s.now().UTC())

	ctx, cancel := context.WithTimeout(ctx, s.cfg.SaveTimeout)
	defer cancel()

	s.persistMu.Lock()
	defer s.persistMu.Unlock()
	if _, err := s.persistLocked(ctx, t.Snapshot(), true); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "tournament created", slog.String("tournament_id", t.ID()), slog.String("name", name))
	return s.replace(t), nil
}

func (s *tournamentService) List(ctx context.Context, limit, offset int) ([]models.TournamentSummary, error) {
	if limit < 0 || offset < 0 {
		return nil, fmt.Errorf("%w: limit and offset must not be negative", ErrValidationFailed)
	}
	summaries, err := s.repo.List(ctx, repositories.ListTournamentsFilter{Limit: limit, Offset: offset})
	if err != nil {
		return nil, translateError(err)
	}
	return summaries, nil
}

// Load makes a saved tournament current.
func (s *tournamentService) Load(ctx context.Context, id string) (*TournamentState, error) {
	snap, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, translateError(err)
	}
	t, err := brackets.FromSnapshot(snap, s.options(snap.TotalPlayers))
	if err != nil {
		return nil, translateError(err)
	}

	s.persistMu.Lock()
	defer s.persistMu.Unlock()
	if err := s.repo.SetCurrent(ctx, nil, id); err != nil {
		return nil, translateError(err)
	}
	s.logger.InfoContext(ctx, "tournament loaded", slog.String("tournament_id", id))
	return s.replace(t), nil
}

// Delete removes a saved tournament and its archived copies. Deleting the
// current tournament starts a fresh one in its place.
func (s *tournamentService) Delete(ctx context.Context, id string) (*TournamentState, error) {
	if id == "" || !storage.ValidTournamentID(id) {
		return nil, fmt.Errorf("%w: invalid tournament id %q", ErrValidationFailed, id)
	}

	s.persistMu.Lock()
	defer s.persistMu.Unlock()
	defer s.dropQueued(id)

	ctx, cancel := context.WithTimeout(ctx, s.cfg.SaveTimeout)
	defer cancel()
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.repo.Delete(gCtx, id)
	})
	if s.archiver != nil {
		g.Go(func() error {
			return s.archiver.Remove(gCtx, id)
		})
	}
	if err := g.Wait(); err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, translateError(err)
		}
		return nil, fmt.Errorf("%w: %w", ErrPersistenceFailed, translateError(err))
	}
	s.logger.InfoContext(ctx, "tournament deleted", slog.String("tournament_id", id))

	if !s.isCurrent(id) {
		return s.State(), nil
	}
	fresh, err := brackets.NewTournament(s.options(s.cfg.DefaultTotalPlayers))
	if err != nil {
		return nil, translateError(err)
	}
	return s.replace(fresh), nil
}

// LoadCurrent restores whichever tournament was current when the store was
// last written. A store without one keeps the fresh tournament.
func (s *tournamentService) LoadCurrent(ctx context.Context) (*TournamentState, error) {
	snap, err := s.repo.GetCurrent(ctx)
	if err != nil {
		if errors.Is(err, repositories.ErrNoCurrentTournament) {
			s.logger.InfoContext(ctx, "no saved tournament, starting fresh")
			return s.State(), nil
		}
		return nil, translateError(err)
	}
	t, err := brackets.FromSnapshot(snap, s.options(snap.TotalPlayers))
	if err != nil {
		return nil, translateError(err)
	}
	s.logger.InfoContext(ctx, "current tournament restored", slog.String("tournament_id", snap.ID))
	return s.replace(t), nil
}

func (s *tournamentService) Reset(ctx context.Context, totalPlayers int) (*TournamentState, error) {
	if totalPlayers <= 0 {
		return nil, fmt.Errorf("%w: total_players must be positive", ErrValidationFailed)
	}
	return s.mutate(ctx, "reset", func(t *brackets.Tournament) error {
		return t.Reset(totalPlayers)
	})
}

func (s *tournamentService) RecordResult(ctx context.Context, group string, index int, result1, result2 float64) (*TournamentState, error) {
	return s.mutate(ctx, "record_result", func(t *brackets.Tournament) error {
		return t.RecordResult(group, index, result1, result2)
	})
}

func (s *tournamentService) ClearResult(ctx context.Context, group string, index int) (*TournamentState, error) {
	return s.mutate(ctx, "clear_result", func(t *brackets.Tournament) error {
		return t.ClearResult(group, index)
	})
}

func (s *tournamentService) SetTiebreak(ctx context.Context, playerID string, points float64) (*TournamentState, error) {
	return s.mutate(ctx, "set_tiebreak", func(t *brackets.Tournament) error {
		return t.SetTiebreak(playerID, points)
	})
}

func (s *tournamentService) RenamePlayer(ctx context.Context, playerID, name string) (*TournamentState, error) {
	return s.mutate(ctx, "rename_player", func(t *brackets.Tournament) error {
		return t.RenamePlayer(playerID, name)
	})
}

func (s *tournamentService) RecordKnockoutResult(ctx context.Context, stage models.Stage, matchNumber int, result1, result2 float64) (*TournamentState, error) {
	return s.mutate(ctx, "record_knockout_result", func(t *brackets.Tournament) error {
		return t.RecordKnockoutResult(stage, matchNumber, result1, result2)
	})
}

func (s *tournamentService) AdvanceStage(ctx context.Context, stage models.Stage) (bool, *TournamentState, error) {
	var advanced bool
	state, err := s.mutate(ctx, "advance_stage", func(t *brackets.Tournament) error {
		var err error
		advanced, err = t.AdvanceStage(stage)
		return err
	})
	return advanced, state, err
}

// Save persists the current tournament regardless of the autosave setting.
func (s *tournamentService) Save(ctx context.Context) (*SaveResult, error) {
	s.mu.Lock()
	snap := s.stampLocked()
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, s.cfg.SaveTimeout)
	defer cancel()
	return s.persist(ctx, snap)
}

func (s *tournamentService) SetAutosave(ctx context.Context, enabled bool) *TournamentState {
	s.mu.Lock()
	s.autosave = enabled
	state := buildTournamentState(s.tournament, enabled)
	s.mu.Unlock()
	s.logger.InfoContext(ctx, "autosave toggled", slog.Bool("enabled", enabled))
	s.broadcast(state)
	return state
}

// Export returns the current snapshot as indented JSON with its download
// file name.
func (s *tournamentService) Export(ctx context.Context) ([]byte, string, error) {
	s.mu.Lock()
	snap := s.tournament.Snapshot()
	s.mu.Unlock()

	data, err := storage.ExportSnapshot(snap)
	if err != nil {
		return nil, "", translateError(err)
	}
	return data, storage.ExportFileName(s.now()), nil
}

// Import replaces the current tournament with an exported file. Files
// without an id get a new one.
func (s *tournamentService) Import(ctx context.Context, data []byte) (*TournamentState, error) {
	snap, err := storage.ImportSnapshot(data)
	if err != nil {
		return nil, translateError(err)
	}
	t, err := brackets.FromSnapshot(snap, s.options(snap.TotalPlayers))
	if err != nil {
		return nil, translateError(err)
	}
	if t.ID() == "" {
		t.SetID(s.newID())
	}
	if t.Name() == "" {
		t.SetName(s.defaultName())
	}
	s.logger.InfoContext(ctx, "tournament imported", slog.String("tournament_id", t.ID()))

	state := s.replace(t)

	s.mu.Lock()
	if s.autosave && s.tournament == t {
		s.saveInBackground(s.stampLocked())
	}
	s.mu.Unlock()
	return state, nil
}

func (s *tournamentService) Wait() {
	s.pending.Wait()
}
