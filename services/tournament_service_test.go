package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dosada05/chess-cup/models"
	"github.com/Dosada05/chess-cup/repositories"
	"github.com/Dosada05/chess-cup/storage"
)

type recordingBroadcaster struct {
	mu       sync.Mutex
	messages map[string][]UpdateMessage
}

func (b *recordingBroadcaster) BroadcastToRoom(roomID string, message interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.messages == nil {
		b.messages = map[string][]UpdateMessage{}
	}
	b.messages[roomID] = append(b.messages[roomID], message.(UpdateMessage))
}

func (b *recordingBroadcaster) count(room string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.messages[room])
}

type stubArchiver struct {
	mu      sync.Mutex
	calls   int
	removed []string
	err     error
}

func (a *stubArchiver) Archive(_ context.Context, snap *models.TournamentSnapshot) (*storage.UploadResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	if a.err != nil {
		return nil, a.err
	}
	return &storage.UploadResult{Key: snap.ID, Location: "https://files.example.com/" + snap.ID}, nil
}

func (a *stubArchiver) Remove(_ context.Context, id string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.removed = append(a.removed, id)
	return a.err
}

// stallingRepo holds one armed Save until release is closed.
type stallingRepo struct {
	repositories.TournamentRepository

	mu      sync.Mutex
	armed   bool
	stalled chan struct{}
	release chan struct{}
}

func newStallingRepo() *stallingRepo {
	return &stallingRepo{
		TournamentRepository: repositories.NewMemoryTournamentRepository(),
		stalled:              make(chan struct{}),
		release:              make(chan struct{}),
	}
}

func (r *stallingRepo) stallNextSave() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.armed = true
}

func (r *stallingRepo) Save(ctx context.Context, snap *models.TournamentSnapshot, makeCurrent bool) error {
	r.mu.Lock()
	stall := r.armed
	r.armed = false
	r.mu.Unlock()
	if stall {
		close(r.stalled)
		<-r.release
	}
	return r.TournamentRepository.Save(ctx, snap, makeCurrent)
}

func (r *stallingRepo) waitStalled(t *testing.T) {
	t.Helper()
	select {
	case <-r.stalled:
	case <-time.After(time.Second):
		t.Fatal("save never started")
	}
}

func playerName(snap *models.TournamentSnapshot, group, id string) string {
	for _, p := range snap.Groups[group] {
		if p.ID == id {
			return p.Name
		}
	}
	return ""
}

var fixedNow = time.Date(2024, 6, 15, 9, 30, 0, 0, time.UTC)

func newTestService(t *testing.T, repo repositories.TournamentRepository, archiver SnapshotArchiver, autosave bool) (*tournamentService, *recordingBroadcaster) {
	t.Helper()
	b := &recordingBroadcaster{}
	svc, err := NewTournamentService(repo, archiver, b, TournamentServiceConfig{
		MinPlayers:          24,
		PlayersPerGroup:     4,
		DefaultTotalPlayers: 24,
		Autosave:            autosave,
		SaveTimeout:         time.Second,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	s := svc.(*tournamentService)
	s.now = func() time.Time { return fixedNow }
	return s, b
}

func TestNewServiceStartsFresh(t *testing.T) {
	s, _ := newTestService(t, repositories.NewMemoryTournamentRepository(), nil, true)

	state := s.State()
	assert.Empty(t, state.ID)
	assert.Equal(t, 24, state.TotalPlayers)
	assert.Equal(t, models.StageGroup, state.Stage)
	assert.True(t, state.Autosave)
	require.Len(t, state.Groups, 6)
	require.Len(t, state.Groups[0].Rounds, 3)
	assert.Equal(t, "A1", state.Groups[0].Rounds[0].Fixtures[0].Player1Name)
	assert.Equal(t, 0, state.Groups[0].Rounds[0].Fixtures[0].Index)
	assert.Equal(t, 5, state.Groups[0].Rounds[2].Fixtures[1].Index)
}

func TestAutosavePersistsAndBroadcasts(t *testing.T) {
	ctx := context.Background()
	repo := repositories.NewMemoryTournamentRepository()
	s, b := newTestService(t, repo, nil, true)

	state, err := s.RecordResult(ctx, "A", 0, 1, 0)
	require.NoError(t, err)
	s.Wait()

	assert.Contains(t, state.ID, "tournament_")
	assert.Equal(t, "Tournament 2024-06-15", state.Name)
	assert.Equal(t, models.StageRound16, state.Stage)
	assert.Equal(t, 1.0, state.Groups[0].Standings[0].Player.Points)

	saved, err := repo.GetCurrent(ctx)
	require.NoError(t, err)
	assert.Equal(t, state.ID, saved.ID)
	assert.True(t, saved.Fixtures["A"][0].IsPlayed())
	assert.Len(t, saved.Bracket, 8)

	assert.Equal(t, 1, b.count(CurrentRoom))
	assert.Equal(t, 1, b.count(state.ID))
	assert.Equal(t, MessageTournamentUpdated, b.messages[CurrentRoom][0].Type)
}

func TestAutosaveOffDoesNotPersist(t *testing.T) {
	ctx := context.Background()
	repo := repositories.NewMemoryTournamentRepository()
	s, _ := newTestService(t, repo, nil, false)

	_, err := s.RecordResult(ctx, "A", 0, 1, 0)
	require.NoError(t, err)
	s.Wait()

	_, err = repo.GetCurrent(ctx)
	assert.ErrorIs(t, err, repositories.ErrNoCurrentTournament)

	state := s.SetAutosave(ctx, true)
	assert.True(t, state.Autosave)
	_, err = s.SetTiebreak(ctx, "B3", 1)
	require.NoError(t, err)
	s.Wait()

	saved, err := repo.GetCurrent(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1.0, saved.Groups["B"][2].TiebreakPoints)
}

func TestExplicitSaveArchives(t *testing.T) {
	ctx := context.Background()
	archiver := &stubArchiver{}
	s, _ := newTestService(t, repositories.NewMemoryTournamentRepository(), archiver, false)

	res, err := s.Save(ctx)
	require.NoError(t, err)
	assert.Contains(t, res.ID, "tournament_")
	assert.Equal(t, "https://files.example.com/"+res.ID, res.ArchiveURL)
	assert.Equal(t, 1, archiver.calls)

	state := s.State()
	require.NotNil(t, state.CreatedAt)
	assert.True(t, state.CreatedAt.Equal(fixedNow))
}

func TestSaveFailureIsReported(t *testing.T) {
	archiver := &stubArchiver{err: errors.New("bucket down")}
	s, _ := newTestService(t, repositories.NewMemoryTournamentRepository(), archiver, false)

	_, err := s.Save(context.Background())
	assert.ErrorIs(t, err, ErrPersistenceFailed)
}

func TestOperationErrorsAreTranslated(t *testing.T) {
	ctx := context.Background()
	s, b := newTestService(t, repositories.NewMemoryTournamentRepository(), nil, false)

	_, err := s.RecordResult(ctx, "Z", 0, 1, 0)
	assert.ErrorIs(t, err, ErrGroupNotFound)

	_, err = s.ClearResult(ctx, "A", 17)
	assert.ErrorIs(t, err, ErrFixtureNotFound)

	_, err = s.RenamePlayer(ctx, "A1", " ")
	assert.ErrorIs(t, err, ErrValidationFailed)

	_, err = s.SetTiebreak(ctx, "Q1", 1)
	assert.ErrorIs(t, err, ErrPlayerNotFound)

	_, err = s.Reset(ctx, 100)
	assert.ErrorIs(t, err, ErrInvalidPlayerCount)

	_, err = s.Reset(ctx, 0)
	assert.ErrorIs(t, err, ErrValidationFailed)

	_, err = s.RecordKnockoutResult(ctx, models.StageRound16, 1, 1, 0)
	assert.ErrorIs(t, err, ErrMatchNotFound)

	_, _, err = s.AdvanceStage(ctx, models.Stage("group"))
	assert.ErrorIs(t, err, ErrInvalidStage)

	_, err = s.RecordResult(ctx, "A", 0, 1, 0)
	require.NoError(t, err)
	_, err = s.RecordKnockoutResult(ctx, models.StageRound16, 1, 0.5, 0.5)
	assert.ErrorIs(t, err, ErrKnockoutDraw)

	assert.Equal(t, 1, b.count(CurrentRoom), "only successful edits are broadcast")
}

func TestAdvanceStageReportsProgress(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestService(t, repositories.NewMemoryTournamentRepository(), nil, false)

	_, err := s.RecordResult(ctx, "A", 0, 1, 0)
	require.NoError(t, err)

	advanced, state, err := s.AdvanceStage(ctx, models.StageRound16)
	require.NoError(t, err)
	assert.False(t, advanced)
	assert.Equal(t, models.StageRound16, state.Stage)

	for i := 1; i <= 8; i++ {
		state, err = s.RecordKnockoutResult(ctx, models.StageRound16, i, 1, 0)
		require.NoError(t, err)
	}
	assert.Equal(t, models.StageQuarterfinal, state.Stage)
}

func TestCreateListAndLoad(t *testing.T) {
	ctx := context.Background()
	repo := repositories.NewMemoryTournamentRepository()
	s, _ := newTestService(t, repo, nil, true)

	spring, err := s.Create(ctx, "Spring Cup", 0)
	require.NoError(t, err)
	_, err = s.RenamePlayer(ctx, "A1", "Alice")
	require.NoError(t, err)
	s.Wait()

	s.now = func() time.Time { return fixedNow.Add(time.Hour) }
	autumn, err := s.Create(ctx, "", 32)
	require.NoError(t, err)
	assert.Equal(t, "Tournament 2024-06-15", autumn.Name)
	assert.Len(t, autumn.Groups, 8)
	assert.NotEqual(t, spring.ID, autumn.ID)

	list, err := s.List(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, autumn.ID, list[0].ID)

	loaded, err := s.Load(ctx, spring.ID)
	require.NoError(t, err)
	assert.Equal(t, "Spring Cup", loaded.Name)
	assert.Equal(t, "Alice", loaded.Groups[0].Standings[0].Player.Name)

	current, err := repo.GetCurrent(ctx)
	require.NoError(t, err)
	assert.Equal(t, spring.ID, current.ID)

	_, err = s.Load(ctx, "tournament_missing")
	assert.ErrorIs(t, err, ErrTournamentNotFound)
	assert.Equal(t, spring.ID, s.State().ID, "failed load keeps the current tournament")

	_, err = s.List(ctx, -1, 0)
	assert.ErrorIs(t, err, ErrValidationFailed)
}

func TestLoadCurrentRestoresAfterRestart(t *testing.T) {
	ctx := context.Background()
	repo := repositories.NewMemoryTournamentRepository()

	first, _ := newTestService(t, repo, nil, true)
	fresh, err := first.LoadCurrent(ctx)
	require.NoError(t, err)
	assert.Empty(t, fresh.ID)

	_, err = first.RenamePlayer(ctx, "C2", "Carol")
	require.NoError(t, err)
	first.Wait()

	second, _ := newTestService(t, repo, nil, true)
	restored, err := second.LoadCurrent(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.State().ID, restored.ID)
	assert.Equal(t, "Carol", restored.Groups[2].Rounds[0].Fixtures[1].Player1Name)
}

func TestExportImport(t *testing.T) {
	ctx := context.Background()
	src, _ := newTestService(t, repositories.NewMemoryTournamentRepository(), nil, false)
	_, err := src.RenamePlayer(ctx, "D4", "Dora")
	require.NoError(t, err)
	_, err = src.RecordResult(ctx, "D", 0, 0, 1)
	require.NoError(t, err)

	data, filename, err := src.Export(ctx)
	require.NoError(t, err)
	assert.Equal(t, "chess-tournament-2024-06-15.json", filename)

	repo := repositories.NewMemoryTournamentRepository()
	dst, b := newTestService(t, repo, nil, true)
	state, err := dst.Import(ctx, data)
	require.NoError(t, err)
	dst.Wait()

	assert.NotEmpty(t, state.ID)
	assert.Equal(t, "Dora", state.Groups[3].Standings[0].Player.Name)
	assert.Equal(t, 1, b.count(CurrentRoom))

	saved, err := repo.GetCurrent(ctx)
	require.NoError(t, err)
	assert.Equal(t, state.ID, saved.ID)

	_, err = dst.Import(ctx, []byte(`{"total_players": 24}`))
	assert.ErrorIs(t, err, ErrInvalidImport)
	assert.Equal(t, state.ID, dst.State().ID)
}

func TestAutosavesLandInEditOrder(t *testing.T) {
	ctx := context.Background()
	repo := newStallingRepo()
	s, _ := newTestService(t, repo, nil, true)

	repo.stallNextSave()
	_, err := s.RecordResult(ctx, "A", 0, 1, 0)
	require.NoError(t, err)
	repo.waitStalled(t)

	_, err = s.RenamePlayer(ctx, "A1", "Alice")
	require.NoError(t, err)
	close(repo.release)
	s.Wait()

	saved, err := repo.GetCurrent(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Alice", playerName(saved, "A", "A1"), "older snapshot overwrote a newer one")
	assert.True(t, saved.Fixtures["A"][0].IsPlayed())
}

func TestLateAutosaveDoesNotRepointCurrent(t *testing.T) {
	ctx := context.Background()
	repo := newStallingRepo()
	s, _ := newTestService(t, repo, nil, true)

	y, err := s.Create(ctx, "Y Cup", 0)
	require.NoError(t, err)
	x, err := s.Create(ctx, "X Cup", 0)
	require.NoError(t, err)

	repo.stallNextSave()
	_, err = s.RecordResult(ctx, "A", 0, 1, 0)
	require.NoError(t, err)
	repo.waitStalled(t)
	_, err = s.RenamePlayer(ctx, "A1", "Xavier")
	require.NoError(t, err)

	loaded := make(chan error, 1)
	go func() {
		_, err := s.Load(ctx, y.ID)
		loaded <- err
	}()
	close(repo.release)
	require.NoError(t, <-loaded)
	s.Wait()

	assert.Equal(t, y.ID, s.State().ID)
	current, err := repo.GetCurrent(ctx)
	require.NoError(t, err)
	assert.Equal(t, y.ID, current.ID)

	saved, err := repo.GetByID(ctx, x.ID)
	require.NoError(t, err)
	assert.Equal(t, "Xavier", playerName(saved, "A", "A1"))
	assert.True(t, saved.Fixtures["A"][0].IsPlayed())
}

func TestDeleteCurrentStartsFresh(t *testing.T) {
	ctx := context.Background()
	repo := repositories.NewMemoryTournamentRepository()
	archiver := &stubArchiver{}
	s, _ := newTestService(t, repo, archiver, true)

	spring, err := s.Create(ctx, "Spring Cup", 32)
	require.NoError(t, err)

	state, err := s.Delete(ctx, spring.ID)
	require.NoError(t, err)
	assert.Empty(t, state.ID)
	assert.Equal(t, 24, state.TotalPlayers)
	assert.Equal(t, []string{spring.ID}, archiver.removed)

	_, err = repo.GetByID(ctx, spring.ID)
	assert.ErrorIs(t, err, repositories.ErrTournamentNotFound)
	_, err = repo.GetCurrent(ctx)
	assert.ErrorIs(t, err, repositories.ErrNoCurrentTournament)
}

func TestDeleteOtherKeepsCurrent(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestService(t, repositories.NewMemoryTournamentRepository(), nil, false)

	spring, err := s.Create(ctx, "Spring Cup", 0)
	require.NoError(t, err)
	autumn, err := s.Create(ctx, "Autumn Cup", 0)
	require.NoError(t, err)

	state, err := s.Delete(ctx, spring.ID)
	require.NoError(t, err)
	assert.Equal(t, autumn.ID, state.ID)

	list, err := s.List(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, autumn.ID, list[0].ID)

	_, err = s.Delete(ctx, spring.ID)
	assert.ErrorIs(t, err, ErrTournamentNotFound)
	_, err = s.Delete(ctx, "../"+autumn.ID)
	assert.ErrorIs(t, err, ErrValidationFailed)
	assert.Equal(t, autumn.ID, s.State().ID)
}

func TestDeleteDropsQueuedAutosave(t *testing.T) {
	ctx := context.Background()
	repo := newStallingRepo()
	s, _ := newTestService(t, repo, nil, true)

	x, err := s.Create(ctx, "X Cup", 0)
	require.NoError(t, err)

	repo.stallNextSave()
	_, err = s.RecordResult(ctx, "A", 0, 1, 0)
	require.NoError(t, err)
	repo.waitStalled(t)
	_, err = s.RenamePlayer(ctx, "A1", "Xavier")
	require.NoError(t, err)

	deleted := make(chan error, 1)
	go func() {
		_, err := s.Delete(ctx, x.ID)
		deleted <- err
	}()
	close(repo.release)
	require.NoError(t, <-deleted)
	s.Wait()

	_, err = repo.GetByID(ctx, x.ID)
	assert.ErrorIs(t, err, repositories.ErrTournamentNotFound, "deleted tournament was saved again")
	assert.Empty(t, s.State().ID)
}
