package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dosada05/chess-cup/models"
)

func sampleSnapshot() *models.TournamentSnapshot {
	one, zero := 1.0, 0.0
	created := time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC)
	return &models.TournamentSnapshot{
		ID:              "tournament_1",
		Name:            "Spring Cup",
		TotalPlayers:    8,
		PlayersPerGroup: 4,
		Groups: map[string][]*models.Player{
			"B": {{ID: "B1", Name: "Bob"}, {ID: "B2", Name: "B2"}, {ID: "B3", Name: "B3"}, {ID: "B4", Name: "B4"}},
			"A": {{ID: "A1", Name: "Alice", Points: 1, Played: 1, TiebreakPoints: 0.5}, {ID: "A2", Name: "A2"}, {ID: "A3", Name: "A3"}, {ID: "A4", Name: "A4", Played: 1}},
		},
		Fixtures: map[string][]*models.Fixture{
			"A": {{Player1ID: "A1", Player2ID: "A4", Result1: &one, Result2: &zero, Round: 1}, {Player1ID: "A2", Player2ID: "A3", Round: 1}},
		},
		Bracket: []*models.BracketMatch{
			{Player1Name: "Alice", Player2Name: "B4", Player1ID: "A1", Player2ID: "B4", Stage: models.StageRound16, MatchNumber: 1},
		},
		CreatedAt: &created,
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	snap := sampleSnapshot()

	data, err := ExportSnapshot(snap)
	require.NoError(t, err)
	assert.Contains(t, string(data), "\n  \"total_players\": 8")
	assert.Contains(t, string(data), "\"tiebreak_points\": 0.5")
	assert.NotContains(t, string(data), "last_updated")

	back, err := ImportSnapshot(data)
	require.NoError(t, err)
	assert.Equal(t, snap, back)
	assert.Equal(t, []string{"A", "B"}, back.GroupNames())

	fixtures := back.Fixtures["A"]
	assert.True(t, fixtures[0].IsPlayed())
	assert.False(t, fixtures[1].IsPlayed())
}

func TestImportSnapshotRejectsBadFiles(t *testing.T) {
	cases := map[string]string{
		"empty":          "   ",
		"not json":       "{oops",
		"no players":     `{"total_players": 0, "groups": {"A": [{"id": "A1"}]}}`,
		"no groups":      `{"total_players": 24, "groups": {}}`,
		"missing id":     `{"total_players": 24, "groups": {"A": [{"name": "x"}]}}`,
		"duplicate id":   `{"total_players": 24, "groups": {"A": [{"id": "P"}], "B": [{"id": "P"}]}}`,
		"orphan fixture": `{"total_players": 24, "groups": {"A": [{"id": "A1"}]}, "fixtures": {"Z": []}}`,
		"bad stage":      `{"total_players": 24, "groups": {"A": [{"id": "A1"}]}, "bracket": [{"stage": "round32"}]}`,
		"path in id":     `{"id": "../../etc", "total_players": 24, "groups": {"A": [{"id": "A1"}]}}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ImportSnapshot([]byte(body))
			assert.ErrorIs(t, err, ErrInvalidSnapshot)
		})
	}
}

func TestExportFileName(t *testing.T) {
	at := time.Date(2025, 1, 7, 23, 59, 0, 0, time.UTC)
	assert.Equal(t, "chess-tournament-2025-01-07.json", ExportFileName(at))
}

type fakeStore struct {
	puts    map[string][]byte
	deleted []string
	err     error
}

func (f *fakeStore) Put(_ context.Context, key, contentType string, body io.Reader) (*UploadResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	if f.puts == nil {
		f.puts = map[string][]byte{}
	}
	f.puts[key] = data
	return &UploadResult{Key: key, Location: f.PublicURL(key)}, nil
}

func (f *fakeStore) DeletePrefix(_ context.Context, prefix string) (int, error) {
	removed := 0
	for key := range f.puts {
		if strings.HasPrefix(key, prefix) {
			delete(f.puts, key)
			f.deleted = append(f.deleted, key)
			removed++
		}
	}
	return removed, nil
}

func (f *fakeStore) PublicURL(key string) string {
	return joinPublicURL("https://files.example.com/cup/", key)
}

func TestSnapshotArchiver(t *testing.T) {
	store := &fakeStore{}
	archiver := NewSnapshotArchiver(store)
	day := time.Date(2024, 3, 9, 8, 0, 0, 0, time.UTC)
	archiver.now = func() time.Time { return day }

	res, err := archiver.Archive(context.Background(), sampleSnapshot())
	require.NoError(t, err)
	assert.Equal(t, "tournaments/tournament_1/chess-tournament-2024-03-09.json", res.Key)
	assert.Equal(t, "https://files.example.com/cup/tournaments/tournament_1/chess-tournament-2024-03-09.json", res.Location)

	stored, err := ImportSnapshot(store.puts[res.Key])
	require.NoError(t, err)
	assert.Equal(t, "Spring Cup", stored.Name)

	other := sampleSnapshot()
	other.ID = "tournament_10"
	_, err = archiver.Archive(context.Background(), other)
	require.NoError(t, err)

	require.NoError(t, archiver.Remove(context.Background(), "tournament_1"))
	assert.Equal(t, []string{res.Key}, store.deleted)
	assert.Contains(t, store.puts, "tournaments/tournament_10/chess-tournament-2024-03-09.json")

	assert.ErrorIs(t, archiver.Remove(context.Background(), ""), ErrInvalidTournamentID)
}

func TestSnapshotArchiverPropagatesStoreErrors(t *testing.T) {
	boom := errors.New("bucket unavailable")
	archiver := NewSnapshotArchiver(&fakeStore{err: boom})

	_, err := archiver.Archive(context.Background(), sampleSnapshot())
	assert.ErrorIs(t, err, boom)
}

func TestArchiveKeyWithoutID(t *testing.T) {
	at := time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC)
	key, err := ArchiveKey(&models.TournamentSnapshot{}, at)
	require.NoError(t, err)
	assert.Equal(t, "tournaments/unsaved/chess-tournament-2024-03-09.json", key)
}

func TestArchiveKeyStaysUnderPrefix(t *testing.T) {
	at := time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC)
	for _, id := range []string{"../x", "a/b", `a\b`, "..", "."} {
		t.Run(id, func(t *testing.T) {
			_, err := ArchiveKey(&models.TournamentSnapshot{ID: id}, at)
			assert.ErrorIs(t, err, ErrInvalidTournamentID)
		})
	}

	store := &fakeStore{}
	snap := sampleSnapshot()
	snap.ID = "../escape"
	_, err := NewSnapshotArchiver(store).Archive(context.Background(), snap)
	assert.ErrorIs(t, err, ErrInvalidTournamentID)
	assert.Empty(t, store.puts)
}

func TestCloudflareR2ConfigEnabled(t *testing.T) {
	cfg := CloudflareR2Config{AccountID: "acc", AccessKeyID: "key", SecretAccessKey: "secret", BucketName: "cup"}
	assert.False(t, cfg.Enabled())

	_, err := NewCloudflareR2Store(context.Background(), cfg)
	assert.ErrorIs(t, err, ErrArchiveConfig)

	cfg.PublicBaseURL = "https://files.example.com"
	assert.True(t, cfg.Enabled())
}

func TestJoinPublicURL(t *testing.T) {
	assert.Equal(t, "https://cdn.example.com/a/b.json", joinPublicURL("https://cdn.example.com", "/a/b.json"))
	assert.Equal(t, "https://cdn.example.com/x/a.json", joinPublicURL("https://cdn.example.com/x/", "a.json"))
	assert.Empty(t, joinPublicURL("", "a.json"))
	assert.Empty(t, joinPublicURL("https://cdn.example.com", ""))
}
