package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/Dosada05/chess-cup/models"
)

var ErrInvalidTournamentID = errors.New("tournament id must not contain path separators or dot segments")

type UploadResult struct {
	Key      string `json:"key"`
	Location string `json:"location"`
	ETag     string `json:"etag"`
}

// ObjectStore is the subset of an S3-style bucket the archive needs.
type ObjectStore interface {
	Put(ctx context.Context, key string, contentType string, body io.Reader) (*UploadResult, error)

	// DeletePrefix removes every object under prefix and reports how many
	// were removed.
	DeletePrefix(ctx context.Context, prefix string) (int, error)

	PublicURL(key string) string
}

const archivePrefix = "tournaments"

// ValidTournamentID reports whether id can be used as a single object key
// segment. The empty id is valid; it stands for an unsaved tournament.
func ValidTournamentID(id string) bool {
	if id == "." || strings.Contains(id, "..") {
		return false
	}
	return !strings.ContainsAny(id, `/\`)
}

// SnapshotArchiver keeps exported copies of saved tournaments in an object
// store, one object per tournament per day.
type SnapshotArchiver struct {
	store ObjectStore
	now   func() time.Time
}

func NewSnapshotArchiver(store ObjectStore) *SnapshotArchiver {
	return &SnapshotArchiver{store: store, now: time.Now}
}

// ArchiveKey is tournaments/<id>/chess-tournament-YYYY-MM-DD.json. Snapshots
// without an id go under "unsaved".
func ArchiveKey(snap *models.TournamentSnapshot, at time.Time) (string, error) {
	dir, err := archiveDir(snap.ID)
	if err != nil {
		return "", err
	}
	return path.Join(dir, ExportFileName(at)), nil
}

func archiveDir(id string) (string, error) {
	if !ValidTournamentID(id) {
		return "", fmt.Errorf("%w: %q", ErrInvalidTournamentID, id)
	}
	if id == "" {
		id = "unsaved"
	}
	return archivePrefix + "/" + id + "/", nil
}

func (a *SnapshotArchiver) Archive(ctx context.Context, snap *models.TournamentSnapshot) (*UploadResult, error) {
	key, err := ArchiveKey(snap, a.now())
	if err != nil {
		return nil, err
	}
	data, err := ExportSnapshot(snap)
	if err != nil {
		return nil, err
	}
	res, err := a.store.Put(ctx, key, "application/json", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("archiving snapshot %s: %w", snap.ID, err)
	}
	return res, nil
}

// Remove deletes every archived copy of a tournament.
func (a *SnapshotArchiver) Remove(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidTournamentID)
	}
	dir, err := archiveDir(id)
	if err != nil {
		return err
	}
	if _, err := a.store.DeletePrefix(ctx, dir); err != nil {
		return fmt.Errorf("removing archive of %s: %w", id, err)
	}
	return nil
}
