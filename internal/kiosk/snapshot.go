package kiosk

import (
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	_ "modernc.org/sqlite"

	"github.com/example/farmadisplay/internal/models"
)

// SnapshotTTL is the freshness ceiling: a snapshot older than this is treated
// as absent rather than served, to avoid showing indefinitely outdated
// pharmacy information.
const SnapshotTTL = 24 * time.Hour

// Snapshot is the last fetched configuration plus its fetch timestamp.
type Snapshot struct {
	Config    models.DisplayConfig `json:"config"`
	FetchedAt time.Time            `json:"fetched_at"`
}

const snapshotSchema = `
CREATE TABLE IF NOT EXISTS snapshot (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    data TEXT NOT NULL,
    fetched_at INTEGER NOT NULL
);
`

// SnapshotStore persists the single cached snapshot in a local SQLite file so
// it survives agent and device restarts.
type SnapshotStore struct {
	db *sql.DB
}

// OpenSnapshotStore opens (and creates if needed) the snapshot database.
func OpenSnapshotStore(path string) (*SnapshotStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(snapshotSchema); err != nil {
		db.Close()
		return nil, err
	}
	return &SnapshotStore{db: db}, nil
}

// Close releases the underlying database handle.
func (s *SnapshotStore) Close() error {
	return s.db.Close()
}

// Save overwrites the stored snapshot.
func (s *SnapshotStore) Save(snap Snapshot) error {
	data, err := json.Marshal(snap.Config)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(
		`INSERT INTO snapshot (id, data, fetched_at) VALUES (1, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET data = excluded.data, fetched_at = excluded.fetched_at`,
		string(data), snap.FetchedAt.Unix(),
	)
	return err
}

// Load returns the stored snapshot, or nil when none exists or the stored one
// has aged past SnapshotTTL relative to now.
func (s *SnapshotStore) Load(now time.Time) (*Snapshot, error) {
	var data string
	var fetchedAt int64
	err := s.db.QueryRow(`SELECT data, fetched_at FROM snapshot WHERE id = 1`).Scan(&data, &fetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	snap := Snapshot{FetchedAt: time.Unix(fetchedAt, 0)}
	if now.Sub(snap.FetchedAt) > SnapshotTTL {
		return nil, nil
	}

	if err := json.Unmarshal([]byte(data), &snap.Config); err != nil {
		return nil, err
	}
	return &snap, nil
}
