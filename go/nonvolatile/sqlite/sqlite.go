// Package sqlite is a reference vrlog.NonVolatileStore backed by
// database/sql and github.com/mattn/go-sqlite3: a one-row table per
// replica holding the durable footprint spec §3/§6 requires (identity plus
// latest view). It exists to let the engine be driven end to end without
// an embedder supplying its own store, and is not the only legal
// implementation.
package sqlite

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3" // registers the "sqlite3" driver.

	"github.com/estuary/vr/go/vrid"
	"github.com/estuary/vr/go/vrlog"
)

// Store is a vrlog.NonVolatileStore for a single replica.
type Store struct {
	db   *sql.DB
	self vrid.ReplicaIdentifier
}

var _ vrlog.NonVolatileStore = (*Store)(nil)

// Open returns a Store for self backed by the sqlite database at path (use
// ":memory:" for an ephemeral store, e.g. in tests). The backing table is
// created if it doesn't already exist.
func Open(path string, self vrid.ReplicaIdentifier) (*Store, error) {
	var db, err = sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database %q: %w", path, err)
	}
	if _, err = db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating non-volatile state table: %w", err)
	}
	return &Store{db: db, self: self}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

const schema = `
CREATE TABLE IF NOT EXISTS vr_replica_state (
	group_token     TEXT    NOT NULL,
	group_n         INTEGER NOT NULL,
	replica_index   INTEGER NOT NULL,
	has_latest_view INTEGER NOT NULL,
	latest_view     INTEGER NOT NULL,
	PRIMARY KEY (group_token, group_n, replica_index)
)`

// Load implements vrlog.NonVolatileStore.
func (s *Store) Load() (vrlog.NonVolatileState, error) {
	var nvs = vrlog.NonVolatileState{Replica: s.self}
	var hasLatestView int
	var latestView uint64

	var row = s.db.QueryRow(
		`SELECT has_latest_view, latest_view FROM vr_replica_state
		 WHERE group_token = ? AND group_n = ? AND replica_index = ?`,
		s.self.Group.Token, s.self.Group.N, s.self.Index,
	)
	switch err := row.Scan(&hasLatestView, &latestView); err {
	case nil:
		nvs.HasLatestView = hasLatestView != 0
		nvs.LatestView = vrid.View(latestView)
		return nvs, nil
	case sql.ErrNoRows:
		return nvs, nil // no prior incarnation: fresh replica, per spec §3.
	default:
		return vrlog.NonVolatileState{}, fmt.Errorf("loading non-volatile state: %w", err)
	}
}

// Save implements vrlog.NonVolatileStore. It does not return until the
// write is committed, satisfying the "durable before returning" contract
// spec §6/§7 place on this interface.
func (s *Store) Save(nvs vrlog.NonVolatileState) error {
	var tx, err = s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning non-volatile state transaction: %w", err)
	}
	_, err = tx.Exec(
		`INSERT INTO vr_replica_state (group_token, group_n, replica_index, has_latest_view, latest_view)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (group_token, group_n, replica_index)
		 DO UPDATE SET has_latest_view = excluded.has_latest_view, latest_view = excluded.latest_view`,
		nvs.Replica.Group.Token, nvs.Replica.Group.N, nvs.Replica.Index,
		boolToInt(nvs.HasLatestView), uint64(nvs.LatestView),
	)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("writing non-volatile state: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing non-volatile state: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
