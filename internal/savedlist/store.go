// Package savedlist persists per-user saved listings in SQLite.
package savedlist

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotLoggedIn is returned for operations without an actor id.
var ErrNotLoggedIn = errors.New("saved list requires a logged-in user")

const schemaSQL = `
CREATE TABLE IF NOT EXISTS saved_listings (
	actor_id   TEXT NOT NULL,
	listing_id TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL,
	PRIMARY KEY (actor_id, listing_id)
);`

// Store is the persistent account/saved-list store.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the SQLite database at path. ":memory:" gives an
// ephemeral store for tests.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open saved-list db: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("init saved-list schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Add saves a listing for the actor. The bool reports whether the listing
// was newly added; false means it was already saved.
func (s *Store) Add(ctx context.Context, actorID, listingID string) (bool, error) {
	if actorID == "" {
		return false, ErrNotLoggedIn
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO saved_listings (actor_id, listing_id, created_at) VALUES (?, ?, ?)`,
		actorID, listingID, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("save listing: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("save listing: %w", err)
	}
	return n > 0, nil
}

// List returns the actor's saved listing ids, oldest first.
func (s *Store) List(ctx context.Context, actorID string) ([]string, error) {
	if actorID == "" {
		return nil, ErrNotLoggedIn
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT listing_id FROM saved_listings WHERE actor_id = ? ORDER BY created_at, listing_id`,
		actorID)
	if err != nil {
		return nil, fmt.Errorf("list saved listings: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan saved listing: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list saved listings: %w", err)
	}
	return ids, nil
}

// Remove deletes a saved listing. The bool reports whether anything was
// removed.
func (s *Store) Remove(ctx context.Context, actorID, listingID string) (bool, error) {
	if actorID == "" {
		return false, ErrNotLoggedIn
	}
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM saved_listings WHERE actor_id = ? AND listing_id = ?`,
		actorID, listingID)
	if err != nil {
		return false, fmt.Errorf("remove saved listing: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("remove saved listing: %w", err)
	}
	return n > 0, nil
}
