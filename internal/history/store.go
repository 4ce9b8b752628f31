// Package history holds the ephemeral record of past query/result pairs
// and resolves ordinal references ("2번", "서초구 1번") against it.
package history

import (
	"log/slog"
	"sync"
	"time"

	"github.com/yoonhw/jibsa/internal/listing"
)

// Entry is one past request/response pair. Entries are append-only and
// never mutated after insertion.
type Entry struct {
	Timestamp time.Time        `json:"timestamp"`
	ActorID   string           `json:"actor_id,omitempty"`
	Query     string           `json:"query"`
	Records   []listing.Record `json:"records"`
}

// Store is the process-lifetime context store. Retrieval providers append
// after each successful search; later tasks read it to resolve references.
type Store struct {
	mu      sync.RWMutex
	entries []Entry
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{}
}

// Append adds an entry with the current timestamp.
func (s *Store) Append(actorID, query string, records []listing.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, Entry{
		Timestamp: time.Now(),
		ActorID:   actorID,
		Query:     query,
		Records:   records,
	})
	slog.Debug("history: appended entry", "query", query, "records", len(records))
}

// Latest returns the most recent entry.
func (s *Store) Latest() (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.entries) == 0 {
		return Entry{}, false
	}
	return s.entries[len(s.entries)-1], true
}

// All returns a copy of every entry, oldest first.
func (s *Store) All() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Len returns the number of entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Reset clears the store. Invoked by the explicit reset endpoint and the
// per-session clear command.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = nil
	slog.Info("history: reset")
}
