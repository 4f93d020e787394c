// Package records holds the client-side copy of the backend's URL collection.
//
// The Store has exactly one write path, Commit, which acts as the diff gate:
// a fetched snapshot replaces the current one only when it differs structurally.
package records

import (
	"sync"
	"time"

	"crawldash/internal/domain"
)

// Snapshot is one accepted copy of the record collection.
// Records must be treated as read-only by every consumer.
type Snapshot struct {
	Records     []domain.URLRecord
	Revision    uint64
	CommittedAt time.Time
}

// Listener is called after a changed snapshot has been committed.
type Listener func(Snapshot)

// Store is the latest known set of URL records.
type Store struct {
	mu        sync.RWMutex
	current   Snapshot
	listeners []Listener
	now       func() time.Time
}

// NewStore returns an empty store at revision 0.
func NewStore() *Store {
	return &Store{now: time.Now}
}

// Snapshot returns the current snapshot.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Subscribe registers fn to be called after every accepted change.
func (s *Store) Subscribe(fn Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Commit replaces the store with next when it differs from the current records.
// It reports whether a replacement happened. An equal snapshot leaves the
// revision and the records slice untouched.
func (s *Store) Commit(next []domain.URLRecord) bool {
	s.mu.Lock()
	if s.current.Revision > 0 && !Changed(s.current.Records, next) {
		s.mu.Unlock()
		return false
	}
	snap := s.replaceLocked(next)
	listeners := append([]Listener(nil), s.listeners...)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(snap)
	}
	return true
}

// Seed loads a previously cached snapshot. It only applies while nothing has
// been committed yet, so a live poll result always takes precedence.
func (s *Store) Seed(cached []domain.URLRecord) bool {
	s.mu.Lock()
	if s.current.Revision != 0 {
		s.mu.Unlock()
		return false
	}
	snap := s.replaceLocked(cached)
	listeners := append([]Listener(nil), s.listeners...)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(snap)
	}
	return true
}

func (s *Store) replaceLocked(next []domain.URLRecord) Snapshot {
	owned := make([]domain.URLRecord, len(next))
	copy(owned, next)
	s.current = Snapshot{
		Records:     owned,
		Revision:    s.current.Revision + 1,
		CommittedAt: s.now(),
	}
	return s.current
}

// Changed is the diff gate predicate: full, order-sensitive structural comparison.
func Changed(prev, next []domain.URLRecord) bool {
	return !domain.RecordsEqual(prev, next)
}
