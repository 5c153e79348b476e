// Package session provides a thread-safe per-chat conversation state store.
// State is process-local; loss on restart is acceptable.
package session

import (
	"sync"
	"time"
)

// cleanupInterval is how often mutations trigger lazy eviction of idle entries.
const cleanupInterval = 100

type entry struct {
	state      State
	lastAccess time.Time
}

// Store maps chat identifiers to their active conversation state. Sessions
// idle longer than the TTL are evicted lazily, bounding growth without a
// background goroutine.
type Store struct {
	mu      sync.Mutex
	entries map[int64]*entry
	ttl     time.Duration
	ops     int
}

// NewStore creates a Store that evicts sessions inactive longer than ttl.
func NewStore(ttl time.Duration) *Store {
	return &Store{
		entries: make(map[int64]*entry),
		ttl:     ttl,
	}
}

// Get returns the session's state, or an Idle state if none is held.
// Reading refreshes the session's idle timer.
func (s *Store) Get(id int64) State {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return State{Kind: Idle}
	}
	e.lastAccess = time.Now()
	return e.state
}

// Set replaces the session's state. Because the whole variant is replaced,
// starting a new flow implicitly clears any competing flow for the session.
func (s *Store) Set(id int64, st State) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ops++
	if s.ops%cleanupInterval == 0 {
		s.cleanupLocked()
	}

	if st.Kind == Idle {
		delete(s.entries, id)
		return
	}
	s.entries[id] = &entry{state: st, lastAccess: time.Now()}
}

// Clear removes the session's state, returning it to Idle.
func (s *Store) Clear(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, id)
}

// Cleanup evicts all sessions that have been inactive longer than the TTL.
func (s *Store) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cleanupLocked()
}

func (s *Store) cleanupLocked() {
	cutoff := time.Now().Add(-s.ttl)
	for id, e := range s.entries {
		if e.lastAccess.Before(cutoff) {
			delete(s.entries, id)
		}
	}
}

// Len returns the number of sessions holding non-idle state.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
