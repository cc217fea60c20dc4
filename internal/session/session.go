// Package session implements SessionStore: an in-memory, concurrency-
// safe map of session ID to turn log and rolling profile.
//
// Grounded in teacher's internal/news.sentimentCache — a mutex-guarded
// map[string]*cacheEntry with TTL-aware get/set — generalized from a
// single cached sentiment value per symbol to a full append-only turn
// log and profile per session ID, and from a string symbol key to a
// google/uuid-generated session ID when the caller doesn't supply one.
package session

import (
	"sync"

	"github.com/google/uuid"

	"github.com/SeanStafford/ENTROPY/internal/entropytypes"
)

// Store is the concurrency-safe session table.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*entropytypes.Session
}

// New creates an empty Store.
func New() *Store {
	return &Store{sessions: make(map[string]*entropytypes.Session)}
}

// GetOrCreate returns the session for id, creating it (with a fresh
// google/uuid-generated id if id is empty) on first use.
func (s *Store) GetOrCreate(id string) *entropytypes.Session {
	if id == "" {
		id = uuid.NewString()
	}

	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if ok {
		return sess
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[id]; ok {
		return sess
	}
	sess = &entropytypes.Session{ID: id}
	s.sessions[id] = sess
	return sess
}

// Get returns the session for id without creating it.
func (s *Store) Get(id string) (*entropytypes.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	return sess, ok
}

// AppendTurn appends turn to the session's log, creating the session
// first if necessary.
func (s *Store) AppendTurn(id string, turn entropytypes.Turn) *entropytypes.Session {
	sess := s.GetOrCreate(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	sess.Turns = append(sess.Turns, turn)
	if turn.Role == entropytypes.RoleUser {
		sess.Profile.QueryCount++
	}
	return sess
}

// RecentTurns returns the last n turns (fewer if the session has fewer).
func (s *Store) RecentTurns(id string, n int) []entropytypes.Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok || n <= 0 {
		return nil
	}
	turns := sess.Turns
	if len(turns) <= n {
		out := make([]entropytypes.Turn, len(turns))
		copy(out, turns)
		return out
	}
	out := make([]entropytypes.Turn, n)
	copy(out, turns[len(turns)-n:])
	return out
}

// GetProfile returns a copy of the session's rolling profile.
func (s *Store) GetProfile(id string) entropytypes.Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return entropytypes.Profile{}
	}
	return sess.Profile
}

// UpdateProfileAfter records the routing classification and follow-up
// verdict for the query just processed, and whether the response
// produced turned out to be brief (kept as Profile.LastResponseBrief;
// no Classify rule reads it).
func (s *Store) UpdateProfileAfter(id string, classification entropytypes.QueryClassification, isFollowUp, responseBrief bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return
	}
	sess.Profile.RecordClassification(classification)
	sess.Profile.RecordFollowUp(isFollowUp)
	sess.Profile.LastResponseBrief = responseBrief
	if isFollowUp {
		sess.Profile.PriorDissatisfied = true
	}
}

// Delete removes a session entirely. Only tests call it; nothing evicts
// sessions in-process (the teacher's sentimentCache.cleanupLoop runs a
// periodic sweep, and this package has no counterpart to it).
func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// Len reports the number of tracked sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
