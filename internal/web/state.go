package web

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// stateTTL bounds how long a user has to finish the Spotify consent screen.
const stateTTL = 10 * time.Minute

// StateStore tracks OAuth state values issued by /spotify-auth.
type StateStore struct {
	mu     sync.Mutex
	states map[string]time.Time // state -> issued at
	now    func() time.Time
}

// NewStateStore creates an empty in-memory state store.
func NewStateStore() *StateStore {
	return &StateStore{
		states: make(map[string]time.Time),
		now:    time.Now,
	}
}

// Issue creates and records a new state value. Expired states are dropped.
func (s *StateStore) Issue() string {
	state := uuid.NewString()

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for st, issued := range s.states {
		if now.Sub(issued) > stateTTL {
			delete(s.states, st)
		}
	}
	s.states[state] = now

	return state
}

// Consume reports whether state was issued and has not expired. A state can
// be consumed once.
func (s *StateStore) Consume(state string) bool {
	if state == "" {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	issued, ok := s.states[state]
	if !ok {
		return false
	}
	delete(s.states, state)

	return s.now().Sub(issued) <= stateTTL
}
