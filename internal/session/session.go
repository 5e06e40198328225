// Package session owns server-side conversation state: one AgentState per
// session id, plus the per-session locks that serialize turns against it.
package session

import (
	"sync"

	"github.com/inkwell-ai/inkwell/pkg/models"
)

// Store maps session ids to their agent state. States are created on first
// use and live for the lifetime of the process.
type Store struct {
	mu     sync.RWMutex
	states map[string]*models.AgentState
}

// NewStore creates an empty session store.
func NewStore() *Store {
	return &Store{states: make(map[string]*models.AgentState)}
}

// GetOrCreate returns the session's state, creating it on first use.
func (s *Store) GetOrCreate(id string) *models.AgentState {
	s.mu.RLock()
	state, ok := s.states[id]
	s.mu.RUnlock()
	if ok {
		return state
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if state, ok := s.states[id]; ok {
		return state
	}
	state = models.NewAgentState(id)
	s.states[id] = state
	return state
}

// Get returns the session's state, or nil if the session is unknown.
func (s *Store) Get(id string) *models.AgentState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.states[id]
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.states)
}

// Locks hands out one mutex per session id. Holding a session's lock is what
// makes the orchestrator the sole writer of that session's state for the
// duration of a turn, whether the turn is synchronous or run as a background
// run.
type Locks struct {
	mu sync.Mutex
	m  map[string]*sync.Mutex
}

// NewLocks creates an empty lock table.
func NewLocks() *Locks {
	return &Locks{m: make(map[string]*sync.Mutex)}
}

// For returns the session's mutex, creating it on first use.
func (l *Locks) For(id string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	lock, ok := l.m[id]
	if !ok {
		lock = &sync.Mutex{}
		l.m[id] = lock
	}
	return lock
}
