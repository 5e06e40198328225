// Package inmem provides the in-memory run store used by the server and
// tests. Swap in a database-backed Store for durability across restarts.
package inmem

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/inkwell-ai/inkwell/internal/run"
)

// Store keeps run records in a map guarded by one RWMutex.
type Store struct {
	mu   sync.RWMutex
	runs map[string]run.Run
}

var _ run.Store = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{runs: make(map[string]run.Run)}
}

// Create inserts a new record. Duplicate ids are an error.
func (s *Store) Create(ctx context.Context, r *run.Run) error {
	if r == nil || r.ID == "" {
		return fmt.Errorf("run record requires an id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.runs[r.ID]; exists {
		return fmt.Errorf("run already exists: %s", r.ID)
	}
	now := time.Now().UTC()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	r.UpdatedAt = now
	if r.Status == "" {
		r.Status = run.StatusPending
	}
	s.runs[r.ID] = *r
	return nil
}

// Get returns a copy of the record.
func (s *Store) Get(ctx context.Context, id string) (*run.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.runs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", run.ErrNotFound, id)
	}
	out := record
	return &out, nil
}

// SetStatus transitions the run. Terminal states are final: a transition out
// of one is a no-op that returns the stored record with changed=false.
func (s *Store) SetStatus(ctx context.Context, id string, status run.Status, summary, errMsg string) (*run.Run, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.runs[id]
	if !ok {
		return nil, false, fmt.Errorf("%w: %s", run.ErrNotFound, id)
	}
	if record.Status.Terminal() {
		out := record
		return &out, false, nil
	}

	record.Status = status
	if summary != "" {
		record.Summary = summary
	}
	if errMsg != "" {
		record.Error = errMsg
	}
	record.UpdatedAt = time.Now().UTC()
	s.runs[id] = record

	out := record
	return &out, true, nil
}
