package memory

import (
	"context"
	"sync"
	"time"

	"github.com/webitel/rocrate-exporter/internal/cache"
	"github.com/webitel/rocrate-exporter/internal/model"
)

var _ cache.JobStore = (*Store)(nil)

type entry struct {
	mu    sync.Mutex
	state *model.JobState
}

// Store keeps job states in process memory, one lock per job.
type Store struct {
	mu   sync.RWMutex
	jobs map[string]*entry
}

func New() *Store {
	return &Store{jobs: make(map[string]*entry)}
}

func (s *Store) lookup(jobID string) (*entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.jobs[jobID]
	return e, ok
}

func (s *Store) Create(_ context.Context, state *model.JobState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[state.JobID]; ok {
		return cache.ErrExists
	}
	s.jobs[state.JobID] = &entry{state: state.Clone()}
	return nil
}

func (s *Store) Update(_ context.Context, jobID string, fn func(*model.JobState) bool) error {
	e, ok := s.lookup(jobID)
	if !ok {
		return cache.ErrNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == nil {
		return cache.ErrNotFound
	}
	next := e.state.Clone()
	if fn(next) {
		e.state = next
	}
	return nil
}

func (s *Store) Get(_ context.Context, jobID string) (*model.JobState, error) {
	e, ok := s.lookup(jobID)
	if !ok {
		return nil, cache.ErrNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == nil {
		return nil, cache.ErrNotFound
	}
	return e.state.Clone(), nil
}

func (s *Store) Delete(_ context.Context, jobID string) error {
	s.mu.Lock()
	e, ok := s.jobs[jobID]
	delete(s.jobs, jobID)
	s.mu.Unlock()
	if ok {
		e.mu.Lock()
		e.state = nil
		e.mu.Unlock()
	}
	return nil
}

func (s *Store) Sweep(ctx context.Context, cutoff time.Time) (int, error) {
	s.mu.RLock()
	var expired []string
	for id, e := range s.jobs {
		e.mu.Lock()
		if e.state != nil && cache.Expired(e.state, cutoff) {
			expired = append(expired, id)
		}
		e.mu.Unlock()
	}
	s.mu.RUnlock()

	for _, id := range expired {
		_ = s.Delete(ctx, id)
	}
	return len(expired), nil
}

// Len reports the number of tracked jobs.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}

func (s *Store) Close() error { return nil }
