package memory

import (
	"context"
	"sync"

	"seasonality-lab/internal/domain"
	"seasonality-lab/internal/storage"
)

// RunStore is an in-memory implementation of storage.RunStore.
type RunStore struct {
	mu     sync.RWMutex
	runs   map[string]*domain.RunRecord
	latest string // run_id of the most recently started run
}

// NewRunStore creates a new in-memory run store.
func NewRunStore() *RunStore {
	return &RunStore{
		runs: make(map[string]*domain.RunRecord),
	}
}

// Insert records a new run. Returns ErrDuplicateKey if run_id exists.
func (s *RunStore) Insert(_ context.Context, run *domain.RunRecord) error {
	if run == nil || run.RunID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.runs[run.RunID]; exists {
		return storage.ErrDuplicateKey
	}
	s.runs[run.RunID] = copyRun(run)

	if s.latest == "" || !run.StartedAt.Before(s.runs[s.latest].StartedAt) {
		s.latest = run.RunID
	}
	return nil
}

// Finish stores the terminal state of a run.
func (s *RunStore) Finish(_ context.Context, run *domain.RunRecord) error {
	if run == nil || run.RunID == "" || run.FinishedAt == nil {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.runs[run.RunID]
	if !ok {
		return storage.ErrNotFound
	}
	if existing.FinishedAt != nil {
		return storage.ErrInvalidInput
	}
	s.runs[run.RunID] = copyRun(run)
	return nil
}

// GetByID retrieves a run. Returns ErrNotFound if not exists.
func (s *RunStore) GetByID(_ context.Context, runID string) (*domain.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[runID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return copyRun(run), nil
}

// GetLatest returns the most recently started run.
func (s *RunStore) GetLatest(_ context.Context) (*domain.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.latest == "" {
		return nil, storage.ErrNotFound
	}
	return copyRun(s.runs[s.latest]), nil
}

func copyRun(r *domain.RunRecord) *domain.RunRecord {
	c := *r
	if r.FinishedAt != nil {
		t := *r.FinishedAt
		c.FinishedAt = &t
	}
	return &c
}

var _ storage.RunStore = (*RunStore)(nil)
