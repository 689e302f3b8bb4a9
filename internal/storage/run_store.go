package storage

import (
	"context"

	"seasonality-lab/internal/domain"
)

// RunStore persists batch run records.
// A run is inserted when it starts and finished exactly once.
type RunStore interface {
	// Insert records a new run. Returns ErrDuplicateKey if run_id exists.
	Insert(ctx context.Context, run *domain.RunRecord) error

	// Finish stores the terminal status, counts and finish time of a run.
	// Returns ErrNotFound if the run does not exist, ErrInvalidInput if it is already finished.
	Finish(ctx context.Context, run *domain.RunRecord) error

	// GetByID retrieves a run. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, runID string) (*domain.RunRecord, error)

	// GetLatest returns the most recently started run.
	// Returns ErrNotFound if no run has been recorded yet.
	GetLatest(ctx context.Context) (*domain.RunRecord, error)
}
