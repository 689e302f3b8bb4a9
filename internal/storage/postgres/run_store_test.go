package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"seasonality-lab/internal/domain"
	"seasonality-lab/internal/storage"
)

func TestRunStore_Lifecycle(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewRunStore(pool)
	ctx := context.Background()

	if _, err := store.GetLatest(ctx); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound on empty store, got %v", err)
	}

	started := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	older := &domain.RunRecord{RunID: uuid.NewString(), StartedAt: started.Add(-time.Hour), Status: domain.RunStatusRunning}
	run := &domain.RunRecord{RunID: uuid.NewString(), StartedAt: started, Status: domain.RunStatusRunning, ConfigHash: "abc"}

	for _, r := range []*domain.RunRecord{older, run} {
		if err := store.Insert(ctx, r); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}
	if err := store.Insert(ctx, run); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}

	run.FinishedAt = ptr(started.Add(time.Minute))
	run.Status = domain.RunStatusSucceeded
	run.RowsLoaded = 120
	run.Tests = 8
	if err := store.Finish(ctx, run); err != nil {
		t.Fatalf("Finish failed: %v", err)
	}
	if err := store.Finish(ctx, run); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput on second finish, got %v", err)
	}

	missing := &domain.RunRecord{RunID: uuid.NewString(), FinishedAt: ptr(started)}
	if err := store.Finish(ctx, missing); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}

	latest, err := store.GetLatest(ctx)
	if err != nil {
		t.Fatalf("GetLatest failed: %v", err)
	}
	if latest.RunID != run.RunID || latest.Status != domain.RunStatusSucceeded {
		t.Errorf("Unexpected latest run: %+v", latest)
	}
	if latest.RowsLoaded != 120 || latest.Tests != 8 || latest.ConfigHash != "abc" {
		t.Errorf("Unexpected counts: %+v", latest)
	}
	if latest.FinishedAt == nil || !latest.FinishedAt.Equal(*run.FinishedAt) {
		t.Errorf("Unexpected finished_at: %v", latest.FinishedAt)
	}
}
