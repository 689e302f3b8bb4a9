package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"seasonality-lab/internal/domain"
	"seasonality-lab/internal/storage"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestIntervalCountStore_InsertBulkAndGet(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewIntervalCountStore(pool)
	ctx := context.Background()

	rows := []*domain.IntervalCount{
		{Measure: "flu", SiteID: 2, IntervalStart: day(2022, 6, 6), Numerator: 12, Denominator: 6000},
		{Measure: "flu", SiteID: 1, IntervalStart: day(2022, 6, 13), Numerator: 6, Denominator: 3000},
		{Measure: "ari", SiteID: 1, IntervalStart: day(2022, 6, 6), Numerator: 0, Denominator: 3000},
		{Measure: "flu", SiteID: 1, IntervalStart: day(2022, 6, 6), Numerator: 18, Denominator: 3000},
	}
	if err := store.InsertBulk(ctx, rows); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	all, err := store.GetAll(ctx)
	if err != nil {
		t.Fatalf("GetAll failed: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("Expected 4 rows, got %d", len(all))
	}
	if all[0].Measure != "ari" || all[1].SiteID != 1 || !all[1].IntervalStart.Equal(day(2022, 6, 6)) {
		t.Errorf("Unexpected order: %+v %+v", all[0], all[1])
	}
	if all[1].Numerator != 18 || all[1].Denominator != 3000 {
		t.Errorf("Unexpected values: %+v", all[1])
	}

	flu, err := store.GetByMeasure(ctx, "flu")
	if err != nil {
		t.Fatalf("GetByMeasure failed: %v", err)
	}
	if len(flu) != 3 {
		t.Errorf("Expected 3 flu rows, got %d", len(flu))
	}

	measures, err := store.Measures(ctx)
	if err != nil {
		t.Fatalf("Measures failed: %v", err)
	}
	if len(measures) != 2 || measures[0] != "ari" || measures[1] != "flu" {
		t.Errorf("Unexpected measures: %v", measures)
	}
}

func TestIntervalCountStore_DuplicateFailsBatch(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewIntervalCountStore(pool)
	ctx := context.Background()

	first := []*domain.IntervalCount{
		{Measure: "flu", SiteID: 1, IntervalStart: day(2022, 6, 6), Numerator: 6, Denominator: 3000},
	}
	if err := store.InsertBulk(ctx, first); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	second := []*domain.IntervalCount{
		{Measure: "flu", SiteID: 2, IntervalStart: day(2022, 6, 6), Numerator: 6, Denominator: 3000},
		{Measure: "flu", SiteID: 1, IntervalStart: day(2022, 6, 6), Numerator: 6, Denominator: 3000},
	}
	err := store.InsertBulk(ctx, second)
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}

	all, err := store.GetAll(ctx)
	if err != nil {
		t.Fatalf("GetAll failed: %v", err)
	}
	if len(all) != 1 {
		t.Errorf("Expected failed batch to be rolled back, got %d rows", len(all))
	}
}

func TestIntervalCountStore_InvalidInput(t *testing.T) {
	store := NewIntervalCountStore(nil)
	err := store.InsertBulk(context.Background(), []*domain.IntervalCount{
		{Measure: "flu", SiteID: 1, IntervalStart: day(2022, 6, 6), Numerator: 6, Denominator: 0},
	})
	if !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput, got %v", err)
	}
}
