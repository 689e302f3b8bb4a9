package memory

import (
	"context"
	"errors"
	"testing"

	"seasonality-lab/internal/domain"
	"seasonality-lab/internal/storage"
)

func TestSignificanceResultStore_GetByGroup(t *testing.T) {
	store := NewSignificanceResultStore()
	ctx := context.Background()

	p := 0.0123
	results := []*domain.SignificanceResult{
		{ResultSet: testSet, Measure: "flu", Season: "Nov-Dec", PandemicPeriod: domain.PandemicBefore, SiteID: 3, PValue: &p, PValueAdjusted: &p, Significant: true, SignificantAdj: true},
		{ResultSet: testSet, Measure: "flu", Season: "Nov-Dec", PandemicPeriod: domain.PandemicBefore, SiteID: 1},
		{ResultSet: testSet, Measure: "flu", Season: "Jan-Feb", PandemicPeriod: domain.PandemicBefore, SiteID: 1},
	}
	if err := store.InsertBulk(ctx, results); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	group := domain.GroupKey{Measure: "flu", Season: "Nov-Dec", PandemicPeriod: domain.PandemicBefore}
	got, err := store.GetByGroup(ctx, testSet, group)
	if err != nil {
		t.Fatalf("GetByGroup failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 results, got %d", len(got))
	}
	if got[0].SiteID != 1 || got[0].Defined() {
		t.Errorf("first result should be undefined site 1, got %+v", got[0])
	}
	if got[1].PValue == nil || *got[1].PValue != 0.0123 {
		t.Errorf("p-value not preserved: %+v", got[1])
	}

	// Mutating a returned p-value must not affect the store.
	*got[1].PValue = 1
	again, _ := store.GetByGroup(ctx, testSet, group)
	if *again[1].PValue != 0.0123 {
		t.Error("store returned a shared p-value pointer")
	}

	all, _ := store.GetAll(ctx, testSet)
	if len(all) != 3 || all[0].Season != "Jan-Feb" {
		t.Errorf("GetAll not ordered by group: %+v", all)
	}

	err = store.InsertBulk(ctx, results[:1])
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("expected ErrDuplicateKey, got %v", err)
	}
}
