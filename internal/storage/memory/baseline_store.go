package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"seasonality-lab/internal/domain"
	"seasonality-lab/internal/storage"
)

// BaselineStore is an in-memory implementation of storage.BaselineStore.
type BaselineStore struct {
	mu   sync.RWMutex
	data map[string]*domain.BaselineRecord // keyed by set|kind|measure|site|year
}

// NewBaselineStore creates a new in-memory baseline store.
func NewBaselineStore() *BaselineStore {
	return &BaselineStore{
		data: make(map[string]*domain.BaselineRecord),
	}
}

func baselineKey(set domain.ResultSet, kind domain.BaselineKind, measure string, siteID int64, year int) string {
	return setKey(set, fmt.Sprintf("%s|%s|%d|%d", kind, measure, siteID, year))
}

// InsertBulk adds multiple baselines atomically. Fails entire batch on any duplicate.
func (s *BaselineStore) InsertBulk(_ context.Context, records []*domain.BaselineRecord) error {
	if len(records) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[string]struct{}, len(records))
	for _, r := range records {
		if r == nil || r.Measure == "" || (r.Kind != domain.BaselineRolling && r.Kind != domain.BaselineAnchor) {
			return storage.ErrInvalidInput
		}
		if err := storage.CheckResultSet(r.ResultSet); err != nil {
			return err
		}
		key := baselineKey(r.ResultSet, r.Kind, r.Measure, r.SiteID, r.ReferenceYear)
		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	for _, r := range records {
		recCopy := *r
		s.data[baselineKey(r.ResultSet, r.Kind, r.Measure, r.SiteID, r.ReferenceYear)] = &recCopy
	}
	return nil
}

// GetByKey retrieves one baseline. Returns ErrNotFound if not exists.
func (s *BaselineStore) GetByKey(_ context.Context, set domain.ResultSet, kind domain.BaselineKind, measure string, siteID int64, referenceYear int) (*domain.BaselineRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, exists := s.data[baselineKey(set, kind, measure, siteID, referenceYear)]
	if !exists {
		return nil, storage.ErrNotFound
	}
	recCopy := *r
	return &recCopy, nil
}

// GetAll retrieves the set's baselines ordered by (kind, measure, site_id, reference_year) ASC.
func (s *BaselineStore) GetAll(_ context.Context, set domain.ResultSet) ([]*domain.BaselineRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.BaselineRecord, 0, len(s.data))
	for _, r := range s.data {
		if r.ResultSet != set {
			continue
		}
		recCopy := *r
		result = append(result, &recCopy)
	}

	sort.Slice(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		if a.Measure != b.Measure {
			return a.Measure < b.Measure
		}
		if a.SiteID != b.SiteID {
			return a.SiteID < b.SiteID
		}
		return a.ReferenceYear < b.ReferenceYear
	})
	return result, nil
}

var _ storage.BaselineStore = (*BaselineStore)(nil)
