package memory

import (
	"context"
	"sort"
	"sync"

	"seasonality-lab/internal/domain"
	"seasonality-lab/internal/storage"
)

// NormalizedIntervalStore is an in-memory implementation of storage.NormalizedIntervalStore.
type NormalizedIntervalStore struct {
	mu   sync.RWMutex
	data map[string]*domain.NormalizedInterval // keyed by set|measure|site|date
}

// NewNormalizedIntervalStore creates a new in-memory normalized interval store.
func NewNormalizedIntervalStore() *NormalizedIntervalStore {
	return &NormalizedIntervalStore{
		data: make(map[string]*domain.NormalizedInterval),
	}
}

// InsertBulk adds multiple rows atomically. Fails entire batch on any duplicate.
func (s *NormalizedIntervalStore) InsertBulk(_ context.Context, rows []*domain.NormalizedInterval) error {
	if len(rows) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[string]struct{}, len(rows))
	for _, r := range rows {
		if r == nil || !validInterval(&r.IntervalCount) {
			return storage.ErrInvalidInput
		}
		if err := storage.CheckResultSet(r.ResultSet); err != nil {
			return err
		}
		key := normalizedKey(r)
		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	for _, r := range rows {
		rowCopy := copyNormalized(r)
		s.data[normalizedKey(r)] = rowCopy
	}
	return nil
}

func normalizedKey(r *domain.NormalizedInterval) string {
	return setKey(r.ResultSet, intervalKey(r.Measure, r.SiteID, r.IntervalStart.Format(dateLayout)))
}

// GetByMeasure retrieves the set's rows for one measure ordered by (site_id, interval_start) ASC.
func (s *NormalizedIntervalStore) GetByMeasure(_ context.Context, set domain.ResultSet, measure string) ([]*domain.NormalizedInterval, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.NormalizedInterval
	for _, r := range s.data {
		if r.ResultSet == set && r.Measure == measure {
			result = append(result, copyNormalized(r))
		}
	}
	sortNormalized(result)
	return result, nil
}

// GetAll retrieves the set's rows ordered by (measure, site_id, interval_start) ASC.
func (s *NormalizedIntervalStore) GetAll(_ context.Context, set domain.ResultSet) ([]*domain.NormalizedInterval, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.NormalizedInterval
	for _, r := range s.data {
		if r.ResultSet == set {
			result = append(result, copyNormalized(r))
		}
	}
	sortNormalized(result)
	return result, nil
}

// copyNormalized deep-copies optional fields so callers cannot mutate stored rows.
func copyNormalized(r *domain.NormalizedInterval) *domain.NormalizedInterval {
	c := *r
	c.BaselineRolling = copyFloat(r.BaselineRolling)
	c.RRRolling = copyFloat(r.RRRolling)
	c.RDRolling = copyFloat(r.RDRolling)
	c.BaselineAnchor = copyFloat(r.BaselineAnchor)
	c.RRAnchor = copyFloat(r.RRAnchor)
	c.RDAnchor = copyFloat(r.RDAnchor)
	return &c
}

func copyFloat(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func sortNormalized(rows []*domain.NormalizedInterval) {
	sort.Slice(rows, func(i, j int) bool {
		return domain.CompareIntervals(&rows[i].IntervalCount, &rows[j].IntervalCount) < 0
	})
}

var _ storage.NormalizedIntervalStore = (*NormalizedIntervalStore)(nil)
