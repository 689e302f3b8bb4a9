package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"seasonality-lab/internal/domain"
	"seasonality-lab/internal/storage"
)

// TrendResultStore is an in-memory implementation of storage.TrendResultStore.
type TrendResultStore struct {
	mu   sync.RWMutex
	data map[string]*domain.TrendResult // keyed by set|measure|site ("*" for measure-level)
}

// NewTrendResultStore creates a new in-memory trend result store.
func NewTrendResultStore() *TrendResultStore {
	return &TrendResultStore{
		data: make(map[string]*domain.TrendResult),
	}
}

func trendKey(r *domain.TrendResult) string {
	if r.SiteID == nil {
		return setKey(r.ResultSet, r.Measure+"|*")
	}
	return setKey(r.ResultSet, fmt.Sprintf("%s|%d", r.Measure, *r.SiteID))
}

// InsertBulk adds multiple results atomically. Fails entire batch on any duplicate.
func (s *TrendResultStore) InsertBulk(_ context.Context, results []*domain.TrendResult) error {
	if len(results) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[string]struct{}, len(results))
	for _, r := range results {
		if r == nil || r.Measure == "" {
			return storage.ErrInvalidInput
		}
		if err := storage.CheckResultSet(r.ResultSet); err != nil {
			return err
		}
		key := trendKey(r)
		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	for _, r := range results {
		s.data[trendKey(r)] = copyTrend(r)
	}
	return nil
}

// GetByMeasure retrieves the set's results for one measure, measure-level fit first.
func (s *TrendResultStore) GetByMeasure(_ context.Context, set domain.ResultSet, measure string) ([]*domain.TrendResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.TrendResult
	for _, r := range s.data {
		if r.ResultSet == set && r.Measure == measure {
			result = append(result, copyTrend(r))
		}
	}
	sortTrends(result)
	return result, nil
}

// GetAll retrieves the set's results ordered by (measure, site_id) ASC.
func (s *TrendResultStore) GetAll(_ context.Context, set domain.ResultSet) ([]*domain.TrendResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.TrendResult
	for _, r := range s.data {
		if r.ResultSet == set {
			result = append(result, copyTrend(r))
		}
	}
	sortTrends(result)
	return result, nil
}

func copyTrend(r *domain.TrendResult) *domain.TrendResult {
	c := *r
	if r.SiteID != nil {
		site := *r.SiteID
		c.SiteID = &site
	}
	c.RateCV = copyFloat(r.RateCV)
	c.RRSlope = copyFloat(r.RRSlope)
	c.RRR2 = copyFloat(r.RRR2)
	c.RRCV = copyFloat(r.RRCV)
	return &c
}

// sortTrends orders by measure, then measure-level fit before site fits, then site.
func sortTrends(rows []*domain.TrendResult) {
	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.Measure != b.Measure {
			return a.Measure < b.Measure
		}
		if (a.SiteID == nil) != (b.SiteID == nil) {
			return a.SiteID == nil
		}
		if a.SiteID == nil {
			return false
		}
		return *a.SiteID < *b.SiteID
	})
}

var _ storage.TrendResultStore = (*TrendResultStore)(nil)
