package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"seasonality-lab/internal/domain"
	"seasonality-lab/internal/storage"
)

// SignificanceResultStore is an in-memory implementation of storage.SignificanceResultStore.
type SignificanceResultStore struct {
	mu   sync.RWMutex
	data map[string]*domain.SignificanceResult // keyed by set|measure|season|period|site
}

// NewSignificanceResultStore creates a new in-memory significance result store.
func NewSignificanceResultStore() *SignificanceResultStore {
	return &SignificanceResultStore{
		data: make(map[string]*domain.SignificanceResult),
	}
}

func significanceKey(r *domain.SignificanceResult) string {
	return setKey(r.ResultSet, fmt.Sprintf("%s|%d", groupKey(r.Group()), r.SiteID))
}

// InsertBulk adds multiple results atomically. Fails entire batch on any duplicate.
func (s *SignificanceResultStore) InsertBulk(_ context.Context, results []*domain.SignificanceResult) error {
	if len(results) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[string]struct{}, len(results))
	for _, r := range results {
		if r == nil || r.Measure == "" || r.Season == "" || r.PandemicPeriod == "" {
			return storage.ErrInvalidInput
		}
		if err := storage.CheckResultSet(r.ResultSet); err != nil {
			return err
		}
		key := significanceKey(r)
		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	for _, r := range results {
		s.data[significanceKey(r)] = copySignificance(r)
	}
	return nil
}

// GetByGroup retrieves the set's results for one group ordered by site_id ASC.
func (s *SignificanceResultStore) GetByGroup(_ context.Context, set domain.ResultSet, group domain.GroupKey) ([]*domain.SignificanceResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.SignificanceResult
	for _, r := range s.data {
		if r.ResultSet == set && r.Group() == group {
			result = append(result, copySignificance(r))
		}
	}
	sortSignificance(result)
	return result, nil
}

// GetAll retrieves the set's results ordered by (measure, season, pandemic_period, site_id) ASC.
func (s *SignificanceResultStore) GetAll(_ context.Context, set domain.ResultSet) ([]*domain.SignificanceResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.SignificanceResult
	for _, r := range s.data {
		if r.ResultSet == set {
			result = append(result, copySignificance(r))
		}
	}
	sortSignificance(result)
	return result, nil
}

func copySignificance(r *domain.SignificanceResult) *domain.SignificanceResult {
	c := *r
	c.PValue = copyFloat(r.PValue)
	c.PValueAdjusted = copyFloat(r.PValueAdjusted)
	return &c
}

func sortSignificance(rows []*domain.SignificanceResult) {
	sort.Slice(rows, func(i, j int) bool {
		if c := compareGroups(rows[i].Group(), rows[j].Group()); c != 0 {
			return c < 0
		}
		return rows[i].SiteID < rows[j].SiteID
	})
}

var _ storage.SignificanceResultStore = (*SignificanceResultStore)(nil)
